package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tdex-network/custody/internal/core/ports"
)

// store keeps the pairs in a map along with a sorted index of the keys used
// for prefix lookups. Both are guarded by the same mutex.
type store struct {
	lock sync.RWMutex
	data map[string]string
	keys []string
}

// NewKVStore returns an empty in-memory ports.KVStore.
func NewKVStore() ports.KVStore {
	return &store{
		data: make(map[string]string),
		keys: make([]string, 0),
	}
}

func (s *store) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	value, ok := s.data[key]
	return value, ok, nil
}

func (s *store) Set(_ context.Context, key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.data[key]; !ok {
		i := sort.SearchStrings(s.keys, key)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = key
	}
	s.data[key] = value
	return nil
}

func (s *store) Remove(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	i := sort.SearchStrings(s.keys, key)
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	return nil
}

func (s *store) Exists(_ context.Context, key string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	_, ok := s.data[key]
	return ok, nil
}

func (s *store) GetKeysByPrefix(_ context.Context, prefix string) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	keys := make([]string, 0)
	for i := sort.SearchStrings(s.keys, prefix); i < len(s.keys); i++ {
		if !strings.HasPrefix(s.keys[i], prefix) {
			break
		}
		keys = append(keys, s.keys[i])
	}
	return keys, nil
}

func (s *store) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data = make(map[string]string)
	s.keys = make([]string, 0)
	return nil
}

func (s *store) Close() error {
	return nil
}
