package boltkv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tdex-network/custody/internal/core/ports"
	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultFilename ...
	DefaultFilename = "secure.db"
	dbTimeout       = 10 * time.Second
)

var rootBucket = []byte("root")

type store struct {
	db *bolt.DB
}

// NewKVStore opens (or creates) the bolt db file in datadir. Data is
// synced to disk on every write.
func NewKVStore(datadir, filename string) (ports.KVStore, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(
		filepath.Join(datadir, filename), 0600, &bolt.Options{Timeout: dbTimeout},
	)
	if err != nil {
		return nil, fmt.Errorf("opening secure db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &store{db}, nil
}

func (s *store) Get(_ context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(rootBucket).Get([]byte(key)); v != nil {
			value, ok = string(v), true
		}
		return nil
	})
	return value, ok, err
}

func (s *store) Set(_ context.Context, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put([]byte(key), []byte(value))
	})
}

func (s *store) Remove(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete([]byte(key))
	})
}

func (s *store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *store) GetKeysByPrefix(_ context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

func (s *store) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(rootBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(rootBucket)
		return err
	})
}

func (s *store) Close() error {
	return s.db.Close()
}
