package badgerkv

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/timshannon/badgerhold/v4"
)

const gcInterval = 30 * time.Minute

type entry struct {
	Key   string
	Value string
}

type store struct {
	db   *badgerhold.Store
	quit chan struct{}
}

// NewKVStore opens (or creates) the badger db in dbDir. An empty dbDir
// returns an in-memory store.
func NewKVStore(dbDir string, logger badger.Logger) (ports.KVStore, error) {
	db, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening kv db: %w", err)
	}
	s := &store{db, make(chan struct{})}
	if len(dbDir) > 0 {
		go s.runValueLogGC()
	}
	return s, nil
}

func (s *store) Get(_ context.Context, key string) (string, bool, error) {
	var e entry
	if err := s.db.Get(key, &e); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return e.Value, true, nil
}

func (s *store) Set(_ context.Context, key, value string) error {
	return s.db.Upsert(key, &entry{Key: key, Value: value})
}

func (s *store) Remove(_ context.Context, key string) error {
	if err := s.db.Delete(key, entry{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (s *store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *store) GetKeysByPrefix(_ context.Context, prefix string) ([]string, error) {
	query := badgerhold.Where("Key").RegExp(
		regexp.MustCompile("^" + regexp.QuoteMeta(prefix)),
	)
	var entries []entry
	if err := s.db.Find(&entries, query); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *store) Clear(_ context.Context) error {
	var entries []entry
	if err := s.db.Find(&entries, nil); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.db.Delete(e.Key, entry{}); err != nil &&
			err != badgerhold.ErrNotFound {
			return err
		}
	}
	return nil
}

func (s *store) Close() error {
	close(s.quit)
	return s.db.Close()
}

func (s *store) runValueLogGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.db.Badger().RunValueLogGC(0.5); err != nil &&
				err != badger.ErrNoRewrite {
				log.WithError(err).Warn("kv value log gc failed")
			}
		case <-s.quit:
			return
		}
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
