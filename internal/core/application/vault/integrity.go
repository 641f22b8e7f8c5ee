package vault

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/tdex-network/custody/internal/core/ports"
)

const integrityKeyLen = 32

// localKey is a random key created lazily under name that never leaves the
// secure store. The integrity key tags the records that must not be
// editable by whoever has write access to the store, the provider key
// encrypts the API keys of custom endpoints.
type localKey struct {
	store ports.KVStore
	name  string
	lock  sync.Mutex
}

func newLocalKey(store ports.KVStore, name string) *localKey {
	return &localKey{store: store, name: name}
}

// key returns the local key, creating it if create is true. A missing
// key with create false returns nil.
func (i *localKey) key(ctx context.Context, create bool) ([]byte, error) {
	i.lock.Lock()
	defer i.lock.Unlock()

	encoded, ok, err := i.store.Get(ctx, i.name)
	if err != nil {
		return nil, err
	}
	if ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(key) != integrityKeyLen {
			// A corrupted key can't validate anything.
			return nil, nil
		}
		return key, nil
	}
	if !create {
		return nil, nil
	}

	key := make([]byte, integrityKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := i.store.Set(
		ctx, i.name, base64.StdEncoding.EncodeToString(key),
	); err != nil {
		return nil, err
	}
	return key, nil
}

// tag returns the hex HMAC-SHA256 of the length-prefixed fields.
func tag(key []byte, fields ...string) string {
	mac := hmac.New(sha256.New, key)
	var size [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(size[:], uint64(len(f)))
		mac.Write(size[:])
		mac.Write([]byte(f))
	}
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyTag(key []byte, expected string, fields ...string) bool {
	if len(key) == 0 {
		return false
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	actual, _ := hex.DecodeString(tag(key, fields...))
	return hmac.Equal(expectedBytes, actual)
}
