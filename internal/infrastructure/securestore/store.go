package securestore

import (
	"context"
	"encoding/base64"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/ports"
)

const keyPrefix = "device_secure_"

// Opts ...
type Opts struct {
	// Store is where secrets are persisted. It should be a different store
	// than the one holding the vaults.
	Store ports.KVStore
	// Capabilities are reported as they are. Leave empty on hosts without a
	// biometric or passcode prompt.
	Capabilities ports.DeviceCapabilities
}

func (o Opts) validate() error {
	if o.Store == nil {
		return fmt.Errorf("missing store")
	}
	return nil
}

type softwareStore struct {
	store ports.KVStore
	caps  ports.DeviceCapabilities
}

// NewSoftwareStore returns a ports.DeviceSecureStore that keeps secrets in a
// key-value store and never prompts the user.
func NewSoftwareStore(opts Opts) (ports.DeviceSecureStore, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &softwareStore{opts.Store, opts.Capabilities}, nil
}

func (s *softwareStore) StoreSecure(
	ctx context.Context, key string, secret []byte,
) error {
	return s.store.Set(
		ctx, keyPrefix+key, base64.StdEncoding.EncodeToString(secret),
	)
}

func (s *softwareStore) RetrieveSecure(
	ctx context.Context, key, reason string,
) ([]byte, error) {
	raw, ok, err := s.store.Get(ctx, keyPrefix+key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	log.WithField("key", key).Debugf("releasing device secret: %s", reason)

	secret, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed device secret: %w", err)
	}
	return secret, nil
}

func (s *softwareStore) RemoveSecure(ctx context.Context, key string) error {
	return s.store.Remove(ctx, keyPrefix+key)
}

func (s *softwareStore) Capabilities(_ context.Context) ports.DeviceCapabilities {
	return s.caps
}
