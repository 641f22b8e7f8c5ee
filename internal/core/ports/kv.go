package ports

import "context"

// KVStore is the key-value persistence collaborator. Values are JSON text.
type KVStore interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove is a no-op for missing keys.
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// GetKeysByPrefix returns the sorted keys starting with prefix.
	GetKeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context) error
	Close() error
}

// DeviceCapabilities ...
type DeviceCapabilities struct {
	SupportsBiometric bool
	BiometricKinds    []string
	SupportsPin       bool
}

// DeviceSecureStore stores secrets behind a device bound factor. Retrieving
// a secret may prompt the user with reason.
type DeviceSecureStore interface {
	StoreSecure(ctx context.Context, key string, secret []byte) error
	// RetrieveSecure returns nil if the key does not exist.
	RetrieveSecure(ctx context.Context, key, reason string) ([]byte, error)
	RemoveSecure(ctx context.Context, key string) error
	Capabilities(ctx context.Context) DeviceCapabilities
}
