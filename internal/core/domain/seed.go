package domain

import "sync"

// SecretSeed owns the decrypted seed of an unlocked wallet. The buffer never
// leaves the type: callers borrow it for the duration of a function and it is
// overwritten by Wipe.
type SecretSeed struct {
	mu  sync.RWMutex
	buf []byte
}

// NewSecretSeed takes ownership of buf. The caller must not retain or modify
// it afterwards.
func NewSecretSeed(buf []byte) *SecretSeed {
	return &SecretSeed{buf: buf}
}

// Borrow calls fn with the seed bytes. fn must not retain the slice.
func (s *SecretSeed) Borrow(fn func(seed []byte) error) error {
	if s == nil {
		return ErrWalletLocked
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.buf) == 0 {
		return ErrWalletLocked
	}
	return fn(s.buf)
}

// Wipe zeroes the seed and drops the buffer. It is safe to call it multiple
// times.
func (s *SecretSeed) Wipe() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.buf)
	s.buf = nil
}

// IsWiped ...
func (s *SecretSeed) IsWiped() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf) == 0
}
