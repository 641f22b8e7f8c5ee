package vaultcrypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// VersionPBKDF2 selects PBKDF2-HMAC-SHA256 key derivation.
	VersionPBKDF2 = 1
	// VersionArgon2id selects Argon2id key derivation.
	VersionArgon2id = 2
	// CurrentVersion is used for every newly encrypted vault.
	CurrentVersion = VersionArgon2id

	// KDFArgon2id ...
	KDFArgon2id = "argon2id"
	// KDFPBKDF2SHA256 ...
	KDFPBKDF2SHA256 = "pbkdf2-sha256"

	// SaltLen is the length in bytes of the random salt of a vault.
	SaltLen = 32
	// IVLen is the length in bytes of the AES-GCM nonce.
	IVLen = 12
	// KeyLen is the length of the AES-256 key.
	KeyLen = 32
)

// KDFParams describes how a symmetric key is stretched out of a password.
// Memory is expressed in KiB and only applies to Argon2id.
type KDFParams struct {
	Algorithm   string `json:"algorithm"`
	Memory      uint32 `json:"memory,omitempty"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism,omitempty"`
	KeyLen      uint32 `json:"keyLen"`
}

// DeriveKey stretches password into a key of p.KeyLen bytes. The caller owns
// the returned slice and must clear it once done.
func (p KDFParams) DeriveKey(password, salt []byte) ([]byte, error) {
	if p.KeyLen == 0 || p.Iterations == 0 {
		return nil, ErrUnsupportedVersion
	}

	switch p.Algorithm {
	case KDFArgon2id:
		if p.Memory == 0 || p.Parallelism == 0 {
			return nil, ErrUnsupportedVersion
		}
		return argon2.IDKey(
			password, salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLen,
		), nil
	case KDFPBKDF2SHA256:
		return pbkdf2.Key(
			password, salt, int(p.Iterations), int(p.KeyLen), sha256.New,
		), nil
	default:
		return nil, ErrUnsupportedVersion
	}
}

// KDFTable maps a vault version to the parameters used to derive its key.
// Entries must never change once a version is released, otherwise older
// vaults become undecryptable.
type KDFTable map[int]KDFParams

// DefaultKDFTable returns the production parameters.
func DefaultKDFTable() KDFTable {
	return KDFTable{
		VersionPBKDF2: {
			Algorithm:  KDFPBKDF2SHA256,
			Iterations: 600000,
			KeyLen:     KeyLen,
		},
		VersionArgon2id: {
			Algorithm:   KDFArgon2id,
			Memory:      64 * 1024,
			Iterations:  3,
			Parallelism: 4,
			KeyLen:      KeyLen,
		},
	}
}

// FastKDFTable returns cheap parameters with the same layout as the default
// table. It must only be used in tests.
func FastKDFTable() KDFTable {
	return KDFTable{
		VersionPBKDF2: {
			Algorithm:  KDFPBKDF2SHA256,
			Iterations: 16,
			KeyLen:     KeyLen,
		},
		VersionArgon2id: {
			Algorithm:   KDFArgon2id,
			Memory:      64,
			Iterations:  1,
			Parallelism: 1,
			KeyLen:      KeyLen,
		},
	}
}

// Params returns the parameters for the given version or
// ErrUnsupportedVersion. A nil table falls back to the default one.
func (t KDFTable) Params(version int) (KDFParams, error) {
	if t == nil {
		t = DefaultKDFTable()
	}
	params, ok := t[version]
	if !ok {
		return KDFParams{}, ErrUnsupportedVersion
	}
	return params, nil
}
