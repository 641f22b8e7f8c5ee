package vaultcrypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	verifierVersion = 1
	verifierSaltLen = 16
)

// VerifierPayload is a salted one-way hash of a password or PIN. It allows to
// authenticate a secret without decrypting anything and never contains the
// secret itself.
type VerifierPayload struct {
	Version   int       `json:"version"`
	Salt      string    `json:"salt"`
	Hash      string    `json:"hash"`
	KDF       KDFParams `json:"kdf"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewVerifier hashes the secret with the given KDF params and a fresh salt.
// The params are stored along with the hash so that verification keeps
// working if the defaults change.
func NewVerifier(secret []byte, params KDFParams) (*VerifierPayload, error) {
	if len(secret) <= 0 {
		return nil, ErrNullSecret
	}

	salt := make([]byte, verifierSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	hash, err := params.DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}
	defer clear(hash)

	return &VerifierPayload{
		Version:   verifierVersion,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Hash:      base64.StdEncoding.EncodeToString(hash),
		KDF:       params,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Verify re-derives the hash of secret and compares it in constant time with
// the stored one.
func (v *VerifierPayload) Verify(secret []byte) (bool, error) {
	if v.Version != verifierVersion {
		return false, ErrUnsupportedVersion
	}
	if len(secret) <= 0 {
		return false, ErrNullSecret
	}

	salt, err := base64.StdEncoding.DecodeString(v.Salt)
	if err != nil {
		return false, fmt.Errorf("%w: salt: %s", ErrInvalidData, err)
	}
	expected, err := base64.StdEncoding.DecodeString(v.Hash)
	if err != nil {
		return false, fmt.Errorf("%w: hash: %s", ErrInvalidData, err)
	}
	if len(expected) != int(v.KDF.KeyLen) {
		return false, fmt.Errorf("%w: hash length mismatch", ErrInvalidData)
	}

	hash, err := v.KDF.DeriveKey(secret, salt)
	if err != nil {
		return false, err
	}
	defer clear(hash)

	return subtle.ConstantTimeCompare(hash, expected) == 1, nil
}
