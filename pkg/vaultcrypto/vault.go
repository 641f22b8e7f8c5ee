package vaultcrypto

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Purpose tells what kind of secret an EncryptedVault protects. It is bound
// into the ciphertext so that a vault can't be reused for another purpose.
type Purpose string

const (
	PurposeMnemonic             Purpose = "mnemonic"
	PurposeApiKey               Purpose = "api_key"
	PurposePinProtectedPassword Purpose = "pin_protected_password"
	PurposeBiometricSeed        Purpose = "biometric_seed"
	PurposePinProtectedSeed     Purpose = "pin_protected_seed"
)

// IsValid returns whether p is one of the known purposes.
func (p Purpose) IsValid() bool {
	switch p {
	case PurposeMnemonic, PurposeApiKey, PurposePinProtectedPassword,
		PurposeBiometricSeed, PurposePinProtectedSeed:
		return true
	default:
		return false
	}
}

// EncryptedVault is the persisted form of an encrypted secret. Field names are
// part of the storage format.
type EncryptedVault struct {
	Version    int       `json:"version"`
	Ciphertext string    `json:"ciphertext"`
	IV         string    `json:"iv"`
	Salt       string    `json:"salt"`
	SubjectID  uuid.UUID `json:"subjectId"`
	Purpose    Purpose   `json:"purpose"`
	CreatedAt  time.Time `json:"createdAt"`
}

// decoded returns the raw ciphertext, iv and salt, checking their lengths.
func (v *EncryptedVault) decoded() (ciphertext, iv, salt []byte, err error) {
	if ciphertext, err = base64.StdEncoding.DecodeString(v.Ciphertext); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: ciphertext: %s", ErrInvalidData, err)
	}
	if iv, err = base64.StdEncoding.DecodeString(v.IV); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: iv: %s", ErrInvalidData, err)
	}
	if salt, err = base64.StdEncoding.DecodeString(v.Salt); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: salt: %s", ErrInvalidData, err)
	}
	if len(iv) != IVLen {
		return nil, nil, nil, fmt.Errorf("%w: iv must be %d bytes", ErrInvalidData, IVLen)
	}
	if len(salt) != SaltLen {
		return nil, nil, nil, fmt.Errorf("%w: salt must be %d bytes", ErrInvalidData, SaltLen)
	}
	if len(ciphertext) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty ciphertext", ErrInvalidData)
	}
	return
}

// additionalData binds version, subject and purpose into the AEAD tag.
func additionalData(version int, subjectID uuid.UUID, purpose Purpose) []byte {
	aad := make([]byte, 0, 64)
	aad = append(aad, 'v')
	aad = strconv.AppendInt(aad, int64(version), 10)
	aad = append(aad, '|')
	aad = append(aad, subjectID.String()...)
	aad = append(aad, '|')
	aad = append(aad, purpose...)
	return aad
}
