package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// EncryptOpts is the struct given to Encrypt method.
type EncryptOpts struct {
	SubjectID uuid.UUID
	Purpose   Purpose
	PlainText []byte
	Password  []byte
	// Version defaults to CurrentVersion.
	Version int
	// KDFTable defaults to DefaultKDFTable.
	KDFTable KDFTable
}

func (o EncryptOpts) validate() error {
	if o.SubjectID == uuid.Nil {
		return ErrNullSubjectID
	}
	if !o.Purpose.IsValid() {
		return ErrInvalidPurpose
	}
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Password) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt encrypts the plaintext with AES-256-GCM under a key stretched from
// the password. A fresh salt and IV are drawn for every call.
func Encrypt(opts EncryptOpts) (*EncryptedVault, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	version := opts.Version
	if version == 0 {
		version = CurrentVersion
	}
	params, err := opts.KDFTable.Params(version)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, IVLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	key, err := params.DeriveKey(opts.Password, salt)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	aad := additionalData(version, opts.SubjectID, opts.Purpose)
	ciphertext := gcm.Seal(nil, iv, opts.PlainText, aad)

	return &EncryptedVault{
		Version:    version,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		SubjectID:  opts.SubjectID,
		Purpose:    opts.Purpose,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// DecryptOpts is the struct given to Decrypt method.
type DecryptOpts struct {
	Vault    *EncryptedVault
	Password []byte
	// KDFTable defaults to DefaultKDFTable.
	KDFTable KDFTable
}

func (o DecryptOpts) validate() error {
	if o.Vault == nil {
		return ErrNullVault
	}
	if len(o.Password) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt reverts Encrypt. The associated data is rebuilt from the vault's
// own subject and purpose, so any change to those fields, to the ciphertext,
// the IV, the salt, or the password results in ErrAuthentication.
// The caller owns the returned plaintext and must clear it once done.
func Decrypt(opts DecryptOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	vault := opts.Vault
	// Unknown versions are rejected before doing any work with the password.
	params, err := opts.KDFTable.Params(vault.Version)
	if err != nil {
		return nil, err
	}
	if vault.SubjectID == uuid.Nil || !vault.Purpose.IsValid() {
		return nil, ErrInvalidData
	}

	ciphertext, iv, salt, err := vault.decoded()
	if err != nil {
		return nil, err
	}

	key, err := params.DeriveKey(opts.Password, salt)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	aad := additionalData(vault.Version, vault.SubjectID, vault.Purpose)
	plaintext, err := gcm.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// VerifyPassword returns whether the password decrypts the vault. The
// plaintext is wiped before returning.
func VerifyPassword(vault *EncryptedVault, password []byte, table KDFTable) bool {
	plaintext, err := Decrypt(DecryptOpts{
		Vault:    vault,
		Password: password,
		KDFTable: table,
	})
	if err != nil {
		return false
	}
	clear(plaintext)
	return true
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
