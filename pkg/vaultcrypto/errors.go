package vaultcrypto

import "errors"

var (
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullVault ...
	ErrNullVault = errors.New("vault to decrypt must not be null")
	// ErrNullSubjectID ...
	ErrNullSubjectID = errors.New("subject id must not be null")
	// ErrNullSecret ...
	ErrNullSecret = errors.New("secret must not be null")
	// ErrInvalidPurpose ...
	ErrInvalidPurpose = errors.New("invalid vault purpose")

	// ErrAuthentication is returned for a wrong password as well as for any
	// tampering with the ciphertext or its bound context. The two cases are
	// indistinguishable on purpose.
	ErrAuthentication = errors.New("authentication failed")
	// ErrUnsupportedVersion is returned for vaults or verifiers whose version
	// has no known KDF parameters.
	ErrUnsupportedVersion = errors.New("version not supported")
	// ErrInvalidData is returned when the stored fields can't be decoded.
	ErrInvalidData = errors.New("invalid stored data")
)
