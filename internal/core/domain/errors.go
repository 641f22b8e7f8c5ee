package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/tdex-network/custody/pkg/vaultcrypto"
)

var (
	// ErrAuthentication is returned for a wrong password or PIN and for
	// tampered vaults alike.
	ErrAuthentication = vaultcrypto.ErrAuthentication
	// ErrUnsupportedVersion ...
	ErrUnsupportedVersion = vaultcrypto.ErrUnsupportedVersion
	// ErrLockedOut is matched by every *LockoutError.
	ErrLockedOut = errors.New("too many failed attempts, wallet is locked out")
	// ErrVaultNotFound ...
	ErrVaultNotFound = errors.New("vault not found")
	// ErrVaultAlreadyExists ...
	ErrVaultAlreadyExists = errors.New("vault already exists")
	// ErrVerifierNotFound ...
	ErrVerifierNotFound = errors.New("verifier not found")
	// ErrProviderConfigNotFound ...
	ErrProviderConfigNotFound = errors.New("custom provider config not found")
	// ErrInvalidStoredData is returned for any malformed persisted record.
	ErrInvalidStoredData = errors.New("invalid stored data")
	// ErrAuthTypeMismatch is returned when unlocking with a factor other than
	// the configured one.
	ErrAuthTypeMismatch = errors.New("auth type does not match the configured one")
	// ErrNotSupported is returned when the device lacks a required capability.
	ErrNotSupported = errors.New("not supported by this device")
	// ErrWalletLocked is returned by chain operations on a locked wallet.
	ErrWalletLocked = errors.New("wallet must be unlocked to perform this operation")
	// ErrWalletNotFound ...
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists ...
	ErrAccountAlreadyExists = errors.New("account with the same index already exists")
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnknownChain ...
	ErrUnknownChain = errors.New("unknown chain")
	// ErrUnknownNetwork ...
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrUnknownAuthType ...
	ErrUnknownAuthType = errors.New("unknown auth type")
	// ErrNullWalletName ...
	ErrNullWalletName = errors.New("wallet name must not be null")
	// ErrNullPassword ...
	ErrNullPassword = errors.New("password must not be null")
	// ErrNullOutputs ...
	ErrNullOutputs = errors.New("transaction outputs must not be null")
	// ErrNullAddress ...
	ErrNullAddress = errors.New("address must not be null")
	// ErrNullEndpoint ...
	ErrNullEndpoint = errors.New("provider endpoint must not be null")
	// ErrInvalidAccountIndex ...
	ErrInvalidAccountIndex = errors.New("account index out of range")
)

// LockoutError is returned while a wallet is locked out. It carries the end
// of the lockout window.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf(
		"%s until %s", ErrLockedOut, e.Until.UTC().Format(time.RFC3339),
	)
}

// Is makes errors.Is(err, ErrLockedOut) match.
func (e *LockoutError) Is(target error) bool {
	return target == ErrLockedOut
}
