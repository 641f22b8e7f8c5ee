package domain

import "fmt"

// AuthType is the factor required to unlock a wallet.
type AuthType string

const (
	AuthTypePassword  AuthType = "password"
	AuthTypePin       AuthType = "pin"
	AuthTypeBiometric AuthType = "biometric"
)

// Validate ...
func (a AuthType) Validate() error {
	switch a {
	case AuthTypePassword, AuthTypePin, AuthTypeBiometric:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAuthType, a)
	}
}

// Strength orders the factors. A tampered auth type record falls back to the
// strongest factor configured for the wallet.
func (a AuthType) Strength() int {
	switch a {
	case AuthTypePassword:
		return 1
	case AuthTypePin:
		return 2
	case AuthTypeBiometric:
		return 3
	default:
		return 0
	}
}
