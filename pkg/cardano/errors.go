package cardano

import (
	"errors"
	"fmt"
)

var (
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New("malformed derivation path")
	// ErrInvalidEntropy ...
	ErrInvalidEntropy = errors.New("entropy must be between 16 and 32 bytes")
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")

	// ErrInvalidKeyHash ...
	ErrInvalidKeyHash = fmt.Errorf("key hash must be %d bytes", KeyHashLen)
	// ErrInvalidAddress ...
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnsupportedAddress ...
	ErrUnsupportedAddress = errors.New("address type not supported")

	// ErrInvalidValue ...
	ErrInvalidValue = errors.New("invalid value encoding")
	// ErrInvalidTxOutput ...
	ErrInvalidTxOutput = errors.New("invalid transaction output encoding")
	// ErrInvalidTx ...
	ErrInvalidTx = errors.New("invalid transaction encoding")
	// ErrInvalidMetadata ...
	ErrInvalidMetadata = errors.New("invalid transaction metadata")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("invalid amount")
)
