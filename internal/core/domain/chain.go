package domain

import "fmt"

// Chain identifies the ledger a ChainWallet strategy is bound to.
type Chain string

const (
	ChainCardano Chain = "cardano"
	ChainBitcoin Chain = "bitcoin"
)

// Network ...
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// ChainInfo is the pair (chain, network) every chain operation refers to.
type ChainInfo struct {
	Chain   Chain   `json:"chain"`
	Network Network `json:"network"`
}

// Validate ...
func (c ChainInfo) Validate() error {
	switch c.Chain {
	case ChainCardano, ChainBitcoin:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChain, c.Chain)
	}
	switch c.Network {
	case NetworkMainnet, NetworkTestnet:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network)
	}
	return nil
}

// Key returns the "chain:network" key used to index per-chain data.
func (c ChainInfo) Key() string {
	return fmt.Sprintf("%s:%s", c.Chain, c.Network)
}

func (c ChainInfo) String() string {
	return c.Key()
}

// IsMainnet ...
func (c ChainInfo) IsMainnet() bool {
	return c.Network == NetworkMainnet
}
