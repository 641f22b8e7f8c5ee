package ports

import (
	"context"

	"github.com/tdex-network/custody/internal/core/domain"
)

// ChainWallet is the per-chain strategy for key derivation, transaction
// building and signing. Seeds are borrowed, never retained, and any derived
// private key is zeroed before returning.
type ChainWallet interface {
	Chain() domain.Chain
	DeriveChainData(
		seed []byte, info domain.ChainInfo,
		account, index uint32, isChange bool,
	) (*domain.DerivedAddress, error)
	BuildTransaction(
		ctx context.Context, info domain.ChainInfo, from string,
		req domain.TxRequest, provider ChainProvider,
	) (*domain.UnsignedTx, error)
	Sign(
		unsigned *domain.UnsignedTx, seed []byte, info domain.ChainInfo,
		account, index uint32,
	) ([]byte, error)
}

// ChainProvider reads chain state from and submits transactions to a remote
// endpoint. Transport errors are returned as they are, without retries.
type ChainProvider interface {
	GetUtxos(ctx context.Context, address string) ([]domain.Utxo, error)
	// GetUtxosForAddresses resolves the addresses concurrently and fails as a
	// whole if any of the lookups fails.
	GetUtxosForAddresses(
		ctx context.Context, addresses []string,
	) ([]domain.Utxo, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetAssets(ctx context.Context, address string) ([]domain.Asset, error)
	IsAddressUsed(ctx context.Context, address string) (bool, error)
	GetProtocolParams(ctx context.Context) (*domain.ProtocolParams, error)
	// Submit returns the hash of the submitted transaction.
	Submit(ctx context.Context, signedTx []byte) (string, error)
	FollowTip(ctx context.Context) (*domain.TipSubscription, error)
	Close()
}

// ChainProviderFactory returns the provider for the given chain and network,
// honoring custom provider configs.
type ChainProviderFactory interface {
	Provider(ctx context.Context, info domain.ChainInfo) (ChainProvider, error)
}
