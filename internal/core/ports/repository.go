package ports

import (
	"context"

	"github.com/tdex-network/custody/internal/core/domain"
)

// WalletRepository persists wallet aggregates, without their seed.
type WalletRepository interface {
	GetAll(ctx context.Context) ([]*domain.Wallet, error)
	Get(ctx context.Context, walletID string) (*domain.Wallet, error)
	Save(ctx context.Context, wallet *domain.Wallet) error
	// Update applies updateFn to the stored wallet and persists the result
	// atomically with respect to other repository calls.
	Update(
		ctx context.Context, walletID string,
		updateFn func(w *domain.Wallet) (*domain.Wallet, error),
	) error
	Delete(ctx context.Context, walletID string) error
	GetActiveWalletID(ctx context.Context) (string, error)
	SetActiveWalletID(ctx context.Context, walletID string) error
}
