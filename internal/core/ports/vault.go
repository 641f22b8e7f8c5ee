package ports

import (
	"context"

	"github.com/tdex-network/custody/internal/core/domain"
)

// VaultStore guards the encrypted seeds of the wallets.
type VaultStore interface {
	CreateVault(ctx context.Context, walletID string, mnemonic, password []byte) error
	HasVault(ctx context.Context, walletID string) (bool, error)
	UnlockVault(
		ctx context.Context, walletID string, secret []byte, authType domain.AuthType,
	) (*domain.SecretSeed, error)
	VerifyPassword(ctx context.Context, walletID string, password []byte) error
	ChangePassword(ctx context.Context, walletID string, oldPassword, newPassword []byte) error
	DeleteVault(ctx context.Context, walletID string) error
}
