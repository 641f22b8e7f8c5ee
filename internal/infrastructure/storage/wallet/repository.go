package walletstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
)

const (
	walletsKey      = "wallets"
	activeWalletKey = "active_wallet"
)

type walletRepository struct {
	store ports.KVStore
	lock  sync.Mutex
}

// NewWalletRepository returns a ports.WalletRepository that keeps the list
// of wallets as a JSON array under a single key of store.
func NewWalletRepository(store ports.KVStore) ports.WalletRepository {
	return &walletRepository{store: store}
}

func (r *walletRepository) GetAll(ctx context.Context) ([]*domain.Wallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.readWallets(ctx)
}

func (r *walletRepository) Get(
	ctx context.Context, walletID string,
) (*domain.Wallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	wallets, err := r.readWallets(ctx)
	if err != nil {
		return nil, err
	}
	i := findWallet(wallets, walletID)
	if i < 0 {
		return nil, domain.ErrWalletNotFound
	}
	return wallets[i], nil
}

func (r *walletRepository) Save(ctx context.Context, wallet *domain.Wallet) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	wallets, err := r.readWallets(ctx)
	if err != nil {
		return err
	}
	if i := findWallet(wallets, wallet.ID); i >= 0 {
		wallets[i] = wallet
	} else {
		wallets = append(wallets, wallet)
	}
	return r.writeWallets(ctx, wallets)
}

func (r *walletRepository) Update(
	ctx context.Context, walletID string,
	updateFn func(w *domain.Wallet) (*domain.Wallet, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	wallets, err := r.readWallets(ctx)
	if err != nil {
		return err
	}
	i := findWallet(wallets, walletID)
	if i < 0 {
		return domain.ErrWalletNotFound
	}

	updated, err := updateFn(wallets[i])
	if err != nil {
		return err
	}
	wallets[i] = updated
	return r.writeWallets(ctx, wallets)
}

func (r *walletRepository) Delete(ctx context.Context, walletID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	wallets, err := r.readWallets(ctx)
	if err != nil {
		return err
	}
	i := findWallet(wallets, walletID)
	if i < 0 {
		return domain.ErrWalletNotFound
	}
	wallets = append(wallets[:i], wallets[i+1:]...)
	if err := r.writeWallets(ctx, wallets); err != nil {
		return err
	}

	activeID, _, err := r.store.Get(ctx, activeWalletKey)
	if err != nil {
		return err
	}
	if activeID != walletID {
		return nil
	}
	if len(wallets) > 0 {
		return r.store.Set(ctx, activeWalletKey, wallets[0].ID)
	}
	return r.store.Remove(ctx, activeWalletKey)
}

// GetActiveWalletID returns an empty string if no wallet is active.
func (r *walletRepository) GetActiveWalletID(ctx context.Context) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	id, _, err := r.store.Get(ctx, activeWalletKey)
	return id, err
}

func (r *walletRepository) SetActiveWalletID(
	ctx context.Context, walletID string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	wallets, err := r.readWallets(ctx)
	if err != nil {
		return err
	}
	if findWallet(wallets, walletID) < 0 {
		return domain.ErrWalletNotFound
	}
	return r.store.Set(ctx, activeWalletKey, walletID)
}

func (r *walletRepository) readWallets(ctx context.Context) ([]*domain.Wallet, error) {
	raw, ok, err := r.store.Get(ctx, walletsKey)
	if err != nil {
		return nil, err
	}
	wallets := make([]*domain.Wallet, 0)
	if !ok {
		return wallets, nil
	}
	if err := json.Unmarshal([]byte(raw), &wallets); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStoredData, err)
	}
	return wallets, nil
}

func (r *walletRepository) writeWallets(
	ctx context.Context, wallets []*domain.Wallet,
) error {
	buf, err := json.Marshal(wallets)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, walletsKey, string(buf))
}

func findWallet(wallets []*domain.Wallet, walletID string) int {
	for i, w := range wallets {
		if w.ID == walletID {
			return i
		}
	}
	return -1
}
