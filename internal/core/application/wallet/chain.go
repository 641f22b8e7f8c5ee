package wallet

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
)

// GetUtxos returns the unspents of the account's receive address.
func (s *Service) GetUtxos(
	ctx context.Context, walletID string, accountIndex uint32,
) ([]domain.Utxo, error) {
	provider, address, err := s.accountProvider(ctx, walletID, accountIndex)
	if err != nil {
		return nil, err
	}
	utxos, err := provider.GetUtxos(ctx, address)
	if err != nil {
		return nil, err
	}
	s.markSynced(ctx, walletID, accountIndex)
	return utxos, nil
}

// GetBalance ...
func (s *Service) GetBalance(
	ctx context.Context, walletID string, accountIndex uint32,
) (uint64, error) {
	utxos, err := s.GetUtxos(ctx, walletID, accountIndex)
	if err != nil {
		return 0, err
	}
	return domain.TotalValue(utxos), nil
}

// GetAssets returns the native assets of the account aggregated by unit.
func (s *Service) GetAssets(
	ctx context.Context, walletID string, accountIndex uint32,
) ([]domain.Asset, error) {
	utxos, err := s.GetUtxos(ctx, walletID, accountIndex)
	if err != nil {
		return nil, err
	}
	return domain.AggregateAssets(utxos), nil
}

// GetAllUtxos returns the unspents of every account of the wallet. Lookups
// run concurrently.
func (s *Service) GetAllUtxos(
	ctx context.Context, walletID string,
) ([]domain.Utxo, error) {
	w, _, err := s.unlockedWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	provider, err := s.providers.Provider(ctx, w.ChainInfo())
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(w.Accounts))
	for _, account := range w.Accounts {
		addr, err := s.receiveAddress(ctx, w, account)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return provider.GetUtxosForAddresses(ctx, addresses)
}

// GetTotalBalance ...
func (s *Service) GetTotalBalance(ctx context.Context, walletID string) (uint64, error) {
	utxos, err := s.GetAllUtxos(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return domain.TotalValue(utxos), nil
}

// GetAllAssets ...
func (s *Service) GetAllAssets(
	ctx context.Context, walletID string,
) ([]domain.Asset, error) {
	utxos, err := s.GetAllUtxos(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return domain.AggregateAssets(utxos), nil
}

// PrepareSend builds the transaction without signing it, to preview fee
// and change.
func (s *Service) PrepareSend(
	ctx context.Context, walletID string, accountIndex uint32, req domain.TxRequest,
) (*domain.UnsignedTx, error) {
	w, cw, err := s.unlockedWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	provider, address, err := s.accountProvider(ctx, walletID, accountIndex)
	if err != nil {
		return nil, err
	}
	return cw.BuildTransaction(ctx, w.ChainInfo(), address, req, provider)
}

// Send builds, signs and submits a transaction spending the account's
// receive address. It returns the id of the submitted transaction.
func (s *Service) Send(
	ctx context.Context, walletID string, accountIndex uint32, req domain.TxRequest,
) (string, error) {
	w, cw, err := s.unlockedWallet(ctx, walletID)
	if err != nil {
		return "", err
	}
	info := w.ChainInfo()
	provider, address, err := s.accountProvider(ctx, walletID, accountIndex)
	if err != nil {
		return "", err
	}

	unsigned, err := cw.BuildTransaction(ctx, info, address, req, provider)
	if err != nil {
		return "", err
	}

	var signed []byte
	if err := w.UseSeed(func(seed []byte) error {
		signed, err = cw.Sign(unsigned, seed, info, accountIndex, 0)
		return err
	}); err != nil {
		return "", err
	}

	txID, err := provider.Submit(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}

	log.WithField("wallet", walletID).Infof(
		"submitted tx %s (fee %d)", txID, unsigned.Fee,
	)
	return txID, nil
}

// FollowTip subscribes to the tip of the given chain and network.
func (s *Service) FollowTip(
	ctx context.Context, info domain.ChainInfo,
) (*domain.TipSubscription, error) {
	provider, err := s.providers.Provider(ctx, info)
	if err != nil {
		return nil, err
	}
	return provider.FollowTip(ctx)
}

func (s *Service) accountProvider(
	ctx context.Context, walletID string, accountIndex uint32,
) (ports.ChainProvider, string, error) {
	w, account, err := s.account(ctx, walletID, accountIndex)
	if err != nil {
		return nil, "", err
	}
	address, err := s.receiveAddress(ctx, w, account)
	if err != nil {
		return nil, "", err
	}
	provider, err := s.providers.Provider(ctx, w.ChainInfo())
	if err != nil {
		return nil, "", err
	}
	return provider, address, nil
}

func (s *Service) markSynced(ctx context.Context, walletID string, accountIndex uint32) {
	now := s.clock.Now()
	if err := s.repo.Update(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		account, err := w.GetAccount(accountIndex)
		if err != nil {
			return nil, err
		}
		account.MarkSynced(w.ChainInfo(), now)
		return w, nil
	}); err != nil {
		log.WithError(err).Warn("failed to update account sync time")
	}
}
