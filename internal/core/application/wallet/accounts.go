package wallet

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
)

// CreateAccount adds an account to the unlocked wallet, at the next index
// if index is nil. Its receive address is derived for the active chain.
func (s *Service) CreateAccount(
	ctx context.Context, walletID, name string, index *uint32,
) (*domain.Account, error) {
	w, cw, err := s.unlockedWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	info := w.ChainInfo()

	var account *domain.Account
	if err := s.repo.Update(ctx, walletID, func(stored *domain.Wallet) (*domain.Wallet, error) {
		i := stored.NextAccountIndex()
		if index != nil {
			i = *index
		}
		if stored.HasAccount(i) {
			return nil, domain.ErrAccountAlreadyExists
		}

		var err error
		if err = w.UseSeed(func(seed []byte) error {
			account, err = s.newAccount(cw, seed, info, i, name)
			return err
		}); err != nil {
			return nil, err
		}
		if err := stored.AddAccount(account); err != nil {
			return nil, err
		}
		return stored, nil
	}); err != nil {
		return nil, err
	}
	return account, nil
}

// ListAccounts ...
func (s *Service) ListAccounts(
	ctx context.Context, walletID string,
) ([]*domain.Account, error) {
	w, err := s.repo.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return w.Accounts, nil
}

// DiscoverAccounts scans the account indexes from 0 and creates the ones
// whose primary address has been used on chain. Scanning stops after
// gapLimit consecutive unused accounts or at MaxDiscoveryIndex.
func (s *Service) DiscoverAccounts(
	ctx context.Context, walletID string, gapLimit int,
) ([]*domain.Account, error) {
	if gapLimit <= 0 {
		gapLimit = DefaultGapLimit
	}
	w, cw, err := s.unlockedWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	info := w.ChainInfo()
	provider, err := s.providers.Provider(ctx, info)
	if err != nil {
		return nil, err
	}

	discovered := make([]*domain.Account, 0)
	gap := 0
	for index := uint32(0); index < MaxDiscoveryIndex && gap < gapLimit; index++ {
		var derived *domain.DerivedAddress
		if err := w.UseSeed(func(seed []byte) error {
			derived, err = cw.DeriveChainData(seed, info, index, 0, false)
			return err
		}); err != nil {
			return nil, err
		}

		used, err := s.isAddressUsed(ctx, info, provider, derived.Address)
		if err != nil {
			return nil, fmt.Errorf("discovery of account %d: %w", index, err)
		}
		if !used {
			gap++
			continue
		}
		gap = 0
		if w.HasAccount(index) {
			continue
		}

		account, err := domain.NewAccount(index, "", s.clock.Now())
		if err != nil {
			return nil, err
		}
		account.SetChainData(chainData(info, derived))
		discovered = append(discovered, account)
	}

	if len(discovered) <= 0 {
		return discovered, nil
	}
	if err := s.repo.Update(ctx, walletID, func(stored *domain.Wallet) (*domain.Wallet, error) {
		for _, account := range discovered {
			if stored.HasAccount(account.Index) {
				continue
			}
			if err := stored.AddAccount(account); err != nil {
				return nil, err
			}
		}
		return stored, nil
	}); err != nil {
		return nil, err
	}

	log.WithField("wallet", walletID).Infof("discovered %d accounts", len(discovered))
	return discovered, nil
}

// GetReceiveAddress returns the receive address of the account on the
// active chain.
func (s *Service) GetReceiveAddress(
	ctx context.Context, walletID string, accountIndex uint32,
) (string, error) {
	w, account, err := s.account(ctx, walletID, accountIndex)
	if err != nil {
		return "", err
	}
	return s.receiveAddress(ctx, w, account)
}

func (s *Service) isAddressUsed(
	ctx context.Context, info domain.ChainInfo, provider ports.ChainProvider,
	address string,
) (bool, error) {
	return s.breaker(info).isAddressUsed(ctx, provider, address)
}

// breaker returns the circuit breaker of the provider of info.
func (s *Service) breaker(info domain.ChainInfo) *providerBreaker {
	s.breakersLock.Lock()
	defer s.breakersLock.Unlock()

	b, ok := s.breakers[info.Key()]
	if !ok {
		b = newProviderBreaker(info)
		s.breakers[info.Key()] = b
	}
	return b
}

func (s *Service) newAccount(
	cw ports.ChainWallet, seed []byte, info domain.ChainInfo,
	index uint32, name string,
) (*domain.Account, error) {
	if name == "" {
		name = fmt.Sprintf("Account %d", index+1)
	}
	account, err := domain.NewAccount(index, name, s.clock.Now())
	if err != nil {
		return nil, err
	}
	derived, err := cw.DeriveChainData(seed, info, index, 0, false)
	if err != nil {
		return nil, err
	}
	account.SetChainData(chainData(info, derived))
	return account, nil
}

// deriveChainData sets the chain data of account if the seed is available.
func (s *Service) deriveChainData(
	cw ports.ChainWallet, seed *domain.SecretSeed, info domain.ChainInfo,
	account *domain.Account,
) error {
	if seed.IsWiped() {
		return nil
	}
	return seed.Borrow(func(buf []byte) error {
		derived, err := cw.DeriveChainData(buf, info, account.Index, 0, false)
		if err != nil {
			return err
		}
		account.SetChainData(chainData(info, derived))
		return nil
	})
}

// account returns the unlocked wallet and one of its accounts.
func (s *Service) account(
	ctx context.Context, walletID string, index uint32,
) (*domain.Wallet, *domain.Account, error) {
	w, _, err := s.unlockedWallet(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	account, err := w.GetAccount(index)
	if err != nil {
		return nil, nil, err
	}
	return w, account, nil
}

// receiveAddress returns the stored address of account for the wallet's
// active chain, deriving and storing it if missing.
func (s *Service) receiveAddress(
	ctx context.Context, w *domain.Wallet, account *domain.Account,
) (string, error) {
	info := w.ChainInfo()
	if data, ok := account.GetChainData(info); ok {
		return data.ReceiveAddress, nil
	}

	cw, err := s.chainWallet(info.Chain)
	if err != nil {
		return "", err
	}
	var derived *domain.DerivedAddress
	if err := w.UseSeed(func(seed []byte) error {
		derived, err = cw.DeriveChainData(seed, info, account.Index, 0, false)
		return err
	}); err != nil {
		return "", err
	}

	data := chainData(info, derived)
	if err := s.repo.Update(ctx, w.ID, func(stored *domain.Wallet) (*domain.Wallet, error) {
		a, err := stored.GetAccount(account.Index)
		if err != nil {
			return nil, err
		}
		a.SetChainData(data)
		return stored, nil
	}); err != nil {
		return "", err
	}
	return data.ReceiveAddress, nil
}

func chainData(
	info domain.ChainInfo, derived *domain.DerivedAddress,
) domain.ChainAddressData {
	return domain.ChainAddressData{
		Chain:          info.Chain,
		Network:        info.Network,
		ReceiveAddress: derived.Address,
		StakingAddress: derived.StakingAddress,
	}
}
