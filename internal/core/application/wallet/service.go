package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tyler-smith/go-bip39"
)

const (
	// DefaultGapLimit is the number of consecutive unused accounts after
	// which discovery stops.
	DefaultGapLimit = 5
	// MaxDiscoveryIndex bounds the account indexes scanned by discovery.
	MaxDiscoveryIndex = 100

	mnemonicEntropySize = 256
)

var (
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrNoActiveWallet ...
	ErrNoActiveWallet = errors.New("no active wallet")
)

// ServiceOpts ...
type ServiceOpts struct {
	Repository   ports.WalletRepository
	Vault        ports.VaultStore
	ChainWallets []ports.ChainWallet
	Providers    ports.ChainProviderFactory
	Clock        clock.Clock
}

func (o ServiceOpts) validate() error {
	if o.Repository == nil {
		return fmt.Errorf("missing wallet repository")
	}
	if o.Vault == nil {
		return fmt.Errorf("missing vault store")
	}
	if len(o.ChainWallets) <= 0 {
		return fmt.Errorf("missing chain wallets")
	}
	if o.Providers == nil {
		return fmt.Errorf("missing chain provider factory")
	}
	return nil
}

// Service manages the wallets and their accounts. The seeds of unlocked
// wallets are held in memory only, until Lock is called.
type Service struct {
	repo         ports.WalletRepository
	vault        ports.VaultStore
	chainWallets map[domain.Chain]ports.ChainWallet
	providers    ports.ChainProviderFactory
	clock        clock.Clock

	breakers     map[string]*providerBreaker
	breakersLock sync.Mutex

	seeds map[string]*domain.SecretSeed
	lock  sync.RWMutex
}

// NewService ...
func NewService(opts ServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	chainWallets := make(map[domain.Chain]ports.ChainWallet)
	for _, cw := range opts.ChainWallets {
		chainWallets[cw.Chain()] = cw
	}

	return &Service{
		repo:         opts.Repository,
		vault:        opts.Vault,
		chainWallets: chainWallets,
		providers:    opts.Providers,
		clock:        clk,
		breakers:     make(map[string]*providerBreaker),
		seeds:        make(map[string]*domain.SecretSeed),
	}, nil
}

// NewMnemonic returns a fresh 24 words mnemonic.
func (s *Service) NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropySize)
	if err != nil {
		return "", err
	}
	defer clear(entropy)
	return bip39.NewMnemonic(entropy)
}

// CreateWalletRequest ...
type CreateWalletRequest struct {
	Name string
	// Mnemonic is generated if empty.
	Mnemonic string
	Password []byte
	Info     domain.ChainInfo
}

// CreateWallet stores the encrypted mnemonic and the wallet with its first
// account. The new wallet is left unlocked and becomes the active one if
// it's the first. The mnemonic is returned so that it can be backed up.
func (s *Service) CreateWallet(
	ctx context.Context, req CreateWalletRequest,
) (*domain.Wallet, string, error) {
	if len(req.Password) <= 0 {
		return nil, "", domain.ErrNullPassword
	}
	cw, err := s.chainWallet(req.Info.Chain)
	if err != nil {
		return nil, "", err
	}

	mnemonic := strings.Join(strings.Fields(req.Mnemonic), " ")
	if mnemonic == "" {
		if mnemonic, err = s.NewMnemonic(); err != nil {
			return nil, "", err
		}
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, "", ErrInvalidMnemonic
	}

	w, err := domain.NewWallet(req.Name, req.Info, s.clock.Now())
	if err != nil {
		return nil, "", err
	}
	seed := []byte(mnemonic)

	account, err := s.newAccount(cw, seed, req.Info, 0, "")
	if err != nil {
		clear(seed)
		return nil, "", err
	}
	if err := w.AddAccount(account); err != nil {
		clear(seed)
		return nil, "", err
	}

	if err := s.vault.CreateVault(ctx, w.ID, seed, req.Password); err != nil {
		clear(seed)
		return nil, "", err
	}
	if err := s.repo.Save(ctx, w); err != nil {
		clear(seed)
		if derr := s.vault.DeleteVault(ctx, w.ID); derr != nil {
			log.WithError(derr).Warn("failed to remove vault of unsaved wallet")
		}
		return nil, "", err
	}

	activeID, err := s.repo.GetActiveWalletID(ctx)
	if err != nil {
		clear(seed)
		return nil, "", err
	}
	if activeID == "" {
		if err := s.repo.SetActiveWalletID(ctx, w.ID); err != nil {
			clear(seed)
			return nil, "", err
		}
	}

	s.setSeed(w.ID, domain.NewSecretSeed(seed))
	w.Unlock(s.getSeed(w.ID))

	log.WithField("wallet", w.ID).Infof("created wallet on %s", req.Info)
	return w, mnemonic, nil
}

// Unlock decrypts the seed of the wallet with the given factor.
func (s *Service) Unlock(
	ctx context.Context, walletID string, secret []byte, authType domain.AuthType,
) error {
	if _, err := s.repo.Get(ctx, walletID); err != nil {
		return err
	}
	seed, err := s.vault.UnlockVault(ctx, walletID, secret, authType)
	if err != nil {
		return err
	}
	s.setSeed(walletID, seed)

	now := s.clock.Now()
	return s.repo.Update(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		w.Touch(now)
		return w, nil
	})
}

// Lock wipes the seed of the wallet.
func (s *Service) Lock(walletID string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if seed, ok := s.seeds[walletID]; ok {
		seed.Wipe()
		delete(s.seeds, walletID)
	}
}

// LockAll wipes the seed of every unlocked wallet.
func (s *Service) LockAll() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for id, seed := range s.seeds {
		seed.Wipe()
		delete(s.seeds, id)
	}
}

// IsUnlocked ...
func (s *Service) IsUnlocked(walletID string) bool {
	return !s.getSeed(walletID).IsWiped()
}

// ChangePassword ...
func (s *Service) ChangePassword(
	ctx context.Context, walletID string, oldPassword, newPassword []byte,
) error {
	if _, err := s.repo.Get(ctx, walletID); err != nil {
		return err
	}
	return s.vault.ChangePassword(ctx, walletID, oldPassword, newPassword)
}

// GetWallet returns the wallet, unlocked if its seed is held.
func (s *Service) GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error) {
	w, err := s.repo.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if seed := s.getSeed(walletID); seed != nil {
		w.Unlock(seed)
	}
	return w, nil
}

// ListWallets ...
func (s *Service) ListWallets(ctx context.Context) ([]*domain.Wallet, error) {
	wallets, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, w := range wallets {
		if seed := s.getSeed(w.ID); seed != nil {
			w.Unlock(seed)
		}
	}
	return wallets, nil
}

// GetActiveWallet ...
func (s *Service) GetActiveWallet(ctx context.Context) (*domain.Wallet, error) {
	id, err := s.repo.GetActiveWalletID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrNoActiveWallet
	}
	return s.GetWallet(ctx, id)
}

// SetActiveWallet ...
func (s *Service) SetActiveWallet(ctx context.Context, walletID string) error {
	return s.repo.SetActiveWalletID(ctx, walletID)
}

// DeleteWallet locks the wallet and removes it along with its vault.
func (s *Service) DeleteWallet(ctx context.Context, walletID string) error {
	if _, err := s.repo.Get(ctx, walletID); err != nil {
		return err
	}
	s.Lock(walletID)

	if err := s.vault.DeleteVault(ctx, walletID); err != nil &&
		!errors.Is(err, domain.ErrVaultNotFound) {
		return err
	}
	if err := s.repo.Delete(ctx, walletID); err != nil {
		return err
	}

	log.WithField("wallet", walletID).Info("deleted wallet")
	return nil
}

// SetActiveChain switches the wallet to the given chain and network. The
// addresses of the accounts are derived for the new chain if missing.
func (s *Service) SetActiveChain(
	ctx context.Context, walletID string, info domain.ChainInfo,
) error {
	cw, err := s.chainWallet(info.Chain)
	if err != nil {
		return err
	}
	seed := s.getSeed(walletID)

	return s.repo.Update(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		if err := w.SetActiveChain(info); err != nil {
			return nil, err
		}
		for _, account := range w.Accounts {
			if _, ok := account.GetChainData(info); ok {
				continue
			}
			if err := s.deriveChainData(cw, seed, info, account); err != nil {
				return nil, err
			}
		}
		return w, nil
	})
}

// SetActiveAccount ...
func (s *Service) SetActiveAccount(
	ctx context.Context, walletID string, index uint32,
) error {
	return s.repo.Update(ctx, walletID, func(w *domain.Wallet) (*domain.Wallet, error) {
		if err := w.SetActiveAccount(index); err != nil {
			return nil, err
		}
		return w, nil
	})
}

func (s *Service) chainWallet(chain domain.Chain) (ports.ChainWallet, error) {
	cw, ok := s.chainWallets[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChain, chain)
	}
	return cw, nil
}

func (s *Service) setSeed(walletID string, seed *domain.SecretSeed) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if prev, ok := s.seeds[walletID]; ok && prev != seed {
		prev.Wipe()
	}
	s.seeds[walletID] = seed
}

func (s *Service) getSeed(walletID string) *domain.SecretSeed {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.seeds[walletID]
}

// unlockedWallet returns the wallet with its seed, or ErrWalletLocked.
func (s *Service) unlockedWallet(
	ctx context.Context, walletID string,
) (*domain.Wallet, ports.ChainWallet, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	if !w.IsUnlocked() {
		return nil, nil, domain.ErrWalletLocked
	}
	cw, err := s.chainWallet(w.ActiveChain)
	if err != nil {
		return nil, nil, err
	}
	return w, cw, nil
}
