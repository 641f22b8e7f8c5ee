package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile ...
type Profile struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Wallet is the aggregate binding a seed to its accounts. While unlocked it
// exclusively owns the decrypted seed, which is never serialized.
type Wallet struct {
	ID                 string     `json:"id"`
	Profile            Profile    `json:"profile"`
	Network            Network    `json:"network"`
	ActiveChain        Chain      `json:"activeChain"`
	ActiveAccountIndex uint32     `json:"activeAccountIndex"`
	Accounts           []*Account `json:"accounts"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastAccessedAt     time.Time  `json:"lastAccessedAt"`

	seed *SecretSeed
}

// NewWallet returns a locked wallet with no accounts and a fresh id.
func NewWallet(name string, info ChainInfo, now time.Time) (*Wallet, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNullWalletName
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &Wallet{
		ID:             uuid.New().String(),
		Profile:        Profile{Name: name},
		Network:        info.Network,
		ActiveChain:    info.Chain,
		Accounts:       make([]*Account, 0),
		CreatedAt:      now.UTC(),
		LastAccessedAt: now.UTC(),
	}, nil
}

// ChainInfo returns the active chain and network.
func (w *Wallet) ChainInfo() ChainInfo {
	return ChainInfo{Chain: w.ActiveChain, Network: w.Network}
}

// SetActiveChain ...
func (w *Wallet) SetActiveChain(info ChainInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	w.ActiveChain = info.Chain
	w.Network = info.Network
	return nil
}

// Unlock takes ownership of seed. A previously held seed is wiped.
func (w *Wallet) Unlock(seed *SecretSeed) {
	if w.seed != nil && w.seed != seed {
		w.seed.Wipe()
	}
	w.seed = seed
}

// Lock wipes and drops the seed.
func (w *Wallet) Lock() {
	w.seed.Wipe()
	w.seed = nil
}

// IsUnlocked ...
func (w *Wallet) IsUnlocked() bool {
	return !w.seed.IsWiped()
}

// UseSeed lends the seed to fn, failing with ErrWalletLocked if the wallet
// is locked.
func (w *Wallet) UseSeed(fn func(seed []byte) error) error {
	if !w.IsUnlocked() {
		return ErrWalletLocked
	}
	return w.seed.Borrow(fn)
}

// Touch updates the last access time.
func (w *Wallet) Touch(now time.Time) {
	w.LastAccessedAt = now.UTC()
}

// NextAccountIndex returns the index following the highest existing one.
func (w *Wallet) NextAccountIndex() uint32 {
	if len(w.Accounts) <= 0 {
		return 0
	}
	var max uint32
	for _, a := range w.Accounts {
		if a.Index > max {
			max = a.Index
		}
	}
	return max + 1
}

// HasAccount ...
func (w *Wallet) HasAccount(index uint32) bool {
	_, err := w.GetAccount(index)
	return err == nil
}

// GetAccount ...
func (w *Wallet) GetAccount(index uint32) (*Account, error) {
	for _, a := range w.Accounts {
		if a.Index == index {
			return a, nil
		}
	}
	return nil, ErrAccountNotFound
}

// AddAccount appends account, rejecting duplicated indexes. Accounts are
// kept sorted by index.
func (w *Wallet) AddAccount(account *Account) error {
	if w.HasAccount(account.Index) {
		return ErrAccountAlreadyExists
	}
	w.Accounts = append(w.Accounts, account)
	sort.SliceStable(w.Accounts, func(i, j int) bool {
		return w.Accounts[i].Index < w.Accounts[j].Index
	})
	return nil
}

// ActiveAccount ...
func (w *Wallet) ActiveAccount() (*Account, error) {
	return w.GetAccount(w.ActiveAccountIndex)
}

// SetActiveAccount ...
func (w *Wallet) SetActiveAccount(index uint32) error {
	if !w.HasAccount(index) {
		return ErrAccountNotFound
	}
	w.ActiveAccountIndex = index
	return nil
}
