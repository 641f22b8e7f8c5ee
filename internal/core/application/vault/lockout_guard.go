package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/pkg/stats"
)

// LockoutGuard persists the lockout state of every wallet under
// lockout_{walletID}. A record that is missing, malformed or whose tag
// doesn't match is replaced with a heavily locked one.
type LockoutGuard struct {
	store     ports.KVStore
	integrity *localKey
	clock     clock.Clock

	lock sync.Mutex
}

// NewLockoutGuard ...
func NewLockoutGuard(store ports.KVStore, clk clock.Clock) *LockoutGuard {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &LockoutGuard{
		store:     store,
		integrity: newLocalKey(store, integrityKeyKey),
		clock:     clk,
	}
}

// Init writes a clean record for a new wallet.
func (g *LockoutGuard) Init(ctx context.Context, walletID string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.save(ctx, walletID, domain.NewLockoutState())
}

// State returns the trusted state of the wallet.
func (g *LockoutGuard) State(
	ctx context.Context, walletID string,
) (*domain.LockoutState, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.load(ctx, walletID)
}

// Check returns a *domain.LockoutError if the wallet is locked out.
func (g *LockoutGuard) Check(ctx context.Context, walletID string) error {
	state, err := g.State(ctx, walletID)
	if err != nil {
		return err
	}
	return state.Err(g.clock.Now())
}

// RegisterFailure counts a failed attempt and returns the updated state.
func (g *LockoutGuard) RegisterFailure(
	ctx context.Context, walletID string,
) (*domain.LockoutState, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	state, err := g.load(ctx, walletID)
	if err != nil {
		return nil, err
	}
	now := g.clock.Now()
	state.RegisterFailure(now)
	if state.IsLocked(now) {
		stats.RecordLockout()
		log.WithField("wallet", walletID).Warnf(
			"%d failed attempts, locked out until %s",
			state.FailedAttempts, state.LockoutEndUtc.Format(time.RFC3339),
		)
	}
	if err := g.save(ctx, walletID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Reset clears the failed attempts after a successful authentication.
func (g *LockoutGuard) Reset(ctx context.Context, walletID string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	state := domain.NewLockoutState()
	state.Reset(g.clock.Now())
	return g.save(ctx, walletID, state)
}

// Remove deletes the record of a wallet.
func (g *LockoutGuard) Remove(ctx context.Context, walletID string) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.store.Remove(ctx, lockoutKey(walletID))
}

func (g *LockoutGuard) load(
	ctx context.Context, walletID string,
) (*domain.LockoutState, error) {
	raw, ok, err := g.store.Get(ctx, lockoutKey(walletID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return g.failClosed(ctx, walletID, "missing record")
	}

	state := &domain.LockoutState{}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return g.failClosed(ctx, walletID, "malformed record")
	}
	key, err := g.integrity.key(ctx, false)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return g.failClosed(ctx, walletID, "missing integrity key")
	}
	if !verifyTag(key, state.IntegrityTag, lockoutFields(walletID, state)...) {
		return g.failClosed(ctx, walletID, "integrity tag mismatch")
	}
	return state, nil
}

// failClosed replaces an untrusted record with a locked one, sealed with a
// valid tag so that the window starts now and eventually expires.
func (g *LockoutGuard) failClosed(
	ctx context.Context, walletID, reason string,
) (*domain.LockoutState, error) {
	log.WithField("wallet", walletID).Warnf(
		"untrusted lockout state (%s), locking out", reason,
	)
	stats.RecordLockout()

	state := domain.TamperedLockoutState(g.clock.Now())
	if err := g.save(ctx, walletID, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (g *LockoutGuard) save(
	ctx context.Context, walletID string, state *domain.LockoutState,
) error {
	key, err := g.integrity.key(ctx, true)
	if err != nil {
		return err
	}
	state.IntegrityTag = tag(key, lockoutFields(walletID, state)...)

	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, lockoutKey(walletID), string(buf)); err != nil {
		return fmt.Errorf("failed to store lockout state: %w", err)
	}
	return nil
}

func lockoutFields(walletID string, state *domain.LockoutState) []string {
	end := ""
	if state.LockoutEndUtc != nil {
		end = state.LockoutEndUtc.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		"lockout",
		walletID,
		strconv.Itoa(state.FailedAttempts),
		end,
		state.UpdatedAtUtc.UTC().Format(time.RFC3339Nano),
	}
}
