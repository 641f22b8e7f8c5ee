package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/pkg/circuitbreaker"
)

// providerBreaker stops hammering a failing provider during discovery. It
// remembers the last error of the provider so that a rejected call still
// reports why the breaker is open.
type providerBreaker struct {
	cb *gobreaker.CircuitBreaker

	lastErr error
	lock    sync.Mutex
}

func newProviderBreaker(info domain.ChainInfo) *providerBreaker {
	return &providerBreaker{
		cb: circuitbreaker.NewCircuitBreaker(fmt.Sprintf("discovery-%s", info.Key())),
	}
}

func (b *providerBreaker) isAddressUsed(
	ctx context.Context, provider ports.ChainProvider, address string,
) (bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		used, err := provider.IsAddressUsed(ctx, address)
		if err != nil {
			b.setLastErr(err)
		}
		return used, err
	})
	if err == nil {
		return res.(bool), nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		if lastErr := b.getLastErr(); lastErr != nil {
			return false, fmt.Errorf("%w: %w", err, lastErr)
		}
	}
	return false, err
}

func (b *providerBreaker) setLastErr(err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.lastErr = err
}

func (b *providerBreaker) getLastErr() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastErr
}
