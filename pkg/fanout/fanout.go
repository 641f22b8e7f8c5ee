// Package fanout resolves the unspents of many addresses concurrently.
package fanout

import (
	"context"

	"github.com/tdex-network/custody/internal/core/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the max number of lookups in flight.
const DefaultLimit = 5

// FetchFunc returns the unspents of a single address.
type FetchFunc func(ctx context.Context, address string) ([]domain.Utxo, error)

// Utxos calls fetch for every address with at most limit calls in flight and
// merges the results in the order of addresses. The first error cancels the
// pending lookups and is returned alone. A single address is resolved
// in-line.
func Utxos(
	ctx context.Context, addresses []string, limit int, fetch FetchFunc,
) ([]domain.Utxo, error) {
	if len(addresses) == 1 {
		return fetch(ctx, addresses[0])
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([][]domain.Utxo, len(addresses))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, addr := range addresses {
		i, addr := i, addr
		eg.Go(func() error {
			utxos, err := fetch(egCtx, addr)
			if err != nil {
				return err
			}
			results[i] = utxos
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	utxos := make([]domain.Utxo, 0)
	for _, r := range results {
		utxos = append(utxos, r...)
	}
	return utxos, nil
}
