package main

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/cardano"
)

const btcDecimals = 8

func formatAmount(chain domain.Chain, amount uint64) string {
	if chain == domain.ChainBitcoin {
		btc := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -btcDecimals)
		return btc.StringFixed(btcDecimals) + " BTC"
	}
	return cardano.FormatAda(amount) + " ADA"
}

// parseAmount converts a decimal amount of the chain's coin into its base
// unit.
func parseAmount(chain domain.Chain, amount string) (uint64, error) {
	if chain != domain.ChainBitcoin {
		return cardano.AdaToLovelace(amount)
	}

	btc, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	sats := btc.Shift(btcDecimals)
	if sats.IsNegative() || !sats.Equal(sats.Truncate(0)) || !sats.BigInt().IsUint64() {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	return sats.BigInt().Uint64(), nil
}
