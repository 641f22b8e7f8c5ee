package cardano

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// AdaDecimals is the number of decimal places of one ada in lovelace.
const AdaDecimals = 6

// LovelaceToAda converts an amount of lovelace to ada.
func LovelaceToAda(lovelace uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lovelace), -AdaDecimals)
}

// FormatAda returns the lovelace amount as a fixed point ada string.
func FormatAda(lovelace uint64) string {
	return LovelaceToAda(lovelace).StringFixed(AdaDecimals)
}

// AdaToLovelace parses a decimal ada amount. Amounts with more than 6
// decimal places or negative ones are rejected.
func AdaToLovelace(ada string) (uint64, error) {
	amount, err := decimal.NewFromString(ada)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	lovelace := amount.Shift(AdaDecimals)
	if lovelace.IsNegative() || !lovelace.Equal(lovelace.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	bi := lovelace.BigInt()
	if !bi.IsUint64() {
		return 0, ErrInvalidAmount
	}
	return bi.Uint64(), nil
}
