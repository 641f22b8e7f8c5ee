package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/fanout"
	"github.com/tdex-network/custody/pkg/stats"
)

type utxo struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  uint64   `json:"value"`
	Status txStatus `json:"status"`
}

type txStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height,omitempty"`
}

type addressStats struct {
	TxCount int `json:"tx_count"`
}

type addressInfo struct {
	Address      string       `json:"address"`
	ChainStats   addressStats `json:"chain_stats"`
	MempoolStats addressStats `json:"mempool_stats"`
}

func (e *esplora) GetUtxos(
	ctx context.Context, address string,
) (utxos []domain.Utxo, err error) {
	defer func(start time.Time) {
		stats.RecordProviderRequest(providerName, "GetUtxos", start, err)
	}(time.Now())

	resp, err := e.get(ctx, fmt.Sprintf("/address/%s/utxo", address))
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %w", err)
	}

	var outs []utxo
	if err := json.Unmarshal([]byte(resp), &outs); err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %w", err)
	}

	utxos = make([]domain.Utxo, 0, len(outs))
	for _, out := range outs {
		utxos = append(utxos, domain.Utxo{
			TxHash:      out.TxID,
			OutputIndex: out.Vout,
			Value:       out.Value,
			Address:     address,
		})
	}
	domain.SortUtxos(utxos)
	return utxos, nil
}

func (e *esplora) GetUtxosForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.Utxo, error) {
	return fanout.Utxos(ctx, addresses, fanout.DefaultLimit, e.GetUtxos)
}

func (e *esplora) GetBalance(ctx context.Context, address string) (uint64, error) {
	utxos, err := e.GetUtxos(ctx, address)
	if err != nil {
		return 0, err
	}
	return domain.TotalValue(utxos), nil
}

// GetAssets always returns an empty list, bitcoin has no native assets.
func (e *esplora) GetAssets(
	ctx context.Context, address string,
) ([]domain.Asset, error) {
	if _, err := e.GetUtxos(ctx, address); err != nil {
		return nil, err
	}
	return []domain.Asset{}, nil
}

// IsAddressUsed reports whether the address appears in any transaction,
// confirmed or not.
func (e *esplora) IsAddressUsed(
	ctx context.Context, address string,
) (used bool, err error) {
	defer func(start time.Time) {
		stats.RecordProviderRequest(providerName, "IsAddressUsed", start, err)
	}(time.Now())

	resp, err := e.get(ctx, fmt.Sprintf("/address/%s", address))
	if err != nil {
		return false, err
	}
	var info addressInfo
	if err := json.Unmarshal([]byte(resp), &info); err != nil {
		return false, err
	}
	return info.ChainStats.TxCount+info.MempoolStats.TxCount > 0, nil
}
