package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/domain"
)

func TestAggregateAssets(t *testing.T) {
	utxos := []domain.Utxo{
		{
			TxHash: "bb", OutputIndex: 0, Value: 2000000,
			Assets: []domain.Asset{
				{PolicyID: "p2", Name: "01", Quantity: 5},
				{PolicyID: "p1", Name: "02", Quantity: 1},
			},
		},
		{
			TxHash: "aa", OutputIndex: 1, Value: 1500000,
			Assets: []domain.Asset{{PolicyID: "p2", Name: "01", Quantity: 7}},
		},
		{TxHash: "aa", OutputIndex: 0, Value: 1000000},
	}

	require.Equal(t, uint64(4500000), domain.TotalValue(utxos))
	require.Equal(t, []domain.Asset{
		{PolicyID: "p1", Name: "02", Quantity: 1},
		{PolicyID: "p2", Name: "01", Quantity: 12},
	}, domain.AggregateAssets(utxos))
	// Inputs are left untouched.
	require.Equal(t, uint64(5), utxos[0].Assets[0].Quantity)

	domain.SortUtxos(utxos)
	require.Equal(t, "aa:0", utxos[0].Key())
	require.Equal(t, "aa:1", utxos[1].Key())
	require.Equal(t, "bb:0", utxos[2].Key())

	require.Empty(t, domain.AggregateAssets(nil))
}

func TestProviderConfig(t *testing.T) {
	cfg := domain.ProviderConfig{
		Chain:    domain.ChainCardano,
		Network:  domain.NetworkMainnet,
		Endpoint: "https://node.example.com:443",
	}
	require.NoError(t, cfg.Validate())

	id := domain.ProviderConfigID(cfg.Info())
	require.Equal(t, id, domain.ProviderConfigID(cfg.Info()))
	require.NotEqual(t, id, domain.ProviderConfigID(domain.ChainInfo{
		Chain: domain.ChainCardano, Network: domain.NetworkTestnet,
	}))

	cfg.Endpoint = " "
	require.ErrorIs(t, cfg.Validate(), domain.ErrNullEndpoint)
}
