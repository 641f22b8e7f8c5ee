package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/domain"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
		errMsg string
	}{
		{
			name: "defaults",
		},
		{
			name:   "empty datadir",
			values: map[string]interface{}{DatadirKey: ""},
			errMsg: "datadir must not be null",
		},
		{
			name:   "log level out of range",
			values: map[string]interface{}{LogLevelKey: 9},
			errMsg: "log level must be in range",
		},
		{
			name:   "unknown chain",
			values: map[string]interface{}{ChainKey: "solana"},
			errMsg: domain.ErrUnknownChain.Error(),
		},
		{
			name:   "unknown network",
			values: map[string]interface{}{NetworkKey: "regtest"},
			errMsg: domain.ErrUnknownNetwork.Error(),
		},
		{
			name:   "provider endpoint with scheme",
			values: map[string]interface{}{ProviderEndpointKey: "https://localhost:50051"},
			errMsg: "provider endpoint must be in the form host:port",
		},
		{
			name:   "esplora url without scheme",
			values: map[string]interface{}{EsploraURLKey: "localhost:3000"},
			errMsg: "esplora url",
		},
		{
			name:   "negative esplora rate",
			values: map[string]interface{}{EsploraRequestsPerSecondKey: -1},
			errMsg: "esplora requests per second must not be negative",
		},
		{
			name:   "zero gap limit",
			values: map[string]interface{}{GapLimitKey: 0},
			errMsg: "gap limit must be in range",
		},
		{
			name:   "gap limit too high",
			values: map[string]interface{}{GapLimitKey: MaxGapLimit + 1},
			errMsg: "gap limit must be in range",
		},
		{
			name:   "unknown kv backend",
			values: map[string]interface{}{KVBackendKey: "postgres"},
			errMsg: "kv backend must be either",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			t.Cleanup(Reset)
			for k, v := range tt.values {
				Set(k, v)
			}

			err := Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("CUSTODY_CHAIN", "Bitcoin")
	t.Setenv("CUSTODY_NETWORK", "testnet")
	Reset()
	t.Cleanup(Reset)

	require.Equal(t, domain.ChainInfo{
		Chain:   domain.ChainBitcoin,
		Network: domain.NetworkTestnet,
	}, GetChainInfo())
}

func TestGetProviderFactoryOpts(t *testing.T) {
	cardanoTestnet := domain.ChainInfo{Chain: domain.ChainCardano, Network: domain.NetworkTestnet}
	cardanoMainnet := domain.ChainInfo{Chain: domain.ChainCardano, Network: domain.NetworkMainnet}
	bitcoinTestnet := domain.ChainInfo{Chain: domain.ChainBitcoin, Network: domain.NetworkTestnet}

	t.Run("defaults", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)

		opts := GetProviderFactoryOpts()
		require.Len(t, opts.Defaults, 4)
		require.Equal(t, "preprod.utxorpc-v0.demeter.run:443", opts.Defaults[cardanoTestnet.Key()].URL)
		require.Equal(t, 10, opts.EsploraRequestsPerSecond)
		require.Equal(t, "30s", opts.EsploraPollInterval.String())
	})

	t.Run("overrides", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)
		Set(NetworkKey, "testnet")
		Set(ProviderEndpointKey, "localhost:50051")
		Set(ProviderAPIKeyKey, "key")
		Set(ProviderInsecureKey, true)
		Set(EsploraURLKey, "http://localhost:3000")

		opts := GetProviderFactoryOpts()
		require.Equal(t, "localhost:50051", opts.Defaults[cardanoTestnet.Key()].URL)
		require.Equal(t, "key", opts.Defaults[cardanoTestnet.Key()].APIKey)
		require.True(t, opts.Defaults[cardanoTestnet.Key()].Insecure)
		require.Equal(t, "http://localhost:3000", opts.Defaults[bitcoinTestnet.Key()].URL)
		require.Equal(t, "mainnet.utxorpc-v0.demeter.run:443", opts.Defaults[cardanoMainnet.Key()].URL)
	})

	t.Run("api key only", func(t *testing.T) {
		Reset()
		t.Cleanup(Reset)
		Set(ProviderAPIKeyKey, "key")

		opts := GetProviderFactoryOpts()
		require.Equal(t, "mainnet.utxorpc-v0.demeter.run:443", opts.Defaults[cardanoMainnet.Key()].URL)
		require.Equal(t, "key", opts.Defaults[cardanoMainnet.Key()].APIKey)
	})
}

func TestInitDatadir(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	datadir := t.TempDir()
	Set(DatadirKey, datadir)
	Set(MetricsEnabledKey, true)

	require.NoError(t, InitDatadir())
	for _, dir := range []string{DbLocation, SecureLocation, MetricsLocation} {
		info, err := os.Stat(filepath.Join(datadir, dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
