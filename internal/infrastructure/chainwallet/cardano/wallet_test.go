package cardanowallet_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/domain"
	cardanowallet "github.com/tdex-network/custody/internal/infrastructure/chainwallet/cardano"
	"github.com/tdex-network/custody/pkg/cardano"
)

var (
	ctx        = context.Background()
	testSeed   = []byte("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	testnet    = domain.ChainInfo{Chain: domain.ChainCardano, Network: domain.NetworkTestnet}
	mainnet    = domain.ChainInfo{Chain: domain.ChainCardano, Network: domain.NetworkMainnet}
	testPolicy = "1e349c9bdea19fd6c147626a5260bc44b71635f398b67c59881df209"
	testParams = &domain.ProtocolParams{
		MinFeeA:          44,
		MinFeeB:          155381,
		CoinsPerUtxoByte: 4310,
		MaxTxSize:        16384,
	}
)

func TestDeriveChainData(t *testing.T) {
	w := cardanowallet.NewChainWallet()
	require.Equal(t, domain.ChainCardano, w.Chain())

	first, err := w.DeriveChainData(testSeed, mainnet, 0, 0, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(first.Address, "addr1"))
	require.True(t, strings.HasPrefix(first.StakingAddress, "stake1"))
	require.Equal(t, "m/1852'/1815'/0'/0/0", first.DerivationPath)
	require.Len(t, first.PublicKey, ed25519.PublicKeySize)

	again, err := w.DeriveChainData(testSeed, mainnet, 0, 0, false)
	require.NoError(t, err)
	require.Equal(t, first, again)

	onTestnet, err := w.DeriveChainData(testSeed, testnet, 0, 0, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(onTestnet.Address, "addr_test1"))
	require.True(t, strings.HasPrefix(onTestnet.StakingAddress, "stake_test1"))

	seen := map[string]bool{first.Address: true}
	for _, tt := range []struct {
		account, index uint32
		isChange       bool
		path           string
	}{
		{0, 1, false, "m/1852'/1815'/0'/0/1"},
		{0, 0, true, "m/1852'/1815'/0'/1/0"},
		{1, 0, false, "m/1852'/1815'/1'/0/0"},
		{7, 3, true, "m/1852'/1815'/7'/1/3"},
	} {
		derived, err := w.DeriveChainData(testSeed, mainnet, tt.account, tt.index, tt.isChange)
		require.NoError(t, err)
		require.Equal(t, tt.path, derived.DerivationPath)
		require.False(t, seen[derived.Address])
		seen[derived.Address] = true
	}

	// Same account shares the staking address.
	change, err := w.DeriveChainData(testSeed, mainnet, 0, 5, true)
	require.NoError(t, err)
	require.Equal(t, first.StakingAddress, change.StakingAddress)
}

func TestFailingDeriveChainData(t *testing.T) {
	w := cardanowallet.NewChainWallet()

	tests := []struct {
		name          string
		seed          []byte
		info          domain.ChainInfo
		account       uint32
		expectedError error
	}{
		{
			name:          "invalid mnemonic",
			seed:          []byte("abandon abandon abandon"),
			info:          mainnet,
			expectedError: cardano.ErrInvalidMnemonic,
		},
		{
			name:          "wrong chain",
			seed:          testSeed,
			info:          domain.ChainInfo{Chain: domain.ChainBitcoin, Network: domain.NetworkMainnet},
			expectedError: domain.ErrUnknownChain,
		},
		{
			name:          "unknown network",
			seed:          testSeed,
			info:          domain.ChainInfo{Chain: domain.ChainCardano, Network: "preview"},
			expectedError: domain.ErrUnknownNetwork,
		},
		{
			name:          "account out of range",
			seed:          testSeed,
			info:          mainnet,
			account:       domain.MaxAccountIndex + 1,
			expectedError: domain.ErrInvalidAccountIndex,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.DeriveChainData(tt.seed, tt.info, tt.account, 0, false)
			require.ErrorIs(t, err, tt.expectedError)
		})
	}
}

func TestBuildAndSign(t *testing.T) {
	w := cardanowallet.NewChainWallet()
	from, err := w.DeriveChainData(testSeed, testnet, 0, 0, false)
	require.NoError(t, err)
	to, err := w.DeriveChainData(testSeed, testnet, 1, 0, false)
	require.NoError(t, err)

	utxos := []domain.Utxo{
		{
			TxHash:      strings.Repeat("aa", 32),
			OutputIndex: 0,
			Value:       5000000,
			Address:     from.Address,
		},
		{
			TxHash:      strings.Repeat("bb", 32),
			OutputIndex: 1,
			Value:       3000000,
			Address:     from.Address,
			Assets:      []domain.Asset{{PolicyID: testPolicy, Name: "74455448", Quantity: 100}},
		},
	}
	provider := &mockProvider{}
	provider.On("GetUtxos", mock.Anything, from.Address).Return(utxos, nil)
	provider.On("GetProtocolParams", mock.Anything).Return(testParams, nil)

	req := domain.TxRequest{
		Outputs: []domain.TxOutput{{
			Address: to.Address,
			Amount:  2000000,
			Assets:  []domain.Asset{{PolicyID: testPolicy, Name: "74455448", Quantity: 40}},
		}},
		Metadata: map[uint64]interface{}{674: "payment"},
	}

	unsigned, err := w.BuildTransaction(ctx, testnet, from.Address, req, provider)
	require.NoError(t, err)
	require.Equal(t, domain.ChainCardano, unsigned.Chain)
	require.NotEmpty(t, unsigned.Inputs)
	require.Equal(t, unsigned.Fee, unsigned.Summary.Fee)
	require.Equal(t, uint64(2000000), unsigned.Summary.TotalOutput)
	require.Equal(
		t, unsigned.Summary.TotalInput,
		unsigned.Summary.TotalOutput+unsigned.Summary.Change+unsigned.Fee,
	)
	require.Equal(t, []domain.Asset{
		{PolicyID: testPolicy, Name: "74455448", Quantity: 40},
	}, unsigned.Summary.Assets)
	provider.AssertExpectations(t)

	signed, err := w.Sign(unsigned, testSeed, testnet, 0, 0)
	require.NoError(t, err)

	tx, err := cardano.DecodeTx(signed)
	require.NoError(t, err)
	require.Len(t, tx.Witnesses.VKeyWitnesses, 1)
	witness := tx.Witnesses.VKeyWitnesses[0]
	require.Equal(t, from.PublicKey, witness.VKey)
	require.True(t, ed25519.Verify(witness.VKey, tx.ID(), witness.Signature))
	require.NotEqual(t, []byte{0xf6}, []byte(tx.AuxData))

	// The toolkit layout decodes and encodes back unchanged.
	require.Equal(t, unsigned.Body, reencoded(t, unsigned.Body))

	// Signing with a key that doesn't own the inputs is rejected.
	_, err = w.Sign(unsigned, testSeed, testnet, 0, 1)
	require.ErrorIs(t, err, cardanowallet.ErrForeignInput)
}

func reencoded(t *testing.T, raw []byte) []byte {
	tx, err := cardano.DecodeTx(raw)
	require.NoError(t, err)
	buf, err := tx.Bytes()
	require.NoError(t, err)
	return buf
}

func TestBuildTransactionSelection(t *testing.T) {
	w := cardanowallet.NewChainWallet()
	from, err := w.DeriveChainData(testSeed, testnet, 0, 0, false)
	require.NoError(t, err)
	to, err := w.DeriveChainData(testSeed, testnet, 1, 0, false)
	require.NoError(t, err)

	tokens := func(qty uint64) []domain.Asset {
		return []domain.Asset{{PolicyID: testPolicy, Name: "74455448", Quantity: qty}}
	}

	tests := []struct {
		name           string
		utxos          []domain.Utxo
		output         domain.TxOutput
		expectedInputs []string
	}{
		{
			name: "largest utxo first",
			utxos: []domain.Utxo{
				{TxHash: strings.Repeat("aa", 32), Value: 1000000},
				{TxHash: strings.Repeat("bb", 32), Value: 9000000},
			},
			output:         domain.TxOutput{Address: to.Address, Amount: 2000000},
			expectedInputs: []string{strings.Repeat("bb", 32)},
		},
		{
			name: "token utxo short of coin",
			utxos: []domain.Utxo{
				{TxHash: strings.Repeat("aa", 32), Value: 4000000},
				{TxHash: strings.Repeat("bb", 32), Value: 1500000, Assets: tokens(100)},
			},
			output: domain.TxOutput{
				Address: to.Address, Amount: 2000000, Assets: tokens(40),
			},
			expectedInputs: []string{
				strings.Repeat("bb", 32), strings.Repeat("aa", 32),
			},
		},
		{
			name: "token change needs another input",
			utxos: []domain.Utxo{
				{TxHash: strings.Repeat("aa", 32), Value: 3000000},
				{TxHash: strings.Repeat("bb", 32), Value: 2100000, Assets: tokens(100)},
			},
			output: domain.TxOutput{
				Address: to.Address, Amount: 2000000, Assets: tokens(40),
			},
			expectedInputs: []string{
				strings.Repeat("bb", 32), strings.Repeat("aa", 32),
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			provider.On("GetUtxos", mock.Anything, from.Address).Return(tt.utxos, nil)
			provider.On("GetProtocolParams", mock.Anything).Return(testParams, nil)

			req := domain.TxRequest{Outputs: []domain.TxOutput{tt.output}}
			unsigned, err := w.BuildTransaction(ctx, testnet, from.Address, req, provider)
			require.NoError(t, err)

			inputs := make([]string, 0, len(unsigned.Inputs))
			for _, in := range unsigned.Inputs {
				inputs = append(inputs, in.TxHash)
				require.Equal(t, from.Address, in.Address)
			}
			require.Equal(t, tt.expectedInputs, inputs)
			require.Equal(
				t, unsigned.Summary.TotalInput,
				unsigned.Summary.TotalOutput+unsigned.Summary.Change+unsigned.Fee,
			)
			require.Greater(t, unsigned.Fee, testParams.MinFeeB)

			_, err = w.Sign(unsigned, testSeed, testnet, 0, 0)
			require.NoError(t, err)
		})
	}
}

func TestFailingBuildTransaction(t *testing.T) {
	w := cardanowallet.NewChainWallet()
	from, err := w.DeriveChainData(testSeed, testnet, 0, 0, false)
	require.NoError(t, err)
	onMainnet, err := w.DeriveChainData(testSeed, mainnet, 0, 1, false)
	require.NoError(t, err)

	utxos := []domain.Utxo{{
		TxHash: strings.Repeat("aa", 32), Value: 1500000, Address: from.Address,
	}}
	transportErr := errors.New("connection refused")

	tests := []struct {
		name          string
		req           domain.TxRequest
		setup         func(p *mockProvider)
		expectedError error
	}{
		{
			name:          "missing outputs",
			req:           domain.TxRequest{},
			setup:         func(p *mockProvider) {},
			expectedError: domain.ErrNullOutputs,
		},
		{
			name: "address of another network",
			req: domain.TxRequest{Outputs: []domain.TxOutput{
				{Address: onMainnet.Address, Amount: 2000000},
			}},
			setup:         func(p *mockProvider) {},
			expectedError: cardano.ErrInvalidAddress,
		},
		{
			name: "insufficient funds",
			req: domain.TxRequest{Outputs: []domain.TxOutput{
				{Address: from.Address, Amount: 2000000},
			}},
			setup: func(p *mockProvider) {
				p.On("GetUtxos", mock.Anything, from.Address).Return(utxos, nil)
				p.On("GetProtocolParams", mock.Anything).Return(testParams, nil)
			},
			expectedError: domain.ErrInsufficientFunds,
		},
		{
			name: "fee not covered",
			req: domain.TxRequest{Outputs: []domain.TxOutput{
				{Address: from.Address, Amount: 1499900},
			}},
			setup: func(p *mockProvider) {
				p.On("GetUtxos", mock.Anything, from.Address).Return(utxos, nil)
				p.On("GetProtocolParams", mock.Anything).Return(testParams, nil)
			},
			expectedError: domain.ErrInsufficientFunds,
		},
		{
			name: "tx too large",
			req: domain.TxRequest{Outputs: []domain.TxOutput{
				{Address: from.Address, Amount: 1000000},
			}},
			setup: func(p *mockProvider) {
				params := *testParams
				params.MaxTxSize = 100
				p.On("GetUtxos", mock.Anything, from.Address).Return(utxos, nil)
				p.On("GetProtocolParams", mock.Anything).Return(&params, nil)
			},
			expectedError: cardanowallet.ErrTxTooLarge,
		},
		{
			name: "provider error",
			req: domain.TxRequest{Outputs: []domain.TxOutput{
				{Address: from.Address, Amount: 2000000},
			}},
			setup: func(p *mockProvider) {
				p.On("GetUtxos", mock.Anything, from.Address).Return(nil, transportErr)
			},
			expectedError: transportErr,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			tt.setup(provider)

			unsigned, err := w.BuildTransaction(ctx, testnet, from.Address, tt.req, provider)
			require.ErrorIs(t, err, tt.expectedError)
			require.Nil(t, unsigned)
		})
	}
}
