package wallet_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) GetUtxos(
	ctx context.Context, address string,
) ([]domain.Utxo, error) {
	args := m.Called(ctx, address)

	var res []domain.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]domain.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockProvider) GetUtxosForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.Utxo, error) {
	args := m.Called(ctx, addresses)

	var res []domain.Utxo
	if a := args.Get(0); a != nil {
		res = a.([]domain.Utxo)
	}
	return res, args.Error(1)
}

func (m *mockProvider) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockProvider) GetAssets(
	ctx context.Context, address string,
) ([]domain.Asset, error) {
	args := m.Called(ctx, address)

	var res []domain.Asset
	if a := args.Get(0); a != nil {
		res = a.([]domain.Asset)
	}
	return res, args.Error(1)
}

func (m *mockProvider) IsAddressUsed(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *mockProvider) GetProtocolParams(
	ctx context.Context,
) (*domain.ProtocolParams, error) {
	args := m.Called(ctx)

	var res *domain.ProtocolParams
	if a := args.Get(0); a != nil {
		res = a.(*domain.ProtocolParams)
	}
	return res, args.Error(1)
}

func (m *mockProvider) Submit(ctx context.Context, signedTx []byte) (string, error) {
	args := m.Called(ctx, signedTx)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) FollowTip(
	ctx context.Context,
) (*domain.TipSubscription, error) {
	args := m.Called(ctx)

	var res *domain.TipSubscription
	if a := args.Get(0); a != nil {
		res = a.(*domain.TipSubscription)
	}
	return res, args.Error(1)
}

func (m *mockProvider) Close() {
	m.Called()
}

type mockProviderFactory struct {
	mock.Mock
}

func (m *mockProviderFactory) Provider(
	ctx context.Context, info domain.ChainInfo,
) (ports.ChainProvider, error) {
	args := m.Called(ctx, info)

	var res ports.ChainProvider
	if a := args.Get(0); a != nil {
		res = a.(ports.ChainProvider)
	}
	return res, args.Error(1)
}
