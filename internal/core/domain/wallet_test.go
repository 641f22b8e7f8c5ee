package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/domain"
)

var testChainInfo = domain.ChainInfo{
	Chain:   domain.ChainCardano,
	Network: domain.NetworkTestnet,
}

func TestWallet(t *testing.T) {
	t.Run("new", testNewWallet())
	t.Run("lock and unlock", testWalletLock())
	t.Run("accounts", testWalletAccounts())
}

func testNewWallet() func(*testing.T) {
	return func(t *testing.T) {
		now := time.Now()
		w, err := domain.NewWallet("main", testChainInfo, now)
		require.NoError(t, err)
		require.NotEmpty(t, w.ID)
		require.Equal(t, testChainInfo, w.ChainInfo())
		require.False(t, w.IsUnlocked())

		tests := []struct {
			name string
			info domain.ChainInfo
			err  error
		}{
			{"", testChainInfo, domain.ErrNullWalletName},
			{"w", domain.ChainInfo{Chain: "doge", Network: domain.NetworkMainnet}, domain.ErrUnknownChain},
			{"w", domain.ChainInfo{Chain: domain.ChainBitcoin, Network: "regtest"}, domain.ErrUnknownNetwork},
		}
		for _, tt := range tests {
			_, err := domain.NewWallet(tt.name, tt.info, now)
			require.ErrorIs(t, err, tt.err)
		}
	}
}

func testWalletLock() func(*testing.T) {
	return func(t *testing.T) {
		w, err := domain.NewWallet("main", testChainInfo, time.Now())
		require.NoError(t, err)

		err = w.UseSeed(func([]byte) error { return nil })
		require.ErrorIs(t, err, domain.ErrWalletLocked)

		buf := []byte("seed bytes")
		seed := domain.NewSecretSeed(buf)
		w.Unlock(seed)
		require.True(t, w.IsUnlocked())

		var borrowed string
		err = w.UseSeed(func(s []byte) error {
			borrowed = string(s)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, "seed bytes", borrowed)

		// Replacing the seed wipes the previous one.
		w.Unlock(domain.NewSecretSeed([]byte("other")))
		require.True(t, seed.IsWiped())
		require.Equal(t, make([]byte, len(buf)), buf)

		w.Lock()
		require.False(t, w.IsUnlocked())
		err = w.UseSeed(func([]byte) error { return nil })
		require.ErrorIs(t, err, domain.ErrWalletLocked)

		// Locking twice is fine.
		w.Lock()
	}
}

func testWalletAccounts() func(*testing.T) {
	return func(t *testing.T) {
		now := time.Now()
		w, err := domain.NewWallet("main", testChainInfo, now)
		require.NoError(t, err)
		require.Zero(t, w.NextAccountIndex())

		for _, i := range []uint32{0, 3, 1} {
			account, err := domain.NewAccount(i, "", now)
			require.NoError(t, err)
			require.NoError(t, w.AddAccount(account))
		}
		require.Equal(t, uint32(4), w.NextAccountIndex())
		require.Equal(t, uint32(0), w.Accounts[0].Index)
		require.Equal(t, uint32(1), w.Accounts[1].Index)
		require.Equal(t, uint32(3), w.Accounts[2].Index)

		dup, err := domain.NewAccount(3, "dup", now)
		require.NoError(t, err)
		require.ErrorIs(t, w.AddAccount(dup), domain.ErrAccountAlreadyExists)

		_, err = domain.NewAccount(domain.MaxAccountIndex+1, "", now)
		require.ErrorIs(t, err, domain.ErrInvalidAccountIndex)

		require.NoError(t, w.SetActiveAccount(3))
		active, err := w.ActiveAccount()
		require.NoError(t, err)
		require.Equal(t, uint32(3), active.Index)
		require.ErrorIs(t, w.SetActiveAccount(2), domain.ErrAccountNotFound)

		active.SetChainData(domain.ChainAddressData{
			Chain:          testChainInfo.Chain,
			Network:        testChainInfo.Network,
			ReceiveAddress: "addr_test1xyz",
		})
		active.MarkSynced(testChainInfo, now)
		data, ok := active.GetChainData(testChainInfo)
		require.True(t, ok)
		require.Equal(t, "addr_test1xyz", data.ReceiveAddress)
		require.NotNil(t, data.LastSyncedAt)

		_, ok = active.GetChainData(domain.ChainInfo{
			Chain: domain.ChainCardano, Network: domain.NetworkMainnet,
		})
		require.False(t, ok)
	}
}
