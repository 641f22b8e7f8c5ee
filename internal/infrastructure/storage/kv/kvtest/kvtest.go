// Package kvtest contains the behavior every ports.KVStore implementation
// must comply with.
package kvtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/ports"
)

// RunStoreTests runs the shared test suite against a fresh store returned
// by newStore for every subtest.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) ports.KVStore) {
	t.Run("get_set_remove", func(t *testing.T) {
		testGetSetRemove(t, newStore(t))
	})
	t.Run("prefix", func(t *testing.T) {
		testPrefix(t, newStore(t))
	})
	t.Run("clear", func(t *testing.T) {
		testClear(t, newStore(t))
	})
	t.Run("concurrent", func(t *testing.T) {
		testConcurrent(t, newStore(t))
	})
}

func testGetSetRemove(t *testing.T, store ports.KVStore) {
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "wallets")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "wallets", `[]`))
	require.NoError(t, store.Set(ctx, "wallets", `[{"id":"a"}]`))

	value, ok, err := store.Get(ctx, "wallets")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[{"id":"a"}]`, value)

	exists, err := store.Exists(ctx, "wallets")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Remove(ctx, "wallets"))
	require.NoError(t, store.Remove(ctx, "wallets"))
	exists, err = store.Exists(ctx, "wallets")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Set(ctx, "empty", ""))
	value, ok, err = store.Get(ctx, "empty")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, value)
}

func testPrefix(t *testing.T, store ports.KVStore) {
	ctx := context.Background()
	for _, key := range []string{
		"vault_b", "lockout_a", "vault_a", "vault.x", "vault_c", "vaul",
	} {
		require.NoError(t, store.Set(ctx, key, "{}"))
	}
	require.NoError(t, store.Remove(ctx, "vault_c"))

	keys, err := store.GetKeysByPrefix(ctx, "vault_")
	require.NoError(t, err)
	require.Equal(t, []string{"vault_a", "vault_b"}, keys)

	keys, err = store.GetKeysByPrefix(ctx, "missing_")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func testClear(t *testing.T, store ports.KVStore) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	require.NoError(t, store.Clear(ctx))

	keys, err := store.GetKeysByPrefix(ctx, "")
	require.NoError(t, err)
	require.Empty(t, keys)

	require.NoError(t, store.Set(ctx, "a", "3"))
	value, _, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "3", value)
}

func testConcurrent(t *testing.T, store ports.KVStore) {
	ctx := context.Background()
	wg := &sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key_%02d", i)
			require.NoError(t, store.Set(ctx, key, key))
			if i%2 == 0 {
				require.NoError(t, store.Remove(ctx, key))
			}
		}(i)
	}
	wg.Wait()

	keys, err := store.GetKeysByPrefix(ctx, "key_")
	require.NoError(t, err)
	require.Len(t, keys, 10)
	for _, key := range keys {
		value, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, key, value)
	}
}
