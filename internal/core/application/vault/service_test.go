package vault_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/custody/internal/core/application/vault"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/internal/infrastructure/securestore"
	"github.com/tdex-network/custody/internal/infrastructure/storage/kv/inmemory"
	"github.com/tdex-network/custody/pkg/vaultcrypto"
)

var (
	ctx          = context.Background()
	testMnemonic = []byte(
		"abandon abandon abandon abandon abandon abandon abandon abandon " +
			"abandon abandon abandon about",
	)
	testPassword = []byte("P@ssw0rd!")
	testPin      = []byte("123456")
	startTime    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

type testEnv struct {
	svc      *vault.Service
	store    ports.KVStore
	clock    *clock.TestClock
	walletID string
}

func newTestEnv(t *testing.T, caps ports.DeviceCapabilities) *testEnv {
	store := inmemory.NewKVStore()
	device, err := securestore.NewSoftwareStore(securestore.Opts{
		Store:        inmemory.NewKVStore(),
		Capabilities: caps,
	})
	require.NoError(t, err)

	clk := clock.NewTestClock(startTime)
	svc, err := vault.NewService(vault.ServiceOpts{
		Store:    store,
		Device:   device,
		Clock:    clk,
		KDFTable: vaultcrypto.FastKDFTable(),
	})
	require.NoError(t, err)

	walletID := uuid.New().String()
	require.NoError(t, svc.CreateVault(ctx, walletID, testMnemonic, testPassword))

	return &testEnv{svc, store, clk, walletID}
}

func (e *testEnv) advance(d time.Duration) {
	e.clock.SetTime(e.clock.Now().Add(d))
}

func requireSeed(t *testing.T, seed *domain.SecretSeed, expected []byte) {
	require.NotNil(t, seed)
	err := seed.Borrow(func(buf []byte) error {
		require.Equal(t, expected, buf)
		return nil
	})
	require.NoError(t, err)
}

func TestNewService(t *testing.T) {
	svc, err := vault.NewService(vault.ServiceOpts{})
	require.EqualError(t, err, "missing secure store")
	require.Nil(t, svc)
}

func TestVault(t *testing.T) {
	t.Run("create and unlock", testCreateAndUnlock())
	t.Run("lockout", testLockout())
	t.Run("tampered lockout", testTamperedLockout())
	t.Run("change password", testChangePassword())
	t.Run("pin", testPinFactor())
	t.Run("device bound", testDeviceBound())
	t.Run("tampered auth type", testTamperedAuthType())
	t.Run("untrusted auth type fallback", testUntrustedAuthTypeFallback())
	t.Run("auth type requires password", testAuthTypeRequiresPassword())
	t.Run("unsupported version", testUnsupportedVersion())
	t.Run("delete", testDeleteVault())
}

func testCreateAndUnlock() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})

		ok, err := env.svc.HasVault(ctx, env.walletID)
		require.NoError(t, err)
		require.True(t, ok)

		err = env.svc.CreateVault(ctx, env.walletID, testMnemonic, testPassword)
		require.ErrorIs(t, err, domain.ErrVaultAlreadyExists)

		authType, err := env.svc.GetAuthType(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.AuthTypePassword, authType)

		state, err := env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.True(t, state.IsClean())

		seed, err := env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.NoError(t, err)
		requireSeed(t, seed, testMnemonic)

		require.NoError(t, env.svc.VerifyPassword(ctx, env.walletID, testPassword))

		seed, err = env.svc.UnlockVault(
			ctx, env.walletID, []byte("wrong"), domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrAuthentication)
		require.Nil(t, seed)

		seed, err = env.svc.UnlockVault(
			ctx, uuid.New().String(), testPassword, domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrVaultNotFound)
		require.Nil(t, seed)

		seed, err = env.svc.UnlockVault(ctx, env.walletID, testPin, domain.AuthTypePin)
		require.ErrorIs(t, err, domain.ErrAuthTypeMismatch)
		require.Nil(t, seed)

		// A mismatch isn't counted as a failure.
		state, err = env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, 1, state.FailedAttempts)
	}
}

func testLockout() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})

		for i := 0; i < domain.LockoutThreshold; i++ {
			err := env.svc.VerifyPassword(ctx, env.walletID, []byte("wrong"))
			require.ErrorIs(t, err, domain.ErrAuthentication)
		}

		_, err := env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrLockedOut)

		var lockoutErr *domain.LockoutError
		require.ErrorAs(t, err, &lockoutErr)
		require.True(t, startTime.Add(domain.LockoutBaseDuration).Equal(lockoutErr.Until))

		// Attempts during the window aren't counted.
		state, err := env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.LockoutThreshold, state.FailedAttempts)
		require.Equal(t, domain.LockoutStatusLocked, state.Status(env.clock.Now()))

		env.advance(domain.LockoutBaseDuration)

		// One more failure doubles the window.
		err = env.svc.VerifyPassword(ctx, env.walletID, []byte("wrong"))
		require.ErrorIs(t, err, domain.ErrAuthentication)
		err = env.svc.VerifyPassword(ctx, env.walletID, testPassword)
		require.ErrorAs(t, err, &lockoutErr)
		require.True(
			t, env.clock.Now().Add(2*domain.LockoutBaseDuration).Equal(lockoutErr.Until),
		)

		env.advance(2 * domain.LockoutBaseDuration)

		seed, err := env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.NoError(t, err)
		requireSeed(t, seed, testMnemonic)

		state, err = env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.True(t, state.IsClean())
	}
}

func testTamperedLockout() func(t *testing.T) {
	return func(t *testing.T) {
		tests := []struct {
			name   string
			tamper func(env *testEnv)
		}{
			{
				name: "forged tag",
				tamper: func(env *testEnv) {
					forged, _ := json.Marshal(domain.LockoutState{
						UpdatedAtUtc: env.clock.Now(),
						IntegrityTag: "00",
					})
					env.store.Set(ctx, "lockout_"+env.walletID, string(forged))
				},
			},
			{
				name: "malformed record",
				tamper: func(env *testEnv) {
					env.store.Set(ctx, "lockout_"+env.walletID, "{")
				},
			},
			{
				name: "missing record",
				tamper: func(env *testEnv) {
					env.store.Remove(ctx, "lockout_"+env.walletID)
				},
			},
			{
				name: "missing integrity key",
				tamper: func(env *testEnv) {
					env.store.Remove(ctx, "integrity_key")
				},
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t, ports.DeviceCapabilities{})
				for i := 0; i < domain.LockoutThreshold-1; i++ {
					env.svc.VerifyPassword(ctx, env.walletID, []byte("wrong"))
				}
				tt.tamper(env)

				_, err := env.svc.UnlockVault(
					ctx, env.walletID, testPassword, domain.AuthTypePassword,
				)
				require.ErrorIs(t, err, domain.ErrLockedOut)

				env.advance(domain.LockoutMaxDuration)

				seed, err := env.svc.UnlockVault(
					ctx, env.walletID, testPassword, domain.AuthTypePassword,
				)
				require.NoError(t, err)
				requireSeed(t, seed, testMnemonic)
			})
		}
	}
}

func testChangePassword() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})
		newPassword := []byte("n3wP@ssw0rd")

		require.NoError(t, env.svc.EnablePin(ctx, env.walletID, testPassword, testPin))

		err := env.svc.ChangePassword(ctx, env.walletID, []byte("wrong"), newPassword)
		require.ErrorIs(t, err, domain.ErrAuthentication)

		err = env.svc.ChangePassword(ctx, env.walletID, testPassword, nil)
		require.ErrorIs(t, err, domain.ErrNullPassword)

		require.NoError(t, env.svc.ChangePassword(
			ctx, env.walletID, testPassword, newPassword,
		))

		enabled, err := env.svc.IsPinEnabled(ctx, env.walletID)
		require.NoError(t, err)
		require.False(t, enabled)

		authType, err := env.svc.GetAuthType(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.AuthTypePassword, authType)

		err = env.svc.VerifyPassword(ctx, env.walletID, testPassword)
		require.ErrorIs(t, err, domain.ErrAuthentication)

		seed, err := env.svc.UnlockVault(
			ctx, env.walletID, newPassword, domain.AuthTypePassword,
		)
		require.NoError(t, err)
		requireSeed(t, seed, testMnemonic)
	}
}

func testPinFactor() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})

		err := env.svc.EnablePin(ctx, env.walletID, []byte("wrong"), testPin)
		require.ErrorIs(t, err, domain.ErrAuthentication)

		require.NoError(t, env.svc.EnablePin(ctx, env.walletID, testPassword, testPin))

		authType, err := env.svc.GetAuthType(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.AuthTypePin, authType)

		require.NoError(t, env.svc.VerifyPin(ctx, env.walletID, testPin))
		err = env.svc.VerifyPin(ctx, env.walletID, []byte("000000"))
		require.ErrorIs(t, err, domain.ErrAuthentication)

		seed, err := env.svc.UnlockVault(ctx, env.walletID, testPin, domain.AuthTypePin)
		require.NoError(t, err)
		requireSeed(t, seed, testMnemonic)

		_, err = env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrAuthTypeMismatch)

		require.NoError(t, env.svc.SetAuthType(
			ctx, env.walletID, domain.AuthTypePassword, testPassword,
		))
		seed, err = env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.NoError(t, err)
		requireSeed(t, seed, testMnemonic)

		require.NoError(t, env.svc.SetAuthType(
			ctx, env.walletID, domain.AuthTypePin, testPassword,
		))
		require.NoError(t, env.svc.DisablePin(ctx, env.walletID, testPassword))

		enabled, err := env.svc.IsPinEnabled(ctx, env.walletID)
		require.NoError(t, err)
		require.False(t, enabled)

		authType, err = env.svc.GetAuthType(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.AuthTypePassword, authType)

		err = env.svc.SetAuthType(ctx, env.walletID, domain.AuthTypePin, testPassword)
		require.ErrorIs(t, err, domain.ErrNotSupported)
	}
}

func testDeviceBound() func(t *testing.T) {
	return func(t *testing.T) {
		t.Run("unsupported", func(t *testing.T) {
			env := newTestEnv(t, ports.DeviceCapabilities{})
			err := env.svc.EnableDeviceBound(ctx, env.walletID, testPassword)
			require.ErrorIs(t, err, domain.ErrNotSupported)
		})

		t.Run("biometric", func(t *testing.T) {
			env := newTestEnv(t, ports.DeviceCapabilities{
				SupportsBiometric: true,
				BiometricKinds:    []string{"face"},
			})

			err := env.svc.EnableDeviceBound(ctx, env.walletID, []byte("wrong"))
			require.ErrorIs(t, err, domain.ErrAuthentication)

			require.NoError(t, env.svc.EnableDeviceBound(ctx, env.walletID, testPassword))

			enabled, err := env.svc.IsDeviceBoundEnabled(ctx, env.walletID)
			require.NoError(t, err)
			require.True(t, enabled)

			authType, err := env.svc.GetAuthType(ctx, env.walletID)
			require.NoError(t, err)
			require.Equal(t, domain.AuthTypeBiometric, authType)

			seed, err := env.svc.UnlockVault(
				ctx, env.walletID, []byte("Unlock to send"), domain.AuthTypeBiometric,
			)
			require.NoError(t, err)
			requireSeed(t, seed, testMnemonic)

			require.NoError(t, env.svc.DisableDeviceBound(ctx, env.walletID, testPassword))

			authType, err = env.svc.GetAuthType(ctx, env.walletID)
			require.NoError(t, err)
			require.Equal(t, domain.AuthTypePassword, authType)
		})

		t.Run("device key removed", func(t *testing.T) {
			env := newTestEnv(t, ports.DeviceCapabilities{SupportsPin: true})
			require.NoError(t, env.svc.EnableDeviceBound(ctx, env.walletID, testPassword))

			// Simulates the os dropping the key after a biometric change.
			device, _ := securestore.NewSoftwareStore(securestore.Opts{
				Store: inmemory.NewKVStore(),
			})
			svc, err := vault.NewService(vault.ServiceOpts{
				Store:    env.store,
				Device:   device,
				Clock:    env.clock,
				KDFTable: vaultcrypto.FastKDFTable(),
			})
			require.NoError(t, err)

			_, err = svc.UnlockVault(ctx, env.walletID, nil, domain.AuthTypeBiometric)
			require.ErrorIs(t, err, domain.ErrAuthentication)
		})
	}
}

func testTamperedAuthType() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})
		require.NoError(t, env.svc.EnablePin(ctx, env.walletID, testPassword, testPin))

		forged, _ := json.Marshal(map[string]interface{}{
			"authType":     "password",
			"updatedAtUtc": env.clock.Now(),
			"integrityTag": "deadbeef",
		})
		require.NoError(t, env.store.Set(ctx, "auth_type_"+env.walletID, string(forged)))

		authType, err := env.svc.GetAuthType(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.AuthTypePin, authType)

		_, err = env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrAuthTypeMismatch)
	}
}

func testUntrustedAuthTypeFallback() func(t *testing.T) {
	return func(t *testing.T) {
		tests := []struct {
			name     string
			caps     ports.DeviceCapabilities
			setup    func(env *testEnv)
			tamper   func(env *testEnv)
			expected domain.AuthType
		}{
			{
				name: "password only, missing integrity key",
				caps: ports.DeviceCapabilities{},
				tamper: func(env *testEnv) {
					env.store.Remove(ctx, "integrity_key")
				},
				expected: domain.AuthTypePassword,
			},
			{
				name: "password only, missing record",
				caps: ports.DeviceCapabilities{},
				tamper: func(env *testEnv) {
					env.store.Remove(ctx, "auth_type_"+env.walletID)
				},
				expected: domain.AuthTypePassword,
			},
			{
				name: "pin without device key",
				caps: ports.DeviceCapabilities{SupportsBiometric: true},
				setup: func(env *testEnv) {
					env.svc.EnablePin(ctx, env.walletID, testPassword, testPin)
				},
				tamper: func(env *testEnv) {
					env.store.Set(ctx, "auth_type_"+env.walletID, "{")
				},
				expected: domain.AuthTypePin,
			},
			{
				name: "pin and device key",
				caps: ports.DeviceCapabilities{SupportsBiometric: true},
				setup: func(env *testEnv) {
					env.svc.EnablePin(ctx, env.walletID, testPassword, testPin)
					env.svc.EnableDeviceBound(ctx, env.walletID, testPassword)
				},
				tamper: func(env *testEnv) {
					env.store.Remove(ctx, "integrity_key")
				},
				expected: domain.AuthTypeBiometric,
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t, tt.caps)
				if tt.setup != nil {
					tt.setup(env)
				}
				tt.tamper(env)

				authType, err := env.svc.GetAuthType(ctx, env.walletID)
				require.NoError(t, err)
				require.Equal(t, tt.expected, authType)

				if tt.expected == domain.AuthTypePassword {
					// A missing integrity key also locks the wallet out.
					env.svc.UnlockVault(
						ctx, env.walletID, testPassword, domain.AuthTypePassword,
					)
					env.advance(domain.LockoutMaxDuration)

					seed, err := env.svc.UnlockVault(
						ctx, env.walletID, testPassword, domain.AuthTypePassword,
					)
					require.NoError(t, err)
					requireSeed(t, seed, testMnemonic)
				}
			})
		}
	}
}

func testAuthTypeRequiresPassword() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})
		require.NoError(t, env.svc.EnablePin(ctx, env.walletID, testPassword, testPin))

		tests := []struct {
			name   string
			change func() error
		}{
			{
				name: "set auth type",
				change: func() error {
					return env.svc.SetAuthType(
						ctx, env.walletID, domain.AuthTypePassword, []byte("wrong"),
					)
				},
			},
			{
				name: "set auth type with pin",
				change: func() error {
					return env.svc.SetAuthType(
						ctx, env.walletID, domain.AuthTypePassword, testPin,
					)
				},
			},
			{
				name: "clear auth type",
				change: func() error {
					return env.svc.ClearAuthType(ctx, env.walletID, []byte("wrong"))
				},
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				require.ErrorIs(t, tt.change(), domain.ErrAuthentication)

				authType, err := env.svc.GetAuthType(ctx, env.walletID)
				require.NoError(t, err)
				require.Equal(t, domain.AuthTypePin, authType)
			})
		}

		state, err := env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, len(tests), state.FailedAttempts)

		require.NoError(t, env.svc.ClearAuthType(ctx, env.walletID, testPassword))
		authType, err := env.svc.GetAuthType(ctx, env.walletID)
		require.NoError(t, err)
		require.Equal(t, domain.AuthTypePassword, authType)

		state, err = env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.True(t, state.IsClean())
	}
}

func testUnsupportedVersion() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{})
		key := "vault_" + env.walletID

		raw, ok, err := env.store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)

		stored := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(raw), &stored))
		stored["version"] = 99
		buf, _ := json.Marshal(stored)
		require.NoError(t, env.store.Set(ctx, key, string(buf)))

		_, err = env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrInvalidStoredData)
		require.ErrorIs(t, err, domain.ErrUnsupportedVersion)

		state, err := env.svc.Guard().State(ctx, env.walletID)
		require.NoError(t, err)
		require.True(t, state.IsClean())
	}
}

func testDeleteVault() func(t *testing.T) {
	return func(t *testing.T) {
		env := newTestEnv(t, ports.DeviceCapabilities{SupportsBiometric: true})
		require.NoError(t, env.svc.EnablePin(ctx, env.walletID, testPassword, testPin))
		require.NoError(t, env.svc.EnableDeviceBound(ctx, env.walletID, testPassword))

		require.NoError(t, env.svc.DeleteVault(ctx, env.walletID))

		keys, err := env.store.GetKeysByPrefix(ctx, "")
		require.NoError(t, err)
		require.Equal(t, []string{"integrity_key"}, keys)

		ok, err := env.svc.HasVault(ctx, env.walletID)
		require.NoError(t, err)
		require.False(t, ok)

		_, err = env.svc.UnlockVault(
			ctx, env.walletID, testPassword, domain.AuthTypePassword,
		)
		require.ErrorIs(t, err, domain.ErrVaultNotFound)

		err = env.svc.DeleteVault(ctx, env.walletID)
		require.ErrorIs(t, err, domain.ErrVaultNotFound)
	}
}
