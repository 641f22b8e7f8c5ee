package main

import (
	"context"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/config"
	"github.com/tdex-network/custody/internal/core/application/vault"
	"github.com/tdex-network/custody/internal/core/application/wallet"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/internal/infrastructure/chainprovider"
	bitcoinwallet "github.com/tdex-network/custody/internal/infrastructure/chainwallet/bitcoin"
	cardanowallet "github.com/tdex-network/custody/internal/infrastructure/chainwallet/cardano"
	"github.com/tdex-network/custody/internal/infrastructure/securestore"
	badgerkv "github.com/tdex-network/custody/internal/infrastructure/storage/kv/badger"
	boltkv "github.com/tdex-network/custody/internal/infrastructure/storage/kv/bolt"
	"github.com/tdex-network/custody/internal/infrastructure/storage/kv/inmemory"
	walletstore "github.com/tdex-network/custody/internal/infrastructure/storage/wallet"
	"github.com/tdex-network/custody/pkg/stats"
	"github.com/urfave/cli/v2"
)

const statsInterval = time.Minute

type services struct {
	vault     *vault.Service
	wallet    *wallet.Service
	providers *chainprovider.Factory
}

// getServices opens the stores and wires the services.
func getServices() (*services, func(), error) {
	stores, err := openStores()
	if err != nil {
		return nil, nil, err
	}
	closeStores := func() {
		for _, s := range stores {
			if err := s.Close(); err != nil {
				log.WithError(err).Warn("failed to close store")
			}
		}
	}
	plainStore, secureStore, deviceStore := stores[0], stores[1], stores[2]

	device, err := securestore.NewSoftwareStore(securestore.Opts{
		Store: deviceStore,
	})
	if err != nil {
		closeStores()
		return nil, nil, err
	}
	vaultSvc, err := vault.NewService(vault.ServiceOpts{
		Store:  secureStore,
		Device: device,
	})
	if err != nil {
		closeStores()
		return nil, nil, err
	}

	factoryOpts := config.GetProviderFactoryOpts()
	factoryOpts.CustomConfigs = vaultSvc
	providers := chainprovider.NewFactory(factoryOpts)

	walletSvc, err := wallet.NewService(wallet.ServiceOpts{
		Repository: walletstore.NewWalletRepository(plainStore),
		Vault:      vaultSvc,
		ChainWallets: []ports.ChainWallet{
			cardanowallet.NewChainWallet(),
			bitcoinwallet.NewChainWallet(),
		},
		Providers: providers,
	})
	if err != nil {
		providers.Close()
		closeStores()
		return nil, nil, err
	}

	reporter := startStats()
	cleanup := func() {
		walletSvc.LockAll()
		providers.Close()
		if reporter != nil {
			if err := reporter.Stop(); err != nil {
				log.WithError(err).Warn("failed to dump metrics")
			}
		}
		closeStores()
	}
	return &services{vaultSvc, walletSvc, providers}, cleanup, nil
}

// startStats starts reporting runtime stats for the duration of the
// command if metrics are enabled.
func startStats() *stats.Reporter {
	if !config.GetBool(config.MetricsEnabledKey) {
		return nil
	}
	reporter := stats.NewReporter(
		filepath.Join(config.GetDatadir(), config.MetricsLocation), statsInterval,
	)
	reporter.Start(context.Background())
	return reporter
}

// openStores returns the plain, the secure and the device stores.
func openStores() ([]ports.KVStore, error) {
	if config.GetString(config.KVBackendKey) == config.KVBackendInmemory {
		return []ports.KVStore{
			inmemory.NewKVStore(), inmemory.NewKVStore(), inmemory.NewKVStore(),
		}, nil
	}

	datadir := config.GetDatadir()
	plainStore, err := badgerkv.NewKVStore(filepath.Join(datadir, config.DbLocation), nil)
	if err != nil {
		return nil, err
	}
	secureDir := filepath.Join(datadir, config.SecureLocation)
	secureStore, err := boltkv.NewKVStore(secureDir, config.SecureDbFile)
	if err != nil {
		plainStore.Close()
		return nil, err
	}
	deviceStore, err := boltkv.NewKVStore(secureDir, config.DeviceDbFile)
	if err != nil {
		plainStore.Close()
		secureStore.Close()
		return nil, err
	}
	return []ports.KVStore{plainStore, secureStore, deviceStore}, nil
}

func getWalletID(ctx context.Context, c *cli.Context, svc *services) (string, error) {
	if id := c.String(walletFlag.Name); id != "" {
		return id, nil
	}
	w, err := svc.wallet.GetActiveWallet(ctx)
	if err != nil {
		return "", err
	}
	return w.ID, nil
}

// unlockWallet unlocks the selected wallet with the PIN if given, otherwise
// with the password.
func unlockWallet(ctx context.Context, c *cli.Context, svc *services) (*domain.Wallet, error) {
	walletID, err := getWalletID(ctx, c, svc)
	if err != nil {
		return nil, err
	}

	secret, authType := []byte(c.String(passwordFlag.Name)), domain.AuthTypePassword
	if pin := c.String(pinFlag.Name); pin != "" {
		secret, authType = []byte(pin), domain.AuthTypePin
	}
	defer clear(secret)

	if err := svc.wallet.Unlock(ctx, walletID, secret, authType); err != nil {
		return nil, err
	}
	return svc.wallet.GetWallet(ctx, walletID)
}

func getAccountIndex(c *cli.Context, w *domain.Wallet) uint32 {
	if c.IsSet(accountFlag.Name) {
		return uint32(c.Uint(accountFlag.Name))
	}
	return w.ActiveAccountIndex
}
