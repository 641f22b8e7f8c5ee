package chainprovider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/internal/infrastructure/chainprovider/esplora"
	"github.com/tdex-network/custody/internal/infrastructure/chainprovider/utxorpc"
)

// ErrNoProvider is returned when neither a custom nor a default endpoint is
// configured for a chain and network.
var ErrNoProvider = errors.New("no provider configured")

// CustomConfigStore returns the custom endpoint configured by the user for a
// chain and network, and its API key.
type CustomConfigStore interface {
	GetCustomProviderConfig(
		ctx context.Context, info domain.ChainInfo,
	) (*domain.ProviderConfig, error)
	GetProviderAPIKey(ctx context.Context, info domain.ChainInfo) (string, error)
}

// Endpoint ...
type Endpoint struct {
	URL      string
	APIKey   string
	Insecure bool
}

// FactoryOpts ...
type FactoryOpts struct {
	// Defaults are the endpoints by ChainInfo.Key().
	Defaults                 map[string]Endpoint
	CustomConfigs            CustomConfigStore
	EsploraRequestsPerSecond int
	EsploraPollInterval      time.Duration
}

// Factory builds and caches one ChainProvider per chain and network. A
// custom config takes precedence over the default endpoint.
type Factory struct {
	defaults     map[string]Endpoint
	configs      CustomConfigStore
	esploraRPS   int
	pollInterval time.Duration

	newUtxoRPC func(utxorpc.Opts) (ports.ChainProvider, error)
	newEsplora func(esplora.Opts) (ports.ChainProvider, error)

	providers map[string]ports.ChainProvider
	lock      sync.Mutex
}

// NewFactory ...
func NewFactory(opts FactoryOpts) *Factory {
	defaults := make(map[string]Endpoint)
	for k, v := range opts.Defaults {
		defaults[k] = v
	}
	return &Factory{
		defaults:     defaults,
		configs:      opts.CustomConfigs,
		esploraRPS:   opts.EsploraRequestsPerSecond,
		pollInterval: opts.EsploraPollInterval,
		newUtxoRPC:   utxorpc.NewProvider,
		newEsplora:   esplora.NewProvider,
		providers:    make(map[string]ports.ChainProvider),
	}
}

// Provider returns the cached provider for info, creating it if needed.
func (f *Factory) Provider(
	ctx context.Context, info domain.ChainInfo,
) (ports.ChainProvider, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if p, ok := f.providers[info.Key()]; ok {
		return p, nil
	}

	endpoint, err := f.endpoint(ctx, info)
	if err != nil {
		return nil, err
	}

	var p ports.ChainProvider
	switch info.Chain {
	case domain.ChainCardano:
		p, err = f.newUtxoRPC(utxorpc.Opts{
			Endpoint: endpoint.URL,
			APIKey:   endpoint.APIKey,
			Insecure: endpoint.Insecure,
		})
	case domain.ChainBitcoin:
		p, err = f.newEsplora(esplora.Opts{
			URL:               endpoint.URL,
			RequestsPerSecond: f.esploraRPS,
			PollInterval:      f.pollInterval,
		})
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnknownChain, info.Chain)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s provider: %w", info, err)
	}

	log.Debugf("connected to %s provider at %s", info, endpoint.URL)
	f.providers[info.Key()] = p
	return p, nil
}

// Invalidate closes and drops the cached provider of info, so that the next
// call picks up a changed config.
func (f *Factory) Invalidate(info domain.ChainInfo) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if p, ok := f.providers[info.Key()]; ok {
		p.Close()
		delete(f.providers, info.Key())
	}
}

// Close closes every cached provider.
func (f *Factory) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	for key, p := range f.providers {
		p.Close()
		delete(f.providers, key)
	}
}

// endpoint returns the custom endpoint of info if any, otherwise the
// default one. An API key that can't be read leaves the custom endpoint
// without key.
func (f *Factory) endpoint(
	ctx context.Context, info domain.ChainInfo,
) (Endpoint, error) {
	if f.configs != nil {
		cfg, err := f.configs.GetCustomProviderConfig(ctx, info)
		if err == nil {
			endpoint := Endpoint{URL: cfg.Endpoint}
			if cfg.HasAPIKey {
				apiKey, err := f.configs.GetProviderAPIKey(ctx, info)
				if err != nil {
					log.WithError(err).Warnf(
						"failed to read API key of %s provider, using it without key",
						info,
					)
				}
				endpoint.APIKey = apiKey
			}
			return endpoint, nil
		}
		if !errors.Is(err, domain.ErrProviderConfigNotFound) {
			return Endpoint{}, err
		}
	}

	endpoint, ok := f.defaults[info.Key()]
	if !ok || endpoint.URL == "" {
		return Endpoint{}, fmt.Errorf("%w for %s", ErrNoProvider, info)
	}
	return endpoint, nil
}
