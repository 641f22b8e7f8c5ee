package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/infrastructure/chainprovider"
)

const (
	// DatadirKey is the local data directory where the stores are persisted
	DatadirKey = "DATADIR"
	// LogLevelKey is the logrus level. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// ChainKey is the chain used by default. Either "cardano" or "bitcoin"
	ChainKey = "CHAIN"
	// NetworkKey is the network to use. Either "mainnet" or "testnet"
	NetworkKey = "NETWORK"
	// ProviderEndpointKey is the UTxO RPC endpoint used for cardano
	ProviderEndpointKey = "PROVIDER_ENDPOINT"
	// ProviderAPIKeyKey is sent to the UTxO RPC endpoint with every request
	ProviderAPIKeyKey = "PROVIDER_API_KEY"
	// ProviderInsecureKey disables TLS towards the UTxO RPC endpoint
	ProviderInsecureKey = "PROVIDER_INSECURE"
	// EsploraURLKey is the esplora REST API used for bitcoin
	EsploraURLKey = "ESPLORA_URL"
	// EsploraRequestsPerSecondKey limits the requests made to esplora. 0 means
	// no limit
	EsploraRequestsPerSecondKey = "ESPLORA_REQUESTS_PER_SECOND"
	// EsploraPollIntervalKey is the interval in milliseconds between polls of
	// the esplora chain tip
	EsploraPollIntervalKey = "ESPLORA_POLL_INTERVAL"
	// GapLimitKey is the number of consecutive unused accounts after which
	// account discovery stops
	GapLimitKey = "GAP_LIMIT"
	// KVBackendKey selects where wallets are stored. Either "inmemory" or
	// "badger"
	KVBackendKey = "KV_BACKEND"
	// MetricsEnabledKey enables periodic logging of memory statistics and
	// dumps prometheus metrics on exit
	MetricsEnabledKey = "METRICS_ENABLED"

	DbLocation      = "db"
	SecureLocation  = "secure"
	SecureDbFile    = "vault.db"
	DeviceDbFile    = "device.db"
	MetricsLocation = "stats"

	KVBackendInmemory = "inmemory"
	KVBackendBadger   = "badger"

	MaxGapLimit = 100
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("custody", false)

var defaultEndpoints = map[domain.ChainInfo]string{
	{Chain: domain.ChainCardano, Network: domain.NetworkMainnet}: "mainnet.utxorpc-v0.demeter.run:443",
	{Chain: domain.ChainCardano, Network: domain.NetworkTestnet}: "preprod.utxorpc-v0.demeter.run:443",
	{Chain: domain.ChainBitcoin, Network: domain.NetworkMainnet}: "https://blockstream.info/api",
	{Chain: domain.ChainBitcoin, Network: domain.NetworkTestnet}: "https://blockstream.info/testnet/api",
}

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("CUSTODY")
	vip.AutomaticEnv()
	setDefaults()
}

func setDefaults() {
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, int(log.InfoLevel))
	vip.SetDefault(ChainKey, string(domain.ChainCardano))
	vip.SetDefault(NetworkKey, string(domain.NetworkMainnet))
	vip.SetDefault(ProviderInsecureKey, false)
	vip.SetDefault(EsploraRequestsPerSecondKey, 10)
	vip.SetDefault(EsploraPollIntervalKey, 30000)
	vip.SetDefault(GapLimitKey, 5)
	vip.SetDefault(KVBackendKey, KVBackendBadger)
	vip.SetDefault(MetricsEnabledKey, false)
}

//GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

//GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

//GetBool ...
func GetBool(key string) bool {
	return vip.GetBool(key)
}

//GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// IsSet returns whether the give key is set
func IsSet(key string) bool {
	return vip.IsSet(key)
}

// Reset drops every value set at runtime and restores the defaults.
func Reset() {
	vip = viper.New()
	vip.SetEnvPrefix("CUSTODY")
	vip.AutomaticEnv()
	setDefaults()
}

//GetDatadir ...
func GetDatadir() string {
	return GetString(DatadirKey)
}

//GetLogLevel ...
func GetLogLevel() log.Level {
	return log.Level(GetInt(LogLevelKey))
}

// GetChainInfo returns the default chain and network.
func GetChainInfo() domain.ChainInfo {
	return domain.ChainInfo{
		Chain:   domain.Chain(strings.ToLower(GetString(ChainKey))),
		Network: domain.Network(strings.ToLower(GetString(NetworkKey))),
	}
}

// GetProviderFactoryOpts returns the default endpoints of every chain and
// network. The configured endpoints override the built-in ones for the
// default network only.
func GetProviderFactoryOpts() chainprovider.FactoryOpts {
	info := GetChainInfo()
	defaults := make(map[string]chainprovider.Endpoint)
	for i, endpoint := range defaultEndpoints {
		defaults[i.Key()] = chainprovider.Endpoint{URL: endpoint}
	}

	cardano := domain.ChainInfo{Chain: domain.ChainCardano, Network: info.Network}
	if endpoint := GetString(ProviderEndpointKey); endpoint != "" {
		defaults[cardano.Key()] = chainprovider.Endpoint{
			URL:      endpoint,
			APIKey:   GetString(ProviderAPIKeyKey),
			Insecure: GetBool(ProviderInsecureKey),
		}
	} else if apiKey := GetString(ProviderAPIKeyKey); apiKey != "" {
		e := defaults[cardano.Key()]
		e.APIKey = apiKey
		defaults[cardano.Key()] = e
	}

	bitcoin := domain.ChainInfo{Chain: domain.ChainBitcoin, Network: info.Network}
	if esploraURL := GetString(EsploraURLKey); esploraURL != "" {
		defaults[bitcoin.Key()] = chainprovider.Endpoint{URL: esploraURL}
	}

	return chainprovider.FactoryOpts{
		Defaults:                 defaults,
		EsploraRequestsPerSecond: GetInt(EsploraRequestsPerSecondKey),
		EsploraPollInterval: time.Duration(GetInt(EsploraPollIntervalKey)) *
			time.Millisecond,
	}
}

// Validate checks the current configuration.
func Validate() error {
	datadir := GetDatadir()
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	level := GetInt(LogLevelKey)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		return fmt.Errorf(
			"log level must be in range [%d, %d]", log.PanicLevel, log.TraceLevel,
		)
	}

	if err := GetChainInfo().Validate(); err != nil {
		return err
	}

	if endpoint := GetString(ProviderEndpointKey); endpoint != "" {
		if strings.Contains(endpoint, "://") {
			return fmt.Errorf("provider endpoint must be in the form host:port")
		}
	}

	if esploraURL := GetString(EsploraURLKey); esploraURL != "" {
		u, err := url.Parse(esploraURL)
		if err != nil {
			return fmt.Errorf("esplora url is not a valid url: %s", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("esplora url must be either http or https")
		}
	}

	if GetInt(EsploraRequestsPerSecondKey) < 0 {
		return fmt.Errorf("esplora requests per second must not be negative")
	}
	if GetInt(EsploraPollIntervalKey) <= 0 {
		return fmt.Errorf("esplora poll interval must be greater than zero")
	}

	gapLimit := GetInt(GapLimitKey)
	if gapLimit <= 0 || gapLimit > MaxGapLimit {
		return fmt.Errorf("gap limit must be in range [1, %d]", MaxGapLimit)
	}

	switch GetString(KVBackendKey) {
	case KVBackendInmemory, KVBackendBadger:
	default:
		return fmt.Errorf(
			"kv backend must be either '%s' or '%s'",
			KVBackendInmemory, KVBackendBadger,
		)
	}
	return nil
}

// InitDatadir creates the directories required by the configured backends.
func InitDatadir() error {
	datadir := GetDatadir()
	if GetString(KVBackendKey) == KVBackendInmemory {
		return nil
	}

	if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
		return err
	}
	if err := makeDirectoryIfNotExists(filepath.Join(datadir, SecureLocation)); err != nil {
		return err
	}
	if GetBool(MetricsEnabledKey) {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, MetricsLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0700)
	}
	return nil
}
