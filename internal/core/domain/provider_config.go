package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ProviderConfig identifies a remote chain endpoint. The API key is never
// serialized along with the config, it's stored encrypted on its own.
type ProviderConfig struct {
	ID        string  `json:"id"`
	Chain     Chain   `json:"chain"`
	Network   Network `json:"network"`
	Endpoint  string  `json:"endpoint"`
	Name      string  `json:"name,omitempty"`
	HasAPIKey bool    `json:"hasApiKey"`
	APIKey    string  `json:"-"`
}

// Info ...
func (c ProviderConfig) Info() ChainInfo {
	return ChainInfo{Chain: c.Chain, Network: c.Network}
}

// Validate ...
func (c ProviderConfig) Validate() error {
	if err := c.Info().Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return ErrNullEndpoint
	}
	return nil
}

// ProviderConfigID returns the deterministic id of the custom config of the
// given chain and network.
func ProviderConfigID(info ChainInfo) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(info.Key())).String()
}
