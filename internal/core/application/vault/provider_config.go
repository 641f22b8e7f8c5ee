package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/vaultcrypto"
)

// ListCustomProviderConfigs returns the stored configs without API keys.
func (s *Service) ListCustomProviderConfigs(
	ctx context.Context,
) ([]domain.ProviderConfig, error) {
	return s.readConfigs(ctx)
}

// GetCustomProviderConfig returns the custom config of the given chain and
// network, without its API key.
func (s *Service) GetCustomProviderConfig(
	ctx context.Context, info domain.ChainInfo,
) (*domain.ProviderConfig, error) {
	configs, err := s.readConfigs(ctx)
	if err != nil {
		return nil, err
	}
	i := findConfig(configs, domain.ProviderConfigID(info))
	if i < 0 {
		return nil, domain.ErrProviderConfigNotFound
	}
	cfg := configs[i]
	return &cfg, nil
}

// GetProviderAPIKey decrypts the API key of the custom config of the given
// chain and network. API keys are encrypted with the provider key of the
// secure store, so no user secret is involved.
func (s *Service) GetProviderAPIKey(
	ctx context.Context, info domain.ChainInfo,
) (string, error) {
	cfg, err := s.GetCustomProviderConfig(ctx, info)
	if err != nil {
		return "", err
	}
	if !cfg.HasAPIKey {
		return "", nil
	}

	key, err := s.apiKeys.key(ctx, false)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", fmt.Errorf("%w: missing provider key", domain.ErrInvalidStoredData)
	}
	defer clear(key)

	apiKey, err := s.readAndDecrypt(ctx, apiKeyKey(cfg.ID), key)
	if err != nil {
		return "", err
	}
	defer clear(apiKey)
	return string(apiKey), nil
}

// SaveCustomProviderConfig adds or replaces the custom config for its chain
// and network. The password of the given wallet is checked against the
// lockout guard before anything is written.
func (s *Service) SaveCustomProviderConfig(
	ctx context.Context, walletID string, cfg domain.ProviderConfig,
	password []byte,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(
		ctx, walletID, domain.AuthTypePassword, password,
	); err != nil {
		return err
	}

	configs, err := s.readConfigs(ctx)
	if err != nil {
		return err
	}

	cfg.ID = domain.ProviderConfigID(cfg.Info())
	cfg.HasAPIKey = cfg.APIKey != ""
	if cfg.HasAPIKey {
		key, err := s.apiKeys.key(ctx, true)
		if err != nil {
			return err
		}
		defer clear(key)

		apiKey := []byte(cfg.APIKey)
		defer clear(apiKey)
		if err := s.writeVault(
			ctx, apiKeyKey(cfg.ID), cfg.ID, vaultcrypto.PurposeApiKey,
			apiKey, key,
		); err != nil {
			return err
		}
	} else if err := s.store.Remove(ctx, apiKeyKey(cfg.ID)); err != nil {
		return err
	}
	cfg.APIKey = ""

	if i := findConfig(configs, cfg.ID); i >= 0 {
		configs[i] = cfg
	} else {
		configs = append(configs, cfg)
	}
	return s.writeConfigs(ctx, configs)
}

// DeleteCustomProviderConfig removes the custom config and its API key
// once the password of the given wallet is verified.
func (s *Service) DeleteCustomProviderConfig(
	ctx context.Context, walletID string, info domain.ChainInfo,
	password []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(
		ctx, walletID, domain.AuthTypePassword, password,
	); err != nil {
		return err
	}

	configs, err := s.readConfigs(ctx)
	if err != nil {
		return err
	}
	id := domain.ProviderConfigID(info)
	i := findConfig(configs, id)
	if i < 0 {
		return domain.ErrProviderConfigNotFound
	}

	if err := s.store.Remove(ctx, apiKeyKey(id)); err != nil {
		return err
	}
	configs = append(configs[:i], configs[i+1:]...)
	return s.writeConfigs(ctx, configs)
}

func (s *Service) readConfigs(ctx context.Context) ([]domain.ProviderConfig, error) {
	raw, ok, err := s.store.Get(ctx, customConfigsKey)
	if err != nil {
		return nil, err
	}
	configs := make([]domain.ProviderConfig, 0)
	if !ok {
		return configs, nil
	}
	if err := json.Unmarshal([]byte(raw), &configs); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStoredData, err)
	}
	return configs, nil
}

func (s *Service) writeConfigs(
	ctx context.Context, configs []domain.ProviderConfig,
) error {
	buf, err := json.Marshal(configs)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, customConfigsKey, string(buf))
}

func findConfig(configs []domain.ProviderConfig, id string) int {
	for i, cfg := range configs {
		if cfg.ID == id {
			return i
		}
	}
	return -1
}
