package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
)

type authTypeRecord struct {
	AuthType     domain.AuthType `json:"authType"`
	UpdatedAtUtc time.Time       `json:"updatedAtUtc"`
	IntegrityTag string          `json:"integrityTag"`
}

func authTypeFields(walletID string, r authTypeRecord) []string {
	return []string{
		"auth_type",
		walletID,
		string(r.AuthType),
		r.UpdatedAtUtc.UTC().Format(time.RFC3339Nano),
	}
}

// GetAuthType returns the factor configured to unlock the wallet. If the
// stored record can't be trusted the strongest configured factor is
// returned instead.
func (s *Service) GetAuthType(
	ctx context.Context, walletID string,
) (domain.AuthType, error) {
	if err := s.requireVault(ctx, walletID); err != nil {
		return "", err
	}
	return s.authType(ctx, walletID)
}

// SetAuthType selects the factor used to unlock the wallet. The factor must
// be configured already and the caller must prove knowledge of the wallet
// password.
func (s *Service) SetAuthType(
	ctx context.Context, walletID string, authType domain.AuthType,
	password []byte,
) error {
	if err := authType.Validate(); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(
		ctx, walletID, domain.AuthTypePassword, password,
	); err != nil {
		return err
	}

	configured, err := s.configuredFactors(ctx, walletID)
	if err != nil {
		return err
	}
	if !configured[authType] {
		return fmt.Errorf("%w: %s factor is not configured", domain.ErrNotSupported, authType)
	}
	return s.setAuthType(ctx, walletID, authType)
}

// ClearAuthType brings the wallet back to password authentication.
func (s *Service) ClearAuthType(
	ctx context.Context, walletID string, password []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(
		ctx, walletID, domain.AuthTypePassword, password,
	); err != nil {
		return err
	}
	return s.setAuthType(ctx, walletID, domain.AuthTypePassword)
}

func (s *Service) authType(
	ctx context.Context, walletID string,
) (domain.AuthType, error) {
	raw, ok, err := s.store.Get(ctx, authTypeKey(walletID))
	if err != nil {
		return "", err
	}
	if !ok {
		return s.strongestFactor(ctx, walletID, "missing record")
	}

	var record authTypeRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return s.strongestFactor(ctx, walletID, "malformed record")
	}
	if err := record.AuthType.Validate(); err != nil {
		return s.strongestFactor(ctx, walletID, "unknown auth type")
	}
	key, err := s.integrity.key(ctx, false)
	if err != nil {
		return "", err
	}
	if !verifyTag(key, record.IntegrityTag, authTypeFields(walletID, record)...) {
		return s.strongestFactor(ctx, walletID, "integrity tag mismatch")
	}
	return record.AuthType, nil
}

func (s *Service) strongestFactor(
	ctx context.Context, walletID, reason string,
) (domain.AuthType, error) {
	configured, err := s.configuredFactors(ctx, walletID)
	if err != nil {
		return "", err
	}
	strongest := domain.AuthTypePassword
	for factor, ok := range configured {
		if ok && factor.Strength() > strongest.Strength() {
			strongest = factor
		}
	}
	log.WithField("wallet", walletID).Warnf(
		"untrusted auth type (%s), falling back to %s", reason, strongest,
	)
	return strongest, nil
}

func (s *Service) configuredFactors(
	ctx context.Context, walletID string,
) (map[domain.AuthType]bool, error) {
	configured := map[domain.AuthType]bool{domain.AuthTypePassword: true}

	hasPin, err := s.store.Exists(ctx, pinVaultKey(walletID))
	if err != nil {
		return nil, err
	}
	hasDevice, err := s.store.Exists(ctx, deviceVaultKey(walletID))
	if err != nil {
		return nil, err
	}
	configured[domain.AuthTypePin] = hasPin
	configured[domain.AuthTypeBiometric] = hasDevice
	return configured, nil
}

func (s *Service) setAuthType(
	ctx context.Context, walletID string, authType domain.AuthType,
) error {
	key, err := s.integrity.key(ctx, true)
	if err != nil {
		return err
	}
	record := authTypeRecord{
		AuthType:     authType,
		UpdatedAtUtc: s.clock.Now().UTC(),
	}
	record.IntegrityTag = tag(key, authTypeFields(walletID, record)...)

	buf, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, authTypeKey(walletID), string(buf))
}

// fallbackAuthType returns the strongest factor still configured, used
// after a factor has been disabled.
func (s *Service) fallbackAuthType(
	ctx context.Context, walletID string,
) (domain.AuthType, error) {
	configured, err := s.configuredFactors(ctx, walletID)
	if err != nil {
		return "", err
	}
	switch {
	case configured[domain.AuthTypeBiometric]:
		return domain.AuthTypeBiometric, nil
	case configured[domain.AuthTypePin]:
		return domain.AuthTypePin, nil
	default:
		return domain.AuthTypePassword, nil
	}
}
