package vault

import (
	"context"
	"crypto/rand"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/pkg/vaultcrypto"
)

const deviceKeyLen = 32

// EnablePin lets the wallet be unlocked with pin. The password is encrypted
// with the PIN, so unlocking with the PIN first recovers the password and
// then the seed.
func (s *Service) EnablePin(
	ctx context.Context, walletID string, password, pin []byte,
) error {
	if len(pin) <= 0 {
		return vaultcrypto.ErrNullSecret
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(ctx, walletID, domain.AuthTypePassword, password); err != nil {
		return err
	}

	if err := s.writeVault(
		ctx, pinVaultKey(walletID), walletID,
		vaultcrypto.PurposePinProtectedPassword, password, pin,
	); err != nil {
		return err
	}
	if err := s.writeVerifier(ctx, walletID, domain.AuthTypePin, pin); err != nil {
		return err
	}
	if err := s.setAuthType(ctx, walletID, domain.AuthTypePin); err != nil {
		return err
	}

	log.WithField("wallet", walletID).Debug("pin enabled")
	return nil
}

// DisablePin removes the PIN factor.
func (s *Service) DisablePin(
	ctx context.Context, walletID string, password []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(ctx, walletID, domain.AuthTypePassword, password); err != nil {
		return err
	}
	return s.removePin(ctx, walletID)
}

// EnableDeviceBound encrypts the seed with a random key kept by the device
// secure store. The vault is bound to biometrics if the device supports
// them, otherwise to the device passcode.
func (s *Service) EnableDeviceBound(
	ctx context.Context, walletID string, password []byte,
) error {
	if s.device == nil {
		return domain.ErrNotSupported
	}
	caps := s.device.Capabilities(ctx)
	if !caps.SupportsBiometric && !caps.SupportsPin {
		return domain.ErrNotSupported
	}
	purpose := vaultcrypto.PurposePinProtectedSeed
	if caps.SupportsBiometric {
		purpose = vaultcrypto.PurposeBiometricSeed
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.requireVault(ctx, walletID); err != nil {
		return err
	}
	if err := s.guard.Check(ctx, walletID); err != nil {
		return err
	}
	seed, err := s.decryptSeed(ctx, walletID, password)
	if err := s.registerAttempt(ctx, walletID, domain.AuthTypePassword, err); err != nil {
		return err
	}
	defer clear(seed)

	deviceKey := make([]byte, deviceKeyLen)
	defer clear(deviceKey)
	if _, err := rand.Read(deviceKey); err != nil {
		return err
	}
	if err := s.device.StoreSecure(ctx, deviceKeyKey(walletID), deviceKey); err != nil {
		return fmt.Errorf("failed to store device key: %w", err)
	}
	if err := s.writeVault(
		ctx, deviceVaultKey(walletID), walletID, purpose, seed, deviceKey,
	); err != nil {
		return err
	}
	if err := s.setAuthType(ctx, walletID, domain.AuthTypeBiometric); err != nil {
		return err
	}

	log.WithField("wallet", walletID).Debugf("device bound storage enabled (%s)", purpose)
	return nil
}

// DisableDeviceBound removes the device bound vault and key.
func (s *Service) DisableDeviceBound(
	ctx context.Context, walletID string, password []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.authenticate(ctx, walletID, domain.AuthTypePassword, password); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, deviceVaultKey(walletID)); err != nil {
		return err
	}
	if s.device != nil {
		if err := s.device.RemoveSecure(ctx, deviceKeyKey(walletID)); err != nil {
			return err
		}
	}
	return s.resetAuthTypeIf(ctx, walletID, domain.AuthTypeBiometric)
}

// IsPinEnabled ...
func (s *Service) IsPinEnabled(ctx context.Context, walletID string) (bool, error) {
	return s.store.Exists(ctx, pinVaultKey(walletID))
}

// IsDeviceBoundEnabled ...
func (s *Service) IsDeviceBoundEnabled(ctx context.Context, walletID string) (bool, error) {
	return s.store.Exists(ctx, deviceVaultKey(walletID))
}

func (s *Service) removePin(ctx context.Context, walletID string) error {
	if err := s.store.Remove(ctx, pinVaultKey(walletID)); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, verifierKey(walletID, domain.AuthTypePin)); err != nil {
		return err
	}
	return s.resetAuthTypeIf(ctx, walletID, domain.AuthTypePin)
}

// resetAuthTypeIf moves the wallet to the strongest remaining factor if the
// current one is the removed factor.
func (s *Service) resetAuthTypeIf(
	ctx context.Context, walletID string, removed domain.AuthType,
) error {
	current, err := s.authType(ctx, walletID)
	if err != nil {
		return err
	}
	if current != removed {
		return nil
	}
	fallback, err := s.fallbackAuthType(ctx, walletID)
	if err != nil {
		return err
	}
	return s.setAuthType(ctx, walletID, fallback)
}

func (s *Service) decryptSeedWithPin(
	ctx context.Context, walletID string, pin []byte,
) ([]byte, error) {
	password, err := s.readAndDecrypt(ctx, pinVaultKey(walletID), pin)
	if err != nil {
		return nil, err
	}
	defer clear(password)

	return s.decryptSeed(ctx, walletID, password)
}

func (s *Service) decryptDeviceSeed(
	ctx context.Context, walletID, reason string,
) ([]byte, error) {
	if s.device == nil {
		return nil, domain.ErrNotSupported
	}
	if reason == "" {
		reason = defaultUnlockReason
	}
	deviceKey, err := s.device.RetrieveSecure(ctx, deviceKeyKey(walletID), reason)
	if err != nil {
		return nil, err
	}
	if len(deviceKey) <= 0 {
		return nil, domain.ErrAuthentication
	}
	defer clear(deviceKey)

	return s.readAndDecrypt(ctx, deviceVaultKey(walletID), deviceKey)
}
