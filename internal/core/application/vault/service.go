package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/custody/internal/core/domain"
	"github.com/tdex-network/custody/internal/core/ports"
	"github.com/tdex-network/custody/pkg/stats"
	"github.com/tdex-network/custody/pkg/vaultcrypto"
)

const defaultUnlockReason = "Unlock your wallet"

// ServiceOpts ...
type ServiceOpts struct {
	// Store is the secure variant of the key-value store.
	Store ports.KVStore
	// Device is optional, without it device bound storage is not supported.
	Device ports.DeviceSecureStore
	Clock  clock.Clock
	// KDFTable overrides the default KDF params. Only meant for tests.
	KDFTable vaultcrypto.KDFTable
}

func (o ServiceOpts) validate() error {
	if o.Store == nil {
		return fmt.Errorf("missing secure store")
	}
	return nil
}

// Service implements ports.VaultStore. Authentication attempts are
// serialized so that concurrent failures are all counted.
type Service struct {
	store     ports.KVStore
	device    ports.DeviceSecureStore
	clock     clock.Clock
	kdfTable  vaultcrypto.KDFTable
	guard     *LockoutGuard
	integrity *localKey
	apiKeys   *localKey

	lock sync.Mutex
}

// NewService ...
func NewService(opts ServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	kdfTable := opts.KDFTable
	if kdfTable == nil {
		kdfTable = vaultcrypto.DefaultKDFTable()
	}
	guard := NewLockoutGuard(opts.Store, clk)

	return &Service{
		store:     opts.Store,
		device:    opts.Device,
		clock:     clk,
		kdfTable:  kdfTable,
		guard:     guard,
		integrity: guard.integrity,
		apiKeys:   newLocalKey(opts.Store, providerKeyKey),
	}, nil
}

// Guard ...
func (s *Service) Guard() *LockoutGuard {
	return s.guard
}

// CreateVault encrypts the mnemonic with the password and sets password as
// the wallet's auth type.
func (s *Service) CreateVault(
	ctx context.Context, walletID string, mnemonic, password []byte,
) error {
	if len(mnemonic) <= 0 {
		return vaultcrypto.ErrNullPlainText
	}
	if len(password) <= 0 {
		return domain.ErrNullPassword
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	exists, err := s.store.Exists(ctx, vaultKey(walletID))
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrVaultAlreadyExists
	}

	if err := s.writeVault(
		ctx, vaultKey(walletID), walletID, vaultcrypto.PurposeMnemonic,
		mnemonic, password,
	); err != nil {
		return err
	}
	if err := s.writeVerifier(
		ctx, walletID, domain.AuthTypePassword, password,
	); err != nil {
		return err
	}
	if err := s.setAuthType(ctx, walletID, domain.AuthTypePassword); err != nil {
		return err
	}
	if err := s.guard.Init(ctx, walletID); err != nil {
		return err
	}

	log.WithField("wallet", walletID).Debug("vault created")
	return nil
}

// HasVault ...
func (s *Service) HasVault(ctx context.Context, walletID string) (bool, error) {
	return s.store.Exists(ctx, vaultKey(walletID))
}

// UnlockVault decrypts the seed of the wallet with the given secret. The
// requested auth type must match the configured one. The returned seed is
// owned by the caller.
func (s *Service) UnlockVault(
	ctx context.Context, walletID string, secret []byte, authType domain.AuthType,
) (*domain.SecretSeed, error) {
	if err := authType.Validate(); err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.requireVault(ctx, walletID); err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, walletID); err != nil {
		return nil, err
	}

	configured, err := s.authType(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if configured != authType {
		return nil, fmt.Errorf(
			"%w: wallet requires %s", domain.ErrAuthTypeMismatch, configured,
		)
	}

	var seed []byte
	switch authType {
	case domain.AuthTypePassword:
		seed, err = s.decryptSeed(ctx, walletID, secret)
	case domain.AuthTypePin:
		seed, err = s.decryptSeedWithPin(ctx, walletID, secret)
	case domain.AuthTypeBiometric:
		seed, err = s.decryptDeviceSeed(ctx, walletID, string(secret))
	}
	if err := s.registerAttempt(ctx, walletID, authType, err); err != nil {
		clear(seed)
		return nil, err
	}
	return domain.NewSecretSeed(seed), nil
}

// VerifyPassword checks the password against the stored verifier without
// decrypting the seed.
func (s *Service) VerifyPassword(
	ctx context.Context, walletID string, password []byte,
) error {
	return s.verifySecret(ctx, walletID, domain.AuthTypePassword, password)
}

// VerifyPin ...
func (s *Service) VerifyPin(
	ctx context.Context, walletID string, pin []byte,
) error {
	return s.verifySecret(ctx, walletID, domain.AuthTypePin, pin)
}

// ChangePassword re-encrypts the seed with the new password. The PIN factor,
// which wraps the old password, is disabled.
func (s *Service) ChangePassword(
	ctx context.Context, walletID string, oldPassword, newPassword []byte,
) error {
	if len(newPassword) <= 0 {
		return domain.ErrNullPassword
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.requireVault(ctx, walletID); err != nil {
		return err
	}
	if err := s.guard.Check(ctx, walletID); err != nil {
		return err
	}

	seed, err := s.decryptSeed(ctx, walletID, oldPassword)
	if err := s.registerAttempt(ctx, walletID, domain.AuthTypePassword, err); err != nil {
		return err
	}
	defer clear(seed)

	if err := s.writeVault(
		ctx, vaultKey(walletID), walletID, vaultcrypto.PurposeMnemonic,
		seed, newPassword,
	); err != nil {
		return err
	}
	if err := s.writeVerifier(
		ctx, walletID, domain.AuthTypePassword, newPassword,
	); err != nil {
		return err
	}
	if err := s.removePin(ctx, walletID); err != nil {
		return err
	}

	log.WithField("wallet", walletID).Debug("password changed")
	return nil
}

// DeleteVault removes every secret of the wallet, device bound ones
// included.
func (s *Service) DeleteVault(ctx context.Context, walletID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.requireVault(ctx, walletID); err != nil {
		return err
	}
	for _, key := range walletKeys(walletID) {
		if err := s.store.Remove(ctx, key); err != nil {
			return err
		}
	}
	if s.device != nil {
		if err := s.device.RemoveSecure(ctx, deviceKeyKey(walletID)); err != nil {
			return err
		}
	}

	log.WithField("wallet", walletID).Debug("vault deleted")
	return nil
}

func (s *Service) verifySecret(
	ctx context.Context, walletID string, factor domain.AuthType, secret []byte,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.authenticate(ctx, walletID, factor, secret)
}

// authenticate checks secret against the verifier of factor under the
// lockout guard. The caller must hold s.lock.
func (s *Service) authenticate(
	ctx context.Context, walletID string, factor domain.AuthType, secret []byte,
) error {
	if err := s.requireVault(ctx, walletID); err != nil {
		return err
	}
	if err := s.guard.Check(ctx, walletID); err != nil {
		return err
	}

	verifier, err := s.readVerifier(ctx, walletID, factor)
	if err != nil {
		return err
	}
	ok, err := verifier.Verify(secret)
	if err != nil && !errors.Is(err, vaultcrypto.ErrNullSecret) {
		return mapCryptoError(err)
	}
	if !ok {
		err = domain.ErrAuthentication
	}
	return s.registerAttempt(ctx, walletID, factor, err)
}

// registerAttempt updates the lockout state according to the outcome of an
// authentication. Only authentication failures count as failed attempts,
// other errors are returned as they are.
func (s *Service) registerAttempt(
	ctx context.Context, walletID string, factor domain.AuthType, err error,
) error {
	if err == nil {
		stats.RecordUnlockAttempt(string(factor), true)
		return s.guard.Reset(ctx, walletID)
	}
	if !errors.Is(err, domain.ErrAuthentication) {
		return err
	}

	stats.RecordUnlockAttempt(string(factor), false)
	if _, gerr := s.guard.RegisterFailure(ctx, walletID); gerr != nil {
		return gerr
	}
	return domain.ErrAuthentication
}

func (s *Service) requireVault(ctx context.Context, walletID string) error {
	exists, err := s.store.Exists(ctx, vaultKey(walletID))
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrVaultNotFound
	}
	return nil
}

func (s *Service) decryptSeed(
	ctx context.Context, walletID string, password []byte,
) ([]byte, error) {
	return s.readAndDecrypt(ctx, vaultKey(walletID), password)
}

func (s *Service) readAndDecrypt(
	ctx context.Context, key string, password []byte,
) ([]byte, error) {
	vault, err := s.readVault(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(password) <= 0 {
		return nil, domain.ErrAuthentication
	}

	plaintext, err := vaultcrypto.Decrypt(vaultcrypto.DecryptOpts{
		Vault:    vault,
		Password: password,
		KDFTable: s.kdfTable,
	})
	if err != nil {
		return nil, mapCryptoError(err)
	}
	return plaintext, nil
}

func (s *Service) readVault(
	ctx context.Context, key string,
) (*vaultcrypto.EncryptedVault, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrVaultNotFound
	}
	vault := &vaultcrypto.EncryptedVault{}
	if err := json.Unmarshal([]byte(raw), vault); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStoredData, err)
	}
	return vault, nil
}

func (s *Service) writeVault(
	ctx context.Context, key, subject string, purpose vaultcrypto.Purpose,
	plaintext, password []byte,
) error {
	vault, err := vaultcrypto.Encrypt(vaultcrypto.EncryptOpts{
		SubjectID: subjectID(subject),
		Purpose:   purpose,
		PlainText: plaintext,
		Password:  password,
		KDFTable:  s.kdfTable,
	})
	if err != nil {
		return err
	}
	buf, err := json.Marshal(vault)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, string(buf))
}

func (s *Service) readVerifier(
	ctx context.Context, walletID string, factor domain.AuthType,
) (*vaultcrypto.VerifierPayload, error) {
	raw, ok, err := s.store.Get(ctx, verifierKey(walletID, factor))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrVerifierNotFound
	}
	verifier := &vaultcrypto.VerifierPayload{}
	if err := json.Unmarshal([]byte(raw), verifier); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStoredData, err)
	}
	return verifier, nil
}

func (s *Service) writeVerifier(
	ctx context.Context, walletID string, factor domain.AuthType, secret []byte,
) error {
	params, err := s.kdfTable.Params(vaultcrypto.CurrentVersion)
	if err != nil {
		return err
	}
	verifier, err := vaultcrypto.NewVerifier(secret, params)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(verifier)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, verifierKey(walletID, factor), string(buf))
}

// mapCryptoError keeps authentication failures as they are and normalizes
// any format or version error into ErrInvalidStoredData.
func mapCryptoError(err error) error {
	switch {
	case errors.Is(err, vaultcrypto.ErrAuthentication):
		return domain.ErrAuthentication
	case errors.Is(err, vaultcrypto.ErrUnsupportedVersion),
		errors.Is(err, vaultcrypto.ErrInvalidData),
		errors.Is(err, vaultcrypto.ErrInvalidPurpose),
		errors.Is(err, vaultcrypto.ErrNullSubjectID):
		return fmt.Errorf("%w: %w", domain.ErrInvalidStoredData, err)
	default:
		return err
	}
}
