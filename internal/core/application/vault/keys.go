package vault

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tdex-network/custody/internal/core/domain"
)

const (
	customConfigsKey = "custom_configs"
	integrityKeyKey  = "integrity_key"
	providerKeyKey   = "provider_key"
)

func vaultKey(walletID string) string {
	return fmt.Sprintf("vault_%s", walletID)
}

func verifierKey(walletID string, factor domain.AuthType) string {
	return fmt.Sprintf("verifier_%s_%s", walletID, factor)
}

func pinVaultKey(walletID string) string {
	return fmt.Sprintf("pin_vault_%s", walletID)
}

func deviceVaultKey(walletID string) string {
	return fmt.Sprintf("device_vault_%s", walletID)
}

func deviceKeyKey(walletID string) string {
	return fmt.Sprintf("device_key_%s", walletID)
}

func authTypeKey(walletID string) string {
	return fmt.Sprintf("auth_type_%s", walletID)
}

func lockoutKey(walletID string) string {
	return fmt.Sprintf("lockout_%s", walletID)
}

func apiKeyKey(configID string) string {
	return fmt.Sprintf("api_key_%s", configID)
}

// walletKeys lists every record owned by a wallet.
func walletKeys(walletID string) []string {
	return []string{
		vaultKey(walletID),
		verifierKey(walletID, domain.AuthTypePassword),
		verifierKey(walletID, domain.AuthTypePin),
		pinVaultKey(walletID),
		deviceVaultKey(walletID),
		authTypeKey(walletID),
		lockoutKey(walletID),
	}
}

// subjectID returns the id bound into the vaults of a wallet. Wallet ids are
// uuids, any other string is mapped to a name based uuid.
func subjectID(id string) uuid.UUID {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
}
