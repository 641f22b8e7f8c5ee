package cardano

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

const (
	// HardenedKeyStart is the index at which a hardended key starts.
	HardenedKeyStart uint32 = 0x80000000
	// Purpose is the CIP-1852 purpose of Shelley wallets.
	Purpose uint32 = 1852
	// CoinType is the registered SLIP-44 coin type of ADA.
	CoinType uint32 = 1815
	// MaxAccountIndex is the max (unhardened) value of an account index.
	MaxAccountIndex = math.MaxUint32 - HardenedKeyStart
)

// Role is the 4th level of a CIP-1852 derivation path.
type Role uint32

const (
	// RoleExternal is used for receiving addresses.
	RoleExternal Role = 0
	// RoleInternal is used for change addresses.
	RoleInternal Role = 1
	// RoleStaking is used for the staking key.
	RoleStaking Role = 2
)

// DerivationPath is the internal representation of a hierarchical
// deterministic wallet path.
type DerivationPath []uint32

// AccountPath returns m/1852'/1815'/account'.
func AccountPath(account uint32) DerivationPath {
	return DerivationPath{
		HardenedKeyStart + Purpose,
		HardenedKeyStart + CoinType,
		HardenedKeyStart + account,
	}
}

// KeyPath returns m/1852'/1815'/account'/role/index.
func KeyPath(account uint32, role Role, index uint32) DerivationPath {
	return append(AccountPath(account), uint32(role), index)
}

// ParseDerivationPath converts a derivation path string to the
// internal binary representation.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strPath == "":
		return nil, ErrNullDerivationPath
	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath
	}
	if strings.TrimSpace(elems[0]) == "m" {
		elems = elems[1:]
	}

	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("invalid elem '%s' in path", elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("elem %v must be in range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("elem %v must be in hardened range [0, %d]", bigval, max)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// String converts a binary derivation path to its canonical representation.
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("m")
	for _, component := range path {
		hardened := component >= HardenedKeyStart
		if hardened {
			component -= HardenedKeyStart
		}
		fmt.Fprintf(&b, "/%d", component)
		if hardened {
			b.WriteString("'")
		}
	}
	return b.String()
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
