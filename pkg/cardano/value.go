package cardano

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// MultiAsset maps policy id -> asset name -> quantity. Keys hold raw bytes.
type MultiAsset map[cbor.ByteString]map[cbor.ByteString]uint64

// AssetUnit identifies a native asset as policy id followed by asset name,
// both hex encoded.
type AssetUnit struct {
	PolicyID string
	Name     string
}

// String returns the concatenation of policy id and asset name in hex.
func (u AssetUnit) String() string {
	return u.PolicyID + u.Name
}

// Value is an amount of lovelace optionally bundled with native assets.
type Value struct {
	Coin   uint64
	Assets MultiAsset
}

// NewValue ...
func NewValue(coin uint64) Value {
	return Value{Coin: coin}
}

// AddAsset adds quantity of the given asset to v. Policy id and name are
// hex encoded.
func (v *Value) AddAsset(policyID, name string, quantity uint64) error {
	policy, err := hex.DecodeString(policyID)
	if err != nil || len(policy) != KeyHashLen {
		return fmt.Errorf("%w: policy id %q", ErrInvalidValue, policyID)
	}
	assetName, err := hex.DecodeString(name)
	if err != nil || len(assetName) > 32 {
		return fmt.Errorf("%w: asset name %q", ErrInvalidValue, name)
	}
	if quantity == 0 {
		return nil
	}
	if v.Assets == nil {
		v.Assets = make(MultiAsset)
	}
	p := cbor.ByteString(policy)
	if v.Assets[p] == nil {
		v.Assets[p] = make(map[cbor.ByteString]uint64)
	}
	v.Assets[p][cbor.ByteString(assetName)] += quantity
	return nil
}

// Quantity returns the amount held of the given unit.
func (v Value) Quantity(unit AssetUnit) uint64 {
	policy, _ := hex.DecodeString(unit.PolicyID)
	name, _ := hex.DecodeString(unit.Name)
	return v.Assets[cbor.ByteString(policy)][cbor.ByteString(name)]
}

// Units returns the sorted list of asset units held by v.
func (v Value) Units() []AssetUnit {
	units := make([]AssetUnit, 0)
	for policy, assets := range v.Assets {
		for name, qty := range assets {
			if qty == 0 {
				continue
			}
			units = append(units, AssetUnit{
				PolicyID: hex.EncodeToString([]byte(policy)),
				Name:     hex.EncodeToString([]byte(name)),
			})
		}
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].String() < units[j].String()
	})
	return units
}

// IsZero ...
func (v Value) IsZero() bool {
	return v.Coin == 0 && len(v.Units()) == 0
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := Value{Coin: v.Coin}
	for policy, assets := range v.Assets {
		for name, qty := range assets {
			out.addRaw(policy, name, qty)
		}
	}
	return out
}

func (v *Value) addRaw(policy, name cbor.ByteString, qty uint64) {
	if qty == 0 {
		return
	}
	if v.Assets == nil {
		v.Assets = make(MultiAsset)
	}
	if v.Assets[policy] == nil {
		v.Assets[policy] = make(map[cbor.ByteString]uint64)
	}
	v.Assets[policy][name] += qty
}

// MarshalCBOR encodes a pure-coin value as an unsigned integer and a
// multi-asset one as [coin, multiasset].
func (v Value) MarshalCBOR() ([]byte, error) {
	if len(v.Units()) == 0 {
		return encMode.Marshal(v.Coin)
	}
	return encMode.Marshal(multiAssetValue{Coin: v.Coin, Assets: v.Clone().Assets})
}

// UnmarshalCBOR accepts both encodings produced by MarshalCBOR.
func (v *Value) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return ErrInvalidValue
	}

	switch majorType(data) {
	case cborUint:
		var coin uint64
		if err := cbor.Unmarshal(data, &coin); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidValue, err)
		}
		*v = Value{Coin: coin}
		return nil
	case cborArray:
		var mav multiAssetValue
		if err := cbor.Unmarshal(data, &mav); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidValue, err)
		}
		*v = Value{Coin: mav.Coin, Assets: mav.Assets}
		return nil
	default:
		return ErrInvalidValue
	}
}

type multiAssetValue struct {
	_      struct{} `cbor:",toarray"`
	Coin   uint64
	Assets MultiAsset
}
