package cardano

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Network is the network id carried in the low nibble of a Shelley address
// header.
type Network byte

const (
	// Testnet covers preprod, preview and any other test network.
	Testnet Network = 0
	// Mainnet ...
	Mainnet Network = 1
)

// Address header types, i.e. the high nibble of the first byte.
const (
	headerBase       byte = 0x00
	headerEnterprise byte = 0x60
	headerReward     byte = 0xe0
	headerByron      byte = 0x80
)

const (
	hrpAddrMainnet  = "addr"
	hrpAddrTestnet  = "addr_test"
	hrpStakeMainnet = "stake"
	hrpStakeTestnet = "stake_test"
)

// Address is a ledger address in its binary form.
type Address struct {
	raw []byte
}

// NewBaseAddress returns a key/key base address.
func NewBaseAddress(net Network, paymentKeyHash, stakeKeyHash []byte) (Address, error) {
	if len(paymentKeyHash) != KeyHashLen || len(stakeKeyHash) != KeyHashLen {
		return Address{}, ErrInvalidKeyHash
	}
	raw := make([]byte, 0, 1+2*KeyHashLen)
	raw = append(raw, headerBase|byte(net))
	raw = append(raw, paymentKeyHash...)
	raw = append(raw, stakeKeyHash...)
	return Address{raw}, nil
}

// NewEnterpriseAddress returns an address without delegation part.
func NewEnterpriseAddress(net Network, paymentKeyHash []byte) (Address, error) {
	if len(paymentKeyHash) != KeyHashLen {
		return Address{}, ErrInvalidKeyHash
	}
	raw := append([]byte{headerEnterprise | byte(net)}, paymentKeyHash...)
	return Address{raw}, nil
}

// NewRewardAddress returns the stake address of the given staking key hash.
func NewRewardAddress(net Network, stakeKeyHash []byte) (Address, error) {
	if len(stakeKeyHash) != KeyHashLen {
		return Address{}, ErrInvalidKeyHash
	}
	raw := append([]byte{headerReward | byte(net)}, stakeKeyHash...)
	return Address{raw}, nil
}

// AddressFromBytes wraps the binary form of an address as found on chain.
func AddressFromBytes(raw []byte) (Address, error) {
	if len(raw) == 0 {
		return Address{}, ErrInvalidAddress
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return Address{buf}, nil
}

// ParseAddress decodes a bech32 Shelley address or a base58 Byron one.
func ParseAddress(addr string) (Address, error) {
	if addr == "" {
		return Address{}, ErrInvalidAddress
	}

	if hrp, data, err := bech32.DecodeNoLimit(addr); err == nil {
		raw, err := bech32.ConvertBits(data, 5, 8, false)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
		}
		a := Address{raw}
		if len(raw) == 0 || a.hrp() != hrp {
			return Address{}, ErrInvalidAddress
		}
		return a, nil
	}

	raw := base58.Decode(addr)
	if len(raw) == 0 || raw[0]&0xf0 != headerByron {
		return Address{}, ErrInvalidAddress
	}
	return Address{raw}, nil
}

// Bytes returns a copy of the binary form of the address.
func (a Address) Bytes() []byte {
	buf := make([]byte, len(a.raw))
	copy(buf, a.raw)
	return buf
}

// IsByron ...
func (a Address) IsByron() bool {
	return len(a.raw) > 0 && a.raw[0]&0xf0 == headerByron
}

// IsReward ...
func (a Address) IsReward() bool {
	return len(a.raw) > 0 && a.raw[0]&0xf0 == headerReward
}

// Network returns the network id of a Shelley address. Byron addresses
// are always reported as mainnet.
func (a Address) Network() Network {
	if len(a.raw) == 0 || a.IsByron() {
		return Mainnet
	}
	return Network(a.raw[0] & 0x0f)
}

// PaymentKeyHash returns the payment credential of base and enterprise
// addresses, nil otherwise.
func (a Address) PaymentKeyHash() []byte {
	if len(a.raw) < 1+KeyHashLen {
		return nil
	}
	switch a.raw[0] & 0xf0 {
	case headerBase, headerEnterprise:
		return a.raw[1 : 1+KeyHashLen]
	default:
		return nil
	}
}

// Equal ...
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.raw, other.raw)
}

// String returns the bech32 encoding of Shelley addresses and the base58 one
// of Byron addresses.
func (a Address) String() string {
	if len(a.raw) == 0 {
		return ""
	}
	if a.IsByron() {
		return base58.Encode(a.raw)
	}
	conv, err := bech32.ConvertBits(a.raw, 8, 5, true)
	if err != nil {
		return ""
	}
	addr, err := bech32.Encode(a.hrp(), conv)
	if err != nil {
		return ""
	}
	return addr
}

func (a Address) hrp() string {
	prefix := hrpAddrMainnet
	if a.IsReward() {
		prefix = hrpStakeMainnet
	}
	if a.Network() == Testnet {
		prefix = prefix + "_test"
	}
	return prefix
}

// HasNetworkPrefix returns whether addr is a bech32 string for net.
func HasNetworkPrefix(addr string, net Network) bool {
	if net == Mainnet {
		return strings.HasPrefix(addr, hrpAddrMainnet+"1") ||
			strings.HasPrefix(addr, hrpStakeMainnet+"1")
	}
	return strings.HasPrefix(addr, hrpAddrTestnet+"1") ||
		strings.HasPrefix(addr, hrpStakeTestnet+"1")
}
