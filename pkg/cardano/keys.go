package cardano

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"filippo.io/edwards25519"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyHashLen is the length of a blake2b-224 key hash.
	KeyHashLen = 28
	// PublicKeyLen ...
	PublicKeyLen = 32
	// SignatureLen ...
	SignatureLen = 64

	icarusIterations = 4096
	xprvLen          = 96
)

// ExtendedKey is a BIP32-Ed25519 extended private key: the 64 byte expanded
// secret (kL, kR) plus the 32 byte chain code.
type ExtendedKey struct {
	kL        [32]byte
	kR        [32]byte
	chainCode [32]byte
}

// NewRootKeyFromEntropy derives the Icarus master key from BIP-39 entropy.
func NewRootKeyFromEntropy(entropy []byte) (*ExtendedKey, error) {
	if len(entropy) < 16 || len(entropy) > 32 {
		return nil, ErrInvalidEntropy
	}

	buf := pbkdf2.Key([]byte{}, entropy, icarusIterations, xprvLen, sha512.New)
	defer clear(buf)

	buf[0] &= 0xf8
	buf[31] &= 0x1f
	buf[31] |= 0x40

	key := &ExtendedKey{}
	copy(key.kL[:], buf[:32])
	copy(key.kR[:], buf[32:64])
	copy(key.chainCode[:], buf[64:])
	return key, nil
}

// NewRootKeyFromMnemonic validates the mnemonic and derives the Icarus master
// key from its entropy.
func NewRootKeyFromMnemonic(mnemonic string) (*ExtendedKey, error) {
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	defer clear(entropy)

	return NewRootKeyFromEntropy(entropy)
}

// Derive returns the child key at the given index. Indexes from
// HardenedKeyStart onward produce hardened children.
func (k *ExtendedKey) Derive(index uint32) *ExtendedKey {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)

	zMac := hmac.New(sha512.New, k.chainCode[:])
	ccMac := hmac.New(sha512.New, k.chainCode[:])
	if index >= HardenedKeyStart {
		zMac.Write([]byte{0x00})
		zMac.Write(k.kL[:])
		zMac.Write(k.kR[:])
		ccMac.Write([]byte{0x01})
		ccMac.Write(k.kL[:])
		ccMac.Write(k.kR[:])
	} else {
		pubkey := k.PublicKey()
		zMac.Write([]byte{0x02})
		zMac.Write(pubkey)
		ccMac.Write([]byte{0x03})
		ccMac.Write(pubkey)
	}
	zMac.Write(idx[:])
	ccMac.Write(idx[:])

	z := zMac.Sum(nil)
	defer clear(z)
	cc := ccMac.Sum(nil)
	defer clear(cc)

	child := &ExtendedKey{}
	add28Mul8(child.kL[:], k.kL[:], z[:28])
	add256(child.kR[:], k.kR[:], z[32:])
	copy(child.chainCode[:], cc[32:])
	return child
}

// DerivePath derives every step of path starting from k. Intermediate keys
// are wiped.
func (k *ExtendedKey) DerivePath(path DerivationPath) *ExtendedKey {
	current := k
	for _, step := range path {
		next := current.Derive(step)
		if current != k {
			current.Zero()
		}
		current = next
	}
	if current == k {
		cp := *k
		return &cp
	}
	return current
}

// PublicKey returns the 32 byte Ed25519 public key A = kL·B.
func (k *ExtendedKey) PublicKey() []byte {
	s := k.scalar()
	return new(edwards25519.Point).ScalarBaseMult(s).Bytes()
}

// PublicKeyHash returns the blake2b-224 hash of the public key.
func (k *ExtendedKey) PublicKeyHash() []byte {
	return Blake2b224(k.PublicKey())
}

// Sign produces an Ed25519 signature of message that verifies against
// PublicKey with any standard Ed25519 implementation.
func (k *ExtendedKey) Sign(message []byte) []byte {
	pubkey := k.PublicKey()

	h := sha512.New()
	h.Write(k.kR[:])
	h.Write(message)
	nonce := h.Sum(nil)
	defer clear(nonce)
	r, _ := edwards25519.NewScalar().SetUniformBytes(nonce)
	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(R)
	h.Write(pubkey)
	h.Write(message)
	hram, _ := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))

	S := edwards25519.NewScalar().MultiplyAdd(hram, k.scalar(), r)

	sig := make([]byte, 0, SignatureLen)
	sig = append(sig, R...)
	return append(sig, S.Bytes()...)
}

// Zero wipes the key material.
func (k *ExtendedKey) Zero() {
	clear(k.kL[:])
	clear(k.kR[:])
	clear(k.chainCode[:])
}

// scalar reduces kL modulo the group order. kL·B is unchanged by the
// reduction since B has order l.
func (k *ExtendedKey) scalar() *edwards25519.Scalar {
	var wide [64]byte
	copy(wide[:32], k.kL[:])
	s, _ := edwards25519.NewScalar().SetUniformBytes(wide[:])
	clear(wide[:])
	return s
}

// add28Mul8 computes kL + 8·zL where zL is 28 bytes, little endian.
func add28Mul8(out, kL, zL []byte) {
	var carry uint16
	for i := 0; i < 28; i++ {
		r := uint16(kL[i]) + uint16(zL[i])<<3 + carry
		out[i] = byte(r)
		carry = r >> 8
	}
	for i := 28; i < 32; i++ {
		r := uint16(kL[i]) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
}

// add256 computes x + y mod 2^256, little endian.
func add256(out, x, y []byte) {
	var carry uint16
	for i := 0; i < 32; i++ {
		r := uint16(x[i]) + uint16(y[i]) + carry
		out[i] = byte(r)
		carry = r >> 8
	}
}

// Blake2b224 ...
func Blake2b224(data []byte) []byte {
	h, _ := blake2b.New(KeyHashLen, nil)
	h.Write(data)
	return h.Sum(nil)
}

// Blake2b256 ...
func Blake2b256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}
