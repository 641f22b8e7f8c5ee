package cardano

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// VKeyWitness is a public key with its signature of the body hash.
type VKeyWitness struct {
	_         struct{} `cbor:",toarray"`
	VKey      []byte
	Signature []byte
}

// WitnessSet ...
type WitnessSet struct {
	VKeyWitnesses []VKeyWitness `cbor:"0,keyasint,omitempty"`
}

// Tx is a full transaction as serialized by the builder. The body and the
// auxiliary data are kept in their serialized form so that their hashes are
// stable across decode/encode round trips.
type Tx struct {
	_         struct{} `cbor:",toarray"`
	Body      cbor.RawMessage
	Witnesses WitnessSet
	IsValid   bool
	AuxData   cbor.RawMessage
}

// DecodeTx ...
func DecodeTx(data []byte) (*Tx, error) {
	tx := &Tx{}
	if err := cbor.Unmarshal(data, tx); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTx, err)
	}
	if len(tx.Body) == 0 {
		return nil, ErrInvalidTx
	}
	if len(tx.AuxData) == 0 {
		tx.AuxData = cborNull
	}
	return tx, nil
}

// ID returns the blake2b-256 hash of the serialized body.
func (tx *Tx) ID() []byte {
	return Blake2b256(tx.Body)
}

// Hash returns the hex encoded ID.
func (tx *Tx) Hash() string {
	return hex.EncodeToString(tx.ID())
}

// SetWitnesses replaces the vkey witnesses of the transaction. The body is
// left untouched, so the witnesses must sign ID.
func (tx *Tx) SetWitnesses(witnesses ...VKeyWitness) {
	tx.Witnesses.VKeyWitnesses = witnesses
}

// Bytes serializes the transaction.
func (tx *Tx) Bytes() ([]byte, error) {
	return encMode.Marshal(tx)
}

// TxHashFromBytes returns the hex id of a serialized transaction.
func TxHashFromBytes(data []byte) (string, error) {
	tx, err := DecodeTx(data)
	if err != nil {
		return "", err
	}
	return tx.Hash(), nil
}
