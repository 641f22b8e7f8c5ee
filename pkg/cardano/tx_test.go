package cardano

import (
	"crypto/ed25519"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func testTx(t *testing.T) *Tx {
	body, err := encMode.Marshal(map[uint64]interface{}{2: uint64(170000), 3: uint64(1000)})
	require.NoError(t, err)
	aux, err := encMode.Marshal(map[uint64]interface{}{1: "hello"})
	require.NoError(t, err)
	return &Tx{Body: body, IsValid: true, AuxData: aux}
}

func TestTxWitnesses(t *testing.T) {
	root, err := NewRootKeyFromMnemonic(testMnemonic)
	require.NoError(t, err)
	key := root.DerivePath(KeyPath(0, RoleExternal, 0))
	other := root.DerivePath(KeyPath(0, RoleExternal, 1))

	tx := testTx(t)
	id := tx.ID()
	tx.SetWitnesses(VKeyWitness{VKey: other.PublicKey(), Signature: other.Sign(id)})
	tx.SetWitnesses(VKeyWitness{VKey: key.PublicKey(), Signature: key.Sign(id)})
	key.Zero()
	other.Zero()

	buf, err := tx.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeTx(buf)
	require.NoError(t, err)
	require.Equal(t, id, decoded.ID())
	require.Equal(t, []byte(tx.AuxData), []byte(decoded.AuxData))
	require.Len(t, decoded.Witnesses.VKeyWitnesses, 1)

	w := decoded.Witnesses.VKeyWitnesses[0]
	require.True(t, ed25519.Verify(w.VKey, decoded.ID(), w.Signature))

	hash, err := TxHashFromBytes(buf)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), hash)
}

func TestDecodeTx(t *testing.T) {
	t.Run("without aux data", func(t *testing.T) {
		tx := testTx(t)
		tx.AuxData = nil
		buf, err := encMode.Marshal([]interface{}{
			cbor.RawMessage(tx.Body), map[uint64]interface{}{}, true, nil,
		})
		require.NoError(t, err)

		decoded, err := DecodeTx(buf)
		require.NoError(t, err)
		require.Equal(t, cborNull, decoded.AuxData)
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"not cbor", []byte{0x01}},
		{"empty", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTx(tt.data)
			require.ErrorIs(t, err, ErrInvalidTx)

			_, err = TxHashFromBytes(tt.data)
			require.ErrorIs(t, err, ErrInvalidTx)
		})
	}
}
