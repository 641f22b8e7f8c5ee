package cardano

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// TxOutput is a transaction output. On decoding it accepts every encoding
// the ledger used over its eras:
//   - Byron: [byron address structure, coin]
//   - Shelley to Alonzo: [address bytes, value (, datum hash)]
//   - Babbage onward: {0: address, 1: value, 2: datum option, 3: script ref}
//
// It is always encoded in the array form, valid in every era since Mary.
type TxOutput struct {
	Address   Address
	Amount    Value
	DatumHash []byte
}

// DecodeTxOutput decodes the native serialization of a transaction output.
func DecodeTxOutput(data []byte) (*TxOutput, error) {
	out := &TxOutput{}
	if err := out.UnmarshalCBOR(data); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalCBOR ...
func (o TxOutput) MarshalCBOR() ([]byte, error) {
	if len(o.Address.raw) == 0 {
		return nil, ErrInvalidAddress
	}
	fields := []interface{}{o.Address.raw, o.Amount}
	if len(o.DatumHash) > 0 {
		fields = append(fields, o.DatumHash)
	}
	return encMode.Marshal(fields)
}

// UnmarshalCBOR ...
func (o *TxOutput) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return ErrInvalidTxOutput
	}

	switch majorType(data) {
	case cborArray:
		return o.unmarshalLegacy(data)
	case cborMap:
		return o.unmarshalPostAlonzo(data)
	default:
		return ErrInvalidTxOutput
	}
}

func (o *TxOutput) unmarshalLegacy(data []byte) error {
	var fields []cbor.RawMessage
	if err := cbor.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTxOutput, err)
	}
	if len(fields) < 2 || len(fields) > 3 {
		return fmt.Errorf("%w: unexpected %d fields", ErrInvalidTxOutput, len(fields))
	}

	addr, err := decodeOutputAddress(fields[0])
	if err != nil {
		return err
	}
	var amount Value
	if err := amount.UnmarshalCBOR(fields[1]); err != nil {
		return err
	}
	var datumHash []byte
	if len(fields) == 3 {
		if err := cbor.Unmarshal(fields[2], &datumHash); err != nil {
			return fmt.Errorf("%w: datum hash: %s", ErrInvalidTxOutput, err)
		}
	}

	*o = TxOutput{Address: addr, Amount: amount, DatumHash: datumHash}
	return nil
}

func (o *TxOutput) unmarshalPostAlonzo(data []byte) error {
	var fields map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTxOutput, err)
	}
	rawAddr, ok := fields[0]
	if !ok {
		return fmt.Errorf("%w: missing address", ErrInvalidTxOutput)
	}
	rawAmount, ok := fields[1]
	if !ok {
		return fmt.Errorf("%w: missing value", ErrInvalidTxOutput)
	}

	addr, err := decodeOutputAddress(rawAddr)
	if err != nil {
		return err
	}
	var amount Value
	if err := amount.UnmarshalCBOR(rawAmount); err != nil {
		return err
	}

	// Only the hash variant of the datum option ([0, hash]) is retained.
	var datumHash []byte
	if rawDatum, ok := fields[2]; ok {
		var option struct {
			_    struct{} `cbor:",toarray"`
			Kind uint64
			Data cbor.RawMessage
		}
		if err := cbor.Unmarshal(rawDatum, &option); err != nil {
			return fmt.Errorf("%w: datum option: %s", ErrInvalidTxOutput, err)
		}
		if option.Kind == 0 {
			if err := cbor.Unmarshal(option.Data, &datumHash); err != nil {
				return fmt.Errorf("%w: datum hash: %s", ErrInvalidTxOutput, err)
			}
		}
	}

	*o = TxOutput{Address: addr, Amount: amount, DatumHash: datumHash}
	return nil
}

// decodeOutputAddress handles both the byte string form and the Byron
// structure, whose own encoding is the binary address.
func decodeOutputAddress(raw cbor.RawMessage) (Address, error) {
	if len(raw) == 0 {
		return Address{}, ErrInvalidAddress
	}
	switch majorType(raw) {
	case cborBytes:
		var buf []byte
		if err := cbor.Unmarshal(raw, &buf); err != nil {
			return Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
		}
		return AddressFromBytes(buf)
	case cborArray:
		return AddressFromBytes(raw)
	default:
		return Address{}, ErrInvalidAddress
	}
}
