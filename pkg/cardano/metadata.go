package cardano

import (
	"fmt"
	"math"
)

const maxMetadatumLen = 64

// Metadata is the transaction metadata keyed by label. Values can be
// integers, strings and byte slices of at most 64 bytes, lists and maps of
// those.
type Metadata map[uint64]interface{}

// Validate checks every value of the metadata.
func (m Metadata) Validate() error {
	for label, value := range m {
		if err := validateMetadatum(value); err != nil {
			return fmt.Errorf("label %d: %w", label, err)
		}
	}
	return nil
}

func validateMetadatum(value interface{}) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return nil
	case uint64:
		if v > math.MaxInt64 {
			return fmt.Errorf("%w: integer %d out of range", ErrInvalidMetadata, v)
		}
		return nil
	case string:
		if len(v) > maxMetadatumLen {
			return fmt.Errorf("%w: string longer than %d bytes", ErrInvalidMetadata, maxMetadatumLen)
		}
		return nil
	case []byte:
		if len(v) > maxMetadatumLen {
			return fmt.Errorf("%w: bytes longer than %d", ErrInvalidMetadata, maxMetadatumLen)
		}
		return nil
	case []interface{}:
		for _, item := range v {
			if err := validateMetadatum(item); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		for key, item := range v {
			if err := validateMetadatum(key); err != nil {
				return err
			}
			if err := validateMetadatum(item); err != nil {
				return err
			}
		}
		return nil
	case map[interface{}]interface{}:
		for key, item := range v {
			if err := validateMetadatum(key); err != nil {
				return err
			}
			if err := validateMetadatum(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidMetadata, value)
	}
}
