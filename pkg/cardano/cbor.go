package cardano

import "github.com/fxamacker/cbor/v2"

// CBOR major types.
const (
	cborUint  byte = 0
	cborBytes byte = 2
	cborArray byte = 4
	cborMap   byte = 5
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

func majorType(data []byte) byte {
	return data[0] >> 5
}

// cborNull is the encoding of a CBOR null.
var cborNull = cbor.RawMessage{0xf6}
