package serializer

import (
	"fmt"

	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using CBOR (RFC 8949).
// Field names follow the json tags of common.Message, times are encoded as RFC 3339 strings
// with nanosecond precision.
func NewCBORSerializer() IRPCSerializer {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid cbor encoding options: %v", err))
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("invalid cbor decoding options: %v", err))
	}
	return &cborSerializerImpl{enc: enc, dec: dec}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c *cborSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return c.enc.Marshal(msg)
}

func (c *cborSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	return c.dec.Unmarshal(b, msg)
}
