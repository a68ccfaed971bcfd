package transport

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

// CBORSerializer provides a Serializer that uses deterministic CBOR encoding.
//
// It is the storage format of the bbolt credential cache & telemetry store.
// Decoded maps of unknown type are map[string]any, time.Time keeps nanoseconds.
type CBORSerializer struct{}

// Marshal encodes v using core deterministic encoding.
func (self CBORSerializer) Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal decodes data into v.
func (self CBORSerializer) Unmarshal(data []byte, v any) error {
	return cborDecMode.Unmarshal(data, v)
}

var _ Serializer = CBORSerializer{}

func init() {
	var err error
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	cborEncMode, err = encOpts.EncMode()
	if nil != err {
		panic(err)
	}
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if nil != err {
		panic(err)
	}
}
