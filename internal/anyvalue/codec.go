package anyvalue

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Empty is the value used where no payload is present.
var Empty = cty.NilVal

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("anyvalue: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("anyvalue: CBOR decoder initialization failed: " + err.Error())
	}
}

type envelope struct {
	Empty bool   `cbor:"empty,omitempty"`
	Type  []byte `cbor:"type,omitempty"`
	Value []byte `cbor:"value,omitempty"`
}

// IsEmpty reports whether v carries no payload.
func IsEmpty(v cty.Value) bool {
	return v.Type() == cty.NilType
}

// Marshal encodes v together with its type.
func Marshal(v cty.Value) ([]byte, error) {
	if IsEmpty(v) {
		return encMode.Marshal(envelope{Empty: true})
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("anyvalue: cannot encode unknown value of type %s", v.Type().FriendlyName())
	}

	typeJSON, err := ctyjson.MarshalType(v.Type())
	if err != nil {
		return nil, fmt.Errorf("anyvalue: encode type: %w", err)
	}
	valueJSON, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, fmt.Errorf("anyvalue: encode value: %w", err)
	}

	return encMode.Marshal(envelope{Type: typeJSON, Value: valueJSON})
}

// Unmarshal decodes data produced by Marshal.
func Unmarshal(data []byte) (cty.Value, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return cty.NilVal, fmt.Errorf("anyvalue: decode envelope: %w", err)
	}
	if env.Empty {
		return Empty, nil
	}

	ty, err := ctyjson.UnmarshalType(env.Type)
	if err != nil {
		return cty.NilVal, fmt.Errorf("anyvalue: decode type: %w", err)
	}
	v, err := ctyjson.Unmarshal(env.Value, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("anyvalue: decode value: %w", err)
	}
	return v, nil
}

// Equal compares two values including their types. Empty equals only Empty.
func Equal(a, b cty.Value) bool {
	if IsEmpty(a) || IsEmpty(b) {
		return IsEmpty(a) && IsEmpty(b)
	}
	return a.RawEquals(b)
}

// Embed turns Empty into a typed null so it can be stored inside an object.
func Embed(v cty.Value) cty.Value {
	if IsEmpty(v) {
		return cty.NullVal(cty.DynamicPseudoType)
	}
	return v
}

// Extract reverses Embed.
func Extract(v cty.Value) cty.Value {
	if !IsEmpty(v) && v.IsNull() && v.Type() == cty.DynamicPseudoType {
		return Empty
	}
	return v
}
