package anyvalue

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// FromNative converts plain Go data, as produced by a YAML or JSON decoder,
// into a cty value whose type is implied by the data.
func FromNative(v interface{}) (cty.Value, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("anyvalue: %w", err)
	}
	return FromJSON(buf)
}

// FromJSON builds a value from a JSON document, implying its type.
func FromJSON(buf []byte) (cty.Value, error) {
	ty, err := ctyjson.ImpliedType(buf)
	if err != nil {
		return cty.NilVal, fmt.Errorf("anyvalue: imply type: %w", err)
	}
	v, err := ctyjson.Unmarshal(buf, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("anyvalue: %w", err)
	}
	return v, nil
}

// ToJSON renders a value as plain JSON without its type.
func ToJSON(v cty.Value) ([]byte, error) {
	if IsEmpty(v) {
		return []byte("null"), nil
	}
	return ctyjson.Marshal(v, v.Type())
}

// ToNative converts a value into plain Go data: maps, slices, float64, string, bool.
func ToNative(v cty.Value) (interface{}, error) {
	buf, err := ToJSON(v)
	if err != nil {
		return nil, fmt.Errorf("anyvalue: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("anyvalue: %w", err)
	}
	return out, nil
}
