package anyvalue

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Field returns the attribute name of an object value.
func Field(v cty.Value, name string) (cty.Value, bool) {
	if IsEmpty(v) || v.IsNull() || !v.IsKnown() {
		return cty.NilVal, false
	}
	ty := v.Type()
	if !ty.IsObjectType() || !ty.HasAttribute(name) {
		return cty.NilVal, false
	}
	return v.GetAttr(name), true
}

func asNumber(v cty.Value, target interface{}) bool {
	if IsEmpty(v) || v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return false
	}
	return gocty.FromCtyValue(v, target) == nil
}

func numberField(v cty.Value, name string, target interface{}) bool {
	attr, ok := Field(v, name)
	return ok && asNumber(attr, target)
}

// AsUint32 decodes a number value as an unsigned 32-bit integer.
func AsUint32(v cty.Value) (uint32, bool) {
	var out uint32
	ok := asNumber(v, &out)
	return out, ok
}

// Uint32Field decodes an unsigned 32-bit attribute. Negative, fractional or
// out-of-range numbers are rejected.
func Uint32Field(v cty.Value, name string) (uint32, bool) {
	var out uint32
	ok := numberField(v, name, &out)
	return out, ok
}

// Uint64Field decodes an unsigned 64-bit attribute.
func Uint64Field(v cty.Value, name string) (uint64, bool) {
	var out uint64
	ok := numberField(v, name, &out)
	return out, ok
}

// Int64Field decodes a signed 64-bit attribute.
func Int64Field(v cty.Value, name string) (int64, bool) {
	var out int64
	ok := numberField(v, name, &out)
	return out, ok
}

// BoolField decodes a boolean attribute.
func BoolField(v cty.Value, name string) (bool, bool) {
	attr, ok := Field(v, name)
	if !ok || attr.IsNull() || !attr.IsKnown() || attr.Type() != cty.Bool {
		return false, false
	}
	return attr.True(), true
}

// StringField decodes a string attribute.
func StringField(v cty.Value, name string) (string, bool) {
	attr, ok := Field(v, name)
	if !ok || attr.IsNull() || !attr.IsKnown() || attr.Type() != cty.String {
		return "", false
	}
	return attr.AsString(), true
}
