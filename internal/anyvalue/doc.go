// Package anyvalue carries the structured values exchanged by the server: every
// published job value and every protocol payload is a cty.Value, a dynamically
// typed value that travels together with its type.
//
// On the wire a value is a CBOR envelope holding the cty/json encodings of the
// type and of the value, so the receiving side can rebuild it without any
// schema agreed in advance.
package anyvalue
