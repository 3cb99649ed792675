package defs

import (
	"github.com/google/uuid"
)

// Protocol data structures, CBOR encoded
type (

	// RequestPacket addresses one request to a service identity
	RequestPacket struct {
		ID      uuid.UUID `cbor:"id"`
		Service string    `cbor:"service"`
		Token   string    `cbor:"token,omitempty"`
		Body    []byte    `cbor:"body"`
	}

	// ResponsePacket carries the reply to the request with the same ID
	ResponsePacket struct {
		ID   uuid.UUID `cbor:"id"`
		Body []byte    `cbor:"body"`
	}

	// ErrorData represents data sent with error responses
	ErrorData struct {
		Code    int    `cbor:"code"`
		Message string `cbor:"message"`
	}
)
