package defs

import "time"

// Protocol constants
const (
	MagicNumber uint16 = 0xCAFE
	HeaderSize         = 8

	// Message types
	MsgRequest  byte = 0x01
	MsgResponse byte = 0x02
	MsgError    byte = 0x07

	// MaxPayloadSize bounds a single frame so a corrupt header cannot exhaust memory
	MaxPayloadSize = 16 << 20

	// Configuration constants
	ConnectionRetryDelay = 1 * time.Second
)

// Error codes carried by MsgError
const (
	ErrCodeMalformedPacket = 1008
	ErrCodeUnknownMessage  = 1016
)
