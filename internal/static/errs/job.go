package errs

import "errors"

var (
	UnknownJob         = errors.New("unknown job")
	UnknownInstruction = errors.New("unknown instruction")
	UnknownJobCommand  = errors.New("unknown job command")
	UnknownVariable    = errors.New("unknown variable")
	ReplyRefused       = errors.New("client reply refused")
)
