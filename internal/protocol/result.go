package protocol

import (
	"errors"
	"fmt"

	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

// Result is the outcome code carried by every reply.
type Result uint32

const (
	Success Result = iota
	ServerProtocolDecodingError
	ServerProtocolEncodingError
	ClientProtocolDecodingError
	NotSupported
)

// Application results.
const (
	UnknownJob Result = 1000 + iota
	UnknownInstruction
	UnknownJobCommand
	ClientReplyRefused
	Unauthorized
	TransportError
)

var resultNames = map[Result]string{
	Success:                     "Success",
	ServerProtocolDecodingError: "ServerProtocolDecodingError",
	ServerProtocolEncodingError: "ServerProtocolEncodingError",
	ClientProtocolDecodingError: "ClientProtocolDecodingError",
	NotSupported:                "NotSupported",
	UnknownJob:                  "UnknownJob",
	UnknownInstruction:          "UnknownInstruction",
	UnknownJobCommand:           "UnknownJobCommand",
	ClientReplyRefused:          "ClientReplyRefused",
	Unauthorized:                "Unauthorized",
	TransportError:              "TransportError",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", uint32(r))
}

// sentinel maps application results onto domain errors.
func (r Result) sentinel() error {
	switch r {
	case UnknownJob:
		return errs.UnknownJob
	case UnknownInstruction:
		return errs.UnknownInstruction
	case UnknownJobCommand:
		return errs.UnknownJobCommand
	case ClientReplyRefused:
		return errs.ReplyRefused
	case Unauthorized:
		return errs.Unauthorized
	default:
		return nil
	}
}

// ResultFromError maps a registry error onto a protocol result.
func ResultFromError(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, errs.UnknownJob):
		return UnknownJob
	case errors.Is(err, errs.UnknownInstruction):
		return UnknownInstruction
	case errors.Is(err, errs.UnknownJobCommand):
		return UnknownJobCommand
	case errors.Is(err, errs.ReplyRefused):
		return ClientReplyRefused
	case errors.Is(err, errs.Unauthorized):
		return Unauthorized
	default:
		return NotSupported
	}
}

// Error is raised by clients when a call does not succeed.
type Error struct {
	Function string
	Result   Result
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Function, e.Result, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Function, e.Result)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Result.sentinel()
}

// ResultOf extracts the result code of a client error.
func ResultOf(err error) Result {
	if err == nil {
		return Success
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Result
	}
	return TransportError
}
