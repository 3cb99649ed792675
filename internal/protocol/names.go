package protocol

import (
	"strconv"
	"strings"
)

// Published name layout. A job prefix is serverPrefix + ":PROC-" + jobIndex + ":"
// and every value a job publishes is its prefix followed by a suffix or by an
// indexed marker.
const (
	JobPrefixMarker = ":PROC-"
	ControlSuffix   = ":CONTROL:"
	InputSuffix     = ":INPUT:"

	JobStateSuffix     = "JOBSTATE"
	LogSuffix          = "LOG"
	MessageSuffix      = "MSG"
	OutputValueSuffix  = "OUTVAL"
	BreakpointSuffix   = "BREAKPOINT"
	InputRequestSuffix = "INPUTREQ"

	InstructionMarker = "INSTR-"
	VariableMarker    = "VAR-"
)

// ValueKind classifies a published name.
type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindJobState
	KindInstruction
	KindVariable
	KindLog
	KindMessage
	KindOutputValue
	KindBreakpoint
	KindInputRequest
)

func (k ValueKind) String() string {
	switch k {
	case KindJobState:
		return "JobState"
	case KindInstruction:
		return "Instruction"
	case KindVariable:
		return "Variable"
	case KindLog:
		return "Log"
	case KindMessage:
		return "Message"
	case KindOutputValue:
		return "OutputValue"
	case KindBreakpoint:
		return "Breakpoint"
	case KindInputRequest:
		return "InputRequest"
	default:
		return "Unknown"
	}
}

var suffixKinds = []struct {
	suffix string
	kind   ValueKind
}{
	{JobStateSuffix, KindJobState},
	{LogSuffix, KindLog},
	{MessageSuffix, KindMessage},
	{OutputValueSuffix, KindOutputValue},
	{BreakpointSuffix, KindBreakpoint},
	{InputRequestSuffix, KindInputRequest},
}

var indexedKinds = []struct {
	marker string
	kind   ValueKind
}{
	{InstructionMarker, KindInstruction},
	{VariableMarker, KindVariable},
}

// JobPrefix returns the namespace of all values published for a job.
func JobPrefix(serverPrefix string, job uint32) string {
	return serverPrefix + JobPrefixMarker + strconv.FormatUint(uint64(job), 10) + ":"
}

// InfoServiceName is the identity of the read-only service.
func InfoServiceName(serverPrefix string) string {
	return serverPrefix
}

// ControlServiceName is the identity of the mutating service.
func ControlServiceName(serverPrefix string) string {
	return serverPrefix + ControlSuffix
}

// InputServiceName is the identity of the service accepting user replies.
func InputServiceName(serverPrefix string) string {
	return serverPrefix + InputSuffix
}

func JobStateName(prefix string) string     { return prefix + JobStateSuffix }
func LogName(prefix string) string          { return prefix + LogSuffix }
func MessageName(prefix string) string      { return prefix + MessageSuffix }
func OutputValueName(prefix string) string  { return prefix + OutputValueSuffix }
func BreakpointName(prefix string) string   { return prefix + BreakpointSuffix }
func InputRequestName(prefix string) string { return prefix + InputRequestSuffix }

func InstructionName(prefix string, index uint32) string {
	return prefix + InstructionMarker + strconv.FormatUint(uint64(index), 10)
}

func VariableName(prefix string, index uint32) string {
	return prefix + VariableMarker + strconv.FormatUint(uint64(index), 10)
}

// ParseValueName classifies a published name and extracts its index. Suffix
// names need a non-empty prefix and report index 0. Indexed names need a
// non-empty prefix and a canonical decimal index that fits in 32 bits.
func ParseValueName(name string) (ValueKind, uint32) {
	for _, s := range suffixKinds {
		if len(name) > len(s.suffix) && strings.HasSuffix(name, s.suffix) {
			return s.kind, 0
		}
	}
	for _, m := range indexedKinds {
		pos := strings.LastIndex(name, m.marker)
		if pos <= 0 {
			continue
		}
		if index, ok := parseIndex(name[pos+len(m.marker):]); ok {
			return m.kind, index
		}
	}
	return KindUnknown, 0
}

func parseIndex(digits string) (uint32, bool) {
	v, err := strconv.ParseUint(digits, 10, 32)
	if err != nil || strconv.FormatUint(v, 10) != digits {
		return 0, false
	}
	return uint32(v), true
}
