package domain

import (
	"time"

	"github.com/zclconf/go-cty/cty"
)

// NamedValue is the unit of everything published to observers
type NamedValue struct {
	Name  string
	Value cty.Value
}

// InputRequestType distinguishes value requests from choice requests
type InputRequestType uint32

const (
	InputRequestValue InputRequestType = iota + 1
	InputRequestChoice
)

func (t InputRequestType) String() string {
	switch t {
	case InputRequestValue:
		return "value"
	case InputRequestChoice:
		return "choice"
	default:
		return "none"
	}
}

// UserInputRequest is raised from inside a running procedure
type UserInputRequest struct {
	ID       uint64
	Type     InputRequestType
	Metadata cty.Value
	Input    cty.Value
}

// UserInputReply answers a UserInputRequest
type UserInputReply struct {
	Result bool
	Value  cty.Value
}

// IsEmpty reports whether the reply carries no payload at all
func (r UserInputReply) IsEmpty() bool {
	return r.Value.IsNull()
}

// Severity levels for log entries, syslog ordering
const (
	SeverityEmergency = iota
	SeverityAlert
	SeverityCritical
	SeverityError
	SeverityWarning
	SeverityNotice
	SeverityInfo
	SeverityDebug
	SeverityTrace
)

// LogEntry is a single log line emitted by a running procedure
type LogEntry struct {
	Index     uint64
	Timestamp time.Time
	Severity  int
	Message   string
}

// OutputValue is a value put on display by a procedure
type OutputValue struct {
	Index       uint64
	Description string
	Value       cty.Value
}
