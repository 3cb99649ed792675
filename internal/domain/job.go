package domain

import "fmt"

// JobState represents the execution state of a job
type JobState uint32

const (
	JobStateInitial JobState = iota
	JobStateRunning
	JobStateStepping
	JobStatePaused
	JobStateSucceeded
	JobStateFailed
	JobStateHalted
)

var jobStateNames = [...]string{
	JobStateInitial:   "Initial",
	JobStateRunning:   "Running",
	JobStateStepping:  "Stepping",
	JobStatePaused:    "Paused",
	JobStateSucceeded: "Succeeded",
	JobStateFailed:    "Failed",
	JobStateHalted:    "Halted",
}

func (s JobState) String() string {
	if int(s) < len(jobStateNames) {
		return jobStateNames[s]
	}
	return fmt.Sprintf("JobState(%d)", uint32(s))
}

// IsFinished reports whether the state ends a run. Only Reset leaves it.
func (s JobState) IsFinished() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateHalted
}

// JobCommand is a control command for a job
type JobCommand uint32

const (
	JobCommandStart JobCommand = iota
	JobCommandStep
	JobCommandPause
	JobCommandReset
	JobCommandHalt

	// JobCommandTerminate is internal to controller teardown and cannot be sent remotely.
	JobCommandTerminate
)

// NumberOfRemoteCommands bounds the command codes accepted over the control protocol.
const NumberOfRemoteCommands = uint32(JobCommandTerminate)

var jobCommandNames = [...]string{
	JobCommandStart:     "start",
	JobCommandStep:      "step",
	JobCommandPause:     "pause",
	JobCommandReset:     "reset",
	JobCommandHalt:      "halt",
	JobCommandTerminate: "terminate",
}

func (c JobCommand) String() string {
	if int(c) < len(jobCommandNames) {
		return jobCommandNames[c]
	}
	return fmt.Sprintf("JobCommand(%d)", uint32(c))
}

// ParseJobCommand maps a remote command name to its code
func ParseJobCommand(name string) (JobCommand, bool) {
	for i := uint32(0); i < NumberOfRemoteCommands; i++ {
		if jobCommandNames[i] == name {
			return JobCommand(i), true
		}
	}
	return 0, false
}

// ExecutionStatus represents the execution status of a single instruction
type ExecutionStatus uint32

const (
	StatusNotStarted ExecutionStatus = iota
	StatusNotFinished
	StatusSuccess
	StatusFailure
)

var executionStatusNames = [...]string{
	StatusNotStarted:  "NotStarted",
	StatusNotFinished: "NotFinished",
	StatusSuccess:     "Success",
	StatusFailure:     "Failure",
}

func (s ExecutionStatus) String() string {
	if int(s) < len(executionStatusNames) {
		return executionStatusNames[s]
	}
	return fmt.Sprintf("ExecutionStatus(%d)", uint32(s))
}

// IsFinished reports whether the instruction completed, either way.
func (s ExecutionStatus) IsFinished() bool {
	return s == StatusSuccess || s == StatusFailure
}

// InstructionState is the published state of one indexed instruction
type InstructionState struct {
	Status     ExecutionStatus `json:"execStatus"`
	Breakpoint bool            `json:"breakpoint"`
}

// Attribute is a single named string attribute of an instruction or variable
type Attribute struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// InstructionInfo describes the static structure of an instruction subtree
type InstructionInfo struct {
	Type       string             `json:"type"`
	Index      uint32             `json:"index"`
	Attributes []Attribute        `json:"attributes"`
	Children   []*InstructionInfo `json:"children"`
}

// VariableInfo describes one workspace variable
type VariableInfo struct {
	Type       string      `json:"type"`
	Index      uint32      `json:"index"`
	Attributes []Attribute `json:"attributes"`
}

// WorkspaceInfo describes the workspace in declaration order
type WorkspaceInfo struct {
	Variables []VariableInfo `json:"variables"`
}

// JobInfo is the cached structural description of a job
type JobInfo struct {
	Prefix               string           `json:"prefix"`
	ProcedureName        string           `json:"procedureName"`
	NumberOfVariables    uint32           `json:"numberOfVariables"`
	NumberOfInstructions uint32           `json:"numberOfInstructions"`
	Workspace            WorkspaceInfo    `json:"workspace"`
	Root                 *InstructionInfo `json:"instructionTree"`
}
