package jobs

import (
	"encoding/json"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// ServerResponse describes the automation server
type ServerResponse struct {
	Prefix       string `json:"prefix"`
	NumberOfJobs uint32 `json:"numberOfJobs"`
}

// JobSummary is one entry of the job list
type JobSummary struct {
	Index         uint32 `json:"index"`
	Prefix        string `json:"prefix"`
	ProcedureName string `json:"procedureName"`
	State         string `json:"state"`
}

// JobResponse carries the structure and current state of a job
type JobResponse struct {
	Index uint32         `json:"index"`
	State string         `json:"state"`
	Info  domain.JobInfo `json:"info"`
}

// CommandRequest represents a request to send a job command
type CommandRequest struct {
	Command string `json:"command"`
}

// BreakpointRequest sets or clears a breakpoint
type BreakpointRequest struct {
	Active bool `json:"active"`
}

// InputReplyRequest answers a pending user input request. Value is plain JSON.
type InputReplyRequest struct {
	ID     uint64          `json:"id"`
	Result bool            `json:"result"`
	Value  json.RawMessage `json:"value"`
}

// InputReplyResponse reports whether the reply was taken
type InputReplyResponse struct {
	Accepted bool `json:"accepted"`
}
