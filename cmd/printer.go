package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/services/mirror"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

var _ mirror.JobInfoIO = (*printer)(nil)

var severityNames = [...]string{
	domain.SeverityEmergency: "EMERG",
	domain.SeverityAlert:     "ALERT",
	domain.SeverityCritical:  "CRIT",
	domain.SeverityError:     "ERROR",
	domain.SeverityWarning:   "WARN",
	domain.SeverityNotice:    "NOTICE",
	domain.SeverityInfo:      "INFO",
	domain.SeverityDebug:     "DEBUG",
	domain.SeverityTrace:     "TRACE",
}

// printer writes mirrored job updates as one line each
type printer struct {
	out io.Writer
	// variable names by index, for readable VAR lines
	variables []string
}

func newPrinter(out io.Writer, info domain.JobInfo) *printer {
	p := &printer{out: out, variables: make([]string, info.NumberOfVariables)}
	for _, v := range info.Workspace.Variables {
		for _, attr := range v.Attributes {
			if attr.Name == "name" && int(v.Index) < len(p.variables) {
				p.variables[v.Index] = attr.Value
			}
		}
	}
	return p
}

func render(v cty.Value) string {
	buf, err := anyvalue.ToJSON(v)
	if err != nil {
		return v.GoString()
	}
	return string(buf)
}

func severityName(s int) string {
	if s >= 0 && s < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("SEV%d", s)
}

func (p *printer) JobStateUpdated(state domain.JobState) {
	fmt.Fprintf(p.out, "job       %s\n", state)
}

func (p *printer) InstructionStateUpdated(index uint32, state domain.InstructionState) {
	marker := ""
	if state.Breakpoint {
		marker = " (breakpoint)"
	}
	fmt.Fprintf(p.out, "instr %-3d %s%s\n", index, state.Status, marker)
}

func (p *printer) VariableUpdated(index uint32, value cty.Value, connected bool) {
	name := fmt.Sprintf("#%d", index)
	if int(index) < len(p.variables) && p.variables[index] != "" {
		name = p.variables[index]
	}
	if !connected {
		fmt.Fprintf(p.out, "var       %s disconnected\n", name)
		return
	}
	fmt.Fprintf(p.out, "var       %s = %s\n", name, render(value))
}

func (p *printer) PutLog(entry domain.LogEntry) {
	fmt.Fprintf(p.out, "log       %s %-6s %s\n", entry.Timestamp.Format("15:04:05.000"), severityName(entry.Severity), entry.Message)
}

func (p *printer) Message(entry domain.LogEntry) {
	fmt.Fprintf(p.out, "message   %s\n", entry.Message)
}

func (p *printer) OutputValue(out domain.OutputValue) {
	fmt.Fprintf(p.out, "output    %s: %s\n", out.Description, render(out.Value))
}

func (p *printer) BreakpointHit(index uint32) {
	fmt.Fprintf(p.out, "break     at instruction %d\n", index)
}

func (p *printer) InputRequested(req domain.UserInputRequest) {
	var b strings.Builder
	fmt.Fprintf(&b, "input     request %d (%s)", req.ID, req.Type)
	if text, ok := anyvalue.StringField(req.Metadata, "text"); ok {
		fmt.Fprintf(&b, " %q", text)
	}
	if !anyvalue.IsEmpty(req.Input) {
		fmt.Fprintf(&b, " options %s", render(req.Input))
	}
	fmt.Fprintln(p.out, b.String())
}

func (p *printer) InputWithdrawn() {
	fmt.Fprintln(p.out, "input     withdrawn")
}
