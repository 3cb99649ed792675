package procedure

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// UserInterface receives everything a running procedure reports and asks.
// Calls arrive on the goroutine executing the procedure unless noted.
type UserInterface interface {
	UpdateInstructionStatus(instr *Instruction)
	OnBreakpointChange(instr *Instruction, active bool)
	BreakpointHit(instr *Instruction)

	// VariableUpdated may be called from any goroutine that writes the workspace.
	VariableUpdated(name string, value cty.Value, connected bool)

	Message(text string)
	Log(severity int, message string)
	PutValue(value cty.Value, description string) bool

	// GetUserValue blocks until a reply arrives or ctx ends.
	GetUserValue(ctx context.Context, value cty.Value, description string) (cty.Value, bool)

	// GetUserChoice blocks until a reply arrives or ctx ends. The result is
	// the index of the selected option.
	GetUserChoice(ctx context.Context, options []string, metadata cty.Value) (int, bool)
}

// NopUserInterface ignores every report and refuses every question.
type NopUserInterface struct{}

func (NopUserInterface) UpdateInstructionStatus(*Instruction)    {}
func (NopUserInterface) OnBreakpointChange(*Instruction, bool)   {}
func (NopUserInterface) BreakpointHit(*Instruction)              {}
func (NopUserInterface) VariableUpdated(string, cty.Value, bool) {}
func (NopUserInterface) Message(string)                          {}
func (NopUserInterface) Log(int, string)                         {}
func (NopUserInterface) PutValue(cty.Value, string) bool         { return true }
func (NopUserInterface) GetUserValue(context.Context, cty.Value, string) (cty.Value, bool) {
	return cty.NilVal, false
}
func (NopUserInterface) GetUserChoice(context.Context, []string, cty.Value) (int, bool) {
	return -1, false
}
