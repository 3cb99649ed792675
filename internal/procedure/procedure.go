// Package procedure is the execution engine the automation server hosts: a tree
// of instructions over a workspace of variables, ticked by a Runner.
package procedure

import (
	"fmt"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Procedure owns an instruction tree and its workspace.
type Procedure struct {
	name         string
	root         *Instruction
	workspace    *Workspace
	instructions []*Instruction
}

// New assembles a procedure and assigns arena ids to its instructions in
// depth-first order. An instruction may appear only once in the tree.
func New(name string, root *Instruction, workspace *Workspace) (*Procedure, error) {
	if root == nil {
		return nil, fmt.Errorf("procedure %s: missing root instruction", name)
	}
	if workspace == nil {
		workspace = NewWorkspace()
	}
	p := &Procedure{name: name, root: root, workspace: workspace}
	if err := p.assign(root); err != nil {
		return nil, fmt.Errorf("procedure %s: %w", name, err)
	}
	return p, nil
}

func (p *Procedure) assign(instr *Instruction) error {
	if instr.id >= 0 {
		return fmt.Errorf("instruction %s used more than once", instr.typeName)
	}
	instr.id = len(p.instructions)
	p.instructions = append(p.instructions, instr)
	for _, child := range instr.children {
		if err := p.assign(child); err != nil {
			return err
		}
	}
	return nil
}

func (p *Procedure) Name() string { return p.name }

func (p *Procedure) RootInstruction() *Instruction { return p.root }

func (p *Procedure) Workspace() *Workspace { return p.workspace }

// Instructions returns the instruction arena; position equals Instruction.ID.
func (p *Procedure) Instructions() []*Instruction { return p.instructions }

// Instruction looks up an instruction by arena id.
func (p *Procedure) Instruction(id int) (*Instruction, bool) {
	if id < 0 || id >= len(p.instructions) {
		return nil, false
	}
	return p.instructions[id], true
}

// Setup routes workspace updates to ui.
func (p *Procedure) Setup(ui UserInterface) {
	p.workspace.setListener(ui.VariableUpdated)
}

// Reset returns every instruction to NotStarted. Variable values are kept.
func (p *Procedure) Reset(ui UserInterface) {
	p.root.reset(ui)
}

// Status is the execution status of the root instruction.
func (p *Procedure) Status() domain.ExecutionStatus {
	return p.root.Status()
}
