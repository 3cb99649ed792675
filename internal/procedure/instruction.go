package procedure

import (
	"context"
	"fmt"
	"sync/atomic"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Instruction is one node of a procedure tree. Its id is its position in the
// procedure's instruction arena and is assigned when the procedure is built.
type Instruction struct {
	id         int
	typeName   string
	attributes attributes
	children   []*Instruction
	behavior   behavior

	status     atomic.Uint32
	breakpoint atomic.Bool

	// cursor selects the active child of composite instructions; owned by the runner.
	cursor int
	count  int
}

// behavior implements the semantics of one instruction type.
type behavior interface {
	execute(ctx context.Context, ex *execution, self *Instruction) domain.ExecutionStatus
}

// execution carries what leaves need while ticking.
type execution struct {
	workspace *Workspace
	ui        UserInterface
}

type factory struct {
	build       func(attrs attributes) (behavior, error)
	minChildren int
	maxChildren int // -1 for unbounded
}

var factories = map[string]factory{
	"Sequence":  {build: func(attributes) (behavior, error) { return sequence{}, nil }, maxChildren: -1},
	"Fallback":  {build: func(attributes) (behavior, error) { return fallback{}, nil }, maxChildren: -1},
	"Repeat":    {build: newRepeat, minChildren: 1, maxChildren: 1},
	"Inverter":  {build: func(attributes) (behavior, error) { return inverter{}, nil }, minChildren: 1, maxChildren: 1},
	"Wait":      {build: newWait},
	"Copy":      {build: newCopy},
	"Increment": {build: newIncrement},
	"Condition": {build: newCondition},
	"Message":   {build: newMessage},
	"Log":       {build: newLog},
	"Output":    {build: newOutput},
	"Input":     {build: newInput},
	"Choice":    {build: newChoice},
	"Succeed":   {build: func(attributes) (behavior, error) { return constant(domain.StatusSuccess), nil }},
	"Fail":      {build: func(attributes) (behavior, error) { return constant(domain.StatusFailure), nil }},
}

// InstructionTypes lists the registered instruction type names.
func InstructionTypes() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// NewInstruction builds an instruction of a registered type.
func NewInstruction(typeName string, attrs []domain.Attribute, children ...*Instruction) (*Instruction, error) {
	f, ok := factories[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown instruction type %q", typeName)
	}
	if len(children) < f.minChildren || (f.maxChildren >= 0 && len(children) > f.maxChildren) {
		return nil, fmt.Errorf("instruction %s: unexpected number of children %d", typeName, len(children))
	}
	b, err := f.build(attrs)
	if err != nil {
		return nil, fmt.Errorf("instruction %s: %w", typeName, err)
	}
	return &Instruction{
		id:         -1,
		typeName:   typeName,
		attributes: append(attributes(nil), attrs...),
		children:   children,
		behavior:   b,
	}, nil
}

func (i *Instruction) ID() int { return i.id }

func (i *Instruction) Type() string { return i.typeName }

// Attributes returns a copy of the instruction's attributes in declaration order.
func (i *Instruction) Attributes() []domain.Attribute {
	return append([]domain.Attribute(nil), i.attributes...)
}

func (i *Instruction) Attribute(name string) (string, bool) {
	return i.attributes.get(name)
}

func (i *Instruction) Children() []*Instruction { return i.children }

func (i *Instruction) Status() domain.ExecutionStatus {
	return domain.ExecutionStatus(i.status.Load())
}

func (i *Instruction) Breakpoint() bool { return i.breakpoint.Load() }

func (i *Instruction) setStatus(ui UserInterface, status domain.ExecutionStatus) {
	if domain.ExecutionStatus(i.status.Swap(uint32(status))) != status {
		ui.UpdateInstructionStatus(i)
	}
}

// tick advances the subtree by one leaf step.
func (i *Instruction) tick(ctx context.Context, ex *execution) domain.ExecutionStatus {
	if st := i.Status(); st.IsFinished() {
		return st
	}
	i.setStatus(ex.ui, domain.StatusNotFinished)
	st := i.behavior.execute(ctx, ex, i)
	i.setStatus(ex.ui, st)
	return st
}

// next returns the child the following tick will descend into.
func (i *Instruction) next() *Instruction {
	if i.cursor < len(i.children) {
		return i.children[i.cursor]
	}
	return nil
}

// reset returns the subtree to NotStarted.
func (i *Instruction) reset(ui UserInterface) {
	for _, child := range i.children {
		child.reset(ui)
	}
	i.cursor = 0
	i.count = 0
	i.setStatus(ui, domain.StatusNotStarted)
}

type attributes []domain.Attribute

func (a attributes) get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

func (a attributes) require(name string) (string, error) {
	v, ok := a.get(name)
	if !ok || v == "" {
		return "", fmt.Errorf("missing attribute %q", name)
	}
	return v, nil
}
