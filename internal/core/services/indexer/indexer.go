// Package indexer assigns breadth-first indices and tree paths to the
// instructions of a procedure, and declaration-order indices to its variables.
package indexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

// Index is immutable once built and safe for concurrent reads.
type Index struct {
	indexOf []uint32 // by instruction arena id
	pathOf  []string // by instruction arena id
	byIndex []*procedure.Instruction

	variables []string
	varIndex  map[string]uint32

	initialTree cty.Value
	rootInfo    *domain.InstructionInfo
	workspace   domain.WorkspaceInfo
}

type entry struct {
	instr *procedure.Instruction
	path  string
}

// BuildIndex walks the instruction tree breadth first, root first, children in
// declaration order. A child path segment is its type name followed by its
// position under the parent, segments are joined by dots, the root path is empty.
func BuildIndex(proc *procedure.Procedure) *Index {
	arena := proc.Instructions()
	idx := &Index{
		indexOf:  make([]uint32, len(arena)),
		pathOf:   make([]string, len(arena)),
		byIndex:  make([]*procedure.Instruction, 0, len(arena)),
		varIndex: make(map[string]uint32),
	}

	queue := []entry{{instr: proc.RootInstruction()}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		idx.indexOf[e.instr.ID()] = uint32(len(idx.byIndex))
		idx.pathOf[e.instr.ID()] = e.path
		idx.byIndex = append(idx.byIndex, e.instr)

		for pos, child := range e.instr.Children() {
			queue = append(queue, entry{instr: child, path: childPath(e.path, child, pos)})
		}
	}
	if len(idx.byIndex) != len(arena) {
		panic(fmt.Sprintf("indexer: procedure %s has %d instructions but %d are reachable",
			proc.Name(), len(arena), len(idx.byIndex)))
	}

	for i, v := range proc.Workspace().Variables() {
		idx.variables = append(idx.variables, v.Name())
		idx.varIndex[v.Name()] = uint32(i)
		idx.workspace.Variables = append(idx.workspace.Variables, domain.VariableInfo{
			Type:       v.Type(),
			Index:      uint32(i),
			Attributes: v.Attributes(),
		})
	}

	idx.initialTree = idx.buildTree(proc.RootInstruction())
	idx.rootInfo = idx.buildInfo(proc.RootInstruction())
	return idx
}

func segment(instr *procedure.Instruction, pos int) string {
	return instr.Type() + strconv.Itoa(pos)
}

func childPath(parent string, child *procedure.Instruction, pos int) string {
	if parent == "" {
		return segment(child, pos)
	}
	return parent + "." + segment(child, pos)
}

func (idx *Index) buildTree(instr *procedure.Instruction) cty.Value {
	attrs := map[string]cty.Value{
		protocol.FieldExecStatus: cty.NumberUIntVal(uint64(instr.Status())),
		protocol.FieldBreakpoint: cty.BoolVal(instr.Breakpoint()),
	}
	for pos, child := range instr.Children() {
		attrs[segment(child, pos)] = idx.buildTree(child)
	}
	return cty.ObjectVal(attrs)
}

func (idx *Index) buildInfo(instr *procedure.Instruction) *domain.InstructionInfo {
	info := &domain.InstructionInfo{
		Type:       instr.Type(),
		Index:      idx.FindIndex(instr),
		Attributes: instr.Attributes(),
	}
	for _, child := range instr.Children() {
		info.Children = append(info.Children, idx.buildInfo(child))
	}
	return info
}

func (idx *Index) check(instr *procedure.Instruction) int {
	id := instr.ID()
	if id < 0 || id >= len(idx.indexOf) || idx.byIndex[idx.indexOf[id]] != instr {
		panic(fmt.Sprintf("indexer: %v: %s (id %d)", errs.UnknownInstruction, instr.Type(), id))
	}
	return id
}

// FindIndex returns the breadth-first index of instr. It panics for
// instructions outside the indexed procedure.
func (idx *Index) FindIndex(instr *procedure.Instruction) uint32 {
	return idx.indexOf[idx.check(instr)]
}

// FindPath returns the tree path of instr. It panics like FindIndex.
func (idx *Index) FindPath(instr *procedure.Instruction) string {
	return idx.pathOf[idx.check(instr)]
}

// Instruction returns the instruction with the given breadth-first index.
func (idx *Index) Instruction(index uint32) (*procedure.Instruction, bool) {
	if index >= uint32(len(idx.byIndex)) {
		return nil, false
	}
	return idx.byIndex[index], true
}

func (idx *Index) NumberOfInstructions() uint32 { return uint32(len(idx.byIndex)) }

func (idx *Index) NumberOfVariables() uint32 { return uint32(len(idx.variables)) }

func (idx *Index) VariableIndex(name string) (uint32, bool) {
	i, ok := idx.varIndex[name]
	return i, ok
}

func (idx *Index) VariableName(index uint32) (string, bool) {
	if index >= uint32(len(idx.variables)) {
		return "", false
	}
	return idx.variables[index], true
}

// InitialTree mirrors the instruction hierarchy with execStatus and
// breakpoint slots at every node.
func (idx *Index) InitialTree() cty.Value { return idx.initialTree }

// InstructionInfo describes the tree structure with breadth-first indices.
func (idx *Index) InstructionInfo() *domain.InstructionInfo { return idx.rootInfo }

func (idx *Index) WorkspaceInfo() domain.WorkspaceInfo { return idx.workspace }

// WithNodeState returns tree with the node at path set to state. A path that
// does not exist in tree panics.
func WithNodeState(tree cty.Value, path string, state domain.InstructionState) cty.Value {
	var segments []string
	if path != "" {
		segments = strings.Split(path, ".")
	}
	return withNodeState(tree, segments, state)
}

func withNodeState(node cty.Value, segments []string, state domain.InstructionState) cty.Value {
	if !node.Type().IsObjectType() {
		panic("indexer: malformed instruction tree")
	}
	attrs := node.AsValueMap()
	if len(segments) == 0 {
		attrs[protocol.FieldExecStatus] = cty.NumberUIntVal(uint64(state.Status))
		attrs[protocol.FieldBreakpoint] = cty.BoolVal(state.Breakpoint)
		return cty.ObjectVal(attrs)
	}
	child, ok := attrs[segments[0]]
	if !ok {
		panic("indexer: no tree node " + segments[0])
	}
	attrs[segments[0]] = withNodeState(child, segments[1:], state)
	return cty.ObjectVal(attrs)
}
