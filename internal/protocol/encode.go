package protocol

import (
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Structured value field names shared by publisher, services and mirror.
const (
	FieldFunction     = "function"
	FieldResult       = "result"
	FieldValue        = "value"
	FieldJob          = "job"
	FieldInstruction  = "instruction"
	FieldBreakpoint   = "breakpoint"
	FieldCommand      = "command"
	FieldID           = "id"
	FieldReply        = "reply"
	FieldExecStatus   = "execStatus"
	FieldConnected    = "connected"
	FieldInstrIndex   = "instrIndex"
	FieldType         = "type"
	FieldIndex        = "index"
	FieldAttributes   = "attributes"
	FieldChildren     = "children"
	FieldName         = "name"
	FieldVariables    = "variables"
	FieldPrefix       = "prefix"
	FieldProcedure    = "procedureName"
	FieldNumVariables = "numberOfVariables"
	FieldNumInstrs    = "numberOfInstructions"
	FieldWorkspace    = "workspace"
	FieldTree         = "instructionTree"
	FieldTimestamp    = "timestamp"
	FieldSeverity     = "severity"
	FieldMessage      = "message"
	FieldDescription  = "description"
	FieldRequestType  = "requestType"
	FieldMetadata     = "metadata"
	FieldInput        = "input"
	FieldVersion      = "version"
)

var attributeType = cty.Object(map[string]cty.Type{
	FieldName:  cty.String,
	FieldValue: cty.String,
})

func uint32Val(v uint32) cty.Value { return cty.NumberUIntVal(uint64(v)) }

func decodeError(what, field string) error {
	return fmt.Errorf("%s: missing or malformed field %q", what, field)
}

// EncodeJobState renders a job state as published under the JOBSTATE name.
func EncodeJobState(state domain.JobState) cty.Value {
	return uint32Val(uint32(state))
}

func DecodeJobState(v cty.Value) (domain.JobState, error) {
	n, ok := anyvalue.AsUint32(v)
	if !ok || n > uint32(domain.JobStateHalted) {
		return 0, fmt.Errorf("job state: invalid value")
	}
	return domain.JobState(n), nil
}

// EncodeInstructionState renders the per-instruction state published under INSTR-n.
func EncodeInstructionState(state domain.InstructionState) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldExecStatus: uint32Val(uint32(state.Status)),
		FieldBreakpoint: cty.BoolVal(state.Breakpoint),
	})
}

func DecodeInstructionState(v cty.Value) (domain.InstructionState, error) {
	status, ok := anyvalue.Uint32Field(v, FieldExecStatus)
	if !ok || status > uint32(domain.StatusFailure) {
		return domain.InstructionState{}, decodeError("instruction state", FieldExecStatus)
	}
	bp, ok := anyvalue.BoolField(v, FieldBreakpoint)
	if !ok {
		return domain.InstructionState{}, decodeError("instruction state", FieldBreakpoint)
	}
	return domain.InstructionState{Status: domain.ExecutionStatus(status), Breakpoint: bp}, nil
}

// EncodeVariable renders a variable update published under VAR-n.
func EncodeVariable(value cty.Value, connected bool) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldValue:     anyvalue.Embed(value),
		FieldConnected: cty.BoolVal(connected),
	})
}

func DecodeVariable(v cty.Value) (cty.Value, bool, error) {
	value, ok := anyvalue.Field(v, FieldValue)
	if !ok {
		return cty.NilVal, false, decodeError("variable", FieldValue)
	}
	connected, ok := anyvalue.BoolField(v, FieldConnected)
	if !ok {
		return cty.NilVal, false, decodeError("variable", FieldConnected)
	}
	return anyvalue.Extract(value), connected, nil
}

// EncodeBreakpointHit renders the BREAKPOINT marker for an instruction index.
func EncodeBreakpointHit(index uint32) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{FieldInstrIndex: uint32Val(index)})
}

func DecodeBreakpointHit(v cty.Value) (uint32, error) {
	index, ok := anyvalue.Uint32Field(v, FieldInstrIndex)
	if !ok {
		return 0, decodeError("breakpoint", FieldInstrIndex)
	}
	return index, nil
}

// EncodeLogEntry renders LOG and MSG entries.
func EncodeLogEntry(entry domain.LogEntry) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldIndex:     cty.NumberUIntVal(entry.Index),
		FieldTimestamp: cty.StringVal(entry.Timestamp.UTC().Format(time.RFC3339Nano)),
		FieldSeverity:  cty.NumberIntVal(int64(entry.Severity)),
		FieldMessage:   cty.StringVal(entry.Message),
	})
}

func DecodeLogEntry(v cty.Value) (domain.LogEntry, error) {
	var entry domain.LogEntry
	var ok bool
	if entry.Index, ok = anyvalue.Uint64Field(v, FieldIndex); !ok {
		return entry, decodeError("log entry", FieldIndex)
	}
	ts, ok := anyvalue.StringField(v, FieldTimestamp)
	if !ok {
		return entry, decodeError("log entry", FieldTimestamp)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return entry, fmt.Errorf("log entry: %w", err)
	}
	entry.Timestamp = t
	severity, ok := anyvalue.Int64Field(v, FieldSeverity)
	if !ok {
		return entry, decodeError("log entry", FieldSeverity)
	}
	entry.Severity = int(severity)
	if entry.Message, ok = anyvalue.StringField(v, FieldMessage); !ok {
		return entry, decodeError("log entry", FieldMessage)
	}
	return entry, nil
}

// EncodeOutputValue renders values put on display under OUTVAL.
func EncodeOutputValue(out domain.OutputValue) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldIndex:       cty.NumberUIntVal(out.Index),
		FieldDescription: cty.StringVal(out.Description),
		FieldValue:       anyvalue.Embed(out.Value),
	})
}

func DecodeOutputValue(v cty.Value) (domain.OutputValue, error) {
	var out domain.OutputValue
	var ok bool
	if out.Index, ok = anyvalue.Uint64Field(v, FieldIndex); !ok {
		return out, decodeError("output value", FieldIndex)
	}
	if out.Description, ok = anyvalue.StringField(v, FieldDescription); !ok {
		return out, decodeError("output value", FieldDescription)
	}
	value, ok := anyvalue.Field(v, FieldValue)
	if !ok {
		return out, decodeError("output value", FieldValue)
	}
	out.Value = anyvalue.Extract(value)
	return out, nil
}

// EncodeUserInputRequest renders an outstanding question under INPUTREQ.
// The name holds an empty value while no request is pending.
func EncodeUserInputRequest(req domain.UserInputRequest) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldID:          cty.NumberUIntVal(req.ID),
		FieldRequestType: uint32Val(uint32(req.Type)),
		FieldMetadata:    anyvalue.Embed(req.Metadata),
		FieldInput:       anyvalue.Embed(req.Input),
	})
}

func DecodeUserInputRequest(v cty.Value) (domain.UserInputRequest, error) {
	var req domain.UserInputRequest
	var ok bool
	if req.ID, ok = anyvalue.Uint64Field(v, FieldID); !ok {
		return req, decodeError("input request", FieldID)
	}
	kind, ok := anyvalue.Uint32Field(v, FieldRequestType)
	if !ok {
		return req, decodeError("input request", FieldRequestType)
	}
	req.Type = domain.InputRequestType(kind)
	metadata, ok := anyvalue.Field(v, FieldMetadata)
	if !ok {
		return req, decodeError("input request", FieldMetadata)
	}
	input, ok := anyvalue.Field(v, FieldInput)
	if !ok {
		return req, decodeError("input request", FieldInput)
	}
	req.Metadata = anyvalue.Extract(metadata)
	req.Input = anyvalue.Extract(input)
	return req, nil
}

func EncodeUserInputReply(reply domain.UserInputReply) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldResult: cty.BoolVal(reply.Result),
		FieldValue:  anyvalue.Embed(reply.Value),
	})
}

func DecodeUserInputReply(v cty.Value) (domain.UserInputReply, error) {
	result, ok := anyvalue.BoolField(v, FieldResult)
	if !ok {
		return domain.UserInputReply{}, decodeError("input reply", FieldResult)
	}
	value, ok := anyvalue.Field(v, FieldValue)
	if !ok {
		return domain.UserInputReply{}, decodeError("input reply", FieldValue)
	}
	return domain.UserInputReply{Result: result, Value: anyvalue.Extract(value)}, nil
}

func encodeAttributes(attrs []domain.Attribute) cty.Value {
	if len(attrs) == 0 {
		return cty.ListValEmpty(attributeType)
	}
	vals := make([]cty.Value, len(attrs))
	for i, attr := range attrs {
		vals[i] = cty.ObjectVal(map[string]cty.Value{
			FieldName:  cty.StringVal(attr.Name),
			FieldValue: cty.StringVal(attr.Value),
		})
	}
	return cty.ListVal(vals)
}

func decodeAttributes(v cty.Value) ([]domain.Attribute, error) {
	list, ok := anyvalue.Field(v, FieldAttributes)
	if !ok || list.IsNull() || !list.CanIterateElements() {
		return nil, decodeError("attributes", FieldAttributes)
	}
	var attrs []domain.Attribute
	for it := list.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		name, ok := anyvalue.StringField(elem, FieldName)
		if !ok {
			return nil, decodeError("attribute", FieldName)
		}
		value, ok := anyvalue.StringField(elem, FieldValue)
		if !ok {
			return nil, decodeError("attribute", FieldValue)
		}
		attrs = append(attrs, domain.Attribute{Name: name, Value: value})
	}
	return attrs, nil
}

// EncodeInstructionInfo renders an instruction subtree.
func EncodeInstructionInfo(info *domain.InstructionInfo) cty.Value {
	children := cty.EmptyTupleVal
	if len(info.Children) > 0 {
		vals := make([]cty.Value, len(info.Children))
		for i, child := range info.Children {
			vals[i] = EncodeInstructionInfo(child)
		}
		children = cty.TupleVal(vals)
	}
	return cty.ObjectVal(map[string]cty.Value{
		FieldType:       cty.StringVal(info.Type),
		FieldIndex:      uint32Val(info.Index),
		FieldAttributes: encodeAttributes(info.Attributes),
		FieldChildren:   children,
	})
}

// DecodeInstructionInfo parses a subtree produced by EncodeInstructionInfo.
func DecodeInstructionInfo(v cty.Value) (*domain.InstructionInfo, error) {
	typeName, ok := anyvalue.StringField(v, FieldType)
	if !ok {
		return nil, decodeError("instruction", FieldType)
	}
	index, ok := anyvalue.Uint32Field(v, FieldIndex)
	if !ok {
		return nil, decodeError("instruction", FieldIndex)
	}
	attrs, err := decodeAttributes(v)
	if err != nil {
		return nil, err
	}
	children, ok := anyvalue.Field(v, FieldChildren)
	if !ok || children.IsNull() || !children.CanIterateElements() {
		return nil, decodeError("instruction", FieldChildren)
	}

	info := &domain.InstructionInfo{Type: typeName, Index: index, Attributes: attrs}
	for it := children.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		child, err := DecodeInstructionInfo(elem)
		if err != nil {
			return nil, err
		}
		info.Children = append(info.Children, child)
	}
	return info, nil
}

// EncodeWorkspaceInfo renders the workspace structure in declaration order.
func EncodeWorkspaceInfo(ws domain.WorkspaceInfo) cty.Value {
	vars := cty.EmptyTupleVal
	if len(ws.Variables) > 0 {
		vals := make([]cty.Value, len(ws.Variables))
		for i, v := range ws.Variables {
			vals[i] = cty.ObjectVal(map[string]cty.Value{
				FieldType:       cty.StringVal(v.Type),
				FieldIndex:      uint32Val(v.Index),
				FieldAttributes: encodeAttributes(v.Attributes),
			})
		}
		vars = cty.TupleVal(vals)
	}
	return cty.ObjectVal(map[string]cty.Value{FieldVariables: vars})
}

func DecodeWorkspaceInfo(v cty.Value) (domain.WorkspaceInfo, error) {
	var ws domain.WorkspaceInfo
	vars, ok := anyvalue.Field(v, FieldVariables)
	if !ok || vars.IsNull() || !vars.CanIterateElements() {
		return ws, decodeError("workspace", FieldVariables)
	}
	for it := vars.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		typeName, ok := anyvalue.StringField(elem, FieldType)
		if !ok {
			return ws, decodeError("variable", FieldType)
		}
		index, ok := anyvalue.Uint32Field(elem, FieldIndex)
		if !ok {
			return ws, decodeError("variable", FieldIndex)
		}
		attrs, err := decodeAttributes(elem)
		if err != nil {
			return ws, err
		}
		ws.Variables = append(ws.Variables, domain.VariableInfo{Type: typeName, Index: index, Attributes: attrs})
	}
	return ws, nil
}

// EncodeJobInfo renders the cached structural description of a job.
func EncodeJobInfo(info domain.JobInfo) (cty.Value, error) {
	if info.Root == nil {
		return cty.NilVal, fmt.Errorf("job info %s: missing instruction tree", info.Prefix)
	}
	return cty.ObjectVal(map[string]cty.Value{
		FieldPrefix:       cty.StringVal(info.Prefix),
		FieldProcedure:    cty.StringVal(info.ProcedureName),
		FieldNumVariables: uint32Val(info.NumberOfVariables),
		FieldNumInstrs:    uint32Val(info.NumberOfInstructions),
		FieldWorkspace:    EncodeWorkspaceInfo(info.Workspace),
		FieldTree:         EncodeInstructionInfo(info.Root),
	}), nil
}

func DecodeJobInfo(v cty.Value) (domain.JobInfo, error) {
	var info domain.JobInfo
	var ok bool
	if info.Prefix, ok = anyvalue.StringField(v, FieldPrefix); !ok {
		return info, decodeError("job info", FieldPrefix)
	}
	if info.ProcedureName, ok = anyvalue.StringField(v, FieldProcedure); !ok {
		return info, decodeError("job info", FieldProcedure)
	}
	if info.NumberOfVariables, ok = anyvalue.Uint32Field(v, FieldNumVariables); !ok {
		return info, decodeError("job info", FieldNumVariables)
	}
	if info.NumberOfInstructions, ok = anyvalue.Uint32Field(v, FieldNumInstrs); !ok {
		return info, decodeError("job info", FieldNumInstrs)
	}
	ws, ok := anyvalue.Field(v, FieldWorkspace)
	if !ok {
		return info, decodeError("job info", FieldWorkspace)
	}
	workspace, err := DecodeWorkspaceInfo(ws)
	if err != nil {
		return info, err
	}
	info.Workspace = workspace
	tree, ok := anyvalue.Field(v, FieldTree)
	if !ok {
		return info, decodeError("job info", FieldTree)
	}
	if info.Root, err = DecodeInstructionInfo(tree); err != nil {
		return info, err
	}
	return info, nil
}
