package protocol

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Invoker delivers one request to a remote service and returns its reply.
type Invoker interface {
	Invoke(ctx context.Context, request cty.Value) (cty.Value, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, request cty.Value) (cty.Value, error)

func (f InvokerFunc) Invoke(ctx context.Context, request cty.Value) (cty.Value, error) {
	return f(ctx, request)
}

// Local calls a service handler in-process.
func Local(handler primary.ServiceHandler) Invoker {
	return InvokerFunc(func(ctx context.Context, request cty.Value) (cty.Value, error) {
		return handler.Invoke(ctx, request), nil
	})
}

func call(ctx context.Context, invoker Invoker, function string, fields map[string]cty.Value) (cty.Value, error) {
	reply, err := invoker.Invoke(ctx, NewRequest(function, fields))
	if err != nil {
		return cty.NilVal, &Error{Function: function, Result: TransportError, Err: err}
	}
	code, ok := anyvalue.Uint32Field(reply, FieldResult)
	if !ok {
		return cty.NilVal, &Error{Function: function, Result: ClientProtocolDecodingError}
	}
	if Result(code) != Success {
		return cty.NilVal, &Error{Function: function, Result: Result(code)}
	}
	value, ok := anyvalue.Field(reply, FieldValue)
	if !ok {
		return cty.NilVal, &Error{Function: function, Result: ClientProtocolDecodingError}
	}
	return anyvalue.Extract(value), nil
}

func decodeFailure(function string, err error) error {
	return &Error{Function: function, Result: ClientProtocolDecodingError, Err: err}
}

func getApplicationProtocolVia(ctx context.Context, invoker Invoker) (ApplicationProtocol, error) {
	value, err := call(ctx, invoker, FunctionGetApplicationProtocol, nil)
	if err != nil {
		return ApplicationProtocol{}, err
	}
	typ, ok1 := anyvalue.StringField(value, FieldType)
	version, ok2 := anyvalue.StringField(value, FieldVersion)
	if !ok1 || !ok2 {
		return ApplicationProtocol{}, decodeFailure(FunctionGetApplicationProtocol, fmt.Errorf("malformed protocol description"))
	}
	return ApplicationProtocol{Type: typ, Version: version}, nil
}

// InfoClient calls the read-only service.
type InfoClient struct {
	invoker Invoker
}

func NewInfoClient(invoker Invoker) *InfoClient {
	return &InfoClient{invoker: invoker}
}

func (c *InfoClient) GetApplicationProtocol(ctx context.Context) (ApplicationProtocol, error) {
	return getApplicationProtocolVia(ctx, c.invoker)
}

func (c *InfoClient) GetServerPrefix(ctx context.Context) (string, error) {
	value, err := call(ctx, c.invoker, FunctionGetServerPrefix, nil)
	if err != nil {
		return "", err
	}
	if anyvalue.IsEmpty(value) || value.Type() != cty.String || value.IsNull() {
		return "", decodeFailure(FunctionGetServerPrefix, fmt.Errorf("expected string"))
	}
	return value.AsString(), nil
}

func (c *InfoClient) GetNumberOfJobs(ctx context.Context) (uint32, error) {
	value, err := call(ctx, c.invoker, FunctionGetNumberOfJobs, nil)
	if err != nil {
		return 0, err
	}
	n, ok := anyvalue.AsUint32(value)
	if !ok {
		return 0, decodeFailure(FunctionGetNumberOfJobs, fmt.Errorf("expected unsigned number"))
	}
	return n, nil
}

// GetJobInfo fails as a whole when the reply cannot be decoded.
func (c *InfoClient) GetJobInfo(ctx context.Context, job uint32) (domain.JobInfo, error) {
	value, err := call(ctx, c.invoker, FunctionGetJobInfo, map[string]cty.Value{FieldJob: uint32Val(job)})
	if err != nil {
		return domain.JobInfo{}, err
	}
	info, err := DecodeJobInfo(value)
	if err != nil {
		return domain.JobInfo{}, decodeFailure(FunctionGetJobInfo, err)
	}
	return info, nil
}

// GetInstructionTree returns the live tree with execStatus and breakpoint slots.
func (c *InfoClient) GetInstructionTree(ctx context.Context, job uint32) (cty.Value, error) {
	return call(ctx, c.invoker, FunctionGetInstructionTree, map[string]cty.Value{FieldJob: uint32Val(job)})
}

// ControlClient calls the mutating service.
type ControlClient struct {
	invoker Invoker
}

func NewControlClient(invoker Invoker) *ControlClient {
	return &ControlClient{invoker: invoker}
}

func (c *ControlClient) GetApplicationProtocol(ctx context.Context) (ApplicationProtocol, error) {
	return getApplicationProtocolVia(ctx, c.invoker)
}

func (c *ControlClient) EditBreakpoint(ctx context.Context, job, instruction uint32, active bool) error {
	_, err := call(ctx, c.invoker, FunctionEditBreakpoint, map[string]cty.Value{
		FieldJob:         uint32Val(job),
		FieldInstruction: uint32Val(instruction),
		FieldBreakpoint:  cty.BoolVal(active),
	})
	return err
}

func (c *ControlClient) SendJobCommand(ctx context.Context, job uint32, command domain.JobCommand) error {
	_, err := call(ctx, c.invoker, FunctionSendJobCommand, map[string]cty.Value{
		FieldJob:     uint32Val(job),
		FieldCommand: uint32Val(uint32(command)),
	})
	return err
}

// InputClient answers user input requests.
type InputClient struct {
	invoker Invoker
}

func NewInputClient(invoker Invoker) *InputClient {
	return &InputClient{invoker: invoker}
}

func (c *InputClient) GetApplicationProtocol(ctx context.Context) (ApplicationProtocol, error) {
	return getApplicationProtocolVia(ctx, c.invoker)
}

func (c *InputClient) SetClientReply(ctx context.Context, job uint32, id uint64, reply domain.UserInputReply) error {
	_, err := call(ctx, c.invoker, FunctionSetClientReply, map[string]cty.Value{
		FieldJob:   uint32Val(job),
		FieldID:    cty.NumberUIntVal(id),
		FieldReply: EncodeUserInputReply(reply),
	})
	return err
}
