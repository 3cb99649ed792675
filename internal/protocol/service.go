package protocol

import (
	"context"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Function names.
const (
	FunctionGetApplicationProtocol = "GetApplicationProtocol"
	FunctionGetServerPrefix        = "GetServerPrefix"
	FunctionGetNumberOfJobs        = "GetNumberOfJobs"
	FunctionGetJobInfo             = "GetJobInfo"
	FunctionGetInstructionTree     = "GetInstructionTree"
	FunctionEditBreakpoint         = "EditBreakpoint"
	FunctionSendJobCommand         = "SendJobCommand"
	FunctionSetClientReply         = "SetClientReply"
)

const (
	InfoProtocolType    = "autoserver-info"
	ControlProtocolType = "autoserver-control"
	InputProtocolType   = "autoserver-input"
	ProtocolVersion     = "1.0"
)

// ApplicationProtocol identifies what a service speaks.
type ApplicationProtocol struct {
	Type    string
	Version string
}

type handlerFunc func(s *Service, request cty.Value) (cty.Value, Result)

// Service dispatches requests for one service identity to its handler table.
type Service struct {
	name     string
	protocol ApplicationProtocol
	registry primary.JobRegistry
	handlers func() map[string]handlerFunc
	logger   primary.Logger
}

// NewInfoService exposes the read-only registry queries.
func NewInfoService(registry primary.JobRegistry, logger primary.Logger) *Service {
	return &Service{
		name:     InfoServiceName(registry.GetServerPrefix()),
		protocol: ApplicationProtocol{Type: InfoProtocolType, Version: ProtocolVersion},
		registry: registry,
		handlers: infoHandlers,
		logger:   logger,
	}
}

// NewControlService exposes breakpoint editing and job commands.
func NewControlService(registry primary.JobRegistry, logger primary.Logger) *Service {
	return &Service{
		name:     ControlServiceName(registry.GetServerPrefix()),
		protocol: ApplicationProtocol{Type: ControlProtocolType, Version: ProtocolVersion},
		registry: registry,
		handlers: controlHandlers,
		logger:   logger,
	}
}

// NewInputService accepts replies to user input requests.
func NewInputService(registry primary.JobRegistry, logger primary.Logger) *Service {
	return &Service{
		name:     InputServiceName(registry.GetServerPrefix()),
		protocol: ApplicationProtocol{Type: InputProtocolType, Version: ProtocolVersion},
		registry: registry,
		handlers: inputHandlers,
		logger:   logger,
	}
}

// Name is the identity the service is reachable under.
func (s *Service) Name() string { return s.name }

func (s *Service) Protocol() ApplicationProtocol { return s.protocol }

// Invoke implements primary.ServiceHandler.
func (s *Service) Invoke(_ context.Context, request cty.Value) cty.Value {
	function, ok := anyvalue.StringField(request, FieldFunction)
	if !ok {
		s.logger.Warn("Request without function name", "service", s.name)
		return Reply(ServerProtocolDecodingError, anyvalue.Empty)
	}

	handler, ok := s.handlers()[function]
	if !ok {
		s.logger.Debug("Function not supported", "service", s.name, "function", function)
		return Reply(NotSupported, anyvalue.Empty)
	}

	value, result := handler(s, request)
	if result == Success && !anyvalue.IsEmpty(value) && !value.IsWhollyKnown() {
		result, value = ServerProtocolEncodingError, anyvalue.Empty
	}
	if result != Success {
		s.logger.Debug("Request failed", "service", s.name, "function", function, "result", result.String())
		return Reply(result, anyvalue.Empty)
	}
	return Reply(Success, value)
}

// Reply builds a reply value.
func Reply(result Result, value cty.Value) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		FieldResult: uint32Val(uint32(result)),
		FieldValue:  anyvalue.Embed(value),
	})
}

// NewRequest builds a request for function with the given fields.
func NewRequest(function string, fields map[string]cty.Value) cty.Value {
	attrs := make(map[string]cty.Value, len(fields)+1)
	for k, v := range fields {
		attrs[k] = v
	}
	attrs[FieldFunction] = cty.StringVal(function)
	return cty.ObjectVal(attrs)
}

var commonHandlers = map[string]handlerFunc{
	FunctionGetApplicationProtocol: getApplicationProtocol,
}

func withCommon(handlers map[string]handlerFunc) map[string]handlerFunc {
	for name, h := range commonHandlers {
		handlers[name] = h
	}
	return handlers
}

var infoHandlers = sync.OnceValue(func() map[string]handlerFunc {
	return withCommon(map[string]handlerFunc{
		FunctionGetServerPrefix:    getServerPrefix,
		FunctionGetNumberOfJobs:    getNumberOfJobs,
		FunctionGetJobInfo:         getJobInfo,
		FunctionGetInstructionTree: getInstructionTree,
	})
})

var controlHandlers = sync.OnceValue(func() map[string]handlerFunc {
	return withCommon(map[string]handlerFunc{
		FunctionEditBreakpoint: editBreakpoint,
		FunctionSendJobCommand: sendJobCommand,
	})
})

var inputHandlers = sync.OnceValue(func() map[string]handlerFunc {
	return withCommon(map[string]handlerFunc{
		FunctionSetClientReply: setClientReply,
	})
})

func getApplicationProtocol(s *Service, _ cty.Value) (cty.Value, Result) {
	return cty.ObjectVal(map[string]cty.Value{
		FieldType:    cty.StringVal(s.protocol.Type),
		FieldVersion: cty.StringVal(s.protocol.Version),
	}), Success
}

func getServerPrefix(s *Service, _ cty.Value) (cty.Value, Result) {
	return cty.StringVal(s.registry.GetServerPrefix()), Success
}

func getNumberOfJobs(s *Service, _ cty.Value) (cty.Value, Result) {
	return uint32Val(s.registry.GetNumberOfJobs()), Success
}

func getJobInfo(s *Service, request cty.Value) (cty.Value, Result) {
	job, ok := anyvalue.Uint32Field(request, FieldJob)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	info, err := s.registry.GetJobInfo(job)
	if err != nil {
		return anyvalue.Empty, ResultFromError(err)
	}
	value, err := EncodeJobInfo(info)
	if err != nil {
		s.logger.Error("Failed to encode job info", "job", job, "error", err)
		return anyvalue.Empty, ServerProtocolEncodingError
	}
	return value, Success
}

func getInstructionTree(s *Service, request cty.Value) (cty.Value, Result) {
	job, ok := anyvalue.Uint32Field(request, FieldJob)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	tree, err := s.registry.GetInstructionTree(job)
	if err != nil {
		return anyvalue.Empty, ResultFromError(err)
	}
	return tree, Success
}

func editBreakpoint(s *Service, request cty.Value) (cty.Value, Result) {
	job, ok := anyvalue.Uint32Field(request, FieldJob)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	instruction, ok := anyvalue.Uint32Field(request, FieldInstruction)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	active, ok := anyvalue.BoolField(request, FieldBreakpoint)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	if err := s.registry.EditBreakpoint(job, instruction, active); err != nil {
		return anyvalue.Empty, ResultFromError(err)
	}
	return anyvalue.Empty, Success
}

func sendJobCommand(s *Service, request cty.Value) (cty.Value, Result) {
	job, ok := anyvalue.Uint32Field(request, FieldJob)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	command, ok := anyvalue.Uint32Field(request, FieldCommand)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	if command >= domain.NumberOfRemoteCommands {
		return anyvalue.Empty, UnknownJobCommand
	}
	if err := s.registry.SendCommand(job, domain.JobCommand(command)); err != nil {
		return anyvalue.Empty, ResultFromError(err)
	}
	return anyvalue.Empty, Success
}

func setClientReply(s *Service, request cty.Value) (cty.Value, Result) {
	job, ok := anyvalue.Uint32Field(request, FieldJob)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	id, ok := anyvalue.Uint64Field(request, FieldID)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	raw, ok := anyvalue.Field(request, FieldReply)
	if !ok {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	reply, err := DecodeUserInputReply(raw)
	if err != nil {
		return anyvalue.Empty, ServerProtocolDecodingError
	}
	accepted, err := s.registry.SetClientReply(job, id, reply)
	if err != nil {
		return anyvalue.Empty, ResultFromError(err)
	}
	if !accepted {
		return anyvalue.Empty, ClientReplyRefused
	}
	return anyvalue.Empty, Success
}
