package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

type fakeRegistry struct {
	jobs        []domain.JobInfo
	breakpoints map[[2]uint32]bool
	commands    []domain.JobCommand
	replies     map[uint64]domain.UserInputReply
	activeID    uint64
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		jobs:        []domain.JobInfo{sampleJobInfo()},
		breakpoints: make(map[[2]uint32]bool),
		replies:     make(map[uint64]domain.UserInputReply),
		activeID:    5,
	}
}

func (r *fakeRegistry) GetServerPrefix() string { return "SRV" }

func (r *fakeRegistry) GetNumberOfJobs() uint32 { return uint32(len(r.jobs)) }

func (r *fakeRegistry) GetJobInfo(job uint32) (domain.JobInfo, error) {
	if job >= uint32(len(r.jobs)) {
		return domain.JobInfo{}, errs.UnknownJob
	}
	return r.jobs[job], nil
}

func (r *fakeRegistry) GetInstructionTree(job uint32) (cty.Value, error) {
	if job >= uint32(len(r.jobs)) {
		return cty.NilVal, errs.UnknownJob
	}
	return cty.ObjectVal(map[string]cty.Value{FieldExecStatus: cty.NumberIntVal(0)}), nil
}

func (r *fakeRegistry) EditBreakpoint(job, instruction uint32, active bool) error {
	if job >= uint32(len(r.jobs)) {
		return errs.UnknownJob
	}
	if instruction >= r.jobs[job].NumberOfInstructions {
		return errs.UnknownInstruction
	}
	r.breakpoints[[2]uint32{job, instruction}] = active
	return nil
}

func (r *fakeRegistry) SendCommand(job uint32, command domain.JobCommand) error {
	if job >= uint32(len(r.jobs)) {
		return errs.UnknownJob
	}
	r.commands = append(r.commands, command)
	return nil
}

func (r *fakeRegistry) SetClientReply(job uint32, id uint64, reply domain.UserInputReply) (bool, error) {
	if job >= uint32(len(r.jobs)) {
		return false, errs.UnknownJob
	}
	if id != r.activeID || reply.IsEmpty() {
		return false, nil
	}
	r.replies[id] = reply
	return true, nil
}

func newServices(t *testing.T) (*fakeRegistry, *Service, *Service, *Service) {
	logger := logging.Wrap(zaptest.NewLogger(t))
	reg := newFakeRegistry()
	return reg, NewInfoService(reg, logger), NewControlService(reg, logger), NewInputService(reg, logger)
}

func resultOf(t *testing.T, reply cty.Value) Result {
	code, ok := anyvalue.Uint32Field(reply, FieldResult)
	require.True(t, ok)
	return Result(code)
}

func TestServiceNames(t *testing.T) {
	_, info, control, input := newServices(t)
	assert.Equal(t, "SRV", info.Name())
	assert.Equal(t, "SRV:CONTROL:", control.Name())
	assert.Equal(t, "SRV:INPUT:", input.Name())
}

func TestDispatchErrors(t *testing.T) {
	_, info, control, _ := newServices(t)
	ctx := context.Background()

	assert.Equal(t, NotSupported, resultOf(t, info.Invoke(ctx, NewRequest("Explode", nil))))
	assert.Equal(t, NotSupported, resultOf(t, info.Invoke(ctx, NewRequest(FunctionSendJobCommand, nil))))
	assert.Equal(t, NotSupported, resultOf(t, control.Invoke(ctx, NewRequest(FunctionGetJobInfo, nil))))
	assert.Equal(t, ServerProtocolDecodingError, resultOf(t, info.Invoke(ctx, cty.StringVal("GetJobInfo"))))
	assert.Equal(t, ServerProtocolDecodingError, resultOf(t, info.Invoke(ctx, NewRequest(FunctionGetJobInfo, nil))))
	assert.Equal(t, ServerProtocolDecodingError, resultOf(t, info.Invoke(ctx, NewRequest(FunctionGetJobInfo,
		map[string]cty.Value{FieldJob: cty.StringVal("0")}))))
	assert.Equal(t, UnknownJob, resultOf(t, info.Invoke(ctx, NewRequest(FunctionGetJobInfo,
		map[string]cty.Value{FieldJob: cty.NumberIntVal(1)}))))
	assert.Equal(t, UnknownJobCommand, resultOf(t, control.Invoke(ctx, NewRequest(FunctionSendJobCommand,
		map[string]cty.Value{FieldJob: cty.NumberIntVal(0), FieldCommand: cty.NumberIntVal(int64(domain.JobCommandTerminate))}))))
}

func TestInfoClient(t *testing.T) {
	_, info, _, _ := newServices(t)
	client := NewInfoClient(Local(info))
	ctx := context.Background()

	proto, err := client.GetApplicationProtocol(ctx)
	require.NoError(t, err)
	assert.Equal(t, ApplicationProtocol{Type: InfoProtocolType, Version: ProtocolVersion}, proto)

	prefix, err := client.GetServerPrefix(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SRV", prefix)

	n, err := client.GetNumberOfJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)

	jobInfo, err := client.GetJobInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "sample", jobInfo.ProcedureName)
	assert.Equal(t, uint32(4), jobInfo.NumberOfInstructions)

	_, err = client.GetJobInfo(ctx, 3)
	require.Error(t, err)
	assert.Equal(t, UnknownJob, ResultOf(err))
	assert.True(t, errors.Is(err, errs.UnknownJob))

	tree, err := client.GetInstructionTree(ctx, 0)
	require.NoError(t, err)
	assert.True(t, tree.Type().IsObjectType())
}

func TestControlClient(t *testing.T) {
	reg, _, control, _ := newServices(t)
	client := NewControlClient(Local(control))
	ctx := context.Background()

	require.NoError(t, client.EditBreakpoint(ctx, 0, 2, true))
	assert.True(t, reg.breakpoints[[2]uint32{0, 2}])

	err := client.EditBreakpoint(ctx, 0, 4, true)
	assert.Equal(t, UnknownInstruction, ResultOf(err))
	err = client.EditBreakpoint(ctx, 1, 0, true)
	assert.Equal(t, UnknownJob, ResultOf(err))

	require.NoError(t, client.SendJobCommand(ctx, 0, domain.JobCommandStart))
	require.NoError(t, client.SendJobCommand(ctx, 0, domain.JobCommandHalt))
	assert.Equal(t, []domain.JobCommand{domain.JobCommandStart, domain.JobCommandHalt}, reg.commands)

	err = client.SendJobCommand(ctx, 0, domain.JobCommandTerminate)
	assert.ErrorIs(t, err, errs.UnknownJobCommand)
}

func TestInputClient(t *testing.T) {
	reg, _, _, input := newServices(t)
	client := NewInputClient(Local(input))
	ctx := context.Background()

	reply := domain.UserInputReply{Result: true, Value: cty.StringVal("yes")}
	err := client.SetClientReply(ctx, 0, 4, reply)
	assert.Equal(t, ClientReplyRefused, ResultOf(err))

	err = client.SetClientReply(ctx, 0, 5, domain.UserInputReply{Result: true})
	assert.Equal(t, ClientReplyRefused, ResultOf(err))

	require.NoError(t, client.SetClientReply(ctx, 0, 5, reply))
	assert.True(t, reg.replies[5].Value.RawEquals(cty.StringVal("yes")))
}

func TestTransportFailure(t *testing.T) {
	failing := InvokerFunc(func(context.Context, cty.Value) (cty.Value, error) {
		return cty.NilVal, errors.New("connection reset")
	})
	_, err := NewInfoClient(failing).GetNumberOfJobs(context.Background())
	assert.Equal(t, TransportError, ResultOf(err))

	garbage := InvokerFunc(func(context.Context, cty.Value) (cty.Value, error) {
		return cty.StringVal("nonsense"), nil
	})
	_, err = NewInfoClient(garbage).GetNumberOfJobs(context.Background())
	assert.Equal(t, ClientProtocolDecodingError, ResultOf(err))
}
