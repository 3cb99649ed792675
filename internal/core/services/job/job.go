// Package job hosts one procedure: it indexes it, publishes its state and
// routes commands, breakpoints and user replies to it.
package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/core/services/controller"
	"gitlab.com/autoserver-2025.net/internal/core/services/indexer"
	"gitlab.com/autoserver-2025.net/internal/core/services/publisher"
	"gitlab.com/autoserver-2025.net/internal/core/services/rendezvous"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

var _ procedure.UserInterface = (*Job)(nil)

// Option configures a Job
type Option func(*Job)

// WithInputTimeout bounds how long a procedure waits for a user reply. Zero
// waits until a reply arrives or the job is halted.
func WithInputTimeout(d time.Duration) Option {
	return func(j *Job) {
		j.inputTimeout = d
	}
}

// Job owns a procedure together with its controller and publisher.
type Job struct {
	index  uint32
	prefix string
	logger primary.Logger

	proc       *procedure.Procedure
	idx        *indexer.Index
	info       domain.JobInfo
	runner     *procedure.Runner
	publisher  *publisher.Publisher
	controller *controller.Controller
	rendezvous *rendezvous.Rendezvous

	treeMu sync.Mutex
	tree   cty.Value

	logCount    atomic.Uint64
	msgCount    atomic.Uint64
	outputCount atomic.Uint64

	inputMu      sync.Mutex
	requestID    atomic.Uint64
	inputTimeout time.Duration
}

// New indexes proc, registers every name the job publishes with port and
// starts the job's controller in the Initial state.
func New(ctx context.Context, serverPrefix string, index uint32, proc *procedure.Procedure,
	port secondary.ValuePort, logger primary.Logger, opts ...Option) (*Job, error) {
	prefix := protocol.JobPrefix(serverPrefix, index)
	idx := indexer.BuildIndex(proc)

	j := &Job{
		index:      index,
		prefix:     prefix,
		logger:     logger,
		proc:       proc,
		idx:        idx,
		rendezvous: rendezvous.New(),
		tree:       idx.InitialTree(),
		info: domain.JobInfo{
			Prefix:               prefix,
			ProcedureName:        proc.Name(),
			NumberOfVariables:    idx.NumberOfVariables(),
			NumberOfInstructions: idx.NumberOfInstructions(),
			Workspace:            idx.WorkspaceInfo(),
			Root:                 idx.InstructionInfo(),
		},
	}
	for _, opt := range opts {
		opt(j)
	}

	pub, err := publisher.New(ctx, port, j.initialValues(), logger)
	if err != nil {
		return nil, fmt.Errorf("job %d: %w", index, err)
	}
	j.publisher = pub

	proc.Setup(j)
	j.runner = procedure.NewRunner(proc, j)
	j.controller = controller.New(j.runner, func() { proc.Reset(j) }, j.onStateChange, logger)

	logger.Info("Job created", "job", index, "procedure", proc.Name(),
		"instructions", j.info.NumberOfInstructions, "variables", j.info.NumberOfVariables)
	return j, nil
}

func (j *Job) initialValues() []domain.NamedValue {
	values := []domain.NamedValue{
		{Name: protocol.JobStateName(j.prefix), Value: protocol.EncodeJobState(domain.JobStateInitial)},
		{Name: protocol.LogName(j.prefix), Value: anyvalue.Empty},
		{Name: protocol.MessageName(j.prefix), Value: anyvalue.Empty},
		{Name: protocol.OutputValueName(j.prefix), Value: anyvalue.Empty},
		{Name: protocol.BreakpointName(j.prefix), Value: anyvalue.Empty},
		{Name: protocol.InputRequestName(j.prefix), Value: anyvalue.Empty},
	}
	for i := uint32(0); i < j.idx.NumberOfInstructions(); i++ {
		instr, _ := j.idx.Instruction(i)
		values = append(values, domain.NamedValue{
			Name:  protocol.InstructionName(j.prefix, i),
			Value: protocol.EncodeInstructionState(instructionState(instr)),
		})
	}
	ws := j.proc.Workspace()
	for i := uint32(0); i < j.idx.NumberOfVariables(); i++ {
		name, _ := j.idx.VariableName(i)
		value, _ := ws.GetValue(name)
		values = append(values, domain.NamedValue{
			Name:  protocol.VariableName(j.prefix, i),
			Value: protocol.EncodeVariable(value, ws.IsConnected(name)),
		})
	}
	return values
}

func instructionState(instr *procedure.Instruction) domain.InstructionState {
	return domain.InstructionState{Status: instr.Status(), Breakpoint: instr.Breakpoint()}
}

func (j *Job) Index() uint32 { return j.index }

func (j *Job) Prefix() string { return j.prefix }

// Info is the structural description built when the job was created.
func (j *Job) Info() domain.JobInfo { return j.info }

func (j *Job) State() domain.JobState { return j.controller.State() }

// Tree returns the current instruction tree snapshot.
func (j *Job) Tree() cty.Value {
	j.treeMu.Lock()
	defer j.treeMu.Unlock()
	return j.tree
}

// EditBreakpoint sets or clears the breakpoint of the instruction with the
// given breadth-first index.
func (j *Job) EditBreakpoint(instruction uint32, active bool) error {
	instr, ok := j.idx.Instruction(instruction)
	if !ok {
		return fmt.Errorf("job %d: instruction %d: %w", j.index, instruction, errs.UnknownInstruction)
	}
	j.runner.SetBreakpoint(instr, active)
	return nil
}

// SendCommand queues cmd for the controller without waiting.
func (j *Job) SendCommand(cmd domain.JobCommand) {
	j.logger.Debug("Sending job command", "job", j.index, "command", cmd.String())
	j.controller.Push(cmd)
}

// SetClientReply delivers a user reply. It reports false when id is not the
// outstanding request or the reply is empty.
func (j *Job) SetClientReply(id uint64, reply domain.UserInputReply) bool {
	return j.rendezvous.SetClientReply(id, reply)
}

// Close stops execution, resets the procedure and flushes pending updates.
func (j *Job) Close() {
	j.controller.Terminate()
	j.publisher.Close()
	j.logger.Info("Job closed", "job", j.index)
}

func (j *Job) onStateChange(state domain.JobState) {
	j.logger.Info("Job state changed", "job", j.index, "state", state.String())
	j.publisher.Publish(protocol.JobStateName(j.prefix), protocol.EncodeJobState(state))
}

// publishInstruction is called from the execution goroutine and from
// breakpoint edits. The state is read and published under treeMu so the last
// caller always leaves the current state in the tree and on the wire.
func (j *Job) publishInstruction(instr *procedure.Instruction) {
	path := j.idx.FindPath(instr)
	name := protocol.InstructionName(j.prefix, j.idx.FindIndex(instr))

	j.treeMu.Lock()
	defer j.treeMu.Unlock()

	state := instructionState(instr)
	j.tree = indexer.WithNodeState(j.tree, path, state)
	j.publisher.Publish(name, protocol.EncodeInstructionState(state))
}
