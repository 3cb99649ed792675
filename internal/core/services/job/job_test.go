package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/adapter/memory/valuehub"
	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/services/indexer"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newJob(t *testing.T, doc string, opts ...Option) (*Job, *valuehub.Hub) {
	t.Helper()
	proc, err := procedure.Parse([]byte(doc))
	require.NoError(t, err)

	hub := valuehub.New()
	j, err := New(context.Background(), "TEST", 0, proc, hub, logging.Wrap(zaptest.NewLogger(t)), opts...)
	require.NoError(t, err)
	t.Cleanup(j.Close)
	return j, hub
}

func published(t *testing.T, hub *valuehub.Hub, name string) cty.Value {
	t.Helper()
	v, ok := hub.Get(name)
	require.True(t, ok, "name %s not exposed", name)
	return v
}

func waitForJobState(t *testing.T, hub *valuehub.Hub, prefix string, want domain.JobState) {
	t.Helper()
	require.Eventually(t, func() bool {
		v, _ := hub.Get(protocol.JobStateName(prefix))
		state, err := protocol.DecodeJobState(v)
		return err == nil && state == want
	}, waitFor, tick, "job never published state %s", want)
}

func waitForInputRequest(t *testing.T, hub *valuehub.Hub, prefix string) domain.UserInputRequest {
	t.Helper()
	var req domain.UserInputRequest
	require.Eventually(t, func() bool {
		v, _ := hub.Get(protocol.InputRequestName(prefix))
		if anyvalue.IsEmpty(v) {
			return false
		}
		var err error
		req, err = protocol.DecodeUserInputRequest(v)
		return err == nil
	}, waitFor, tick, "no input request published")
	return req
}

const messageProcedure = `
name: greet
workspace:
  - name: greeting
    value: hello
instructions:
  type: Sequence
  children:
    - type: Message
      text: one
    - type: Output
      fromVar: greeting
      description: the greeting
    - type: Log
      message: done
      severity: warning
`

func TestNewPublishesInitialValues(t *testing.T) {
	j, hub := newJob(t, messageProcedure)

	assert.Equal(t, "TEST:PROC-0:", j.Prefix())
	info := j.Info()
	assert.Equal(t, "greet", info.ProcedureName)
	assert.Equal(t, uint32(4), info.NumberOfInstructions)
	assert.Equal(t, uint32(1), info.NumberOfVariables)
	require.NotNil(t, info.Root)
	assert.Equal(t, "Sequence", info.Root.Type)

	state, err := protocol.DecodeJobState(published(t, hub, "TEST:PROC-0:JOBSTATE"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateInitial, state)

	for i := uint32(0); i < info.NumberOfInstructions; i++ {
		st, err := protocol.DecodeInstructionState(published(t, hub, protocol.InstructionName(j.Prefix(), i)))
		require.NoError(t, err)
		assert.Equal(t, domain.InstructionState{Status: domain.StatusNotStarted}, st)
	}

	value, connected, err := protocol.DecodeVariable(published(t, hub, "TEST:PROC-0:VAR-0"))
	require.NoError(t, err)
	assert.False(t, connected)
	assert.True(t, value.RawEquals(cty.StringVal("hello")))

	for _, name := range []string{"LOG", "MSG", "OUTVAL", "BREAKPOINT", "INPUTREQ"} {
		assert.True(t, anyvalue.IsEmpty(published(t, hub, j.Prefix()+name)), name)
	}
}

func TestRunPublishesReports(t *testing.T) {
	j, hub := newJob(t, messageProcedure)

	j.SendCommand(domain.JobCommandStart)
	waitForJobState(t, hub, j.Prefix(), domain.JobStateSucceeded)
	assert.Equal(t, domain.JobStateSucceeded, j.State())

	require.Eventually(t, func() bool {
		v, _ := hub.Get(j.Prefix() + "LOG")
		return !anyvalue.IsEmpty(v)
	}, waitFor, tick)

	msg, err := protocol.DecodeLogEntry(published(t, hub, j.Prefix()+"MSG"))
	require.NoError(t, err)
	assert.Equal(t, "one", msg.Message)
	assert.Equal(t, uint64(1), msg.Index)

	logEntry, err := protocol.DecodeLogEntry(published(t, hub, j.Prefix()+"LOG"))
	require.NoError(t, err)
	assert.Equal(t, "done", logEntry.Message)
	assert.Equal(t, domain.SeverityWarning, logEntry.Severity)

	out, err := protocol.DecodeOutputValue(published(t, hub, j.Prefix()+"OUTVAL"))
	require.NoError(t, err)
	assert.Equal(t, "the greeting", out.Description)
	assert.True(t, out.Value.RawEquals(cty.StringVal("hello")))

	root, ok := anyvalue.Uint32Field(j.Tree(), protocol.FieldExecStatus)
	require.True(t, ok)
	assert.Equal(t, uint32(domain.StatusSuccess), root)
}

func TestEditBreakpoint(t *testing.T) {
	j, hub := newJob(t, messageProcedure)

	err := j.EditBreakpoint(4, true)
	assert.ErrorIs(t, err, errs.UnknownInstruction)

	require.NoError(t, j.EditBreakpoint(2, true))
	require.Eventually(t, func() bool {
		v, _ := hub.Get(protocol.InstructionName(j.Prefix(), 2))
		st, err := protocol.DecodeInstructionState(v)
		return err == nil && st.Breakpoint
	}, waitFor, tick)

	j.SendCommand(domain.JobCommandStart)
	waitForJobState(t, hub, j.Prefix(), domain.JobStatePaused)

	require.Eventually(t, func() bool {
		v, _ := hub.Get(protocol.BreakpointName(j.Prefix()))
		index, err := protocol.DecodeBreakpointHit(v)
		return err == nil && index == 2
	}, waitFor, tick)

	j.SendCommand(domain.JobCommandStart)
	waitForJobState(t, hub, j.Prefix(), domain.JobStateSucceeded)
}

const inputProcedure = `
name: ask
workspace:
  - name: answer
    value: ""
instructions:
  type: Input
  outputVar: answer
  description: your name
`

func TestUserInputRoundTrip(t *testing.T) {
	j, hub := newJob(t, inputProcedure)

	j.SendCommand(domain.JobCommandStart)
	req := waitForInputRequest(t, hub, j.Prefix())
	assert.Equal(t, domain.InputRequestValue, req.Type)
	assert.NotZero(t, req.ID)
	text, ok := anyvalue.StringField(req.Metadata, "text")
	require.True(t, ok)
	assert.Equal(t, "your name", text)

	reply := domain.UserInputReply{Result: true, Value: cty.StringVal("ada")}
	assert.False(t, j.SetClientReply(req.ID+1, reply))
	assert.False(t, j.SetClientReply(req.ID, domain.UserInputReply{Result: true}))
	assert.True(t, j.SetClientReply(req.ID, reply))

	waitForJobState(t, hub, j.Prefix(), domain.JobStateSucceeded)
	require.Eventually(t, func() bool {
		v, _ := hub.Get(protocol.InputRequestName(j.Prefix()))
		return anyvalue.IsEmpty(v)
	}, waitFor, tick)

	value, _, err := protocol.DecodeVariable(published(t, hub, "TEST:PROC-0:VAR-0"))
	require.NoError(t, err)
	assert.True(t, value.RawEquals(cty.StringVal("ada")))
}

func TestHaltInterruptsUserInput(t *testing.T) {
	j, hub := newJob(t, inputProcedure)

	j.SendCommand(domain.JobCommandStart)
	req := waitForInputRequest(t, hub, j.Prefix())

	j.SendCommand(domain.JobCommandHalt)
	waitForJobState(t, hub, j.Prefix(), domain.JobStateHalted)
	require.Eventually(t, func() bool {
		v, _ := hub.Get(protocol.InputRequestName(j.Prefix()))
		return anyvalue.IsEmpty(v)
	}, waitFor, tick)

	assert.False(t, j.SetClientReply(req.ID, domain.UserInputReply{Result: true, Value: cty.StringVal("late")}))

	j.SendCommand(domain.JobCommandReset)
	waitForJobState(t, hub, j.Prefix(), domain.JobStateInitial)

	j.SendCommand(domain.JobCommandStart)
	next := waitForInputRequest(t, hub, j.Prefix())
	assert.Greater(t, next.ID, req.ID)
}

func TestUserInputTimeout(t *testing.T) {
	j, hub := newJob(t, inputProcedure, WithInputTimeout(20*time.Millisecond))

	j.SendCommand(domain.JobCommandStart)
	waitForJobState(t, hub, j.Prefix(), domain.JobStateFailed)
}

func TestUserChoice(t *testing.T) {
	j, hub := newJob(t, `
name: pick
workspace:
  - name: selected
    value: 0
instructions:
  type: Choice
  options: red, green, blue
  outputVar: selected
  description: colour
`)

	j.SendCommand(domain.JobCommandStart)
	req := waitForInputRequest(t, hub, j.Prefix())
	assert.Equal(t, domain.InputRequestChoice, req.Type)
	require.True(t, req.Input.Type().IsListType())
	assert.Equal(t, 3, req.Input.LengthInt())

	require.True(t, j.SetClientReply(req.ID, domain.UserInputReply{Result: true, Value: cty.NumberIntVal(2)}))
	waitForJobState(t, hub, j.Prefix(), domain.JobStateSucceeded)

	value, _, err := protocol.DecodeVariable(published(t, hub, "TEST:PROC-0:VAR-0"))
	require.NoError(t, err)
	assert.True(t, value.RawEquals(cty.NumberIntVal(2)))
}

func TestInvalidChoiceFails(t *testing.T) {
	j, hub := newJob(t, `
workspace:
  - name: selected
    value: 0
instructions:
  type: Choice
  options: yes, no
  outputVar: selected
`)

	j.SendCommand(domain.JobCommandStart)
	req := waitForInputRequest(t, hub, j.Prefix())
	require.True(t, j.SetClientReply(req.ID, domain.UserInputReply{Result: true, Value: cty.NumberIntVal(7)}))
	waitForJobState(t, hub, j.Prefix(), domain.JobStateFailed)
}

func TestNextRequestIDSkipsZero(t *testing.T) {
	j := &Job{}
	j.requestID.Store(^uint64(0) - 1)

	assert.Equal(t, ^uint64(0), j.nextRequestID())
	assert.Equal(t, uint64(1), j.nextRequestID())
}

func TestConcurrentBreakpointEditsSettle(t *testing.T) {
	j, hub := newJob(t, messageProcedure)
	instr, ok := j.idx.Instruction(2)
	require.True(t, ok)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if g == 0 {
					j.UpdateInstructionStatus(instr)
					continue
				}
				assert.NoError(t, j.EditBreakpoint(2, (i+g)%2 == 0))
			}
		}(g)
	}
	wg.Wait()
	j.Close()

	want := domain.InstructionState{Status: instr.Status(), Breakpoint: instr.Breakpoint()}
	tree := j.Tree()
	assert.True(t, tree.RawEquals(indexer.WithNodeState(tree, j.idx.FindPath(instr), want)),
		"tree does not hold the final instruction state")

	st, err := protocol.DecodeInstructionState(published(t, hub, protocol.InstructionName(j.Prefix(), 2)))
	require.NoError(t, err)
	assert.Equal(t, want, st)
}
