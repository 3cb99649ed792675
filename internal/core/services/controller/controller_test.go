package controller

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
)

func TestTransitionTable(t *testing.T) {
	type outcome struct {
		next domain.JobState
		act  action
	}
	s := func(next domain.JobState, act action) outcome { return outcome{next, act} }

	const (
		initial   = domain.JobStateInitial
		running   = domain.JobStateRunning
		stepping  = domain.JobStateStepping
		paused    = domain.JobStatePaused
		succeeded = domain.JobStateSucceeded
		failed    = domain.JobStateFailed
		halted    = domain.JobStateHalted
	)
	commands := []domain.JobCommand{
		domain.JobCommandStart, domain.JobCommandStep, domain.JobCommandPause,
		domain.JobCommandReset, domain.JobCommandHalt, domain.JobCommandTerminate,
	}
	table := map[domain.JobState][]outcome{
		initial: {s(running, actionRun), s(stepping, actionStep), s(initial, actionNone),
			s(initial, actionNone), s(initial, actionNone), s(initial, actionExit)},
		running: {s(running, actionNone), s(paused, actionPauseThenStep), s(paused, actionPause),
			s(running, actionNone), s(halted, actionHalt), s(running, actionExit)},
		paused: {s(running, actionRun), s(stepping, actionStep), s(paused, actionNone),
			s(paused, actionNone), s(halted, actionHalt), s(paused, actionExit)},
		succeeded: {s(succeeded, actionNone), s(succeeded, actionNone), s(succeeded, actionNone),
			s(initial, actionReset), s(succeeded, actionNone), s(succeeded, actionExit)},
		failed: {s(failed, actionNone), s(failed, actionNone), s(failed, actionNone),
			s(initial, actionReset), s(failed, actionNone), s(failed, actionExit)},
		halted: {s(halted, actionNone), s(halted, actionNone), s(halted, actionNone),
			s(initial, actionReset), s(halted, actionNone), s(halted, actionExit)},
	}

	for state, row := range table {
		for i, cmd := range commands {
			next, act := transition(state, cmd)
			assert.Equal(t, row[i], outcome{next, act}, "%s + %s", state, cmd)
		}
	}
	// a job is only observed in Stepping while the step runs; commands
	// processed then behave as in Paused
	for _, cmd := range commands[:len(commands)-1] {
		wantNext, wantAct := transition(paused, cmd)
		next, act := transition(stepping, cmd)
		assert.Equal(t, wantAct, act, "stepping + %s", cmd)
		if wantNext != paused {
			assert.Equal(t, wantNext, next, "stepping + %s", cmd)
		}
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []domain.JobState
	notify chan struct{}
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{notify: make(chan struct{}, 64)}
}

func (r *stateRecorder) record(s domain.JobState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *stateRecorder) snapshot() []domain.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.JobState(nil), r.states...)
}

func waitForState(t *testing.T, c *Controller, want domain.JobState) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, 2*time.Second, 5*time.Millisecond,
		"state %s never reached, last %s", want, c.State())
}

// waitForRecorded waits until the state callback has seen want, then
// compares the whole history.
func waitForRecorded(t *testing.T, rec *stateRecorder, want []domain.JobState) {
	t.Helper()
	require.Eventually(t, func() bool { return len(rec.snapshot()) >= len(want) }, 2*time.Second, 5*time.Millisecond,
		"only %d of %d states recorded", len(rec.snapshot()), len(want))
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func newController(t *testing.T, doc string) (*Controller, *procedure.Procedure, *stateRecorder) {
	t.Helper()
	proc, err := procedure.Parse([]byte(doc))
	require.NoError(t, err)

	ui := procedure.NopUserInterface{}
	runner := procedure.NewRunner(proc, ui)
	rec := newStateRecorder()
	c := New(runner, func() { proc.Reset(ui) }, rec.record, logging.Wrap(zaptest.NewLogger(t)))
	t.Cleanup(c.Terminate)
	return c, proc, rec
}

const shortProcedure = `
instructions:
  type: Sequence
  children:
    - type: Succeed
    - type: Succeed
    - type: Succeed
`

const endlessProcedure = `
instructions:
  type: Repeat
  maxCount: -1
  children:
    - type: Wait
      timeout: 0.005
`

func TestStartRunsToSuccess(t *testing.T) {
	c, _, rec := newController(t, shortProcedure)
	assert.Equal(t, domain.JobStateInitial, c.State())

	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateSucceeded)

	waitForRecorded(t, rec, []domain.JobState{domain.JobStateRunning, domain.JobStateSucceeded})

	c.Push(domain.JobCommandReset)
	waitForState(t, c, domain.JobStateInitial)
}

func TestFailureIsReported(t *testing.T) {
	c, _, _ := newController(t, "instructions:\n  type: Fail\n")
	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateFailed)
}

func TestStepping(t *testing.T) {
	c, proc, rec := newController(t, shortProcedure)

	c.Push(domain.JobCommandStep)
	waitForState(t, c, domain.JobStatePaused)
	assert.Equal(t, domain.StatusSuccess, proc.Instructions()[1].Status())
	assert.Equal(t, domain.StatusNotStarted, proc.Instructions()[2].Status())

	c.Push(domain.JobCommandStep)
	c.Push(domain.JobCommandStep)
	waitForState(t, c, domain.JobStateSucceeded)

	waitForRecorded(t, rec, []domain.JobState{
		domain.JobStateStepping, domain.JobStatePaused,
		domain.JobStateStepping, domain.JobStatePaused,
		domain.JobStateStepping, domain.JobStateSucceeded,
	})
}

func TestPauseResumeHaltReset(t *testing.T) {
	c, proc, rec := newController(t, endlessProcedure)

	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateRunning)

	c.Push(domain.JobCommandPause)
	waitForState(t, c, domain.JobStatePaused)

	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateRunning)

	// Step while running pauses, then performs exactly one step
	c.Push(domain.JobCommandStep)
	waitForRecorded(t, rec, []domain.JobState{
		domain.JobStateRunning, domain.JobStatePaused,
		domain.JobStateRunning, domain.JobStatePaused,
		domain.JobStateStepping, domain.JobStatePaused,
	})

	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateRunning)

	c.Push(domain.JobCommandHalt)
	waitForState(t, c, domain.JobStateHalted)

	c.Push(domain.JobCommandStart)
	c.Push(domain.JobCommandReset)
	waitForState(t, c, domain.JobStateInitial)
	for _, instr := range proc.Instructions() {
		assert.Equal(t, domain.StatusNotStarted, instr.Status())
	}
}

func TestHaltInterruptsBlockedInstruction(t *testing.T) {
	c, _, _ := newController(t, "instructions:\n  type: Wait\n  timeout: 3600\n")

	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateRunning)

	c.Push(domain.JobCommandHalt)
	waitForState(t, c, domain.JobStateHalted)
}

func TestTerminateFromEveryState(t *testing.T) {
	setups := map[string][]domain.JobCommand{
		"initial": nil,
		"running": {domain.JobCommandStart},
		"paused":  {domain.JobCommandStep},
		"halted":  {domain.JobCommandStart, domain.JobCommandHalt},
	}
	for name, cmds := range setups {
		t.Run(name, func(t *testing.T) {
			c, proc, _ := newController(t, endlessProcedure)
			for _, cmd := range cmds {
				c.Push(cmd)
			}
			time.Sleep(20 * time.Millisecond)

			c.Terminate()
			select {
			case <-c.Done():
			default:
				t.Fatal("execution goroutine still running after Terminate")
			}
			assert.Equal(t, domain.StatusNotStarted, proc.RootInstruction().Status())
		})
	}

	c, _, _ := newController(t, shortProcedure)
	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateSucceeded)
	c.Terminate()
	<-c.Done()
}

// tickRunner runs one tick each time the test sends on ticks.
type tickRunner struct {
	tick      func()
	afterTick func()
	ticks     chan struct{}
	wake      chan struct{}
	stop      atomic.Bool
	singles   atomic.Int32
}

func newTickRunner() *tickRunner {
	return &tickRunner{ticks: make(chan struct{}), wake: make(chan struct{}, 1)}
}

func (r *tickRunner) SetTickCallback(fn func()) { r.tick = fn }

func (r *tickRunner) ExecuteProcedure() {
	r.stop.Store(false)
	for !r.stop.Load() {
		select {
		case <-r.ticks:
		case <-r.wake:
			continue
		}
		r.tick()
		if r.afterTick != nil {
			r.afterTick()
		}
	}
}

func (r *tickRunner) ExecuteSingle() { r.singles.Add(1) }

func (r *tickRunner) Pause() { r.interrupt() }

func (r *tickRunner) Halt() { r.interrupt() }

func (r *tickRunner) interrupt() {
	r.stop.Store(true)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *tickRunner) IsFinished() bool { return false }

func (r *tickRunner) Status() domain.ExecutionStatus { return domain.StatusNotFinished }

func TestOneQueuedCommandPerTick(t *testing.T) {
	runner := newTickRunner()
	rec := newStateRecorder()
	var seen [][]domain.JobState
	runner.afterTick = func() { seen = append(seen, rec.snapshot()) }

	c := New(runner, func() {}, rec.record, logging.Wrap(zaptest.NewLogger(t)))
	t.Cleanup(c.Terminate)

	c.Push(domain.JobCommandStart)
	waitForState(t, c, domain.JobStateRunning)

	c.Push(domain.JobCommandPause)
	c.Push(domain.JobCommandStep)
	runner.ticks <- struct{}{}

	waitForRecorded(t, rec, []domain.JobState{
		domain.JobStateRunning, domain.JobStatePaused,
		domain.JobStateStepping, domain.JobStatePaused,
	})
	assert.Equal(t, int32(1), runner.singles.Load())

	// only Pause was applied by the tick; Step ran after the procedure returned
	wantSeen := [][]domain.JobState{{domain.JobStateRunning, domain.JobStatePaused}}
	if diff := cmp.Diff(wantSeen, seen); diff != "" {
		t.Errorf("states at tick mismatch (-want +got):\n%s", diff)
	}
}
