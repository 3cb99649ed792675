// Package controller serializes job commands and procedure execution onto a
// single goroutine per job.
package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/queue"
)

// Runner is the part of the procedure runner the controller drives.
type Runner interface {
	SetTickCallback(fn func())
	ExecuteProcedure()
	ExecuteSingle()
	Pause()
	Halt()
	IsFinished() bool
	Status() domain.ExecutionStatus
}

type action int

const (
	actionNone action = iota
	actionRun
	actionStep
	actionPause
	actionPauseThenStep
	actionHalt
	actionReset
	actionExit
)

// transition applies the command table to state.
func transition(state domain.JobState, cmd domain.JobCommand) (domain.JobState, action) {
	if cmd == domain.JobCommandTerminate {
		return state, actionExit
	}

	switch state {
	case domain.JobStateInitial:
		switch cmd {
		case domain.JobCommandStart:
			return domain.JobStateRunning, actionRun
		case domain.JobCommandStep:
			return domain.JobStateStepping, actionStep
		}
	case domain.JobStateRunning:
		switch cmd {
		case domain.JobCommandStep:
			return domain.JobStatePaused, actionPauseThenStep
		case domain.JobCommandPause:
			return domain.JobStatePaused, actionPause
		case domain.JobCommandHalt:
			return domain.JobStateHalted, actionHalt
		}
	case domain.JobStatePaused, domain.JobStateStepping:
		switch cmd {
		case domain.JobCommandStart:
			return domain.JobStateRunning, actionRun
		case domain.JobCommandStep:
			return domain.JobStateStepping, actionStep
		case domain.JobCommandHalt:
			return domain.JobStateHalted, actionHalt
		}
	case domain.JobStateSucceeded, domain.JobStateFailed, domain.JobStateHalted:
		if cmd == domain.JobCommandReset {
			return domain.JobStateInitial, actionReset
		}
	}
	return state, actionNone
}

// Controller owns the procedure through one execution goroutine. State
// callbacks run on that goroutine.
type Controller struct {
	runner  Runner
	reset   func()
	onState func(domain.JobState)
	logger  primary.Logger

	commands *queue.Queue[domain.JobCommand]
	state    atomic.Uint32
	halting  atomic.Bool
	done     chan struct{}
	once     sync.Once

	// owned by the execution goroutine
	current domain.JobState
	running bool
	exit    bool
}

// New starts the execution goroutine. reset returns the procedure to its
// initial state; onState is called for every state transition.
func New(runner Runner, reset func(), onState func(domain.JobState), logger primary.Logger) *Controller {
	c := &Controller{
		runner:   runner,
		reset:    reset,
		onState:  onState,
		logger:   logger,
		commands: queue.New[domain.JobCommand](),
		done:     make(chan struct{}),
		current:  domain.JobStateInitial,
	}
	runner.SetTickCallback(c.processCommandWhenRunning)

	go c.loop()
	return c
}

// State returns the last state set by the execution goroutine.
func (c *Controller) State() domain.JobState {
	return domain.JobState(c.state.Load())
}

// Push queues a command without waiting. Halt also stops the runner directly
// so a procedure blocked inside an instruction is interrupted.
func (c *Controller) Push(cmd domain.JobCommand) {
	if cmd == domain.JobCommandHalt {
		c.halting.Store(true)
	}
	c.commands.Push(cmd)
	if cmd == domain.JobCommandHalt {
		c.runner.Halt()
	}
}

// Terminate stops the execution goroutine, discards queued commands and
// resets the procedure. It must not be called from a state callback.
func (c *Controller) Terminate() {
	c.once.Do(func() {
		c.halting.Store(true)
		c.commands.Clear()
		c.commands.Push(domain.JobCommandTerminate)
		c.runner.Halt()
		<-c.done

		if n := c.commands.Clear(); n > 0 {
			c.logger.Debug("Discarded queued commands", "count", n)
		}
		c.reset()
	})
}

// Done is closed when the execution goroutine has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) loop() {
	defer close(c.done)

	for !c.exit {
		cmd, err := c.commands.Pop(context.Background())
		if err != nil {
			return
		}
		c.handle(cmd)
	}
}

// processCommandWhenRunning is the runner tick callback. It applies at most
// one queued command per tick.
func (c *Controller) processCommandWhenRunning() {
	if cmd, ok := c.commands.TryPop(); ok {
		c.handle(cmd)
	}
}

func (c *Controller) handle(cmd domain.JobCommand) {
	if cmd == domain.JobCommandHalt {
		c.halting.Store(false)
	}

	next, act := transition(c.current, cmd)
	c.logger.Debug("Job command", "command", cmd.String(), "state", c.current.String(), "next", next.String())

	switch act {
	case actionNone:
	case actionExit:
		c.exit = true
		if c.running {
			c.runner.Halt()
		}
	case actionPause:
		c.runner.Pause()
		c.setState(next)
	case actionPauseThenStep:
		c.runner.Pause()
		c.setState(next)
		c.commands.PushFront(domain.JobCommandStep)
	case actionHalt:
		c.runner.Halt()
		c.setState(next)
	case actionReset:
		c.reset()
		c.setState(next)
	case actionRun:
		c.setState(next)
		c.execute(c.runner.ExecuteProcedure)
	case actionStep:
		c.setState(next)
		c.execute(c.runner.ExecuteSingle)
	}
}

// execute runs the procedure and settles the state once the runner returns.
// A finished procedure overrides whatever the commands decided meanwhile.
func (c *Controller) execute(run func()) {
	c.running = true
	run()
	c.running = false

	if c.exit {
		return
	}
	if c.runner.IsFinished() {
		if c.runner.Status() == domain.StatusSuccess {
			c.setState(domain.JobStateSucceeded)
		} else {
			c.setState(domain.JobStateFailed)
		}
		return
	}
	if c.halting.Load() {
		// the queued Halt settles the state
		return
	}
	if c.current == domain.JobStateRunning || c.current == domain.JobStateStepping {
		c.setState(domain.JobStatePaused)
	}
}

func (c *Controller) setState(state domain.JobState) {
	if state == c.current {
		return
	}
	c.current = state
	c.state.Store(uint32(state))
	c.onState(state)
}
