package procedure

import (
	"context"
	"sync"
	"sync/atomic"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Runner ticks a procedure. ExecuteProcedure and ExecuteSingle must be called
// from one goroutine at a time; Pause, Halt and SetBreakpoint may be called
// from anywhere.
type Runner struct {
	proc *Procedure
	ex   *execution

	tickCallback func()
	paused       atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc

	// released holds breakpoints already reported for the upcoming tick.
	released map[int]struct{}
}

func NewRunner(proc *Procedure, ui UserInterface) *Runner {
	return &Runner{
		proc:     proc,
		ex:       &execution{workspace: proc.Workspace(), ui: ui},
		released: make(map[int]struct{}),
	}
}

// SetTickCallback installs fn to be called before every tick of ExecuteProcedure.
func (r *Runner) SetTickCallback(fn func()) {
	r.tickCallback = fn
}

// ExecuteProcedure ticks until the procedure finishes, a breakpoint is hit,
// or the runner is paused or halted.
func (r *Runner) ExecuteProcedure() {
	ctx := r.begin()
	defer r.end()

	for !r.IsFinished() {
		if r.tickCallback != nil {
			r.tickCallback()
		}
		if r.paused.Load() || ctx.Err() != nil {
			return
		}
		if instr := r.breakpointAhead(); instr != nil {
			r.released[instr.id] = struct{}{}
			r.ex.ui.BreakpointHit(instr)
			return
		}
		r.tick(ctx)
	}
}

// ExecuteSingle performs exactly one tick. Breakpoints do not stop a single step.
func (r *Runner) ExecuteSingle() {
	ctx := r.begin()
	defer r.end()

	if !r.IsFinished() {
		r.tick(ctx)
	}
}

func (r *Runner) tick(ctx context.Context) {
	r.proc.root.tick(ctx, r.ex)
	clear(r.released)
}

// breakpointAhead returns the first instruction on the path of the next tick
// that is about to start with an unreported breakpoint.
func (r *Runner) breakpointAhead() *Instruction {
	for instr := r.proc.root; instr != nil; instr = instr.next() {
		if instr.Status() != domain.StatusNotStarted || !instr.Breakpoint() {
			continue
		}
		if _, done := r.released[instr.id]; !done {
			return instr
		}
	}
	return nil
}

func (r *Runner) begin() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	r.paused.Store(false)
	return ctx
}

func (r *Runner) end() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}

// Pause stops ExecuteProcedure before its next tick.
func (r *Runner) Pause() {
	r.paused.Store(true)
}

// Halt cancels the execution in progress, unblocking waiting instructions.
func (r *Runner) Halt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// SetBreakpoint toggles the breakpoint flag of an instruction.
func (r *Runner) SetBreakpoint(instr *Instruction, active bool) {
	if instr.breakpoint.Swap(active) != active {
		r.ex.ui.OnBreakpointChange(instr, active)
	}
}

func (r *Runner) IsFinished() bool {
	return r.proc.Status().IsFinished()
}

// Status is the execution status of the procedure root.
func (r *Runner) Status() domain.ExecutionStatus {
	return r.proc.Status()
}
