// Package registry owns the jobs of one server and routes queries and
// commands to them by job index.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/core/services/job"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/static/errs"
)

var _ primary.JobRegistry = (*Registry)(nil)

// Option configures a Registry
type Option func(*Registry)

// WithJobOptions applies opts to every job added afterwards.
func WithJobOptions(opts ...job.Option) Option {
	return func(r *Registry) {
		r.jobOpts = append(r.jobOpts, opts...)
	}
}

// Registry assigns job indices in insertion order. Indices are never reused.
type Registry struct {
	prefix  string
	port    secondary.ValuePort
	logger  primary.Logger
	jobOpts []job.Option

	// addMu serializes AddJob so indices stay dense; mu guards jobs only
	addMu sync.Mutex
	mu    sync.Mutex
	jobs  []*job.Job
}

func New(prefix string, port secondary.ValuePort, logger primary.Logger, opts ...Option) *Registry {
	r := &Registry{
		prefix: prefix,
		port:   port,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddJob registers proc under the next job index.
func (r *Registry) AddJob(ctx context.Context, proc *procedure.Procedure) (uint32, error) {
	r.addMu.Lock()
	defer r.addMu.Unlock()

	index := r.GetNumberOfJobs()
	j, err := job.New(ctx, r.prefix, index, proc, r.port, r.logger, r.jobOpts...)
	if err != nil {
		r.logger.Error("Failed to add job", "procedure", proc.Name(), "error", err)
		return 0, fmt.Errorf("failed to add job: %w", err)
	}

	r.mu.Lock()
	r.jobs = append(r.jobs, j)
	r.mu.Unlock()
	return index, nil
}

func (r *Registry) job(index uint32) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index >= uint32(len(r.jobs)) {
		return nil, fmt.Errorf("job %d: %w", index, errs.UnknownJob)
	}
	return r.jobs[index], nil
}

func (r *Registry) GetServerPrefix() string { return r.prefix }

func (r *Registry) GetNumberOfJobs() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(len(r.jobs))
}

func (r *Registry) GetJobInfo(index uint32) (domain.JobInfo, error) {
	j, err := r.job(index)
	if err != nil {
		return domain.JobInfo{}, err
	}
	return j.Info(), nil
}

// GetJobState returns the state last set by the job's controller.
func (r *Registry) GetJobState(index uint32) (domain.JobState, error) {
	j, err := r.job(index)
	if err != nil {
		return 0, err
	}
	return j.State(), nil
}

// GetInstructionTree returns the current instruction tree snapshot of a job.
func (r *Registry) GetInstructionTree(index uint32) (cty.Value, error) {
	j, err := r.job(index)
	if err != nil {
		return cty.NilVal, err
	}
	return j.Tree(), nil
}

func (r *Registry) EditBreakpoint(index uint32, instruction uint32, active bool) error {
	j, err := r.job(index)
	if err != nil {
		return err
	}
	if instruction >= j.Info().NumberOfInstructions {
		return fmt.Errorf("job %d: instruction %d: %w", index, instruction, errs.UnknownInstruction)
	}
	return j.EditBreakpoint(instruction, active)
}

func (r *Registry) SendCommand(index uint32, command domain.JobCommand) error {
	if uint32(command) >= domain.NumberOfRemoteCommands {
		return fmt.Errorf("command %d: %w", uint32(command), errs.UnknownJobCommand)
	}
	j, err := r.job(index)
	if err != nil {
		return err
	}
	j.SendCommand(command)
	return nil
}

// SetClientReply reports whether the job accepted the reply for request id.
func (r *Registry) SetClientReply(index uint32, id uint64, reply domain.UserInputReply) (bool, error) {
	j, err := r.job(index)
	if err != nil {
		return false, err
	}
	return j.SetClientReply(id, reply), nil
}

// Close stops every job. The registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	jobs := r.jobs
	r.mu.Unlock()

	for _, j := range jobs {
		j.Close()
	}
}
