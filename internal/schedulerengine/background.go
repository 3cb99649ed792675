// Package schedulerengine runs periodic maintenance tasks of the server.
package schedulerengine

import (
	"context"
	"sync"
	"time"

	"gitlab.com/autoserver-2025.net/internal/config"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
)

type SchedulerEngine struct {
	auditCfg *config.AuditConfig
	events   secondary.JobEventPruner
	logger   primary.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

func NewSchedulerEngine(
	auditCfg *config.AuditConfig,
	events secondary.JobEventPruner,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		auditCfg: auditCfg,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// StartRetentionEngine prunes expired job events every PruneInterval until
// ctx ends. It does nothing when retention is not configured.
func (s *SchedulerEngine) StartRetentionEngine(ctx context.Context) {
	if !s.auditCfg.Enabled() {
		s.logger.Debug("Event retention disabled")
		return
	}

	ticker := time.NewTicker(s.auditCfg.PruneInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.PruneEvents(ctx)
			}
		}
	}()
}

// Wait blocks until the engine goroutines have returned
func (s *SchedulerEngine) Wait() {
	s.wg.Wait()
}

// PruneEvents deletes the events older than the retention window
func (s *SchedulerEngine) PruneEvents(ctx context.Context) {
	cutoff := s.now().Add(-s.auditCfg.Retention)
	n, err := s.events.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune job events", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("Pruned job events", "count", n, "before", cutoff)
	}
}
