package schedulerengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/config"
)

type recordingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *recordingPruner) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 3, p.err
}

func (p *recordingPruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestPruneEventsUsesRetentionWindow(t *testing.T) {
	pruner := &recordingPruner{}
	s := NewSchedulerEngine(&config.AuditConfig{Retention: 24 * time.Hour, PruneInterval: time.Hour}, pruner, logging.Wrap(zaptest.NewLogger(t)))
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.PruneEvents(context.Background())
	pruner.err = errors.New("db down")
	s.PruneEvents(context.Background())

	assert.Equal(t, []time.Time{now.Add(-24 * time.Hour), now.Add(-24 * time.Hour)}, pruner.cutoffs)
}

func TestRetentionEngineRunsUntilCancelled(t *testing.T) {
	pruner := &recordingPruner{}
	s := NewSchedulerEngine(&config.AuditConfig{Retention: time.Hour, PruneInterval: 5 * time.Millisecond}, pruner, logging.Wrap(zaptest.NewLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	s.StartRetentionEngine(ctx)
	assert.Eventually(t, func() bool { return pruner.calls() >= 2 }, time.Second, time.Millisecond)

	cancel()
	s.Wait()
	n := pruner.calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, pruner.calls())
}

func TestRetentionEngineDisabled(t *testing.T) {
	pruner := &recordingPruner{}
	s := NewSchedulerEngine(&config.AuditConfig{PruneInterval: time.Millisecond}, pruner, logging.Wrap(zaptest.NewLogger(t)))

	s.StartRetentionEngine(context.Background())
	s.Wait()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, pruner.calls())
}
