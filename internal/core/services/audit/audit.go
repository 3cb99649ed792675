// Package audit records job state changes, logs, messages and output values
// as they are published.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/protocol"
)

var _ secondary.ValuePort = (*Port)(nil)

var auditedSuffixes = map[protocol.ValueKind]string{
	protocol.KindJobState:    protocol.JobStateSuffix,
	protocol.KindLog:         protocol.LogSuffix,
	protocol.KindMessage:     protocol.MessageSuffix,
	protocol.KindOutputValue: protocol.OutputValueSuffix,
}

// Port forwards every call to the wrapped ValuePort and saves audited
// updates as job events. Failing to save an event does not fail the update.
type Port struct {
	next   secondary.ValuePort
	events secondary.JobEventRepository
	logger primary.Logger
	now    func() time.Time
}

func New(next secondary.ValuePort, events secondary.JobEventRepository, logger primary.Logger) *Port {
	return &Port{
		next:   next,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (p *Port) AddNamedValues(ctx context.Context, values []domain.NamedValue) error {
	return p.next.AddNamedValues(ctx, values)
}

func (p *Port) UpdateNamedValue(ctx context.Context, name string, value cty.Value) error {
	if err := p.next.UpdateNamedValue(ctx, name, value); err != nil {
		return err
	}

	kind, _ := protocol.ParseValueName(name)
	suffix, audited := auditedSuffixes[kind]
	if !audited || anyvalue.IsEmpty(value) {
		return nil
	}

	payload, err := anyvalue.ToJSON(value)
	if err != nil {
		p.logger.Error("Failed to encode job event", "name", name, "error", err)
		return nil
	}
	event := &domain.JobEvent{
		ID:        uuid.NewString(),
		JobPrefix: name[:len(name)-len(suffix)],
		Kind:      kind.String(),
		Payload:   payload,
		CreatedAt: p.now(),
	}
	if err := p.events.SaveEvent(ctx, event); err != nil {
		p.logger.Error("Failed to save job event", "name", name, "error", err)
	}
	return nil
}
