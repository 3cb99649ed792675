package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/adapter/memory/valuehub"
	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/protocol"
)

type fakeEvents struct {
	saved []*domain.JobEvent
	err   error
}

func (f *fakeEvents) SaveEvent(_ context.Context, event *domain.JobEvent) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, event)
	return nil
}

func (f *fakeEvents) ListEvents(context.Context, string, int) ([]*domain.JobEvent, error) {
	return f.saved, nil
}

func newPort(t *testing.T, events *fakeEvents) (*Port, *valuehub.Hub, string) {
	t.Helper()
	hub := valuehub.New()
	prefix := protocol.JobPrefix("SRV", 2)
	require.NoError(t, hub.AddNamedValues(context.Background(), []domain.NamedValue{
		{Name: protocol.JobStateName(prefix), Value: protocol.EncodeJobState(domain.JobStateInitial)},
		{Name: protocol.LogName(prefix), Value: anyvalue.Empty},
		{Name: protocol.InstructionName(prefix, 0), Value: protocol.EncodeInstructionState(domain.InstructionState{})},
	}))

	p := New(hub, events, logging.Wrap(zaptest.NewLogger(t)))
	p.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p, hub, prefix
}

func TestAuditedUpdatesAreSaved(t *testing.T) {
	ctx := context.Background()
	events := &fakeEvents{}
	p, hub, prefix := newPort(t, events)

	require.NoError(t, p.UpdateNamedValue(ctx, protocol.JobStateName(prefix), protocol.EncodeJobState(domain.JobStateRunning)))
	require.NoError(t, p.UpdateNamedValue(ctx, protocol.InstructionName(prefix, 0),
		protocol.EncodeInstructionState(domain.InstructionState{Status: domain.StatusNotFinished})))
	require.NoError(t, p.UpdateNamedValue(ctx, protocol.LogName(prefix), anyvalue.Empty))
	require.NoError(t, p.UpdateNamedValue(ctx, protocol.LogName(prefix), protocol.EncodeLogEntry(domain.LogEntry{
		Index: 1, Timestamp: time.Now(), Severity: domain.SeverityInfo, Message: "hello",
	})))

	v, _ := hub.Get(protocol.InstructionName(prefix, 0))
	st, err := protocol.DecodeInstructionState(v)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotFinished, st.Status)

	require.Len(t, events.saved, 2)
	assert.Equal(t, "SRV:PROC-2:", events.saved[0].JobPrefix)
	assert.Equal(t, "JobState", events.saved[0].Kind)
	assert.JSONEq(t, "1", string(events.saved[0].Payload))
	assert.NotEmpty(t, events.saved[0].ID)
	assert.NotEqual(t, events.saved[0].ID, events.saved[1].ID)

	assert.Equal(t, "Log", events.saved[1].Kind)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(events.saved[1].Payload, &entry))
	assert.Equal(t, "hello", entry["message"])
}

func TestSaveFailureDoesNotFailUpdate(t *testing.T) {
	events := &fakeEvents{err: errors.New("database down")}
	p, hub, prefix := newPort(t, events)

	require.NoError(t, p.UpdateNamedValue(context.Background(), protocol.JobStateName(prefix),
		protocol.EncodeJobState(domain.JobStateHalted)))
	v, _ := hub.Get(protocol.JobStateName(prefix))
	state, err := protocol.DecodeJobState(v)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateHalted, state)
}

func TestTransportErrorIsReturned(t *testing.T) {
	events := &fakeEvents{}
	p, _, _ := newPort(t, events)

	err := p.UpdateNamedValue(context.Background(), "SRV:PROC-9:JOBSTATE", cty.NumberIntVal(1))
	assert.Error(t, err)
	assert.Empty(t, events.saved)
}
