package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

type recordingPort struct {
	mu      sync.Mutex
	added   []string
	updates []string
	failOn  string
	gate    chan struct{}
}

func (p *recordingPort) AddNamedValues(_ context.Context, values []domain.NamedValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range values {
		p.added = append(p.added, v.Name)
	}
	return nil
}

func (p *recordingPort) UpdateNamedValue(_ context.Context, name string, value cty.Value) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if name == p.failOn {
		return errors.New("transport down")
	}
	p.updates = append(p.updates, name+"="+value.AsString())
	return nil
}

func initial(names ...string) []domain.NamedValue {
	out := make([]domain.NamedValue, len(names))
	for i, n := range names {
		out[i] = domain.NamedValue{Name: n, Value: cty.StringVal("")}
	}
	return out
}

func TestInitialValuesRegisteredSynchronously(t *testing.T) {
	port := &recordingPort{}
	p, err := New(context.Background(), port, initial("a", "b"), logging.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"a", "b"}, port.added)
}

func TestUpdatesDeliveredInOrderBeforeExit(t *testing.T) {
	port := &recordingPort{gate: make(chan struct{})}
	p, err := New(context.Background(), port, initial("x"), logging.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)

	for _, v := range []string{"u1", "u2", "u3"} {
		assert.True(t, p.Publish("x", cty.StringVal(v)))
	}
	close(port.gate)
	p.Close()
	assert.False(t, p.Publish("x", cty.StringVal("u4")))

	want := []string{"x=u1", "x=u2", "x=u3"}
	if diff := cmp.Diff(want, port.updates); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownNameRejected(t *testing.T) {
	port := &recordingPort{}
	p, err := New(context.Background(), port, initial("x"), logging.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.Publish("y", cty.StringVal("v")))
}

func TestTransportFailureDoesNotStopConsumer(t *testing.T) {
	port := &recordingPort{failOn: "bad"}
	p, err := New(context.Background(), port, initial("bad", "good"), logging.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)

	p.Publish("bad", cty.StringVal("1"))
	p.Publish("good", cty.StringVal("2"))
	p.Close()

	assert.Equal(t, []string{"good=2"}, port.updates)
}

func TestCloseIsIdempotent(t *testing.T) {
	p, err := New(context.Background(), &recordingPort{}, nil, logging.Wrap(zaptest.NewLogger(t)))
	require.NoError(t, err)
	p.Close()
	p.Close()
}
