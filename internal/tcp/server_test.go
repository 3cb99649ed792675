package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"gitlab.com/autoserver-2025.net/internal/adapter/crypto"
	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/adapter/memory/valuehub"
	"gitlab.com/autoserver-2025.net/internal/config"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/services/registry"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/protocol"
)

const counterProcedure = `
name: counter
workspace:
  - name: count
    value: 0
instructions:
  type: Sequence
  children:
    - type: Increment
      varName: count
    - type: Message
      text: counted
`

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New("SRV", valuehub.New(), logging.Wrap(zaptest.NewLogger(t)))
	t.Cleanup(r.Close)

	proc, err := procedure.Parse([]byte(counterProcedure))
	require.NoError(t, err)
	_, err = r.AddJob(context.Background(), proc)
	require.NoError(t, err)
	return r
}

func startServer(t *testing.T, r *registry.Registry, options ...TCPServerOption) *TCPServer {
	t.Helper()
	logger := logging.Wrap(zaptest.NewLogger(t))

	options = append([]TCPServerOption{WithAddress("127.0.0.1:0")}, options...)
	s := NewTCPServer(logger, options...)
	s.RegisterService(protocol.InfoServiceName("SRV"), protocol.NewInfoService(r, logger), domain.RoleObserver)
	s.RegisterService(protocol.ControlServiceName("SRV"), protocol.NewControlService(r, logger), domain.RoleOperator)
	s.RegisterService(protocol.InputServiceName("SRV"), protocol.NewInputService(r, logger), domain.RoleOperator)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func dial(t *testing.T, s *TCPServer, options ...ClientOption) *Client {
	t.Helper()
	c, err := Dial(context.Background(), s.Addr().String(), logging.Wrap(zaptest.NewLogger(t)), options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestInfoOverTCP(t *testing.T) {
	r := newRegistry(t)
	c := dial(t, startServer(t, r))
	info := protocol.NewInfoClient(c.Invoker(protocol.InfoServiceName("SRV")))
	ctx := context.Background()

	ap, err := info.GetApplicationProtocol(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.InfoProtocolType, ap.Type)

	prefix, err := info.GetServerPrefix(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SRV", prefix)

	n, err := info.GetNumberOfJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)

	got, err := info.GetJobInfo(ctx, 0)
	require.NoError(t, err)
	want, err := r.GetJobInfo(0)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("job info mismatch (-want +got):\n%s", diff)
	}

	_, err = info.GetJobInfo(ctx, 7)
	assert.Equal(t, protocol.UnknownJob, protocol.ResultOf(err))
}

func TestControlOverTCP(t *testing.T) {
	r := newRegistry(t)
	c := dial(t, startServer(t, r))
	control := protocol.NewControlClient(c.Invoker(protocol.ControlServiceName("SRV")))

	require.NoError(t, control.SendJobCommand(context.Background(), 0, domain.JobCommandStart))
	assert.Eventually(t, func() bool {
		state, err := r.GetJobState(0)
		return err == nil && state == domain.JobStateSucceeded
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnknownServiceIsNotSupported(t *testing.T) {
	c := dial(t, startServer(t, newRegistry(t)))
	info := protocol.NewInfoClient(c.Invoker("OTHER"))

	_, err := info.GetServerPrefix(context.Background())
	assert.Equal(t, protocol.NotSupported, protocol.ResultOf(err))
}

func tokenFor(t *testing.T, jwt primary.JWTService, role domain.Role) oauth2.TokenSource {
	t.Helper()
	token, err := jwt.GenerateToken(context.Background(), domain.AuthPayload{Username: "ann", Role: role})
	require.NoError(t, err)
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func TestAccessControl(t *testing.T) {
	jwt := crypto.NewJWTService(&config.JwtConfig{Secret: "test-secret", TTL: time.Hour})
	s := startServer(t, newRegistry(t), WithJWTService(jwt))
	ctx := context.Background()

	anonymous := dial(t, s)
	_, err := protocol.NewInfoClient(anonymous.Invoker(protocol.InfoServiceName("SRV"))).GetServerPrefix(ctx)
	assert.Equal(t, protocol.Unauthorized, protocol.ResultOf(err))

	observer := dial(t, s, WithTokenSource(tokenFor(t, jwt, domain.RoleObserver)))
	_, err = protocol.NewInfoClient(observer.Invoker(protocol.InfoServiceName("SRV"))).GetServerPrefix(ctx)
	assert.NoError(t, err)
	err = protocol.NewControlClient(observer.Invoker(protocol.ControlServiceName("SRV"))).
		EditBreakpoint(ctx, 0, 1, true)
	assert.Equal(t, protocol.Unauthorized, protocol.ResultOf(err))

	operator := dial(t, s, WithTokenSource(tokenFor(t, jwt, domain.RoleOperator)))
	_, err = protocol.NewInfoClient(operator.Invoker(protocol.InfoServiceName("SRV"))).GetServerPrefix(ctx)
	assert.NoError(t, err)
	err = protocol.NewControlClient(operator.Invoker(protocol.ControlServiceName("SRV"))).
		EditBreakpoint(ctx, 0, 1, true)
	assert.NoError(t, err)
}

func TestCallsFailAfterServerStops(t *testing.T) {
	s := startServer(t, newRegistry(t))
	c := dial(t, s)
	info := protocol.NewInfoClient(c.Invoker(protocol.InfoServiceName("SRV")))

	_, err := info.GetServerPrefix(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	<-c.closed
	_, err = info.GetServerPrefix(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.Equal(t, protocol.TransportError, protocol.ResultOf(err))
}
