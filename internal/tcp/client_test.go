package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/autoserver-2025.net/internal/adapter/logging"
	"gitlab.com/autoserver-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/autoserver-2025.net/internal/tcp/defs"
)

func TestDuplicateReplyDoesNotStallReader(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	c := newClient(clientConn, logging.Wrap(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = c.Close() })
	t.Cleanup(func() { _ = serverConn.Close() })

	first, second := uuid.New(), uuid.New()
	firstCh, err := c.register(first)
	require.NoError(t, err)
	secondCh, err := c.register(second)
	require.NoError(t, err)

	replies := []defs.ResponsePacket{
		{ID: first, Body: []byte("one")},
		{ID: first, Body: []byte("again")},
		{ID: second, Body: []byte("two")},
	}
	go func() {
		for _, reply := range replies {
			payload, err := cbor.Marshal(reply)
			if err != nil {
				return
			}
			if err := connectionmanager.SendMessage(serverConn, defs.MsgResponse, payload); err != nil {
				return
			}
		}
	}()

	select {
	case body := <-secondCh:
		assert.Equal(t, []byte("two"), body)
	case <-time.After(2 * time.Second):
		t.Fatal("reply after a duplicate was never delivered")
	}
	assert.Equal(t, []byte("one"), <-firstCh)
}
