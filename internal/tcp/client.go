package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/oauth2"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/autoserver-2025.net/internal/tcp/defs"
)

var ErrClientClosed = errors.New("connection closed")

// Client multiplexes protocol requests over one connection
type Client struct {
	conn   net.Conn
	tokens oauth2.TokenSource
	logger primary.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uuid.UUID]chan []byte
	err     error
	closed  chan struct{}
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTokenSource attaches a bearer token to every request
func WithTokenSource(tokens oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// Dial connects to a TCPServer
func Dial(ctx context.Context, address string, logger primary.Logger, options ...ClientOption) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	return newClient(conn, logger, options...), nil
}

func newClient(conn net.Conn, logger primary.Logger, options ...ClientOption) *Client {
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[uuid.UUID]chan []byte),
		closed:  make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}

	go c.readLoop()
	return c
}

// Close closes the connection and fails pending calls
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.closed
	return err
}

// Invoker binds the client to one service identity
func (c *Client) Invoker(service string) protocol.Invoker {
	return protocol.InvokerFunc(func(ctx context.Context, request cty.Value) (cty.Value, error) {
		return c.Invoke(ctx, service, request)
	})
}

// Invoke sends request to service and waits for its reply
func (c *Client) Invoke(ctx context.Context, service string, request cty.Value) (cty.Value, error) {
	body, err := anyvalue.Marshal(request)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to encode request: %w", err)
	}

	packet := defs.RequestPacket{
		ID:      uuid.New(),
		Service: service,
		Body:    body,
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to obtain token: %w", err)
		}
		packet.Token = token.AccessToken
	}

	payload, err := cbor.Marshal(packet)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to marshal request packet: %w", err)
	}

	replyCh, err := c.register(packet.ID)
	if err != nil {
		return cty.NilVal, err
	}
	defer c.unregister(packet.ID)

	c.writeMu.Lock()
	err = connectionmanager.SendMessage(c.conn, defs.MsgRequest, payload)
	c.writeMu.Unlock()
	if err != nil {
		return cty.NilVal, err
	}

	select {
	case reply := <-replyCh:
		value, err := anyvalue.Unmarshal(reply)
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to decode reply: %w", err)
		}
		return value, nil
	case <-c.closed:
		return cty.NilVal, c.closeErr()
	case <-ctx.Done():
		return cty.NilVal, ctx.Err()
	}
}

func (c *Client) register(id uuid.UUID) (chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	ch := make(chan []byte, 1)
	c.pending[id] = ch
	return ch, nil
}

func (c *Client) unregister(id uuid.UUID) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.closed)

	for {
		msgType, payload, err := connectionmanager.ReadMessage(c.conn)
		if err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrClientClosed, err)
			c.mu.Unlock()
			return
		}

		switch msgType {
		case defs.MsgResponse:
			var packet defs.ResponsePacket
			if err := cbor.Unmarshal(payload, &packet); err != nil {
				c.logger.Error("Failed to parse response packet", "error", err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[packet.ID]
			c.mu.Unlock()
			if !ok {
				c.logger.Debug("Dropping reply without caller", "id", packet.ID.String())
				continue
			}
			select {
			case ch <- packet.Body:
			default:
				c.logger.Warn("Dropping duplicate reply", "id", packet.ID.String())
			}
		case defs.MsgError:
			var data defs.ErrorData
			if err := cbor.Unmarshal(payload, &data); err != nil {
				c.logger.Error("Failed to parse error message", "error", err)
				continue
			}
			c.logger.Error("Server reported error", "code", data.Code, "message", data.Message)
		default:
			c.logger.Warn("Unknown message type", "type", msgType)
		}
	}
}
