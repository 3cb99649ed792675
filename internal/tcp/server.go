// Package tcp carries protocol requests over framed TCP connections.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/autoserver-2025.net/internal/tcp/defs"
	"gitlab.com/autoserver-2025.net/internal/tcp/handlers"
)

// TCPServer handles TCP connections from protocol clients
type TCPServer struct {
	address       string
	verifier      primary.JWTService
	logger        primary.Logger
	listener      net.Listener
	connectionMgr *connectionmanager.ConnectionManager
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	routes        map[string]handlers.Route
	handlers      map[byte]primary.MessageHandler
}

// TCPServerOption configures a TCPServer
type TCPServerOption func(*TCPServer)

// WithAddress sets the server address
func WithAddress(address string) TCPServerOption {
	return func(s *TCPServer) {
		s.address = address
	}
}

// WithJWTService turns on token verification for every request
func WithJWTService(verifier primary.JWTService) TCPServerOption {
	return func(s *TCPServer) {
		s.verifier = verifier
	}
}

// NewTCPServer creates a new TCP server
func NewTCPServer(logger primary.Logger, options ...TCPServerOption) *TCPServer {
	server := &TCPServer{
		address:       ":9000", // Default address
		logger:        logger,
		connectionMgr: connectionmanager.NewConnectionManager(logger),
		stopCh:        make(chan struct{}),
		routes:        make(map[string]handlers.Route),
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	// Register message handlers
	server.setupMessageHandlers()

	return server
}

// setupMessageHandlers registers all message handlers
func (s *TCPServer) setupMessageHandlers() {
	s.handlers = map[byte]primary.MessageHandler{
		defs.MsgRequest: handlers.NewRequestHandler(s.routes, s.verifier, s.logger),
	}
}

// RegisterService exposes a service under name. Holders of a token with a role
// allowing required may call it. Services are registered before Start.
func (s *TCPServer) RegisterService(name string, handler primary.ServiceHandler, required domain.Role) {
	s.routes[name] = handlers.Route{Handler: handler, Role: required}
}

// Start starts the TCP server
func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	s.logger.Info("TCP server listening", "address", s.listener.Addr().String())

	// Accept connections in a goroutine
	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

// Addr returns the listening address, nil before Start
func (s *TCPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the TCP server and waits for connection handlers until ctx ends
func (s *TCPServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		// Close listener
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.logger.Error("Failed to close listener", "error", err)
			}
		}

		// Close all connections
		s.connectionMgr.CloseAll()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acceptConnections accepts incoming connections
func (s *TCPServer) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.logger.Error("Failed to accept connection", "error", err)
				time.Sleep(defs.ConnectionRetryDelay) // Avoid tight loop on error
				continue
			}
		}

		// Handle connection in a goroutine
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection serves requests of one connection in arrival order
func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := s.connectionMgr.Register(conn)
	defer s.connectionMgr.Remove(connID)
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.logger.Debug("Client connected", "connID", connID, "remote", conn.RemoteAddr().String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		// Read and parse message
		msgType, payload, err := connectionmanager.ReadMessage(conn)
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				if !errors.Is(err, io.EOF) {
					s.logger.Error("Failed to read message", "connID", connID, "error", err)
				}
			}
			s.logger.Debug("Client disconnected", "connID", connID)
			return
		}

		// Find handler for message type
		handler, exists := s.handlers[msgType]
		if !exists {
			s.logger.Error("Unknown message type", "type", msgType)
			connectionmanager.SendErrorMessage(conn, defs.ErrCodeUnknownMessage, fmt.Sprintf("Unknown message type: %d", msgType))
			continue
		}

		if err := handler.HandleMessage(ctx, conn, payload); err != nil {
			s.logger.Error("Error handling message", "type", msgType, "connID", connID, "error", err)
			return
		}
	}
}
