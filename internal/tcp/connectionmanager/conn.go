package connectionmanager

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/tcp/defs"
)

// ConnectionManager keeps track of open client connections
type ConnectionManager struct {
	connections map[string]net.Conn
	connMutex   sync.RWMutex
	logger      primary.Logger
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(logger primary.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]net.Conn),
		logger:      logger,
	}
}

// Register tracks a connection and returns its id
func (cm *ConnectionManager) Register(conn net.Conn) string {
	id := uuid.NewString()

	cm.connMutex.Lock()
	cm.connections[id] = conn
	cm.connMutex.Unlock()

	return id
}

// Remove forgets a connection once it is closed
func (cm *ConnectionManager) Remove(id string) {
	cm.connMutex.Lock()
	delete(cm.connections, id)
	cm.connMutex.Unlock()
}

// Count returns the number of open connections
func (cm *ConnectionManager) Count() int {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	return len(cm.connections)
}

// CloseAll closes every tracked connection
func (cm *ConnectionManager) CloseAll() {
	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()

	for id, conn := range cm.connections {
		if err := conn.Close(); err != nil {
			cm.logger.Error("Failed to close connection", "connID", id, "error", err)
		}
	}
}

// SendErrorMessage sends an error message to a peer
func SendErrorMessage(conn net.Conn, code int, message string) {
	errorData := defs.ErrorData{
		Code:    code,
		Message: message,
	}

	errorBytes, err := cbor.Marshal(errorData)
	if err != nil {
		// Can't do much if marshaling fails
		return
	}

	// Ignore errors here as the connection might be closing
	_ = SendMessage(conn, defs.MsgError, errorBytes)
}

// SendMessage writes one frame. Callers sharing a connection serialize calls.
func SendMessage(conn net.Conn, msgType byte, payload []byte) error {
	frame := make([]byte, defs.HeaderSize+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], defs.MagicNumber)
	frame[2] = msgType
	frame[3] = 0 // Reserved
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[defs.HeaderSize:], payload)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage reads one frame from a connection
func ReadMessage(conn net.Conn) (byte, []byte, error) {
	// Read message header
	header := make([]byte, defs.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, err
	}

	// Parse header
	magic := binary.BigEndian.Uint16(header[0:2])
	msgType := header[2]
	payloadLen := binary.BigEndian.Uint32(header[4:8])

	// Validate magic number
	if magic != defs.MagicNumber {
		return 0, nil, fmt.Errorf("invalid magic number: %x", magic)
	}
	if payloadLen > defs.MaxPayloadSize {
		return 0, nil, fmt.Errorf("payload too large: %d bytes", payloadLen)
	}

	// Read payload
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}

	return msgType, payload, nil
}
