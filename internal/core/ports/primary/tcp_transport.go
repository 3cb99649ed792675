package primary

import (
	"context"
	"net"

	"github.com/zclconf/go-cty/cty"
)

// MessageHandler defines an interface for handling different message types
type MessageHandler interface {
	HandleMessage(ctx context.Context, conn net.Conn, payload []byte) error
}

// ServiceHandler answers protocol requests addressed to one service identity.
// Failures are reported inside the reply, never as Go errors.
type ServiceHandler interface {
	Invoke(ctx context.Context, request cty.Value) cty.Value
}
