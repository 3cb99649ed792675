package handlers

import (
	"context"
	"fmt"
	"net"

	"github.com/fxamacker/cbor/v2"
	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/tcp/connectionmanager"
	"gitlab.com/autoserver-2025.net/internal/tcp/defs"
)

// Route binds a service identity to its handler and the role it requires
type Route struct {
	Handler primary.ServiceHandler
	Role    domain.Role
}

// RequestHandler dispatches request packets to the addressed service
type RequestHandler struct {
	Routes   map[string]Route
	Verifier primary.JWTService // nil disables access control
	Logger   primary.Logger
}

func NewRequestHandler(routes map[string]Route, verifier primary.JWTService, logger primary.Logger) *RequestHandler {
	return &RequestHandler{
		Routes:   routes,
		Verifier: verifier,
		Logger:   logger,
	}
}

// HandleMessage implements the MessageHandler interface. Only a packet that
// cannot be decoded is an error; every decoded request gets a reply.
func (h *RequestHandler) HandleMessage(ctx context.Context, conn net.Conn, payload []byte) error {
	var packet defs.RequestPacket
	if err := cbor.Unmarshal(payload, &packet); err != nil {
		h.Logger.Error("Failed to parse request packet", "error", err)
		connectionmanager.SendErrorMessage(conn, defs.ErrCodeMalformedPacket, "Invalid request packet")
		return fmt.Errorf("invalid request packet: %w", err)
	}

	reply := h.dispatch(ctx, packet)

	body, err := anyvalue.Marshal(reply)
	if err != nil {
		h.Logger.Error("Failed to encode reply", "service", packet.Service, "error", err)
		body, err = anyvalue.Marshal(protocol.Reply(protocol.ServerProtocolEncodingError, anyvalue.Empty))
		if err != nil {
			return err
		}
	}

	response, err := cbor.Marshal(defs.ResponsePacket{ID: packet.ID, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal response packet: %w", err)
	}
	return connectionmanager.SendMessage(conn, defs.MsgResponse, response)
}

func (h *RequestHandler) dispatch(ctx context.Context, packet defs.RequestPacket) cty.Value {
	route, ok := h.Routes[packet.Service]
	if !ok {
		h.Logger.Debug("Unknown service", "service", packet.Service)
		return protocol.Reply(protocol.NotSupported, anyvalue.Empty)
	}

	if h.Verifier != nil {
		claims, err := h.Verifier.VerifyToken(ctx, packet.Token)
		if err != nil || !claims.Role.Allows(route.Role) {
			h.Logger.Warn("Request refused", "service", packet.Service, "user", claims.Username, "error", err)
			return protocol.Reply(protocol.Unauthorized, anyvalue.Empty)
		}
	}

	request, err := anyvalue.Unmarshal(packet.Body)
	if err != nil {
		h.Logger.Warn("Failed to decode request", "service", packet.Service, "error", err)
		return protocol.Reply(protocol.ServerProtocolDecodingError, anyvalue.Empty)
	}
	return route.Handler.Invoke(ctx, request)
}
