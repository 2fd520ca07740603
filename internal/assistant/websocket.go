package assistant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/veltrix/internal/api"
	"github.com/ashureev/veltrix/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// HandleWebSocket handles GET /ws/chat. Every inbound text frame {message}
// is one turn, answered with a frame of the HTTP response shape.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	slog.Info("Chat socket request", "user_id", userID, "ip", identity.IPFromRequest(r))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(h.maxBody)

	connID := h.conns.Register(userID, ws)
	h.metrics.ConnOpened()
	defer func() {
		h.conns.Unregister(userID, connID, ws)
		h.metrics.ConnClosed()
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx := r.Context()
	for {
		var req ChatRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if isExpectedClose(ctx, err) {
				slog.Debug("Chat socket closed by peer", "user_id", userID)
			} else {
				slog.Warn("Chat socket read failed", "user_id", userID, "error", err)
			}
			return
		}

		var out interface{}
		resp, terr := h.runTurn(ctx, req.Message)
		if terr != nil {
			out = api.Failure{Success: false, Message: terr.message}
		} else {
			out = resp
		}
		if err := wsjson.Write(ctx, ws, out); err != nil {
			slog.Debug("Chat socket write failed", "user_id", userID, "error", err)
			return
		}
	}
}

func isExpectedClose(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
