package live

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/compliance"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// ServerMessage is the envelope for all server-to-client websocket messages.
type ServerMessage struct {
	Type string `json:"type"` // "summary", "closed"
	Data any    `json:"data,omitempty"`
}

// Serve upgrades the request and streams the building's summaries until
// the client disconnects or the subscription ends. initial is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID string, initial compliance.Summary) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := h.Subscribe(tenantID, initial.BuildingID)
	defer sub.Close()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	if err := h.send(ctx, conn, ServerMessage{Type: "summary", Data: initial}); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sub.C:
			if !ok {
				h.send(ctx, conn, ServerMessage{Type: "closed"})
				conn.Close(websocket.StatusGoingAway, "subscription ended")
				return
			}
			if err := h.send(ctx, conn, ServerMessage{Type: "summary", Data: s}); err != nil {
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}
