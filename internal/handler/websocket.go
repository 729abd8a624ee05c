package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"otboard/internal/filter"
	"otboard/internal/hub"
	"otboard/internal/meta"
	"otboard/internal/panel"
	"otboard/internal/session"
)

// WSHandler runs the interactive dashboard protocol: intents and panel
// subscriptions in, filter echoes and panel payloads out. Each
// connection gets its own session and filter state.
type WSHandler struct {
	hub     *hub.Hub
	fetcher *panel.Fetcher
	meta    *meta.Store
	logger  *slog.Logger
}

func NewWSHandler(h *hub.Hub, fetcher *panel.Fetcher, metaStore *meta.Store, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: h, fetcher: fetcher, meta: metaStore, logger: logger}
}

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PanelsPayload struct {
	Panels []string `json:"panels"`
}

type ViewMetricPayload struct {
	Value string `json:"value"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 256)

	h.hub.Register(client)
	ServerStats.IncWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := session.New(client, h.fetcher, h.meta, h.logger.With("client_id", clientID))

	go h.writeLoop(ctx, conn, client)

	sess.Start()
	h.readLoop(ctx, conn, client, sess)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client, sess *session.Session) {
	defer func() {
		h.hub.Unregister(client)
		ServerStats.DecWSConnections()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch msg.Type {
		case "intent":
			var in filter.Intent
			if err := json.Unmarshal(msg.Payload, &in); err != nil {
				h.logger.Debug("invalid intent payload", "client_id", client.ID, "error", err)
				continue
			}
			sess.HandleIntent(ctx, in)

		case "view_metric":
			var payload ViewMetricPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			sess.SetViewMetric(ctx, payload.Value)

		case "subscribe":
			var payload PanelsPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.Panels) > 0 {
				sess.Subscribe(ctx, payload.Panels)
			}

		case "unsubscribe":
			var payload PanelsPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			if len(payload.Panels) > 0 {
				sess.Unsubscribe(payload.Panels)
			}

		case "ping":
			h.sendPong(client)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) sendPong(client *hub.Client) {
	data, err := json.Marshal(session.Frame{Type: session.FramePong})
	if err != nil {
		return
	}
	client.Push(data)
}
