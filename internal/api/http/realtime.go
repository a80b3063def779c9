package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vadimbarashkov/redirector/internal/broadcast"
	"github.com/vadimbarashkov/redirector/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clickMessage is the tagged form realtime consumers receive.
type clickMessage struct {
	Type string `json:"type"`
	models.ClickEvent
}

// handleWS streams the authenticated user's click events over a
// WebSocket. The subscription is bound to the user id from the token;
// liveness uses protocol-level ping/pong frames.
func handleWS(hub *broadcast.Hub, logger *slog.Logger) http.HandlerFunc {
	const op = "api.http.handleWS"

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.String("op", op), slog.Any("err", err))
			return
		}
		defer conn.Close()

		sub := hub.SubscribeUser(userID)
		defer hub.Unsubscribe(sub)

		done := make(chan struct{})

		go func() {
			defer close(done)

			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case event := <-sub.Events():
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(clickMessage{Type: "click", ClickEvent: event}); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// handleSSE streams the authenticated user's click events as
// Server-Sent Events. It reads the hub-wide stream and filters by user
// id; periodic ping events keep intermediaries from closing the
// connection.
func handleSSE(hub *broadcast.Hub, logger *slog.Logger) http.HandlerFunc {
	const op = "api.http.handleSSE"

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			logger.Warn("response writer does not support flushing", slog.String("op", op))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		// The stream lives for the whole connection, so the server's
		// per-request write deadline must not apply. The websocket path
		// gets the same treatment from the upgrader on its hijacked conn.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.Warn("failed to clear write deadline", slog.String("op", op), slog.Any("err", err))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sub := hub.SubscribeAll()
		defer hub.Unsubscribe(sub)

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case event := <-sub.Events():
				if event.UserID == nil || *event.UserID != userID {
					continue
				}

				data, err := json.Marshal(clickMessage{Type: "click", ClickEvent: event})
				if err != nil {
					logger.Warn("failed to encode click event", slog.String("op", op), slog.Any("err", err))
					continue
				}

				if _, err := fmt.Fprintf(w, "event: click\ndata: %s\n\n", data); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(w, "event: ping\ndata: {}\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
