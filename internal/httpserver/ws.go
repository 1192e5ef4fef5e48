package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"merco/internal/tasks"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// TaskWS upgrades requests to a WebSocket that streams task lifecycle
// events: a snapshot of every task that exists at subscribe time,
// followed by the live event stream until the client disconnects.
type TaskWS struct {
	manager  *tasks.Manager
	upgrader websocket.Upgrader
}

// NewTaskWS builds a TaskWS that only accepts connections whose Origin
// header matches allowedOrigin (or any origin, if allowedOrigin is "*" or
// empty).
func NewTaskWS(manager *tasks.Manager, allowedOrigin string) *TaskWS {
	return &TaskWS{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "*" || allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// ServeHTTP upgrades the connection and pumps events until the client
// disconnects or the server shuts down the request context.
func (h *TaskWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("task ws upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := contextFromConn(r, conn)
	defer cancel()

	events, cleanup := h.manager.Subscribe(ctx)
	defer cleanup()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// contextFromConn returns a context derived from r's that is cancelled
// as soon as the underlying connection stops reading cleanly, which is
// how gorilla/websocket surfaces client-initiated closes on a
// connection this goroutine never reads from otherwise.
func contextFromConn(r *http.Request, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return ctx, cancel
}
