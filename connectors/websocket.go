package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// streamWriteTimeout bounds a write to one stream client, so a client that
// stopped reading cannot stall the others.
const streamWriteTimeout = 2 * time.Second

// WebSocketConnector broadcasts activity records to every connected stream
// client.
type WebSocketConnector struct {
	mu          sync.Mutex
	connections map[string]*websocket.Conn
}

// NewWebSocketConnector creates a new WebSocketConnector.
func NewWebSocketConnector() *WebSocketConnector {
	return &WebSocketConnector{
		connections: make(map[string]*websocket.Conn),
	}
}

// AddConnection registers conn and returns the id to remove it with.
func (w *WebSocketConnector) AddConnection(conn *websocket.Conn) string {
	id := uuid.NewString()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connections[id] = conn
	return id
}

// RemoveConnection removes a websocket connection.
func (w *WebSocketConnector) RemoveConnection(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.connections, id)
}

// Send writes the payload to every connection. A connection that fails to
// take the write is closed and dropped, which ends its stream handler.
func (w *WebSocketConnector) Send(ctx context.Context, token string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for id, conn := range w.connections {
		wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		err := conn.Write(wctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stream client %s: %w", id, err))
			conn.CloseNow()
			delete(w.connections, id)
		}
	}
	return errors.Join(errs...)
}

// ConnectionCount returns the number of active connections.
func (w *WebSocketConnector) ConnectionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.connections)
}
