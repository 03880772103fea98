package handlers

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"net/http"

	"mock-fcm/connectors"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
)

// StreamHandler upgrades GET /activity/stream to a websocket and keeps it
// registered with ws until the client disconnects. Every activity record
// appended meanwhile is pushed as a JSON text message.
func StreamHandler(ws *connectors.WebSocketConnector) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{
			// Test harnesses connect from anywhere.
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("[WebSocket] Accept failed: %v", err)
			return
		}

		id := ws.AddConnection(conn)
		defer ws.RemoveConnection(id)
		log.Printf("[WebSocket] Stream client %s connected", id)

		ctx := conn.CloseRead(c.Request.Context())
		<-ctx.Done()
		conn.Close(websocket.StatusNormalClosure, "")
		log.Printf("[WebSocket] Stream client %s disconnected", id)
	}
}

// upgradeWriter hands websocket.Accept a plain http.ResponseWriter instead of
// gin's writer. Accept flushes gin writers with WriteHeaderNow before
// hijacking, which gin then refuses; here the status line and headers are
// written on the hijacked connection instead.
type upgradeWriter struct {
	http.ResponseWriter
	hijacker http.Hijacker
	status   int
}

func newUpgradeWriter(w gin.ResponseWriter) *upgradeWriter {
	return &upgradeWriter{ResponseWriter: w, hijacker: w, status: http.StatusOK}
}

func (w *upgradeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := w.hijacker.Hijack()
	if err != nil {
		return nil, nil, err
	}

	fmt.Fprintf(brw, "HTTP/1.1 %d %s\r\n", w.status, http.StatusText(w.status))
	if err := w.Header().Write(brw); err != nil {
		conn.Close()
		return nil, nil, err
	}
	brw.WriteString("\r\n")
	if err := brw.Flush(); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, brw, nil
}
