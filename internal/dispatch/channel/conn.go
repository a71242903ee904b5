package channel

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is one live vendor channel with dedicated read and write pumps.
// All writes go through the send channel so only the write pump touches the
// socket.
type conn struct {
	router    *Router
	vendorID  string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(r *Router, vendorID string, ws *websocket.Conn) *conn {
	return &conn{
		router:   r,
		vendorID: vendorID,
		ws:       ws,
		send:     make(chan []byte, r.config.SendBuffer),
		done:     make(chan struct{}),
	}
}

// enqueue hands a frame to the write pump. A full buffer or closed channel
// counts as not connected.
func (c *conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.router.logger.Warn("Vendor send buffer full, dropping frame",
			slog.String("vendor_id", c.vendorID),
		)
		return false
	}
}

// close shuts the connection down exactly once
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// readPump reads vendor frames until the connection dies. The read deadline
// is refreshed by pong control frames, so a silent peer times out.
func (c *conn) readPump() {
	defer func() {
		c.close()
		c.router.detach(c)
	}()

	c.ws.SetReadLimit(c.router.config.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.router.config.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.router.config.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.router.logger.Warn("Vendor channel read failed",
					slog.String("vendor_id", c.vendorID),
					slog.Any("error", err),
				)
			}
			return
		}

		// Inbound frames also count as liveness.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.router.config.PongTimeout))

		c.router.route(c, data)
	}
}

// writePump writes queued frames and keep-alive pings until closed
func (c *conn) writePump() {
	ticker := time.NewTicker(c.router.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.router.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.router.logger.Warn("Vendor channel write failed",
					slog.String("vendor_id", c.vendorID),
					slog.Any("error", err),
				)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.router.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
