// Package channel maintains one addressable push/pull WebSocket per
// connected vendor. Delivery to a disconnected vendor is dropped, not
// queued; offer correctness relies on the coordinator's server-side timer,
// not on delivery guarantees.
package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

// EventSink receives typed events decoded from vendor frames.
type EventSink interface {
	HandleJobResponse(ctx context.Context, resp *domain.JobResponse)
	HandleHeartbeat(ctx context.Context, hb *domain.StatusHeartbeat)
	VendorConnected(ctx context.Context, vendorID string)
	VendorDisconnected(ctx context.Context, vendorID string)
}

// Config holds channel router settings
type Config struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// Router maps a vendor id to exactly one live channel
type Router struct {
	logger   *slog.Logger
	sink     EventSink
	config   Config
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn
}

// NewRouter creates a new Router instance
func NewRouter(config Config, sink EventSink, logger *slog.Logger) *Router {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = 60 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = config.PongTimeout * 9 / 10
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = 8 << 10
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = 16
	}

	return &Router{
		logger: logger,
		sink:   sink,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// SetSink binds the event sink. The coordinator is the sink but also pushes
// through this router, so the binding happens after both are constructed and
// before the first upgrade is served.
func (r *Router) SetSink(sink EventSink) {
	r.sink = sink
}

// HandleUpgrade upgrades an HTTP request to the vendor push channel. The
// vendor id comes from the vendor_id query parameter; the bearer token is
// opaque to the core and only checked for presence here.
func (r *Router) HandleUpgrade(w http.ResponseWriter, req *http.Request) {
	vendorID := req.URL.Query().Get("vendor_id")
	if vendorID == "" {
		http.Error(w, "vendor_id is required", http.StatusBadRequest)
		return
	}
	if req.Header.Get("Authorization") == "" {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("Failed to upgrade connection",
			slog.String("vendor_id", vendorID),
			slog.Any("error", err),
		)
		return
	}

	r.Attach(req.Context(), vendorID, ws)
}

// Attach registers a live connection for the vendor and starts its read and
// write pumps. A new connection for the same vendor supersedes and closes
// any prior one.
func (r *Router) Attach(ctx context.Context, vendorID string, ws *websocket.Conn) {
	c := newConn(r, vendorID, ws)

	r.mu.Lock()
	prior := r.conns[vendorID]
	r.conns[vendorID] = c
	r.mu.Unlock()

	if prior != nil {
		r.logger.Info("Superseding prior vendor channel",
			slog.String("vendor_id", vendorID),
		)
		prior.close()
	}

	r.logger.Info("Vendor channel attached",
		slog.String("vendor_id", vendorID),
		slog.String("remote_addr", ws.RemoteAddr().String()),
	)

	r.sink.VendorConnected(context.WithoutCancel(ctx), vendorID)

	go c.writePump()
	go c.readPump()
}

// Push marshals the payload and delivers it on the vendor's channel. A
// vendor with no live channel gets ErrVendorNotConnected; the caller drops
// the message and lets the server timer reassign.
func (r *Router) Push(vendorID string, payload any) error {
	r.mu.Lock()
	c := r.conns[vendorID]
	r.mu.Unlock()

	if c == nil {
		return domain.ErrVendorNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if !c.enqueue(data) {
		return domain.ErrVendorNotConnected
	}

	r.logger.Debug("Frame pushed to vendor",
		slog.String("vendor_id", vendorID),
		slog.Int("body_size", len(data)),
	)

	return nil
}

// Connected reports whether the vendor currently holds a live channel
func (r *Router) Connected(vendorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[vendorID] != nil
}

// ConnectedCount returns the number of live vendor channels
func (r *Router) ConnectedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Close shuts down every live channel
func (r *Router) Close() {
	r.mu.Lock()
	conns := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[string]*conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	r.logger.Info("Channel router closed",
		slog.Int("closed_channels", len(conns)),
	)
}

// detach removes the connection if it is still the vendor's current one.
// A superseded connection must not clear its successor or report the vendor
// disconnected.
func (r *Router) detach(c *conn) {
	r.mu.Lock()
	current := r.conns[c.vendorID] == c
	if current {
		delete(r.conns, c.vendorID)
	}
	r.mu.Unlock()

	if current {
		r.logger.Info("Vendor channel detached",
			slog.String("vendor_id", c.vendorID),
		)
		r.sink.VendorDisconnected(context.Background(), c.vendorID)
	}
}

// route dispatches a decoded vendor frame as a typed event
func (r *Router) route(c *conn, data []byte) {
	kind, frame, err := domain.DecodeInbound(data)
	if err != nil {
		r.logger.Warn("Dropping malformed vendor frame",
			slog.String("vendor_id", c.vendorID),
			slog.Any("error", err),
		)
		return
	}

	ctx := context.Background()

	switch kind {
	case domain.KindJobResponse:
		resp := frame.JobResponse()
		if err := resp.Validate(); err != nil {
			r.logger.Warn("Dropping invalid job response",
				slog.String("vendor_id", c.vendorID),
				slog.Any("error", err),
			)
			return
		}
		if resp.VendorID != c.vendorID {
			r.logger.Warn("Dropping job response for mismatched vendor",
				slog.String("channel_vendor_id", c.vendorID),
				slog.String("frame_vendor_id", resp.VendorID),
			)
			return
		}
		r.sink.HandleJobResponse(ctx, resp)

	case domain.KindHeartbeat:
		hb := frame.Heartbeat()
		if hb.VendorID != c.vendorID {
			r.logger.Warn("Dropping heartbeat for mismatched vendor",
				slog.String("channel_vendor_id", c.vendorID),
				slog.String("frame_vendor_id", hb.VendorID),
			)
			return
		}
		r.sink.HandleHeartbeat(ctx, hb)
	}
}
