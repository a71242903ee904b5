// Package station implements the vendor-side offer client. It assumes its
// local view can diverge from the backend's: every (re)connection starts
// with a reconciliation snapshot, and any locally held offer the backend no
// longer lists is discarded.
package station

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

// Config holds station client configuration
type Config struct {
	ServerURL        string // WebSocket endpoint of the dispatch service
	APIBaseURL       string // HTTP base of the API service (reconciliation)
	VendorID         string
	Token            string // opaque identity token
	DialTimeout      time.Duration
	MessageTimeout   time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	StableWindow     time.Duration // how long a connection must hold before it counts as a success
	MaxOfferPrice    float64
}

// localOffer is the at-most-one offer the station currently shows, with the
// countdown mirroring the server's expiresAt.
type localOffer struct {
	jobID        string
	trackingCode string
	fileName     string
	totalPrice   float64
	earnings     float64
	expiresAt    time.Time
	timer        *time.Timer
}

// Client maintains the push channel, the local countdown, and reconciliation
type Client struct {
	config  Config
	logger  *slog.Logger
	breaker *Breaker
	httpc   *http.Client
	events  chan Event

	mu    sync.Mutex
	conn  *websocket.Conn
	offer *localOffer

	// writeMu serializes frame writes; the websocket conn supports at most
	// one concurrent writer.
	writeMu sync.Mutex
}

// NewClient creates a new station client instance
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.DialTimeout <= 0 {
		config.DialTimeout = 10 * time.Second
	}
	if config.MessageTimeout <= 0 {
		config.MessageTimeout = 10 * time.Second
	}
	if config.ReconnectInitial <= 0 {
		config.ReconnectInitial = time.Second
	}
	if config.ReconnectMax < config.ReconnectInitial {
		config.ReconnectMax = 30 * time.Second
	}
	if config.BreakerThreshold <= 0 {
		config.BreakerThreshold = 5
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = time.Minute
	}
	if config.StableWindow <= 0 {
		config.StableWindow = 30 * time.Second
	}

	return &Client{
		config:  config,
		logger:  logger,
		breaker: NewBreaker(config.BreakerThreshold, config.BreakerCooldown),
		httpc:   &http.Client{Timeout: config.MessageTimeout},
		events:  make(chan Event, 32),
	}
}

// Events returns the typed event stream the station UI consumes
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run maintains the connection until ctx is canceled. Reconnection uses
// exponential backoff bounded by ReconnectMax; the circuit breaker halts
// retries after consecutive failures and reopens after its cooldown.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !c.breaker.Allow() {
			wait := c.breaker.RemainingCooldown()
			c.logger.Warn("Circuit breaker open, pausing reconnection",
				slog.Duration("cooldown", wait),
			)
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.breaker.Failure()
			delay := c.backoff(attempt)
			attempt++
			c.logger.Warn("Connection failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("retry_in", delay),
				slog.Any("error", err),
			)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		connectedAt := time.Now()

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.emit(ConnectionChanged{Connected: true})
		c.logger.Info("Connected to dispatch service",
			slog.String("vendor_id", c.config.VendorID),
		)

		if err := c.reconcile(ctx); err != nil {
			c.logger.Warn("Reconciliation failed",
				slog.Any("error", err),
			)
		}

		c.readLoop(ctx, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()

		conn.Close()
		c.emit(ConnectionChanged{Connected: false})
		c.logger.Info("Disconnected from dispatch service")

		// A dial alone proves nothing: a server that accepts and immediately
		// drops connections must stay on the failure path, not reset the
		// backoff into a hot reconnect loop.
		if time.Since(connectedAt) >= c.config.StableWindow {
			c.breaker.Success()
			attempt = 0
			continue
		}

		c.breaker.Failure()
		delay := c.backoff(attempt)
		attempt++
		c.logger.Warn("Connection dropped before stabilizing, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
		)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
	}
}

// dial opens the push channel with the handshake bounded by DialTimeout
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.config.Token)

	url := fmt.Sprintf("%s?vendor_id=%s", c.config.ServerURL, c.config.VendorID)

	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.config.ServerURL, err)
	}
	return conn, nil
}

// readLoop processes inbound frames until the connection dies
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Stop reading promptly when the context goes away.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Channel read failed",
					slog.Any("error", err),
				)
			}
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame validates and applies one backend frame. Malformed frames are
// logged and dropped; the connection stays open.
func (c *Client) handleFrame(data []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.logger.Warn("Dropping malformed frame",
			slog.Any("error", err),
		)
		return
	}

	switch head.Type {
	case domain.MsgNewJobOffer:
		var frame domain.OfferFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("Dropping undecodable offer",
				slog.Any("error", err),
			)
			return
		}
		if err := ValidateOffer(&frame, c.config.MaxOfferPrice); err != nil {
			c.logger.Warn("Dropping invalid offer",
				slog.String("job_id", frame.JobID),
				slog.Any("error", err),
			)
			return
		}
		c.applyOffer(&frame)

	case domain.MsgOfferCancelled:
		var frame domain.CancelFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("Dropping undecodable cancellation",
				slog.Any("error", err),
			)
			return
		}
		if err := ValidateCancel(&frame); err != nil {
			c.logger.Warn("Dropping invalid cancellation",
				slog.Any("error", err),
			)
			return
		}
		if c.clearOffer(frame.JobID) {
			c.emit(OfferWithdrawn{JobID: frame.JobID, Reason: frame.Message})
		}

	case domain.MsgJobAccepted:
		var frame domain.AckFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return
		}
		c.emit(JobAssigned{JobID: frame.JobID})

	case domain.MsgJobDeclined:
		// Decline already cleared the local offer; nothing to apply.

	case domain.MsgJobResponseError:
		var frame domain.AckFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return
		}
		c.clearOffer(frame.JobID)
		c.emit(ResponseRejected{JobID: frame.JobID, Error: frame.Error})

	default:
		c.logger.Warn("Dropping frame of unknown type",
			slog.String("type", head.Type),
		)
	}
}

// applyOffer installs the offer and starts the local countdown. The backend
// offers one candidate at a time, so a second offer supersedes the first.
func (c *Client) applyOffer(frame *domain.OfferFrame) {
	expiresAt := offerDeadline(frame, time.Now())

	c.mu.Lock()
	if c.offer != nil {
		c.logger.Warn("Replacing outstanding local offer",
			slog.String("old_job_id", c.offer.jobID),
			slog.String("new_job_id", frame.JobID),
		)
		c.offer.timer.Stop()
	}

	offer := &localOffer{
		jobID:        frame.JobID,
		trackingCode: frame.TrackingCode,
		fileName:     frame.FileName,
		totalPrice:   frame.TotalPrice,
		earnings:     frame.Earnings,
		expiresAt:    expiresAt,
	}
	jobID := frame.JobID
	offer.timer = time.AfterFunc(time.Until(expiresAt), func() {
		c.expireOffer(jobID)
	})
	c.offer = offer
	c.mu.Unlock()

	c.logger.Info("Offer received",
		slog.String("job_id", frame.JobID),
		slog.Float64("earnings", frame.Earnings),
		slog.Time("expires_at", expiresAt),
	)

	c.emit(OfferReceived{
		JobID:        frame.JobID,
		TrackingCode: frame.TrackingCode,
		FileName:     frame.FileName,
		TotalPrice:   frame.TotalPrice,
		Earnings:     frame.Earnings,
		ExpiresAt:    expiresAt,
	})
}

// expireOffer fires when the local countdown elapses. It auto-declines
// through the same path a manual decline uses; the server timer remains
// authoritative either way.
func (c *Client) expireOffer(jobID string) {
	if !c.clearOffer(jobID) {
		return
	}

	c.logger.Info("Local offer countdown elapsed, auto-declining",
		slog.String("job_id", jobID),
	)

	if err := c.sendResponse(jobID, domain.ResponseDecline); err != nil {
		c.logger.Warn("Failed to send auto-decline",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}

	c.emit(OfferExpired{JobID: jobID})
}

// Accept accepts the current offer
func (c *Client) Accept(jobID string) error {
	if !c.clearOffer(jobID) {
		return fmt.Errorf("%w: no local offer for job %s", domain.ErrStaleResponse, jobID)
	}
	return c.sendResponse(jobID, domain.ResponseAccept)
}

// Decline declines the current offer
func (c *Client) Decline(jobID string) error {
	if !c.clearOffer(jobID) {
		return fmt.Errorf("%w: no local offer for job %s", domain.ErrStaleResponse, jobID)
	}
	return c.sendResponse(jobID, domain.ResponseDecline)
}

// ReportAvailability sends a status heartbeat updating isOpen
func (c *Client) ReportAvailability(isOpen bool, businessName string) error {
	return c.send(&domain.StatusHeartbeat{
		VendorID:     c.config.VendorID,
		IsAvailable:  isOpen,
		BusinessName: businessName,
	})
}

// CurrentOffer returns a copy of the locally held offer, if any
func (c *Client) CurrentOffer() (jobID string, expiresAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offer == nil {
		return "", time.Time{}, false
	}
	return c.offer.jobID, c.offer.expiresAt, true
}

// sendResponse sends an accept/decline for a job
func (c *Client) sendResponse(jobID, response string) error {
	return c.send(&domain.JobResponse{
		JobID:    jobID,
		Response: response,
		VendorID: c.config.VendorID,
	})
}

// send writes one frame with the per-message timeout
func (c *Client) send(payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return domain.ErrVendorNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.config.MessageTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// clearOffer drops the local offer if it matches jobID, returning whether
// anything was held. The countdown is cancelled with it.
func (c *Client) clearOffer(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.offer == nil || c.offer.jobID != jobID {
		return false
	}
	c.offer.timer.Stop()
	c.offer = nil
	return true
}

// emit delivers an event without ever blocking the network path
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("Event buffer full, dropping event")
	}
}

// backoff computes the capped exponential reconnect delay
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.config.ReconnectInitial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.config.ReconnectMax {
			return c.config.ReconnectMax
		}
	}
	return delay
}

// sleepCtx waits for d unless the context is canceled first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
