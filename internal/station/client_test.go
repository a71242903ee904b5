package station

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Config{
		ServerURL:        "ws://localhost:0/ws",
		APIBaseURL:       "http://localhost:0",
		VendorID:         "v1",
		Token:            "test-token",
		ReconnectInitial: time.Second,
		ReconnectMax:     30 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func offerFrameJSON(t *testing.T, jobID string, expiresIn int) []byte {
	t.Helper()
	data, err := json.Marshal(&domain.OfferFrame{
		Type:                  domain.MsgNewJobOffer,
		JobID:                 jobID,
		TrackingCode:          "SP-1A2B3C4D",
		FileName:              "doc.pdf",
		PrintSpecs:            domain.PrintSpecs{Copies: 1, PaperSize: "A4"},
		TotalPrice:            50,
		Earnings:              40,
		CreatedAt:             time.Now(),
		OfferExpiresInSeconds: expiresIn,
	})
	require.NoError(t, err)
	return data
}

// drainEvents collects everything currently buffered on the event stream
func drainEvents(c *Client) []Event {
	var out []Event
	for {
		select {
		case ev := <-c.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHandleFrameAppliesValidOffer(t *testing.T) {
	c := newTestClient()
	jobID := "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"

	c.handleFrame(offerFrameJSON(t, jobID, 90))

	gotJob, expiresAt, ok := c.CurrentOffer()
	require.True(t, ok)
	assert.Equal(t, jobID, gotJob)
	assert.WithinDuration(t, time.Now().Add(90*time.Second), expiresAt, 2*time.Second)

	events := drainEvents(c)
	require.Len(t, events, 1)
	received, ok := events[0].(OfferReceived)
	require.True(t, ok)
	assert.Equal(t, jobID, received.JobID)
	assert.InDelta(t, 40.0, received.Earnings, 1e-9)
}

func TestHandleFrameDropsInvalidOffer(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "not json",
			payload: "NEW_JOB_OFFER",
		},
		{
			name:    "unknown type",
			payload: `{"type":"SOMETHING_ELSE","jobId":"6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"}`,
		},
		{
			name:    "offer with non-uuid job id",
			payload: `{"type":"NEW_JOB_OFFER","jobId":"job-1","trackingCode":"SP-1","fileName":"a.pdf","totalPrice":10,"offerExpiresInSeconds":90}`,
		},
		{
			name:    "offer with absurd expiry",
			payload: `{"type":"NEW_JOB_OFFER","jobId":"6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11","trackingCode":"SP-1","fileName":"a.pdf","totalPrice":10,"offerExpiresInSeconds":99999}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient()
			c.handleFrame([]byte(tt.payload))

			_, _, ok := c.CurrentOffer()
			assert.False(t, ok, "malformed frames must not install an offer")
			assert.Empty(t, drainEvents(c))
		})
	}
}

func TestSecondOfferSupersedesFirst(t *testing.T) {
	c := newTestClient()
	first := "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"
	second := "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"

	c.handleFrame(offerFrameJSON(t, first, 90))
	c.handleFrame(offerFrameJSON(t, second, 90))

	gotJob, _, ok := c.CurrentOffer()
	require.True(t, ok)
	assert.Equal(t, second, gotJob)
}

func TestCancelFrameClearsOffer(t *testing.T) {
	c := newTestClient()
	jobID := "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"
	c.handleFrame(offerFrameJSON(t, jobID, 90))
	drainEvents(c)

	cancel, err := json.Marshal(&domain.CancelFrame{
		Type:    domain.MsgOfferCancelled,
		JobID:   jobID,
		Message: "offer expired without a response",
	})
	require.NoError(t, err)
	c.handleFrame(cancel)

	_, _, ok := c.CurrentOffer()
	assert.False(t, ok)

	events := drainEvents(c)
	require.Len(t, events, 1)
	withdrawn, ok := events[0].(OfferWithdrawn)
	require.True(t, ok)
	assert.Equal(t, jobID, withdrawn.JobID)
	assert.Equal(t, "offer expired without a response", withdrawn.Reason)
}

func TestCancelForUnknownJobIsSilent(t *testing.T) {
	c := newTestClient()

	cancel, err := json.Marshal(&domain.CancelFrame{
		Type:  domain.MsgOfferCancelled,
		JobID: "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11",
	})
	require.NoError(t, err)
	c.handleFrame(cancel)

	assert.Empty(t, drainEvents(c))
}

func TestResponseErrorClearsOffer(t *testing.T) {
	c := newTestClient()
	jobID := "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"
	c.handleFrame(offerFrameJSON(t, jobID, 90))
	drainEvents(c)

	reject, err := json.Marshal(&domain.AckFrame{
		Type:  domain.MsgJobResponseError,
		JobID: jobID,
		Error: "offer is no longer available",
	})
	require.NoError(t, err)
	c.handleFrame(reject)

	_, _, ok := c.CurrentOffer()
	assert.False(t, ok)

	events := drainEvents(c)
	require.Len(t, events, 1)
	rejected, ok := events[0].(ResponseRejected)
	require.True(t, ok)
	assert.Equal(t, "offer is no longer available", rejected.Error)
}

func TestAcceptWithoutOfferIsStale(t *testing.T) {
	c := newTestClient()

	err := c.Accept("6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11")
	assert.ErrorIs(t, err, domain.ErrStaleResponse)

	err = c.Decline("6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11")
	assert.ErrorIs(t, err, domain.ErrStaleResponse)
}

func TestSendWithoutConnection(t *testing.T) {
	c := newTestClient()

	err := c.ReportAvailability(true, "Print Hub")
	assert.ErrorIs(t, err, domain.ErrVendorNotConnected)
}

func TestLocalCountdownAutoDeclines(t *testing.T) {
	c := newTestClient()
	jobID := "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"
	c.handleFrame(offerFrameJSON(t, jobID, 1))
	drainEvents(c)

	// Force the countdown instead of sleeping a second.
	c.expireOffer(jobID)

	_, _, ok := c.CurrentOffer()
	assert.False(t, ok)

	events := drainEvents(c)
	require.Len(t, events, 1)
	expired, ok := events[0].(OfferExpired)
	require.True(t, ok)
	assert.Equal(t, jobID, expired.JobID)

	// The countdown fires once; a late timer is a no-op.
	c.expireOffer(jobID)
	assert.Empty(t, drainEvents(c))
}

func TestApplySnapshot(t *testing.T) {
	jobID := "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11"

	t.Run("offer still queued is kept", func(t *testing.T) {
		c := newTestClient()
		c.handleFrame(offerFrameJSON(t, jobID, 90))
		drainEvents(c)

		snapshot := &queueSnapshot{VendorID: "v1"}
		snapshot.Jobs = append(snapshot.Jobs, struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}{JobID: jobID, Status: string(domain.StatusAwaitingAcceptance)})

		c.applySnapshot(snapshot)

		_, _, ok := c.CurrentOffer()
		assert.True(t, ok)
		assert.Empty(t, drainEvents(c))
	})

	t.Run("offer missing from queue is dropped", func(t *testing.T) {
		c := newTestClient()
		c.handleFrame(offerFrameJSON(t, jobID, 90))
		drainEvents(c)

		c.applySnapshot(&queueSnapshot{VendorID: "v1"})

		_, _, ok := c.CurrentOffer()
		assert.False(t, ok)

		events := drainEvents(c)
		require.Len(t, events, 1)
		withdrawn, ok := events[0].(OfferWithdrawn)
		require.True(t, ok)
		assert.Equal(t, jobID, withdrawn.JobID)
	})

	t.Run("offer no longer pending is dropped", func(t *testing.T) {
		c := newTestClient()
		c.handleFrame(offerFrameJSON(t, jobID, 90))
		drainEvents(c)

		snapshot := &queueSnapshot{VendorID: "v1"}
		snapshot.Jobs = append(snapshot.Jobs, struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}{JobID: jobID, Status: string(domain.StatusAccepted)})

		c.applySnapshot(snapshot)

		_, _, ok := c.CurrentOffer()
		assert.False(t, ok)
	})

	t.Run("no local offer is a no-op", func(t *testing.T) {
		c := newTestClient()
		c.applySnapshot(&queueSnapshot{VendorID: "v1"})
		assert.Empty(t, drainEvents(c))
	})
}

func TestConcurrentSendsShareOneWriter(t *testing.T) {
	received := make(chan []byte, 64)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	defer srv.Close()

	c := newTestClient()
	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	defer ws.Close()

	c.mu.Lock()
	c.conn = ws
	c.mu.Unlock()

	// The heartbeat ticker and the auto-decline timer both write to the same
	// connection; every frame must still arrive intact.
	const writers = 8
	const perWriter = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				assert.NoError(t, c.ReportAvailability(true, "Print Hub"))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < writers*perWriter; i++ {
		select {
		case data := <-received:
			var hb domain.StatusHeartbeat
			require.NoError(t, json.Unmarshal(data, &hb))
			assert.Equal(t, "v1", hb.VendorID)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d heartbeats arrived", i, writers*perWriter)
		}
	}
}

func TestShortLivedConnectionsKeepBackoff(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	c := NewClient(Config{
		ServerURL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIBaseURL:       "http://localhost:0",
		VendorID:         "v1",
		Token:            "test-token",
		ReconnectInitial: time.Millisecond,
		ReconnectMax:     5 * time.Millisecond,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Hour,
		StableWindow:     time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Every accept-then-drop cycle counts as a failure, so the breaker opens
	// instead of the client hot-looping on successful dials.
	require.Eventually(t, func() bool {
		return c.breaker.RemainingCooldown() > 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestBackoff(t *testing.T) {
	c := newTestClient()

	assert.Equal(t, time.Second, c.backoff(0))
	assert.Equal(t, 2*time.Second, c.backoff(1))
	assert.Equal(t, 4*time.Second, c.backoff(2))
	assert.Equal(t, 16*time.Second, c.backoff(4))
	assert.Equal(t, 30*time.Second, c.backoff(5), "capped at ReconnectMax")
	assert.Equal(t, 30*time.Second, c.backoff(20))
}
