package channel

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

// recordingSink captures sink callbacks for assertions
type recordingSink struct {
	mu           sync.Mutex
	responses    []*domain.JobResponse
	heartbeats   []*domain.StatusHeartbeat
	connected    []string
	disconnected []string
}

func (s *recordingSink) HandleJobResponse(_ context.Context, resp *domain.JobResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

func (s *recordingSink) HandleHeartbeat(_ context.Context, hb *domain.StatusHeartbeat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, hb)
}

func (s *recordingSink) VendorConnected(_ context.Context, vendorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = append(s.connected, vendorID)
}

func (s *recordingSink) VendorDisconnected(_ context.Context, vendorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, vendorID)
}

func (s *recordingSink) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *recordingSink) heartbeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heartbeats)
}

func (s *recordingSink) disconnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.disconnected)
}

func newTestRouter(sink EventSink) *Router {
	return NewRouter(Config{}, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func startTestServer(t *testing.T, router *Router) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(router.HandleUpgrade))
	t.Cleanup(srv.Close)
	return srv
}

func dialVendor(t *testing.T, srv *httptest.Server, vendorID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?vendor_id=" + vendorID
	header := http.Header{}
	header.Set("Authorization", "Bearer test-token")

	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestHandleUpgradeRejectsMissingParams(t *testing.T) {
	router := newTestRouter(&recordingSink{})
	srv := startTestServer(t, router)

	t.Run("missing vendor_id", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		header := http.Header{}
		header.Set("Authorization", "Bearer test-token")

		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing credentials", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?vendor_id=v1"

		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestPushDeliversFrame(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(sink)
	srv := startTestServer(t, router)

	ws := dialVendor(t, srv, "v1")

	require.Eventually(t, func() bool {
		return router.Connected("v1")
	}, 2*time.Second, 5*time.Millisecond)

	frame := &domain.CancelFrame{
		Type:    domain.MsgOfferCancelled,
		JobID:   "job-1",
		Message: "offer expired without a response",
	}
	require.NoError(t, router.Push("v1", frame))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var got domain.CancelFrame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *frame, got)
}

func TestPushToDisconnectedVendor(t *testing.T) {
	router := newTestRouter(&recordingSink{})

	err := router.Push("nobody", &domain.CancelFrame{Type: domain.MsgOfferCancelled, JobID: "job-1"})
	assert.ErrorIs(t, err, domain.ErrVendorNotConnected)
}

func TestInboundFramesReachSink(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(sink)
	srv := startTestServer(t, router)

	ws := dialVendor(t, srv, "v1")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jobId":"job-1","response":"accept","vendorId":"v1"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"vendorId":"v1","isAvailable":true,"businessName":"Print Hub"}`)))

	require.Eventually(t, func() bool {
		return sink.responseCount() == 1 && sink.heartbeatCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "job-1", sink.responses[0].JobID)
	assert.Equal(t, domain.ResponseAccept, sink.responses[0].Response)
	assert.True(t, sink.heartbeats[0].IsAvailable)
}

func TestInboundFrameForOtherVendorIsDropped(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(sink)
	srv := startTestServer(t, router)

	ws := dialVendor(t, srv, "v1")

	// A response claiming another vendor's identity never reaches the sink.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jobId":"job-1","response":"accept","vendorId":"v2"}`)))
	// Neither does a heartbeat trying to flip another vendor's availability.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"vendorId":"v2","isAvailable":false,"businessName":"Not Mine"}`)))
	// Malformed frames are dropped without killing the connection.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	// Valid frames afterwards still go through.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"jobId":"job-1","response":"decline","vendorId":"v1"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"vendorId":"v1","isAvailable":true,"businessName":"Print Hub"}`)))

	require.Eventually(t, func() bool {
		return sink.responseCount() == 1 && sink.heartbeatCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, domain.ResponseDecline, sink.responses[0].Response)
	assert.Equal(t, "v1", sink.heartbeats[0].VendorID)
	assert.True(t, sink.heartbeats[0].IsAvailable)
}

func TestSecondConnectionSupersedesFirst(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(sink)
	srv := startTestServer(t, router)

	first := dialVendor(t, srv, "v1")
	require.Eventually(t, func() bool {
		return router.Connected("v1")
	}, 2*time.Second, 5*time.Millisecond)

	second := dialVendor(t, srv, "v1")

	// The first socket gets closed by the supersession.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	// The vendor stays connected through its second channel, and the
	// superseded connection's teardown did not report a disconnect.
	assert.True(t, router.Connected("v1"))
	assert.Equal(t, 1, router.ConnectedCount())
	assert.Zero(t, sink.disconnectedCount())

	// Pushes now land on the second connection.
	require.NoError(t, router.Push("v1", &domain.AckFrame{Type: domain.MsgJobAccepted, JobID: "job-1"}))
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), domain.MsgJobAccepted)
}

func TestDisconnectReachesSink(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(sink)
	srv := startTestServer(t, router)

	ws := dialVendor(t, srv, "v1")
	require.Eventually(t, func() bool {
		return router.Connected("v1")
	}, 2*time.Second, 5*time.Millisecond)

	ws.Close()

	require.Eventually(t, func() bool {
		return !router.Connected("v1") && sink.disconnectedCount() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRouterClose(t *testing.T) {
	sink := &recordingSink{}
	router := newTestRouter(sink)
	srv := startTestServer(t, router)

	dialVendor(t, srv, "v1")
	dialVendor(t, srv, "v2")
	require.Eventually(t, func() bool {
		return router.ConnectedCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	router.Close()

	assert.Zero(t, router.ConnectedCount())
	assert.ErrorIs(t, router.Push("v1", &domain.CancelFrame{}), domain.ErrVendorNotConnected)
}
