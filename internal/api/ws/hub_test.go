package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facevault/internal/models"
	"github.com/your-org/facevault/pkg/dto"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) dto.WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt dto.WSEvent
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	ts := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	err := hub.Notify(context.Background(), models.CaptureStatus{
		SessionID: "glasses-1",
		RequestID: "r1",
		Outcome:   "saved",
		Message:   "Photo saved, 1 face",
		PhotoURL:  "http://objects.test/photos/r1.jpg",
		Timestamp: ts,
	})
	require.NoError(t, err)

	evt := readEvent(t, conn)
	assert.Equal(t, "capture_status", evt.Type)
	assert.Equal(t, "glasses-1", evt.SessionID)
	assert.Equal(t, "r1", evt.Data.RequestID)
	assert.Equal(t, "Photo saved, 1 face", evt.Data.Message)
	assert.Equal(t, "2026-10-17T10:00:00Z", evt.Data.Timestamp)
}

func TestHub_SessionFilter(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url+"?session_id=a")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Notify(ctx, models.CaptureStatus{SessionID: "b", RequestID: "for-b"}))
	require.NoError(t, hub.Notify(ctx, models.CaptureStatus{SessionID: "a", RequestID: "for-a"}))

	evt := readEvent(t, conn)
	assert.Equal(t, "for-a", evt.Data.RequestID)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_NotifyRespectsContext(t *testing.T) {
	hub := NewHub() // not running, so the broadcast buffer eventually fills
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var err error
	for i := 0; i < 300 && err == nil; i++ {
		err = hub.Notify(ctx, models.CaptureStatus{RequestID: "r"})
	}
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHub_ConnectionsAfterShutdownAreClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	before := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// A client that connects after shutdown is hung up on, not left waiting.
	after := dial(t, url)
	require.NoError(t, after.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := after.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection was left open")
	}

	// Clients registered before shutdown were hung up on too.
	require.NoError(t, before.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = before.ReadMessage()
	require.Error(t, err)
	before.Close()

	assert.ErrorIs(t, hub.Notify(context.Background(), models.CaptureStatus{RequestID: "late"}), ErrHubClosed)
}
