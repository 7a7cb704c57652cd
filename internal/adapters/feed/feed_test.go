package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/domain"
)

type fakeSource struct {
	ch chan app.View

	mu           sync.Mutex
	unsubscribed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan app.View, 4)}
}

func (s *fakeSource) Subscribe(int) (<-chan app.View, func()) {
	return s.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed = true
	}
}

func (s *fakeSource) isUnsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

func startFeed(t *testing.T, src Source) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := NewFeedWSController(src, Options{ReadLimit: 1024})
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleFeed(context.Background(), c) })

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestFeed_PushesViews(t *testing.T) {
	src := newFakeSource()
	ws := startFeed(t, src)

	src.ch <- app.View{State: app.RoomActive, RoomID: "r1", Status: domain.Ready, Members: domain.Snapshot{}}

	var msg struct {
		Type string `json:"type"`
		View struct {
			State  string `json:"state"`
			RoomID string `json:"roomId"`
			Status string `json:"status"`
		} `json:"view"`
	}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, "room_active", msg.View.State)
	assert.Equal(t, "r1", msg.View.RoomID)
	assert.Equal(t, "ready", msg.View.Status)
}

func TestFeed_AnswersPing(t *testing.T) {
	ws := startFeed(t, newFakeSource())

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	var msg map[string]string
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "pong", msg["type"])
}

func TestFeed_ClientDisconnectUnsubscribes(t *testing.T) {
	src := newFakeSource()
	ws := startFeed(t, src)
	require.NoError(t, ws.Close())

	require.Eventually(t, src.isUnsubscribed, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_SourceCloseEndsFeed(t *testing.T) {
	src := newFakeSource()
	ws := startFeed(t, src)
	close(src.ch)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}

type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (nopConn) WriteMessage(int, []byte) error    { return nil }
func (nopConn) SetWriteDeadline(time.Time) error  { return nil }
func (nopConn) SetReadLimit(int64)                {}
func (nopConn) Close() error                      { return nil }

func TestWsFeedConn_Backpressure(t *testing.T) {
	c := NewWsFeedConn(nopConn{}, 1)
	require.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)

	ctl := NewFeedWSController(newFakeSource(), Options{Policy: DropPolicy{}})
	assert.True(t, ctl.sendJSON(c, map[string]string{"type": "x"}))

	ctl = NewFeedWSController(newFakeSource(), Options{})
	assert.False(t, ctl.sendJSON(c, map[string]string{"type": "x"}))

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend([]byte("c")), ErrConnClosed)
}
