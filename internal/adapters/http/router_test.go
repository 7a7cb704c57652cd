package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/GeoMeet/internal/adapters/feed"
	"github.com/dkeye/GeoMeet/internal/adapters/locate"
	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/config"
	"github.com/dkeye/GeoMeet/internal/domain"
	"github.com/dkeye/GeoMeet/internal/testutils"
)

type fixture struct {
	gw      *testutils.FakeGateway
	session *app.Coordinator
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Mode:         "test",
		StaticPath:   t.TempDir() + "/none",
		DisplayName:  "Host",
		ShareBaseURL: "https://geomeet.test/join",
		Venues:       config.VenuesConfig{Keyword: "restaurant", Radius: 1500},
	}
	gw := testutils.NewFakeGateway()
	session := app.NewCoordinator(context.Background(), app.Options{
		Gateway:      gw,
		Locator:      locate.NewStatic(17.4, 78.5),
		ClientID:     "host",
		PollInterval: 20 * time.Millisecond,
	})
	t.Cleanup(session.Close)

	r := SetupRouter(context.Background(), cfg, session, feed.NewFeedWSController(session, feed.Options{}))
	return &fixture{gw: gw, session: session, router: r}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	out := map[string]any{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestRouter_StateAndIdentity(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodGet, "/api/identity", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "host", body["clientId"])

	w, body = f.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, "insufficient_participants", body["status"])
}

func TestRouter_CreateRoomAndShareLink(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/rooms", map[string]string{"password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "room-1", body["roomId"])
	assert.Equal(t, "https://geomeet.test/join?password=pw&room=room-1", body["link"])

	w, body = f.do(t, http.MethodGet, "/api/share-link", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://geomeet.test/join?password=pw&room=room-1", body["link"])

	w, body = f.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room_active", body["state"])
	assert.Equal(t, "Host", body["displayName"])
}

func TestRouter_JoinErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.CreateRoom(context.Background(), "Host", "secret")
	require.NoError(t, err)

	w, body := f.do(t, http.MethodPost, "/api/rooms/join", map[string]string{"roomId": "room-9"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Room not found", body["error"])

	w, body = f.do(t, http.MethodPost, "/api/rooms/join", map[string]string{"roomId": "room-1", "password": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Incorrect password", body["error"])

	w, _ = f.do(t, http.MethodPost, "/api/rooms/join", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodPost, "/api/rooms/join", map[string]string{"roomId": "room-1", "password": "secret", "displayName": "Renamed"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "room-1", body["roomId"])
}

func TestRouter_ShareLocation(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/api/location", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	_, err := f.session.CreateRoom(context.Background(), "Host", "")
	require.NoError(t, err)

	w, body := f.do(t, http.MethodPost, "/api/location", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 17.4, body["lat"], 1e-9)
	assert.InDelta(t, 78.5, body["lon"], 1e-9)

	w, body = f.do(t, http.MethodPost, "/api/location", map[string]float64{"lat": 0, "lon": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 0.0, body["lat"], 1e-9)

	w, _ = f.do(t, http.MethodPost, "/api/location", map[string]float64{"lat": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_FindVenues(t *testing.T) {
	f := newFixture(t)
	f.gw.Venues = []domain.Venue{{Name: "Paradise"}}

	w, _ := f.do(t, http.MethodPost, "/api/venues", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	roomID, err := f.session.CreateRoom(context.Background(), "Host", "")
	require.NoError(t, err)

	w, body := f.do(t, http.MethodPost, "/api/venues", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, body["error"])

	f.gw.SetMembers(roomID, domain.Snapshot{
		domain.NewSharingMember("host", "Host", 17.4, 78.5),
		domain.NewSharingMember("guest", "Guest", 17.5, 78.6),
	})
	require.Eventually(t, func() bool {
		return f.session.View().Status == domain.Ready
	}, 2*time.Second, 5*time.Millisecond)

	w, body = f.do(t, http.MethodPost, "/api/venues", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["venues"], 1)

	queries := f.gw.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "restaurant", queries[0].Keyword)
	assert.Equal(t, 1500, queries[0].RadiusMeters)
	assert.Len(t, queries[0].Centers, 2)
}

func TestRouter_BadBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	f := newFixture(t)
	_, _ = f.session.CreateRoom(context.Background(), "Host", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "geomeet_operations_total")
}

func TestRouter_Feed(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first struct {
		Type string         `json:"type"`
		View map[string]any `json:"view"`
	}
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, "state", first.Type)
	assert.Equal(t, "idle", first.View["state"])

	_, err = f.session.CreateRoom(context.Background(), "Host", "")
	require.NoError(t, err)

	for {
		var msg struct {
			View map[string]any `json:"view"`
		}
		require.NoError(t, ws.ReadJSON(&msg))
		if msg.View["state"] == "room_active" {
			assert.Equal(t, "room-1", msg.View["roomId"])
			return
		}
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusOf(app.ErrBusy))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(app.ErrClosed))
	assert.Equal(t, http.StatusInternalServerError, statusOf(assert.AnError))
}

func TestClientLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewClientLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(31 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestClientLimiter_DropsIdleClients(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewClientLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		assert.True(t, rl.Allow(ip))
	}
	assert.Equal(t, 3, rl.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.4"))
	assert.Equal(t, 1, rl.size())

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRouter_RateLimitsIntents(t *testing.T) {
	f := newFixture(t)
	cfg := &config.Config{Mode: "test", RateLimit: 1, RateWindow: time.Minute}
	f.router = SetupRouter(context.Background(), cfg, f.session, nil)

	w, _ := f.do(t, http.MethodPost, "/api/venues", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w, body := f.do(t, http.MethodPost, "/api/venues", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "too many requests", body["error"])

	w, _ = f.do(t, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
