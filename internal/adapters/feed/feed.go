// Package feed pushes coordinator updates to browsers over websocket.
package feed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Source is anything that publishes views, normally *app.Coordinator.
type Source interface {
	Subscribe(buf int) (<-chan app.View, func())
}

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	Policy     Policy
}

type FeedWSController struct {
	source     Source
	policy     Policy
	readLimit  int64
	pingPeriod time.Duration
}

func NewFeedWSController(src Source, opts Options) *FeedWSController {
	if opts.Policy == nil {
		opts.Policy = SimplePolicy{}
	}
	return &FeedWSController{
		source:     src,
		policy:     opts.Policy,
		readLimit:  opts.ReadLimit,
		pingPeriod: opts.PingPeriod,
	}
}

type WsFeedConn struct {
	conn WSConn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func NewWsFeedConn(conn WSConn, buf int) *WsFeedConn {
	return &WsFeedConn{conn: conn, send: make(chan []byte, buf)}
}

func (c *WsFeedConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsFeedConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *FeedWSController) HandleFeed(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "feed").Msg("ws upgrade")
		return
	}
	ctl.Serve(ctx, ws)
}

// Serve runs the pumps for an upgraded connection until either side quits.
func (ctl *FeedWSController) Serve(ctx context.Context, ws WSConn) {
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}
	conn := NewWsFeedConn(ws, 16)
	updates, unsubscribe := ctl.source.Subscribe(4)
	ctx, cancel := context.WithCancel(ctx)

	metrics.FeedSubscribers.Inc()
	log.Info().Str("module", "feed").Msg("feed connected")

	go func() {
		<-ctx.Done()
		unsubscribe()
		conn.Close()
		metrics.FeedSubscribers.Dec()
		log.Info().Str("module", "feed").Msg("feed disconnected")
	}()

	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, conn)
	go ctl.forward(ctx, cancel, updates, conn)
}
