package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GeoMeet/internal/app"
)

type stateMessage struct {
	Type string   `json:"type"`
	View app.View `json:"view"`
}

func (ctl *FeedWSController) forward(ctx context.Context, cancel context.CancelFunc, updates <-chan app.View, c *WsFeedConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-updates:
			if !ok {
				log.Info().Str("module", "feed").Msg("source closed")
				cancel()
				return
			}
			if !ctl.sendJSON(c, stateMessage{Type: "state", View: v}) {
				cancel()
				return
			}
		}
	}
}

func (ctl *FeedWSController) writePump(ctx context.Context, cancel context.CancelFunc, c *WsFeedConn) {
	defer cancel()

	var ping <-chan time.Time
	if ctl.pingPeriod > 0 {
		t := time.NewTicker(ctl.pingPeriod)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "feed").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "feed").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "feed").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump only answers pings; the feed is one-way otherwise.
func (ctl *FeedWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsFeedConn) {
	defer cancel()
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "feed").Msg("readPump read error")
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "feed").Msg("bad json")
			continue
		}
		switch env.Type {
		case "ping":
			ctl.sendJSON(c, struct {
				Type string `json:"type"`
			}{Type: "pong"})
		default:
			log.Warn().Str("module", "feed").Str("type", env.Type).Msg("unknown message")
		}
	}
}

// sendJSON queues v and reports whether the connection should stay open.
func (ctl *FeedWSController) sendJSON(c *WsFeedConn, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "feed").Msg("sendJSON marshal")
		return true
	}
	switch err := c.TrySend(b); err {
	case nil:
		return true
	case ErrBackpressure:
		if ctl.policy.OnBackPressure(c) == Disconnect {
			log.Warn().Str("module", "feed").Msg("slow reader, disconnecting")
			return false
		}
		return true
	default:
		return false
	}
}
