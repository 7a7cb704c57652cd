package http

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/GeoMeet/internal/adapters/feed"
	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/config"
	"github.com/dkeye/GeoMeet/internal/domain"
)

// Session is the part of *app.Coordinator the API drives.
type Session interface {
	ClientID() domain.ClientID
	CreateRoom(ctx context.Context, displayName, password string) (domain.RoomID, error)
	JoinRoom(ctx context.Context, roomID domain.RoomID, displayName, password string) error
	ShareLocation(ctx context.Context) (domain.Point, error)
	ShareLocationAt(ctx context.Context, at domain.Point) (domain.Point, error)
	FindVenues(ctx context.Context, keyword string, radiusMeters int) ([]domain.Venue, error)
	ShareLink(base string) (string, error)
	View() app.View
}

func SetupRouter(ctx context.Context, cfg *config.Config, session Session, updates *feed.FeedWSController) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if st, err := os.Stat(cfg.StaticPath); err == nil && st.IsDir() {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{cfg: cfg, session: session}
	api := r.Group("/api")
	api.GET("/state", h.state)
	api.GET("/identity", h.identity)
	api.GET("/share-link", h.shareLink)

	intents := api.Group("")
	if cfg.RateLimit > 0 {
		intents.Use(RateLimit(NewClientLimiter(cfg.RateLimit, cfg.RateWindow)))
	}
	intents.POST("/rooms", h.createRoom)
	intents.POST("/rooms/join", h.joinRoom)
	intents.POST("/location", h.shareLocation)
	intents.POST("/venues", h.findVenues)

	if updates != nil {
		api.GET("/ws", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Msg("ws feed endpoint hit")
			updates.HandleFeed(ctx, c)
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
