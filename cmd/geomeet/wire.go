package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dkeye/GeoMeet/internal/adapters/gateway"
	"github.com/dkeye/GeoMeet/internal/adapters/locate"
	"github.com/dkeye/GeoMeet/internal/adapters/storage"
	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/config"
	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

// openIdentity returns the persistent client id. The cleanup func releases
// the backing store.
func openIdentity(ctx context.Context, cfg *config.Config) (domain.ClientID, func(), error) {
	var (
		kv      core.KVStore
		cleanup = func() {}
	)
	switch cfg.Identity.Backend {
	case "memory":
		kv = storage.NewMemoryStore()
	case "redis":
		rs, err := storage.NewRedisStore(ctx, storage.RedisOptions{
			Addr:     cfg.Identity.RedisAddr,
			Password: cfg.Identity.RedisPassword,
			DB:       cfg.Identity.RedisDB,
			Prefix:   "geomeet",
		})
		if err != nil {
			return "", nil, err
		}
		kv = rs
		cleanup = func() { _ = rs.Close() }
	default:
		kv = storage.NewFileStore(cfg.Identity.Path)
	}

	id := core.NewIdentityStore(kv, cfg.Identity.Key).GetOrCreate(ctx)
	log.Debug().Str("module", "cmd").Str("backend", cfg.Identity.Backend).Str("client_id", string(id)).Msg("identity ready")
	return id, cleanup, nil
}

func newLocator(cfg *config.Config) core.Locator {
	var loc core.Locator
	switch cfg.Location.Provider {
	case "static":
		loc = locate.NewStatic(cfg.Location.Lat, cfg.Location.Lon)
	case "ipapi":
		loc = locate.NewIPAPI(cfg.Location.IPAPIURL, &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		})
	default:
		return nil
	}
	return locate.WithTimeout(loc, cfg.Location.Timeout)
}

// newSession wires a coordinator from config. Close it when done.
func newSession(ctx context.Context, cfg *config.Config) (*app.Coordinator, error) {
	id, cleanup, err := openIdentity(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	// The id is read once; the store is not needed afterwards.
	cleanup()

	gw, err := gateway.New(gateway.Options{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	return app.NewCoordinator(ctx, app.Options{
		Gateway:      gw,
		Locator:      newLocator(cfg),
		ClientID:     id,
		PollInterval: cfg.PollInterval,
	}), nil
}
