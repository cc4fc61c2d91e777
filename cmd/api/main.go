package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/casaview/internal/adapters/http"
	natsadapter "github.com/samirrijal/casaview/internal/adapters/nats"
	"github.com/samirrijal/casaview/internal/adapters/postgres"
	"github.com/samirrijal/casaview/internal/adapters/strapi"
	"github.com/samirrijal/casaview/internal/adapters/valkey"
	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/mapsync"
	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/core/usecases"
	"github.com/samirrijal/casaview/internal/pkg/config"
	"github.com/samirrijal/casaview/internal/pkg/logging"
	"github.com/samirrijal/casaview/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("casaview-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Listing source
	var (
		source interface {
			ports.ListingSource
			http.Pinger
		}
		db *postgres.DB
	)
	switch cfg.Source.Kind {
	case config.SourceStrapi:
		source = strapi.New(cfg.Strapi.URL, cfg.Strapi.APIToken, cfg.Strapi.Timeout(), cfg.Strapi.PageSize)
	default:
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		source = postgres.NewListingRepo(db)
	}
	slog.Info("listing source selected", "kind", cfg.Source.Kind)

	// Cache
	var cache *valkey.Cache
	var cacheSvc ports.CacheService
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, serving uncached", "error", err)
	} else {
		cache, cacheSvc = c, c
		defer c.Close()
	}

	listings := usecases.NewListingService(source, cacheSvc, cfg.Cache.ListingsTTLSeconds)
	hub := http.NewHub()

	// Sync events invalidate the cache, then refresh every open map session.
	deps := &http.Dependencies{
		Listings: listings,
		Map:      mapConfig(cfg.Map),
		Source:   source,
		DB:       db,
		Cache:    cache,
		Hub:      hub,
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, sync events disabled", "error", err)
	} else {
		defer sub.Close()
		deps.NATS = sub.Conn()
		err = sub.SubscribeListingsSynced(ctx, func(ctx context.Context, event *ports.SyncEvent) error {
			if err := listings.Invalidate(ctx); err != nil {
				return err
			}
			hub.Notify()
			slog.Info("listings invalidated",
				"upserted", event.Upserted,
				"deleted", event.Deleted,
				"sessions", hub.Sessions(),
			)
			return nil
		})
		if err != nil {
			slog.Warn("subscribe to sync events failed", "error", err)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "casaview API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, X-Request-ID, X-API-Version",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func mapConfig(m config.MapConfig) mapsync.Config {
	return mapsync.Config{
		AccessToken:   m.AccessToken,
		DefaultCenter: domain.GeoPoint{Lat: m.DefaultLat, Lng: m.DefaultLng},
		DefaultZoom:   m.DefaultZoom,
		FocusZoom:     m.FocusZoom,
		FlyDuration:   time.Duration(m.FlyDurationMS) * time.Millisecond,
		Fit: domain.FitOptions{
			Padding:  m.FitPadding,
			Duration: time.Duration(m.FitDurationMS) * time.Millisecond,
		},
		InitialFit: m.InitialFit,
	}
}
