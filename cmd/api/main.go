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

	"github.com/samirrijal/geomeasure/internal/adapters/http"
	"github.com/samirrijal/geomeasure/internal/adapters/memory"
	mqttadapter "github.com/samirrijal/geomeasure/internal/adapters/mqtt"
	natsadapter "github.com/samirrijal/geomeasure/internal/adapters/nats"
	"github.com/samirrijal/geomeasure/internal/adapters/postgres"
	"github.com/samirrijal/geomeasure/internal/adapters/sqlite"
	"github.com/samirrijal/geomeasure/internal/adapters/valkey"
	"github.com/samirrijal/geomeasure/internal/core/ports"
	"github.com/samirrijal/geomeasure/internal/core/usecases"
	"github.com/samirrijal/geomeasure/internal/pkg/config"
	"github.com/samirrijal/geomeasure/internal/pkg/logging"
	"github.com/samirrijal/geomeasure/internal/pkg/metrics"
	"github.com/samirrijal/geomeasure/internal/pkg/telemetry"
)

// storage bundles the selected record backend.
type storage struct {
	records ports.RecordStore
	groups  ports.GroupStore
	pinger  http.Pinger
	close   func()
}

func main() {
	cfg, err := config.Load("geomeasure-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

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

	// Storage
	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.close()
	slog.Info("record storage ready", "driver", cfg.Storage.Driver)

	// Cache
	var cache ports.CacheService
	var cachePinger http.Pinger
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache, cachePinger = c, c
		}
	}

	// NATS
	var events ports.EventPublisher
	var views ports.ViewPublisher
	deps := &http.Dependencies{Version: version()}
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			if cfg.Capture.PublishViews {
				views = pub
			}
			deps.NATS = pub.Conn()
		}
	}

	// Use cases
	svc := usecases.NewServices(store.records, store.groups, cache, events, views, cfg.Capture.MaxAccuracyMeters)
	screens := svc.Screens
	screens.SetMaxScreens(cfg.Capture.MaxScreens)
	idle := time.Duration(cfg.Capture.ScreenIdleTimeout) * time.Second
	go screens.RunJanitor(ctx, janitorInterval(idle), idle)

	// Sensor feeds
	feeds := openFeeds(cfg)
	for _, feed := range feeds {
		defer feed.Close()
		if err := feed.SubscribeSamples(ctx, screens.HandleSample); err != nil {
			slog.Warn("sensor feed subscribe failed", "error", err)
		}
	}

	deps.Screens = screens
	deps.Records = svc.Records
	deps.Groups = svc.Groups
	deps.Storage = store.pinger
	deps.Cache = cachePinger

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "geomeasure API",
	})

	routerCfg := http.DefaultRouterConfig()
	routerCfg.RateLimit = cfg.Server.RateLimit
	routerCfg.RequestTimeout = time.Duration(cfg.Server.RequestTimeout) * time.Second
	routerCfg.CORSOrigins = cfg.Server.CORSOrigins
	routerCfg.SpecPath = cfg.Server.SpecPath
	http.SetupRoutes(app, deps, routerCfg)

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
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// janitorInterval sweeps a few times per idle window, at most once a minute.
func janitorInterval(idle time.Duration) time.Duration {
	if iv := idle / 4; iv < time.Minute {
		return iv
	}
	return time.Minute
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Migrate {
			applied, err := db.Migrate(ctx)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			slog.Info("migrations applied", "files", applied)
		}
		go reportPoolStats(ctx, db)
		return &storage{
			records: postgres.NewRecordRepo(db),
			groups:  postgres.NewGroupRepo(db),
			pinger:  db,
			close:   db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &storage{
			records: sqlite.NewRecordRepo(db),
			groups:  sqlite.NewGroupRepo(db),
			pinger:  http.PingFunc(db.PingContext),
			close:   func() { _ = db.Close() },
		}, nil

	default:
		return &storage{
			records: memory.NewRecordStore(),
			groups:  memory.NewGroupStore(),
			close:   func() {},
		}, nil
	}
}

// openFeeds connects the enabled sensor transports. A transport that cannot be
// reached is logged and skipped; taps still work without it.
func openFeeds(cfg *config.Config) []ports.SensorFeed {
	var feeds []ports.SensorFeed

	if cfg.NATS.Enabled {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.Durable)
		if err != nil {
			slog.Warn("nats sensor feed unavailable", "error", err)
		} else {
			feeds = append(feeds, sub)
		}
	}

	if cfg.MQTT.Enabled {
		client, err := mqttadapter.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			slog.Warn("mqtt sensor feed unavailable", "error", err)
		} else {
			feeds = append(feeds, mqttadapter.NewFeed(client, cfg.MQTT.Topic, byte(cfg.MQTT.QoS)))
		}
	}

	return feeds
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}

func version() string {
	if v := os.Getenv("GEOMEASURE_VERSION"); v != "" {
		return v
	}
	return "dev"
}
