package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/geomeasure/internal/pkg/metrics"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	RateLimit      int           // requests per minute per IP, 0 disables
	RequestTimeout time.Duration // per-request timeout on /v1 routes
	CORSOrigins    string
	SpecPath       string
}

// DefaultRouterConfig returns the production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimit:      600,
		RequestTimeout: 15 * time.Second,
		CORSOrigins:    "*",
		SpecPath:       DefaultSpecPath,
	}
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, cfg RouterConfig) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	if cfg.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))
	}

	// A capture taps points quickly, so the limit is per IP and generous.
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := func(h fiber.Handler) fiber.Handler {
		if cfg.RequestTimeout <= 0 {
			return h
		}
		return timeout.NewWithContext(h, cfg.RequestTimeout)
	}

	v1 := app.Group("/v1")

	// Records
	v1.Get("/records.geojson", t(RecordsGeoJSONHandler(deps)))
	v1.Get("/records", t(ListRecordsHandler(deps)))
	v1.Get("/records/:id", t(GetRecordHandler(deps)))
	v1.Get("/records/:id/geojson", t(RecordGeoJSONHandler(deps)))
	v1.Put("/records/:id", t(UpdateRecordHandler(deps)))
	v1.Delete("/records/:id", t(DeleteRecordHandler(deps)))

	// Groups
	v1.Get("/groups", t(ListGroupsHandler(deps)))
	v1.Post("/groups", t(CreateGroupHandler(deps)))
	v1.Delete("/groups/:name", t(DeleteGroupHandler(deps)))

	// Capture sessions, one per screen
	s := v1.Group("/screens/:screen/session")
	s.Get("/", GetSessionHandler(deps))
	s.Get("/bounds", SessionBoundsHandler(deps))
	s.Post("/begin", BeginHandler(deps))
	s.Post("/switch", SwitchHandler(deps))
	s.Post("/edit/:id", t(EditHandler(deps)))
	s.Post("/points", AddPointHandler(deps))
	s.Post("/gps", GPSHandler(deps))
	s.Post("/undo", UndoHandler(deps))
	s.Post("/clear", ClearHandler(deps))
	s.Post("/cancel", CancelHandler(deps))
	s.Post("/request-save", RequestSaveHandler(deps))
	s.Post("/resume", ResumeHandler(deps))
	s.Post("/save", t(SaveHandler(deps)))
	s.Post("/preview/:id", t(PreviewHandler(deps)))
	s.Post("/close-preview", ClosePreviewHandler(deps))

	// Stateless geometry
	v1.Post("/bounds", BoundsHandler())
	v1.Get("/measure", MeasureHandler())

	// GraphQL
	app.Post("/graphql", t(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app, cfg.SpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
