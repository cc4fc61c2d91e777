package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/casaview/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// propertiesSunset is when the /v1/properties aliases go away.
var propertiesSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP. Map sessions are long
	// lived and excluded.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return websocket.IsWebSocketUpgrade(c)
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

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

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1 := app.Group("/v1")
	v1.Get("/map/config", MapConfigHandler(deps))
	v1.Get("/listings", withTimeout(ListListingsHandler(deps)))
	v1.Get("/listings/frame", withTimeout(FrameHandler(deps)))
	v1.Get("/listings/markers", withTimeout(MarkersHandler(deps)))
	v1.Get("/listings/nearby", withTimeout(NearbyListingsHandler(deps)))
	v1.Get("/listings/:slug", withTimeout(GetListingHandler(deps)))

	// Aliases kept for clients of the content store's naming
	props := v1.Group("/properties", DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/properties", SunsetDate: propertiesSunset, Alternative: "/v1/listings"},
		{Path: "/v1/properties/:slug", SunsetDate: propertiesSunset, Alternative: "/v1/listings/:slug"},
	}))
	props.Get("", withTimeout(ListListingsHandler(deps)))
	props.Get("/:slug", withTimeout(GetListingHandler(deps)))

	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	SetupDocs(app)

	// Map sessions
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/map", websocket.New(MapSocketHandler(deps)))
}
