package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// endpoint, unless the handler already set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "no-cache"

		case path == "/metrics":
			ttl = "no-store"

		case strings.HasPrefix(path, "/ws"):
			ttl = "no-store"

		case path == "/v1/map/config":
			ttl = "public, max-age=3600"

		case path == "/v1/listings/nearby":
			ttl = "public, max-age=300"

		case path == "/v1/listings/markers":
			ttl = "public, max-age=30" // selection state is part of the payload

		case strings.HasPrefix(path, "/v1/listings") || strings.HasPrefix(path, "/v1/properties"):
			ttl = "public, max-age=60" // mirrors the listings cache TTL

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=86400"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
