package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint,
// unless the handler already chose one. Session state changes with every command
// and is never cached.
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
			ttl = "no-cache"
		case strings.HasPrefix(path, "/v1/screens/"):
			ttl = "no-store"
		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		case path == "/v1/measure":
			ttl = "public, max-age=86400" // pure function of the query
		case strings.HasPrefix(path, "/v1/records"), strings.HasPrefix(path, "/v1/groups"):
			ttl = "private, max-age=0, must-revalidate"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
