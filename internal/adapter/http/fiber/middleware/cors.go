package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/seu-repo/voz-visible/pkg/config"
)

const (
	defaultMethods = "GET,POST,OPTIONS"
	defaultHeaders = "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Session-ID"
	defaultExpose  = "Content-Length,X-Request-ID"
)

// NewCORS creates a CORS middleware from application config. The browser
// client is usually served from another origin than the API.
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	maxAge := 86400
	if cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge
	}

	origins := join(cfg.AllowedOrigins, "*")
	return fibercors.New(fibercors.Config{
		AllowOrigins:  origins,
		AllowMethods:  join(cfg.AllowedMethods, defaultMethods),
		AllowHeaders:  join(cfg.AllowedHeaders, defaultHeaders),
		ExposeHeaders: join(cfg.ExposeHeaders, defaultExpose),
		// fiber refuses credentials with a wildcard origin
		AllowCredentials: cfg.Credentials && origins != "*",
		MaxAge:           maxAge,
	})
}

func join(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ",")
}
