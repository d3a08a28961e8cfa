// Package webapi provides the HTTP surface of the quote service:
// - quote: GET /quote lookups
// - health and readiness probes
// - Prometheus metrics
package webapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/fxquote/pkg/app"
	"github.com/amirasaad/fxquote/pkg/cache"
	"github.com/amirasaad/fxquote/webapi/common"
	quoteweb "github.com/amirasaad/fxquote/webapi/quote"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readinessTimeout = 2 * time.Second

// SetupApp Initialize Fiber with custom configuration
func SetupApp(app *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		AppName:               "fxquote",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Request failed", err)
		},
	})

	// Configure rate limiting middleware
	// Uses X-Forwarded-For header when behind a proxy
	// Falls back to X-Real-IP or direct IP if needed
	if rl := app.Config.RateLimit; rl != nil && rl.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:        rl.MaxRequests,
			Expiration: rl.Window,
			Next: func(c *fiber.Ctx) bool {
				// probes and scrapes are never limited
				return strings.HasPrefix(c.Path(), "/health") || c.Path() == "/metrics"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
					// Take the first IP in the chain
					if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
						return strings.TrimSpace(forwardedFor[:commaIndex])
					}
					return strings.TrimSpace(forwardedFor)
				}
				if realIP := c.Get("X-Real-IP"); realIP != "" {
					return realIP
				}
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${latency} ${method} ${path} ${respHeader:" + quoteweb.HeaderQuoteSource + "}\n",
	}))

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("fxquote API is running")
	})
	fiberApp.Get("/health", Health)
	fiberApp.Get("/health/ready", Ready(app.Deps.Cache))

	gatherer := app.Deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	quoteweb.Routes(fiberApp, app.QuoteService, app.Config)
	return fiberApp
}

// Health reports the process is up.
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": "api"})
}

// Ready reports whether the cache backend answers. Quotes are still served
// when it does not, but from degraded tiers.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} common.ProblemDetails
// @Router /health/ready [get]
func Ready(c cache.Cache) fiber.Handler {
	pinger, _ := c.(cache.Pinger)
	return func(ctx *fiber.Ctx) error {
		if pinger == nil {
			return ctx.JSON(fiber.Map{"status": "ok", "cache": "unchecked"})
		}
		pingCtx, cancel := context.WithTimeout(ctx.UserContext(), readinessTimeout)
		defer cancel()
		if err := pinger.Ping(pingCtx); err != nil {
			return common.ProblemDetailsJSON(ctx, "Cache unavailable", err, fiber.StatusServiceUnavailable)
		}
		return ctx.JSON(fiber.Map{"status": "ok", "cache": "ok"})
	}
}
