// Command provider runs a simulated upstream quote service with random
// latency and failures, for exercising the degraded tiers locally.
package main

import (
	"errors"
	"fmt"
	"log/slog"

	infra_provider "github.com/amirasaad/fxquote/infra/provider"
	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/amirasaad/fxquote/webapi/common"
	log "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const serviceName = "provider"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(config.EnvFile())
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	sim := infra_provider.NewSimulatedQuoteProvider(cfg.Simulator, nil, slog.Default())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Simulator.Port)
	slog.Default().Info("Starting simulated provider",
		"address", addr,
		"fail_prob", cfg.Simulator.FailProb,
		"force_fail", cfg.Simulator.ForceFail,
	)
	return newApp(sim).Listen(addr)
}

func newApp(sim *infra_provider.SimulatedQuoteProvider) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": serviceName})
	})
	app.Get("/quote", func(c *fiber.Ctx) error {
		currency := domain.NormalizeCurrency(c.Query("currency", "USD"))
		if err := domain.ValidateCurrency(currency); err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency", err)
		}

		q, err := sim.FetchQuote(c.UserContext(), currency)
		if err != nil {
			status := fiber.StatusServiceUnavailable
			var upErr *domain.UpstreamError
			if errors.As(err, &upErr) && upErr.StatusCode != 0 {
				status = upErr.StatusCode
			}
			return common.ProblemDetailsJSON(c, "Service temporarily unavailable", err, status)
		}
		q.Source = domain.Source(serviceName)
		return c.JSON(q)
	})
	return app
}
