package quote

import (
	"context"

	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/amirasaad/fxquote/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// HeaderQuoteSource echoes the tier that answered.
const HeaderQuoteSource = "X-Quote-Source"

// Quoter is the capability the handlers need from the quote service.
type Quoter interface {
	GetQuote(ctx context.Context, currency string, bypassCache bool) *domain.Quote
}

// Routes registers HTTP routes for quote lookups.
func Routes(app *fiber.App, quoteSvc Quoter, cfg *config.App) {
	app.Get("/quote", GetQuote(quoteSvc, cfg.Quote.DefaultCurrency))
}

// GetQuote returns a Fiber handler answering quote lookups.
// @Summary Get an exchange rate quote
// @Description Returns the current rate for a currency. The answer always succeeds; the source field tells whether it is live, cached, stale or the static fallback.
// @Tags quotes
// @Produce json
// @Param currency query string false "Currency code, 3 to 5 letters" default(USD)
// @Param nocache query bool false "Skip the fresh cache read"
// @Success 200 {object} map[string]any
// @Failure 422 {object} common.ProblemDetails
// @Failure 429 {object} common.ProblemDetails
// @Router /quote [get]
func GetQuote(quoteSvc Quoter, defaultCurrency string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.ParseQueryAndValidate[QuoteRequest](c)
		if err != nil {
			return nil
		}

		currency := input.Currency
		if currency == "" {
			currency = domain.NormalizeCurrency(defaultCurrency)
		}

		q := quoteSvc.GetQuote(c.UserContext(), currency, input.NoCache)

		c.Set(HeaderQuoteSource, q.Source.String())
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Status(fiber.StatusOK).JSON(q)
	}
}
