package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/amirasaad/fxquote/infra/initializer"
	"github.com/amirasaad/fxquote/pkg/app"
	"github.com/amirasaad/fxquote/pkg/config"
	"github.com/amirasaad/fxquote/pkg/domain"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	noCacheFlag = "no-cache"
	jsonFlag    = "json"
	verboseFlag = "verbose"
)

type quoteParams struct {
	currency string
	noCache  bool
	json     bool
	verbose  bool
}

func (p *quoteParams) setFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.noCache, noCacheFlag, false, "skip the fresh cache read")
	cmd.Flags().BoolVar(&p.json, jsonFlag, false, "print the quote as JSON")
	cmd.Flags().BoolVarP(&p.verbose, verboseFlag, "v", false, "write service logs to stderr")
}

func (p *quoteParams) validateFlags(args []string) error {
	if len(args) == 1 {
		p.currency = domain.NormalizeCurrency(args[0])
		return domain.ValidateCurrency(p.currency)
	}
	return nil
}

func GetQuoteCommand() *cobra.Command {
	params := &quoteParams{}

	cmd := &cobra.Command{
		Use:   "quote [CURRENCY]",
		Short: "prints the current quote for a currency (default QUOTE_DEFAULT_CURRENCY)",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(_ *cobra.Command, args []string) error {
			return params.validateFlags(args)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.EnvFile())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			var logOutput io.Writer = io.Discard
			if params.verbose {
				logOutput = cmd.ErrOrStderr()
			}

			return runQuote(cmd.Context(), cmd.OutOrStdout(), cfg, params,
				initializer.WithLogOutput(logOutput))
		},
	}

	params.setFlags(cmd)

	return cmd
}

func runQuote(
	ctx context.Context,
	out io.Writer,
	cfg *config.App,
	params *quoteParams,
	opts ...initializer.Option,
) error {
	deps, err := initializer.InitializeDependencies(cfg, opts...)
	if err != nil {
		return err
	}
	defer deps.Close() //nolint:errcheck

	a, err := app.New(deps, cfg)
	if err != nil {
		return err
	}

	currency := params.currency
	if currency == "" {
		currency = cfg.Quote.DefaultCurrency
	}

	q := a.QuoteService.GetQuote(ctx, currency, params.noCache)
	if params.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(q)
	}

	_, err = fmt.Fprintf(out, "%s %s %s\n",
		q.Currency,
		q.Rate.String(),
		sourceColor(q.Source).Sprintf("(%s)", q.Source),
	)
	return err
}

func sourceColor(s domain.Source) *color.Color {
	switch s {
	case domain.SourceLive:
		return color.New(color.FgGreen, color.Bold)
	case domain.SourceCache:
		return color.New(color.FgCyan)
	case domain.SourceStaleCache:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}
