package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"PortfolioSentinel/internal/calculator"
	"PortfolioSentinel/internal/notifier"
	"PortfolioSentinel/internal/pricing"
	"PortfolioSentinel/internal/valuation"
)

type reportCmd struct {
	env  *Env
	raw  bool
	news int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the portfolio valuation" }
func (*reportCmd) Usage() string {
	return `report [-raw] [-news <n>]

  Prices the portfolio and prints a markdown report: totals, positions and
  dividend yields. With -news, appends up to n headlines per holding.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal rendering")
	f.IntVar(&c.news, "news", 0, "Headlines per holding (0 disables)")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := c.env.open(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer c.env.close(a)

	p := a.Store.Portfolio()
	snap := a.Engine.EvaluatePortfolio(p.Holdings, a.Prices.Resolve(ctx, p.Holdings))
	md := notifier.FormatReport(snap, valuation.DividendYields(p.Holdings, p.Dividends))

	if c.news > 0 && a.News != nil {
		if digest := notifier.FormatNews(a.News.Digest(ctx, p.Holdings, c.news)); digest != "" {
			md += "\n## Actualités\n\n" + strings.ReplaceAll(digest, "\n• ", "\n- ")
		}
	}
	c.env.printMarkdown(md, c.raw)
	return subcommands.ExitSuccess
}

type historyCmd struct {
	env    *Env
	period string
	raw    bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show price history indicators for a ticker" }
func (*historyCmd) Usage() string {
	return `history [-period <1d|5d|1mo|6mo|1y|5y|max>] <ticker>

  Fetches the price history of a ticker and prints its range, moving
  averages, RSI and volatility.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "1y", "History period")
	f.BoolVar(&c.raw, "raw", false, "Print markdown without terminal rendering")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage(c.env.Err, "exactly one ticker is required")
	}
	if !pricing.ValidPeriod(c.period) {
		return usage(c.env.Err, "period must be one of %s", strings.Join(pricing.Periods, ", "))
	}
	ticker := strings.ToUpper(f.Arg(0))

	a, ok := c.env.open(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer c.env.close(a)

	bars, err := a.Prices.Bars(ctx, ticker, c.period)
	if err != nil {
		fmt.Fprintf(c.env.Err, "Error fetching history for %s: %v\n", ticker, err)
		return subcommands.ExitFailure
	}
	c.env.printMarkdown(formatHistory(ticker, c.period, len(bars), calculator.Summarize(bars)), c.raw)
	return subcommands.ExitSuccess
}

func formatHistory(ticker, period string, n int, s calculator.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s, %d séances)\n\n", ticker, period, n)
	b.WriteString("| | |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Dernier | %s |\n", notifier.Euro(s.Last))
	fmt.Fprintf(&b, "| Variation | %s |\n", notifier.Pct(s.ChangePct))
	fmt.Fprintf(&b, "| Plus haut | %s |\n", notifier.Euro(s.High))
	fmt.Fprintf(&b, "| Plus bas | %s |\n", notifier.Euro(s.Low))
	fmt.Fprintf(&b, "| Position | %.0f %% |\n", s.Position*100)
	if s.SMA20 > 0 {
		fmt.Fprintf(&b, "| MM20 | %s |\n", notifier.Euro(s.SMA20))
	}
	if s.SMA50 > 0 {
		fmt.Fprintf(&b, "| MM50 | %s |\n", notifier.Euro(s.SMA50))
	}
	fmt.Fprintf(&b, "| RSI 14 | %.1f |\n", s.RSI14)
	if s.Volatility > 0 {
		fmt.Fprintf(&b, "| Volatilité annuelle | %.1f %% |\n", s.Volatility*100)
	}
	return b.String()
}
