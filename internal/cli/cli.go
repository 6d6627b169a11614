// Package cli implements the portfolio command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/app"
	"PortfolioSentinel/internal/config"
)

// Env is shared by every command.
type Env struct {
	// Open assembles the application. Replaced in tests.
	Open func(ctx context.Context) (*app.App, error)
	Out  io.Writer
	Err  io.Writer
}

// NewEnv returns an Env reading the configuration at configPath.
func NewEnv(configPath string, log zerolog.Logger) *Env {
	return &Env{
		Open: func(ctx context.Context) (*app.App, error) {
			cfg, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid config: %w", err)
			}
			return app.New(ctx, cfg, log)
		},
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

// Register adds every command to the commander.
func Register(c *subcommands.Commander, env *Env) {
	c.Register(&checkCmd{env: env}, "alerts")
	c.Register(&alertsCmd{env: env}, "alerts")

	c.Register(&reportCmd{env: env}, "portfolio")
	c.Register(&historyCmd{env: env}, "portfolio")

	c.Register(&importCmd{env: env}, "holdings")
	c.Register(&exportCmd{env: env}, "holdings")
}

// open assembles the app, reporting failures on Err.
func (e *Env) open(ctx context.Context) (*app.App, bool) {
	a, err := e.Open(ctx)
	if err != nil {
		fmt.Fprintf(e.Err, "Error: %v\n", err)
		return nil, false
	}
	return a, true
}

func (e *Env) close(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintf(e.Err, "Error closing history: %v\n", err)
	}
}

// printMarkdown renders md for the terminal, or prints it as is when raw.
func (e *Env) printMarkdown(md string, raw bool) {
	if !raw {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				fmt.Fprint(e.Out, out)
				return
			}
		}
	}
	fmt.Fprintln(e.Out, md)
}

func usage(w io.Writer, format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(w, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}
