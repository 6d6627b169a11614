package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"PortfolioSentinel/internal/notifier"
)

type checkCmd struct {
	env *Env
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "evaluate thresholds and push alerts" }
func (*checkCmd) Usage() string {
	return `check

  Prices every holding and watchlist entry, evaluates the alert thresholds
  and sends the triggered alerts as one notification. Delivery failures are
  logged and do not change the exit status.
`
}

func (*checkCmd) SetFlags(*flag.FlagSet) {}

func (c *checkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := c.env.open(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer c.env.close(a)

	res, err := a.Scheduler(ctx, nil).RunCheck(ctx)
	if err != nil {
		fmt.Fprintf(c.env.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if len(res.Alerts) == 0 {
		fmt.Fprintln(c.env.Out, "Aucune alerte")
	} else {
		fmt.Fprintln(c.env.Out, notifier.FormatAlerts(res.Alerts))
		if !res.Sent {
			fmt.Fprintln(c.env.Err, "Warning: alerts could not be delivered")
		}
	}
	if res.Suppressed > 0 {
		fmt.Fprintf(c.env.Out, "%d alerte(s) déjà envoyée(s) aujourd'hui\n", res.Suppressed)
	}
	if len(res.Snapshot.Unpriced) > 0 {
		fmt.Fprintf(c.env.Err, "Warning: no price for %v\n", res.Snapshot.Unpriced)
	}
	return subcommands.ExitSuccess
}

type alertsCmd struct {
	env   *Env
	limit int
}

func (*alertsCmd) Name() string     { return "alerts" }
func (*alertsCmd) Synopsis() string { return "list recently sent alerts" }
func (*alertsCmd) Usage() string {
	return `alerts [-n <count>]

  Lists the most recent alerts recorded in the history database.
`
}

func (c *alertsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "Number of alerts to show")
}

func (c *alertsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.limit <= 0 {
		return usage(c.env.Err, "-n must be positive")
	}
	a, ok := c.env.open(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer c.env.close(a)

	records, err := a.Recorder.RecentAlerts(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(c.env.Err, "Error reading alert history: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.env.Out, notifier.FormatAlertHistory(records))
	return subcommands.ExitSuccess
}
