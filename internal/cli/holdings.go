package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
)

type importCmd struct {
	env *Env
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the holdings with a CSV file" }
func (*importCmd) Usage() string {
	return `import <file.csv>

  Replaces every holding with the rows of the CSV file, in the dashboard
  export format. Nothing is written when a row fails to parse.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage(c.env.Err, "exactly one CSV file is required")
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(c.env.Err, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	a, ok := c.env.open(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer c.env.close(a)

	n, err := a.Store.ImportHoldings(ctx, file)
	if err != nil {
		fmt.Fprintf(c.env.Err, "Error importing %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.env.Out, "%d position(s) importée(s)\n", n)
	return subcommands.ExitSuccess
}

type exportCmd struct {
	env    *Env
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the holdings as CSV" }
func (*exportCmd) Usage() string {
	return `export [-o <file.csv>]

  Writes the holdings in the dashboard CSV format, to stdout by default.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file (default stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, ok := c.env.open(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer c.env.close(a)

	var w io.Writer = c.env.Out
	if c.output != "" {
		file, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintf(c.env.Err, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		w = file
	}
	if err := a.Store.ExportHoldings(w); err != nil {
		fmt.Fprintf(c.env.Err, "Error exporting holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
