package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"PortfolioSentinel/internal/app"
	"PortfolioSentinel/internal/cli"
	"PortfolioSentinel/internal/config"
	"PortfolioSentinel/internal/logger"
)

var (
	configPath = flag.String("config", config.Path(), "Path to the YAML configuration file")
	logLevel   = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	// Commands read the flag values lazily, after parsing.
	env := &cli.Env{Out: os.Stdout, Err: os.Stderr}
	env.Open = func(ctx context.Context) (*app.App, error) {
		log := logger.New(logger.Config{Level: *logLevel, Pretty: true})
		return cli.NewEnv(*configPath, log).Open(ctx)
	}
	cli.Register(commander, env)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
