package main

import (
	"os"

	"github.com/alecthomas/kong"

	"schema-harvester/internal/config"
	"schema-harvester/internal/logger"
	"schema-harvester/internal/types"
)

// CLI is the command tree of the harvester
type CLI struct {
	Config   string `help:"Path to the YAML config file" type:"path" env:"HARVESTER_CONFIG"`
	LogLevel string `help:"Console log level: debug, info, warn, error" default:"info" enum:"debug,info,warn,error"`
	LogFile  string `help:"Also append console logs as JSON to this file" type:"path"`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Fetch every catalog endpoint and generate schemas and types"`
	Generate GenerateCmd `cmd:"" help:"Rebuild data, schemas and types from stored raw.json files without calling the API"`
	Reset    ResetCmd    `cmd:"" help:"Truncate every file under the logs directory"`
	Summary  SummaryCmd  `cmd:"" help:"Print the counters and log files of the last run"`
	Catalog  CatalogCmd  `cmd:"" help:"Endpoint catalog tools"`
}

func main() {
	os.Exit(run())
}

// exitCode is 2 for errors that stop a run before it starts (configuration,
// credentials) and 1 for anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case types.IsFatal(err):
		return 2
	default:
		return 1
	}
}

func run() int {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("harvester"),
		kong.Description("Fetch sample responses from a JSON-RPC style API and generate Zod schemas and TypeScript types"),
		kong.UsageOnError(),
	)

	log, closeFiles, err := logger.SetupConsole(cli.LogLevel, cli.LogFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return 2
	}

	ctx.Bind(log, cfg)

	if err := ctx.Run(); err != nil {
		log.Error("command failed", "command", ctx.Command(), "error", err)
		return exitCode(err)
	}
	return 0
}
