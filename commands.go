package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schema-harvester/internal/artifact"
	"schema-harvester/internal/catalog"
	"schema-harvester/internal/config"
	"schema-harvester/internal/executor"
	"schema-harvester/internal/fetch"
	"schema-harvester/internal/generator"
	"schema-harvester/internal/history"
	"schema-harvester/internal/logger"
	"schema-harvester/internal/parser"
	"schema-harvester/internal/reporter"
	"schema-harvester/internal/types"
)

// RunCmd runs the endpoint batch
type RunCmd struct {
	Mode       string   `help:"Which calls to make: list, create or all (default from config)"`
	Sequential bool     `help:"Process endpoints one after another"`
	Workers    int      `help:"Maximum concurrent endpoints (default from config)"`
	KeepLogs   bool     `help:"Do not truncate the logs directory before the run"`
	Only       []string `help:"Process only the named endpoints" sep:","`
}

// Run is called by Kong when the run command is executed.
func (r *RunCmd) Run(log *slog.Logger, cfg *config.Config) error {
	mode := cfg.Run.Mode
	if r.Mode != "" {
		mode = r.Mode
	}
	runMode, err := types.ParseMode(mode)
	if err != nil {
		return err
	}

	if err := config.LoadEnvFile(cfg.EnvFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", cfg.EnvFile, err)
	}
	creds, err := config.ResolveCredentials()
	if err != nil {
		return err
	}

	loader := catalog.NewLoader(cfg.Catalog)
	cat, err := loader.Load()
	if err != nil {
		return err
	}
	endpoints, err := cat.Select(r.Only)
	if err != nil {
		return err
	}
	log.Info("loaded endpoint catalog", "path", loader.Path(), "endpoints", len(endpoints))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	workers := cfg.Run.MaxWorkers
	if r.Workers > 0 {
		workers = r.Workers
	}
	orch := executor.NewOrchestrator(executor.Options{
		Mode:       runMode,
		Concurrent: cfg.Run.Concurrent && !r.Sequential,
		MaxWorkers: workers,
		KeepLogs:   r.KeepLogs,
		LogFile:    cfg.Run.LogFile,
	}, deps)

	summary, err := orch.Run(ctx, creds, endpoints)
	if err != nil {
		return err
	}
	reporter.PrintSummary(os.Stdout, summary)
	if ctx.Err() != nil {
		log.Warn("run interrupted", "skipped", summary.Tally(executor.StatusSkipped))
	}
	return nil
}

// buildDependencies wires the pipeline collaborators from cfg. The returned
// cleanup closes the run log and the history database.
func buildDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (executor.Dependencies, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("failed to close", "error", err)
			}
		}
	}

	gen, err := generator.New(cfg.Generator, log)
	if err != nil {
		return executor.Dependencies{}, cleanup, err
	}

	runLog, err := logger.NewLogger(cfg.Paths.LogDir)
	if err != nil {
		return executor.Dependencies{}, cleanup, err
	}
	closers = append(closers, runLog)

	deps := executor.Dependencies{
		Fetcher: fetch.NewClient(fetch.Config{
			Timeout:       time.Duration(cfg.Run.Timeout) * time.Second,
			RateLimit:     cfg.Run.RateLimit,
			RateBurst:     cfg.Run.RateBurst,
			RetryAttempts: cfg.Run.Retry.Attempts,
			RetryDelay:    time.Duration(cfg.Run.Retry.Delay) * time.Second,
		}),
		Writer:    artifact.NewFilesystemWriter(),
		Layout:    artifact.Layout{JSONDir: cfg.Paths.JSONDir, SchemasDir: cfg.Paths.SchemasDir, TypesDir: cfg.Paths.TypesDir},
		Generator: gen,
		RunLog:    runLog,
		Logger:    log,
	}
	if cfg.Generator.JSONSchema {
		deps.Documenter = generator.NewInferGenerator()
	}

	if cfg.Mirror.Enabled {
		mirror, err := artifact.NewS3Mirror(artifact.S3Config{
			Endpoint:  cfg.Mirror.Endpoint,
			Region:    cfg.Mirror.Region,
			AccessKey: cfg.Mirror.AccessKey,
			SecretKey: cfg.Mirror.SecretKey,
			Bucket:    cfg.Mirror.Bucket,
			UseSSL:    cfg.Mirror.UseSSL,
		})
		if err != nil {
			return deps, cleanup, &types.ConfigurationError{Message: fmt.Sprintf("invalid mirror config: %v", err)}
		}
		deps.Mirror = mirror
		log.Info("mirroring artifacts", "endpoint", cfg.Mirror.Endpoint, "bucket", cfg.Mirror.Bucket)
	}

	if cfg.Reporting.Enabled {
		deps.Recorders = append(deps.Recorders, reporter.NewReporter(reporter.Config{
			Format:    cfg.Reporting.Formats,
			OutputDir: cfg.Reporting.OutputDir,
		}))
	}

	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History)
		if err != nil {
			log.Warn("run history disabled", "error", err)
		} else {
			closers = append(closers, store)
			deps.Recorders = append(deps.Recorders, store)
		}
	}
	return deps, cleanup, nil
}

// GenerateCmd rebuilds data.json, schemas and types from the raw.json files
// of earlier runs. It needs no credentials and makes no API calls.
type GenerateCmd struct {
	Sequential bool     `help:"Process endpoints one after another"`
	Workers    int      `help:"Maximum concurrent endpoints (default from config)"`
	KeepLogs   bool     `help:"Do not truncate the logs directory before the run"`
	Only       []string `help:"Regenerate only the named endpoints" sep:","`
}

// Run is called by Kong when the generate command is executed.
func (g *GenerateCmd) Run(log *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	names, err := deps.Layout.Harvested()
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", cfg.Paths.JSONDir, err)
	}
	names, err = selectNames(names, g.Only)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return &types.ConfigurationError{Message: fmt.Sprintf("no raw.json found under %s (run the harvester first)", cfg.Paths.JSONDir)}
	}
	log.Info("regenerating from stored responses", "dir", cfg.Paths.JSONDir, "endpoints", len(names))

	workers := cfg.Run.MaxWorkers
	if g.Workers > 0 {
		workers = g.Workers
	}
	orch := executor.NewOrchestrator(executor.Options{
		Mode:       types.ModeList,
		Concurrent: cfg.Run.Concurrent && !g.Sequential,
		MaxWorkers: workers,
		KeepLogs:   g.KeepLogs,
		LogFile:    cfg.Run.LogFile,
	}, deps)

	summary, err := orch.Regenerate(ctx, names)
	if err != nil {
		return err
	}
	reporter.PrintSummary(os.Stdout, summary)
	return nil
}

// selectNames keeps the stored endpoints named in only, in stored order.
func selectNames(stored, only []string) ([]string, error) {
	if len(only) == 0 {
		return stored, nil
	}
	have := make(map[string]bool, len(stored))
	for _, n := range stored {
		have[n] = true
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		if !have[n] {
			return nil, fmt.Errorf("endpoint %q has no stored raw.json", n)
		}
		want[n] = true
	}
	var out []string
	for _, n := range stored {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// ResetCmd truncates the logs directory
type ResetCmd struct{}

// Run is called by Kong when the reset command is executed.
func (c *ResetCmd) Run(log *slog.Logger, cfg *config.Config) error {
	runLog, err := logger.NewLogger(cfg.Paths.LogDir)
	if err != nil {
		return err
	}
	defer runLog.Close()

	if err := runLog.Reset(); err != nil {
		return err
	}
	log.Info("logs reset", "dir", cfg.Paths.LogDir)
	return nil
}

// SummaryCmd prints the stats files of the last run
type SummaryCmd struct {
	History int `help:"Also list this many recent runs from the history database"`
}

// Run is called by Kong when the summary command is executed.
func (c *SummaryCmd) Run(log *slog.Logger, cfg *config.Config) error {
	counts, files, err := logger.ReadStats(cfg.Paths.LogDir)
	if err != nil {
		return err
	}

	fmt.Printf("log events: %d info, %d error\n", counts.Info, counts.Error)
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}

	if c.History <= 0 {
		return nil
	}
	if !cfg.History.Enabled {
		return &types.ConfigurationError{Message: "history is not enabled in the config"}
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, c.History)
	if err != nil {
		return err
	}
	fmt.Println("recent runs:")
	for _, r := range runs {
		fmt.Printf("  %s %s %-6s %d ok, %d failed, %d skipped (%d info, %d error)\n",
			r.StartedAt.Format(time.RFC3339), r.RunID, r.Mode,
			r.Succeeded, r.Failed, r.Skipped, r.Info, r.Errors)
	}
	return nil
}

// CatalogCmd groups catalog subcommands
type CatalogCmd struct {
	Import CatalogImportCmd `cmd:"" help:"Build a catalog template from a Swagger/OpenAPI document"`
}

// CatalogImportCmd writes a catalog template from an OpenAPI document
type CatalogImportCmd struct {
	URL     string        `help:"Swagger/OpenAPI document URL, API base URL or local file" required:""`
	Output  string        `help:"Catalog file to write (.json or .yaml; default from config)" type:"path"`
	Force   bool          `help:"Overwrite an existing catalog file"`
	Timeout time.Duration `help:"HTTP timeout for fetching the document" default:"30s"`
}

// Run is called by Kong when the catalog import command is executed.
func (c *CatalogImportCmd) Run(log *slog.Logger, cfg *config.Config) error {
	output := c.Output
	if output == "" {
		output = cfg.Catalog
	}
	if !c.Force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", output)
		}
	}

	p := parser.NewSwaggerParser(c.URL, &http.Client{Timeout: c.Timeout}, log)
	ops, err := p.ParseOperations(context.Background())
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	endpoints := catalog.BuildTemplate(ops)
	if err := catalog.WriteTemplate(output, endpoints); err != nil {
		return err
	}
	log.Info("catalog template written", "path", output, "endpoints", len(endpoints))
	fmt.Println("Review the template and add createUrl/createRequestBody where needed before running.")
	return nil
}
