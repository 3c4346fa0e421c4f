package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"schema-harvester/internal/artifact"
	"schema-harvester/internal/config"
	"schema-harvester/internal/fetch"
	"schema-harvester/internal/generator"
	"schema-harvester/internal/logger"
	"schema-harvester/internal/types"
)

// State is a phase of a run
type State string

const (
	StateNotStarted    State = "NotStarted"
	StateResettingLogs State = "ResettingLogs"
	StateRunning       State = "Running"
	StateSummarizing   State = "Summarizing"
	StateDone          State = "Done"
)

// Fetcher sends one endpoint call
type Fetcher interface {
	Fetch(ctx context.Context, call types.Call, url string, headers http.Header) (*fetch.Result, error)
}

// Recorder receives the summary of a finished run (report, history)
type Recorder interface {
	Record(ctx context.Context, summary *Summary) error
}

// Options holds configuration for run execution
type Options struct {
	Mode       types.Mode
	Concurrent bool
	MaxWorkers int
	KeepLogs   bool
	LogFile    string
	// OnStateChange is called on every state transition.
	OnStateChange func(State)
}

// Dependencies are the collaborators of an Orchestrator. Documenter,
// Mirror and Recorders are optional.
type Dependencies struct {
	Fetcher    Fetcher
	Writer     artifact.Writer
	Layout     artifact.Layout
	Generator  generator.Generator
	Documenter generator.SchemaDocumenter
	Mirror     artifact.Mirror
	RunLog     *logger.Logger
	Recorders  []Recorder
	Logger     *slog.Logger
}

// RunContext is the per-run state handed to every endpoint task.
// Credentials and Headers are nil when the run regenerates from disk.
type RunContext struct {
	RunID       string
	Mode        types.Mode
	StartedAt   time.Time
	Credentials *config.Credentials
	Headers     http.Header
	Log         *logger.Channel
}

// Orchestrator runs the endpoint catalog through fetch, validate, write
// and generate.
type Orchestrator struct {
	options Options
	deps    Dependencies
	console *slog.Logger

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(options Options, deps Dependencies) *Orchestrator {
	if options.Mode == "" {
		options.Mode = types.ModeList
	}
	if options.MaxWorkers <= 0 {
		options.MaxWorkers = 5
	}
	if options.LogFile == "" {
		options.LogFile = "generate"
	}
	console := deps.Logger
	if console == nil {
		console = slog.Default()
	}
	return &Orchestrator{
		options: options,
		deps:    deps,
		console: console,
		state:   StateNotStarted,
	}
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.console.Debug("run state", "state", s)
	if o.options.OnStateChange != nil {
		o.options.OnStateChange(s)
	}
}

type task struct {
	endpoint types.Endpoint
	mode     types.Mode
	// stored tasks read raw.json from disk instead of calling the API.
	stored bool
}

// Run processes endpoints and returns the run summary. Only a fatal error
// (missing credentials) is returned; endpoint failures are logged and
// recorded in the summary.
func (o *Orchestrator) Run(ctx context.Context, creds *config.Credentials, endpoints []types.Endpoint) (*Summary, error) {
	if creds == nil {
		return nil, &types.ConfigurationError{Message: "credentials are not resolved"}
	}
	rc := &RunContext{
		RunID:       uuid.NewString(),
		Mode:        o.options.Mode,
		StartedAt:   time.Now(),
		Credentials: creds,
		Headers:     creds.BuildRequestHeaders(),
		Log:         o.deps.RunLog.Channel(o.options.LogFile),
	}
	return o.execute(ctx, rc, o.plan(endpoints))
}

// Regenerate rebuilds data.json and the generated files of the named
// endpoints from the raw.json a previous run kept, without calling the API.
// Each endpoint still ends in exactly one run log event.
func (o *Orchestrator) Regenerate(ctx context.Context, names []string) (*Summary, error) {
	tasks := make([]task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, task{endpoint: types.Endpoint{Name: name}, mode: types.ModeList, stored: true})
	}
	rc := &RunContext{
		RunID:     uuid.NewString(),
		Mode:      types.ModeList,
		StartedAt: time.Now(),
		Log:       o.deps.RunLog.Channel(o.options.LogFile),
	}
	return o.execute(ctx, rc, tasks)
}

func (o *Orchestrator) execute(ctx context.Context, rc *RunContext, tasks []task) (*Summary, error) {
	if o.State() != StateNotStarted {
		return nil, fmt.Errorf("orchestrator already ran")
	}

	o.setState(StateResettingLogs)
	if o.options.KeepLogs {
		if err := o.deps.RunLog.Load(); err != nil {
			o.console.Warn("failed to load previous stats, counting from zero", "error", err)
		}
		o.console.Info("keeping existing logs")
	} else if err := o.deps.RunLog.Reset(); err != nil {
		o.console.Error("failed to reset logs", "error", err)
	}

	o.setState(StateRunning)
	o.console.Info("starting run", "run_id", rc.RunID, "mode", rc.Mode, "tasks", len(tasks), "concurrent", o.options.Concurrent)

	var outcomes []Outcome
	if o.options.Concurrent {
		outcomes = o.runConcurrent(ctx, rc, tasks)
	} else {
		outcomes = o.runSequential(ctx, rc, tasks)
	}

	o.setState(StateSummarizing)
	summary := o.summarize(ctx, rc, outcomes)

	o.setState(StateDone)
	return summary, nil
}

// plan expands endpoints into calls. In ModeAll the create call is only
// planned for endpoints that declare one.
func (o *Orchestrator) plan(endpoints []types.Endpoint) []task {
	var tasks []task
	for _, ep := range endpoints {
		if o.options.Mode.Includes(types.ModeList) {
			tasks = append(tasks, task{endpoint: ep, mode: types.ModeList})
		}
		switch o.options.Mode {
		case types.ModeCreate:
			tasks = append(tasks, task{endpoint: ep, mode: types.ModeCreate})
		case types.ModeAll:
			if ep.CreateURL != "" || ep.CreateRequestBody != nil {
				tasks = append(tasks, task{endpoint: ep, mode: types.ModeCreate})
			}
		}
	}
	return tasks
}

func (o *Orchestrator) runSequential(ctx context.Context, rc *RunContext, tasks []task) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	for i, t := range tasks {
		if ctx.Err() != nil {
			outcomes[i] = canceled(t)
			continue
		}
		outcomes[i] = o.process(ctx, rc, t)
	}
	return outcomes
}

func (o *Orchestrator) runConcurrent(ctx context.Context, rc *RunContext, tasks []task) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	var wg sync.WaitGroup

	// Create a channel to limit concurrent executions
	sem := make(chan struct{}, o.options.MaxWorkers)

	for i, t := range tasks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			for j := i; j < len(tasks); j++ {
				outcomes[j] = canceled(tasks[j])
			}
			break
		}

		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = o.process(ctx, rc, t)
		}(i, t)
	}

	wg.Wait()
	return outcomes
}

func canceled(t task) Outcome {
	return Outcome{
		Endpoint: t.endpoint.Name,
		Mode:     t.mode,
		Status:   StatusSkipped,
		Message:  "run canceled before the call was made",
	}
}

func (o *Orchestrator) process(ctx context.Context, rc *RunContext, t task) Outcome {
	start := time.Now()
	var out Outcome
	switch {
	case t.stored:
		out = o.processStored(ctx, rc, t.endpoint.Name)
	case t.mode == types.ModeCreate:
		out = o.processCreate(ctx, rc, t.endpoint)
	default:
		out = o.processList(ctx, rc, t.endpoint)
	}
	out.Duration = time.Since(start)
	out.DurationMS = out.Duration.Milliseconds()

	o.console.Info("endpoint processed",
		"endpoint", out.Endpoint,
		"mode", out.Mode,
		"status", out.Status,
		"items", out.Items,
		"duration", out.Duration,
	)
	return out
}

func (o *Orchestrator) summarize(ctx context.Context, rc *RunContext, outcomes []Outcome) *Summary {
	counts, files, err := logger.ReadStats(o.deps.RunLog.Dir())
	if err != nil {
		o.console.Warn("failed to read stats files, using in-memory counters", "error", err)
		counts, files = o.deps.RunLog.Stats()
	}

	summary := &Summary{
		RunID:      rc.RunID,
		Mode:       rc.Mode,
		StartedAt:  rc.StartedAt,
		FinishedAt: time.Now(),
		Counts:     counts,
		LogFiles:   files,
		Outcomes:   outcomes,
	}

	// Recording still happens after an interrupt.
	recordCtx := context.WithoutCancel(ctx)
	for _, r := range o.deps.Recorders {
		if err := r.Record(recordCtx, summary); err != nil {
			o.console.Error("failed to record run", "recorder", fmt.Sprintf("%T", r), "error", err)
		}
	}
	return summary
}
