package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"schema-harvester/internal/artifact"
	"schema-harvester/internal/executor"
	"schema-harvester/internal/logger"
	"schema-harvester/internal/types"
)

// Report represents the run report written to the reports directory
type Report struct {
	Timestamp  time.Time          `json:"timestamp"`
	RunID      string             `json:"run_id"`
	Mode       types.Mode         `json:"mode"`
	Total      int                `json:"total"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Skipped    int                `json:"skipped"`
	DurationMS int64              `json:"duration_ms"`
	Artifacts  int                `json:"artifacts"`
	Bytes      int64              `json:"bytes"`
	Counts     logger.Counts      `json:"counts"`
	LogFiles   []string           `json:"log_files"`
	Results    []executor.Outcome `json:"results"`
}

// Reporter writes run reports
type Reporter struct {
	config Config
}

// Config holds the configuration for reporting
type Config struct {
	// Format lists the report formats to write: json, text.
	Format    []string
	OutputDir string
}

// NewReporter creates a new instance of Reporter
func NewReporter(config Config) *Reporter {
	if len(config.Format) == 0 {
		config.Format = []string{"json"}
	}
	if config.OutputDir == "" {
		config.OutputDir = "reports"
	}
	return &Reporter{
		config: config,
	}
}

// NewReport builds a report from a run summary
func NewReport(summary *executor.Summary) Report {
	report := Report{
		Timestamp:  summary.FinishedAt,
		RunID:      summary.RunID,
		Mode:       summary.Mode,
		Total:      len(summary.Outcomes),
		Succeeded:  summary.Tally(executor.StatusSuccess),
		Failed:     summary.Tally(executor.StatusFailed),
		Skipped:    summary.Tally(executor.StatusSkipped),
		DurationMS: summary.Duration().Milliseconds(),
		Counts:     summary.Counts,
		LogFiles:   summary.LogFiles,
		Results:    summary.Outcomes,
	}
	for _, o := range summary.Outcomes {
		report.Artifacts += len(o.Artifacts)
		report.Bytes += o.Bytes
	}
	return report
}

// Record writes the report of a finished run in every configured format.
func (r *Reporter) Record(ctx context.Context, summary *executor.Summary) error {
	report := NewReport(summary)

	for _, format := range r.config.Format {
		switch format {
		case "json":
			if err := r.generateJSONReport(report); err != nil {
				return fmt.Errorf("failed to generate JSON report: %w", err)
			}
		case "text":
			if err := r.generateTextReport(report); err != nil {
				return fmt.Errorf("failed to generate text report: %w", err)
			}
		default:
			return fmt.Errorf("unknown report format %q", format)
		}
	}
	return nil
}

// Path returns the report file path for a timestamp and extension
func (r *Reporter) Path(ts time.Time, ext string) string {
	return filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s.%s", ts.Format("20060102_150405"), ext))
}

func (r *Reporter) generateJSONReport(report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return artifact.WriteFileAtomic(r.Path(report.Timestamp, "json"), data, 0644)
}

func (r *Reporter) generateTextReport(report Report) error {
	var buf bytes.Buffer
	writeSummary(&buf, report)
	return artifact.WriteFileAtomic(r.Path(report.Timestamp, "txt"), buf.Bytes(), 0644)
}

// PrintSummary writes the human readable run summary to w.
func PrintSummary(w io.Writer, summary *executor.Summary) {
	writeSummary(w, NewReport(summary))
}

func writeSummary(w io.Writer, report Report) {
	fmt.Fprintf(w, "Run %s (%s) finished in %s\n", report.RunID, report.Mode, time.Duration(report.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "  endpoints:  %d succeeded, %d failed, %d skipped\n", report.Succeeded, report.Failed, report.Skipped)
	fmt.Fprintf(w, "  artifacts:  %d files, %s\n", report.Artifacts, humanize.Bytes(uint64(report.Bytes)))
	fmt.Fprintf(w, "  log events: %d info, %d error\n", report.Counts.Info, report.Counts.Error)

	if len(report.LogFiles) > 0 {
		fmt.Fprintln(w, "  log files:")
		for _, f := range report.LogFiles {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}

	var problems []executor.Outcome
	for _, o := range report.Results {
		if o.Status != executor.StatusSuccess {
			problems = append(problems, o)
		}
	}
	if len(problems) == 0 {
		return
	}
	fmt.Fprintln(w, "  problems:")
	for _, o := range problems {
		kind := string(o.ErrorKind)
		if kind == "" {
			kind = string(o.Status)
		}
		fmt.Fprintf(w, "    %s [%s] %s: %s\n", o.Endpoint, o.Mode, kind, o.Message)
	}
}
