package executor

import (
	"time"

	"schema-harvester/internal/logger"
	"schema-harvester/internal/types"
)

// Status is the result of one endpoint call
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to one endpoint call in a run
type Outcome struct {
	Endpoint     string          `json:"endpoint"`
	Mode         types.Mode      `json:"mode"`
	Status       Status          `json:"status"`
	ErrorKind    types.ErrorKind `json:"error_kind,omitempty"`
	Message      string          `json:"message,omitempty"`
	StatusCode   int             `json:"status_code,omitempty"`
	Items        int             `json:"items"`
	Artifacts    []string        `json:"artifacts,omitempty"`
	Bytes        int64           `json:"bytes"`
	MirrorErrors []string        `json:"mirror_errors,omitempty"`
	Duration     time.Duration   `json:"-"`
	DurationMS   int64           `json:"duration_ms"`
}

// Summary is the aggregate result of a run
type Summary struct {
	RunID      string        `json:"run_id"`
	Mode       types.Mode    `json:"mode"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Counts     logger.Counts `json:"counts"`
	LogFiles   []string      `json:"log_files"`
	Outcomes   []Outcome     `json:"outcomes"`
}

// Tally returns the number of outcomes with the given status
func (s *Summary) Tally(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Duration returns the wall time of the run
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
