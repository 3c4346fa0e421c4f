// Package history keeps a SQL record of finished runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres

	"schema-harvester/internal/config"
	"schema-harvester/internal/executor"
)

// Run is one row of the runs table
type Run struct {
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time
	Info       int
	Errors     int
	Succeeded  int
	Failed     int
	Skipped    int
}

// Store writes run summaries to a postgres, mysql or sqlserver database
type Store struct {
	db      *sql.DB
	dialect string
}

// DSN returns the driver name and connection string for cfg
func DSN(cfg config.HistoryConfig) (string, string, error) {
	switch cfg.Type {
	case "postgres":
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database), nil
	case "mysql":
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database), nil
	case "sqlserver":
		return "sqlserver", fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database), nil
	default:
		return "", "", fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects to the database and creates the history tables
func Open(ctx context.Context, cfg config.HistoryConfig) (*Store, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	s := NewStore(db, cfg.Type)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database
func NewStore(db *sql.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the runs and outcomes tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(dialect string) []string {
	ts := "TIMESTAMP"
	text := "TEXT"
	switch dialect {
	case "mysql":
		ts = "DATETIME(3)"
	case "sqlserver":
		ts = "DATETIME2"
		text = "NVARCHAR(MAX)"
	}

	runs := `harvest_runs (
	run_id VARCHAR(64) PRIMARY KEY,
	mode VARCHAR(16) NOT NULL,
	started_at ` + ts + ` NOT NULL,
	finished_at ` + ts + ` NOT NULL,
	info_count INT NOT NULL,
	error_count INT NOT NULL,
	succeeded INT NOT NULL,
	failed INT NOT NULL,
	skipped INT NOT NULL
)`
	outcomes := `harvest_outcomes (
	run_id VARCHAR(64) NOT NULL,
	endpoint VARCHAR(255) NOT NULL,
	mode VARCHAR(16) NOT NULL,
	status VARCHAR(16) NOT NULL,
	error_kind VARCHAR(32) NOT NULL,
	message ` + text + ` NOT NULL,
	status_code INT NOT NULL,
	items INT NOT NULL,
	duration_ms BIGINT NOT NULL
)`

	if dialect == "sqlserver" {
		return []string{
			"IF OBJECT_ID('harvest_runs', 'U') IS NULL CREATE TABLE " + runs,
			"IF OBJECT_ID('harvest_outcomes', 'U') IS NULL CREATE TABLE " + outcomes,
		}
	}
	return []string{
		"CREATE TABLE IF NOT EXISTS " + runs,
		"CREATE TABLE IF NOT EXISTS " + outcomes,
	}
}

// Record stores a run summary and its outcomes in one transaction
func (s *Store) Record(ctx context.Context, summary *executor.Summary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO harvest_runs
		(run_id, mode, started_at, finished_at, info_count, error_count, succeeded, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		summary.RunID, string(summary.Mode), summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
		summary.Counts.Info, summary.Counts.Error,
		summary.Tally(executor.StatusSuccess), summary.Tally(executor.StatusFailed), summary.Tally(executor.StatusSkipped),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	insert := s.rebind(`INSERT INTO harvest_outcomes
		(run_id, endpoint, mode, status, error_kind, message, status_code, items, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, o := range summary.Outcomes {
		_, err := tx.ExecContext(ctx, insert,
			summary.RunID, o.Endpoint, string(o.Mode), string(o.Status), string(o.ErrorKind),
			o.Message, o.StatusCode, o.Items, o.DurationMS,
		)
		if err != nil {
			return fmt.Errorf("failed to insert outcome %s/%s: %w", o.Endpoint, o.Mode, err)
		}
	}
	return tx.Commit()
}

// Recent returns the latest runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	cols := "run_id, mode, started_at, finished_at, info_count, error_count, succeeded, failed, skipped"
	var query string
	if s.dialect == "sqlserver" {
		query = fmt.Sprintf("SELECT TOP %d %s FROM harvest_runs ORDER BY started_at DESC", limit, cols)
	} else {
		query = fmt.Sprintf("SELECT %s FROM harvest_runs ORDER BY started_at DESC LIMIT %d", cols, limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Mode, &r.StartedAt, &r.FinishedAt,
			&r.Info, &r.Errors, &r.Succeeded, &r.Failed, &r.Skipped); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// rebind rewrites ? placeholders for drivers that use numbered parameters
func (s *Store) rebind(query string) string {
	var prefix string
	switch s.dialect {
	case "postgres":
		prefix = "$"
	case "sqlserver":
		prefix = "@p"
	default:
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(prefix)
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
