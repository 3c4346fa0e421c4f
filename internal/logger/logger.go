// Package logger records run events to log files and keeps the run
// counters on disk.
package logger

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"schema-harvester/internal/artifact"
	"schema-harvester/internal/types"
)

const (
	StatsDirName     = "stats"
	CountsFileName   = "counts.json"
	LogFilesFileName = "log.files.json"
)

// Counts are the number of info and error events of a run
type Counts struct {
	Info  int `json:"info"`
	Error int `json:"error"`
}

// Total returns the number of events
func (c Counts) Total() int {
	return c.Info + c.Error
}

// Logger appends run events to <dir>/<name>.log and <dir>/<name>.error.log
// and rewrites the stats files after every event.
type Logger struct {
	dir string
	now func() time.Time

	mu     sync.Mutex
	counts Counts
	paths  []string
	seen   map[string]bool
	files  map[string]*os.File
}

// NewLogger creates a new logger writing under logDir
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Join(logDir, StatsDirName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Logger{
		dir:   logDir,
		now:   time.Now,
		seen:  make(map[string]bool),
		files: make(map[string]*os.File),
	}, nil
}

// Load seeds the counters and the touched log files from the stats files
// already in the log directory, so a run that keeps the logs continues the
// previous numbers.
func (l *Logger) Load() error {
	counts, paths, err := ReadStats(l.dir)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = counts
	l.paths = nil
	l.seen = make(map[string]bool)
	for _, p := range paths {
		if !l.seen[p] {
			l.seen[p] = true
			l.paths = append(l.paths, p)
		}
	}
	return nil
}

// Dir returns the log directory
func (l *Logger) Dir() string {
	return l.dir
}

// CountsPath is the path of the counters file under dir
func CountsPath(dir string) string {
	return filepath.Join(dir, StatsDirName, CountsFileName)
}

// LogFilesPath is the path of the touched log files list under dir
func LogFilesPath(dir string) string {
	return filepath.Join(dir, StatsDirName, LogFilesFileName)
}

// Channel returns a handle writing to the log files named name
func (l *Logger) Channel(name string) *Channel {
	return &Channel{logger: l, name: name}
}

// Channel is a named pair of log files
type Channel struct {
	logger *Logger
	name   string
}

// Info records an informational event
func (c *Channel) Info(title string, data any) error {
	return c.logger.record(c.name, false, title, data, "")
}

// Error records an error event. source locates where the error came from.
func (c *Channel) Error(title string, data any, source string) error {
	return c.logger.record(c.name, true, title, data, source)
}

func (l *Logger) record(name string, isError bool, title string, data any, source string) error {
	suffix := ".log"
	if isError {
		suffix = ".error.log"
	}
	path := filepath.Join(l.dir, name+suffix)
	entry := l.formatEntry(title, data, source)

	l.mu.Lock()
	defer l.mu.Unlock()

	if isError {
		l.counts.Error++
	} else {
		l.counts.Info++
	}
	if !l.seen[path] {
		l.seen[path] = true
		l.paths = append(l.paths, path)
	}

	if err := l.writeStats(); err != nil {
		return err
	}
	return l.appendEntry(path, entry)
}

// writeStats must be called with mu held
func (l *Logger) writeStats() error {
	counts, err := json.Marshal(l.counts)
	if err != nil {
		return fmt.Errorf("failed to marshal counts: %w", err)
	}
	if err := artifact.WriteFileAtomic(CountsPath(l.dir), counts, 0644); err != nil {
		return &types.IOError{Path: CountsPath(l.dir), Err: err}
	}

	paths := l.paths
	if paths == nil {
		paths = []string{}
	}
	files, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("failed to marshal log files: %w", err)
	}
	if err := artifact.WriteFileAtomic(LogFilesPath(l.dir), files, 0644); err != nil {
		return &types.IOError{Path: LogFilesPath(l.dir), Err: err}
	}
	return nil
}

// appendEntry must be called with mu held
func (l *Logger) appendEntry(path, entry string) error {
	f, ok := l.files[path]
	if !ok {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return &types.IOError{Path: path, Err: err}
		}
		l.files[path] = f
	}
	if _, err := f.WriteString(entry); err != nil {
		return &types.IOError{Path: path, Err: err}
	}
	return nil
}

func (l *Logger) formatEntry(title string, data any, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] %s\n", l.now().UTC().Format(time.RFC3339), title)
	if source != "" {
		fmt.Fprintf(&b, "source: %s\n", source)
	}
	if text := formatData(data); text != "" {
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

func formatData(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	case json.RawMessage:
		indented, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return string(v)
		}
		return string(indented)
	default:
		indented, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", v)
		}
		return string(indented)
	}
}

// Stats returns a snapshot of the counters and the touched log files
func (l *Logger) Stats() (Counts, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts, append([]string(nil), l.paths...)
}

// Reset truncates every file under the log directory, stats included, and
// zeroes the counters.
func (l *Logger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := os.Truncate(path, 0); err != nil {
			return &types.IOError{Path: path, Err: err}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to reset logs: %w", err)
	}

	l.counts = Counts{}
	l.paths = nil
	l.seen = make(map[string]bool)
	return nil
}

// Close closes the open log files
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for path, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, path)
	}
	return firstErr
}

// ReadStats reads the stats files under dir. Missing or truncated files
// read as zero.
func ReadStats(dir string) (Counts, []string, error) {
	var counts Counts
	if err := readJSONFile(CountsPath(dir), &counts); err != nil {
		return Counts{}, nil, err
	}
	var paths []string
	if err := readJSONFile(LogFilesPath(dir), &paths); err != nil {
		return Counts{}, nil, err
	}
	return counts, paths, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return &types.IOError{Path: path, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &types.IOError{Path: path, Err: fmt.Errorf("invalid stats file: %w", err)}
	}
	return nil
}
