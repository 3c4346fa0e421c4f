// Package artifact persists fetched and generated files.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"schema-harvester/internal/types"
)

// Writer persists one artifact, replacing any previous content.
// Implementations must be safe for concurrent calls.
type Writer interface {
	WriteArtifact(ctx context.Context, path string, content []byte) (int, error)
}

// FilesystemWriter writes artifacts to the local filesystem.
type FilesystemWriter struct {
	// Mode is the file permission mode (default: 0644).
	Mode os.FileMode
}

// NewFilesystemWriter creates a FilesystemWriter with the default mode.
func NewFilesystemWriter() *FilesystemWriter {
	return &FilesystemWriter{Mode: 0644}
}

// WriteArtifact creates parent directories as needed and replaces the file
// atomically. Failures are returned as *types.IOError.
func (w *FilesystemWriter) WriteArtifact(ctx context.Context, path string, content []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &types.IOError{Path: path, Err: err}
	}
	mode := w.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := WriteFileAtomic(path, content, mode); err != nil {
		return 0, &types.IOError{Path: path, Err: err}
	}
	return len(content), nil
}

// WriteFileAtomic writes content to a temp file next to path and renames it
// over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, ".harvester-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	_, writeErr := tempFile.Write(content)
	closeErr := tempFile.Close()

	cleanup := func() {
		_ = os.Remove(tempPath)
	}

	if writeErr != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", writeErr)
	}
	if closeErr != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
