package transporters

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tweet-cleaner/pkg/log"
)

// File appends NDJSON entries to a file, creating parent directories.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFile opens path for appending.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &File{path: path, f: f}, nil
}

func (t *File) Name() string { return "file:" + t.path }

func (t *File) Write(entry log.Entry) error {
	line, err := encodeLine(entry)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return os.ErrClosed
	}
	_, err = t.f.Write(line)
	return err
}

// Close syncs and closes the file. Further writes return os.ErrClosed.
func (t *File) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	syncErr := t.f.Sync()
	closeErr := t.f.Close()
	t.f = nil
	if closeErr != nil {
		return closeErr
	}
	return syncErr
}
