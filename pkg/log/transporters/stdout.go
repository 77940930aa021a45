// Package transporters contains log.Transporter implementations.
package transporters

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"tweet-cleaner/pkg/log"
)

// Stdout writes one JSON object per line to an io.Writer, os.Stdout by default.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStdout() *Stdout {
	return &Stdout{w: os.Stdout}
}

// NewStdoutWithWriter targets w instead of os.Stdout.
func NewStdoutWithWriter(w io.Writer) *Stdout {
	return &Stdout{w: w}
}

func (s *Stdout) Name() string { return "stdout" }

func (s *Stdout) Write(entry log.Entry) error {
	line, err := encodeLine(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

// Close is a no-op; the writer is not owned.
func (s *Stdout) Close() error { return nil }

func encodeLine(entry log.Entry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
