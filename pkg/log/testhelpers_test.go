package log

import (
	"errors"
	"sync"
	"time"
)

// captureTransporter records entries for assertions.
type captureTransporter struct {
	mu       sync.Mutex
	entries  []Entry
	writeErr error
	delay    time.Duration
	closed   bool
}

func (c *captureTransporter) Name() string { return "capture" }

func (c *captureTransporter) Write(entry Entry) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.mu.Lock()
	c.entries = append(c.entries, entry)
	c.mu.Unlock()
	return nil
}

func (c *captureTransporter) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *captureTransporter) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

func (c *captureTransporter) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var errWrite = errors.New("write failed")
