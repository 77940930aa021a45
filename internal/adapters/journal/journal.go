// Package journal appends an NDJSON audit trail of collected and deleted tweets.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/pkg/log"
)

// Event kinds.
const (
	KindCollected = "collected"
	KindDelete    = "delete"
)

// Event is one journal line.
type Event struct {
	Time    time.Time `json:"time"`
	RunID   string    `json:"run_id,omitempty"`
	Kind    string    `json:"kind"`
	TweetID string    `json:"tweet_id"`
	Result  string    `json:"result,omitempty"`
	Status  int       `json:"status,omitempty"`
}

// Journal is a usecases.Recorder that serializes events through a single
// writer goroutine. Page and wait events are not journaled.
type Journal struct {
	runID  string
	file   *os.File
	events chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// Open appends to the journal at path, creating it and its directory.
func Open(path, runID string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{
		runID:  runID,
		file:   f,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go j.write()
	return j, nil
}

func (j *Journal) write() {
	defer close(j.done)
	enc := json.NewEncoder(j.file)
	for ev := range j.events {
		if err := enc.Encode(ev); err != nil {
			log.GlobalError("journal write failed", "error", err, "tweet_id", ev.TweetID)
		}
	}
}

func (j *Journal) send(ev Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	ev.Time = j.now().UTC()
	ev.RunID = j.runID
	j.events <- ev
}

func (*Journal) PageFetched(string, int)                      {}
func (*Journal) Waited(string, usecases.Class, time.Duration) {}

func (j *Journal) TweetCollected(tweetID string) {
	j.send(Event{Kind: KindCollected, TweetID: tweetID})
}

// DeleteAttempt journals final outcomes only; rate limited retries are skipped.
func (j *Journal) DeleteAttempt(tweetID string, result usecases.DeleteResult, status int) {
	if result == usecases.DeleteRateLimited {
		return
	}
	j.send(Event{Kind: KindDelete, TweetID: tweetID, Result: string(result), Status: status})
}

// Close flushes pending events and closes the file. Later events are dropped.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.events)
	j.mu.Unlock()

	<-j.done
	return j.file.Close()
}
