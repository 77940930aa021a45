package usecases_test

import (
	"context"
	"sync"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
)

func validCreds() domain.Credentials {
	return domain.Credentials{
		Bearer:        "AAAA-bearer",
		CSRF:          "csrf-token",
		TransactionID: "tx-1",
		QueryID:       "qid-UserTweetsAndReplies",
		UserID:        "42",
		CapturedAt:    time.Now(),
	}
}

// fetchResult is one scripted response of MockFetcher.
type fetchResult struct {
	body []byte
	err  error
}

// MockFetcher returns scripted responses in order and records cursors.
// After the script runs out it keeps returning the last response.
type MockFetcher struct {
	mu      sync.Mutex
	script  []fetchResult
	cursors []string
}

func (m *MockFetcher) FetchTimeline(ctx context.Context, creds domain.Credentials, cursor string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors = append(m.cursors, cursor)
	if len(m.script) == 0 {
		return nil, &domain.StatusError{Op: "fetch", Code: 404}
	}
	r := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	return r.body, r.err
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cursors)
}

func (m *MockFetcher) Cursors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cursors...)
}

// MockDeleter answers each id with its scripted statuses in order.
// Status 200 (or an exhausted script) is success; 0 is a transport error.
type MockDeleter struct {
	mu       sync.Mutex
	statuses map[string][]int
	calls    []string
}

func NewMockDeleter(statuses map[string][]int) *MockDeleter {
	return &MockDeleter{statuses: statuses}
}

func (m *MockDeleter) DeleteTweet(ctx context.Context, creds domain.Credentials, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, id)

	queue := m.statuses[id]
	if len(queue) == 0 {
		return nil
	}
	code := queue[0]
	if len(queue) > 1 {
		m.statuses[id] = queue[1:]
	}
	switch code {
	case 200:
		return nil
	case 0:
		return errTransport
	default:
		return &domain.StatusError{Op: "delete", Code: code}
	}
}

func (m *MockDeleter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type transportError struct{}

func (transportError) Error() string { return "connection reset by peer" }

var errTransport error = transportError{}

// SleepRecorder is a Sleeper that returns immediately and records waits.
type SleepRecorder struct {
	mu       sync.Mutex
	waits    []time.Duration
	cancel   func() // Called once the wait count reaches cancelAt
	cancelAt int
}

func (s *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	s.mu.Unlock()

	if s.cancel != nil && n == s.cancelAt {
		s.cancel()
	}
	return ctx.Err()
}

func (s *SleepRecorder) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// ProgressRecorder collects progress lines.
type ProgressRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (p *ProgressRecorder) Progress(msg string) {
	p.mu.Lock()
	p.lines = append(p.lines, msg)
	p.mu.Unlock()
}

func (p *ProgressRecorder) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// noJitterBackoff is the production schedule without randomness.
func noJitterBackoff() *usecases.Backoff {
	b := usecases.DefaultBackoff()
	b.Jitter = func(time.Duration) time.Duration { return 0 }
	return b
}

// testOptions wires a recorder sleeper, progress sink and deterministic backoff.
func testOptions(s *SleepRecorder, p *ProgressRecorder) []usecases.Option {
	opts := []usecases.Option{
		usecases.WithBackoff(noJitterBackoff()),
		usecases.WithSleeper(s.Sleep),
	}
	if p != nil {
		opts = append(opts, usecases.WithProgress(p))
	}
	return opts
}
