package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"tweet-cleaner/internal/adapters/cache"
	"tweet-cleaner/internal/adapters/metrics"
	"tweet-cleaner/internal/adapters/options"
	"tweet-cleaner/internal/adapters/web"
	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
)

func validCreds() domain.Credentials {
	return domain.Credentials{
		Bearer:        "AAAA",
		CSRF:          "csrf",
		TransactionID: "tx",
		QueryID:       "qid",
		UserID:        "42",
		CapturedAt:    time.Now(),
	}
}

// fakePipeline reports progress, records one delete per id and then
// blocks until released or canceled.
type fakePipeline struct {
	progress usecases.ProgressSink
	recorder usecases.Recorder
	release  chan struct{}
	err      error

	mu       sync.Mutex
	gotOpts  domain.HarvestOptions
	gotCreds domain.Credentials
}

func (p *fakePipeline) Run(ctx context.Context, creds domain.Credentials, opts domain.HarvestOptions) (domain.Outcome, error) {
	p.mu.Lock()
	p.gotOpts, p.gotCreds = opts, creds
	p.mu.Unlock()

	p.progress.Progress("Finding tweets to delete...")
	var out domain.Outcome
	for _, id := range opts.IDs {
		p.recorder.TweetCollected(id)
		p.recorder.DeleteAttempt(id, usecases.DeleteSuccess, 0)
		out.Success++
	}

	select {
	case <-p.release:
	case <-ctx.Done():
		return out, ctx.Err()
	}
	return out, p.err
}

func (p *fakePipeline) opts() domain.HarvestOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gotOpts
}

type fakeCapturer struct {
	creds domain.Credentials
	err   error
}

func (f fakeCapturer) Capture(context.Context) (domain.Credentials, error) {
	return f.creds, f.err
}

type testEnv struct {
	app      *fiber.App
	store    *cache.CredentialStore
	options  *options.Store
	tracker  *web.Tracker
	pipeline *fakePipeline
	metrics  *metrics.Metrics
}

type envConfig struct {
	capturer usecases.CredentialCapturer
	journal  string
	startCap int
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()

	store := cache.NewCredentialStore(time.Hour)
	t.Cleanup(store.Close)

	opts, err := options.Load(filepath.Join(t.TempDir(), "options.yaml"))
	if err != nil {
		t.Fatalf("options.Load() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	pipeline := &fakePipeline{release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	tracker := web.NewTracker(ctx, web.TrackerConfig{
		NewPipeline: func(progress usecases.ProgressSink, recorder usecases.Recorder) web.Pipeline {
			pipeline.progress = progress
			pipeline.recorder = recorder
			return pipeline
		},
		Metrics:     m,
		JournalPath: cfg.journal,
	})
	t.Cleanup(func() {
		cancel()
		waitCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		tracker.Wait(waitCtx)
	})

	limit := cfg.startCap
	if limit == 0 {
		limit = 100
	}
	rl := web.NewRateLimiter(limit, time.Minute)
	t.Cleanup(rl.Close)

	provider := usecases.NewCredentialProvider(store, cfg.capturer)
	handlers := web.NewHandlers(store, provider, opts, tracker)

	return &testEnv{
		app:      web.NewApp(handlers, rl, reg),
		store:    store,
		options:  opts,
		tracker:  tracker,
		pipeline: pipeline,
		metrics:  m,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
