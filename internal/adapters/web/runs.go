package web

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tweet-cleaner/internal/adapters/journal"
	"tweet-cleaner/internal/adapters/metrics"
	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/pkg/log"
)

// RunStatus is the lifecycle state of a cleaning run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// maxProgressLines bounds the progress history kept per run.
const maxProgressLines = 200

// Pipeline runs one clean. *usecases.Cleaner satisfies it.
type Pipeline interface {
	Run(ctx context.Context, creds domain.Credentials, opts domain.HarvestOptions) (domain.Outcome, error)
}

// PipelineFactory builds the pipeline for one run, wired to the run's
// progress sink and recorder.
type PipelineFactory func(progress usecases.ProgressSink, recorder usecases.Recorder) Pipeline

// RunSnapshot is the JSON view of a run.
type RunSnapshot struct {
	ID         string         `json:"id"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Collected  int            `json:"collected"`
	Outcome    domain.Outcome `json:"outcome"`
	Progress   []string       `json:"progress"`
	Summary    string         `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// run is the mutable state of one run. It is the run's progress sink and
// keeps a live tally through the Recorder events.
type run struct {
	mu     sync.Mutex
	snap   RunSnapshot
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) Progress(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Progress = append(r.snap.Progress, msg)
	if over := len(r.snap.Progress) - maxProgressLines; over > 0 {
		r.snap.Progress = append([]string(nil), r.snap.Progress[over:]...)
	}
}

func (*run) PageFetched(string, int)                      {}
func (*run) Waited(string, usecases.Class, time.Duration) {}

func (r *run) TweetCollected(string) {
	r.mu.Lock()
	r.snap.Collected++
	r.mu.Unlock()
}

func (r *run) DeleteAttempt(_ string, result usecases.DeleteResult, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch result {
	case usecases.DeleteSuccess:
		r.snap.Outcome.Success++
	case usecases.DeleteNotFound:
		r.snap.Outcome.NotFound++
	case usecases.DeleteFailed:
		r.snap.Outcome.Failed++
	case usecases.DeleteRateLimited:
		r.snap.Outcome.RateLimited++
	}
}

func (r *run) snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.snap
	s.Progress = append([]string(nil), r.snap.Progress...)
	return s
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	NewPipeline PipelineFactory
	Metrics     *metrics.Metrics // Optional
	JournalPath string           // Optional NDJSON audit trail
}

// Tracker runs at most one cleaning run at a time and keeps the latest one
// for inspection.
type Tracker struct {
	cfg TrackerConfig
	ctx context.Context

	mu      sync.Mutex
	current *run
}

// NewTracker creates a Tracker. Runs are detached from the requests that
// start them and end when ctx is canceled.
func NewTracker(ctx context.Context, cfg TrackerConfig) *Tracker {
	return &Tracker{cfg: cfg, ctx: ctx}
}

// Start launches a run in the background. It fails with
// domain.ErrRunInProgress while another run is active.
func (t *Tracker) Start(creds domain.Credentials, opts domain.HarvestOptions) (RunSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && t.current.snapshot().Status == RunRunning {
		return RunSnapshot{}, domain.ErrRunInProgress
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(log.WithRunID(t.ctx, id))
	r := &run{
		snap: RunSnapshot{
			ID:        id,
			Status:    RunRunning,
			StartedAt: time.Now().UTC(),
			Progress:  []string{},
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	recorders := []usecases.Recorder{r}
	if t.cfg.Metrics != nil {
		recorders = append(recorders, t.cfg.Metrics)
	}
	var j *journal.Journal
	if t.cfg.JournalPath != "" {
		var err error
		j, err = journal.Open(t.cfg.JournalPath, id)
		if err != nil {
			cancel()
			return RunSnapshot{}, err
		}
		recorders = append(recorders, j)
	}

	pipeline := t.cfg.NewPipeline(r, usecases.Recorders(recorders...))
	t.current = r

	go t.execute(ctx, r, j, pipeline, creds, opts)
	return r.snapshot(), nil
}

func (t *Tracker) execute(ctx context.Context, r *run, j *journal.Journal, p Pipeline, creds domain.Credentials, opts domain.HarvestOptions) {
	defer close(r.done)
	defer r.cancel()

	if t.cfg.Metrics != nil {
		t.cfg.Metrics.RunStarted()
	}
	log.GlobalInfoCtx(ctx, "cleaning run started", "explicit_ids", len(opts.IDs))

	out, err := p.Run(ctx, creds, opts)

	if j != nil {
		if cerr := j.Close(); cerr != nil {
			log.GlobalErrorCtx(ctx, "close journal", "error", cerr)
		}
	}

	r.mu.Lock()
	now := time.Now().UTC()
	r.snap.FinishedAt = &now
	r.snap.Outcome = out
	switch {
	case err == nil:
		r.snap.Status = RunCompleted
		r.snap.Summary = out.Summary()
	case errors.Is(err, context.Canceled):
		r.snap.Status = RunCanceled
		r.snap.Summary = out.Summary()
	default:
		r.snap.Status = RunFailed
		r.snap.Error = err.Error()
	}
	status, elapsed := r.snap.Status, now.Sub(r.snap.StartedAt)
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.RunFinished(string(status), elapsed)
	}
	r.mu.Unlock()

	log.GlobalInfoCtx(ctx, "cleaning run finished", "status", string(status),
		"success", out.Success, "failed", out.Failed, "not_found", out.NotFound,
		"rate_limited", out.RateLimited, "elapsed", elapsed.String())
}

// Current returns the latest run, if any.
func (t *Tracker) Current() (RunSnapshot, bool) {
	t.mu.Lock()
	r := t.current
	t.mu.Unlock()
	if r == nil {
		return RunSnapshot{}, false
	}
	return r.snapshot(), true
}

// Cancel stops the active run. It reports false when nothing is running.
func (t *Tracker) Cancel() bool {
	t.mu.Lock()
	r := t.current
	t.mu.Unlock()
	if r == nil || r.snapshot().Status != RunRunning {
		return false
	}
	r.cancel()
	return true
}

// Wait blocks until the latest run finishes or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	r := t.current
	t.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
