package usecases

import (
	"context"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// TimelineFetcher fetches one raw timeline page. An empty cursor requests
// the first page. HTTP failures are returned as *domain.StatusError.
type TimelineFetcher interface {
	FetchTimeline(ctx context.Context, creds domain.Credentials, cursor string) ([]byte, error)
}

// TweetDeleter deletes one tweet. HTTP failures are returned as *domain.StatusError.
type TweetDeleter interface {
	DeleteTweet(ctx context.Context, creds domain.Credentials, tweetID string) error
}

// ProgressSink receives user-visible progress lines. Fire and forget.
type ProgressSink interface {
	Progress(msg string)
}

// ProgressFunc adapts a plain function to ProgressSink.
type ProgressFunc func(msg string)

func (f ProgressFunc) Progress(msg string) { f(msg) }

// logProgress writes progress lines to the global logger.
type logProgress struct{}

func (logProgress) Progress(msg string) { log.GlobalInfo(msg) }

// DeleteResult is the final bucket of one delete attempt.
type DeleteResult string

const (
	DeleteSuccess     DeleteResult = "success"
	DeleteNotFound    DeleteResult = "not_found"
	DeleteFailed      DeleteResult = "failed"
	DeleteRateLimited DeleteResult = "rate_limited"
)

// Recorder observes pipeline events for metrics and auditing.
type Recorder interface {
	PageFetched(shape string, entries int)
	TweetCollected(tweetID string)
	Waited(op string, class Class, d time.Duration)
	DeleteAttempt(tweetID string, result DeleteResult, status int)
}

type nopRecorder struct{}

func (nopRecorder) PageFetched(string, int)                 {}
func (nopRecorder) TweetCollected(string)                   {}
func (nopRecorder) Waited(string, Class, time.Duration)     {}
func (nopRecorder) DeleteAttempt(string, DeleteResult, int) {}

// Recorders fans events out to several recorders.
func Recorders(rs ...Recorder) Recorder {
	return multiRecorder(rs)
}

type multiRecorder []Recorder

func (m multiRecorder) PageFetched(shape string, entries int) {
	for _, r := range m {
		r.PageFetched(shape, entries)
	}
}

func (m multiRecorder) TweetCollected(tweetID string) {
	for _, r := range m {
		r.TweetCollected(tweetID)
	}
}

func (m multiRecorder) Waited(op string, class Class, d time.Duration) {
	for _, r := range m {
		r.Waited(op, class, d)
	}
}

func (m multiRecorder) DeleteAttempt(tweetID string, result DeleteResult, status int) {
	for _, r := range m {
		r.DeleteAttempt(tweetID, result, status)
	}
}

// runtime holds the collaborators shared by Harvester and Executor.
type runtime struct {
	backoff  *Backoff
	sleep    Sleeper
	progress ProgressSink
	recorder Recorder
}

func newRuntime(opts []Option) runtime {
	rt := runtime{
		backoff:  DefaultBackoff(),
		sleep:    SleepContext,
		progress: logProgress{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&rt)
	}
	return rt
}

// Option customizes a Harvester, Executor or Cleaner.
type Option func(*runtime)

// WithBackoff replaces the retry schedule.
func WithBackoff(b *Backoff) Option {
	return func(rt *runtime) {
		if b != nil {
			rt.backoff = b
		}
	}
}

// WithSleeper replaces the ctx-aware sleep used for every wait.
func WithSleeper(s Sleeper) Option {
	return func(rt *runtime) {
		if s != nil {
			rt.sleep = s
		}
	}
}

// WithProgress sets the progress sink.
func WithProgress(p ProgressSink) Option {
	return func(rt *runtime) {
		if p != nil {
			rt.progress = p
		}
	}
}

// WithRecorder sets the event recorder.
func WithRecorder(r Recorder) Option {
	return func(rt *runtime) {
		if r != nil {
			rt.recorder = r
		}
	}
}
