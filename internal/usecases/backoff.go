package usecases

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"tweet-cleaner/internal/domain"
)

// Class is the retry classification of a remote call failure.
type Class int

const (
	ClassNone Class = iota
	ClassRateLimited
	ClassServer
	ClassNotFound
	ClassTransport
	ClassUnauthorized
	ClassRejected
	ClassCanceled
)

var classNames = [...]string{
	"none",
	"rate_limited",
	"server",
	"not_found",
	"transport",
	"unauthorized",
	"rejected",
	"canceled",
}

func (c Class) String() string {
	if c < ClassNone || c > ClassCanceled {
		return "unknown"
	}
	return classNames[c]
}

// Classify maps an error returned by a fetch or delete call to a Class.
// Errors without an HTTP status are transport failures.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassCanceled
	}

	var se *domain.StatusError
	if !errors.As(err, &se) {
		return ClassTransport
	}

	switch code := se.Code; {
	case code == 429:
		return ClassRateLimited
	case code == 404:
		return ClassNotFound
	case code == 401 || code == 403:
		return ClassUnauthorized
	case code >= 500:
		return ClassServer
	default:
		return ClassRejected
	}
}

// Decision tells the caller whether to retry and how long to wait first.
type Decision struct {
	Retry bool
	Wait  time.Duration
}

// Backoff holds the retry schedule shared by the harvester and executor.
type Backoff struct {
	RateLimitRetries int
	RateLimitBase    time.Duration
	ServerRetries    int
	ServerWait       time.Duration
	TransportRetries int
	TransportBase    time.Duration
	TransportJitter  time.Duration
	DeleteRateWait   time.Duration

	// Jitter returns a random duration in [0, max). Replaced in tests.
	Jitter func(max time.Duration) time.Duration
}

// DefaultBackoff returns the production schedule.
func DefaultBackoff() *Backoff {
	return &Backoff{
		RateLimitRetries: 3,
		RateLimitBase:    15 * time.Second,
		ServerRetries:    2,
		ServerWait:       3 * time.Second,
		TransportRetries: 3,
		TransportBase:    1 * time.Second,
		TransportJitter:  500 * time.Millisecond,
		DeleteRateWait:   60 * time.Second,
		Jitter:           randomJitter,
	}
}

// ForFetch decides what to do after the attempt-th (zero based) failed fetch.
func (b *Backoff) ForFetch(attempt int, class Class) Decision {
	switch class {
	case ClassRateLimited:
		if attempt >= b.RateLimitRetries {
			return Decision{}
		}
		return Decision{Retry: true, Wait: b.RateLimitBase << attempt}
	case ClassServer:
		if attempt >= b.ServerRetries {
			return Decision{}
		}
		return Decision{Retry: true, Wait: b.ServerWait}
	case ClassTransport:
		if attempt >= b.TransportRetries {
			return Decision{}
		}
		return Decision{Retry: true, Wait: b.TransportBase<<attempt + b.jitter(b.TransportJitter)}
	default:
		return Decision{}
	}
}

// ForDelete decides what to do after a failed delete. Only 429 is retried,
// and without an attempt cap.
func (b *Backoff) ForDelete(class Class) Decision {
	if class == ClassRateLimited {
		return Decision{Retry: true, Wait: b.DeleteRateWait}
	}
	return Decision{}
}

func (b *Backoff) jitter(max time.Duration) time.Duration {
	if b.Jitter == nil || max <= 0 {
		return 0
	}
	return b.Jitter(max)
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
