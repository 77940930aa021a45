package usecases

import (
	"context"
	"fmt"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// DeleteTuning controls the executor's adaptive delay.
type DeleteTuning struct {
	BaseDelay        time.Duration
	MinDelay         time.Duration
	MaxDelay         time.Duration
	TransportMaxWait time.Duration
	Jitter           time.Duration

	// MaxRateLimitRetries caps 429 retries per tweet. Zero means unlimited;
	// the run is then bounded only by ctx.
	MaxRateLimitRetries int
}

// DefaultDeleteTuning returns the production tuning.
func DefaultDeleteTuning() DeleteTuning {
	return DeleteTuning{
		BaseDelay:        200 * time.Millisecond,
		MinDelay:         100 * time.Millisecond,
		MaxDelay:         2000 * time.Millisecond,
		TransportMaxWait: 5 * time.Second,
		Jitter:           100 * time.Millisecond,
	}
}

// Delay multipliers applied after each outcome.
const (
	successFactor      = 0.95
	notFoundFactor     = 0.9
	failedFactor       = 1.2
	transportFactor    = 1.3
	rateLimitFactor    = 1.5
	errorStreakPenalty = 0.2
)

// Executor deletes tweets one at a time under an adaptive delay.
type Executor struct {
	runtime
	deleter TweetDeleter
	tuning  DeleteTuning
}

// NewExecutor creates an Executor with default tuning.
func NewExecutor(deleter TweetDeleter, opts ...Option) *Executor {
	return &Executor{
		runtime: newRuntime(opts),
		deleter: deleter,
		tuning:  DefaultDeleteTuning(),
	}
}

// SetTuning replaces the delete tuning.
func (e *Executor) SetTuning(t DeleteTuning) {
	e.tuning = t
}

// Nuke deletes every id in order and returns the tally. A 429 retries the
// same id; 404 counts as already gone. The tally covers every processed id
// even when ctx is canceled or the credentials are rejected mid-run.
func (e *Executor) Nuke(ctx context.Context, creds domain.Credentials, ids []string) (domain.Outcome, error) {
	var out domain.Outcome
	if err := creds.Validate(); err != nil {
		return out, err
	}

	delay := e.tuning.BaseDelay
	streak := 0
	retries := 0

	for i := 0; i < len(ids); {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		id := ids[i]
		log.GlobalDebugCtx(ctx, "deleting tweet", "tweet_id", id, "position", i+1, "total", len(ids))

		err := e.deleter.DeleteTweet(ctx, creds, id)
		class := Classify(err)
		status := domain.StatusCode(err)
		var wait time.Duration

		switch class {
		case ClassNone:
			out.Success++
			streak = 0
			delay = e.shrink(delay, successFactor)
			e.recorder.DeleteAttempt(id, DeleteSuccess, status)

		case ClassNotFound:
			log.GlobalInfoCtx(ctx, "tweet not found, already deleted or never existed", "tweet_id", id)
			out.NotFound++
			streak = 0
			delay = e.shrink(delay, notFoundFactor)
			e.recorder.DeleteAttempt(id, DeleteNotFound, status)

		case ClassRateLimited:
			out.RateLimited++
			delay = e.grow(delay, rateLimitFactor)
			if e.tuning.MaxRateLimitRetries == 0 || retries < e.tuning.MaxRateLimitRetries {
				retries++
				d := e.backoff.ForDelete(class)
				pause := d.Wait + e.jitter()
				log.GlobalWarnCtx(ctx, "rate limit hit, retrying tweet", "tweet_id", id, "wait", pause.String(), "retry", retries)
				e.recorder.DeleteAttempt(id, DeleteRateLimited, status)
				e.recorder.Waited("delete", class, pause)
				if err := e.sleep(ctx, pause); err != nil {
					return out, err
				}
				continue
			}
			log.GlobalErrorCtx(ctx, "giving up on rate limited tweet", "tweet_id", id, "retries", retries)
			out.Failed++
			streak++
			e.recorder.DeleteAttempt(id, DeleteFailed, status)

		case ClassCanceled:
			return out, err

		case ClassTransport:
			log.GlobalErrorCtx(ctx, "error deleting tweet", "tweet_id", id, "error", err)
			out.Failed++
			streak++
			delay = e.grow(delay, transportFactor)
			wait = min(2*delay, e.tuning.TransportMaxWait) + e.jitter()
			e.recorder.DeleteAttempt(id, DeleteFailed, status)

		default:
			log.GlobalErrorCtx(ctx, "failed to delete tweet", "tweet_id", id, "status", status, "error", err)
			out.Failed++
			streak++
			delay = e.grow(delay, failedFactor)
			e.recorder.DeleteAttempt(id, DeleteFailed, status)
			if class == ClassUnauthorized {
				return out, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
			}
		}

		i++
		retries = 0
		if i%10 == 0 || i == len(ids) {
			e.progress.Progress(fmt.Sprintf("Deleted %d/%d tweets", i, len(ids)))
		}
		if i == len(ids) {
			break
		}

		if wait == 0 {
			scaled := time.Duration(float64(delay) * (1 + errorStreakPenalty*float64(streak)))
			wait = min(scaled+e.jitter(), e.tuning.MaxDelay)
		}
		e.recorder.Waited("delete", class, wait)
		if err := e.sleep(ctx, wait); err != nil {
			return out, err
		}
	}

	return out, nil
}

func (e *Executor) shrink(d time.Duration, factor float64) time.Duration {
	return max(time.Duration(float64(d)*factor), e.tuning.MinDelay)
}

func (e *Executor) grow(d time.Duration, factor float64) time.Duration {
	return min(time.Duration(float64(d)*factor), e.tuning.MaxDelay)
}

func (e *Executor) jitter() time.Duration {
	return e.backoff.jitter(e.tuning.Jitter)
}
