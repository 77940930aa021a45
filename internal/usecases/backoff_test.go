package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want usecases.Class
	}{
		{"nil", nil, usecases.ClassNone},
		{"429", &domain.StatusError{Code: 429}, usecases.ClassRateLimited},
		{"404", &domain.StatusError{Code: 404}, usecases.ClassNotFound},
		{"401", &domain.StatusError{Code: 401}, usecases.ClassUnauthorized},
		{"403", &domain.StatusError{Code: 403}, usecases.ClassUnauthorized},
		{"500", &domain.StatusError{Code: 500}, usecases.ClassServer},
		{"503", &domain.StatusError{Code: 503}, usecases.ClassServer},
		{"400", &domain.StatusError{Code: 400}, usecases.ClassRejected},
		{"wrapped 429", fmt.Errorf("fetch: %w", &domain.StatusError{Code: 429}), usecases.ClassRateLimited},
		{"transport", errors.New("dial tcp: connection refused"), usecases.ClassTransport},
		{"canceled", context.Canceled, usecases.ClassCanceled},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), usecases.ClassCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usecases.Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackoff_ForFetch_RateLimitDoublesThenStops(t *testing.T) {
	// Arrange
	b := noJitterBackoff()
	want := []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second}

	// Act & Assert
	for attempt, w := range want {
		d := b.ForFetch(attempt, usecases.ClassRateLimited)
		if !d.Retry || d.Wait != w {
			t.Errorf("attempt %d: got %+v, want retry after %v", attempt, d, w)
		}
	}
	if d := b.ForFetch(3, usecases.ClassRateLimited); d.Retry {
		t.Errorf("attempt 3: got %+v, want no retry", d)
	}
}

func TestBackoff_ForFetch_ServerFixedWaitTwice(t *testing.T) {
	b := noJitterBackoff()

	for attempt := 0; attempt < 2; attempt++ {
		if d := b.ForFetch(attempt, usecases.ClassServer); !d.Retry || d.Wait != 3*time.Second {
			t.Errorf("attempt %d: got %+v, want retry after 3s", attempt, d)
		}
	}
	if d := b.ForFetch(2, usecases.ClassServer); d.Retry {
		t.Errorf("attempt 2: got %+v, want no retry", d)
	}
}

func TestBackoff_ForFetch_TransportAddsJitter(t *testing.T) {
	// Arrange
	b := usecases.DefaultBackoff()
	var gotMax time.Duration
	b.Jitter = func(max time.Duration) time.Duration {
		gotMax = max
		return 250 * time.Millisecond
	}

	// Act
	d := b.ForFetch(2, usecases.ClassTransport)

	// Assert
	if !d.Retry || d.Wait != 4*time.Second+250*time.Millisecond {
		t.Errorf("got %+v, want retry after 4.25s", d)
	}
	if gotMax != 500*time.Millisecond {
		t.Errorf("jitter max = %v, want 500ms", gotMax)
	}
	if d := b.ForFetch(3, usecases.ClassTransport); d.Retry {
		t.Errorf("attempt 3: got %+v, want no retry", d)
	}
}

func TestBackoff_ForFetch_FatalClassesNeverRetry(t *testing.T) {
	b := noJitterBackoff()

	for _, c := range []usecases.Class{usecases.ClassNotFound, usecases.ClassUnauthorized, usecases.ClassRejected, usecases.ClassCanceled} {
		if d := b.ForFetch(0, c); d.Retry {
			t.Errorf("%v: got retry", c)
		}
	}
}

func TestBackoff_ForDelete(t *testing.T) {
	b := noJitterBackoff()

	if d := b.ForDelete(usecases.ClassRateLimited); !d.Retry || d.Wait != time.Minute {
		t.Errorf("429: got %+v, want retry after 60s", d)
	}
	if d := b.ForDelete(usecases.ClassServer); d.Retry {
		t.Errorf("500: got %+v, want no retry", d)
	}
}

func TestBackoff_DefaultJitterWithinBounds(t *testing.T) {
	b := usecases.DefaultBackoff()

	for i := 0; i < 100; i++ {
		d := b.ForFetch(0, usecases.ClassTransport)
		if d.Wait < time.Second || d.Wait >= time.Second+500*time.Millisecond {
			t.Fatalf("wait %v outside [1s, 1.5s)", d.Wait)
		}
	}
}

func TestSleepContext_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := usecases.SleepContext(ctx, time.Hour)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("SleepContext did not return promptly")
	}
}

func TestClass_String(t *testing.T) {
	if usecases.ClassRateLimited.String() != "rate_limited" {
		t.Errorf("got %q", usecases.ClassRateLimited.String())
	}
	if usecases.Class(99).String() != "unknown" {
		t.Errorf("got %q", usecases.Class(99).String())
	}
}
