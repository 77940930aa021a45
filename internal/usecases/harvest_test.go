package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/test/fixtures"
)

func page(entries ...map[string]any) fetchResult {
	return fetchResult{body: fixtures.Page(fixtures.ShapeTimelineV2, fixtures.AddEntries(entries...))}
}

func tweet(id, text string) map[string]any {
	return fixtures.TweetEntry(fixtures.Tweet{ID: id, Text: text})
}

func statusErr(code int) fetchResult {
	return fetchResult{err: &domain.StatusError{Op: "fetch", Code: code}}
}

func TestHarvest_TwoPagesEndToEnd(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{
		page(tweet("1", "first"), tweet("2", "RT @x: repost"), tweet("3", "third"),
			fixtures.CursorEntry("top", "top-1"), fixtures.CursorEntry("bottom", "abc")),
		page(tweet("4", "fourth")),
	}}
	sleeper := &SleepRecorder{}
	h := usecases.NewHarvester(fetcher, testOptions(sleeper, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"1", "3", "4"}; !slices.Equal(res.IDs, want) {
		t.Errorf("IDs = %v, want %v", res.IDs, want)
	}
	if want := []string{"", "abc"}; !slices.Equal(fetcher.Cursors(), want) {
		t.Errorf("cursors = %v, want %v", fetcher.Cursors(), want)
	}
	if res.Pages != 2 || res.Aborted {
		t.Errorf("Pages = %d, Aborted = %v; want 2, false", res.Pages, res.Aborted)
	}
	if want := []time.Duration{500 * time.Millisecond}; !slices.Equal(sleeper.Waits(), want) {
		t.Errorf("waits = %v, want %v", sleeper.Waits(), want)
	}
}

func TestHarvest_DeduplicatesAcrossModulesAndPages(t *testing.T) {
	// Arrange
	a := fixtures.Tweet{ID: "a", Text: "a"}
	b := fixtures.Tweet{ID: "b", Text: "b"}
	first := fixtures.Page(fixtures.ShapeTimelineV2,
		fixtures.AddEntries(
			fixtures.ConversationEntry("c", a, b),
			fixtures.TweetEntry(a),
			fixtures.CursorEntry("bottom", "next"),
		),
		fixtures.AddToModule("c", b),
	)
	fetcher := &MockFetcher{script: []fetchResult{
		{body: first},
		page(fixtures.TweetEntry(b), tweet("c", "c")),
	}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(res.IDs, want) {
		t.Errorf("IDs = %v, want %v", res.IDs, want)
	}
}

func TestHarvest_AbortsAfterThreeEmptyPages(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{
		page(fixtures.CursorEntry("bottom", "c1")),
		page(fixtures.CursorEntry("bottom", "c2")),
		page(fixtures.CursorEntry("bottom", "c3")),
		page(tweet("never", "reached")),
	}}
	sleeper := &SleepRecorder{}
	h := usecases.NewHarvester(fetcher, testOptions(sleeper, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Aborted || len(res.IDs) != 0 {
		t.Errorf("result = %+v, want aborted with no ids", res)
	}
	if fetcher.Calls() != 3 {
		t.Errorf("fetch calls = %d, want 3", fetcher.Calls())
	}
	want := []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond}
	if !slices.Equal(sleeper.Waits(), want) {
		t.Errorf("waits = %v, want %v", sleeper.Waits(), want)
	}
}

func TestHarvest_EmptyPageStreakResetsOnEntries(t *testing.T) {
	fetcher := &MockFetcher{script: []fetchResult{
		page(fixtures.CursorEntry("bottom", "c1")),
		page(fixtures.CursorEntry("bottom", "c2")),
		page(tweet("1", "one"), fixtures.CursorEntry("bottom", "c3")),
		page(fixtures.CursorEntry("bottom", "c4")),
		page(fixtures.CursorEntry("bottom", "c5")),
		page(tweet("2", "two")),
	}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Aborted || !slices.Equal(res.IDs, []string{"1", "2"}) {
		t.Errorf("result = %+v, want ids [1 2] without abort", res)
	}
}

func TestHarvest_FilteredOutPagesDoNotStall(t *testing.T) {
	// Arrange
	var script []fetchResult
	var ignore []string
	for i := 1; i <= 6; i++ {
		id := fmt.Sprintf("%d", i)
		ignore = append(ignore, id)
		script = append(script, page(tweet(id, "kept by the user"), fixtures.CursorEntry("bottom", "c"+id)))
	}
	script = append(script, page(tweet("7", "last")))
	fetcher := &MockFetcher{script: script}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{Ignore: ignore})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Aborted {
		t.Error("pages with tweet entries must not count as stalls even when every tweet is filtered out")
	}
	if res.Pages != 7 || len(fetcher.Cursors()) != 7 {
		t.Errorf("pages = %d, fetches = %d; want 7 each", res.Pages, len(fetcher.Cursors()))
	}
	if !slices.Equal(res.IDs, []string{"7"}) {
		t.Errorf("IDs = %v, want [7]", res.IDs)
	}
}

func TestHarvest_NotFoundEndsNormally(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{
		page(tweet("1", "one"), fixtures.CursorEntry("bottom", "more")),
		statusErr(404),
	}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Aborted || !slices.Equal(res.IDs, []string{"1"}) {
		t.Errorf("result = %+v, want ids [1]", res)
	}
	if fetcher.Calls() != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.Calls())
	}
}

func TestHarvest_RateLimitRetriesThenSucceeds(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{
		statusErr(429), statusErr(429), statusErr(429),
		page(tweet("1", "one")),
	}}
	sleeper := &SleepRecorder{}
	h := usecases.NewHarvester(fetcher, testOptions(sleeper, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(res.IDs, []string{"1"}) {
		t.Errorf("IDs = %v, want [1]", res.IDs)
	}
	want := []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second}
	if !slices.Equal(sleeper.Waits(), want) {
		t.Errorf("waits = %v, want %v", sleeper.Waits(), want)
	}
}

func TestHarvest_PersistentRateLimitStallsAndAborts(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{statusErr(429)}}
	sleeper := &SleepRecorder{}
	h := usecases.NewHarvester(fetcher, testOptions(sleeper, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Aborted {
		t.Error("expected aborted harvest")
	}
	// Four attempts per page request, three stalled requests.
	if fetcher.Calls() != 12 {
		t.Errorf("fetch calls = %d, want 12", fetcher.Calls())
	}
	cycle := []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second, 30 * time.Second}
	want := append(append(append([]time.Duration{}, cycle...), cycle...), cycle...)
	if !slices.Equal(sleeper.Waits(), want) {
		t.Errorf("waits = %v, want %v", sleeper.Waits(), want)
	}
}

func TestHarvest_ServerErrorsUseShortPause(t *testing.T) {
	fetcher := &MockFetcher{script: []fetchResult{
		statusErr(503), statusErr(503), statusErr(503),
		page(tweet("1", "one")),
	}}
	sleeper := &SleepRecorder{}
	h := usecases.NewHarvester(fetcher, testOptions(sleeper, nil)...)

	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(res.IDs, []string{"1"}) {
		t.Errorf("IDs = %v, want [1]", res.IDs)
	}
	want := []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}
	if !slices.Equal(sleeper.Waits(), want) {
		t.Errorf("waits = %v, want %v", sleeper.Waits(), want)
	}
}

func TestHarvest_UnauthorizedIsTerminal(t *testing.T) {
	fetcher := &MockFetcher{script: []fetchResult{statusErr(401)}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	_, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if fetcher.Calls() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.Calls())
	}
}

func TestHarvest_UnrecognizedPageRefetchesSameCursor(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{
		page(tweet("1", "one"), fixtures.CursorEntry("bottom", "B")),
		{body: fixtures.Unrecognized()},
		page(tweet("2", "two")),
	}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"", "B", "B"}; !slices.Equal(fetcher.Cursors(), want) {
		t.Errorf("cursors = %v, want %v", fetcher.Cursors(), want)
	}
	if !slices.Equal(res.IDs, []string{"1", "2"}) {
		t.Errorf("IDs = %v, want [1 2]", res.IDs)
	}
}

func TestHarvest_RepeatedCursorEndsPagination(t *testing.T) {
	fetcher := &MockFetcher{script: []fetchResult{
		page(tweet("1", "one"), fixtures.CursorEntry("bottom", "same")),
		page(tweet("2", "two"), fixtures.CursorEntry("bottom", "same")),
		page(tweet("3", "never")),
	}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	res, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.Calls() != 2 || !slices.Equal(res.IDs, []string{"1", "2"}) {
		t.Errorf("calls = %d, IDs = %v; want 2, [1 2]", fetcher.Calls(), res.IDs)
	}
}

func TestHarvest_KeepsPinnedFromEitherSource(t *testing.T) {
	// Arrange
	pinned := fixtures.Tweet{ID: "p", Text: "pinned"}
	fetcher := &MockFetcher{script: []fetchResult{
		{body: fixtures.Page(fixtures.ShapeTimelineV2,
			fixtures.PinEntry(pinned),
			fixtures.AddEntries(
				fixtures.TweetEntry(pinned),
				fixtures.TweetEntry(fixtures.Tweet{ID: "q", Text: "pinned by legacy", PinnedIDs: []string{"q"}}),
				tweet("r", "regular"),
			),
		)},
	}}
	h := usecases.NewHarvester(fetcher, testOptions(&SleepRecorder{}, nil)...)

	// Act
	res, err := h.Harvest(context.Background(), validCreds(), domain.DefaultHarvestOptions())

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(res.IDs, []string{"r"}) {
		t.Errorf("IDs = %v, want [r]", res.IDs)
	}
}

func TestHarvest_CancelStopsAndKeepsCollected(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &MockFetcher{script: []fetchResult{
		page(tweet("1", "one"), fixtures.CursorEntry("bottom", "B")),
		page(tweet("2", "two")),
	}}
	sleeper := &SleepRecorder{cancel: cancel, cancelAt: 1}
	h := usecases.NewHarvester(fetcher, testOptions(sleeper, nil)...)

	// Act
	res, err := h.Harvest(ctx, validCreds(), domain.HarvestOptions{})

	// Assert
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !slices.Equal(res.IDs, []string{"1"}) {
		t.Errorf("IDs = %v, want [1]", res.IDs)
	}
}

func TestHarvest_RequiresCredentials(t *testing.T) {
	fetcher := &MockFetcher{}
	h := usecases.NewHarvester(fetcher)

	_, err := h.Harvest(context.Background(), domain.Credentials{}, domain.HarvestOptions{})

	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
	if fetcher.Calls() != 0 {
		t.Error("fetcher called without credentials")
	}
}

func TestHarvest_ReportsProgressAndRecorderEvents(t *testing.T) {
	// Arrange
	fetcher := &MockFetcher{script: []fetchResult{page(tweet("1", "one"), tweet("2", "two"))}}
	progress := &ProgressRecorder{}
	rec := &countingRecorder{}
	opts := append(testOptions(&SleepRecorder{}, progress), usecases.WithRecorder(rec))
	h := usecases.NewHarvester(fetcher, opts...)

	// Act
	_, err := h.Harvest(context.Background(), validCreds(), domain.HarvestOptions{})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines := progress.Lines(); len(lines) != 1 || lines[0] != "Found 2 tweets to delete so far" {
		t.Errorf("progress = %v", lines)
	}
	if rec.pages != 1 || rec.collected != 2 {
		t.Errorf("recorder pages=%d collected=%d, want 1, 2", rec.pages, rec.collected)
	}
}

// countingRecorder counts Recorder callbacks.
type countingRecorder struct {
	pages, collected, waits int
	results                 map[usecases.DeleteResult]int
}

func (c *countingRecorder) PageFetched(string, int)                       { c.pages++ }
func (c *countingRecorder) TweetCollected(string)                         { c.collected++ }
func (c *countingRecorder) Waited(string, usecases.Class, time.Duration) { c.waits++ }

func (c *countingRecorder) DeleteAttempt(_ string, r usecases.DeleteResult, _ int) {
	if c.results == nil {
		c.results = make(map[usecases.DeleteResult]int)
	}
	c.results[r]++
}
