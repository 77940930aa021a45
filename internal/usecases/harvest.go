package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// HarvestPacing controls the harvester's waits and stall limit.
type HarvestPacing struct {
	PageDelay      time.Duration // After a page with tweet entries
	EmptyPageDelay time.Duration // After a page without
	RateLimitPause time.Duration // After a fetch that gave up on 429
	ErrorPause     time.Duration // After any other failed fetch
	MaxStalls      int           // Consecutive empty pages or failures before aborting
}

// DefaultHarvestPacing returns the production pacing.
func DefaultHarvestPacing() HarvestPacing {
	return HarvestPacing{
		PageDelay:      500 * time.Millisecond,
		EmptyPageDelay: 1500 * time.Millisecond,
		RateLimitPause: 30 * time.Second,
		ErrorPause:     3 * time.Second,
		MaxStalls:      3,
	}
}

// Harvester walks the timeline and collects ids that pass the filter.
// It never has more than one request in flight.
type Harvester struct {
	runtime
	fetcher TimelineFetcher
	pacing  HarvestPacing
}

// NewHarvester creates a Harvester with default pacing.
func NewHarvester(fetcher TimelineFetcher, opts ...Option) *Harvester {
	return &Harvester{
		runtime: newRuntime(opts),
		fetcher: fetcher,
		pacing:  DefaultHarvestPacing(),
	}
}

// SetPacing replaces the pacing. Zero MaxStalls keeps the current limit.
func (h *Harvester) SetPacing(p HarvestPacing) {
	if p.MaxStalls <= 0 {
		p.MaxStalls = h.pacing.MaxStalls
	}
	h.pacing = p
}

// Harvest pages through the timeline until no new cursor is returned or
// MaxStalls consecutive pages stall. Collected ids are returned even when
// an error ends the walk early.
func (h *Harvester) Harvest(ctx context.Context, creds domain.Credentials, opts domain.HarvestOptions) (domain.HarvestResult, error) {
	var res domain.HarvestResult
	if err := creds.Validate(); err != nil {
		return res, err
	}

	seen := make(map[string]struct{})
	pinnedSeen := make(map[string]struct{})
	var pinned []string
	var cursor string
	stalls := 0

	stall := func(why string) bool {
		stalls++
		if stalls >= h.pacing.MaxStalls {
			log.GlobalWarnCtx(ctx, "too many stalled pages, stopping harvest", "reason", why, "stalls", stalls)
			res.Aborted = true
			return true
		}
		return false
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, err := h.fetchPage(ctx, creds, cursor)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrEndOfTimeline):
				log.GlobalInfoCtx(ctx, "reached end of timeline, stopping harvest", "pages", res.Pages)
				return res, nil
			case errors.Is(err, domain.ErrUnauthorized), Classify(err) == ClassCanceled:
				return res, err
			}

			pause := h.pacing.ErrorPause
			if errors.Is(err, domain.ErrRateLimitExceeded) {
				pause = h.pacing.RateLimitPause
			}
			log.GlobalErrorCtx(ctx, "error harvesting tweets", "error", err, "pause", pause)
			h.recorder.Waited("harvest", Classify(err), pause)
			if err := h.sleep(ctx, pause); err != nil {
				return res, err
			}
			if stall("fetch error") {
				return res, nil
			}
			continue
		}

		res.Pages++
		page := parseTimeline(body)
		h.recorder.PageFetched(page.Shape, page.Entries)

		if !page.Recognized() {
			log.GlobalWarnCtx(ctx, "no instructions found in response", "sample", sample(body, 300))
			if stall("unrecognized response") {
				return res, nil
			}
			if err := h.sleep(ctx, h.pacing.EmptyPageDelay); err != nil {
				return res, err
			}
			continue
		}

		for _, id := range page.Pinned {
			if _, ok := pinnedSeen[id]; !ok {
				pinnedSeen[id] = struct{}{}
				pinned = append(pinned, id)
			}
		}

		for _, t := range page.Tweets {
			if len(pinned) > 0 {
				t.PinnedIDs = append(append([]string(nil), t.PinnedIDs...), pinned...)
			}
			if reason := Evaluate(t, opts); reason != ReasonIncluded {
				if opts.Debug {
					log.GlobalDebugCtx(ctx, "skipping tweet", "tweet_id", t.ID, "reason", string(reason))
				}
				continue
			}
			if _, dup := seen[t.ID]; dup {
				continue
			}
			seen[t.ID] = struct{}{}
			res.IDs = append(res.IDs, t.ID)
			h.recorder.TweetCollected(t.ID)
			if opts.Debug {
				log.GlobalDebugCtx(ctx, "found tweet to delete", "tweet_id", t.ID, "text", truncate(t.Text, 50))
			}
		}

		done := false
		if next, ok := page.NextCursor(cursor); ok {
			cursor = next
			log.GlobalDebugCtx(ctx, "found next cursor", "cursor", truncate(cursor, 15))
		} else {
			log.GlobalInfoCtx(ctx, "no cursor found, reached the end", "pages", res.Pages)
			done = true
		}

		if page.Entries == 0 {
			log.GlobalInfoCtx(ctx, "no tweet entries found in this batch")
			if stall("empty page") {
				done = true
			}
		} else {
			stalls = 0
		}

		h.progress.Progress(fmt.Sprintf("Found %d tweets to delete so far", len(res.IDs)))
		if done {
			return res, nil
		}

		pause := h.pacing.PageDelay
		if page.Entries == 0 {
			pause = h.pacing.EmptyPageDelay
		}
		if err := h.sleep(ctx, pause); err != nil {
			return res, err
		}
	}
}

// fetchPage performs one fetch under the fetch retry schedule.
func (h *Harvester) fetchPage(ctx context.Context, creds domain.Credentials, cursor string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := h.fetcher.FetchTimeline(ctx, creds, cursor)
		if err == nil {
			return body, nil
		}

		class := Classify(err)
		switch class {
		case ClassNotFound:
			return nil, fmt.Errorf("%w: %w", domain.ErrEndOfTimeline, err)
		case ClassUnauthorized:
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		case ClassCanceled:
			return nil, err
		}

		d := h.backoff.ForFetch(attempt, class)
		if !d.Retry {
			if class == ClassRateLimited {
				return nil, fmt.Errorf("%w: %w", domain.ErrRateLimitExceeded, err)
			}
			return nil, fmt.Errorf("timeline fetch failed after %d attempts: %w", attempt+1, err)
		}

		log.GlobalWarnCtx(ctx, "timeline fetch failed, retrying",
			"class", class.String(), "attempt", attempt+1, "wait", d.Wait.String(), "error", err)
		h.recorder.Waited("fetch", class, d.Wait)
		if err := h.sleep(ctx, d.Wait); err != nil {
			return nil, err
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sample(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
