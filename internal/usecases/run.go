package usecases

import (
	"context"
	"fmt"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// Cleaner composes harvesting and deletion into one run.
type Cleaner struct {
	harvester *Harvester
	executor  *Executor
	progress  ProgressSink
}

// NewCleaner creates a Cleaner. The progress sink from opts is shared
// with the harvester and executor.
func NewCleaner(fetcher TimelineFetcher, deleter TweetDeleter, opts ...Option) *Cleaner {
	rt := newRuntime(opts)
	return &Cleaner{
		harvester: NewHarvester(fetcher, opts...),
		executor:  NewExecutor(deleter, opts...),
		progress:  rt.progress,
	}
}

// Harvester exposes the underlying harvester for tuning.
func (c *Cleaner) Harvester() *Harvester { return c.harvester }

// Executor exposes the underlying executor for tuning.
func (c *Cleaner) Executor() *Executor { return c.executor }

// Run harvests matching tweets and deletes them. A non-empty opts.IDs is
// deleted directly without harvesting.
func (c *Cleaner) Run(ctx context.Context, creds domain.Credentials, opts domain.HarvestOptions) (domain.Outcome, error) {
	if err := creds.Validate(); err != nil {
		return domain.Outcome{}, err
	}

	c.progress.Progress("Finding tweets to delete...")

	ids := dedupe(opts.IDs)
	if len(ids) == 0 {
		res, err := c.harvester.Harvest(ctx, creds, opts)
		if err != nil {
			log.GlobalErrorCtx(ctx, "harvest failed", "error", err, "collected", len(res.IDs))
			return domain.Outcome{}, fmt.Errorf("harvest: %w", err)
		}
		if res.Aborted {
			log.GlobalWarnCtx(ctx, "harvest aborted, deleting what was collected", "collected", len(res.IDs))
		}
		ids = res.IDs
	}

	if len(ids) == 0 {
		c.progress.Progress("No tweets found to delete")
		return domain.Outcome{}, nil
	}

	c.progress.Progress(fmt.Sprintf("Found %d tweets to delete. Starting deletion...", len(ids)))

	out, err := c.executor.Nuke(ctx, creds, ids)
	c.progress.Progress(fmt.Sprintf("Done! Processed %d tweets", out.Processed()))
	if err != nil {
		return out, fmt.Errorf("delete: %w", err)
	}
	return out, nil
}

// dedupe keeps the first occurrence of each id.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
