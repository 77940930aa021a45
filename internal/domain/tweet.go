// Package domain contains the core business entities and rules.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Tweet is one timeline post as seen by the harvester.
// Several GraphQL envelope shapes normalize into this single form.
type Tweet struct {
	ID        string
	CreatedAt time.Time
	Text      string
	IsRepost  bool
	IsPinned  bool
	Links     []string
	PinnedIDs []string // Pinned ids known when this tweet was parsed
	HasDetail bool     // False when the payload carried no legacy/core data
}

// HarvestOptions selects which tweets are collected for deletion.
// A non-empty IDs allow-list overrides every other criterion except Ignore.
type HarvestOptions struct {
	IDs            []string   `yaml:"ids" json:"ids"`
	Ignore         []string   `yaml:"ignore" json:"ignore"`
	Keywords       []string   `yaml:"keywords" json:"keywords"`
	IncludeReposts bool       `yaml:"include_reposts" json:"include_reposts"`
	KeepPinned     bool       `yaml:"keep_pinned" json:"keep_pinned"`
	LinksOnly      bool       `yaml:"links_only" json:"links_only"`
	After          *time.Time `yaml:"after,omitempty" json:"after,omitempty"`
	Before         *time.Time `yaml:"before,omitempty" json:"before,omitempty"`
	Debug          bool       `yaml:"debug" json:"debug"`
}

// DefaultHarvestOptions removes reposts too and keeps the pinned tweet.
func DefaultHarvestOptions() HarvestOptions {
	return HarvestOptions{
		IncludeReposts: true,
		KeepPinned:     true,
	}
}

// HarvestResult is the output of one harvest run.
type HarvestResult struct {
	IDs     []string // Unique, filter-surviving ids in first-seen order
	Pages   int
	Aborted bool // Stopped after too many consecutive stalled pages
}

// Outcome tallies a deletion run. Every processed id lands in exactly
// one of Success, Failed or NotFound; RateLimited counts retries.
type Outcome struct {
	Success     int `json:"success"`
	Failed      int `json:"failed"`
	NotFound    int `json:"not_found"`
	RateLimited int `json:"rate_limited"`
}

// Processed returns the number of ids that reached a final bucket.
func (o Outcome) Processed() int {
	return o.Success + o.Failed + o.NotFound
}

// Summary renders the outcome as the multi-line completion report.
func (o Outcome) Summary() string {
	var b strings.Builder
	b.WriteString("Tweet cleaning completed!\n")
	fmt.Fprintf(&b, "Deletion success: %d\n", o.Success)
	fmt.Fprintf(&b, "Deletion failed: %d\n", o.Failed)
	fmt.Fprintf(&b, "Does not exist: %d\n", o.NotFound)
	if o.RateLimited > 0 {
		fmt.Fprintf(&b, "Rate limit retry: %d\n", o.RateLimited)
	}
	return b.String()
}
