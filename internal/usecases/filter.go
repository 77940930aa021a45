package usecases

import (
	"slices"
	"strings"

	"tweet-cleaner/internal/domain"
)

// Reason names the filter check that excluded a tweet.
type Reason string

const (
	ReasonIncluded   Reason = ""
	ReasonNoDetail   Reason = "no legacy data"
	ReasonIgnored    Reason = "in ignore list"
	ReasonNotListed  Reason = "not in id list"
	ReasonNoLinks    Reason = "no links"
	ReasonNoKeyword  Reason = "no keyword match"
	ReasonTooOld     Reason = "before date range"
	ReasonTooNew     Reason = "after date range"
	ReasonRepost     Reason = "repost"
	ReasonPinned     Reason = "pinned"
	repostMarker            = "RT "
)

// Passes reports whether t should be deleted under opts.
func Passes(t domain.Tweet, opts domain.HarvestOptions) bool {
	return Evaluate(t, opts) == ReasonIncluded
}

// Evaluate runs the filter checks in order and returns the first failing
// one, or ReasonIncluded. It has no side effects.
func Evaluate(t domain.Tweet, opts domain.HarvestOptions) Reason {
	if !t.HasDetail {
		return ReasonNoDetail
	}
	if slices.Contains(opts.Ignore, t.ID) {
		return ReasonIgnored
	}
	if len(opts.IDs) > 0 && !slices.Contains(opts.IDs, t.ID) {
		return ReasonNotListed
	}
	if opts.LinksOnly && len(t.Links) == 0 {
		return ReasonNoLinks
	}
	if len(opts.Keywords) > 0 && !containsAny(t.Text, opts.Keywords) {
		return ReasonNoKeyword
	}
	if !t.CreatedAt.IsZero() {
		if opts.After != nil && t.CreatedAt.Before(*opts.After) {
			return ReasonTooOld
		}
		if opts.Before != nil && t.CreatedAt.After(*opts.Before) {
			return ReasonTooNew
		}
	}
	if !opts.IncludeReposts && (t.IsRepost || strings.HasPrefix(t.Text, repostMarker)) {
		return ReasonRepost
	}
	if opts.KeepPinned && (t.IsPinned || slices.Contains(t.PinnedIDs, t.ID)) {
		return ReasonPinned
	}
	return ReasonIncluded
}

// containsAny is a case-sensitive OR match.
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
