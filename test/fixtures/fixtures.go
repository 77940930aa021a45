// Package fixtures builds GraphQL timeline payloads for tests.
package fixtures

import (
	"encoding/json"
	"time"
)

// Shape selects where the instruction list is placed in the envelope.
type Shape int

const (
	ShapeTimeline Shape = iota
	ShapeTimelineV2
	ShapeTimelineV2Modules
	ShapeUserResult
	ShapeUserTimelineResult
)

// Tweet describes one tweet result to embed in a payload.
type Tweet struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Links     []string
	Retweet   bool     // Adds a retweeted_status_result object
	PinnedIDs []string // Emitted as legacy.pinned_tweet_ids_str
	NoLegacy  bool     // Emit only rest_id, as X does for tombstones
	Wrapped   bool     // Nest under a TweetWithVisibilityResults container
}

// CreatedAt formats ts the way the legacy tweet object does.
func CreatedAt(ts time.Time) string {
	return ts.UTC().Format(time.RubyDate)
}

func (t Tweet) result() map[string]any {
	inner := map[string]any{
		"__typename": "Tweet",
		"rest_id":    t.ID,
	}
	if !t.NoLegacy {
		urls := make([]map[string]any, 0, len(t.Links))
		for i, l := range t.Links {
			urls = append(urls, map[string]any{
				"url":          "https://t.co/x" + string(rune('a'+i)),
				"expanded_url": l,
			})
		}
		legacy := map[string]any{
			"id_str":    t.ID,
			"full_text": t.Text,
			"entities":  map[string]any{"urls": urls},
		}
		if !t.CreatedAt.IsZero() {
			legacy["created_at"] = CreatedAt(t.CreatedAt)
		}
		if t.Retweet {
			legacy["retweeted_status_result"] = map[string]any{"result": map[string]any{"rest_id": "999"}}
		}
		if len(t.PinnedIDs) > 0 {
			legacy["pinned_tweet_ids_str"] = t.PinnedIDs
		}
		inner["legacy"] = legacy
	}
	if t.Wrapped {
		return map[string]any{
			"__typename": "TweetWithVisibilityResults",
			"tweet":      inner,
		}
	}
	return inner
}

func (t Tweet) itemContent() map[string]any {
	return map[string]any{
		"itemType":      "TimelineTweet",
		"tweet_results": map[string]any{"result": t.result()},
	}
}

// TweetEntry is a top-level tweet entry.
func TweetEntry(t Tweet) map[string]any {
	return map[string]any{
		"entryId": "tweet-" + t.ID,
		"content": map[string]any{
			"entryType":   "TimelineTimelineItem",
			"itemContent": t.itemContent(),
		},
	}
}

// ConversationEntry groups tweets into a module entry, as X does for threads.
func ConversationEntry(id string, tweets ...Tweet) map[string]any {
	return map[string]any{
		"entryId": "profile-conversation-" + id,
		"content": map[string]any{
			"entryType": "TimelineTimelineModule",
			"items":     moduleItems(id, tweets),
		},
	}
}

func moduleItems(id string, tweets []Tweet) []map[string]any {
	items := make([]map[string]any, 0, len(tweets))
	for _, t := range tweets {
		items = append(items, map[string]any{
			"entryId": "profile-conversation-" + id + "-tweet-" + t.ID,
			"item":    map[string]any{"itemContent": t.itemContent()},
		})
	}
	return items
}

// CursorEntry is a cursor entry; kind is "bottom", "top" or anything else.
func CursorEntry(kind, value string) map[string]any {
	return map[string]any{
		"entryId": "cursor-" + kind + "-" + value,
		"content": map[string]any{
			"entryType":  "TimelineTimelineCursor",
			"value":      value,
			"cursorType": kind,
		},
	}
}

// AddEntries is a TimelineAddEntries instruction.
func AddEntries(entries ...map[string]any) map[string]any {
	if entries == nil {
		entries = []map[string]any{}
	}
	return map[string]any{"type": "TimelineAddEntries", "entries": entries}
}

// AddToModule is a TimelineAddToModule instruction carrying moduleItems.
func AddToModule(id string, tweets ...Tweet) map[string]any {
	return map[string]any{
		"type":          "TimelineAddToModule",
		"moduleEntryId": "profile-conversation-" + id,
		"moduleItems":   moduleItems(id, tweets),
		"prepend":       false,
	}
}

// PinEntry is a TimelinePinEntry instruction.
func PinEntry(t Tweet) map[string]any {
	return map[string]any{"type": "TimelinePinEntry", "entry": TweetEntry(t)}
}

// ClearCache is an instruction the harvester ignores.
func ClearCache() map[string]any {
	return map[string]any{"type": "TimelineClearCache"}
}

// Page wraps instructions in the envelope for shape and encodes it.
func Page(shape Shape, instructions ...map[string]any) []byte {
	if instructions == nil {
		instructions = []map[string]any{}
	}
	list := map[string]any{"instructions": instructions}

	var data map[string]any
	switch shape {
	case ShapeTimelineV2:
		data = userResult("timeline_v2", map[string]any{"timeline": list})
	case ShapeTimelineV2Modules:
		data = userResult("timeline_v2", map[string]any{"timeline": map[string]any{"modules": instructions}})
	case ShapeUserResult:
		data = map[string]any{"user_result": map[string]any{
			"result": map[string]any{"timeline": map[string]any{"timeline": list}},
		}}
	case ShapeUserTimelineResult:
		data = map[string]any{"user_timeline_result": map[string]any{"timeline": list}}
	default:
		data = userResult("timeline", map[string]any{"timeline": list})
	}
	return mustJSON(map[string]any{"data": data})
}

func userResult(key string, holder map[string]any) map[string]any {
	return map[string]any{"user": map[string]any{
		"result": map[string]any{"__typename": "User", key: holder},
	}}
}

// Unrecognized is a 200 body with no known timeline location.
func Unrecognized() []byte {
	return []byte(`{"data":{"user":{"result":{"__typename":"UserUnavailable"}}}}`)
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
