package usecases

import (
	"encoding/json"
	"strings"
	"time"

	"tweet-cleaner/internal/domain"
)

// Timeline instruction types that carry entries.
const (
	instructionAddEntries  = "TimelineAddEntries"
	instructionAddToModule = "TimelineAddToModule"
	instructionPinEntry    = "TimelinePinEntry"
)

// xTimeLayout is the created_at format used by the legacy tweet object.
const xTimeLayout = time.RubyDate

// GraphQL payload shapes. Only the fields the harvester reads are declared.
type (
	envelope struct {
		Data *struct {
			User               *userResult     `json:"user"`
			UserResult         *userResult     `json:"user_result"`
			UserTimelineResult *timelineHolder `json:"user_timeline_result"`
		} `json:"data"`
	}

	userResult struct {
		Result *struct {
			Timeline   *timelineHolder `json:"timeline"`
			TimelineV2 *timelineHolder `json:"timeline_v2"`
		} `json:"result"`
	}

	timelineHolder struct {
		Timeline *struct {
			Instructions []instruction `json:"instructions"`
			Modules      []instruction `json:"modules"`
		} `json:"timeline"`
	}

	instruction struct {
		Type        string       `json:"type"`
		Entries     []entry      `json:"entries"`
		Entry       *entry       `json:"entry"`
		ModuleItems []moduleItem `json:"moduleItems"`
	}

	entry struct {
		EntryID string `json:"entryId"`
		Content struct {
			ItemContent *itemContent `json:"itemContent"`
			Items       []moduleItem `json:"items"`
			Value       string       `json:"value"`
		} `json:"content"`
	}

	moduleItem struct {
		EntryID string `json:"entryId"`
		Item    struct {
			ItemContent *itemContent `json:"itemContent"`
		} `json:"item"`
	}

	itemContent struct {
		TweetResults *struct {
			Result *tweetResult `json:"result"`
		} `json:"tweet_results"`
		Value string `json:"value"`
	}

	tweetResult struct {
		Typename string       `json:"__typename"`
		RestID   string       `json:"rest_id"`
		Legacy   *tweetLegacy `json:"legacy"`
		Tweet    *tweetResult `json:"tweet"`
	}

	tweetLegacy struct {
		IDStr     string `json:"id_str"`
		FullText  string `json:"full_text"`
		CreatedAt string `json:"created_at"`
		Entities  struct {
			URLs []struct {
				URL         string `json:"url"`
				ExpandedURL string `json:"expanded_url"`
			} `json:"urls"`
		} `json:"entities"`
		PinnedTweetIDs []string `json:"pinned_tweet_ids_str"`
	}
)

// envelopeShape is one known location of the instruction list.
type envelopeShape struct {
	name    string
	extract func(*envelope) []instruction
}

// envelopeShapes are tried in order; the first non-empty list wins.
var envelopeShapes = []envelopeShape{
	{"user.timeline", func(e *envelope) []instruction {
		return e.user().timeline(false).instructions()
	}},
	{"user.timeline_v2", func(e *envelope) []instruction {
		return e.user().timeline(true).instructions()
	}},
	{"user.timeline_v2.modules", func(e *envelope) []instruction {
		return e.user().timeline(true).modules()
	}},
	{"user_result.timeline", func(e *envelope) []instruction {
		if e.Data == nil {
			return nil
		}
		return e.Data.UserResult.timeline(false).instructions()
	}},
	{"user_timeline_result.timeline", func(e *envelope) []instruction {
		if e.Data == nil {
			return nil
		}
		return e.Data.UserTimelineResult.instructions()
	}},
}

func (e *envelope) user() *userResult {
	if e.Data == nil {
		return nil
	}
	return e.Data.User
}

func (u *userResult) timeline(v2 bool) *timelineHolder {
	if u == nil || u.Result == nil {
		return nil
	}
	if v2 {
		return u.Result.TimelineV2
	}
	return u.Result.Timeline
}

func (h *timelineHolder) instructions() []instruction {
	if h == nil || h.Timeline == nil {
		return nil
	}
	return h.Timeline.Instructions
}

func (h *timelineHolder) modules() []instruction {
	if h == nil || h.Timeline == nil {
		return nil
	}
	return h.Timeline.Modules
}

// cursorKind ranks cursor entries; bottom cursors page forward.
type cursorKind int

const (
	cursorBottom cursorKind = iota
	cursorOther
	cursorTop
)

type cursorEntry struct {
	kind  cursorKind
	value string
}

// timelinePage is the parsed content of one response.
type timelinePage struct {
	Shape   string // Empty when no known envelope matched
	Tweets  []domain.Tweet
	Pinned  []string
	Entries int // Tweet-bearing entries, before filtering
	cursors []cursorEntry
}

// Recognized reports whether a known envelope shape matched.
func (p timelinePage) Recognized() bool {
	return p.Shape != ""
}

// NextCursor returns the cursor to request next, preferring bottom cursors.
// A value identical to current is never returned.
func (p timelinePage) NextCursor(current string) (string, bool) {
	for _, kind := range []cursorKind{cursorBottom, cursorOther, cursorTop} {
		for _, c := range p.cursors {
			if c.kind == kind && c.value != "" && c.value != current {
				return c.value, true
			}
		}
	}
	return "", false
}

// parseTimeline extracts tweets and cursors from a raw response. It never
// fails: undecodable or unknown payloads yield an unrecognized empty page.
func parseTimeline(body []byte) timelinePage {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return timelinePage{}
	}

	var page timelinePage
	var instructions []instruction
	for _, shape := range envelopeShapes {
		if found := shape.extract(&env); len(found) > 0 {
			page.Shape = shape.name
			instructions = found
			break
		}
	}

	for _, inst := range instructions {
		switch inst.Type {
		case instructionAddEntries, instructionAddToModule:
			for _, e := range inst.Entries {
				page.addEntry(e)
			}
			for _, mi := range inst.ModuleItems {
				page.addModuleItem(mi)
			}
		case instructionPinEntry:
			if inst.Entry != nil && inst.Entry.Content.ItemContent != nil {
				if t, ok := tweetFromContent(inst.Entry.Content.ItemContent); ok {
					t.IsPinned = true
					page.Pinned = append(page.Pinned, t.ID)
					page.Tweets = append(page.Tweets, t)
					page.Entries++
				}
			}
		}
	}

	return page
}

func (p *timelinePage) addEntry(e entry) {
	if ic := e.Content.ItemContent; ic != nil && ic.TweetResults != nil {
		p.Entries++
		if t, ok := tweetFromContent(ic); ok {
			p.Tweets = append(p.Tweets, t)
		}
	}

	for _, mi := range e.Content.Items {
		p.addModuleItem(mi)
	}

	if strings.Contains(e.EntryID, "cursor") {
		value := e.Content.Value
		if value == "" && e.Content.ItemContent != nil {
			value = e.Content.ItemContent.Value
		}
		p.cursors = append(p.cursors, cursorEntry{kind: classifyCursor(e.EntryID), value: value})
	}
}

// addModuleItem handles one item nested inside a grouped entry.
// Items without legacy data are skipped entirely.
func (p *timelinePage) addModuleItem(mi moduleItem) {
	t, ok := tweetFromContent(mi.Item.ItemContent)
	if !ok || !t.HasDetail {
		return
	}
	p.Entries++
	p.Tweets = append(p.Tweets, t)
}

func classifyCursor(entryID string) cursorKind {
	switch {
	case strings.HasPrefix(entryID, "cursor-bottom"):
		return cursorBottom
	case strings.HasPrefix(entryID, "cursor-top"):
		return cursorTop
	default:
		return cursorOther
	}
}

func tweetFromContent(ic *itemContent) (domain.Tweet, bool) {
	if ic == nil || ic.TweetResults == nil {
		return domain.Tweet{}, false
	}
	return normalizeTweet(ic.TweetResults.Result)
}

// normalizeTweet unwraps visibility containers and maps the legacy object.
func normalizeTweet(r *tweetResult) (domain.Tweet, bool) {
	if r == nil {
		return domain.Tweet{}, false
	}
	if r.Legacy == nil && r.Tweet != nil {
		r = r.Tweet
	}

	t := domain.Tweet{ID: r.RestID}
	l := r.Legacy
	if l == nil {
		return t, t.ID != ""
	}
	if t.ID == "" {
		t.ID = l.IDStr
	}
	if t.ID == "" {
		return t, false
	}

	t.HasDetail = true
	t.Text = l.FullText
	t.IsRepost = strings.HasPrefix(l.FullText, repostMarker)
	t.PinnedIDs = l.PinnedTweetIDs
	if l.CreatedAt != "" {
		if ts, err := time.Parse(xTimeLayout, l.CreatedAt); err == nil {
			t.CreatedAt = ts
		}
	}
	for _, u := range l.Entities.URLs {
		link := u.ExpandedURL
		if link == "" {
			link = u.URL
		}
		if link != "" {
			t.Links = append(t.Links, link)
		}
	}

	return t, true
}
