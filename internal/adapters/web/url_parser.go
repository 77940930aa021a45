package web

import (
	"fmt"
	"regexp"
	"strings"

	"tweet-cleaner/internal/domain"
)

// tweetURLRegex matches Twitter/X status URLs and extracts username and tweet ID.
// Query parameters and trailing path segments are ignored.
var tweetURLRegex = regexp.MustCompile(
	`^https?://(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/(\w+)/status(?:es)?/(\d+)`,
)

var numericID = regexp.MustCompile(`^\d+$`)

// ParseTweetURL extracts the username and tweet ID from a Twitter/X URL.
// Returns domain.ErrInvalidTweetRef if the URL format is invalid.
func ParseTweetURL(url string) (username string, tweetID string, err error) {
	matches := tweetURLRegex.FindStringSubmatch(url)
	if len(matches) < 3 {
		return "", "", domain.ErrInvalidTweetRef
	}
	return matches[1], matches[2], nil
}

// ParseTweetRef accepts a bare numeric id or a status URL and returns the id.
func ParseTweetRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if numericID.MatchString(ref) {
		return ref, nil
	}
	_, id, err := ParseTweetURL(ref)
	return id, err
}

// ParseTweetRefs parses every ref. Each element may itself hold several refs
// separated by commas or whitespace, as pasted into a text box.
func ParseTweetRefs(refs []string) ([]string, error) {
	var ids []string
	for _, chunk := range refs {
		fields := strings.FieldsFunc(chunk, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
		})
		for _, f := range fields {
			id, err := ParseTweetRef(f)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", f, err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
