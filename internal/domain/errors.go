package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when the session bundle is incomplete.
	ErrMissingCredentials = errors.New("session credentials have not been captured")

	// ErrStaleCredentials is returned when stored credentials are older than allowed.
	ErrStaleCredentials = errors.New("session credentials are stale")

	// ErrUnauthorized is returned when the API rejects the credentials (401/403).
	ErrUnauthorized = errors.New("credentials rejected by the API")

	// ErrRateLimitExceeded is returned when a fetch keeps hitting 429 after all retries.
	ErrRateLimitExceeded = errors.New("rate limit exceeded after multiple retries")

	// ErrEndOfTimeline signals that the timeline has no more pages.
	ErrEndOfTimeline = errors.New("no more tweets available")

	// ErrTweetNotFound is returned when the tweet does not exist or was deleted.
	ErrTweetNotFound = errors.New("tweet not found or deleted")

	// ErrInvalidTweetRef is returned when input is neither a tweet id nor a status URL.
	ErrInvalidTweetRef = errors.New("not a tweet id or status URL")

	// ErrRunInProgress is returned when a run is started while another is active.
	ErrRunInProgress = errors.New("a cleaning run is already in progress")
)

// StatusError carries a non-success HTTP status from the remote API.
type StatusError struct {
	Op   string // "fetch" or "delete"
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Body)
}

// Is lets errors.Is match the sentinel that corresponds to the status.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == 401 || e.Code == 403
	case ErrTweetNotFound:
		return e.Op == "delete" && e.Code == 404
	case ErrEndOfTimeline:
		return e.Op == "fetch" && e.Code == 404
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
