package domain

import "time"

// Credentials is the session bundle needed to call the private API.
// It is captured outside the core and handed in per invocation.
type Credentials struct {
	Bearer        string    `json:"bearer"`
	CSRF          string    `json:"csrf"`
	TransactionID string    `json:"transaction_id"`
	QueryID       string    `json:"query_id"`
	QueryTemplate string    `json:"query_template"`
	UserID        string    `json:"user_id"`
	Cookie        string    `json:"cookie,omitempty"` // Cookie header replayed with API calls
	CapturedAt    time.Time `json:"captured_at"`
}

// Validate reports ErrMissingCredentials when a required field is empty.
// Freshness is not checked here.
func (c Credentials) Validate() error {
	if c.Bearer == "" || c.CSRF == "" || c.QueryID == "" || c.UserID == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Age returns how long ago the bundle was captured.
// Zero CapturedAt yields zero.
func (c Credentials) Age(now time.Time) time.Duration {
	if c.CapturedAt.IsZero() {
		return 0
	}
	return now.Sub(c.CapturedAt)
}
