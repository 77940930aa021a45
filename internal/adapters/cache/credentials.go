// Package cache keeps the captured session bundle in memory.
package cache

import (
	"sync"
	"time"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// DefaultMaxAge is how long a captured bundle is trusted.
const DefaultMaxAge = time.Hour

// Status is the externally visible state of the store.
type Status struct {
	HasAuth     bool       `json:"has_auth"`
	Fresh       bool       `json:"fresh"`
	UserID      string     `json:"user_id,omitempty"`
	QueryID     string     `json:"query_id,omitempty"`
	LastCapture *time.Time `json:"last_capture,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// CredentialStore holds at most one bundle with a freshness limit.
type CredentialStore struct {
	mu        sync.RWMutex
	creds     *domain.Credentials
	expiresAt time.Time
	lastError string

	maxAge time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewCredentialStore creates a store that rejects bundles older than maxAge
// and purges them in the background. Call Close to stop the purge loop.
func NewCredentialStore(maxAge time.Duration) *CredentialStore {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	s := &CredentialStore{
		maxAge: maxAge,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go s.cleanup(time.Minute)
	return s
}

// SetClock replaces the time source.
func (s *CredentialStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Get returns the bundle if present and fresh.
func (s *CredentialStore) Get() (domain.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil {
		return domain.Credentials{}, domain.ErrMissingCredentials
	}
	if s.now().After(s.expiresAt) {
		return domain.Credentials{}, domain.ErrStaleCredentials
	}
	return *s.creds, nil
}

// Set stores creds, stamping CapturedAt when it is zero. The expiry is
// measured from CapturedAt.
func (s *CredentialStore) Set(creds domain.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creds.CapturedAt.IsZero() {
		creds.CapturedAt = s.now()
	}
	s.creds = &creds
	s.expiresAt = creds.CapturedAt.Add(s.maxAge)
	s.lastError = ""
}

// Fail records the error of the latest capture attempt.
func (s *CredentialStore) Fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// Clear drops the stored bundle.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
}

// Status reports what the store holds without exposing secrets.
func (s *CredentialStore) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{LastError: s.lastError}
	if s.creds == nil {
		return st
	}
	captured := s.creds.CapturedAt
	expires := s.expiresAt
	st.HasAuth = s.creds.Validate() == nil
	st.Fresh = !s.now().After(expires)
	st.UserID = s.creds.UserID
	st.QueryID = s.creds.QueryID
	st.LastCapture = &captured
	st.ExpiresAt = &expires
	return st
}

// Close stops the purge loop. Idempotent.
func (s *CredentialStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// cleanup periodically drops an expired bundle so secrets do not linger.
func (s *CredentialStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *CredentialStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds != nil && s.now().After(s.expiresAt) {
		log.GlobalInfo("purging expired credentials", "captured_at", s.creds.CapturedAt)
		s.creds = nil
	}
}
