package usecases

import (
	"context"
	"errors"
	"fmt"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// CredentialStore holds the most recently captured session bundle.
type CredentialStore interface {
	// Get returns the bundle, ErrMissingCredentials or ErrStaleCredentials.
	Get() (domain.Credentials, error)
	Set(creds domain.Credentials)
	Fail(err error)
}

// CredentialCapturer obtains a fresh bundle, typically from a logged-in browser.
type CredentialCapturer interface {
	Capture(ctx context.Context) (domain.Credentials, error)
}

// CredentialProvider serves stored credentials and recaptures on a miss.
type CredentialProvider struct {
	store    CredentialStore
	capturer CredentialCapturer
}

// NewCredentialProvider creates a provider. A nil capturer disables recapture.
func NewCredentialProvider(store CredentialStore, capturer CredentialCapturer) *CredentialProvider {
	return &CredentialProvider{store: store, capturer: capturer}
}

// Credentials returns a usable bundle: the stored one when fresh, otherwise
// a newly captured one, which is then stored.
func (p *CredentialProvider) Credentials(ctx context.Context) (domain.Credentials, error) {
	creds, err := p.store.Get()
	if err == nil {
		log.GlobalDebugCtx(ctx, "credential store hit", "user_id", creds.UserID)
		return creds, nil
	}
	if !errors.Is(err, domain.ErrMissingCredentials) && !errors.Is(err, domain.ErrStaleCredentials) {
		return domain.Credentials{}, err
	}
	if p.capturer == nil {
		return domain.Credentials{}, err
	}

	log.GlobalInfoCtx(ctx, "capturing credentials", "reason", err.Error())
	return p.Refresh(ctx)
}

// Refresh captures a new bundle unconditionally.
func (p *CredentialProvider) Refresh(ctx context.Context) (domain.Credentials, error) {
	if p.capturer == nil {
		return domain.Credentials{}, domain.ErrMissingCredentials
	}

	creds, err := p.capturer.Capture(ctx)
	if err == nil {
		err = creds.Validate()
	}
	if err != nil {
		p.store.Fail(err)
		log.GlobalErrorCtx(ctx, "credential capture failed", "error", err)
		return domain.Credentials{}, fmt.Errorf("capture credentials: %w", err)
	}

	p.store.Set(creds)
	log.GlobalInfoCtx(ctx, "credentials captured", "user_id", creds.UserID, "query_id", creds.QueryID)
	return creds, nil
}
