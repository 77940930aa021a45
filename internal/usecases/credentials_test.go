package usecases_test

import (
	"context"
	"errors"
	"testing"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
)

// MockStore is an in-memory CredentialStore.
type MockStore struct {
	creds   domain.Credentials
	getErr  error
	failErr error
	sets    int
}

func (m *MockStore) Get() (domain.Credentials, error) {
	if m.getErr != nil {
		return domain.Credentials{}, m.getErr
	}
	return m.creds, nil
}

func (m *MockStore) Set(c domain.Credentials) {
	m.creds = c
	m.getErr = nil
	m.sets++
}

func (m *MockStore) Fail(err error) { m.failErr = err }

// MockCapturer returns a fixed bundle or error.
type MockCapturer struct {
	creds domain.Credentials
	err   error
	calls int
}

func (m *MockCapturer) Capture(ctx context.Context) (domain.Credentials, error) {
	m.calls++
	return m.creds, m.err
}

func TestCredentialProvider_StoreHit(t *testing.T) {
	// Arrange
	store := &MockStore{creds: validCreds()}
	capturer := &MockCapturer{}
	p := usecases.NewCredentialProvider(store, capturer)

	// Act
	got, err := p.Credentials(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "42" {
		t.Errorf("UserID = %q, want 42", got.UserID)
	}
	if capturer.calls != 0 {
		t.Errorf("capture calls = %d, want 0", capturer.calls)
	}
}

func TestCredentialProvider_StaleTriggersCapture(t *testing.T) {
	// Arrange
	store := &MockStore{getErr: domain.ErrStaleCredentials}
	fresh := validCreds()
	fresh.UserID = "77"
	capturer := &MockCapturer{creds: fresh}
	p := usecases.NewCredentialProvider(store, capturer)

	// Act
	got, err := p.Credentials(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "77" || store.sets != 1 {
		t.Errorf("got %q with %d sets, want 77 stored once", got.UserID, store.sets)
	}
}

func TestCredentialProvider_CaptureFailureRecorded(t *testing.T) {
	store := &MockStore{getErr: domain.ErrMissingCredentials}
	capturer := &MockCapturer{err: errors.New("browser not logged in")}
	p := usecases.NewCredentialProvider(store, capturer)

	_, err := p.Credentials(context.Background())

	if err == nil || store.failErr == nil {
		t.Fatalf("err = %v, failErr = %v; want both set", err, store.failErr)
	}
	if store.sets != 0 {
		t.Error("failed capture was stored")
	}
}

func TestCredentialProvider_IncompleteCaptureRejected(t *testing.T) {
	store := &MockStore{getErr: domain.ErrMissingCredentials}
	capturer := &MockCapturer{creds: domain.Credentials{Bearer: "only-bearer"}}
	p := usecases.NewCredentialProvider(store, capturer)

	_, err := p.Credentials(context.Background())

	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestCredentialProvider_NoCapturer(t *testing.T) {
	store := &MockStore{getErr: domain.ErrMissingCredentials}
	p := usecases.NewCredentialProvider(store, nil)

	_, err := p.Credentials(context.Background())

	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Errorf("err = %v, want ErrMissingCredentials", err)
	}
}
