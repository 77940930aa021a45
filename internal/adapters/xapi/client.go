// Package xapi calls the private X GraphQL endpoints with a captured session.
package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

const (
	DefaultBaseURL       = "https://x.com"
	DefaultDeleteQueryID = "VaenaVgh5q5ih7kvyVjgtg"
	DefaultPageSize      = 40

	timelineOperation = "UserTweetsAndReplies"
	deleteOperation   = "DeleteTweet"

	// maxBodySize bounds how much of a response is read.
	maxBodySize = 16 << 20
	// errorBodySize bounds how much of a failed response is kept in StatusError.
	errorBodySize = 512

	// errCodeNoStatus is the GraphQL error X returns for a missing tweet.
	errCodeNoStatus = 144
)

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	BaseURL        string
	DeleteQueryID  string
	PageSize       int
	Language       string // x-twitter-client-language
	AcceptLanguage string
	UserAgent      string
	Timeout        time.Duration

	// RequestInterval is the minimum spacing between any two requests.
	// Zero disables client-side pacing.
	RequestInterval time.Duration

	HTTPClient *http.Client
}

// Client implements usecases.TimelineFetcher and usecases.TweetDeleter.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DeleteQueryID == "" {
		cfg.DeleteQueryID = DefaultDeleteQueryID
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = "en-US,en;q=0.9"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		cfg:        cfg,
	}
}

// timelineVariables is encoded in field order to match the web client.
type timelineVariables struct {
	UserID                 string `json:"userId"`
	Count                  int    `json:"count"`
	Cursor                 string `json:"cursor,omitempty"`
	IncludePromotedContent bool   `json:"includePromotedContent"`
	WithCommunity          bool   `json:"withCommunity"`
	WithVoice              bool   `json:"withVoice"`
}

// leadingVariables matches a captured query string's own variables pair.
var leadingVariables = regexp.MustCompile(`^variables=[^&]*&?`)

// TimelineURL builds the UserTweetsAndReplies request URL for cursor.
func (c *Client) TimelineURL(creds domain.Credentials, cursor string) (string, error) {
	vars, err := json.Marshal(timelineVariables{
		UserID:                 creds.UserID,
		Count:                  c.cfg.PageSize,
		Cursor:                 cursor,
		IncludePromotedContent: true,
		WithCommunity:          true,
		WithVoice:              true,
	})
	if err != nil {
		return "", fmt.Errorf("encode variables: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s/i/api/graphql/%s/%s?variables=%s",
		c.cfg.BaseURL, url.PathEscape(creds.QueryID), timelineOperation, url.QueryEscape(string(vars)))

	if tmpl := leadingVariables.ReplaceAllString(strings.TrimPrefix(creds.QueryTemplate, "?"), ""); tmpl != "" {
		b.WriteByte('&')
		b.WriteString(tmpl)
	}
	return b.String(), nil
}

// FetchTimeline returns the raw body of one timeline page.
func (c *Client) FetchTimeline(ctx context.Context, creds domain.Credentials, cursor string) ([]byte, error) {
	endpoint, err := c.TimelineURL(creds, cursor)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build timeline request: %w", err)
	}
	c.setHeaders(req, creds, creds.TransactionID)

	return c.do(ctx, req, "fetch")
}

type deleteRequest struct {
	Variables struct {
		TweetID     string `json:"tweet_id"`
		DarkRequest bool   `json:"dark_request"`
	} `json:"variables"`
	QueryID string `json:"queryId"`
}

type graphQLErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// DeleteTweet deletes one tweet. A 200 carrying the "no status found"
// GraphQL error is reported as a 404; any other GraphQL error is a
// StatusError with code 200.
func (c *Client) DeleteTweet(ctx context.Context, creds domain.Credentials, tweetID string) error {
	var payload deleteRequest
	payload.Variables.TweetID = tweetID
	payload.QueryID = c.cfg.DeleteQueryID

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode delete request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/i/api/graphql/%s/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.DeleteQueryID), deleteOperation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, creds, NewTransactionID())

	resp, err := c.do(ctx, req, "delete")
	if err != nil {
		return err
	}

	var gqlErrs graphQLErrors
	if json.Unmarshal(resp, &gqlErrs) == nil {
		for _, e := range gqlErrs.Errors {
			if e.Code == errCodeNoStatus {
				return &domain.StatusError{Op: "delete", Code: http.StatusNotFound, Body: e.Message}
			}
		}
		if len(gqlErrs.Errors) > 0 {
			first := gqlErrs.Errors[0]
			log.GlobalWarnCtx(ctx, "delete rejected with graphql error", "tweet_id", tweetID, "code", first.Code, "error", first.Message)
			return &domain.StatusError{Op: "delete", Code: http.StatusOK, Body: first.Message}
		}
	}
	return nil
}

// NewTransactionID returns a random client transaction id in the web client's format.
func NewTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "=="
}

func (c *Client) setHeaders(req *http.Request, creds domain.Credentials, transactionID string) {
	if transactionID == "" {
		transactionID = NewTransactionID()
	}
	h := req.Header
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", c.cfg.AcceptLanguage)
	h.Set("Authorization", bearer(creds.Bearer))
	h.Set("X-Csrf-Token", creds.CSRF)
	h.Set("X-Client-Transaction-Id", transactionID)
	h.Set("X-Twitter-Active-User", "yes")
	h.Set("X-Twitter-Auth-Type", "OAuth2Session")
	h.Set("X-Twitter-Client-Language", c.cfg.Language)
	if c.cfg.UserAgent != "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	if creds.Cookie != "" {
		h.Set("Cookie", creds.Cookie)
	}
}

// bearer accepts both a raw token and a full "Bearer ..." header value.
func bearer(token string) string {
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

// do waits for the limiter, sends req and returns the body of a 2xx response.
// Any other status becomes a *domain.StatusError tagged with op.
func (c *Client) do(ctx context.Context, req *http.Request, op string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", op, err)
	}

	log.GlobalDebugCtx(ctx, "x api call",
		"op", op,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > errorBodySize {
			snippet = snippet[:errorBodySize]
		}
		return nil, &domain.StatusError{Op: op, Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
