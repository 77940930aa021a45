package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"tweet-cleaner/internal/domain"
	"tweet-cleaner/pkg/log"
)

// DefaultCaptureTimeout bounds how long Capture waits for a timeline request.
const DefaultCaptureTimeout = 45 * time.Second

// ErrNoTimelineRequest is returned when the page never issued a timeline call.
var ErrNoTimelineRequest = errors.New("no timeline request observed, check that the browser profile is logged in")

// timelineRequest matches the profile timeline GraphQL call and captures
// its query id and raw query string.
var timelineRequest = regexp.MustCompile(`/graphql/([\w-]{20,})/(?:UserTweetsAndReplies|UserTweets)\?(.*)`)

var leadingVariables = regexp.MustCompile(`^variables=[^&]+&`)

// ParseTimelineRequest extracts the query id and the query string template
// (without the leading variables pair) from a timeline request URL.
func ParseTimelineRequest(rawURL string) (queryID, template string, ok bool) {
	m := timelineRequest.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", false
	}
	return m[1], leadingVariables.ReplaceAllString(m[2], ""), true
}

// Cookie is the subset of a browser cookie the capture needs.
type Cookie struct {
	Name  string
	Value string
}

// CredentialsFromRequest assembles a bundle from one observed timeline
// request and the session cookies. The CSRF token falls back to the ct0
// cookie and the user id comes from the twid cookie.
func CredentialsFromRequest(rawURL string, headers map[string]any, cookies []Cookie, now time.Time) (domain.Credentials, error) {
	queryID, tmpl, ok := ParseTimelineRequest(rawURL)
	if !ok {
		return domain.Credentials{}, fmt.Errorf("not a timeline request: %s", rawURL)
	}

	jar := make(map[string]string, len(cookies))
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		jar[c.Name] = c.Value
		pairs = append(pairs, c.Name+"="+c.Value)
	}

	creds := domain.Credentials{
		Bearer:        headerValue(headers, "authorization"),
		CSRF:          headerValue(headers, "x-csrf-token"),
		TransactionID: headerValue(headers, "x-client-transaction-id"),
		QueryID:       queryID,
		QueryTemplate: tmpl,
		UserID:        UserIDFromTwid(jar["twid"]),
		Cookie:        strings.Join(pairs, "; "),
		CapturedAt:    now,
	}
	if creds.CSRF == "" {
		creds.CSRF = jar["ct0"]
	}
	if err := creds.Validate(); err != nil {
		return domain.Credentials{}, fmt.Errorf("%w (bearer=%t csrf=%t user=%t)",
			err, creds.Bearer != "", creds.CSRF != "", creds.UserID != "")
	}
	return creds, nil
}

// UserIDFromTwid decodes a twid cookie value such as "u%3D12345".
func UserIDFromTwid(v string) string {
	if decoded, err := url.QueryUnescape(v); err == nil {
		v = decoded
	}
	return strings.TrimPrefix(strings.Trim(v, `"`), "u=")
}

// headerValue looks a header up case-insensitively.
func headerValue(h map[string]any, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			s, _ := v.(string)
			return s
		}
	}
	return ""
}

// Capturer opens the profile page and records the session bundle used by
// the page's own timeline request.
type Capturer struct {
	pool       *Pool
	profileURL string
	timeout    time.Duration
	now        func() time.Time
}

// NewCapturer creates a Capturer that navigates to profileURL, typically
// https://x.com/<handle>/with_replies.
func NewCapturer(pool *Pool, profileURL string, timeout time.Duration) *Capturer {
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	return &Capturer{pool: pool, profileURL: profileURL, timeout: timeout, now: time.Now}
}

type observedRequest struct {
	url     string
	headers map[string]any
}

// Capture implements usecases.CredentialCapturer.
func (c *Capturer) Capture(ctx context.Context) (domain.Credentials, error) {
	if c.profileURL == "" {
		return domain.Credentials{}, errors.New("capture: profile URL not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var creds domain.Credentials
	err := c.pool.WithTab(ctx, func(tabCtx context.Context) error {
		seen := make(chan observedRequest, 1)
		var once sync.Once

		chromedp.ListenTarget(tabCtx, func(ev any) {
			e, ok := ev.(*network.EventRequestWillBeSent)
			if !ok || e.Request == nil {
				return
			}
			if _, _, match := ParseTimelineRequest(e.Request.URL); !match {
				return
			}
			once.Do(func() {
				seen <- observedRequest{url: e.Request.URL, headers: e.Request.Headers}
			})
		})

		log.GlobalInfoCtx(ctx, "opening profile to capture credentials", "url", c.profileURL)
		if err := chromedp.Run(tabCtx, network.Enable(), chromedp.Navigate(c.profileURL)); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		var req observedRequest
		select {
		case req = <-seen:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrNoTimelineRequest
			}
			return ctx.Err()
		}

		var raw []*network.Cookie
		if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(actx context.Context) error {
			var err error
			raw, err = network.GetCookies().Do(actx)
			return err
		})); err != nil {
			return fmt.Errorf("read cookies: %w", err)
		}
		cookies := make([]Cookie, 0, len(raw))
		for _, rc := range raw {
			cookies = append(cookies, Cookie{Name: rc.Name, Value: rc.Value})
		}

		var err error
		creds, err = CredentialsFromRequest(req.url, req.headers, cookies, c.now())
		return err
	})
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("capture: %w", err)
	}
	return creds, nil
}
