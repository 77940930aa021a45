// Package config loads process configuration from flags, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"tweet-cleaner/internal/adapters/browser"
	"tweet-cleaner/internal/adapters/xapi"
	"tweet-cleaner/internal/domain"
	"tweet-cleaner/internal/usecases"
	"tweet-cleaner/pkg/log"
)

// Config holds all application configuration with support for environment
// variables and command-line flags.
type Config struct {
	Port        string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	OptionsFile string `long:"options-file" env:"OPTIONS_FILE" default:"./data/options.yaml" description:"YAML file holding the harvest options"`
	JournalPath string `long:"journal" env:"JOURNAL_PATH" description:"Append one NDJSON line per processed tweet to this file (optional)"`
	StartLimit  int    `long:"start-limit" env:"START_LIMIT" default:"5" description:"Run starts allowed per IP per minute"`
	DryRun      bool   `long:"dry-run" description:"cleaner: list matching tweet ids without deleting"`

	Log     LogConfig     `group:"Logging" namespace:"log" env-namespace:"LOG"`
	X       XConfig       `group:"X API" namespace:"x" env-namespace:"X"`
	Browser BrowserConfig `group:"Browser" namespace:"chrome" env-namespace:"CHROME"`
	Session SessionConfig `group:"Session" namespace:"session" env-namespace:"SESSION"`
}

type LogConfig struct {
	Level string `long:"level" env:"LEVEL" default:"info" description:"trace, debug, info, warn or error"`
	File  string `long:"file" env:"FILE" description:"Also write NDJSON logs to this file"`
}

type XConfig struct {
	BaseURL         string        `long:"base-url" env:"BASE_URL" default:"https://x.com" description:"X web origin"`
	DeleteQueryID   string        `long:"delete-query-id" env:"DELETE_QUERY_ID" default:"VaenaVgh5q5ih7kvyVjgtg" description:"GraphQL query id of DeleteTweet"`
	Language        string        `long:"language" env:"LANGUAGE" default:"en" description:"x-twitter-client-language header"`
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" description:"User agent for API calls (optional)"`
	Timeout         time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"Per request timeout"`
	RequestInterval time.Duration `long:"request-interval" env:"REQUEST_INTERVAL" default:"0s" description:"Minimum spacing between API requests"`
	MaxDeleteRetry  int           `long:"max-delete-rate-limit-retries" env:"MAX_DELETE_RATE_LIMIT_RETRIES" default:"0" description:"429 retries per tweet before counting it failed (0 = unlimited)"`
}

type BrowserConfig struct {
	Path           string        `long:"path" env:"PATH" description:"Chrome binary (default: autodetect)"`
	ProfileDir     string        `long:"profile-dir" env:"PROFILE_DIR" default:"./data/chrome-profile" description:"Chrome user data dir holding a logged-in session"`
	RemoteURL      string        `long:"remote-url" env:"REMOTE_URL" description:"Attach to a running Chrome DevTools endpoint instead of starting one"`
	Headless       bool          `long:"headless" env:"HEADLESS" description:"Run Chrome headless"`
	ProfileURL     string        `long:"profile-url" env:"PROFILE_URL" description:"Your profile URL, e.g. https://x.com/you; enables browser capture"`
	CaptureTimeout time.Duration `long:"capture-timeout" env:"CAPTURE_TIMEOUT" default:"45s" description:"How long to wait for a timeline request"`
}

// SessionConfig carries a pasted credential bundle and its freshness limit.
type SessionConfig struct {
	MaxAge        time.Duration `long:"max-age" env:"MAX_AGE" default:"1h" description:"Reject credentials older than this"`
	Bearer        string        `long:"bearer" env:"BEARER" description:"authorization header value"`
	CSRF          string        `long:"csrf" env:"CSRF" description:"x-csrf-token header value (ct0 cookie)"`
	TransactionID string        `long:"transaction-id" env:"TRANSACTION_ID" description:"x-client-transaction-id header value"`
	QueryID       string        `long:"query-id" env:"QUERY_ID" description:"UserTweetsAndReplies query id"`
	QueryTemplate string        `long:"query-template" env:"QUERY_TEMPLATE" description:"Captured timeline query string (features, fieldToggles)"`
	UserID        string        `long:"user-id" env:"USER_ID" description:"Numeric id of the account"`
	Cookie        string        `long:"cookie" env:"COOKIE" description:"Cookie header replayed with API calls"`
}

// Load reads .env files (missing ones are ignored), then parses args over
// the environment. Positional arguments are returned.
func Load(args []string, envFiles ...string) (*Config, []string, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, rest, nil
}

// IsHelp reports whether err is the help request raised by -h.
func IsHelp(err error) bool {
	var fe *flags.Error
	return errors.As(err, &fe) && fe.Type == flags.ErrHelp
}

func (c *Config) validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	if c.StartLimit <= 0 {
		return fmt.Errorf("start limit must be positive, got %d", c.StartLimit)
	}
	if c.X.MaxDeleteRetry < 0 {
		return fmt.Errorf("max delete rate limit retries must not be negative, got %d", c.X.MaxDeleteRetry)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() log.Level {
	lvl, _ := log.ParseLevel(c.Log.Level)
	return lvl
}

// XClient returns the API client configuration.
func (c *Config) XClient() xapi.Config {
	return xapi.Config{
		BaseURL:         c.X.BaseURL,
		DeleteQueryID:   c.X.DeleteQueryID,
		Language:        c.X.Language,
		UserAgent:       c.X.UserAgent,
		Timeout:         c.X.Timeout,
		RequestInterval: c.X.RequestInterval,
	}
}

// DeleteTuning returns the production tuning with the configured 429 cap.
func (c *Config) DeleteTuning() usecases.DeleteTuning {
	t := usecases.DefaultDeleteTuning()
	t.MaxRateLimitRetries = c.X.MaxDeleteRetry
	return t
}

// Pool returns the browser pool configuration.
func (c *Config) Pool() browser.PoolConfig {
	return browser.PoolConfig{
		RemoteURL:  c.Browser.RemoteURL,
		ChromePath: c.Browser.Path,
		ProfileDir: c.Browser.ProfileDir,
		Headless:   c.Browser.Headless,
	}
}

// CaptureEnabled reports whether credentials can be captured from a browser.
func (c *Config) CaptureEnabled() bool {
	return c.Browser.ProfileURL != ""
}

// Credentials returns the bundle given on the command line or environment.
// CapturedAt is stamped with now.
func (c *Config) Credentials(now time.Time) domain.Credentials {
	s := c.Session
	return domain.Credentials{
		Bearer:        s.Bearer,
		CSRF:          s.CSRF,
		TransactionID: s.TransactionID,
		QueryID:       s.QueryID,
		QueryTemplate: s.QueryTemplate,
		UserID:        s.UserID,
		Cookie:        s.Cookie,
		CapturedAt:    now,
	}
}
