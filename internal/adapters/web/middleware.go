package web

import (
	"fmt"
	"sync"
	"time"

	"tweet-cleaner/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// RateLimiter caps how often one IP may start runs within a sliding window.
type RateLimiter struct {
	starts map[string][]time.Time
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		starts: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow records a start for ip and reports whether it is within the limit.
// Rejected attempts are not recorded.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(rl.starts[ip], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.starts[ip] = recent
		return false
	}
	rl.starts[ip] = append(recent, now)
	return true
}

func (rl *RateLimiter) recent(timestamps []time.Time, cutoff time.Time) []time.Time {
	var out []time.Time
	for _, t := range timestamps {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.Allow(c.IP()) {
			log.GlobalWarnCtx(c.UserContext(), "run start rate limited", "ip", c.IP())
			return fail(c, fiber.StatusTooManyRequests, errStartRateLimited)
		}
		return c.Next()
	}
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup periodically removes old entries from the rate limiter.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		cutoff := rl.now().Add(-rl.window)
		for ip, timestamps := range rl.starts {
			if recent := rl.recent(timestamps, cutoff); len(recent) == 0 {
				delete(rl.starts, ip)
			} else {
				rl.starts[ip] = recent
			}
		}
		rl.mu.Unlock()
	}
}

// RequestIDConfig returns the configuration for Fiber's requestid middleware.
// Uses X-Request-ID header, generates UUID if not present.
func RequestIDConfig() requestid.Config {
	return requestid.Config{
		Header:     "X-Request-ID",
		ContextKey: "requestid",
	}
}

// RequestIDToContextMiddleware bridges Fiber's requestid to pkg/log context.
// Must be used AFTER requestid.New() middleware.
func RequestIDToContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Locals("requestid")
		if reqID != nil {
			if id, ok := reqID.(string); ok {
				ctx := log.WithRequestID(c.UserContext(), id)
				c.SetUserContext(ctx)
			}
		}
		return c.Next()
	}
}

// RecoverConfig turns handler panics into 500s and logs them with the request id.
func RecoverConfig() recover.Config {
	return recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			log.GlobalErrorCtx(c.UserContext(), "panic in handler", "panic", fmt.Sprint(e), "path", c.Path())
		},
	}
}

// RequestLoggerMiddleware logs HTTP requests in structured JSON format.
// Metrics scrapes are logged at debug.
// Must be used AFTER RequestIDToContextMiddleware.
func RequestLoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)
		status := c.Response().StatusCode()

		ctx := c.UserContext()
		fields := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"ip", c.IP(),
			"user_agent", c.Get("User-Agent"),
		}
		if err != nil {
			fields = append(fields, "error", err.Error())
		}

		switch {
		case status >= 500:
			log.GlobalErrorCtx(ctx, "request completed", fields...)
		case status >= 400:
			log.GlobalWarnCtx(ctx, "request completed", fields...)
		case c.Path() == "/metrics":
			log.GlobalDebugCtx(ctx, "request completed", fields...)
		default:
			log.GlobalInfoCtx(ctx, "request completed", fields...)
		}

		return err
	}
}
