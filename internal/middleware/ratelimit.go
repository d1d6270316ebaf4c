package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// hitScript counts one hit and starts the window on the first one. Returns {count, pttl}.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

var errNoLimiterStore = errors.New("rate limit store unavailable")

// RateLimitConfig describes one named fixed-window limit.
type RateLimitConfig struct {
	Redis  *redis.Client
	Name   string
	Limit  int
	Window time.Duration
	// Enabled is false in development and tests; see RateLimitEnabled.
	Enabled bool
	// FailClosed answers 503 when Redis cannot be reached instead of letting the request through.
	FailClosed bool
}

// RateLimitEnabled reports whether write limits apply in env.
func RateLimitEnabled(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "test":
		return false
	}
	return true
}

// Hit records one request by subject. When the limit is exceeded it returns false and the time
// left until the window resets.
func (cfg RateLimitConfig) Hit(ctx context.Context, subject string) (bool, time.Duration, error) {
	if cfg.Redis == nil {
		return false, 0, errNoLimiterStore
	}
	key := "ratelimit:" + cfg.Name + ":" + subject

	res, err := hitScript.Run(ctx, cfg.Redis, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		RedisErrors.WithLabelValues("ratelimit").Inc()
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, errors.New("unexpected rate limit reply")
	}
	if res[0] <= int64(cfg.Limit) {
		return true, 0, nil
	}
	return false, time.Duration(res[1]) * time.Millisecond, nil
}

// RateLimit enforces cfg per signed-in user, or per remote IP for anonymous requests.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if uid, ok := CurrentUserID(c); ok {
			subject = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		allowed, retryAfter, err := cfg.Hit(c.UserContext(), subject)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit check failed",
				"limit", cfg.Name, "fail_closed", cfg.FailClosed, "error", err)
			if cfg.FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).SendString("Service temporarily unavailable.")
			}
			return c.Next()
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((retryAfter+time.Second-1)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).SendString("Too many requests, please try again later.")
		}
		return c.Next()
	}
}
