package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PageCacheConfig configures whole-response caching for a route.
type PageCacheConfig struct {
	Redis *redis.Client
	TTL   time.Duration
	// Prefix namespaces the keys, e.g. "index_page".
	Prefix string
	// CookieName is the session cookie; its value is part of the key so viewers never share pages.
	CookieName string
}

type cachedPage struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// PageCacheKey derives the storage key for a request.
func PageCacheKey(prefix, method, url, accept, session string) string {
	h := sha256.New()
	for _, part := range []string{method, url, accept, session} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// PageCache serves successful GET responses from Redis for TTL. Entries are never
// invalidated on writes, so a page may be stale for up to TTL.
func PageCache(cfg PageCacheConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Redis == nil || cfg.TTL <= 0 || c.Method() != fiber.MethodGet {
			return c.Next()
		}

		ctx := c.UserContext()
		key := PageCacheKey(cfg.Prefix, c.Method(), c.OriginalURL(), c.Get(fiber.HeaderAccept), c.Cookies(cfg.CookieName))

		raw, err := cfg.Redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var page cachedPage
			if jsonErr := json.Unmarshal(raw, &page); jsonErr == nil {
				PageCacheRequests.WithLabelValues("hit").Inc()
				c.Set(fiber.HeaderContentType, page.ContentType)
				c.Set("X-Cache", "HIT")
				return c.Status(fiber.StatusOK).Send(page.Body)
			}
		case errors.Is(err, redis.Nil):
		default:
			PageCacheRequests.WithLabelValues("error").Inc()
			Logger.WarnContext(ctx, "page cache lookup failed", "key", key, "error", err)
			return c.Next()
		}

		PageCacheRequests.WithLabelValues("miss").Inc()
		c.Set("X-Cache", "MISS")
		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}

		payload, err := json.Marshal(cachedPage{
			ContentType: string(c.Response().Header.ContentType()),
			Body:        c.Response().Body(),
		})
		if err != nil {
			return nil
		}
		if err := cfg.Redis.Set(ctx, key, payload, cfg.TTL).Err(); err != nil {
			Logger.WarnContext(ctx, "page cache store failed", "key", key, "error", err)
			return nil
		}
		PageCacheRequests.WithLabelValues("store").Inc()
		return nil
	}
}
