// Package cache connects the Redis client shared by sessions, the page cache, rate limits and notifications.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"yatube/internal/middleware"
	"yatube/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const pingTimeout = 5 * time.Second

// instrumentation traces every command and counts failures. A cache miss is not a failure.
type instrumentation struct{}

func (instrumentation) DialHook(next redis.DialHook) redis.DialHook { return next }

func (instrumentation) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := observability.TraceRedisOperation(ctx, cmd.Name())
		defer span.End()
		return observe(span, cmd.Name(), next(ctx, cmd))
	}
}

func (instrumentation) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := observability.TraceRedisOperation(ctx, "pipeline")
		defer span.End()
		return observe(span, "pipeline", next(ctx, cmds))
	}
}

func observe(span trace.Span, op string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	middleware.RedisErrors.WithLabelValues(op).Inc()
	return err
}

func options(url string) (*redis.Options, error) {
	if strings.Contains(url, "://") {
		return redis.ParseURL(url)
	}
	return &redis.Options{Addr: url}, nil
}

// Connect dials Redis at url (host:port or redis:// URL). When Redis is unreachable it logs and
// returns nil; pages are then served uncached and notifications are off.
func Connect(ctx context.Context, url string) *redis.Client {
	opts, err := options(url)
	if err != nil {
		middleware.Logger.Warn("invalid REDIS_URL, page cache disabled", "url", url, "error", err)
		return nil
	}

	c := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		middleware.Logger.Warn("redis unavailable, page cache disabled", "addr", opts.Addr, "error", err)
		_ = c.Close()
		return nil
	}

	c.AddHook(instrumentation{})
	middleware.Logger.Info("redis connected", "addr", opts.Addr)
	return c
}
