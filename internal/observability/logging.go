// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// GlobalLogger is the logger used by repositories and background workers.
var GlobalLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetLogger replaces GlobalLogger, typically with the request-aware application logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = l
	}
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, attrs ...any) {
	l.log(ctx, slog.LevelDebug, "repository create", "create", attrs)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, attrs ...any) {
	l.log(ctx, slog.LevelDebug, "repository update", "update", attrs)
}

// LogDelete logs a repository delete operation.
func (l *RepoLogger) LogDelete(ctx context.Context, attrs ...any) {
	l.log(ctx, slog.LevelDebug, "repository delete", "delete", attrs)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.log(ctx, slog.LevelError, "repository error", operation, []any{slog.String("error", err.Error())})
}

func (l *RepoLogger) log(ctx context.Context, level slog.Level, msg, operation string, attrs []any) {
	all := append([]any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
	}, attrs...)
	GlobalLogger.Log(ctx, level, msg, all...)
}
