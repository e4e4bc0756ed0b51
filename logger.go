package blockpack

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with blockpack-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPartition adds a partition field to the logger.
func (l *Logger) WithPartition(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", id),
	}
}

// WithVectorSize adds a vector_size field to the logger.
func (l *Logger) WithVectorSize(size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("vector_size", size),
	}
}

// LogEncode logs a block encode operation.
func (l *Logger) LogEncode(ctx context.Context, partition string, vectors int, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "block encode failed",
			"partition", partition,
			"vectors", vectors,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "block encoded",
			"partition", partition,
			"vectors", vectors,
			"bytes", bytes,
		)
	}
}

// LogUpload logs a block upload operation.
func (l *Logger) LogUpload(ctx context.Context, partition, object string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "block upload failed",
			"partition", partition,
			"object", object,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "block uploaded",
			"partition", partition,
			"object", object,
			"bytes", bytes,
		)
	}
}

// LogManifestCommit logs a manifest commit.
func (l *Logger) LogManifestCommit(ctx context.Context, id uint64, blocks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "manifest commit failed",
			"manifest_id", id,
			"blocks", blocks,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "manifest committed",
			"manifest_id", id,
			"blocks", blocks,
		)
	}
}
