package stepwise

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/stepwise/algorithm"
)

// Logger wraps slog.Logger with stepwise-specific context.
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
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithJob adds the job name to the logger.
func (l *Logger) WithJob(job string) *Logger {
	return &Logger{Logger: l.Logger.With("job", job)}
}

// WithStep adds a step field to the logger.
func (l *Logger) WithStep(id algorithm.StepID) *Logger {
	return &Logger{Logger: l.Logger.With("step", id.String())}
}

// WithNode adds a node field to the logger.
func (l *Logger) WithNode(node int) *Logger {
	return &Logger{Logger: l.Logger.With("node", node)}
}

// LogStep logs a completed step. node is negative for master steps.
func (l *Logger) LogStep(ctx context.Context, id algorithm.StepID, node int, err error) {
	attrs := []any{"step", id.String()}
	if node >= 0 {
		attrs = append(attrs, "node", node)
	}
	if err != nil {
		if _, phase, ok := algorithm.FailedStep(err); ok {
			attrs = append(attrs, "phase", phase.String())
		}
		l.ErrorContext(ctx, "step failed", append(attrs, "error", err)...)
		return
	}
	l.DebugContext(ctx, "step completed", attrs...)
}

// LogEnvironment logs the computation environment.
func (l *Logger) LogEnvironment(ctx context.Context, env Environment) {
	l.InfoContext(ctx, "environment",
		"cpu", env.CPU,
		"threads", env.NumberOfThreads,
	)
}
