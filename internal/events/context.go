package events

import (
	"context"
	"os"
	"sync"
)

type contextKey int

const (
	loggerKey contextKey = iota
	storeKey
)

// FromContext extracts logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// WithLogger adds logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithStore tags the context (and its logger) with the store being operated on.
func WithStore(ctx context.Context, name string) context.Context {
	logger := FromContext(ctx).WithField("store", name)
	ctx = context.WithValue(ctx, storeKey, name)
	return WithLogger(ctx, logger)
}

// GetStore retrieves the store name from context.
func GetStore(ctx context.Context) string {
	if name, ok := ctx.Value(storeKey).(string); ok {
		return name
	}
	return ""
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = &Logger{
		mu:     &sync.Mutex{},
		level:  InfoLevel,
		format: "text",
		output: os.Stderr,
		fields: make(map[string]interface{}),
	}
)

// Default returns the process-wide fallback logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}
