package reqctx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key int

const requestKey key = 0

// RequestContext identifies one top-level scrape operation
type RequestContext struct {
	RequestID string
	Operation string
	StartTime time.Time
}

// WithRequestContext starts a new operation with a fresh id
func WithRequestContext(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, requestKey, &RequestContext{
		RequestID: uuid.NewString(),
		Operation: operation,
		StartTime: time.Now(),
	})
}

// GetRequestContext returns the operation carried by ctx
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestKey).(*RequestContext); ok {
		return rc
	}
	return &RequestContext{
		RequestID: "unknown",
		StartTime: time.Now(),
	}
}

// Elapsed is the time since the operation started
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}

// Logger returns the global logger tagged with the operation's id
func Logger(ctx context.Context) zerolog.Logger {
	rc := GetRequestContext(ctx)
	l := log.With().Str("request_id", rc.RequestID)
	if rc.Operation != "" {
		l = l.Str("operation", rc.Operation)
	}
	return l.Logger()
}
