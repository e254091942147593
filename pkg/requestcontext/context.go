// Package requestcontext provides transport-independent accessors for the
// execution context of a write: who performed it, which request it belongs to,
// and the clock to stamp it with.
//
// Values are set explicitly by the entry point (CLI command, ingestion job,
// relay) and read by the aggregate when it captures a notification. Nothing in
// this package is process-global; a background worker that needs the values
// rebuilds them from the captured notification.
//
// Usage at an entry point:
//
//	ctx = requestcontext.WithActor(ctx, "migration-job")
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActor       = actorKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// SystemActor attributes writes with no explicit caller.
const SystemActor = "system"

// -----------------------------------------------------------------------------
// Attribution
// -----------------------------------------------------------------------------

// Actor returns the identity the current operation is attributed to.
// Returns SystemActor if not set.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyActor).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// WithActor injects the acting identity into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// -----------------------------------------------------------------------------
// Request tracking
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
// Returns empty string if not set.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Time
// -----------------------------------------------------------------------------

// Now returns the injected time if present, otherwise time.Now().
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Unit tests that need deterministic timestamps
//   - Workers that need consistent time within a batch operation
//   - CLI commands
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
