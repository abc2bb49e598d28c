// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// The authentication middleware sets the actor once per inbound request;
// services read it without importing net/http. The request-scoped clock keeps
// every timestamp written during one operation consistent and lets tests
// inject a fixed time.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithActor(ctx, actor)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "civreg/pkg/domain"
)

// ActorContext is the authenticated identity invoking an operation: who they
// are, what they may do, and which office they act for. Constructed once per
// request by the authentication layer.
type ActorContext struct {
	ID     id.ActorID
	Role   id.Role
	Office id.OfficeID
}

// IsZero reports whether no actor has been attached.
func (a ActorContext) IsZero() bool {
	return a.ID == "" && a.Role == "" && a.Office == ""
}

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

// Actor retrieves the authenticated actor from the context.
// Returns the zero value when not set.
func Actor(ctx context.Context) ActorContext {
	if actor, ok := ctx.Value(ContextKeyActor).(ActorContext); ok {
		return actor
	}
	return ActorContext{}
}

// WithActor injects an actor into the context.
func WithActor(ctx context.Context, actor ActorContext) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers,
// CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain, and for workers that
// need consistent time within a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
