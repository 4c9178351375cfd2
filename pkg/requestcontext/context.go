// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets the values; services read them without importing net/http.
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, actorID, domain.RoleNurse, "R. Park")
package requestcontext

import (
	"context"
	"time"

	id "screenflow/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	displayNameKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	deviceKey      struct{}
	clientIPKey    struct{}
)

// -----------------------------------------------------------------------------
// Actor identity (supplied by the identity provider, trusted as-is)
// -----------------------------------------------------------------------------

// ActorID retrieves the authenticated staff member's ID from the context.
// Returns the zero value if not set.
func ActorID(ctx context.Context) id.UserID {
	if actor, ok := ctx.Value(actorIDKey{}).(id.UserID); ok {
		return actor
	}
	return id.UserID{}
}

// Role retrieves the actor's role from the context.
func Role(ctx context.Context) id.Role {
	if role, ok := ctx.Value(actorRoleKey{}).(id.Role); ok {
		return role
	}
	return ""
}

// DisplayName retrieves the actor's display name from the context.
func DisplayName(ctx context.Context) string {
	if name, ok := ctx.Value(displayNameKey{}).(string); ok {
		return name
	}
	return ""
}

// WithActor injects the actor identity into the context. Middleware sets
// this from the identity token; tests set it directly.
func WithActor(ctx context.Context, actor id.UserID, role id.Role, displayName string) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, actor)
	ctx = context.WithValue(ctx, actorRoleKey{}, role)
	return context.WithValue(ctx, displayNameKey{}, displayName)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Device retrieves the normalized device description ("Chrome/mac" style)
// parsed from the User-Agent by the metadata middleware.
func Device(ctx context.Context) string {
	if dev, ok := ctx.Value(deviceKey{}).(string); ok {
		return dev
	}
	return ""
}

// WithDevice injects a normalized device description into the context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects a client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. All operations within a
// single request observe the same "now", which keeps audit timestamps and
// lock expiry checks consistent; tests use it to advance simulated time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
