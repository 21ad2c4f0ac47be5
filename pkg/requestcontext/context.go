// Package requestcontext provides transport-independent accessors for
// request-scoped values set by inbound adapters and read by the core.
//
// Usage in adapters (set values):
//
//	ctx = requestcontext.WithPrincipal(ctx, principal)
//	ctx = requestcontext.WithBearerToken(ctx, token)
//
// Usage in services (read values):
//
//	now := requestcontext.Now(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"brick/pkg/domain"
)

type (
	principalKey   struct{}
	bearerTokenKey struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Principal returns the caller principal placed by an upstream adapter.
func Principal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok && p != ""
}

// WithPrincipal injects an already authenticated principal.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// BearerToken returns the raw bearer credential, if any.
func BearerToken(ctx context.Context) string {
	if tok, ok := ctx.Value(bearerTokenKey{}).(string); ok {
		return tok
	}
	return ""
}

// WithBearerToken injects a raw bearer credential for token based providers.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// RequestID returns the correlation id for the call, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Now returns the request time when one was injected, otherwise time.Now().
// Every timestamp recorded by a single call should come from here so that a
// unit of work carries one consistent clock reading.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime pins the request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
