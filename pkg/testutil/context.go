// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"time"

	"brick/pkg/domain"
	"brick/pkg/requestcontext"
)

// As returns a context carrying p as the authenticated caller, the way an
// upstream adapter would hand a call to the facade.
func As(p domain.Principal) context.Context {
	return requestcontext.WithPrincipal(context.Background(), p)
}

// AsAt is As with a pinned request time.
func AsAt(p domain.Principal, at time.Time) context.Context {
	return requestcontext.WithTime(As(p), at)
}
