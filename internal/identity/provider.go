package identity

import (
	"context"

	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	"brick/pkg/requestcontext"
)

// Provider resolves the principal behind a call. It authenticates; the
// engine only authorizes what it is given.
type Provider interface {
	CallerPrincipal(ctx context.Context) (domain.Principal, error)
}

// ContextProvider trusts a principal an upstream adapter already placed in
// the context.
type ContextProvider struct{}

func (ContextProvider) CallerPrincipal(ctx context.Context) (domain.Principal, error) {
	p, ok := requestcontext.Principal(ctx)
	if !ok || p.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "no caller principal in context")
	}
	if p.IsReserved() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "reserved principal cannot call").WithEntity(p)
	}
	return p, nil
}
