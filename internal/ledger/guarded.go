package ledger

import (
	"context"
	"errors"

	"brick/pkg/domain"
	"brick/pkg/platform/circuit"
)

// ErrUnavailable is returned without calling the ledger while its breaker is open.
var ErrUnavailable = errors.New("payment ledger unavailable")

// Guarded wraps a remote Ledger with a circuit breaker. Business rejections
// (insufficient funds, invalid transfer) are answers, not outages, and do not
// count against the breaker.
type Guarded struct {
	inner   Ledger
	breaker *circuit.Breaker
}

func NewGuarded(inner Ledger, breaker *circuit.Breaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

func (g *Guarded) Transfer(ctx context.Context, asset domain.Asset, from, to domain.Principal, amount uint64) (Receipt, error) {
	if !g.breaker.Allow() {
		return Receipt{}, ErrUnavailable
	}
	r, err := g.inner.Transfer(ctx, asset, from, to, amount)
	g.record(err)
	return r, err
}

func (g *Guarded) BalanceOf(ctx context.Context, asset domain.Asset, principal domain.Principal) (uint64, error) {
	if !g.breaker.Allow() {
		return 0, ErrUnavailable
	}
	bal, err := g.inner.BalanceOf(ctx, asset, principal)
	g.record(err)
	return bal, err
}

// Transactional forwards to the wrapped ledger.
func (g *Guarded) Transactional() bool { return IsTransactional(g.inner) }

func (g *Guarded) record(err error) {
	switch {
	case err == nil, errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInvalidTransfer):
		g.breaker.RecordSuccess()
	default:
		g.breaker.RecordFailure()
	}
}
