package audit

import (
	"context"
	"errors"

	"brick/pkg/platform/circuit"
)

// ErrSinkUnavailable is returned while a sink's breaker is open; the event is dropped.
var ErrSinkUnavailable = errors.New("audit sink unavailable")

// GuardedStore stops hammering a remote sink that keeps failing.
type GuardedStore struct {
	store   Store
	breaker *circuit.Breaker
}

func NewGuardedStore(store Store, breaker *circuit.Breaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

func (g *GuardedStore) Append(ctx context.Context, event Event) error {
	if !g.breaker.Allow() {
		return ErrSinkUnavailable
	}
	if err := g.store.Append(ctx, event); err != nil {
		g.breaker.RecordFailure()
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}
