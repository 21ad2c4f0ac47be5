package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"brick/internal/state"
	"brick/pkg/domain"
)

// Transactional is implemented by ledgers whose transfers join the state
// store's unit of work and roll back with it.
type Transactional interface {
	Transactional() bool
}

// IsTransactional reports whether l rolls back with the unit of work.
func IsTransactional(l Ledger) bool {
	t, ok := l.(Transactional)
	return ok && t.Transactional()
}

// Leg is one settled transfer of a multi-leg movement.
type Leg struct {
	Asset  domain.Asset
	From   domain.Principal
	To     domain.Principal
	Amount uint64
}

// Legs settles the transfers of one movement inside a unit of work. When the
// ledger lives outside the store and the unit rolls back, every settled leg
// is sent back in reverse order so the movement has no net effect.
type Legs struct {
	ledger  Ledger
	logger  *slog.Logger
	settled []Leg
}

// Begin opens a movement in the unit carried by ctx.
func Begin(ctx context.Context, store *state.Store, l Ledger, logger *slog.Logger) *Legs {
	if logger == nil {
		logger = slog.Default()
	}
	legs := &Legs{ledger: l, logger: logger}
	if IsTransactional(l) {
		return legs
	}
	detached := context.WithoutCancel(ctx)
	store.AfterRollback(ctx, func() {
		if len(legs.settled) == 0 {
			return
		}
		n := len(legs.settled)
		if err := legs.Compensate(detached); err != nil {
			legs.logger.ErrorContext(detached, "payment compensation incomplete",
				"legs", n,
				"error", err,
			)
			return
		}
		legs.logger.WarnContext(detached, "payment legs compensated", "legs", n)
	})
	return legs
}

// Transfer moves amount and remembers the leg once the ledger accepts it.
func (l *Legs) Transfer(ctx context.Context, asset domain.Asset, from, to domain.Principal, amount uint64) (Receipt, error) {
	r, err := l.ledger.Transfer(ctx, asset, from, to, amount)
	if err != nil {
		return Receipt{}, err
	}
	l.settled = append(l.settled, Leg{Asset: asset, From: from, To: to, Amount: amount})
	return r, nil
}

// Settled returns the accepted legs in the order they settled.
func (l *Legs) Settled() []Leg {
	return slices.Clone(l.settled)
}

// Compensate transfers every settled leg back, newest first. A leg that
// cannot be reversed is reported and the older ones are still attempted.
func (l *Legs) Compensate(ctx context.Context) error {
	var errs []error
	for i := len(l.settled) - 1; i >= 0; i-- {
		leg := l.settled[i]
		if _, err := l.ledger.Transfer(ctx, leg.Asset, leg.To, leg.From, leg.Amount); err != nil {
			errs = append(errs, fmt.Errorf("reverse %d %s from %s to %s: %w", leg.Amount, leg.Asset, leg.To, leg.From, err))
		}
	}
	l.settled = nil
	return errors.Join(errs...)
}
