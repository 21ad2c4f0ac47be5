package ledger

import (
	"context"
	"errors"
	"fmt"

	"brick/internal/state"
	"brick/pkg/domain"
	"brick/pkg/requestcontext"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransfer   = errors.New("invalid transfer")
)

type accountKey struct {
	Asset     domain.Asset     `json:"asset"`
	Principal domain.Principal `json:"principal"`
}

// Book is the built-in payment ledger. Its accounts live in the state store,
// so transfers made inside a unit of work settle or roll back with it.
type Book struct {
	store    *state.Store
	accounts *state.Map[accountKey, uint64]
	seq      state.Counter
}

func NewBook(store *state.Store) *Book {
	return &Book{
		store:    store,
		accounts: state.NewMap[accountKey, uint64](store, "ledger_accounts"),
		seq:      state.NewCounter(store, "ledger_sequence"),
	}
}

// Transactional reports that Book transfers roll back with the unit of work.
func (b *Book) Transactional() bool { return true }

func (b *Book) Transfer(ctx context.Context, asset domain.Asset, from, to domain.Principal, amount uint64) (Receipt, error) {
	if amount == 0 || from == to || from.IsZero() || to.IsZero() {
		return Receipt{}, fmt.Errorf("%w: %s %d from %q to %q", ErrInvalidTransfer, asset, amount, from, to)
	}
	var receipt Receipt
	err := b.store.RunInTx(ctx, func(ctx context.Context) error {
		src := accountKey{Asset: asset, Principal: from}
		dst := accountKey{Asset: asset, Principal: to}
		have, _ := b.accounts.Get(src)
		if have < amount {
			return fmt.Errorf("%w: %s has %d %s, needs %d", ErrInsufficientFunds, from, have, asset, amount)
		}
		got, _ := b.accounts.Get(dst)
		credited, ok := domain.AddAmount(got, amount)
		if !ok {
			return fmt.Errorf("%w: balance overflow for %s", ErrInvalidTransfer, to)
		}
		b.setBalance(ctx, src, have-amount)
		b.accounts.Put(ctx, dst, credited)
		receipt = Receipt{
			Sequence:  b.seq.Next(ctx),
			Asset:     asset,
			From:      from,
			To:        to,
			Amount:    amount,
			SettledAt: requestcontext.Now(ctx),
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

func (b *Book) BalanceOf(ctx context.Context, asset domain.Asset, principal domain.Principal) (uint64, error) {
	var bal uint64
	err := b.store.View(ctx, func(context.Context) error {
		bal, _ = b.accounts.Get(accountKey{Asset: asset, Principal: principal})
		return nil
	})
	return bal, err
}

// Deposit mints funds into an account, e.g. a treasury top-up.
func (b *Book) Deposit(ctx context.Context, asset domain.Asset, to domain.Principal, amount uint64) error {
	if amount == 0 || to.IsZero() {
		return fmt.Errorf("%w: deposit of %d to %q", ErrInvalidTransfer, amount, to)
	}
	return b.store.RunInTx(ctx, func(ctx context.Context) error {
		key := accountKey{Asset: asset, Principal: to}
		have, _ := b.accounts.Get(key)
		sum, ok := domain.AddAmount(have, amount)
		if !ok {
			return fmt.Errorf("%w: balance overflow for %s", ErrInvalidTransfer, to)
		}
		b.accounts.Put(ctx, key, sum)
		return nil
	})
}

func (b *Book) setBalance(ctx context.Context, key accountKey, v uint64) {
	if v == 0 {
		b.accounts.Delete(ctx, key)
		return
	}
	b.accounts.Put(ctx, key, v)
}
