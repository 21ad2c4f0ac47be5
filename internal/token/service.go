package token

import (
	"context"
	"log/slog"
	"slices"

	"brick/internal/property"
	"brick/internal/roles"
	"brick/internal/state"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
	"brick/pkg/requestcontext"
)

const maxSymbolLen = 16

// PropertyStatus is the slice of the registry the ledger needs.
type PropertyStatus interface {
	Status(ctx context.Context, id domain.PropertyID) property.Status
}

// Ledger holds one token per approved property.
type Ledger struct {
	store      *state.Store
	authority  *roles.Authority
	properties PropertyStatus
	tokens     *state.Map[domain.PropertyID, Token]
	balances   *state.Map[balanceKey, uint64]
	tallies    *state.Map[domain.PropertyID, tally]
	holders    *state.Map[domain.PropertyID, []domain.Principal]
	audit      *audit.Recorder
	logger     *slog.Logger
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithAudit(rec *audit.Recorder) Option {
	return func(l *Ledger) {
		l.audit = rec
	}
}

func New(store *state.Store, authority *roles.Authority, properties PropertyStatus, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		authority:  authority,
		properties: properties,
		tokens:     state.NewMap[domain.PropertyID, Token](store, "tokens"),
		balances:   state.NewMap[balanceKey, uint64](store, "token_balances"),
		tallies:    state.NewMap[domain.PropertyID, tally](store, "token_tallies"),
		holders:    state.NewMap[domain.PropertyID, []domain.Principal](store, "token_holders"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue creates the token of an approved property and credits the whole
// supply to holder. A property is issued at most once.
func (l *Ledger) Issue(ctx context.Context, caller domain.Principal, propertyID domain.PropertyID, symbol string, supply uint64, holder domain.Principal) (*Token, error) {
	if supply == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "supply must be positive").WithEntity(propertyID)
	}
	if symbol == "" || len(symbol) > maxSymbolLen {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "symbol must be 1-16 characters").WithEntity(propertyID)
	}
	if holder.IsZero() || holder.IsReserved() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "initial holder must be an external principal").WithEntity(propertyID)
	}

	var out Token
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := l.authority.Authorize(ctx, caller, roles.SuperAdmin); err != nil {
			return err
		}
		if l.tokens.Has(propertyID) {
			return dErrors.New(dErrors.CodeAlreadyIssued, "token already issued").WithEntity(propertyID)
		}
		if status := l.properties.Status(ctx, propertyID); status != property.StatusApproved {
			if status == property.StatusNotRegistered {
				return dErrors.New(dErrors.CodeNotFound, "property not found").WithEntity(propertyID)
			}
			return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot issue while property is %s", status).WithEntity(propertyID)
		}
		out = Token{
			PropertyID:  propertyID,
			Symbol:      symbol,
			TotalSupply: supply,
			IssuedBy:    caller,
			IssuedAt:    requestcontext.Now(ctx),
		}
		l.tokens.Put(ctx, propertyID, out)
		l.credit(ctx, propertyID, holder, supply)
		if err := l.checkSupply(propertyID); err != nil {
			return err
		}
		l.audit.Record(ctx, audit.EventTokenIssued, audit.Event{
			Actor:      caller,
			Subject:    holder,
			EntityType: "token",
			EntityID:   string(propertyID),
			PropertyID: propertyID,
			Amount:     supply,
		})
		l.logger.InfoContext(ctx, "token issued",
			"property_id", propertyID,
			"symbol", symbol,
			"supply", supply,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer moves tokens between any two principals, escrow accounts included.
// It performs no role or status check; callers own those decisions.
func (l *Ledger) Transfer(ctx context.Context, from, to domain.Principal, propertyID domain.PropertyID, amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidArgument, "amount must be positive").WithEntity(propertyID)
	}
	if from == to {
		return dErrors.New(dErrors.CodeInvalidArgument, "sender and recipient are the same").WithEntity(propertyID)
	}
	return l.store.RunInTx(ctx, func(ctx context.Context) error {
		if !l.tokens.Has(propertyID) {
			return dErrors.New(dErrors.CodeNotFound, "token not issued").WithEntity(propertyID)
		}
		if err := l.debit(ctx, propertyID, from, amount); err != nil {
			return err
		}
		l.credit(ctx, propertyID, to, amount)
		if err := l.checkSupply(propertyID); err != nil {
			return err
		}
		l.audit.Record(ctx, audit.EventTokenTransferred, audit.Event{
			Actor:      from,
			Subject:    to,
			EntityType: "token",
			EntityID:   string(propertyID),
			PropertyID: propertyID,
			Amount:     amount,
		})
		return nil
	})
}

// TransferAsHolder is the user-facing transfer: tokens of frozen, delisted
// or redeeming properties do not move.
func (l *Ledger) TransferAsHolder(ctx context.Context, caller, to domain.Principal, propertyID domain.PropertyID, amount uint64) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	if to.IsZero() || to.IsReserved() {
		return dErrors.New(dErrors.CodeInvalidArgument, "recipient must be an external principal").WithEntity(propertyID)
	}
	return l.store.RunInTx(ctx, func(ctx context.Context) error {
		if status := l.properties.Status(ctx, propertyID); !status.Tradable() {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "tokens cannot move while property is %s", status).WithEntity(propertyID)
		}
		return l.Transfer(ctx, caller, to, propertyID, amount)
	})
}

// Burn destroys tokens held by holder and shrinks the supply.
func (l *Ledger) Burn(ctx context.Context, holder domain.Principal, propertyID domain.PropertyID, amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidArgument, "amount must be positive").WithEntity(propertyID)
	}
	return l.store.RunInTx(ctx, func(ctx context.Context) error {
		tok, ok := l.tokens.Get(propertyID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "token not issued").WithEntity(propertyID)
		}
		if err := l.debit(ctx, propertyID, holder, amount); err != nil {
			return err
		}
		tok.TotalSupply -= amount
		l.tokens.Put(ctx, propertyID, tok)
		if err := l.checkSupply(propertyID); err != nil {
			return err
		}
		l.audit.Record(ctx, audit.EventTokenBurned, audit.Event{
			Actor:      holder,
			EntityType: "token",
			EntityID:   string(propertyID),
			PropertyID: propertyID,
			Amount:     amount,
		})
		return nil
	})
}

func (l *Ledger) credit(ctx context.Context, propertyID domain.PropertyID, holder domain.Principal, amount uint64) {
	key := balanceKey{PropertyID: propertyID, Holder: holder}
	bal, _ := l.balances.Get(key)
	t, _ := l.tallies.Get(propertyID)
	if bal == 0 {
		t.Holders++
		l.indexHolder(ctx, propertyID, holder, true)
	}
	t.Sum += amount
	l.balances.Put(ctx, key, bal+amount)
	l.tallies.Put(ctx, propertyID, t)
}

func (l *Ledger) debit(ctx context.Context, propertyID domain.PropertyID, holder domain.Principal, amount uint64) error {
	key := balanceKey{PropertyID: propertyID, Holder: holder}
	bal, _ := l.balances.Get(key)
	if bal < amount {
		return dErrors.Newf(dErrors.CodeInsufficientBalance, "balance %d is below %d", bal, amount).WithEntity(propertyID)
	}
	t, _ := l.tallies.Get(propertyID)
	t.Sum -= amount
	if bal == amount {
		t.Holders--
		l.balances.Delete(ctx, key)
		l.indexHolder(ctx, propertyID, holder, false)
	} else {
		l.balances.Put(ctx, key, bal-amount)
	}
	l.tallies.Put(ctx, propertyID, t)
	return nil
}

// indexHolder keeps the per-property holder list sorted. It only changes
// when a balance appears or drops to zero.
func (l *Ledger) indexHolder(ctx context.Context, propertyID domain.PropertyID, holder domain.Principal, present bool) {
	list, _ := l.holders.Get(propertyID)
	i, found := slices.BinarySearch(list, holder)
	switch {
	case present && !found:
		list = slices.Insert(slices.Clone(list), i, holder)
	case !present && found:
		list = slices.Delete(slices.Clone(list), i, i+1)
	default:
		return
	}
	if len(list) == 0 {
		l.holders.Delete(ctx, propertyID)
		return
	}
	l.holders.Put(ctx, propertyID, list)
}

// checkSupply aborts the unit when the running balance sum drifts from supply.
func (l *Ledger) checkSupply(propertyID domain.PropertyID) error {
	tok, _ := l.tokens.Get(propertyID)
	t, _ := l.tallies.Get(propertyID)
	if t.Sum != tok.TotalSupply {
		l.logger.Error("token supply invariant violated",
			"property_id", propertyID,
			"sum", t.Sum,
			"supply", tok.TotalSupply,
		)
		return dErrors.Newf(dErrors.CodeInternal, "balances sum %d != supply %d", t.Sum, tok.TotalSupply).WithEntity(propertyID)
	}
	return nil
}

func (l *Ledger) GetToken(ctx context.Context, propertyID domain.PropertyID) (*Token, error) {
	var out Token
	err := l.store.View(ctx, func(context.Context) error {
		tok, ok := l.tokens.Get(propertyID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "token not issued").WithEntity(propertyID)
		}
		out = tok
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, propertyID domain.PropertyID, holder domain.Principal) uint64 {
	var bal uint64
	_ = l.store.View(ctx, func(context.Context) error {
		bal, _ = l.balances.Get(balanceKey{PropertyID: propertyID, Holder: holder})
		return nil
	})
	return bal
}

// TotalSupply is zero for properties without a token.
func (l *Ledger) TotalSupply(ctx context.Context, propertyID domain.PropertyID) uint64 {
	var supply uint64
	_ = l.store.View(ctx, func(context.Context) error {
		tok, _ := l.tokens.Get(propertyID)
		supply = tok.TotalSupply
		return nil
	})
	return supply
}

func (l *Ledger) HolderCount(ctx context.Context, propertyID domain.PropertyID) uint64 {
	var n uint64
	_ = l.store.View(ctx, func(context.Context) error {
		t, _ := l.tallies.Get(propertyID)
		n = t.Holders
		return nil
	})
	return n
}

// Holders snapshots every non-zero balance of a property, sorted by holder.
// Cost follows the property's own holder count.
func (l *Ledger) Holders(ctx context.Context, propertyID domain.PropertyID) []Holding {
	var out []Holding
	_ = l.store.View(ctx, func(context.Context) error {
		list, _ := l.holders.Get(propertyID)
		out = make([]Holding, 0, len(list))
		for _, h := range list {
			if bal, _ := l.balances.Get(balanceKey{PropertyID: propertyID, Holder: h}); bal > 0 {
				out = append(out, Holding{Holder: h, Balance: bal})
			}
		}
		return nil
	})
	return out
}
