package settlement

import (
	"context"
	"log/slog"

	"brick/internal/ledger"
	"brick/internal/roles"
	"brick/internal/state"
	"brick/internal/token"
	"brick/pkg/domain"
	audit "brick/pkg/platform/audit"
)

// Properties reports whether a property accepts redemptions.
type Properties interface {
	IsRedeemable(ctx context.Context, id domain.PropertyID) bool
}

// Tokens is the slice of the token ledger settlement drives.
type Tokens interface {
	Transfer(ctx context.Context, from, to domain.Principal, propertyID domain.PropertyID, amount uint64) error
	Burn(ctx context.Context, holder domain.Principal, propertyID domain.PropertyID, amount uint64) error
	TotalSupply(ctx context.Context, propertyID domain.PropertyID) uint64
	Holders(ctx context.Context, propertyID domain.PropertyID) []token.Holding
}

// Engine runs the redemption workflow and reward distributions.
type Engine struct {
	store      *state.Store
	authority  *roles.Authority
	properties Properties
	tokens     Tokens
	payments   ledger.Ledger
	config     *state.Cell[Config]

	redemptions  *state.Map[domain.RedemptionID, Redemption]
	redemptionBy *state.Map[domain.PropertyID, []domain.RedemptionID]
	redemptionID state.Counter
	pending      state.Counter

	distributions  *state.Map[domain.DistributionID, Distribution]
	distributionBy *state.Map[domain.PropertyID, []domain.DistributionID]
	distributionID state.Counter
	snapshots      *state.Map[holderKey, uint64]
	claims         *state.Map[holderKey, uint64]

	audit  *audit.Recorder
	logger *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAudit(rec *audit.Recorder) Option {
	return func(e *Engine) {
		e.audit = rec
	}
}

func New(store *state.Store, authority *roles.Authority, properties Properties, tokens Tokens, payments ledger.Ledger, initial Config, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		authority:  authority,
		properties: properties,
		tokens:     tokens,
		payments:   payments,
		config:     state.NewCell(store, "settlement_config", initial),

		redemptions:  state.NewMap[domain.RedemptionID, Redemption](store, "redemptions"),
		redemptionBy: state.NewMap[domain.PropertyID, []domain.RedemptionID](store, "redemptions_by_property"),
		redemptionID: state.NewCounter(store, "redemption_seq"),
		pending:      state.NewCounter(store, "redemptions_pending_count"),

		distributions:  state.NewMap[domain.DistributionID, Distribution](store, "distributions"),
		distributionBy: state.NewMap[domain.PropertyID, []domain.DistributionID](store, "distributions_by_property"),
		distributionID: state.NewCounter(store, "distribution_seq"),
		snapshots:      state.NewMap[holderKey, uint64](store, "distribution_snapshots"),
		claims:         state.NewMap[holderKey, uint64](store, "distribution_claims"),

		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the current settlement parameters.
func (e *Engine) Config(ctx context.Context) Config {
	var cfg Config
	_ = e.store.View(ctx, func(context.Context) error {
		cfg = e.config.Get()
		return nil
	})
	return cfg
}
