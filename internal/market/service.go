package market

import (
	"context"
	"log/slog"
	"slices"

	"brick/internal/ledger"
	"brick/internal/roles"
	"brick/internal/state"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
	"brick/pkg/requestcontext"
)

// Properties reports whether a property currently trades.
type Properties interface {
	IsTradable(ctx context.Context, id domain.PropertyID) bool
}

// Tokens is the token primitive the marketplace escrows through.
type Tokens interface {
	Transfer(ctx context.Context, from, to domain.Principal, propertyID domain.PropertyID, amount uint64) error
}

// Marketplace is the sell-order book. Fills swap payment for escrowed tokens
// in one unit of work.
type Marketplace struct {
	store      *state.Store
	authority  *roles.Authority
	properties Properties
	tokens     Tokens
	payments   ledger.Ledger

	orders    *state.Map[domain.OrderID, Order]
	bySeller  *state.Map[domain.Principal, []domain.OrderID]
	activeSet *state.Map[domain.OrderID, domain.PropertyID]
	nextID    state.Counter
	active    state.Counter
	config    *state.Cell[Config]

	audit  *audit.Recorder
	logger *slog.Logger
}

type Option func(*Marketplace)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Marketplace) {
		m.logger = logger
	}
}

func WithAudit(rec *audit.Recorder) Option {
	return func(m *Marketplace) {
		m.audit = rec
	}
}

// New registers the marketplace tables. initial seeds the fee configuration
// until a persisted one is restored.
func New(store *state.Store, authority *roles.Authority, properties Properties, tokens Tokens, payments ledger.Ledger, initial Config, opts ...Option) *Marketplace {
	if initial.FeeRate > MaxFeeRate {
		initial.FeeRate = MaxFeeRate
	}
	initial.SupportedAssets = slices.Clone(initial.SupportedAssets)
	m := &Marketplace{
		store:      store,
		authority:  authority,
		properties: properties,
		tokens:     tokens,
		payments:   payments,
		orders:     state.NewMap[domain.OrderID, Order](store, "orders"),
		bySeller:   state.NewMap[domain.Principal, []domain.OrderID](store, "orders_by_seller"),
		activeSet:  state.NewMap[domain.OrderID, domain.PropertyID](store, "orders_active"),
		nextID:     state.NewCounter(store, "order_seq"),
		active:     state.NewCounter(store, "orders_active_count"),
		config:     state.NewCell(store, "market_config", initial),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOrder escrows amount tokens from seller and lists them at unitPrice.
func (m *Marketplace) CreateOrder(ctx context.Context, seller domain.Principal, propertyID domain.PropertyID, amount, unitPrice uint64, asset domain.Asset) (*Order, error) {
	if seller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	if amount == 0 || unitPrice == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "amount and unit price must be positive").WithEntity(propertyID)
	}
	if _, ok := domain.MulAmount(amount, unitPrice); !ok {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "order total overflows").WithEntity(propertyID)
	}

	var out Order
	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		if !m.config.Get().supports(asset) {
			return dErrors.Newf(dErrors.CodeUnsupportedAsset, "asset %q is not accepted", asset).WithEntity(propertyID)
		}
		if !m.properties.IsTradable(ctx, propertyID) {
			return dErrors.New(dErrors.CodeInvalidTransition, "property is not tradable").WithEntity(propertyID)
		}
		if err := m.tokens.Transfer(ctx, seller, domain.EscrowMarketplace, propertyID, amount); err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		out = Order{
			ID:           domain.OrderID(m.nextID.Next(ctx)),
			Seller:       seller,
			PropertyID:   propertyID,
			Amount:       amount,
			UnitPrice:    unitPrice,
			PaymentAsset: asset,
			Status:       OrderActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		m.orders.Put(ctx, out.ID, out)
		m.activeSet.Put(ctx, out.ID, propertyID)
		m.active.Add(ctx, 1)
		ids, _ := m.bySeller.Get(seller)
		m.bySeller.Put(ctx, seller, append(slices.Clone(ids), out.ID))

		m.audit.Record(ctx, audit.EventOrderCreated, audit.Event{
			Actor:      seller,
			EntityType: "order",
			EntityID:   out.ID.String(),
			PropertyID: propertyID,
			Asset:      asset,
			Amount:     amount,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "order created",
		"order_id", out.ID,
		"property_id", propertyID,
		"amount", amount,
		"unit_price", unitPrice,
	)
	return &out, nil
}

// FulfillOrder settles an active order: the buyer's payment is held in escrow
// and released as fee to the collector and the rest to the seller, then the
// escrowed tokens go to the buyer. Any failure undoes the lot, through the
// store rollback and, for a ledger outside the store, compensating transfers.
func (m *Marketplace) FulfillOrder(ctx context.Context, buyer domain.Principal, id domain.OrderID) (*Fill, error) {
	if buyer.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	var fill Fill
	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		o, err := m.activeOrder(id)
		if err != nil {
			return err
		}
		if o.Seller == buyer {
			return dErrors.New(dErrors.CodeInvalidArgument, "seller cannot fill own order").WithEntity(id)
		}
		if !m.properties.IsTradable(ctx, o.PropertyID) {
			return dErrors.New(dErrors.CodeInvalidTransition, "property is not tradable").WithEntity(o.PropertyID)
		}
		cfg := m.config.Get()
		q := quote(o, cfg)
		if q.Fee > 0 && cfg.FeeCollector.IsZero() {
			return dErrors.New(dErrors.CodePaymentFailed, "fee collector is not configured").WithEntity(id)
		}

		// Hold the total in escrow, then release fee and proceeds from it.
		legs := ledger.Begin(ctx, m.store, m.payments, m.logger)
		if err := m.pay(ctx, legs, o, buyer, domain.EscrowMarketplace, q.Total); err != nil {
			return err
		}
		if q.Fee > 0 {
			if err := m.pay(ctx, legs, o, domain.EscrowMarketplace, cfg.FeeCollector, q.Fee); err != nil {
				return err
			}
		}
		if q.SellerProceeds > 0 {
			if err := m.pay(ctx, legs, o, domain.EscrowMarketplace, o.Seller, q.SellerProceeds); err != nil {
				return err
			}
		}
		if err := m.tokens.Transfer(ctx, domain.EscrowMarketplace, buyer, o.PropertyID, o.Amount); err != nil {
			return err
		}

		o.Status = OrderFulfilled
		o.Buyer = buyer
		o.FeeAmount = q.Fee
		o.UpdatedAt = requestcontext.Now(ctx)
		m.close(ctx, o)

		m.audit.Record(ctx, audit.EventOrderFulfilled, audit.Event{
			Actor:      buyer,
			Subject:    o.Seller,
			EntityType: "order",
			EntityID:   id.String(),
			PropertyID: o.PropertyID,
			Asset:      o.PaymentAsset,
			Amount:     q.Total,
		})
		fill = Fill{Order: o, Quote: q}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "order fulfilled",
		"order_id", id,
		"buyer", buyer,
		"total", fill.Quote.Total,
		"fee", fill.Quote.Fee,
	)
	return &fill, nil
}

func (m *Marketplace) pay(ctx context.Context, legs *ledger.Legs, o Order, from, to domain.Principal, amount uint64) error {
	if _, err := legs.Transfer(ctx, o.PaymentAsset, from, to, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodePaymentFailed, "payment transfer failed").WithEntity(o.ID)
	}
	return nil
}

// CancelOrder returns the escrowed tokens to the seller.
func (m *Marketplace) CancelOrder(ctx context.Context, caller domain.Principal, id domain.OrderID) (*Order, error) {
	var out Order
	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		o, err := m.sellerOrder(caller, id)
		if err != nil {
			return err
		}
		if err := m.tokens.Transfer(ctx, domain.EscrowMarketplace, o.Seller, o.PropertyID, o.Amount); err != nil {
			return err
		}
		o.Status = OrderCancelled
		o.UpdatedAt = requestcontext.Now(ctx)
		m.close(ctx, o)
		m.audit.Record(ctx, audit.EventOrderCancelled, audit.Event{
			Actor:      caller,
			EntityType: "order",
			EntityID:   id.String(),
			PropertyID: o.PropertyID,
			Amount:     o.Amount,
		})
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrice reprices an active order.
func (m *Marketplace) UpdatePrice(ctx context.Context, caller domain.Principal, id domain.OrderID, newPrice uint64) (*Order, error) {
	if newPrice == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unit price must be positive").WithEntity(id)
	}
	var out Order
	err := m.store.RunInTx(ctx, func(ctx context.Context) error {
		o, err := m.sellerOrder(caller, id)
		if err != nil {
			return err
		}
		if _, ok := domain.MulAmount(o.Amount, newPrice); !ok {
			return dErrors.New(dErrors.CodeInvalidArgument, "order total overflows").WithEntity(id)
		}
		o.UnitPrice = newPrice
		o.UpdatedAt = requestcontext.Now(ctx)
		m.orders.Put(ctx, id, o)
		m.audit.Record(ctx, audit.EventOrderRepriced, audit.Event{
			Actor:      caller,
			EntityType: "order",
			EntityID:   id.String(),
			PropertyID: o.PropertyID,
			Asset:      o.PaymentAsset,
			Amount:     newPrice,
		})
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Marketplace) activeOrder(id domain.OrderID) (Order, error) {
	o, ok := m.orders.Get(id)
	if !ok {
		return Order{}, dErrors.New(dErrors.CodeNotFound, "order not found").WithEntity(id)
	}
	if o.Status != OrderActive {
		return Order{}, dErrors.Newf(dErrors.CodeOrderNotActive, "order is %s", o.Status).WithEntity(id)
	}
	return o, nil
}

func (m *Marketplace) sellerOrder(caller domain.Principal, id domain.OrderID) (Order, error) {
	o, ok := m.orders.Get(id)
	if !ok {
		return Order{}, dErrors.New(dErrors.CodeNotFound, "order not found").WithEntity(id)
	}
	if caller.IsZero() || o.Seller != caller {
		return Order{}, dErrors.New(dErrors.CodeUnauthorized, "only the seller may change an order").WithEntity(id)
	}
	if o.Status != OrderActive {
		return Order{}, dErrors.Newf(dErrors.CodeOrderNotActive, "order is %s", o.Status).WithEntity(id)
	}
	return o, nil
}

// close records a terminal status and takes the order off the active book.
func (m *Marketplace) close(ctx context.Context, o Order) {
	m.orders.Put(ctx, o.ID, o)
	m.activeSet.Delete(ctx, o.ID)
	m.active.Sub(ctx, 1)
}
