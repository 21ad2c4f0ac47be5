package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"brick/internal/ledger"
	"brick/internal/ledger/mocks"
	"brick/internal/property"
	"brick/internal/roles"
	"brick/internal/state"
	"brick/internal/token"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
)

const (
	admin     = domain.Principal("admin")
	operator  = domain.Principal("operator")
	super     = domain.Principal("super")
	alice     = domain.Principal("alice")
	bob       = domain.Principal("bob")
	collector = domain.Principal("fees")
	usdc      = domain.Asset("USDC")
)

type fixture struct {
	store     *state.Store
	authority *roles.Authority
	registry  *property.Registry
	tokens    *token.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: state.New()}
	f.authority = roles.New(f.store)
	require.NoError(t, f.authority.Bootstrap(ctx, admin))
	require.NoError(t, f.authority.GrantRole(ctx, admin, roles.Operator, operator))
	require.NoError(t, f.authority.GrantRole(ctx, admin, roles.SuperAdmin, super))
	f.registry = property.New(f.store, f.authority)
	f.tokens = token.New(f.store, f.authority, f.registry)

	_, err := f.registry.RegisterProperty(ctx, operator, "p1", "PT", "")
	require.NoError(t, err)
	_, err = f.registry.ApproveProperty(ctx, super, "p1")
	require.NoError(t, err)
	_, err = f.tokens.Issue(ctx, super, "p1", "LIS1", 1000, alice)
	require.NoError(t, err)
	return f
}

func defaultConfig() Config {
	return Config{FeeRate: 250, FeeCollector: collector, SupportedAssets: []domain.Asset{usdc}}
}

type MarketplaceSuite struct {
	suite.Suite
	ctx    context.Context
	f      *fixture
	book   *ledger.Book
	market *Marketplace
}

func TestMarketplaceSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceSuite))
}

func (s *MarketplaceSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newFixture(s.T())
	s.book = ledger.NewBook(s.f.store)
	s.market = New(s.f.store, s.f.authority, s.f.registry, s.f.tokens, s.book, defaultConfig())
}

func (s *MarketplaceSuite) cash(who domain.Principal) uint64 {
	bal, err := s.book.BalanceOf(s.ctx, usdc, who)
	s.Require().NoError(err)
	return bal
}

func (s *MarketplaceSuite) tokensOf(who domain.Principal) uint64 {
	return s.f.tokens.BalanceOf(s.ctx, "p1", who)
}

func (s *MarketplaceSuite) TestFulfillSplitsFee() {
	s.Require().NoError(s.book.Deposit(s.ctx, usdc, bob, 5000))
	o, err := s.market.CreateOrder(s.ctx, alice, "p1", 10, 100, usdc)
	s.Require().NoError(err)
	s.Equal(uint64(10), s.tokensOf(domain.EscrowMarketplace))

	fill, err := s.market.FulfillOrder(s.ctx, bob, o.ID)
	s.Require().NoError(err)
	s.Equal(uint64(1000), fill.Quote.Total)
	s.Equal(uint64(25), fill.Quote.Fee)
	s.Equal(uint64(975), fill.Quote.SellerProceeds)
	s.Equal(OrderFulfilled, fill.Order.Status)
	s.Equal(bob, fill.Order.Buyer)
	s.Equal(uint64(25), fill.Order.FeeAmount)

	s.Equal(uint64(25), s.cash(collector))
	s.Equal(uint64(975), s.cash(alice))
	s.Equal(uint64(4000), s.cash(bob))
	s.Equal(uint64(10), s.tokensOf(bob))
	s.Zero(s.tokensOf(domain.EscrowMarketplace))
	s.Zero(s.market.GetActiveOrderCount(s.ctx))
}

func (s *MarketplaceSuite) TestDustFeeFloorsToZero() {
	s.Require().NoError(s.book.Deposit(s.ctx, usdc, bob, 1))
	o, err := s.market.CreateOrder(s.ctx, alice, "p1", 1, 1, usdc)
	s.Require().NoError(err)

	fill, err := s.market.FulfillOrder(s.ctx, bob, o.ID)
	s.Require().NoError(err)
	s.Zero(fill.Quote.Fee)
	s.Zero(s.cash(collector))
	s.Equal(uint64(1), s.cash(alice))
}

func (s *MarketplaceSuite) TestPaymentFailureRollsBackEverything() {
	s.Require().NoError(s.book.Deposit(s.ctx, usdc, bob, 500))
	o, err := s.market.CreateOrder(s.ctx, alice, "p1", 10, 100, usdc)
	s.Require().NoError(err)

	_, err = s.market.FulfillOrder(s.ctx, bob, o.ID)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentFailed))
	s.True(dErrors.Retryable(err))
	s.True(errors.Is(err, ledger.ErrInsufficientFunds))
	s.Equal(o.ID.String(), dErrors.EntityOf(err))

	s.Zero(s.cash(collector), "fee leg must be undone")
	s.Equal(uint64(500), s.cash(bob))
	s.Zero(s.cash(alice))
	s.Equal(uint64(10), s.tokensOf(domain.EscrowMarketplace))
	s.Zero(s.tokensOf(bob))

	got, err := s.market.GetOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(OrderActive, got.Status)
	s.Equal(uint64(1), s.market.GetActiveOrderCount(s.ctx))
}

func (s *MarketplaceSuite) TestCancelRestoresBalance() {
	before := s.tokensOf(alice)
	o, err := s.market.CreateOrder(s.ctx, alice, "p1", 100, 7, usdc)
	s.Require().NoError(err)
	s.Equal(before-100, s.tokensOf(alice))
	s.Equal(uint64(1), s.market.GetActiveOrderCount(s.ctx))

	s.Run("only the seller cancels", func() {
		_, err := s.market.CancelOrder(s.ctx, bob, o.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	cancelled, err := s.market.CancelOrder(s.ctx, alice, o.ID)
	s.Require().NoError(err)
	s.Equal(OrderCancelled, cancelled.Status)
	s.Equal(before, s.tokensOf(alice))
	s.Zero(s.market.GetActiveOrderCount(s.ctx))

	s.Run("cancelled orders cannot be filled", func() {
		s.Require().NoError(s.book.Deposit(s.ctx, usdc, bob, 5000))
		_, err := s.market.FulfillOrder(s.ctx, bob, o.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeOrderNotActive))
		s.Equal(uint64(5000), s.cash(bob))
		s.Zero(s.cash(alice))
		s.Equal(before, s.tokensOf(alice))
		s.Zero(s.tokensOf(bob))
	})

	s.Run("cancelled orders cannot be cancelled again", func() {
		_, err := s.market.CancelOrder(s.ctx, alice, o.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeOrderNotActive))
	})
}

func (s *MarketplaceSuite) TestCreateOrderValidation() {
	tests := []struct {
		name   string
		seller domain.Principal
		amount uint64
		price  uint64
		asset  domain.Asset
		code   dErrors.Code
	}{
		{"zero amount", alice, 0, 10, usdc, dErrors.CodeInvalidArgument},
		{"zero price", alice, 10, 0, usdc, dErrors.CodeInvalidArgument},
		{"overflowing total", alice, 2, 1 << 63, usdc, dErrors.CodeInvalidArgument},
		{"unsupported asset", alice, 10, 10, "DOGE", dErrors.CodeUnsupportedAsset},
		{"insufficient tokens", bob, 10, 10, usdc, dErrors.CodeInsufficientBalance},
		{"anonymous seller", "", 10, 10, usdc, dErrors.CodeUnauthorized},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.market.CreateOrder(s.ctx, tt.seller, "p1", tt.amount, tt.price, tt.asset)
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
		})
	}
	s.Zero(s.market.GetActiveOrderCount(s.ctx))
	s.Equal(uint64(1000), s.tokensOf(alice))

	s.Run("frozen property", func() {
		_, err := s.f.registry.FreezeProperty(s.ctx, super, "p1")
		s.Require().NoError(err)
		_, err = s.market.CreateOrder(s.ctx, alice, "p1", 10, 10, usdc)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *MarketplaceSuite) TestFulfillGuards() {
	s.Require().NoError(s.book.Deposit(s.ctx, usdc, bob, 5000))
	o, err := s.market.CreateOrder(s.ctx, alice, "p1", 10, 10, usdc)
	s.Require().NoError(err)

	_, err = s.market.FulfillOrder(s.ctx, alice, o.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))

	_, err = s.market.FulfillOrder(s.ctx, bob, 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.f.registry.FreezeProperty(s.ctx, super, "p1")
	s.Require().NoError(err)
	_, err = s.market.FulfillOrder(s.ctx, bob, o.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	s.Run("frozen orders can still be cancelled", func() {
		_, err := s.market.CancelOrder(s.ctx, alice, o.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1000), s.tokensOf(alice))
	})
}

func (s *MarketplaceSuite) TestUpdatePrice() {
	o, err := s.market.CreateOrder(s.ctx, alice, "p1", 10, 10, usdc)
	s.Require().NoError(err)

	updated, err := s.market.UpdatePrice(s.ctx, alice, o.ID, 40)
	s.Require().NoError(err)
	s.Equal(uint64(40), updated.UnitPrice)

	q, err := s.market.Quote(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(uint64(400), q.Total)
	s.Equal(uint64(10), q.Fee)

	_, err = s.market.UpdatePrice(s.ctx, bob, o.ID, 50)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.market.UpdatePrice(s.ctx, alice, o.ID, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
}

func (s *MarketplaceSuite) TestQueries() {
	var ids []domain.OrderID
	for i := 0; i < 4; i++ {
		o, err := s.market.CreateOrder(s.ctx, alice, "p1", 5, uint64(10+i), usdc)
		s.Require().NoError(err)
		ids = append(ids, o.ID)
	}
	_, err := s.market.CancelOrder(s.ctx, alice, ids[1])
	s.Require().NoError(err)

	s.Equal(uint64(3), s.market.GetActiveOrderCount(s.ctx))
	s.Len(s.market.GetUserOrders(s.ctx, alice), 4)
	s.Empty(s.market.GetUserOrders(s.ctx, bob))

	page, err := s.market.ListActiveOrders(s.ctx, "p1", 1, 10)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[2], page[0].ID)
	s.Equal(ids[3], page[1].ID)

	page, err = s.market.ListActiveOrders(s.ctx, "", 10, 10)
	s.Require().NoError(err)
	s.Empty(page)

	_, err = s.market.Quote(s.ctx, ids[1])
	s.True(dErrors.HasCode(err, dErrors.CodeOrderNotActive))
}

func (s *MarketplaceSuite) TestConfiguration() {
	s.Run("fee rate is capped", func() {
		err := s.market.SetFeeRate(s.ctx, super, 1001)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
		s.Require().NoError(s.market.SetFeeRate(s.ctx, super, 1000))
		s.Equal(domain.BasisPoints(1000), s.market.FeeRate(s.ctx))
	})

	s.Run("requires super admin", func() {
		err := s.market.SetFeeRate(s.ctx, alice, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		err = s.market.AddSupportedAsset(s.ctx, operator, "EURC")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("supported assets", func() {
		s.Require().NoError(s.market.AddSupportedAsset(s.ctx, super, "EURC"))
		s.Require().NoError(s.market.AddSupportedAsset(s.ctx, super, "EURC"))
		s.Equal([]domain.Asset{usdc, "EURC"}, s.market.SupportedAssets(s.ctx))
		s.Require().NoError(s.market.RemoveSupportedAsset(s.ctx, super, usdc))
		_, err := s.market.CreateOrder(s.ctx, alice, "p1", 1, 1, usdc)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsupportedAsset))
	})

	s.Run("collector must be external", func() {
		err := s.market.SetFeeCollector(s.ctx, super, domain.EscrowMarketplace)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
		s.Require().NoError(s.market.SetFeeCollector(s.ctx, super, "treasury"))
		s.Equal(domain.Principal("treasury"), s.market.Config(s.ctx).FeeCollector)
	})
}

func TestFulfillWithFailingLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	payments := mocks.NewMockLedger(ctrl)
	m := New(f.store, f.authority, f.registry, f.tokens, payments, defaultConfig())

	o, err := m.CreateOrder(ctx, alice, "p1", 10, 100, usdc)
	require.NoError(t, err)

	escrow := domain.EscrowMarketplace
	gomock.InOrder(
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, bob, escrow, uint64(1000)).
			Return(ledger.Receipt{Sequence: 1}, nil),
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, escrow, collector, uint64(25)).
			Return(ledger.Receipt{Sequence: 2}, nil),
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, escrow, alice, uint64(975)).
			Return(ledger.Receipt{}, errors.New("upstream ledger unavailable")),
		// the settled legs are sent back newest first
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, collector, escrow, uint64(25)).
			Return(ledger.Receipt{Sequence: 3}, nil),
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, escrow, bob, uint64(1000)).
			Return(ledger.Receipt{Sequence: 4}, nil),
	)

	_, err = m.FulfillOrder(ctx, bob, o.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePaymentFailed))

	got, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderActive, got.Status)
	assert.Empty(t, got.Buyer)
	assert.Equal(t, uint64(10), f.tokens.BalanceOf(ctx, "p1", domain.EscrowMarketplace))
	assert.Zero(t, f.tokens.BalanceOf(ctx, "p1", bob))
	assert.Equal(t, uint64(1), m.GetActiveOrderCount(ctx))
}

// A remote ledger that keeps balances outside the state store.
type remoteLedger struct {
	balances map[domain.Principal]uint64
	failTo   domain.Principal
}

func (r *remoteLedger) Transfer(_ context.Context, _ domain.Asset, from, to domain.Principal, amount uint64) (ledger.Receipt, error) {
	if to == r.failTo {
		return ledger.Receipt{}, errors.New("connection reset")
	}
	if r.balances[from] < amount {
		return ledger.Receipt{}, ledger.ErrInsufficientFunds
	}
	r.balances[from] -= amount
	r.balances[to] += amount
	return ledger.Receipt{}, nil
}

func (r *remoteLedger) BalanceOf(_ context.Context, _ domain.Asset, p domain.Principal) (uint64, error) {
	return r.balances[p], nil
}

func TestFailedFillLeavesRemoteBalancesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	remote := &remoteLedger{balances: map[domain.Principal]uint64{bob: 1000}, failTo: alice}
	m := New(f.store, f.authority, f.registry, f.tokens, remote, defaultConfig())

	o, err := m.CreateOrder(ctx, alice, "p1", 10, 100, usdc)
	require.NoError(t, err)

	_, err = m.FulfillOrder(ctx, bob, o.ID)
	require.True(t, dErrors.HasCode(err, dErrors.CodePaymentFailed))

	assert.Equal(t, uint64(1000), remote.balances[bob])
	assert.Zero(t, remote.balances[collector])
	assert.Zero(t, remote.balances[alice])
	assert.Zero(t, remote.balances[domain.EscrowMarketplace])

	remote.failTo = ""
	fill, err := m.FulfillOrder(ctx, bob, o.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), fill.Quote.Fee)
	assert.Equal(t, uint64(975), remote.balances[alice])
	assert.Equal(t, uint64(25), remote.balances[collector])
	assert.Zero(t, remote.balances[bob])
	assert.Zero(t, remote.balances[domain.EscrowMarketplace])
}

func TestFulfillSkipsZeroFeeLeg(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	payments := mocks.NewMockLedger(ctrl)
	cfg := defaultConfig()
	cfg.FeeRate = 0
	m := New(f.store, f.authority, f.registry, f.tokens, payments, cfg)

	o, err := m.CreateOrder(ctx, alice, "p1", 3, 3, usdc)
	require.NoError(t, err)
	gomock.InOrder(
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, bob, domain.EscrowMarketplace, uint64(9)).
			Return(ledger.Receipt{Sequence: 1}, nil),
		payments.EXPECT().
			Transfer(gomock.Any(), usdc, domain.EscrowMarketplace, alice, uint64(9)).
			Return(ledger.Receipt{Sequence: 2}, nil),
	)

	fill, err := m.FulfillOrder(ctx, bob, o.ID)
	require.NoError(t, err)
	assert.Zero(t, fill.Quote.Fee)
	assert.Equal(t, uint64(3), f.tokens.BalanceOf(ctx, "p1", bob))
}
