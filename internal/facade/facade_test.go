package facade

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"brick/internal/identity"
	"brick/internal/ledger"
	"brick/internal/market"
	"brick/internal/platform/metrics"
	"brick/internal/property"
	"brick/internal/roles"
	"brick/internal/settlement"
	"brick/internal/state"
	"brick/internal/token"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	"brick/pkg/testutil"
)

const (
	admin    = domain.Principal("admin")
	operator = domain.Principal("operator")
	super    = domain.Principal("super")
	manager  = domain.Principal("manager")
	alice    = domain.Principal("alice")
	bob      = domain.Principal("bob")
	treasury = domain.Principal("treasury")
	fees     = domain.Principal("fees")
	usdc     = domain.Asset("USDC")
)

type FacadeSuite struct {
	suite.Suite
	book    *ledger.Book
	metrics *metrics.Metrics
	spans   *tracetest.SpanRecorder
	facade  *Facade
}

func TestFacadeSuite(t *testing.T) {
	suite.Run(t, new(FacadeSuite))
}

func (s *FacadeSuite) SetupTest() {
	store := state.New()
	authority := roles.New(store)
	registry := property.New(store, authority)
	tokens := token.New(store, authority, registry)
	s.book = ledger.NewBook(store)
	mkt := market.New(store, authority, registry, tokens, s.book, market.Config{
		FeeRate:         250,
		FeeCollector:    fees,
		SupportedAssets: []domain.Asset{usdc},
	})
	engine := settlement.New(store, authority, registry, tokens, s.book, settlement.Config{
		PlatformFee:           500,
		DistributionThreshold: 100,
		Treasury:              treasury,
		FeeCollector:          fees,
		RewardAsset:           usdc,
	})

	s.metrics = metrics.New(prometheus.NewRegistry())
	s.spans = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(s.spans))

	s.facade = New(Components{
		Roles:      authority,
		Properties: registry,
		Tokens:     tokens,
		Market:     mkt,
		Settlement: engine,
		Payments:   s.book,
	}, identity.ContextProvider{}, WithMetrics(s.metrics), WithTracerProvider(tp))

	ctx := context.Background()
	s.Require().NoError(authority.Bootstrap(ctx, admin))
	s.Require().NoError(s.facade.GrantRole(testutil.As(admin), roles.Operator, operator))
	s.Require().NoError(s.facade.GrantRole(testutil.As(admin), roles.SuperAdmin, super))
	s.Require().NoError(s.facade.GrantRole(testutil.As(admin), roles.Manager, manager))
	s.Require().NoError(s.book.Deposit(ctx, usdc, bob, 10_000))
	s.Require().NoError(s.book.Deposit(ctx, usdc, treasury, 10_000))
	s.Require().NoError(s.book.Deposit(ctx, usdc, super, 10_000))
}

func (s *FacadeSuite) listProperty(id domain.PropertyID, supply uint64, holder domain.Principal) {
	_, err := s.facade.RegisterProperty(testutil.As(operator), id, "PT", "ipfs://"+string(id))
	s.Require().NoError(err)
	p, err := s.facade.ApproveProperty(testutil.As(super), id)
	s.Require().NoError(err)
	s.Require().Equal(property.StatusApproved, p.Status)
	_, err = s.facade.IssueToken(testutil.As(super), id, "BRK", supply, holder)
	s.Require().NoError(err)
}

func (s *FacadeSuite) cash(p domain.Principal) uint64 {
	bal, err := s.facade.PaymentBalance(context.Background(), usdc, p)
	s.Require().NoError(err)
	return bal
}

func (s *FacadeSuite) span(name string) sdktrace.ReadOnlySpan {
	for _, sp := range s.spans.Ended() {
		if sp.Name() == name {
			return sp
		}
	}
	s.FailNow("span not recorded", name)
	return nil
}

func (s *FacadeSuite) TestTradeThroughFacade() {
	s.listProperty("p1", 1000, alice)

	o, err := s.facade.CreateOrder(testutil.As(alice), "p1", 10, 100, usdc)
	s.Require().NoError(err)
	q, err := s.facade.QuoteOrder(context.Background(), o.ID)
	s.Require().NoError(err)
	s.Equal(uint64(25), q.Fee)

	fill, err := s.facade.FulfillOrder(testutil.As(bob), o.ID)
	s.Require().NoError(err)
	s.Equal(market.OrderFulfilled, fill.Order.Status)
	s.Equal(uint64(975), s.cash(alice))
	s.Equal(uint64(25), s.cash(fees))
	s.Equal(uint64(10), s.facade.TokenBalance(context.Background(), "p1", bob))
	s.Zero(s.facade.GetActiveOrderCount(context.Background()))

	s.Equal(float64(1), promtest.ToFloat64(s.metrics.OrdersCreated))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.OrdersFulfilled))
	s.Equal(float64(25), promtest.ToFloat64(s.metrics.FeesCollected.WithLabelValues("USDC", "marketplace")))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Operations.WithLabelValues("fulfill_order", "ok")))

	sp := s.span("facade.fulfill_order")
	s.NotEqual(otelcodes.Error, sp.Status().Code)
}

func (s *FacadeSuite) TestRedemptionAndRewardsThroughFacade() {
	s.listProperty("p1", 1000, alice)

	r, err := s.facade.RequestRedemption(testutil.As(alice), "p1", 50, usdc)
	s.Require().NoError(err)
	_, err = s.facade.ApproveRedemption(testutil.As(manager), r.ID, 500)
	s.Require().NoError(err)
	r, err = s.facade.CompleteRedemption(testutil.As(manager), r.ID)
	s.Require().NoError(err)
	s.Equal(settlement.RedemptionCompleted, r.Status)
	s.Equal(uint64(950), s.facade.TotalSupply(context.Background(), "p1"))
	s.Equal(uint64(500), s.cash(alice))
	s.Equal(float64(50), promtest.ToFloat64(s.metrics.TokensBurned))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Redemptions.WithLabelValues("completed")))

	d, err := s.facade.DistributeRewards(testutil.As(super), "p1", 1000, "rent")
	s.Require().NoError(err)
	s.Equal(uint64(50), d.FeeAmount)
	s.Equal(uint64(1), d.PerTokenAmount)

	claimed, err := s.facade.ClaimRewards(testutil.As(alice), d.ID)
	s.Require().NoError(err)
	s.Equal(uint64(950), claimed)
	s.Equal(uint64(1450), s.cash(alice))
	s.Equal(float64(950), promtest.ToFloat64(s.metrics.RewardsClaimed.WithLabelValues("USDC")))

	_, err = s.facade.ClaimRewards(testutil.As(alice), d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyClaimed))
}

func (s *FacadeSuite) TestFailuresAreTracedAndCounted() {
	_, err := s.facade.RegisterProperty(testutil.As(operator), "p1", "PT", "")
	s.Require().NoError(err)

	_, err = s.facade.ApproveProperty(testutil.As(bob), "p1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(string(bob), dErrors.EntityOf(err))

	s.Equal(float64(1), promtest.ToFloat64(s.metrics.Operations.WithLabelValues("approve_property", "unauthorized")))
	sp := s.span("facade.approve_property")
	s.Equal(otelcodes.Error, sp.Status().Code)
	s.Equal("unauthorized", sp.Status().Description)

	p, err := s.facade.GetProperty(context.Background(), "p1")
	s.Require().NoError(err)
	s.Equal(property.StatusPending, p.Status)
}

func (s *FacadeSuite) TestCallerMustBeResolved() {
	_, err := s.facade.RegisterProperty(context.Background(), "p1", "PT", "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.facade.CreateOrder(testutil.As(domain.EscrowMarketplace), "p1", 1, 1, usdc)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Zero(s.facade.PropertyCount(context.Background()))
	s.Zero(promtest.ToFloat64(s.metrics.OrdersCreated))
}

func (s *FacadeSuite) TestRoleManagement() {
	s.True(s.facade.HasRole(context.Background(), roles.Manager, manager))
	s.Require().NoError(s.facade.RevokeRole(testutil.As(admin), roles.Manager, manager))
	s.False(s.facade.HasRole(context.Background(), roles.Manager, manager))

	err := s.facade.RenounceRole(testutil.As(admin), roles.DefaultAdmin)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Equal([]domain.Principal{admin}, s.facade.RoleMembers(context.Background(), roles.DefaultAdmin))
}
