package property

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"brick/internal/roles"
	"brick/internal/state"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	"brick/pkg/requestcontext"
)

const (
	admin    = domain.Principal("admin")
	operator = domain.Principal("operator")
	super    = domain.Principal("super")
	stranger = domain.Principal("stranger")
)

type RegistrySuite struct {
	suite.Suite
	ctx      context.Context
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx := context.Background()
	store := state.New()
	authority := roles.New(store)
	require.NoError(t, authority.Bootstrap(ctx, admin))
	require.NoError(t, authority.GrantRole(ctx, admin, roles.Operator, operator))
	require.NoError(t, authority.GrantRole(ctx, admin, roles.SuperAdmin, super))
	return New(store, authority)
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s.registry = newRegistry(s.T())
}

func (s *RegistrySuite) register(id domain.PropertyID) {
	_, err := s.registry.RegisterProperty(s.ctx, operator, id, "PT", "ipfs://"+string(id))
	s.Require().NoError(err)
}

func (s *RegistrySuite) TestRegisterProperty() {
	s.Run("creates a pending record", func() {
		p, err := s.registry.RegisterProperty(s.ctx, operator, "lisbon-1", "PT", "ipfs://a")
		s.Require().NoError(err)
		s.Equal(StatusPending, p.Status)
		s.Equal(operator, p.RegisteredBy)
		s.Equal(requestcontext.Now(s.ctx), p.RegisteredAt)
	})

	s.Run("duplicate id leaves the first record unchanged", func() {
		_, err := s.registry.RegisterProperty(s.ctx, operator, "lisbon-1", "ES", "ipfs://b")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateProperty))
		s.Equal("lisbon-1", dErrors.EntityOf(err))

		p, err := s.registry.GetProperty(s.ctx, "lisbon-1")
		s.Require().NoError(err)
		s.Equal("PT", p.Country)
		s.Equal("ipfs://a", p.MetadataURI)
		s.Equal(1, s.registry.PropertyCount(s.ctx))
	})

	s.Run("requires operator", func() {
		_, err := s.registry.RegisterProperty(s.ctx, super, "porto-1", "PT", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(StatusNotRegistered, s.registry.Status(s.ctx, "porto-1"))
	})

	s.Run("requires country", func() {
		_, err := s.registry.RegisterProperty(s.ctx, operator, "porto-1", " ", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})
}

func (s *RegistrySuite) TestApproveRequiresPending() {
	s.register("p2")
	_, err := s.registry.ApproveProperty(s.ctx, super, "p2")
	s.Require().NoError(err)

	s.Run("approve does not unfreeze", func() {
		_, err := s.registry.FreezeProperty(s.ctx, super, "p2")
		s.Require().NoError(err)

		_, err = s.registry.ApproveProperty(s.ctx, super, "p2")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		_, err = s.registry.RejectProperty(s.ctx, super, "p2")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		s.Equal(StatusFrozen, s.registry.Status(s.ctx, "p2"))

		_, err = s.registry.UnfreezeProperty(s.ctx, super, "p2")
		s.Require().NoError(err)
	})

	s.Run("approve does not end a redemption window", func() {
		_, err := s.registry.SetPropertyToRedemption(s.ctx, super, "p2")
		s.Require().NoError(err)

		_, err = s.registry.ApproveProperty(s.ctx, super, "p2")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		s.Equal(StatusRedemption, s.registry.Status(s.ctx, "p2"))
	})

	s.Run("approve on approved fails", func() {
		_, err := s.registry.ReinstateFromRedemption(s.ctx, super, "p2")
		s.Require().NoError(err)
		_, err = s.registry.ApproveProperty(s.ctx, super, "p2")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *RegistrySuite) TestLifecycle() {
	s.register("p1")

	s.Run("approve then freeze and unfreeze", func() {
		_, err := s.registry.ApproveProperty(s.ctx, super, "p1")
		s.Require().NoError(err)
		s.True(s.registry.IsTradable(s.ctx, "p1"))

		_, err = s.registry.FreezeProperty(s.ctx, super, "p1")
		s.Require().NoError(err)
		s.False(s.registry.IsTradable(s.ctx, "p1"))
		s.False(s.registry.IsRedeemable(s.ctx, "p1"))

		p, err := s.registry.UnfreezeProperty(s.ctx, super, "p1")
		s.Require().NoError(err)
		s.Equal(StatusApproved, p.Status)
	})

	s.Run("redemption window", func() {
		_, err := s.registry.SetPropertyToRedemption(s.ctx, super, "p1")
		s.Require().NoError(err)
		s.True(s.registry.IsRedeemable(s.ctx, "p1"))
		s.False(s.registry.IsTradable(s.ctx, "p1"))

		_, err = s.registry.UnfreezeProperty(s.ctx, super, "p1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		_, err = s.registry.ReinstateFromRedemption(s.ctx, super, "p1")
		s.Require().NoError(err)
	})

	s.Run("delisted is terminal", func() {
		_, err := s.registry.DelistProperty(s.ctx, super, "p1")
		s.Require().NoError(err)
		for _, op := range []func(context.Context, domain.Principal, domain.PropertyID) (*Property, error){
			s.registry.ApproveProperty,
			s.registry.FreezeProperty,
			s.registry.SetPropertyToRedemption,
			s.registry.UnfreezeProperty,
		} {
			_, err := op(s.ctx, super, "p1")
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		}
		s.True(StatusDelisted.IsTerminal())
		s.True(StatusRejected.IsTerminal())
		s.False(StatusFrozen.IsTerminal())
		s.True(CanTransition(StatusFrozen, StatusApproved))
		s.False(CanTransition(StatusFrozen, StatusRejected))
	})

	s.Run("history records every step", func() {
		trail, err := s.registry.History(s.ctx, "p1")
		s.Require().NoError(err)
		var got []Status
		for _, c := range trail {
			got = append(got, c.To)
		}
		s.Equal([]Status{
			StatusPending, StatusApproved, StatusFrozen, StatusApproved,
			StatusRedemption, StatusApproved, StatusDelisted,
		}, got)
	})
}

func (s *RegistrySuite) TestRejectedIDsAreNotReused() {
	s.register("p2")
	_, err := s.registry.RejectProperty(s.ctx, super, "p2")
	s.Require().NoError(err)

	_, err = s.registry.ApproveProperty(s.ctx, super, "p2")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.registry.RegisterProperty(s.ctx, operator, "p2", "PT", "")
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateProperty))
}

func (s *RegistrySuite) TestTransitionsRequireSuperAdmin() {
	s.register("p3")
	_, err := s.registry.ApproveProperty(s.ctx, operator, "p3")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(StatusPending, s.registry.Status(s.ctx, "p3"))

	_, err = s.registry.ApproveProperty(s.ctx, super, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrySuite) TestUpdateMetadataURI() {
	s.register("p4")
	p, err := s.registry.UpdateMetadataURI(s.ctx, super, "p4", "ipfs://new")
	s.Require().NoError(err)
	s.Equal("ipfs://new", p.MetadataURI)
	s.Equal(StatusPending, p.Status)

	_, err = s.registry.RejectProperty(s.ctx, super, "p4")
	s.Require().NoError(err)
	_, err = s.registry.UpdateMetadataURI(s.ctx, super, "p4", "ipfs://late")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *RegistrySuite) TestPagination() {
	for _, id := range []domain.PropertyID{"a", "b", "c", "d", "e"} {
		s.register(id)
	}
	s.Equal([]domain.PropertyID{"a", "b", "c", "d", "e"}, s.registry.GetAllPropertyIDs(s.ctx))

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []domain.PropertyID
	}{
		{"first page", 0, 2, []domain.PropertyID{"a", "b"}},
		{"middle page", 2, 2, []domain.PropertyID{"c", "d"}},
		{"end is clamped", 3, 10, []domain.PropertyID{"d", "e"}},
		{"offset at length", 5, 2, nil},
		{"offset past length", 9, 2, nil},
		{"zero limit", 1, 0, nil},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			page, err := s.registry.ListProperties(s.ctx, tt.offset, tt.limit)
			s.Require().NoError(err)
			s.NotNil(page)
			var ids []domain.PropertyID
			for _, p := range page {
				ids = append(ids, p.ID)
			}
			s.Equal(tt.want, ids)
		})
	}

	_, err := s.registry.ListProperties(s.ctx, -1, 2)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
}

// Random operation sequences must only ever produce walks of the transition
// table, whatever mix of calls is rejected along the way.
func TestObservedStatusSequenceIsValidWalk(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	ids := []domain.PropertyID{"w1", "w2", "w3"}
	for _, id := range ids {
		_, err := r.RegisterProperty(ctx, operator, id, "PT", "")
		require.NoError(t, err)
	}

	type call struct {
		op Op
		fn func(context.Context, domain.Principal, domain.PropertyID) (*Property, error)
	}
	calls := []call{
		{OpApprove, r.ApproveProperty},
		{OpReject, r.RejectProperty},
		{OpDelist, r.DelistProperty},
		{OpFreeze, r.FreezeProperty},
		{OpUnfreeze, r.UnfreezeProperty},
		{OpToRedemption, r.SetPropertyToRedemption},
		{OpReinstate, r.ReinstateFromRedemption},
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		c := calls[rng.Intn(len(calls))]
		before := r.Status(ctx, id)
		want, ok := MoveOf(c.op)
		require.True(t, ok)

		p, err := c.fn(ctx, super, id)
		if err != nil {
			require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition), "unexpected error %v", err)
			require.NotEqual(t, want.From, before, "%s rejected from its own source status", c.op)
			require.Equal(t, before, r.Status(ctx, id))
			continue
		}
		require.Equal(t, want, Move{From: before, To: p.Status}, "%s moved %s -> %s", c.op, before, p.Status)
	}

	for _, id := range ids {
		trail, err := r.History(ctx, id)
		require.NoError(t, err)
		prev := StatusNotRegistered
		for _, c := range trail {
			require.Equal(t, prev, c.From)
			m, ok := MoveOf(c.Op)
			require.True(t, ok)
			require.Equal(t, m, Move{From: c.From, To: c.To}, "%s recorded %s -> %s", c.Op, c.From, c.To)
			prev = c.To
		}
		require.Equal(t, prev, r.Status(ctx, id))
	}
}
