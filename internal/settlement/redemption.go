package settlement

import (
	"context"
	"slices"

	"brick/internal/ledger"
	"brick/internal/roles"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
	"brick/pkg/requestcontext"
)

// RequestRedemption escrows tokenAmount from requester pending a manager
// decision.
func (e *Engine) RequestRedemption(ctx context.Context, requester domain.Principal, propertyID domain.PropertyID, tokenAmount uint64, asset domain.Asset) (*Redemption, error) {
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	if tokenAmount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "token amount must be positive").WithEntity(propertyID)
	}
	if asset == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "payment asset is required").WithEntity(propertyID)
	}

	var out Redemption
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		if !e.properties.IsRedeemable(ctx, propertyID) {
			return dErrors.New(dErrors.CodeInvalidTransition, "property does not accept redemptions").WithEntity(propertyID)
		}
		if err := e.tokens.Transfer(ctx, requester, domain.EscrowRedemption, propertyID, tokenAmount); err != nil {
			return err
		}
		out = Redemption{
			ID:           domain.RedemptionID(e.redemptionID.Next(ctx)),
			PropertyID:   propertyID,
			Requester:    requester,
			TokenAmount:  tokenAmount,
			PaymentAsset: asset,
			Status:       RedemptionPending,
			RequestedAt:  requestcontext.Now(ctx),
		}
		e.redemptions.Put(ctx, out.ID, out)
		ids, _ := e.redemptionBy.Get(propertyID)
		e.redemptionBy.Put(ctx, propertyID, append(slices.Clone(ids), out.ID))
		e.pending.Add(ctx, 1)
		e.recordRedemption(ctx, audit.EventRedemptionRequested, requester, out, tokenAmount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ApproveRedemption records the payout the manager valued the tokens at.
// The amount is a trusted input; valuation happens off-engine.
func (e *Engine) ApproveRedemption(ctx context.Context, manager domain.Principal, id domain.RedemptionID, payout uint64) (*Redemption, error) {
	return e.decide(ctx, manager, id, RedemptionApproved, func(ctx context.Context, r *Redemption) error {
		if payout == 0 {
			return dErrors.New(dErrors.CodeInvalidArgument, "payout must be positive").WithEntity(id)
		}
		now := requestcontext.Now(ctx)
		r.PayoutAmount = payout
		r.ApprovedAt = &now
		e.recordRedemption(ctx, audit.EventRedemptionApproved, manager, *r, payout)
		return nil
	})
}

// RejectRedemption returns the escrowed tokens.
func (e *Engine) RejectRedemption(ctx context.Context, manager domain.Principal, id domain.RedemptionID, reason string) (*Redemption, error) {
	return e.decide(ctx, manager, id, RedemptionRejected, func(ctx context.Context, r *Redemption) error {
		if err := e.tokens.Transfer(ctx, domain.EscrowRedemption, r.Requester, r.PropertyID, r.TokenAmount); err != nil {
			return err
		}
		r.RejectReason = reason
		ev := e.redemptionEvent(manager, *r, r.TokenAmount)
		ev.Reason = reason
		e.audit.Record(ctx, audit.EventRedemptionRejected, ev)
		return nil
	})
}

// CompleteRedemption burns the escrowed tokens and pays the requester from
// the treasury. A failed payment leaves the request Approved and the tokens
// in escrow.
func (e *Engine) CompleteRedemption(ctx context.Context, manager domain.Principal, id domain.RedemptionID) (*Redemption, error) {
	return e.decide(ctx, manager, id, RedemptionCompleted, func(ctx context.Context, r *Redemption) error {
		treasury := e.config.Get().Treasury
		if treasury.IsZero() {
			return dErrors.New(dErrors.CodePaymentFailed, "treasury is not configured").WithEntity(id)
		}
		if err := e.tokens.Burn(ctx, domain.EscrowRedemption, r.PropertyID, r.TokenAmount); err != nil {
			return err
		}
		legs := ledger.Begin(ctx, e.store, e.payments, e.logger)
		if _, err := legs.Transfer(ctx, r.PaymentAsset, treasury, r.Requester, r.PayoutAmount); err != nil {
			return dErrors.Wrap(err, dErrors.CodePaymentFailed, "redemption payout failed").WithEntity(id)
		}
		now := requestcontext.Now(ctx)
		r.CompletedAt = &now
		e.recordRedemption(ctx, audit.EventRedemptionCompleted, manager, *r, r.PayoutAmount)
		return nil
	})
}

// CancelRedemption lets the requester withdraw a pending request.
func (e *Engine) CancelRedemption(ctx context.Context, requester domain.Principal, id domain.RedemptionID) (*Redemption, error) {
	var out Redemption
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		r, err := e.loadRedemption(id)
		if err != nil {
			return err
		}
		if requester.IsZero() || r.Requester != requester {
			return dErrors.New(dErrors.CodeUnauthorized, "only the requester may cancel").WithEntity(id)
		}
		if err := e.move(ctx, &r, RedemptionCancelled, requester); err != nil {
			return err
		}
		if err := e.tokens.Transfer(ctx, domain.EscrowRedemption, r.Requester, r.PropertyID, r.TokenAmount); err != nil {
			return err
		}
		e.redemptions.Put(ctx, id, r)
		e.recordRedemption(ctx, audit.EventRedemptionCancelled, requester, r, r.TokenAmount)
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// decide applies a manager transition and its side effects in one unit.
func (e *Engine) decide(ctx context.Context, manager domain.Principal, id domain.RedemptionID, to RedemptionStatus, effect func(context.Context, *Redemption) error) (*Redemption, error) {
	var out Redemption
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.authority.Authorize(ctx, manager, roles.Manager); err != nil {
			return err
		}
		r, err := e.loadRedemption(id)
		if err != nil {
			return err
		}
		if err := e.move(ctx, &r, to, manager); err != nil {
			return err
		}
		if err := effect(ctx, &r); err != nil {
			return err
		}
		e.redemptions.Put(ctx, id, r)
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "redemption processed",
		"redemption_id", id,
		"status", to,
		"by", manager,
	)
	return &out, nil
}

// move is the single status mutator for redemptions.
func (e *Engine) move(ctx context.Context, r *Redemption, to RedemptionStatus, by domain.Principal) error {
	if !canMove(r.Status, to) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot move redemption from %s to %s", r.Status, to).WithEntity(r.ID)
	}
	if r.Status == RedemptionPending {
		e.pending.Sub(ctx, 1)
	}
	r.Status = to
	r.ProcessedBy = by
	return nil
}

func (e *Engine) loadRedemption(id domain.RedemptionID) (Redemption, error) {
	r, ok := e.redemptions.Get(id)
	if !ok {
		return Redemption{}, dErrors.New(dErrors.CodeNotFound, "redemption not found").WithEntity(id)
	}
	return r, nil
}

func (e *Engine) redemptionEvent(actor domain.Principal, r Redemption, amount uint64) audit.Event {
	return audit.Event{
		Actor:      actor,
		Subject:    r.Requester,
		EntityType: "redemption",
		EntityID:   r.ID.String(),
		PropertyID: r.PropertyID,
		Asset:      r.PaymentAsset,
		Amount:     amount,
	}
}

func (e *Engine) recordRedemption(ctx context.Context, action audit.AuditEvent, actor domain.Principal, r Redemption, amount uint64) {
	e.audit.Record(ctx, action, e.redemptionEvent(actor, r, amount))
}

func (e *Engine) GetRedemption(ctx context.Context, id domain.RedemptionID) (*Redemption, error) {
	var out Redemption
	err := e.store.View(ctx, func(context.Context) error {
		r, err := e.loadRedemption(id)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRedemptionsByProperty returns requests oldest first.
func (e *Engine) ListRedemptionsByProperty(ctx context.Context, propertyID domain.PropertyID) []Redemption {
	var out []Redemption
	_ = e.store.View(ctx, func(context.Context) error {
		ids, _ := e.redemptionBy.Get(propertyID)
		out = make([]Redemption, 0, len(ids))
		for _, id := range ids {
			r, _ := e.redemptions.Get(id)
			out = append(out, r)
		}
		return nil
	})
	return out
}

func (e *Engine) PendingRedemptionCount(ctx context.Context) uint64 {
	var n uint64
	_ = e.store.View(ctx, func(context.Context) error {
		n = e.pending.Get()
		return nil
	})
	return n
}
