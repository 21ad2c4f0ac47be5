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

// DistributeRewards pulls totalAmount of the reward asset from caller, takes
// the platform and maintenance fees, and snapshots holder balances. The
// per-token share is floored; the remainder stays in the rewards escrow.
func (e *Engine) DistributeRewards(ctx context.Context, caller domain.Principal, propertyID domain.PropertyID, totalAmount uint64, description string) (*Distribution, error) {
	var out Distribution
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.authority.Authorize(ctx, caller, roles.SuperAdmin, roles.Manager); err != nil {
			return err
		}
		cfg := e.config.Get()
		if totalAmount == 0 || totalAmount < cfg.DistributionThreshold {
			return dErrors.Newf(dErrors.CodeBelowThreshold, "amount %d is below threshold %d", totalAmount, cfg.DistributionThreshold).WithEntity(propertyID)
		}
		supply := e.tokens.TotalSupply(ctx, propertyID)
		if supply == 0 {
			return dErrors.New(dErrors.CodeNotFound, "property has no circulating token").WithEntity(propertyID)
		}
		fee := domain.FeeOf(totalAmount, cfg.RewardFee())
		perToken := (totalAmount - fee) / supply
		if perToken == 0 {
			return dErrors.Newf(dErrors.CodeBelowThreshold, "amount %d yields nothing per token over supply %d", totalAmount, supply).WithEntity(propertyID)
		}

		if fee > 0 && cfg.FeeCollector.IsZero() {
			return dErrors.New(dErrors.CodePaymentFailed, "fee collector is not configured").WithEntity(propertyID)
		}

		legs := ledger.Begin(ctx, e.store, e.payments, e.logger)
		if _, err := legs.Transfer(ctx, cfg.RewardAsset, caller, domain.EscrowRewards, totalAmount); err != nil {
			return dErrors.Wrap(err, dErrors.CodePaymentFailed, "reward funding failed").WithEntity(propertyID)
		}
		if fee > 0 {
			if _, err := legs.Transfer(ctx, cfg.RewardAsset, domain.EscrowRewards, cfg.FeeCollector, fee); err != nil {
				return dErrors.Wrap(err, dErrors.CodePaymentFailed, "reward fee transfer failed").WithEntity(propertyID)
			}
		}

		out = Distribution{
			ID:             domain.DistributionID(e.distributionID.Next(ctx)),
			PropertyID:     propertyID,
			PaymentAsset:   cfg.RewardAsset,
			TotalAmount:    totalAmount,
			FeeAmount:      fee,
			PerTokenAmount: perToken,
			TotalSupply:    supply,
			Description:    description,
			DistributedBy:  caller,
			DistributedAt:  requestcontext.Now(ctx),
		}
		for _, h := range e.tokens.Holders(ctx, propertyID) {
			e.snapshots.Put(ctx, holderKey{Distribution: out.ID, Holder: h.Holder}, h.Balance)
		}
		e.distributions.Put(ctx, out.ID, out)
		ids, _ := e.distributionBy.Get(propertyID)
		e.distributionBy.Put(ctx, propertyID, append(slices.Clone(ids), out.ID))

		e.audit.Record(ctx, audit.EventRewardsDistributed, audit.Event{
			Actor:      caller,
			EntityType: "distribution",
			EntityID:   out.ID.String(),
			PropertyID: propertyID,
			Asset:      cfg.RewardAsset,
			Amount:     totalAmount,
			Reason:     description,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "rewards distributed",
		"distribution_id", out.ID,
		"property_id", propertyID,
		"total", totalAmount,
		"fee", out.FeeAmount,
		"per_token", out.PerTokenAmount,
		"retained", out.Retained(),
	)
	return &out, nil
}

// ClaimRewards pays holder its snapshot balance times the per-token share.
// Each holder claims a distribution at most once.
func (e *Engine) ClaimRewards(ctx context.Context, holder domain.Principal, id domain.DistributionID) (uint64, error) {
	if holder.IsZero() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	var amount uint64
	err := e.store.RunInTx(ctx, func(ctx context.Context) error {
		d, err := e.loadDistribution(id)
		if err != nil {
			return err
		}
		key := holderKey{Distribution: id, Holder: holder}
		if e.claims.Has(key) {
			return dErrors.New(dErrors.CodeAlreadyClaimed, "rewards already claimed").WithEntity(id)
		}
		balance, ok := e.snapshots.Get(key)
		if !ok || balance == 0 {
			return dErrors.New(dErrors.CodeNotFound, "no balance at distribution time").WithEntity(id)
		}
		amount = balance * d.PerTokenAmount
		legs := ledger.Begin(ctx, e.store, e.payments, e.logger)
		if _, err := legs.Transfer(ctx, d.PaymentAsset, domain.EscrowRewards, holder, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodePaymentFailed, "reward claim payment failed").WithEntity(id)
		}
		e.claims.Put(ctx, key, amount)
		d.ClaimedAmount += amount
		e.distributions.Put(ctx, id, d)

		e.audit.Record(ctx, audit.EventRewardsClaimed, audit.Event{
			Actor:      holder,
			EntityType: "distribution",
			EntityID:   id.String(),
			PropertyID: d.PropertyID,
			Asset:      d.PaymentAsset,
			Amount:     amount,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

func (e *Engine) loadDistribution(id domain.DistributionID) (Distribution, error) {
	d, ok := e.distributions.Get(id)
	if !ok {
		return Distribution{}, dErrors.New(dErrors.CodeNotFound, "distribution not found").WithEntity(id)
	}
	return d, nil
}

func (e *Engine) GetDistribution(ctx context.Context, id domain.DistributionID) (*Distribution, error) {
	var out Distribution
	err := e.store.View(ctx, func(context.Context) error {
		d, err := e.loadDistribution(id)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDistributions returns a property's distributions oldest first.
func (e *Engine) ListDistributions(ctx context.Context, propertyID domain.PropertyID) []Distribution {
	var out []Distribution
	_ = e.store.View(ctx, func(context.Context) error {
		ids, _ := e.distributionBy.Get(propertyID)
		out = make([]Distribution, 0, len(ids))
		for _, id := range ids {
			d, _ := e.distributions.Get(id)
			out = append(out, d)
		}
		return nil
	})
	return out
}

// ClaimableRewards is what ClaimRewards would pay now; zero once claimed.
func (e *Engine) ClaimableRewards(ctx context.Context, holder domain.Principal, id domain.DistributionID) (uint64, error) {
	var amount uint64
	err := e.store.View(ctx, func(context.Context) error {
		d, err := e.loadDistribution(id)
		if err != nil {
			return err
		}
		key := holderKey{Distribution: id, Holder: holder}
		if e.claims.Has(key) {
			return nil
		}
		balance, _ := e.snapshots.Get(key)
		amount = balance * d.PerTokenAmount
		return nil
	})
	return amount, err
}

func (e *Engine) HasClaimed(ctx context.Context, holder domain.Principal, id domain.DistributionID) bool {
	var ok bool
	_ = e.store.View(ctx, func(context.Context) error {
		ok = e.claims.Has(holderKey{Distribution: id, Holder: holder})
		return nil
	})
	return ok
}
