package facade

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"brick/internal/settlement"
	"brick/pkg/domain"
)

func (f *Facade) RequestRedemption(ctx context.Context, propertyID domain.PropertyID, tokenAmount uint64, asset domain.Asset) (*settlement.Redemption, error) {
	r, err := call(ctx, f, "request_redemption", func(ctx context.Context, requester domain.Principal) (*settlement.Redemption, error) {
		return f.Settlement.RequestRedemption(ctx, requester, propertyID, tokenAmount, asset)
	}, propertyAttr(propertyID))
	f.recordRedemption(r, err)
	return r, err
}

// ApproveRedemption fixes the payout. Valuation happens off-engine; the amount
// is taken as given.
func (f *Facade) ApproveRedemption(ctx context.Context, id domain.RedemptionID, payout uint64) (*settlement.Redemption, error) {
	r, err := call(ctx, f, "approve_redemption", func(ctx context.Context, manager domain.Principal) (*settlement.Redemption, error) {
		return f.Settlement.ApproveRedemption(ctx, manager, id, payout)
	}, redemptionAttr(id))
	f.recordRedemption(r, err)
	return r, err
}

func (f *Facade) RejectRedemption(ctx context.Context, id domain.RedemptionID, reason string) (*settlement.Redemption, error) {
	r, err := call(ctx, f, "reject_redemption", func(ctx context.Context, manager domain.Principal) (*settlement.Redemption, error) {
		return f.Settlement.RejectRedemption(ctx, manager, id, reason)
	}, redemptionAttr(id))
	f.recordRedemption(r, err)
	return r, err
}

func (f *Facade) CompleteRedemption(ctx context.Context, id domain.RedemptionID) (*settlement.Redemption, error) {
	r, err := call(ctx, f, "complete_redemption", func(ctx context.Context, manager domain.Principal) (*settlement.Redemption, error) {
		return f.Settlement.CompleteRedemption(ctx, manager, id)
	}, redemptionAttr(id))
	f.recordRedemption(r, err)
	if err == nil {
		f.metrics.RecordRedemptionPayout(string(r.PaymentAsset), r.PayoutAmount, r.TokenAmount)
	}
	return r, err
}

func (f *Facade) CancelRedemption(ctx context.Context, id domain.RedemptionID) (*settlement.Redemption, error) {
	r, err := call(ctx, f, "cancel_redemption", func(ctx context.Context, requester domain.Principal) (*settlement.Redemption, error) {
		return f.Settlement.CancelRedemption(ctx, requester, id)
	}, redemptionAttr(id))
	f.recordRedemption(r, err)
	return r, err
}

func (f *Facade) recordRedemption(r *settlement.Redemption, err error) {
	if err != nil || r == nil {
		return
	}
	f.metrics.RecordRedemption(string(r.Status))
}

func (f *Facade) DistributeRewards(ctx context.Context, propertyID domain.PropertyID, totalAmount uint64, description string) (*settlement.Distribution, error) {
	d, err := call(ctx, f, "distribute_rewards", func(ctx context.Context, caller domain.Principal) (*settlement.Distribution, error) {
		return f.Settlement.DistributeRewards(ctx, caller, propertyID, totalAmount, description)
	}, propertyAttr(propertyID))
	if err == nil {
		f.metrics.RecordDistribution(string(d.PaymentAsset), d.TotalAmount, d.FeeAmount)
	}
	return d, err
}

// ClaimRewards pays the caller's share of a distribution and returns it.
func (f *Facade) ClaimRewards(ctx context.Context, id domain.DistributionID) (uint64, error) {
	var asset domain.Asset
	amount, err := call(ctx, f, "claim_rewards", func(ctx context.Context, holder domain.Principal) (uint64, error) {
		d, err := f.Settlement.GetDistribution(ctx, id)
		if err != nil {
			return 0, err
		}
		asset = d.PaymentAsset
		return f.Settlement.ClaimRewards(ctx, holder, id)
	}, distributionAttr(id))
	if err == nil {
		f.metrics.RecordClaim(string(asset), amount)
	}
	return amount, err
}

func (f *Facade) SetRewardFees(ctx context.Context, platform, maintenance domain.BasisPoints) error {
	return exec(ctx, f, "set_reward_fees", func(ctx context.Context, caller domain.Principal) error {
		return f.Settlement.SetRewardFees(ctx, caller, platform, maintenance)
	}, attribute.Int("brick.platform_fee_bps", int(platform)), attribute.Int("brick.maintenance_fee_bps", int(maintenance)))
}

func (f *Facade) SetDistributionThreshold(ctx context.Context, threshold uint64) error {
	return exec(ctx, f, "set_distribution_threshold", func(ctx context.Context, caller domain.Principal) error {
		return f.Settlement.SetDistributionThreshold(ctx, caller, threshold)
	})
}

func (f *Facade) SetTreasury(ctx context.Context, treasury domain.Principal) error {
	return exec(ctx, f, "set_treasury", func(ctx context.Context, caller domain.Principal) error {
		return f.Settlement.SetTreasury(ctx, caller, treasury)
	})
}

func (f *Facade) GetRedemption(ctx context.Context, id domain.RedemptionID) (*settlement.Redemption, error) {
	return f.Settlement.GetRedemption(ctx, id)
}

func (f *Facade) ListRedemptions(ctx context.Context, propertyID domain.PropertyID) []settlement.Redemption {
	return f.Settlement.ListRedemptionsByProperty(ctx, propertyID)
}

func (f *Facade) PendingRedemptionCount(ctx context.Context) uint64 {
	return f.Settlement.PendingRedemptionCount(ctx)
}

func (f *Facade) GetDistribution(ctx context.Context, id domain.DistributionID) (*settlement.Distribution, error) {
	return f.Settlement.GetDistribution(ctx, id)
}

func (f *Facade) ListDistributions(ctx context.Context, propertyID domain.PropertyID) []settlement.Distribution {
	return f.Settlement.ListDistributions(ctx, propertyID)
}

func (f *Facade) ClaimableRewards(ctx context.Context, holder domain.Principal, id domain.DistributionID) (uint64, error) {
	return f.Settlement.ClaimableRewards(ctx, holder, id)
}

func (f *Facade) SettlementConfig(ctx context.Context) settlement.Config {
	return f.Settlement.Config(ctx)
}
