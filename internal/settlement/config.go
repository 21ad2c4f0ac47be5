package settlement

import (
	"context"

	"brick/internal/roles"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
)

// SetRewardFees sets the platform and maintenance fee rates. Their sum may
// not exceed 100%.
func (e *Engine) SetRewardFees(ctx context.Context, caller domain.Principal, platform, maintenance domain.BasisPoints) error {
	if !platform.Valid() || !maintenance.Valid() || !(platform + maintenance).Valid() {
		return dErrors.Newf(dErrors.CodeInvalidArgument, "reward fees %d+%d exceed %d bps", platform, maintenance, domain.MaxBasisPoints)
	}
	return e.configure(ctx, caller, "reward_fees", func(cfg *Config) {
		cfg.PlatformFee = platform
		cfg.MaintenanceFee = maintenance
	})
}

func (e *Engine) SetDistributionThreshold(ctx context.Context, caller domain.Principal, threshold uint64) error {
	return e.configure(ctx, caller, "distribution_threshold", func(cfg *Config) {
		cfg.DistributionThreshold = threshold
	})
}

// SetTreasury names the account redemption payouts are drawn from.
func (e *Engine) SetTreasury(ctx context.Context, caller domain.Principal, treasury domain.Principal) error {
	if treasury.IsZero() || treasury.IsReserved() {
		return dErrors.New(dErrors.CodeInvalidArgument, "treasury must be an external principal")
	}
	return e.configure(ctx, caller, "treasury", func(cfg *Config) {
		cfg.Treasury = treasury
	})
}

func (e *Engine) configure(ctx context.Context, caller domain.Principal, change string, apply func(*Config)) error {
	return e.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.authority.Authorize(ctx, caller, roles.SuperAdmin); err != nil {
			return err
		}
		cfg := e.config.Get()
		apply(&cfg)
		e.config.Set(ctx, cfg)
		e.audit.Record(ctx, audit.EventSettlementConfigured, audit.Event{
			Actor:      caller,
			EntityType: "settlement_config",
			EntityID:   "settlement",
			Reason:     change,
		})
		return nil
	})
}
