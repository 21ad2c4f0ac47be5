package market

import (
	"context"
	"slices"

	"brick/internal/roles"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
)

// SetFeeRate changes the fee applied to future fills.
func (m *Marketplace) SetFeeRate(ctx context.Context, caller domain.Principal, rate domain.BasisPoints) error {
	if rate > MaxFeeRate {
		return dErrors.Newf(dErrors.CodeInvalidArgument, "fee rate %d exceeds %d bps", rate, MaxFeeRate)
	}
	return m.configure(ctx, caller, "fee_rate", func(cfg *Config) {
		cfg.FeeRate = rate
	})
}

func (m *Marketplace) SetFeeCollector(ctx context.Context, caller domain.Principal, collector domain.Principal) error {
	if collector.IsZero() || collector.IsReserved() {
		return dErrors.New(dErrors.CodeInvalidArgument, "fee collector must be an external principal")
	}
	return m.configure(ctx, caller, "fee_collector", func(cfg *Config) {
		cfg.FeeCollector = collector
	})
}

func (m *Marketplace) AddSupportedAsset(ctx context.Context, caller domain.Principal, asset domain.Asset) error {
	if asset == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "asset is required")
	}
	return m.configure(ctx, caller, "asset_added:"+string(asset), func(cfg *Config) {
		if !cfg.supports(asset) {
			cfg.SupportedAssets = append(slices.Clone(cfg.SupportedAssets), asset)
		}
	})
}

// RemoveSupportedAsset stops new orders in asset. Active orders priced in it
// can still be filled or cancelled.
func (m *Marketplace) RemoveSupportedAsset(ctx context.Context, caller domain.Principal, asset domain.Asset) error {
	return m.configure(ctx, caller, "asset_removed:"+string(asset), func(cfg *Config) {
		cfg.SupportedAssets = slices.DeleteFunc(slices.Clone(cfg.SupportedAssets), func(a domain.Asset) bool {
			return a == asset
		})
	})
}

func (m *Marketplace) configure(ctx context.Context, caller domain.Principal, change string, apply func(*Config)) error {
	return m.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := m.authority.Authorize(ctx, caller, roles.SuperAdmin); err != nil {
			return err
		}
		cfg := m.config.Get()
		apply(&cfg)
		m.config.Set(ctx, cfg)
		m.audit.Record(ctx, audit.EventMarketConfigured, audit.Event{
			Actor:      caller,
			EntityType: "market_config",
			EntityID:   "marketplace",
			Reason:     change,
		})
		return nil
	})
}

// Config returns the current configuration.
func (m *Marketplace) Config(ctx context.Context) Config {
	var cfg Config
	_ = m.store.View(ctx, func(context.Context) error {
		cfg = m.config.Get()
		cfg.SupportedAssets = slices.Clone(cfg.SupportedAssets)
		return nil
	})
	return cfg
}

func (m *Marketplace) FeeRate(ctx context.Context) domain.BasisPoints {
	return m.Config(ctx).FeeRate
}

func (m *Marketplace) SupportedAssets(ctx context.Context) []domain.Asset {
	return m.Config(ctx).SupportedAssets
}
