package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"brick/internal/facade"
	"brick/internal/identity"
	"brick/internal/ledger"
	"brick/internal/market"
	"brick/internal/platform/config"
	"brick/internal/platform/httpserver"
	"brick/internal/platform/metrics"
	"brick/internal/platform/postgres"
	platformredis "brick/internal/platform/redis"
	"brick/internal/property"
	"brick/internal/roles"
	"brick/internal/settlement"
	"brick/internal/state"
	"brick/internal/state/redisstore"
	"brick/internal/state/sqlite"
	"brick/internal/token"
	"brick/pkg/domain"
	audit "brick/pkg/platform/audit"
	"brick/pkg/platform/audit/publisher"
	kafkastore "brick/pkg/platform/audit/store/kafka"
	auditmemory "brick/pkg/platform/audit/store/memory"
	auditpostgres "brick/pkg/platform/audit/store/postgres"
	"brick/pkg/platform/circuit"
)

// app holds every long-lived dependency of the process.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *state.Store
	book     *ledger.Book
	facade   *facade.Facade
	checks   map[string]httpserver.HealthCheck

	closers []func() error
}

func (a *app) breaker(name string) *circuit.Breaker {
	return circuit.New(name,
		circuit.WithFailureThreshold(5),
		circuit.WithCooldown(30*time.Second),
		circuit.OnStateChange(a.metrics.ObserveCircuit),
	)
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build wires the engine described by cfg. On error, everything acquired so
// far is already released.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		checks:   make(map[string]httpserver.HealthCheck),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	persister, err := a.buildPersister(ctx)
	if err != nil {
		return nil, err
	}
	opts := []state.Option{state.WithObserver(a.metrics), state.WithLogger(logger)}
	if persister != nil {
		opts = append(opts, state.WithPersister(persister))
	}
	a.store = state.New(opts...)

	recorder, err := a.buildAudit(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := buildIdentity(cfg.Auth)
	if err != nil {
		return nil, err
	}

	a.facade, err = a.buildEngine(recorder, provider)
	if err != nil {
		return nil, err
	}

	n, err := a.store.Restore(ctx)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "state restored", "rows", n, "backend", cfg.State.Backend)
	return a, nil
}

func (a *app) buildPersister(ctx context.Context) (state.Persister, error) {
	switch a.cfg.State.Backend {
	case "sqlite":
		s, err := sqlite.Open(a.cfg.State.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onClose(s.Close)
		a.checks["state"] = s.Health
		return s, nil
	case "redis":
		client, err := platformredis.New(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		a.checks["state"] = client.Health
		return redisstore.New(client.Client, redisstore.WithPrefix(a.cfg.State.KeyPrefix)), nil
	default:
		return nil, nil
	}
}

func (a *app) buildAudit(ctx context.Context) (*audit.Recorder, error) {
	var sinks audit.MultiStore
	for _, name := range a.cfg.Audit.Sinks {
		switch name {
		case "memory":
			sinks = append(sinks, auditmemory.NewInMemoryStore())
		case "postgres":
			db, err := postgres.Open(ctx, a.cfg.Audit.PostgresDSN)
			if err != nil {
				return nil, err
			}
			a.onClose(db.Close)
			a.checks["audit_postgres"] = db.PingContext
			s := auditpostgres.New(db)
			if err := s.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			sinks = append(sinks, audit.NewGuardedStore(s, a.breaker("audit_postgres")))
		case "kafka":
			s, err := kafkastore.New(a.cfg.Audit.KafkaBrokers, a.cfg.Audit.KafkaTopic)
			if err != nil {
				return nil, err
			}
			a.onClose(func() error { s.Close(); return nil })
			if err := s.EnsureTopic(ctx, 3, 1); err != nil {
				return nil, err
			}
			sinks = append(sinks, audit.NewGuardedStore(s, a.breaker("audit_kafka")))
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	pub := publisher.NewPublisher(sinks, publisher.WithAsyncBuffer(a.cfg.Audit.AsyncBuffer))
	a.onClose(func() error { pub.Close(); return nil })
	return audit.NewRecorder(pub, a.store, a.logger), nil
}

func buildIdentity(cfg config.Auth) (identity.Provider, error) {
	switch cfg.Mode {
	case "jwt":
		return identity.NewJWTProvider(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience), nil
	case "context":
		return identity.ContextProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

func (a *app) buildEngine(recorder *audit.Recorder, provider identity.Provider) (*facade.Facade, error) {
	marketCfg, settleCfg, err := engineConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	log := a.logger

	authority := roles.New(a.store, roles.WithLogger(log), roles.WithAudit(recorder))
	registry := property.New(a.store, authority, property.WithLogger(log), property.WithAudit(recorder))
	tokens := token.New(a.store, authority, registry, token.WithLogger(log), token.WithAudit(recorder))
	a.book = ledger.NewBook(a.store)
	// The built-in book only answers with business rejections, so this
	// breaker stays closed until a remote Ledger is swapped in behind it.
	// Settlement code already treats the ledger as external: legs are
	// compensated on rollback unless the ledger is transactional.
	payments := ledger.NewGuarded(a.book, a.breaker("payment_ledger"))
	mkt := market.New(a.store, authority, registry, tokens, payments, marketCfg,
		market.WithLogger(log), market.WithAudit(recorder))
	engine := settlement.New(a.store, authority, registry, tokens, payments, settleCfg,
		settlement.WithLogger(log), settlement.WithAudit(recorder))

	return facade.New(facade.Components{
		Roles:      authority,
		Properties: registry,
		Tokens:     tokens,
		Market:     mkt,
		Settlement: engine,
		Payments:   payments,
	}, provider, facade.WithLogger(log), facade.WithMetrics(a.metrics)), nil
}

// engineConfig turns validated process config into the initial component
// configs. Persisted config replaces these on restore.
func engineConfig(cfg config.Config) (market.Config, settlement.Config, error) {
	mc := market.Config{FeeRate: domain.BasisPoints(cfg.Market.FeeRateBps)}
	for _, s := range cfg.Market.SupportedAssets {
		asset, err := domain.ParseAsset(s)
		if err != nil {
			return market.Config{}, settlement.Config{}, err
		}
		mc.SupportedAssets = append(mc.SupportedAssets, asset)
	}
	sc := settlement.Config{
		PlatformFee:           domain.BasisPoints(cfg.Settlement.PlatformFeeBps),
		MaintenanceFee:        domain.BasisPoints(cfg.Settlement.MaintenanceFeeBps),
		DistributionThreshold: cfg.Settlement.DistributionThreshold,
	}
	var err error
	if sc.RewardAsset, err = domain.ParseAsset(cfg.Settlement.RewardAsset); err != nil {
		return market.Config{}, settlement.Config{}, err
	}
	for dst, raw := range map[*domain.Principal]string{
		&mc.FeeCollector: cfg.Market.FeeCollector,
		&sc.FeeCollector: cfg.Settlement.FeeCollector,
		&sc.Treasury:     cfg.Settlement.Treasury,
	} {
		if raw == "" {
			continue
		}
		if *dst, err = domain.ParsePrincipal(raw); err != nil {
			return market.Config{}, settlement.Config{}, err
		}
	}
	return mc, sc, nil
}

// bootstrap installs the first admin once; later starts find it restored.
func (a *app) bootstrap(ctx context.Context) error {
	if a.facade.Roles.Bootstrapped(ctx) {
		return nil
	}
	if a.cfg.BootstrapAdmin == "" {
		a.logger.WarnContext(ctx, "no admin bootstrapped; set BRICK_BOOTSTRAP_ADMIN")
		return nil
	}
	admin, err := domain.ParsePrincipal(a.cfg.BootstrapAdmin)
	if err != nil {
		return err
	}
	if err := a.facade.Roles.Bootstrap(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	a.logger.InfoContext(ctx, "admin bootstrapped", "principal", admin)
	return nil
}
