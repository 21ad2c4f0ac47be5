// Package facade is the single entry point for external callers. Each method
// resolves the caller, opens a span, delegates to the owning component and
// records the outcome. It holds no state of its own.
package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"brick/internal/identity"
	"brick/internal/ledger"
	"brick/internal/market"
	"brick/internal/platform/metrics"
	"brick/internal/property"
	"brick/internal/roles"
	"brick/internal/settlement"
	"brick/internal/token"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
)

const tracerName = "brick/internal/facade"

// Components are the engine services the facade delegates to.
type Components struct {
	Roles      *roles.Authority
	Properties *property.Registry
	Tokens     *token.Ledger
	Market     *market.Marketplace
	Settlement *settlement.Engine
	Payments   ledger.Ledger
}

type Facade struct {
	Components
	identity identity.Provider
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

type Option func(*Facade)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		f.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) {
		f.metrics = m
	}
}

// WithTracerProvider overrides the global provider, mostly for tests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(f *Facade) {
		f.tracer = tp.Tracer(tracerName)
	}
}

func New(c Components, id identity.Provider, opts ...Option) *Facade {
	f := &Facade{Components: c, identity: id}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.metrics == nil {
		f.metrics = metrics.New(prometheus.NewRegistry())
	}
	if f.tracer == nil {
		f.tracer = otel.Tracer(tracerName)
	}
	return f
}

// Caller resolves the principal behind ctx.
func (f *Facade) Caller(ctx context.Context) (domain.Principal, error) {
	return f.identity.CallerPrincipal(ctx)
}

// call runs one mutating operation on behalf of the resolved caller.
func call[T any](ctx context.Context, f *Facade, op string, fn func(ctx context.Context, caller domain.Principal) (T, error), attrs ...attribute.KeyValue) (T, error) {
	start := time.Now()
	ctx, span := f.tracer.Start(ctx, "facade."+op, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
	defer span.End()

	var zero T
	caller, err := f.identity.CallerPrincipal(ctx)
	if err != nil {
		f.finish(ctx, span, op, start, err)
		return zero, err
	}
	span.SetAttributes(attribute.String("brick.caller", string(caller)))

	out, err := fn(ctx, caller)
	f.finish(ctx, span, op, start, err)
	if err != nil {
		return zero, err
	}
	return out, nil
}

// exec is call for operations with no result payload.
func exec(ctx context.Context, f *Facade, op string, fn func(ctx context.Context, caller domain.Principal) error, attrs ...attribute.KeyValue) error {
	_, err := call(ctx, f, op, func(ctx context.Context, caller domain.Principal) (struct{}, error) {
		return struct{}{}, fn(ctx, caller)
	}, attrs...)
	return err
}

func (f *Facade) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		code := dErrors.CodeOf(err)
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		span.SetAttributes(
			attribute.String("brick.error_code", outcome),
			attribute.Bool("brick.retryable", dErrors.Retryable(err)),
		)
		level := slog.LevelInfo
		if code == dErrors.CodeInternal {
			level = slog.LevelError
		}
		f.logger.Log(ctx, level, "operation failed",
			"operation", op,
			"code", outcome,
			"entity_id", dErrors.EntityOf(err),
			"error", err,
		)
	}
	f.metrics.ObserveOperation(op, outcome, time.Since(start))
}

func propertyAttr(id domain.PropertyID) attribute.KeyValue {
	return attribute.String("brick.property_id", string(id))
}

func orderAttr(id domain.OrderID) attribute.KeyValue {
	return attribute.String("brick.order_id", id.String())
}

func redemptionAttr(id domain.RedemptionID) attribute.KeyValue {
	return attribute.String("brick.redemption_id", id.String())
}

func distributionAttr(id domain.DistributionID) attribute.KeyValue {
	return attribute.String("brick.distribution_id", id.String())
}
