package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"brick/pkg/platform/circuit"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	OrdersCreated   prometheus.Counter
	OrdersFulfilled prometheus.Counter
	OrdersCancelled prometheus.Counter
	FeesCollected   *prometheus.CounterVec
	TradedVolume    *prometheus.CounterVec

	Redemptions    *prometheus.CounterVec
	RedemptionPaid *prometheus.CounterVec
	TokensBurned   prometheus.Counter
	RewardsDistrib *prometheus.CounterVec
	RewardsClaimed *prometheus.CounterVec

	TxDuration  prometheus.Histogram
	TxRollbacks prometheus.Counter

	CircuitState *prometheus.GaugeVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_operations_total",
			Help: "Engine operations by name and outcome code",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brick_operation_duration_seconds",
			Help:    "Engine operation latency",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),

		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "brick_orders_created_total",
			Help: "Sell orders created",
		}),
		OrdersFulfilled: f.NewCounter(prometheus.CounterOpts{
			Name: "brick_orders_fulfilled_total",
			Help: "Sell orders fulfilled",
		}),
		OrdersCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "brick_orders_cancelled_total",
			Help: "Sell orders cancelled by their seller",
		}),
		FeesCollected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_fees_collected_total",
			Help: "Fees collected in smallest payment units",
		}, []string{"asset", "source"}),
		TradedVolume: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_traded_volume_total",
			Help: "Settled order totals in smallest payment units",
		}, []string{"asset"}),

		Redemptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_redemptions_total",
			Help: "Redemption transitions by resulting status",
		}, []string{"status"}),
		RedemptionPaid: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_redemption_payouts_total",
			Help: "Redemption payouts in smallest payment units",
		}, []string{"asset"}),
		TokensBurned: f.NewCounter(prometheus.CounterOpts{
			Name: "brick_tokens_burned_total",
			Help: "Property tokens burned by completed redemptions",
		}),
		RewardsDistrib: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_rewards_distributed_total",
			Help: "Reward amounts distributed, before fees",
		}, []string{"asset"}),
		RewardsClaimed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brick_rewards_claimed_total",
			Help: "Reward amounts paid to holders",
		}, []string{"asset"}),

		TxDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "brick_state_tx_duration_seconds",
			Help:    "Time a unit of work held the state lock",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		TxRollbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "brick_state_tx_rollbacks_total",
			Help: "Units of work rolled back",
		}),

		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "brick_circuit_open",
			Help: "1 while the named circuit breaker is open",
		}, []string{"name"}),
	}
}

// ObserveTx records one unit of work. Satisfies state.TxObserver.
func (m *Metrics) ObserveTx(elapsed time.Duration, committed bool) {
	m.TxDuration.Observe(elapsed.Seconds())
	if !committed {
		m.TxRollbacks.Inc()
	}
}

// ObserveOperation records the outcome of one engine call.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementOrdersCreated() {
	m.OrdersCreated.Inc()
}

func (m *Metrics) IncrementOrdersCancelled() {
	m.OrdersCancelled.Inc()
}

// RecordFill counts a settled order and its fee.
func (m *Metrics) RecordFill(asset string, total, fee uint64) {
	m.OrdersFulfilled.Inc()
	m.TradedVolume.WithLabelValues(asset).Add(float64(total))
	m.FeesCollected.WithLabelValues(asset, "marketplace").Add(float64(fee))
}

func (m *Metrics) RecordRedemption(status string) {
	m.Redemptions.WithLabelValues(status).Inc()
}

// RecordRedemptionPayout counts a completed redemption.
func (m *Metrics) RecordRedemptionPayout(asset string, payout, burned uint64) {
	m.RedemptionPaid.WithLabelValues(asset).Add(float64(payout))
	m.TokensBurned.Add(float64(burned))
}

func (m *Metrics) RecordDistribution(asset string, total, fee uint64) {
	m.RewardsDistrib.WithLabelValues(asset).Add(float64(total))
	m.FeesCollected.WithLabelValues(asset, "rewards").Add(float64(fee))
}

func (m *Metrics) RecordClaim(asset string, amount uint64) {
	m.RewardsClaimed.WithLabelValues(asset).Add(float64(amount))
}

// ObserveCircuit tracks breaker transitions. Pass it to circuit.OnStateChange.
func (m *Metrics) ObserveCircuit(name string, s circuit.State) {
	v := 0.0
	if s != circuit.StateClosed {
		v = 1
	}
	m.CircuitState.WithLabelValues(name).Set(v)
}
