package metrics

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes used as label values
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

// Feed transfer outcomes used as label values
const (
	FeedStaked   = "staked"
	FeedRejected = "rejected"
)

// LedgerMetrics instruments the request workflow and the reward pool
type LedgerMetrics struct {
	namespace      string
	reg            prometheus.Registerer
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	feedTransfers  *prometheus.CounterVec
	stakedPoints   prometheus.Gauge
	poolBalance    prometheus.Gauge
	poolReserved   prometheus.Gauge
}

// NewLedgerMetrics creates and registers the ledger collectors under namespace
func NewLedgerMetrics(namespace string, reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		namespace: namespace,
		reg:       reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Two-phase requests partitioned by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from issuance to completion of two-phase requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "outcome"},
		),
		feedTransfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_transfers_total",
				Help:      "Transfers read from the registry feed partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		stakedPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "staked_weight_points",
			Help:      "Total weight points of active stake records.",
		}),
		poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_balance",
			Help:      "Reward pool balance in settlement units.",
		}),
		poolReserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserved",
			Help:      "Reward pool amount reserved by outstanding claims.",
		}),
	}

	m.requests = registerOnce(reg, m.requests).(*prometheus.CounterVec)
	m.requestLatency = registerOnce(reg, m.requestLatency).(*prometheus.HistogramVec)
	m.feedTransfers = registerOnce(reg, m.feedTransfers).(*prometheus.CounterVec)
	m.stakedPoints = registerOnce(reg, m.stakedPoints).(prometheus.Gauge)
	m.poolBalance = registerOnce(reg, m.poolBalance).(prometheus.Gauge)
	m.poolReserved = registerOnce(reg, m.poolReserved).(prometheus.Gauge)

	return m
}

// ObserveOutstanding exposes the number of requests awaiting completion, read at scrape time
func (m *LedgerMetrics) ObserveOutstanding(fn func() int) {
	registerOnce(m.reg, prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "requests_outstanding",
			Help:      "Two-phase requests issued and still waiting for their completion.",
		},
		func() float64 { return float64(fn()) },
	))
}

// RequestFinished counts a completed request and observes its latency
func (m *LedgerMetrics) RequestFinished(kind, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(kind, outcome).Inc()
	m.requestLatency.WithLabelValues(kind, outcome).Observe(elapsed.Seconds())
}

// FeedTransfer counts one transfer processed by the feed poller
func (m *LedgerMetrics) FeedTransfer(outcome string) {
	m.feedTransfers.WithLabelValues(outcome).Inc()
}

// SetStakedPoints records the current total weight
func (m *LedgerMetrics) SetStakedPoints(points uint64) {
	m.stakedPoints.Set(float64(points))
}

// SetPool records the pool balance and reservation
func (m *LedgerMetrics) SetPool(balance, reserved *uint256.Int) {
	m.poolBalance.Set(toFloat(balance))
	m.poolReserved.Set(toFloat(reserved))
}

// toFloat is lossy above 2^53; gauges only need magnitude.
func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
