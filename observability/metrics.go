package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics

	upkeepMetricsOnce sync.Once
	upkeepRegistry    *UpkeepMetrics

	gatewayMetricsOnce sync.Once
	gatewayRegistry    *GatewayMetrics
)

// EngineMetrics wraps collectors tracking lottery engine activity per asset
// pool.
type EngineMetrics struct {
	ticketsSold   *prometheus.CounterVec
	roundsClosed  *prometheus.CounterVec
	prizesClaimed *prometheus.CounterVec
	poolBalance   *prometheus.GaugeVec
	errors        *prometheus.CounterVec
}

// Engine returns the singleton metrics registry for the lottery engine.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			ticketsSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "engine",
				Name:      "tickets_sold_total",
				Help:      "Count of tickets recorded in the ledger segmented by asset pool.",
			}, []string{"asset"}),
			roundsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "engine",
				Name:      "rounds_closed_total",
				Help:      "Count of rounds sealed for the draw segmented by asset pool.",
			}, []string{"asset"}),
			prizesClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "engine",
				Name:      "prizes_claimed_total",
				Help:      "Count of prize claims paid out segmented by asset pool.",
			}, []string{"asset"}),
			poolBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "blocklotto",
				Subsystem: "engine",
				Name:      "pool_balance",
				Help:      "Current open-round pool balance per asset in native units.",
			}, []string{"asset"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Count of rejected engine operations segmented by asset and reason.",
			}, []string{"asset", "reason"}),
		}
		prometheus.MustRegister(
			engineRegistry.ticketsSold,
			engineRegistry.roundsClosed,
			engineRegistry.prizesClaimed,
			engineRegistry.poolBalance,
			engineRegistry.errors,
		)
	})
	return engineRegistry
}

// RecordTickets adds sold tickets to the per-asset counter.
func (m *EngineMetrics) RecordTickets(asset string, count uint32) {
	if m == nil {
		return
	}
	m.ticketsSold.WithLabelValues(labelAsset(asset)).Add(float64(count))
}

// RecordRoundClosed increments the sealed-round counter.
func (m *EngineMetrics) RecordRoundClosed(asset string) {
	if m == nil {
		return
	}
	m.roundsClosed.WithLabelValues(labelAsset(asset)).Inc()
}

// RecordClaim increments the claim counter.
func (m *EngineMetrics) RecordClaim(asset string) {
	if m == nil {
		return
	}
	m.prizesClaimed.WithLabelValues(labelAsset(asset)).Inc()
}

// RecordPoolBalance updates the open-round pool gauge.
func (m *EngineMetrics) RecordPoolBalance(asset string, balance *big.Int) {
	if m == nil {
		return
	}
	m.poolBalance.WithLabelValues(labelAsset(asset)).Set(bigToFloat(balance))
}

// RecordError increments the rejection counter for the supplied reason.
// Reasons should be stable strings such as "round_not_open" so dashboards
// stay consistent.
func (m *EngineMetrics) RecordError(asset, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.errors.WithLabelValues(labelAsset(asset), reason).Inc()
}

// UpkeepMetrics tracks the health of the rotation scheduler.
type UpkeepMetrics struct {
	runs         *prometheus.CounterVec
	duration     prometheus.Histogram
	roundsSealed prometheus.Counter
	roundsIdle   prometheus.Counter
	pauseEngaged prometheus.Gauge
}

// Upkeep exposes the metrics registry for the upkeep scheduler.
func Upkeep() *UpkeepMetrics {
	upkeepMetricsOnce.Do(func() {
		upkeepRegistry = &UpkeepMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "upkeep",
				Name:      "runs_total",
				Help:      "Count of upkeep executions segmented by outcome.",
			}, []string{"outcome"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "blocklotto",
				Subsystem: "upkeep",
				Name:      "run_duration_seconds",
				Help:      "Latency distribution for upkeep executions.",
				Buckets:   prometheus.DefBuckets,
			}),
			roundsSealed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "upkeep",
				Name:      "rounds_sealed_total",
				Help:      "Count of rounds sealed for the draw across all upkeep runs.",
			}),
			roundsIdle: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "upkeep",
				Name:      "rounds_idle_total",
				Help:      "Count of expired rounds skipped because no tickets were sold.",
			}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "blocklotto",
				Subsystem: "upkeep",
				Name:      "pause_engaged",
				Help:      "Indicates whether the emergency pause is active (1) or not (0).",
			}),
		}
		prometheus.MustRegister(
			upkeepRegistry.runs,
			upkeepRegistry.duration,
			upkeepRegistry.roundsSealed,
			upkeepRegistry.roundsIdle,
			upkeepRegistry.pauseEngaged,
		)
	})
	return upkeepRegistry
}

// ObserveRun records one upkeep execution.
func (m *UpkeepMetrics) ObserveRun(d time.Duration, sealed, idle int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
	if sealed > 0 {
		m.roundsSealed.Add(float64(sealed))
	}
	if idle > 0 {
		m.roundsIdle.Add(float64(idle))
	}
}

// SetPause toggles the pause_engaged gauge.
func (m *UpkeepMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

// GatewayMetrics tracks HTTP gateway traffic.
type GatewayMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// Gateway returns the singleton metrics registry for the public gateway.
func Gateway() *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &GatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and outcome.",
			}, []string{"route", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "blocklotto",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "blocklotto",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records the outcome of a gateway request. The status should be the
// HTTP status ultimately written to the response.
func (m *GatewayMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, outcome).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied route.
func (m *GatewayMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.throttles.WithLabelValues(route).Inc()
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
