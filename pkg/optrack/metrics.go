// © 2025 optrack authors. MIT License.
package optrack

// metrics.go is a thin abstraction over Prometheus, exactly shaped like the
// teacher's pkg/metrics.go: when the caller passes a *prometheus.Registry
// via WithMetrics, Register/Unregister/history eviction update labeled
// metrics; otherwise a no-op sink is used and the hot path pays nothing.
//
// ┌──────────────────────────────────┬───────┬────────┐
// │ Metric                           │ Type  │ Labels │
// ├──────────────────────────────────┼───────┼────────┤
// │ optrack_registered_total         │ Ctr   │ shard  │
// │ optrack_unregistered_total       │ Ctr   │ shard  │
// │ optrack_in_flight                │ Gge   │ shard  │
// │ optrack_history_size             │ Gge   │ -      │
// │ optrack_slow_warnings_total      │ Ctr   │ -      │
// │ optrack_history_evictions_total  │ Ctr   │ -      │
// └──────────────────────────────────┴───────┴────────┘

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is the internal interface abstracting away the concrete
// backend (Prometheus vs noop). Not exposed outside the package.
type metricsSink interface {
	incRegistered(shard int)
	incUnregistered(shard int)
	setInFlight(shard int, n int)
	setHistorySize(n int)
	incSlowWarning()
	incHistoryEviction(n int)
}

type noopMetrics struct{}

func (noopMetrics) incRegistered(int)      {}
func (noopMetrics) incUnregistered(int)    {}
func (noopMetrics) setInFlight(int, int)   {}
func (noopMetrics) setHistorySize(int)     {}
func (noopMetrics) incSlowWarning()        {}
func (noopMetrics) incHistoryEviction(int) {}

type promMetrics struct {
	registered   *prometheus.CounterVec
	unregistered *prometheus.CounterVec
	inFlight     *prometheus.GaugeVec
	historySize  prometheus.Gauge
	slowWarnings prometheus.Counter
	evictions    prometheus.Counter
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}

	pm := &promMetrics{
		registered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optrack",
			Name:      "registered_total",
			Help:      "Number of operations registered.",
		}, label),
		unregistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "optrack",
			Name:      "unregistered_total",
			Help:      "Number of operations unregistered.",
		}, label),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "optrack",
			Name:      "in_flight",
			Help:      "Live operations currently tracked.",
		}, label),
		historySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "optrack",
			Name:      "history_size",
			Help:      "Completed operations currently retained in history.",
		}),
		slowWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "optrack",
			Name:      "slow_warnings_total",
			Help:      "Slow-op warnings emitted by the detector.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "optrack",
			Name:      "history_evictions_total",
			Help:      "Completed operations evicted from history.",
		}),
	}

	reg.MustRegister(pm.registered, pm.unregistered, pm.inFlight, pm.historySize, pm.slowWarnings, pm.evictions)
	return pm
}

func (m *promMetrics) incRegistered(shard int) {
	m.registered.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) incUnregistered(shard int) {
	m.unregistered.WithLabelValues(strconv.Itoa(shard)).Inc()
}
func (m *promMetrics) setInFlight(shard int, n int) {
	m.inFlight.WithLabelValues(strconv.Itoa(shard)).Set(float64(n))
}
func (m *promMetrics) setHistorySize(n int)   { m.historySize.Set(float64(n)) }
func (m *promMetrics) incSlowWarning()        { m.slowWarnings.Inc() }
func (m *promMetrics) incHistoryEviction(n int) {
	if n > 0 {
		m.evictions.Add(float64(n))
	}
}

// newMetricsSink decides which implementation to use.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
