package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes fare comparison Prometheus metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	ComparisonsTotal      *prometheus.CounterVec
	StaleResultsTotal     prometheus.Counter
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamDuration      *prometheus.HistogramVec
	ActiveSessions        prometheus.Gauge
}

// NewCollector registers comparison metrics against the provided registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	comparisons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fare_comparisons_total",
		Help: "Completed comparison runs by outcome (done or failure kind).",
	}, []string{"outcome"})
	comparisons, err := registerCounterVec(reg, comparisons, "fare_comparisons_total")
	if err != nil {
		return nil, err
	}

	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fare_comparison_stale_results_total",
		Help: "Comparison results dropped because a newer run superseded them.",
	})
	stale, err = registerCounter(reg, stale, "fare_comparison_stale_results_total")
	if err != nil {
		return nil, err
	}

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fare_upstream_requests_total",
		Help: "Outbound requests to geocoding and routing APIs by result.",
	}, []string{"upstream", "result"})
	upstreamRequests, err = registerCounterVec(reg, upstreamRequests, "fare_upstream_requests_total")
	if err != nil {
		return nil, err
	}

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fare_upstream_request_duration_seconds",
		Help:    "Latency of outbound requests to geocoding and routing APIs.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"upstream"})
	upstreamDuration, err = registerHistogramVec(reg, upstreamDuration, "fare_upstream_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fare_active_sessions",
		Help: "Number of comparison sessions currently held in memory.",
	})
	sessions, err = registerGauge(reg, sessions, "fare_active_sessions")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:              gatherer,
		ComparisonsTotal:      comparisons,
		StaleResultsTotal:     stale,
		UpstreamRequestsTotal: upstreamRequests,
		UpstreamDuration:      upstreamDuration,
		ActiveSessions:        sessions,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// IncComparison records a finished run.
func (c *Collector) IncComparison(outcome string) {
	if c == nil || c.ComparisonsTotal == nil {
		return
	}
	c.ComparisonsTotal.WithLabelValues(outcome).Inc()
}

// IncStaleResult records a result dropped by the run-identifier guard.
func (c *Collector) IncStaleResult() {
	if c == nil || c.StaleResultsTotal == nil {
		return
	}
	c.StaleResultsTotal.Inc()
}

// ObserveUpstream records one outbound call.
func (c *Collector) ObserveUpstream(upstream, result string, d time.Duration) {
	if c == nil {
		return
	}
	if c.UpstreamRequestsTotal != nil {
		c.UpstreamRequestsTotal.WithLabelValues(upstream, result).Inc()
	}
	if c.UpstreamDuration != nil {
		c.UpstreamDuration.WithLabelValues(upstream).Observe(d.Seconds())
	}
}

// SetActiveSessions updates the session gauge.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil || c.ActiveSessions == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
