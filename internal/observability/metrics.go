package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/latency-sim/core"
)

// SimCollector bundles Prometheus metrics for the simulation engine and
// its HTTP surface.
type SimCollector struct {
	gatherer prometheus.Gatherer

	PacketsSent      prometheus.Counter
	PacketsDelivered prometheus.Counter
	PacketsLimited   prometheus.Counter
	ActivePackets    prometheus.Gauge
	SimTimeMs        prometheus.Gauge

	ScenarioNodes prometheus.Gauge
	ScenarioHops  prometheus.Gauge
	// ScenarioDelayMs carries the active scenario's one-way delay per
	// component, labeled transmission/propagation/processing/queuing/total.
	ScenarioDelayMs *prometheus.GaugeVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// NewSimCollector registers simulation Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sent, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_sent_total",
		Help: "Total number of packets injected into the simulation.",
	}), "sim_packets_sent_total")
	if err != nil {
		return nil, err
	}
	delivered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_delivered_total",
		Help: "Total number of packets that completed their journey.",
	}), "sim_packets_delivered_total")
	if err != nil {
		return nil, err
	}
	limited, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_packets_limit_skipped_total",
		Help: "Total number of spawn attempts skipped at the concurrent-packet cap.",
	}), "sim_packets_limit_skipped_total")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_active_packets",
		Help: "Packets currently tracked by the simulation.",
	}), "sim_active_packets")
	if err != nil {
		return nil, err
	}
	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_time_ms",
		Help: "Current simulation time in milliseconds.",
	}), "sim_time_ms")
	if err != nil {
		return nil, err
	}
	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_nodes",
		Help: "Node count of the active scenario.",
	}), "scenario_nodes")
	if err != nil {
		return nil, err
	}
	hops, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_hops",
		Help: "Hop count of the active scenario.",
	}), "scenario_hops")
	if err != nil {
		return nil, err
	}

	delayMs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scenario_delay_ms",
		Help: "One-way delay of the active scenario in milliseconds, by component.",
	}, []string{"component"})
	delayMs, err = registerGaugeVec(reg, delayMs, "scenario_delay_ms")
	if err != nil {
		return nil, err
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total number of handled API requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err = registerCounterVec(reg, requests, "api_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "api_request_duration_seconds",
		Help:    "API request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"})
	durations, err = registerHistogramVec(reg, durations, "api_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:         gatherer,
		PacketsSent:      sent,
		PacketsDelivered: delivered,
		PacketsLimited:   limited,
		ActivePackets:    active,
		SimTimeMs:        simTime,
		ScenarioNodes:    nodes,
		ScenarioHops:     hops,
		ScenarioDelayMs:  delayMs,
		HTTPRequests:     requests,
		HTTPDurations:    durations,
	}, nil
}

// ObserveTick feeds one tick result into the simulation metrics.
func (c *SimCollector) ObserveTick(result core.TickResult) {
	if c == nil {
		return
	}
	for _, ev := range result.Events {
		switch ev.Kind {
		case core.EventPacketSent:
			c.PacketsSent.Inc()
		case core.EventPacketDelivered:
			c.PacketsDelivered.Inc()
		case core.EventPacketLimit:
			c.PacketsLimited.Inc()
		}
	}
	c.ActivePackets.Set(float64(len(result.Snapshot.Packets)))
	c.SimTimeMs.Set(result.Snapshot.TimeMs)
}

// SetScenarioCounts updates the active-scenario gauges.
func (c *SimCollector) SetScenarioCounts(nodes, hops int) {
	if c == nil {
		return
	}
	c.ScenarioNodes.Set(float64(nodes))
	c.ScenarioHops.Set(float64(hops))
}

// SetScenarioDelay updates the per-component delay gauges from a path
// delay summary.
func (c *SimCollector) SetScenarioDelay(d core.PathDelay) {
	if c == nil {
		return
	}
	c.ScenarioDelayMs.WithLabelValues("transmission").Set(d.TransmissionMs)
	c.ScenarioDelayMs.WithLabelValues("propagation").Set(d.PropagationMs)
	c.ScenarioDelayMs.WithLabelValues("processing").Set(d.ProcessingMs)
	c.ScenarioDelayMs.WithLabelValues("queuing").Set(d.QueuingMs)
	c.ScenarioDelayMs.WithLabelValues("total").Set(d.TotalMs)
}

// Middleware records request counts and durations for every route
// handled by a gorilla/mux router.
func (c *SimCollector) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)

			if c == nil {
				return
			}
			route := "unknown"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
			c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
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

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
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
