package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/latency-sim/core"
	"github.com/signalsfoundry/latency-sim/model"
)

func TestNewSimCollector_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewSimCollector(reg)
	require.NoError(t, err)

	// A second collector on the same registry adopts the existing
	// collectors instead of failing.
	second, err := NewSimCollector(reg)
	require.NoError(t, err)

	first.PacketsSent.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(second.PacketsSent))
}

func TestSimCollector_ObserveTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	require.NoError(t, err)

	c.ObserveTick(core.TickResult{
		Snapshot: core.Snapshot{
			TimeMs:  125,
			Packets: []model.PacketState{{ID: 0}, {ID: 1}, {ID: 2}},
		},
		Events: []core.SimulationEvent{
			{Kind: core.EventPacketSent, PacketID: 0},
			{Kind: core.EventPacketSent, PacketID: 1},
			{Kind: core.EventPacketDelivered, PacketID: 0},
			{Kind: core.EventPacketLimit, PacketID: 7},
			{Kind: core.EventTick, PacketID: -1},
		},
	})

	assert.Equal(t, float64(125), testutil.ToFloat64(c.SimTimeMs))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.ActivePackets))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.PacketsSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.PacketsDelivered))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.PacketsLimited))
}

func TestSimCollector_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	require.NoError(t, err)

	r := mux.NewRouter()
	r.Use(c.Middleware())
	r.HandleFunc("/api/v1/scenarios/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPut)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/scenarios/demo", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	count := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/api/v1/scenarios/{name}", http.MethodPut, "201"))
	assert.Equal(t, float64(1), count)

	families, err := reg.Gather()
	require.NoError(t, err)
	var histogram *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "api_request_duration_seconds" {
			histogram = mf
		}
	}
	require.NotNil(t, histogram, "duration histogram not gathered")
	require.Len(t, histogram.GetMetric(), 1)
	assert.Equal(t, uint64(1), histogram.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestSimCollector_HandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	require.NoError(t, err)
	c.SetScenarioCounts(4, 3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scenario_nodes 4")
	assert.Contains(t, rec.Body.String(), "scenario_hops 3")
}

func TestSimCollector_SetScenarioDelay(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewSimCollector(reg)
	require.NoError(t, err)

	c.SetScenarioDelay(core.PathDelay{
		DelayBreakdown: model.DelayBreakdown{
			TransmissionMs: 0.12,
			PropagationMs:  0.0005,
			ProcessingMs:   0.5,
			TotalMs:        0.6205,
		},
	})

	assert.Equal(t, 0.12, testutil.ToFloat64(c.ScenarioDelayMs.WithLabelValues("transmission")))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.ScenarioDelayMs.WithLabelValues("processing")))
	assert.Equal(t, 0.6205, testutil.ToFloat64(c.ScenarioDelayMs.WithLabelValues("total")))
}

func TestSimCollector_NilSafety(t *testing.T) {
	var c *SimCollector
	assert.NotPanics(t, func() {
		c.ObserveTick(core.TickResult{})
		c.SetScenarioCounts(1, 1)
		c.SetScenarioDelay(core.PathDelay{})
	})
}
