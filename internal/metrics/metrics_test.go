package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/pidctl"
)

func testLogger() *nhlog.Logger {
	return nhlog.New("thermalctl-test", nhlog.LevelError)
}

func TestNew_RegistersWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { New(reg) })
}

func TestObserveDomain_SetsAllGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveDomain("cpu", pidctl.Terms{
		P: 1, I: 2, D: 3, RawOutput: 4, SaturatedOutput: 5, FrozenIntegral: true,
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1.0, gaugeValue(t, families, "thermalctl_pid_integral_frozen", "cpu"))
	assert.Equal(t, 5.0, gaugeValue(t, families, "thermalctl_pid_saturated_output", "cpu"))
}

func TestSetFanSpeedAndIncTickError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetFanSpeed(42.5)
	m.IncTickError()
	m.ObserveTickDuration(10 * time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, f := range families {
		if f.GetName() == "thermalctl_fan_speed_percent" {
			found = true
			assert.Equal(t, 42.5, f.Metric[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestServer_HealthEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestServer_MetricsEndpointServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetFanSpeed(77)
	srv := NewServer(reg, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "thermalctl_fan_speed_percent 77")
}

func gaugeValue(t *testing.T, families []*dto.MetricFamily, name, label string) float64 {
	t.Helper()
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.Metric {
			for _, l := range metric.Label {
				if l.GetValue() == label {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{...=%s} not found", name, label)
	return 0
}
