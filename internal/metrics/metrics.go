// Package metrics wires the thermal control engine and DPM blackbox
// decoder to Prometheus, and serves /metrics and /health.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/pidctl"
)

// Metrics holds every Prometheus collector thermalctl exports. It satisfies
// thermal.Metrics so the engine can drive it without importing Prometheus
// types directly.
type Metrics struct {
	domainP               *prometheus.GaugeVec
	domainI               *prometheus.GaugeVec
	domainD               *prometheus.GaugeVec
	domainRawOutput       *prometheus.GaugeVec
	domainSaturatedOutput *prometheus.GaugeVec
	domainFrozenIntegral  *prometheus.GaugeVec

	fanSpeedPercent prometheus.Gauge
	tickDuration    prometheus.Histogram
	tickErrorsTotal prometheus.Counter

	blackboxFaultRecords prometheus.Gauge
	rebootCauseTotal     *prometheus.CounterVec
}

// New constructs and registers all collectors against reg. Pass
// prometheus.NewRegistry() for isolated tests, or
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		domainP: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thermalctl_pid_proportional",
			Help: "PID proportional term by domain",
		}, []string{"domain"}),
		domainI: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thermalctl_pid_integral",
			Help: "PID retained integral term by domain",
		}, []string{"domain"}),
		domainD: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thermalctl_pid_derivative",
			Help: "PID derivative term by domain",
		}, []string{"domain"}),
		domainRawOutput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thermalctl_pid_raw_output",
			Help: "Unsaturated PID output by domain",
		}, []string{"domain"}),
		domainSaturatedOutput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thermalctl_pid_saturated_output",
			Help: "Saturated PID output by domain",
		}, []string{"domain"}),
		domainFrozenIntegral: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "thermalctl_pid_integral_frozen",
			Help: "1 if the domain's integral was frozen this tick (anti-windup), else 0",
		}, []string{"domain"}),
		fanSpeedPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermalctl_fan_speed_percent",
			Help: "Commanded fan speed percentage",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thermalctl_tick_duration_seconds",
			Help:    "Thermal control tick execution time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		tickErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermalctl_tick_errors_total",
			Help: "Total number of failed thermal control ticks",
		}),
		blackboxFaultRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thermalctl_dpm_blackbox_fault_records",
			Help: "Number of fault records decoded from the DPM blackbox on last read",
		}),
		rebootCauseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thermalctl_reboot_cause_total",
			Help: "Count of resolved reboot causes by canonical cause string",
		}, []string{"cause"}),
	}

	reg.MustRegister(
		m.domainP, m.domainI, m.domainD, m.domainRawOutput, m.domainSaturatedOutput, m.domainFrozenIntegral,
		m.fanSpeedPercent, m.tickDuration, m.tickErrorsTotal,
		m.blackboxFaultRecords, m.rebootCauseTotal,
	)
	return m
}

// ObserveDomain records one domain's PID computation detail for a tick.
func (m *Metrics) ObserveDomain(domain string, terms pidctl.Terms) {
	m.domainP.WithLabelValues(domain).Set(terms.P)
	m.domainI.WithLabelValues(domain).Set(terms.I)
	m.domainD.WithLabelValues(domain).Set(terms.D)
	m.domainRawOutput.WithLabelValues(domain).Set(terms.RawOutput)
	m.domainSaturatedOutput.WithLabelValues(domain).Set(terms.SaturatedOutput)
	frozen := 0.0
	if terms.FrozenIntegral {
		frozen = 1.0
	}
	m.domainFrozenIntegral.WithLabelValues(domain).Set(frozen)
}

// SetFanSpeed records the commanded fan speed for this tick.
func (m *Metrics) SetFanSpeed(pct float64) { m.fanSpeedPercent.Set(pct) }

// ObserveTickDuration records one tick's wall-clock execution time.
func (m *Metrics) ObserveTickDuration(d time.Duration) { m.tickDuration.Observe(d.Seconds()) }

// IncTickError increments the failed-tick counter.
func (m *Metrics) IncTickError() { m.tickErrorsTotal.Inc() }

// SetBlackboxFaultRecords records how many fault records the last DPM
// blackbox read decoded.
func (m *Metrics) SetBlackboxFaultRecords(n int) { m.blackboxFaultRecords.Set(float64(n)) }

// IncRebootCause increments the counter for a resolved reboot cause.
func (m *Metrics) IncRebootCause(cause string) { m.rebootCauseTotal.WithLabelValues(cause).Inc() }

// healthResponse is the JSON body served at /health.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// Server serves /metrics (via the given gatherer) and /health.
type Server struct {
	log       *nhlog.Logger
	startTime time.Time
	mux       *http.ServeMux
}

// NewServer builds the HTTP handler for the metrics and health endpoints.
func NewServer(gatherer prometheus.Gatherer, log *nhlog.Logger) *Server {
	s := &Server{log: log, startTime: time.Now(), mux: http.NewServeMux()}
	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// ListenAndServe starts the HTTP server on the given port; it runs until
// the process exits or the listener errors, and logs (never panics) on
// failure, matching the teacher's fire-and-forget metrics server.
func (s *Server) ListenAndServe(port int) {
	go func() {
		addr := fmt.Sprintf(":%d", port)
		s.log.Info("Starting metrics server on %s", addr)
		if err := http.ListenAndServe(addr, s.mux); err != nil {
			s.log.Error("Metrics server error: %v", err)
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.startTime).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("Failed to encode health response: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
