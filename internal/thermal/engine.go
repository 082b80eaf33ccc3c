package thermal

import (
	"fmt"
	"time"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/pidctl"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/policy"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/telemetry"
)

// FanMaxSpeed is the fail-safe speed commanded when a tick fails.
const FanMaxSpeed = 100.0

// DomainReport captures one domain's PID computation for a tick, used both
// for the returned TickReport and for CSV telemetry rows.
type DomainReport struct {
	Domain          string
	SensorName      string
	P, I, D         float64
	RawOutput       float64
	SaturatedOutput float64
	FrozenIntegral  bool
}

// TickReport is the result of one successful tick.
type TickReport struct {
	Timestamp      time.Time
	Domains        []DomainReport
	SelectedDomain string
	FanSpeed       float64
}

// Metrics is the subset of internal/metrics the engine drives; kept as an
// interface here so thermal has no import-time dependency on Prometheus.
type Metrics interface {
	ObserveDomain(domain string, terms pidctl.Terms)
	SetFanSpeed(pct float64)
	ObserveTickDuration(d time.Duration)
	IncTickError()
}

// Engine is the thermal control engine (C3): it groups sensors by domain,
// selects the worst-error sensor per domain, fuses domain PID outputs, and
// commands fans. It is not safe for concurrent ticks (the scheduling model
// is single-threaded cooperative, per §5).
type Engine struct {
	cfg  *policy.Config
	log  *nhlog.Logger
	metr Metrics

	controllers map[string]*pidctl.Controller

	controlCSV    *telemetry.Stream
	temperatureCSV *telemetry.Stream
	domainErrorCSV map[string]*telemetry.Stream

	now func() time.Time
}

// New constructs an Engine from a validated policy config. PID controllers
// are created lazily on the first Tick, once the host's interval is known.
func New(cfg *policy.Config, log *nhlog.Logger, metr Metrics) *Engine {
	return &Engine{
		cfg:            cfg,
		log:            log,
		metr:           metr,
		domainErrorCSV: make(map[string]*telemetry.Stream),
		now:            time.Now,
	}
}

// Tick runs one control cycle: read sensors, compute per-domain PID outputs,
// fuse them, command fans, and emit telemetry. On any failure it commands all
// fans to FanMaxSpeed before returning the error (§4.2/§7 fail-safe
// invariant).
func (e *Engine) Tick(sensors []Sensor, fans []Fan, interval IntervalSource) (TickReport, error) {
	start := e.now()
	report, err := e.tickInner(sensors, fans, interval, start)
	if e.metr != nil {
		e.metr.ObserveTickDuration(e.now().Sub(start))
	}
	if err != nil {
		e.log.Error("Exception executing thermal control algorithm: %v", err)
		e.log.Error("Setting fan speed to %.0f%% (max)", FanMaxSpeed)
		if e.metr != nil {
			e.metr.IncTickError()
		}
		if failSafeErr := SetAllFanSpeeds(e.log, fans, FanMaxSpeed); failSafeErr != nil {
			e.log.Error("fail-safe fan command also failed: %v", failSafeErr)
		}
		return TickReport{}, err
	}

	if e.metr != nil {
		e.metr.SetFanSpeed(report.FanSpeed)
	}
	e.emitTelemetry(sensors, report)
	return report, nil
}

func (e *Engine) tickInner(sensors []Sensor, fans []Fan, interval IntervalSource, timestamp time.Time) (TickReport, error) {
	if e.controllers == nil {
		if err := e.initControllers(interval); err != nil {
			return TickReport{}, err
		}
	}

	domainSensors := e.groupByDomain(sensors)
	if len(domainSensors) == 0 {
		return TickReport{}, fmt.Errorf("no thermals available for PID control")
	}

	var domains []DomainReport
	outputs := make(map[string]float64, len(domainSensors))

	for _, domain := range NaturalSorted(domainKeys(domainSensors)) {
		candidates := domainSensors[domain]
		worst, worstSensor, ok := e.pickWorstError(domain, candidates)
		if !ok {
			return TickReport{}, fmt.Errorf("no valid thermal found for domain %q", domain)
		}

		controller := e.controllers[domain]
		output, terms := controller.Compute(worst)

		sensorName := "None"
		if worstSensor != nil {
			sensorName = worstSensor.Name()
		}

		domains = append(domains, DomainReport{
			Domain:          domain,
			SensorName:      sensorName,
			P:               terms.P,
			I:               terms.I,
			D:               terms.D,
			RawOutput:       terms.RawOutput,
			SaturatedOutput: terms.SaturatedOutput,
			FrozenIntegral:  terms.FrozenIntegral,
		})
		outputs[domain] = output

		if e.metr != nil {
			e.metr.ObserveDomain(domain, terms)
		}
	}

	finalDomain, finalOutput := fuse(outputs)
	fanSpeed := clamp(finalOutput, e.cfg.MinSpeed(), e.cfg.MaxSpeed())

	selectedDomain := finalDomain
	if fanSpeed <= e.cfg.MinSpeed() {
		selectedDomain = "None"
	}

	if err := SetAllFanSpeeds(e.log, fans, fanSpeed); err != nil {
		return TickReport{}, err
	}

	return TickReport{
		Timestamp:      timestamp,
		Domains:        domains,
		SelectedDomain: selectedDomain,
		FanSpeed:       fanSpeed,
	}, nil
}

func (e *Engine) initControllers(interval IntervalSource) error {
	reportedInterval := interval.Interval()
	if reportedInterval != e.cfg.Constants.Interval {
		return fmt.Errorf("interval %d does not match interval %d specified in JSON policy file",
			reportedInterval, e.cfg.Constants.Interval)
	}

	e.controllers = make(map[string]*pidctl.Controller, len(e.cfg.PIDDomains))
	for domain, domainCfg := range e.cfg.PIDDomains {
		e.controllers[domain] = pidctl.New(domain, reportedInterval,
			domainCfg.KP, domainCfg.KI, domainCfg.KD,
			e.cfg.MinSpeed(), e.cfg.MaxSpeed(), e.log)
		if domainCfg.ExtraSetpointMargin != 0 {
			e.log.Notice("Extra setpoint margin for domain %q: %g", domain, domainCfg.ExtraSetpointMargin)
		}
	}

	headers := []string{"timestamp"}
	for _, domain := range NaturalSorted(domainConfigKeys(e.cfg.PIDDomains)) {
		headers = append(headers,
			domain+"_sensor", domain+"_P", domain+"_I", domain+"_D",
			domain+"_raw_output", domain+"_saturated_output", domain+"_frozen_integral")
	}
	headers = append(headers, "selected_domain", "configured_fan_speed")
	e.controlCSV = telemetry.NewStream("thermal_control_algorithm.csv", headers, e.log, e.log)

	for domain := range e.cfg.PIDDomains {
		e.domainErrorCSV[domain] = nil // initialized lazily with sensor-derived headers
	}

	return nil
}

// groupByDomain groups sensors by PID domain, skipping those not
// PID-controlled (§4.2 step 2). Every Sensor carries the PID-membership
// methods, so no capability check is made. Sensors are grouped only if their
// domain is a configured PID controller.
func (e *Engine) groupByDomain(sensors []Sensor) map[string][]Sensor {
	out := make(map[string][]Sensor)
	for _, s := range sensors {
		if !s.IsControlledByPID() {
			continue
		}
		domain := s.PIDDomain()
		if _, configured := e.controllers[domain]; !configured {
			continue
		}
		out[domain] = append(out[domain], s)
	}
	return out
}

// pickWorstError selects the sensor maximising (temperature - setpoint -
// extra_margin) within a domain, silently skipping sensors lacking a current
// temperature or setpoint (§4.2 step 3, hot-plug tolerance).
func (e *Engine) pickWorstError(domain string, candidates []Sensor) (float64, Sensor, bool) {
	margin := e.cfg.PIDDomains[domain].ExtraSetpointMargin

	var (
		found      bool
		worstError float64
		worstS     Sensor
	)
	for _, s := range candidates {
		temp, ok := s.Temperature()
		if !ok {
			continue
		}
		setpoint, ok := s.PIDSetpoint()
		if !ok {
			continue
		}
		err := temp - setpoint - margin
		if !found || err > worstError {
			found = true
			worstError = err
			worstS = s
		}
	}
	return worstError, worstS, found
}

// fuse selects the maximum domain output, in natural-sorted domain order so
// ties resolve deterministically (§4.2 step 5 fusion).
func fuse(outputs map[string]float64) (string, float64) {
	var (
		bestDomain string
		bestValue  float64
		set        bool
	)
	for _, domain := range NaturalSorted(mapKeysFloat(outputs)) {
		v := outputs[domain]
		if !set || v > bestValue {
			bestDomain = domain
			bestValue = v
			set = true
		}
	}
	return bestDomain, bestValue
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func domainKeys(m map[string][]Sensor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func mapKeysFloat(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func domainConfigKeys(m map[string]policy.DomainConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
