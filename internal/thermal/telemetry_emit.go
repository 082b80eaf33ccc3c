package thermal

import (
	"fmt"
	"strconv"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/telemetry"
)

// emitTelemetry writes one control-CSV row and the temperature/per-domain
// error CSV rows for this tick (§4.2 step 7, §4.4).
func (e *Engine) emitTelemetry(sensors []Sensor, report TickReport) {
	ts := report.Timestamp.Format("2006-01-02T15:04:05.000000")
	e.logTemperatureSensors(sensors, ts)
	e.logControlRow(report, ts)
}

func (e *Engine) logControlRow(report TickReport, ts string) {
	if e.controlCSV == nil {
		return
	}
	byDomain := make(map[string]DomainReport, len(report.Domains))
	for _, d := range report.Domains {
		byDomain[d.Domain] = d
	}

	row := []string{ts}
	for _, domain := range NaturalSorted(domainConfigKeys(e.cfg.PIDDomains)) {
		d, ok := byDomain[domain]
		if !ok {
			row = append(row, "None", "0", "0", "0", "0", "0", "false")
			continue
		}
		row = append(row,
			d.SensorName,
			formatFloat(d.P), formatFloat(d.I), formatFloat(d.D),
			formatFloat(d.RawOutput), formatFloat(d.SaturatedOutput),
			strconv.FormatBool(d.FrozenIntegral))
	}
	row = append(row, report.SelectedDomain, formatFloat(report.FanSpeed))
	e.controlCSV.LogRow(row)
}

// logTemperatureSensors mirrors _log_temperature_sensors: builds the
// telemetry-only, name-normalized temperature row for every sensor with a
// current reading, and the per-domain input-error rows for PID-controlled
// sensors with both a temperature and a setpoint.
func (e *Engine) logTemperatureSensors(sensors []Sensor, ts string) {
	allTemps := make(map[string]float64)
	domainErrors := make(map[string]map[string]float64)

	for _, s := range sensors {
		temp, ok := s.Temperature()
		if !ok {
			continue
		}
		name, keep := normalizeSensorName(s.Name())
		if !keep {
			continue
		}
		allTemps[name] = temp

		if s.IsControlledByPID() {
			setpoint, ok := s.PIDSetpoint()
			if !ok {
				continue
			}
			domain := s.PIDDomain()
			if domainErrors[domain] == nil {
				domainErrors[domain] = make(map[string]float64)
			}
			domainErrors[domain][name] = temp - setpoint
		}
	}

	e.ensureTemperatureLoggersInitialized(allTemps, domainErrors)

	if e.temperatureCSV != nil && len(allTemps) > 0 {
		row := []string{ts}
		for _, name := range NaturalSorted(mapKeysFloat(allTemps)) {
			row = append(row, formatFloat(allTemps[name]))
		}
		e.temperatureCSV.LogRow(row)
	}

	for domain, errs := range domainErrors {
		stream, ok := e.domainErrorCSV[domain]
		if !ok || stream == nil {
			continue
		}
		row := []string{ts}
		for _, name := range NaturalSorted(mapKeysFloat(errs)) {
			row = append(row, formatFloat(errs[name]))
		}
		stream.LogRow(row)
	}
}

// ensureTemperatureLoggersInitialized lazily creates the temperature and
// per-domain input-error CSV streams the first time their sensor set is
// known (§4.4: header sets are fixed at first use).
func (e *Engine) ensureTemperatureLoggersInitialized(allTemps map[string]float64, domainErrors map[string]map[string]float64) {
	if e.temperatureCSV == nil && len(allTemps) > 0 {
		headers := append([]string{"timestamp"}, NaturalSorted(mapKeysFloat(allTemps))...)
		e.temperatureCSV = telemetry.NewStream("temperature.csv", headers, e.log, e.log)
	}
	for domain, errs := range domainErrors {
		if existing, configured := e.domainErrorCSV[domain]; configured && existing == nil && len(errs) > 0 {
			headers := append([]string{"timestamp"}, NaturalSorted(mapKeysFloat(errs))...)
			e.domainErrorCSV[domain] = telemetry.NewStream(fmt.Sprintf("%s_input_error.csv", domain), headers, e.log, e.log)
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
