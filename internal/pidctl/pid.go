// Package pidctl implements a discrete-time PID controller with clamped
// output and conditional-integration anti-windup, one instance per thermal
// domain.
package pidctl

import (
	"fmt"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
)

// Controller is a single-domain PID controller running at a fixed sample
// interval. A Controller never fails; Compute always returns a value.
type Controller struct {
	domain string
	dt     float64 // sample interval, seconds

	kp, ki, kd float64

	outputMin, outputMax float64

	integral  float64
	prevError float64
	firstRun  bool

	log *nhlog.Logger
}

// Terms reports the individual PID components for one Compute call, mirroring
// the original driver's compute_detailed() return dict.
type Terms struct {
	P              float64
	I              float64 // retained integral after this call, not the candidate
	D              float64
	RawOutput      float64
	SaturatedOutput float64
	FrozenIntegral  bool
}

// New creates a Controller for domain, seeded per §3's seeding invariant:
// integral = (min+max)/2 / ki, so the first output sits near mid-range. When
// ki is zero that seed is undefined, so the integral starts at zero instead.
func New(domain string, intervalSeconds int, kp, ki, kd, outputMin, outputMax float64, log *nhlog.Logger) *Controller {
	c := &Controller{
		domain:    domain,
		dt:        float64(intervalSeconds),
		kp:        kp,
		ki:        ki,
		kd:        kd,
		outputMin: outputMin,
		outputMax: outputMax,
		firstRun:  true,
		log:       log,
	}
	if ki != 0 {
		c.integral = (outputMin + outputMax) / 2 / ki
	}
	if log != nil {
		log.Info("PIDController initialized for domain %q: gains=[Kp=%g, Ki=%g, Kd=%g], output_range=[%g, %g], interval=%ds",
			domain, kp, ki, kd, outputMin, outputMax, intervalSeconds)
	}
	return c
}

// Compute runs one discrete PID step for the given error
// (measured - setpoint - extra_margin) and returns the saturated output plus
// the computation detail.
func (c *Controller) Compute(errorVal float64) (float64, Terms) {
	proportional := errorVal

	var derivative float64
	if c.firstRun {
		c.firstRun = false
	} else {
		derivative = (errorVal - c.prevError) / c.dt
	}

	candidateIntegral := c.integral + errorVal*c.dt

	rawOutput := c.kp*proportional + c.ki*candidateIntegral + c.kd*derivative
	saturatedOutput := clamp(rawOutput, c.outputMin, c.outputMax)

	// Freeze the integral exactly when further accumulation would push
	// deeper into saturation in the same direction; permit accumulation
	// that unwinds saturation.
	shouldUpdate := (rawOutput <= c.outputMax || errorVal < 0) && (rawOutput >= c.outputMin || errorVal > 0)

	c.prevError = errorVal
	if shouldUpdate {
		c.integral = candidateIntegral
	}

	terms := Terms{
		P:               proportional,
		I:               c.integral,
		D:               derivative,
		RawOutput:       rawOutput,
		SaturatedOutput: saturatedOutput,
		FrozenIntegral:  !shouldUpdate,
	}

	if c.log != nil && c.log.DebugEnabled() {
		note := ""
		if saturatedOutput != rawOutput {
			note += " (output saturated)"
		}
		if !shouldUpdate {
			note += " (integral frozen)"
		}
		c.log.Debug("[%s] PID=[ %8.3f %8.3f %8.3f ]   =>   OUT=%8.3f%s",
			c.domain, proportional, c.integral, derivative, rawOutput, note)
	}

	return saturatedOutput, terms
}

// Domain returns the configured domain name.
func (c *Controller) Domain() string { return c.domain }

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// String renders the controller's static configuration for diagnostics.
func (c *Controller) String() string {
	return fmt.Sprintf("pidctl.Controller{domain=%s kp=%g ki=%g kd=%g range=[%g,%g]}",
		c.domain, c.kp, c.ki, c.kd, c.outputMin, c.outputMax)
}
