// Package policy loads and validates the thermal control algorithm's JSON
// policy configuration (§6): PID domain gains, the sample interval, and fan
// speed limits.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
)

// FanMinSpeed and FanMaxSpeed bound the configurable fan_limits range.
const (
	FanMinSpeed = 30.0
	FanMaxSpeed = 100.0
)

// DomainConfig is one PID domain's gains and optional setpoint margin.
type DomainConfig struct {
	KP                  float64 `json:"KP"`
	KI                  float64 `json:"KI"`
	KD                  float64 `json:"KD"`
	ExtraSetpointMargin float64 `json:"extra_setpoint_margin"`
}

// Constants carries the control loop's configured sample interval.
type Constants struct {
	Interval int `json:"interval"`
}

// FanLimits bounds commanded fan speed. Min/Max are pointers so a missing
// key is distinguishable from an explicit 0.
type FanLimits struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// Config is the root of the thermal control algorithm policy document.
type Config struct {
	PIDDomains map[string]DomainConfig `json:"pid_domains"`
	Constants  Constants               `json:"constants"`
	FanLimits  FanLimits               `json:"fan_limits"`
}

// Load reads and validates a policy document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a policy document already in memory.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every condition §6 requires: missing top-level keys, empty
// pid_domains, missing min/max, min > max, out-of-range limits, and a
// missing or non-positive interval.
func (c *Config) Validate() error {
	if len(c.PIDDomains) == 0 {
		return fmt.Errorf("pid_domains must not be empty")
	}
	if c.Constants.Interval <= 0 {
		return fmt.Errorf("constants.interval must be positive, got %d", c.Constants.Interval)
	}
	if c.FanLimits.Min == nil || c.FanLimits.Max == nil {
		return fmt.Errorf("fan_limits.min/max must both be set")
	}
	min, max := *c.FanLimits.Min, *c.FanLimits.Max
	if min > max {
		return fmt.Errorf("fan_limits.min (%g) must be <= fan_limits.max (%g)", min, max)
	}
	if min < FanMinSpeed || max > FanMaxSpeed {
		return fmt.Errorf("fan_limits [%g, %g] out of range [%g, %g]", min, max, FanMinSpeed, FanMaxSpeed)
	}
	return nil
}

// MinSpeed returns the validated minimum fan speed.
func (c *Config) MinSpeed() float64 { return *c.FanLimits.Min }

// MaxSpeed returns the validated maximum fan speed.
func (c *Config) MaxSpeed() float64 { return *c.FanLimits.Max }
