// Package hostcfg loads the host-level wiring configuration: which sensors
// and fans exist on this box, the DPM device to read blackbox data from,
// and server settings. This sits alongside (not instead of) the
// policy.Config JSON document, which governs the PID/fan_limits tuning the
// control algorithm itself needs.
package hostcfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete host wiring document.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Sensors []SensorConfig `yaml:"sensors"`
	Fans    FanBankConfig  `yaml:"fans"`
	DPM     DPMConfig      `yaml:"dpm"`
	Disks   DiskConfig     `yaml:"disks"`
}

// ServerConfig controls logging and the metrics/health HTTP server.
type ServerConfig struct {
	MetricsPort  int           `yaml:"metrics_port"`
	LogLevel     string        `yaml:"log_level"`
	PolicyPath   string        `yaml:"policy_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// SensorConfig describes one thermal sensor and, optionally, its PID
// domain membership.
type SensorConfig struct {
	Name               string  `yaml:"name"`
	Kind               string  `yaml:"kind"` // "hwmon" or "disk"
	HwmonChip          string  `yaml:"hwmon_chip"`
	HwmonChannel       int     `yaml:"hwmon_channel"`
	DiskDevice         string  `yaml:"disk_device"`
	ControlledByPID    bool    `yaml:"controlled_by_pid"`
	PIDDomain          string  `yaml:"pid_domain"`
	PIDSetpoint        float64 `yaml:"pid_setpoint"`
}

// FanBankConfig describes the IPMI fan controller shared by every fan.
type FanBankConfig struct {
	NetFn       string   `yaml:"net_fn"`
	Cmd         string   `yaml:"cmd"`
	NumFans     int      `yaml:"num_fans"`
	PaddingByte string   `yaml:"padding_byte"`
	NumPadding  int      `yaml:"num_padding"`
	Names       []string `yaml:"names"`
}

// DPMConfig locates the DPM device's platform spec and NVMEM device.
type DPMConfig struct {
	Name             string `yaml:"name"`
	PlatformSpecPath string `yaml:"platform_spec_path"`
	NvmemPathOverride string `yaml:"nvmem_path_override"`
}

// DiskConfig filters disk auto-discovery.
type DiskConfig struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

// Load reads and validates the host config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read host config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a host config document already in memory, applying
// defaults and validating the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse host config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid host config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.PolicyPath == "" {
		c.Server.PolicyPath = "/etc/thermalctl/policy.json"
	}
	if c.Server.PollInterval == 0 {
		c.Server.PollInterval = 5 * time.Second
	}
	if c.Fans.NetFn == "" {
		c.Fans.NetFn = "0x3a"
	}
	if c.Fans.Cmd == "" {
		c.Fans.Cmd = "0xd6"
	}
	if c.Fans.PaddingByte == "" {
		c.Fans.PaddingByte = "0x64"
	}
	if len(c.Disks.ExcludePatterns) == 0 {
		c.Disks.ExcludePatterns = []string{"^loop", "^sr", "^zram", "^zd", "^dm-"}
	}
}

// Validate checks the document for internal consistency.
func (c *Config) Validate() error {
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 1-65535, got %d", c.Server.MetricsPort)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "notice", "warn", "warning", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug/info/notice/warning/error, got %q", c.Server.LogLevel)
	}
	if len(c.Sensors) == 0 {
		return fmt.Errorf("sensors must not be empty")
	}
	for _, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensor entry missing name")
		}
		switch s.Kind {
		case "hwmon":
			if s.HwmonChip == "" {
				return fmt.Errorf("sensor %q: hwmon_chip is required for kind=hwmon", s.Name)
			}
		case "disk":
			if s.DiskDevice == "" {
				return fmt.Errorf("sensor %q: disk_device is required for kind=disk", s.Name)
			}
		default:
			return fmt.Errorf("sensor %q: kind must be 'hwmon' or 'disk', got %q", s.Name, s.Kind)
		}
		if s.ControlledByPID && s.PIDDomain == "" {
			return fmt.Errorf("sensor %q: controlled_by_pid requires pid_domain", s.Name)
		}
	}
	if c.Fans.NumFans <= 0 {
		return fmt.Errorf("fans.num_fans must be positive, got %d", c.Fans.NumFans)
	}
	if c.DPM.Name == "" {
		return fmt.Errorf("dpm.name must be set")
	}
	if c.DPM.PlatformSpecPath == "" {
		return fmt.Errorf("dpm.platform_spec_path must be set")
	}
	return nil
}
