package hostcfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
server:
  metrics_port: 9090
  log_level: debug
  policy_path: /etc/thermalctl/policy.json
  poll_interval: 5s
sensors:
  - name: cpu
    kind: hwmon
    hwmon_chip: k10temp
    hwmon_channel: 1
    controlled_by_pid: true
    pid_domain: cpu
    pid_setpoint: 70
  - name: disk0
    kind: disk
    disk_device: sda
fans:
  num_fans: 6
  names: [FAN1, FAN2, FAN3, FAN4, FAN5, FAN6]
dpm:
  name: dpm-mock
  platform_spec_path: /etc/thermalctl/dpm_spec.yaml
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, 5*time.Second, cfg.Server.PollInterval)
	require.Len(t, cfg.Sensors, 2)
	assert.Equal(t, "k10temp", cfg.Sensors[0].HwmonChip)
	assert.Equal(t, "sda", cfg.Sensors[1].DiskDevice)
	assert.Equal(t, "0x3a", cfg.Fans.NetFn) // default applied
	assert.Equal(t, 6, cfg.Fans.NumFans)
	assert.Equal(t, "dpm-mock", cfg.DPM.Name)
}

func TestParse_DefaultsApplied(t *testing.T) {
	doc := `
sensors:
  - name: cpu
    kind: hwmon
    hwmon_chip: k10temp
fans:
  num_fans: 1
dpm:
  name: dpm-mock
  platform_spec_path: /etc/thermalctl/dpm_spec.yaml
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.NotEmpty(t, cfg.Disks.ExcludePatterns)
}

func TestParse_EmptySensors(t *testing.T) {
	_, err := Parse([]byte("sensors: []\nfans:\n  num_fans: 1\ndpm:\n  name: x\n  platform_spec_path: y\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensors")
}

func TestParse_HwmonSensorMissingChip(t *testing.T) {
	doc := `
sensors:
  - name: cpu
    kind: hwmon
fans:
  num_fans: 1
dpm:
  name: x
  platform_spec_path: y
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hwmon_chip")
}

func TestParse_ControlledByPIDRequiresDomain(t *testing.T) {
	doc := `
sensors:
  - name: cpu
    kind: hwmon
    hwmon_chip: k10temp
    controlled_by_pid: true
fans:
  num_fans: 1
dpm:
  name: x
  platform_spec_path: y
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pid_domain")
}

func TestParse_MissingDPMName(t *testing.T) {
	doc := `
sensors:
  - name: cpu
    kind: hwmon
    hwmon_chip: k10temp
fans:
  num_fans: 1
dpm:
  platform_spec_path: y
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dpm.name")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("not: [valid"))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/hostcfg.yaml")
	require.Error(t, err)
}
