// Package sensorhw adapts Linux hwmon sysfs nodes and smartctl-reported
// disk temperatures to the thermal package's Sensor capability trait.
package sensorhw

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// HwmonSensor reads a millidegree-Celsius reading from a cached hwmon
// sysfs path, such as the CPU die temperature exposed by k10temp/coretemp.
type HwmonSensor struct {
	name       string
	path       string
	controlled bool
	domain     string
	setpoint   float64
}

// NewHwmonSensor builds a Sensor for a fixed hwmon temp*_input path. When
// controlled is true, domain and setpoint are reported via the PID-facing
// methods; otherwise the sensor is telemetry-only.
func NewHwmonSensor(name, path string, controlled bool, domain string, setpoint float64) *HwmonSensor {
	return &HwmonSensor{name: name, path: path, controlled: controlled, domain: domain, setpoint: setpoint}
}

func (s *HwmonSensor) Name() string { return s.name }

// Temperature reads the current value. A read failure is reported as
// absence (false), not an error, matching the hot-plug tolerance the
// thermal engine expects from its Sensor port.
func (s *HwmonSensor) Temperature() (float64, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, false
	}
	millidegrees, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(millidegrees) / 1000.0, true
}

func (s *HwmonSensor) IsControlledByPID() bool { return s.controlled }
func (s *HwmonSensor) PIDDomain() string       { return s.domain }
func (s *HwmonSensor) PIDSetpoint() (float64, bool) {
	if !s.controlled {
		return 0, false
	}
	return s.setpoint, true
}

// FindHwmonPath searches /sys/class/hwmon/hwmon*/name for a chip reporting
// chipName, returning the temp*_input path for the given channel. Adapted
// from the k10temp auto-detection the teacher used for its single
// hard-coded CPU sensor, generalized to any hwmon chip/channel.
func FindHwmonPath(chipName string, channel int) (string, error) {
	matches, err := filepath.Glob("/sys/class/hwmon/hwmon*/name")
	if err != nil {
		return "", fmt.Errorf("search hwmon directories: %w", err)
	}
	for _, namePath := range matches {
		content, err := os.ReadFile(namePath)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(content)) != chipName {
			continue
		}
		dir := filepath.Dir(namePath)
		return filepath.Join(dir, fmt.Sprintf("temp%d_input", channel)), nil
	}
	return "", fmt.Errorf("hwmon chip %q not found under /sys/class/hwmon/", chipName)
}

// DiskSensor reads a disk's temperature via smartctl, supporting both SATA
// (Temperature_Celsius attribute) and NVMe (Temperature: N Celsius) output
// formats.
type DiskSensor struct {
	name       string
	device     string
	controlled bool
	domain     string
	setpoint   float64
}

// NewDiskSensor builds a Sensor backed by `smartctl -A /dev/<device>`.
func NewDiskSensor(name, device string, controlled bool, domain string, setpoint float64) *DiskSensor {
	return &DiskSensor{name: name, device: device, controlled: controlled, domain: domain, setpoint: setpoint}
}

func (s *DiskSensor) Name() string { return s.name }

func (s *DiskSensor) Temperature() (float64, bool) {
	temp, err := readDiskTemperature(s.device)
	if err != nil {
		return 0, false
	}
	return float64(temp), true
}

func (s *DiskSensor) IsControlledByPID() bool { return s.controlled }
func (s *DiskSensor) PIDDomain() string       { return s.domain }
func (s *DiskSensor) PIDSetpoint() (float64, bool) {
	if !s.controlled {
		return 0, false
	}
	return s.setpoint, true
}

func readDiskTemperature(device string) (int, error) {
	cmd := exec.Command("smartctl", "-A", fmt.Sprintf("/dev/%s", device))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("smartctl failed for %s: %w", device, err)
	}

	isNVMe := strings.HasPrefix(device, "nvme")

	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := scanner.Text()
		if isNVMe {
			if strings.HasPrefix(line, "Temperature:") {
				fields := strings.Fields(line)
				if len(fields) >= 2 {
					if temp, err := strconv.Atoi(fields[1]); err == nil {
						return temp, nil
					}
				}
			}
		} else if strings.Contains(line, "Temperature_Celsius") {
			fields := strings.Fields(line)
			if len(fields) >= 10 {
				if temp, err := strconv.Atoi(fields[9]); err == nil {
					return temp, nil
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("parse smartctl output for %s: %w", device, err)
	}
	return 0, fmt.Errorf("no temperature found for device %s", device)
}

// DiscoverSpinningDisks finds rotational, non-removable block devices under
// /sys/block, skipping any whose name matches an exclude pattern.
func DiscoverSpinningDisks(excludePatterns []string) ([]string, error) {
	entries, err := os.ReadDir("/sys/block")
	if err != nil {
		return nil, fmt.Errorf("read /sys/block: %w", err)
	}

	var disks []string
	for _, entry := range entries {
		device := entry.Name()
		if matchesExcludePattern(device, excludePatterns) {
			continue
		}
		spinning, err := isSpinningDisk(device)
		if err != nil || !spinning {
			continue
		}
		disks = append(disks, device)
	}
	return disks, nil
}

func isSpinningDisk(device string) (bool, error) {
	rota, err := os.ReadFile(fmt.Sprintf("/sys/block/%s/queue/rotational", device))
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(string(rota)) != "1" {
		return false, nil
	}
	removable, err := os.ReadFile(fmt.Sprintf("/sys/block/%s/removable", device))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(removable)) == "0", nil
}

func matchesExcludePattern(device string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, err := regexp.MatchString(pattern, device); err == nil && matched {
			return true
		}
	}
	return false
}
