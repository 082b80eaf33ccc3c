// Package fanhw adapts an IPMI raw-command fan controller to the thermal
// package's Fan capability trait.
package fanhw

import (
	"bufio"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
)

// IPMIFan is one fan slot commanded via `ipmitool raw <netfn> <cmd> ...`.
// Many BMCs accept one raw command that sets every fan's duty cycle at
// once; slot selects this fan's position in that payload.
type IPMIFan struct {
	name       string
	bank       *IPMIFanBank
	slot       int
}

// SetSpeed commands this fan's slot to pct percent duty cycle by
// delegating to the shared bank (a single ipmitool invocation sets every
// slot at once on the controllers this driver targets).
func (f *IPMIFan) SetSpeed(pct float64) bool {
	return f.bank.setSlot(f.slot, pct)
}

// IPMIFanBank drives a set of fans that share one raw IPMI command, the
// way the ASRock X570D4U-2L2T's BMC exposes fan control: one "0x3a 0xd6"
// write carries every fan's duty byte plus fixed padding bytes.
type IPMIFanBank struct {
	log         *nhlog.Logger
	netFn       string
	cmd         string
	numFans     int
	paddingByte string
	numPadding  int
	retries     int
	retryDelay  time.Duration

	lastSpeeds []float64
}

// NewIPMIFanBank builds a bank for numFans fans sharing one raw command.
// paddingByte/numPadding reproduce the trailing fixed bytes some BMCs
// require after the per-fan duty values (e.g. "0x64" x 10 on the ASRock
// X570D4U-2L2T, confirmed by the teacher's driver).
func NewIPMIFanBank(log *nhlog.Logger, netFn, cmd string, numFans int, paddingByte string, numPadding int) *IPMIFanBank {
	return &IPMIFanBank{
		log:         log,
		netFn:       netFn,
		cmd:         cmd,
		numFans:     numFans,
		paddingByte: paddingByte,
		numPadding:  numPadding,
		retries:     3,
		retryDelay:  2 * time.Second,
		lastSpeeds:  make([]float64, numFans),
	}
}

// Fans returns one Fan per slot in the bank, in slot order.
func (b *IPMIFanBank) Fans(names []string) []*IPMIFan {
	fans := make([]*IPMIFan, b.numFans)
	for i := 0; i < b.numFans; i++ {
		name := fmt.Sprintf("fan%d", i)
		if i < len(names) {
			name = names[i]
		}
		fans[i] = &IPMIFan{name: name, bank: b, slot: i}
	}
	return fans
}

func (f *IPMIFan) Name() string { return f.name }

func (b *IPMIFanBank) setSlot(slot int, pct float64) bool {
	if slot < 0 || slot >= b.numFans {
		if b.log != nil {
			b.log.Error("fan slot %d out of range [0,%d)", slot, b.numFans)
		}
		return false
	}
	if pct < 0 || pct > 100 {
		panic(fmt.Sprintf("fan duty cycle must be within 0-100, got %g", pct))
	}

	speeds := make([]float64, b.numFans)
	copy(speeds, b.lastSpeeds)
	speeds[slot] = pct

	if err := b.apply(speeds); err != nil {
		panic(fmt.Sprintf("IPMI raw command failed: %v", err))
	}
	b.lastSpeeds = speeds
	return true
}

// apply issues the raw IPMI command with every fan's duty byte, retrying
// on failure the way the teacher's driver does (3 attempts, 2s backoff).
func (b *IPMIFanBank) apply(speeds []float64) error {
	args := []string{"raw", b.netFn, b.cmd}
	for _, pct := range speeds {
		args = append(args, fmt.Sprintf("0x%02x", int(pct)))
	}
	for i := 0; i < b.numPadding; i++ {
		args = append(args, b.paddingByte)
	}

	var lastErr error
	for attempt := 1; attempt <= b.retries; attempt++ {
		cmd := exec.Command("ipmitool", args...)
		output, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("attempt %d failed: %w, output: %s", attempt, err, string(output))
		if attempt < b.retries {
			if b.log != nil {
				b.log.Warning("IPMI command failed, retrying in %s: %v", b.retryDelay, lastErr)
			}
			time.Sleep(b.retryDelay)
		}
	}
	return fmt.Errorf("IPMI command failed after %d attempts: %w", b.retries, lastErr)
}

var fanSensorPattern = regexp.MustCompile(`^(FAN\w+)\s*\|\s*([0-9.]+|na)\s*\|\s*RPM`)

// ReadFanSpeedsRPM reads `ipmitool sensor` output and returns fan name -> RPM,
// skipping sensors reporting "na" (no fan connected). Used for diagnostics,
// not by the control loop.
func ReadFanSpeedsRPM() (map[string]int, error) {
	cmd := exec.Command("ipmitool", "sensor")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("read IPMI sensors: %w", err)
	}

	speeds := make(map[string]int)
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		matches := fanSensorPattern.FindStringSubmatch(scanner.Text())
		if len(matches) != 3 || matches[2] == "na" {
			continue
		}
		rpm, err := strconv.ParseFloat(matches[2], 64)
		if err != nil {
			continue
		}
		speeds[matches[1]] = int(rpm)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse IPMI sensor output: %w", err)
	}
	return speeds, nil
}
