// Command thermalctl runs the domain-partitioned PID thermal control
// engine and, on request, decodes the DPM blackbox and prints the
// resolved reboot cause.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/blackbox"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/dpmspec"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/fanhw"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/hostcfg"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/metrics"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/policy"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/reboot"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/sensorhw"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/thermal"
)

var (
	hostConfigPath   = flag.String("config", "/etc/thermalctl/host.yaml", "path to the host wiring configuration")
	logLevelOverride = flag.String("log-level", "", "override log level (debug, info, notice, warning, error)")
	decodeBlackbox   = flag.Bool("decode-blackbox", false, "read and decode the DPM blackbox, print the reboot cause, and exit")
	dryRun           = flag.Bool("dry-run", false, "skip the fail-safe 100% fan command on shutdown; the control loop still commands fans")
)

func main() {
	flag.Parse()

	hc, err := hostcfg.Load(*hostConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thermalctl: failed to load host config: %v\n", err)
		os.Exit(1)
	}

	level := nhlog.ParseLevel(hc.Server.LogLevel)
	if *logLevelOverride != "" {
		level = nhlog.ParseLevel(*logLevelOverride)
	}
	log := nhlog.New("thermalctl", level)

	spec, err := dpmspec.Load(hc.DPM.PlatformSpecPath, hc.DPM.Name)
	if err != nil {
		log.Error("failed to load DPM platform spec: %v", err)
		os.Exit(1)
	}
	nvmemPath := spec.NvmemPath
	if hc.DPM.NvmemPathOverride != "" {
		nvmemPath = hc.DPM.NvmemPathOverride
	}

	reg := prometheus.NewRegistry()
	metr := metrics.New(reg)

	if *decodeBlackbox {
		runDecodeBlackbox(log, nvmemPath, spec, metr)
		return
	}

	cfg, err := policy.Load(hc.Server.PolicyPath)
	if err != nil {
		log.Error("failed to load policy config: %v", err)
		os.Exit(1)
	}

	metrics.NewServer(reg, log).ListenAndServe(hc.Server.MetricsPort)

	sensors, err := buildSensors(hc)
	if err != nil {
		log.Error("failed to build sensors: %v", err)
		os.Exit(1)
	}
	fans := buildFans(log, hc)

	engine := thermal.New(cfg, log, metr)
	interval := fixedInterval{seconds: int(hc.Server.PollInterval.Seconds())}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go runControlLoop(log, engine, sensors, fans, interval, hc.Server.PollInterval, done)

	<-sigChan
	log.Notice("received shutdown signal, setting fans to 100%%")
	if !*dryRun {
		if err := thermal.SetAllFanSpeeds(log, fans, thermal.FanMaxSpeed); err != nil {
			log.Error("failed to set fans to 100%% during shutdown: %v", err)
		}
	}
	close(done)
}

// fixedInterval reports a constant tick interval, matching the host's
// configured poll_interval (§4.2 step 1's interval-consistency check).
type fixedInterval struct{ seconds int }

func (f fixedInterval) Interval() int { return f.seconds }

func runControlLoop(log *nhlog.Logger, engine *thermal.Engine, sensors []thermal.Sensor, fans []thermal.Fan, interval fixedInterval, poll time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			report, err := engine.Tick(sensors, fans, interval)
			if err != nil {
				log.Error("tick failed: %v", err)
				continue
			}
			log.Debug("tick complete: selected_domain=%s fan_speed=%.1f%%", report.SelectedDomain, report.FanSpeed)
		}
	}
}

func buildSensors(hc *hostcfg.Config) ([]thermal.Sensor, error) {
	sensors := make([]thermal.Sensor, 0, len(hc.Sensors))
	for _, s := range hc.Sensors {
		switch s.Kind {
		case "hwmon":
			path, err := sensorhw.FindHwmonPath(s.HwmonChip, s.HwmonChannel)
			if err != nil {
				return nil, fmt.Errorf("sensor %q: %w", s.Name, err)
			}
			sensors = append(sensors, sensorhw.NewHwmonSensor(s.Name, path, s.ControlledByPID, s.PIDDomain, s.PIDSetpoint))
		case "disk":
			sensors = append(sensors, sensorhw.NewDiskSensor(s.Name, s.DiskDevice, s.ControlledByPID, s.PIDDomain, s.PIDSetpoint))
		default:
			return nil, fmt.Errorf("sensor %q: unknown kind %q", s.Name, s.Kind)
		}
	}
	return sensors, nil
}

func buildFans(log *nhlog.Logger, hc *hostcfg.Config) []thermal.Fan {
	bank := fanhw.NewIPMIFanBank(log, hc.Fans.NetFn, hc.Fans.Cmd, hc.Fans.NumFans, hc.Fans.PaddingByte, hc.Fans.NumPadding)
	ipmiFans := bank.Fans(hc.Fans.Names)
	fans := make([]thermal.Fan, len(ipmiFans))
	for i, f := range ipmiFans {
		fans[i] = f
	}
	return fans
}

func runDecodeBlackbox(log *nhlog.Logger, nvmemPath string, spec *dpmspec.PlatformSpec, metr *metrics.Metrics) {
	data, err := os.ReadFile(nvmemPath)
	if err != nil {
		log.Error("failed to read NVMEM device %s: %v", nvmemPath, err)
		os.Exit(1)
	}

	records, err := blackbox.ParseBlackbox(data)
	if err != nil {
		log.Error("failed to decode blackbox: %v", err)
		os.Exit(1)
	}
	metr.SetBlackboxFaultRecords(len(records))

	cause, debugMsg := reboot.GetRebootCause(records, spec)
	metr.IncRebootCause(cause)

	fmt.Printf("records: %d\n", len(records))
	fmt.Printf("reboot_cause: %s\n", cause)
	fmt.Printf("debug_msg: %s\n", debugMsg)
}
