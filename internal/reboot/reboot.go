// Package reboot resolves the system reboot cause from decoded DPM
// blackbox fault records (C7).
package reboot

import (
	"fmt"
	"strings"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/blackbox"
	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/dpmspec"
)

// NoFaultRecorded is returned as the reboot cause when the blackbox holds no
// records (e.g. it reads back the empty-state sentinel).
const NoFaultRecorded = "REBOOT_CAUSE_NON_HARDWARE"

// rebootCausePriority ranks canonical reboot causes from most to least
// specific. get_reboot_cause_type prefers the highest-priority cause present
// in its input over a generic one; a cause absent from this list sorts last.
var rebootCausePriority = []string{
	"REBOOT_CAUSE_POWER_LOSS",
	"REBOOT_CAUSE_WATCHDOG",
	"REBOOT_CAUSE_THERMAL_OVERLOAD_CPU",
	"REBOOT_CAUSE_THERMAL_OVERLOAD_ASIC",
	"REBOOT_CAUSE_HARDWARE_OTHER",
	"REBOOT_CAUSE_NON_HARDWARE",
}

func priorityRank(cause string) int {
	for i, c := range rebootCausePriority {
		if c == cause {
			return i
		}
	}
	return len(rebootCausePriority)
}

// GetRebootCauseType picks one representative cause from a set of candidate
// causes using the platform's priority order (§4.7 step c). Returns
// NoFaultRecorded if causes is empty.
func GetRebootCauseType(causes []string) string {
	if len(causes) == 0 {
		return NoFaultRecorded
	}
	best := causes[0]
	bestRank := priorityRank(best)
	for _, c := range causes[1:] {
		if r := priorityRank(c); r < bestRank {
			best = c
			bestRank = r
		}
	}
	return best
}

// GetRebootCause resolves (reboot_cause, debug_msg) from a set of parsed
// blackbox records (§4.7). The triggering fault is the record with the
// greatest uid; its set PDIO input bits are mapped through the platform
// spec to a set of candidate causes, and get_reboot_cause_type picks the
// representative one. If records is empty, returns the "no fault recorded"
// sentinel.
func GetRebootCause(records []blackbox.Record, spec *dpmspec.PlatformSpec) (string, string) {
	if len(records) == 0 {
		return NoFaultRecorded, "no fault recorded"
	}

	triggering := triggeringFault(records)

	var causes []string
	for bit := 0; bit < 16; bit++ {
		mask := 1 << bit
		if int(triggering.PDIOIn)&mask == 0 {
			continue
		}
		fc, ok := spec.PDIOInputToFaultCause[mask]
		if !ok {
			continue
		}
		causes = append(causes, fc.RebootCause)
	}

	rebootCause := GetRebootCauseType(causes)

	faultStr := blackbox.DecodeDPMFault(spec.DPMTable, spec.DPMSignals, int(triggering.PDIOIn))
	railNames := blackbox.FaultedRailDescriptions(triggering, spec)
	debugMsg := renderDebugMessage(triggering, faultStr, railNames)

	return rebootCause, debugMsg
}

func triggeringFault(records []blackbox.Record) blackbox.Record {
	best := records[0]
	for _, r := range records[1:] {
		if r.UID > best.UID {
			best = r
		}
	}
	return best
}

func renderDebugMessage(r blackbox.Record, faultStr string, railDescriptions []string) string {
	parts := []string{
		fmt.Sprintf("fault uid %d", r.UID),
		blackbox.TimeSince(r.Timestamp),
	}
	if faultStr != "" {
		parts = append(parts, faultStr)
	}
	if len(railDescriptions) > 0 {
		parts = append(parts, "rails: "+strings.Join(railDescriptions, ", "))
	}
	return strings.Join(parts, "; ")
}
