// Package dpmspec loads the platform-specific ADM1266 DPM table (C5): rail
// descriptions, the fault signal bit map, the fault code lookup table, and
// the PDIO-to-reboot-cause mapping, from a YAML platform data file.
package dpmspec

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FaultCause is one PDIO bit's reboot-cause classification.
type FaultCause struct {
	RebootCause string `yaml:"reboot_cause"`
	Description string `yaml:"description"`
}

// rawSpec mirrors the YAML document shape, where every map key is a string
// (YAML/PDDF convention); PlatformSpec converts these to int keys once,
// the way the original platform code does when loading PDDF plugin data.
type rawSpec struct {
	NvmemPath             string                `yaml:"nvmem_path"`
	VPXToRailDesc         map[string]string     `yaml:"vpx_to_rail_desc"`
	VHXToRailDesc         map[string]string     `yaml:"vhx_to_rail_desc"`
	DPMSignals            map[string]int        `yaml:"dpm_signals"`
	DPMTable              map[string]string      `yaml:"dpm_table"`
	PDIOInputToFaultCause map[string]FaultCause `yaml:"pdio_input_to_fault_cause"`
}

type rawDocument struct {
	DPM map[string]rawSpec `yaml:"DPM"`
}

// PlatformSpec is one DPM device's immutable platform data (§3 "Platform
// Spec").
type PlatformSpec struct {
	Name                  string
	NvmemPath             string
	VPXToRailDesc         map[int]string
	VHXToRailDesc         map[int]string
	DPMSignals            map[int]int
	DPMTable              map[int]string
	PDIOInputToFaultCause map[int]FaultCause
}

// Load reads and parses a platform spec YAML file for the named device.
func Load(path, name string) (*PlatformSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read DPM platform spec %s: %w", path, err)
	}
	return Parse(data, name)
}

// Parse parses a platform spec document already in memory, picking out the
// entry for name under the top-level "DPM" map.
func Parse(data []byte, name string) (*PlatformSpec, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse DPM platform spec: %w", err)
	}
	raw, ok := doc.DPM[name]
	if !ok {
		return nil, fmt.Errorf("DPM platform spec has no entry for device %q", name)
	}

	vpx, err := intKeyedStrings(raw.VPXToRailDesc)
	if err != nil {
		return nil, fmt.Errorf("vpx_to_rail_desc: %w", err)
	}
	vhx, err := intKeyedStrings(raw.VHXToRailDesc)
	if err != nil {
		return nil, fmt.Errorf("vhx_to_rail_desc: %w", err)
	}
	signals, err := intKeyedInts(raw.DPMSignals)
	if err != nil {
		return nil, fmt.Errorf("dpm_signals: %w", err)
	}
	table, err := intKeyedStrings(raw.DPMTable)
	if err != nil {
		return nil, fmt.Errorf("dpm_table: %w", err)
	}
	causes, err := intKeyedCauses(raw.PDIOInputToFaultCause)
	if err != nil {
		return nil, fmt.Errorf("pdio_input_to_fault_cause: %w", err)
	}

	return &PlatformSpec{
		Name:                  name,
		NvmemPath:             raw.NvmemPath,
		VPXToRailDesc:         vpx,
		VHXToRailDesc:         vhx,
		DPMSignals:            signals,
		DPMTable:              table,
		PDIOInputToFaultCause: causes,
	}, nil
}

func intKeyedStrings(m map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(m))
	for k, v := range m {
		ik, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-integer key %q: %w", k, err)
		}
		out[ik] = v
	}
	return out, nil
}

func intKeyedInts(m map[string]int) (map[int]int, error) {
	out := make(map[int]int, len(m))
	for k, v := range m {
		ik, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-integer key %q: %w", k, err)
		}
		out[ik] = v
	}
	return out, nil
}

func intKeyedCauses(m map[string]FaultCause) (map[int]FaultCause, error) {
	out := make(map[int]FaultCause, len(m))
	for k, v := range m {
		ik, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-integer key %q: %w", k, err)
		}
		out[ik] = v
	}
	return out, nil
}

// RailDesc returns the configured rail description for VP index i (vpx true)
// or VH index i (vpx false), or the fallback "VP{i}"/"VH{i}" if the platform
// spec has none (§4.5 field rendering).
func (s *PlatformSpec) RailDesc(vpx bool, i int) string {
	if vpx {
		if d, ok := s.VPXToRailDesc[i]; ok {
			return d
		}
		return fmt.Sprintf("VP%d", i)
	}
	if d, ok := s.VHXToRailDesc[i]; ok {
		return d
	}
	return fmt.Sprintf("VH%d", i)
}
