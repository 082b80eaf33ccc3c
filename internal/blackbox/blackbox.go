// Package blackbox decodes the ADM1266 DPM's NVMEM fault-history blob (C6):
// a sequence of fixed-layout fault records, plus the rendering helpers used
// to turn raw fields into human-readable debug text.
package blackbox

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/dpmspec"
)

// emptyBlackbox is the literal byte sequence an erased/empty-state device
// returns in place of any fault records.
var emptyBlackbox = []byte("1")

// RecordSize is the fixed on-wire size of one fault record, in bytes:
// uid(2) + timestamp(8) + state(1) + dpm_status_flags(2) + gpio_in(2) +
// gpio_out(2) + pdio_in(2) + pdio_out(2) + vp[16](16) + vh[4](4).
// The device's real layout is platform-defined; this is the fixed reference
// layout this package decodes.
const RecordSize = 2 + 8 + 1 + 2 + 2 + 2 + 2 + 2 + 16 + 4

const (
	numVP = 16
	numVH = 4
)

// Record is one decoded fault-history entry (§3 "Fault Record", minus the
// rendered description fields, which are computed by Render).
type Record struct {
	UID            uint16
	Timestamp      uint64
	State          uint8
	DPMStatusFlags uint16
	GPIOIn         uint16
	GPIOOut        uint16
	PDIOIn         uint16
	PDIOOut        uint16
	VP             [numVP]uint8
	VH             [numVH]uint8
}

// ParseBlackbox decodes a raw NVMEM blob into an ordered list of Records.
// The literal single-byte "1" payload means the device has no recorded
// faults and decodes to an empty, non-error result. Any other length that
// is not an exact multiple of RecordSize is a decoding error.
func ParseBlackbox(data []byte) ([]Record, error) {
	if len(data) == 1 && data[0] == emptyBlackbox[0] {
		return nil, nil
	}
	if len(data)%RecordSize != 0 {
		return nil, fmt.Errorf("blackbox blob length %d is not a multiple of record size %d", len(data), RecordSize)
	}

	count := len(data) / RecordSize
	records := make([]Record, 0, count)
	for i := 0; i < count; i++ {
		buf := data[i*RecordSize : (i+1)*RecordSize]
		records = append(records, decodeRecord(buf))
	}
	return records, nil
}

func decodeRecord(buf []byte) Record {
	var r Record
	off := 0
	r.UID = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.Timestamp = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	r.State = buf[off]
	off++
	r.DPMStatusFlags = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.GPIOIn = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.GPIOOut = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.PDIOIn = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.PDIOOut = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	copy(r.VP[:], buf[off:off+numVP])
	off += numVP
	copy(r.VH[:], buf[off:off+numVH])
	return r
}

// TimeSince renders a record's timestamp field (§4.5 field rendering).
func TimeSince(seconds uint64) string {
	return fmt.Sprintf("%d seconds after power-on", seconds)
}

// unknownChannelName is the literal placeholder for a set bit that has no
// entry in the platform's channel map.
const unknownChannelName = "0bXXXX"

// ChannelNames renders a GPIO or PDIO bitfield as a comma-separated list of
// set-bit names, looking each bit's value up in channelMap (keyed by the
// bit's bitmask value, e.g. 1, 2, 4, 8 ...). Bits with no entry render as
// the literal placeholder "0bXXXX".
func ChannelNames(bitmask uint16, channelMap map[int]string) string {
	names := ""
	for bit := 0; bit < 16; bit++ {
		mask := 1 << bit
		if int(bitmask)&mask == 0 {
			continue
		}
		name, ok := channelMap[mask]
		if !ok {
			name = unknownChannelName
		}
		if names != "" {
			names += ","
		}
		names += name
	}
	return names
}

// DecodeDPMFault computes the composite fault code for a PDIO input
// bitfield and looks it up in the platform's fault table (§4.5
// decode_dpm_fault). dpmSignals is keyed by PDIO channel bitmask value
// (e.g. 2, 4, 8 ...) and maps to the bit position the channel contributes
// to the composite code. Returns "" if the composite code has no entry or
// an empty entry in dpmTable.
func DecodeDPMFault(dpmTable map[int]string, dpmSignals map[int]int, pdioInput int) string {
	code := 0
	for channelBit, codeBit := range dpmSignals {
		if pdioInput&channelBit != 0 {
			code |= 1 << uint(codeBit)
		}
	}
	cause, ok := dpmTable[code]
	if !ok {
		return ""
	}
	return cause
}

// Render produces the human-readable field set for one record, given the
// device's platform spec (§4.5 field rendering: rail descriptions and
// timestamp formatting).
func Render(r Record, spec *dpmspec.PlatformSpec) map[string]string {
	fields := map[string]string{
		"uid":              fmt.Sprintf("%d", r.UID),
		"timestamp":        TimeSince(r.Timestamp),
		"state":            fmt.Sprintf("%d", r.State),
		"dpm_status_flags": fmt.Sprintf("0x%04x", r.DPMStatusFlags),
		"gpio_in":          ChannelNames(r.GPIOIn, nil),
		"gpio_out":         ChannelNames(r.GPIOOut, nil),
		"pdio_in":          fmt.Sprintf("0x%04x", r.PDIOIn),
		"pdio_out":         fmt.Sprintf("0x%04x", r.PDIOOut),
	}
	for i, v := range r.VP {
		fields[fmt.Sprintf("vp%d", i)] = fmt.Sprintf("%s=%d", spec.RailDesc(true, i), v)
	}
	for i, v := range r.VH {
		fields[fmt.Sprintf("vh%d", i)] = fmt.Sprintf("%s=%d", spec.RailDesc(false, i), v)
	}
	return fields
}

// FaultedRailDescriptions returns the platform rail description for every
// VP/VH channel in r that recorded a non-zero value, in VP-then-VH, index
// order (§4.7 step d: "the rail descriptions of faulted rails"). It reuses
// Render's field rendering so the description text always matches what a
// full field dump would show for the same record.
func FaultedRailDescriptions(r Record, spec *dpmspec.PlatformSpec) []string {
	fields := Render(r, spec)
	var names []string
	for i, v := range r.VP {
		if v == 0 {
			continue
		}
		if rendered, ok := fields[fmt.Sprintf("vp%d", i)]; ok {
			names = append(names, strings.SplitN(rendered, "=", 2)[0])
		}
	}
	for i, v := range r.VH {
		if v == 0 {
			continue
		}
		if rendered, ok := fields[fmt.Sprintf("vh%d", i)]; ok {
			names = append(names, strings.SplitN(rendered, "=", 2)[0])
		}
	}
	return names
}
