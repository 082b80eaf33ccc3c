// Package telemetry implements bounded-size rolling CSV files for per-tick
// thermal telemetry (C4).
package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexthop-ai/sonic-platform-thermalctl/internal/nhlog"
)

const (
	// MaxMB is the soft size cap per stream before trimming.
	MaxMB = 50
	// TrimRatio is the fraction of newest data rows kept on trim.
	TrimRatio = 0.8
)

// Dir is the directory rolling CSV streams are written under.
var Dir = "/var/log/thermal_control"

// Debuggable reports whether telemetry writes are currently enabled. CSV
// writes are gated on this predicate; when it is false, Stream.LogRow is a
// no-op with zero I/O.
type Debuggable interface {
	DebugEnabled() bool
}

// Stream is a single named append-only CSV file with a fixed header row.
// All I/O errors are caught and logged; they never propagate to the caller.
type Stream struct {
	filename string
	header   []string
	path     string
	log      *nhlog.Logger
	debug    Debuggable
}

// NewStream creates a Stream for filename (relative to Dir) with the given
// header row, gated on debug's DebugEnabled predicate.
func NewStream(filename string, header []string, log *nhlog.Logger, debug Debuggable) *Stream {
	return &Stream{
		filename: filename,
		header:   header,
		path:     filepath.Join(Dir, filename),
		log:      log,
		debug:    debug,
	}
}

// LogRow appends one data row, handling directory creation, header
// initialization, and size-based trimming. It never returns an error:
// failures are logged through the stream's logger and swallowed so telemetry
// never breaks control.
func (s *Stream) LogRow(row []string) {
	if s.debug != nil && !s.debug.DebugEnabled() {
		return
	}
	if err := s.ensureInitialized(); err != nil {
		s.logErr("initialize", err)
		return
	}
	if err := s.trimIfOversized(); err != nil {
		s.logErr("trim", err)
		return
	}
	if err := s.appendRow(row); err != nil {
		s.logErr("write", err)
		return
	}
}

func (s *Stream) logErr(action string, err error) {
	if s.log != nil {
		s.log.Error("Failed to %s CSV file %s: %v", action, s.filename, err)
	}
}

func (s *Stream) ensureInitialized() error {
	if err := os.MkdirAll(Dir, 0o755); err != nil {
		return fmt.Errorf("create CSV log directory %s: %w", Dir, err)
	}
	info, statErr := os.Stat(s.path)
	hasContent := statErr == nil && info.Size() > 0
	if hasContent {
		return nil
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("initialize CSV file %s: %w", s.filename, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(s.header); err != nil {
		return fmt.Errorf("write CSV header for %s: %w", s.filename, err)
	}
	w.Flush()
	return w.Error()
}

func (s *Stream) trimIfOversized() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < MaxMB*1024*1024 {
		return nil
	}
	return s.trim()
}

// trim rewrites the file keeping the header plus the newest
// max(2, floor(0.8*total_lines)) - 1 data rows.
func (s *Stream) trim() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	lines := splitLines(data)
	if len(lines) <= 1 {
		return nil
	}
	totalLines := len(lines)
	linesToKeep := int(float64(totalLines) * TrimRatio)
	if linesToKeep < 2 {
		linesToKeep = 2
	}
	header := lines[0]
	dataLinesToKeep := linesToKeep - 1
	var newer []string
	if dataLinesToKeep > 0 {
		newer = lines[len(lines)-dataLinesToKeep:]
	}

	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(header); err != nil {
		return err
	}
	for _, l := range newer {
		if _, err := f.WriteString(l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) appendRow(row []string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// splitLines splits raw CSV file bytes into newline-terminated lines,
// preserving each line's trailing newline so rewriting is a byte-exact
// concatenation.
func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i+1]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
