package ffmpeg

import (
	"bufio"
	"strconv"
	"strings"
	"time"
)

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	Frame     int64   // Current frame number
	FPS       float64 // Encoding speed in frames per second
	TotalSize int64   // Output size so far in bytes
	OutTimeUS int64   // Output timestamp in microseconds
	Speed     string  // Speed multiplier, e.g. "2.5x"
	Progress  string  // "continue" or "end"
}

// OutTime returns the output timestamp as a duration.
func (p Progress) OutTime() time.Duration {
	return time.Duration(p.OutTimeUS) * time.Microsecond
}

// Fraction returns how far the output has advanced through total, in
// [0, 1]. A final "end" block always reports 1.
func (p Progress) Fraction(total time.Duration) float64 {
	if p.Progress == "end" {
		return 1
	}
	if total <= 0 || p.OutTimeUS <= 0 {
		return 0
	}
	f := float64(p.OutTime()) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// ParseProgressLine splits a "key=value" line.
func ParseProgressLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	return strings.Cut(line, "=")
}

// ProgressParser accumulates progress updates from ffmpeg output.
type ProgressParser struct {
	current Progress
}

// NewProgressParser creates a new progress parser.
func NewProgressParser() *ProgressParser {
	return &ProgressParser{}
}

// ParseLine parses a line and updates internal state. It returns true when a
// block is complete (on the "progress=" line).
func (p *ProgressParser) ParseLine(line string) bool {
	key, value, ok := ParseProgressLine(line)
	if !ok {
		return false
	}

	switch key {
	case "frame":
		p.current.Frame, _ = strconv.ParseInt(value, 10, 64)
	case "fps":
		p.current.FPS, _ = strconv.ParseFloat(value, 64)
	case "total_size":
		p.current.TotalSize, _ = strconv.ParseInt(value, 10, 64)
	case "out_time_us", "out_time_ms":
		// out_time_ms is microseconds as well, kept for older builds
		if us, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.current.OutTimeUS = us
		}
	case "out_time":
		if p.current.OutTimeUS == 0 {
			if d, ok := parseClock(value); ok {
				p.current.OutTimeUS = d.Microseconds()
			}
		}
	case "speed":
		p.current.Speed = strings.TrimSpace(value)
	case "progress":
		p.current.Progress = value
		return true
	}

	return false
}

// Current returns the current progress state.
func (p *ProgressParser) Current() Progress {
	return p.current
}

// ParseProgressOutput reads -progress output until EOF and sends each
// complete block to progress.
func ParseProgressOutput(scanner *bufio.Scanner, progress chan<- Progress) {
	parser := NewProgressParser()
	for scanner.Scan() {
		if parser.ParseLine(scanner.Text()) {
			progress <- parser.Current()
		}
	}
}

// parseClock parses "HH:MM:SS.micro" as printed in out_time.
func parseClock(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	return d + time.Duration(sec*float64(time.Second)), true
}
