package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// EncoderSet is the set of encoder names compiled into an ffmpeg build.
type EncoderSet map[string]struct{}

// Has reports whether the encoder is available.
func (s EncoderSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// NewEncoderSet builds a set from names, mostly for tests.
func NewEncoderSet(names ...string) EncoderSet {
	s := make(EncoderSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Encoders runs "ffmpeg -encoders" and returns the available encoders.
func Encoders(ctx context.Context) (EncoderSet, error) {
	cmd := exec.CommandContext(ctx, Binary, "-hide_banner", "-encoders")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w: %s", err, stderr.String())
	}
	return ParseEncoders(stdout.String()), nil
}

// ParseEncoders parses "ffmpeg -encoders" output. Entries follow a legend
// terminated by a " ------" line and look like:
//
//	V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC
func ParseEncoders(out string) EncoderSet {
	set := EncoderSet{}
	inList := false
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inList {
			inList = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		set[fields[1]] = struct{}{}
	}
	return set
}
