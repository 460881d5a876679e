package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ProbeResult contains media file metadata.
type ProbeResult struct {
	// First video stream; Width/Height are the stored (unrotated) size
	Width       int
	Height      int
	FPS         float64
	VideoCodec  string
	PixelFormat string
	// Rotation is the clockwise display rotation in degrees, normalized to
	// 0, 90, 180 or 270. When Mirrored is set the frame is flipped
	// horizontally before it is rotated.
	Rotation int
	Mirrored bool

	AudioCodec string

	Duration   time.Duration
	Size       int64
	FormatName string

	VideoStreams int
	AudioStreams int
}

// HasVideo reports whether at least one video stream was found. Attached
// cover art is not counted.
func (r *ProbeResult) HasVideo() bool {
	return r.VideoStreams > 0
}

// Upright reports whether frames are displayed as stored.
func (r *ProbeResult) Upright() bool {
	return r.Rotation == 0 && !r.Mirrored
}

// DisplaySize returns the frame size after applying Rotation.
func (r *ProbeResult) DisplaySize() (w, h int) {
	if r.Rotation == 90 || r.Rotation == 270 {
		return r.Height, r.Width
	}
	return r.Width, r.Height
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	PixelFormat  string            `json:"pix_fmt"`
	Tags         map[string]string `json:"tags"`
	Disposition  map[string]int    `json:"disposition"`
	SideDataList []map[string]any  `json:"side_data_list"`
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe runs ffprobe on a file and returns metadata.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	args := []string{
		"-hide_banner",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, ProbeBinary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, stderr.String())
	}
	return ParseProbeOutput(stdout.Bytes())
}

// ParseProbeOutput decodes ffprobe's JSON output.
func ParseProbeOutput(raw []byte) (*ProbeResult, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, fmt.Errorf("ffprobe: failed to parse output: %w", err)
	}

	result := &ProbeResult{FormatName: output.Format.FormatName}
	if secs, err := strconv.ParseFloat(output.Format.Duration, 64); err == nil {
		result.Duration = time.Duration(secs * float64(time.Second))
	}
	if output.Format.Size != "" {
		result.Size, _ = strconv.ParseInt(output.Format.Size, 10, 64)
	}

	for _, stream := range output.Streams {
		switch stream.CodecType {
		case "video":
			if stream.Disposition["attached_pic"] == 1 {
				continue
			}
			result.VideoStreams++
			if result.VideoCodec == "" {
				result.Width = stream.Width
				result.Height = stream.Height
				result.VideoCodec = stream.CodecName
				result.PixelFormat = stream.PixelFormat
				result.FPS = parseFrameRate(stream.RFrameRate)
				result.Rotation, result.Mirrored = streamOrientation(stream)
			}
		case "audio":
			result.AudioStreams++
			if result.AudioCodec == "" {
				result.AudioCodec = stream.CodecName
			}
		}
	}

	return result, nil
}

// streamOrientation reads the display matrix side data or, for older files,
// the "rotate" tag (clockwise degrees). The matrix is preferred over the
// reported "rotation" (counter-clockwise degrees), which cannot express a flip.
func streamOrientation(s ffprobeStream) (rotation int, mirrored bool) {
	for _, sd := range s.SideDataList {
		if t, _ := sd["side_data_type"].(string); t != "Display Matrix" {
			continue
		}
		if raw, ok := sd["displaymatrix"].(string); ok {
			if m, err := parseDisplayMatrix(raw); err == nil {
				return matrixOrientation(m)
			}
		}
		switch v := sd["rotation"].(type) {
		case float64:
			return normalizeRotation(-v), false
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return normalizeRotation(-f), false
			}
		}
	}
	if tag, ok := s.Tags["rotate"]; ok {
		if f, err := strconv.ParseFloat(tag, 64); err == nil {
			return normalizeRotation(f), false
		}
	}
	return 0, false
}

// parseDisplayMatrix reads the 3x3 matrix ffprobe prints as three rows of
// "index: a b c" integers.
func parseDisplayMatrix(raw string) ([9]int64, error) {
	var m [9]int64
	n := 0
	for _, line := range strings.Split(raw, "\n") {
		_, row, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		for _, f := range strings.Fields(row) {
			if n == len(m) {
				return m, fmt.Errorf("ffprobe: display matrix has more than %d entries", len(m))
			}
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return m, fmt.Errorf("ffprobe: display matrix: %w", err)
			}
			m[n] = v
			n++
		}
	}
	if n != len(m) {
		return m, fmt.Errorf("ffprobe: display matrix has %d entries", n)
	}
	return m, nil
}

// matrixOrientation snaps the linear part of a display matrix to the nearest
// quarter turn, with a horizontal flip first when the determinant is negative.
//
// The matrix maps x' = a*x + c*y, y' = b*x + d*y with a, b, c, d at indexes
// 0, 1, 3 and 4.
func matrixOrientation(m [9]int64) (rotation int, mirrored bool) {
	a, b := snapAxis(m[0], m[1])
	c, d := snapAxis(m[3], m[4])
	if a*d-b*c == 0 {
		return 0, false
	}
	if a*d-b*c < 0 {
		// Undo the flip: hflip followed by the rotation negates the first column.
		mirrored = true
		a, b = -a, -b
	}
	switch {
	case a == 0 && b == 1:
		rotation = 90
	case a == -1 && b == 0:
		rotation = 180
	case a == 0 && b == -1:
		rotation = 270
	}
	return rotation, mirrored
}

// snapAxis keeps the dominant component of a matrix column as +-1.
func snapAxis(x, y int64) (int64, int64) {
	switch {
	case x == 0 && y == 0:
		return 0, 0
	case abs64(x) >= abs64(y):
		return sign64(x), 0
	default:
		return 0, sign64(y)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign64(v int64) int64 {
	if v < 0 {
		return -1
	}
	return 1
}

// normalizeRotation snaps degrees to the nearest quarter turn in [0, 360).
func normalizeRotation(deg float64) int {
	q := int(math.Round(deg/90)) % 4
	if q < 0 {
		q += 4
	}
	return q * 90
}

// parseFrameRate parses ffprobe frame rate format (e.g. "30/1" or "30000/1001").
func parseFrameRate(rate string) float64 {
	var num, den int
	if _, err := fmt.Sscanf(rate, "%d/%d", &num, &den); err != nil || den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
