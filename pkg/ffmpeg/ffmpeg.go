// Package ffmpeg provides a composable API for building and executing ffmpeg
// commands, plus ffprobe and encoder discovery helpers.
package ffmpeg

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Binary and ProbeBinary name the executables that are run. They may be
// absolute paths.
var (
	Binary      = "ffmpeg"
	ProbeBinary = "ffprobe"
)

// Command represents an ffmpeg command being built.
type Command struct {
	input     string
	output    string
	preInput  []string // args before -i (-ss, -noautorotate)
	postInput []string // args after -i
	filters   []string // collected -vf filters
}

// Option modifies a Command. Options are composable and order-independent
// (ffmpeg receives args in the correct order regardless of option order);
// filters keep the order they were added in.
type Option interface {
	Apply(cmd *Command)
}

// OptionFunc is a function that implements Option.
type OptionFunc func(cmd *Command)

// Apply implements Option.
func (f OptionFunc) Apply(cmd *Command) { f(cmd) }

// NewCommand creates a command with input/output and applies options.
func NewCommand(input, output string, opts ...Option) *Command {
	cmd := &Command{
		input:  input,
		output: output,
	}
	for _, opt := range opts {
		opt.Apply(cmd)
	}
	return cmd
}

// Output returns the output path.
func (c *Command) Output() string {
	return c.output
}

// Filters returns the video filter chain in order.
func (c *Command) Filters() []string {
	return append([]string(nil), c.filters...)
}

// Build returns the complete ffmpeg argument list.
func (c *Command) Build() []string {
	args := []string{"-hide_banner", "-y"}
	args = append(args, c.preInput...)
	args = append(args, "-i", c.input)
	args = append(args, c.postInput...)

	if len(c.filters) > 0 {
		args = append(args, "-vf", strings.Join(c.filters, ","))
	}

	// Network-optimized output, moov atom first
	ext := strings.ToLower(filepath.Ext(c.output))
	if ext == ".mp4" || ext == ".m4v" || ext == ".mov" {
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, c.output)
}

// buildWithProgress inserts the machine-readable progress flags right after
// the global flags.
func (c *Command) buildWithProgress() []string {
	args := c.Build()
	out := []string{args[0], args[1], "-progress", "pipe:1", "-nostats"}
	return append(out, args[2:]...)
}

// Run executes the ffmpeg command and waits for it.
func (c *Command) Run(ctx context.Context) error {
	proc, err := Start(ctx, c.Build(), nil)
	if err != nil {
		return err
	}
	return proc.Wait()
}

// StartWithProgress starts the command with progress reporting. The progress
// channel is closed when the process exits. The caller must drain it and
// then call Wait.
func (c *Command) StartWithProgress(ctx context.Context, progress chan<- Progress) (*Process, error) {
	return Start(ctx, c.buildWithProgress(), progress)
}

// --- Input options ---

// Seek sets the start position (input seeking, before -i).
func Seek(start time.Duration) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.preInput = append(cmd.preInput, "-ss", formatDuration(start))
	})
}

// NoAutoRotate stops ffmpeg from applying the stream's display matrix, so
// orientation is fully controlled by the filter chain.
var NoAutoRotate Option = OptionFunc(func(cmd *Command) {
	cmd.preInput = append(cmd.preInput, "-noautorotate")
})

// DisplayRotation overrides the display rotation of the first input video
// stream (-display_rotation:v:0, counter-clockwise degrees). Zero drops the
// stored display matrix so it cannot reach the output.
func DisplayRotation(deg int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.preInput = append(cmd.preInput, "-display_rotation:v:0", strconv.Itoa(deg))
	})
}

// LogLevel sets the logging level.
func LogLevel(level string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.preInput = append([]string{"-loglevel", level}, cmd.preInput...)
	})
}

// --- Video codec options ---

// VideoCodec sets the video codec (-c:v).
func VideoCodec(codec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-c:v", codec)
	})
}

// CRF sets the constant rate factor.
func CRF(value int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-crf", strconv.Itoa(value))
	})
}

// Preset sets the encoder speed preset (ultrafast, fast, medium, etc.).
func Preset(name string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-preset", name)
	})
}

// PixelFormat sets the pixel format (-pix_fmt).
func PixelFormat(fmt string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-pix_fmt", fmt)
	})
}

// VideoTag sets the codec tag (-tag:v), e.g. hvc1 for HEVC in QuickTime.
func VideoTag(tag string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-tag:v", tag)
	})
}

// ClearRotation resets the rotation metadata of the first video stream, for
// outputs whose pixels were already rotated by the filter chain.
var ClearRotation Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-metadata:s:v:0", "rotate=0")
})

// --- Audio codec options ---

// AudioCodec sets the audio codec (-c:a).
func AudioCodec(codec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-c:a", codec)
	})
}

// AudioBitrate sets the audio bitrate (-b:a).
func AudioBitrate(bitrate string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-b:a", bitrate)
	})
}

// --- Stream copy ---

// CopyAll copies all streams without re-encoding (-c copy).
var CopyAll Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-c", "copy")
})

// NoAudio disables audio in output (-an).
var NoAudio Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-an")
})

// MapStream maps a specific stream (-map {spec}).
func MapStream(spec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-map", spec)
	})
}

// --- Filters ---

// Filter appends a video filter to the filter chain.
func Filter(f string) Option {
	return OptionFunc(func(cmd *Command) {
		if f != "" {
			cmd.filters = append(cmd.filters, f)
		}
	})
}

// --- Output ---

// Frames sets the number of frames to output (-frames:v).
func Frames(n int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-frames:v", strconv.Itoa(n))
	})
}

// Quality sets the output quality for images (-q:v).
func Quality(q int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-q:v", strconv.Itoa(q))
	})
}

// Flatten merges multiple option slices into one.
func Flatten(groups ...[]Option) []Option {
	var all []Option
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func formatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
