package ffmpeg

import (
	"context"
	"time"
)

// FrameOptions configures single-frame extraction.
type FrameOptions struct {
	Offset  time.Duration // Where to extract from
	Width   int           // Output width with an even height (0 keeps the source size)
	Quality int           // JPEG quality 1-31, lower is better (default: 4)
}

// ExtractFrame writes the frame at opts.Offset as an image. ffmpeg's
// autorotation is left on, so the frame comes out in display orientation.
func ExtractFrame(ctx context.Context, input, output string, opts *FrameOptions) error {
	return frameCommand(input, output, opts).Run(ctx)
}

func frameCommand(input, output string, opts *FrameOptions) *Command {
	if opts == nil {
		opts = &FrameOptions{}
	}
	if opts.Quality == 0 {
		opts.Quality = 4
	}

	runOpts := []Option{
		Seek(opts.Offset),
		Frames(1),
		Quality(opts.Quality),
	}
	if opts.Width > 0 {
		runOpts = append(runOpts, ScaleWidth(opts.Width))
	}
	return NewCommand(input, output, runOpts...)
}
