// Package export turns a crop rectangle into a result: a cropped still
// (synchronously) or a transcoded, spatially cropped video (as a Job with
// progress and cancellation).
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/pkg/ffmpeg"
	"thirdcoast.systems/mediacrop/pkg/geometry"
)

// Process is a started transcode.
type Process interface {
	Wait() error
	Kill() error
}

// Transcoder runs the media tools. FFmpeg is the production implementation.
type Transcoder interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
	Encoders(ctx context.Context) (ffmpeg.EncoderSet, error)
	// Start launches cmd. progress is closed when the process exits.
	Start(ctx context.Context, cmd *ffmpeg.Command, progress chan<- ffmpeg.Progress) (Process, error)
}

// FFmpeg runs the ffmpeg and ffprobe binaries.
type FFmpeg struct{}

func (FFmpeg) Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error) {
	return ffmpeg.Probe(ctx, path)
}

func (FFmpeg) Encoders(ctx context.Context) (ffmpeg.EncoderSet, error) {
	return ffmpeg.Encoders(ctx)
}

func (FFmpeg) Start(ctx context.Context, cmd *ffmpeg.Command, progress chan<- ffmpeg.Progress) (Process, error) {
	return cmd.StartWithProgress(ctx, progress)
}

// Engine starts video exports into a scratch directory.
type Engine struct {
	transcoder Transcoder
	dir        *scratch.Dir
	logger     *slog.Logger

	mu       sync.Mutex
	encoders ffmpeg.EncoderSet
}

// NewEngine creates an engine writing outputs into dir.
func NewEngine(t Transcoder, dir *scratch.Dir, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		transcoder: t,
		dir:        dir,
		logger:     logger.With("component", "export"),
	}
}

// Transcoder returns the engine's transcoder, for probing sources.
func (e *Engine) Transcoder() Transcoder { return e.transcoder }

// availableEncoders lists the build's encoders once and caches a success.
func (e *Engine) availableEncoders(ctx context.Context) (ffmpeg.EncoderSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoders != nil {
		return e.encoders, nil
	}
	set, err := e.transcoder.Encoders(ctx)
	if err != nil {
		return nil, err
	}
	e.encoders = set
	return set, nil
}

// ResolvePreset returns the named preset, or the best preset the ffmpeg
// build supports when name is empty. Unknown names and missing encoders
// are ErrCodecUnsupported.
func (e *Engine) ResolvePreset(ctx context.Context, name string) (ffmpeg.ExportPreset, error) {
	encoders, err := e.availableEncoders(ctx)
	if err != nil {
		return ffmpeg.ExportPreset{}, fmt.Errorf("%w: list encoders: %v", ErrCodecUnsupported, err)
	}
	if name == "" {
		p, err := ffmpeg.OptimalExportPreset(encoders)
		if err != nil {
			return ffmpeg.ExportPreset{}, fmt.Errorf("%w: %v", ErrCodecUnsupported, err)
		}
		return p, nil
	}
	p, ok := ffmpeg.LookupExportPreset(name)
	if !ok {
		return ffmpeg.ExportPreset{}, fmt.Errorf("%w: unknown preset %q", ErrCodecUnsupported, name)
	}
	if !p.Supported(encoders) {
		return ffmpeg.ExportPreset{}, fmt.Errorf("%w: preset %q needs encoder %s", ErrCodecUnsupported, name, p.Encoder)
	}
	return p, nil
}

// StartVideo exports crop (natural coordinates; nil for the whole frame) of
// source with the named preset ("" picks the optimal one). The returned job
// is already running.
func (e *Engine) StartVideo(ctx context.Context, source string, crop *geometry.Rect, preset string) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()

	output, err := e.dir.CreateEmpty(".mov")
	job := newJob(id, output, cancel)
	if err != nil {
		job.resolve(&TranscodeError{Err: err})
		return job
	}

	logger := e.logger.With("job_id", id)
	go e.run(jobCtx, job, logger, source, crop, preset)
	return job
}

func (e *Engine) run(ctx context.Context, job *Job, logger *slog.Logger, source string, crop *geometry.Rect, presetName string) {
	started := time.Now()
	err := e.transcode(ctx, job, logger, source, crop, presetName)
	if job.Cancelled() {
		err = ErrCancelled
	}
	if err != nil {
		e.dir.Remove(job.Output())
	}
	job.resolve(err)

	switch {
	case err == nil:
		var size string
		if info, serr := e.dir.Fs().Stat(job.Output()); serr == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		logger.Info("Export complete", "output", job.Output(), "size", size, "took", time.Since(started).Round(time.Millisecond))
	case errors.Is(err, ErrCancelled):
		logger.Info("Export cancelled")
	default:
		logger.Error("Export failed", "error", err)
	}
}

func (e *Engine) transcode(ctx context.Context, job *Job, logger *slog.Logger, source string, crop *geometry.Rect, presetName string) error {
	probe, err := e.transcoder.Probe(ctx, source)
	if err != nil {
		return &TranscodeError{Err: fmt.Errorf("probe source: %w", err)}
	}
	if !probe.HasVideo() {
		return ErrNoVideoTrack
	}

	preset, err := e.ResolvePreset(ctx, presetName)
	if err != nil {
		return err
	}

	track := TrackFromProbe(probe)
	comp := BuildComposition(track, crop)
	opts, err := Compile(comp, preset, track.HasAudio)
	if err != nil {
		return err
	}

	logger.Info("Starting export",
		"source", source,
		"preset", preset.Name,
		"rotation", probe.Rotation,
		"mirrored", probe.Mirrored,
		"render_size", comp.RenderSize,
		"filters", ffmpeg.NewCommand(source, job.Output(), opts...).Filters(),
	)

	// Some ffmpeg builds carry the display matrix over despite -noautorotate;
	// such an output is encoded once more with the matrix dropped at the input.
	for retried := false; ; retried = true {
		if err := e.encode(ctx, job, ffmpeg.NewCommand(source, job.Output(), opts...), probe.Duration); err != nil {
			return err
		}
		err := e.validate(ctx, job.Output())
		if !errors.Is(err, errOutputOriented) || retried {
			return err
		}
		logger.Warn("Output kept a display matrix, encoding again without it")
		opts = append(opts, ffmpeg.DisplayRotation(0))
	}
}

func (e *Engine) encode(ctx context.Context, job *Job, cmd *ffmpeg.Command, duration time.Duration) error {
	progress := make(chan ffmpeg.Progress, 16)
	proc, err := e.transcoder.Start(ctx, cmd, progress)
	if err != nil {
		return &TranscodeError{Err: err}
	}
	for p := range progress {
		job.setProgress(p.Fraction(duration))
	}
	if err := proc.Wait(); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return &TranscodeError{Err: err}
	}
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

var errOutputOriented = errors.New("validate output: display matrix left on the video stream")

// validate checks that output holds a video stream meant to be shown as
// stored, since orientation was already applied to its pixels.
func (e *Engine) validate(ctx context.Context, output string) error {
	out, err := e.transcoder.Probe(ctx, output)
	if err != nil {
		return &TranscodeError{Err: fmt.Errorf("validate output: %w", err)}
	}
	if !out.HasVideo() {
		return &TranscodeError{Err: errors.New("validate output: no video stream")}
	}
	if !out.Upright() {
		return &TranscodeError{Err: fmt.Errorf("%w (rotation %d, mirrored %t)", errOutputOriented, out.Rotation, out.Mirrored)}
	}
	return nil
}
