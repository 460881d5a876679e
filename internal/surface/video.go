package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/pkg/ffmpeg"
	"thirdcoast.systems/mediacrop/pkg/geometry"
	"thirdcoast.systems/mediacrop/pkg/media"
)

// Prober reads video metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)
}

// ErrNoVideo is returned by Poster before a video is set.
var ErrNoVideo = errors.New("surface: no video")

// VideoSurface shows a looping video.
type VideoSurface struct {
	layout
	prober  Prober
	remover scratch.Remover
	logger  *slog.Logger

	// ExtractFrame writes one frame of a video; ffmpeg.ExtractFrame by default.
	ExtractFrame func(ctx context.Context, input, output string, opts *ffmpeg.FrameOptions) error

	playMu sync.Mutex
	path   string
	track  export.Track
	looper *Looper
}

// NewVideoSurface creates an empty surface. Replaced videos are handed to
// remover (may be nil).
func NewVideoSurface(prober Prober, remover scratch.Remover, logger *slog.Logger) *VideoSurface {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoSurface{
		prober:       prober,
		remover:      remover,
		logger:       logger.With("component", "surface"),
		ExtractFrame: ffmpeg.ExtractFrame,
	}
}

func (s *VideoSurface) Kind() media.Kind { return media.KindVideo }

// SetVideo probes path and makes it the looping video. The previous video's
// player is stopped and its file scheduled for deletion.
func (s *VideoSurface) SetVideo(ctx context.Context, path string) error {
	probe, err := s.prober.Probe(ctx, path)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}
	if !probe.HasVideo() {
		return export.ErrNoVideoTrack
	}
	track := export.TrackFromProbe(probe)

	s.playMu.Lock()
	oldPath, oldLooper := s.path, s.looper
	s.path = path
	s.track = track
	s.looper = NewLooper(probe.Duration)
	s.playMu.Unlock()

	s.setNatural(track.NaturalSize())
	s.release(oldPath, oldLooper, path)

	s.logger.Debug("Video set", "path", path, "natural_size", track.NaturalSize(), "rotation", probe.Rotation, "mirrored", probe.Mirrored)
	return nil
}

func (s *VideoSurface) release(oldPath string, oldLooper *Looper, keep string) {
	if oldLooper != nil {
		oldLooper.Close()
	}
	if oldPath != "" && oldPath != keep && s.remover != nil {
		s.remover.Remove(oldPath)
	}
}

// Path returns the current video file.
func (s *VideoSurface) Path() string {
	s.playMu.Lock()
	defer s.playMu.Unlock()
	return s.path
}

// Track returns the current video track.
func (s *VideoSurface) Track() export.Track {
	s.playMu.Lock()
	defer s.playMu.Unlock()
	return s.track
}

func (s *VideoSurface) currentLooper() *Looper {
	s.playMu.Lock()
	defer s.playMu.Unlock()
	return s.looper
}

func (s *VideoSurface) Play() {
	if l := s.currentLooper(); l != nil {
		l.Play()
	}
}

func (s *VideoSurface) Pause() {
	if l := s.currentLooper(); l != nil {
		l.Pause()
	}
}

func (s *VideoSurface) Playing() bool {
	if l := s.currentLooper(); l != nil {
		return l.Playing()
	}
	return false
}

// Position is the playback position of the loop.
func (s *VideoSurface) Position() time.Duration {
	if l := s.currentLooper(); l != nil {
		return l.Position()
	}
	return 0
}

// Poster writes the frame at the current playback position to dst, scaled
// down to maxWidth when the natural frame is wider (0 keeps the full size).
func (s *VideoSurface) Poster(ctx context.Context, dst string, maxWidth int) error {
	path := s.Path()
	if path == "" {
		return ErrNoVideo
	}
	opts := &ffmpeg.FrameOptions{Offset: s.Position()}
	if natural, ok := s.NaturalSize(); ok && maxWidth > 0 && natural.W > float64(maxWidth) {
		opts.Width = maxWidth
	}
	return s.ExtractFrame(ctx, path, dst, opts)
}

// Close stops playback. The current file is left to its owner.
func (s *VideoSurface) Close() error {
	s.playMu.Lock()
	l := s.looper
	s.looper = nil
	s.path = ""
	s.playMu.Unlock()
	if l != nil {
		l.Close()
	}
	s.setNatural(geometry.Size{})
	return nil
}
