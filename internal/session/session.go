// Package session drives one pick, position, confirm and export lifecycle.
// All state lives on a single event-loop goroutine; export completion and
// progress ticks are posted back onto it, so a cancel can never race a
// completion.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/internal/logging"
	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/internal/surface"
	"thirdcoast.systems/mediacrop/pkg/geometry"
	"thirdcoast.systems/mediacrop/pkg/media"
)

// Session is one crop lifecycle. Create it with New and Close it when done.
type Session struct {
	id      string
	opts    Options
	engine  *export.Engine
	dir     *scratch.Dir
	handler ResultHandler
	logger  *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	posts     chan func()
	loopDone  chan struct{}
	resultCh  chan struct{}
	closeOnce sync.Once
	touched   atomic.Int64

	// Owned by the loop goroutine
	state        State
	media        media.Media
	image        *surface.ImageSurface
	video        *surface.VideoSurface
	staged       string
	cropFrame    geometry.Rect
	laidOut      bool
	viewport     geometry.Viewport
	job          *export.Job
	ticker       *time.Ticker
	lastProgress float64
	result       media.Result
}

// New starts an idle session. Temp files are staged in and exported to dir.
func New(engine *export.Engine, dir *scratch.Dir, handler ResultHandler, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = ResultHandlerFunc(func(media.Result) {})
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultOptions().ProgressInterval
	}
	if len(opts.AcceptedKinds) == 0 {
		opts.AcceptedKinds = DefaultOptions().AcceptedKinds
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		opts:     opts,
		engine:   engine,
		dir:      dir,
		handler:  handler,
		logger:   logging.WithSessionID(logging.WithComponent(logger, "session"), id),
		ctx:      ctx,
		cancel:   cancel,
		posts:    make(chan func()),
		loopDone: make(chan struct{}),
		resultCh: make(chan struct{}),
		viewport: geometry.DefaultViewport,
	}
	s.touch()
	go s.loop()
	return s
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// Options returns the session's configuration.
func (s *Session) Options() Options { return s.opts }

// LastActive is when the session was last called.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.touched.Load())
}

func (s *Session) touch() { s.touched.Store(time.Now().UnixNano()) }

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}
		select {
		case fn := <-s.posts:
			fn()
		case <-tick:
			s.sampleProgress()
		case <-s.ctx.Done():
			s.stopTicker()
			return
		}
	}
}

// call runs fn on the loop and returns its error.
func (s *Session) call(fn func() error) error {
	s.touch()
	errc := make(chan error, 1)
	select {
	case s.posts <- func() { errc <- fn() }:
		return <-errc
	case <-s.loopDone:
		return ErrClosed
	}
}

// post queues fn on the loop without waiting for it.
func (s *Session) post(fn func()) bool {
	select {
	case s.posts <- fn:
		return true
	case <-s.loopDone:
		return false
	}
}

// Select hands the picked media to the session. Media outside the accepted
// kinds, undecodable stills and videos without a video track fail the
// session. Media that needs no cropping is delivered straight away.
func (s *Session) Select(ctx context.Context, m media.Media) error {
	return s.call(func() error {
		if s.state != StateIdle {
			return ErrInvalidState
		}
		return s.selectMedia(ctx, m)
	})
}

func (s *Session) selectMedia(ctx context.Context, m media.Media) error {
	s.media = m
	if v, ok := m.(media.Video); ok {
		s.staged = v.Path
	}

	kind, ok := media.Classify(m.DeclaredType())
	if !ok || kind != m.Kind() || !s.opts.accepts(kind) {
		err := fmt.Errorf("%w: %q", ErrUnsupportedMedia, m.DeclaredType())
		s.fail(err)
		return err
	}

	switch m := m.(type) {
	case media.Image:
		img, err := export.DecodeImage(m.Data)
		if err != nil {
			s.fail(err)
			return err
		}
		s.image = surface.NewImageSurface()
		s.image.SetImage(img)
	case media.Video:
		s.video = surface.NewVideoSurface(s.engine.Transcoder(), s.dir, s.logger)
		if err := s.video.SetVideo(ctx, m.Path); err != nil {
			s.fail(err)
			return err
		}
	}
	s.state = StateMediaSelected

	natural, _ := s.surface().NaturalSize()
	s.logger.Info("Media selected", "kind", kind, "subtype", m.DeclaredType(), "natural_size", natural)

	if !s.opts.CropWindow.RequiresCropping(natural.IsPortrait()) {
		if kind == media.KindVideo && s.opts.TranscodePassthrough {
			s.startExport(nil)
			return nil
		}
		s.finish(StateDelivered, media.Passthrough{Original: m})
	}
	return nil
}

func (s *Session) surface() surface.Surface {
	if s.image != nil {
		return s.image
	}
	if s.video != nil {
		return s.video
	}
	return nil
}

// Layout sets the on-screen crop window. The first layout centers the media
// behind it; later ones keep the viewport, clamped to the new size.
func (s *Session) Layout(cropFrame geometry.Rect) error {
	return s.call(func() error {
		if s.state != StateMediaSelected && s.state != StatePositioning {
			return ErrInvalidState
		}
		crop := cropFrame.Size()
		s.cropFrame = cropFrame
		s.surface().SetCropWindow(crop)
		display := s.surface().DisplaySize()
		if !s.laidOut {
			s.viewport = geometry.CenteredViewport(display, crop)
			s.laidOut = true
		} else {
			s.viewport = s.viewport.Clamp(display, crop, s.opts.MaxZoom)
		}
		s.state = StatePositioning
		return nil
	})
}

// SetViewport applies a zoom and offset, clamped so the crop window stays
// covered. It returns the clamped viewport.
func (s *Session) SetViewport(v geometry.Viewport) (geometry.Viewport, error) {
	var out geometry.Viewport
	err := s.call(func() error {
		if s.state != StatePositioning {
			return ErrInvalidState
		}
		s.viewport = v.Clamp(s.surface().DisplaySize(), s.cropFrame.Size(), s.opts.MaxZoom)
		out = s.viewport
		return nil
	})
	return out, err
}

// CropFrame returns the crop window mapped into natural media coordinates.
func (s *Session) CropFrame() (geometry.Rect, error) {
	var out geometry.Rect
	err := s.call(func() error {
		if s.state != StatePositioning {
			return ErrInvalidState
		}
		out = s.surface().EffectiveCropFrame(s.viewport)
		return nil
	})
	return out, err
}

// Confirm crops the media under the current viewport. Stills are delivered
// immediately; videos start an export. A confirm while an export runs
// returns ErrExportInFlight.
func (s *Session) Confirm() error {
	return s.call(func() error {
		switch s.state {
		case StateExporting:
			return ErrExportInFlight
		case StatePositioning:
		default:
			return ErrInvalidState
		}

		rect := s.surface().EffectiveCropFrame(s.viewport)
		s.logger.Info("Crop confirmed", "crop", rect.Integral(), "viewport", s.viewport)
		if s.image != nil {
			// A degenerate crop delivers no image rather than failing
			s.finish(StateDelivered, media.CroppedImage{Image: export.CropImage(s.image.Image(), rect)})
			return nil
		}
		s.startExport(&rect)
		return nil
	})
}

func (s *Session) startExport(crop *geometry.Rect) {
	s.video.Pause()
	job := s.engine.StartVideo(s.ctx, s.staged, crop, s.opts.Preset)
	s.job = job
	s.state = StateExporting
	s.lastProgress = 0
	s.ticker = time.NewTicker(s.opts.ProgressInterval)

	go func() {
		<-job.Done()
		s.post(func() { s.onJobDone(job) })
	}()
}

func (s *Session) sampleProgress() {
	if s.job == nil || s.state != StateExporting {
		return
	}
	p := s.job.Progress()
	if p <= s.lastProgress {
		return
	}
	s.lastProgress = p
	if ph, ok := s.handler.(ProgressHandler); ok {
		ph.OnProgress(p)
	}
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) onJobDone(job *export.Job) {
	if s.job != job || s.state != StateExporting {
		return
	}
	s.sampleProgress()
	s.stopTicker()

	out, err := job.Result()
	switch {
	case err == nil:
		s.dir.Release(out)
		s.finish(StateDelivered, media.CroppedVideo{Path: out})
	case errors.Is(err, export.ErrCancelled):
		s.finish(StateCancelled, media.Failure{Err: err})
	default:
		s.finish(StateFailed, media.Failure{Err: err})
	}
}

// Cancel abandons the session. During an export it only requests
// cancellation; the session turns Cancelled once the job has resolved.
// Cancelling a finished session does nothing.
func (s *Session) Cancel() error {
	return s.call(func() error {
		switch {
		case s.state.Terminal():
		case s.state == StateExporting:
			s.job.Cancel()
		default:
			s.finish(StateCancelled, media.Failure{Err: export.ErrCancelled})
		}
		return nil
	})
}

func (s *Session) fail(err error) {
	s.finish(StateFailed, media.Failure{Err: err})
}

// finish moves to a terminal state, releases the staged file to the caller
// on pass-through or deletes it otherwise, and invokes the handler once.
func (s *Session) finish(state State, r media.Result) {
	if s.state.Terminal() {
		return
	}
	s.stopTicker()
	if sf := s.surface(); sf != nil {
		_ = sf.Close()
	}
	if s.staged != "" {
		if _, ok := r.(media.Passthrough); ok {
			s.dir.Release(s.staged)
		} else {
			s.dir.Remove(s.staged)
		}
	}

	s.state = state
	s.result = r
	s.logger.Info("Session finished", "state", state, "result", media.Describe(r))
	s.handler.OnItemSelected(r)
	close(s.resultCh)
}

// Done is closed once the result has been delivered.
func (s *Session) Done() <-chan struct{} { return s.resultCh }

// Wait blocks until the session delivers its result.
func (s *Session) Wait(ctx context.Context) (media.Result, error) {
	select {
	case <-s.resultCh:
		return s.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the delivered result, or nil before delivery.
func (s *Session) Result() media.Result {
	select {
	case <-s.resultCh:
		return s.result
	default:
		return nil
	}
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID          string            `json:"id"`
	State       string            `json:"state"`
	Kind        string            `json:"kind,omitempty"`
	CropWindow  media.CropWindow  `json:"crop_window"`
	NaturalSize geometry.Size     `json:"natural_size"`
	DisplaySize geometry.Size     `json:"display_size"`
	CropFrame   geometry.Rect     `json:"crop_frame"`
	Viewport    geometry.Viewport `json:"viewport"`
	MediaCrop   geometry.Rect     `json:"media_crop"`
	Progress    float64           `json:"progress"`
	Result      string            `json:"result,omitempty"`
}

// Status returns a snapshot of the session.
func (s *Session) Status() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() error {
		snap = Snapshot{
			ID:         s.id,
			State:      s.state.String(),
			CropWindow: s.opts.CropWindow,
			CropFrame:  s.cropFrame,
			Viewport:   s.viewport,
		}
		if s.media != nil {
			snap.Kind = s.media.Kind().String()
		}
		if sf := s.surface(); sf != nil && !s.state.Terminal() {
			snap.NaturalSize, _ = sf.NaturalSize()
			snap.DisplaySize = sf.DisplaySize()
			if s.state == StatePositioning {
				snap.MediaCrop = sf.EffectiveCropFrame(s.viewport)
			}
		}
		if s.job != nil {
			snap.Progress = s.job.Progress()
		}
		if s.result != nil {
			snap.Result = media.Describe(s.result)
		}
		return nil
	})
	return snap, err
}

// State returns the current state.
func (s *Session) State() (State, error) {
	var st State
	err := s.call(func() error {
		st = s.state
		return nil
	})
	return st, err
}

// Poster writes the current video frame to dst, no wider than maxWidth.
func (s *Session) Poster(ctx context.Context, dst string, maxWidth int) error {
	var vs *surface.VideoSurface
	err := s.call(func() error {
		if s.video == nil || s.state.Terminal() {
			return ErrInvalidState
		}
		vs = s.video
		return nil
	})
	if err != nil {
		return err
	}
	return vs.Poster(ctx, dst, maxWidth)
}

// Close ends the session. A running export is cancelled and awaited; an
// unfinished session is delivered as cancelled. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.call(func() error {
			if s.state == StateExporting && s.job != nil {
				s.job.Cancel()
				<-s.job.Done()
				s.onJobDone(s.job)
			} else if !s.state.Terminal() {
				s.finish(StateCancelled, media.Failure{Err: export.ErrCancelled})
			}
			return nil
		})
		s.cancel()
		<-s.loopDone
	})
	return nil
}
