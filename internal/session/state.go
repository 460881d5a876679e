package session

import (
	"errors"
	"time"

	"thirdcoast.systems/mediacrop/pkg/media"
)

// State is a step of the crop lifecycle.
type State int

const (
	StateIdle State = iota
	StateMediaSelected
	StatePositioning
	StateExporting
	StateDelivered
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateMediaSelected: "media_selected",
	StatePositioning:   "positioning",
	StateExporting:     "exporting",
	StateDelivered:     "delivered",
	StateCancelled:     "cancelled",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether the session has delivered its result.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCancelled || s == StateFailed
}

var (
	// ErrExportInFlight rejects a confirm while a video export runs.
	ErrExportInFlight = errors.New("session: export already in flight")
	// ErrInvalidState rejects an operation the current state does not allow.
	ErrInvalidState = errors.New("session: operation not allowed in current state")
	// ErrUnsupportedMedia is the failure for media outside the accepted kinds.
	ErrUnsupportedMedia = errors.New("session: unsupported media type")
	// ErrClosed is returned by calls on a closed session.
	ErrClosed = errors.New("session: closed")
)

// ResultHandler receives the session's terminal result, exactly once.
// Handlers run on the session goroutine and must not call back into the
// session synchronously.
type ResultHandler interface {
	OnItemSelected(result media.Result)
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc func(media.Result)

func (f ResultHandlerFunc) OnItemSelected(r media.Result) { f(r) }

// ProgressHandler is optionally implemented by a ResultHandler to receive
// export progress in [0, 1]. Progress always precedes the result.
type ProgressHandler interface {
	OnProgress(progress float64)
}

// Options configure a session.
type Options struct {
	CropWindow    media.CropWindow
	AcceptedKinds []media.Kind
	// Preset names the video export preset; empty picks the best available.
	Preset  string
	MaxZoom float64
	// ProgressInterval is how often export progress is sampled.
	ProgressInterval time.Duration
	// TranscodePassthrough exports bypassed videos uncropped instead of
	// handing back the original.
	TranscodePassthrough bool
}

// DefaultOptions accepts both kinds with a square crop window.
func DefaultOptions() Options {
	return Options{
		CropWindow:       media.CropWindow{AspectRatio: 1},
		AcceptedKinds:    []media.Kind{media.KindImage, media.KindVideo},
		MaxZoom:          5,
		ProgressInterval: time.Second / 30,
	}
}

func (o Options) accepts(k media.Kind) bool {
	for _, a := range o.AcceptedKinds {
		if a == k {
			return true
		}
	}
	return false
}
