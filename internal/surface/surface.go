// Package surface holds the media being positioned behind the crop window
// and maps the window into media-native coordinates.
package surface

import (
	"sync"

	"thirdcoast.systems/mediacrop/pkg/geometry"
	"thirdcoast.systems/mediacrop/pkg/media"
)

// Surface is a still or video laid out to cover the crop window.
type Surface interface {
	Kind() media.Kind
	// NaturalSize is the oriented intrinsic size; false until media is set.
	NaturalSize() (geometry.Size, bool)
	// DisplaySize is the cover fit of the natural size onto the crop window.
	DisplaySize() geometry.Size
	// SetCropWindow changes the crop window size and invalidates the layout.
	SetCropWindow(size geometry.Size)
	// EffectiveCropFrame maps the crop window under v into natural
	// coordinates, clipped to the media.
	EffectiveCropFrame(v geometry.Viewport) geometry.Rect
	Close() error
}

// layout is the geometry shared by both surfaces.
type layout struct {
	mu         sync.Mutex
	natural    geometry.Size
	hasNatural bool
	cropWindow geometry.Size
	display    geometry.Size
	valid      bool
}

func (l *layout) setNatural(s geometry.Size) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.natural = s
	l.hasNatural = !s.IsZero()
	l.valid = false
}

func (l *layout) NaturalSize() (geometry.Size, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.natural, l.hasNatural
}

func (l *layout) SetCropWindow(size geometry.Size) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if size != l.cropWindow {
		l.cropWindow = size
		l.valid = false
	}
}

func (l *layout) DisplaySize() geometry.Size {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.displayLocked()
}

func (l *layout) displayLocked() geometry.Size {
	if !l.valid {
		if l.hasNatural {
			l.display = geometry.FitSize(l.natural, l.cropWindow)
		} else {
			l.display = l.cropWindow
		}
		l.valid = true
	}
	return l.display
}

func (l *layout) EffectiveCropFrame(v geometry.Viewport) geometry.Rect {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasNatural || l.cropWindow.IsZero() {
		return geometry.Rect{}
	}
	display := l.displayLocked()
	scale := geometry.ScaleFactor(l.natural, display)
	frame := geometry.Rect{W: l.cropWindow.W, H: l.cropWindow.H}
	mapped := geometry.MapScreenCropToMedia(frame, v, scale)
	return mapped.Intersect(geometry.Rect{W: l.natural.W, H: l.natural.H})
}
