package geometry

import "math"

// Viewport is the scroll state of the displayed media behind the crop window.
// Zoom 1 is the cover fit; Offset is the top-left of the crop window within
// the zoomed, displayed media.
type Viewport struct {
	Zoom   float64 `json:"zoom"`
	Offset Point   `json:"offset"`
}

// DefaultViewport is zoom 1 with no offset.
var DefaultViewport = Viewport{Zoom: 1}

// Clamp keeps the crop window inside the displayed media. Zoom is limited to
// [1, maxZoom] (maxZoom < 1 means unlimited) and each offset axis to
// [0, display*zoom - crop].
func (v Viewport) Clamp(display, crop Size, maxZoom float64) Viewport {
	zoom := v.Zoom
	if zoom < 1 || math.IsNaN(zoom) {
		zoom = 1
	}
	if maxZoom >= 1 && zoom > maxZoom {
		zoom = maxZoom
	}
	zoomed := display.Scale(zoom)
	return Viewport{
		Zoom: zoom,
		Offset: Point{
			X: clamp(v.Offset.X, 0, zoomed.W-crop.W),
			Y: clamp(v.Offset.Y, 0, zoomed.H-crop.H),
		},
	}
}

// CenteredViewport returns zoom 1 with the crop window centered over the
// displayed media.
func CenteredViewport(display, crop Size) Viewport {
	return Viewport{
		Zoom: 1,
		Offset: Point{
			X: math.Max(0, (display.W-crop.W)/2),
			Y: math.Max(0, (display.H-crop.H)/2),
		},
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
