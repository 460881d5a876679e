package geometry

import "math"

// FitSize returns the smallest size with natural's aspect ratio that covers
// cropWindow in both dimensions (cover fit, not contain).
//
// When natural has no usable width or height the crop window is returned
// unchanged; callers treat that as "no intrinsic size yet".
func FitSize(natural, cropWindow Size) Size {
	if natural.W <= 0 || natural.H <= 0 {
		return cropWindow
	}
	h := natural.H * cropWindow.W / natural.W
	if h < cropWindow.H {
		w := natural.W * cropWindow.H / natural.H
		return Size{W: w, H: cropWindow.H}
	}
	return Size{W: cropWindow.W, H: h}
}

// ScaleFactor is the ratio of native pixels to displayed points at zoom 1.
func ScaleFactor(natural, display Size) float64 {
	if display.H <= 0 {
		return 1
	}
	return natural.H / display.H
}

// MapScreenCropToMedia maps the on-screen crop window into media-native
// coordinates: translate by the viewport's content offset, then scale by
// scale/zoom where scale is ScaleFactor(natural, FitSize(natural, crop)).
func MapScreenCropToMedia(cropFrame Rect, v Viewport, scale float64) Rect {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return cropFrame.Offset(v.Offset).Scaled(scale / zoom)
}

// CropWindowFrame places the crop window inside the host's content bounds:
// full width, height = width * aspectRatio, vertically centered. A window
// taller than the bounds is shrunk to full height instead. An aspect ratio
// of 0 (no cropping) yields the bounds.
func CropWindowFrame(bounds Rect, aspectRatio float64) Rect {
	if aspectRatio <= 0 || bounds.IsEmpty() {
		return bounds
	}
	size := Size{W: bounds.W, H: bounds.W * aspectRatio}
	if size.H > bounds.H {
		size = Size{W: bounds.H / aspectRatio, H: bounds.H}
	}
	return Rect{
		X: bounds.X + (bounds.W-size.W)/2,
		Y: bounds.Y + (bounds.H-size.H)/2,
		W: size.W,
		H: size.H,
	}
}

// FitWithin scales size down, preserving aspect ratio, until it fits inside
// box. The box is matched to the size's orientation, so a 1920x1080 box also
// caps portrait media at 1080x1920. Sizes already inside are returned as-is.
func FitWithin(size, box Size) Size {
	if size.IsZero() || box.IsZero() {
		return size
	}
	if size.IsPortrait() != box.IsPortrait() {
		box = Size{W: box.H, H: box.W}
	}
	k := math.Min(box.W/size.W, box.H/size.H)
	if k >= 1 {
		return size
	}
	return size.Scale(k)
}
