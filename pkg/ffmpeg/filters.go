package ffmpeg

import (
	"fmt"
)

// CropPixels adds a crop filter with pixel size and top-left offset.
func CropPixels(w, h, x, y int) Option {
	return Filter(fmt.Sprintf("crop=%d:%d:%d:%d", w, h, x, y))
}

// ScaleFilter represents a scale filter.
type ScaleFilter struct {
	Width  int // -2 auto-calculates with an even result
	Height int
}

// String returns the ffmpeg filter string.
func (s ScaleFilter) String() string {
	return fmt.Sprintf("scale=%d:%d", s.Width, s.Height)
}

// Scale adds a scale filter.
func Scale(width, height int) Option {
	return Filter(ScaleFilter{width, height}.String())
}

// ScaleWidth scales to a specific width, auto-calculating an even height.
func ScaleWidth(width int) Option {
	return Scale(width, -2)
}

// Transpose values for the transpose filter.
const (
	TransposeCClockFlip = 0 // 90° counter-clockwise and vertical flip
	TransposeClock      = 1
	TransposeCClock     = 2
	TransposeClockFlip  = 3 // 90° clockwise and vertical flip
)

// Transpose adds a transpose filter.
func Transpose(dir int) Option {
	return Filter(fmt.Sprintf("transpose=%d", dir))
}

// HFlip mirrors horizontally.
var HFlip = Filter("hflip")

// VFlip mirrors vertically.
var VFlip = Filter("vflip")

// EvenDimensions ensures output dimensions are divisible by 2 (required for
// h264/hevc with yuv420p). Apply it after any crop that may produce odd sizes.
func EvenDimensions() Option {
	return Filter("scale=trunc(iw/2)*2:trunc(ih/2)*2")
}
