package export

import (
	"fmt"
	"math"

	"thirdcoast.systems/mediacrop/pkg/ffmpeg"
	"thirdcoast.systems/mediacrop/pkg/geometry"
)

// Track is the video track of a source as far as cropping is concerned.
type Track struct {
	// Size is the stored frame size, before orientation.
	Size geometry.Size
	// Transform maps stored frames to display space. The zero value means
	// the track is shown as stored.
	Transform geometry.Affine
	HasAudio  bool
}

// TrackFromProbe extracts the first video track.
func TrackFromProbe(p *ffmpeg.ProbeResult) Track {
	size := geometry.Size{W: float64(p.Width), H: float64(p.Height)}
	return Track{
		Size:      size,
		Transform: geometry.Oriented(p.Rotation/90, p.Mirrored, size.W, size.H),
		HasAudio:  p.AudioStreams > 0,
	}
}

// Orientation is the transform that maps stored frames to display space.
func (t Track) Orientation() geometry.Affine {
	if t.Transform == (geometry.Affine{}) {
		return geometry.Identity
	}
	return t.Transform
}

// NaturalSize is the displayed frame size after orientation.
func (t Track) NaturalSize() geometry.Size {
	return t.Orientation().ApplySize(t.Size).Abs()
}

// Composition maps stored source frames onto the output frame: a single
// transform from stored pixels to output pixels and the output size.
type Composition struct {
	Source     geometry.Size
	Transform  geometry.Affine
	RenderSize geometry.Size
}

// BuildComposition orients the track and then moves crop's origin to (0,0).
// crop is in natural (oriented) coordinates. With no crop the whole
// oriented frame is rendered.
func BuildComposition(track Track, crop *geometry.Rect) Composition {
	orient := track.Orientation()
	if crop == nil {
		return Composition{
			Source:     track.Size,
			Transform:  orient,
			RenderSize: track.NaturalSize(),
		}
	}
	return Composition{
		Source:     track.Size,
		Transform:  orient.Translated(-crop.X, -crop.Y),
		RenderSize: crop.Size(),
	}
}

// linearFilters maps the linear part of a composition (A, B, C, D) to the
// ffmpeg filters producing it.
var linearFilters = map[[4]int][]ffmpeg.Option{
	{1, 0, 0, 1}:   nil,
	{0, 1, -1, 0}:  {ffmpeg.Transpose(ffmpeg.TransposeClock)},
	{0, -1, 1, 0}:  {ffmpeg.Transpose(ffmpeg.TransposeCClock)},
	{0, 1, 1, 0}:   {ffmpeg.Transpose(ffmpeg.TransposeCClockFlip)},
	{0, -1, -1, 0}: {ffmpeg.Transpose(ffmpeg.TransposeClockFlip)},
	{-1, 0, 0, -1}: {ffmpeg.HFlip, ffmpeg.VFlip},
	{-1, 0, 0, 1}:  {ffmpeg.HFlip},
	{1, 0, 0, -1}:  {ffmpeg.VFlip},
}

// Compile turns a composition into ffmpeg options for preset. Orientation is
// applied by the filter chain (autorotation is off), followed by the crop,
// the preset's resolution cap and even-dimension rounding.
func Compile(c Composition, preset ffmpeg.ExportPreset, hasAudio bool) ([]ffmpeg.Option, error) {
	maps := []ffmpeg.Option{ffmpeg.MapStream("0:v:0")}
	if hasAudio {
		maps = append(maps, ffmpeg.MapStream("0:a:0"))
	}

	if preset.Passthrough {
		if !c.Transform.IsIdentity() || !sameSize(c.RenderSize, c.Source) {
			return nil, fmt.Errorf("%w: preset %q cannot crop or rotate", ErrCodecUnsupported, preset.Name)
		}
		return ffmpeg.Flatten(maps, preset.Video), nil
	}

	lin := c.Transform.Linear()
	key := [4]int{roundInt(lin.A), roundInt(lin.B), roundInt(lin.C), roundInt(lin.D)}
	orient, ok := linearFilters[key]
	if !ok {
		return nil, fmt.Errorf("export: unsupported transform %+v", c.Transform)
	}

	// The filter chain places the oriented frame at the origin; the crop
	// origin is whatever the composition's translation leaves over.
	frame := lin.BoundingBox(geometry.Rect{W: c.Source.W, H: c.Source.H})
	cropX := -frame.X - c.Transform.TX
	cropY := -frame.Y - c.Transform.TY
	crop := integralCrop(cropX, cropY, c.RenderSize, frame.Size())

	opts := []ffmpeg.Option{ffmpeg.NoAutoRotate}
	opts = append(opts, orient...)
	if crop.X != 0 || crop.Y != 0 || crop.W != int(math.Round(frame.W)) || crop.H != int(math.Round(frame.H)) {
		opts = append(opts, ffmpeg.CropPixels(crop.W, crop.H, crop.X, crop.Y))
	}
	if preset.MaxWidth > 0 && preset.MaxHeight > 0 {
		out := geometry.Size{W: float64(crop.W), H: float64(crop.H)}
		capped := geometry.FitWithin(out, geometry.Size{W: float64(preset.MaxWidth), H: float64(preset.MaxHeight)})
		if capped != out {
			opts = append(opts, ffmpeg.Scale(evenFloor(capped.W), evenFloor(capped.H)))
		}
	}
	opts = append(opts, ffmpeg.EvenDimensions(), ffmpeg.ClearRotation)

	audio := preset.Audio
	if !hasAudio {
		audio = []ffmpeg.Option{ffmpeg.NoAudio}
	}
	return ffmpeg.Flatten(maps, opts, preset.Video, audio), nil
}

type pixelRect struct{ X, Y, W, H int }

// integralCrop rounds the crop to whole pixels and keeps it inside frame.
func integralCrop(x, y float64, size, frame geometry.Size) pixelRect {
	fw := int(math.Round(frame.W))
	fh := int(math.Round(frame.H))
	r := pixelRect{
		X: int(math.Round(x)),
		Y: int(math.Round(y)),
		W: min(max(int(math.Round(size.W)), 2), fw),
		H: min(max(int(math.Round(size.H)), 2), fh),
	}
	r.X = min(max(r.X, 0), fw-r.W)
	r.Y = min(max(r.Y, 0), fh-r.H)
	return r
}

func sameSize(a, b geometry.Size) bool {
	return math.Abs(a.W-b.W) < 0.5 && math.Abs(a.H-b.H) < 0.5
}

func roundInt(f float64) int { return int(math.Round(f)) }

func evenFloor(f float64) int {
	n := int(f)
	return max(n-n%2, 2)
}
