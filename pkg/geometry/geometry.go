// Package geometry maps an on-screen crop window, under scroll offset and
// zoom, into the natural coordinate space of a still image or video.
//
// Everything here is pure: no function fails, degenerate input degrades to a
// safe default (usually the input itself).
package geometry

import "math"

// Size is a width/height pair in points or pixels.
type Size struct {
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Point is an x/y coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an origin plus a size. Y grows downwards.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// IsPortrait reports whether the size is strictly taller than wide.
func (s Size) IsPortrait() bool {
	return s.H > s.W
}

// IsZero reports whether either dimension is non-positive.
func (s Size) IsZero() bool {
	return s.W <= 0 || s.H <= 0
}

// Scale multiplies both dimensions.
func (s Size) Scale(k float64) Size {
	return Size{W: s.W * k, H: s.H * k}
}

// Abs returns the size with both dimensions made non-negative.
func (s Size) Abs() Size {
	return Size{W: math.Abs(s.W), H: math.Abs(s.H)}
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rectangle's size.
func (r Rect) Size() Size {
	return Size{W: r.W, H: r.H}
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Offset translates the rectangle by p.
func (r Rect) Offset(p Point) Rect {
	r.X += p.X
	r.Y += p.Y
	return r
}

// Scaled multiplies origin and size by k.
func (r Rect) Scaled(k float64) Rect {
	return Rect{X: r.X * k, Y: r.Y * k, W: r.W * k, H: r.H * k}
}

// Intersect returns the overlap of r and o, or a zero rect when they do not
// overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.MaxX(), o.MaxX())
	y1 := math.Min(r.MaxY(), o.MaxY())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Contains reports whether o lies entirely within r, allowing eps of
// floating point slack on every edge.
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.X >= r.X-eps && o.Y >= r.Y-eps &&
		o.MaxX() <= r.MaxX()+eps && o.MaxY() <= r.MaxY()+eps
}

// Integral rounds origin and size to whole pixels.
func (r Rect) Integral() Rect {
	return Rect{
		X: math.Round(r.X),
		Y: math.Round(r.Y),
		W: math.Round(r.W),
		H: math.Round(r.H),
	}
}

// RectOf builds a rectangle from an origin and a size.
func RectOf(origin Point, size Size) Rect {
	return Rect{X: origin.X, Y: origin.Y, W: size.W, H: size.H}
}
