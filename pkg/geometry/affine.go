package geometry

import "math"

// Affine is a 2D affine transform in the CoreGraphics convention used by
// media containers for a track's preferred transform:
//
//	x' = A*x + C*y + TX
//	y' = B*x + D*y + TY
type Affine struct {
	A, B, C, D float64
	TX, TY     float64
}

// Identity is the no-op transform.
var Identity = Affine{A: 1, D: 1}

// Translation returns a pure translation.
func Translation(dx, dy float64) Affine {
	return Affine{A: 1, D: 1, TX: dx, TY: dy}
}

// Orientation returns the transform that rotates a w x h frame clockwise by
// quarterTurns*90 degrees and moves the result back to the positive
// quadrant, which is how a display matrix is stored next to a video track.
func Orientation(quarterTurns int, w, h float64) Affine {
	switch ((quarterTurns % 4) + 4) % 4 {
	case 1:
		return Affine{A: 0, B: 1, C: -1, D: 0, TX: h, TY: 0}
	case 2:
		return Affine{A: -1, B: 0, C: 0, D: -1, TX: w, TY: h}
	case 3:
		return Affine{A: 0, B: -1, C: 1, D: 0, TX: 0, TY: w}
	default:
		return Identity
	}
}

// Oriented is Orientation preceded by an optional horizontal flip of the
// w x h frame, covering all eight orientations a display matrix can hold.
func Oriented(quarterTurns int, mirrored bool, w, h float64) Affine {
	o := Orientation(quarterTurns, w, h)
	if !mirrored {
		return o
	}
	return Affine{A: -1, D: 1}.Translated(w, 0).Concat(o)
}

// Concat returns the transform that applies t first, then o.
func (t Affine) Concat(o Affine) Affine {
	return Affine{
		A:  t.A*o.A + t.B*o.C,
		B:  t.A*o.B + t.B*o.D,
		C:  t.C*o.A + t.D*o.C,
		D:  t.C*o.B + t.D*o.D,
		TX: t.TX*o.A + t.TY*o.C + o.TX,
		TY: t.TX*o.B + t.TY*o.D + o.TY,
	}
}

// Translated returns t followed by a translation of (dx, dy).
func (t Affine) Translated(dx, dy float64) Affine {
	t.TX += dx
	t.TY += dy
	return t
}

// Apply maps a point.
func (t Affine) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.C*p.Y + t.TX,
		Y: t.B*p.X + t.D*p.Y + t.TY,
	}
}

// ApplySize maps a size through the linear part only, keeping signs. Use
// Abs on the result for a displayed size.
func (t Affine) ApplySize(s Size) Size {
	return Size{
		W: t.A*s.W + t.C*s.H,
		H: t.B*s.W + t.D*s.H,
	}
}

// Linear returns the transform without its translation.
func (t Affine) Linear() Affine {
	t.TX, t.TY = 0, 0
	return t
}

// IsIdentity reports whether t is the identity within rounding.
func (t Affine) IsIdentity() bool {
	return t.Linear().Equal(Identity) && almost(t.TX, 0) && almost(t.TY, 0)
}

// Equal compares two transforms within rounding tolerance.
func (t Affine) Equal(o Affine) bool {
	return almost(t.A, o.A) && almost(t.B, o.B) && almost(t.C, o.C) &&
		almost(t.D, o.D) && almost(t.TX, o.TX) && almost(t.TY, o.TY)
}

// BoundingBox returns the axis-aligned bounds of r mapped through t.
func (t Affine) BoundingBox(r Rect) Rect {
	corners := [4]Point{
		t.Apply(Point{r.X, r.Y}),
		t.Apply(Point{r.MaxX(), r.Y}),
		t.Apply(Point{r.X, r.MaxY()}),
		t.Apply(Point{r.MaxX(), r.MaxY()}),
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
