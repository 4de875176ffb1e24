// Package geom provides the board-space geometry shared by placement and
// routing: millimetre points, axis-aligned rectangles, polygons and
// quarter-turn rotations.
//
// The board coordinate system has its origin at the top-left corner of the
// board outline, X growing right and Y growing down, all values in mm.
package geom

import (
	"math"
)

// eps absorbs floating-point noise in rectangle comparisons.
const eps = 1e-9

// Point is a position on the board in millimetres.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns the sum of two points.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns the difference of two points.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Manhattan returns the L1 distance to another point.
func (p Point) Manhattan(o Point) float64 {
	return math.Abs(p.X-o.X) + math.Abs(p.Y-o.Y)
}

// Rect is an axis-aligned rectangle given by its min and max corners.
type Rect struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// RectAround returns the w×h rectangle centred on c.
func RectAround(c Point, w, h float64) Rect {
	return Rect{MinX: c.X - w/2, MinY: c.Y - h/2, MaxX: c.X + w/2, MaxY: c.Y + h/2}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Area returns the rectangle area, or zero for degenerate rectangles.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle has no interior.
func (r Rect) Empty() bool { return r.MaxX <= r.MinX || r.MaxY <= r.MinY }

// Center returns the centre point.
func (r Rect) Center() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Expand grows the rectangle by m on every side. Negative m shrinks it.
func (r Rect) Expand(m float64) Rect {
	return Rect{MinX: r.MinX - m, MinY: r.MinY - m, MaxX: r.MaxX + m, MaxY: r.MaxY + m}
}

// Translate moves the rectangle by d.
func (r Rect) Translate(d Point) Rect {
	return Rect{MinX: r.MinX + d.X, MinY: r.MinY + d.Y, MaxX: r.MaxX + d.X, MaxY: r.MaxY + d.Y}
}

// Overlaps reports whether the interiors of r and o intersect.
// Rectangles that only share an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.MinX < o.MaxX-eps && o.MinX < r.MaxX-eps &&
		r.MinY < o.MaxY-eps && o.MinY < r.MaxY-eps
}

// Intersection returns the overlapping region (possibly empty).
func (r Rect) Intersection(o Rect) Rect {
	return Rect{
		MinX: math.Max(r.MinX, o.MinX),
		MinY: math.Max(r.MinY, o.MinY),
		MaxX: math.Min(r.MaxX, o.MaxX),
		MaxY: math.Min(r.MaxY, o.MaxY),
	}
}

// ContainsRect reports whether o lies entirely within r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.MinX >= r.MinX-eps && o.MaxX <= r.MaxX+eps &&
		o.MinY >= r.MinY-eps && o.MaxY <= r.MaxY+eps
}

// Contains reports whether p lies inside r or on its boundary.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Gap returns the Chebyshev-style clearance between two rectangles:
// the larger of the horizontal and vertical separations, or zero if they
// overlap or touch.
func (r Rect) Gap(o Rect) float64 {
	dx := math.Max(o.MinX-r.MaxX, r.MinX-o.MaxX)
	dy := math.Max(o.MinY-r.MaxY, r.MinY-o.MaxY)
	return math.Max(0, math.Max(dx, dy))
}

// Polygon is a simple closed polygon; the last vertex connects to the first.
type Polygon []Point

// Contains tests whether p is inside the polygon using ray casting.
func (pg Polygon) Contains(p Point) bool {
	if len(pg) < 3 {
		return false
	}

	inside := false
	n := len(pg)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := pg[i], pg[j]
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}
	return inside
}

// Bounds returns the bounding rectangle of the polygon.
func (pg Polygon) Bounds() Rect {
	if len(pg) == 0 {
		return Rect{}
	}
	r := Rect{MinX: pg[0].X, MinY: pg[0].Y, MaxX: pg[0].X, MaxY: pg[0].Y}
	for _, p := range pg[1:] {
		r.MinX = math.Min(r.MinX, p.X)
		r.MinY = math.Min(r.MinY, p.Y)
		r.MaxX = math.Max(r.MaxX, p.X)
		r.MaxY = math.Max(r.MaxY, p.Y)
	}
	return r
}

// RectPolygon returns the four corners of r, clockwise from the top-left.
func RectPolygon(r Rect) Polygon {
	return Polygon{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}
}

// SegmentDistance returns the shortest distance between segments a1-a2 and
// b1-b2.
func SegmentDistance(a1, a2, b1, b2 Point) float64 {
	if segmentsIntersect(a1, a2, b1, b2) {
		return 0
	}
	return math.Min(
		math.Min(pointSegment(a1, b1, b2), pointSegment(a2, b1, b2)),
		math.Min(pointSegment(b1, a1, a2), pointSegment(b2, a1, a2)),
	)
}

// PointSegmentDistance returns the distance from p to segment a-b.
func PointSegmentDistance(p, a, b Point) float64 { return pointSegment(p, a, b) }

func pointSegment(p, a, b Point) float64 {
	d := b.Sub(a)
	l2 := d.X*d.X + d.Y*d.Y
	if l2 == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*d.X + (p.Y-a.Y)*d.Y) / l2
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Point{X: a.X + t*d.X, Y: a.Y + t*d.Y})
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func segmentsIntersect(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	return ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps))
}
