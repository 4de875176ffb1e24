package geom

import "math"

// SnapRotation rounds an angle in degrees to the nearest quarter turn and
// normalises it into {0, 90, 180, 270}.
func SnapRotation(deg float64) int {
	q := int(math.Round(deg/90)) % 4
	if q < 0 {
		q += 4
	}
	return q * 90
}

// Rotate applies the standard 2D rotation matrix to p for a rotation of deg
// degrees (snapped to 90° increments). Quarter turns are computed exactly so
// rotated pin offsets stay on the placement grid.
func Rotate(p Point, deg int) Point {
	switch SnapRotation(float64(deg)) {
	case 90:
		return Point{X: -p.Y, Y: p.X}
	case 180:
		return Point{X: -p.X, Y: -p.Y}
	case 270:
		return Point{X: p.Y, Y: -p.X}
	default:
		return p
	}
}

// RotatedSize returns the footprint extent after rotation: quarter and
// three-quarter turns swap width and height.
func RotatedSize(w, h float64, deg int) (float64, float64) {
	switch SnapRotation(float64(deg)) {
	case 90, 270:
		return h, w
	default:
		return w, h
	}
}
