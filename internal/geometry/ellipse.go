// Package geometry holds the pure-Go shapes used by the pupil tracker:
// sub-pixel points, rotated ellipses, the region of interest and the
// direct least-squares ellipse fit.
//
// Errors from this package are built with github.com/pkg/errors and carry a
// stack trace; callers wrap them further with fmt.Errorf and %w.
package geometry

import (
	"image"
	"math"
)

// Point2f is a sub-pixel position.
type Point2f struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by q.
func (p Point2f) Add(q Point2f) Point2f {
	return Point2f{X: p.X + q.X, Y: p.Y + q.Y}
}

// DistanceTo returns the euclidean distance between p and q.
func (p Point2f) DistanceTo(q Point2f) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Ellipse follows the rotated-rectangle convention: Major and Minor are full
// axis lengths (not semi-axes) and Angle is the direction of the major axis in
// degrees, measured from +x towards +y in image coordinates.
type Ellipse struct {
	Center Point2f `json:"center"`
	Major  float64 `json:"major"`
	Minor  float64 `json:"minor"`
	Angle  float64 `json:"angle"`
}

// Degenerate reports whether either axis collapsed to zero (or is not a number).
func (e Ellipse) Degenerate() bool {
	return !(e.Major > 0) || !(e.Minor > 0)
}

// AspectRatio is major/minor. Degenerate ellipses report +Inf.
func (e Ellipse) AspectRatio() float64 {
	if e.Degenerate() {
		return math.Inf(1)
	}
	return e.Major / e.Minor
}

// Area of the ellipse in square pixels.
func (e Ellipse) Area() float64 {
	return math.Pi * e.Major * e.Minor / 4
}

// RelativeArea is Area divided by the area of a crop of the given size.
func (e Ellipse) RelativeArea(crop image.Point) float64 {
	total := float64(crop.X * crop.Y)
	if total <= 0 {
		return 0
	}
	return e.Area() / total
}

// NormalizedCenter maps the center into [0,1]² relative to a crop of the given size.
func (e Ellipse) NormalizedCenter(crop image.Point) Point2f {
	return Point2f{X: e.Center.X / float64(crop.X), Y: e.Center.Y / float64(crop.Y)}
}

// Translate returns the same ellipse moved by offset.
func (e Ellipse) Translate(offset Point2f) Ellipse {
	e.Center = e.Center.Add(offset)
	return e
}

// RotatedRect flattens the ellipse as (cx, cy, width, height, angle).
func (e Ellipse) RotatedRect() [5]float64 {
	return [5]float64{e.Center.X, e.Center.Y, e.Major, e.Minor, e.Angle}
}

// toLocal rotates p into the ellipse frame: translated by -center and rotated by -angle.
func (e Ellipse) toLocal(x, y float64) (float64, float64) {
	rad := e.Angle * math.Pi / 180
	cos, sin := math.Cos(-rad), math.Sin(-rad)
	dx, dy := x-e.Center.X, y-e.Center.Y
	return dx*cos - dy*sin, dx*sin + dy*cos
}

// GoodnessOfFit is the root-mean-square normalized conic residual of contour
// against e. Points lying exactly on the ellipse contribute zero. Lower is better.
func GoodnessOfFit(contour []image.Point, e Ellipse) float64 {
	if len(contour) == 0 || e.Degenerate() {
		return math.Inf(1)
	}
	var sum float64
	for _, p := range contour {
		lx, ly := e.toLocal(float64(p.X), float64(p.Y))
		r := (lx/e.Major)*(lx/e.Major) + (ly/e.Minor)*(ly/e.Minor) - 0.25
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(contour)))
}

// RestrictToLongAxis keeps the contour points whose coordinate along the major
// axis lies within corridor·minor/2 of the center.
func RestrictToLongAxis(contour []image.Point, e Ellipse, corridor float64) []image.Point {
	limit := corridor * e.Minor / 2
	kept := make([]image.Point, 0, len(contour))
	for _, p := range contour {
		lx, _ := e.toLocal(float64(p.X), float64(p.Y))
		if math.Abs(lx) < limit {
			kept = append(kept, p)
		}
	}
	return kept
}
