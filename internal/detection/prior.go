package detection

import (
	"image"
	"image/color"
	"math"

	"pupil-tracker/internal/geometry"
	"pupil-tracker/internal/processing/filters"

	"gocv.io/x/gocv"
)

// ellipseShift is the number of fractional bits used to rasterize ellipses.
const ellipseShift = 4

// PriorMask restricts the search to the neighbourhood of the last accepted ellipse.
type PriorMask struct {
	size       image.Point
	iterations int
	morph      *filters.MorphologyFilter
}

// NewPriorMask builds masks of the crop size. The last ellipse is grown by
// iterations 3×3 dilations.
func NewPriorMask(size image.Point, iterations int) *PriorMask {
	return &PriorMask{
		size:       size,
		iterations: iterations,
		morph:      filters.NewMorphologyFilter(),
	}
}

// Build writes the restriction for last into dst: all-pass when last is nil,
// otherwise the filled ellipse dilated.
func (b *PriorMask) Build(last *geometry.Ellipse, dst *gocv.Mat) error {
	if last == nil {
		allPass := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), b.size.Y, b.size.X, gocv.MatTypeCV8UC1)
		defer allPass.Close()
		allPass.CopyTo(dst)
		return nil
	}

	filled := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), b.size.Y, b.size.X, gocv.MatTypeCV8UC1)
	defer filled.Close()
	FillEllipse(&filled, *last)

	return b.morph.Dilate(filled, dst, b.iterations)
}

func (b *PriorMask) Close() error {
	return b.morph.Close()
}

// FillEllipse rasterizes e filled with 255 at subpixel precision.
func FillEllipse(img *gocv.Mat, e geometry.Ellipse) {
	scale := float64(int(1) << ellipseShift)
	center := image.Point{
		X: int(math.Round(e.Center.X * scale)),
		Y: int(math.Round(e.Center.Y * scale)),
	}
	axes := image.Point{
		X: int(math.Round(e.Major / 2 * scale)),
		Y: int(math.Round(e.Minor / 2 * scale)),
	}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 0}
	gocv.EllipseWithParams(img, center, axes, e.Angle, 0, 360, white, -1, gocv.Line8, ellipseShift)
}
