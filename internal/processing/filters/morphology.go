package filters

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MorphologyFilter repeats 3×3 rectangular dilation or erosion.
type MorphologyFilter struct {
	kernel gocv.Mat
}

func NewMorphologyFilter() *MorphologyFilter {
	return &MorphologyFilter{
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3}),
	}
}

func (m *MorphologyFilter) Name() string {
	return "morphology_filter"
}

// Dilate grows nonzero regions by one pixel per iteration. Zero iterations copy src.
func (m *MorphologyFilter) Dilate(src gocv.Mat, dst *gocv.Mat, iterations int) error {
	return m.repeat(src, dst, iterations, func(s gocv.Mat, d *gocv.Mat) { gocv.Dilate(s, d, m.kernel) })
}

// Erode shrinks nonzero regions by one pixel per iteration. Zero iterations copy src.
func (m *MorphologyFilter) Erode(src gocv.Mat, dst *gocv.Mat, iterations int) error {
	return m.repeat(src, dst, iterations, func(s gocv.Mat, d *gocv.Mat) { gocv.Erode(s, d, m.kernel) })
}

func (m *MorphologyFilter) repeat(src gocv.Mat, dst *gocv.Mat, iterations int, op func(gocv.Mat, *gocv.Mat)) error {
	if iterations < 0 {
		return fmt.Errorf("negative iteration count: %d", iterations)
	}
	if iterations == 0 {
		src.CopyTo(dst)
		return nil
	}

	op(src, dst)
	for i := 1; i < iterations; i++ {
		op(*dst, dst)
	}
	return nil
}

func (m *MorphologyFilter) Close() error {
	return m.kernel.Close()
}
