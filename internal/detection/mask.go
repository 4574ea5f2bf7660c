// Package detection restricts the binarized crop to where a pupil may be and
// traces candidate boundaries in it.
package detection

import (
	"fmt"
	"image"
	"os"

	"pupil-tracker/internal/geometry"
	"pupil-tracker/internal/opencv/conversion"
	"pupil-tracker/internal/opencv/safe"
	"pupil-tracker/internal/processing/filters"

	"gocv.io/x/gocv"
)

// StaticMask marks the crop pixels usable for detection (255) and the ones
// excluded by the operator (0). It also keeps a copy eroded once with a 3×3
// kernel, used to drop contour points lying on the mask edge.
type StaticMask struct {
	mask   gocv.Mat
	eroded gocv.Mat
}

// NewStaticMask builds a mask from a single-channel image that is either
// ROI-shaped or a full frame containing the ROI. Nonzero pixels are usable.
// src is not retained.
func NewStaticMask(src gocv.Mat, roi geometry.RegionOfInterest) (*StaticMask, error) {
	if err := safe.ValidateGray(&src, "static mask"); err != nil {
		return nil, err
	}

	size := roi.Size()
	crop := gocv.NewMat()
	defer crop.Close()

	switch {
	case src.Cols() == size.X && src.Rows() == size.Y:
		src.CopyTo(&crop)
	case roi.Validate(image.Point{X: src.Cols(), Y: src.Rows()}) == nil:
		if err := conversion.CropGray(src, roi.Rect(), &crop); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("static mask %dx%d matches neither the region %dx%d nor a frame containing %s",
			src.Cols(), src.Rows(), size.X, size.Y, roi)
	}

	m := &StaticMask{mask: gocv.NewMat(), eroded: gocv.NewMat()}
	gocv.Threshold(crop, &m.mask, 0, 255, gocv.ThresholdBinary)

	morph := filters.NewMorphologyFilter()
	defer morph.Close()
	if err := morph.Erode(m.mask, &m.eroded, 1); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// StaticMaskFromGray is NewStaticMask for a Go image.
func StaticMaskFromGray(img *image.Gray, roi geometry.RegionOfInterest) (*StaticMask, error) {
	src, err := conversion.GrayToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return NewStaticMask(src, roi)
}

// LoadStaticMask reads an image file as grayscale and builds a mask from it.
func LoadStaticMask(path string, roi geometry.RegionOfInterest) (*StaticMask, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat mask file: %w", err)
	}

	src := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("failed to decode mask file %q", path)
	}

	mask, err := NewStaticMask(src, roi)
	if err != nil {
		return nil, fmt.Errorf("mask file %q: %w", path, err)
	}
	return mask, nil
}

// Mat is the 0/255 mask. It stays owned by the StaticMask.
func (m *StaticMask) Mat() gocv.Mat {
	return m.mask
}

// Usable reports whether p lies inside the eroded mask.
func (m *StaticMask) Usable(p image.Point) bool {
	if p.X < 0 || p.Y < 0 || p.X >= m.eroded.Cols() || p.Y >= m.eroded.Rows() {
		return false
	}
	return m.eroded.GetUCharAt(p.Y, p.X) > 0
}

// Size is the mask width and height.
func (m *StaticMask) Size() image.Point {
	return image.Point{X: m.mask.Cols(), Y: m.mask.Rows()}
}

func (m *StaticMask) Close() error {
	m.eroded.Close()
	return m.mask.Close()
}

// Restrict writes binary AND prior AND static (when present) into dst.
func Restrict(binary, prior gocv.Mat, static *StaticMask, dst *gocv.Mat) error {
	if err := safe.ValidateSameSize(&binary, &prior, "prior restriction"); err != nil {
		return err
	}
	gocv.BitwiseAnd(binary, prior, dst)

	if static != nil {
		if err := safe.ValidateSameSize(&binary, &static.mask, "static restriction"); err != nil {
			return err
		}
		gocv.BitwiseAnd(*dst, static.mask, dst)
	}
	return nil
}
