// Package threshold binarizes blurred crops.
package threshold

import (
	"pupil-tracker/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// OtsuBinarizer applies a global two-class Otsu threshold into a 0/255 image.
// Pixels above the level become 255.
type OtsuBinarizer struct{}

func NewOtsuBinarizer() *OtsuBinarizer {
	return &OtsuBinarizer{}
}

func (o *OtsuBinarizer) Name() string {
	return "otsu_binarizer"
}

// Apply binarizes src into dst and returns the level OpenCV selected.
func (o *OtsuBinarizer) Apply(src gocv.Mat, dst *gocv.Mat) (int, error) {
	if err := safe.ValidateGray(&src, o.Name()); err != nil {
		return 0, err
	}

	level := gocv.Threshold(src, dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return int(level), nil
}
