package filters

import (
	"fmt"

	"pupil-tracker/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// GrayscaleConverter converts camera frames to single-channel 8-bit images.
type GrayscaleConverter struct{}

func NewGrayscaleConverter() *GrayscaleConverter {
	return &GrayscaleConverter{}
}

func (g *GrayscaleConverter) Name() string {
	return "grayscale_converter"
}

// Apply writes the grayscale version of src into dst. Single-channel input is copied.
func (g *GrayscaleConverter) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if err := safe.ValidateMatForOperation(&src, "grayscale conversion"); err != nil {
		return err
	}

	switch src.Channels() {
	case 1:
		src.CopyTo(dst)
	case 3:
		gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, dst, gocv.ColorBGRAToGray)
	default:
		return fmt.Errorf("unsupported channel count for grayscale conversion: %d", src.Channels())
	}

	return nil
}
