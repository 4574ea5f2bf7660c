// Package processing turns raw camera frames into the binarized crops that
// contour extraction runs on.
package processing

import (
	"fmt"
	"image"

	"pupil-tracker/internal/config"
	"pupil-tracker/internal/geometry"
	"pupil-tracker/internal/opencv/conversion"
	"pupil-tracker/internal/processing/filters"
	"pupil-tracker/internal/processing/threshold"

	"gocv.io/x/gocv"
)

// Frame is the output of preprocessing one raw frame. Its Mats are owned by
// the caller and released by Close.
type Frame struct {
	// Gray is the whole frame in grayscale.
	Gray gocv.Mat
	// Crop is the ROI of Gray before any crop stage.
	Crop gocv.Mat
	// StdDev is the standard deviation of Crop, the contrast signal.
	StdDev  float64
	Blurred gocv.Mat
	// Binary is the Otsu binarization of Blurred, values 0 or 255.
	Binary gocv.Mat
	// Level is the Otsu level; Blurred pixels above it are set in Binary.
	Level int
}

func (f *Frame) Close() {
	f.Gray.Close()
	f.Crop.Close()
	f.Blurred.Close()
	f.Binary.Close()
}

// CropSize is the width and height of the crop.
func (f *Frame) CropSize() (int, int) {
	return f.Crop.Cols(), f.Crop.Rows()
}

type cropStage interface {
	Name() string
	Apply(src gocv.Mat, dst *gocv.Mat) error
}

// Preprocessor converts, crops, optionally transforms, blurs and binarizes
// frames. The crop stages are fixed at construction. A Preprocessor holds
// running-average state and belongs to a single tracker.
type Preprocessor struct {
	roi    geometry.RegionOfInterest
	gray   *filters.GrayscaleConverter
	stages []cropStage
	blur   *filters.GaussianFilter
	otsu   *threshold.OtsuBinarizer
	gamma  *filters.GammaFilter
}

func NewPreprocessor(params config.Parameters, roi geometry.RegionOfInterest) (*Preprocessor, error) {
	if err := roi.Validate(image.Point{}); err != nil {
		return nil, err
	}

	blur, err := filters.NewGaussianFilter(params.GaussianBlurHalfWidth)
	if err != nil {
		return nil, err
	}

	p := &Preprocessor{
		roi:  roi,
		gray: filters.NewGrayscaleConverter(),
		blur: blur,
		otsu: threshold.NewOtsuBinarizer(),
	}

	if params.Gamma != 1 {
		g, err := filters.NewGammaFilter(params.Gamma)
		if err != nil {
			return nil, err
		}
		p.gamma = g
		p.stages = append(p.stages, g)
	}

	if ra := params.RunningAverage; ra.Enabled {
		avg, err := filters.NewRunningAverage(ra.DecayRate, ra.Exponent)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.stages = append(p.stages, avg)
	}

	return p, nil
}

// Stages names the crop stages in application order.
func (p *Preprocessor) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Process preprocesses raw. raw itself is not modified.
func (p *Preprocessor) Process(raw gocv.Mat) (*Frame, error) {
	f := &Frame{
		Gray:    gocv.NewMat(),
		Crop:    gocv.NewMat(),
		Blurred: gocv.NewMat(),
		Binary:  gocv.NewMat(),
	}

	if err := p.process(raw, f); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (p *Preprocessor) process(raw gocv.Mat, f *Frame) error {
	if err := p.gray.Apply(raw, &f.Gray); err != nil {
		return err
	}

	if err := p.roi.Validate(image.Point{X: f.Gray.Cols(), Y: f.Gray.Rows()}); err != nil {
		return err
	}
	if err := conversion.CropGray(f.Gray, p.roi.Rect(), &f.Crop); err != nil {
		return err
	}

	f.StdDev = stdDev(f.Crop)

	work := f.Crop.Clone()
	defer func() { work.Close() }()
	for _, s := range p.stages {
		next := gocv.NewMat()
		if err := s.Apply(work, &next); err != nil {
			next.Close()
			return fmt.Errorf("%s failed: %w", s.Name(), err)
		}
		work.Close()
		work = next
	}

	if err := p.blur.Apply(work, &f.Blurred); err != nil {
		return fmt.Errorf("%s failed: %w", p.blur.Name(), err)
	}
	level, err := p.otsu.Apply(f.Blurred, &f.Binary)
	if err != nil {
		return fmt.Errorf("%s failed: %w", p.otsu.Name(), err)
	}
	f.Level = level
	return nil
}

func stdDev(m gocv.Mat) float64 {
	mean := gocv.NewMat()
	defer mean.Close()
	std := gocv.NewMat()
	defer std.Close()

	gocv.MeanStdDev(m, &mean, &std)
	return std.GetDoubleAt(0, 0)
}

func (p *Preprocessor) Close() error {
	if p.gamma != nil {
		return p.gamma.Close()
	}
	return nil
}
