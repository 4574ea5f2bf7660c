package filters

import (
	"fmt"
	"math"

	"pupil-tracker/internal/opencv/conversion"
	"pupil-tracker/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// PowerTable maps each byte value v to 255·(v/255)^exponent.
type PowerTable [256]float64

func NewPowerTable(exponent float64) *PowerTable {
	var t PowerTable
	for i := range t {
		t[i] = math.Pow(float64(i)/255, exponent) * 255
	}
	return &t
}

// Bytes truncates the table to 8-bit values.
func (t *PowerTable) Bytes() [256]byte {
	var out [256]byte
	for i, v := range t {
		out[i] = byte(v)
	}
	return out
}

// GammaTable is the lookup table of a gamma adjustment, exponent 1/gamma.
func GammaTable(gamma float64) *PowerTable {
	return NewPowerTable(1 / gamma)
}

// GammaFilter applies a precomputed gamma lookup table.
type GammaFilter struct {
	gamma float64
	lut   gocv.Mat
}

func NewGammaFilter(gamma float64) (*GammaFilter, error) {
	if gamma <= 0 {
		return nil, fmt.Errorf("gamma must be positive, got %g", gamma)
	}

	table := GammaTable(gamma).Bytes()
	lut := gocv.NewMat()
	if err := conversion.BytesToMat(table[:], 1, len(table), &lut); err != nil {
		lut.Close()
		return nil, fmt.Errorf("gamma table creation failed: %w", err)
	}
	return &GammaFilter{gamma: gamma, lut: lut}, nil
}

func (g *GammaFilter) Name() string {
	return "gamma_filter"
}

func (g *GammaFilter) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if err := safe.ValidateGray(&src, g.Name()); err != nil {
		return err
	}
	gocv.LUT(src, g.lut, dst)
	return nil
}

func (g *GammaFilter) Close() error {
	return g.lut.Close()
}

// RunningAverage keeps an exponentially weighted average of power-transformed
// crops: R = c·T(crop) + (1-c)·R. The buffer starts as T of the first crop and
// its truncated 8-bit value replaces the crop.
type RunningAverage struct {
	decay float64
	table *PowerTable
	avg   []float64
	rows  int
	cols  int
}

func NewRunningAverage(decay, exponent float64) (*RunningAverage, error) {
	if decay <= 0 || decay > 1 {
		return nil, fmt.Errorf("decay rate must be in (0, 1], got %g", decay)
	}
	if exponent <= 0 {
		return nil, fmt.Errorf("exponent must be positive, got %g", exponent)
	}
	return &RunningAverage{decay: decay, table: NewPowerTable(exponent)}, nil
}

func (r *RunningAverage) Name() string {
	return "running_average"
}

func (r *RunningAverage) Apply(src gocv.Mat, dst *gocv.Mat) error {
	if err := safe.ValidateGray(&src, r.Name()); err != nil {
		return err
	}

	out, err := r.Update(src.ToBytes(), src.Rows(), src.Cols())
	if err != nil {
		return err
	}
	return conversion.BytesToMat(out, src.Rows(), src.Cols(), dst)
}

// Update folds one row-major crop into the buffer and returns its 8-bit value.
func (r *RunningAverage) Update(crop []byte, rows, cols int) ([]byte, error) {
	if len(crop) != rows*cols {
		return nil, fmt.Errorf("crop holds %d bytes, want %dx%d", len(crop), cols, rows)
	}

	if r.avg == nil {
		r.avg = make([]float64, len(crop))
		r.rows, r.cols = rows, cols
		for i, v := range crop {
			r.avg[i] = r.table[v]
		}
	} else {
		if rows != r.rows || cols != r.cols {
			return nil, fmt.Errorf("crop size changed from %dx%d to %dx%d", r.cols, r.rows, cols, rows)
		}
		for i, v := range crop {
			r.avg[i] = r.decay*r.table[v] + (1-r.decay)*r.avg[i]
		}
	}

	out := make([]byte, len(r.avg))
	for i, v := range r.avg {
		out[i] = byte(v)
	}
	return out, nil
}

// Reset drops the buffer so the next crop reinitializes it.
func (r *RunningAverage) Reset() {
	r.avg = nil
}
