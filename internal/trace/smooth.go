package trace

import (
	"fmt"

	kalman_filter "github.com/LdDl/kalman-filter"

	"pupil-tracker/internal/geometry"
)

// SmoothingOptions configures the constant-acceleration Kalman filter run over
// detected centers. Dt is one frame.
type SmoothingOptions struct {
	Dt       float64
	Ux       float64
	Uy       float64
	StdDevA  float64
	StdDevMx float64
	StdDevMy float64
}

func DefaultSmoothingOptions() SmoothingOptions {
	return SmoothingOptions{
		Dt:       1,
		Ux:       0,
		Uy:       0,
		StdDevA:  2,
		StdDevMx: 1,
		StdDevMy: 1,
	}
}

// SmoothedPoint is the filtered center for one frame. Predicted marks frames
// without a measurement, where the center is the filter prediction.
type SmoothedPoint struct {
	FrameID   int
	Center    geometry.Point2f
	Predicted bool
}

// Smooth runs the filter over the records in order, starting at the first
// detection. Frames before it produce no point.
func Smooth(records []Record, opts SmoothingOptions) ([]SmoothedPoint, error) {
	var kf *kalman_filter.Kalman2D
	out := make([]SmoothedPoint, 0, len(records))

	for _, r := range records {
		d := r.Detection
		if kf == nil {
			if d == nil {
				continue
			}
			kf = kalman_filter.NewKalman2D(opts.Dt, opts.Ux, opts.Uy, opts.StdDevA, opts.StdDevMx, opts.StdDevMy,
				kalman_filter.WithState2D(d.Center.X, d.Center.Y))
			out = append(out, SmoothedPoint{FrameID: r.FrameID, Center: d.Center})
			continue
		}

		kf.Predict()
		if d != nil {
			if err := kf.Update(d.Center.X, d.Center.Y); err != nil {
				return out, fmt.Errorf("failed to update center filter at frame %d: %w", r.FrameID, err)
			}
		}
		x, y := kf.GetState()
		out = append(out, SmoothedPoint{
			FrameID:   r.FrameID,
			Center:    geometry.Point2f{X: x, Y: y},
			Predicted: d == nil,
		})
	}
	return out, nil
}
