package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a run.
type Summary struct {
	Frames        int
	Counts        map[Kind]int
	DetectionRate float64
	// LongestMiss is the longest run of consecutive no-detection frames.
	LongestMiss int

	RadiusMean      float64
	RadiusStdDev    float64
	RadiusMedian    float64
	IntensityMean   float64
	IntensityStdDev float64
}

// Summarize computes counts and radius/intensity statistics. DetectionRate is
// relative to the frames whose contrast was sufficient for a search.
func Summarize(records []Record) Summary {
	s := Summary{Frames: len(records), Counts: make(map[Kind]int)}

	var radii, intensities []float64
	miss := 0
	for _, r := range records {
		s.Counts[r.Kind]++
		if v, ok := r.Intensity(); ok {
			intensities = append(intensities, v)
		}

		switch r.Kind {
		case KindDetected:
			if r.Detection != nil {
				radii = append(radii, r.Detection.MajorRadius)
			}
			miss = 0
		case KindNoDetection:
			miss++
			if miss > s.LongestMiss {
				s.LongestMiss = miss
			}
		}
	}

	if searched := s.Counts[KindDetected] + s.Counts[KindNoDetection]; searched > 0 {
		s.DetectionRate = float64(s.Counts[KindDetected]) / float64(searched)
	}

	if len(radii) > 0 {
		s.RadiusMean, s.RadiusStdDev = meanStdDev(radii)
		sorted := append([]float64(nil), radii...)
		sort.Float64s(sorted)
		s.RadiusMedian = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	if len(intensities) > 0 {
		s.IntensityMean, s.IntensityStdDev = meanStdDev(intensities)
	}
	return s
}

// Fields flattens the summary for structured logging.
func (s Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"frames":         s.Frames,
		"detected":       s.Counts[KindDetected],
		"no_detection":   s.Counts[KindNoDetection],
		"low_contrast":   s.Counts[KindLowContrast],
		"dropped":        s.Counts[KindDropped],
		"detection_rate": s.DetectionRate,
		"longest_miss":   s.LongestMiss,
		"radius_mean":    s.RadiusMean,
		"radius_std":     s.RadiusStdDev,
		"radius_median":  s.RadiusMedian,
	}
}

func meanStdDev(x []float64) (float64, float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}
