package pupil

import (
	"image"
	"strings"

	"pupil-tracker/internal/config"
	"pupil-tracker/internal/geometry"
)

// Criterion names one of the seven acceptance tests a candidate must pass.
type Criterion int

const (
	CriterionRatio Criterion = iota
	CriterionArea
	CriterionFit
	CriterionCenterX
	CriterionCenterY
	CriterionSpeed
	CriterionRadiusChange

	// NumCriteria is the match count of a fully accepted candidate.
	NumCriteria = int(CriterionRadiusChange) + 1
)

var criterionNames = [NumCriteria]string{"ratio", "area", "rmse", "x coord", "y coord", "dx", "dr/r"}

func (c Criterion) String() string {
	if c < 0 || int(c) >= NumCriteria {
		return "unknown"
	}
	return criterionNames[c]
}

// Criteria holds the pass/fail outcome per criterion.
type Criteria [NumCriteria]bool

// MatchCount is the number of passed criteria (0..7).
func (c Criteria) MatchCount() int {
	n := 0
	for _, ok := range c {
		if ok {
			n++
		}
	}
	return n
}

// All reports whether every criterion passed.
func (c Criteria) All() bool {
	return c.MatchCount() == NumCriteria
}

// Failed lists the names of the criteria that did not pass.
func (c Criteria) Failed() []string {
	var failed []string
	for i, ok := range c {
		if !ok {
			failed = append(failed, Criterion(i).String())
		}
	}
	return failed
}

func (c Criteria) String() string {
	failed := c.Failed()
	if len(failed) == 0 {
		return "all"
	}
	return "failed: " + strings.Join(failed, ",")
}

// Measurement is what a fitted ellipse is judged on.
type Measurement struct {
	Ratio        float64
	RelativeArea float64
	RMSE         float64
	// Center is normalized to [0,1]² relative to the crop.
	Center geometry.Point2f
	Dx     float64
	Dr     float64
}

// Candidate is one contour with its fitted ellipse and verdict.
type Candidate struct {
	// Index is the position of the contour in the evaluated list.
	Index   int
	Contour []image.Point
	Ellipse geometry.Ellipse
	Measurement
	Criteria Criteria
}

// Result is the outcome of scoring one frame.
type Result struct {
	Best       *Candidate
	Candidates []Candidate
	// Degenerate counts contours whose ellipse fit collapsed.
	Degenerate int
	// Skipped counts contours shorter than the minimum contour length.
	Skipped int
}

// NearMisses returns rejected candidates with at least minMatch passed criteria.
func (r Result) NearMisses(minMatch int) []Candidate {
	var out []Candidate
	for _, c := range r.Candidates {
		if !c.Criteria.All() && c.Criteria.MatchCount() >= minMatch {
			out = append(out, c)
		}
	}
	return out
}

// Scorer fits and judges candidate contours against the run parameters.
type Scorer struct {
	params config.Parameters
	fit    func([]image.Point) (geometry.Ellipse, error)
}

// NewScorer returns a scorer using the direct least-squares ellipse fit.
func NewScorer(params config.Parameters) *Scorer {
	return &Scorer{params: params, fit: geometry.FitEllipse}
}

// Measure computes the quantities the criteria are evaluated on.
func (s *Scorer) Measure(contour []image.Point, e geometry.Ellipse, crop image.Point, prior Prior) Measurement {
	m := Measurement{
		Ratio:        e.AspectRatio(),
		RelativeArea: e.RelativeArea(crop),
		RMSE:         geometry.GoodnessOfFit(contour, e),
		Center:       e.NormalizedCenter(crop),
	}
	if prior.HasCenter() {
		m.Dx = m.Center.DistanceTo(*prior.Center)
	}
	if prior.HasRadius() {
		diff := e.Major - prior.Radius
		if diff < 0 {
			diff = -diff
		}
		m.Dr = diff / prior.Radius
	}
	return m
}

// Evaluate applies the seven criteria. The continuity limits are multiplied by
// the number of consecutive failures so a lost pupil can be reacquired further away.
func (s *Scorer) Evaluate(m Measurement, failures int) Criteria {
	p := s.params
	if failures < 1 {
		failures = 1
	}
	relax := float64(failures)
	var c Criteria
	c[CriterionRatio] = m.Ratio <= p.RatioThreshold
	c[CriterionArea] = m.RelativeArea >= p.RelativeAreaThreshold
	c[CriterionFit] = m.RMSE < p.ErrorThreshold
	c[CriterionCenterX] = p.Margin < m.Center.X && m.Center.X < 1-p.Margin
	c[CriterionCenterY] = p.Margin < m.Center.Y && m.Center.Y < 1-p.Margin
	c[CriterionSpeed] = m.Dx < p.SpeedThreshold*relax
	c[CriterionRadiusChange] = m.Dr < p.DRThreshold*relax
	return c
}

// Score fits every contour and picks the best fully accepted candidate.
func (s *Scorer) Score(contours [][]image.Point, crop image.Point, prior Prior) Result {
	var res Result
	for i, contour := range contours {
		if len(contour) < s.params.MinContourLen {
			res.Skipped++
			continue
		}
		e, err := s.fit(contour)
		if err != nil || e.Degenerate() {
			res.Degenerate++
			continue
		}
		m := s.Measure(contour, e, crop, prior)
		res.Candidates = append(res.Candidates, Candidate{
			Index:       i,
			Contour:     contour,
			Ellipse:     e,
			Measurement: m,
			Criteria:    s.Evaluate(m, prior.Failures),
		})
	}
	res.Best = Select(res.Candidates)
	return res
}

// Select returns the fully accepted candidate with the lowest RMSE, the
// earliest one on ties, or nil when none passes every criterion.
func Select(candidates []Candidate) *Candidate {
	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if !c.Criteria.All() {
			continue
		}
		if best == nil || c.RMSE < best.RMSE {
			best = c
		}
	}
	return best
}
