// Package pupil holds the decision logic of the tracker: cross-frame memory
// and the seven-criterion candidate scoring.
package pupil

import "pupil-tracker/internal/geometry"

// State is the cross-frame memory of one tracking run. It is owned by a
// single tracker and is not safe for concurrent use.
//
// The last accepted ellipse, center and radius survive failed frames; only a
// later success replaces them. Failures counts consecutive misses starting at 1
// and multiplies the speed and radius-change limits.
type State struct {
	lastEllipse  *geometry.Ellipse
	lastCenter   *geometry.Point2f
	lastRadius   float64
	hasRadius    bool
	failures     int
	successCount int
	failureCount int
}

// Prior is an immutable snapshot of State consulted while scoring a frame.
type Prior struct {
	Ellipse  *geometry.Ellipse
	Center   *geometry.Point2f
	Radius   float64
	Failures int
}

// HasCenter reports whether a previous normalized center exists.
func (p Prior) HasCenter() bool { return p.Center != nil }

// HasRadius reports whether a previous radius exists.
func (p Prior) HasRadius() bool { return p.Radius > 0 }

// NewState returns the state of a run that has not seen any frame.
func NewState() *State {
	return &State{failures: 1}
}

// Prior returns a snapshot of the current memory.
func (s *State) Prior() Prior {
	p := Prior{Failures: s.failures}
	if s.lastEllipse != nil {
		e := *s.lastEllipse
		p.Ellipse = &e
	}
	if s.lastCenter != nil {
		c := *s.lastCenter
		p.Center = &c
	}
	if s.hasRadius {
		p.Radius = s.lastRadius
	}
	return p
}

// ConsecutiveFailures is the current relaxation factor (>= 1).
func (s *State) ConsecutiveFailures() int {
	return s.failures
}

// Succeed records an accepted ellipse and its center normalized to the crop.
func (s *State) Succeed(e geometry.Ellipse, normalizedCenter geometry.Point2f) {
	s.lastEllipse = &e
	s.lastCenter = &normalizedCenter
	s.lastRadius = e.Major
	s.hasRadius = true
	s.failures = 1
	s.successCount++
}

// Fail records a frame without an accepted ellipse. Prior values are kept.
func (s *State) Fail() {
	s.failures++
	s.failureCount++
}

// Counts returns how many successes and failures were recorded.
func (s *State) Counts() (successes, failures int) {
	return s.successCount, s.failureCount
}
