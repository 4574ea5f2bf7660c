// Package trace defines the per-frame output of a tracking run and the ways
// a run is written out, summarized, smoothed and plotted.
package trace

import (
	"fmt"
	"image"

	"pupil-tracker/internal/geometry"
)

// Kind tags the variant of a Record.
type Kind string

const (
	KindDetected    Kind = "detected"
	KindLowContrast Kind = "low_contrast"
	KindNoDetection Kind = "no_detection"
	KindDropped     Kind = "dropped"
)

// Detection is the payload of a detected frame.
type Detection struct {
	// Center is the ellipse center in frame coordinates.
	Center geometry.Point2f `json:"center"`
	// MajorRadius is the full major axis length in pixels.
	MajorRadius float64 `json:"major_r"`
	// RotatedRect is (cx, cy, major, minor, angle) in crop coordinates.
	RotatedRect [5]float64 `json:"rotated_rect"`
	// Contour holds the crop coordinates of the winning contour as (x, y) pairs.
	Contour [][2]int `json:"contour"`
}

// Ellipse rebuilds the crop-space ellipse stored in RotatedRect.
func (d *Detection) Ellipse() geometry.Ellipse {
	r := d.RotatedRect
	return geometry.Ellipse{
		Center: geometry.Point2f{X: r[0], Y: r[1]},
		Major:  r[2],
		Minor:  r[3],
		Angle:  r[4],
	}
}

// Points returns the contour as image points.
func (d *Detection) Points() []image.Point {
	out := make([]image.Point, len(d.Contour))
	for i, p := range d.Contour {
		out[i] = image.Point{X: p[0], Y: p[1]}
	}
	return out
}

// Record is the immutable result for one frame. FrameIntensity is absent for
// dropped frames and Detection is present only for detected ones.
type Record struct {
	Kind           Kind       `json:"kind"`
	FrameID        int        `json:"frame_id"`
	FrameIntensity *float64   `json:"frame_intensity,omitempty"`
	Detection      *Detection `json:"detection,omitempty"`
}

// Validate reports records a tracker could not have produced: an unknown kind,
// a detected frame without its payload, or a payload on any other kind.
func (r Record) Validate() error {
	switch r.Kind {
	case KindDetected:
		if r.Detection == nil {
			return fmt.Errorf("frame %d: detected record has no detection", r.FrameID)
		}
	case KindLowContrast, KindNoDetection, KindDropped:
		if r.Detection != nil {
			return fmt.Errorf("frame %d: %s record carries a detection", r.FrameID, r.Kind)
		}
	default:
		return fmt.Errorf("frame %d: unknown record kind %q", r.FrameID, r.Kind)
	}
	return nil
}

// Intensity returns the frame contrast when it was measured.
func (r Record) Intensity() (float64, bool) {
	if r.FrameIntensity == nil {
		return 0, false
	}
	return *r.FrameIntensity, true
}

func Detected(frameID int, intensity float64, crop geometry.Ellipse, origin geometry.Point2f, contour []image.Point) Record {
	pts := make([][2]int, len(contour))
	for i, p := range contour {
		pts[i] = [2]int{p.X, p.Y}
	}
	return Record{
		Kind:           KindDetected,
		FrameID:        frameID,
		FrameIntensity: &intensity,
		Detection: &Detection{
			Center:      crop.Center.Add(origin),
			MajorRadius: crop.Major,
			RotatedRect: crop.RotatedRect(),
			Contour:     pts,
		},
	}
}

func LowContrast(frameID int, intensity float64) Record {
	return Record{Kind: KindLowContrast, FrameID: frameID, FrameIntensity: &intensity}
}

func NoDetection(frameID int, intensity float64) Record {
	return Record{Kind: KindNoDetection, FrameID: frameID, FrameIntensity: &intensity}
}

func Dropped(frameID int) Record {
	return Record{Kind: KindDropped, FrameID: frameID}
}
