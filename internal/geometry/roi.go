package geometry

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RegionOfInterest is the fixed window of every frame the tracker searches in.
// Both ranges are half-open pixel index ranges: [Rows[0], Rows[1]) and [Cols[0], Cols[1]).
type RegionOfInterest struct {
	Rows [2]int `json:"rows"`
	Cols [2]int `json:"cols"`
}

// Rect returns the region as an image rectangle (x = column, y = row).
func (r RegionOfInterest) Rect() image.Rectangle {
	return image.Rect(r.Cols[0], r.Rows[0], r.Cols[1], r.Rows[1])
}

// Size returns (width, height) of the crop.
func (r RegionOfInterest) Size() image.Point {
	return image.Point{X: r.Cols[1] - r.Cols[0], Y: r.Rows[1] - r.Rows[0]}
}

// Origin is the top-left corner of the crop in frame coordinates.
func (r RegionOfInterest) Origin() Point2f {
	return Point2f{X: float64(r.Cols[0]), Y: float64(r.Rows[0])}
}

// Validate checks that both ranges are non-empty and lie inside a frame of the given size.
// A zero frame size only checks the ranges themselves.
func (r RegionOfInterest) Validate(frame image.Point) error {
	if r.Rows[0] < 0 || r.Cols[0] < 0 {
		return errors.Errorf("region of interest %s has negative start", r)
	}
	if r.Rows[1] <= r.Rows[0] || r.Cols[1] <= r.Cols[0] {
		return errors.Errorf("region of interest %s is empty", r)
	}
	if frame == (image.Point{}) {
		return nil
	}
	if r.Rows[1] > frame.Y || r.Cols[1] > frame.X {
		return errors.Errorf("region of interest %s exceeds frame %dx%d", r, frame.X, frame.Y)
	}
	return nil
}

func (r RegionOfInterest) String() string {
	return fmt.Sprintf("%d:%d,%d:%d", r.Rows[0], r.Rows[1], r.Cols[0], r.Cols[1])
}

// ParseRegionOfInterest reads "r0:r1,c0:c1".
func ParseRegionOfInterest(s string) (RegionOfInterest, error) {
	var roi RegionOfInterest
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return roi, errors.Errorf("region of interest %q: want r0:r1,c0:c1", s)
	}
	for i, part := range parts {
		bounds := strings.Split(part, ":")
		if len(bounds) != 2 {
			return roi, errors.Errorf("region of interest %q: range %q needs start:end", s, part)
		}
		var pair [2]int
		for j, b := range bounds {
			v, err := strconv.Atoi(strings.TrimSpace(b))
			if err != nil {
				return roi, errors.Wrapf(err, "region of interest %q", s)
			}
			pair[j] = v
		}
		if i == 0 {
			roi.Rows = pair
		} else {
			roi.Cols = pair
		}
	}
	return roi, roi.Validate(image.Point{})
}

// LoadRegionOfInterest reads a {"rows":[r0,r1],"cols":[c0,c1]} JSON file.
func LoadRegionOfInterest(path string) (RegionOfInterest, error) {
	var roi RegionOfInterest
	data, err := os.ReadFile(path)
	if err != nil {
		return roi, errors.Wrap(err, "can't read region of interest file")
	}
	if err := json.Unmarshal(data, &roi); err != nil {
		return roi, errors.Wrapf(err, "can't parse region of interest file %q", path)
	}
	return roi, roi.Validate(image.Point{})
}
