package detection

import (
	"image"

	"pupil-tracker/internal/config"
	"pupil-tracker/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Extraction lists the contours eligible for ellipse fitting.
type Extraction struct {
	Contours [][]image.Point
	// Found is the number of boundaries traced before filtering.
	Found int
	// Inner counts boundaries dropped by the outer-only policy.
	Inner int
	// Short counts boundaries left with fewer than the minimum points.
	Short int
}

// Extractor traces the full boundary tree of a binary image.
type Extractor struct {
	policy config.ContourPolicy
	minLen int
}

func NewExtractor(policy config.ContourPolicy, minContourLen int) *Extractor {
	return &Extractor{policy: policy, minLen: minContourLen}
}

// Extract traces boundaries in binary. Points outside the eroded static mask
// are removed before the length check. binary is not modified.
func (x *Extractor) Extract(binary gocv.Mat, static *StaticMask) (Extraction, error) {
	var out Extraction
	if err := safe.ValidateGray(&binary, "contour extraction"); err != nil {
		return out, err
	}

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()

	traced := gocv.FindContoursWithParams(binary, &hierarchy, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer traced.Close()

	contours := traced.ToPoints()
	out.Found = len(contours)

	for i, contour := range contours {
		if x.policy == config.ContourPolicyOuter && hasParent(hierarchy, i) {
			out.Inner++
			continue
		}
		if static != nil {
			contour = keepUsable(contour, static)
		}
		if len(contour) < x.minLen {
			out.Short++
			continue
		}
		out.Contours = append(out.Contours, contour)
	}
	return out, nil
}

// hasParent reads the parent index of contour i from a 1×N CV_32SC4 hierarchy.
func hasParent(hierarchy gocv.Mat, i int) bool {
	if hierarchy.Empty() || i >= hierarchy.Cols() {
		return false
	}
	return hierarchy.GetVeciAt(0, i)[3] >= 0
}

func keepUsable(contour []image.Point, static *StaticMask) []image.Point {
	kept := make([]image.Point, 0, len(contour))
	for _, p := range contour {
		if static.Usable(p) {
			kept = append(kept, p)
		}
	}
	return kept
}
