package filters

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GaussianFilter blurs with a square kernel of side 2h+1 and sigma derived
// from the kernel size.
type GaussianFilter struct {
	halfWidth int
}

func NewGaussianFilter(halfWidth int) (*GaussianFilter, error) {
	if halfWidth <= 0 {
		return nil, fmt.Errorf("gaussian half-width must be positive, got %d", halfWidth)
	}
	return &GaussianFilter{halfWidth: halfWidth}, nil
}

func (g *GaussianFilter) Name() string {
	return "gaussian_filter"
}

func (g *GaussianFilter) KernelSize() int {
	return 2*g.halfWidth + 1
}

func (g *GaussianFilter) Apply(src gocv.Mat, dst *gocv.Mat) error {
	k := g.KernelSize()
	gocv.GaussianBlur(src, dst, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)
	return nil
}
