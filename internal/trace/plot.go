package trace

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	radiusColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	centerXColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	centerYColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	smoothedColor = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// PlotRun renders major radius and center coordinates against frame id to an
// image file whose format follows the extension. Smoothed centers are drawn
// when given.
func PlotRun(records []Record, smoothed []SmoothedPoint, path string) error {
	var radius, cx, cy plotter.XYs
	for _, r := range records {
		if r.Detection == nil {
			continue
		}
		x := float64(r.FrameID)
		radius = append(radius, plotter.XY{X: x, Y: r.Detection.MajorRadius})
		cx = append(cx, plotter.XY{X: x, Y: r.Detection.Center.X})
		cy = append(cy, plotter.XY{X: x, Y: r.Detection.Center.Y})
	}
	if len(radius) == 0 {
		return fmt.Errorf("no detected frames to plot")
	}

	p := plot.New()
	p.Title.Text = "Pupil trace"
	p.X.Label.Text = "frame"
	p.Y.Label.Text = "pixels"

	series := []struct {
		name  string
		pts   plotter.XYs
		color color.RGBA
	}{
		{"major axis", radius, radiusColor},
		{"center x", cx, centerXColor},
		{"center y", cy, centerYColor},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("failed to create %s line: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	if len(smoothed) > 0 {
		sx := make(plotter.XYs, 0, len(smoothed))
		for _, s := range smoothed {
			sx = append(sx, plotter.XY{X: float64(s.FrameID), Y: s.Center.X})
		}
		line, err := plotter.NewLine(sx)
		if err != nil {
			return fmt.Errorf("failed to create smoothed line: %w", err)
		}
		line.Color = smoothedColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("center x (smoothed)", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
