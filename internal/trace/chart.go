package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderReport writes an HTML page with the detected centers in frame
// coordinates, the smoothed centers when given, and the record counts per kind.
func RenderReport(w io.Writer, h Header, records []Record, smoothed []SmoothedPoint) error {
	summary := Summarize(records)

	detected := make([]opts.ScatterData, 0, summary.Counts[KindDetected])
	for _, r := range records {
		if r.Detection == nil {
			continue
		}
		c := r.Detection.Center
		detected = append(detected, opts.ScatterData{Value: []interface{}{c.X, c.Y, r.FrameID}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pupil trace", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pupil centers",
			Subtitle: fmt.Sprintf("run=%s roi=%s detected=%d", h.RunID, h.ROI, len(detected)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("detected", detected, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	if len(smoothed) > 0 {
		pts := make([]opts.ScatterData, 0, len(smoothed))
		for _, s := range smoothed {
			pts = append(pts, opts.ScatterData{Value: []interface{}{s.Center.X, s.Center.Y, s.FrameID}})
		}
		scatter.AddSeries("smoothed", pts,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	}

	kinds := []Kind{KindDetected, KindNoDetection, KindLowContrast, KindDropped}
	x := make([]string, 0, len(kinds))
	y := make([]opts.BarData, 0, len(kinds))
	for _, k := range kinds {
		x = append(x, string(k))
		y = append(y, opts.BarData{Value: summary.Counts[k]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Frames by outcome",
			Subtitle: fmt.Sprintf("frames=%d detection rate=%.3f", summary.Frames, summary.DetectionRate),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("frames", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}

// WriteReport renders the HTML report to path.
func WriteReport(path string, h Header, records []Record, smoothed []SmoothedPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := RenderReport(f, h, records, smoothed); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
