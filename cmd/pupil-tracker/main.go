package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"pupil-tracker/internal/config"
	"pupil-tracker/internal/debug/timing"
	"pupil-tracker/internal/detection"
	"pupil-tracker/internal/geometry"
	"pupil-tracker/internal/logger"
	"pupil-tracker/internal/shutdown"
	"pupil-tracker/internal/trace"
	"pupil-tracker/internal/tracker"
	"pupil-tracker/internal/video"
)

const (
	AppName    = "pupil-tracker"
	AppVersion = "1.0.0"
	component  = "Application"
)

type options struct {
	video    string
	roi      string
	mask     string
	params   string
	out      string
	plot     string
	report   string
	smooth   bool
	prefetch int
	logLevel string
	logJSON  bool
	timing   bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.StringVar(&o.video, "video", "", "input video file (required)")
	fs.StringVar(&o.roi, "roi", "", "region of interest as r0:r1,c0:c1 or a .json file (required)")
	fs.StringVar(&o.mask, "mask", "", "grayscale static mask image, nonzero pixels are usable")
	fs.StringVar(&o.params, "params", "", "JSON tuning file applied over the defaults")
	fs.StringVar(&o.out, "out", "trace.jsonl", "trace output, .jsonl or .csv")
	fs.StringVar(&o.plot, "plot", "", "write a PNG plot of the run")
	fs.StringVar(&o.report, "report", "", "write an HTML report of the run")
	fs.BoolVar(&o.smooth, "smooth", false, "Kalman-smooth the detected centers (plot and log only)")
	fs.IntVar(&o.prefetch, "prefetch", 8, "frames decoded ahead of tracking, 0 disables")
	fs.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&o.logJSON, "log-json", false, "log JSON lines instead of console output")
	fs.BoolVar(&o.timing, "timing", true, "record per-stage timings")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.video == "" || o.roi == "" {
		fs.Usage()
		return o, errors.New("-video and -roi are required")
	}
	if o.prefetch < 0 {
		return o, fmt.Errorf("-prefetch must not be negative, got %d", o.prefetch)
	}
	return o, nil
}

// Application owns the collaborators of one tracking run.
type Application struct {
	opts     options
	logger   logger.Logger
	shutdown *shutdown.Manager
	timing   *timing.Tracker

	roi    geometry.RegionOfInterest
	params config.Parameters
	mask   *detection.StaticMask
}

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app, err := NewApplication(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: initialization failed: %v\n", AppName, err)
		os.Exit(1)
	}
	defer app.Close()

	app.shutdown.Listen()
	if err := app.Run(); err != nil {
		app.logger.Error(component, err, nil)
		app.Close()
		os.Exit(1)
	}
}

// newLogger tags every line with the input video so interleaved runs can be
// told apart.
func newLogger(opts options) (logger.Logger, error) {
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, err
	}
	var base *logger.ZerologAdapter
	if opts.logJSON {
		base = logger.NewZerolog(os.Stderr, level)
	} else {
		base = logger.NewConsoleLogger(level)
	}
	return base.With(map[string]interface{}{"video": filepath.Base(opts.video)}), nil
}

// NewApplication loads the region, tuning and mask. Everything is validated
// before the video is touched.
func NewApplication(ctx context.Context, opts options) (*Application, error) {
	appLogger, err := newLogger(opts)
	if err != nil {
		return nil, err
	}

	roi, err := loadRegion(opts.roi)
	if err != nil {
		return nil, err
	}

	params := config.DefaultParameters()
	if opts.params != "" {
		if params, err = config.LoadParameters(opts.params); err != nil {
			return nil, err
		}
	}

	var mask *detection.StaticMask
	if opts.mask != "" {
		if mask, err = detection.LoadStaticMask(opts.mask, roi); err != nil {
			return nil, err
		}
	}

	var tt *timing.Tracker
	if opts.timing {
		tt = timing.NewTracker()
	}

	appLogger.Info(component, "application starting", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
		"roi":        roi.String(),
		"mask":       opts.mask != "",
		"prefetch":   opts.prefetch,
	})

	return &Application{
		opts:     opts,
		logger:   appLogger,
		shutdown: shutdown.NewManager(ctx, appLogger),
		timing:   tt,
		roi:      roi,
		params:   params,
		mask:     mask,
	}, nil
}

func loadRegion(value string) (geometry.RegionOfInterest, error) {
	if strings.EqualFold(filepath.Ext(value), ".json") {
		return geometry.LoadRegionOfInterest(value)
	}
	return geometry.ParseRegionOfInterest(value)
}

// Run tracks the whole video and writes the trace. An interrupted run still
// writes the records produced before the interrupt.
func (app *Application) Run() error {
	capture, err := video.Open(app.opts.video)
	if err != nil {
		return err
	}
	defer capture.Close()

	if size := capture.FrameSize(); size != (image.Point{}) {
		if err := app.roi.Validate(size); err != nil {
			return err
		}
	}

	var src tracker.Source = capture
	if app.opts.prefetch > 0 {
		prefetcher := video.NewPrefetcher(capture, app.opts.prefetch)
		defer func() {
			prefetcher.Close()
			app.logger.Debug(component, "prefetcher closed", map[string]interface{}{
				"buffers": prefetcher.Buffers(),
			})
		}()
		src = prefetcher
	}

	t, err := tracker.New(app.params, app.roi, tracker.Options{
		Mask:   app.mask,
		Logger: app.logger,
		Timing: app.timing,
	})
	if err != nil {
		return err
	}
	defer t.Close()

	records, runErr := t.Run(app.shutdown.Context(), src)
	if runErr != nil && !app.shutdown.Interrupted() {
		return runErr
	}

	header := trace.Header{
		RunID:  t.RunID(),
		Video:  capture.Path(),
		ROI:    app.roi.String(),
		Frames: capture.FrameCount(),
	}
	if err := trace.WriteFile(app.opts.out, header, records); err != nil {
		return err
	}
	app.logger.Info(component, "trace written", map[string]interface{}{
		"path":        app.opts.out,
		"records":     len(records),
		"interrupted": app.shutdown.Interrupted(),
	})

	return app.visualize(header, records)
}

func (app *Application) visualize(header trace.Header, records []trace.Record) error {
	var smoothed []trace.SmoothedPoint
	if app.opts.smooth {
		var err error
		smoothed, err = trace.Smooth(records, trace.DefaultSmoothingOptions())
		if err != nil {
			return err
		}
		app.logger.Info(component, "centers smoothed", map[string]interface{}{
			"points": len(smoothed),
		})
	}

	if app.opts.plot != "" {
		if err := trace.PlotRun(records, smoothed, app.opts.plot); err != nil {
			app.logger.Warning(component, "plot skipped", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		app.logger.Info(component, "plot written", map[string]interface{}{"path": app.opts.plot})
	}

	if app.opts.report != "" {
		if err := trace.WriteReport(app.opts.report, header, records, smoothed); err != nil {
			return err
		}
		app.logger.Info(component, "report written", map[string]interface{}{"path": app.opts.report})
	}
	return nil
}

func (app *Application) Close() {
	app.shutdown.Shutdown()
	if app.mask != nil {
		app.mask.Close()
		app.mask = nil
	}
}
