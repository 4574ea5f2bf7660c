// Package tracker runs the per-frame pupil detection state machine over a
// video and emits one trace record per frame.
package tracker

import (
	"context"
	"fmt"
	"image"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"pupil-tracker/internal/config"
	"pupil-tracker/internal/debug/timing"
	"pupil-tracker/internal/detection"
	"pupil-tracker/internal/geometry"
	"pupil-tracker/internal/logger"
	"pupil-tracker/internal/processing"
	"pupil-tracker/internal/pupil"
	"pupil-tracker/internal/trace"
)

const component = "Tracker"

// Source yields raw frames in temporal order. Read fills dst with the next
// frame and reports false when it could not be decoded. Index is the 1-based
// number of the frame most recently read and FrameCount the declared total,
// or 0 when unknown.
type Source interface {
	Read(dst *gocv.Mat) bool
	FrameCount() int
	Index() int
}

// Options carries the optional collaborators of a Tracker.
type Options struct {
	// Mask excludes operator-marked pixels. It stays owned by the caller.
	Mask   *detection.StaticMask
	Logger logger.Logger
	Timing *timing.Tracker
	// RunID tags log lines and trace headers; a random one is generated when empty.
	RunID string
}

// Tracker owns the state of a single run. It is not safe for concurrent use;
// independent videos need independent Trackers.
type Tracker struct {
	params    config.Parameters
	roi       geometry.RegionOfInterest
	crop      image.Point
	mask      *detection.StaticMask
	pre       *processing.Preprocessor
	prior     *detection.PriorMask
	extractor *detection.Extractor
	scorer    *pupil.Scorer
	state     *pupil.State
	log       logger.Logger
	timing    *timing.Tracker
	runID     string
}

// New validates the configuration and builds a tracker. Invalid parameters
// are rejected, never clamped.
func New(params config.Parameters, roi geometry.RegionOfInterest, opts Options) (*Tracker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := roi.Validate(image.Point{}); err != nil {
		return nil, fmt.Errorf("invalid region of interest: %w", err)
	}

	crop := roi.Size()
	if opts.Mask != nil && opts.Mask.Size() != crop {
		return nil, fmt.Errorf("static mask is %v, region of interest is %v", opts.Mask.Size(), crop)
	}

	pre, err := processing.NewPreprocessor(params, roi)
	if err != nil {
		return nil, fmt.Errorf("failed to build preprocessor: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &Tracker{
		params:    params,
		roi:       roi,
		crop:      crop,
		mask:      opts.Mask,
		pre:       pre,
		prior:     detection.NewPriorMask(crop, params.PriorDilationIterations),
		extractor: detection.NewExtractor(params.ContourPolicy, params.MinContourLen),
		scorer:    pupil.NewScorer(params),
		state:     pupil.NewState(),
		log:       log,
		timing:    opts.Timing,
		runID:     runID,
	}, nil
}

func (t *Tracker) RunID() string {
	return t.runID
}

// Prior is a snapshot of the cross-frame state.
func (t *Tracker) Prior() pupil.Prior {
	return t.state.Prior()
}

// Run processes frames until the source is exhausted or ctx is cancelled.
// Cancellation is observed between frames, so the records returned with
// ctx.Err() are a complete prefix of the run. Any other error stops the run
// and is returned with the records produced before it.
func (t *Tracker) Run(ctx context.Context, src Source) ([]trace.Record, error) {
	total := src.FrameCount()
	records := make([]trace.Record, 0, max(total, 0))

	t.log.Info(component, "tracking started", map[string]interface{}{
		"run_id":         t.runID,
		"frames":         total,
		"roi":            t.roi.String(),
		"contour_policy": string(t.params.ContourPolicy),
		"crop_stages":    t.pre.Stages(),
	})

	raw := gocv.NewMat()
	defer raw.Close()

	for total <= 0 || src.Index() < total {
		if err := ctx.Err(); err != nil {
			t.log.Warning(component, "tracking cancelled", map[string]interface{}{
				"run_id":  t.runID,
				"records": len(records),
			})
			return records, err
		}

		readCtx := t.timing.StartTiming(ctx, timing.StageRead)
		ok := src.Read(&raw)
		t.timing.EndTiming(readCtx)
		frameID := src.Index()

		if !ok {
			if total <= 0 {
				break
			}
			t.log.Warning(component, "frame read failed", map[string]interface{}{"frame": frameID})
			records = append(records, trace.Dropped(frameID))
			continue
		}

		rec, err := t.Step(ctx, frameID, raw)
		if err != nil {
			return records, fmt.Errorf("frame %d: %w", frameID, err)
		}
		records = append(records, rec)

		if n := t.params.ProgressInterval; n > 0 && frameID%n == 0 {
			t.log.Info(component, "progress", map[string]interface{}{
				"frame":    frameID,
				"frames":   total,
				"failures": t.state.ConsecutiveFailures(),
			})
		}
	}

	summary := trace.Summarize(records)
	fields := summary.Fields()
	fields["run_id"] = t.runID
	successes, failures := t.state.Counts()
	fields["accepted"] = successes
	fields["rejected"] = failures
	for stage, avg := range t.timing.Summary() {
		fields["avg_"+stage] = avg.String()
	}
	t.log.Info(component, "tracking finished", fields)
	return records, nil
}

// Step runs the pipeline on one decoded frame and updates the state. raw is
// not modified.
func (t *Tracker) Step(ctx context.Context, frameID int, raw gocv.Mat) (trace.Record, error) {
	frameCtx := t.timing.StartTiming(ctx, timing.StageFrame)
	defer t.timing.EndTiming(frameCtx)

	preCtx := t.timing.StartTiming(ctx, timing.StagePreprocess)
	frame, err := t.pre.Process(raw)
	t.timing.EndTiming(preCtx)
	if err != nil {
		return trace.Record{}, err
	}
	defer frame.Close()

	if frame.StdDev < t.params.ContrastThreshold {
		return trace.LowContrast(frameID, frame.StdDev), nil
	}

	prior := t.state.Prior()

	contourCtx := t.timing.StartTiming(ctx, timing.StageContours)
	extraction, err := t.extract(frame, prior)
	t.timing.EndTiming(contourCtx)
	if err != nil {
		return trace.Record{}, err
	}

	scoreCtx := t.timing.StartTiming(ctx, timing.StageScore)
	result := t.scorer.Score(extraction.Contours, t.crop, prior)
	t.timing.EndTiming(scoreCtx)

	t.logNearMisses(frameID, prior, result)

	best := result.Best
	if best == nil {
		t.state.Fail()
		return trace.NoDetection(frameID, frame.StdDev), nil
	}

	t.state.Succeed(best.Ellipse, best.Center)
	return trace.Detected(frameID, frame.StdDev, best.Ellipse, t.roi.Origin(), best.Contour), nil
}

func (t *Tracker) extract(frame *processing.Frame, prior pupil.Prior) (detection.Extraction, error) {
	priorMask := gocv.NewMat()
	defer priorMask.Close()
	if err := t.prior.Build(prior.Ellipse, &priorMask); err != nil {
		return detection.Extraction{}, fmt.Errorf("failed to build prior mask: %w", err)
	}

	restricted := gocv.NewMat()
	defer restricted.Close()
	if err := detection.Restrict(frame.Binary, priorMask, t.mask, &restricted); err != nil {
		return detection.Extraction{}, err
	}

	return t.extractor.Extract(restricted, t.mask)
}

func (t *Tracker) logNearMisses(frameID int, prior pupil.Prior, result pupil.Result) {
	if t.params.NearMissMatchCount <= 0 {
		return
	}
	for _, c := range result.NearMisses(t.params.NearMissMatchCount) {
		t.log.Debug(component, "near miss", map[string]interface{}{
			"frame":       frameID,
			"contour":     c.Index,
			"match_count": c.Criteria.MatchCount(),
			"failed":      c.Criteria.Failed(),
			"ratio":       c.Ratio,
			"rel_area":    c.RelativeArea,
			"rmse":        c.RMSE,
			"dx":          c.Dx,
			"dr":          c.Dr,
			"failures":    prior.Failures,
		})
	}
}

func (t *Tracker) Close() error {
	t.prior.Close()
	return t.pre.Close()
}
