package tracker

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"pupil-tracker/internal/config"
	"pupil-tracker/internal/debug/timing"
	"pupil-tracker/internal/detection"
	"pupil-tracker/internal/geometry"
	"pupil-tracker/internal/trace"
)

const (
	frameRows = 120
	frameCols = 160
)

// testROI is an 80×80 crop centered in a 160×120 frame.
var testROI = geometry.RegionOfInterest{Rows: [2]int{20, 100}, Cols: [2]int{40, 120}}

func blackFrame(t *testing.T) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), frameRows, frameCols, gocv.MatTypeCV8UC3)
}

// pupilFrame draws a bright disc of radius r at (x, y) in frame coordinates.
func pupilFrame(t *testing.T, x, y, r int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(20, 20, 20, 0), frameRows, frameCols, gocv.MatTypeCV8UC3)
	gocv.Circle(&m, image.Pt(x, y), r, color.RGBA{R: 220, G: 220, B: 220}, -1)
	return m
}

// cornerFrame has a small bright square in the top-left corner of the crop.
// Its boundary compresses to four points, too short to fit, and it lies
// outside the neighbourhood of a pupil centered in the crop.
func cornerFrame(t *testing.T) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(20, 20, 20, 0), frameRows, frameCols, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&m, image.Rect(42, 22, 56, 36), color.RGBA{R: 220, G: 220, B: 220}, -1)
	return m
}

type fakeSource struct {
	frames []gocv.Mat
	fail   map[int]bool
	index  int
	onRead func(index int)
}

func (s *fakeSource) Read(dst *gocv.Mat) bool {
	s.index++
	if s.onRead != nil {
		defer s.onRead(s.index)
	}
	if s.index > len(s.frames) || s.fail[s.index] {
		return false
	}
	s.frames[s.index-1].CopyTo(dst)
	return true
}

func (s *fakeSource) FrameCount() int { return len(s.frames) }

func (s *fakeSource) Index() int { return s.index }

func closeAll(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}

func newTracker(t *testing.T, params config.Parameters, opts Options) *Tracker {
	t.Helper()
	tr, err := New(params, testROI, opts)
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	p := config.DefaultParameters()
	p.MinContourLen = 2

	_, err := New(p, testROI, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidParameters))
}

func TestNewRejectsEmptyRegion(t *testing.T) {
	_, err := New(config.DefaultParameters(), geometry.RegionOfInterest{Rows: [2]int{10, 10}, Cols: [2]int{0, 5}}, Options{})
	assert.Error(t, err)
}

func TestNewRejectsMismatchedMask(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	mask, err := detection.StaticMaskFromGray(img, geometry.RegionOfInterest{Rows: [2]int{0, 10}, Cols: [2]int{0, 10}})
	require.NoError(t, err)
	defer mask.Close()

	_, err = New(config.DefaultParameters(), testROI, Options{Mask: mask})
	assert.Error(t, err)
}

func TestNewGeneratesRunID(t *testing.T) {
	a := newTracker(t, config.DefaultParameters(), Options{})
	b := newTracker(t, config.DefaultParameters(), Options{})
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())

	c := newTracker(t, config.DefaultParameters(), Options{RunID: "fixed"})
	assert.Equal(t, "fixed", c.RunID())
}

func TestStepLowContrastLeavesStateUntouched(t *testing.T) {
	p := config.DefaultParameters()
	p.ContrastThreshold = 5
	tr := newTracker(t, p, Options{})

	frame := blackFrame(t)
	defer frame.Close()

	before := tr.Prior()
	rec, err := tr.Step(context.Background(), 1, frame)
	require.NoError(t, err)

	assert.Equal(t, trace.KindLowContrast, rec.Kind)
	v, ok := rec.Intensity()
	require.True(t, ok)
	assert.Zero(t, v)
	assert.Nil(t, rec.Detection)
	assert.Equal(t, before, tr.Prior())
}

func TestStepLowContrastKeepsPriorAfterMiss(t *testing.T) {
	p := config.DefaultParameters()
	p.ContrastThreshold = 5
	tr := newTracker(t, p, Options{})
	ctx := context.Background()

	pupil := pupilFrame(t, 80, 60, 15)
	defer pupil.Close()
	miss := cornerFrame(t)
	defer miss.Close()
	dark := blackFrame(t)
	defer dark.Close()

	rec, err := tr.Step(ctx, 1, pupil)
	require.NoError(t, err)
	require.Equal(t, trace.KindDetected, rec.Kind)
	rec, err = tr.Step(ctx, 2, miss)
	require.NoError(t, err)
	require.Equal(t, trace.KindNoDetection, rec.Kind)

	before := tr.Prior()
	require.NotNil(t, before.Ellipse)
	require.True(t, before.HasCenter())
	require.True(t, before.HasRadius())
	require.Equal(t, 2, before.Failures)

	rec, err = tr.Step(ctx, 3, dark)
	require.NoError(t, err)
	assert.Equal(t, trace.KindLowContrast, rec.Kind)
	assert.Equal(t, before, tr.Prior())

	rec, err = tr.Step(ctx, 4, pupil)
	require.NoError(t, err)
	assert.Equal(t, trace.KindDetected, rec.Kind)
	assert.Equal(t, 1, tr.Prior().Failures)
}

type logEntry struct {
	message string
	fields  map[string]interface{}
}

type recordingLogger struct {
	entries []logEntry
}

func (l *recordingLogger) Debug(string, string, map[string]interface{}) {}

func (l *recordingLogger) Info(_, msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, logEntry{message: msg, fields: fields})
}

func (l *recordingLogger) Warning(string, string, map[string]interface{}) {}

func (l *recordingLogger) Error(string, error, map[string]interface{}) {}

func TestRunLogsDecisionCounts(t *testing.T) {
	frames := []gocv.Mat{pupilFrame(t, 80, 60, 15), cornerFrame(t), pupilFrame(t, 80, 60, 15)}
	defer closeAll(frames)

	log := &recordingLogger{}
	tr := newTracker(t, config.DefaultParameters(), Options{Logger: log})
	_, err := tr.Run(context.Background(), &fakeSource{frames: frames})
	require.NoError(t, err)

	require.NotEmpty(t, log.entries)
	last := log.entries[len(log.entries)-1]
	assert.Equal(t, "tracking finished", last.message)
	assert.Equal(t, 2, last.fields["accepted"])
	assert.Equal(t, 1, last.fields["rejected"])
	assert.Equal(t, tr.RunID(), last.fields["run_id"])
}

func TestStepDetectsCenteredPupil(t *testing.T) {
	p := config.DefaultParameters()
	tr := newTracker(t, p, Options{})

	frame := pupilFrame(t, 80, 60, 15)
	defer frame.Close()

	rec, err := tr.Step(context.Background(), 1, frame)
	require.NoError(t, err)
	require.Equal(t, trace.KindDetected, rec.Kind)
	require.NotNil(t, rec.Detection)

	d := rec.Detection
	assert.InDelta(t, 80, d.Center.X, 1.5)
	assert.InDelta(t, 60, d.Center.Y, 1.5)
	assert.InDelta(t, 30, d.MajorRadius, 3)
	assert.InDelta(t, 40, d.RotatedRect[0], 1.5)
	assert.InDelta(t, 40, d.RotatedRect[1], 1.5)
	assert.NotEmpty(t, d.Contour)

	crop := testROI.Size()
	e := d.Ellipse()
	nc := e.NormalizedCenter(crop)
	assert.Greater(t, nc.X, p.Margin)
	assert.Less(t, nc.X, 1-p.Margin)
	assert.Greater(t, nc.Y, p.Margin)
	assert.Less(t, nc.Y, 1-p.Margin)

	prior := tr.Prior()
	assert.Equal(t, 1, prior.Failures)
	require.NotNil(t, prior.Ellipse)
	assert.Equal(t, e, *prior.Ellipse)
	assert.Equal(t, e.Major, prior.Radius)
}

func TestStepFailureKeepsPriorAndRelaxes(t *testing.T) {
	tr := newTracker(t, config.DefaultParameters(), Options{})
	ctx := context.Background()

	pupil := pupilFrame(t, 80, 60, 15)
	defer pupil.Close()
	miss := cornerFrame(t)
	defer miss.Close()

	rec, err := tr.Step(ctx, 1, pupil)
	require.NoError(t, err)
	require.Equal(t, trace.KindDetected, rec.Kind)
	accepted := tr.Prior().Ellipse

	for i := 2; i <= 4; i++ {
		rec, err := tr.Step(ctx, i, miss)
		require.NoError(t, err)
		assert.Equal(t, trace.KindNoDetection, rec.Kind)
		assert.Equal(t, i, tr.Prior().Failures)
		assert.Equal(t, accepted, tr.Prior().Ellipse)
	}

	rec, err = tr.Step(ctx, 5, pupil)
	require.NoError(t, err)
	assert.Equal(t, trace.KindDetected, rec.Kind)
	assert.Equal(t, 1, tr.Prior().Failures)
}

func TestRunEmitsOneRecordPerFrame(t *testing.T) {
	frames := []gocv.Mat{blackFrame(t), pupilFrame(t, 80, 60, 15), cornerFrame(t), pupilFrame(t, 80, 60, 15)}
	defer closeAll(frames)

	tt := timing.NewTracker()
	tr := newTracker(t, config.DefaultParameters(), Options{Timing: tt})

	src := &fakeSource{frames: frames, fail: map[int]bool{3: true}}
	records, err := tr.Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, records, 4)

	kinds := make([]trace.Kind, len(records))
	for i, r := range records {
		assert.Equal(t, i+1, r.FrameID)
		kinds[i] = r.Kind
	}
	assert.Equal(t, []trace.Kind{
		trace.KindLowContrast,
		trace.KindDetected,
		trace.KindDropped,
		trace.KindDetected,
	}, kinds)

	assert.Len(t, tt.GetTimings(timing.StageRead), 4)
	assert.Len(t, tt.GetTimings(timing.StageFrame), 3)
}

func TestRunIsDeterministic(t *testing.T) {
	frames := []gocv.Mat{
		pupilFrame(t, 80, 60, 15),
		pupilFrame(t, 82, 61, 15),
		cornerFrame(t),
		pupilFrame(t, 84, 62, 16),
	}
	defer closeAll(frames)

	run := func() []trace.Record {
		tr := newTracker(t, config.DefaultParameters(), Options{})
		records, err := tr.Run(context.Background(), &fakeSource{frames: frames})
		require.NoError(t, err)
		return records
	}

	first := run()
	second := run()
	require.Len(t, first, 4)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRunStopsAtFrameBoundaryOnCancel(t *testing.T) {
	frames := []gocv.Mat{
		pupilFrame(t, 80, 60, 15),
		pupilFrame(t, 80, 60, 15),
		pupilFrame(t, 80, 60, 15),
		pupilFrame(t, 80, 60, 15),
	}
	defer closeAll(frames)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{frames: frames, onRead: func(index int) {
		if index == 2 {
			cancel()
		}
	}}

	tr := newTracker(t, config.DefaultParameters(), Options{})
	records, err := tr.Run(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].FrameID)
	assert.Equal(t, 2, records[1].FrameID)
	assert.Equal(t, trace.KindDetected, records[1].Kind)
}

// unboundedSource declares no frame count.
type unboundedSource struct {
	fakeSource
}

func (s *unboundedSource) FrameCount() int { return 0 }

func TestRunWithUnknownLengthStopsAtFirstFailedRead(t *testing.T) {
	frames := []gocv.Mat{pupilFrame(t, 80, 60, 15), cornerFrame(t)}
	defer closeAll(frames)

	tr := newTracker(t, config.DefaultParameters(), Options{})
	records, err := tr.Run(context.Background(), &unboundedSource{fakeSource{frames: frames}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, trace.KindDetected, records[0].Kind)
	assert.Equal(t, trace.KindNoDetection, records[1].Kind)
}

func TestStepRejectsFrameSmallerThanRegion(t *testing.T) {
	tr := newTracker(t, config.DefaultParameters(), Options{})
	small := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 50, 50, gocv.MatTypeCV8UC3)
	defer small.Close()

	_, err := tr.Step(context.Background(), 1, small)
	assert.Error(t, err)
}

func TestStaticMaskExcludesPupil(t *testing.T) {
	size := testROI.Size()
	img := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	// Blank out the left half of the crop, where the pupil sits.
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X/2; x++ {
			img.SetGray(x, y, color.Gray{})
		}
	}
	mask, err := detection.StaticMaskFromGray(img, testROI)
	require.NoError(t, err)
	defer mask.Close()

	frame := pupilFrame(t, 60, 60, 12)
	defer frame.Close()

	masked := newTracker(t, config.DefaultParameters(), Options{Mask: mask})
	rec, err := masked.Step(context.Background(), 1, frame)
	require.NoError(t, err)
	assert.Equal(t, trace.KindNoDetection, rec.Kind)

	open := newTracker(t, config.DefaultParameters(), Options{})
	rec, err = open.Step(context.Background(), 1, frame)
	require.NoError(t, err)
	assert.Equal(t, trace.KindDetected, rec.Kind)
}
