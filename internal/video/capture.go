// Package video reads recorded eye-camera videos frame by frame.
//
// Like geometry, it sits at an input boundary and returns github.com/pkg/errors
// values with stack traces. Packages above it wrap with fmt.Errorf and %w.
package video

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrSourceClosed is returned when reading from a closed source.
var ErrSourceClosed = errors.New("video source closed")

// Capture is a sequential frame source over a video file.
type Capture struct {
	vc     *gocv.VideoCapture
	path   string
	frames int
	size   image.Point
	index  int
}

// Open opens path for decoding.
func Open(path string) (*Capture, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "can't stat video file")
	}

	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open video %q", path)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("video %q could not be opened", path)
	}

	return &Capture{
		vc:     vc,
		path:   path,
		frames: int(vc.Get(gocv.VideoCaptureFrameCount)),
		size: image.Point{
			X: int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Y: int(vc.Get(gocv.VideoCaptureFrameHeight)),
		},
	}, nil
}

// Read decodes the next frame into dst. The index advances even when
// decoding fails.
func (c *Capture) Read(dst *gocv.Mat) bool {
	if c.vc == nil {
		return false
	}
	c.index++
	return c.vc.Read(dst) && !dst.Empty()
}

// FrameCount is the number of frames the container declares.
func (c *Capture) FrameCount() int {
	return c.frames
}

// Index is the 1-based number of the last frame read.
func (c *Capture) Index() int {
	return c.index
}

// FrameSize is the declared frame width and height.
func (c *Capture) FrameSize() image.Point {
	return c.size
}

func (c *Capture) Path() string {
	return c.path
}

func (c *Capture) Close() error {
	if c.vc == nil {
		return ErrSourceClosed
	}
	err := c.vc.Close()
	c.vc = nil
	return err
}
