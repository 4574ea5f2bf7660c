package threshold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"pupil-tracker/internal/opencv/conversion"
)

// threeLevels is a 30×20 buffer with 300 pixels at 30, 200 at 100 and 100 at 200.
func threeLevels() []byte {
	data := make([]byte, 0, 600)
	for _, run := range []struct {
		value byte
		count int
	}{{30, 300}, {100, 200}, {200, 100}} {
		for i := 0; i < run.count; i++ {
			data = append(data, run.value)
		}
	}
	return data
}

func TestApplySplitsThreeLevels(t *testing.T) {
	src := gocv.NewMat()
	defer src.Close()
	require.NoError(t, conversion.BytesToMat(threeLevels(), 20, 30, &src))

	dst := gocv.NewMat()
	defer dst.Close()
	level, err := NewOtsuBinarizer().Apply(src, &dst)
	require.NoError(t, err)

	// Classes split as {30, 100} and {200}.
	assert.Equal(t, 100, level)
	assert.Equal(t, 100, gocv.CountNonZero(dst))
	assert.Equal(t, uint8(0), dst.GetUCharAt(0, 0))
	assert.Equal(t, uint8(255), dst.GetUCharAt(19, 29))
}

func TestApplyBlackCropStaysBlack(t *testing.T) {
	src := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer src.Close()
	src.SetTo(gocv.NewScalar(0, 0, 0, 0))
	dst := gocv.NewMat()
	defer dst.Close()

	_, err := NewOtsuBinarizer().Apply(src, &dst)
	require.NoError(t, err)
	assert.Zero(t, gocv.CountNonZero(dst))
}

func TestApplyRejectsColorInput(t *testing.T) {
	src := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	_, err := NewOtsuBinarizer().Apply(src, &dst)
	assert.Error(t, err)
}
