package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func grayMat(t *testing.T, rows, cols int, value float64) gocv.Mat {
	t.Helper()
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
}

func TestGammaTable(t *testing.T) {
	identity := GammaTable(1)
	for i, v := range identity {
		assert.InDelta(t, float64(i), v, 1e-9)
	}

	table := GammaTable(2)
	assert.Equal(t, 0.0, table[0])
	assert.InDelta(t, 255, table[255], 1e-9)
	assert.InDelta(t, math.Sqrt(64.0/255)*255, table[64], 1e-9)
	assert.Equal(t, byte(127), table.Bytes()[64])
}

func TestGammaFilterApply(t *testing.T) {
	_, err := NewGammaFilter(0)
	assert.Error(t, err)

	g, err := NewGammaFilter(2)
	require.NoError(t, err)
	defer g.Close()

	src := grayMat(t, 4, 5, 64)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	require.NoError(t, g.Apply(src, &dst))
	assert.Equal(t, uint8(127), dst.GetUCharAt(2, 3))
	assert.Equal(t, uint8(64), src.GetUCharAt(2, 3))

	color := gocv.NewMatWithSize(4, 5, gocv.MatTypeCV8UC3)
	defer color.Close()
	assert.Error(t, g.Apply(color, &dst))
}

func TestRunningAverageUpdate(t *testing.T) {
	_, err := NewRunningAverage(0, 1)
	assert.Error(t, err)
	_, err = NewRunningAverage(0.5, 0)
	assert.Error(t, err)

	r, err := NewRunningAverage(0.5, 1)
	require.NoError(t, err)

	// The first crop initializes the buffer.
	out, err := r.Update([]byte{0, 255}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255}, out)

	out, err = r.Update([]byte{255, 0}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{127, 127}, out)

	out, err = r.Update([]byte{255, 0}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{191, 63}, out)

	_, err = r.Update([]byte{1, 2, 3}, 1, 3)
	assert.Error(t, err)
	_, err = r.Update([]byte{1}, 1, 2)
	assert.Error(t, err)

	r.Reset()
	out, err = r.Update([]byte{0, 255, 0}, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0}, out)
}

func TestRunningAverageAppliesExponent(t *testing.T) {
	r, err := NewRunningAverage(1, 2)
	require.NoError(t, err)

	src := grayMat(t, 3, 3, 255)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()
	require.NoError(t, r.Apply(src, &dst))
	assert.Equal(t, uint8(255), dst.GetUCharAt(1, 1))

	half := grayMat(t, 3, 3, 128)
	defer half.Close()
	require.NoError(t, r.Apply(half, &dst))
	// Decay 1 keeps only the latest crop: 255·(128/255)² truncated.
	assert.Equal(t, uint8(64), dst.GetUCharAt(0, 0))
}

func TestGaussianFilter(t *testing.T) {
	_, err := NewGaussianFilter(0)
	assert.Error(t, err)

	g, err := NewGaussianFilter(2)
	require.NoError(t, err)
	assert.Equal(t, 5, g.KernelSize())

	src := grayMat(t, 9, 9, 0)
	defer src.Close()
	src.SetUCharAt(4, 4, 255)
	dst := gocv.NewMat()
	defer dst.Close()

	require.NoError(t, g.Apply(src, &dst))
	center := dst.GetUCharAt(4, 4)
	assert.Less(t, center, uint8(255))
	assert.Greater(t, center, dst.GetUCharAt(4, 5))
	assert.Greater(t, dst.GetUCharAt(4, 6), uint8(0))
	assert.Equal(t, uint8(0), dst.GetUCharAt(4, 7))
}

func TestMorphology(t *testing.T) {
	m := NewMorphologyFilter()
	defer m.Close()

	src := grayMat(t, 11, 11, 0)
	defer src.Close()
	src.SetUCharAt(5, 5, 255)
	dst := gocv.NewMat()
	defer dst.Close()

	require.NoError(t, m.Dilate(src, &dst, 2))
	assert.Equal(t, 25, gocv.CountNonZero(dst))

	eroded := gocv.NewMat()
	defer eroded.Close()
	require.NoError(t, m.Erode(dst, &eroded, 1))
	assert.Equal(t, 9, gocv.CountNonZero(eroded))

	require.NoError(t, m.Dilate(src, &dst, 0))
	assert.Equal(t, 1, gocv.CountNonZero(dst))

	assert.Error(t, m.Erode(src, &dst, -1))
}

func TestGrayscaleConverter(t *testing.T) {
	g := NewGrayscaleConverter()
	dst := gocv.NewMat()
	defer dst.Close()

	bgr := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 4, 6, gocv.MatTypeCV8UC3)
	defer bgr.Close()
	require.NoError(t, g.Apply(bgr, &dst))
	assert.Equal(t, 1, dst.Channels())
	assert.Equal(t, uint8(90), dst.GetUCharAt(3, 5))

	bgra := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 255), 4, 6, gocv.MatTypeCV8UC4)
	defer bgra.Close()
	require.NoError(t, g.Apply(bgra, &dst))
	assert.Equal(t, uint8(40), dst.GetUCharAt(0, 0))

	gray := grayMat(t, 4, 6, 17)
	defer gray.Close()
	require.NoError(t, g.Apply(gray, &dst))
	assert.Equal(t, uint8(17), dst.GetUCharAt(1, 1))

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, g.Apply(empty, &dst))
}
