package conversion

import (
	"fmt"
	"image"
	"runtime"

	"pupil-tracker/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// CropGray copies the rect region of src into dst as a continuous Mat.
func CropGray(src gocv.Mat, rect image.Rectangle, dst *gocv.Mat) error {
	if err := safe.ValidateRegion(rect, src.Cols(), src.Rows(), "crop"); err != nil {
		return err
	}

	region := src.Region(rect)
	defer region.Close()
	region.CopyTo(dst)
	return nil
}

// BytesToMat copies a row-major 8-bit buffer into dst.
func BytesToMat(data []byte, rows, cols int, dst *gocv.Mat) error {
	if len(data) != rows*cols {
		return fmt.Errorf("buffer holds %d bytes, want %dx%d", len(data), cols, rows)
	}

	tmp, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC1, data)
	if err != nil {
		return fmt.Errorf("mat creation failed: %w", err)
	}
	tmp.CopyTo(dst)
	tmp.Close()
	runtime.KeepAlive(data)
	return nil
}

// GrayToMat converts a grayscale image to a single-channel Mat.
func GrayToMat(img *image.Gray) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("input image is nil")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if err := safe.ValidateDimensions(width, height, "gray to Mat"); err != nil {
		return gocv.NewMat(), err
	}

	data := make([]byte, 0, width*height)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := img.PixOffset(bounds.Min.X, y)
		data = append(data, img.Pix[off:off+width]...)
	}

	mat := gocv.NewMat()
	if err := BytesToMat(data, height, width, &mat); err != nil {
		mat.Close()
		return gocv.NewMat(), err
	}
	return mat, nil
}
