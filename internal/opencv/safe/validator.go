// Package safe holds precondition checks run before handing a Mat to OpenCV,
// where a bad argument aborts the process instead of returning an error.
package safe

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func ValidateMatForOperation(mat *gocv.Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidateGray requires a single-channel 8-bit Mat.
func ValidateGray(mat *gocv.Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}
	if mat.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%s requires an 8-bit single-channel Mat, got type %d", operation, int(mat.Type()))
	}
	return nil
}

// ValidateSameSize requires both Mats to share rows and cols.
func ValidateSameSize(a, b *gocv.Mat, operation string) error {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return fmt.Errorf("size mismatch for operation %s: %dx%d vs %dx%d",
			operation, a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > 32768 || height > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}

// ValidateRegion requires rect to be non-empty and inside a cols×rows image.
func ValidateRegion(rect image.Rectangle, cols, rows int, operation string) error {
	if rect.Empty() {
		return fmt.Errorf("empty region %v for operation: %s", rect, operation)
	}
	if !rect.In(image.Rect(0, 0, cols, rows)) {
		return fmt.Errorf("region %v exceeds %dx%d for operation: %s", rect, cols, rows, operation)
	}
	return nil
}
