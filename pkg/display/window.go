// Package display maps calibrated intensities to 8-bit grayscale and computes
// the display geometry (zoom, rotation, click mapping) of an image.
// Nothing in this package affects analysis results.
package display

import (
	"image"
	"math"

	"dicomroi/internal/models"
)

// DisplayBuffer holds 8-bit grayscale display values, row-major
type DisplayBuffer struct {
	Rows int
	Cols int
	Pix  []uint8
}

// At returns the display value at column x, row y
func (b *DisplayBuffer) At(x, y int) uint8 {
	return b.Pix[y*b.Cols+x]
}

// ToImage wraps the buffer as an image.Gray without copying
func (b *DisplayBuffer) ToImage() *image.Gray {
	return &image.Gray{
		Pix:    b.Pix,
		Stride: b.Cols,
		Rect:   image.Rect(0, 0, b.Cols, b.Rows),
	}
}

// MapToDisplay applies wl to every sample of grid.
// A width below 1 is replaced by 1, so a degenerate window behaves as a
// threshold at the center rather than producing NaN.
func MapToDisplay(grid *models.IntensityGrid, wl models.WindowLevel) *DisplayBuffer {
	wl = wl.Clamped()
	lower, upper := wl.Bounds()
	scale := 255 / (upper - lower)

	out := &DisplayBuffer{
		Rows: grid.Rows,
		Cols: grid.Cols,
		Pix:  make([]uint8, len(grid.Data)),
	}
	for i, x := range grid.Data {
		out.Pix[i] = toByte((x - lower) * scale)
	}
	return out
}

// toByte clamps v to [0, 255] and rounds half away from zero
func toByte(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// DefaultWindow derives a window covering the full intensity range of grid
func DefaultWindow(grid *models.IntensityGrid) models.WindowLevel {
	min, max := grid.MinMax()
	return models.WindowLevel{
		Width:  max - min,
		Center: (max + min) / 2,
	}
}

// WindowFromMetadata returns the window stored in the image metadata, or the
// full-range default when either value is missing or unparsable
func WindowFromMetadata(meta models.MetadataLookup, grid *models.IntensityGrid) models.WindowLevel {
	if meta != nil {
		ws, okW := meta.Lookup(models.KeyWindowWidth)
		cs, okC := meta.Lookup(models.KeyWindowCenter)
		if okW && okC {
			w, okW := models.FirstFloat(ws)
			c, okC := models.FirstFloat(cs)
			if okW && okC {
				return models.WindowLevel{Width: w, Center: c}
			}
		}
	}
	return DefaultWindow(grid)
}

// DragAdjust applies a pointer drag of (dx, dy) pixels to a window.
// Horizontal motion changes the width, vertical motion the center.
func DragAdjust(start models.WindowLevel, dx, dy float64) models.WindowLevel {
	return models.WindowLevel{
		Width:  math.Max(models.MinWindowWidth, start.Width+dx*2),
		Center: start.Center - dy*2,
	}
}
