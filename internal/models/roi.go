package models

import "fmt"

// ROI is a circular region of interest in grid coordinates.
// The center may lie outside the image; that yields an empty result, not an error.
type ROI struct {
	CenterX int32 `yaml:"x" json:"x"`
	CenterY int32 `yaml:"y" json:"y"`
	Radius  int32 `yaml:"r" json:"r"`
}

// Clamped returns the ROI with a negative radius replaced by 0
func (r ROI) Clamped() ROI {
	if r.Radius < 0 {
		r.Radius = 0
	}
	return r
}

func (r ROI) String() string {
	return fmt.Sprintf("(%d, %d) R=%d", r.CenterX, r.CenterY, r.Radius)
}

// ROIStat is the result of a region or whole-image computation.
// SD is the population standard deviation (divide by N).
type ROIStat struct {
	Mean        float64
	SD          float64
	SampleCount uint32
}

// WindowLevel holds linear contrast mapping parameters
type WindowLevel struct {
	Width  float64 `yaml:"width" json:"width"`
	Center float64 `yaml:"center" json:"center"`
}

// MinWindowWidth is the smallest width the mapper accepts
const MinWindowWidth = 1.0

// Clamped returns the window with a width below MinWindowWidth replaced by it.
// NaN widths are treated as degenerate too.
func (w WindowLevel) Clamped() WindowLevel {
	if !(w.Width >= MinWindowWidth) {
		w.Width = MinWindowWidth
	}
	return w
}

// Bounds returns the lower and upper intensities of the window
func (w WindowLevel) Bounds() (lower, upper float64) {
	return w.Center - w.Width/2, w.Center + w.Width/2
}
