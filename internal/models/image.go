package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedGeometry is returned when an image has zero rows or columns.
// No statistics can exist for such an image.
var ErrMalformedGeometry = errors.New("malformed geometry: rows and columns must be positive")

// ImageDescriptor describes the layout and calibration of a raw sample buffer
type ImageDescriptor struct {
	// Rows is the number of sample rows (image height)
	Rows uint32

	// Cols is the number of sample columns (image width)
	Cols uint32

	// BitsAllocated is the storage width of one sample, 8 or 16
	BitsAllocated int

	// Signed selects two's complement interpretation for 16-bit samples
	Signed bool

	// RescaleSlope and RescaleIntercept map stored values to physical units
	RescaleSlope     float64
	RescaleIntercept float64

	// BigEndian is set for explicit big endian transfer syntaxes.
	// The default is little endian.
	BigEndian bool
}

// NewDescriptor creates a descriptor with the default calibration
// (slope 1, intercept 0)
func NewDescriptor(rows, cols uint32, bitsAllocated int, signed bool) ImageDescriptor {
	return ImageDescriptor{
		Rows:          rows,
		Cols:          cols,
		BitsAllocated: bitsAllocated,
		Signed:        signed,
		RescaleSlope:  1,
	}
}

// SampleCount returns rows*cols
func (d ImageDescriptor) SampleCount() int {
	return int(d.Rows) * int(d.Cols)
}

// BytesPerSample returns the storage size of one sample
func (d ImageDescriptor) BytesPerSample() int {
	return d.BitsAllocated / 8
}

// Validate checks the geometry of the descriptor
func (d ImageDescriptor) Validate() error {
	if d.Rows == 0 || d.Cols == 0 {
		return fmt.Errorf("%w (rows=%d, cols=%d)", ErrMalformedGeometry, d.Rows, d.Cols)
	}
	return nil
}

// IntensityGrid holds calibrated intensities in row-major order.
// A grid is created once per loaded image and never modified afterwards.
type IntensityGrid struct {
	// Rows and Cols are the grid dimensions
	Rows int
	Cols int

	// Data holds Rows*Cols calibrated values, row-major
	Data []float64
}

// NewIntensityGrid allocates a zeroed grid
func NewIntensityGrid(rows, cols int) *IntensityGrid {
	return &IntensityGrid{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// At returns the value at column x, row y
func (g *IntensityGrid) At(x, y int) float64 {
	return g.Data[y*g.Cols+x]
}

// InBounds reports whether (x, y) addresses a cell of the grid
func (g *IntensityGrid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Cols && y < g.Rows
}

// Validate checks that the grid has a usable geometry
func (g *IntensityGrid) Validate() error {
	if g == nil || g.Rows <= 0 || g.Cols <= 0 || len(g.Data) != g.Rows*g.Cols {
		return ErrMalformedGeometry
	}
	return nil
}

// MinMax returns the smallest and largest value in one scan.
// An empty grid returns (0, 0).
func (g *IntensityGrid) MinMax() (min, max float64) {
	if len(g.Data) == 0 {
		return 0, 0
	}
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
