// Package roistats computes intensity statistics over circular regions and
// whole intensity grids.
//
// Mean and standard deviation come from a single pass over the samples using
// a running sum and sum of squares:
//
//	sd = sqrt(sumSq/n - mean*mean)
//
// This is the population standard deviation. The formula loses precision for
// data with a large offset and a small spread (catastrophic cancellation);
// results are kept for compatibility with previously exported tables.
package roistats

import (
	"image"
	"math"

	"dicomroi/internal/models"
)

// Accumulator collects the running sums for a mean/SD computation
type Accumulator struct {
	sum   float64
	sumSq float64
	n     uint32
}

// Add includes one sample
func (a *Accumulator) Add(v float64) {
	a.sum += v
	a.sumSq += v * v
	a.n++
}

// Count returns the number of samples seen
func (a *Accumulator) Count() uint32 { return a.n }

// Result returns the statistics. An empty accumulator yields the zero ROIStat.
func (a *Accumulator) Result() models.ROIStat {
	if a.n == 0 {
		return models.ROIStat{}
	}
	n := float64(a.n)
	mean := a.sum / n
	variance := a.sumSq/n - mean*mean
	// rounding can leave a tiny negative residue on constant data
	if variance < 0 {
		variance = 0
	}
	return models.ROIStat{
		Mean:        mean,
		SD:          math.Sqrt(variance),
		SampleCount: a.n,
	}
}

// Bounds returns the inclusive bounding box of roi clipped to the grid.
// ok is false when the box does not intersect the grid.
func Bounds(rows, cols int, roi models.ROI) (box image.Rectangle, ok bool) {
	roi = roi.Clamped()
	cx, cy, r := int(roi.CenterX), int(roi.CenterY), int(roi.Radius)

	x0 := max(0, cx-r)
	x1 := min(cols-1, cx+r)
	y0 := max(0, cy-r)
	y1 := min(rows-1, cy+r)
	if x0 > x1 || y0 > y1 {
		return image.Rectangle{}, false
	}
	// Max is inclusive here
	return image.Rect(x0, y0, x1, y1), true
}

// inside reports whether (x, y) lies on or within the circle.
// For integer coordinates dx²+dy² <= r² is equivalent to sqrt(dx²+dy²) <= r.
func inside(x, y, cx, cy, r int) bool {
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

// ComputeROI returns the statistics of all in-bounds cells within roi.
// Only the bounding box of the circle is scanned.
func ComputeROI(grid *models.IntensityGrid, roi models.ROI) models.ROIStat {
	if grid.Validate() != nil {
		return models.ROIStat{}
	}
	box, ok := Bounds(grid.Rows, grid.Cols, roi)
	if !ok {
		return models.ROIStat{}
	}

	roi = roi.Clamped()
	cx, cy, r := int(roi.CenterX), int(roi.CenterY), int(roi.Radius)

	var acc Accumulator
	for y := box.Min.Y; y <= box.Max.Y; y++ {
		row := grid.Data[y*grid.Cols:]
		for x := box.Min.X; x <= box.Max.X; x++ {
			if inside(x, y, cx, cy, r) {
				acc.Add(row[x])
			}
		}
	}
	return acc.Result()
}

// ComputeWhole returns the statistics of every cell in the grid.
// It fails only for a malformed grid.
func ComputeWhole(grid *models.IntensityGrid) (models.ROIStat, error) {
	if err := grid.Validate(); err != nil {
		return models.ROIStat{}, err
	}
	var acc Accumulator
	for _, v := range grid.Data {
		acc.Add(v)
	}
	return acc.Result(), nil
}

// Mask returns the coordinates included by roi in a rows x cols grid,
// in row-major order.
func Mask(rows, cols int, roi models.ROI) []image.Point {
	box, ok := Bounds(rows, cols, roi)
	if !ok {
		return nil
	}
	roi = roi.Clamped()
	cx, cy, r := int(roi.CenterX), int(roi.CenterY), int(roi.Radius)

	var points []image.Point
	for y := box.Min.Y; y <= box.Max.Y; y++ {
		for x := box.Min.X; x <= box.Max.X; x++ {
			if inside(x, y, cx, cy, r) {
				points = append(points, image.Pt(x, y))
			}
		}
	}
	return points
}
