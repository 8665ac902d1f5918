package roistats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"dicomroi/internal/models"
)

// createTestGrid creates a grid filled from pattern
func createTestGrid(rows, cols int, pattern func(x, y int) float64) *models.IntensityGrid {
	g := models.NewIntensityGrid(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			g.Data[y*cols+x] = pattern(x, y)
		}
	}
	return g
}

// bruteForce scans the whole grid with the floating point distance test
func bruteForce(g *models.IntensityGrid, roi models.ROI) []float64 {
	var values []float64
	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			dx := float64(x - int(roi.CenterX))
			dy := float64(y - int(roi.CenterY))
			if math.Sqrt(dx*dx+dy*dy) <= float64(roi.Radius) {
				values = append(values, g.At(x, y))
			}
		}
	}
	return values
}

func TestComputeROIMatchesBruteForce(t *testing.T) {
	g := createTestGrid(40, 57, func(x, y int) float64 {
		return float64((x*31+y*17)%251) - 60
	})

	rois := []models.ROI{
		{CenterX: 20, CenterY: 20, Radius: 10},
		{CenterX: 28, CenterY: 19, Radius: 0},
		{CenterX: 0, CenterY: 0, Radius: 7},
		{CenterX: 56, CenterY: 39, Radius: 12},
		{CenterX: -5, CenterY: 10, Radius: 8},
		{CenterX: 30, CenterY: 45, Radius: 9},
		{CenterX: 28, CenterY: 20, Radius: 100},
	}

	for _, roi := range rois {
		values := bruteForce(g, roi)
		got := ComputeROI(g, roi)

		require.Equal(t, uint32(len(values)), got.SampleCount, "roi %v", roi)
		if len(values) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(values, nil)
		assert.InDelta(t, mean, got.Mean, 1e-9, "mean for roi %v", roi)
		assert.InDelta(t, math.Sqrt(variance), got.SD, 1e-6, "sd for roi %v", roi)
	}
}

func TestComputeROIConstantGrid(t *testing.T) {
	g := createTestGrid(32, 32, func(x, y int) float64 { return 1234.5 })

	for _, roi := range []models.ROI{
		{CenterX: 16, CenterY: 16, Radius: 5},
		{CenterX: 1, CenterY: 1, Radius: 3},
		{CenterX: 31, CenterY: 0, Radius: 20},
	} {
		got := ComputeROI(g, roi)
		assert.Greater(t, got.SampleCount, uint32(0))
		assert.Equal(t, 1234.5, got.Mean)
		assert.Equal(t, 0.0, got.SD)
	}
}

func TestComputeROIOutsideBounds(t *testing.T) {
	g := createTestGrid(16, 16, func(x, y int) float64 { return float64(x + y) })

	for _, roi := range []models.ROI{
		{CenterX: -50, CenterY: 8, Radius: 10},
		{CenterX: 8, CenterY: 100, Radius: 20},
		{CenterX: 40, CenterY: 40, Radius: 5},
	} {
		assert.Equal(t, models.ROIStat{}, ComputeROI(g, roi), "roi %v", roi)
	}
}

func TestComputeROINegativeRadiusClamped(t *testing.T) {
	g := createTestGrid(8, 8, func(x, y int) float64 { return float64(y*8 + x) })

	got := ComputeROI(g, models.ROI{CenterX: 3, CenterY: 2, Radius: -4})
	assert.Equal(t, uint32(1), got.SampleCount)
	assert.Equal(t, 19.0, got.Mean)
}

func TestComputeROILatticeCount(t *testing.T) {
	// lattice points within a disc of radius 2 centered on a lattice point: 13
	g := createTestGrid(10, 10, func(x, y int) float64 { return 0 })
	got := ComputeROI(g, models.ROI{CenterX: 5, CenterY: 5, Radius: 2})
	assert.Equal(t, uint32(13), got.SampleCount)

	// radius 1 in the corner keeps 3 of the 5 lattice points
	got = ComputeROI(g, models.ROI{CenterX: 0, CenterY: 0, Radius: 1})
	assert.Equal(t, uint32(3), got.SampleCount)
}

func TestComputeWhole(t *testing.T) {
	g := createTestGrid(3, 2, func(x, y int) float64 { return float64(y*2 + x) })

	got, err := ComputeWhole(g)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), got.SampleCount)
	assert.InDelta(t, 2.5, got.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(35.0/12.0), got.SD, 1e-12)

	_, err = ComputeWhole(&models.IntensityGrid{})
	assert.ErrorIs(t, err, models.ErrMalformedGeometry)
}

func TestMaskMatchesComputeROI(t *testing.T) {
	roi := models.ROI{CenterX: 2, CenterY: 9, Radius: 4}
	points := Mask(12, 12, roi)
	g := createTestGrid(12, 12, func(x, y int) float64 { return 1 })
	assert.Equal(t, ComputeROI(g, roi).SampleCount, uint32(len(points)))
	for _, p := range points {
		assert.True(t, g.InBounds(p.X, p.Y))
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	var acc Accumulator
	assert.Equal(t, models.ROIStat{}, acc.Result())
}
