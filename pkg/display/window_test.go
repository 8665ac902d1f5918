package display

import (
	"math"
	"testing"

	"dicomroi/internal/models"
)

// createTestGrid creates a one-row grid holding values
func createTestGrid(values ...float64) *models.IntensityGrid {
	g := models.NewIntensityGrid(1, len(values))
	copy(g.Data, values)
	return g
}

// TestMapToDisplay verifies clamping at both ends and mid-scale mapping
func TestMapToDisplay(t *testing.T) {
	grid := createTestGrid(-50, 0, 200, 400, 1000)
	buf := MapToDisplay(grid, models.WindowLevel{Width: 400, Center: 200})

	if buf.Rows != 1 || buf.Cols != 5 {
		t.Fatalf("unexpected dimensions %dx%d", buf.Cols, buf.Rows)
	}
	if buf.Pix[0] != 0 || buf.Pix[1] != 0 {
		t.Errorf("values at or below the window should map to 0, got %d and %d", buf.Pix[0], buf.Pix[1])
	}
	if mid := buf.Pix[2]; mid != 127 && mid != 128 {
		t.Errorf("center intensity should map to mid-scale, got %d", mid)
	}
	if buf.Pix[3] != 255 || buf.Pix[4] != 255 {
		t.Errorf("values at or above the window should map to 255, got %d and %d", buf.Pix[3], buf.Pix[4])
	}
}

// TestMapToDisplayDegenerateWidth verifies the width fallback never yields NaN artifacts
func TestMapToDisplayDegenerateWidth(t *testing.T) {
	grid := createTestGrid(99, 100, 100.25, 101)

	for _, width := range []float64{0, -10, math.NaN()} {
		buf := MapToDisplay(grid, models.WindowLevel{Width: width, Center: 100})
		expected := []uint8{0, 128, 191, 255}
		for i := range expected {
			if buf.Pix[i] != expected[i] {
				t.Errorf("width %v: pixel %d expected %d, got %d", width, i, expected[i], buf.Pix[i])
			}
		}
	}
}

func TestDefaultWindow(t *testing.T) {
	wl := DefaultWindow(createTestGrid(-100, 20, 300))
	if wl.Width != 400 || wl.Center != 100 {
		t.Errorf("expected {400 100}, got %+v", wl)
	}
}

func TestWindowFromMetadata(t *testing.T) {
	grid := createTestGrid(0, 10)

	meta := models.MapLookup{
		models.KeyWindowWidth:  "350\\1500",
		models.KeyWindowCenter: "40\\300",
	}
	wl := WindowFromMetadata(meta, grid)
	if wl.Width != 350 || wl.Center != 40 {
		t.Errorf("expected first window values {350 40}, got %+v", wl)
	}

	wl = WindowFromMetadata(models.MapLookup{models.KeyWindowWidth: "350"}, grid)
	if wl.Width != 10 || wl.Center != 5 {
		t.Errorf("expected fallback {10 5}, got %+v", wl)
	}
}

func TestDragAdjust(t *testing.T) {
	start := models.WindowLevel{Width: 400, Center: 200}

	wl := DragAdjust(start, 10, -5)
	if wl.Width != 420 || wl.Center != 210 {
		t.Errorf("expected {420 210}, got %+v", wl)
	}

	wl = DragAdjust(start, -500, 0)
	if wl.Width != 1 {
		t.Errorf("width should not drop below 1, got %v", wl.Width)
	}
}
