package display

import (
	"math"

	"dicomroi/internal/models"
)

// Zoom limits in percent
const (
	MinZoom     = 25
	MaxZoom     = 400
	DefaultZoom = 100
	ZoomStep    = 25
)

// Layout is the display geometry of one image
type Layout struct {
	// ZoomFactor is the zoom percentage divided by 100
	ZoomFactor float64

	// Rotation is the normalized rotation in degrees, [0, 360)
	Rotation int

	// DisplayWidth and DisplayHeight are the scaled, unrotated image size
	DisplayWidth  int
	DisplayHeight int

	// CanvasWidth and CanvasHeight are swapped for quarter turns
	CanvasWidth  int
	CanvasHeight int
}

// ClampZoom limits a zoom percentage to [MinZoom, MaxZoom]
func ClampZoom(percent int) int {
	return max(MinZoom, min(MaxZoom, percent))
}

// NormalizeRotation maps any angle in degrees to [0, 360)
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ComputeLayout returns the display geometry for a rows x cols image
func ComputeLayout(rows, cols, zoomPercent, rotation int) Layout {
	zoom := float64(ClampZoom(zoomPercent)) / 100
	rotation = NormalizeRotation(rotation)

	l := Layout{
		ZoomFactor:    zoom,
		Rotation:      rotation,
		DisplayWidth:  int(math.Round(float64(cols) * zoom)),
		DisplayHeight: int(math.Round(float64(rows) * zoom)),
	}
	l.CanvasWidth, l.CanvasHeight = l.DisplayWidth, l.DisplayHeight
	if rotation == 90 || rotation == 270 {
		l.CanvasWidth, l.CanvasHeight = l.DisplayHeight, l.DisplayWidth
	}
	return l
}

// ToGrid maps a click at display coordinates back to grid coordinates
func ToGrid(clientX, clientY float64, zoomPercent int) (x, y int32) {
	zoom := float64(ClampZoom(zoomPercent)) / 100
	return int32(math.Round(clientX / zoom)), int32(math.Round(clientY / zoom))
}

// ScaleROI returns the center and radius of roi in display coordinates
func ScaleROI(roi models.ROI, zoomPercent int) (cx, cy, r float64) {
	zoom := float64(ClampZoom(zoomPercent)) / 100
	return float64(roi.CenterX) * zoom, float64(roi.CenterY) * zoom, float64(roi.Radius) * zoom
}
