package display

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"dicomroi/internal/models"
)

// roiColor is the outline color used for ROI overlays
var roiColor = color.RGBA{R: 255, A: 255}

// crosshairHalf is the half length of the ROI center marker in canvas pixels
const crosshairHalf = 10

// RenderPreview composes a display buffer into a zoomed and rotated RGBA
// canvas and draws the ROI outlines on top. ROIs are drawn in unrotated,
// zoomed coordinates, matching where a user placed them on screen.
func RenderPreview(buf *DisplayBuffer, layout Layout, rois []models.ROI) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, layout.CanvasWidth, layout.CanvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	src := buf.ToImage()
	draw.BiLinear.Transform(canvas, previewTransform(buf, layout), src, src.Bounds(), draw.Over, nil)

	face := basicfont.Face7x13
	for i, roi := range rois {
		cx, cy, r := ScaleROI(roi, int(math.Round(layout.ZoomFactor*100)))
		x, y := int(math.Round(cx)), int(math.Round(cy))
		drawCircle(canvas, x, y, int(math.Round(r)), roiColor)
		drawLine(canvas, x-crosshairHalf, y, x+crosshairHalf, y, roiColor)
		drawLine(canvas, x, y-crosshairHalf, x, y+crosshairHalf, roiColor)
		drawText(canvas, face, fmt.Sprintf("#%d", i+1), x+int(math.Round(r))+3, y-3, roiColor)
	}
	return canvas
}

// previewTransform returns the source-to-canvas affine matrix: scale to the
// display size, rotate about the display center, then center on the canvas
func previewTransform(buf *DisplayBuffer, layout Layout) f64.Aff3 {
	zx := float64(layout.DisplayWidth) / float64(buf.Cols)
	zy := float64(layout.DisplayHeight) / float64(buf.Rows)
	theta := float64(layout.Rotation) * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	dw, dh := float64(layout.DisplayWidth)/2, float64(layout.DisplayHeight)/2
	cw, ch := float64(layout.CanvasWidth)/2, float64(layout.CanvasHeight)/2

	return f64.Aff3{
		cos * zx, -sin * zy, cw - (cos*dw - sin*dh),
		sin * zx, cos * zy, ch - (sin*dw + cos*dh),
	}
}

// SavePreview writes img as PNG or JPEG depending on the file extension
func SavePreview(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("create preview directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create preview file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// drawText draws a string with its baseline at (x, y)
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCircle draws a circle outline using the midpoint algorithm
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		img.Set(cx+x, cy+y, c)
		img.Set(cx+y, cy+x, c)
		img.Set(cx-y, cy+x, c)
		img.Set(cx-x, cy+y, c)
		img.Set(cx-x, cy-y, c)
		img.Set(cx-y, cy-x, c)
		img.Set(cx+y, cy-x, c)
		img.Set(cx+x, cy-y, c)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// drawLine draws an axis-aligned or diagonal line with Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
