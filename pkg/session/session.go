package session

import (
	"errors"
	"fmt"
	"image"

	"dicomroi/internal/logging"
	"dicomroi/internal/models"
	"dicomroi/pkg/batch"
	"dicomroi/pkg/display"
)

var (
	// ErrNoImage is returned when an operation needs a loaded image
	ErrNoImage = errors.New("no image loaded")

	// ErrIndexOutOfRange is returned for an image or ROI index outside the list
	ErrIndexOutOfRange = errors.New("index out of range")
)

// DefaultRadius is the radius given to ROIs placed by pointer
const DefaultRadius int32 = 25

// Image is the decoded current image of a session
type Image struct {
	Index int
	Entry batch.Entry
	Grid  *models.IntensityGrid

	// DefaultWindow is the metadata window or the full-range fallback
	DefaultWindow models.WindowLevel

	// Warning is set when decoding may be unreliable
	Warning string
}

// Session holds the interactive viewing state over a set of images.
//
// Only the current image is decoded and cached. Window/level and rotation
// overrides are stored per image index and consulted on load before the
// computed defaults.
type Session struct {
	source batch.Source
	log    *logging.Logger

	current *Image
	window  models.WindowLevel
	rotation int
	zoom     int

	rois   []models.ROI
	radius int32

	windows   map[int]models.WindowLevel
	rotations map[int]int
}

// New creates a session over source with no image loaded
func New(source batch.Source, log *logging.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	return &Session{
		source:    source,
		log:       log.With("session"),
		zoom:      display.DefaultZoom,
		radius:    DefaultRadius,
		windows:   make(map[int]models.WindowLevel),
		rotations: make(map[int]int),
	}
}

// Len returns the number of images in the session
func (s *Session) Len() int { return s.source.Len() }

// Source returns the image source of the session
func (s *Session) Source() batch.Source { return s.source }

// Current returns the loaded image, or nil
func (s *Session) Current() *Image { return s.current }

// Index returns the index of the loaded image, or -1
func (s *Session) Index() int {
	if s.current == nil {
		return -1
	}
	return s.current.Index
}

// Load decodes the image at index and makes it current. The previous
// grid is released. On failure the previous image stays current.
func (s *Session) Load(index int) (*Image, error) {
	if index < 0 || index >= s.source.Len() {
		return nil, fmt.Errorf("%w: image %d of %d", ErrIndexOutOfRange, index, s.source.Len())
	}

	entry, err := s.source.Entry(index)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %d: %w", index, err)
	}

	grid, err := batch.DecodeEntry(entry)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Index:         index,
		Entry:         entry,
		Grid:          grid,
		DefaultWindow: display.WindowFromMetadata(entry.Metadata, grid),
		Warning:       batch.DecodeWarning(entry),
	}
	if img.Warning != "" {
		s.log.Warn("decoding may be unreliable", "index", index, "name", entry.Name, "warning", img.Warning)
	}

	s.current = img
	if wl, ok := s.windows[index]; ok {
		s.window = wl
	} else {
		s.window = img.DefaultWindow
	}
	s.rotation = s.rotations[index]

	s.log.Debug("image loaded", "index", index, "name", entry.Name, "rows", grid.Rows, "cols", grid.Cols)
	return img, nil
}

// Navigate moves by delta images. A move past either end is ignored and
// reports false.
func (s *Session) Navigate(delta int) (bool, error) {
	next := s.Index() + delta
	if s.current == nil || next < 0 || next >= s.source.Len() {
		return false, nil
	}
	if _, err := s.Load(next); err != nil {
		return false, err
	}
	return true, nil
}

// Window returns the live window/level of the current image
func (s *Session) Window() models.WindowLevel { return s.window }

// SetWindow replaces the live window/level. The width is clamped to at least 1.
func (s *Session) SetWindow(wl models.WindowLevel) {
	s.window = wl.Clamped()
}

// DragWindow applies a pointer drag relative to start
func (s *Session) DragWindow(start models.WindowLevel, dx, dy float64) {
	s.window = display.DragAdjust(start, dx, dy)
}

// ResetWindow restores the default window of the current image
func (s *Session) ResetWindow() error {
	if s.current == nil {
		return ErrNoImage
	}
	s.window = s.current.DefaultWindow
	return nil
}

// ApplyWindowToAll stores the live window as the override of every image
func (s *Session) ApplyWindowToAll() {
	for i := 0; i < s.source.Len(); i++ {
		s.windows[i] = s.window
	}
	s.log.Info("window applied to all images",
		"width", s.window.Width,
		"center", s.window.Center,
		"images", s.source.Len())
}

// Rotation returns the rotation of the current image in degrees
func (s *Session) Rotation() int { return s.rotation }

// SetRotation sets and stores the rotation of the current image
func (s *Session) SetRotation(deg int) {
	s.rotation = display.NormalizeRotation(deg)
	if s.current != nil {
		s.rotations[s.current.Index] = s.rotation
	}
}

// Rotate turns the current image by delta degrees
func (s *Session) Rotate(delta int) {
	s.SetRotation(s.rotation + delta)
}

// ResetRotation sets the rotation of the current image back to 0
func (s *Session) ResetRotation() {
	s.SetRotation(0)
}

// ApplyRotationToAll stores the current rotation for every image
func (s *Session) ApplyRotationToAll() {
	for i := 0; i < s.source.Len(); i++ {
		s.rotations[i] = s.rotation
	}
	s.log.Info("rotation applied to all images", "rotation", s.rotation, "images", s.source.Len())
}

// Zoom returns the zoom percentage
func (s *Session) Zoom() int { return s.zoom }

// SetZoom sets the zoom percentage, clamped to [25, 400]
func (s *Session) SetZoom(percent int) {
	s.zoom = display.ClampZoom(percent)
}

// AdjustZoom changes the zoom by delta percent
func (s *Session) AdjustZoom(delta int) {
	s.SetZoom(s.zoom + delta)
}

// Radius returns the radius used for pointer-placed ROIs
func (s *Session) Radius() int32 { return s.radius }

// SetRadius changes the radius used for pointer-placed ROIs. Negative
// values clamp to 0.
func (s *Session) SetRadius(r int32) {
	s.radius = max(0, r)
}

// ROIs returns a copy of the ROI list
func (s *Session) ROIs() []models.ROI {
	out := make([]models.ROI, len(s.rois))
	copy(out, s.rois)
	return out
}

// AddROI appends roi to the list
func (s *Session) AddROI(roi models.ROI) {
	s.rois = append(s.rois, roi.Clamped())
}

// PlaceROI adds an ROI at display coordinates, undoing the current zoom
func (s *Session) PlaceROI(clientX, clientY float64) models.ROI {
	x, y := display.ToGrid(clientX, clientY, s.zoom)
	roi := models.ROI{CenterX: x, CenterY: y, Radius: s.radius}
	s.AddROI(roi)
	return roi
}

// RemoveROI deletes the ROI at index i
func (s *Session) RemoveROI(i int) error {
	if i < 0 || i >= len(s.rois) {
		return fmt.Errorf("%w: ROI %d of %d", ErrIndexOutOfRange, i, len(s.rois))
	}
	s.rois = append(s.rois[:i], s.rois[i+1:]...)
	return nil
}

// ClearROIs removes every ROI
func (s *Session) ClearROIs() {
	s.rois = nil
}

// Layout returns the display geometry of the current image
func (s *Session) Layout() (display.Layout, error) {
	if s.current == nil {
		return display.Layout{}, ErrNoImage
	}
	return display.ComputeLayout(s.current.Grid.Rows, s.current.Grid.Cols, s.zoom, s.rotation), nil
}

// Render maps the current image through the live window and draws the ROIs
func (s *Session) Render() (*image.RGBA, error) {
	layout, err := s.Layout()
	if err != nil {
		return nil, err
	}
	buf := display.MapToDisplay(s.current.Grid, s.window)
	return display.RenderPreview(buf, layout, s.rois), nil
}

// AnalyzeCurrent computes the multi-ROI records of the current image
func (s *Session) AnalyzeCurrent(fields []models.TagField) ([]*models.AnalysisRecord, error) {
	if s.current == nil {
		return nil, ErrNoImage
	}
	return batch.AnalyzeSingle(s.current.Entry, s.rois, fields)
}

// Pipeline creates a batch pipeline over the session images using the
// session ROI list
func (s *Session) Pipeline(params batch.Params) *batch.Pipeline {
	params.ROIs = s.ROIs()
	return batch.NewPipeline(s.source, &params)
}
