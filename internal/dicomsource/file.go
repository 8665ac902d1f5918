// Package dicomsource adapts parsed DICOM files to the analysis engine.
// Metadata is exposed by hex key ("x00280010") or by keyword ("Rows") and
// pixel data is handed over as the undecoded value bytes.
package dicomsource

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomroi/pkg/batch"
)

// ErrNoPixelData is returned for a dataset without a usable pixel data element
var ErrNoPixelData = errors.New("no pixel data")

// File is one parsed DICOM file
type File struct {
	Name string
	Path string

	elements map[tag.Tag]*dicom.Element
	pixels   []byte
}

// Open parses the file at path. The pixel data value is kept as raw bytes.
func Open(path string) (*File, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipProcessingPixelDataValue())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	f, err := FromDataset(filepath.Base(path), ds)
	if err != nil {
		return nil, err
	}
	f.Path = path
	return f, nil
}

// FromDataset wraps an already parsed dataset
func FromDataset(name string, ds dicom.Dataset) (*File, error) {
	f := &File{
		Name:     name,
		elements: make(map[tag.Tag]*dicom.Element, len(ds.Elements)),
	}
	for _, elem := range ds.Elements {
		f.elements[elem.Tag] = elem
	}

	pixels, err := pixelBytes(f.elements[tag.PixelData])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	f.pixels = pixels
	return f, nil
}

// pixelBytes extracts the undecoded pixel data value. Encapsulated frames
// are concatenated so the engine can flag them rather than fail to load.
func pixelBytes(elem *dicom.Element) ([]byte, error) {
	if elem == nil {
		return nil, ErrNoPixelData
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected value type %v", ErrNoPixelData, elem.Value.ValueType())
	}

	switch {
	case info.IntentionallyUnprocessed:
		return info.UnprocessedValueData, nil
	case info.IsEncapsulated:
		var out []byte
		for _, fr := range info.Frames {
			out = append(out, fr.EncapsulatedData.Data...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: pixel data was not kept as raw bytes", ErrNoPixelData)
}

// PixelData returns the raw pixel data value bytes
func (f *File) PixelData() []byte { return f.pixels }

// Entry returns the batch entry of the file
func (f *File) Entry() batch.Entry {
	return batch.Entry{Name: f.Name, Raw: f.pixels, Metadata: f}
}

// ParseKey resolves a hex key ("x00280010") or a keyword ("Rows") to a tag
func ParseKey(key string) (tag.Tag, bool) {
	if len(key) == 9 && (key[0] == 'x' || key[0] == 'X') {
		if v, err := strconv.ParseUint(key[1:], 16, 32); err == nil {
			return tag.Tag{Group: uint16(v >> 16), Element: uint16(v)}, true
		}
	}
	info, err := tag.FindByName(key)
	if err != nil {
		return tag.Tag{}, false
	}
	return info.Tag, true
}

// Lookup returns the string form of an element. Multiple values are joined
// with a backslash.
func (f *File) Lookup(key string) (string, bool) {
	t, ok := ParseKey(key)
	if !ok {
		return "", false
	}
	elem, ok := f.elements[t]
	if !ok || elem.Value == nil {
		return "", false
	}

	var parts []string
	switch v := elem.Value.GetValue().(type) {
	case []string:
		for _, s := range v {
			parts = append(parts, strings.TrimRight(s, " \x00"))
		}
	case []int:
		for _, n := range v {
			parts = append(parts, strconv.Itoa(n))
		}
	case []float64:
		for _, n := range v {
			parts = append(parts, strconv.FormatFloat(n, 'g', -1, 64))
		}
	default:
		return "", false
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\\"), true
}

// Uint16 returns the first value of an element as an unsigned short
func (f *File) Uint16(key string) (uint16, bool) {
	t, ok := ParseKey(key)
	if !ok {
		return 0, false
	}
	elem, ok := f.elements[t]
	if !ok || elem.Value == nil {
		return 0, false
	}

	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 && v[0] >= 0 && v[0] <= 0xFFFF {
			return uint16(v[0]), true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimRight(v[0], "\x00")), 10, 16)
			if err == nil {
				return uint16(n), true
			}
		}
	}
	return 0, false
}
