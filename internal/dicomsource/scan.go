package dicomsource

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomroi/internal/logging"
	"dicomroi/pkg/batch"
)

// Directory is a lazily loaded batch source over DICOM files.
// Each Entry call parses its file again so only one pixel buffer is
// resident at a time.
type Directory struct {
	Paths []string
}

// Len implements batch.Source
func (d *Directory) Len() int { return len(d.Paths) }

// Entry implements batch.Source
func (d *Directory) Entry(index int) (batch.Entry, error) {
	if index < 0 || index >= len(d.Paths) {
		return batch.Entry{}, fmt.Errorf("entry index %d out of range [0, %d)", index, len(d.Paths))
	}
	f, err := Open(d.Paths[index])
	if err != nil {
		return batch.Entry{Name: filepath.Base(d.Paths[index])}, err
	}
	return f.Entry(), nil
}

// Names returns the base names of the files in order
func (d *Directory) Names() []string {
	out := make([]string, len(d.Paths))
	for i, p := range d.Paths {
		out[i] = filepath.Base(p)
	}
	return out
}

// Scan walks root and returns the DICOM files carrying pixel data in
// natural name order. Unreadable and non-DICOM files are skipped.
func Scan(root string, log *logging.Logger) (*Directory, error) {
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("scan")

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !hasPixelData(path) {
			log.Debug("skipping file", "path", path)
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.SliceStable(paths, func(i, j int) bool {
		return NaturalLess(filepath.Base(paths[i]), filepath.Base(paths[j]))
	})

	log.Info("scan complete", "root", root, "images", len(paths))
	return &Directory{Paths: paths}, nil
}

// hasPixelData parses the header of path and reports whether it is a DICOM
// file with a pixel data element
func hasPixelData(path string) bool {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return false
	}
	_, err = ds.FindElementByTag(tag.PixelData)
	return err == nil
}

// NaturalLess compares names treating digit runs as numbers, so
// "img2.dcm" sorts before "img10.dcm"
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
