package dicomsource

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomroi/internal/models"
	"dicomroi/pkg/batch"
	"dicomroi/pkg/pixel"
)

func mustNewElement(t *testing.T, tg tag.Tag, data any) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, data)
	require.NoError(t, err)
	return elem
}

// createDataset builds an in-memory 2x3 unsigned 16-bit dataset whose pixel
// data is kept unprocessed, as Open returns it
func createDataset(t *testing.T) dicom.Dataset {
	raw := make([]byte, 12)
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(i*10))
	}
	return dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.TransferSyntaxUID, []string{pixel.ExplicitVRLittleEndian}),
		mustNewElement(t, tag.PatientName, []string{"Doe^Jane "}),
		mustNewElement(t, tag.Rows, []int{2}),
		mustNewElement(t, tag.Columns, []int{3}),
		mustNewElement(t, tag.BitsAllocated, []int{16}),
		mustNewElement(t, tag.PixelRepresentation, []int{0}),
		mustNewElement(t, tag.RescaleSlope, []string{"2"}),
		mustNewElement(t, tag.RescaleIntercept, []string{"-5"}),
		mustNewElement(t, tag.WindowCenter, []string{"40", "80"}),
		mustNewElement(t, tag.PixelData, dicom.PixelDataInfo{
			IntentionallyUnprocessed: true,
			UnprocessedValueData:     raw,
		}),
	}}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want tag.Tag
		ok   bool
	}{
		{"x00280010", tag.Rows, true},
		{"X7FE00010", tag.PixelData, true},
		{"Columns", tag.Columns, true},
		{"PatientName", tag.PatientName, true},
		{"NotATag", tag.Tag{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseKey(tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.key)
		}
	}
}

func TestFileLookup(t *testing.T) {
	f, err := FromDataset("a.dcm", createDataset(t))
	require.NoError(t, err)

	v, ok := f.Lookup(models.KeyRows)
	require.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok = f.Lookup("PatientName")
	require.True(t, ok)
	assert.Equal(t, "Doe^Jane", v)

	v, ok = f.Lookup(models.KeyWindowCenter)
	require.True(t, ok)
	assert.Equal(t, "40\\80", v)

	_, ok = f.Lookup("x00100020")
	assert.False(t, ok)

	_, ok = f.Lookup(models.KeyPixelData)
	assert.False(t, ok, "pixel data has no string form")

	rows, ok := f.Uint16("Rows")
	require.True(t, ok)
	assert.Equal(t, uint16(2), rows)

	assert.Len(t, f.PixelData(), 12)
}

func TestFileEntryDecodes(t *testing.T) {
	f, err := FromDataset("a.dcm", createDataset(t))
	require.NoError(t, err)

	grid, err := batch.DecodeEntry(f.Entry())
	require.NoError(t, err)
	assert.Equal(t, 2, grid.Rows)
	assert.Equal(t, 3, grid.Cols)
	assert.Equal(t, []float64{-5, 15, 35, 55, 75, 95}, grid.Data)
}

func TestFromDatasetWithoutPixelData(t *testing.T) {
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.Rows, []int{2}),
	}}
	_, err := FromDataset("nopixels.dcm", ds)
	assert.ErrorIs(t, err, ErrNoPixelData)
}

// writeDICOM writes a 4x4 image to dir/name the way a modality export would
func writeDICOM(t *testing.T, dir, name string, sliceLocation string) string {
	t.Helper()
	native := frame.NewNativeFrame[uint16](16, 4, 4, 16, 1)
	for i := range native.RawData {
		native.RawData[i] = uint16(100 + i)
	}

	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(t, tag.TransferSyntaxUID, []string{pixel.ExplicitVRLittleEndian}),
		mustNewElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustNewElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4." + name}),
		mustNewElement(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustNewElement(t, tag.SOPInstanceUID, []string{"1.2.3.4." + name}),
		mustNewElement(t, tag.Modality, []string{"MR"}),
		mustNewElement(t, tag.SliceLocation, []string{sliceLocation}),
		mustNewElement(t, tag.Rows, []int{4}),
		mustNewElement(t, tag.Columns, []int{4}),
		mustNewElement(t, tag.BitsAllocated, []int{16}),
		mustNewElement(t, tag.BitsStored, []int{16}),
		mustNewElement(t, tag.HighBit, []int{15}),
		mustNewElement(t, tag.PixelRepresentation, []int{0}),
		mustNewElement(t, tag.SamplesPerPixel, []int{1}),
		mustNewElement(t, tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(t, tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: native}},
		}),
	}}

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, dicom.Write(out, ds))
	require.NoError(t, out.Close())
	return path
}

func TestScanAndAnalyze(t *testing.T) {
	dir := t.TempDir()
	writeDICOM(t, dir, "img10.dcm", "10.0")
	writeDICOM(t, dir, "img2.dcm", "2.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not dicom"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.dcm"), []byte("x"), 0644))

	src, err := Scan(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"img2.dcm", "img10.dcm"}, src.Names())

	entry, err := src.Entry(0)
	require.NoError(t, err)
	records, err := batch.AnalyzeSingle(entry, []models.ROI{{CenterX: 1, CenterY: 1, Radius: 1}}, []models.TagField{
		{Key: models.KeySliceLocation, Name: "SliceLocation"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// samples 101, 104, 105, 106, 109 fall inside the disc
	mean, _ := records[0].Get(models.FieldROIMean)
	assert.InDelta(t, 105.0, mean.Num, 1e-9)
	loc, _ := records[0].Get("SliceLocation")
	assert.Equal(t, "2.0", loc.Str)

	_, err = src.Entry(5)
	assert.Error(t, err)
}

func TestNaturalLess(t *testing.T) {
	names := []string{"img10.dcm", "img2.dcm", "IMG1.dcm", "img02b.dcm", "img1.dcm", "a.dcm"}
	sort.SliceStable(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })
	assert.Equal(t, []string{"IMG1.dcm", "a.dcm", "img1.dcm", "img2.dcm", "img02b.dcm", "img10.dcm"}, names)
}
