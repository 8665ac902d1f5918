package models

import (
	"strconv"
	"strings"
)

// MetadataLookup is the read side of the external decoder contract.
// Keys use the group+element hex scheme, e.g. "x00280010" for Rows.
type MetadataLookup interface {
	// Lookup returns the string form of an element
	Lookup(key string) (string, bool)

	// Uint16 returns the first value of an unsigned short element
	Uint16(key string) (uint16, bool)
}

// Element keys used by the engine
const (
	KeyTransferSyntax      = "x00020010"
	KeyRows                = "x00280010"
	KeyColumns             = "x00280011"
	KeyBitsAllocated       = "x00280100"
	KeyBitsStored          = "x00280101"
	KeyPixelRepresentation = "x00280103"
	KeyWindowCenter        = "x00281050"
	KeyWindowWidth         = "x00281051"
	KeyRescaleIntercept    = "x00281052"
	KeyRescaleSlope        = "x00281053"
	KeySliceLocation       = "x00201041"
	KeyPixelData           = "x7fe00010"
)

// TagField names a metadata element that can be merged into records
type TagField struct {
	Key  string
	Name string
}

// CommonTags are the metadata fields merged into analysis records by default
var CommonTags = []TagField{
	{"x00100010", "PatientName"},
	{"x00100020", "PatientID"},
	{"x00080020", "StudyDate"},
	{"x00080060", "Modality"},
	{"x00080070", "Manufacturer"},
	{"x00181411", "ExposureIndex"},
	{"x00181412", "TargetExposureIndex"},
	{"x00181413", "DeviationIndex"},
	{"x00181150", "ExposureTime"},
	{"x00181152", "Exposure"},
	{"x00181151", "XRayTubeCurrent"},
	{"x00180060", "KVP"},
	{KeyRows, "Rows"},
	{KeyColumns, "Columns"},
	{KeySliceLocation, "SliceLocation"},
}

// KnownTags maps every field name the tool understands to its element key
var KnownTags = map[string]string{
	"PatientName":              "x00100010",
	"PatientID":                "x00100020",
	"PatientBirthDate":         "x00100030",
	"PatientSex":               "x00100040",
	"PatientAge":               "x00101010",
	"StudyDate":                "x00080020",
	"StudyTime":                "x00080030",
	"StudyDescription":         "x00081030",
	"SeriesDescription":        "x0008103e",
	"Modality":                 "x00080060",
	"Manufacturer":             "x00080070",
	"InstitutionName":          "x00080080",
	"StationName":              "x00081010",
	"ManufacturerModelName":    "x00081090",
	"ExposureIndex":            "x00181411",
	"TargetExposureIndex":      "x00181412",
	"DeviationIndex":           "x00181413",
	"ExposureTime":             "x00181150",
	"Exposure":                 "x00181152",
	"XRayTubeCurrent":          "x00181151",
	"KVP":                      "x00180060",
	"DistanceSourceToDetector": "x00181110",
	"BodyPartExamined":         "x00180015",
	"ViewPosition":             "x00185101",
	"ImageLaterality":          "x00200062",
	"InstanceNumber":           "x00200013",
	"SliceLocation":            KeySliceLocation,
	"Rows":                     KeyRows,
	"Columns":                  KeyColumns,
	"BitsAllocated":            KeyBitsAllocated,
	"BitsStored":               KeyBitsStored,
	"PixelRepresentation":      KeyPixelRepresentation,
	"WindowWidth":              KeyWindowWidth,
	"WindowCenter":             KeyWindowCenter,
	"RescaleIntercept":         KeyRescaleIntercept,
	"RescaleSlope":             KeyRescaleSlope,
}

// TagFieldsFor resolves field names to TagFields. Unknown names are returned
// separately so callers can report them.
func TagFieldsFor(names []string) (fields []TagField, unknown []string) {
	for _, n := range names {
		if key, ok := KnownTags[n]; ok {
			fields = append(fields, TagField{Key: key, Name: n})
		} else {
			unknown = append(unknown, n)
		}
	}
	return fields, unknown
}

// MapLookup is an in-memory MetadataLookup keyed by element key
type MapLookup map[string]string

// Lookup implements MetadataLookup
func (m MapLookup) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Uint16 implements MetadataLookup
func (m MapLookup) Uint16(key string) (uint16, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

// FirstFloat parses the first value of a possibly multi-valued (backslash
// separated) decimal string
func FirstFloat(s string) (float64, bool) {
	if i := strings.IndexByte(s, '\\'); i >= 0 {
		s = s[:i]
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
