package models

import (
	"strconv"
)

// Fields always present on an analysis record, in emission order
const (
	FieldFileName      = "FileName"
	FieldROIID         = "ROI_ID"
	FieldROIMean       = "ROI_Mean"
	FieldROINoiseSD    = "ROI_Noise_SD"
	FieldFullImageMean = "FullImage_Mean"
	FieldFullImageSD   = "FullImage_SD"
	FieldROIX          = "ROI_X"
	FieldROIY          = "ROI_Y"
	FieldROIR          = "ROI_R"

	// FieldDecodeWarning is added when the transfer syntax is not a
	// recognized uncompressed encoding
	FieldDecodeWarning = "DecodeWarning"
)

// CoreFields lists the fields every record carries
var CoreFields = []string{
	FieldFileName,
	FieldROIID,
	FieldROIMean,
	FieldROINoiseSD,
	FieldFullImageMean,
	FieldFullImageSD,
	FieldROIX,
	FieldROIY,
	FieldROIR,
}

// ValueKind tags the content of a Value
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
)

// Value is a small tagged value stored in an AnalysisRecord
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Num  float64
}

// String creates a string value
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int creates an integer value
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float creates a floating point value
func Float(f float64) Value { return Value{Kind: KindFloat, Num: f} }

// IsNumber reports whether the value holds a number
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// Float64 returns the numeric content; strings are parsed when possible
func (v Value) Float64() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Num, true
	default:
		f, err := strconv.ParseFloat(v.Str, 64)
		return f, err == nil
	}
}

// Format renders the value as text. Floats use four decimals.
func (v Value) Format() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Num, 'f', 4, 64)
	default:
		return v.Str
	}
}

// AnalysisRecord is an ordered field name → value mapping for one (image, ROI) pair
type AnalysisRecord struct {
	keys   []string
	values map[string]Value
}

// NewAnalysisRecord creates an empty record
func NewAnalysisRecord() *AnalysisRecord {
	return &AnalysisRecord{values: make(map[string]Value)}
}

// Set stores a value. A new key is appended; an existing key keeps its position.
func (r *AnalysisRecord) Set(key string, v Value) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value for key
func (r *AnalysisRecord) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in insertion order
func (r *AnalysisRecord) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields
func (r *AnalysisRecord) Len() int { return len(r.keys) }

// FieldSet is a set of field names that remembers insertion order
type FieldSet struct {
	order []string
	seen  map[string]struct{}
}

// NewFieldSet creates a set holding the given names
func NewFieldSet(names ...string) *FieldSet {
	s := &FieldSet{seen: make(map[string]struct{})}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name if missing
func (s *FieldSet) Add(name string) {
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.order = append(s.order, name)
}

// Has reports membership
func (s *FieldSet) Has(name string) bool {
	_, ok := s.seen[name]
	return ok
}

// List returns the names in insertion order
func (s *FieldSet) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the set size
func (s *FieldSet) Len() int { return len(s.order) }

// BatchResultSet is the ordered output of one batch run.
// Records are ordered by image index, then ROI index.
type BatchResultSet struct {
	Records []*AnalysisRecord
}

// Append adds records at the end
func (b *BatchResultSet) Append(records ...*AnalysisRecord) {
	b.Records = append(b.Records, records...)
}

// Reset clears the set for a new run
func (b *BatchResultSet) Reset() {
	b.Records = nil
}

// Len returns the number of records
func (b *BatchResultSet) Len() int { return len(b.Records) }
