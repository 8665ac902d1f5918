package batch

import (
	"errors"
	"fmt"
)

// ErrNoROIs is returned when a run is started without regions
var ErrNoROIs = errors.New("no ROIs to analyze")

// SkipReason classifies why an image produced no records
type SkipReason string

const (
	ReasonSource   SkipReason = "SOURCE_FAILED"
	ReasonMetadata SkipReason = "MISSING_METADATA"
	ReasonDecode   SkipReason = "DECODE_FAILED"
	ReasonGeometry SkipReason = "MALFORMED_GEOMETRY"
)

// ImageSkippedError reports a per-image failure. The batch continues.
type ImageSkippedError struct {
	Index  int
	Name   string
	Reason SkipReason
	Cause  error
}

func (e *ImageSkippedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("image %d (%s) skipped: %s (caused by: %v)", e.Index, e.Name, e.Reason, e.Cause)
	}
	return fmt.Sprintf("image %d (%s) skipped: %s", e.Index, e.Name, e.Reason)
}

func (e *ImageSkippedError) Unwrap() error {
	return e.Cause
}
