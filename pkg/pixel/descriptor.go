package pixel

import (
	"errors"
	"fmt"

	"dicomroi/internal/models"
)

// ErrMissingMetadata is returned when a required geometry element is absent
var ErrMissingMetadata = errors.New("missing required metadata")

// DescriptorFromMetadata builds an ImageDescriptor from decoder metadata.
// Rows, Columns and BitsAllocated are required. A missing or zero slope
// defaults to 1 and a missing intercept to 0.
func DescriptorFromMetadata(m models.MetadataLookup) (models.ImageDescriptor, error) {
	rows, ok := m.Uint16(models.KeyRows)
	if !ok {
		return models.ImageDescriptor{}, fmt.Errorf("%w: Rows", ErrMissingMetadata)
	}
	cols, ok := m.Uint16(models.KeyColumns)
	if !ok {
		return models.ImageDescriptor{}, fmt.Errorf("%w: Columns", ErrMissingMetadata)
	}
	bits, ok := m.Uint16(models.KeyBitsAllocated)
	if !ok {
		return models.ImageDescriptor{}, fmt.Errorf("%w: BitsAllocated", ErrMissingMetadata)
	}
	representation, _ := m.Uint16(models.KeyPixelRepresentation)

	desc := models.NewDescriptor(uint32(rows), uint32(cols), int(bits), representation == 1)

	if s, ok := m.Lookup(models.KeyRescaleSlope); ok {
		if slope, ok := models.FirstFloat(s); ok && slope != 0 {
			desc.RescaleSlope = slope
		}
	}
	if s, ok := m.Lookup(models.KeyRescaleIntercept); ok {
		if intercept, ok := models.FirstFloat(s); ok {
			desc.RescaleIntercept = intercept
		}
	}
	if ts, ok := m.Lookup(models.KeyTransferSyntax); ok {
		desc.BigEndian = IsBigEndian(ts)
	}

	return desc, nil
}

// TransferSyntaxOf returns the transfer syntax identifier and whether the
// engine can decode it reliably
func TransferSyntaxOf(m models.MetadataLookup) (uid string, reliable bool) {
	uid, _ = m.Lookup(models.KeyTransferSyntax)
	uid = NormalizeSyntax(uid)
	return uid, IsUncompressed(uid)
}
