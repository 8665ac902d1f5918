package pixel

import (
	"errors"
	"testing"

	"dicomroi/internal/models"
)

func TestDescriptorFromMetadata(t *testing.T) {
	meta := models.MapLookup{
		models.KeyRows:                "4",
		models.KeyColumns:             "3",
		models.KeyBitsAllocated:       "16",
		models.KeyPixelRepresentation: "1",
		models.KeyRescaleSlope:        "2.5",
		models.KeyRescaleIntercept:    "-1024",
		models.KeyTransferSyntax:      ExplicitVRBigEndian,
	}

	desc, err := DescriptorFromMetadata(meta)
	if err != nil {
		t.Fatalf("DescriptorFromMetadata failed: %v", err)
	}
	if desc.Rows != 4 || desc.Cols != 3 || desc.BitsAllocated != 16 {
		t.Errorf("unexpected geometry: %+v", desc)
	}
	if !desc.Signed || !desc.BigEndian {
		t.Errorf("expected signed big endian descriptor, got %+v", desc)
	}
	if desc.RescaleSlope != 2.5 || desc.RescaleIntercept != -1024 {
		t.Errorf("unexpected calibration: slope=%v intercept=%v", desc.RescaleSlope, desc.RescaleIntercept)
	}
}

func TestDescriptorFromMetadataDefaults(t *testing.T) {
	meta := models.MapLookup{
		models.KeyRows:          "2",
		models.KeyColumns:       "2",
		models.KeyBitsAllocated: "8",
		models.KeyRescaleSlope:  "0",
	}

	desc, err := DescriptorFromMetadata(meta)
	if err != nil {
		t.Fatalf("DescriptorFromMetadata failed: %v", err)
	}
	if desc.RescaleSlope != 1 || desc.RescaleIntercept != 0 || desc.Signed || desc.BigEndian {
		t.Errorf("unexpected defaults: %+v", desc)
	}
}

func TestDescriptorFromMetadataMissing(t *testing.T) {
	meta := models.MapLookup{models.KeyRows: "2", models.KeyBitsAllocated: "8"}
	if _, err := DescriptorFromMetadata(meta); !errors.Is(err, ErrMissingMetadata) {
		t.Errorf("expected ErrMissingMetadata, got %v", err)
	}
}

func TestTransferSyntaxOf(t *testing.T) {
	uid, reliable := TransferSyntaxOf(models.MapLookup{models.KeyTransferSyntax: "1.2.840.10008.1.2.4.70"})
	if reliable || uid != "1.2.840.10008.1.2.4.70" {
		t.Errorf("expected unreliable JPEG lossless syntax, got %q %v", uid, reliable)
	}
	if _, reliable := TransferSyntaxOf(models.MapLookup{}); !reliable {
		t.Errorf("missing syntax should default to implicit little endian")
	}
}
