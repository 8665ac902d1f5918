// Package pixel decodes raw sample buffers into calibrated intensity grids.
//
// Supported layouts are 8-bit unsigned, 16-bit unsigned and 16-bit signed
// (two's complement) samples. Calibration follows the usual affine rescale:
//
//	intensity = stored*slope + intercept
package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"dicomroi/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for sample widths other than 8 and 16 bits
	ErrUnsupportedFormat = errors.New("unsupported sample format")

	// ErrTruncatedBuffer is returned when the buffer is shorter than the geometry requires
	ErrTruncatedBuffer = errors.New("truncated pixel buffer")
)

// Decode converts raw samples starting at pixelOffset into a new intensity grid.
// The returned grid never references raw.
func Decode(raw []byte, desc models.ImageDescriptor, pixelOffset int) (*models.IntensityGrid, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.BitsAllocated != 8 && desc.BitsAllocated != 16 {
		return nil, fmt.Errorf("%w: %d bits allocated", ErrUnsupportedFormat, desc.BitsAllocated)
	}
	if desc.BitsAllocated == 8 && desc.Signed {
		return nil, fmt.Errorf("%w: signed 8-bit samples", ErrUnsupportedFormat)
	}
	if pixelOffset < 0 {
		return nil, fmt.Errorf("%w: negative pixel offset %d", ErrTruncatedBuffer, pixelOffset)
	}

	n := desc.SampleCount()
	need := pixelOffset + n*desc.BytesPerSample()
	if len(raw) < need {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedBuffer, need, len(raw))
	}

	slope, intercept := desc.RescaleSlope, desc.RescaleIntercept
	grid := models.NewIntensityGrid(int(desc.Rows), int(desc.Cols))
	src := raw[pixelOffset:need]

	var order binary.ByteOrder = binary.LittleEndian
	if desc.BigEndian {
		order = binary.BigEndian
	}

	switch {
	case desc.BitsAllocated == 8:
		for i := 0; i < n; i++ {
			grid.Data[i] = float64(src[i])*slope + intercept
		}

	case desc.Signed:
		for i := 0; i < n; i++ {
			v := int16(order.Uint16(src[i*2:]))
			grid.Data[i] = float64(v)*slope + intercept
		}

	default:
		for i := 0; i < n; i++ {
			v := order.Uint16(src[i*2:])
			grid.Data[i] = float64(v)*slope + intercept
		}
	}

	return grid, nil
}
