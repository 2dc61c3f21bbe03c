// Package plugin implements the pure data-shaping logic the XDS plugin
// shim needs on top of h5core: pixel-mask preprocessing and per-pixel
// overflow clamping into the signed 32-bit values XDS expects.
package plugin

import (
	"fmt"
	"math"
)

// maskBit0 flags a dead or gap pixel; maskBits1to4 flags any other
// instrument-reported defect. Both come from the Dectris pixel_mask
// convention: bit 0 is the hard mask, bits 1-4 are soft flags.
const (
	maskBit0     = 0x1
	maskBits1to4 = 0x1e
)

// PreprocessPixelMask converts a raw pixel_mask dataset (read as int64,
// sign-extended from whatever integer width and signedness it was
// stored as) into the {-1, -2, 0} overlay applied over frame data:
// bit 0 set -> -1 (dead/gap pixel), any of bits 1..4 set -> -2 (flagged
// pixel), otherwise 0 (no override). Values outside [0, 0xffffffff] are
// rejected since the overlay is only meaningful for a 32-bit pixel mask.
func PreprocessPixelMask(raw []int64) ([]int32, error) {
	out := make([]int32, len(raw))
	for i, v := range raw {
		if v < 0 || v > math.MaxUint32 {
			return nil, fmt.Errorf("pixel mask value %d out of range [0, 0xffffffff]", v)
		}
		switch {
		case v&maskBit0 != 0:
			out[i] = -1
		case v&maskBits1to4 != 0:
			out[i] = -2
		default:
			out[i] = 0
		}
	}
	return out, nil
}

// ApplyOverflowU32 clamps a uint32 pixel value into XDS's signed 32-bit
// range. XDS processing uses int32_t; a u32 value at or above 2**31
// has no valid signed representation and is reported as -1.
func ApplyOverflowU32(v uint32) int32 {
	if v > math.MaxInt32 {
		return -1
	}
	return int32(v)
}

// ApplyOverflowU16 clamps a uint16 pixel value. 0xFFFF is the detector's
// overflow sentinel; every other value is valid as-is.
func ApplyOverflowU16(v uint16) int32 {
	if v == 0xFFFF {
		return -1
	}
	return int32(v)
}

// ApplyOverflowU8 clamps a uint8 pixel value. 0xFF is the detector's
// overflow sentinel; every other value is valid as-is.
func ApplyOverflowU8(v uint8) int32 {
	if v == 0xFF {
		return -1
	}
	return int32(v)
}

// ApplyMaskAndTransform combines a precomputed mask overlay with
// overflow-clamped raw pixel data into XDS's destination int32 array:
// a nonzero mask value always wins, otherwise the raw value is clamped
// per its element size. raw holds dataSize-byte little-endian unsigned
// elements, dataSize ∈ {1, 2, 4}.
func ApplyMaskAndTransform(dest []int32, raw []byte, mask []int32, dataSize int) error {
	count := len(dest)
	switch dataSize {
	case 1:
		if len(raw) < count {
			return fmt.Errorf("raw buffer too short: have %d bytes, need %d", len(raw), count)
		}
		for i := 0; i < count; i++ {
			if mask[i] != 0 {
				dest[i] = mask[i]
				continue
			}
			dest[i] = ApplyOverflowU8(raw[i])
		}
	case 2:
		if len(raw) < count*2 {
			return fmt.Errorf("raw buffer too short: have %d bytes, need %d", len(raw), count*2)
		}
		for i := 0; i < count; i++ {
			if mask[i] != 0 {
				dest[i] = mask[i]
				continue
			}
			v := uint16(raw[i*2]) | uint16(raw[i*2+1])<<8
			dest[i] = ApplyOverflowU16(v)
		}
	case 4:
		if len(raw) < count*4 {
			return fmt.Errorf("raw buffer too short: have %d bytes, need %d", len(raw), count*4)
		}
		for i := 0; i < count; i++ {
			if mask[i] != 0 {
				dest[i] = mask[i]
				continue
			}
			v := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
			dest[i] = ApplyOverflowU32(v)
		}
	default:
		return fmt.Errorf("unsupported pixel data size: %d bytes", dataSize)
	}
	return nil
}
