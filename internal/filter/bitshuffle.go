package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/detectorio/h5xds/internal/message"
)

// bitshuffleDefaultBlockBytes is the target block size (in bytes,
// before rounding to a multiple of 8 elements) the bitshuffle filter
// plugin uses when cd_values doesn't override it.
const bitshuffleDefaultBlockBytes = 8192

// Bitshuffle implements the "bitshuffle" filter (HDF5 dynamic filter ID
// 32008), as used by Dectris EIGER/EIGER2 detector master and data
// files. Each block of elements is bit-transposed (grouping bit N of
// every element in the block together) before LZ4 block compression;
// on the low-entropy, high-bit-redundancy integer frames a photon-
// counting detector produces, the transpose exposes far more byte-
// level redundancy to LZ4 than plain byte shuffle does.
type Bitshuffle struct {
	elemSize   int
	blockElems int
}

// NewBitshuffle creates a new bitshuffle filter.
// Client data: [0] = uncompressed element count (informational), [1] =
// element size in bytes, [2] = block size in elements (0 = default).
func NewBitshuffle(clientData []uint32) *Bitshuffle {
	elemSize := 1
	if len(clientData) > 1 && clientData[1] > 0 {
		elemSize = int(clientData[1])
	}
	blockElems := 0
	if len(clientData) > 2 {
		blockElems = int(clientData[2])
	}
	return &Bitshuffle{elemSize: elemSize, blockElems: blockElems}
}

func (f *Bitshuffle) ID() uint16 { return message.FilterBitshuffle }

func (f *Bitshuffle) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("bitshuffle stream too short")
	}
	totalBytes := int(binary.BigEndian.Uint64(input[0:8]))
	blockBytesHdr := binary.BigEndian.Uint32(input[8:12])
	offset := 12

	elemSize := f.elemSize
	if elemSize <= 0 {
		elemSize = 1
	}

	blockElems := f.blockElems
	if blockElems <= 0 {
		blockElems = int(blockBytesHdr) / elemSize
	}
	if blockElems <= 0 {
		blockElems = defaultBitshuffleBlockElems(elemSize)
	}
	blockSize := blockElems * elemSize

	shuffled := make([]byte, 0, totalBytes)
	remaining := totalBytes
	for remaining > 0 {
		n := blockSize
		if n > remaining {
			n = remaining
		}
		if offset+4 > len(input) {
			return nil, fmt.Errorf("bitshuffle block header truncated")
		}
		compLen := int(binary.BigEndian.Uint32(input[offset:]))
		offset += 4
		if offset+compLen > len(input) {
			return nil, fmt.Errorf("bitshuffle block data truncated")
		}
		block := input[offset : offset+compLen]
		offset += compLen

		var decoded []byte
		if compLen == n {
			// Stored uncompressed when compression didn't shrink the block.
			decoded = block
		} else {
			decoded = make([]byte, n)
			written, err := lz4.UncompressBlock(block, decoded)
			if err != nil {
				return nil, fmt.Errorf("lz4 block decompress: %w", err)
			}
			decoded = decoded[:written]
		}
		shuffled = append(shuffled, decoded...)
		remaining -= n
	}

	return bitUnshuffle(shuffled, elemSize), nil
}

func defaultBitshuffleBlockElems(elemSize int) int {
	n := bitshuffleDefaultBlockBytes / elemSize
	if n < 8 {
		n = 8
	}
	return (n / 8) * 8
}

// bitUnshuffle reverses the bit-level transpose bitshuffle applies
// across groups of 8 elements: within each group, byte j/bit b of the
// transposed stream packs one bit from each of the 8 elements. Elements
// are processed in whole groups of 8 (the native transpose granularity
// on every real bitshuffle encoder); any remainder too small to fill a
// full group is carried through unshuffled, matching the encoder's own
// handling of a trailing partial block.
func bitUnshuffle(data []byte, elemSize int) []byte {
	n := len(data) / elemSize
	fullGroups := n / 8
	out := make([]byte, len(data))

	groupBytes := elemSize * 8
	for g := 0; g < fullGroups; g++ {
		srcBase := g * groupBytes
		dstBase := g * 8 * elemSize
		for j := 0; j < elemSize; j++ {
			for b := 0; b < 8; b++ {
				packed := data[srcBase+j*8+b]
				for i := 0; i < 8; i++ {
					bit := (packed >> uint(7-i)) & 1
					if bit != 0 {
						out[dstBase+i*elemSize+j] |= 1 << uint(b)
					}
				}
			}
		}
	}

	tailStart := fullGroups * 8 * elemSize
	copy(out[tailStart:], data[tailStart:])

	return out
}
