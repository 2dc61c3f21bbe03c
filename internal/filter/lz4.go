package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/detectorio/h5xds/internal/message"
)

// lz4DefaultBlockBytes is the block size HDF5's LZ4 filter plugin uses
// when cd_values doesn't override it.
const lz4DefaultBlockBytes = 1 << 22 // 4 MiB

// LZ4 implements the plain LZ4 filter (HDF5 dynamic filter ID 32004):
// an 8-byte big-endian uncompressed-size header followed by one or more
// independently LZ4-block-compressed chunks, each prefixed with its own
// 4-byte big-endian compressed length.
type LZ4 struct {
	blockBytes int
}

// NewLZ4 creates a new LZ4 filter.
// Client data: [0] = block size in bytes (0 = default).
func NewLZ4(clientData []uint32) *LZ4 {
	blockBytes := lz4DefaultBlockBytes
	if len(clientData) > 0 && clientData[0] > 0 {
		blockBytes = int(clientData[0])
	}
	return &LZ4{blockBytes: blockBytes}
}

func (f *LZ4) ID() uint16 { return message.FilterLZ4 }

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 8 {
		return nil, fmt.Errorf("lz4 stream too short")
	}
	totalBytes := int(binary.BigEndian.Uint64(input[0:8]))
	offset := 8

	blockBytes := f.blockBytes
	if blockBytes <= 0 {
		blockBytes = lz4DefaultBlockBytes
	}

	output := make([]byte, 0, totalBytes)
	remaining := totalBytes
	for remaining > 0 {
		n := blockBytes
		if n > remaining {
			n = remaining
		}
		if offset+4 > len(input) {
			return nil, fmt.Errorf("lz4 block header truncated")
		}
		compLen := int(binary.BigEndian.Uint32(input[offset:]))
		offset += 4
		if offset+compLen > len(input) {
			return nil, fmt.Errorf("lz4 block data truncated")
		}
		block := input[offset : offset+compLen]
		offset += compLen

		if compLen == n {
			// Stored uncompressed when compression didn't shrink the block.
			output = append(output, block...)
		} else {
			decoded := make([]byte, n)
			written, err := lz4.UncompressBlock(block, decoded)
			if err != nil {
				return nil, fmt.Errorf("lz4 block decompress: %w", err)
			}
			output = append(output, decoded[:written]...)
		}
		remaining -= n
	}

	return output, nil
}
