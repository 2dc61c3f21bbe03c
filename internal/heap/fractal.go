package heap

import (
	"fmt"

	"github.com/detectorio/h5xds/internal/binary"
)

// FractalHeap represents a fractal heap header ("FRHP"), the structure
// backing a version-2 group's link records. A fractal heap stores
// variable-length objects in a doubling table of direct and indirect
// blocks; this package resolves "managed" heap IDs only — huge and tiny
// IDs are out of scope and reported to the caller as unsupported.
type FractalHeap struct {
	r *binary.Reader

	HeapIDLength       int
	MaxManagedObjSize  uint32
	TableWidth         uint16
	StartingBlockSize  uint64
	MaxDirectBlockSize uint64
	MaxHeapSizeBits    uint16
	StartingNumRows    uint16
	RootBlockAddress   uint64
	RowsRootIndirect   uint16
	ChecksumFlag       bool

	maxRowsDirect int
}

// ReadFractalHeap reads and parses a fractal heap header at address.
func ReadFractalHeap(r *binary.Reader, address uint64) (*FractalHeap, error) {
	hr := r.At(int64(address))

	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap signature: %w", err)
	}
	if string(sig) != "FRHP" {
		return nil, fmt.Errorf("invalid fractal heap signature: %q", string(sig))
	}

	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported fractal heap version: %d", version)
	}

	heapIDLen, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	ioFilterLen, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	flags, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}

	maxManagedObjSize, err := hr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // next huge object ID
	if _, err := hr.ReadOffset(); err != nil {
		return nil, err
	} // huge objects B-tree address
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // free space amount
	if _, err := hr.ReadOffset(); err != nil {
		return nil, err
	} // free space manager address
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // amount of managed space
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // amount of allocated managed space
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // offset of next direct block iterator
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // number of managed objects
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // size of huge objects
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // number of huge objects
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // size of tiny objects
	if _, err := hr.ReadLength(); err != nil {
		return nil, err
	} // number of tiny objects

	tableWidth, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	startingBlockSize, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	maxDirectBlockSize, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	maxHeapSizeBits, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}
	if _, err := hr.ReadUint16(); err != nil {
		return nil, err
	} // starting number of rows in root indirect block
	rootBlockAddress, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	rowsRootIndirect, err := hr.ReadUint16()
	if err != nil {
		return nil, err
	}

	if ioFilterLen != 0 {
		return nil, fmt.Errorf("filtered fractal heaps are not supported")
	}

	fh := &FractalHeap{
		r:                  r,
		HeapIDLength:       int(heapIDLen),
		MaxManagedObjSize:  maxManagedObjSize,
		TableWidth:         tableWidth,
		StartingBlockSize:  startingBlockSize,
		MaxDirectBlockSize: maxDirectBlockSize,
		MaxHeapSizeBits:    maxHeapSizeBits,
		RootBlockAddress:   rootBlockAddress,
		RowsRootIndirect:   rowsRootIndirect,
		ChecksumFlag:       flags&0x02 != 0,
	}
	fh.maxRowsDirect = log2(maxDirectBlockSize) - log2(startingBlockSize) + 2
	return fh, nil
}

func log2(v uint64) int {
	r := -1
	for v > 0 {
		r++
		v >>= 1
	}
	return r
}

// ManagedHeapID is the decoded form of a "managed" fractal-heap ID, the
// only heap ID variant this package resolves.
type ManagedHeapID struct {
	Offset uint64
	Length uint64
}

// ParseManagedHeapID decodes a raw heap ID. ok is false when the ID
// encodes a huge or tiny object instead of a managed one; callers should
// surface that case as Unsupported rather than retrying.
func ParseManagedHeapID(id []byte, offsetSize, lengthSize int) (ManagedHeapID, bool) {
	if len(id) == 0 {
		return ManagedHeapID{}, false
	}
	idType := (id[0] >> 4) & 0x3
	if idType != 0 {
		return ManagedHeapID{}, false
	}
	p := 1
	if len(id) < p+offsetSize+lengthSize {
		return ManagedHeapID{}, false
	}
	offset := decodeLE(id[p : p+offsetSize])
	p += offsetSize
	length := decodeLE(id[p : p+lengthSize])
	return ManagedHeapID{Offset: offset, Length: length}, true
}

func decodeLE(b []byte) uint64 {
	var v uint64
	for i, bb := range b {
		v |= uint64(bb) << (8 * i)
	}
	return v
}

// ResolveManaged returns the bytes of a managed object stored at the
// given heap offset, descending the root block's doubling table (direct
// block only, or indirect block with a row of child direct blocks) to
// find the block that contains it.
func (fh *FractalHeap) ResolveManaged(offset, length uint64) ([]byte, error) {
	if fh.RowsRootIndirect == 0 {
		return fh.readFromDirectBlock(fh.RootBlockAddress, fh.StartingBlockSize, offset, length)
	}
	return fh.resolveViaIndirect(fh.RootBlockAddress, fh.RowsRootIndirect, offset, length)
}

func (fh *FractalHeap) blockOffsetSize() int {
	return (int(fh.MaxHeapSizeBits) + 7) / 8
}

func (fh *FractalHeap) resolveViaIndirect(address uint64, nrows uint16, offset, length uint64) ([]byte, error) {
	ir := fh.r.At(int64(address))
	sig, err := ir.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap indirect block signature: %w", err)
	}
	if string(sig) != "FHIB" {
		return nil, fmt.Errorf("invalid fractal heap indirect block signature: %q", string(sig))
	}
	if _, err := ir.ReadUint8(); err != nil {
		return nil, err
	} // version
	if _, err := ir.ReadOffset(); err != nil {
		return nil, err
	} // heap header address
	if _, err := ir.ReadBytes(fh.blockOffsetSize()); err != nil {
		return nil, err
	} // this block's offset in the heap

	width := int(fh.TableWidth)
	blockSize := fh.StartingBlockSize
	for row := 0; row < int(nrows); row++ {
		if row >= 2 {
			blockSize *= 2
		}
		for col := 0; col < width; col++ {
			childAddr, err := ir.ReadOffset()
			if err != nil {
				return nil, err
			}
			if row >= fh.maxRowsDirect {
				// Rows beyond maxRowsDirect address further indirect
				// blocks; not reached by the chunk/link sizes this
				// implementation targets.
				continue
			}
			if childAddr == 0 || fh.r.IsUndefinedOffset(childAddr) {
				continue
			}
			data, err := fh.readFromDirectBlock(childAddr, blockSize, offset, length)
			if err != nil {
				return nil, err
			}
			if data != nil {
				return data, nil
			}
		}
	}
	return nil, fmt.Errorf("fractal heap offset %d not found", offset)
}

// readFromDirectBlock returns the requested bytes if offset falls within
// the direct block at addr, or (nil, nil) on a clean miss.
func (fh *FractalHeap) readFromDirectBlock(addr, blockSize, offset, length uint64) ([]byte, error) {
	dr := fh.r.At(int64(addr))
	sig, err := dr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading fractal heap direct block signature: %w", err)
	}
	if string(sig) != "FHDB" {
		return nil, fmt.Errorf("invalid fractal heap direct block signature: %q", string(sig))
	}
	if _, err := dr.ReadUint8(); err != nil {
		return nil, err
	} // version
	if _, err := dr.ReadOffset(); err != nil {
		return nil, err
	} // heap header address
	offSize := fh.blockOffsetSize()
	dbOffsetBytes, err := dr.ReadBytes(offSize)
	if err != nil {
		return nil, err
	}
	dbOffset := decodeLE(dbOffsetBytes)

	if offset < dbOffset || offset+length > dbOffset+blockSize {
		return nil, nil
	}
	headerLen := int64(4 + 1 + fh.r.OffsetSize() + offSize)
	within := int64(offset - dbOffset)
	return fh.r.At(int64(addr) + headerLen + within).ReadBytes(int(length))
}
