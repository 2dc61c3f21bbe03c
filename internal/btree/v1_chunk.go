package btree

import (
	"fmt"

	"github.com/detectorio/h5xds/internal/binary"
)

// ChunkEntry represents a chunk in the B-tree index.
type ChunkEntry struct {
	// Offset contains the chunk coordinates in dataset element space.
	// For a 2D dataset with chunks [10,10], chunk at offset [20,30]
	// covers elements [20:30, 30:40].
	Offset []uint64

	// FilterMask indicates which filters were disabled for this chunk.
	// Bit i = 1 means filter i was skipped.
	FilterMask uint32

	// Size is the size of the chunk data on disk (possibly compressed).
	Size uint32

	// Address is the file offset where chunk data is stored.
	Address uint64
}

// ChunkIndex contains all chunks for a dataset.
type ChunkIndex struct {
	// NDims is the number of dataset dimensions (the extra trailing
	// element-size dimension of the B-tree keys is not counted).
	NDims int

	// Entries contains all chunk entries.
	Entries []ChunkEntry
}

// ReadChunkIndex reads a v1 B-tree chunk index.
// ndims is the number of dataset dimensions (not including the +1 used in B-tree keys).
func ReadChunkIndex(r *binary.Reader, btreeAddr uint64, ndims int) (*ChunkIndex, error) {
	index := &ChunkIndex{
		NDims: ndims,
	}

	entries, err := readChunkBTreeNode(r, btreeAddr, ndims)
	if err != nil {
		return nil, err
	}
	index.Entries = entries

	return index, nil
}

func readChunkBTreeNode(r *binary.Reader, address uint64, ndims int) ([]ChunkEntry, error) {
	nr := r.At(int64(address))

	// Check signature
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading btree signature: %w", err)
	}
	if string(sig) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature: got %q, expected \"TREE\"", string(sig))
	}

	// Node type (1 byte): 0 = group, 1 = chunk
	nodeType, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if nodeType != 1 {
		return nil, fmt.Errorf("unexpected B-tree node type: %d (expected 1 for chunk)", nodeType)
	}

	// Node level (1 byte): 0 = leaf
	nodeLevel, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}

	// Entries used (2 bytes)
	entriesUsed, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}

	// Left sibling address
	_, err = nr.ReadOffset()
	if err != nil {
		return nil, err
	}

	// Right sibling address
	_, err = nr.ReadOffset()
	if err != nil {
		return nil, err
	}

	var entries []ChunkEntry

	if nodeLevel == 0 {
		// Leaf node - contains actual chunk entries
		// Key layout for chunked data (per HDF5 spec):
		// - Chunk size in bytes (4 bytes)
		// - Filter mask (4 bytes)
		// - Chunk offsets (ndims+1 values, each 8 bytes)
		// Child pointer:
		// - Address of chunk data (offset-sized)

		for i := uint16(0); i <= entriesUsed; i++ {
			// Read key
			chunkSize, err := nr.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("reading chunk size: %w", err)
			}

			filterMask, err := nr.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("reading filter mask: %w", err)
			}

			// Chunk offsets - HDF5 uses ndims+1 dimensions in the B-tree
			// The last dimension is typically the element size
			offsets := make([]uint64, ndims+1)
			for j := 0; j <= ndims; j++ {
				offsets[j], err = nr.ReadUint64()
				if err != nil {
					return nil, fmt.Errorf("reading chunk offset %d: %w", j, err)
				}
			}

			// For the last entry (i == entriesUsed), we only read the key
			// to know the upper bound, but there's no child pointer
			if i == entriesUsed {
				break
			}

			// Read child pointer (chunk data address)
			chunkAddr, err := nr.ReadOffset()
			if err != nil {
				return nil, fmt.Errorf("reading chunk address: %w", err)
			}

			// Only include chunks that have valid addresses
			if chunkAddr != 0xFFFFFFFFFFFFFFFF && chunkSize > 0 {
				entry := ChunkEntry{
					Offset:     offsets[:ndims], // Exclude the last dimension (element size)
					FilterMask: filterMask,
					Size:       chunkSize,
					Address:    chunkAddr,
				}
				entries = append(entries, entry)
			}
		}
	} else {
		// Internal node - recurse into children
		for i := uint16(0); i <= entriesUsed; i++ {
			// Read key (same format as leaf)
			_, err := nr.ReadUint32() // chunk size
			if err != nil {
				return nil, err
			}
			_, err = nr.ReadUint32() // filter mask
			if err != nil {
				return nil, err
			}
			for j := 0; j <= ndims; j++ {
				_, err = nr.ReadUint64() // offset
				if err != nil {
					return nil, err
				}
			}

			// For the last entry, no child pointer
			if i == entriesUsed {
				break
			}

			// Child pointer - address of child B-tree node
			childAddr, err := nr.ReadOffset()
			if err != nil {
				return nil, err
			}

			childEntries, err := readChunkBTreeNode(r, childAddr, ndims)
			if err != nil {
				return nil, err
			}
			entries = append(entries, childEntries...)
		}
	}

	return entries, nil
}

// FindChunk finds the chunk entry that contains the given offset.
// Returns nil if no chunk contains the offset.
func (idx *ChunkIndex) FindChunk(offset []uint64, chunkDims []uint32) *ChunkEntry {
	for i := range idx.Entries {
		entry := &idx.Entries[i]
		match := true
		for d := 0; d < len(offset) && d < len(entry.Offset); d++ {
			chunkStart := entry.Offset[d]
			chunkEnd := chunkStart + uint64(chunkDims[d])
			if offset[d] < chunkStart || offset[d] >= chunkEnd {
				match = false
				break
			}
		}
		if match {
			return entry
		}
	}
	return nil
}

// FindChunkAt descends the v1 B-tree directly for the chunk whose origin
// exactly matches offset, without materializing the whole index. HDF5
// chunk B-tree keys are ordered lexicographically over the (ndims+1)
// offset tuple, so each internal node can be searched for the single
// child subtree that can contain offset instead of visiting every
// sibling. Returns (nil, nil) on a clean miss.
func FindChunkAt(r *binary.Reader, btreeAddr uint64, ndims int, offset []uint64) (*ChunkEntry, error) {
	return findChunkAtNode(r, btreeAddr, ndims, offset)
}

func findChunkAtNode(r *binary.Reader, address uint64, ndims int, offset []uint64) (*ChunkEntry, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading btree signature: %w", err)
	}
	if string(sig) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature: got %q, expected \"TREE\"", string(sig))
	}
	nodeType, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if nodeType != 1 {
		return nil, fmt.Errorf("unexpected B-tree node type: %d (expected 1 for chunk)", nodeType)
	}
	nodeLevel, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	entriesUsed, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}
	if _, err := nr.ReadOffset(); err != nil { // left sibling
		return nil, err
	}
	if _, err := nr.ReadOffset(); err != nil { // right sibling
		return nil, err
	}

	type keyedChild struct {
		keyOffsets []uint64
		childAddr  uint64
		chunkSize  uint32
		filterMask uint32
	}

	var children []keyedChild
	for i := uint16(0); i <= entriesUsed; i++ {
		chunkSize, err := nr.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading chunk size: %w", err)
		}
		filterMask, err := nr.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading filter mask: %w", err)
		}
		keyOffsets := make([]uint64, ndims+1)
		for j := 0; j <= ndims; j++ {
			keyOffsets[j], err = nr.ReadUint64()
			if err != nil {
				return nil, fmt.Errorf("reading chunk offset %d: %w", j, err)
			}
		}
		if i == entriesUsed {
			break
		}
		childAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading chunk address: %w", err)
		}
		children = append(children, keyedChild{keyOffsets, childAddr, chunkSize, filterMask})
	}

	// Binary search for the last child whose key is <= offset.
	lo, hi := 0, len(children)-1
	found := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if keyLessEqual(children[mid].keyOffsets[:ndims], offset) {
			found = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if found < 0 {
		return nil, nil
	}

	child := children[found]
	if nodeLevel == 0 {
		if child.childAddr == 0xFFFFFFFFFFFFFFFF || child.chunkSize == 0 {
			return nil, nil
		}
		for d := 0; d < ndims; d++ {
			if child.keyOffsets[d] != offset[d] {
				return nil, nil
			}
		}
		return &ChunkEntry{
			Offset:     child.keyOffsets[:ndims],
			FilterMask: child.filterMask,
			Size:       child.chunkSize,
			Address:    child.childAddr,
		}, nil
	}
	return findChunkAtNode(r, child.childAddr, ndims, offset)
}

// keyLessEqual reports whether key is lexicographically <= offset.
func keyLessEqual(key, offset []uint64) bool {
	for d := 0; d < len(key) && d < len(offset); d++ {
		if key[d] < offset[d] {
			return true
		}
		if key[d] > offset[d] {
			return false
		}
	}
	return true
}
