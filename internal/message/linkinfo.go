package message

import (
	"fmt"

	binpkg "github.com/detectorio/h5xds/internal/binary"
)

// LinkInfo represents a link-info message (type 0x0002), present on the
// object header of a version-2 ("new style") group. It points at the two
// structures a fractal-heap-backed group needs: the fractal heap holding
// the packed link records, and the v2 B-tree indexing those records by
// the Jenkins lookup3 hash of the link name.
type LinkInfo struct {
	Version                  uint8
	TrackCreationOrder       bool
	IndexCreationOrder       bool
	MaxCreationIndex         uint64 // valid only if TrackCreationOrder
	FractalHeapAddress       uint64
	NameBTreeAddress         uint64 // v2 B-tree keyed by name hash
	CreationOrderBTreeAddress uint64 // valid only if IndexCreationOrder
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// HasFractalHeap reports whether this group actually has a fractal heap
// backing it (undefined addresses mean the group has no links yet).
func (m *LinkInfo) HasFractalHeap(r *binpkg.Reader) bool {
	return !r.IsUndefinedOffset(m.FractalHeapAddress)
}

func parseLinkInfo(data []byte, r *binpkg.Reader) (*LinkInfo, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("link info message too short")
	}

	info := &LinkInfo{
		Version: data[0],
	}
	flags := data[1]
	info.TrackCreationOrder = flags&0x01 != 0
	info.IndexCreationOrder = flags&0x02 != 0

	offset := 2
	if info.TrackCreationOrder {
		if offset+8 > len(data) {
			return nil, fmt.Errorf("link info creation index truncated")
		}
		info.MaxCreationIndex = decodeUint(data[offset:offset+8], 8, r.ByteOrder())
		offset += 8
	}

	osize := r.OffsetSize()
	if offset+osize > len(data) {
		return nil, fmt.Errorf("link info fractal heap address truncated")
	}
	info.FractalHeapAddress = decodeUint(data[offset:offset+osize], osize, r.ByteOrder())
	offset += osize

	if offset+osize > len(data) {
		return nil, fmt.Errorf("link info name B-tree address truncated")
	}
	info.NameBTreeAddress = decodeUint(data[offset:offset+osize], osize, r.ByteOrder())
	offset += osize

	if info.IndexCreationOrder {
		if offset+osize > len(data) {
			return nil, fmt.Errorf("link info creation order B-tree address truncated")
		}
		info.CreationOrderBTreeAddress = decodeUint(data[offset:offset+osize], osize, r.ByteOrder())
		offset += osize
	}

	return info, nil
}
