package btree

import (
	"fmt"

	"github.com/detectorio/h5xds/internal/binary"
)

// btreeV2TypeLinkNameHash is B-tree v2 record type 5: links of a
// version-2 ("new style") group, indexed by the Jenkins lookup3 hash of
// the link name.
const btreeV2TypeLinkNameHash uint8 = 5

// LookupLinkByHash descends a v2 B-tree keyed by link-name hash looking
// for a record whose hash matches targetHash. It returns the record's
// raw fractal-heap ID bytes (still to be resolved against the group's
// fractal heap to get the actual link message), or nil on a clean miss.
// A hash collision between two different link names in the same group
// is possible but vanishingly unlikely; this implementation returns the
// first matching record.
func LookupLinkByHash(r *binary.Reader, btreeAddr uint64, targetHash uint32) ([]byte, error) {
	header, err := readBTreeV2Header(r, btreeAddr)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree v2 header: %w", err)
	}
	if header.Type != btreeV2TypeLinkNameHash {
		return nil, fmt.Errorf("unexpected B-tree v2 type: %d (expected %d for link-name index)", header.Type, btreeV2TypeLinkNameHash)
	}
	if header.TotalRecords == 0 {
		return nil, nil
	}
	heapIDSize := int(header.RecordSize) - 4
	if heapIDSize <= 0 {
		return nil, fmt.Errorf("invalid link-name B-tree record size: %d", header.RecordSize)
	}
	if header.Depth == 0 {
		return findLinkRecordLeaf(r, header.RootAddr, int(header.NumRootRecords), heapIDSize, targetHash)
	}
	return findLinkRecordInternal(r, header.RootAddr, int(header.NumRootRecords), header, heapIDSize, int(header.Depth), targetHash)
}

func findLinkRecordLeaf(r *binary.Reader, address uint64, numRecords, heapIDSize int, targetHash uint32) ([]byte, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading leaf signature: %w", err)
	}
	if string(sig) != "BTLF" {
		return nil, fmt.Errorf("invalid B-tree v2 leaf signature: %q (expected BTLF)", string(sig))
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported B-tree v2 leaf version: %d", version)
	}
	if _, err := nr.ReadUint8(); err != nil { // type
		return nil, err
	}

	for i := 0; i < numRecords; i++ {
		hash, err := nr.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading record %d hash: %w", i, err)
		}
		heapID, err := nr.ReadBytes(heapIDSize)
		if err != nil {
			return nil, fmt.Errorf("reading record %d heap ID: %w", i, err)
		}
		if hash == targetHash {
			return heapID, nil
		}
	}
	return nil, nil
}

func findLinkRecordInternal(r *binary.Reader, address uint64, numRecords int, header *btreeV2Header, heapIDSize, depth int, targetHash uint32) ([]byte, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading internal node signature: %w", err)
	}
	if string(sig) != "BTIN" {
		return nil, fmt.Errorf("invalid B-tree v2 internal node signature: %q (expected BTIN)", string(sig))
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported B-tree v2 internal node version: %d", version)
	}
	if _, err := nr.ReadUint8(); err != nil { // type
		return nil, err
	}

	for i := 0; i < numRecords; i++ {
		nr.Skip(int64(header.RecordSize))

		childAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading child pointer %d: %w", i, err)
		}
		childNumRecords, err := nr.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("reading child record count %d: %w", i, err)
		}

		var found []byte
		if depth == 1 {
			found, err = findLinkRecordLeaf(r, childAddr, int(childNumRecords), heapIDSize, targetHash)
		} else {
			found, err = findLinkRecordInternal(r, childAddr, int(childNumRecords), header, heapIDSize, depth-1, targetHash)
		}
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}

	childAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, fmt.Errorf("reading last child pointer: %w", err)
	}
	childNumRecords, err := nr.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("reading last child record count: %w", err)
	}
	if depth == 1 {
		return findLinkRecordLeaf(r, childAddr, int(childNumRecords), heapIDSize, targetHash)
	}
	return findLinkRecordInternal(r, childAddr, int(childNumRecords), header, heapIDSize, depth-1, targetHash)
}
