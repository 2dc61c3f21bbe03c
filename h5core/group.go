package h5core

import (
	"fmt"
	"path"

	"github.com/detectorio/h5xds/internal/btree"
	"github.com/detectorio/h5xds/internal/checksum"
	"github.com/detectorio/h5xds/internal/heap"
	"github.com/detectorio/h5xds/internal/message"
	"github.com/detectorio/h5xds/internal/object"
)

// Group represents an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
}

// linkResolution holds the result of resolving a link.
type linkResolution struct {
	address   uint64 // Object address
	isDataset bool   // True if target is a dataset
	file      *File  // Target file (nil = same file, non-nil = external file)
}

// Name returns the group name (last component of path).
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the full path to this group.
func (g *Group) Path() string {
	return g.path
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}

	group, ok := obj.(*Group)
	if !ok {
		return nil, ErrNotGroup
	}
	return group, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}

	dataset, ok := obj.(*Dataset)
	if !ok {
		return nil, ErrNotDataset
	}
	return dataset, nil
}

// open opens an object by relative path.
func (g *Group) open(relativePath string) (interface{}, error) {
	parts := splitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	current := g
	visited := make(map[string]bool)

	for i, name := range parts {
		res, err := current.findChildFull(name, visited)
		if err != nil {
			return nil, fmt.Errorf("finding %q: %w", name, err)
		}

		// Determine which file to use for opening the object
		targetFile := current.file
		if res.file != nil {
			targetFile = res.file
		}

		fullPath := path.Join(current.path, name)

		// If this is the last component, open as appropriate type
		if i == len(parts)-1 {
			if res.isDataset {
				return targetFile.openDatasetAt(res.address, fullPath)
			}
			return targetFile.openGroupAt(res.address, fullPath)
		}

		// Otherwise, must be a group to continue traversal
		if res.isDataset {
			return nil, NewArgumentError("group.open", fullPath, fmt.Errorf("%q is not a group", fullPath))
		}

		nextGroup, err := targetFile.openGroupAt(res.address, fullPath)
		if err != nil {
			return nil, err
		}
		current = nextGroup
	}

	return current, nil
}

// findChild finds a child object by name and returns its address.
// Returns (address, isDataset, error).
func (g *Group) findChild(name string) (uint64, bool, error) {
	res, err := g.findChildFull(name, make(map[string]bool))
	if err != nil {
		return 0, false, err
	}
	return res.address, res.isDataset, nil
}

// findChildFull finds a child and returns full resolution info, dispatching
// to whichever of the two group-indexing mechanisms this group's object
// header advertises: the version-1 local-heap + symbol-table B-tree, or
// the version-2 fractal-heap + B-tree-by-name-hash pairing (LinkInfo
// message). A group never carries both.
func (g *Group) findChildFull(name string, visited map[string]bool) (*linkResolution, error) {
	if linkInfoMsg := g.header.GetMessage(message.TypeLinkInfo); linkInfoMsg != nil {
		li := linkInfoMsg.(*message.LinkInfo)
		return g.findChildV2Full(name, li, visited)
	}

	// Try to find via direct Link messages stored on the object header
	// itself (a v2 group with few enough links that none were pushed
	// into the fractal heap, or a group predating LinkInfo support).
	for _, msg := range g.header.GetMessages(message.TypeLink) {
		link := msg.(*message.Link)
		if link.Name == name {
			return g.resolveLink(link, visited)
		}
	}

	// Try symbol table (v1 groups) - requires B-tree traversal
	symMsg := g.header.GetMessage(message.TypeSymbolTable)
	if symMsg != nil {
		symTable := symMsg.(*message.SymbolTable)
		return g.findChildV1Full(name, symTable, visited)
	}

	// Fallback for root group: use cached addresses from superblock scratch pad
	if g.path == "/" && g.file.superblock.RootGroupBTreeAddress != 0 {
		symTable := &message.SymbolTable{
			BTreeAddress:     g.file.superblock.RootGroupBTreeAddress,
			LocalHeapAddress: g.file.superblock.RootGroupLocalHeapAddress,
		}
		return g.findChildV1Full(name, symTable, visited)
	}

	return nil, NewNotFound("group.findChild", path.Join(g.path, name), causeNotFound)
}

// findChildV2Full resolves a name against a version-2 group: hash the
// name with Jenkins lookup3, look up the hash in the name-indexed B-tree,
// and resolve the returned heap ID against the group's fractal heap to
// get the actual Link message bytes.
func (g *Group) findChildV2Full(name string, li *message.LinkInfo, visited map[string]bool) (*linkResolution, error) {
	if !li.HasFractalHeap(g.file.reader) {
		return nil, NewNotFound("group.findChildV2", path.Join(g.path, name), causeNotFound)
	}

	fh, err := heap.ReadFractalHeap(g.file.reader, li.FractalHeapAddress)
	if err != nil {
		return nil, NewFormatError("group.findChildV2", g.path, err)
	}

	hash := checksum.Lookup3([]byte(name))
	heapIDBytes, err := btree.LookupLinkByHash(g.file.reader, li.NameBTreeAddress, hash)
	if err != nil {
		return nil, NewFormatError("group.findChildV2", g.path, err)
	}
	if heapIDBytes == nil {
		return nil, NewNotFound("group.findChildV2", path.Join(g.path, name), causeNotFound)
	}

	managedID, ok := heap.ParseManagedHeapID(heapIDBytes, g.file.reader.OffsetSize(), g.file.reader.LengthSize())
	if !ok {
		return nil, NewUnsupported("group.findChildV2", g.path, fmt.Errorf("huge/tiny fractal heap IDs are not supported"))
	}

	linkData, err := fh.ResolveManaged(managedID.Offset, managedID.Length)
	if err != nil {
		return nil, NewFormatError("group.findChildV2", g.path, err)
	}

	link, err := message.ParseLinkRecord(linkData, g.file.reader)
	if err != nil {
		return nil, NewFormatError("group.findChildV2", g.path, err)
	}
	if link.Name != name {
		// Hash matched a different name: a genuine collision, treat as miss.
		return nil, NewNotFound("group.findChildV2", path.Join(g.path, name), causeNotFound)
	}

	return g.resolveLink(link, visited)
}

// resolveLink resolves a link to get the target object's address.
func (g *Group) resolveLink(link *message.Link, visited map[string]bool) (*linkResolution, error) {
	switch {
	case link.IsHard():
		isDataset, err := g.isDataset(link.ObjectAddress)
		if err != nil {
			return nil, err
		}
		return &linkResolution{
			address:   link.ObjectAddress,
			isDataset: isDataset,
			file:      nil, // Same file
		}, nil

	case link.IsSoft():
		targetPath := link.SoftLinkValue
		if len(visited) >= MaxLinkDepth {
			return nil, ErrLinkDepth
		}
		if visited[targetPath] {
			return nil, NewFormatError("group.resolveLink", targetPath, fmt.Errorf("circular soft link"))
		}
		visited[targetPath] = true
		res, err := g.file.findByAbsolutePathFull(targetPath, visited)
		if err != nil {
			return nil, err
		}
		return res, nil

	case link.IsExternal():
		// File.resolveExternalLink opens the external file (caching the
		// opened *File) and resolves the link's path inside it; no
		// redirect is handed back to the caller here. File.RedirectExternalLink
		// computes the (filename, path) target without opening anything.
		addr, isDs, extFile, err := g.file.resolveExternalLink(
			link.ExternalFile, link.ExternalPath, visited)
		if err != nil {
			return nil, err
		}
		return &linkResolution{
			address:   addr,
			isDataset: isDs,
			file:      extFile,
		}, nil

	default:
		return nil, NewUnsupported("group.resolveLink", g.path, fmt.Errorf("unknown link type: %d", link.LinkType))
	}
}

// findChildV1 finds a child in a v1 group using the symbol table.
func (g *Group) findChildV1(name string, symTable *message.SymbolTable) (uint64, bool, error) {
	res, err := g.findChildV1Full(name, symTable, make(map[string]bool))
	if err != nil {
		return 0, false, err
	}
	return res.address, res.isDataset, nil
}

// findChildV1Full finds a child in a v1 group with full resolution info.
func (g *Group) findChildV1Full(name string, symTable *message.SymbolTable, visited map[string]bool) (*linkResolution, error) {
	// Read the local heap to get string names
	localHeap, err := heap.ReadLocalHeap(g.file.reader, symTable.LocalHeapAddress)
	if err != nil {
		return nil, NewFormatError("group.findChildV1", g.path, err)
	}

	// Read the B-tree to get group entries
	entries, err := btree.ReadGroupEntries(g.file.reader, symTable.BTreeAddress, localHeap)
	if err != nil {
		return nil, NewFormatError("group.findChildV1", g.path, err)
	}

	// Find the named entry
	for _, entry := range entries {
		if entry.Name == name {
			// Check if this is a soft link
			if entry.LinkType == 1 {
				// Soft link - resolve the target path
				targetPath := entry.SoftLinkValue
				if len(visited) >= MaxLinkDepth {
					return nil, ErrLinkDepth
				}
				if visited[targetPath] {
					return nil, NewFormatError("group.findChildV1", targetPath, fmt.Errorf("circular soft link"))
				}
				visited[targetPath] = true
				addr, isDs, err := g.file.findByAbsolutePath(targetPath, visited)
				if err != nil {
					return nil, err
				}
				return &linkResolution{
					address:   addr,
					isDataset: isDs,
					file:      nil, // Same file (v1 groups don't support external links)
				}, nil
			}

			// Hard link - return object address
			isDataset, err := g.isDataset(entry.ObjectAddress)
			if err != nil {
				return nil, err
			}
			return &linkResolution{
				address:   entry.ObjectAddress,
				isDataset: isDataset,
				file:      nil,
			}, nil
		}
	}

	return nil, NewNotFound("group.findChildV1", path.Join(g.path, name), causeNotFound)
}

// isDataset checks if an object at the given address is a dataset.
func (g *Group) isDataset(address uint64) (bool, error) {
	header, err := object.Read(g.file.reader, address)
	if err != nil {
		return false, NewFormatError("group.isDataset", g.path, err)
	}

	// A dataset has a dataspace message
	return header.GetMessage(message.TypeDataspace) != nil, nil
}
