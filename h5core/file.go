package h5core

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/detectorio/h5xds/internal/binary"
	"github.com/detectorio/h5xds/internal/object"
	"github.com/detectorio/h5xds/internal/superblock"
	"github.com/detectorio/h5xds/internal/window"
)

// File represents an open HDF5 file, backed by a memory-mapped byte
// window rather than buffered os.File reads.
type File struct {
	path          string
	win           *window.Window
	reader        *binary.Reader
	superblock    *superblock.Superblock
	root          *Group
	closed        bool
	externalFiles map[string]*File // Cache of opened external files
}

// Open opens an HDF5 file for reading.
func Open(path string) (*File, error) {
	win, err := window.Open(path)
	if err != nil {
		return nil, NewIoError("h5core.Open", path, err)
	}

	// Parse superblock
	sb, err := superblock.Read(win)
	if err != nil {
		win.Close()
		return nil, NewFormatError("h5core.Open", path, err)
	}

	// Create reader with correct configuration
	reader := binary.NewReader(win, sb.ReaderConfig())

	hdf := &File{
		path:       path,
		win:        win,
		reader:     reader,
		superblock: sb,
	}

	// Load root group
	root, err := hdf.openGroupAt(sb.RootGroupAddress, "/")
	if err != nil {
		win.Close()
		return nil, NewFormatError("h5core.Open", path, fmt.Errorf("opening root group: %w", err))
	}
	hdf.root = root

	return hdf, nil
}

// Close closes the HDF5 file and all opened external files.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	// Close all external files
	for _, extFile := range f.externalFiles {
		extFile.Close()
	}
	f.externalFiles = nil

	return f.win.Close()
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Version returns the superblock version.
func (f *File) Version() int {
	return int(f.superblock.Version)
}

// OpenGroup opens a group by path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// openGroupAt opens a group at the given address.
func (f *File) openGroupAt(address uint64, path string) (*Group, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}

	return &Group{
		file:   f,
		path:   path,
		header: header,
	}, nil
}

// openDatasetAt opens a dataset at the given address.
func (f *File) openDatasetAt(address uint64, path string) (*Dataset, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, fmt.Errorf("reading object header: %w", err)
	}

	return newDataset(f, path, header)
}

// normalizePath normalizes a path, handling leading/trailing slashes.
func normalizePath(path string) string {
	// Remove leading slash for relative paths
	path = strings.TrimPrefix(path, "/")
	// Remove trailing slash
	path = strings.TrimSuffix(path, "/")
	return path
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	path = normalizePath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// findByAbsolutePath navigates an absolute path and returns the target's address.
// This is used for resolving soft links. The visited map tracks paths to detect cycles.
func (f *File) findByAbsolutePath(absPath string, visited map[string]bool) (uint64, bool, error) {
	res, err := f.findByAbsolutePathFull(absPath, visited)
	if err != nil {
		return 0, false, err
	}
	return res.address, res.isDataset, nil
}

// findByAbsolutePathFull navigates an absolute path and returns the full resolution info.
// This handles cases where the target is in an external file.
func (f *File) findByAbsolutePathFull(absPath string, visited map[string]bool) (*linkResolution, error) {
	parts := splitPath(absPath)
	if len(parts) == 0 {
		// Path is "/" - return root group
		// Root group address comes from superblock
		return &linkResolution{
			address:   f.superblock.RootGroupAddress,
			isDataset: false,
			file:      nil,
		}, nil
	}

	current := f.root
	currentFile := f

	for i, name := range parts {
		res, err := current.findChildFull(name, visited)
		if err != nil {
			return nil, fmt.Errorf("resolving %q in path %s: %w", name, absPath, err)
		}

		// If this component resolved to an external file, switch context
		if res.file != nil {
			currentFile = res.file
		}

		if i == len(parts)-1 {
			// Last component - return this resolution
			return res, nil
		}

		// Not the last component - must be a group to continue traversal
		if res.isDataset {
			return nil, fmt.Errorf("%q is not a group in path %s", name, absPath)
		}

		// Open the next group in the appropriate file
		nextGroup, err := currentFile.openGroupAt(res.address, "")
		if err != nil {
			return nil, fmt.Errorf("opening group %q: %w", name, err)
		}
		current = nextGroup
	}

	// Should not reach here
	return nil, fmt.Errorf("empty path")
}

// openExternalFile opens an external file by name, relative to the current file's directory.
// Files are cached to avoid repeated opens.
func (f *File) openExternalFile(filename string) (*File, error) {
	// Check cache first
	if f.externalFiles != nil {
		if extFile, ok := f.externalFiles[filename]; ok {
			return extFile, nil
		}
	}

	// Resolve path relative to current file's directory
	baseDir := filepath.Dir(f.path)
	extPath := filepath.Join(baseDir, filename)

	// Open the external file
	extFile, err := Open(extPath)
	if err != nil {
		return nil, fmt.Errorf("opening external file %q: %w", extPath, err)
	}

	// Cache it
	if f.externalFiles == nil {
		f.externalFiles = make(map[string]*File)
	}
	f.externalFiles[filename] = extFile

	return extFile, nil
}

// RedirectExternalLink reports where an external link points without
// opening the referenced file. This is the resolver-level behavior the
// core commits to: discovering a link is external is not the same
// operation as following it, and the caller (or a higher layer acting
// on its behalf) decides whether opening the target file is warranted.
func (f *File) RedirectExternalLink(extFile, extPath string) (filename, remainingPath string) {
	return extFile, extPath
}

// resolveExternalLink follows an external link and returns the target's
// address and file, for traversal paths that need to continue resolving
// through it. The visited map tracks paths to detect cycles across files.
func (f *File) resolveExternalLink(extFile string, extPath string, visited map[string]bool) (uint64, bool, *File, error) {
	// Check depth limit
	if len(visited) >= MaxLinkDepth {
		return 0, false, nil, ErrLinkDepth
	}

	// Create a unique key for cycle detection
	linkKey := extFile + ":" + extPath
	if visited[linkKey] {
		return 0, false, nil, NewFormatError("file.resolveExternalLink", linkKey, fmt.Errorf("circular external link"))
	}
	visited[linkKey] = true

	// Open the external file
	targetFile, err := f.openExternalFile(extFile)
	if err != nil {
		return 0, false, nil, err
	}

	// Resolve the path in the external file
	addr, isDataset, err := targetFile.findByAbsolutePath(extPath, visited)
	if err != nil {
		return 0, false, nil, NewNotFound("file.resolveExternalLink", extPath, err)
	}

	return addr, isDataset, targetFile, nil
}
