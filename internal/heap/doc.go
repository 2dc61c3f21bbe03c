// Package heap implements HDF5 heap structures for storing variable-length
// data such as object names.
//
// # Local Heap
//
// The [LocalHeap] (signature "HEAP") stores variable-length data for v0/v1
// groups, primarily object names. Each v0/v1 group has an associated local
// heap where member names are stored as null-terminated strings.
//
// Local heap structure:
//   - Fixed header with data segment size and free list offset
//   - Data segment containing null-terminated strings
//   - Symbol table entries reference strings by offset into this heap
//
// Usage:
//
//	heap, err := heap.ReadLocalHeap(reader, heapAddress)
//	name := heap.GetString(nameOffset)
//
// # Fractal Heap
//
// The [FractalHeap] backs link storage for groups that use a v2 B-tree
// link index instead of a v1 symbol table; see fractal.go.
//
// # Key Types
//
//   - [LocalHeap]: Local heap for group names (v0/v1 groups)
//   - [FractalHeap]: Fractal heap for link storage (dense-link groups)
package heap
