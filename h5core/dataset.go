package h5core

import (
	"fmt"
	"path"
	"reflect"

	"github.com/detectorio/h5xds/internal/dtype"
	"github.com/detectorio/h5xds/internal/layout"
	"github.com/detectorio/h5xds/internal/message"
	"github.com/detectorio/h5xds/internal/object"
)

// Dataset represents an HDF5 dataset.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout
}

// newDataset creates a Dataset from an object header.
func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:   f,
		path:   path,
		header: header,
	}

	// Get dataspace
	ds.dataspace = header.Dataspace()
	if ds.dataspace == nil {
		return nil, fmt.Errorf("dataset missing dataspace message")
	}

	// Get datatype
	ds.datatype = header.Datatype()
	if ds.datatype == nil {
		return nil, fmt.Errorf("dataset missing datatype message")
	}

	// Get layout
	layoutMsg := header.DataLayout()
	if layoutMsg == nil {
		return nil, fmt.Errorf("dataset missing layout message")
	}

	// Create layout handler
	filterMsg := header.FilterPipeline()
	var err error
	ds.layout, err = layout.New(layoutMsg, ds.dataspace, ds.datatype, filterMsg, f.reader)
	if err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}

	return ds, nil
}

// Name returns the dataset name (last component of path).
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the full path to this dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Shape returns the dimensions of the dataset.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

// Dims is an alias for Shape.
func (d *Dataset) Dims() []uint64 {
	return d.Shape()
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.dataspace.Rank
}

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() uint64 {
	return d.dataspace.NumElements()
}

// IsScalar returns true if the dataset is a scalar (single value).
func (d *Dataset) IsScalar() bool {
	return d.dataspace.IsScalar()
}

// DtypeSize returns the size of each element in bytes.
func (d *Dataset) DtypeSize() int {
	return int(d.datatype.Size)
}

// DtypeClass returns the datatype class.
func (d *Dataset) DtypeClass() message.DatatypeClass {
	return d.datatype.Class
}

// DataTypeID returns 0 for an integer (fixed-point) datatype or 1 for
// a floating-point datatype, matching the plugin shim's dataTypeId().
func (d *Dataset) DataTypeID() int {
	if d.datatype.Class == message.ClassFloatPoint {
		return 1
	}
	return 0
}

// IsSigned returns true if the datatype is a signed integer. Only
// meaningful when DataTypeID() == 0.
func (d *Dataset) IsSigned() bool {
	return d.datatype.Signed
}

// IsChunked returns true if the dataset is stored in chunks.
func (d *Dataset) IsChunked() bool {
	_, ok := d.layout.(*layout.Chunked)
	return ok
}

// ChunkShape returns the per-axis chunk shape, trimmed to the dataset's
// rank (the on-disk layout message carries one extra trailing axis for
// the element size). Returns nil for a non-chunked dataset.
func (d *Dataset) ChunkShape() []uint64 {
	layoutMsg := d.header.DataLayout()
	if layoutMsg == nil || layoutMsg.Class != message.LayoutChunked {
		return nil
	}
	dims := layoutMsg.ChunkDims
	if len(dims) > d.dataspace.Rank {
		dims = dims[:d.dataspace.Rank]
	}
	shape := make([]uint64, len(dims))
	for i, v := range dims {
		shape[i] = uint64(v)
	}
	return shape
}

// GoType returns the Go type that corresponds to this dataset's datatype.
func (d *Dataset) GoType() (reflect.Type, error) {
	return dtype.GoType(d.datatype)
}

// Read reads all data from the dataset into dest.
// dest should be a pointer to a slice of the appropriate type.
func (d *Dataset) Read(dest interface{}) error {
	// Read raw data
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading data: %w", err)
	}

	// Convert to Go types
	numElements := d.dataspace.NumElements()
	return dtype.Convert(d.datatype, raw, numElements, dest)
}

// ReadRaw reads all data from the dataset as raw bytes.
func (d *Dataset) ReadRaw() ([]byte, error) {
	return d.layout.Read()
}

// ReadFloat64 reads the dataset as float64 values.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	var result []float64
	err := d.Read(&result)
	return result, err
}

// ReadFloat32 reads the dataset as float32 values.
func (d *Dataset) ReadFloat32() ([]float32, error) {
	var result []float32
	err := d.Read(&result)
	return result, err
}

// ReadInt64 reads the dataset as int64 values.
func (d *Dataset) ReadInt64() ([]int64, error) {
	var result []int64
	err := d.Read(&result)
	return result, err
}

// ReadInt32 reads the dataset as int32 values.
func (d *Dataset) ReadInt32() ([]int32, error) {
	var result []int32
	err := d.Read(&result)
	return result, err
}

// ReadString reads the dataset as string values.
func (d *Dataset) ReadString() ([]string, error) {
	var result []string
	err := d.Read(&result)
	return result, err
}

// ReadInt8 reads the dataset as int8 values.
func (d *Dataset) ReadInt8() ([]int8, error) {
	var result []int8
	err := d.Read(&result)
	return result, err
}

// ReadInt16 reads the dataset as int16 values.
func (d *Dataset) ReadInt16() ([]int16, error) {
	var result []int16
	err := d.Read(&result)
	return result, err
}

// ReadUint8 reads the dataset as uint8 values.
func (d *Dataset) ReadUint8() ([]uint8, error) {
	var result []uint8
	err := d.Read(&result)
	return result, err
}

// ReadUint16 reads the dataset as uint16 values.
func (d *Dataset) ReadUint16() ([]uint16, error) {
	var result []uint16
	err := d.Read(&result)
	return result, err
}

// ReadUint32 reads the dataset as uint32 values.
func (d *Dataset) ReadUint32() ([]uint32, error) {
	var result []uint32
	err := d.Read(&result)
	return result, err
}

// ReadUint64 reads the dataset as uint64 values.
func (d *Dataset) ReadUint64() ([]uint64, error) {
	var result []uint64
	err := d.Read(&result)
	return result, err
}

// ReadChunk reads a single chunk's raw bytes, identified by its origin
// (the starting logical index along each dimension). It is the building
// block for frame-at-a-time access to large chunked detector datasets,
// where decoding the whole dataset up front is wasteful.
func (d *Dataset) ReadChunk(origin []uint64) ([]byte, error) {
	chunked, ok := d.layout.(*layout.Chunked)
	if !ok {
		return nil, NewArgumentError("dataset.ReadChunk", d.path, fmt.Errorf("dataset is not chunked"))
	}
	if len(origin) != d.dataspace.Rank {
		return nil, NewArgumentError("dataset.ReadChunk", d.path, fmt.Errorf("origin has %d dimensions, dataset has %d", len(origin), d.dataspace.Rank))
	}
	for i, o := range origin {
		if i < len(d.dataspace.Dimensions) && o >= d.dataspace.Dimensions[i] {
			return nil, NewNotFound("dataset.ReadChunk", d.path, fmt.Errorf("chunk origin %v lies beyond the dataset extent %v", origin, d.dataspace.Dimensions))
		}
	}
	data, err := chunked.ReadChunkAt(origin)
	if err != nil {
		return nil, NewIoError("dataset.ReadChunk", d.path, err)
	}
	return data, nil
}
