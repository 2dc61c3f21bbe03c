package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/detectorio/h5xds/h5core"
)

// Error codes mirror the C ABI the plugin shim exposes to its caller.
const (
	ErrNone            = 0
	ErrUsage           = -2
	ErrUnsupportedType = -3
	ErrParse           = -4
)

var log = slog.New(slog.NewJSONHandler(os.Stderr, nil))

// Header is the scalar detector geometry GetHeader reports.
type Header struct {
	NX, NY         int
	NBytes         int
	QX, QY         float32
	NumberOfFrames int
}

// Handle is the plugin's process-wide state: at most one open file,
// its derived pixel mask, and the geometry needed to serve frames. It
// plays the role of the C shim's single global data cache; h5core
// itself holds none of this.
type Handle struct {
	mu sync.Mutex

	file     *h5core.File
	filename string

	dimX, dimY     int
	dataSize       int
	mask           []int32
	xPixelSize     float32
	yPixelSize     float32
	nFramesPerSet  int
	masterFileOnly bool
}

// Open opens filename as the single active file. Only one file may be
// open at a time.
func (h *Handle) Open(filename string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file != nil {
		return fmt.Errorf("can only open one file at a time (already have %q)", h.filename)
	}
	f, err := h5core.Open(filename)
	if err != nil {
		log.Error("cannot open file", "path", filename, "error", err)
		return fmt.Errorf("cannot open %s: %w", filename, err)
	}
	h.file = f
	h.filename = filename
	return nil
}

// Close releases the active file, if any. Closing an already-closed
// handle is a no-op, matching the shim's unconditional reset.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	h.filename = ""
	h.mask = nil
	return err
}

// GetHeader reads geometry, pixel mask, and frame-count metadata and
// returns the fields the plugin shim forwards to its caller.
func (h *Handle) GetHeader() (Header, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return Header{}, fmt.Errorf("no file has been opened yet")
	}

	h.xPixelSize = readOptionalFloat32(h.file, "/entry/instrument/detector/x_pixel_size")
	h.yPixelSize = readOptionalFloat32(h.file, "/entry/instrument/detector/y_pixel_size")

	if err := h.loadPixelMask(); err != nil {
		log.Error("cannot read pixel mask", "file", h.filename, "error", err)
		return Header{}, fmt.Errorf("cannot read pixel mask from %s: %w", h.filename, err)
	}

	nImages, err := readNonZeroUint(h.file, "/entry/instrument/detector/detectorSpecific/nimages")
	if err != nil {
		log.Error("cannot read nimages", "file", h.filename, "error", err)
		return Header{}, fmt.Errorf("cannot read nimages from %s: %w", h.filename, err)
	}

	nTrigger, err := readNonZeroUint(h.file, "/entry/instrument/detector/detectorSpecific/ntrigger")
	if err != nil {
		log.Warn("ntrigger not found, defaulting to 1", "file", h.filename)
		nTrigger = 1
	}

	if err := h.loadFramesPerDataset(); err != nil {
		log.Error("cannot locate data dataset", "file", h.filename, "error", err)
		return Header{}, fmt.Errorf("cannot locate data dataset in %s: %w", h.filename, err)
	}

	return Header{
		NX:             h.dimX,
		NY:             h.dimY,
		NBytes:         h.dataSize,
		QX:             h.xPixelSize,
		QY:             h.yPixelSize,
		NumberOfFrames: int(nImages * nTrigger),
	}, nil
}

// GetData reads and mask-transforms one frame, frameNumber counted
// from 1. Returns a row-major NX*NY int32 array.
func (h *Handle) GetData(frameNumber int) ([]int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.file == nil {
		return nil, fmt.Errorf("no file has been opened yet")
	}
	if frameNumber < 1 {
		return nil, fmt.Errorf("frame numbers start from 1")
	}
	if h.nFramesPerSet == 0 {
		return nil, fmt.Errorf("header has not been read yet")
	}

	global := frameNumber - 1
	datasetNumber := global/h.nFramesPerSet + 1

	var path string
	if h.masterFileOnly {
		if datasetNumber > 1 {
			return nil, fmt.Errorf("not all frames in master but data_000001 not available")
		}
		path = "/entry/data/data"
	} else {
		path = fmt.Sprintf("/entry/data/data_%06d", datasetNumber)
	}

	ds, err := h.file.OpenDataset(path)
	if err != nil {
		log.Error("cannot open frame", "frame", frameNumber, "path", path, "error", err)
		return nil, fmt.Errorf("cannot open frame %d: %w", frameNumber, err)
	}

	within := global % h.nFramesPerSet
	raw, err := ds.ReadChunk([]uint64{uint64(within), 0, 0})
	if err != nil {
		log.Error("cannot read frame", "frame", frameNumber, "path", path, "error", err)
		return nil, fmt.Errorf("cannot open frame %d: %w", frameNumber, err)
	}

	count := h.dimX * h.dimY
	dest := make([]int32, count)
	if err := ApplyMaskAndTransform(dest, raw, h.mask, h.dataSize); err != nil {
		return nil, err
	}
	return dest, nil
}

func (h *Handle) loadPixelMask() error {
	ds, err := h.file.OpenDataset("/entry/instrument/detector/detectorSpecific/pixel_mask")
	if err != nil {
		return err
	}
	dims := ds.Shape()
	if len(dims) != 2 {
		return fmt.Errorf("pixel mask has rank %d, want 2", len(dims))
	}
	h.dimY = int(dims[0])
	h.dimX = int(dims[1])

	raw, err := readAllInt64(ds)
	if err != nil {
		return err
	}
	mask, err := PreprocessPixelMask(raw)
	if err != nil {
		return err
	}
	h.mask = mask
	return nil
}

func (h *Handle) loadFramesPerDataset() error {
	ds, err := h.file.OpenDataset("/entry/data/data_000001")
	masterFileOnly := false
	if err != nil {
		ds, err = h.file.OpenDataset("/entry/data/data")
		if err != nil {
			return fmt.Errorf("neither /entry/data/data_000001 nor /entry/data/data could be opened")
		}
		masterFileOnly = true
	}

	dims := ds.Shape()
	if len(dims) != 3 {
		return fmt.Errorf("data dataset has rank %d, want 3", len(dims))
	}
	if !ds.IsChunked() {
		return fmt.Errorf("data dataset is not chunked")
	}

	h.masterFileOnly = masterFileOnly
	h.nFramesPerSet = int(dims[0])
	h.dataSize = ds.DtypeSize()
	return nil
}

func readOptionalFloat32(f *h5core.File, path string) float32 {
	ds, err := f.OpenDataset(path)
	if err != nil {
		return 0
	}
	v, err := readScalarFloat64(ds)
	if err != nil {
		return 0
	}
	return float32(v)
}

func readNonZeroUint(f *h5core.File, path string) (uint64, error) {
	ds, err := f.OpenDataset(path)
	if err != nil {
		return 0, err
	}
	if ds.DataTypeID() != 0 {
		return 0, fmt.Errorf("%s: unsupported datatype for integer scalar", path)
	}
	v, err := readScalarInt64(ds)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s: value must be positive, got %d", path, v)
	}
	return uint64(v), nil
}

func readScalarInt64(ds *h5core.Dataset) (int64, error) {
	if ds.IsSigned() {
		switch ds.DtypeSize() {
		case 1:
			v, err := ds.ReadInt8()
			return scalarOf64(v, err, func(x int8) int64 { return int64(x) })
		case 2:
			v, err := ds.ReadInt16()
			return scalarOf64(v, err, func(x int16) int64 { return int64(x) })
		case 4:
			v, err := ds.ReadInt32()
			return scalarOf64(v, err, func(x int32) int64 { return int64(x) })
		case 8:
			v, err := ds.ReadInt64()
			return scalarOf64(v, err, func(x int64) int64 { return x })
		}
	} else {
		switch ds.DtypeSize() {
		case 1:
			v, err := ds.ReadUint8()
			return scalarOf64(v, err, func(x uint8) int64 { return int64(x) })
		case 2:
			v, err := ds.ReadUint16()
			return scalarOf64(v, err, func(x uint16) int64 { return int64(x) })
		case 4:
			v, err := ds.ReadUint32()
			return scalarOf64(v, err, func(x uint32) int64 { return int64(x) })
		case 8:
			v, err := ds.ReadUint64()
			return scalarOf64(v, err, func(x uint64) int64 { return int64(x) })
		}
	}
	return 0, fmt.Errorf("unsupported integer size: %d bytes", ds.DtypeSize())
}

func readScalarFloat64(ds *h5core.Dataset) (float64, error) {
	switch ds.DtypeSize() {
	case 4:
		v, err := ds.ReadFloat32()
		return scalarOf64(v, err, func(x float32) float64 { return float64(x) })
	case 8:
		v, err := ds.ReadFloat64()
		return scalarOf64(v, err, func(x float64) float64 { return x })
	}
	return 0, fmt.Errorf("unsupported float size: %d bytes", ds.DtypeSize())
}

func scalarOf64[T any, R any](v []T, err error, convert func(T) R) (R, error) {
	var zero R
	if err != nil {
		return zero, err
	}
	if len(v) == 0 {
		return zero, fmt.Errorf("dataset is empty")
	}
	return convert(v[0]), nil
}

func readAllInt64(ds *h5core.Dataset) ([]int64, error) {
	if ds.DataTypeID() != 0 {
		return nil, fmt.Errorf("dataset is not an integer")
	}
	n := int(ds.NumElements())
	out := make([]int64, n)

	if ds.IsSigned() {
		switch ds.DtypeSize() {
		case 1:
			v, err := ds.ReadInt8()
			if err != nil {
				return nil, err
			}
			for i, x := range v {
				out[i] = int64(x)
			}
		case 2:
			v, err := ds.ReadInt16()
			if err != nil {
				return nil, err
			}
			for i, x := range v {
				out[i] = int64(x)
			}
		case 4:
			v, err := ds.ReadInt32()
			if err != nil {
				return nil, err
			}
			for i, x := range v {
				out[i] = int64(x)
			}
		case 8:
			v, err := ds.ReadInt64()
			if err != nil {
				return nil, err
			}
			copy(out, v)
		default:
			return nil, fmt.Errorf("unsupported datasize for pixel mask: %d bytes", ds.DtypeSize())
		}
		return out, nil
	}

	switch ds.DtypeSize() {
	case 1:
		v, err := ds.ReadUint8()
		if err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = int64(x)
		}
	case 2:
		v, err := ds.ReadUint16()
		if err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = int64(x)
		}
	case 4:
		v, err := ds.ReadUint32()
		if err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = int64(x)
		}
	case 8:
		v, err := ds.ReadUint64()
		if err != nil {
			return nil, err
		}
		for i, x := range v {
			out[i] = int64(x)
		}
	default:
		return nil, fmt.Errorf("unsupported datasize for pixel mask: %d bytes", ds.DtypeSize())
	}
	return out, nil
}
