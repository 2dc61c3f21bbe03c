package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	binpkg "github.com/detectorio/h5xds/internal/binary"
)

// DatatypeClass represents the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0  // Integers
	ClassFloatPoint DatatypeClass = 1  // Floating-point
	ClassTime       DatatypeClass = 2  // Time (rarely used)
	ClassString     DatatypeClass = 3  // Strings
	ClassBitfield   DatatypeClass = 4  // Bitfields
	ClassOpaque     DatatypeClass = 5  // Opaque data
	ClassCompound   DatatypeClass = 6  // Compound types (structs)
	ClassReference  DatatypeClass = 7  // References to objects/regions
	ClassEnum       DatatypeClass = 8  // Enumerated types
	ClassVarLen     DatatypeClass = 9  // Variable-length data
	ClassArray      DatatypeClass = 10 // Fixed-size arrays
)

// ErrUnsupportedClass is returned by the datatype parser for any class
// other than ClassFixedPoint and ClassFloatPoint. The detector pipeline
// this package serves only ever reads integer and floating-point pixel
// data and scalar metadata.
var ErrUnsupportedClass = errors.New("unsupported datatype class")

// ByteOrder represents the byte order of numeric types.
type ByteOrder uint8

const (
	OrderLE   ByteOrder = 0 // Little-endian
	OrderBE   ByteOrder = 1 // Big-endian
	OrderVAX  ByteOrder = 2 // VAX mixed-endian (rare)
	OrderNone ByteOrder = 3 // Not applicable
)

// Datatype represents a datatype message (type 0x0003).
type Datatype struct {
	Class     DatatypeClass
	ClassBits uint32 // Class-specific bit field
	Size      uint32

	// Class-specific properties
	ByteOrder ByteOrder

	// Fixed-point specific
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool

	// Float-point specific (mantissa/exponent info stored in ClassBits)

	// Raw properties data for complex types
	Properties []byte
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsInteger returns true if this is an integer type.
func (m *Datatype) IsInteger() bool {
	return m.Class == ClassFixedPoint
}

// IsFloat returns true if this is a floating-point type.
func (m *Datatype) IsFloat() bool {
	return m.Class == ClassFloatPoint
}

func parseDatatype(data []byte, r *binpkg.Reader) (*Datatype, error) {
	dt, _, err := parseDatatypeWithSize(data, r)
	return dt, err
}

// parseDatatypeWithSize parses a datatype and returns the total bytes consumed.
// Only ClassFixedPoint and ClassFloatPoint are recognized; every other class
// yields ErrUnsupportedClass.
func parseDatatypeWithSize(data []byte, r *binpkg.Reader) (*Datatype, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("datatype message too short")
	}

	classAndVersion := data[0]
	class := DatatypeClass(classAndVersion & 0x0F)
	// version := classAndVersion >> 4

	classBits := uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16
	size := binary.LittleEndian.Uint32(data[4:8])

	if class != ClassFixedPoint && class != ClassFloatPoint {
		return nil, 0, fmt.Errorf("%w: class %d", ErrUnsupportedClass, class)
	}

	propsSize := calcPropertiesSize(class)

	dt := &Datatype{
		Class:      class,
		ClassBits:  classBits,
		Size:       size,
		Properties: data[8 : 8+propsSize],
	}

	props := data[8:]

	switch class {
	case ClassFixedPoint:
		dt.ByteOrder = ByteOrder(classBits & 0x01)
		if classBits&0x08 != 0 {
			dt.Signed = true
		}
		if len(props) >= 4 {
			dt.BitOffset = binary.LittleEndian.Uint16(props[0:2])
			dt.BitPrecision = binary.LittleEndian.Uint16(props[2:4])
		}

	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(classBits & 0x01)
		// Float properties contain bit positions for sign, exponent, mantissa.
		// We store them in Properties for later use.
	}

	return dt, 8 + propsSize, nil
}

// calcPropertiesSize returns the size of the class-specific properties
// block for the two supported classes.
func calcPropertiesSize(class DatatypeClass) int {
	switch class {
	case ClassFixedPoint:
		return 4 // bit offset (2) + bit precision (2)
	case ClassFloatPoint:
		return 12 // bit offset (2) + bit precision (2) + exp location (1) + exp size (1) + mant location (1) + mant size (2) + exp bias (4)
	default:
		return 0
	}
}
