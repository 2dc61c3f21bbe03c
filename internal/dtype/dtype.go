package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/detectorio/h5xds/internal/message"
)

// GoType returns the Go reflect.Type that corresponds to the given HDF5 datatype.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}

	switch dt.Class {
	case message.ClassFixedPoint:
		return goTypeFixedPoint(dt)
	case message.ClassFloatPoint:
		return goTypeFloatPoint(dt)
	default:
		return nil, fmt.Errorf("unsupported datatype class: %d", dt.Class)
	}
}

func goTypeFixedPoint(dt *message.Datatype) (reflect.Type, error) {
	signed := dt.Signed

	switch dt.Size {
	case 1:
		if signed {
			return reflect.TypeOf(int8(0)), nil
		}
		return reflect.TypeOf(uint8(0)), nil
	case 2:
		if signed {
			return reflect.TypeOf(int16(0)), nil
		}
		return reflect.TypeOf(uint16(0)), nil
	case 4:
		if signed {
			return reflect.TypeOf(int32(0)), nil
		}
		return reflect.TypeOf(uint32(0)), nil
	case 8:
		if signed {
			return reflect.TypeOf(int64(0)), nil
		}
		return reflect.TypeOf(uint64(0)), nil
	default:
		return nil, fmt.Errorf("unsupported fixed-point size: %d", dt.Size)
	}
}

func goTypeFloatPoint(dt *message.Datatype) (reflect.Type, error) {
	switch dt.Size {
	case 4:
		return reflect.TypeOf(float32(0)), nil
	case 8:
		return reflect.TypeOf(float64(0)), nil
	default:
		return nil, fmt.Errorf("unsupported float size: %d", dt.Size)
	}
}

// ByteOrder returns the binary.ByteOrder for the datatype.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ElementSize returns the size of a single element in bytes.
func ElementSize(dt *message.Datatype) int {
	return int(dt.Size)
}

// IsNumeric returns true if the datatype is a numeric type.
func IsNumeric(dt *message.Datatype) bool {
	return dt.Class == message.ClassFixedPoint || dt.Class == message.ClassFloatPoint
}
