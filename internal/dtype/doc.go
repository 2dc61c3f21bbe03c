// Package dtype provides HDF5 datatype handling and Go type conversion.
//
// This package bridges the gap between HDF5's type system and Go's type system,
// providing functionality to:
//
//   - Determine the Go type corresponding to an HDF5 datatype
//   - Convert raw HDF5 data bytes to Go values
//
// # Type Mapping Strategy
//
// Only the two numeric classes the object-header parser ever admits are
// mapped:
//
//	HDF5 Class        | Go Type
//	------------------|------------------
//	Fixed-point (int) | int8/16/32/64 or uint8/16/32/64 based on size and signedness
//	Floating-point    | float32 (4 bytes) or float64 (8 bytes)
//
// Every other class (string, compound, array, enum, bitfield, opaque,
// variable-length, reference, time) is rejected during object-header
// parsing before reaching this package.
//
// # Reading Data
//
// Use [Convert] to convert raw bytes to Go values:
//
//	var values []float64
//	err := dtype.Convert(datatype, rawBytes, numElements, &values)
//
// # Key Functions
//
//   - [GoType]: Returns the reflect.Type for an HDF5 datatype
//   - [Convert]: Converts HDF5 bytes to Go values
//   - [ByteOrder]: Returns the binary.ByteOrder for a datatype
//   - [ElementSize]: Returns the size of a single element in bytes
package dtype
