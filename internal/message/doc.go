// Package message handles parsing of HDF5 object header messages.
//
// Object headers contain a sequence of messages that describe the properties
// of HDF5 objects (groups, datasets, committed datatypes). Each message has
// a type, flags, and type-specific content.
//
// # Message Types
//
// This package defines constants for all HDF5 message types and implements
// parsing for the following:
//
//   - Dataspace (0x0001): Describes the dimensions of a dataset. See [Dataspace].
//   - Datatype (0x0003): Describes the data type of elements. See [Datatype].
//   - Link Info (0x0002): Points to a v2 group's fractal heap and name B-tree. See [LinkInfo].
//   - Link (0x0006): Describes a link to another object. See [Link].
//   - Data Layout (0x0008): Describes how dataset data is stored. See [DataLayout].
//   - Filter Pipeline (0x000B): Lists filters applied to chunks. See [FilterPipeline].
//   - Symbol Table (0x0011): Points to v1 group B-tree and heap. See [SymbolTable].
//   - Continuation (0x0010): Points to additional header data. See [Continuation].
//
// All other message types, including Fill Value (0x0005) and Attribute
// (0x000C), are not decoded and are wrapped in [Unknown].
//
// # Datatype Classes
//
// The [Datatype] message recognizes only the two numeric classes the
// detector pipeline ever stores pixel data or scalar metadata as:
//
//   - ClassFixedPoint (0): Integers (signed/unsigned, various sizes)
//   - ClassFloatPoint (1): IEEE floating-point numbers
//
// Every other class value (time, string, bitfield, opaque, compound,
// reference, enum, variable-length, array) is a recognized constant but
// parsing rejects it with [ErrUnsupportedClass] rather than decoding its
// payload.
//
// # Layout Classes
//
// The [DataLayout] message describes one of three storage layouts:
//
//   - LayoutCompact (0): Data stored in the object header
//   - LayoutContiguous (1): Data in a single contiguous block
//   - LayoutChunked (2): Data in indexed chunks
//
// # Parsing
//
// Use [Parse] to parse a message from raw bytes:
//
//	msg, err := message.Parse(msgType, msgData, msgFlags, reader)
//
// The returned [Message] interface can be type-asserted to the specific
// message type based on its Type() method.
package message
