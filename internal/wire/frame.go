// Package wire implements the serializer described by the channel wire
// format: a byte payload plus an ordered list of OS handles, with a small
// set of primitive encodings that every transmittable aggregate type is
// built from (spec rules: fixed little-endian, unaligned primitives, a
// platform-word length prefix for variable-length sequences, a minimal-width
// discriminant for sum variants, fields in declaration order, and a one-byte
// placeholder for each handle leaf).
//
// There is no compile-time derive step here (that is the out-of-scope
// front-end named in the module's design notes); instead a small
// reflection-based fallback (reflect.go) walks any struct/slice/array/
// pointer whose element types are themselves transmittable, caching the
// per-type field plan the first time each type is seen.
package wire

import (
	"encoding/binary"
)

// Handle is a placeholder for an OS resource identifier in flight inside a
// Frame. Its concrete meaning (a file descriptor, a transport endpoint, ...)
// is owned by the transport package; wire only needs to count and order them.
type Handle int

// Frame is one transport message: a byte payload and an ordered handle list.
type Frame struct {
	Payload []byte
	Handles []Handle
}

// WireOrder is the byte order used for every fixed-width field: always
// little-endian, regardless of host platform. A frame built on one machine
// may be read back (or inspected, or replayed from a fixture) on another, so
// the wire format fixes its byte order rather than following the host's —
// unlike the length header transport/pipe_other.go writes with
// internal/framing's codec, which uses native order since it never leaves
// the host.
func WireOrder() binary.ByteOrder { return binary.LittleEndian }
