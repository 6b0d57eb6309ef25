// Package xrpamem implements the bounds-checked, sliceable memory window
// used by everything else in this module to read and write typed values
// over a shared []byte-backed region, whether heap-allocated or mmap'd.
package xrpamem

import (
	"unsafe"
)

// Accessor is a bounds-checked view over a region of bytes: a base slice
// plus an offset and size window into it. It is the Go equivalent of the
// C++ MemoryAccessor template: instead of template specialization per
// type, ReadValue/WriteValue use generics constrained to fixed-size
// numeric types, and a dedicated pair handles length-prefixed byte blobs.
type Accessor struct {
	mem    []byte
	offset int32
	size   int32
}

// NewAccessor returns an Accessor over mem[offset:offset+size].
func NewAccessor(mem []byte, offset, size int32) Accessor {
	return Accessor{mem: mem, offset: offset, size: size}
}

// IsNull reports whether this accessor has no backing memory or zero size.
func (a Accessor) IsNull() bool {
	return a.mem == nil || a.size == 0
}

// Offset returns the accessor's offset into its backing slice.
func (a Accessor) Offset() int32 { return a.offset }

// Size returns the accessor's window size in bytes.
func (a Accessor) Size() int32 { return a.size }

// Slice returns a sub-window of a starting at offset, clamped to the
// remaining size when size is negative or would overrun the parent window.
func (a Accessor) Slice(offset int32, size int32) Accessor {
	if size < 0 || size > a.size-offset {
		size = a.size - offset
	}
	if size < 0 {
		size = 0
	}
	boundsAssert(offset, size, 0, a.size)
	return Accessor{mem: a.mem, offset: a.offset + offset, size: size}
}

// WriteToZeros zero-fills the accessor's entire window.
func (a Accessor) WriteToZeros() {
	for i := int32(0); i < a.size; i++ {
		a.mem[a.offset+i] = 0
	}
}

// CopyFrom copies min(a.size, other.size) bytes from other into a.
func (a Accessor) CopyFrom(other Accessor) {
	if other.IsNull() {
		return
	}
	n := other.size
	if a.size < n {
		n = a.size
	}
	copy(a.mem[a.offset:a.offset+n], other.mem[other.offset:other.offset+n])
}

// RawBytes returns the raw window as a []byte, for callers (e.g. the ring
// buffer implementations) that need to hand a byte slice to another layer.
// Mutations to the returned slice are visible through the accessor.
func (a Accessor) RawBytes(pos, maxBytes int32) []byte {
	boundsAssert(pos, maxBytes, 0, a.size)
	return a.mem[a.offset+pos : a.offset+pos+maxBytes]
}

func boundsAssert(pos, numBytes, minValue, maxValue int32) {
	if pos < minValue || pos+numBytes > maxValue {
		panic("xrpamem: access out of bounds")
	}
}

// Numeric is the set of fixed-width types ReadValue/WriteValue support.
type Numeric interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// ReadValue reads a little-endian T at byte offset pos within a's window.
func ReadValue[T Numeric](a Accessor, pos int32) T {
	var zero T
	n := int32(unsafe.Sizeof(zero))
	boundsAssert(pos, n, 0, a.size)
	b := a.mem[a.offset+pos : a.offset+pos+n]
	return *(*T)(unsafe.Pointer(&b[0]))
}

// WriteValue writes val as little-endian bytes at byte offset pos within
// a's window.
func WriteValue[T Numeric](a Accessor, val T, pos int32) {
	n := int32(unsafe.Sizeof(val))
	boundsAssert(pos, n, 0, a.size)
	b := a.mem[a.offset+pos : a.offset+pos+n]
	*(*T)(unsafe.Pointer(&b[0])) = val
}

// ReadString reads a length-prefixed UTF-8 string: a little-endian int32
// byte count followed by that many bytes, capped at maxBytes total
// (including the 4-byte length prefix).
func ReadString(a Accessor, pos, maxBytes int32) string {
	byteCount := ReadValue[int32](a, pos)
	if byteCount > maxBytes-4 {
		byteCount = maxBytes - 4
	}
	pos += 4
	boundsAssert(pos, byteCount, 0, a.size)
	b := a.mem[a.offset+pos : a.offset+pos+byteCount]
	return string(b)
}

// WriteString writes val as a length-prefixed UTF-8 string, truncating to
// fit within maxBytes total (including the 4-byte length prefix).
func WriteString(a Accessor, val string, pos, maxBytes int32) {
	byteCount := int32(len(val))
	if byteCount > maxBytes-4 {
		byteCount = maxBytes - 4
	}
	if byteCount < 0 {
		byteCount = 0
	}
	WriteValue[int32](a, byteCount, pos)
	pos += 4
	boundsAssert(pos, byteCount, 0, a.size)
	copy(a.mem[a.offset+pos:a.offset+pos+byteCount], val[:byteCount])
}
