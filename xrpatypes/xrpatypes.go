// Package xrpatypes holds the small value types shared across the data
// exchange substrate: object identifiers, schema hashes and transport
// configuration.
package xrpatypes

import (
	"encoding/binary"
	"fmt"
)

// ObjectUuid is a 128-bit object identifier with a total order, split into
// two uint64 halves so it is directly usable as a Go map key.
type ObjectUuid struct {
	Hi uint64
	Lo uint64
}

// NewObjectUuid builds an ObjectUuid from its two halves.
func NewObjectUuid(hi, lo uint64) ObjectUuid {
	return ObjectUuid{Hi: hi, Lo: lo}
}

// Compare returns -1, 0 or 1 following the hi-then-lo lexicographic order.
func (u ObjectUuid) Compare(o ObjectUuid) int {
	if u.Hi != o.Hi {
		if u.Hi < o.Hi {
			return -1
		}
		return 1
	}
	if u.Lo != o.Lo {
		if u.Lo < o.Lo {
			return -1
		}
		return 1
	}
	return 0
}

// IsZero reports whether this is the zero-value id, which is never a valid
// object id.
func (u ObjectUuid) IsZero() bool {
	return u.Hi == 0 && u.Lo == 0
}

func (u ObjectUuid) String() string {
	return fmt.Sprintf("%016x%016x", u.Hi, u.Lo)
}

// ReadObjectUuid reads an ObjectUuid from a 16-byte little-endian buffer.
func ReadObjectUuid(b []byte) ObjectUuid {
	return ObjectUuid{
		Hi: binary.LittleEndian.Uint64(b[0:8]),
		Lo: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// WriteObjectUuid writes u into a 16-byte little-endian buffer.
func WriteObjectUuid(b []byte, u ObjectUuid) {
	binary.LittleEndian.PutUint64(b[0:8], u.Hi)
	binary.LittleEndian.PutUint64(b[8:16], u.Lo)
}

// HashValue is a 256-bit value used to compare the schema a reader expects
// against the schema a writer produced. xrpa-go never computes one of these,
// it only compares hashes supplied by configuration.
type HashValue [4]uint64

// Equal reports whether h and o are the same hash.
func (h HashValue) Equal(o HashValue) bool {
	return h == o
}

func (h HashValue) String() string {
	return fmt.Sprintf("%016x%016x%016x%016x", h[0], h[1], h[2], h[3])
}

// ReadHashValue reads a HashValue from a 32-byte little-endian buffer.
func ReadHashValue(b []byte) HashValue {
	var h HashValue
	for i := range h {
		h[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return h
}

// WriteHashValue writes h into a 32-byte little-endian buffer.
func WriteHashValue(b []byte, h HashValue) {
	for i := range h {
		binary.LittleEndian.PutUint64(b[i*8:i*8+8], h[i])
	}
}

// TransportConfig describes the shape of a transport stream's backing
// region: the schema it expects and how large the changelog portion is.
type TransportConfig struct {
	SchemaHash         HashValue
	ChangelogByteCount int32
}
