package transport

import (
	"github.com/xrpa-io/xrpa-go/ringbuffer"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// HeaderByteCount is the size, in bytes, of the transport header that
// precedes the changelog's placed ring buffer.
const HeaderByteCount = int32(56)

// Version is the transport header version this package reads and writes.
// Versions below 9 predate the heartbeat/expiration fields; a region
// holding one is treated as stale and reinitialized when a MemoryStream
// first maps it.
const Version = int32(9)

// LegacyHeaderByteCount is the size of the pre-heartbeat (version 8)
// header. xrpa-go never parses this layout; a region written by an old
// peer is recognized by its version field, logged, and reinitialized
// rather than misread.
const LegacyHeaderByteCount = int32(52)

// legacyVersion is the transport_version value written by the pre-heartbeat
// (52-byte) header layout.
const legacyVersion = int32(8)

const (
	offsetTransportVersion = int32(0)
	offsetTotalBytes       = int32(4)
	offsetSchemaHash       = int32(8)
	offsetBaseTimestamp    = int32(40)
	offsetLastChangelogID  = int32(48)
	offsetLastUpdateAgeMs  = int32(52)
)

// header is a view over a transport stream's fixed-size control block.
type header struct {
	mem []byte
}

func newHeader(mem []byte) header {
	return header{mem: mem}
}

func (h header) acc() xrpamem.Accessor {
	return xrpamem.NewAccessor(h.mem, 0, HeaderByteCount)
}

func (h header) TransportVersion() int32 { return xrpamem.ReadValue[int32](h.acc(), offsetTransportVersion) }
func (h header) SetTransportVersion() {
	xrpamem.WriteValue(h.acc(), Version, offsetTransportVersion)
}

func (h header) TotalBytes() int32     { return xrpamem.ReadValue[int32](h.acc(), offsetTotalBytes) }
func (h header) SetTotalBytes(v int32) { xrpamem.WriteValue(h.acc(), v, offsetTotalBytes) }

func (h header) SchemaHash() xrpatypes.HashValue {
	return xrpatypes.ReadHashValue(h.acc().RawBytes(offsetSchemaHash, 32))
}
func (h header) SetSchemaHash(v xrpatypes.HashValue) {
	xrpatypes.WriteHashValue(h.acc().RawBytes(offsetSchemaHash, 32), v)
}

func (h header) BaseTimestamp() uint64 { return xrpamem.ReadValue[uint64](h.acc(), offsetBaseTimestamp) }
func (h header) SetBaseTimestamp(v uint64) {
	xrpamem.WriteValue(h.acc(), v, offsetBaseTimestamp)
}

func (h header) LastChangelogID() int32 {
	return xrpamem.ReadValue[int32](h.acc(), offsetLastChangelogID)
}
func (h header) SetLastChangelogID(v int32) {
	xrpamem.WriteValue(h.acc(), v, offsetLastChangelogID)
}

// LastUpdateAgeMicroseconds returns how long ago (in microseconds, as of
// now) the stream was last written to.
func (h header) LastUpdateAgeMicroseconds(now uint64) uint64 {
	currentElapsedUs := now - h.BaseTimestamp()
	lastElapsedMs := xrpamem.ReadValue[uint32](h.acc(), offsetLastUpdateAgeMs)
	lastElapsedUs := uint64(lastElapsedMs) * 1000
	return currentElapsedUs - lastElapsedUs
}

// SetLastUpdateTimestamp records now as the last-write time, encoded as a
// ms offset from base_timestamp.
func (h header) SetLastUpdateTimestamp(now uint64) {
	elapsedUs := now - h.BaseTimestamp()
	elapsedMs := uint32(elapsedUs / 1000)
	xrpamem.WriteValue(h.acc(), elapsedMs, offsetLastUpdateAgeMs)
}

// Changelog returns the placed ring buffer that follows the header.
func (h header) Changelog() *ringbuffer.PlacedRingBuffer {
	return ringbuffer.At(h.mem, HeaderByteCount)
}

// Initialize lays down a fresh header and changelog for config, following
// the "zero base_timestamp first, set it last" publication order so a
// lock-free reader never observes a partially initialized region.
func (h header) Initialize(config xrpatypes.TransportConfig, now uint64) {
	h.SetBaseTimestamp(0)
	h.SetLastChangelogID(-1)
	h.SetTransportVersion()
	h.SetSchemaHash(config.SchemaHash)
	h.SetTotalBytes(MemSize(config))
	h.Changelog().Init(config.ChangelogByteCount)
	h.SetBaseTimestamp(now)
	h.SetLastUpdateTimestamp(now)
}

// MemSize returns the total number of bytes a transport stream needs for
// the given config, including its header.
func MemSize(config xrpatypes.TransportConfig) int32 {
	return HeaderByteCount + ringbuffer.MemSize(config.ChangelogByteCount)
}

// DetectHeaderVersion peeks at the version field of an existing region
// without fully parsing it, so callers can tell the current header from
// the legacy pre-heartbeat layout before trusting any other field.
func DetectHeaderVersion(mem []byte) int32 {
	if len(mem) < 4 {
		return 0
	}
	return xrpamem.ReadValue[int32](xrpamem.NewAccessor(mem, 0, 4), 0)
}
