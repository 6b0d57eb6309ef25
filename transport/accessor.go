package transport

import (
	"github.com/xrpa-io/xrpa-go/ringbuffer"
	"github.com/xrpa-io/xrpa-go/xrpamem"
)

// EventAllocator allocates numBytes for a new changelog entry, returning a
// null Accessor if the changelog has no room (ChangelogTooSmall).
type EventAllocator func(numBytes int32) xrpamem.Accessor

// StreamAccessor is handed to the function passed to Transact, scoped to
// the duration of that single locked transaction.
type StreamAccessor struct {
	baseTimestamp uint64
	allocate      EventAllocator
	changelog     *ringbuffer.PlacedRingBuffer
}

func newStreamAccessor(baseTimestamp uint64, allocate EventAllocator, changelog *ringbuffer.PlacedRingBuffer) *StreamAccessor {
	return &StreamAccessor{baseTimestamp: baseTimestamp, allocate: allocate, changelog: changelog}
}

// Changelog exposes the underlying placed ring buffer so a reconciler can
// walk unread entries with its own iterator inside the same transaction
// that a write would use.
func (s *StreamAccessor) Changelog() *ringbuffer.PlacedRingBuffer {
	return s.changelog
}

// WriteChangeEvent allocates headerSize+numBytes in the changelog, writes
// the change type and a timestamp (as a ms offset from the stream's
// base_timestamp, defaulting to now), and returns an accessor over the
// full allocation (header included) so the caller can layer a richer
// accessor, such as a CollectionEventAccessor, on top. It returns the zero
// Accessor if the allocation did not fit (ChangelogTooSmall).
func (s *StreamAccessor) WriteChangeEvent(changeType ChangeType, headerSize, numBytes int32, timestampUs uint64) xrpamem.Accessor {
	mem := s.allocate(headerSize + numBytes)
	if mem.IsNull() {
		return mem
	}
	ev := NewChangeEventAccessor(mem)
	ev.SetChangeType(changeType)
	if timestampUs != 0 {
		ev.SetTimestampOffsetMs(int32((timestampUs - s.baseTimestamp) / 1000))
	} else {
		ev.SetTimestampOffsetMs(s.CurrentTimestampMs())
	}
	return mem
}

// WritePrefilledChangeEvent copies a pre-built event (used when flushing a
// buffered outbound message) into the changelog and fixes up its
// timestamp to be relative to this stream's base_timestamp.
func (s *StreamAccessor) WritePrefilledChangeEvent(prefilled xrpamem.Accessor) xrpamem.Accessor {
	mem := s.allocate(prefilled.Size())
	if mem.IsNull() {
		return mem
	}
	mem.CopyFrom(prefilled)
	ev := NewChangeEventAccessor(mem)
	ev.SetTimestampOffsetMs(s.CurrentTimestampMs())
	return mem
}

// CurrentTimestampMs returns now expressed as a ms offset from the
// stream's base_timestamp, the unit every event timestamp is stored in.
func (s *StreamAccessor) CurrentTimestampMs() int32 {
	return int32((nowMicros() - s.baseTimestamp) / 1000)
}

// BaseTimestamp returns the stream's base_timestamp_us, which callers use
// to turn stored ms offsets back into absolute microsecond timestamps.
func (s *StreamAccessor) BaseTimestamp() uint64 {
	return s.baseTimestamp
}
