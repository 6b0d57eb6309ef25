package transport

import (
	"github.com/xrpa-io/xrpa-go/ringbuffer"
	"github.com/xrpa-io/xrpa-go/xrpamem"
)

// StreamIterator walks a transport stream's changelog, remembering its
// position across calls so repeated ticks only see new entries.
type StreamIterator struct {
	stream *MemoryStream
	ring   *ringbuffer.Iterator
}

func newStreamIterator(s *MemoryStream) *StreamIterator {
	return &StreamIterator{stream: s, ring: ringbuffer.NewIterator()}
}

// NeedsProcessing performs a lock-free comparison of this iterator's
// remembered position against the header's last_changelog_id to decide
// whether a transact() call is worth making at all.
func (it *StreamIterator) NeedsProcessing() bool {
	if it.stream.mem == nil {
		return false
	}
	h := newHeader(it.stream.mem)
	return it.ring.HasNextUpTo(h.LastChangelogID())
}

// HasMissedEntries reports whether the changelog evicted entries this
// iterator had not yet read, and if so snaps the iterator to the end so
// the caller does not see a torn view of history.
func (it *StreamIterator) HasMissedEntries(changelog *ringbuffer.PlacedRingBuffer) bool {
	if it.ring.HasMissedEntries(changelog) {
		it.ring.SetToEnd(changelog)
		return true
	}
	return false
}

// GetNextEntry returns the next unread changelog entry, or the zero
// Accessor if there is none. Must be called with the stream's mutex held
// (i.e. from within a Transact callback).
func (it *StreamIterator) GetNextEntry(changelog *ringbuffer.PlacedRingBuffer) xrpamem.Accessor {
	return it.ring.Next(changelog)
}
