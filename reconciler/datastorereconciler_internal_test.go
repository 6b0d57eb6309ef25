package reconciler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrpa-io/xrpa-go/transport"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// fakeCollection is a minimal Collection used to exercise the reconciler's
// own bookkeeping (full-update ordering, dedup) without a real transport
// round trip.
type fakeCollection struct {
	id      int32
	entries []FullUpdateEntry
}

func (f *fakeCollection) CollectionID() int32                                 { return f.id }
func (f *fakeCollection) isLocalOwned() bool                                  { return true }
func (f *fakeCollection) tick()                                               {}
func (f *fakeCollection) writeChanges(*transport.StreamAccessor, xrpatypes.ObjectUuid) {}
func (f *fakeCollection) prepFullUpdate(entries *[]FullUpdateEntry)           { *entries = append(*entries, f.entries...) }
func (f *fakeCollection) processCreate(xrpatypes.ObjectUuid, xrpamem.Accessor) {}
func (f *fakeCollection) processUpdate(xrpatypes.ObjectUuid, xrpamem.Accessor, uint64) bool {
	return false
}
func (f *fakeCollection) processDelete(xrpatypes.ObjectUuid) {}
func (f *fakeCollection) processUpsert(xrpatypes.ObjectUuid, xrpamem.Accessor) {}
func (f *fakeCollection) processMessage(xrpatypes.ObjectUuid, int32, uint64, xrpamem.Accessor) {}
func (f *fakeCollection) processFullReconcile(map[xrpatypes.ObjectUuid]struct{}) {}
func (f *fakeCollection) processShutdown() {}

var _ Collection = (*fakeCollection)(nil)

func TestSendFullUpdateSortsByCreationTimestamp(t *testing.T) {
	r := New(nil, nil, Config{}, nil)

	idA := xrpatypes.NewObjectUuid(0, 1)
	idB := xrpatypes.NewObjectUuid(0, 2)
	idC := xrpatypes.NewObjectUuid(0, 3)

	r.registerCollection(&fakeCollection{id: 1, entries: []FullUpdateEntry{
		{ObjectID: idA, CollectionID: 1, Timestamp: 300},
		{ObjectID: idB, CollectionID: 1, Timestamp: 100},
	}})
	r.registerCollection(&fakeCollection{id: 2, entries: []FullUpdateEntry{
		{ObjectID: idC, CollectionID: 2, Timestamp: 200},
	}})

	r.sendFullUpdate()

	require.True(t, r.pendingOutboundFullUpdate)
	require.Len(t, r.pendingWrites, 3)
	require.Equal(t, idB, r.pendingWrites[0].objectID)
	require.Equal(t, idC, r.pendingWrites[1].objectID)
	require.Equal(t, idA, r.pendingWrites[2].objectID)
}

func TestNotifyObjectNeedsWriteDedupsConsecutive(t *testing.T) {
	r := New(nil, nil, Config{}, nil)
	id := xrpatypes.NewObjectUuid(0, 7)

	r.NotifyObjectNeedsWrite(id, 1)
	r.NotifyObjectNeedsWrite(id, 1)
	r.NotifyObjectNeedsWrite(id, 1)
	require.Len(t, r.pendingWrites, 1)

	r.NotifyObjectNeedsWrite(id, 2)
	require.Len(t, r.pendingWrites, 2)
}

func TestSendMessageExhaustsArenaPanics(t *testing.T) {
	arenaBytes := transport.MessageEventHeaderSize + 8
	r := New(nil, nil, Config{MessageArenaBytes: arenaBytes}, nil)
	id := xrpatypes.NewObjectUuid(0, 1)

	r.SendMessage(id, 1, 1, 8)
	require.Panics(t, func() {
		r.SendMessage(id, 1, 1, 1)
	})
}

func TestShutdownDetachesTransports(t *testing.T) {
	cfg := xrpatypes.TransportConfig{SchemaHash: xrpatypes.HashValue{1, 2, 3, 4}, ChangelogByteCount: 1024}
	s, err := transport.NewHeapStream("recon-shutdown", cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	r := New(nil, s, Config{}, nil)
	r.Shutdown()
	require.Nil(t, r.inbound)
	require.Nil(t, r.outbound)

	// further ticks are no-ops, not panics
	r.TickOutbound()
	r.TickInbound()
}
