package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

func testConfig() xrpatypes.TransportConfig {
	return xrpatypes.TransportConfig{
		SchemaHash:         xrpatypes.HashValue{1, 2, 3, 4},
		ChangelogByteCount: 4096,
	}
}

func TestNewHeapStreamInitializes(t *testing.T) {
	s, err := NewHeapStream("test-stream", testConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	h := newHeader(s.mem)
	require.Equal(t, Version, h.TransportVersion())
	require.NotZero(t, h.BaseTimestamp())
	require.Equal(t, int32(-1), h.LastChangelogID())
}

func TestTransactWritesChangeEvent(t *testing.T) {
	s, err := NewHeapStream("test-transact", testConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	ok := s.Transact(time.Second, func(a *StreamAccessor) {
		mem := a.WriteChangeEvent(ChangeShutdown, ChangeEventHeaderSize, 0, 0)
		require.False(t, mem.IsNull())
	})
	require.True(t, ok)

	h := newHeader(s.mem)
	require.Equal(t, int32(0), h.LastChangelogID())
}

func TestIteratorSeesNewEntries(t *testing.T) {
	s, err := NewHeapStream("test-iter", testConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	it := s.CreateIterator()
	require.False(t, it.NeedsProcessing())

	s.Transact(time.Second, func(a *StreamAccessor) {
		a.WriteChangeEvent(ChangeShutdown, ChangeEventHeaderSize, 0, 0)
	})

	require.True(t, it.NeedsProcessing())

	s.Transact(time.Second, func(a *StreamAccessor) {
		changelog := newHeader(s.mem).Changelog()
		require.False(t, it.HasMissedEntries(changelog))
		entry := it.GetNextEntry(changelog)
		require.False(t, entry.IsNull())
		ev := NewChangeEventAccessor(entry)
		require.Equal(t, ChangeShutdown, ev.ChangeType())
	})

	require.False(t, it.NeedsProcessing())
}

func TestCollectionEventRoundTrip(t *testing.T) {
	s, err := NewHeapStream("test-collection-event", testConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	id := xrpatypes.NewObjectUuid(0, 100)

	s.Transact(time.Second, func(a *StreamAccessor) {
		mem := a.WriteChangeEvent(ChangeCreateObject, CollectionEventHeaderSize, 8, 0)
		require.False(t, mem.IsNull())
		ev := NewCollectionEventAccessor(mem)
		ev.SetObjectID(id)
		ev.SetCollectionID(3)
		xrpamem.WriteValue[int32](ev.Data(), 42, 0)
	})

	s.Transact(time.Second, func(a *StreamAccessor) {
		changelog := newHeader(s.mem).Changelog()
		it := s.CreateIterator()
		entry := it.GetNextEntry(changelog)
		require.False(t, entry.IsNull())
		ev := NewCollectionEventAccessor(entry)
		require.Equal(t, id, ev.ObjectID())
		require.Equal(t, int32(3), ev.CollectionID())
		require.Equal(t, int32(42), xrpamem.ReadValue[int32](ev.Data(), 0))
	})
}

func TestNeedsHeartbeat(t *testing.T) {
	s, err := NewHeapStream("test-heartbeat", testConfig(), nil)
	require.NoError(t, err)
	defer s.Close()

	require.False(t, s.NeedsHeartbeat())
}

func TestSharedMemoryStreamRoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := testConfig()

	writer, err := NewSharedMemoryStream("test-shm", dir, config, nil)
	require.NoError(t, err)
	defer writer.Close()

	writer.Transact(time.Second, func(a *StreamAccessor) {
		a.WriteChangeEvent(ChangeShutdown, ChangeEventHeaderSize, 0, 0)
	})

	reader, err := NewSharedMemoryStream("test-shm", dir, config, nil)
	require.NoError(t, err)
	defer reader.Close()

	it := reader.CreateIterator()
	require.True(t, it.NeedsProcessing())
}

func TestRegionNameEncodesVersionAndSchema(t *testing.T) {
	name := RegionName("mystream", testConfig())
	require.Equal(t, "mystream_v9_1", name)
}
