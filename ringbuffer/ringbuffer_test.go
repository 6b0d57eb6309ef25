package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xrpa-io/xrpa-go/xrpamem"
)

func newTestRing(poolSize int32) *PlacedRingBuffer {
	mem := make([]byte, MemSize(poolSize))
	r := At(mem, 0)
	r.Init(poolSize)
	return r
}

func writeBytes(a xrpamem.Accessor, data []byte) {
	for i, b := range data {
		xrpamem.WriteValue[uint8](a, b, int32(i))
	}
}

func readBytes(a xrpamem.Accessor, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = xrpamem.ReadValue[uint8](a, int32(i))
	}
	return out
}

func TestPushAndGet(t *testing.T) {
	r := newTestRing(256)

	acc, id := r.Push(8)
	require.False(t, acc.IsNull())
	require.Equal(t, int32(0), id)
	writeBytes(acc, []byte("abcdefgh"))

	require.Equal(t, int32(1), r.Count())
	got := r.GetByID(0)
	require.Equal(t, []byte("abcdefgh"), readBytes(got, 8))
}

func TestMonotonicIDs(t *testing.T) {
	r := newTestRing(256)
	for i := 0; i < 5; i++ {
		_, id := r.Push(4)
		require.Equal(t, int32(i), id)
	}
	require.Equal(t, int32(0), r.GetMinID())
	require.Equal(t, int32(4), r.GetMaxID())
}

func TestShiftEvictsOldest(t *testing.T) {
	r := newTestRing(256)
	_, id0 := r.Push(4)
	_, _ = r.Push(4)

	shifted := r.Shift()
	require.False(t, shifted.IsNull())
	require.Equal(t, int32(1), r.Count())
	require.Equal(t, int32(1), r.GetMinID())
	require.True(t, r.GetByID(id0).IsNull())
}

func TestPushEvictsWhenFull(t *testing.T) {
	// small pool forces eviction once it fills up
	r := newTestRing(40)
	var lastID int32
	for i := 0; i < 10; i++ {
		_, id := r.Push(8)
		lastID = id
	}
	require.Equal(t, int32(9), lastID)
	require.Less(t, r.Count(), int32(10))
	require.True(t, r.GetByID(0).IsNull(), "oldest entries should have been evicted")
}

func TestIteratorBasic(t *testing.T) {
	r := newTestRing(256)
	it := NewIterator()
	require.False(t, it.HasNext(r))

	r.Push(4)
	r.Push(4)
	require.True(t, it.HasNext(r))

	first := it.Next(r)
	require.False(t, first.IsNull())
	second := it.Next(r)
	require.False(t, second.IsNull())
	require.False(t, it.HasNext(r))
}

func TestIteratorHasMissedEntries(t *testing.T) {
	r := newTestRing(40)
	it := NewIterator()
	for i := 0; i < 10; i++ {
		r.Push(8)
	}
	require.True(t, it.HasMissedEntries(r))
}

func TestIteratorSetToEnd(t *testing.T) {
	r := newTestRing(256)
	r.Push(4)
	r.Push(4)
	it := NewIterator()
	it.SetToEnd(r)
	require.False(t, it.HasNext(r))

	r.Push(4)
	require.True(t, it.HasNext(r))
}

func TestResetClearsState(t *testing.T) {
	r := newTestRing(256)
	r.Push(4)
	r.Push(4)
	r.Reset()
	require.Equal(t, int32(0), r.Count())
}
