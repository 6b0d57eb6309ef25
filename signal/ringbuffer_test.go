package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferWarmupGatesFirstRead(t *testing.T) {
	r := NewRingBuffer[float32](16, 4, 1)

	out := make([]float32, 2)
	require.True(t, r.ReadInterleavedData(out, 2))
	require.Equal(t, []float32{0, 0}, out, "still warming up, nothing written yet")

	n := r.WriteInterleavedData([]float32{1, 2, 3}, 3)
	require.Equal(t, 3, n)

	require.True(t, r.ReadInterleavedData(out, 2), "still below warmup threshold of 4 frames")
	require.Equal(t, []float32{0, 0}, out)

	r.WriteInterleavedData([]float32{4}, 1)
	require.True(t, r.ReadInterleavedData(out, 2), "warmup threshold reached")
	require.Equal(t, []float32{1, 2}, out)
}

func TestRingBufferUnderflowRearmsWarmup(t *testing.T) {
	r := NewRingBuffer[float32](16, 2, 1)

	// clear the initial warmup gate with exactly the threshold's worth of data
	r.WriteInterleavedData([]float32{1, 2}, 2)
	out := make([]float32, 2)
	ok := r.ReadInterleavedData(out, 2)
	require.True(t, ok, "warmup threshold reached")
	require.Equal(t, []float32{1, 2}, out)

	// buffer is now empty: the next read underflows and re-arms the gate
	ok = r.ReadInterleavedData(out, 2)
	require.False(t, ok)
	require.Equal(t, []float32{0, 0}, out)

	// gate re-armed: a read below the warmup threshold returns zeros even
	// though new data has arrived, until the threshold is met again
	r.WriteInterleavedData([]float32{9}, 1)
	ok = r.ReadInterleavedData(out[:1], 1)
	require.True(t, ok, "below warmup threshold reports no new underflow")
	require.Equal(t, []float32{0}, out[:1])
}

func TestRingBufferWriteWrapsAround(t *testing.T) {
	r := NewRingBuffer[float32](4, 0, 1)

	r.WriteInterleavedData([]float32{1, 2, 3}, 3)
	out := make([]float32, 3)
	r.ReadInterleavedData(out, 3)
	require.Equal(t, []float32{1, 2, 3}, out)

	// write position has wrapped past the end of the 4-frame buffer
	n := r.WriteInterleavedData([]float32{4, 5, 6}, 3)
	require.Equal(t, 3, n)

	out2 := make([]float32, 3)
	r.ReadInterleavedData(out2, 3)
	require.Equal(t, []float32{4, 5, 6}, out2)
}

func TestRingBufferWriteTruncatesWhenFull(t *testing.T) {
	r := NewRingBuffer[float32](4, 0, 1)

	n := r.WriteInterleavedData([]float32{1, 2, 3, 4, 5}, 5)
	require.Equal(t, 4, n, "ring only holds 4 frames; excess is dropped")
}

func TestRingBufferMultiChannelInterleaving(t *testing.T) {
	r := NewRingBuffer[int32](8, 0, 2)

	r.WriteInterleavedData([]int32{1, 10, 2, 20, 3, 30}, 3)
	out := make([]int32, 6)
	ok := r.ReadInterleavedData(out, 3)
	require.True(t, ok)
	require.Equal(t, []int32{1, 10, 2, 20, 3, 30}, out)
}

func TestRingBufferReadDeinterleaved(t *testing.T) {
	r := NewRingBuffer[int32](8, 0, 2)
	r.WriteInterleavedData([]int32{1, 10, 2, 20, 3, 30}, 3)

	out := make([]int32, 6)
	ok := r.ReadDeinterleavedData(out, 3, 3)
	require.True(t, ok)
	require.Equal(t, []int32{1, 2, 3, 10, 20, 30}, out)
}

func TestRingBufferFramesAvailable(t *testing.T) {
	r := NewRingBuffer[float32](8, 0, 2)
	require.Equal(t, 8, r.WriteFramesAvailable())
	require.Equal(t, 0, r.ReadFramesAvailable())

	r.WriteInterleavedData([]float32{1, 1, 2, 2, 3, 3}, 3)
	require.Equal(t, 3, r.ReadFramesAvailable())
	require.Equal(t, 5, r.WriteFramesAvailable())
}
