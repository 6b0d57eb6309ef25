package signal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xrpa-io/xrpa-go/xrpamem"
)

func makePacketAccessor(numChannels, frameCount, frameRate int32, sampleType SampleType, fill func(SignalChannelData[float32])) xrpamem.Accessor {
	size := CalcPacketSize(numChannels, 4, frameCount)
	mem := xrpamem.NewAccessor(make([]byte, size), 0, size)
	p := NewSignalPacket(mem)
	p.SetFrameCount(frameCount)
	p.SetSampleType(sampleType)
	p.SetNumChannels(numChannels)
	p.SetFrameRate(frameRate)
	if fill != nil {
		fill(AccessChannelData[float32](p))
	}
	return mem
}

func TestInboundSignalDataBuffersMatchingPackets(t *testing.T) {
	in := NewInboundSignalData[float32](1, 100, 0)

	mem := makePacketAccessor(1, 4, 100, SampleFloat32, func(d SignalChannelData[float32]) {
		d.WriteChannelData(0, []float32{1, 2, 3, 4})
	})
	in.OnSignalData(0, mem)

	require.Equal(t, 4, in.ReadFramesAvailable())
	out := make([]float32, 4)
	require.True(t, in.ReadInterleavedData(out, 4))
	require.Equal(t, []float32{1, 2, 3, 4}, out)
}

func TestInboundSignalDataDropsMismatchedSampleType(t *testing.T) {
	in := NewInboundSignalData[float32](1, 100, 0)

	mem := makePacketAccessor(1, 4, 100, SampleInt32, nil)
	in.OnSignalData(0, mem)

	require.Equal(t, 0, in.ReadFramesAvailable())
}

func TestInboundSignalDataDropsMismatchedFrameRate(t *testing.T) {
	in := NewInboundSignalData[float32](1, 100, 0)

	mem := makePacketAccessor(1, 4, 48000, SampleFloat32, nil)
	in.OnSignalData(0, mem)

	require.Equal(t, 0, in.ReadFramesAvailable())
}

func TestInboundSignalDataWarmupGate(t *testing.T) {
	// warmupTimeInSeconds * framesPerSecond = 0.05 * 100 = 5 frames
	in := NewInboundSignalData[float32](1, 100, 0.05)

	mem := makePacketAccessor(1, 3, 100, SampleFloat32, func(d SignalChannelData[float32]) {
		d.WriteChannelData(0, []float32{1, 2, 3})
	})
	in.OnSignalData(0, mem)

	out := make([]float32, 3)
	require.True(t, in.ReadInterleavedData(out, 3), "below warmup threshold, no underflow reported")
	require.Equal(t, []float32{0, 0, 0}, out)

	mem2 := makePacketAccessor(1, 3, 100, SampleFloat32, func(d SignalChannelData[float32]) {
		d.WriteChannelData(0, []float32{4, 5, 6})
	})
	in.OnSignalData(0, mem2)

	require.True(t, in.ReadInterleavedData(out, 3), "warmup threshold now reached")
	require.Equal(t, []float32{1, 2, 3}, out)
}

func TestInboundSignalDataMultiChannelDeinterleavesOnIngest(t *testing.T) {
	in := NewInboundSignalData[float32](2, 100, 0)

	mem := makePacketAccessor(2, 2, 100, SampleFloat32, func(d SignalChannelData[float32]) {
		d.WriteChannelData(0, []float32{1, 2})
		d.WriteChannelData(1, []float32{10, 20})
	})
	in.OnSignalData(0, mem)

	out := make([]float32, 4)
	require.True(t, in.ReadInterleavedData(out, 2))
	require.Equal(t, []float32{1, 10, 2, 20}, out)
}
