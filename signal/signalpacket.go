// Package signal implements the audio-rate signal transport layer: fixed
// multi-channel packets carried as ordinary messages over a
// DataStoreReconciler collection, with pacing on the outbound side and
// warm-up buffered ingestion on the inbound side.
package signal

import (
	"unsafe"

	"github.com/xrpa-io/xrpa-go/xrpamem"
)

// SampleType identifies the numeric encoding of a signal packet's channel
// data, matching the type tag written into the packet header so a receiver
// can detect a producer/consumer type mismatch before reinterpreting bytes.
type SampleType int32

const (
	SampleFloat32 SampleType = 0
	SampleInt32   SampleType = 1
	SampleInt16   SampleType = 2
	SampleInt8    SampleType = 3
	SampleUint32  SampleType = 4
	SampleUint16  SampleType = 5
	SampleUint8   SampleType = 6
)

// Sample is the set of Go types InferSampleType/SignalChannelData know how
// to packetize.
type Sample interface {
	~float32 | ~int32 | ~int16 | ~int8 | ~uint32 | ~uint16 | ~uint8
}

// InferSampleType returns the wire tag for T, the Go stand-in for the C++
// side's compile-time inferSampleType<T>() specialization.
func InferSampleType[T Sample]() SampleType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return SampleFloat32
	case int32:
		return SampleInt32
	case int16:
		return SampleInt16
	case int8:
		return SampleInt8
	case uint32:
		return SampleUint32
	case uint16:
		return SampleUint16
	case uint8:
		return SampleUint8
	default:
		panic("signal: unsupported sample type")
	}
}

// SampleSize returns the wire byte width of a sample type tag, used when the
// concrete Go type isn't known (e.g. forwarding packets byte-for-byte).
func SampleSize(t SampleType) int32 {
	switch t {
	case SampleFloat32, SampleInt32, SampleUint32:
		return 4
	case SampleInt16, SampleUint16:
		return 2
	case SampleInt8, SampleUint8:
		return 1
	default:
		return 4
	}
}

const signalPacketHeaderSize = 16

// bytesToSamples reinterprets a raw byte window as a []T slice without
// copying, mirroring xrpamem's own unsafe-pointer cast convention for
// fixed-width numeric types. Returns nil for a nil/empty input.
func bytesToSamples[T Sample](raw []byte) []T {
	if len(raw) == 0 {
		return nil
	}
	var zero T
	width := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), len(raw)/width)
}

// SignalChannelData is a typed, per-channel view over a SignalPacket's
// payload region: frameCount samples per channel, channels laid out
// back-to-back (not interleaved) in the underlying accessor.
type SignalChannelData[T Sample] struct {
	mem         xrpamem.Accessor
	frameCount  int32
	numChannels int32
}

func newSignalChannelData[T Sample](mem xrpamem.Accessor, frameCount, numChannels int32) SignalChannelData[T] {
	return SignalChannelData[T]{mem: mem, frameCount: frameCount, numChannels: numChannels}
}

func (c SignalChannelData[T]) NumChannels() int32 { return c.numChannels }
func (c SignalChannelData[T]) FrameCount() int32  { return c.frameCount }

func (c SignalChannelData[T]) channelBufferSize() int32 {
	var zero T
	return int32(unsafe.Sizeof(zero)) * c.frameCount
}

// accessChannelBuffer returns the raw []byte window for channelIdx, or nil
// if the index is out of range.
func (c SignalChannelData[T]) accessChannelBuffer(channelIdx int32) []byte {
	if channelIdx < 0 || channelIdx >= c.numChannels {
		return nil
	}
	bufSize := c.channelBufferSize()
	return c.mem.Slice(channelIdx*bufSize, bufSize).RawBytes(0, bufSize)
}

// ReadChannelData copies up to dstFrameCount frames of channelIdx's samples
// into dst at stride dstStride, zero-filling any trailing entries if the
// channel has fewer frames than requested, or if the channel index is out
// of range. dstStride lets the caller interleave directly into a
// multi-channel destination buffer.
func (c SignalChannelData[T]) ReadChannelData(channelIdx int32, dst []T, dstFrameCount, dstStride int32) {
	if dstStride <= 0 {
		dstStride = 1
	}
	src := bytesToSamples[T](c.accessChannelBuffer(channelIdx))
	fillCount := int32(len(src))
	if fillCount > dstFrameCount {
		fillCount = dstFrameCount
	}
	for i := int32(0); i < fillCount; i++ {
		dst[i*dstStride] = src[i]
	}
	for i := fillCount; i < dstFrameCount; i++ {
		dst[i*dstStride] = 0
	}
}

// WriteChannelData copies src into channelIdx's buffer, zero-filling any
// remaining frames in the channel if src is shorter. No-op if the channel
// index is out of range.
func (c SignalChannelData[T]) WriteChannelData(channelIdx int32, src []T) {
	raw := c.accessChannelBuffer(channelIdx)
	if raw == nil {
		return
	}
	dst := bytesToSamples[T](raw)
	n := copy(dst, src)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// ClearUnusedChannels zero-fills every channel outside
// [startChannelIdx, startChannelIdx+usedChannelCount).
func (c SignalChannelData[T]) ClearUnusedChannels(startChannelIdx, usedChannelCount int32) {
	for i := int32(0); i < startChannelIdx; i++ {
		c.WriteChannelData(i, nil)
	}
	for i := startChannelIdx + usedChannelCount; i < c.numChannels; i++ {
		c.WriteChannelData(i, nil)
	}
}

// SignalPacket is the wire layout for one burst of multi-channel signal
// data: a 16-byte header (frame count, sample type, channel count, frame
// rate) followed by numChannels back-to-back per-channel sample buffers.
type SignalPacket struct {
	mem xrpamem.Accessor
}

func NewSignalPacket(mem xrpamem.Accessor) SignalPacket { return SignalPacket{mem: mem} }

func (p SignalPacket) FrameCount() int32    { return xrpamem.ReadValue[int32](p.mem, 0) }
func (p SignalPacket) SetFrameCount(v int32) { xrpamem.WriteValue[int32](p.mem, v, 0) }

func (p SignalPacket) SampleType() SampleType { return SampleType(xrpamem.ReadValue[int32](p.mem, 4)) }
func (p SignalPacket) SetSampleType(v SampleType) {
	xrpamem.WriteValue[int32](p.mem, int32(v), 4)
}

func (p SignalPacket) NumChannels() int32     { return xrpamem.ReadValue[int32](p.mem, 8) }
func (p SignalPacket) SetNumChannels(v int32) { xrpamem.WriteValue[int32](p.mem, v, 8) }

func (p SignalPacket) FrameRate() int32     { return xrpamem.ReadValue[int32](p.mem, 12) }
func (p SignalPacket) SetFrameRate(v int32) { xrpamem.WriteValue[int32](p.mem, v, 12) }

// AccessChannelData returns a typed view over the packet's payload region.
func AccessChannelData[T Sample](p SignalPacket) SignalChannelData[T] {
	payload := p.mem.Slice(signalPacketHeaderSize, -1)
	return newSignalChannelData[T](payload, p.FrameCount(), p.NumChannels())
}

// CalcPacketSize returns the total byte size (header + payload) of a packet
// with the given channel count, sample byte width, and frame count.
func CalcPacketSize(numChannels, sampleSize, frameCount int32) int32 {
	return signalPacketHeaderSize + numChannels*sampleSize*frameCount
}

// CopyChannelDataFrom copies raw channel bytes from src into dst one channel
// at a time, honoring each packet's own frame count and channel count
// (channels or frames present in one but not the other are zero-filled or
// dropped as appropriate). Used by a forwarder that republishes packets
// without knowing their sample type at compile time.
func (p SignalPacket) CopyChannelDataFrom(src SignalPacket) {
	sampleSize := SampleSize(p.SampleType())
	dstChannelBytes := p.FrameCount() * sampleSize
	srcChannelBytes := src.FrameCount() * sampleSize
	n := dstChannelBytes
	if srcChannelBytes < n {
		n = srcChannelBytes
	}
	numChannels := p.NumChannels()
	if src.NumChannels() < numChannels {
		numChannels = src.NumChannels()
	}
	dstPayload := p.mem.Slice(signalPacketHeaderSize, -1)
	srcPayload := src.mem.Slice(signalPacketHeaderSize, -1)
	for ch := int32(0); ch < numChannels; ch++ {
		dstBuf := dstPayload.Slice(ch*dstChannelBytes, dstChannelBytes)
		srcBuf := srcPayload.Slice(ch*srcChannelBytes, n)
		dstBuf.CopyFrom(srcBuf)
		if n < dstChannelBytes {
			dstBuf.Slice(n, dstChannelBytes-n).WriteToZeros()
		}
	}
	for ch := numChannels; ch < p.NumChannels(); ch++ {
		dstPayload.Slice(ch*dstChannelBytes, dstChannelBytes).WriteToZeros()
	}
}
