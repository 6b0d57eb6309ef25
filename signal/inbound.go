package signal

import "github.com/xrpa-io/xrpa-go/xrpamem"

// DataSink receives inbound signal-carrying messages as they arrive off the
// wire, before any type checking or buffering. ObjectCollection's
// ProcessMessage dispatch is the natural caller.
type DataSink interface {
	OnSignalData(timestampUs uint64, data xrpamem.Accessor)
}

// InboundSignalData buffers an inbound signal of known sample type and
// frame rate into a warm-up-gated ring, discarding any packet whose sample
// type or frame rate doesn't match what was configured (no resampling or
// type conversion is attempted).
type InboundSignalData[T Sample] struct {
	ring            *RingBuffer[T]
	sampleType      SampleType
	framesPerSecond int32
	numChannels     int32
	scratch         []T
}

// NewInboundSignalData allocates a ring sized to hold at least
// warmupTimeInSeconds worth of frames (and never less than one second), with
// a warm-up gate of warmupTimeInSeconds*framesPerSecond frames.
func NewInboundSignalData[T Sample](numChannels, framesPerSecond int32, warmupTimeInSeconds float64) *InboundSignalData[T] {
	warmupFrames := int(warmupTimeInSeconds * float64(framesPerSecond))
	maxFramesInBuffer := warmupFrames * 2
	if int(framesPerSecond) > maxFramesInBuffer {
		maxFramesInBuffer = int(framesPerSecond)
	}
	return &InboundSignalData[T]{
		ring:            NewRingBuffer[T](maxFramesInBuffer, warmupFrames, numChannels),
		sampleType:      InferSampleType[T](),
		framesPerSecond: framesPerSecond,
		numChannels:     numChannels,
	}
}

// OnSignalData implements DataSink: unpack the wire packet and feed its
// frames into the ring buffer, dropping any frames beyond what the ring has
// room for.
func (s *InboundSignalData[T]) OnSignalData(_ uint64, data xrpamem.Accessor) {
	packet := NewSignalPacket(data)
	if packet.SampleType() != s.sampleType || packet.FrameRate() != s.framesPerSecond {
		// TODO: sample-rate/type conversion is not implemented; incompatible
		// producers are simply dropped.
		return
	}

	channelData := AccessChannelData[T](packet)
	frameCount := int(channelData.FrameCount())
	if avail := s.ring.WriteFramesAvailable(); frameCount > avail {
		frameCount = avail
	}
	if frameCount <= 0 {
		return
	}

	if need := frameCount * int(s.numChannels); cap(s.scratch) < need {
		s.scratch = make([]T, need)
	} else {
		s.scratch = s.scratch[:need]
	}

	for ch := int32(0); ch < s.numChannels; ch++ {
		strided := s.scratch[ch:]
		channelData.ReadChannelData(ch, strided, int32(frameCount), s.numChannels)
	}

	s.ring.WriteInterleavedData(s.scratch, frameCount)
}

// ReadFramesAvailable reports how many frames are currently buffered.
func (s *InboundSignalData[T]) ReadFramesAvailable() int {
	return s.ring.ReadFramesAvailable()
}

// ReadInterleavedData drains framesNeeded frames of interleaved samples,
// returning false if the ring underflowed.
func (s *InboundSignalData[T]) ReadInterleavedData(outputBuffer []T, framesNeeded int) bool {
	return s.ring.ReadInterleavedData(outputBuffer, framesNeeded)
}

// ReadDeinterleavedData drains framesNeeded frames per channel into
// outputBuffer, channels laid out outputStride apart.
func (s *InboundSignalData[T]) ReadDeinterleavedData(outputBuffer []T, framesNeeded, outputStride int) bool {
	return s.ring.ReadDeinterleavedData(outputBuffer, framesNeeded, outputStride)
}

var _ DataSink = (*InboundSignalData[float32])(nil)
