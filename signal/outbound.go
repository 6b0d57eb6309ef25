package signal

import (
	"time"
	"unsafe"

	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// MessageSender is the minimal surface OutboundSignalData needs from its
// host collection: enough to address and allocate an outbound message
// without depending on the collection's object type parameter.
type MessageSender interface {
	SendMessage(id xrpatypes.ObjectUuid, fieldID, numBytes int32) xrpamem.Accessor
}

// SignalProducer fills dataOut with the next frameCount frames of signal
// data starting at startFrame, at the given frame rate.
type SignalProducer[T Sample] func(dataOut SignalChannelData[T], framesPerSecond int32, startFrame uint64)

// OutboundSignalData paces and packetizes a locally produced signal for
// delivery to a remote peer as a stream of messages on one field of one
// object. Exactly one of a callback-based or ring-buffer-based source is
// configured via SetSignalSourceCallback or SetSignalSourceRingBuffer
// before the first Tick.
type OutboundSignalData struct {
	id          xrpatypes.ObjectUuid
	recipient   MessageSender
	messageType int32

	produce func(packet SignalPacket)

	sampleType      SampleType
	sampleSize      int32
	numChannels     int32
	framesPerSecond int32
	framesPerPacket int32

	curReadPos      uint64
	prevFrameStart  time.Time
	hasPrevFrameStart bool
}

// SetRecipient addresses this signal at field messageType of object id in
// collection.
func (o *OutboundSignalData) SetRecipient(id xrpatypes.ObjectUuid, collection MessageSender, messageType int32) {
	o.id = id
	o.recipient = collection
	o.messageType = messageType
}

// SetSignalSourceCallback configures this signal to be generated on demand,
// one packet at a time, by calling source.
func SetSignalSourceCallback[T Sample](o *OutboundSignalData, source SignalProducer[T], numChannels, framesPerSecond, framesPerPacket int32) {
	o.produce = func(packet SignalPacket) {
		source(AccessChannelData[T](packet), o.framesPerSecond, o.curReadPos)
	}
	o.setSignalSourceShared(InferSampleType[T](), sampleWidth[T](), numChannels, framesPerSecond, framesPerPacket)
}

// SetSignalSourceRingBuffer configures this signal to be drained from a
// RingBuffer each time a packet is due.
func SetSignalSourceRingBuffer[T Sample](o *OutboundSignalData, ring *RingBuffer[T], numChannels, framesPerSecond, framesPerPacket int32) {
	o.produce = func(packet SignalPacket) {
		data := AccessChannelData[T](packet)
		frameCount := int(data.FrameCount())
		interleaved := make([]T, frameCount*int(data.NumChannels()))
		ring.ReadInterleavedData(interleaved, frameCount)
		for ch := int32(0); ch < data.NumChannels(); ch++ {
			channelSamples := make([]T, frameCount)
			for i := 0; i < frameCount; i++ {
				channelSamples[i] = interleaved[i*int(data.NumChannels())+int(ch)]
			}
			data.WriteChannelData(ch, channelSamples)
		}
	}
	o.setSignalSourceShared(InferSampleType[T](), sampleWidth[T](), numChannels, framesPerSecond, framesPerPacket)
}

func sampleWidth[T Sample]() int32 {
	var zero T
	return int32(unsafe.Sizeof(zero))
}

func (o *OutboundSignalData) setSignalSourceShared(sampleType SampleType, sampleSize, numChannels, framesPerSecond, framesPerPacket int32) {
	o.sampleType = sampleType
	o.sampleSize = sampleSize
	o.numChannels = numChannels
	o.framesPerSecond = framesPerSecond
	o.framesPerPacket = framesPerPacket
	o.prevFrameStart = nowFunc()
	o.hasPrevFrameStart = true
}

// nowFunc is indirected so tests can control the pacing clock.
var nowFunc = time.Now

// Tick emits as many full-size packets as have come due since the previous
// Tick, then advances the internal clock. Call this once per reconciler
// outbound tick.
func (o *OutboundSignalData) Tick() {
	endTime := nowFunc()
	for frameCount := o.getNextFrameCount(endTime); frameCount > 0; frameCount = o.getNextFrameCount(endTime) {
		if o.produce != nil && o.recipient != nil {
			packet := o.sendSignalPacket(o.sampleSize, frameCount, o.sampleType, o.numChannels, o.framesPerSecond)
			o.produce(packet)
		}
		o.curReadPos += uint64(frameCount)
	}
}

// sendSignalPacket allocates and addresses a packet; the caller fills its
// channel data.
func (o *OutboundSignalData) sendSignalPacket(sampleSize, frameCount int32, sampleType SampleType, numChannels, framesPerSecond int32) SignalPacket {
	mem := o.recipient.SendMessage(o.id, o.messageType, CalcPacketSize(numChannels, sampleSize, frameCount))
	packet := NewSignalPacket(mem)
	packet.SetFrameCount(frameCount)
	packet.SetSampleType(sampleType)
	packet.SetNumChannels(numChannels)
	packet.SetFrameRate(framesPerSecond)
	return packet
}

// getNextFrameCount returns framesPerPacket once enough wall-clock time has
// elapsed to justify another packet, 0 otherwise. The internal clock is
// advanced by the packet's nominal duration rather than reset to endTime,
// so rounding error never accumulates across packets.
func (o *OutboundSignalData) getNextFrameCount(endTime time.Time) int32 {
	if o.framesPerSecond == 0 {
		return 0
	}
	if !o.hasPrevFrameStart {
		o.prevFrameStart = endTime
		o.hasPrevFrameStart = true
	}

	var frameCount int32
	if endTime.Before(o.prevFrameStart) {
		frameCount = 0
	} else {
		frameCount = o.framesPerPacket
	}

	// do NOT advance to endTime, as that would accumulate drift
	o.prevFrameStart = o.prevFrameStart.Add(time.Duration(int64(frameCount) * int64(time.Second) / int64(o.framesPerSecond)))

	return frameCount
}
