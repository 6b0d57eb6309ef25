package signal

import "sync"

// RingBuffer is a fixed-capacity interleaved sample ring with a warm-up
// gate: no data is returned to a reader until at least warmupFrameCount
// frames have accumulated, and once that threshold is crossed an
// under-full read re-arms the gate rather than returning a partial frame.
type RingBuffer[T Sample] struct {
	mu sync.Mutex

	buf             []T
	readPos         int
	writePos        int
	numChannels     int32
	warmupFrameCount int
	isWarmingUp     bool
}

// NewRingBuffer allocates a ring holding frameCount frames of numChannels
// interleaved samples, gated by warmupFrameCount frames before the first
// read succeeds.
func NewRingBuffer[T Sample](frameCount, warmupFrameCount int, numChannels int32) *RingBuffer[T] {
	return &RingBuffer[T]{
		buf:              make([]T, int(frameCount)*int(numChannels)),
		numChannels:      numChannels,
		warmupFrameCount: warmupFrameCount,
		isWarmingUp:      true,
	}
}

func (r *RingBuffer[T]) availableForReadLocked() int {
	if r.writePos >= r.readPos {
		return r.writePos - r.readPos
	}
	return r.writePos + len(r.buf) - r.readPos
}

func (r *RingBuffer[T]) availableForWriteLocked() int {
	if r.writePos >= r.readPos {
		return len(r.buf) - (r.writePos - r.readPos)
	}
	return r.readPos - r.writePos
}

// ReadFramesAvailable returns the number of whole frames currently buffered.
func (r *RingBuffer[T]) ReadFramesAvailable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableForReadLocked() / int(r.numChannels)
}

// WriteFramesAvailable returns the number of whole frames of free space.
func (r *RingBuffer[T]) WriteFramesAvailable() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableForWriteLocked() / int(r.numChannels)
}

// ReadInterleavedData copies framesNeeded frames of interleaved samples into
// outputBuffer (which must hold framesNeeded*numChannels samples), returning
// false if doing so underflowed the ring (in which case the gate re-arms and
// outputBuffer is zero-filled past whatever was available).
func (r *RingBuffer[T]) ReadInterleavedData(outputBuffer []T, framesNeeded int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ringBufferSize := len(r.buf)
	readFramesAvailable := r.availableForReadLocked() / int(r.numChannels)
	didUnderflow := false

	if r.isWarmingUp {
		if readFramesAvailable < r.warmupFrameCount {
			readFramesAvailable = 0
		} else {
			r.isWarmingUp = false
		}
	} else if readFramesAvailable < framesNeeded {
		r.isWarmingUp = true
		didUnderflow = true
	}

	framesFromRing := readFramesAvailable
	if framesFromRing > framesNeeded {
		framesFromRing = framesNeeded
	}
	ringSamples := int(r.numChannels) * framesFromRing
	totalSamples := int(r.numChannels) * framesNeeded

	endRingPos := r.readPos + ringSamples
	if endRingPos > ringBufferSize {
		firstBatch := ringBufferSize - r.readPos
		copy(outputBuffer[:firstBatch], r.buf[r.readPos:])
		copy(outputBuffer[firstBatch:ringSamples], r.buf[:endRingPos-ringBufferSize])
		r.readPos = (endRingPos - ringBufferSize) % ringBufferSize
	} else {
		copy(outputBuffer[:ringSamples], r.buf[r.readPos:r.readPos+ringSamples])
		r.readPos = endRingPos % ringBufferSize
	}

	for i := ringSamples; i < totalSamples; i++ {
		outputBuffer[i] = 0
	}

	return !didUnderflow
}

// ReadDeinterleavedData is ReadInterleavedData's deinterleaved counterpart:
// channel ch's framesNeeded samples are written contiguously starting at
// outputBuffer[ch*outputStride], so outputStride is the distance between
// the starts of consecutive channels (typically framesNeeded). Indices past
// len(outputBuffer) are skipped. It shares the same warm-up/underflow state
// machine as the interleaved read.
func (r *RingBuffer[T]) ReadDeinterleavedData(outputBuffer []T, framesNeeded int, outputStride int) bool {
	interleaved := make([]T, framesNeeded*int(r.numChannels))
	ok := r.ReadInterleavedData(interleaved, framesNeeded)
	for frame := 0; frame < framesNeeded; frame++ {
		for ch := 0; ch < int(r.numChannels); ch++ {
			dstIdx := ch*outputStride + frame
			if dstIdx < len(outputBuffer) {
				outputBuffer[dstIdx] = interleaved[frame*int(r.numChannels)+ch]
			}
		}
	}
	return ok
}

// WriteInterleavedData writes up to framesToWrite frames of interleaved
// samples into the ring, returning the number of frames actually written
// (less than framesToWrite if the ring doesn't have room; the caller should
// treat this as its own overflow signal since excess input is dropped
// rather than blocked on).
func (r *RingBuffer[T]) WriteInterleavedData(inputBuffer []T, framesToWrite int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ringBufferSize := len(r.buf)
	writeFramesAvailable := r.availableForWriteLocked() / int(r.numChannels)

	framesToRing := framesToWrite
	if framesToRing > writeFramesAvailable {
		framesToRing = writeFramesAvailable
	}
	ringSamples := int(r.numChannels) * framesToRing

	endRingPos := r.writePos + ringSamples
	if endRingPos > ringBufferSize {
		firstBatch := ringBufferSize - r.writePos
		secondBatch := endRingPos - ringBufferSize
		copy(r.buf[r.writePos:], inputBuffer[:firstBatch])
		copy(r.buf[:secondBatch], inputBuffer[firstBatch:firstBatch+secondBatch])
		r.writePos = secondBatch
	} else {
		copy(r.buf[r.writePos:r.writePos+ringSamples], inputBuffer[:ringSamples])
		r.writePos = endRingPos % ringBufferSize
	}

	return framesToRing
}
