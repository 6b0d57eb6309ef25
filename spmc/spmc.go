// Package spmc implements a lock-free single-producer, multiple-consumer
// block ring buffer used for signal-rate (audio-like) data, where every
// consumer reads independently and a slow consumer simply misses data
// rather than blocking the producer.
package spmc

import (
	"sync/atomic"
	"unsafe"

	"github.com/xrpa-io/xrpa-go/xrpamem"
)

// BlockHeaderSize is the size, in bytes, of the per-block data-size prefix.
const BlockHeaderSize = int32(4)

// HeaderSize is the size, in bytes, of the ring buffer's control block.
const HeaderSize = 24

func alignBlock(x int32) int32 {
	return (x + 3) &^ 3
}

// MemSize returns the number of bytes a ring buffer needs for the given
// block size and block count, including its control block.
func MemSize(blockSize, blockCount int32) int32 {
	blockSize = alignBlock(blockSize)
	return HeaderSize + blockSize*blockCount
}

// RingBuffer is an SPMC block ring buffer placed directly inside a byte
// slice. All consumers share the same backing memory and coordinate with
// the producer purely through atomic loads/stores on writeIndex and
// minReadIndex; there is no mutex.
type RingBuffer struct {
	mem        []byte
	base       int32
	blockSize  int32
	blockCount int32
	poolOffset int32 // base + HeaderSize
}

// At returns a RingBuffer view over an already-initialized control block
// starting at byte offset base within mem.
func At(mem []byte, base int32) *RingBuffer {
	r := &RingBuffer{mem: mem, base: base}
	ctrl := r.ctrl()
	poolSize := xrpamem.ReadValue[int32](ctrl, 0)
	r.blockSize = xrpamem.ReadValue[int32](ctrl, 4)
	r.blockCount = xrpamem.ReadValue[int32](ctrl, 8)
	r.poolOffset = base + HeaderSize
	_ = poolSize
	return r
}

func (r *RingBuffer) ctrl() xrpamem.Accessor {
	return xrpamem.NewAccessor(r.mem, r.base, HeaderSize)
}

// Init writes a fresh control block for the given block size and count. The
// caller must ensure mem is at least MemSize(blockSize, blockCount) bytes
// starting at base.
func Init(mem []byte, base, blockSize, blockCount int32) *RingBuffer {
	blockSize = alignBlock(blockSize)
	poolSize := blockSize * blockCount

	ctrl := xrpamem.NewAccessor(mem, base, HeaderSize)
	xrpamem.WriteValue[int32](ctrl, poolSize, 0)
	xrpamem.WriteValue[int32](ctrl, blockSize, 4)
	xrpamem.WriteValue[int32](ctrl, blockCount, 8)
	xrpamem.WriteValue[int32](ctrl, 0, 12)
	xrpamem.WriteValue[uint32](ctrl, 0, 16)
	xrpamem.WriteValue[uint32](ctrl, 0, 20)

	return &RingBuffer{
		mem:        mem,
		base:       base,
		blockSize:  blockSize,
		blockCount: blockCount,
		poolOffset: base + HeaderSize,
	}
}

// BlockSize returns the aligned per-block size, including its header.
func (r *RingBuffer) BlockSize() int32 { return r.blockSize }

// BlockCount returns the number of blocks in the pool.
func (r *RingBuffer) BlockCount() int32 { return r.blockCount }

// MaxDataSize returns the largest single entry this ring buffer can ever
// hold, spanning every block.
func (r *RingBuffer) MaxDataSize() int32 {
	return r.blockSize*r.blockCount - BlockHeaderSize
}

func (r *RingBuffer) writeIndexPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[r.base+16]))
}

func (r *RingBuffer) minReadIndexPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[r.base+20]))
}

func (r *RingBuffer) loadWriteIndex() uint32   { return atomic.LoadUint32(r.writeIndexPtr()) }
func (r *RingBuffer) loadMinReadIndex() uint32 { return atomic.LoadUint32(r.minReadIndexPtr()) }
func (r *RingBuffer) storeWriteIndex(v uint32) { atomic.StoreUint32(r.writeIndexPtr(), v) }
func (r *RingBuffer) storeMinReadIndex(v uint32) {
	atomic.StoreUint32(r.minReadIndexPtr(), v)
}

func (r *RingBuffer) blockOffset(blockIndex uint32) int32 {
	return int32(blockIndex) * r.blockSize
}

func (r *RingBuffer) getBlocksNeeded(dataSize int32) int32 {
	firstBlockData := r.blockSize - BlockHeaderSize
	if dataSize <= firstBlockData {
		return 1
	}
	remaining := dataSize - firstBlockData
	return 1 + (remaining-1)/r.blockSize + 1
}

func (r *RingBuffer) setBlockDataSize(blockOffset int32, dataSize uint32) {
	xrpamem.WriteValue[uint32](xrpamem.NewAccessor(r.mem, r.poolOffset, r.blockSize*r.blockCount), dataSize, blockOffset)
}

func (r *RingBuffer) getBlockDataSize(blockOffset int32) uint32 {
	return xrpamem.ReadValue[uint32](xrpamem.NewAccessor(r.mem, r.poolOffset, r.blockSize*r.blockCount), blockOffset)
}

func (r *RingBuffer) poolAccessor() xrpamem.Accessor {
	return xrpamem.NewAccessor(r.mem, r.poolOffset, r.blockSize*r.blockCount)
}

func (r *RingBuffer) skipToValidBlock(startIndex uint32) uint32 {
	writeIndex := r.loadWriteIndex()
	for startIndex < writeIndex {
		blockIndex := startIndex % uint32(r.blockCount)
		dataSize := r.getBlockDataSize(r.blockOffset(blockIndex))
		if dataSize > 0 {
			return startIndex
		}
		startIndex++
	}
	return startIndex
}

func (r *RingBuffer) skipToValidEntry(currentIndex, targetIndex uint32) uint32 {
	writeIndex := r.loadWriteIndex()
	for currentIndex < writeIndex && currentIndex < targetIndex {
		blockIndex := currentIndex % uint32(r.blockCount)
		dataSize := r.getBlockDataSize(r.blockOffset(blockIndex))
		if dataSize == 0 {
			currentIndex++
		} else {
			currentIndex += uint32(r.getBlocksNeeded(int32(dataSize)))
		}
	}
	return r.skipToValidBlock(currentIndex)
}

// Write allocates space for a dataSize-byte entry, evicting the oldest
// blocks as needed, invokes fill with an Accessor over the entry's data
// region, then publishes the entry by advancing the write index. It
// returns false without calling fill if dataSize cannot ever fit the pool.
func (r *RingBuffer) Write(dataSize int32, fill func(xrpamem.Accessor)) bool {
	if dataSize <= 0 {
		return false
	}
	blocksNeeded := r.getBlocksNeeded(dataSize)
	if blocksNeeded > r.blockCount {
		return false
	}

	writeIndex := r.loadWriteIndex()
	startBlockIndex := writeIndex % uint32(r.blockCount)

	endBlockIndex := startBlockIndex + uint32(blocksNeeded)
	var newWriteIndex uint32
	var skippedBlocks int32

	if endBlockIndex > uint32(r.blockCount) {
		skippedBlocks = r.blockCount - int32(startBlockIndex)
		startBlockIndex = 0
		newWriteIndex = writeIndex + uint32(skippedBlocks+blocksNeeded)
	} else {
		newWriteIndex = writeIndex + uint32(blocksNeeded)
	}

	minReadIndex := r.loadMinReadIndex()
	var requiredMinReadIndex uint32
	if newWriteIndex > uint32(r.blockCount) {
		requiredMinReadIndex = newWriteIndex - uint32(r.blockCount)
	}

	if minReadIndex < requiredMinReadIndex {
		newMinReadIndex := r.skipToValidEntry(minReadIndex, requiredMinReadIndex)
		r.storeMinReadIndex(newMinReadIndex)
	}

	for i := int32(0); i < skippedBlocks; i++ {
		blockOffset := r.blockOffset((writeIndex + uint32(i)) % uint32(r.blockCount))
		r.setBlockDataSize(blockOffset, 0)
	}

	firstBlockOffset := r.blockOffset(startBlockIndex)
	r.setBlockDataSize(firstBlockOffset, uint32(dataSize))

	dataOffset := firstBlockOffset + BlockHeaderSize
	maxDataSpace := blocksNeeded*r.blockSize - BlockHeaderSize
	fill(r.poolAccessor().Slice(dataOffset, maxDataSpace))

	r.storeWriteIndex(newWriteIndex)
	return true
}

// Iterator walks an SPMC RingBuffer independently of any other consumer.
type Iterator struct {
	localReadIndex uint32
}

// NewIterator returns an iterator starting from the beginning of the
// ring buffer's history (which may already have wrapped).
func NewIterator() *Iterator {
	return &Iterator{}
}

// HasMissedEntries reports whether the producer has evicted blocks this
// iterator had not yet read.
func (it *Iterator) HasMissedEntries(r *RingBuffer) bool {
	return it.localReadIndex < r.loadMinReadIndex()
}

// HasNext reports whether there is at least one unread entry.
func (it *Iterator) HasNext(r *RingBuffer) bool {
	return it.localReadIndex < r.loadWriteIndex()
}

// ReadNext reads the next entry, invoking read with an Accessor over its
// data region, and advances past it. It returns false either because
// there was nothing to read, or because the entry was overwritten by the
// producer partway through the read (a stale read); callers should treat
// both outcomes the same way, by trying again next tick.
func (it *Iterator) ReadNext(r *RingBuffer, read func(xrpamem.Accessor)) bool {
	if !it.HasNext(r) {
		return false
	}

	if it.HasMissedEntries(r) {
		it.localReadIndex = r.loadMinReadIndex()
	}

	writeIndex := r.loadWriteIndex()
	for it.localReadIndex < writeIndex {
		blockIndex := it.localReadIndex % uint32(r.blockCount)
		blockOffset := r.blockOffset(blockIndex)
		dataSize := r.getBlockDataSize(blockOffset)

		if dataSize == 0 {
			it.localReadIndex++
			continue
		}

		blocksNeeded := r.getBlocksNeeded(int32(dataSize))
		dataOffset := blockOffset + BlockHeaderSize
		read(r.poolAccessor().Slice(dataOffset, int32(dataSize)))

		newMinReadIndex := r.loadMinReadIndex()
		if it.localReadIndex < newMinReadIndex {
			it.localReadIndex = newMinReadIndex
			return false
		}

		it.localReadIndex += uint32(blocksNeeded)
		return true
	}

	return false
}

// SetToEnd advances the iterator to the current write position, so only
// future writes are seen.
func (it *Iterator) SetToEnd(r *RingBuffer) {
	it.localReadIndex = r.loadWriteIndex()
}
