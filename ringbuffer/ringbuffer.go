// Package ringbuffer implements PlacedRingBuffer: an intrusive,
// length-prefixed FIFO laid out directly inside a byte pool (heap or
// shared memory) with monotonically increasing element ids, used by the
// transport changelog to hold variable-size change records.
package ringbuffer

import "github.com/xrpa-io/xrpa-go/xrpamem"

// elementHeaderSize is the size, in bytes, of the int32 length prefix
// stored ahead of every element in the pool.
const elementHeaderSize = int32(4)

func align4(x int32) int32 {
	return (x + 3) &^ 3
}

// HeaderSize is the size in bytes of the PlacedRingBuffer control block
// that must precede the byte pool in the backing memory.
const HeaderSize = 24

// MemSize returns the total number of bytes a ring buffer with the given
// pool size occupies, including its control block.
func MemSize(poolSize int32) int32 {
	return HeaderSize + poolSize
}

// PlacedRingBuffer is a ring buffer whose control block and element pool
// both live inside a caller-supplied byte slice, so the whole structure
// can be mapped directly over shared memory.
type PlacedRingBuffer struct {
	mem  []byte
	base int32 // offset of the control block within mem
}

// At returns a PlacedRingBuffer whose control block starts at byte offset
// base within mem. The pool occupies mem[base+HeaderSize : base+HeaderSize+poolSize].
func At(mem []byte, base int32) *PlacedRingBuffer {
	return &PlacedRingBuffer{mem: mem, base: base}
}

func (r *PlacedRingBuffer) ctrl() xrpamem.Accessor {
	return xrpamem.NewAccessor(r.mem, r.base, HeaderSize)
}

func (r *PlacedRingBuffer) poolSize() int32      { return xrpamem.ReadValue[int32](r.ctrl(), 0) }
func (r *PlacedRingBuffer) setPoolSize(v int32)  { xrpamem.WriteValue(r.ctrl(), v, 0) }
func (r *PlacedRingBuffer) count() int32         { return xrpamem.ReadValue[int32](r.ctrl(), 4) }
func (r *PlacedRingBuffer) setCount(v int32)     { xrpamem.WriteValue(r.ctrl(), v, 4) }
func (r *PlacedRingBuffer) startID() int32       { return xrpamem.ReadValue[int32](r.ctrl(), 8) }
func (r *PlacedRingBuffer) setStartID(v int32)   { xrpamem.WriteValue(r.ctrl(), v, 8) }
func (r *PlacedRingBuffer) startOffset() int32   { return xrpamem.ReadValue[int32](r.ctrl(), 12) }
func (r *PlacedRingBuffer) setStartOffset(v int32) { xrpamem.WriteValue(r.ctrl(), v, 12) }
func (r *PlacedRingBuffer) lastElemOffset() int32  { return xrpamem.ReadValue[int32](r.ctrl(), 16) }
func (r *PlacedRingBuffer) setLastElemOffset(v int32) {
	xrpamem.WriteValue(r.ctrl(), v, 16)
}
func (r *PlacedRingBuffer) prewrapOffset() int32 { return xrpamem.ReadValue[int32](r.ctrl(), 20) }
func (r *PlacedRingBuffer) setPrewrapOffset(v int32) {
	xrpamem.WriteValue(r.ctrl(), v, 20)
}

func (r *PlacedRingBuffer) pool() xrpamem.Accessor {
	return xrpamem.NewAccessor(r.mem, r.base+HeaderSize, r.poolSize())
}

// Init initializes a fresh control block for a pool of the given size. The
// caller must ensure mem is at least MemSize(poolSize) bytes starting at
// base.
func (r *PlacedRingBuffer) Init(poolSize int32) {
	r.setPoolSize(poolSize)
	r.setCount(0)
	r.setStartID(0)
	r.setStartOffset(0)
	r.setLastElemOffset(0)
	r.setPrewrapOffset(poolSize)
}

// Reset clears the ring buffer back to empty, keeping its pool size.
func (r *PlacedRingBuffer) Reset() {
	r.Init(r.poolSize())
}

// Count returns the number of elements currently stored.
func (r *PlacedRingBuffer) Count() int32 { return r.count() }

// GetMinID returns the id of the oldest element, valid only when Count() > 0.
func (r *PlacedRingBuffer) GetMinID() int32 { return r.startID() }

// GetMaxID returns the id of the newest element, valid only when Count() > 0.
func (r *PlacedRingBuffer) GetMaxID() int32 { return r.startID() + r.count() - 1 }

// GetID returns the id of the element at the given index from the start.
func (r *PlacedRingBuffer) GetID(index int32) int32 { return r.startID() + index }

// GetIndexForID returns the index of the element with the given id, or 0
// if the buffer is empty or id predates the oldest retained element.
func (r *PlacedRingBuffer) GetIndexForID(id int32) int32 {
	if r.count() == 0 || id < r.startID() {
		return 0
	}
	return id - r.startID()
}

func (r *PlacedRingBuffer) getElementSize(offset int32) int32 {
	return xrpamem.ReadValue[int32](r.pool(), offset)
}

func (r *PlacedRingBuffer) setElementSize(offset, numBytes int32) {
	xrpamem.WriteValue(r.pool(), numBytes, offset)
}

func (r *PlacedRingBuffer) getElementAccessor(offset int32) xrpamem.Accessor {
	numBytes := r.getElementSize(offset)
	return r.pool().Slice(offset+elementHeaderSize, numBytes)
}

func (r *PlacedRingBuffer) getOffsetForIndex(index int32) int32 {
	offset := r.startOffset()
	for i := int32(0); i < index; i++ {
		offset += elementHeaderSize + r.getElementSize(offset)
		if offset >= r.prewrapOffset() {
			offset = 0
		}
	}
	return offset
}

func (r *PlacedRingBuffer) getNextOffset(offset int32) int32 {
	numBytes := r.getElementSize(offset)
	offset += elementHeaderSize + numBytes
	if offset >= r.prewrapOffset() {
		offset = 0
	}
	return offset
}

// GetAt returns an accessor to the element at the given index from the
// start of the ring buffer, or the zero Accessor if index is out of range.
func (r *PlacedRingBuffer) GetAt(index int32) xrpamem.Accessor {
	if index >= r.count() {
		return xrpamem.Accessor{}
	}
	return r.getElementAccessor(r.getOffsetForIndex(index))
}

// GetByID returns an accessor to the element with the given id, or the
// zero Accessor if no such element is currently retained.
func (r *PlacedRingBuffer) GetByID(id int32) xrpamem.Accessor {
	if r.count() == 0 || id < r.startID() || id > r.GetMaxID() {
		return xrpamem.Accessor{}
	}
	return r.GetAt(r.GetIndexForID(id))
}

// findFreeOffset returns an offset with at least sizeNeeded contiguous
// bytes available, or -1 if none exists without evicting an element.
func (r *PlacedRingBuffer) findFreeOffset(sizeNeeded int32) int32 {
	if r.count() == 0 {
		return r.startOffset()
	}

	offset := r.lastElemOffset() + elementHeaderSize + r.getElementSize(r.lastElemOffset())

	if r.startOffset() < offset {
		if r.poolSize()-offset >= sizeNeeded {
			return offset
		}
		r.setPrewrapOffset(offset)
		offset = 0
	}

	if r.startOffset()-offset >= sizeNeeded {
		return offset
	}
	return -1
}

// Push allocates numBytes at the end of the ring buffer, evicting the
// oldest elements as needed to make room, and returns an accessor to the
// new element's payload along with its newly assigned monotonic id. It
// returns a null Accessor if numBytes is too large to ever fit the pool.
func (r *PlacedRingBuffer) Push(numBytes int32) (xrpamem.Accessor, int32) {
	numBytes = align4(numBytes)
	sizeNeeded := elementHeaderSize + numBytes
	if sizeNeeded > r.poolSize() {
		return xrpamem.Accessor{}, 0
	}

	offset := r.findFreeOffset(sizeNeeded)
	for offset < 0 {
		r.Shift()
		offset = r.findFreeOffset(sizeNeeded)
	}

	r.setCount(r.count() + 1)
	id := r.startID() + r.count() - 1

	r.setElementSize(offset, numBytes)
	r.setLastElemOffset(offset)

	return r.getElementAccessor(offset), id
}

// Shift removes and returns the oldest element, or the zero Accessor if the
// ring buffer is empty. The returned accessor aliases memory that the next
// Push call may overwrite.
func (r *PlacedRingBuffer) Shift() xrpamem.Accessor {
	if r.count() == 0 {
		return xrpamem.Accessor{}
	}

	ret := r.GetAt(0)

	numBytes := r.getElementSize(r.startOffset())
	newStart := r.startOffset() + elementHeaderSize + numBytes
	if newStart >= r.prewrapOffset() {
		newStart = 0
		r.setPrewrapOffset(r.poolSize())
	}
	r.setStartOffset(newStart)

	r.setStartID(r.startID() + 1)
	r.setCount(r.count() - 1)

	if r.count() == 0 {
		r.setStartOffset(0)
		r.setLastElemOffset(0)
		r.setPrewrapOffset(r.poolSize())
	}

	return ret
}

// Iterator walks a PlacedRingBuffer from the last position it observed,
// detecting elements that were evicted before they could be read.
type Iterator struct {
	lastReadID     int32
	lastReadOffset int32
}

// NewIterator returns an iterator positioned before the very first element
// ever pushed.
func NewIterator() *Iterator {
	return &Iterator{lastReadID: -1}
}

// HasMissedEntries reports whether elements were evicted from the ring
// buffer since this iterator's last read, meaning at least one update was
// lost.
func (it *Iterator) HasMissedEntries(r *PlacedRingBuffer) bool {
	return it.lastReadID < r.startID()-1
}

// HasNext reports whether there is at least one unread element.
func (it *Iterator) HasNext(r *PlacedRingBuffer) bool {
	if r.count() == 0 {
		return false
	}
	return it.lastReadID < r.GetMaxID()
}

// HasNextUpTo reports whether there is an unread element with id <= maxID.
func (it *Iterator) HasNextUpTo(maxID int32) bool {
	return it.lastReadID < maxID
}

// Next returns the next unread element and advances the iterator, or
// returns the zero Accessor if there is nothing left to read.
func (it *Iterator) Next(r *PlacedRingBuffer) xrpamem.Accessor {
	if !it.HasNext(r) {
		return xrpamem.Accessor{}
	}
	if it.lastReadID < r.startID() {
		it.lastReadID = r.startID()
		it.lastReadOffset = r.startOffset()
	} else {
		it.lastReadID++
		it.lastReadOffset = r.getNextOffset(it.lastReadOffset)
	}
	return r.getElementAccessor(it.lastReadOffset)
}

// SetToEnd advances the iterator past every element currently in the ring
// buffer, without reading them, so that only future pushes are seen.
func (it *Iterator) SetToEnd(r *PlacedRingBuffer) {
	it.lastReadID = r.GetMaxID()
	it.lastReadOffset = r.lastElemOffset()
}
