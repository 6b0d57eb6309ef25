package placedalloc

import (
	"unsafe"

	"github.com/xrpa-io/xrpa-go/xrpamem"
)

// sortedArrayHeaderSize is the byte size of maxCount+count, both int32.
const sortedArrayHeaderSize = 8

// Ordered is the element constraint for SortedArray: elements order
// themselves against a query of the same type, mirroring the legacy
// runtime's ElemType::compare(a, b) static method. Elements must be
// fixed-size, pointer-free values so the array can reinterpret its backing
// bytes directly, the same restriction signal.Sample carries.
type Ordered[T any] interface {
	Compare(other T) int
}

// SortedArray is a fixed-capacity array of Ordered elements kept sorted by
// Compare, laid out directly over an xrpamem.Accessor window.
type SortedArray[T Ordered[T]] struct {
	mem xrpamem.Accessor
}

// MemSize returns the bytes a SortedArray needs to hold up to maxCount
// elements, including its header.
func MemSize[T Ordered[T]](maxCount int32) int32 {
	var zero T
	return sortedArrayHeaderSize + maxCount*int32(unsafe.Sizeof(zero))
}

// New wraps mem as a SortedArray. Call Init before first use.
func New[T Ordered[T]](mem xrpamem.Accessor) *SortedArray[T] {
	return &SortedArray[T]{mem: mem}
}

// Init formats the array as empty with room for maxCount elements.
func (s *SortedArray[T]) Init(maxCount int32) {
	xrpamem.WriteValue[int32](s.mem, maxCount, 0)
	xrpamem.WriteValue[int32](s.mem, 0, 4)
}

// Reset empties the array without changing its capacity.
func (s *SortedArray[T]) Reset() {
	xrpamem.WriteValue[int32](s.mem, 0, 4)
}

func (s *SortedArray[T]) maxCount() int32 { return xrpamem.ReadValue[int32](s.mem, 0) }

// Len returns the number of elements currently stored.
func (s *SortedArray[T]) Len() int32 { return xrpamem.ReadValue[int32](s.mem, 4) }

func (s *SortedArray[T]) setLen(v int32) { xrpamem.WriteValue[int32](s.mem, v, 4) }

// IsFull reports whether the array has reached its capacity.
func (s *SortedArray[T]) IsFull() bool { return s.Len() >= s.maxCount() }

func (s *SortedArray[T]) elems() []T {
	var zero T
	elemSize := int32(unsafe.Sizeof(zero))
	raw := s.mem.RawBytes(sortedArrayHeaderSize, s.maxCount()*elemSize)
	if len(raw) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), s.maxCount())
}

// Get returns the element at index.
func (s *SortedArray[T]) Get(index int32) T {
	return s.elems()[index]
}

// Insert inserts val in sorted order and returns its index, or -1 if the
// array is already full.
func (s *SortedArray[T]) Insert(val T) int32 {
	if s.IsFull() {
		return -1
	}
	index, _ := s.Find(val)
	s.InsertPresorted(val, index)
	return index
}

// InsertPresorted inserts val at index, an index already known (e.g. from a
// prior Find call) to keep the array sorted. Returns false if the array is
// full.
func (s *SortedArray[T]) InsertPresorted(val T, index int32) bool {
	if s.IsFull() {
		return false
	}
	n := s.Len()
	arr := s.elems()
	if index < n {
		copy(arr[index+1:n+1], arr[index:n])
	}
	arr[index] = val
	s.setLen(n + 1)
	return true
}

// RemoveIndex removes the element at index, shifting later elements down.
func (s *SortedArray[T]) RemoveIndex(index int32) {
	n := s.Len()
	if index < 0 || index >= n {
		return
	}
	n--
	if index < n {
		arr := s.elems()
		copy(arr[index:n], arr[index+1:n+1])
	}
	s.setLen(n)
}

// RemoveIndexRange removes every element in [startIndex, endIndex).
func (s *SortedArray[T]) RemoveIndexRange(startIndex, endIndex int32) {
	n := s.Len()
	if startIndex < 0 {
		startIndex = 0
	}
	if endIndex > n {
		endIndex = n
	}
	if endIndex > startIndex {
		newLen := n - (endIndex - startIndex)
		arr := s.elems()
		copy(arr[startIndex:newLen], arr[endIndex:n])
		s.setLen(newLen)
	}
}

// RemoveValue removes the element matching val, if present.
func (s *SortedArray[T]) RemoveValue(val T) {
	index, found := s.Find(val)
	if found {
		s.RemoveIndex(index)
	}
}

// Find returns the index of target, and whether it was found. If not found,
// the index is where target would need to be inserted to keep the array
// sorted.
func (s *SortedArray[T]) Find(target T) (index int32, found bool) {
	return s.findInternal(target, false, false)
}

// Contains reports whether target is present in the array.
func (s *SortedArray[T]) Contains(target T) bool {
	_, found := s.findInternal(target, false, false)
	return found
}

// FindRange returns the [startIndex, endIndex) span of elements comparing
// equal to query, or an empty range if none match.
func (s *SortedArray[T]) FindRange(query T) (startIndex, endIndex int32) {
	low, found := s.findInternal(query, true, false)
	if !found {
		return 0, 0
	}
	high, _ := s.findInternal(query, false, true)
	return low, high + 1
}

func (s *SortedArray[T]) findInternal(target T, findLow, findHigh bool) (int32, bool) {
	lowIdx := int32(0)
	highIdx := s.Len() - 1
	arr := s.elems()

	lastFound := int32(0)
	found := false

	for lowIdx <= highIdx {
		midIdx := (lowIdx + highIdx) / 2
		d := arr[midIdx].Compare(target)
		switch {
		case d > 0:
			highIdx = midIdx - 1
		case d < 0:
			lowIdx = midIdx + 1
		default:
			found = true
			lastFound = midIdx
			switch {
			case findLow:
				highIdx = midIdx - 1
			case findHigh:
				lowIdx = midIdx + 1
			default:
				lowIdx = highIdx + 1 // break out
			}
		}
	}
	if found {
		return lastFound, true
	}
	return lowIdx, false
}
