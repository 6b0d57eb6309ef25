// Package placedalloc implements a free-list allocator and a sorted array,
// both laid out directly over an xrpamem.Accessor window rather than as Go
// heap values, so they can live inside a shared-memory region the way a
// collection's backing store does in the legacy runtime this replaces.
package placedalloc

import (
	"github.com/xrpa-io/xrpa-go/xrpamem"
)

// allocatorHeaderSize is the byte size of the allocator's own bookkeeping
// fields (firstFree, poolSize), which precede the pool itself in the
// backing accessor.
const allocatorHeaderSize = 8

// splitThreshold mirrors the legacy runtime's constant: a free block isn't
// worth splitting into two nodes unless the remainder leaves more than this
// many spare bytes.
const splitThreshold = 64

// freeNodeSize is size+next+prev, all int32.
const freeNodeSize = 12

// allocNodeSize is just the size field, int32.
const allocNodeSize = 4

func align4(n int32) int32 { return (n + 3) &^ 3 }

// Allocator is a first-fit-by-smallest-fit free-list allocator over a fixed
// pool of bytes. It never grows; Alloc returns a null Accessor once the pool
// can no longer satisfy a request, the same way the pool it replaces did.
type Allocator struct {
	mem xrpamem.Accessor
}

// MemSize returns the number of bytes a pool of poolSize usable bytes needs,
// including the allocator's own header.
func MemSize(poolSize int32) int32 {
	return allocatorHeaderSize + poolSize
}

// New wraps mem as an Allocator. Call Init before first use; if mem already
// holds an initialized allocator (e.g. reopening a shared-memory region
// another process created), use the returned Allocator without calling Init.
func New(mem xrpamem.Accessor) *Allocator {
	return &Allocator{mem: mem}
}

// Init formats the pool as a single free block spanning all of poolSize.
func (a *Allocator) Init(poolSize int32) {
	a.setFirstFree(0)
	a.setPoolSize(poolSize)
	node := a.pool().Slice(0, freeNodeSize)
	xrpamem.WriteValue[int32](node, poolSize, 0)
	xrpamem.WriteValue[int32](node, -1, 4)
	xrpamem.WriteValue[int32](node, -1, 8)
}

// Reset discards every outstanding allocation and reinitializes the pool.
func (a *Allocator) Reset() {
	a.Init(a.poolSize())
}

func (a *Allocator) firstFree() int32      { return xrpamem.ReadValue[int32](a.mem, 0) }
func (a *Allocator) setFirstFree(v int32)  { xrpamem.WriteValue[int32](a.mem, v, 0) }
func (a *Allocator) poolSize() int32       { return xrpamem.ReadValue[int32](a.mem, 4) }
func (a *Allocator) setPoolSize(v int32)   { xrpamem.WriteValue[int32](a.mem, v, 4) }
func (a *Allocator) pool() xrpamem.Accessor {
	return a.mem.Slice(allocatorHeaderSize, a.poolSize())
}

type freeNode struct{ offset int32 }

func (a *Allocator) freeNodeAt(offset int32) freeNode { return freeNode{offset: offset} }

func (a *Allocator) size(n freeNode) int32     { return xrpamem.ReadValue[int32](a.pool(), n.offset) }
func (a *Allocator) setSize(n freeNode, v int32) {
	xrpamem.WriteValue[int32](a.pool(), v, n.offset)
}
func (a *Allocator) next(n freeNode) int32 { return xrpamem.ReadValue[int32](a.pool(), n.offset+4) }
func (a *Allocator) setNext(n freeNode, v int32) {
	xrpamem.WriteValue[int32](a.pool(), v, n.offset+4)
}
func (a *Allocator) prev(n freeNode) int32 { return xrpamem.ReadValue[int32](a.pool(), n.offset+8) }
func (a *Allocator) setPrev(n freeNode, v int32) {
	xrpamem.WriteValue[int32](a.pool(), v, n.offset+8)
}

// Alloc reserves at least numBytes and returns an accessor over the usable
// portion, or a null accessor if no free block is big enough. It scans the
// whole free list and picks the smallest block that fits (best fit), to
// keep fragmentation low.
func (a *Allocator) Alloc(numBytes int32) xrpamem.Accessor {
	sizeNeeded := align4(allocNodeSize + numBytes)
	if sizeNeeded < freeNodeSize {
		sizeNeeded = freeNodeSize
	}

	foundOffset := int32(-1)
	foundSize := int32(0)
	for cur := a.firstFree(); cur >= 0; cur = a.next(a.freeNodeAt(cur)) {
		n := a.freeNodeAt(cur)
		curSize := a.size(n)
		if curSize >= sizeNeeded && (foundOffset < 0 || curSize < foundSize) {
			foundOffset = cur
			foundSize = curSize
		}
	}
	if foundOffset < 0 {
		return xrpamem.Accessor{}
	}

	found := a.freeNodeAt(foundOffset)
	foundPrev := a.prev(found)
	foundNext := a.next(found)

	if foundSize-sizeNeeded > splitThreshold {
		splitOffset := foundOffset + sizeNeeded
		split := a.freeNodeAt(splitOffset)
		a.setSize(split, foundSize-sizeNeeded)
		a.setPrev(split, foundPrev)
		a.setNext(split, foundNext)
		a.fixupNeighbors(split)

		xrpamem.WriteValue[int32](a.pool(), sizeNeeded, foundOffset)
	} else {
		if foundPrev >= 0 {
			a.setNext(a.freeNodeAt(foundPrev), foundNext)
		} else {
			a.setFirstFree(foundNext)
		}
		if foundNext >= 0 {
			a.setPrev(a.freeNodeAt(foundNext), foundPrev)
		}
	}

	return a.pool().Slice(foundOffset+allocNodeSize, sizeNeeded-allocNodeSize)
}

// Get returns an accessor over a previously allocated block given the
// offset Alloc's returned accessor sits at within the pool.
func (a *Allocator) Get(offset int32) xrpamem.Accessor {
	if offset < allocNodeSize {
		return xrpamem.Accessor{}
	}
	nodeOffset := offset - allocNodeSize
	size := xrpamem.ReadValue[int32](a.pool(), nodeOffset)
	return a.pool().Slice(offset, size-allocNodeSize)
}

// Offset returns mem's offset within the pool, suitable for passing to Get
// or Free after being stored elsewhere (e.g. in a collection's index).
func (a *Allocator) Offset(mem xrpamem.Accessor) int32 {
	return mem.Offset() - a.mem.Offset() - allocatorHeaderSize
}

// Free releases a block previously returned by Alloc, merging it with
// adjacent free blocks where possible.
func (a *Allocator) Free(mem xrpamem.Accessor) {
	a.FreeOffset(a.Offset(mem))
}

// FreeOffset releases a block by its pool offset.
func (a *Allocator) FreeOffset(offset int32) {
	nodeOffset := offset - allocNodeSize
	if nodeOffset < 0 {
		return
	}
	size := xrpamem.ReadValue[int32](a.pool(), nodeOffset)

	prevOffset := int32(-1)
	nextOffset := a.firstFree()
	for nextOffset >= 0 && nodeOffset > nextOffset {
		prevOffset = nextOffset
		nextOffset = a.next(a.freeNodeAt(nextOffset))
	}

	if prevOffset >= 0 && nodeOffset == prevOffset+a.size(a.freeNodeAt(prevOffset)) {
		prevNode := a.freeNodeAt(prevOffset)
		nodeOffset = prevOffset
		size += a.size(prevNode)
		prevOffset = a.prev(prevNode)
	}

	if nextOffset == nodeOffset+size {
		nextNode := a.freeNodeAt(nextOffset)
		size += a.size(nextNode)
		nextOffset = a.next(nextNode)
	}

	node := a.freeNodeAt(nodeOffset)
	a.setSize(node, size)
	a.setPrev(node, prevOffset)
	a.setNext(node, nextOffset)
	a.fixupNeighbors(node)
}

func (a *Allocator) fixupNeighbors(node freeNode) {
	if p := a.prev(node); p >= 0 {
		a.setNext(a.freeNodeAt(p), node.offset)
	} else {
		a.setFirstFree(node.offset)
	}
	if n := a.next(node); n >= 0 {
		a.setPrev(a.freeNodeAt(n), node.offset)
	}
}
