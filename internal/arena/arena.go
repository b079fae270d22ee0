// Package arena implements a fixed-block free-list allocator backing the
// per-context call stack (spec.md §4.2). Amortizing allocation in the hot call/return path keeps
// GC pressure bounded under deep or tight recursion.
//
// Handles, not pointers: blocks are referenced by an integer handle into
// the backing slice, mirroring the teacher's internal/stack "never hold a
// pointer into a growable slice" discipline. A growing backing slice can
// safely be reallocated because no live handle is invalidated by it.
package arena

import (
	"strconv"
	"unsafe"

	"github.com/viroprof/vprof/internal/verror"
)

// Handle is an opaque reference to an allocated block.
type Handle int32

const noHandle Handle = -1

// FreeList is a generic fixed-block allocator with an optional capacity
// limit. Freed blocks are returned to a single-linked free list and are
// never reordered: the next Allocate() call reuses the most recently
// freed block.
type FreeList[T any] struct {
	blocks    []T
	next      []Handle // next[h] = next free handle in the free list, or noHandle
	freeHead  Handle
	limit     int // 0 = unlimited
	allocated int64
	inUse     int
}

// New creates a FreeList. limit caps the number of live blocks; 0 means
// unlimited (bounded only by available memory).
func New[T any](limit int) *FreeList[T] {
	return &FreeList[T]{freeHead: noHandle, limit: limit}
}

// Allocate returns a handle to a zero-valued block, reusing a freed block
// when one is available. Returns verror.OutOfMemory if limit is reached.
func (f *FreeList[T]) Allocate() (Handle, *T, error) {
	if f.freeHead != noHandle {
		h := f.freeHead
		f.freeHead = f.next[h]
		var zero T
		f.blocks[h] = zero
		f.inUse++
		return h, &f.blocks[h], nil
	}

	if f.limit > 0 && len(f.blocks) >= f.limit {
		return noHandle, nil, verror.NewOutOfMemory(verror.IDArenaExhausted, [3]string{
			strconv.Itoa(f.inUse), strconv.Itoa(f.limit), "",
		})
	}

	var zero T
	f.blocks = append(f.blocks, zero)
	f.next = append(f.next, noHandle)
	h := Handle(len(f.blocks) - 1)
	f.inUse++
	f.allocated++
	return h, &f.blocks[h], nil
}

// Free returns a block to the free list. Callers must not dereference a
// handle after freeing it.
func (f *FreeList[T]) Free(h Handle) {
	if h < 0 || int(h) >= len(f.blocks) {
		return
	}
	f.next[h] = f.freeHead
	f.freeHead = h
	f.inUse--
}

// Get dereferences a live handle.
func (f *FreeList[T]) Get(h Handle) *T {
	if h < 0 || int(h) >= len(f.blocks) {
		return nil
	}
	return &f.blocks[h]
}

// InUse returns the number of currently-allocated (non-freed) blocks.
func (f *FreeList[T]) InUse() int { return f.inUse }

// BytesAllocated estimates cumulative bytes ever allocated by this arena
// (never freed back to the OS), backing get_mem_usage() in spec.md §6.
func (f *FreeList[T]) BytesAllocated() int64 {
	var zero T
	return f.allocated * int64(sizeOf(zero))
}

func sizeOf[T any](v T) int {
	return int(unsafe.Sizeof(v))
}
