package warp

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of a memory transfer. The engine's
// memory is CPU-resident, so all directions reduce to a copy, but the
// direction is kept in the API so host/device movement stays explicit
// at call sites.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
)

// MemoryPool manages device memory allocation with free-list reuse.
// Allocations and releases are explicit; the pool detects double frees
// and frees of unknown pointers.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	buf  []byte // retained so the GC keeps the block alive
	ptr  unsafe.Pointer
	size int
	used bool
}

// NewMemoryPool creates a new memory pool.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Malloc allocates device memory of the specified size in bytes.
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc. The memory may be
// retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	return ctx.memory.Free(ptr)
}

// Allocate allocates memory from the pool, reusing a free block when
// one of sufficient size exists. Buffers are 64-byte aligned.
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	const alignment = 64 // Cache line size
	alignedSize := (size + alignment - 1) &^ (alignment - 1)

	// Try to reuse from the free list.
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true

			mp.totalAlloc += int64(alloc.size)
			if mp.totalAlloc > mp.peakAlloc {
				mp.peakAlloc = mp.totalAlloc
			}

			return DevicePtr{ptr: alloc.ptr, size: size}, nil
		}
	}

	// Over-allocate so the data pointer can be advanced to a 64-byte
	// boundary regardless of where the runtime places the slice.
	buf := make([]byte, alignedSize+alignment)
	base := uintptr(unsafe.Pointer(&buf[0]))
	off := (alignment - int(base&(alignment-1))) & (alignment - 1)
	ptr := unsafe.Pointer(&buf[off])

	alloc := &allocation{
		buf:  buf,
		ptr:  ptr,
		size: alignedSize,
		used: true,
	}
	mp.allocated[uintptr(ptr)] = alloc

	mp.totalAlloc += int64(alignedSize)
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}

	return DevicePtr{ptr: ptr, size: size}, nil
}

// Free returns memory to the pool.
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return ErrUnknownPointer
	}
	if !alloc.used {
		return ErrDoubleFree
	}

	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// Stats returns the currently allocated and peak byte counts.
func (mp *MemoryPool) Stats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// Memcpy copies memory between host slices and device pointers. The
// copy itself is synchronous with respect to the host, but it does NOT
// join in-flight kernels; call Synchronize before copying results off
// the device.
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if size < 0 {
		return NewTransferError("Memcpy", "negative size", nil)
	}
	if kind < MemcpyHostToHost || kind > MemcpyDeviceToDevice {
		return NewTransferError("Memcpy", fmt.Sprintf("unknown transfer kind: %d", kind), nil)
	}

	dstPtr, dstLen, err := transferPointer("Memcpy dst", dst)
	if err != nil {
		return err
	}
	srcPtr, srcLen, err := transferPointer("Memcpy src", src)
	if err != nil {
		return err
	}

	if size == 0 {
		return nil
	}
	if dstPtr == nil || srcPtr == nil {
		return NewTransferError("Memcpy", "nil transfer operand", nil)
	}
	if size > dstLen || size > srcLen {
		return NewTransferError("Memcpy",
			fmt.Sprintf("copy of %d bytes exceeds operand size (dst %d, src %d)", size, dstLen, srcLen), nil)
	}

	copy(unsafe.Slice((*byte)(dstPtr), size), unsafe.Slice((*byte)(srcPtr), size))
	return nil
}

// transferPointer resolves a Memcpy operand to a raw pointer and its
// byte length.
func transferPointer(op string, v interface{}) (unsafe.Pointer, int, error) {
	switch x := v.(type) {
	case DevicePtr:
		return x.ptr, x.size, nil
	case []byte:
		if len(x) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&x[0]), len(x), nil
	case []float32:
		if len(x) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&x[0]), len(x) * 4, nil
	case []int32:
		if len(x) == 0 {
			return nil, 0, nil
		}
		return unsafe.Pointer(&x[0]), len(x) * 4, nil
	default:
		return nil, 0, NewTransferError(op, fmt.Sprintf("unsupported operand type: %T", v), nil)
	}
}

// DevicePtr view methods

// Float32 returns a float32 slice view of the device memory.
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Int32 returns an int32 slice view of the device memory.
func (d DevicePtr) Int32() []int32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*int32)(d.ptr), d.size/4)
}

// Byte returns a byte slice view over the full region.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Offset returns a DevicePtr advanced by the given number of bytes,
// sharing the same underlying memory.
func (d DevicePtr) Offset(bytes int) DevicePtr {
	return DevicePtr{
		ptr:    unsafe.Pointer(uintptr(d.ptr) + uintptr(bytes)),
		size:   d.size - bytes,
		offset: d.offset + bytes,
	}
}

// Size returns the size in bytes of the memory region.
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether the pointer references no memory.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}
