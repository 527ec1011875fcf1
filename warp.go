package warp

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device describes the compute device backing the engine. Execution is
// CPU-resident; the device descriptor reports core count and memory the
// same way a GPU runtime would report its properties.
type Device struct {
	ID         int    // Unique device identifier
	Name       string // Human-readable device name
	TotalMem   uint64 // Total available memory in bytes
	NumCores   int    // Number of CPU cores
	MaxThreads int    // Maximum concurrent threads
}

// Context is an execution context. It owns the memory pool and the
// streams on which kernels execute. A Context must be created (or the
// package-level default used) before any operation.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
}

// Stream is an ordered sequence of asynchronously executed operations.
// Operations within a stream execute in submission order; operations on
// different streams may execute concurrently.
type Stream struct {
	id    int
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
}

// Dim3 holds 3-D grid and block dimensions, matching CUDA's dim3.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements spanned by the dimensions.
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a thread's position within the launch hierarchy,
// with the same semantics as CUDA's blockIdx/threadIdx/blockDim/gridDim.
type ThreadID struct {
	BlockIdx  Dim3
	ThreadIdx Dim3
	BlockDim  Dim3
	GridDim   Dim3
}

// Global returns the linear global thread index along X.
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalX returns the global X index.
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index.
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// KernelFunc is a per-thread kernel body. It is invoked once for every
// thread in the launch grid and must be safe for concurrent execution
// across blocks.
type KernelFunc func(tid ThreadID)

// DevicePtr is a handle to pool-allocated device memory. Use the typed
// view methods (Float32, Int32, Byte) to access the underlying buffer
// and Offset for sub-regions.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// Global runtime state.
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

func init() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:         0,
			Name:       deviceName(),
			TotalMem:   systemMemory(),
			NumCores:   runtime.NumCPU(),
			MaxThreads: runtime.NumCPU() * 2,
		}

		defaultContext = &Context{
			device:  defaultDevice,
			streams: make(map[int]*Stream),
			memory:  NewMemoryPool(),
		}

		defaultContext.defaultStream = defaultContext.CreateStream()
	})
}

// Malloc allocates device memory of the given size in bytes from the
// default context's pool.
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host slices and device pointers on the
// default context.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a per-thread kernel on the default stream.
func Launch(fn KernelFunc, grid, block Dim3) error {
	return defaultContext.Launch(fn, grid, block)
}

// LaunchBlocks executes a block-level kernel on the default stream.
// See Context.LaunchBlocks for the shared-memory and barrier contract.
func LaunchBlocks(fn BlockFunc, grid, block Dim3, sharedLen int) error {
	return defaultContext.LaunchBlocks(fn, grid, block, sharedLen)
}

// Synchronize blocks until all operations on all streams of the default
// context have completed. Kernel launches are asynchronous; results must
// not be read from device memory before a synchronize.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the active device descriptor.
func GetDevice() *Device {
	return defaultDevice
}

// Context methods

// CreateStream creates a new execution stream backed by its own worker
// goroutine.
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func(), 1000),
		done:  make(chan struct{}),
	}

	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// Launch executes a per-thread kernel on the default stream.
func (ctx *Context) Launch(fn KernelFunc, grid, block Dim3) error {
	return ctx.LaunchStream(fn, grid, block, ctx.defaultStream)
}

// LaunchStream executes a per-thread kernel on a specific stream.
func (ctx *Context) LaunchStream(fn KernelFunc, grid, block Dim3, stream *Stream) error {
	return ctx.launchInternal(fn, grid, block, stream)
}

// Synchronize waits for all streams to complete.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, s := range ctx.streams {
		streams = append(streams, s)
	}
	ctx.mu.Unlock()

	for _, stream := range streams {
		stream.Synchronize()
	}
	return nil
}

// Stream methods

func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks submitted to the stream to complete.
func (s *Stream) Synchronize() {
	s.wg.Wait()
}

// Submit adds a task to the stream.
func (s *Stream) Submit(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}
