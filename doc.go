// Package warp is a GPU-style dense-matrix compute engine for
// transformer inference workloads.
//
// It models the CUDA execution hierarchy on CPU cores: kernels run as
// grids of thread blocks, blocks are sharded across worker goroutines,
// and threads within a block execute with well-defined barrier points.
// On top of that execution core it provides the kernel suite needed
// for a GPT-2-style forward pass: three matrix-multiply strategies,
// a tiled transpose, row-sum and global-max reductions, a generic
// elementwise operator family, an embedding gather, and a numerically
// stable softmax sampler.
//
// All matrices are dense, row-major float32. The Matrix descriptor is
// non-owning; allocation, transfer, and release of device buffers are
// explicit caller responsibilities:
//
//	h := warp.NewHostMatrix(500, 300)
//	// ... fill h.Data ...
//	a, err := warp.ToDevice(h)
//	if err != nil {
//		return err
//	}
//	defer a.Free()
//
// Kernel launches are asynchronous with respect to the host. Reading
// results requires an explicit join, either warp.Synchronize or one of
// the ToHost helpers, which synchronize before copying.
package warp
