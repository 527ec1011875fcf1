package warp

import (
	"runtime"
	"sync"
)

// Block is the view a block-level kernel has of its own position in the
// grid plus its shared-memory scratch buffer. Shared memory is private
// to the block and zeroed before the block body runs.
type Block struct {
	Idx    Dim3      // Block index within the grid
	Dim    Dim3      // Thread dimensions of the block
	Grid   Dim3      // Grid dimensions
	Shared []float32 // Block-shared scratch memory
}

// ForEachThread invokes fn once per thread of the block, in row-major
// thread order. Calling it repeatedly realizes the barrier-separated
// phases of a CUDA kernel: all threads complete one ForEachThread pass
// before the next pass begins, which is exactly the guarantee
// __syncthreads provides between phases. Synchronization never spans
// blocks; cross-block communication must go through atomics.
func (b *Block) ForEachThread(fn func(t Dim3)) {
	for tz := 0; tz < b.Dim.Z; tz++ {
		for ty := 0; ty < b.Dim.Y; ty++ {
			for tx := 0; tx < b.Dim.X; tx++ {
				fn(Dim3{X: tx, Y: ty, Z: tz})
			}
		}
	}
}

// BlockFunc is a block-level kernel body. It is invoked once per block
// and iterates its own threads via Block.ForEachThread. Used by kernels
// that need shared memory and intra-block barriers (tiled matmul,
// tiled transpose, tree reductions).
type BlockFunc func(blk *Block)

// launchInternal shards the grid of a per-thread kernel across worker
// goroutines. Each worker processes a contiguous range of blocks to
// maximize cache reuse; threads within a block run sequentially.
func (ctx *Context) launchInternal(fn KernelFunc, grid, block Dim3, stream *Stream) error {
	if err := validateLaunch(grid, block); err != nil {
		return err
	}

	gridSize := grid.Size()
	blockSize := block.Size()

	if gridSize == 0 {
		// Submit an empty task to maintain stream ordering.
		stream.Submit(func() {})
		return nil
	}

	numWorkers := runtime.NumCPU()
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	stream.Submit(func() {
		var wg sync.WaitGroup
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			go func(start, end int) {
				defer wg.Done()

				for blockID := start; blockID < end; blockID++ {
					blockIdx := linearTo3D(blockID, grid)

					for threadID := 0; threadID < blockSize; threadID++ {
						fn(ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: linearTo3D(threadID, block),
							BlockDim:  block,
							GridDim:   grid,
						})
					}
				}
			}(startBlock, endBlock)
		}

		wg.Wait()
	})

	return nil
}

// LaunchBlocks executes a block-level kernel on the default stream of
// the context. Each block receives a zeroed shared buffer of sharedLen
// float32s. Blocks are sharded across worker goroutines; a worker's
// shared buffer is reused (and re-zeroed) between the blocks it runs.
func (ctx *Context) LaunchBlocks(fn BlockFunc, grid, block Dim3, sharedLen int) error {
	return ctx.LaunchBlocksStream(fn, grid, block, sharedLen, ctx.defaultStream)
}

// LaunchBlocksStream executes a block-level kernel on a specific stream.
func (ctx *Context) LaunchBlocksStream(fn BlockFunc, grid, block Dim3, sharedLen int, stream *Stream) error {
	if err := validateLaunch(grid, block); err != nil {
		return err
	}
	if sharedLen < 0 {
		return NewLaunchError("LaunchBlocks", "negative shared memory length", nil)
	}

	gridSize := grid.Size()
	if gridSize == 0 {
		stream.Submit(func() {})
		return nil
	}

	numWorkers := runtime.NumCPU()
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	stream.Submit(func() {
		var wg sync.WaitGroup
		wg.Add(numWorkers)

		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			go func(start, end int) {
				defer wg.Done()

				shared := make([]float32, sharedLen)
				for blockID := start; blockID < end; blockID++ {
					for i := range shared {
						shared[i] = 0
					}
					fn(&Block{
						Idx:    linearTo3D(blockID, grid),
						Dim:    block,
						Grid:   grid,
						Shared: shared,
					})
				}
			}(startBlock, endBlock)
		}

		wg.Wait()
	})

	return nil
}

// validateLaunch rejects launch configurations before any work is
// submitted. Grids may be empty (zero-sized dimensions launch nothing);
// blocks must have at least one thread and no negative dimensions.
func validateLaunch(grid, block Dim3) error {
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 {
		return NewLaunchError("Launch", "negative grid dimension", nil)
	}
	if block.X < 1 || block.Y < 1 || block.Z < 1 {
		return NewLaunchError("Launch", "block dimensions must be at least 1x1x1", nil)
	}
	return nil
}

// linearTo3D converts a linear index to 3-D coordinates.
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
