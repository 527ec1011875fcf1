package warp

import (
	"math"
	"sync/atomic"
)

// Reduction engine: row-wise sum and global max. Both stage per-thread
// partials in block-shared memory; the global max additionally merges
// per-block results through a lock-free compare-and-swap accumulator,
// since no native floating-point atomic max is assumed to exist.

// reduceBlockThreads is the thread count of a reduction block. Must be
// a power of two for the tree reduction.
const reduceBlockThreads = 256

// RowSum computes the sum of each row of in and writes it to column 0
// of the corresponding row of out. All other positions of out are left
// untouched; use Broadcast to spread the sum across the row. in and out
// must have identical shapes.
func RowSum(in, out Matrix) error {
	if err := checkSameShape("RowSum", in, out); err != nil {
		return err
	}
	if in.Len() == 0 {
		return nil
	}

	rows, cols := in.Rows, in.Cols
	src := in.Data.Float32()[:in.Len()]
	dst := out.Data.Float32()[:out.Len()]

	grid := Dim3{X: rows, Y: 1, Z: 1}
	block := Dim3{X: reduceBlockThreads, Y: 1, Z: 1}

	return LaunchBlocks(func(blk *Block) {
		row := blk.Idx.X
		base := row * cols

		// Each thread accumulates a grid-stride partial sum over the
		// row's columns into shared memory.
		blk.ForEachThread(func(t Dim3) {
			var partial float32
			for c := t.X; c < cols; c += blk.Dim.X {
				partial += src[base+c]
			}
			blk.Shared[t.X] = partial
		})

		// The block leader folds the partials serially.
		var sum float32
		for i := 0; i < blk.Dim.X; i++ {
			sum += blk.Shared[i]
		}
		dst[base] = sum
	}, grid, block, reduceBlockThreads)
}

// GlobalMax returns the maximum element of m. Per-thread grid-stride
// maxima are reduced within each block by a shared-memory tree, and
// per-block results are merged into a single accumulator with a
// compare-and-swap retry loop over the float's bit pattern. The
// accumulator starts at -MaxFloat32, which is no greater than any
// finite input.
func GlobalMax(m Matrix) (float32, error) {
	n := m.Len()
	if n == 0 {
		return 0, NewDimensionError("GlobalMax", "reduction over empty matrix")
	}

	acc, err := Malloc(4)
	if err != nil {
		return 0, err
	}
	defer Free(acc)
	acc.Float32()[0] = -math.MaxFloat32
	accBits := (*uint32)(acc.ptr)

	dat := m.Data.Float32()[:n]

	gridX := (n + reduceBlockThreads - 1) / reduceBlockThreads
	if gridX > 1024 {
		gridX = 1024
	}
	grid := Dim3{X: gridX, Y: 1, Z: 1}
	block := Dim3{X: reduceBlockThreads, Y: 1, Z: 1}
	stride := gridX * reduceBlockThreads

	err = LaunchBlocks(func(blk *Block) {
		// Phase 1: grid-stride local maxima. Threads that cover no
		// elements contribute the identity, not a stale zero.
		blk.ForEachThread(func(t Dim3) {
			local := float32(-math.MaxFloat32)
			for i := blk.Idx.X*blk.Dim.X + t.X; i < n; i += stride {
				if dat[i] > local {
					local = dat[i]
				}
			}
			blk.Shared[t.X] = local
		})

		// Phase 2: tree reduction, halving the active stride each
		// round. Each ForEachThread pass is a barrier-separated round.
		for s := blk.Dim.X / 2; s > 0; s >>= 1 {
			blk.ForEachThread(func(t Dim3) {
				if t.X < s && blk.Shared[t.X+s] > blk.Shared[t.X] {
					blk.Shared[t.X] = blk.Shared[t.X+s]
				}
			})
		}

		// Phase 3: the block leader merges into the global accumulator.
		atomicMaxFloat32(accBits, blk.Shared[0])
	}, grid, block, reduceBlockThreads)
	if err != nil {
		return 0, err
	}

	if err := Synchronize(); err != nil {
		return 0, err
	}
	return acc.Float32()[0], nil
}

// atomicMaxFloat32 raises the float32 stored at addr to at least v
// using a compare-and-swap retry loop over the value's bit pattern:
// read the current value, compute the candidate maximum, attempt the
// exchange, and retry if another block won the race.
func atomicMaxFloat32(addr *uint32, v float32) {
	vBits := math.Float32bits(v)
	for {
		old := atomic.LoadUint32(addr)
		if math.Float32frombits(old) >= v {
			return
		}
		if atomic.CompareAndSwapUint32(addr, old, vBits) {
			return
		}
	}
}
