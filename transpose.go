package warp

import "fmt"

// Transpose engine: tiled, coalesced transpose. 64x64 tiles are staged
// through block-shared memory by 64x16 thread blocks, each thread
// covering four rows of the tile. The tile is padded by one column, the
// layout that avoids shared-memory bank conflicts in the device
// formulation; the padding is kept so the indexing stays identical.

const (
	transposeTile     = 64
	transposeRowsPer  = 4
	transposeTileLd   = transposeTile + 1 // padded leading dimension
	transposeBlockDim = transposeTile / transposeRowsPer
)

// Transpose writes the transpose of in (rows×cols) to the pre-allocated
// out (cols×rows). Both matrices must already be device-resident. Every
// valid element is visited exactly once in each direction; elements
// beyond the matrix edges are neither read nor written.
func Transpose(in, out Matrix) error {
	if out.Rows != in.Cols || out.Cols != in.Rows {
		return NewDimensionError("Transpose",
			fmt.Sprintf("output is %dx%d, want %dx%d", out.Rows, out.Cols, in.Cols, in.Rows))
	}
	if in.Len() == 0 {
		return nil
	}

	rows, cols := in.Rows, in.Cols
	src := in.Data.Float32()[:in.Len()]
	dst := out.Data.Float32()[:out.Len()]

	const ts = transposeTile
	block := Dim3{X: ts, Y: transposeBlockDim, Z: 1}
	grid := Dim3{
		X: (cols + ts - 1) / ts,
		Y: (rows + ts - 1) / ts,
		Z: 1,
	}

	return LaunchBlocks(func(blk *Block) {
		tile := blk.Shared

		// Phase 1: bounds-checked global reads into the padded tile.
		// Each thread loads four rows, one per step of the row stride.
		blk.ForEachThread(func(t Dim3) {
			x := blk.Idx.X*ts + t.X
			if x >= cols {
				return
			}
			for j := 0; j < ts; j += transposeBlockDim {
				y := blk.Idx.Y*ts + t.Y + j
				if y < rows {
					tile[(t.Y+j)*transposeTileLd+t.X] = src[y*cols+x]
				}
			}
		})

		// Phase 2: barrier-separated writes with swapped block
		// coordinates. The bounds checks mirror phase 1, so tile slots
		// that were never loaded are never stored.
		blk.ForEachThread(func(t Dim3) {
			x := blk.Idx.Y*ts + t.X
			if x >= rows {
				return
			}
			for j := 0; j < ts; j += transposeBlockDim {
				y := blk.Idx.X*ts + t.Y + j
				if y < cols {
					dst[y*rows+x] = tile[t.X*transposeTileLd+(t.Y+j)]
				}
			}
		})
	}, grid, block, transposeTileLd*ts)
}

// TransposeHost transposes a host matrix, performing the host-to-device
// and device-to-host transfers around the kernel.
func TransposeHost(h HostMatrix) (HostMatrix, error) {
	in, err := ToDevice(h)
	if err != nil {
		return HostMatrix{}, err
	}
	defer in.Free()

	out, err := NewMatrix(h.Cols, h.Rows)
	if err != nil {
		return HostMatrix{}, err
	}
	defer out.Free()

	if err := Transpose(in, out); err != nil {
		return HostMatrix{}, err
	}
	return out.ToHost()
}
