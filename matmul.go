package warp

import "fmt"

// Matrix-multiply engine. All strategies compute C = A·Bᵗ where A is
// aRows×aCols and B is bRows×aCols (B is logically the transposed
// operand, stored row-major like everything else), fully overwriting
// the aRows×bRows output.

// matMulTile is the shared-memory tile edge of the tiled strategy.
const matMulTile = 32

func checkMatMul(op string, a, b, c Matrix) error {
	if a.Cols != b.Cols {
		return NewDimensionError(op,
			fmt.Sprintf("inner dimensions differ: A is %dx%d, B is %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	if c.Rows != a.Rows || c.Cols != b.Rows {
		return NewDimensionError(op,
			fmt.Sprintf("output is %dx%d, want %dx%d", c.Rows, c.Cols, a.Rows, b.Rows))
	}
	return nil
}

// MatMulNaive computes C = A·Bᵗ with one thread per output cell, each
// running a serial dot product over the inner dimension.
func MatMulNaive(a, b, c Matrix) error {
	if err := checkMatMul("MatMulNaive", a, b, c); err != nil {
		return err
	}
	if c.Len() == 0 {
		return nil
	}

	aRows, aCols, bRows := a.Rows, a.Cols, b.Rows
	adat := a.Data.Float32()
	bdat := b.Data.Float32()
	cdat := c.Data.Float32()

	block := Dim3{X: matMulTile, Y: matMulTile, Z: 1}
	grid := Dim3{
		X: (bRows + block.X - 1) / block.X,
		Y: (aRows + block.Y - 1) / block.Y,
		Z: 1,
	}

	return Launch(func(tid ThreadID) {
		j := tid.GlobalX()
		i := tid.GlobalY()
		if i >= aRows || j >= bRows {
			return
		}
		var sum float32
		for k := 0; k < aCols; k++ {
			sum += adat[i*aCols+k] * bdat[j*aCols+k]
		}
		cdat[i*bRows+j] = sum
	}, grid, block)
}

// MatMulTiled computes C = A·Bᵗ by staging 32x32 tiles of A and B in
// block-shared memory per iteration over the inner dimension. Tile
// elements outside the operands are zero-filled so partial tiles never
// corrupt the sum; a barrier separates the load and compute phases of
// every iteration.
func MatMulTiled(a, b, c Matrix) error {
	if err := checkMatMul("MatMulTiled", a, b, c); err != nil {
		return err
	}
	if c.Len() == 0 {
		return nil
	}

	aRows, aCols, bRows := a.Rows, a.Cols, b.Rows
	adat := a.Data.Float32()
	bdat := b.Data.Float32()
	cdat := c.Data.Float32()

	const ts = matMulTile
	block := Dim3{X: ts, Y: ts, Z: 1}
	grid := Dim3{
		X: (bRows + ts - 1) / ts,
		Y: (aRows + ts - 1) / ts,
		Z: 1,
	}
	numTiles := (aCols + ts - 1) / ts

	// Shared layout: A tile followed by B tile.
	return LaunchBlocks(func(blk *Block) {
		aTile := blk.Shared[:ts*ts]
		bTile := blk.Shared[ts*ts : 2*ts*ts]

		// Per-thread accumulators live across tile iterations, like
		// registers in the device formulation.
		var acc [ts * ts]float32

		for kt := 0; kt < numTiles; kt++ {
			k0 := kt * ts

			// Load phase: zero-fill beyond the operand edges.
			blk.ForEachThread(func(t Dim3) {
				ai := blk.Idx.Y*ts + t.Y
				bi := blk.Idx.X*ts + t.Y
				k := k0 + t.X
				if ai < aRows && k < aCols {
					aTile[t.Y*ts+t.X] = adat[ai*aCols+k]
				} else {
					aTile[t.Y*ts+t.X] = 0
				}
				if bi < bRows && k < aCols {
					bTile[t.Y*ts+t.X] = bdat[bi*aCols+k]
				} else {
					bTile[t.Y*ts+t.X] = 0
				}
			})

			// Compute phase, barrier-separated from the load.
			blk.ForEachThread(func(t Dim3) {
				sum := acc[t.Y*ts+t.X]
				for kk := 0; kk < ts; kk++ {
					sum += aTile[t.Y*ts+kk] * bTile[t.X*ts+kk]
				}
				acc[t.Y*ts+t.X] = sum
			})
		}

		// Write phase: boundary cells are skipped, interior cells are
		// fully overwritten.
		blk.ForEachThread(func(t Dim3) {
			i := blk.Idx.Y*ts + t.Y
			j := blk.Idx.X*ts + t.X
			if i < aRows && j < bRows {
				cdat[i*bRows+j] = acc[t.Y*ts+t.X]
			}
		})
	}, grid, block, 2*ts*ts)
}

// MatMulGEMM computes C = A·Bᵗ through a single fused call into the
// engine's column-major SGEMM, exploiting the row-major/column-major
// duality the way the cuBLAS path does: row-major A and B reinterpreted
// as column-major are Aᵗ and Bᵗ, so requesting the column-major product
// (Bᵗ)ᵗ·Aᵗ = B·Aᵗ of shape bRows×aRows yields exactly row-major A·Bᵗ,
// with no explicit transpose.
func MatMulGEMM(a, b, c Matrix) error {
	if err := checkMatMul("MatMulGEMM", a, b, c); err != nil {
		return err
	}
	if c.Len() == 0 {
		return nil
	}

	aRows, aCols, bRows := a.Rows, a.Cols, b.Rows
	adat := a.Data.Float32()
	bdat := b.Data.Float32()
	cdat := c.Data.Float32()

	defaultContext.defaultStream.Submit(func() {
		sgemmTN(bRows, aRows, aCols, 1,
			bdat, aCols,
			adat, aCols,
			0, cdat, bRows)
	})
	return nil
}

// MatMul computes C = A·Bᵗ with the default strategy.
func MatMul(a, b, c Matrix) error {
	return MatMulTiled(a, b, c)
}
