package warp

import (
	"runtime"
	"sync"
)

// sgemmTN computes the column-major product
//
//	C = alpha·Aᵀ·B + beta·C
//
// where C is m×n with leading dimension ldc, A is k×m with leading
// dimension lda, and B is k×n with leading dimension ldb. With A
// transposed, the dot product for every output element walks both
// operand panels contiguously, which is the layout the matrix-multiply
// engine's duality trick produces.
//
// Columns of C are independent, so they are sharded across CPU workers.
func sgemmTN(m, n, k int, alpha float32, a []float32, lda int, b []float32, ldb int, beta float32, c []float32, ldc int) {
	if m == 0 || n == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if n < numWorkers {
		numWorkers = n
	}
	colsPerWorker := (n + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(j0, j1 int) {
			defer wg.Done()
			for j := j0; j < j1; j++ {
				bcol := b[j*ldb:]
				ccol := c[j*ldc:]
				for i := 0; i < m; i++ {
					dot := dotUnroll4(a[i*lda:i*lda+k], bcol[:k])
					if beta == 0 {
						ccol[i] = alpha * dot
					} else {
						ccol[i] = alpha*dot + beta*ccol[i]
					}
				}
			}
		}(w*colsPerWorker, min(n, (w+1)*colsPerWorker))
	}
	wg.Wait()
}

// dotUnroll4 computes the dot product of equal-length panels with
// four independent accumulators to expose instruction-level
// parallelism. Partials accumulate in float64: at inner dimensions in
// the hundreds, float32 partials drift past the oracle tolerance
// relative to a serial float32 sum.
func dotUnroll4(x, y []float32) float32 {
	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= len(x); i += 4 {
		s0 += float64(x[i]) * float64(y[i])
		s1 += float64(x[i+1]) * float64(y[i+1])
		s2 += float64(x[i+2]) * float64(y[i+2])
		s3 += float64(x[i+3]) * float64(y[i+3])
	}
	for ; i < len(x); i++ {
		s0 += float64(x[i]) * float64(y[i])
	}
	return float32((s0 + s1) + (s2 + s3))
}
