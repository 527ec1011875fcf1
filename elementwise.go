package warp

import "math"

// Elementwise engine: pure per-element transforms applied in place.
// Every named operator is built from one of three generic shapes
// rather than a family of near-identical kernels: unary (scalar
// constant parameter), binary (equal-shaped operands), and tile
// (column-0 broadcast of the second operand).

// elementwiseDims returns the launch configuration covering n elements
// with one thread each.
func elementwiseDims(n int) (grid, block Dim3) {
	block = Dim3{X: 256, Y: 1, Z: 1}
	grid = Dim3{X: (n + block.X - 1) / block.X, Y: 1, Z: 1}
	return grid, block
}

// UnaryOp applies x = f(x, k) to every element of m in place.
func UnaryOp(m Matrix, k float32, f func(x, k float32) float32) error {
	n := m.Len()
	if n == 0 {
		return nil
	}
	dat := m.Data.Float32()[:n]
	grid, block := elementwiseDims(n)
	return Launch(func(tid ThreadID) {
		idx := tid.Global()
		if idx < n {
			dat[idx] = f(dat[idx], k)
		}
	}, grid, block)
}

// BinaryOp applies a = f(a, b) element-by-element in place on a. Both
// operands must have identical shapes.
func BinaryOp(a, b Matrix, f func(x, y float32) float32) error {
	if err := checkSameShape("BinaryOp", a, b); err != nil {
		return err
	}
	n := a.Len()
	if n == 0 {
		return nil
	}
	adat := a.Data.Float32()[:n]
	bdat := b.Data.Float32()[:n]
	grid, block := elementwiseDims(n)
	return Launch(func(tid ThreadID) {
		idx := tid.Global()
		if idx < n {
			adat[idx] = f(adat[idx], bdat[idx])
		}
	}, grid, block)
}

// TileOp applies a[r][c] = f(a[r][c], b[r][0]) in place on a: the
// second operand contributes only its column 0, broadcast across each
// row of a. Operands must have equal row counts; b's other columns are
// never read.
func TileOp(a, b Matrix, f func(x, y float32) float32) error {
	if err := checkSameRows("TileOp", a, b); err != nil {
		return err
	}
	n := a.Len()
	if n == 0 {
		return nil
	}
	if b.Cols == 0 {
		return NewDimensionError("TileOp", "second operand has no column 0")
	}
	adat := a.Data.Float32()[:n]
	bdat := b.Data.Float32()
	aCols, bCols := a.Cols, b.Cols
	grid, block := elementwiseDims(n)
	return Launch(func(tid ThreadID) {
		idx := tid.Global()
		if idx < n {
			adat[idx] = f(adat[idx], bdat[(idx/aCols)*bCols])
		}
	}, grid, block)
}

// Named unary operators

// DivideConst divides every element by k.
func DivideConst(m Matrix, k float32) error {
	if k == 0 {
		return NewNumericError("DivideConst", "division by zero constant", nil)
	}
	return UnaryOp(m, k, func(x, k float32) float32 { return x / k })
}

// AddConst adds k to every element.
func AddConst(m Matrix, k float32) error {
	return UnaryOp(m, k, func(x, k float32) float32 { return x + k })
}

// InvSqrt replaces every element x with 1/√x.
func InvSqrt(m Matrix) error {
	return UnaryOp(m, 0, func(x, _ float32) float32 {
		return float32(1 / math.Sqrt(float64(x)))
	})
}

// Exp exponentiates every element.
func Exp(m Matrix) error {
	return UnaryOp(m, 0, func(x, _ float32) float32 {
		return float32(math.Exp(float64(x)))
	})
}

// GELU applies the tanh-approximate Gaussian Error Linear Unit:
// x/2 · (1 + tanh(0.7978845·(x + 0.044715·x³))).
func GELU(m Matrix) error {
	return UnaryOp(m, 0, func(x, _ float32) float32 {
		inner := geluSqrt2OverPi * (float64(x) + geluCoefficient*float64(x)*float64(x)*float64(x))
		return x / 2 * float32(1+math.Tanh(inner))
	})
}

// Broadcast sets every entry of each row to that row's column-0 value.
// Column 0 itself is only read, never written, so the kernel is
// race-free across the row.
func Broadcast(m Matrix) error {
	n := m.Len()
	if n == 0 {
		return nil
	}
	dat := m.Data.Float32()[:n]
	cols := m.Cols
	grid, block := elementwiseDims(n)
	return Launch(func(tid ThreadID) {
		idx := tid.Global()
		if idx < n && idx%cols != 0 {
			dat[idx] = dat[(idx/cols)*cols]
		}
	}, grid, block)
}

// Tril is the fused causal-mask/exponentiate operator used to prepare
// attention score matrices. With row block width k and flat index i,
// entries where i/k < i%k (above the block-diagonal boundary) become 0;
// all others become exp(x/8).
func Tril(m Matrix, k int) error {
	if k <= 0 {
		return NewDimensionError("Tril", "block width must be positive")
	}
	n := m.Len()
	if n == 0 {
		return nil
	}
	dat := m.Data.Float32()[:n]
	grid, block := elementwiseDims(n)
	return Launch(func(tid ThreadID) {
		idx := tid.Global()
		if idx < n {
			if idx/k < idx%k {
				dat[idx] = 0
			} else {
				dat[idx] = float32(math.Exp(float64(dat[idx]) / trilScale))
			}
		}
	}, grid, block)
}

// Named binary operators

// Add adds b into a element-by-element.
func Add(a, b Matrix) error {
	return BinaryOp(a, b, func(x, y float32) float32 { return x + y })
}

// Multiply multiplies a by b element-by-element.
func Multiply(a, b Matrix) error {
	return BinaryOp(a, b, func(x, y float32) float32 { return x * y })
}

// Divide divides a by b element-by-element.
func Divide(a, b Matrix) error {
	return BinaryOp(a, b, func(x, y float32) float32 { return x / y })
}

// AddTile adds b's column-0 value for each row across all columns of a.
func AddTile(a, b Matrix) error {
	return TileOp(a, b, func(x, y float32) float32 { return x + y })
}

// MultiplyTile multiplies each row of a by b's column-0 value for that
// row.
func MultiplyTile(a, b Matrix) error {
	return TileOp(a, b, func(x, y float32) float32 { return x * y })
}
