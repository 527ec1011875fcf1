package warp

import (
	"math"
	"testing"
)

// checkAgainstOracle runs the device result against the expected host
// buffer within oracle tolerance.
func checkAgainstOracle(t *testing.T, name string, expected, actual []float32) {
	t.Helper()
	res := VerifyFloat32Array(expected, actual, OracleTolerance())
	if res.NumErrors > 0 {
		t.Errorf("%s: %s", name, res)
	}
}

func TestUnaryOperators(t *testing.T) {
	ref := Reference{}
	const rows, cols = 37, 53
	const k = 5.0

	tests := []struct {
		name   string
		device func(m Matrix) error
		oracle func(h HostMatrix)
	}{
		{"DivideConst", func(m Matrix) error { return DivideConst(m, k) },
			func(h HostMatrix) { ref.DivideConst(h, k) }},
		{"AddConst", func(m Matrix) error { return AddConst(m, k) },
			func(h HostMatrix) { ref.AddConst(h, k) }},
		{"InvSqrt", InvSqrt, func(h HostMatrix) { ref.InvSqrt(h) }},
		{"Exp", Exp, func(h HostMatrix) { ref.Exp(h) }},
		{"GELU", GELU, func(h HostMatrix) { ref.GELU(h) }},
		{"Broadcast", Broadcast, func(h HostMatrix) { ref.Broadcast(h) }},
		{"Tril", func(m Matrix) error { return Tril(m, cols) },
			func(h HostMatrix) { ref.Tril(h, cols) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := randomHostMatrix(7, rows, cols)
			expected := cloneHostMatrix(h)
			tt.oracle(expected)

			m := ToDeviceOrFail(t, h)
			defer m.Free()
			if err := tt.device(m); err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			got := ToHostOrFail(t, m)
			checkAgainstOracle(t, tt.name, expected.Data, got.Data)
		})
	}
}

func TestBinaryOperators(t *testing.T) {
	ref := Reference{}
	const rows, cols = 41, 29

	tests := []struct {
		name   string
		device func(a, b Matrix) error
		oracle func(a, b HostMatrix)
	}{
		{"Add", Add, ref.Add},
		{"Multiply", Multiply, ref.Multiply},
		{"Divide", Divide, ref.Divide},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha := randomHostMatrix(11, rows, cols)
			hb := randomHostMatrix(13, rows, cols)
			// Keep divisors away from zero.
			for i := range hb.Data {
				hb.Data[i] += 1
			}
			expected := cloneHostMatrix(ha)
			tt.oracle(expected, hb)

			a := ToDeviceOrFail(t, ha)
			b := ToDeviceOrFail(t, hb)
			defer a.Free()
			defer b.Free()
			if err := tt.device(a, b); err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			got := ToHostOrFail(t, a)
			checkAgainstOracle(t, tt.name, expected.Data, got.Data)

			// The second operand must be untouched.
			gotB := ToHostOrFail(t, b)
			for i := range hb.Data {
				if gotB.Data[i] != hb.Data[i] {
					t.Fatalf("%s modified second operand at %d", tt.name, i)
				}
			}
		})
	}
}

func TestBinaryShapeMismatch(t *testing.T) {
	a := ToDeviceOrFail(t, NewHostMatrix(4, 4))
	b := ToDeviceOrFail(t, NewHostMatrix(4, 5))
	defer a.Free()
	defer b.Free()

	if err := Add(a, b); !IsDimensionMismatch(err) {
		t.Errorf("Add with mismatched shapes: want DimensionMismatch, got %v", err)
	}
	if err := Divide(a, b); !IsDimensionMismatch(err) {
		t.Errorf("Divide with mismatched shapes: want DimensionMismatch, got %v", err)
	}
}

func TestDivideConstByZero(t *testing.T) {
	m := ToDeviceOrFail(t, randomHostMatrix(1, 3, 3))
	defer m.Free()
	if err := DivideConst(m, 0); !IsNumericInstability(err) {
		t.Errorf("DivideConst(0): want NumericInstability, got %v", err)
	}
}

func TestGELUZero(t *testing.T) {
	h := NewHostMatrix(1, 8) // all zeros
	m := ToDeviceOrFail(t, h)
	defer m.Free()
	if err := GELU(m); err != nil {
		t.Fatal(err)
	}
	got := ToHostOrFail(t, m)
	for i, v := range got.Data {
		if v != 0 {
			t.Errorf("GELU(0) = %f at %d, want 0", v, i)
		}
	}
}

// Tril must produce exp(x/8) on and below the block-diagonal boundary
// and exactly 0 above it.
func TestTrilBoundary(t *testing.T) {
	const n = 16
	h := randomHostMatrix(3, n, n)
	orig := cloneHostMatrix(h)

	m := ToDeviceOrFail(t, h)
	defer m.Free()
	if err := Tril(m, n); err != nil {
		t.Fatal(err)
	}
	got := ToHostOrFail(t, m)

	for i := 0; i < n*n; i++ {
		row, col := i/n, i%n
		if row < col {
			if got.Data[i] != 0 {
				t.Errorf("(%d,%d) above boundary: got %f, want exactly 0", row, col, got.Data[i])
			}
		} else {
			want := float32(math.Exp(float64(orig.Data[i]) / 8))
			if math.Abs(float64(got.Data[i]-want)) > OracleTol {
				t.Errorf("(%d,%d) on/below boundary: got %f, want %f", row, col, got.Data[i], want)
			}
		}
	}
}

func TestTrilInvalidWidth(t *testing.T) {
	m := ToDeviceOrFail(t, NewHostMatrix(4, 4))
	defer m.Free()
	if err := Tril(m, 0); !IsDimensionMismatch(err) {
		t.Errorf("Tril(0): want DimensionMismatch, got %v", err)
	}
}

// Tile operators must depend only on column 0 of the second operand.
func TestTileOperatorsReadOnlyColumnZero(t *testing.T) {
	ref := Reference{}
	const rows, cols = 23, 31

	for _, tt := range []struct {
		name   string
		device func(a, b Matrix) error
		oracle func(a, b HostMatrix)
	}{
		{"AddTile", AddTile, ref.AddTile},
		{"MultiplyTile", MultiplyTile, ref.MultiplyTile},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ha := randomHostMatrix(17, rows, cols)
			hb := randomHostMatrix(19, rows, 5) // different column count is legal
			expected := cloneHostMatrix(ha)
			tt.oracle(expected, hb)

			// Scramble every column of b except column 0; the result
			// must not change.
			scrambled := cloneHostMatrix(hb)
			for r := 0; r < rows; r++ {
				for c := 1; c < hb.Cols; c++ {
					scrambled.Data[r*hb.Cols+c] = -999
				}
			}

			a := ToDeviceOrFail(t, ha)
			b := ToDeviceOrFail(t, scrambled)
			defer a.Free()
			defer b.Free()
			if err := tt.device(a, b); err != nil {
				t.Fatalf("%s failed: %v", tt.name, err)
			}
			got := ToHostOrFail(t, a)
			checkAgainstOracle(t, tt.name, expected.Data, got.Data)
		})
	}
}

func TestTileOperatorRowMismatch(t *testing.T) {
	a := ToDeviceOrFail(t, NewHostMatrix(4, 4))
	b := ToDeviceOrFail(t, NewHostMatrix(5, 4))
	defer a.Free()
	defer b.Free()
	if err := AddTile(a, b); !IsDimensionMismatch(err) {
		t.Errorf("AddTile row mismatch: want DimensionMismatch, got %v", err)
	}
}

func TestElementwiseEmptyMatrix(t *testing.T) {
	m, err := NewMatrix(0, 7)
	if err != nil {
		t.Fatal(err)
	}
	if err := Exp(m); err != nil {
		t.Errorf("Exp on empty matrix: %v", err)
	}
	if err := AddConst(m, 1); err != nil {
		t.Errorf("AddConst on empty matrix: %v", err)
	}
}
