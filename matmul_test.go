package warp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type matMulStrategy struct {
	name string
	fn   func(a, b, c Matrix) error
}

func matMulStrategies() []matMulStrategy {
	return []matMulStrategy{
		{"naive", MatMulNaive},
		{"tiled", MatMulTiled},
		{"gemm", MatMulGEMM},
	}
}

// runMatMul uploads the operands, runs the strategy, and returns the
// downloaded result.
func runMatMul(t *testing.T, fn func(a, b, c Matrix) error, ha, hb HostMatrix) HostMatrix {
	t.Helper()
	a := ToDeviceOrFail(t, ha)
	b := ToDeviceOrFail(t, hb)
	defer a.Free()
	defer b.Free()

	c, err := NewMatrix(ha.Rows, hb.Rows)
	require.NoError(t, err)
	defer c.Free()

	require.NoError(t, fn(a, b, c))
	return ToHostOrFail(t, c)
}

// The fixed-seed oracle scenario: A = 500x300 and B = 400x300, every
// cell of the 500x400 product within 1e-2 of the CPU reference.
func TestMatMulOracleScenario(t *testing.T) {
	ha := randomHostMatrix(42, 500, 300)
	hb := randomHostMatrix(42, 400, 300)
	expected := Reference{}.MatMul(ha, hb)

	for _, s := range matMulStrategies() {
		t.Run(s.name, func(t *testing.T) {
			got := runMatMul(t, s.fn, ha, hb)
			res := VerifyFloat32Array(expected.Data, got.Data, OracleTolerance())
			require.Zero(t, res.NumErrors, "strategy %s: %s", s.name, res)
		})
	}
}

// All strategies must agree for dimensions that are not multiples of
// the 32-wide tile, where zero-filled partial tiles come into play.
func TestMatMulStrategiesAgree(t *testing.T) {
	dims := []struct{ aRows, aCols, bRows int }{
		{1, 1, 1},
		{32, 32, 32},
		{33, 17, 29},
		{31, 64, 96},
		{100, 1, 7},
		{65, 33, 1},
	}

	for _, d := range dims {
		ha := randomHostMatrix(101, d.aRows, d.aCols)
		hb := randomHostMatrix(103, d.bRows, d.aCols)
		expected := Reference{}.MatMul(ha, hb)

		for _, s := range matMulStrategies() {
			got := runMatMul(t, s.fn, ha, hb)
			res := VerifyFloat32Array(expected.Data, got.Data, OracleTolerance())
			require.Zerof(t, res.NumErrors, "%s %dx%d·(%dx%d)ᵗ: %s",
				s.name, d.aRows, d.aCols, d.bRows, d.aCols, res)
		}
	}
}

// The output is fully overwritten, including when the inner dimension
// is zero and the product is all zeros.
func TestMatMulOverwritesOutput(t *testing.T) {
	ha := NewHostMatrix(6, 0)
	hb := NewHostMatrix(9, 0)

	for _, s := range matMulStrategies() {
		poisoned := NewHostMatrix(6, 9)
		for i := range poisoned.Data {
			poisoned.Data[i] = 777
		}
		a := ToDeviceOrFail(t, ha)
		b := ToDeviceOrFail(t, hb)
		c := ToDeviceOrFail(t, poisoned)

		require.NoError(t, s.fn(a, b, c), s.name)
		got := ToHostOrFail(t, c)
		for i, v := range got.Data {
			require.Zerof(t, v, "%s: stale value at %d", s.name, i)
		}
		a.Free()
		b.Free()
		c.Free()
	}
}

func TestMatMulEmptyResult(t *testing.T) {
	for _, s := range matMulStrategies() {
		a, err := NewMatrix(0, 300)
		require.NoError(t, err)
		b := ToDeviceOrFail(t, randomHostMatrix(1, 4, 300))
		c, err := NewMatrix(0, 4)
		require.NoError(t, err)

		require.NoError(t, s.fn(a, b, c), "%s on zero-row A", s.name)
		b.Free()
	}
}

func TestMatMulDimensionMismatch(t *testing.T) {
	a := ToDeviceOrFail(t, NewHostMatrix(5, 3))
	b := ToDeviceOrFail(t, NewHostMatrix(4, 7)) // inner dims differ
	c := ToDeviceOrFail(t, NewHostMatrix(5, 4))
	defer a.Free()
	defer b.Free()
	defer c.Free()

	for _, s := range matMulStrategies() {
		err := s.fn(a, b, c)
		require.Truef(t, IsDimensionMismatch(err), "%s: want DimensionMismatch, got %v", s.name, err)
	}

	// Wrong output shape is also rejected before dispatch.
	b2 := ToDeviceOrFail(t, NewHostMatrix(4, 3))
	cBad := ToDeviceOrFail(t, NewHostMatrix(4, 5))
	defer b2.Free()
	defer cBad.Free()
	for _, s := range matMulStrategies() {
		err := s.fn(a, b2, cBad)
		require.Truef(t, IsDimensionMismatch(err), "%s: want DimensionMismatch for bad output, got %v", s.name, err)
	}
}

// At inner dimension 300 with values in [0,10) the dot products reach
// magnitudes around 7.5k, where float32 partial sums drift past the
// oracle tolerance. The unrolled dot must stay within it.
func TestDotUnroll4Precision(t *testing.T) {
	const k = 300
	x := randomHostMatrix(42, 1, k).Data
	y := randomHostMatrix(43, 1, k).Data

	var want float64
	for i := 0; i < k; i++ {
		want += float64(x[i]) * float64(y[i])
	}

	got := dotUnroll4(x, y)
	require.InDelta(t, want, float64(got), OracleTol/2)
}

func TestSgemmTNSmall(t *testing.T) {
	// Column-major C (2x2) = Aᵀ(2x3)·B(3x2).
	a := []float32{ // 3x2 column-major: columns of A
		1, 2, 3, // column 0
		4, 5, 6, // column 1
	}
	b := []float32{
		7, 8, 9, // column 0
		10, 11, 12, // column 1
	}
	c := make([]float32, 4)

	sgemmTN(2, 2, 3, 1, a, 3, b, 3, 0, c, 2)

	// C[0,0]=1·7+2·8+3·9=50, C[1,0]=4·7+5·8+6·9=122
	// C[0,1]=1·10+2·11+3·12=68, C[1,1]=4·10+5·11+6·12=167
	want := []float32{50, 122, 68, 167}
	require.Equal(t, want, c)
}
