package warp

import (
	"math"
	"testing"
)

// After RowSum the sum lands in column 0 and every other position of
// the output is untouched.
func TestRowSumWritesOnlyColumnZero(t *testing.T) {
	const rows, cols = 64, 300
	in := randomHostMatrix(5, rows, cols)

	const sentinel = -12345.0
	hOut := NewHostMatrix(rows, cols)
	for i := range hOut.Data {
		hOut.Data[i] = sentinel
	}

	din := ToDeviceOrFail(t, in)
	dout := ToDeviceOrFail(t, hOut)
	defer din.Free()
	defer dout.Free()

	if err := RowSum(din, dout); err != nil {
		t.Fatalf("RowSum failed: %v", err)
	}
	got := ToHostOrFail(t, dout)

	ref := Reference{}
	expected := cloneHostMatrix(hOut)
	ref.RowSum(in, &expected)

	for r := 0; r < rows; r++ {
		if math.Abs(float64(got.Data[r*cols]-expected.Data[r*cols])) > OracleTol {
			t.Errorf("row %d sum: got %f, want %f", r, got.Data[r*cols], expected.Data[r*cols])
		}
		for c := 1; c < cols; c++ {
			if got.Data[r*cols+c] != sentinel {
				t.Fatalf("RowSum wrote to (%d,%d)", r, c)
			}
		}
	}
}

// Row sum followed by broadcast fills every entry of a row with the
// row's true sum.
func TestRowSumBroadcast(t *testing.T) {
	const rows, cols = 129, 777 // not multiples of the block size
	in := randomHostMatrix(9, rows, cols)

	din := ToDeviceOrFail(t, in)
	dout := ToDeviceOrFail(t, NewHostMatrix(rows, cols))
	defer din.Free()
	defer dout.Free()

	if err := RowSum(din, dout); err != nil {
		t.Fatal(err)
	}
	if err := Broadcast(dout); err != nil {
		t.Fatal(err)
	}
	got := ToHostOrFail(t, dout)

	for r := 0; r < rows; r++ {
		var want float64
		for c := 0; c < cols; c++ {
			want += float64(in.Data[r*cols+c])
		}
		for c := 0; c < cols; c++ {
			if math.Abs(float64(got.Data[r*cols+c])-want) > OracleTol {
				t.Fatalf("(%d,%d): got %f, want %f", r, c, got.Data[r*cols+c], want)
			}
		}
	}
}

func TestRowSumShapeMismatch(t *testing.T) {
	a := ToDeviceOrFail(t, NewHostMatrix(4, 8))
	b := ToDeviceOrFail(t, NewHostMatrix(4, 9))
	defer a.Free()
	defer b.Free()
	if err := RowSum(a, b); !IsDimensionMismatch(err) {
		t.Errorf("want DimensionMismatch, got %v", err)
	}
}

func TestGlobalMax(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		seed       int64
	}{
		{"small", 8, 8, 1},
		{"single element", 1, 1, 2},
		{"single row", 1, 50000, 3}, // many blocks merge through the accumulator
		{"large", 1000, 768, 4},
		{"odd dims", 770, 801, 5},
	}

	ref := Reference{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := randomHostMatrix(tt.seed, tt.rows, tt.cols)
			m := ToDeviceOrFail(t, h)
			defer m.Free()

			got, err := GlobalMax(m)
			if err != nil {
				t.Fatalf("GlobalMax failed: %v", err)
			}
			if want := ref.GlobalMax(h); got != want {
				t.Errorf("got %f, want %f", got, want)
			}
		})
	}
}

// The accumulator must start below any representable input: a matrix of
// strictly negative values exercises the sentinel.
func TestGlobalMaxAllNegative(t *testing.T) {
	const rows, cols = 333, 421
	h := randomHostMatrix(21, rows, cols)
	for i := range h.Data {
		h.Data[i] = -h.Data[i] - 1e6
	}

	m := ToDeviceOrFail(t, h)
	defer m.Free()

	got, err := GlobalMax(m)
	if err != nil {
		t.Fatal(err)
	}
	want := Reference{}.GlobalMax(h)
	if got != want {
		t.Errorf("got %f, want %f", got, want)
	}
	if got >= 0 {
		t.Errorf("max of all-negative input is %f; accumulator sentinel leaked", got)
	}
}

func TestGlobalMaxEmpty(t *testing.T) {
	m, err := NewMatrix(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GlobalMax(m); !IsDimensionMismatch(err) {
		t.Errorf("want DimensionMismatch, got %v", err)
	}
}

func TestAtomicMaxFloat32(t *testing.T) {
	var bits uint32 = math.Float32bits(-math.MaxFloat32)

	atomicMaxFloat32(&bits, -3.5)
	if got := math.Float32frombits(bits); got != -3.5 {
		t.Fatalf("after raise to -3.5: %f", got)
	}
	atomicMaxFloat32(&bits, -100) // lower candidate must not win
	if got := math.Float32frombits(bits); got != -3.5 {
		t.Fatalf("lower candidate overwrote accumulator: %f", got)
	}
	atomicMaxFloat32(&bits, 42)
	if got := math.Float32frombits(bits); got != 42 {
		t.Fatalf("after raise to 42: %f", got)
	}
}
