package warp

import "fmt"

// Matrix is a non-owning descriptor of a dense, row-major float32
// matrix resident in device memory. It carries no lifetime semantics:
// the caller allocates (ToDevice or NewMatrix), transfers, and frees
// explicitly. Operators taking a Matrix mutate the referenced buffer in
// place unless documented otherwise, so input contents do not survive a
// call.
type Matrix struct {
	Data DevicePtr
	Rows int
	Cols int
}

// HostMatrix is the host-side mirror of Matrix: a dense row-major
// float32 buffer with explicit dimensions.
type HostMatrix struct {
	Data []float32
	Rows int
	Cols int
}

// NewHostMatrix allocates a zeroed host matrix.
func NewHostMatrix(rows, cols int) HostMatrix {
	return HostMatrix{
		Data: make([]float32, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// At returns the element at (r, c).
func (h HostMatrix) At(r, c int) float32 {
	return h.Data[r*h.Cols+c]
}

// Set assigns the element at (r, c).
func (h *HostMatrix) Set(r, c int, v float32) {
	h.Data[r*h.Cols+c] = v
}

// Len returns the element count.
func (m Matrix) Len() int { return m.Rows * m.Cols }

// Bytes returns the buffer size in bytes.
func (m Matrix) Bytes() int { return m.Rows * m.Cols * 4 }

// NewMatrix allocates an uninitialized device matrix of the given
// shape. A zero-element matrix carries a nil buffer and is legal
// everywhere; kernels dispatch no work for it.
func NewMatrix(rows, cols int) (Matrix, error) {
	if rows < 0 || cols < 0 {
		return Matrix{}, NewDimensionError("NewMatrix",
			fmt.Sprintf("negative dimensions %dx%d", rows, cols))
	}
	m := Matrix{Rows: rows, Cols: cols}
	if rows*cols == 0 {
		return m, nil
	}
	ptr, err := Malloc(rows * cols * 4)
	if err != nil {
		return Matrix{}, err
	}
	m.Data = ptr
	return m, nil
}

// ToDevice allocates a device matrix and copies the host matrix into
// it.
func ToDevice(h HostMatrix) (Matrix, error) {
	if len(h.Data) != h.Rows*h.Cols {
		return Matrix{}, NewDimensionError("ToDevice",
			fmt.Sprintf("buffer length %d does not match %dx%d", len(h.Data), h.Rows, h.Cols))
	}
	m, err := NewMatrix(h.Rows, h.Cols)
	if err != nil {
		return Matrix{}, err
	}
	if m.Len() == 0 {
		return m, nil
	}
	if err := Memcpy(m.Data, h.Data, m.Bytes(), MemcpyHostToDevice); err != nil {
		m.Free()
		return Matrix{}, err
	}
	return m, nil
}

// ToHost synchronizes all outstanding work and copies the device matrix
// back to a freshly allocated host matrix. The synchronize is the
// explicit join point: without it a composed pipeline could still be
// writing the buffer.
func (m Matrix) ToHost() (HostMatrix, error) {
	h := NewHostMatrix(m.Rows, m.Cols)
	if m.Len() == 0 {
		return h, nil
	}
	if err := Synchronize(); err != nil {
		return HostMatrix{}, err
	}
	if err := Memcpy(h.Data, m.Data, m.Bytes(), MemcpyDeviceToHost); err != nil {
		return HostMatrix{}, err
	}
	return h, nil
}

// Free releases the matrix's device buffer. Freeing a zero-element
// matrix is a no-op.
func (m Matrix) Free() error {
	if m.Data.IsNil() {
		return nil
	}
	return Free(m.Data)
}

// shape precondition helpers

func checkSameShape(op string, a, b Matrix) error {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		return NewDimensionError(op,
			fmt.Sprintf("operand shapes %dx%d and %dx%d differ", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	return nil
}

func checkSameRows(op string, a, b Matrix) error {
	if a.Rows != b.Rows {
		return NewDimensionError(op,
			fmt.Sprintf("operand row counts %d and %d differ", a.Rows, b.Rows))
	}
	return nil
}
