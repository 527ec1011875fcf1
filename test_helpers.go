package warp

import (
	"math/rand"
	"testing"
)

// Test helpers shared by the kernel test suites.

// MallocOrFail allocates device memory and fails the test if
// unsuccessful.
func MallocOrFail(t testing.TB, size int) DevicePtr {
	t.Helper()
	ptr, err := Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	return ptr
}

// ToDeviceOrFail uploads a host matrix and fails the test if
// unsuccessful.
func ToDeviceOrFail(t testing.TB, h HostMatrix) Matrix {
	t.Helper()
	m, err := ToDevice(h)
	if err != nil {
		t.Fatalf("Failed to upload %dx%d matrix: %v", h.Rows, h.Cols, err)
	}
	return m
}

// ToHostOrFail downloads a device matrix and fails the test if
// unsuccessful.
func ToHostOrFail(t testing.TB, m Matrix) HostMatrix {
	t.Helper()
	h, err := m.ToHost()
	if err != nil {
		t.Fatalf("Failed to download %dx%d matrix: %v", m.Rows, m.Cols, err)
	}
	return h
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful.
func SynchronizeOrFail(t testing.TB) {
	t.Helper()
	if err := Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}

// randomHostMatrix fills a host matrix with uniform values in [0, 10)
// from a fixed seed, the distribution the oracle comparison scenarios
// use.
func randomHostMatrix(seed int64, rows, cols int) HostMatrix {
	rng := rand.New(rand.NewSource(seed))
	h := NewHostMatrix(rows, cols)
	for i := range h.Data {
		h.Data[i] = rng.Float32() * 10
	}
	return h
}

// cloneHostMatrix deep-copies a host matrix.
func cloneHostMatrix(h HostMatrix) HostMatrix {
	out := NewHostMatrix(h.Rows, h.Cols)
	copy(out.Data, h.Data)
	return out
}
