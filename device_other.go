//go:build !linux

package warp

// systemMemory returns total system memory in bytes. Without an OS
// query it reports a fixed default.
func systemMemory() uint64 {
	return defaultSystemMemory
}
