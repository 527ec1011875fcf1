package warp

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// defaultSystemMemory is reported when the OS cannot be queried.
const defaultSystemMemory = 16 * 1024 * 1024 * 1024

// CPUFeatures tracks the instruction set extensions available on the
// device. They are informational: kernels are portable Go, but the
// feature set is surfaced through the Device descriptor the way a GPU
// runtime reports compute capability.
type CPUFeatures struct {
	HasSSE4 bool
	HasAVX  bool
	HasAVX2 bool
	HasFMA  bool
	HasNEON bool
}

var cpuFeatures = detectCPUFeatures()

func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4: cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:  cpu.X86.HasAVX,
		HasAVX2: cpu.X86.HasAVX2,
		HasFMA:  cpu.X86.HasFMA,
		HasNEON: cpu.ARM64.HasASIMD,
	}
}

// deviceName describes the device including its detected SIMD
// capabilities, e.g. "CPU (AVX2, FMA)".
func deviceName() string {
	features := []string{}
	if cpuFeatures.HasSSE4 {
		features = append(features, "SSE4")
	}
	if cpuFeatures.HasAVX {
		features = append(features, "AVX")
	}
	if cpuFeatures.HasAVX2 {
		features = append(features, "AVX2")
	}
	if cpuFeatures.HasFMA {
		features = append(features, "FMA")
	}
	if cpuFeatures.HasNEON {
		features = append(features, "NEON")
	}

	if len(features) == 0 {
		return "CPU"
	}
	return "CPU (" + strings.Join(features, ", ") + ")"
}
