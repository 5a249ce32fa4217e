// Package cpu reports the instruction set class of the host, the way the
// environment of a computation describes it in logs and job manifests.
package cpu

import (
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// Type is the detected CPU class.
type Type uint8

const (
	Generic Type = iota
	SSE42
	AVX2
	AVX512
	NEON
)

func (t Type) String() string {
	switch t {
	case Generic:
		return "generic"
	case SSE42:
		return "sse42"
	case AVX2:
		return "avx2"
	case AVX512:
		return "avx512"
	case NEON:
		return "neon"
	default:
		return "unknown"
	}
}

// Parse parses a CPU class name.
func Parse(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "sse42":
		return SSE42, true
	case "avx2":
		return AVX2, true
	case "avx512":
		return AVX512, true
	case "neon":
		return NEON, true
	default:
		return Generic, false
	}
}

// OverrideEnv names the environment variable that forces a CPU class.
const OverrideEnv = "STEPWISE_CPU"

var detected = detect()

func detect() Type {
	if v := os.Getenv(OverrideEnv); v != "" {
		if t, ok := Parse(v); ok && Available(t) {
			return t
		}
	}
	return best()
}

func best() Type {
	switch runtime.GOARCH {
	case "amd64":
		switch {
		case cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW:
			return AVX512
		case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
			return AVX2
		case cpu.X86.HasSSE42:
			return SSE42
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return NEON
		}
	}
	return Generic
}

// Available reports whether t can run on this host.
func Available(t Type) bool {
	switch t {
	case Generic:
		return true
	case SSE42:
		return cpu.X86.HasSSE42
	case AVX2:
		return cpu.X86.HasAVX2 && cpu.X86.HasFMA
	case AVX512:
		return cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW
	case NEON:
		return cpu.ARM64.HasASIMD
	default:
		return false
	}
}

// Detected returns the CPU class selected at startup.
func Detected() Type { return detected }
