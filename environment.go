package stepwise

import (
	"github.com/hupe1980/stepwise/internal/cpu"
	"github.com/hupe1980/stepwise/resource"
)

// Environment describes where steps run.
type Environment struct {
	// NumberOfThreads is the number of local steps run concurrently.
	NumberOfThreads int
	// CPU is the detected instruction set class: generic, sse42, avx2,
	// avx512 or neon. STEPWISE_CPU overrides it with a supported class.
	CPU string
}

// DetectEnvironment returns the environment for the resource limits cfg.
func DetectEnvironment(cfg resource.Config) Environment {
	threads := int(cfg.MaxWorkers)
	if threads <= 0 {
		threads = 1
	}
	return Environment{NumberOfThreads: threads, CPU: cpu.Detected().String()}
}
