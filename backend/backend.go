package backend

import (
	"errors"

	"github.com/gogpu/poisson/internal/gpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered, or when no registered backend could open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend names.
const (
	// BackendVulkan opens a standalone device through the HAL Vulkan backend.
	BackendVulkan = "vulkan"

	// BackendNoop opens a device that accepts every command and renders
	// nothing. Used for headless runs and tests.
	BackendNoop = "noop"
)

// Opener opens a device context. The caller owns the returned context and
// must Destroy it after every resource allocated from it.
type Opener func() (*gpu.Context, error)
