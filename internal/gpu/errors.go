package gpu

import "errors"

// Device layer errors.
var (
	// ErrDeviceDestroyed is returned when a resource outlives the context it
	// was allocated from, or is used after the context was destroyed.
	ErrDeviceDestroyed = errors.New("gpu: device context destroyed")

	// ErrDeviceLost is returned when a fence wait fails or times out. It is
	// fatal: the device can no longer be trusted to make progress.
	ErrDeviceLost = errors.New("gpu: device lost")

	// ErrNoAdapter is returned when an instance exposes no adapters.
	ErrNoAdapter = errors.New("gpu: no GPU adapters found")

	// ErrBackendUnavailable is returned when a HAL backend is not compiled in.
	ErrBackendUnavailable = errors.New("gpu: HAL backend not available")

	// ErrProviderNotHAL is returned when a device provider does not expose
	// HAL device and queue handles.
	ErrProviderNotHAL = errors.New("gpu: provider does not expose HAL types")

	// ErrOutOfDate is returned by a Presenter when its images no longer match
	// the surface. The frame is skipped and the swapchain is recreated.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")

	// ErrSuboptimal is returned by a Presenter when presentation still works
	// but the swapchain should be recreated at the next frame boundary.
	ErrSuboptimal = errors.New("gpu: swapchain suboptimal")

	// ErrZeroExtent is returned when building frame targets with a zero
	// width or height.
	ErrZeroExtent = errors.New("gpu: zero-area extent")
)
