package poisson

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/poisson/internal/gpu"
)

// Option configures a Backend during creation.
//
// Example:
//
//	// Best available device, defaults everywhere
//	b, err := poisson.NewBackend()
//
//	// Headless, single frame in flight
//	b, err := poisson.NewBackend(poisson.WithBackend("noop"), poisson.WithFramesInFlight(1))
type Option func(*backendOptions)

// backendOptions holds optional configuration for Backend creation.
type backendOptions struct {
	cfg       Config
	provider  gpucontext.DeviceProvider
	presenter gpu.Presenter
}

func defaultOptions() backendOptions {
	return backendOptions{cfg: DefaultConfig()}
}

// WithConfig replaces the whole configuration. Options applied after it
// override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *backendOptions) {
		o.cfg = cfg
	}
}

// WithBackend selects a device opener by name (see package backend).
func WithBackend(name string) Option {
	return func(o *backendOptions) {
		o.cfg.Backend = name
	}
}

// WithSize sets the initial surface extent. A zero extent is allowed; no
// frame is rendered until a non-zero Resize.
func WithSize(width, height uint32) Option {
	return func(o *backendOptions) {
		o.cfg.Width, o.cfg.Height = width, height
	}
}

// WithDeviceProvider renders on a device owned by the host application.
// The provider must expose HalDevice() and HalQueue(). The backend runs in
// portable mode unless WithMode says otherwise, and never destroys the
// device.
func WithDeviceProvider(provider gpucontext.DeviceProvider) Option {
	return func(o *backendOptions) {
		o.provider = provider
	}
}

// WithPresenter replaces the default OffscreenPresenter.
func WithPresenter(p Presenter) Option {
	return func(o *backendOptions) {
		o.presenter = p
	}
}

// WithFramesInFlight sets the number of frame slots.
func WithFramesInFlight(n int) Option {
	return func(o *backendOptions) {
		o.cfg.FramesInFlight = n
	}
}

// WithMode forces explicit or portable mode.
func WithMode(m Mode) Option {
	return func(o *backendOptions) {
		o.cfg.Mode = m
	}
}
