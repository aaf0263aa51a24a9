package gpu

import (
	"fmt"
	"sync/atomic"
	"time"
	"weak"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// DefaultColorFormat is the presentable image format when neither the
// provider nor the configuration selects one.
const DefaultColorFormat = gputypes.TextureFormatBGRA8Unorm

// DepthFormat is the format of every depth buffer.
const DepthFormat = gputypes.TextureFormatDepth24PlusStencil8

// Context owns the logical device and its queue. It is the allocation
// authority every other object in this package borrows from.
//
// Context is the only strong owner of the device. Resources keep a weak
// pointer back to it (see Ref) and resolve it again when they are destroyed,
// so destroying resources after their context is reported instead of
// silently calling into a released device.
type Context struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance

	// external is true when the device belongs to a host application.
	external bool

	adapterName string
	colorFormat gputypes.TextureFormat
	destroyed   atomic.Bool
}

// NewContext wraps a device and queue owned by someone else. Destroy on the
// returned context does not destroy the device.
func NewContext(device hal.Device, queue hal.Queue) *Context {
	return &Context{
		device:      device,
		queue:       queue,
		external:    true,
		colorFormat: DefaultColorFormat,
	}
}

// OpenVulkan creates a standalone device through the HAL Vulkan backend.
// Discrete and integrated GPUs are preferred over software adapters.
func OpenVulkan() (*Context, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan", ErrBackendUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return openInstance(instance)
}

// OpenNoop creates a device on the HAL noop backend. Every command is
// accepted and fences signal on submit, which makes it suitable for
// headless runs and tests.
func OpenNoop() (*Context, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create noop instance: %w", err)
	}
	return openInstance(instance)
}

func openInstance(instance hal.Instance) (*Context, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	slogger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &Context{
		device:      openDev.Device,
		queue:       openDev.Queue,
		instance:    instance,
		adapterName: selected.Info.Name,
		colorFormat: DefaultColorFormat,
	}, nil
}

// FromProvider builds a context on a device owned by a host application.
// The provider must expose HalDevice and HalQueue. If it also reports a
// surface format, that format is used for presentable images, and a
// reported adapter name is kept for AdapterName.
func FromProvider(provider any) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProviderNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProviderNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProviderNotHAL)
	}

	c := NewContext(device, queue)
	if fp, ok := provider.(interface {
		SurfaceFormat() gputypes.TextureFormat
	}); ok {
		var undefined gputypes.TextureFormat
		if f := fp.SurfaceFormat(); f != undefined {
			c.colorFormat = f
		}
	}
	if ap, ok := provider.(interface {
		AdapterInfo() gpucontext.AdapterInfo
	}); ok {
		c.adapterName = ap.AdapterInfo().Name
	}
	return c, nil
}

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the HAL queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// AdapterName returns the name of the adapter the device was opened on, or
// "" for external devices that do not report one.
func (c *Context) AdapterName() string { return c.adapterName }

// ColorFormat returns the format used for presentable images.
func (c *Context) ColorFormat() gputypes.TextureFormat { return c.colorFormat }

// External reports whether the device is owned by a host application.
func (c *Context) External() bool { return c.external }

// Destroyed reports whether Destroy has been called.
func (c *Context) Destroyed() bool { return c.destroyed.Load() }

// Ref returns a weak pointer to c for resources allocated from it.
func (c *Context) Ref() weak.Pointer[Context] { return weak.Make(c) }

// resolve upgrades a weak context pointer. It fails if the context was
// collected or destroyed.
func resolve(ref weak.Pointer[Context]) (*Context, error) {
	c := ref.Value()
	if c == nil || c.destroyed.Load() {
		return nil, ErrDeviceDestroyed
	}
	return c, nil
}

// WaitIdle blocks until every submission made so far has completed.
// An empty submission signals a fresh fence once the queue drains.
func (c *Context) WaitIdle(timeout time.Duration) error {
	if c.destroyed.Load() {
		return ErrDeviceDestroyed
	}
	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create idle fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit(nil, fence, 1); err != nil {
		return fmt.Errorf("%w: idle submit: %v", ErrDeviceLost, err)
	}
	ok, err := c.device.Wait(fence, 1, timeout)
	if err != nil {
		return fmt.Errorf("%w: idle wait: %v", ErrDeviceLost, err)
	}
	if !ok {
		return fmt.Errorf("%w: idle wait timed out after %v", ErrDeviceLost, timeout)
	}
	return nil
}

// Destroy releases the device and instance if the context owns them.
// Every resource allocated from the context must be destroyed first.
// Destroy is idempotent.
func (c *Context) Destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	if c.external {
		return
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}
