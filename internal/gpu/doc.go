// Package gpu wraps the wgpu HAL for the poisson renderer.
//
// It owns device lifetime and the objects allocated from a device, and
// knows nothing about render-object types, passes or drawlets.
//
// # Objects
//
//   - Context: a device and queue, opened here (OpenVulkan, OpenNoop) or
//     borrowed from a host application (FromProvider, NewContext).
//   - Buffer, Texture, Sampler: allocations with idempotent Destroy.
//   - CompiledPipeline, BindGroup: a render pipeline together with its
//     shader module and layouts, and the bind groups built against them.
//   - Swapchain: presentable color images plus a shared depth buffer.
//   - FrameRing: N frame slots, one fence each, signaled with a
//     ring-wide submission serial.
//   - ReleaseQueue: destruction deferred until a serial completes.
//   - FrameEncoder, RenderPassEncoder: one command buffer per frame with
//     a single render pass.
//   - Presenter, OffscreenPresenter: image acquisition and presentation.
//
// # Ownership
//
// Every object holds a weak pointer to its Context. Destroying an object
// after its Context returns ErrDeviceDestroyed and logs a warning instead
// of touching a released device.
//
// # Frame Loop
//
// A frame waits only for the slot it is about to reuse:
//
//	ring.WaitCurrent()               // previous use of this slot
//	releases.Collect(ring.Completed())
//	idx, _ := presenter.Acquire(ctx, swapchain)
//	enc, _ := BeginFrame(device, "frame")
//	rp, _ := enc.BeginRenderPass(target)
//	... record ...
//	rp.End()
//	cmd, _ := enc.Finish()
//	done, _ := ring.Submit(cmd)
//	ring.Advance()
//	presenter.Present(ctx, swapchain, idx, done)
//
// Logging goes through SetLogger; the default logger is silent.
package gpu
