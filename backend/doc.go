// Package backend selects the device a poisson backend renders with.
//
// Device openers are registered by name from init() functions and
// selected at runtime. Two are built in:
//
//   - "vulkan": a standalone device on the wgpu HAL Vulkan backend
//   - "noop": the HAL noop device, for headless runs and tests
//
// # Selection
//
// Use OpenDefault to take the best available device, or Open to request a
// specific one by name:
//
//	name, ctx, err := backend.OpenDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ctx.Destroy()
//
// OpenDefault tries "vulkan" first and falls back to "noop". Any other
// registered opener is tried after those, in name order.
//
// # Custom Openers
//
// Register adds or replaces an opener:
//
//	backend.Register("mydevice", func() (*gpu.Context, error) { ... })
package backend
