package poisson

import (
	"errors"

	"github.com/gogpu/poisson/internal/gpu"
)

// Construction errors. They abort setup and leave no partial GPU state.
var (
	// ErrShaderCompile is returned when WGSL cannot be parsed or compiled,
	// SPIR-V is malformed, or the device rejects the shader module.
	ErrShaderCompile = errors.New("poisson: shader compilation failed")

	// ErrPipelineCreate is returned when the device rejects a pipeline, its
	// layout, one of its bind group layouts or its sampler.
	ErrPipelineCreate = errors.New("poisson: pipeline creation failed")

	// ErrBindGroupMismatch is returned when a shader declares a different set
	// of bind groups than its render-object type requires.
	ErrBindGroupMismatch = errors.New("poisson: shader bind groups do not match render-object type")

	// ErrMissingEntryPoint is returned when a shader lacks the vertex or
	// fragment entry point.
	ErrMissingEntryPoint = errors.New("poisson: shader entry point missing")

	// ErrInvalidMesh is returned by NewMesh for empty or malformed geometry.
	ErrInvalidMesh = errors.New("poisson: invalid mesh")

	// ErrMissingTexture is returned when a TexturedMesh has no texture image.
	ErrMissingTexture = errors.New("poisson: textured mesh has no texture")

	// ErrPipelineExists is returned when a pass already holds a pipeline for
	// the render-object type.
	ErrPipelineExists = errors.New("poisson: pass already has a pipeline for this type")

	// ErrNoBackend is returned when no device could be opened.
	ErrNoBackend = errors.New("poisson: no device backend available")
)

// Handle errors. They indicate a lifetime bug in the caller.
var (
	// ErrStaleHandle is returned when a drawlet, pipeline or pass handle is
	// used after removal or destruction.
	ErrStaleHandle = errors.New("poisson: stale handle")

	// ErrKindMismatch is returned when a pipeline is looked up with a
	// render-object type other than the one it was created for.
	ErrKindMismatch = errors.New("poisson: render-object type mismatch")

	// ErrUniformNotDeclared is returned when setting a uniform the drawlet's
	// render-object type does not declare.
	ErrUniformNotDeclared = errors.New("poisson: uniform not declared by render-object type")

	// ErrUnknownKind is returned for a render-object kind outside the closed set.
	ErrUnknownKind = errors.New("poisson: unknown render-object kind")

	// ErrBackendClosed is returned when using a destroyed backend.
	ErrBackendClosed = errors.New("poisson: backend destroyed")
)

// Device errors, shared with the device layer so errors.Is works on either.
var (
	// ErrDeviceLost is fatal: a fence wait failed or timed out. The backend
	// refuses further frames.
	ErrDeviceLost = gpu.ErrDeviceLost

	// ErrDeviceDestroyed is returned when a resource outlives its device.
	ErrDeviceDestroyed = gpu.ErrDeviceDestroyed

	// ErrOutOfDate and ErrSuboptimal are presenter results. RenderFrame
	// recovers from both and never returns them.
	ErrOutOfDate  = gpu.ErrOutOfDate
	ErrSuboptimal = gpu.ErrSuboptimal
)
