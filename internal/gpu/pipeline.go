package gpu

import (
	"errors"
	"fmt"
	"weak"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Pipeline errors.
var (
	// ErrNoShaderSource is returned when a pipeline descriptor carries
	// neither WGSL nor SPIR-V.
	ErrNoShaderSource = errors.New("gpu: pipeline has no shader source")

	// ErrShaderModule is returned when the device rejects the shader module.
	ErrShaderModule = errors.New("gpu: shader module rejected")
)

// GroupLayout describes one bind group layout of a pipeline.
type GroupLayout struct {
	Label   string
	Entries []gputypes.BindGroupLayoutEntry
}

// PipelineDescriptor describes a render pipeline with a single vertex
// buffer, one color target and a depth buffer.
type PipelineDescriptor struct {
	Label string

	// Exactly one of WGSL and SPIRV is used; SPIRV wins if both are set.
	WGSL  string
	SPIRV []uint32

	VertexEntry   string
	FragmentEntry string

	VertexBuffers []gputypes.VertexBufferLayout
	Groups        []GroupLayout

	ColorFormat  gputypes.TextureFormat
	Blend        gputypes.BlendState
	FrontFace    gputypes.FrontFace
	CullMode     gputypes.CullMode
	DepthCompare gputypes.CompareFunction
}

// CompiledPipeline owns a render pipeline and everything it was built from:
// the shader module, one layout per bind group and the pipeline layout.
type CompiledPipeline struct {
	ctx   weak.Pointer[Context]
	label string

	shader       hal.ShaderModule
	groupLayouts []hal.BindGroupLayout
	layout       hal.PipelineLayout
	pipeline     hal.RenderPipeline

	destroyed bool
}

// CompilePipeline creates the shader module, bind group layouts, pipeline
// layout and render pipeline described by desc. If any step fails, the
// objects already created are destroyed before the error is returned.
func CompilePipeline(ctx *Context, desc *PipelineDescriptor) (*CompiledPipeline, error) {
	if ctx.Destroyed() {
		return nil, ErrDeviceDestroyed
	}
	var source hal.ShaderSource
	switch {
	case len(desc.SPIRV) > 0:
		source = hal.ShaderSource{SPIRV: desc.SPIRV}
	case desc.WGSL != "":
		source = hal.ShaderSource{WGSL: desc.WGSL}
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoShaderSource, desc.Label)
	}

	device := ctx.Device()
	p := &CompiledPipeline{ctx: ctx.Ref(), label: desc.Label}

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label + "_shader",
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderModule, desc.Label, err)
	}
	p.shader = shader

	for _, g := range desc.Groups {
		layout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   g.Label,
			Entries: g.Entries,
		})
		if err != nil {
			p.release(device)
			return nil, fmt.Errorf("create %s bind group layout %q: %w", desc.Label, g.Label, err)
		}
		p.groupLayouts = append(p.groupLayouts, layout)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: p.groupLayouts,
	})
	if err != nil {
		p.release(device)
		return nil, fmt.Errorf("create %s pipeline layout: %w", desc.Label, err)
	}
	p.layout = pipeLayout

	blend := desc.Blend
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: desc.VertexEntry,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: desc.FragmentEntry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    desc.ColorFormat,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      desc.DepthCompare,
			StencilFront: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilBack: hal.StencilFaceState{
				Compare:     gputypes.CompareFunctionAlways,
				FailOp:      hal.StencilOperationKeep,
				DepthFailOp: hal.StencilOperationKeep,
				PassOp:      hal.StencilOperationKeep,
			},
			StencilReadMask:  0x00,
			StencilWriteMask: 0x00,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		p.release(device)
		return nil, fmt.Errorf("create %s render pipeline: %w", desc.Label, err)
	}
	p.pipeline = pipeline

	slogger().Debug("gpu: pipeline compiled", "label", desc.Label, "groups", len(desc.Groups))
	return p, nil
}

// Raw returns the HAL render pipeline.
func (p *CompiledPipeline) Raw() hal.RenderPipeline { return p.pipeline }

// GroupLayout returns the layout of bind group i.
func (p *CompiledPipeline) GroupLayout(i int) hal.BindGroupLayout { return p.groupLayouts[i] }

// GroupCount returns the number of bind group layouts.
func (p *CompiledPipeline) GroupCount() int { return len(p.groupLayouts) }

// Label returns the debug name.
func (p *CompiledPipeline) Label() string { return p.label }

// Destroy releases the pipeline before its layout, the layout before the
// bind group layouts, and the shader module last. It is idempotent.
func (p *CompiledPipeline) Destroy() error {
	if p.destroyed {
		return nil
	}
	p.destroyed = true
	ctx, err := resolve(p.ctx)
	if err != nil {
		slogger().Warn("gpu: pipeline outlived its device", "label", p.label)
		return fmt.Errorf("destroy pipeline %q: %w", p.label, err)
	}
	p.release(ctx.Device())
	return nil
}

func (p *CompiledPipeline) release(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.layout != nil {
		device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
	for i := len(p.groupLayouts) - 1; i >= 0; i-- {
		if p.groupLayouts[i] != nil {
			device.DestroyBindGroupLayout(p.groupLayouts[i])
		}
	}
	p.groupLayouts = nil
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// BindGroup is a set of resources bound at one group index.
type BindGroup struct {
	ctx   weak.Pointer[Context]
	raw   hal.BindGroup
	label string
}

// NewBindGroup creates a bind group for layout.
func NewBindGroup(ctx *Context, label string, layout hal.BindGroupLayout, entries []gputypes.BindGroupEntry) (*BindGroup, error) {
	if ctx.Destroyed() {
		return nil, ErrDeviceDestroyed
	}
	raw, err := ctx.Device().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %q: %w", label, err)
	}
	return &BindGroup{ctx: ctx.Ref(), raw: raw, label: label}, nil
}

// Raw returns the HAL bind group.
func (g *BindGroup) Raw() hal.BindGroup { return g.raw }

// Destroy releases the bind group. It is idempotent.
func (g *BindGroup) Destroy() error {
	if g.raw == nil {
		return nil
	}
	ctx, err := resolve(g.ctx)
	if err != nil {
		g.raw = nil
		slogger().Warn("gpu: bind group outlived its device", "label", g.label)
		return fmt.Errorf("destroy bind group %q: %w", g.label, err)
	}
	ctx.Device().DestroyBindGroup(g.raw)
	g.raw = nil
	return nil
}

// UniformEntry returns a bind group entry exposing all of buf at binding.
func UniformEntry(binding uint32, buf *Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.Raw().NativeHandle(),
			Offset: 0,
			Size:   buf.Size(),
		},
	}
}

// TextureEntry returns a bind group entry exposing the view of tex.
func TextureEntry(binding uint32, tex *Texture) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding:  binding,
		Resource: gputypes.TextureViewBinding{TextureView: tex.View().NativeHandle()},
	}
}

// SamplerEntry returns a bind group entry exposing s.
func SamplerEntry(binding uint32, s *Sampler) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding:  binding,
		Resource: gputypes.SamplerBinding{Sampler: s.Raw().NativeHandle()},
	}
}
