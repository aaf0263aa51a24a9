package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Encoder errors.
var (
	// ErrPassEnded is returned when commands are recorded into an ended pass.
	ErrPassEnded = errors.New("gpu: render pass has already ended")

	// ErrEncoderFinished is returned when a finished or discarded encoder is used.
	ErrEncoderFinished = errors.New("gpu: command encoder is no longer recording")

	// ErrPassOpen is returned when finishing an encoder with an open pass.
	ErrPassOpen = errors.New("gpu: render pass still open")

	// ErrNoPipeline is returned when drawing before a pipeline is bound.
	ErrNoPipeline = errors.New("gpu: no pipeline bound")

	// ErrNoIndexBuffer is returned when drawing indexed before an index buffer is bound.
	ErrNoIndexBuffer = errors.New("gpu: no index buffer bound")

	// ErrBindGroupIndexOutOfRange is returned when a group index exceeds the bound pipeline's layout.
	ErrBindGroupIndexOutOfRange = errors.New("gpu: bind group index out of range")
)

// DrawStats counts what a frame recorded.
type DrawStats struct {
	// Pipelines is the number of SetPipeline calls.
	Pipelines int

	// DrawCalls is the number of indexed draws.
	DrawCalls int

	// Indices holds the index count of each draw, in recording order.
	Indices []uint32
}

// RenderTarget is the attachment set of a frame's render pass.
type RenderTarget struct {
	Color hal.TextureView
	Depth hal.TextureView
	Clear gputypes.Color
}

// FrameEncoder records one frame's command buffer.
//
// State machine:
//
//	Recording -> BeginRenderPass -> (pass ended) -> Finish | Discard
type FrameEncoder struct {
	ctx   *Context
	raw   hal.CommandEncoder
	label string

	pass     *RenderPassEncoder
	finished bool
	stats    DrawStats
}

// BeginFrame creates a command encoder and begins recording.
func BeginFrame(ctx *Context, label string) (*FrameEncoder, error) {
	if ctx.Destroyed() {
		return nil, ErrDeviceDestroyed
	}
	raw, err := ctx.Device().CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_encoder",
	})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := raw.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &FrameEncoder{ctx: ctx, raw: raw, label: label}, nil
}

// BeginRenderPass starts the frame's render pass, clearing color to
// target.Clear and depth to 1.
func (e *FrameEncoder) BeginRenderPass(target RenderTarget) (*RenderPassEncoder, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	if e.pass != nil && !e.pass.ended {
		return nil, ErrPassOpen
	}
	rp := e.raw.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: e.label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.Color,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: target.Clear,
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:              target.Depth,
			DepthLoadOp:       gputypes.LoadOpClear,
			DepthStoreOp:      gputypes.StoreOpDiscard,
			DepthClearValue:   1.0,
			StencilLoadOp:     gputypes.LoadOpClear,
			StencilStoreOp:    gputypes.StoreOpDiscard,
			StencilClearValue: 0,
		},
	})
	e.pass = &RenderPassEncoder{raw: rp, stats: &e.stats}
	return e.pass, nil
}

// Stats returns what has been recorded so far.
func (e *FrameEncoder) Stats() DrawStats { return e.stats }

// Finish ends recording and returns the command buffer. The caller owns it
// until it is submitted.
func (e *FrameEncoder) Finish() (hal.CommandBuffer, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	if e.pass != nil && !e.pass.ended {
		e.Discard()
		return nil, ErrPassOpen
	}
	e.finished = true
	cmd, err := e.raw.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmd, nil
}

// Discard abandons recording. It is safe to call after Finish.
func (e *FrameEncoder) Discard() {
	if e.finished {
		return
	}
	e.finished = true
	if e.pass != nil && !e.pass.ended {
		e.pass.raw.End()
		e.pass.ended = true
	}
	e.raw.DiscardEncoding()
}

// RenderPassEncoder records draw commands within a render pass. It checks
// that a pipeline and an index buffer are bound before each draw and counts
// what was recorded.
//
// RenderPassEncoder is NOT safe for concurrent use.
type RenderPassEncoder struct {
	raw   hal.RenderPassEncoder
	stats *DrawStats

	pipeline   *CompiledPipeline
	indexBound bool
	ended      bool
}

// SetPipeline binds a pipeline for subsequent draws.
func (p *RenderPassEncoder) SetPipeline(pipeline *CompiledPipeline) error {
	if p.ended {
		return fmt.Errorf("set pipeline: %w", ErrPassEnded)
	}
	p.raw.SetPipeline(pipeline.Raw())
	p.pipeline = pipeline
	p.stats.Pipelines++
	return nil
}

// SetViewport covers the whole w x h target with depth range [0, 1], and
// sets a matching scissor rectangle.
func (p *RenderPassEncoder) SetViewport(w, h uint32) error {
	if p.ended {
		return fmt.Errorf("set viewport: %w", ErrPassEnded)
	}
	p.raw.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	p.raw.SetScissorRect(0, 0, w, h)
	return nil
}

// SetBindGroup binds group at index for the bound pipeline.
func (p *RenderPassEncoder) SetBindGroup(index uint32, group *BindGroup) error {
	if p.ended {
		return fmt.Errorf("set bind group: %w", ErrPassEnded)
	}
	if p.pipeline == nil {
		return fmt.Errorf("set bind group: %w", ErrNoPipeline)
	}
	if int(index) >= p.pipeline.GroupCount() {
		return fmt.Errorf("%w: %d >= %d", ErrBindGroupIndexOutOfRange, index, p.pipeline.GroupCount())
	}
	p.raw.SetBindGroup(index, group.Raw(), nil)
	return nil
}

// SetVertexBuffer binds buf at slot.
func (p *RenderPassEncoder) SetVertexBuffer(slot uint32, buf *Buffer) error {
	if p.ended {
		return fmt.Errorf("set vertex buffer: %w", ErrPassEnded)
	}
	p.raw.SetVertexBuffer(slot, buf.Raw(), 0)
	return nil
}

// SetIndexBuffer binds buf as a uint32 index buffer.
func (p *RenderPassEncoder) SetIndexBuffer(buf *Buffer) error {
	if p.ended {
		return fmt.Errorf("set index buffer: %w", ErrPassEnded)
	}
	p.raw.SetIndexBuffer(buf.Raw(), gputypes.IndexFormatUint32, 0)
	p.indexBound = true
	return nil
}

// DrawIndexed draws indexCount indices of one instance.
func (p *RenderPassEncoder) DrawIndexed(indexCount uint32) error {
	if p.ended {
		return fmt.Errorf("draw indexed: %w", ErrPassEnded)
	}
	if p.pipeline == nil {
		return fmt.Errorf("draw indexed: %w", ErrNoPipeline)
	}
	if !p.indexBound {
		return fmt.Errorf("draw indexed: %w", ErrNoIndexBuffer)
	}
	p.raw.DrawIndexed(indexCount, 1, 0, 0, 0)
	p.stats.DrawCalls++
	p.stats.Indices = append(p.stats.Indices, indexCount)
	return nil
}

// End completes the pass. It is idempotent.
func (p *RenderPassEncoder) End() {
	if p.ended {
		return
	}
	p.ended = true
	p.raw.End()
}
