package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

// testTarget builds a one-image swapchain to render into.
func testTarget(t *testing.T, ctx *Context) (*Swapchain, RenderTarget) {
	t.Helper()
	sc, err := NewSwapchain(ctx, SwapchainConfig{ImageCount: 1, Width: 16, Height: 16})
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	t.Cleanup(func() { _ = sc.Destroy() })
	_, view := sc.Image(0)
	return sc, RenderTarget{Color: view, Depth: sc.DepthView(), Clear: gputypes.Color{A: 1}}
}

func TestRenderPassEncoderDraw(t *testing.T) {
	ctx := newTestContext(t)
	_, target := testTarget(t, ctx)

	p, err := CompilePipeline(ctx, testPipelineDescriptor())
	if err != nil {
		t.Fatalf("CompilePipeline: %v", err)
	}
	defer p.Destroy()

	uniform, _ := NewBuffer(ctx, BufferDescriptor{Label: "mvp", Size: 64, Usage: gputypes.BufferUsageUniform})
	defer uniform.Destroy()
	group, err := NewBindGroup(ctx, "mvp_group", p.GroupLayout(0), []gputypes.BindGroupEntry{UniformEntry(0, uniform)})
	if err != nil {
		t.Fatalf("NewBindGroup: %v", err)
	}
	defer group.Destroy()
	vb, _ := NewBufferInit(ctx, "vb", gputypes.BufferUsageVertex, Float32Bytes(make([]float32, 9)))
	defer vb.Destroy()
	ib, _ := NewBufferInit(ctx, "ib", gputypes.BufferUsageIndex, Uint32Bytes([]uint32{0, 1, 2}))
	defer ib.Destroy()

	enc, err := BeginFrame(ctx, "draw")
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	rp, err := enc.BeginRenderPass(target)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}

	if err := rp.DrawIndexed(3); !errors.Is(err, ErrNoPipeline) {
		t.Errorf("DrawIndexed before SetPipeline = %v, want ErrNoPipeline", err)
	}
	if err := rp.SetPipeline(p); err != nil {
		t.Fatalf("SetPipeline: %v", err)
	}
	if err := rp.SetViewport(16, 16); err != nil {
		t.Fatalf("SetViewport: %v", err)
	}
	if err := rp.DrawIndexed(3); !errors.Is(err, ErrNoIndexBuffer) {
		t.Errorf("DrawIndexed before SetIndexBuffer = %v, want ErrNoIndexBuffer", err)
	}
	if err := rp.SetBindGroup(1, group); !errors.Is(err, ErrBindGroupIndexOutOfRange) {
		t.Errorf("SetBindGroup(1) = %v, want ErrBindGroupIndexOutOfRange", err)
	}
	if err := rp.SetBindGroup(0, group); err != nil {
		t.Fatalf("SetBindGroup(0): %v", err)
	}
	_ = rp.SetVertexBuffer(0, vb)
	_ = rp.SetIndexBuffer(ib)
	if err := rp.DrawIndexed(3); err != nil {
		t.Fatalf("DrawIndexed: %v", err)
	}

	if _, err := enc.Finish(); !errors.Is(err, ErrPassOpen) {
		t.Errorf("Finish with open pass = %v, want ErrPassOpen", err)
	}
	if err := rp.DrawIndexed(3); !errors.Is(err, ErrPassEnded) {
		t.Errorf("DrawIndexed after discard = %v, want ErrPassEnded", err)
	}

	stats := enc.Stats()
	if stats.Pipelines != 1 || stats.DrawCalls != 1 || len(stats.Indices) != 1 || stats.Indices[0] != 3 {
		t.Errorf("Stats() = %+v, want 1 pipeline, 1 draw of 3 indices", stats)
	}
}

func TestFrameEncoderFinish(t *testing.T) {
	ctx := newTestContext(t)
	_, target := testTarget(t, ctx)

	enc, err := BeginFrame(ctx, "finish")
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	rp, err := enc.BeginRenderPass(target)
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if _, err := enc.BeginRenderPass(target); !errors.Is(err, ErrPassOpen) {
		t.Errorf("second BeginRenderPass = %v, want ErrPassOpen", err)
	}
	rp.End()
	rp.End()

	cmd, err := enc.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	ctx.Device().FreeCommandBuffer(cmd)

	if _, err := enc.Finish(); !errors.Is(err, ErrEncoderFinished) {
		t.Errorf("second Finish = %v, want ErrEncoderFinished", err)
	}
	if _, err := enc.BeginRenderPass(target); !errors.Is(err, ErrEncoderFinished) {
		t.Errorf("BeginRenderPass after Finish = %v, want ErrEncoderFinished", err)
	}
	enc.Discard()
}
