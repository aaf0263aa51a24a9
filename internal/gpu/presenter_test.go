package gpu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
)

func TestOffscreenPresenterRoundRobin(t *testing.T) {
	ctx := newTestContext(t)
	sc, err := NewSwapchain(ctx, SwapchainConfig{ImageCount: 3, Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	defer sc.Destroy()

	p := NewOffscreenPresenter(ctx, time.Second)
	for i := 0; i < 7; i++ {
		idx, err := p.Acquire(context.Background(), sc)
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if want := uint32(i % 3); idx != want {
			t.Errorf("Acquire %d = %d, want %d", i, idx, want)
		}
	}
}

func TestOffscreenPresenterNotReady(t *testing.T) {
	ctx := newTestContext(t)
	sc, err := NewSwapchain(ctx, SwapchainConfig{ImageCount: 2})
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	p := NewOffscreenPresenter(ctx, 0)
	if _, err := p.Acquire(context.Background(), sc); !errors.Is(err, ErrOutOfDate) {
		t.Errorf("Acquire on empty swapchain = %v, want ErrOutOfDate", err)
	}
}

func TestOffscreenPresenterInjectedErrors(t *testing.T) {
	ctx := newTestContext(t)
	sc, err := NewSwapchain(ctx, SwapchainConfig{ImageCount: 2, Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	defer sc.Destroy()

	p := NewOffscreenPresenter(ctx, time.Second)
	p.FailAcquire(ErrOutOfDate, ErrSuboptimal)
	p.FailPresent(ErrSuboptimal)

	if _, err := p.Acquire(context.Background(), sc); !errors.Is(err, ErrOutOfDate) {
		t.Errorf("first Acquire = %v, want ErrOutOfDate", err)
	}
	if _, err := p.Acquire(context.Background(), sc); !errors.Is(err, ErrSuboptimal) {
		t.Errorf("second Acquire = %v, want ErrSuboptimal", err)
	}
	idx, err := p.Acquire(context.Background(), sc)
	if err != nil {
		t.Fatalf("third Acquire: %v", err)
	}
	if err := p.Present(context.Background(), sc, idx, Signal{}); !errors.Is(err, ErrSuboptimal) {
		t.Errorf("first Present = %v, want ErrSuboptimal", err)
	}
	if p.Presented() != 0 || p.LastImage() != -1 {
		t.Errorf("failed Present counted: presented=%d last=%d", p.Presented(), p.LastImage())
	}
	if err := p.Present(context.Background(), sc, idx, Signal{}); err != nil {
		t.Fatalf("second Present: %v", err)
	}
	if p.Presented() != 1 || p.LastImage() != int(idx) {
		t.Errorf("presented=%d last=%d, want 1 and %d", p.Presented(), p.LastImage(), idx)
	}
}

func TestOffscreenPresenterCanceled(t *testing.T) {
	ctx := newTestContext(t)
	sc, _ := NewSwapchain(ctx, SwapchainConfig{Width: 4, Height: 4})
	defer sc.Destroy()

	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewOffscreenPresenter(ctx, time.Second)
	if _, err := p.Acquire(cctx, sc); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with canceled context = %v, want context.Canceled", err)
	}
}

func TestOffscreenPresenterSnapshot(t *testing.T) {
	ctx := newTestContext(t)
	sc, err := NewSwapchain(ctx, SwapchainConfig{ImageCount: 2, Width: 20, Height: 10})
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	defer sc.Destroy()
	ring, err := NewFrameRing(ctx, 2, time.Second)
	if err != nil {
		t.Fatalf("NewFrameRing: %v", err)
	}
	defer ring.Destroy()

	p := NewOffscreenPresenter(ctx, time.Second)
	if _, err := p.Snapshot(sc); !errors.Is(err, ErrNothingPresented) {
		t.Fatalf("Snapshot before Present = %v, want ErrNothingPresented", err)
	}

	idx, err := p.Acquire(context.Background(), sc)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	_, view := sc.Image(idx)
	enc, err := BeginFrame(ctx, "snapshot")
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	rp, err := enc.BeginRenderPass(RenderTarget{Color: view, Depth: sc.DepthView(), Clear: gputypes.Color{R: 1, A: 1}})
	if err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	rp.End()
	cmd, err := enc.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	done, err := ring.Submit(cmd)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Present(context.Background(), sc, idx, done); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if err := ring.WaitAll(); err != nil {
		t.Fatalf("WaitAll: %v", err)
	}

	img, err := p.Snapshot(sc)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 10 {
		t.Errorf("Snapshot bounds = %v, want 20x10", b)
	}
	if n := p.Pending(); n != 0 {
		t.Errorf("Pending after Snapshot = %d, want 0", n)
	}
}

func TestOffscreenPresenterPresentDoesNotWait(t *testing.T) {
	ctx := newTestContext(t)
	sc, err := NewSwapchain(ctx, SwapchainConfig{ImageCount: 2, Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("NewSwapchain: %v", err)
	}
	defer sc.Destroy()

	// A fence nothing ever signals: any wait on it times out.
	fence, err := ctx.Device().CreateFence()
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	defer ctx.Device().DestroyFence(fence)
	unsignaled := Signal{Fence: fence, Value: 1}

	p := NewOffscreenPresenter(ctx, 10*time.Millisecond)
	bg := context.Background()

	first, err := p.Acquire(bg, sc)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := p.Present(bg, sc, first, unsignaled); err != nil {
		t.Fatalf("Present on unsignaled fence = %v, want nil", err)
	}
	if p.Presented() != 1 || p.Pending() != 1 {
		t.Errorf("presented=%d pending=%d, want 1 and 1", p.Presented(), p.Pending())
	}

	// The other image is free.
	if _, err := p.Acquire(bg, sc); err != nil {
		t.Fatalf("Acquire of the other image: %v", err)
	}

	// The first image is needed again only now.
	if _, err := p.Snapshot(sc); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Snapshot of unfinished image = %v, want ErrDeviceLost", err)
	}
	if _, err := p.Acquire(bg, sc); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Acquire of unfinished image = %v, want ErrDeviceLost", err)
	}
}
