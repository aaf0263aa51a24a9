package poisson

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/poisson/backend"
	"github.com/gogpu/poisson/internal/gpu"
)

// FrameStats describes what one RenderFrame call did.
type FrameStats struct {
	// Frame counts RenderFrame calls, skipped ones included.
	Frame uint64

	// Slot is the frame slot used, and Image the swapchain image rendered.
	Slot  int
	Image uint32

	// Pipelines is the number of pipeline binds, DrawCalls the number of
	// indexed draws, and Indices the index count of each draw.
	Pipelines int
	DrawCalls int
	Indices   []uint32

	// Skipped is set when nothing was submitted: a zero-area surface or an
	// out-of-date swapchain.
	Skipped bool

	// Recreated is set when the swapchain images were rebuilt.
	Recreated bool

	// Released counts deferred releases executed at the start of the frame.
	Released int
}

// Backend owns the device and everything allocated from it, and runs the
// frame loop.
//
// All methods are serialized by one mutex. Rendering is meant to be driven
// from a single goroutine; the lock only makes other use safe.
type Backend struct {
	mu sync.Mutex

	cfg  Config
	mode Mode
	name string

	ctx       *gpu.Context
	swapchain *gpu.Swapchain
	ring      *gpu.FrameRing
	presenter gpu.Presenter
	releases  gpu.ReleaseQueue

	passes []*Pass

	width, height uint32
	resizePending bool
	reqW, reqH    uint32
	needsResize   bool
	needsRebuild  bool

	frame     uint64
	lost      error
	destroyed bool
}

// NewBackend opens a device and prepares the frame loop.
//
// The device comes from WithDeviceProvider if given, otherwise from the
// configured backend name, otherwise from the best available backend.
func NewBackend(opts ...Option) (*Backend, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, name, mode, err := openDevice(o, cfg)
	if err != nil {
		return nil, err
	}

	frames := cfg.FramesInFlight
	if mode == ModePortable {
		frames = 1
	}

	b := &Backend{
		cfg:       cfg,
		mode:      mode,
		name:      name,
		ctx:       ctx,
		presenter: o.presenter,
		width:     cfg.Width,
		height:    cfg.Height,
	}
	b.swapchain, err = gpu.NewSwapchain(ctx, gpu.SwapchainConfig{
		Label:      "poisson_swapchain",
		ImageCount: frames,
		Width:      cfg.Width,
		Height:     cfg.Height,
	})
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("create swapchain: %w", err)
	}
	b.ring, err = gpu.NewFrameRing(ctx, frames, cfg.FenceTimeout)
	if err != nil {
		_ = b.swapchain.Destroy()
		ctx.Destroy()
		return nil, fmt.Errorf("create frame ring: %w", err)
	}
	if b.presenter == nil {
		b.presenter = gpu.NewOffscreenPresenter(ctx, cfg.FenceTimeout)
	}

	Logger().Info("poisson: backend ready",
		"backend", name, "mode", mode, "frames_in_flight", frames,
		"width", cfg.Width, "height", cfg.Height)
	return b, nil
}

func openDevice(o backendOptions, cfg Config) (*gpu.Context, string, Mode, error) {
	var (
		ctx  *gpu.Context
		name string
		mode = ModeExplicit
		err  error
	)
	switch {
	case o.provider != nil:
		name, mode = "provider", ModePortable
		ctx, err = gpu.FromProvider(o.provider)
	case cfg.Backend != "":
		name = cfg.Backend
		ctx, err = backend.Open(cfg.Backend)
	default:
		name, ctx, err = backend.OpenDefault()
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: %w", ErrNoBackend, err)
	}
	if cfg.Mode != "" {
		mode = cfg.Mode
	}
	return ctx, name, mode, nil
}

// Name returns the name of the device backend in use.
func (b *Backend) Name() string { return b.name }

// Mode returns the backend mode.
func (b *Backend) Mode() Mode { return b.mode }

// FramesInFlight returns the number of frame slots.
func (b *Backend) FramesInFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring == nil {
		return 0
	}
	return b.ring.Len()
}

// Size returns the surface extent the next frame renders at.
func (b *Backend) Size() (uint32, uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resizePending {
		return b.reqW, b.reqH
	}
	return b.width, b.height
}

// Swapchain returns the presentable images.
func (b *Backend) Swapchain() *Swapchain { return b.swapchain }

// PendingReleases returns the number of deferred releases still waiting
// for the GPU.
func (b *Backend) PendingReleases() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.releases.Len()
}

// Resize records a new surface extent. It takes effect at the start of the
// next frame. A zero width or height pauses rendering.
func (b *Backend) Resize(width, height uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqW, b.reqH = width, height
	b.resizePending = true
}

func (b *Backend) usableLocked() error {
	if b.destroyed {
		return ErrBackendClosed
	}
	return b.lost
}

// fail marks the device lost. Every later frame returns the same error.
func (b *Backend) fail(err error) error {
	if !errors.Is(err, ErrDeviceLost) {
		err = fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}
	b.lost = err
	Logger().Error("poisson: device lost", "error", err)
	return err
}

// RenderFrame renders and presents one frame.
//
// It waits only for the frame slot about to be reused, applies a pending
// resize, acquires an image, records one draw per live drawlet, submits and
// presents. Out-of-date and suboptimal presenters cause recreation and
// never fail the frame. ErrDeviceLost is fatal: every later call returns
// it.
func (b *Backend) RenderFrame(ctx context.Context) (FrameStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usableLocked(); err != nil {
		return FrameStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return FrameStats{}, err
	}

	b.frame++
	stats := FrameStats{Frame: b.frame, Slot: b.ring.Current()}

	// Wait for the slot, then release what no frame can still reference.
	if err := b.ring.WaitCurrent(); err != nil {
		return stats, b.fail(err)
	}
	stats.Released = b.releases.Collect(b.ring.Completed())

	if b.resizePending {
		b.resizePending = false
		b.width, b.height = b.reqW, b.reqH
		if w, h := b.swapchain.Extent(); w != b.width || h != b.height {
			b.needsResize = true
		}
	}
	if b.width == 0 || b.height == 0 {
		stats.Skipped = true
		Logger().Warn("poisson: frame skipped, zero-area surface", "frame", b.frame)
		return stats, nil
	}
	if b.needsResize || b.needsRebuild || !b.swapchain.Ready() {
		rebuilt, err := b.recreateLocked()
		if err != nil {
			return stats, err
		}
		stats.Recreated = rebuilt
	}

	idx, err := b.presenter.Acquire(ctx, b.swapchain)
	switch {
	case errors.Is(err, ErrOutOfDate):
		b.needsRebuild = true
		stats.Skipped = true
		Logger().Warn("poisson: frame skipped, swapchain out of date", "frame", b.frame)
		return stats, nil
	case errors.Is(err, ErrSuboptimal):
		b.needsRebuild = true
	case errors.Is(err, ErrDeviceLost):
		return stats, b.fail(err)
	case err != nil:
		return stats, fmt.Errorf("acquire image: %w", err)
	}
	stats.Image = idx

	cmd, err := b.recordLocked(idx, &stats)
	if err != nil {
		return stats, err
	}

	signal, err := b.ring.Submit(cmd)
	if err != nil {
		return stats, b.fail(err)
	}
	b.ring.Advance()

	err = b.presenter.Present(ctx, b.swapchain, idx, signal)
	switch {
	case errors.Is(err, ErrOutOfDate), errors.Is(err, ErrSuboptimal):
		b.needsRebuild = true
		Logger().Info("poisson: swapchain needs recreation after present", "frame", b.frame, "reason", err)
	case errors.Is(err, ErrDeviceLost):
		return stats, b.fail(err)
	case err != nil:
		return stats, fmt.Errorf("present: %w", err)
	}
	return stats, nil
}

// recordLocked records the frame's single render pass: every pass, every
// pipeline in creation order, every drawlet in ID order.
func (b *Backend) recordLocked(idx uint32, stats *FrameStats) (cmd hal.CommandBuffer, err error) {
	enc, err := gpu.BeginFrame(b.ctx, fmt.Sprintf("frame_%d", b.frame))
	if err != nil {
		return nil, err
	}
	_, view := b.swapchain.Image(idx)
	rp, err := enc.BeginRenderPass(gpu.RenderTarget{
		Color: view,
		Depth: b.swapchain.DepthView(),
		Clear: b.cfg.clearColor(),
	})
	if err != nil {
		enc.Discard()
		return nil, err
	}
	for _, p := range b.passes {
		if err := p.record(rp, stats.Slot, b.width, b.height); err != nil {
			enc.Discard()
			return nil, fmt.Errorf("record %v: %w", p.id, err)
		}
	}
	rp.End()

	cmd, err = enc.Finish()
	if err != nil {
		return nil, err
	}
	ds := enc.Stats()
	stats.Pipelines = ds.Pipelines
	stats.DrawCalls = ds.DrawCalls
	stats.Indices = ds.Indices
	return cmd, nil
}

// recreateLocked rebuilds the swapchain. This is the one place the loop
// waits for the whole device.
func (b *Backend) recreateLocked() (bool, error) {
	if err := b.ctx.WaitIdle(b.cfg.FenceTimeout); err != nil {
		return false, b.fail(err)
	}
	if err := b.ring.WaitAll(); err != nil {
		return false, b.fail(err)
	}
	b.releases.Collect(b.ring.Completed())

	rebuilt := true
	var err error
	if b.needsRebuild {
		err = b.swapchain.Rebuild(b.width, b.height)
	} else {
		rebuilt, err = b.swapchain.Resize(b.width, b.height)
	}
	if err != nil {
		return false, fmt.Errorf("recreate swapchain: %w", err)
	}
	b.needsResize, b.needsRebuild = false, false
	if rebuilt {
		Logger().Info("poisson: swapchain recreated",
			"width", b.width, "height", b.height, "generation", b.swapchain.Generation())
	}
	return rebuilt, nil
}

// Snapshot reads back the last presented image. It requires the default
// OffscreenPresenter.
func (b *Backend) Snapshot() (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usableLocked(); err != nil {
		return nil, err
	}
	op, ok := b.presenter.(*gpu.OffscreenPresenter)
	if !ok {
		return nil, fmt.Errorf("snapshot: presenter %T cannot read back", b.presenter)
	}
	return op.Snapshot(b.swapchain)
}

// Destroy waits for the GPU, then tears everything down: passes with their
// pipelines and drawlets, deferred releases, the frame ring, the swapchain
// and finally the device. Destroy is idempotent.
func (b *Backend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	b.destroyed = true

	var errs []error
	if b.lost == nil {
		if err := b.ctx.WaitIdle(b.cfg.FenceTimeout); err != nil {
			errs = append(errs, err)
		}
		if err := b.ring.WaitAll(); err != nil {
			errs = append(errs, err)
		}
	}

	after := b.ring.Submitted()
	for _, p := range slices.Backward(b.passes) {
		p.retireLocked(after)
	}
	b.passes = nil
	n := b.releases.Drain()

	errs = append(errs, b.ring.Destroy(), b.swapchain.Destroy())
	b.ctx.Destroy()
	Logger().Info("poisson: backend destroyed", "released", n, "frames", b.frame)
	return errors.Join(errs...)
}
