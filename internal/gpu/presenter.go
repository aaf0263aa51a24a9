package gpu

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNothingPresented is returned by Snapshot before the first Present.
var ErrNothingPresented = errors.New("gpu: no image has been presented")

// Presenter hands swapchain images to a presentation engine.
//
// Acquire returns the index of the image to render into. It plays the role
// of the "image available" wait. Present receives the signal that marks
// the frame's GPU work as complete and must not show the image before that
// signal is reached. Present must not block on it.
//
// Both may return ErrOutOfDate or ErrSuboptimal; the frame loop recreates
// the swapchain and never treats either as fatal.
type Presenter interface {
	Acquire(ctx context.Context, sc *Swapchain) (uint32, error)
	Present(ctx context.Context, sc *Swapchain, image uint32, renderDone Signal) error
}

// OffscreenPresenter presents into the swapchain's own images, cycling them
// round-robin. It is the presenter for headless use and tests.
//
// Present queues the image with its render-complete signal and returns.
// The signal is waited on only when the image is needed again: when Acquire
// hands the same index out, or when Snapshot reads it back.
type OffscreenPresenter struct {
	mu sync.Mutex

	device  *Context
	timeout time.Duration

	next       uint32
	last       int
	presented  uint64
	pending    map[uint32]Signal
	acquireErr []error
	presentErr []error
}

// NewOffscreenPresenter creates a presenter that waits on render-complete
// signals through ctx.
func NewOffscreenPresenter(ctx *Context, timeout time.Duration) *OffscreenPresenter {
	if timeout <= 0 {
		timeout = DefaultFenceTimeout
	}
	return &OffscreenPresenter{
		device:  ctx,
		timeout: timeout,
		last:    -1,
		pending: make(map[uint32]Signal),
	}
}

// FailAcquire makes the next Acquire calls return errs, one per call.
func (p *OffscreenPresenter) FailAcquire(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireErr = append(p.acquireErr, errs...)
}

// FailPresent makes the next Present calls return errs, one per call.
func (p *OffscreenPresenter) FailPresent(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presentErr = append(p.presentErr, errs...)
}

// Acquire returns the next image index once the image's previous frame has
// finished rendering.
func (p *OffscreenPresenter) Acquire(ctx context.Context, sc *Swapchain) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.acquireErr) > 0 {
		err := p.acquireErr[0]
		p.acquireErr = p.acquireErr[1:]
		return 0, err
	}
	if !sc.Ready() {
		return 0, ErrOutOfDate
	}
	idx := p.next % uint32(sc.ImageCount())
	if err := p.settleLocked(idx); err != nil {
		return 0, err
	}
	p.next++
	return idx, nil
}

// Present records image as the visible one. It does not wait for
// renderDone.
func (p *OffscreenPresenter) Present(ctx context.Context, sc *Swapchain, image uint32, renderDone Signal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.presentErr) > 0 {
		err := p.presentErr[0]
		p.presentErr = p.presentErr[1:]
		return err
	}
	if renderDone.Fence != nil {
		p.pending[image] = renderDone
	}
	p.last = int(image)
	p.presented++
	return nil
}

// settleLocked waits for the render-complete signal queued with image, if
// any.
func (p *OffscreenPresenter) settleLocked(image uint32) error {
	sig, ok := p.pending[image]
	if !ok {
		return nil
	}
	ok, err := p.device.Device().Wait(sig.Fence, sig.Value, p.timeout)
	if err != nil {
		return fmt.Errorf("%w: image %d wait: %v", ErrDeviceLost, image, err)
	}
	if !ok {
		return fmt.Errorf("%w: image %d wait timed out after %v", ErrDeviceLost, image, p.timeout)
	}
	delete(p.pending, image)
	return nil
}

// Pending returns the number of presented images whose render-complete
// signal has not been waited on yet.
func (p *OffscreenPresenter) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Presented returns how many images have been presented.
func (p *OffscreenPresenter) Presented() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presented
}

// LastImage returns the index of the last presented image, or -1.
func (p *OffscreenPresenter) LastImage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Snapshot waits for the last presented image to finish rendering and reads
// it back into an RGBA image.
func (p *OffscreenPresenter) Snapshot(sc *Swapchain) (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.last
	if last < 0 || !sc.Ready() || last >= sc.ImageCount() {
		return nil, ErrNothingPresented
	}
	if err := p.settleLocked(uint32(last)); err != nil {
		return nil, err
	}
	tex, _ := sc.Image(uint32(last))
	w, h := sc.Extent()
	return readbackTexture(p.device, tex, w, h, sc.Format(), p.timeout)
}

// readbackTexture copies a 4-byte-per-texel texture into a staging buffer,
// waits for the copy and converts it to RGBA.
func readbackTexture(ctx *Context, tex hal.Texture, w, h uint32, format gputypes.TextureFormat, timeout time.Duration) (*image.RGBA, error) {
	device, queue := ctx.Device(), ctx.Queue()

	// Copies require BytesPerRow aligned to 256 bytes.
	const copyPitchAlignment = 256
	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "snapshot_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "snapshot_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("snapshot"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmd)

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, timeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: snapshot wait: ok=%v err=%v", ErrDeviceLost, ok, err)
	}

	raw := make([]byte, stagingSize)
	if err := queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	swapRB := format == gputypes.TextureFormatBGRA8Unorm
	for row := uint32(0); row < h; row++ {
		src := raw[uint64(row)*uint64(alignedBytesPerRow):]
		dst := img.Pix[int(row)*img.Stride:]
		for x := uint32(0); x < w; x++ {
			i := x * 4
			if swapRB {
				dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], src[i+3]
			} else {
				dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i], src[i+1], src[i+2], src[i+3]
			}
		}
	}
	return img, nil
}
