package gpu

import (
	"fmt"
	"time"
	"weak"

	"github.com/gogpu/wgpu/hal"
)

// DefaultFenceTimeout bounds every fence wait. Expiry is treated as device
// loss.
const DefaultFenceTimeout = 5 * time.Second

// Signal is a point on a fence: the GPU has passed it once the fence
// reaches Value.
type Signal struct {
	Fence hal.Fence
	Value uint64
}

// frameSlot holds the per-frame-in-flight synchronization state.
type frameSlot struct {
	fence hal.Fence

	// value is the fence value signaled by the last submission from this
	// slot; 0 if the slot has never been submitted.
	value uint64

	// cmd is the command buffer of that submission, freed once the fence
	// passes.
	cmd hal.CommandBuffer
}

// FrameRing cycles a fixed number of frame slots. Each slot owns a fence;
// every submission signals it with the next value of a ring-wide serial.
// Queue submissions complete in order, so once a serial has been observed
// every smaller serial has completed too.
type FrameRing struct {
	ctx     weak.Pointer[Context]
	slots   []frameSlot
	current int
	timeout time.Duration

	serial    uint64
	completed uint64
}

// NewFrameRing creates n slots, each with its own fence.
func NewFrameRing(ctx *Context, n int, timeout time.Duration) (*FrameRing, error) {
	if n <= 0 {
		n = 1
	}
	if timeout <= 0 {
		timeout = DefaultFenceTimeout
	}
	r := &FrameRing{
		ctx:     ctx.Ref(),
		slots:   make([]frameSlot, n),
		timeout: timeout,
	}
	for i := range r.slots {
		fence, err := ctx.Device().CreateFence()
		if err != nil {
			r.destroyFences(ctx.Device())
			return nil, fmt.Errorf("create frame fence %d: %w", i, err)
		}
		r.slots[i].fence = fence
	}
	return r, nil
}

// Len returns the number of frames in flight.
func (r *FrameRing) Len() int { return len(r.slots) }

// Current returns the index of the slot being recorded.
func (r *FrameRing) Current() int { return r.current }

// Submitted returns the serial of the most recent submission.
func (r *FrameRing) Submitted() uint64 { return r.serial }

// Completed returns the highest serial known to have completed.
func (r *FrameRing) Completed() uint64 { return r.completed }

// WaitCurrent blocks until the GPU has finished the previous submission
// from the current slot, then frees that submission's command buffer.
// It never waits on other slots.
func (r *FrameRing) WaitCurrent() error {
	ctx, err := resolve(r.ctx)
	if err != nil {
		return err
	}
	return r.waitSlot(ctx.Device(), &r.slots[r.current])
}

func (r *FrameRing) waitSlot(device hal.Device, slot *frameSlot) error {
	if slot.value > r.completed {
		ok, err := device.Wait(slot.fence, slot.value, r.timeout)
		if err != nil {
			return fmt.Errorf("%w: frame fence %d: %v", ErrDeviceLost, slot.value, err)
		}
		if !ok {
			return fmt.Errorf("%w: frame fence %d not signaled after %v", ErrDeviceLost, slot.value, r.timeout)
		}
		r.completed = slot.value
	}
	if slot.cmd != nil {
		device.FreeCommandBuffer(slot.cmd)
		slot.cmd = nil
	}
	return nil
}

// Submit submits cmd from the current slot and returns the signal that
// marks its completion. The ring keeps cmd until the slot is reused.
// On failure cmd is freed.
func (r *FrameRing) Submit(cmd hal.CommandBuffer) (Signal, error) {
	ctx, err := resolve(r.ctx)
	if err != nil {
		return Signal{}, err
	}
	slot := &r.slots[r.current]
	next := r.serial + 1
	if err := ctx.Queue().Submit([]hal.CommandBuffer{cmd}, slot.fence, next); err != nil {
		ctx.Device().FreeCommandBuffer(cmd)
		return Signal{}, fmt.Errorf("submit frame %d: %w", next, err)
	}
	r.serial = next
	slot.value = next
	slot.cmd = cmd
	return Signal{Fence: slot.fence, Value: next}, nil
}

// Advance moves to the next slot.
func (r *FrameRing) Advance() {
	r.current = (r.current + 1) % len(r.slots)
}

// WaitAll blocks until every slot's last submission has completed.
func (r *FrameRing) WaitAll() error {
	ctx, err := resolve(r.ctx)
	if err != nil {
		return err
	}
	for i := range r.slots {
		if err := r.waitSlot(ctx.Device(), &r.slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// Destroy frees pending command buffers and fences. The caller must have
// waited for the GPU first. Destroy is idempotent.
func (r *FrameRing) Destroy() error {
	if r.slots == nil {
		return nil
	}
	ctx, err := resolve(r.ctx)
	if err != nil {
		r.slots = nil
		slogger().Warn("gpu: frame ring outlived its device")
		return fmt.Errorf("destroy frame ring: %w", err)
	}
	device := ctx.Device()
	for i := range r.slots {
		if r.slots[i].cmd != nil {
			device.FreeCommandBuffer(r.slots[i].cmd)
			r.slots[i].cmd = nil
		}
	}
	r.destroyFences(device)
	r.slots = nil
	return nil
}

func (r *FrameRing) destroyFences(device hal.Device) {
	for i := range r.slots {
		if r.slots[i].fence != nil {
			device.DestroyFence(r.slots[i].fence)
			r.slots[i].fence = nil
		}
	}
}
