package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"weak"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrInvalidBufferSize is returned when buffer size is invalid.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrBufferAlreadyMapped is returned when attempting to map an already mapped buffer.
	ErrBufferAlreadyMapped = errors.New("gpu: buffer is already mapped")

	// ErrBufferNotMapped is returned when unmapping a buffer that is not mapped.
	ErrBufferNotMapped = errors.New("gpu: buffer is not mapped")

	// ErrInvalidMapRange is returned when a write or map range is out of bounds.
	ErrInvalidMapRange = errors.New("gpu: range out of bounds")
)

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes. It is rounded up to 4 bytes.
	Size uint64

	// Usage specifies how the buffer will be used. CopyDst is always added
	// so the buffer can be written through the queue.
	Usage gputypes.BufferUsage
}

// Buffer is a single GPU buffer allocation plus a CPU-visible shadow of its
// contents.
//
// Writes go to the shadow and are flushed with a queue-level buffer write.
// Map returns the shadow for in-place edits; Unmap flushes the mapped range.
// The shadow is never read back from the GPU.
//
// Buffer is safe for concurrent use, but the GPU is not synchronized against
// writes: callers must only write buffers no in-flight frame reads.
type Buffer struct {
	mu sync.Mutex

	ctx   weak.Pointer[Context]
	raw   hal.Buffer
	label string
	size  uint64
	usage gputypes.BufferUsage

	shadow    []byte
	mapped    bool
	mapOffset uint64
	mapSize   uint64
	destroyed bool
}

// NewBuffer allocates a buffer on ctx.
func NewBuffer(ctx *Context, desc BufferDescriptor) (*Buffer, error) {
	if desc.Size == 0 {
		return nil, ErrInvalidBufferSize
	}
	if ctx.Destroyed() {
		return nil, ErrDeviceDestroyed
	}
	size := alignUp(desc.Size, 4)
	usage := desc.Usage | gputypes.BufferUsageCopyDst

	raw, err := ctx.Device().CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}

	return &Buffer{
		ctx:    ctx.Ref(),
		raw:    raw,
		label:  desc.Label,
		size:   size,
		usage:  usage,
		shadow: make([]byte, size),
	}, nil
}

// NewBufferInit allocates a buffer sized for data and uploads it.
func NewBufferInit(ctx *Context, label string, usage gputypes.BufferUsage, data []byte) (*Buffer, error) {
	b, err := NewBuffer(ctx, BufferDescriptor{Label: label, Size: uint64(len(data)), Usage: usage})
	if err != nil {
		return nil, err
	}
	if err := b.Write(0, data); err != nil {
		_ = b.Destroy()
		return nil, err
	}
	return b, nil
}

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

// Label returns the debug name.
func (b *Buffer) Label() string { return b.label }

// Size returns the allocated size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Write copies data into the buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("%w: write [%d, %d) into %d bytes", ErrInvalidMapRange, offset, offset+uint64(len(data)), b.size)
	}
	copy(b.shadow[offset:], data)
	return b.flushLocked(offset, uint64(len(data)))
}

// WriteFloat32s writes values as little-endian float32 at offset.
func (b *Buffer) WriteFloat32s(offset uint64, values []float32) error {
	return b.Write(offset, Float32Bytes(values))
}

// Contents returns a copy of the CPU shadow.
func (b *Buffer) Contents() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.shadow))
	copy(out, b.shadow)
	return out
}

// Map returns the shadow bytes in [offset, offset+size) for writing.
// The range is uploaded by Unmap.
func (b *Buffer) Map(offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.mapped {
		return nil, ErrBufferAlreadyMapped
	}
	if offset > b.size {
		return nil, fmt.Errorf("%w: map offset %d of %d bytes", ErrInvalidMapRange, offset, b.size)
	}
	if size == 0 {
		size = b.size - offset
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("%w: map [%d, %d) of %d bytes", ErrInvalidMapRange, offset, offset+size, b.size)
	}
	b.mapped = true
	b.mapOffset = offset
	b.mapSize = size
	return b.shadow[offset : offset+size], nil
}

// Unmap ends the mapping started by Map and uploads the mapped range.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if !b.mapped {
		return ErrBufferNotMapped
	}
	b.mapped = false
	return b.flushLocked(b.mapOffset, b.mapSize)
}

// IsMapped reports whether a mapping is open.
func (b *Buffer) IsMapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapped
}

func (b *Buffer) flushLocked(offset, size uint64) error {
	if size == 0 {
		return nil
	}
	ctx, err := resolve(b.ctx)
	if err != nil {
		return err
	}
	// Queue writes must be 4-byte aligned in offset and size.
	start := offset &^ 3
	end := alignUp(offset+size, 4)
	ctx.Queue().WriteBuffer(b.raw, start, b.shadow[start:end])
	return nil
}

// Destroy releases the GPU allocation. It is idempotent.
func (b *Buffer) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return nil
	}
	b.destroyed = true
	b.shadow = nil

	ctx, err := resolve(b.ctx)
	if err != nil {
		slogger().Warn("gpu: buffer outlived its device", "label", b.label)
		return fmt.Errorf("destroy buffer %q: %w", b.label, err)
	}
	ctx.Device().DestroyBuffer(b.raw)
	return nil
}

// Float32Bytes encodes values as little-endian float32.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Uint32Bytes encodes values as little-endian uint32.
func Uint32Bytes(values []uint32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}
