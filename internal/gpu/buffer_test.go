package gpu

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestNewBuffer(t *testing.T) {
	ctx := newTestContext(t)

	tests := []struct {
		name     string
		size     uint64
		wantSize uint64
		wantErr  error
	}{
		{"aligned", 64, 64, nil},
		{"rounded up", 6, 8, nil},
		{"zero", 0, 0, ErrInvalidBufferSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBuffer(ctx, BufferDescriptor{Label: tt.name, Size: tt.size, Usage: gputypes.BufferUsageUniform})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewBuffer error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer b.Destroy()
			if b.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", b.Size(), tt.wantSize)
			}
			if b.Usage()&gputypes.BufferUsageCopyDst == 0 {
				t.Error("CopyDst usage not added")
			}
		})
	}
}

func TestBufferWrite(t *testing.T) {
	ctx := newTestContext(t)
	b, err := NewBufferInit(ctx, "init", gputypes.BufferUsageVertex, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewBufferInit: %v", err)
	}
	defer b.Destroy()

	if err := b.Write(2, []byte{9}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := b.Contents(); !bytes.Equal(got, []byte{1, 2, 9, 4}) {
		t.Errorf("Contents() = %v", got)
	}
	if err := b.Write(3, []byte{1, 2}); !errors.Is(err, ErrInvalidMapRange) {
		t.Errorf("out-of-range Write = %v, want ErrInvalidMapRange", err)
	}
}

func TestBufferMapUnmap(t *testing.T) {
	ctx := newTestContext(t)
	b, err := NewBuffer(ctx, BufferDescriptor{Label: "map", Size: 16})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer b.Destroy()

	if err := b.Unmap(); !errors.Is(err, ErrBufferNotMapped) {
		t.Errorf("Unmap before Map = %v, want ErrBufferNotMapped", err)
	}

	m, err := b.Map(4, 4)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	copy(m, []byte{7, 7, 7, 7})
	if _, err := b.Map(0, 0); !errors.Is(err, ErrBufferAlreadyMapped) {
		t.Errorf("second Map = %v, want ErrBufferAlreadyMapped", err)
	}
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if b.IsMapped() {
		t.Error("IsMapped() = true after Unmap")
	}
	if got := b.Contents()[4:8]; !bytes.Equal(got, []byte{7, 7, 7, 7}) {
		t.Errorf("mapped range = %v", got)
	}

	if _, err := b.Map(20, 0); !errors.Is(err, ErrInvalidMapRange) {
		t.Errorf("Map past end = %v, want ErrInvalidMapRange", err)
	}
}

func TestBufferDestroyAfterContext(t *testing.T) {
	ctx := newTestContext(t)
	b, err := NewBuffer(ctx, BufferDescriptor{Label: "orphan", Size: 4})
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}

	ctx.Destroy()
	if err := b.Destroy(); !errors.Is(err, ErrDeviceDestroyed) {
		t.Errorf("Destroy after context = %v, want ErrDeviceDestroyed", err)
	}
	if err := b.Destroy(); err != nil {
		t.Errorf("second Destroy = %v, want nil", err)
	}
	if err := b.Write(0, []byte{1}); !errors.Is(err, ErrBufferDestroyed) {
		t.Errorf("Write after Destroy = %v, want ErrBufferDestroyed", err)
	}
}

func TestFloat32Bytes(t *testing.T) {
	got := Float32Bytes([]float32{1, -2})
	want := []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}
	if !bytes.Equal(got, want) {
		t.Errorf("Float32Bytes = %x, want %x", got, want)
	}
	if got := Uint32Bytes([]uint32{0x01020304}); !bytes.Equal(got, []byte{4, 3, 2, 1}) {
		t.Errorf("Uint32Bytes = %x", got)
	}
}
