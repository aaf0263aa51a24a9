package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"weak"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"
)

// ErrTextureDestroyed is returned when operating on a destroyed texture.
var ErrTextureDestroyed = errors.New("gpu: texture has been destroyed")

// MaxTextureDimension bounds sampled texture uploads. Larger images are
// scaled down on upload.
const MaxTextureDimension = 4096

// TextureDescriptor describes a 2D texture with a default view.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// Texture is a 2D image allocation plus its default view.
type Texture struct {
	mu sync.Mutex

	ctx    weak.Pointer[Context]
	raw    hal.Texture
	view   hal.TextureView
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat

	destroyed bool
}

// NewTexture allocates a texture and its view.
func NewTexture(ctx *Context, desc TextureDescriptor) (*Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", ErrZeroExtent, desc.Label, desc.Width, desc.Height)
	}
	if ctx.Destroyed() {
		return nil, ErrDeviceDestroyed
	}
	device := ctx.Device()

	raw, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}
	view, err := device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		device.DestroyTexture(raw)
		return nil, fmt.Errorf("create texture view %q: %w", desc.Label, err)
	}

	return &Texture{
		ctx:    ctx.Ref(),
		raw:    raw,
		view:   view,
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
	}, nil
}

// NewTextureFromImage converts img to RGBA8, scaling it down if it exceeds
// MaxTextureDimension, and uploads it as a sampled texture.
func NewTextureFromImage(ctx *Context, label string, img image.Image) (*Texture, error) {
	rgba := ToRGBA(img, MaxTextureDimension)
	b := rgba.Bounds()

	t, err := NewTexture(ctx, TextureDescriptor{
		Label:  label,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Format: gputypes.TextureFormatRGBA8Unorm,
		Usage:  gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	if err := t.Upload(rgba.Pix, uint32(rgba.Stride)); err != nil {
		_ = t.Destroy()
		return nil, err
	}
	return t, nil
}

// ToRGBA returns img as a tightly packed *image.RGBA with its origin at
// (0, 0). Images wider or taller than maxDim are scaled to fit, keeping the
// aspect ratio.
func ToRGBA(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		return dst
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*w {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Upload writes tightly or stride-packed pixel rows covering the whole
// texture.
func (t *Texture) Upload(pixels []byte, bytesPerRow uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return ErrTextureDestroyed
	}
	if uint64(len(pixels)) < uint64(bytesPerRow)*uint64(t.height) {
		return fmt.Errorf("%w: %d bytes for %dx%d texture", ErrInvalidMapRange, len(pixels), t.width, t.height)
	}
	ctx, err := resolve(t.ctx)
	if err != nil {
		return err
	}
	ctx.Queue().WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: 0,
		},
		pixels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  bytesPerRow,
			RowsPerImage: t.height,
		},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
	return nil
}

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// View returns the default view.
func (t *Texture) View() hal.TextureView { return t.view }

// Width returns the width in pixels.
func (t *Texture) Width() uint32 { return t.width }

// Height returns the height in pixels.
func (t *Texture) Height() uint32 { return t.height }

// Format returns the texel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Destroy releases the view, then the texture. It is idempotent.
func (t *Texture) Destroy() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return nil
	}
	t.destroyed = true

	ctx, err := resolve(t.ctx)
	if err != nil {
		slogger().Warn("gpu: texture outlived its device", "label", t.label)
		return fmt.Errorf("destroy texture %q: %w", t.label, err)
	}
	device := ctx.Device()
	if t.view != nil {
		device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.raw != nil {
		device.DestroyTexture(t.raw)
		t.raw = nil
	}
	return nil
}

// Sampler is a linear clamp-to-edge sampler.
type Sampler struct {
	ctx       weak.Pointer[Context]
	raw       hal.Sampler
	label     string
	destroyed bool
}

// NewSampler creates a linear-filtering sampler that clamps to edge.
func NewSampler(ctx *Context, label string) (*Sampler, error) {
	if ctx.Destroyed() {
		return nil, ErrDeviceDestroyed
	}
	raw, err := ctx.Device().CreateSampler(&hal.SamplerDescriptor{
		Label:        label,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler %q: %w", label, err)
	}
	return &Sampler{ctx: ctx.Ref(), raw: raw, label: label}, nil
}

// Raw returns the HAL sampler.
func (s *Sampler) Raw() hal.Sampler { return s.raw }

// Destroy releases the sampler. It is idempotent.
func (s *Sampler) Destroy() error {
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	ctx, err := resolve(s.ctx)
	if err != nil {
		slogger().Warn("gpu: sampler outlived its device", "label", s.label)
		return fmt.Errorf("destroy sampler %q: %w", s.label, err)
	}
	ctx.Device().DestroySampler(s.raw)
	return nil
}
