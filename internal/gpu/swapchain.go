package gpu

import (
	"fmt"
	"weak"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SwapchainConfig describes the presentable images of a Swapchain.
type SwapchainConfig struct {
	Label      string
	ImageCount int
	Format     gputypes.TextureFormat
	Width      uint32
	Height     uint32
}

type swapImage struct {
	tex  hal.Texture
	view hal.TextureView
}

// Swapchain owns the presentable color images, their views and the depth
// buffer shared by all of them. It is rebuilt on resize.
//
// Images are created with CopySrc so a Presenter can read them back.
type Swapchain struct {
	ctx        weak.Pointer[Context]
	label      string
	format     gputypes.TextureFormat
	imageCount int

	images    []swapImage
	depthTex  hal.Texture
	depthView hal.TextureView
	width     uint32
	height    uint32

	// generation counts how many times the image set has been built.
	generation uint64
}

// NewSwapchain creates a swapchain. If the configured extent has zero area
// no images are built until the first non-empty Resize.
func NewSwapchain(ctx *Context, cfg SwapchainConfig) (*Swapchain, error) {
	if cfg.ImageCount <= 0 {
		cfg.ImageCount = 1
	}
	var undefined gputypes.TextureFormat
	if cfg.Format == undefined {
		cfg.Format = ctx.ColorFormat()
	}
	if cfg.Label == "" {
		cfg.Label = "swapchain"
	}
	s := &Swapchain{
		ctx:        ctx.Ref(),
		label:      cfg.Label,
		format:     cfg.Format,
		imageCount: cfg.ImageCount,
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		if _, err := s.Resize(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Resize rebuilds the images for a new extent. Resizing to the current
// extent is a no-op and reports false. A zero-area extent is rejected with
// ErrZeroExtent and leaves the current images in place.
//
// The caller must ensure no submitted frame still references the images.
func (s *Swapchain) Resize(w, h uint32) (bool, error) {
	if w == 0 || h == 0 {
		return false, fmt.Errorf("%w: %dx%d", ErrZeroExtent, w, h)
	}
	if s.width == w && s.height == h && len(s.images) > 0 {
		return false, nil
	}
	ctx, err := resolve(s.ctx)
	if err != nil {
		return false, err
	}
	device := ctx.Device()
	s.destroyImages(device)

	size := hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}

	for i := 0; i < s.imageCount; i++ {
		label := fmt.Sprintf("%s_color_%d", s.label, i)
		tex, err := device.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        s.format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			s.destroyImages(device)
			return false, fmt.Errorf("create %s: %w", label, err)
		}
		view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label: label + "_view",
		})
		if err != nil {
			device.DestroyTexture(tex)
			s.destroyImages(device)
			return false, fmt.Errorf("create %s view: %w", label, err)
		}
		s.images = append(s.images, swapImage{tex: tex, view: view})
	}

	depthTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         s.label + "_depth",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        DepthFormat,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		s.destroyImages(device)
		return false, fmt.Errorf("create depth texture: %w", err)
	}
	s.depthTex = depthTex

	depthView, err := device.CreateTextureView(depthTex, &hal.TextureViewDescriptor{
		Label: s.label + "_depth_view",
	})
	if err != nil {
		s.destroyImages(device)
		return false, fmt.Errorf("create depth view: %w", err)
	}
	s.depthView = depthView

	s.width = w
	s.height = h
	s.generation++
	slogger().Debug("gpu: swapchain built",
		"label", s.label, "width", w, "height", h,
		"images", s.imageCount, "generation", s.generation)
	return true, nil
}

// Rebuild recreates the images at w x h even if that is the current
// extent. A presenter reporting the images out of date needs this.
func (s *Swapchain) Rebuild(w, h uint32) error {
	if w == 0 || h == 0 {
		return fmt.Errorf("%w: %dx%d", ErrZeroExtent, w, h)
	}
	s.width, s.height = 0, 0
	_, err := s.Resize(w, h)
	return err
}

// destroyImages releases views before the textures they view, and resets
// the extent.
func (s *Swapchain) destroyImages(device hal.Device) {
	if s.depthView != nil {
		device.DestroyTextureView(s.depthView)
		s.depthView = nil
	}
	if s.depthTex != nil {
		device.DestroyTexture(s.depthTex)
		s.depthTex = nil
	}
	for _, img := range s.images {
		if img.view != nil {
			device.DestroyTextureView(img.view)
		}
		if img.tex != nil {
			device.DestroyTexture(img.tex)
		}
	}
	s.images = nil
	s.width = 0
	s.height = 0
}

// Ready reports whether images exist.
func (s *Swapchain) Ready() bool { return len(s.images) > 0 }

// ImageCount returns the configured number of presentable images.
func (s *Swapchain) ImageCount() int { return s.imageCount }

// Image returns the color texture and view for image index i.
func (s *Swapchain) Image(i uint32) (hal.Texture, hal.TextureView) {
	img := s.images[i]
	return img.tex, img.view
}

// DepthView returns the shared depth buffer view.
func (s *Swapchain) DepthView() hal.TextureView { return s.depthView }

// Extent returns the current image size.
func (s *Swapchain) Extent() (uint32, uint32) { return s.width, s.height }

// Format returns the color format.
func (s *Swapchain) Format() gputypes.TextureFormat { return s.format }

// Generation returns how many times images have been built.
func (s *Swapchain) Generation() uint64 { return s.generation }

// Destroy releases all images. It is idempotent.
func (s *Swapchain) Destroy() error {
	if len(s.images) == 0 && s.depthTex == nil {
		return nil
	}
	ctx, err := resolve(s.ctx)
	if err != nil {
		s.images = nil
		s.depthTex, s.depthView = nil, nil
		slogger().Warn("gpu: swapchain outlived its device", "label", s.label)
		return fmt.Errorf("destroy swapchain: %w", err)
	}
	s.destroyImages(ctx.Device())
	return nil
}
