// Command poissondemo renders a YAML scene headlessly with poisson.
//
// Usage:
//
//	poissondemo -scene testdata/scene.yaml -frames 120 -output frame.png
//
// Drawlets spin about their Y axis. Halfway through the run every drawlet
// is removed and created again, and the surface is resized, so a run
// exercises deferred release and swapchain recreation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/poisson"
)

type options struct {
	config  string
	scene   string
	backend string
	frames  int
	churn   int
	output  string
	verbose bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "backend config file (YAML)")
	flag.StringVar(&o.scene, "scene", "testdata/scene.yaml", "scene file (YAML)")
	flag.StringVar(&o.backend, "backend", "", "device backend, overrides the config")
	flag.IntVar(&o.frames, "frames", 120, "number of frames to render")
	flag.IntVar(&o.churn, "churn", -1, "frame at which drawlets are re-created (default frames/2)")
	flag.StringVar(&o.output, "output", "", "save the last frame as PNG")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	poisson.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, log); err != nil {
		log.Error("poissondemo failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, log *slog.Logger) (err error) {
	cfg := poisson.DefaultConfig()
	if o.config != "" {
		if cfg, err = poisson.LoadConfig(o.config); err != nil {
			return err
		}
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	sc, err := loadScene(o.scene)
	if err != nil {
		return err
	}

	b, err := poisson.NewBackend(poisson.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, b.Destroy())
	}()

	pass, err := b.CreatePass("scene")
	if err != nil {
		return err
	}
	objs, err := build(b, pass, sc)
	if err != nil {
		return err
	}
	log.Info("scene ready", "backend", b.Name(), "mode", b.Mode(),
		"pipelines", len(sc.Pipelines), "drawlets", len(objs))

	churn := o.churn
	if churn < 0 {
		churn = o.frames / 2
	}
	start := time.Now()
	var drawn int
	for frame := 0; frame < o.frames; frame++ {
		if frame == churn && frame > 0 {
			for _, obj := range objs {
				if err := obj.respawn(); err != nil {
					return fmt.Errorf("frame %d: %w", frame, err)
				}
			}
			w, h := b.Size()
			b.Resize(h, w)
			log.Info("drawlets re-created", "frame", frame, "pending_releases", b.PendingReleases())
		}

		w, h := b.Size()
		viewProj := sc.viewProjection(w, h)
		t := float32(frame) / 60
		for _, obj := range objs {
			if err := obj.update(t, viewProj); err != nil {
				return fmt.Errorf("frame %d: %w", frame, err)
			}
		}

		stats, err := b.RenderFrame(ctx)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		drawn += stats.DrawCalls
		log.Debug("frame",
			"frame", stats.Frame, "slot", stats.Slot, "image", stats.Image,
			"draws", stats.DrawCalls, "skipped", stats.Skipped,
			"recreated", stats.Recreated, "released", stats.Released)
	}
	log.Info("done", "frames", o.frames, "draw_calls", drawn,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if o.output != "" {
		return savePNG(b, o.output)
	}
	return nil
}

func savePNG(b *poisson.Backend, path string) (err error) {
	img, err := b.Snapshot()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return png.Encode(f, img)
}

func (s *scene) viewProjection(w, h uint32) poisson.Mat4 {
	aspect := float32(1)
	if h > 0 {
		aspect = float32(w) / float32(h)
	}
	fov := s.Camera.FOV * math.Pi / 180
	proj := poisson.Perspective(fov, aspect, 0.1, 100)
	view := poisson.LookAt(s.Camera.Eye, poisson.Vec3{}, poisson.Vec3{0, 1, 0})
	return proj.Mul(view)
}

// object is one drawlet the demo animates, independent of its type.
type object interface {
	update(t float32, viewProj poisson.Mat4) error
	respawn() error
}

type instance[T poisson.Object] struct {
	pipeline *poisson.Pipeline[T]
	init     T
	spec     drawletSpec
	drawlet  *poisson.Drawlet[T]
}

func spawn[T poisson.Object](p *poisson.Pipeline[T], init T, spec drawletSpec) (*instance[T], error) {
	d, err := p.CreateDrawlet(init)
	if err != nil {
		return nil, err
	}
	return &instance[T]{pipeline: p, init: init, spec: spec, drawlet: d}, nil
}

func (i *instance[T]) update(t float32, viewProj poisson.Mat4) error {
	s := i.spec
	model := poisson.Translation(s.Position[0], s.Position[1], s.Position[2]).
		Mul(poisson.RotationY(s.Spin * t)).
		Mul(poisson.Scaling(s.Scale, s.Scale, s.Scale))
	return i.drawlet.SetMVP(viewProj.Mul(model))
}

func (i *instance[T]) respawn() error {
	if err := i.drawlet.Remove(); err != nil {
		return err
	}
	d, err := i.pipeline.CreateDrawlet(i.init)
	if err != nil {
		return err
	}
	i.drawlet = d
	return nil
}

func build(b *poisson.Backend, pass *poisson.Pass, sc *scene) ([]object, error) {
	var (
		colored  *poisson.Pipeline[poisson.ColoredMesh]
		lit      *poisson.Pipeline[poisson.LitColoredMesh]
		textured *poisson.Pipeline[poisson.TexturedMesh]
	)
	for _, ps := range sc.Pipelines {
		code, err := os.ReadFile(sc.path(ps.Shader))
		if err != nil {
			return nil, err
		}
		src := poisson.ShaderSource{Label: ps.Kind, WGSL: string(code)}
		switch ps.Kind {
		case "colored":
			colored, err = poisson.CreatePipeline[poisson.ColoredMesh](pass, src)
		case "lit":
			lit, err = poisson.CreatePipeline[poisson.LitColoredMesh](pass, src)
		case "textured":
			textured, err = poisson.CreatePipeline[poisson.TexturedMesh](pass, src)
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", ps.Kind, err)
		}
	}

	light := poisson.Vec3(sc.Light).Normalize()
	view := poisson.Vec3{}.Sub(sc.Camera.Eye).Normalize()
	var objs []object
	for i, ds := range sc.Drawlets {
		shape := meshPresets[ds.Mesh]()
		var (
			obj object
			err error
		)
		switch ds.Kind {
		case "colored":
			var m *poisson.Mesh[poisson.ColoredVertex]
			if m, err = coloredMesh(shape); err == nil {
				obj, err = spawn(colored, poisson.ColoredMesh{Mesh: m}, ds)
			}
		case "lit":
			var m *poisson.Mesh[poisson.NormalColoredVertex]
			if m, err = litMesh(shape); err == nil {
				obj, err = spawn(lit, poisson.LitColoredMesh{Mesh: m, LightDirection: light, ViewDirection: view}, ds)
			}
		case "textured":
			var (
				m   *poisson.Mesh[poisson.UVVertex]
				img image.Image
			)
			if img, err = loadTexture(sc.path(ds.Texture)); err != nil {
				break
			}
			if m, err = texturedMesh(shape); err == nil {
				obj, err = spawn(textured, poisson.TexturedMesh{Mesh: m, Texture: img}, ds)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("drawlet %d (%s %s): %w", i, ds.Kind, ds.Mesh, err)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// loadTexture decodes a PNG, JPEG, BMP or WebP file. An empty path yields
// a checkerboard.
func loadTexture(path string) (image.Image, error) {
	if path == "" {
		return checkerboard(64, 8), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	poisson.Logger().Debug("texture decoded", "path", path, "format", format, "bounds", img.Bounds())
	return img, nil
}

func checkerboard(size, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := img.PixOffset(x, y)
			v := uint8(40)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	return img
}
