package poisson

import (
	"context"
	"encoding/binary"
	"testing"
)

// spirvString packs s nul-terminated into little-endian words.
func spirvString(s string) []uint32 {
	b := append([]byte(s), 0)
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words
}

// spirvModule assembles a module header, a vertex and a fragment entry
// point, and one uniform variable decorated into each of groups sets.
// It is enough for layout checks; the noop device never compiles it.
func spirvModule(groups int, vertex, fragment string) []uint32 {
	const (
		opEntryPoint    = 15
		opDecorate      = 71
		decorBinding    = 33
		decorDescriptor = 34
	)
	words := []uint32{0x07230203, 0x00010000, 0, 64, 0}
	entry := func(model uint32, name string) {
		s := spirvString(name)
		words = append(words, uint32(3+len(s))<<16|opEntryPoint, model, 1+model)
		words = append(words, s...)
	}
	entry(0, vertex)
	entry(4, fragment)
	for g := 0; g < groups; g++ {
		id := uint32(10 + g)
		words = append(words,
			4<<16|opDecorate, id, decorDescriptor, uint32(g),
			4<<16|opDecorate, id, decorBinding, 0,
		)
	}
	return words
}

// shaderFor returns a SPIR-V shader matching the bind groups of T.
func shaderFor[T Object]() ShaderSource {
	groups := map[Kind]int{KindColoredMesh: 1, KindLitColoredMesh: 3, KindTexturedMesh: 2}
	return ShaderSource{SPIRV: spirvModule(groups[kindOf[T]()], DefaultVertexEntry, DefaultFragmentEntry)}
}

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	opts = append([]Option{WithBackend("noop"), WithSize(64, 48)}, opts...)
	b, err := NewBackend(opts...)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Destroy() })
	return b
}

func newTestPipeline[T Object](t *testing.T, b *Backend) *Pipeline[T] {
	t.Helper()
	pass, err := b.CreatePass("test")
	if err != nil {
		t.Fatalf("CreatePass: %v", err)
	}
	p, err := CreatePipeline[T](pass, shaderFor[T]())
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	return p
}

func triangle(t *testing.T) *Mesh[ColoredVertex] {
	t.Helper()
	m, err := NewMesh([]ColoredVertex{
		{Pos: Vec3{0, 0.5, 0}, Color: Vec3{1, 0, 0}},
		{Pos: Vec3{-0.5, -0.5, 0}, Color: Vec3{0, 1, 0}},
		{Pos: Vec3{0.5, -0.5, 0}, Color: Vec3{0, 0, 1}},
	}, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	return m
}

func quad(t *testing.T) *Mesh[ColoredVertex] {
	t.Helper()
	m, err := NewMesh([]ColoredVertex{
		{Pos: Vec3{-1, -1, 0}}, {Pos: Vec3{1, -1, 0}},
		{Pos: Vec3{1, 1, 0}}, {Pos: Vec3{-1, 1, 0}},
	}, []uint32{0, 1, 2, 0, 2, 3})
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	return m
}

func renderFrames(t *testing.T, b *Backend, n int) FrameStats {
	t.Helper()
	var stats FrameStats
	for i := 0; i < n; i++ {
		var err error
		stats, err = b.RenderFrame(context.Background())
		if err != nil {
			t.Fatalf("RenderFrame %d: %v", i, err)
		}
	}
	return stats
}

// mustDrawlet adds a drawlet to p and fails the test on error.
func mustDrawlet[T Object](t *testing.T, p *Pipeline[T], obj T) *Drawlet[T] {
	t.Helper()
	d, err := p.CreateDrawlet(obj)
	if err != nil {
		t.Fatalf("CreateDrawlet: %v", err)
	}
	return d
}

// countingPresenter cycles images round-robin and counts calls. A non-nil
// presentErr is returned by every Present.
type countingPresenter struct {
	acquires   int
	presents   int
	next       uint32
	presentErr error
}

func (p *countingPresenter) Acquire(_ context.Context, sc *Swapchain) (uint32, error) {
	p.acquires++
	if !sc.Ready() {
		return 0, ErrOutOfDate
	}
	idx := p.next % uint32(sc.ImageCount())
	p.next++
	return idx, nil
}

func (p *countingPresenter) Present(context.Context, *Swapchain, uint32, Signal) error {
	p.presents++
	return p.presentErr
}
