package poisson

import (
	"errors"
	"slices"
	"testing"
)

func litSphereish(t *testing.T) *Mesh[NormalColoredVertex] {
	t.Helper()
	m, err := NewMesh([]NormalColoredVertex{
		{Pos: Vec3{0, 1, 0}, Normal: Vec3{0, 0, 1}},
		{Pos: Vec3{-1, 0, 0}, Normal: Vec3{0, 0, 1}},
		{Pos: Vec3{1, 0, 0}, Normal: Vec3{0, 0, 1}},
	}, []uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("NewMesh: %v", err)
	}
	return m
}

func TestDrawletSetMVP(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[ColoredMesh](t, b)
	d := mustDrawlet(t, p, ColoredMesh{Mesh: triangle(t), MVP: Identity()})

	got, err := d.MVP()
	if err != nil {
		t.Fatalf("MVP: %v", err)
	}
	if got != Identity() {
		t.Errorf("MVP = %v, want identity", got)
	}

	m := Translation(0, 0, -2).Mul(RotationY(0.5))
	if err := d.SetMVP(m); err != nil {
		t.Fatalf("SetMVP: %v", err)
	}
	if got, err = d.MVP(); err != nil || got != m {
		t.Errorf("MVP = %v, %v, want %v", got, err, m)
	}

	renderFrames(t, b, b.FramesInFlight()+1)
}

func TestUniformWritesReachEverySlot(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[ColoredMesh](t, b)
	d := mustDrawlet(t, p, ColoredMesh{Mesh: triangle(t), MVP: Identity()})

	if err := d.SetMVP(Scaling(2, 2, 2)); err != nil {
		t.Fatalf("SetMVP: %v", err)
	}
	us := p.drawlets[d.ID()].uniform(UniformMVP)
	if us == nil {
		t.Fatal("no MVP uniform")
	}
	if want := []bool{true, true, true}; !slices.Equal(us.dirty, want) {
		t.Errorf("dirty = %v, want %v", us.dirty, want)
	}

	// Only the recorded slot is written.
	renderFrames(t, b, 1)
	if want := []bool{false, true, true}; !slices.Equal(us.dirty, want) {
		t.Errorf("dirty after one frame = %v, want %v", us.dirty, want)
	}

	renderFrames(t, b, 2)
	if want := []bool{false, false, false}; !slices.Equal(us.dirty, want) {
		t.Errorf("dirty after a full ring = %v, want %v", us.dirty, want)
	}
}

func TestLitDrawletUniforms(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[LitColoredMesh](t, b)
	d := mustDrawlet(t, p, LitColoredMesh{
		Mesh:           litSphereish(t),
		MVP:            Identity(),
		LightDirection: Vec3{0, -1, 0},
		ViewDirection:  Vec3{0, 0, -1},
	})

	if err := d.SetLightDirection(Vec3{1, 0, 0}); err != nil {
		t.Fatalf("SetLightDirection: %v", err)
	}
	if err := d.SetViewDirection(Vec3{0, 0, 1}); err != nil {
		t.Fatalf("SetViewDirection: %v", err)
	}
	light := p.drawlets[d.ID()].uniform(UniformLightDirection)
	if light == nil {
		t.Fatal("no light direction uniform")
	}
	if want := []float32{1, 0, 0, 0}; !slices.Equal(light.shadow, want) {
		t.Errorf("light shadow = %v, want %v", light.shadow, want)
	}

	if stats := renderFrames(t, b, 1); stats.DrawCalls != 1 {
		t.Errorf("DrawCalls = %d, want 1", stats.DrawCalls)
	}
}

func TestUndeclaredUniform(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[ColoredMesh](t, b)
	d := mustDrawlet(t, p, ColoredMesh{Mesh: triangle(t), MVP: Identity()})

	if !p.layout.declares(UniformMVP) || p.layout.declares(UniformLightDirection) {
		t.Fatal("colored mesh layout should declare only the MVP")
	}
	if err := d.SetLightDirection(Vec3{0, 1, 0}); !errors.Is(err, ErrUniformNotDeclared) {
		t.Errorf("SetLightDirection = %v, want ErrUniformNotDeclared", err)
	}
	if err := d.SetViewDirection(Vec3{0, 0, 1}); !errors.Is(err, ErrUniformNotDeclared) {
		t.Errorf("SetViewDirection = %v, want ErrUniformNotDeclared", err)
	}

	// The layout answers before the handle is resolved.
	if err := d.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := d.SetLightDirection(Vec3{0, 1, 0}); !errors.Is(err, ErrUniformNotDeclared) {
		t.Errorf("SetLightDirection on removed drawlet = %v, want ErrUniformNotDeclared", err)
	}
}

func TestStaleDrawletHandle(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[ColoredMesh](t, b)
	d := mustDrawlet(t, p, ColoredMesh{Mesh: triangle(t), MVP: Identity()})

	same, err := p.Drawlet(d.ID())
	if err != nil {
		t.Fatalf("Drawlet: %v", err)
	}
	if same.ID() != d.ID() {
		t.Errorf("Drawlet(%v).ID() = %v", d.ID(), same.ID())
	}

	if err := d.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := d.Remove(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("second Remove = %v, want ErrStaleHandle", err)
	}
	if err := same.SetMVP(Identity()); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("SetMVP = %v, want ErrStaleHandle", err)
	}
	if _, err := d.MVP(); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("MVP = %v, want ErrStaleHandle", err)
	}
	if _, err := p.Drawlet(d.ID()); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Drawlet = %v, want ErrStaleHandle", err)
	}

	// Removed IDs are not reused.
	if next := mustDrawlet(t, p, ColoredMesh{Mesh: triangle(t), MVP: Identity()}); next.ID() <= d.ID() {
		t.Errorf("next ID = %v, want greater than %v", next.ID(), d.ID())
	}
}

func TestRemoveDrawletFromOtherPipeline(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[ColoredMesh](t, b)
	q := newTestPipeline[ColoredMesh](t, b)
	d := mustDrawlet(t, p, ColoredMesh{Mesh: triangle(t), MVP: Identity()})

	if err := q.RemoveDrawlet(d); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("RemoveDrawlet(foreign) = %v, want ErrStaleHandle", err)
	}
	if err := q.RemoveDrawlet(nil); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("RemoveDrawlet(nil) = %v, want ErrStaleHandle", err)
	}
	if !d.Alive() {
		t.Error("drawlet removed through another pipeline")
	}
}

func TestCreateDrawletNilMesh(t *testing.T) {
	b := newTestBackend(t)
	p := newTestPipeline[ColoredMesh](t, b)

	if _, err := p.CreateDrawlet(ColoredMesh{MVP: Identity()}); !errors.Is(err, ErrInvalidMesh) {
		t.Errorf("CreateDrawlet = %v, want ErrInvalidMesh", err)
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}
