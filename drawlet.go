package poisson

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/poisson/internal/gpu"
)

// Drawlet is a handle to one renderable instance of render-object type T.
// It is valid until the drawlet is removed or its pipeline destroyed;
// after that every method returns ErrStaleHandle.
type Drawlet[T Object] struct {
	id       DrawletID
	pipeline *Pipeline[T]
}

// ID returns the drawlet identifier.
func (d *Drawlet[T]) ID() DrawletID { return d.id }

// Pipeline returns the owning pipeline.
func (d *Drawlet[T]) Pipeline() *Pipeline[T] { return d.pipeline }

// Alive reports whether the drawlet is still live.
func (d *Drawlet[T]) Alive() bool {
	d.pipeline.backend.mu.Lock()
	defer d.pipeline.backend.mu.Unlock()
	_, err := d.pipeline.stateLocked(d.id)
	return err == nil
}

// Remove is shorthand for d.Pipeline().RemoveDrawlet(d).
func (d *Drawlet[T]) Remove() error { return d.pipeline.RemoveDrawlet(d) }

// SetMVP sets the model-view-projection matrix.
func (d *Drawlet[T]) SetMVP(m Mat4) error {
	return d.set(UniformMVP, m[:])
}

// SetLightDirection sets the light direction. Only LitColoredMesh
// declares it; other types return ErrUniformNotDeclared.
func (d *Drawlet[T]) SetLightDirection(v Vec3) error {
	v4 := v.Vec4(0)
	return d.set(UniformLightDirection, v4[:])
}

// SetViewDirection sets the view direction. Only LitColoredMesh declares
// it; other types return ErrUniformNotDeclared.
func (d *Drawlet[T]) SetViewDirection(v Vec3) error {
	v4 := v.Vec4(0)
	return d.set(UniformViewDirection, v4[:])
}

// MVP returns the current model-view-projection matrix.
func (d *Drawlet[T]) MVP() (Mat4, error) {
	var m Mat4
	vals, err := d.get(UniformMVP)
	if err != nil {
		return m, err
	}
	copy(m[:], vals)
	return m, nil
}

func (d *Drawlet[T]) set(u Uniform, vals []float32) error {
	p := d.pipeline
	if !p.layout.declares(u) {
		return fmt.Errorf("%w: %v has no %v", ErrUniformNotDeclared, p.kind, u)
	}
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	st, err := p.stateLocked(d.id)
	if err != nil {
		return err
	}
	st.uniform(u).set(vals)
	return nil
}

func (d *Drawlet[T]) get(u Uniform) ([]float32, error) {
	p := d.pipeline
	if !p.layout.declares(u) {
		return nil, fmt.Errorf("%w: %v has no %v", ErrUniformNotDeclared, p.kind, u)
	}
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	st, err := p.stateLocked(d.id)
	if err != nil {
		return nil, err
	}
	return append([]float32(nil), st.uniform(u).shadow...), nil
}

// drawletState is the GPU-resident side of a drawlet.
type drawletState struct {
	id    DrawletID
	label string

	mesh    *meshUpload
	meshKey meshData

	// bindings holds one entry per bind group, in group order.
	bindings []groupBinding
	texture  *gpu.Texture
}

// groupBinding is either a per-slot uniform set or a bind group shared by
// every slot.
type groupBinding struct {
	uniform *uniformSet
	static  *gpu.BindGroup
}

// build creates the uniform sets, texture and bind groups of st.
func (st *drawletState) build(ctx *gpu.Context, layout objectLayout, pipeline *gpu.CompiledPipeline,
	sampler *gpu.Sampler, parts objectParts, slots int) error {
	for gi, g := range layout.groups {
		label := st.label + "_" + g.label
		if g.texture {
			tex, err := gpu.NewTextureFromImage(ctx, label, parts.texture)
			if err != nil {
				return err
			}
			st.texture = tex
			bg, err := gpu.NewBindGroup(ctx, label+"_group", pipeline.GroupLayout(gi), []gputypes.BindGroupEntry{
				gpu.TextureEntry(0, tex),
				gpu.SamplerEntry(1, sampler),
			})
			if err != nil {
				return err
			}
			st.bindings = append(st.bindings, groupBinding{static: bg})
			continue
		}
		us := &uniformSet{uniform: g.uniform}
		st.bindings = append(st.bindings, groupBinding{uniform: us})
		if err := us.build(ctx, label, pipeline.GroupLayout(gi), slots, parts.uniforms[g.uniform]); err != nil {
			return err
		}
	}
	return nil
}

// uniform returns the set bound for u. Callers check the layout first.
func (st *drawletState) uniform(u Uniform) *uniformSet {
	for _, b := range st.bindings {
		if b.uniform != nil && b.uniform.uniform == u {
			return b.uniform
		}
	}
	return nil
}

func (st *drawletState) record(rp *gpu.RenderPassEncoder, slot int) error {
	for gi, b := range st.bindings {
		group := b.static
		if b.uniform != nil {
			if err := b.uniform.flush(slot); err != nil {
				return err
			}
			group = b.uniform.groups[slot]
		}
		if err := rp.SetBindGroup(uint32(gi), group); err != nil {
			return err
		}
	}
	if err := rp.SetVertexBuffer(0, st.mesh.vertex); err != nil {
		return err
	}
	if err := rp.SetIndexBuffer(st.mesh.index); err != nil {
		return err
	}
	return rp.DrawIndexed(st.mesh.indexCount)
}

// destroy releases bind groups before the buffers and texture they
// reference. The mesh is released separately through its pipeline.
func (st *drawletState) destroy() error {
	var errs []error
	for _, b := range st.bindings {
		if b.static != nil {
			errs = append(errs, b.static.Destroy())
		}
		if b.uniform != nil {
			errs = append(errs, b.uniform.destroy())
		}
	}
	st.bindings = nil
	if st.texture != nil {
		errs = append(errs, st.texture.Destroy())
		st.texture = nil
	}
	return errors.Join(errs...)
}

// uniformSet is one uniform of a drawlet, duplicated per frame slot.
// Setters write shadow and mark every slot dirty; a slot's buffer is only
// rewritten while that slot is being recorded, when no frame in flight
// can be reading it.
type uniformSet struct {
	uniform Uniform
	shadow  []float32
	dirty   []bool
	buffers []*gpu.Buffer
	groups  []*gpu.BindGroup
}

func (u *uniformSet) build(ctx *gpu.Context, label string, layout hal.BindGroupLayout, slots int, init []float32) error {
	u.shadow = make([]float32, u.uniform.floats())
	copy(u.shadow, init)
	u.dirty = make([]bool, slots)
	data := gpu.Float32Bytes(u.shadow)
	for i := 0; i < slots; i++ {
		slotLabel := fmt.Sprintf("%s_%d", label, i)
		buf, err := gpu.NewBufferInit(ctx, slotLabel, gputypes.BufferUsageUniform, data)
		if err != nil {
			return err
		}
		u.buffers = append(u.buffers, buf)
		bg, err := gpu.NewBindGroup(ctx, slotLabel+"_group", layout, []gputypes.BindGroupEntry{
			gpu.UniformEntry(0, buf),
		})
		if err != nil {
			return err
		}
		u.groups = append(u.groups, bg)
	}
	return nil
}

func (u *uniformSet) set(vals []float32) {
	copy(u.shadow, vals)
	for i := range u.dirty {
		u.dirty[i] = true
	}
}

func (u *uniformSet) flush(slot int) error {
	if !u.dirty[slot] {
		return nil
	}
	if err := u.buffers[slot].WriteFloat32s(0, u.shadow); err != nil {
		return err
	}
	u.dirty[slot] = false
	return nil
}

func (u *uniformSet) destroy() error {
	var errs []error
	for _, g := range u.groups {
		errs = append(errs, g.Destroy())
	}
	for _, b := range u.buffers {
		errs = append(errs, b.Destroy())
	}
	u.groups, u.buffers = nil, nil
	return errors.Join(errs...)
}
