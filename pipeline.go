package poisson

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/poisson/internal/gpu"
)

// Pipeline is the compiled pipeline of render-object type T within a pass,
// together with the drawlets drawn by it.
//
// Fixed state: triangle list, counter-clockwise front faces, back faces
// culled, depth test less-or-equal with depth writes, alpha blending.
type Pipeline[T Object] struct {
	id      PipelineID
	kind    Kind
	label   string
	pass    *Pass
	backend *Backend
	layout  objectLayout

	compiled *gpu.CompiledPipeline
	sampler  *gpu.Sampler

	drawlets map[DrawletID]*drawletState
	order    []*drawletState
	lastID   DrawletID
	meshes   map[meshData]*meshUpload

	destroyed bool
}

// CreatePipeline compiles the pipeline of render-object type T in pass.
//
// The shader is checked against T before any GPU object is created: it
// must declare T's bind groups, no more and no fewer, and both entry
// points. If the device rejects any step, everything created so far is
// destroyed and the error is returned.
func CreatePipeline[T Object](pass *Pass, src ShaderSource) (*Pipeline[T], error) {
	b := pass.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usableLocked(); err != nil {
		return nil, err
	}
	if pass.destroyed {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, pass.id)
	}

	kind := kindOf[T]()
	if pass.hasKind(kind) {
		return nil, fmt.Errorf("%w: %v in %v", ErrPipelineExists, kind, pass.id)
	}
	layout, err := layoutFor(kind)
	if err != nil {
		return nil, err
	}
	src = src.withDefaults(kind)
	wgsl, spirv, err := src.prepare(kind, layout, b.mode)
	if err != nil {
		return nil, err
	}

	groups := make([]gpu.GroupLayout, len(layout.groups))
	for i, g := range layout.groups {
		groups[i] = gpu.GroupLayout{
			Label:   fmt.Sprintf("%s_%s_layout", src.Label, g.label),
			Entries: g.layoutEntries(),
		}
	}
	compiled, err := gpu.CompilePipeline(b.ctx, &gpu.PipelineDescriptor{
		Label:         src.Label,
		WGSL:          wgsl,
		SPIRV:         spirv,
		VertexEntry:   src.VertexEntry,
		FragmentEntry: src.FragmentEntry,
		VertexBuffers: []gputypes.VertexBufferLayout{layout.vertex},
		Groups:        groups,
		ColorFormat:   b.swapchain.Format(),
		Blend:         layout.blend,
		FrontFace:     gputypes.FrontFaceCCW,
		CullMode:      gputypes.CullModeBack,
		DepthCompare:  gputypes.CompareFunctionLessEqual,
	})
	if err != nil {
		if errors.Is(err, gpu.ErrShaderModule) {
			return nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrPipelineCreate, err)
	}

	p := &Pipeline[T]{
		id:       nextPipelineID(),
		kind:     kind,
		label:    src.Label,
		pass:     pass,
		backend:  b,
		layout:   layout,
		compiled: compiled,
		drawlets: make(map[DrawletID]*drawletState),
		meshes:   make(map[meshData]*meshUpload),
	}
	if kind == KindTexturedMesh {
		p.sampler, err = gpu.NewSampler(b.ctx, src.Label+"_sampler")
		if err != nil {
			_ = compiled.Destroy()
			return nil, fmt.Errorf("%w: %w", ErrPipelineCreate, err)
		}
	}
	pass.pipelines = append(pass.pipelines, p)
	Logger().Debug("poisson: pipeline created",
		"pipeline", p.id, "kind", kind, "pass", pass.id, "groups", len(layout.groups))
	return p, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline[T]) ID() PipelineID { return p.id }

// Kind returns the render-object kind of T.
func (p *Pipeline[T]) Kind() Kind { return p.kind }

// Pass returns the owning pass.
func (p *Pipeline[T]) Pass() *Pass { return p.pass }

// Len returns the number of live drawlets.
func (p *Pipeline[T]) Len() int {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	return len(p.order)
}

func (p *Pipeline[T]) liveCount() int { return len(p.order) }

// Live returns the IDs of the live drawlets in draw order.
func (p *Pipeline[T]) Live() []DrawletID {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	ids := make([]DrawletID, len(p.order))
	for i, st := range p.order {
		ids[i] = st.id
	}
	return ids
}

// CreateDrawlet creates a drawlet from init and returns its handle.
//
// It allocates one uniform buffer per declared uniform per frame slot,
// uploads init's mesh unless this pipeline already holds it, uploads the
// texture of a TexturedMesh, and creates the bind groups.
func (p *Pipeline[T]) CreateDrawlet(init T) (*Drawlet[T], error) {
	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := p.usableLocked(); err != nil {
		return nil, err
	}
	parts, err := partsOf(init)
	if err != nil {
		return nil, err
	}

	id := p.lastID + 1
	label := fmt.Sprintf("%s_%v", p.label, id)
	st := &drawletState{id: id, label: label}

	up, err := p.acquireMesh(label, parts.mesh)
	if err != nil {
		return nil, err
	}
	st.mesh, st.meshKey = up, parts.mesh

	if err := st.build(b.ctx, p.layout, p.compiled, p.sampler, parts, b.ring.Len()); err != nil {
		// Nothing was submitted with these resources yet.
		if derr := st.destroy(); derr != nil {
			Logger().Warn("poisson: drawlet cleanup failed", "drawlet", label, "error", derr)
		}
		p.releaseMesh(st, b.ring.Submitted())
		return nil, err
	}

	p.lastID = id
	p.drawlets[id] = st
	p.order = append(p.order, st)
	Logger().Debug("poisson: drawlet created",
		"pipeline", p.id, "drawlet", id, "indices", up.indexCount, "mesh_refs", up.refs)
	return &Drawlet[T]{id: id, pipeline: p}, nil
}

// RemoveDrawlet unlinks the drawlet at once: it is no longer drawn and
// every later use of its handle fails with ErrStaleHandle. Its GPU
// resources are released once the frames in flight are done with them.
func (p *Pipeline[T]) RemoveDrawlet(d *Drawlet[T]) error {
	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if d == nil || d.pipeline != p {
		return fmt.Errorf("%w: drawlet not from %v", ErrStaleHandle, p.id)
	}
	st, err := p.stateLocked(d.id)
	if err != nil {
		return err
	}
	delete(p.drawlets, st.id)
	p.order = slices.DeleteFunc(p.order, func(s *drawletState) bool { return s == st })
	p.retireDrawlet(st, b.ring.Submitted())
	Logger().Debug("poisson: drawlet removed", "pipeline", p.id, "drawlet", st.id)
	return nil
}

// Drawlet returns a handle to the live drawlet id, or ErrStaleHandle.
func (p *Pipeline[T]) Drawlet(id DrawletID) (*Drawlet[T], error) {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	if _, err := p.stateLocked(id); err != nil {
		return nil, err
	}
	return &Drawlet[T]{id: id, pipeline: p}, nil
}

// Destroy removes every drawlet and then the pipeline itself. GPU
// resources are released once the frames in flight are done with them.
// Destroy is idempotent.
func (p *Pipeline[T]) Destroy() {
	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.destroyed {
		return
	}
	p.pass.remove(p)
	p.retire(b.ring.Submitted())
}

func (p *Pipeline[T]) usableLocked() error {
	if err := p.backend.usableLocked(); err != nil {
		return err
	}
	if p.destroyed {
		return fmt.Errorf("%w: %v destroyed", ErrStaleHandle, p.id)
	}
	return nil
}

func (p *Pipeline[T]) stateLocked(id DrawletID) (*drawletState, error) {
	if p.destroyed {
		return nil, fmt.Errorf("%w: %v destroyed", ErrStaleHandle, p.id)
	}
	st, ok := p.drawlets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v not in %v", ErrStaleHandle, id, p.id)
	}
	return st, nil
}

// acquireMesh returns the upload of m, creating it on first use.
func (p *Pipeline[T]) acquireMesh(label string, m meshData) (*meshUpload, error) {
	up, ok := p.meshes[m]
	if !ok {
		var err error
		up, err = uploadMesh(p.backend.ctx, label, m)
		if err != nil {
			return nil, err
		}
		p.meshes[m] = up
	}
	up.refs++
	return up, nil
}

// releaseMesh drops st's reference and retires the upload with the last one.
func (p *Pipeline[T]) releaseMesh(st *drawletState, after uint64) {
	up := st.mesh
	if up == nil {
		return
	}
	st.mesh = nil
	up.refs--
	if up.refs > 0 {
		return
	}
	delete(p.meshes, st.meshKey)
	p.backend.releases.Defer(after, st.label+"_mesh", up.destroy)
}

func (p *Pipeline[T]) retireDrawlet(st *drawletState, after uint64) {
	p.backend.releases.Defer(after, st.label, st.destroy)
	p.releaseMesh(st, after)
}

// retire queues drawlets first, then the sampler they bind, then the
// pipeline with its layouts and shader module.
func (p *Pipeline[T]) retire(after uint64) {
	for _, st := range p.order {
		p.retireDrawlet(st, after)
	}
	p.order = nil
	clear(p.drawlets)
	if p.sampler != nil {
		p.backend.releases.Defer(after, p.label+"_sampler", p.sampler.Destroy)
	}
	p.backend.releases.Defer(after, p.label, p.compiled.Destroy)
	p.destroyed = true
	Logger().Debug("poisson: pipeline retired", "pipeline", p.id, "after", after)
}

// record binds the pipeline and issues one indexed draw per drawlet, in
// ID order. Each drawlet's pending uniform writes are flushed into the
// buffers of slot first.
func (p *Pipeline[T]) record(rp *gpu.RenderPassEncoder, slot int, width, height uint32) error {
	if err := rp.SetPipeline(p.compiled); err != nil {
		return err
	}
	if err := rp.SetViewport(width, height); err != nil {
		return err
	}
	for _, st := range p.order {
		if err := st.record(rp, slot); err != nil {
			return fmt.Errorf("%v: %w", st.id, err)
		}
	}
	return nil
}
