package poisson

import (
	"fmt"
	"slices"

	"github.com/gogpu/poisson/internal/gpu"
)

// Pass is a render pass: an ordered set of pipelines, at most one per
// render-object type, drawn into the same frame in creation order.
type Pass struct {
	id      PassID
	label   string
	backend *Backend

	pipelines []pipelineEntry
	destroyed bool
}

// pipelineEntry is the kind-erased view of a *Pipeline[T] held by its pass
// and driven by the frame loop.
type pipelineEntry interface {
	ID() PipelineID
	Kind() Kind
	liveCount() int
	record(rp *gpu.RenderPassEncoder, slot int, width, height uint32) error
	retire(after uint64)
}

// CreatePass creates an empty render pass.
func (b *Backend) CreatePass(label string) (*Pass, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usableLocked(); err != nil {
		return nil, err
	}
	p := &Pass{id: nextPassID(), label: label, backend: b}
	b.passes = append(b.passes, p)
	Logger().Debug("poisson: pass created", "pass", p.id, "label", label)
	return p, nil
}

// ID returns the pass identifier.
func (p *Pass) ID() PassID { return p.id }

// Label returns the debug name.
func (p *Pass) Label() string { return p.label }

// Pipelines returns the IDs of the live pipelines in draw order.
func (p *Pass) Pipelines() []PipelineID {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	ids := make([]PipelineID, len(p.pipelines))
	for i, e := range p.pipelines {
		ids[i] = e.ID()
	}
	return ids
}

// PipelineByID looks up a pipeline of p by ID. It fails with ErrStaleHandle
// if no such pipeline is live, and with ErrKindMismatch if it was created
// for a render-object type other than T.
func PipelineByID[T Object](p *Pass, id PipelineID) (*Pipeline[T], error) {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	for _, e := range p.pipelines {
		if e.ID() != id {
			continue
		}
		typed, ok := e.(*Pipeline[T])
		if !ok {
			return nil, fmt.Errorf("%w: %v is %v, not %v", ErrKindMismatch, id, e.Kind(), kindOf[T]())
		}
		return typed, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrStaleHandle, id)
}

// Destroy removes every pipeline of the pass, and every drawlet of those
// pipelines. GPU resources are released once in-flight frames are done
// with them. Destroy is idempotent.
func (p *Pass) Destroy() {
	b := p.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.destroyed {
		return
	}
	p.retireLocked(b.ring.Submitted())
	b.passes = slices.DeleteFunc(b.passes, func(q *Pass) bool { return q == p })
}

// retireLocked retires pipelines in reverse creation order.
func (p *Pass) retireLocked(after uint64) {
	for i := len(p.pipelines) - 1; i >= 0; i-- {
		p.pipelines[i].retire(after)
	}
	p.pipelines = nil
	p.destroyed = true
}

func (p *Pass) hasKind(k Kind) bool {
	return slices.ContainsFunc(p.pipelines, func(e pipelineEntry) bool { return e.Kind() == k })
}

func (p *Pass) remove(e pipelineEntry) {
	p.pipelines = slices.DeleteFunc(p.pipelines, func(q pipelineEntry) bool { return q == e })
}

// record draws every pipeline of the pass.
func (p *Pass) record(rp *gpu.RenderPassEncoder, slot int, width, height uint32) error {
	for _, e := range p.pipelines {
		if e.liveCount() == 0 {
			continue
		}
		if err := e.record(rp, slot, width, height); err != nil {
			return fmt.Errorf("%v: %w", e.ID(), err)
		}
	}
	return nil
}
