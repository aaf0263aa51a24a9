package poisson

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/poisson/internal/gpu"
)

// Mesh is immutable indexed triangle-list geometry. One *Mesh may back many
// drawlets; each pipeline uploads it once and shares the GPU buffers among
// the drawlets that use it.
type Mesh[V Vertex] struct {
	vertices    []byte
	indices     []byte
	vertexCount int
	indexCount  uint32
}

// NewMesh validates and encodes geometry. Vertices must be non-empty, the
// index count a non-zero multiple of 3, and every index in range.
func NewMesh[V Vertex](vertices []V, indices []uint32) (*Mesh[V], error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidMesh)
	}
	if len(indices) == 0 || len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices is not a whole number of triangles", ErrInvalidMesh, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, fmt.Errorf("%w: index %d at %d out of range (%d vertices)", ErrInvalidMesh, idx, i, len(vertices))
		}
	}
	return &Mesh[V]{
		vertices:    encodeVertices(vertices),
		indices:     gpu.Uint32Bytes(indices),
		vertexCount: len(vertices),
		indexCount:  uint32(len(indices)),
	}, nil
}

// VertexCount returns the number of vertices.
func (m *Mesh[V]) VertexCount() int { return m.vertexCount }

// IndexCount returns the number of indices.
func (m *Mesh[V]) IndexCount() uint32 { return m.indexCount }

func (m *Mesh[V]) vertexBytes() []byte { return m.vertices }
func (m *Mesh[V]) indexBytes() []byte  { return m.indices }
func (m *Mesh[V]) indices32() uint32   { return m.indexCount }

// meshData is the vertex-type-erased view of a *Mesh used as the key of a
// pipeline's upload table.
type meshData interface {
	vertexBytes() []byte
	indexBytes() []byte
	indices32() uint32
}

// meshUpload is the GPU copy of one mesh, shared by refs drawlets.
type meshUpload struct {
	vertex     *gpu.Buffer
	index      *gpu.Buffer
	indexCount uint32
	refs       int
}

func uploadMesh(ctx *gpu.Context, label string, m meshData) (*meshUpload, error) {
	vb, err := gpu.NewBufferInit(ctx, label+"_vertices", gputypes.BufferUsageVertex, m.vertexBytes())
	if err != nil {
		return nil, err
	}
	ib, err := gpu.NewBufferInit(ctx, label+"_indices", gputypes.BufferUsageIndex, m.indexBytes())
	if err != nil {
		_ = vb.Destroy()
		return nil, err
	}
	return &meshUpload{vertex: vb, index: ib, indexCount: m.indices32()}, nil
}

func (u *meshUpload) destroy() error {
	return errors.Join(u.index.Destroy(), u.vertex.Destroy())
}
