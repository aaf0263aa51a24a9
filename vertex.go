package poisson

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
)

// ColoredVertex is the vertex of a ColoredMesh.
//
//	@location(0) position: vec3<f32>
//	@location(1) color:    vec3<f32>
type ColoredVertex struct {
	Pos   Vec3
	Color Vec3
}

// NormalColoredVertex is the vertex of a LitColoredMesh.
//
//	@location(0) position: vec3<f32>
//	@location(1) color:    vec3<f32>
//	@location(2) normal:   vec3<f32>
type NormalColoredVertex struct {
	Pos    Vec3
	Color  Vec3
	Normal Vec3
}

// UVVertex is the vertex of a TexturedMesh.
//
//	@location(0) position: vec3<f32>
//	@location(1) uv:       vec2<f32>
type UVVertex struct {
	Pos Vec3
	UV  [2]float32
}

// Vertex is the closed set of vertex record types.
type Vertex interface {
	ColoredVertex | NormalColoredVertex | UVVertex
}

// Vertex strides in bytes. Records are tightly packed float32s.
const (
	coloredVertexStride       = 24
	normalColoredVertexStride = 36
	uvVertexStride            = 20
)

var (
	coloredVertexLayout = gputypes.VertexBufferLayout{
		ArrayStride: coloredVertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
			{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // color
		},
	}
	normalColoredVertexLayout = gputypes.VertexBufferLayout{
		ArrayStride: normalColoredVertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
			{Format: gputypes.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1}, // color
			{Format: gputypes.VertexFormatFloat32x3, Offset: 24, ShaderLocation: 2}, // normal
		},
	}
	uvVertexLayout = gputypes.VertexBufferLayout{
		ArrayStride: uvVertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},  // position
			{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1}, // uv
		},
	}
)

// vertexStride returns the record size of V in bytes.
func vertexStride[V Vertex]() int {
	var v V
	switch any(v).(type) {
	case ColoredVertex:
		return coloredVertexStride
	case NormalColoredVertex:
		return normalColoredVertexStride
	case UVVertex:
		return uvVertexStride
	}
	panic("poisson: unreachable vertex type")
}

// encodeVertices packs vertices as little-endian float32 records.
func encodeVertices[V Vertex](vertices []V) []byte {
	buf := make([]byte, 0, len(vertices)*vertexStride[V]())
	put := func(fs ...float32) {
		for _, f := range fs {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	for _, v := range vertices {
		switch v := any(v).(type) {
		case ColoredVertex:
			put(v.Pos[:]...)
			put(v.Color[:]...)
		case NormalColoredVertex:
			put(v.Pos[:]...)
			put(v.Color[:]...)
			put(v.Normal[:]...)
		case UVVertex:
			put(v.Pos[:]...)
			put(v.UV[:]...)
		}
	}
	return buf
}
