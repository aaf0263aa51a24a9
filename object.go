package poisson

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// Kind enumerates the render-object types.
type Kind int

const (
	// KindColoredMesh is the kind of ColoredMesh.
	KindColoredMesh Kind = iota + 1
	// KindLitColoredMesh is the kind of LitColoredMesh.
	KindLitColoredMesh
	// KindTexturedMesh is the kind of TexturedMesh.
	KindTexturedMesh
)

func (k Kind) String() string {
	switch k {
	case KindColoredMesh:
		return "ColoredMesh"
	case KindLitColoredMesh:
		return "LitColoredMesh"
	case KindTexturedMesh:
		return "TexturedMesh"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ColoredMesh draws per-vertex colored geometry.
//
// Shader contract:
//
//	@group(0) @binding(0) var<uniform> mvp: mat4x4<f32>;
type ColoredMesh struct {
	Mesh *Mesh[ColoredVertex]
	MVP  Mat4
}

// LitColoredMesh draws per-vertex colored geometry with a directional light.
//
// Shader contract:
//
//	@group(0) @binding(0) var<uniform> mvp: mat4x4<f32>;
//	@group(1) @binding(0) var<uniform> light_dir: vec4<f32>;
//	@group(2) @binding(0) var<uniform> view_dir: vec4<f32>;
type LitColoredMesh struct {
	Mesh           *Mesh[NormalColoredVertex]
	MVP            Mat4
	LightDirection Vec3
	ViewDirection  Vec3
}

// TexturedMesh draws textured geometry. Texture is converted to RGBA and
// downscaled to fit gpu.MaxTextureDimension.
//
// Shader contract:
//
//	@group(0) @binding(0) var<uniform> mvp: mat4x4<f32>;
//	@group(1) @binding(0) var tex: texture_2d<f32>;
//	@group(1) @binding(1) var tex_sampler: sampler;
type TexturedMesh struct {
	Mesh    *Mesh[UVVertex]
	MVP     Mat4
	Texture image.Image
}

// Object is the closed set of render-object types. Each type is also the
// init data of its drawlets.
type Object interface {
	ColoredMesh | LitColoredMesh | TexturedMesh
}

// kindOf returns the Kind of T.
func kindOf[T Object]() Kind {
	var zero T
	switch any(zero).(type) {
	case ColoredMesh:
		return KindColoredMesh
	case LitColoredMesh:
		return KindLitColoredMesh
	case TexturedMesh:
		return KindTexturedMesh
	}
	panic("poisson: unreachable render-object type")
}

// Uniform names a per-drawlet uniform value.
type Uniform int

const (
	// UniformMVP is the model-view-projection matrix (mat4x4<f32>).
	UniformMVP Uniform = iota
	// UniformLightDirection is the light direction (vec4<f32>, w = 0).
	UniformLightDirection
	// UniformViewDirection is the view direction (vec4<f32>, w = 0).
	UniformViewDirection
)

func (u Uniform) String() string {
	switch u {
	case UniformMVP:
		return "mvp"
	case UniformLightDirection:
		return "light_direction"
	case UniformViewDirection:
		return "view_direction"
	default:
		return fmt.Sprintf("Uniform(%d)", int(u))
	}
}

// floats returns the number of float32s in the uniform's buffer.
func (u Uniform) floats() int {
	if u == UniformMVP {
		return 16
	}
	return 4
}

// groupSpec describes one bind group of a render-object type: either a
// single uniform buffer or a texture+sampler pair.
type groupSpec struct {
	label   string
	uniform Uniform
	texture bool
	stages  gputypes.ShaderStage
}

func (g groupSpec) layoutEntries() []gputypes.BindGroupLayoutEntry {
	if g.texture {
		return []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: g.stages,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: g.stages,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		}
	}
	return []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: g.stages,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	}
}

// objectLayout is everything a pipeline needs to know about a kind: the
// vertex layout, the bind groups in shader order, and the blend state.
type objectLayout struct {
	vertex gputypes.VertexBufferLayout
	groups []groupSpec
	blend  gputypes.BlendState
}

// declares reports whether the layout has a group for u.
func (l objectLayout) declares(u Uniform) bool {
	for _, g := range l.groups {
		if !g.texture && g.uniform == u {
			return true
		}
	}
	return false
}

// alphaBlending blends straight (non-premultiplied) alpha.
var alphaBlending = gputypes.BlendState{
	Color: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorSrcAlpha,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	},
	Alpha: gputypes.BlendComponent{
		SrcFactor: gputypes.BlendFactorOne,
		DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
		Operation: gputypes.BlendOperationAdd,
	},
}

var mvpGroup = groupSpec{label: "mvp", uniform: UniformMVP, stages: gputypes.ShaderStageVertex}

// layoutFor returns the fixed layout of kind. Bind groups follow the shader
// contract: transform first, auxiliary uniforms next, texture last.
func layoutFor(kind Kind) (objectLayout, error) {
	switch kind {
	case KindColoredMesh:
		return objectLayout{
			vertex: coloredVertexLayout,
			groups: []groupSpec{mvpGroup},
			blend:  alphaBlending,
		}, nil
	case KindLitColoredMesh:
		lit := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
		return objectLayout{
			vertex: normalColoredVertexLayout,
			groups: []groupSpec{
				mvpGroup,
				{label: "light_direction", uniform: UniformLightDirection, stages: lit},
				{label: "view_direction", uniform: UniformViewDirection, stages: lit},
			},
			blend: alphaBlending,
		}, nil
	case KindTexturedMesh:
		return objectLayout{
			vertex: uvVertexLayout,
			groups: []groupSpec{
				mvpGroup,
				{label: "texture", texture: true, stages: gputypes.ShaderStageFragment},
			},
			blend: gputypes.BlendStatePremultiplied(),
		}, nil
	default:
		return objectLayout{}, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

// objectParts is a type-erased drawlet init value.
type objectParts struct {
	mesh     meshData
	uniforms map[Uniform][]float32
	texture  image.Image
}

// partsOf splits an init value into mesh, initial uniform values and
// texture, and validates that the kind's required inputs are present.
func partsOf[T Object](init T) (objectParts, error) {
	var p objectParts
	switch v := any(init).(type) {
	case ColoredMesh:
		if v.Mesh == nil {
			return p, fmt.Errorf("%w: nil mesh", ErrInvalidMesh)
		}
		p.mesh = v.Mesh
		p.uniforms = map[Uniform][]float32{UniformMVP: v.MVP[:]}
	case LitColoredMesh:
		if v.Mesh == nil {
			return p, fmt.Errorf("%w: nil mesh", ErrInvalidMesh)
		}
		p.mesh = v.Mesh
		light, view := v.LightDirection.Vec4(0), v.ViewDirection.Vec4(0)
		p.uniforms = map[Uniform][]float32{
			UniformMVP:            v.MVP[:],
			UniformLightDirection: light[:],
			UniformViewDirection:  view[:],
		}
	case TexturedMesh:
		if v.Mesh == nil {
			return p, fmt.Errorf("%w: nil mesh", ErrInvalidMesh)
		}
		if v.Texture == nil {
			return p, ErrMissingTexture
		}
		p.mesh = v.Mesh
		p.uniforms = map[Uniform][]float32{UniformMVP: v.MVP[:]}
		p.texture = v.Texture
	default:
		return p, ErrUnknownKind
	}
	return p, nil
}
