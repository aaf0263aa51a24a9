package main

import "github.com/gogpu/poisson"

// corner is a mesh vertex carrying every attribute any vertex type needs.
type corner struct {
	pos, normal, color poisson.Vec3
	uv                 [2]float32
}

type preset struct {
	corners []corner
	indices []uint32
}

var meshPresets = map[string]func() preset{
	"triangle": trianglePreset,
	"quad":     quadPreset,
	"cube":     cubePreset,
}

func trianglePreset() preset {
	n := poisson.Vec3{0, 0, 1}
	return preset{
		corners: []corner{
			{pos: poisson.Vec3{0, 0.5, 0}, normal: n, color: poisson.Vec3{1, 0, 0}, uv: [2]float32{0.5, 0}},
			{pos: poisson.Vec3{-0.5, -0.5, 0}, normal: n, color: poisson.Vec3{0, 1, 0}, uv: [2]float32{0, 1}},
			{pos: poisson.Vec3{0.5, -0.5, 0}, normal: n, color: poisson.Vec3{0, 0, 1}, uv: [2]float32{1, 1}},
		},
		indices: []uint32{0, 1, 2},
	}
}

func quadPreset() preset {
	var p preset
	p.addFace(0, poisson.Vec3{0, 0, 1}, poisson.Vec3{1, 0, 0}, poisson.Vec3{0, 1, 0}, poisson.Vec3{1, 1, 1})
	return p
}

// cubePreset is a unit cube with four vertices per face so that normals,
// colors and texture coordinates stay per face.
func cubePreset() preset {
	var p preset
	x, y, z := poisson.Vec3{1, 0, 0}, poisson.Vec3{0, 1, 0}, poisson.Vec3{0, 0, 1}
	neg := func(v poisson.Vec3) poisson.Vec3 { return poisson.Vec3{-v[0], -v[1], -v[2]} }

	// u x v = n keeps every face counter-clockwise seen from outside.
	p.addFace(0.5, x, y, z, poisson.Vec3{1, 0.3, 0.3})
	p.addFace(0.5, neg(x), z, y, poisson.Vec3{0.3, 1, 1})
	p.addFace(0.5, y, z, x, poisson.Vec3{0.3, 1, 0.3})
	p.addFace(0.5, neg(y), x, z, poisson.Vec3{1, 0.3, 1})
	p.addFace(0.5, z, x, y, poisson.Vec3{0.3, 0.3, 1})
	p.addFace(0.5, neg(z), y, x, poisson.Vec3{1, 1, 0.3})
	return p
}

// addFace appends a unit square facing n at distance d from the origin,
// spanned by u and v.
func (p *preset) addFace(d float32, n, u, v, color poisson.Vec3) {
	base := uint32(len(p.corners))
	at := func(su, sv float32) poisson.Vec3 {
		var out poisson.Vec3
		for i := range out {
			out[i] = n[i]*d + u[i]*su*0.5 + v[i]*sv*0.5
		}
		return out
	}
	p.corners = append(p.corners,
		corner{pos: at(-1, -1), normal: n, color: color, uv: [2]float32{0, 1}},
		corner{pos: at(1, -1), normal: n, color: color, uv: [2]float32{1, 1}},
		corner{pos: at(1, 1), normal: n, color: color, uv: [2]float32{1, 0}},
		corner{pos: at(-1, 1), normal: n, color: color, uv: [2]float32{0, 0}},
	)
	p.indices = append(p.indices, base, base+1, base+2, base, base+2, base+3)
}

func coloredMesh(p preset) (*poisson.Mesh[poisson.ColoredVertex], error) {
	vs := make([]poisson.ColoredVertex, len(p.corners))
	for i, c := range p.corners {
		vs[i] = poisson.ColoredVertex{Pos: c.pos, Color: c.color}
	}
	return poisson.NewMesh(vs, p.indices)
}

func litMesh(p preset) (*poisson.Mesh[poisson.NormalColoredVertex], error) {
	vs := make([]poisson.NormalColoredVertex, len(p.corners))
	for i, c := range p.corners {
		vs[i] = poisson.NormalColoredVertex{Pos: c.pos, Color: c.color, Normal: c.normal}
	}
	return poisson.NewMesh(vs, p.indices)
}

func texturedMesh(p preset) (*poisson.Mesh[poisson.UVVertex], error) {
	vs := make([]poisson.UVVertex, len(p.corners))
	for i, c := range p.corners {
		vs[i] = poisson.UVVertex{Pos: c.pos, UV: c.uv}
	}
	return poisson.NewMesh(vs, p.indices)
}
