package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var errInvalidScene = errors.New("poissondemo: invalid scene")

// scene is the YAML description of what the demo draws.
type scene struct {
	Camera    camera         `yaml:"camera"`
	Light     [3]float32     `yaml:"light"`
	Pipelines []pipelineSpec `yaml:"pipelines"`
	Drawlets  []drawletSpec  `yaml:"drawlets"`

	// dir resolves relative shader and texture paths.
	dir string
}

type camera struct {
	Eye [3]float32 `yaml:"eye"`
	FOV float32    `yaml:"fov"` // degrees
}

type pipelineSpec struct {
	Kind   string `yaml:"kind"`
	Shader string `yaml:"shader"`
}

type drawletSpec struct {
	Kind     string     `yaml:"kind"`
	Mesh     string     `yaml:"mesh"`
	Position [3]float32 `yaml:"position"`
	Scale    float32    `yaml:"scale"`
	Spin     float32    `yaml:"spin"` // radians per second about Y
	Texture  string     `yaml:"texture"`
}

var kinds = map[string]bool{"colored": true, "lit": true, "textured": true}

func loadScene(path string) (*scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := parseScene(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

func parseScene(data []byte) (*scene, error) {
	s := &scene{
		Camera: camera{Eye: [3]float32{0, 1.5, 5}, FOV: 60},
		Light:  [3]float32{-0.5, -1, -0.5},
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidScene, err)
	}
	if len(s.Pipelines) == 0 {
		return nil, fmt.Errorf("%w: no pipelines", errInvalidScene)
	}
	declared := make(map[string]bool)
	for i, p := range s.Pipelines {
		if !kinds[p.Kind] {
			return nil, fmt.Errorf("%w: pipelines[%d]: unknown kind %q", errInvalidScene, i, p.Kind)
		}
		if declared[p.Kind] {
			return nil, fmt.Errorf("%w: pipelines[%d]: duplicate kind %q", errInvalidScene, i, p.Kind)
		}
		if p.Shader == "" {
			return nil, fmt.Errorf("%w: pipelines[%d]: no shader", errInvalidScene, i)
		}
		declared[p.Kind] = true
	}
	for i := range s.Drawlets {
		d := &s.Drawlets[i]
		if !declared[d.Kind] {
			return nil, fmt.Errorf("%w: drawlets[%d]: no %q pipeline", errInvalidScene, i, d.Kind)
		}
		if _, ok := meshPresets[d.Mesh]; !ok {
			return nil, fmt.Errorf("%w: drawlets[%d]: unknown mesh %q", errInvalidScene, i, d.Mesh)
		}
		if d.Scale == 0 {
			d.Scale = 1
		}
	}
	return s, nil
}

func (s *scene) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}
