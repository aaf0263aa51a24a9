package poisson

import (
	"fmt"

	"github.com/gogpu/poisson/internal/shader"
)

// Default entry point names.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
)

// ShaderSource is the shader of a pipeline, as WGSL text or SPIR-V words.
// SPIRV wins if both are set.
//
// The shader must declare exactly the bind groups of the pipeline's
// render-object type, densely from 0, and both entry points.
type ShaderSource struct {
	Label string
	WGSL  string
	SPIRV []uint32

	// Entry points default to DefaultVertexEntry and DefaultFragmentEntry.
	VertexEntry   string
	FragmentEntry string
}

func (s ShaderSource) withDefaults(kind Kind) ShaderSource {
	if s.Label == "" {
		s.Label = kind.String()
	}
	if s.VertexEntry == "" {
		s.VertexEntry = DefaultVertexEntry
	}
	if s.FragmentEntry == "" {
		s.FragmentEntry = DefaultFragmentEntry
	}
	return s
}

// prepare checks the shader against layout and returns the code to hand to
// the device: SPIR-V as given, WGSL compiled to SPIR-V in explicit mode, or
// WGSL unchanged in portable mode. WGSL is parsed once; explicit mode
// generates SPIR-V from the same IR. No GPU call is made.
func (s ShaderSource) prepare(kind Kind, layout objectLayout, mode Mode) (wgsl string, spirv []uint32, err error) {
	var (
		bindings []shader.Binding
		entries  map[string]shader.Stage
		module   *shader.Module
	)
	switch {
	case len(s.SPIRV) > 0:
		if bindings, err = shader.ScanSPIRV(s.SPIRV); err != nil {
			return "", nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, s.Label, err)
		}
		if entries, err = shader.EntryPointsSPIRV(s.SPIRV); err != nil {
			return "", nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, s.Label, err)
		}
	case s.WGSL != "":
		if module, err = shader.ParseWGSL(s.Label, s.WGSL); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrShaderCompile, err)
		}
		bindings = module.Bindings()
		entries = module.EntryPoints()
	default:
		return "", nil, fmt.Errorf("%w: %s: no shader source", ErrShaderCompile, s.Label)
	}

	if err := shader.CheckGroups(bindings, len(layout.groups)); err != nil {
		return "", nil, fmt.Errorf("%w: %s for %v: %w", ErrBindGroupMismatch, s.Label, kind, err)
	}
	if err := shader.CheckEntryPoint(entries, s.VertexEntry, shader.StageVertex); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrMissingEntryPoint, s.Label, err)
	}
	if err := shader.CheckEntryPoint(entries, s.FragmentEntry, shader.StageFragment); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrMissingEntryPoint, s.Label, err)
	}

	switch {
	case len(s.SPIRV) > 0:
		return "", s.SPIRV, nil
	case mode == ModePortable:
		return s.WGSL, nil, nil
	}
	words, err := module.SPIRV()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, s.Label, err)
	}
	return "", words, nil
}
