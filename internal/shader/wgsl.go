package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Module is WGSL source lowered to naga IR. The same IR answers binding and
// entry point queries and generates SPIR-V, so source is parsed once.
type Module struct {
	label string
	ir    *ir.Module
}

// ParseWGSL parses and lowers WGSL source. No code is generated.
func ParseWGSL(label, src string) (*Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", label, err)
	}
	module, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("lower %s: %w", label, err)
	}
	return &Module{label: label, ir: module}, nil
}

// Bindings returns the resource bindings of the module's global variables,
// sorted by group then binding.
func (m *Module) Bindings() []Binding {
	var out []Binding
	for _, g := range m.ir.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		out = append(out, Binding{Group: g.Binding.Group, Binding: g.Binding.Binding})
	}
	sortBindings(out)
	return out
}

// EntryPoints returns the module's vertex, fragment and compute entry
// points keyed by function name.
func (m *Module) EntryPoints() map[string]Stage {
	out := make(map[string]Stage, len(m.ir.EntryPoints))
	for _, ep := range m.ir.EntryPoints {
		switch ep.Stage {
		case ir.StageVertex:
			out[ep.Name] = StageVertex
		case ir.StageFragment:
			out[ep.Name] = StageFragment
		case ir.StageCompute:
			out[ep.Name] = StageCompute
		}
	}
	return out
}

// SPIRV validates the IR and generates SPIR-V words from it.
func (m *Module) SPIRV() ([]uint32, error) {
	problems, err := naga.Validate(m.ir)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", m.label, err)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("validate %s: %w", m.label, &problems[0])
	}
	spirvBytes, err := naga.GenerateSPIRV(m.ir, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", m.label, err)
	}
	return spirvWords(spirvBytes)
}
