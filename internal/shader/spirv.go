package shader

import (
	"errors"
	"fmt"
)

// ErrInvalidSPIRV is returned when a word stream is not a SPIR-V module.
var ErrInvalidSPIRV = errors.New("shader: invalid SPIR-V module")

const (
	spirvMagic      = 0x07230203
	spirvHeaderLen  = 5
	opEntryPoint    = 15
	opDecorate      = 71
	decorBinding    = 33
	decorDescriptor = 34

	execModelVertex   = 0
	execModelFragment = 4
	execModelCompute  = 5
)

// spirvModule is the subset of a SPIR-V module needed for layout checks.
type spirvModule struct {
	sets        map[uint32]uint32 // result id -> descriptor set
	bindings    map[uint32]uint32 // result id -> binding
	entryPoints map[string]Stage
}

func parseSPIRV(words []uint32) (*spirvModule, error) {
	if len(words) < spirvHeaderLen || words[0] != spirvMagic {
		return nil, ErrInvalidSPIRV
	}
	m := &spirvModule{
		sets:        make(map[uint32]uint32),
		bindings:    make(map[uint32]uint32),
		entryPoints: make(map[string]Stage),
	}
	for i := spirvHeaderLen; i < len(words); {
		count := int(words[i] >> 16)
		op := words[i] & 0xFFFF
		if count == 0 || i+count > len(words) {
			return nil, fmt.Errorf("%w: bad instruction length at word %d", ErrInvalidSPIRV, i)
		}
		operands := words[i+1 : i+count]
		switch op {
		case opDecorate:
			if len(operands) >= 3 {
				switch operands[1] {
				case decorDescriptor:
					m.sets[operands[0]] = operands[2]
				case decorBinding:
					m.bindings[operands[0]] = operands[2]
				}
			}
		case opEntryPoint:
			if len(operands) >= 3 {
				name := decodeString(operands[2:])
				switch operands[0] {
				case execModelVertex:
					m.entryPoints[name] = StageVertex
				case execModelFragment:
					m.entryPoints[name] = StageFragment
				case execModelCompute:
					m.entryPoints[name] = StageCompute
				}
			}
		}
		i += count
	}
	return m, nil
}

// decodeString reads a nul-terminated literal string packed little-endian
// into words.
func decodeString(words []uint32) string {
	var buf []byte
	for _, w := range words {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}

// ScanSPIRV returns the resource bindings declared by a SPIR-V module.
// Variables decorated with a descriptor set but no binding are reported at
// binding 0.
func ScanSPIRV(words []uint32) ([]Binding, error) {
	m, err := parseSPIRV(words)
	if err != nil {
		return nil, err
	}
	out := make([]Binding, 0, len(m.sets))
	for id, set := range m.sets {
		out = append(out, Binding{Group: set, Binding: m.bindings[id]})
	}
	sortBindings(out)
	return out, nil
}

// EntryPointsSPIRV returns the entry points declared by a SPIR-V module.
func EntryPointsSPIRV(words []uint32) (map[string]Stage, error) {
	m, err := parseSPIRV(words)
	if err != nil {
		return nil, err
	}
	return m.entryPoints, nil
}
