package shader

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Binding errors.
var (
	// ErrGroupCount is returned when a shader declares a different number of
	// bind groups than expected.
	ErrGroupCount = errors.New("shader: bind group count mismatch")

	// ErrGroupGap is returned when declared group indices are not dense from 0.
	ErrGroupGap = errors.New("shader: bind group indices are not contiguous")

	// ErrEntryPoint is returned when a required entry point is missing.
	ErrEntryPoint = errors.New("shader: entry point not found")
)

// Stage identifies the pipeline stage of an entry point.
type Stage int

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota
	// StageFragment is the fragment stage.
	StageFragment
	// StageCompute is the compute stage.
	StageCompute
)

// String returns the WGSL attribute name of the stage.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Binding is one resource slot declared by a shader.
type Binding struct {
	Group   uint32
	Binding uint32
}

// Groups returns the distinct group indices used by bindings, ascending.
func Groups(bindings []Binding) []uint32 {
	var groups []uint32
	for _, b := range bindings {
		if !slices.Contains(groups, b.Group) {
			groups = append(groups, b.Group)
		}
	}
	slices.Sort(groups)
	return groups
}

// CheckGroups verifies that bindings use exactly the groups 0..want-1.
func CheckGroups(bindings []Binding, want int) error {
	groups := Groups(bindings)
	if len(groups) != want {
		return fmt.Errorf("%w: shader declares %d, type requires %d", ErrGroupCount, len(groups), want)
	}
	for i, g := range groups {
		if g != uint32(i) {
			return fmt.Errorf("%w: found groups %s", ErrGroupGap, formatGroups(groups))
		}
	}
	return nil
}

// CheckEntryPoint verifies that name is declared for the given stage.
func CheckEntryPoint(entries map[string]Stage, name string, stage Stage) error {
	got, ok := entries[name]
	if !ok || got != stage {
		return fmt.Errorf("%w: @%s fn %s", ErrEntryPoint, stage, name)
	}
	return nil
}

func formatGroups(groups []uint32) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = strconv.FormatUint(uint64(g), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sortBindings(bs []Binding) {
	slices.SortFunc(bs, func(a, b Binding) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Binding) - int(b.Binding)
	})
}
