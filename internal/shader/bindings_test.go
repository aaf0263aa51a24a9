package shader

import (
	"errors"
	"testing"
)

func TestCheckGroups(t *testing.T) {
	bindings := []Binding{{0, 0}, {1, 0}, {2, 0}}

	if err := CheckGroups(bindings, 3); err != nil {
		t.Fatalf("CheckGroups(3) = %v, want nil", err)
	}
	if err := CheckGroups(bindings, 1); !errors.Is(err, ErrGroupCount) {
		t.Errorf("CheckGroups(1) = %v, want ErrGroupCount", err)
	}

	gap := []Binding{{0, 0}, {2, 0}}
	if err := CheckGroups(gap, 2); !errors.Is(err, ErrGroupGap) {
		t.Errorf("CheckGroups(gap) = %v, want ErrGroupGap", err)
	}
}

func TestCheckEntryPoint(t *testing.T) {
	entries := map[string]Stage{"vs_main": StageVertex, "fs_main": StageFragment}
	if err := CheckEntryPoint(entries, "vs_main", StageVertex); err != nil {
		t.Errorf("vs_main: %v", err)
	}
	if err := CheckEntryPoint(entries, "vs_main", StageFragment); !errors.Is(err, ErrEntryPoint) {
		t.Errorf("vs_main as fragment = %v, want ErrEntryPoint", err)
	}
	if err := CheckEntryPoint(entries, "main", StageVertex); !errors.Is(err, ErrEntryPoint) {
		t.Errorf("missing main = %v, want ErrEntryPoint", err)
	}
}

// spirvFixture assembles a minimal module: one vertex entry point "main" and
// two decorated variables.
func spirvFixture() []uint32 {
	const mainName = 0x6e69616d // "main"
	words := []uint32{spirvMagic, 0x00010000, 0, 16, 0}
	words = append(words,
		5<<16|opEntryPoint, execModelVertex, 1, mainName, 0,
		4<<16|opDecorate, 7, decorDescriptor, 0,
		4<<16|opDecorate, 7, decorBinding, 0,
		4<<16|opDecorate, 9, decorDescriptor, 1,
		4<<16|opDecorate, 9, decorBinding, 2,
	)
	return words
}

func TestScanSPIRV(t *testing.T) {
	got, err := ScanSPIRV(spirvFixture())
	if err != nil {
		t.Fatalf("ScanSPIRV: %v", err)
	}
	want := []Binding{{0, 0}, {1, 2}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ScanSPIRV = %v, want %v", got, want)
	}
	if err := CheckGroups(got, 2); err != nil {
		t.Errorf("CheckGroups: %v", err)
	}
}

func TestEntryPointsSPIRV(t *testing.T) {
	entries, err := EntryPointsSPIRV(spirvFixture())
	if err != nil {
		t.Fatalf("EntryPointsSPIRV: %v", err)
	}
	if stage, ok := entries["main"]; !ok || stage != StageVertex {
		t.Errorf("entries[main] = %v, %v; want vertex", stage, ok)
	}
}

func TestScanSPIRVRejectsGarbage(t *testing.T) {
	if _, err := ScanSPIRV([]uint32{1, 2, 3}); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("short stream: err = %v, want ErrInvalidSPIRV", err)
	}

	truncated := []uint32{spirvMagic, 0x00010000, 0, 1, 0, 9<<16 | opDecorate, 1}
	if _, err := ScanSPIRV(truncated); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("truncated instruction: err = %v, want ErrInvalidSPIRV", err)
	}
}
