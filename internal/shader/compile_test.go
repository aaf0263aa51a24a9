package shader

import "testing"

func TestModuleSPIRV(t *testing.T) {
	words, err := parseOrSkip(t, litWGSL).SPIRV()
	if err != nil {
		t.Fatalf("SPIRV: %v", err)
	}
	if len(words) < 5 {
		t.Fatalf("SPIR-V too short: %d words", len(words))
	}
	if words[0] != spirvMagic {
		t.Errorf("magic = %#08x, want %#08x", words[0], spirvMagic)
	}

	// The generated module carries the same interface as the source.
	entries, err := EntryPointsSPIRV(words)
	if err != nil {
		t.Fatalf("EntryPointsSPIRV on compiled module: %v", err)
	}
	if err := CheckEntryPoint(entries, "vs_main", StageVertex); err != nil {
		t.Errorf("compiled vs_main: %v", err)
	}
	bindings, err := ScanSPIRV(words)
	if err != nil {
		t.Fatalf("ScanSPIRV on compiled module: %v", err)
	}
	if err := CheckGroups(bindings, 3); err != nil {
		t.Errorf("compiled groups: %v", err)
	}
}

func TestSPIRVWordsRejectsPartialWord(t *testing.T) {
	if _, err := spirvWords([]byte{3, 2, 35, 7, 0}); err == nil {
		t.Error("spirvWords accepted 5 bytes")
	}
	words, err := spirvWords([]byte{3, 2, 35, 7})
	if err != nil || len(words) != 1 || words[0] != spirvMagic {
		t.Errorf("spirvWords = %#x, %v; want [%#x]", words, err, spirvMagic)
	}
}
