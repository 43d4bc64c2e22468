package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEntryPointParsing(t *testing.T) {
	source := `
@vertex
fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }

@fragment
fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	vs, err := NewShader("test_vs", ShaderTypeVertex, source, "")
	if err != nil {
		t.Fatalf("vertex NewShader: %v", err)
	}
	if vs.EntryPoint() != "vs_main" {
		t.Errorf("vertex entry = %q, want vs_main", vs.EntryPoint())
	}
	fs, err := NewShader("test_fs", ShaderTypeFragment, source, "")
	if err != nil {
		t.Fatalf("fragment NewShader: %v", err)
	}
	if fs.EntryPoint() != "fs_main" {
		t.Errorf("fragment entry = %q, want fs_main", fs.EntryPoint())
	}
	if _, err := NewShader("missing", ShaderTypeCompute, source, ""); err == nil {
		t.Errorf("compute shader without entry point accepted")
	}
}

func TestWorkgroupSizeParsing(t *testing.T) {
	cases := []struct {
		source string
		want   [3]uint32
	}{
		{"@compute @workgroup_size(32) fn main() {}", [3]uint32{32, 1, 1}},
		{"@compute @workgroup_size(8, 8) fn main() {}", [3]uint32{8, 8, 1}},
		{"@compute @workgroup_size(4, 2, 2) fn main() {}", [3]uint32{4, 2, 2}},
	}
	for _, c := range cases {
		s, err := NewShader("wg", ShaderTypeCompute, c.source, "")
		if err != nil {
			t.Fatalf("NewShader(%q): %v", c.source, err)
		}
		if s.WorkgroupSize() != c.want {
			t.Errorf("workgroup size = %v, want %v", s.WorkgroupSize(), c.want)
		}
	}
}

func TestIncludeExpansion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "types.wgsl"), []byte("struct Foo { a: f32 };"), 0o644); err != nil {
		t.Fatal(err)
	}
	source := "#include \"types.wgsl\"\n@compute @workgroup_size(1) fn main() {}"

	s, err := NewShader("inc", ShaderTypeCompute, source, dir)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if got := s.Source(); !strings.Contains(got, "struct Foo") {
		t.Errorf("include not expanded:\n%s", got)
	}

	// missing include fails with a diagnostic
	if _, err := NewShader("bad", ShaderTypeCompute, "#include \"absent.wgsl\"\n@compute fn main() {}", dir); err == nil {
		t.Errorf("missing include accepted")
	}
	// includes without a directory are rejected
	if _, err := NewShader("nodir", ShaderTypeCompute, source, ""); err == nil {
		t.Errorf("include without directory accepted")
	}
}

func TestIncludeAppearsOncePerExpansion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shared.wgsl"), []byte("const SHARED: u32 = 1u;"), 0o644); err != nil {
		t.Fatal(err)
	}
	source := "#include \"shared.wgsl\"\n#include \"shared.wgsl\"\n@compute @workgroup_size(1) fn main() {}"
	s, err := NewShader("dup", ShaderTypeCompute, source, dir)
	if err != nil {
		t.Fatalf("NewShader: %v", err)
	}
	if strings.Count(s.Source(), "const SHARED") != 1 {
		t.Errorf("include expanded twice")
	}
}

func TestLocateValidatorWithoutSDK(t *testing.T) {
	t.Setenv("VULKAN_SDK", "")
	if _, ok := LocateValidator(); ok {
		t.Errorf("validator located without VULKAN_SDK")
	}
	t.Setenv("VULKAN_SDK", t.TempDir())
	if _, ok := LocateValidator(); ok {
		t.Errorf("validator located in an empty SDK directory")
	}
}
