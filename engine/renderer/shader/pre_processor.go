// pre_processor.go implements the WGSL shader pre-processor. It resolves
// #include directives against a base directory with cycle detection, and
// locates an optional external shader validator through the VULKAN_SDK
// environment variable. The renderer validates shaders through wgpu itself;
// the external validator is a development aid only.
package shader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includeDir is the directory #include paths resolve against.
	includeDir string

	// visited tracks include files in the current expansion for cycle detection.
	visited map[string]bool
}

// PreProcessor expands #include directives in WGSL source. Includes are
// written as `#include "file.wgsl"` on their own line and resolve relative
// to the configured include directory; a file is included at most once per
// expansion.
type PreProcessor interface {
	// Process expands every #include directive in the source.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error if an include cannot be read; a cyclic or repeated
	//     include is skipped, not reported
	Process(source string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor resolving includes against the
// given directory. An empty directory disables include resolution; any
// #include directive then fails with a diagnostic.
//
// Parameters:
//   - includeDir: the include resolution directory
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(includeDir string) PreProcessor {
	return &preProcessor{
		includeDir: includeDir,
		visited:    make(map[string]bool),
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#include") {
			out = append(out, line)
			continue
		}
		name := strings.Trim(strings.TrimSpace(strings.TrimPrefix(trimmed, "#include")), `"`)
		if name == "" {
			return "", fmt.Errorf("line %d: malformed #include", i+1)
		}
		if p.includeDir == "" {
			return "", fmt.Errorf("line %d: #include %q with no include directory configured", i+1, name)
		}
		if p.visited[name] {
			// a file is included at most once per expansion
			continue
		}
		p.visited[name] = true
		data, err := os.ReadFile(filepath.Join(p.includeDir, name))
		if err != nil {
			return "", fmt.Errorf("line %d: failed to read include %q: %w", i+1, name, err)
		}
		expanded, err := p.Process(string(data))
		if err != nil {
			return "", fmt.Errorf("include %q: %w", name, err)
		}
		out = append(out, expanded)
	}
	return strings.Join(out, "\n"), nil
}

// LocateValidator returns the path of an external WGSL/SPIR-V validator
// when the VULKAN_SDK environment variable points at an installed SDK.
//
// Returns:
//   - string: the validator binary path
//   - bool: false when VULKAN_SDK is unset or the binary is absent
func LocateValidator() (string, bool) {
	sdk := os.Getenv("VULKAN_SDK")
	if sdk == "" {
		return "", false
	}
	candidates := []string{
		filepath.Join(sdk, "bin", "glslangValidator"),
		filepath.Join(sdk, "Bin", "glslangValidator.exe"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// dirOf returns the directory of a file path.
func dirOf(path string) string {
	return filepath.Dir(path)
}
