package shader

import (
	"fmt"
	"os"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
)

// ShaderBuilderOption configures a shader before it is pre-processed and reflected.
type ShaderBuilderOption func(*shader)

// defaultPreProcessor is shared by every shader built without WithPreProcessor.
var defaultPreProcessor = sync.OnceValue(NewPreProcessor)

// WithSource sets the inline source of one dialect. GLSL takes a vertex and a fragment source;
// WGSL takes one module in vertex and an empty fragment.
//
// Parameters:
//   - language: the dialect of the source
//   - vertex: the vertex source, or the WGSL module
//   - fragment: the fragment source, empty for WGSL
//
// Returns:
//   - ShaderBuilderOption: the option
func WithSource(language gpu.ShadingLanguage, vertex, fragment string) ShaderBuilderOption {
	return func(s *shader) {
		s.raw[language] = stageSources{vertex: vertex, fragment: fragment}
	}
}

// WithSourceFromPath reads the source of one dialect from disk at construction.
//
// Parameters:
//   - language: the dialect of the source
//   - vertexPath: the vertex source file, or the WGSL module file
//   - fragmentPath: the fragment source file, empty for WGSL
//
// Returns:
//   - ShaderBuilderOption: the option
func WithSourceFromPath(language gpu.ShadingLanguage, vertexPath, fragmentPath string) ShaderBuilderOption {
	return func(s *shader) {
		s.raw[language] = stageSources{vertexPath: vertexPath, fragmentPath: fragmentPath}
	}
}

// WithDefaults sets the material values used when a material does not set a key.
func WithDefaults(defaults map[string]any) ShaderBuilderOption {
	return func(s *shader) {
		for k, v := range defaults {
			s.defaults[k] = v
		}
	}
}

// WithRequired names material keys that have no default.
func WithRequired(keys ...string) ShaderBuilderOption {
	return func(s *shader) {
		s.required = append(s.required, keys...)
	}
}

// WithPreProcessor replaces the shared pre-processor, e.g. one with application snippets
// registered.
func WithPreProcessor(pp PreProcessor) ShaderBuilderOption {
	return func(s *shader) {
		s.pp = pp
	}
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read shader source: %w", err)
	}
	return string(data), nil
}
