// pre_processor.go implements the shader pre-processor. It scans source for @oxy: annotations
// and replaces them with the registered snippet or generated declaration for the source's
// dialect. Built-in snippets are embedded from assets/include; the shadow sampling snippet is
// generated so the number of shadow map slots follows MaxShadowMaps.
package shader

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
)

// snippetKey identifies one dialect of a named snippet.
type snippetKey struct {
	name     string
	language gpu.ShadingLanguage
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	mu       *sync.RWMutex
	snippets map[snippetKey]string
}

// PreProcessor expands @oxy: annotations in shader source.
type PreProcessor interface {
	// Process expands every annotation in source. Includes are expanded recursively; a snippet
	// is only injected once per source, later includes of the same snippet expand to nothing.
	//
	// Parameters:
	//   - source: the raw shader source
	//   - language: the dialect of source, selecting which version of each snippet is injected
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error for a malformed annotation or an unknown snippet
	Process(source string, language gpu.ShadingLanguage) (string, error)

	// Register adds or replaces a snippet.
	//
	// Parameters:
	//   - name: the name used in //@oxy:include
	//   - language: the dialect of the snippet
	//   - source: the snippet text
	Register(name string, language gpu.ShadingLanguage, source string)

	// Snippets returns the registered snippet names for a dialect, sorted.
	Snippets(language gpu.ShadingLanguage) []string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor holding the built-in snippets: globals, lights, model,
// shadow_pass, basic_material, phong_material, phong_lighting and shadows.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor() PreProcessor {
	p := &preProcessor{
		mu:       &sync.RWMutex{},
		snippets: make(map[snippetKey]string),
	}
	entries, err := assets.ReadDir("assets/include")
	if err != nil {
		panic(fmt.Sprintf("shader: embedded includes missing: %v", err))
	}
	for _, e := range entries {
		name := e.Name()
		var lang gpu.ShadingLanguage
		switch {
		case strings.HasSuffix(name, ".glsl"):
			lang = gpu.LanguageGLSL
		case strings.HasSuffix(name, ".wgsl"):
			lang = gpu.LanguageWGSL
		default:
			continue
		}
		data, err := assets.ReadFile("assets/include/" + name)
		if err != nil {
			panic(fmt.Sprintf("shader: reading embedded include %q: %v", name, err))
		}
		p.snippets[snippetKey{strings.TrimSuffix(name, path.Ext(name)), lang}] = string(data)
	}
	for _, lang := range []gpu.ShadingLanguage{gpu.LanguageGLSL, gpu.LanguageWGSL} {
		p.snippets[snippetKey{"shadows", lang}] = shadowSnippet(lang)
	}
	return p
}

func (p *preProcessor) Register(name string, language gpu.ShadingLanguage, source string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snippets[snippetKey{name, language}] = source
}

func (p *preProcessor) Snippets(language gpu.ShadingLanguage) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var names []string
	for k := range p.snippets {
		if k.language == language {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

func (p *preProcessor) Process(source string, language gpu.ShadingLanguage) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expand(source, language, make(map[string]bool), 0)
}

func (p *preProcessor) expand(source string, language gpu.ShadingLanguage, included map[string]bool, depth int) (string, error) {
	if depth > 16 {
		return "", fmt.Errorf("includes nested deeper than 16 levels")
	}
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			name := a.Args[0]
			if included[name] {
				continue
			}
			snippet, ok := p.snippets[snippetKey{name, language}]
			if !ok {
				return "", fmt.Errorf("line %d: unknown %v snippet %q", i+1, language, name)
			}
			included[name] = true
			expanded, err := p.expand(snippet, language, included, depth+1)
			if err != nil {
				return "", fmt.Errorf("snippet %q: %w", name, err)
			}
			out = append(out, expanded)
		case AnnotationTypeTexture:
			out = append(out, textureDecl(language, *a.Group, *a.Binding, a.Args[0], a.Depth))
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

// textureDecl renders the declaration of a sampled texture in a dialect.
func textureDecl(language gpu.ShadingLanguage, group, binding int, name string, depth bool) string {
	if language == gpu.LanguageWGSL {
		texType, samplerType := "texture_2d<f32>", "sampler"
		if depth {
			texType, samplerType = "texture_depth_2d", "sampler_comparison"
		}
		return fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;\n@group(%d) @binding(%d) var %s%s: %s;",
			group, binding, name, texType, group, binding+1, name, samplerSuffix, samplerType)
	}
	if depth {
		return fmt.Sprintf("uniform sampler2DShadow %s;", name)
	}
	return fmt.Sprintf("uniform sampler2D %s;", name)
}

// shadowSnippet generates the shadow map declarations and the unrolled per-slot lookups. Shadow
// maps are sampled through separate 2D textures since neither dialect can index an array of
// samplers with a runtime value.
func shadowSnippet(language gpu.ShadingLanguage) string {
	var sb strings.Builder
	sb.WriteString("//@oxy:include lights\n")
	for i := 0; i < MaxShadowMaps; i++ {
		sb.WriteString(textureDecl(language, shadowGroup, shadowFirstBinding+2*i, ShadowMapName(i), true))
		sb.WriteByte('\n')
	}

	if language == gpu.LanguageWGSL {
		sb.WriteString("\nfn shadow_sample(slot: i32, uv: vec2f, depth: f32) -> f32 {\n    var r = 1.0;\n    switch slot {\n")
		for i := 0; i < MaxShadowMaps; i++ {
			fmt.Fprintf(&sb, "        case %d: { r = textureSampleCompareLevel(%s, %s%s, uv, depth); }\n", i, ShadowMapName(i), ShadowMapName(i), samplerSuffix)
		}
		sb.WriteString("        default: {}\n    }\n    return r;\n}\n")
		sb.WriteString("\nfn shadow_texel(slot: i32) -> vec2f {\n    var d = vec2u(1u, 1u);\n    switch slot {\n")
		for i := 0; i < MaxShadowMaps; i++ {
			fmt.Fprintf(&sb, "        case %d: { d = textureDimensions(%s); }\n", i, ShadowMapName(i))
		}
		sb.WriteString("        default: {}\n    }\n    return 1.0 / vec2f(d);\n}\n")
		sb.WriteString(`
fn shadow_factor(slot: i32, world: vec3f) -> f32 {
    let p = lights.light_space[slot] * vec4f(world, 1.0);
    let ndc = p.xyz / p.w;
    let uv = vec2f(ndc.x * 0.5 + 0.5, 0.5 - ndc.y * 0.5);
    let depth = ndc.z * 0.5 + 0.5 - lights.shadow_bias;
    if (uv.x < 0.0 || uv.x > 1.0 || uv.y < 0.0 || uv.y > 1.0 || depth > 1.0) {
        return 1.0;
    }
    let texel = shadow_texel(slot);
    var sum = 0.0;
    for (var x = -1; x <= 1; x++) {
        for (var y = -1; y <= 1; y++) {
            sum += shadow_sample(slot, uv + vec2f(f32(x), f32(y)) * texel, depth);
        }
    }
    return sum / 9.0;
}
`)
		return sb.String()
	}

	sb.WriteString("\nfloat shadow_sample(int slot, vec3 coord) {\n")
	for i := 0; i < MaxShadowMaps; i++ {
		fmt.Fprintf(&sb, "    if (slot == %d) return texture(%s, coord);\n", i, ShadowMapName(i))
	}
	sb.WriteString("    return 1.0;\n}\n")
	sb.WriteString("\nvec2 shadow_texel(int slot) {\n")
	for i := 0; i < MaxShadowMaps; i++ {
		fmt.Fprintf(&sb, "    if (slot == %d) return 1.0 / vec2(textureSize(%s, 0));\n", i, ShadowMapName(i))
	}
	sb.WriteString("    return vec2(1.0);\n}\n")
	sb.WriteString(`
float shadow_factor(int slot, vec3 world) {
    vec4 p = light_space[slot] * vec4(world, 1.0);
    vec3 coord = (p.xyz / p.w) * 0.5 + 0.5;
    if (coord.x < 0.0 || coord.x > 1.0 || coord.y < 0.0 || coord.y > 1.0 || coord.z > 1.0) {
        return 1.0;
    }
    coord.z -= shadow_bias;
    vec2 texel = shadow_texel(slot);
    float sum = 0.0;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            sum += shadow_sample(slot, vec3(coord.xy + vec2(x, y) * texel, coord.z));
        }
    }
    return sum / 9.0;
}
`)
	return sb.String()
}
