package shader

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
)

// stageSources holds the source of one dialect. WGSL keeps both entry points in vertex.
type stageSources struct {
	vertex   string
	fragment string
	// paths are read at construction when set instead of the inline source.
	vertexPath   string
	fragmentPath string
}

// shader is the implementation of the Shader interface.
// It holds the pre-processed source of every dialect and the reflected interface they share.
type shader struct {
	*resource.Tracker

	key         string
	raw         map[gpu.ShadingLanguage]stageSources
	sources     map[gpu.ShadingLanguage]stageSources
	reflections map[gpu.ShadingLanguage]Reflection
	primary     gpu.ShadingLanguage
	defaults    map[string]any
	required    []string

	pp PreProcessor
}

// Shader is a GPU program description independent of any context: GLSL and/or WGSL source, the
// uniform blocks, textures and vertex inputs it declares, and the material values it expects.
// Programs are compiled from it lazily per context by a Compiler.
type Shader interface {
	resource.Resource

	// Key retrieves the unique identifier for this shader, used for debug labels and lookups.
	//
	// Returns:
	//   - string: the shader's key
	Key() string

	// Languages lists the dialects this shader has source for.
	//
	// Returns:
	//   - []gpu.ShadingLanguage: the dialects, GLSL first
	Languages() []gpu.ShadingLanguage

	// Source retrieves the pre-processed source of one dialect.
	//
	// Parameters:
	//   - language: the dialect
	//
	// Returns:
	//   - string: the vertex source, or the whole module for WGSL
	//   - string: the fragment source, empty for WGSL
	//   - bool: false if the shader has no source in that dialect
	Source(language gpu.ShadingLanguage) (string, string, bool)

	// Reflection retrieves the reflected interface of one dialect.
	//
	// Parameters:
	//   - language: the dialect
	//
	// Returns:
	//   - Reflection: blocks, textures, attributes and entry points
	//   - bool: false if the shader has no source in that dialect
	Reflection(language gpu.ShadingLanguage) (Reflection, bool)

	// Blocks retrieves the uniform blocks the shader declares, in declaration order.
	Blocks() []BlockDecl

	// Textures retrieves the sampled textures the shader declares, ordered by texture unit.
	Textures() []TextureDecl

	// Attributes retrieves the vertex inputs the shader declares, ordered by location.
	Attributes() []AttributeDecl

	// Instanced reports whether the shader reads per-instance model transforms. Shapes drawn with
	// an instanced shader are batched into one draw per material; others draw once per instance.
	Instanced() bool

	// MaterialBlocks retrieves the blocks filled from material values, excluding the blocks the
	// renderer fills itself.
	MaterialBlocks() []BlockDecl

	// Defaults retrieves the material values used when a material does not set a key.
	//
	// Returns:
	//   - map[string]any: a copy of the default values
	Defaults() map[string]any

	// Required retrieves the material keys that have no default and must be set.
	Required() []string

	// ProgramDesc builds the description a context compiles.
	//
	// Parameters:
	//   - language: the dialect of the context
	//
	// Returns:
	//   - gpu.ProgramDesc: sources, entry points, blocks, samplers and attributes
	//   - error: gpu.ErrContextMismatch if the shader has no source in that dialect
	ProgramDesc(language gpu.ShadingLanguage) (gpu.ProgramDesc, error)
}

var _ Shader = &shader{}

// NewShader builds a shader from source. Every dialect is pre-processed and reflected at
// construction; a malformed annotation, an undeclarable interface or two dialects that disagree
// on their blocks, textures or attributes panic, since built-in and application shaders are fixed
// at build time.
//
// Parameters:
//   - key: a unique name, used as the program debug label
//   - options: WithSource/WithSourceFromPath for at least one dialect, plus optional defaults
//
// Returns:
//   - Shader: the reflected shader
func NewShader(key string, options ...ShaderBuilderOption) Shader {
	if key == "" {
		panic("shader: empty key")
	}
	s := &shader{
		Tracker:     resource.NewTracker(),
		key:         key,
		raw:         make(map[gpu.ShadingLanguage]stageSources),
		sources:     make(map[gpu.ShadingLanguage]stageSources),
		reflections: make(map[gpu.ShadingLanguage]Reflection),
		defaults:    make(map[string]any),
	}
	for _, option := range options {
		option(s)
	}
	if len(s.raw) == 0 {
		panic(fmt.Sprintf("shader %q: no source", key))
	}
	if s.pp == nil {
		s.pp = defaultPreProcessor()
	}

	for _, lang := range s.Languages() {
		if err := s.load(lang); err != nil {
			panic(fmt.Sprintf("shader %q (%v): %v", key, lang, err))
		}
	}

	langs := s.Languages()
	s.primary = langs[0]
	for _, lang := range langs[1:] {
		if err := compareReflections(s.reflections[s.primary], s.reflections[lang]); err != nil {
			panic(fmt.Sprintf("shader %q: dialects disagree: %v", key, err))
		}
	}
	return s
}

func (s *shader) load(lang gpu.ShadingLanguage) error {
	raw := s.raw[lang]
	var err error
	if raw.vertexPath != "" {
		if raw.vertex, err = readSource(raw.vertexPath); err != nil {
			return err
		}
	}
	if raw.fragmentPath != "" {
		if raw.fragment, err = readSource(raw.fragmentPath); err != nil {
			return err
		}
	}

	var processed stageSources
	var refl Reflection
	switch lang {
	case gpu.LanguageGLSL:
		if raw.vertex == "" || raw.fragment == "" {
			return fmt.Errorf("GLSL needs a vertex and a fragment source")
		}
		if processed.vertex, err = s.pp.Process(raw.vertex, lang); err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		if processed.fragment, err = s.pp.Process(raw.fragment, lang); err != nil {
			return fmt.Errorf("fragment: %w", err)
		}
		refl, err = reflectGLSL(processed.vertex, processed.fragment)
	case gpu.LanguageWGSL:
		if raw.vertex == "" || raw.fragment != "" {
			return fmt.Errorf("WGSL needs one module holding both entry points")
		}
		if processed.vertex, err = s.pp.Process(raw.vertex, lang); err != nil {
			return err
		}
		refl, err = reflectWGSL(processed.vertex)
	default:
		return fmt.Errorf("unsupported language %v", lang)
	}
	if err != nil {
		return err
	}
	s.sources[lang] = processed
	s.reflections[lang] = refl
	return nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Languages() []gpu.ShadingLanguage {
	langs := make([]gpu.ShadingLanguage, 0, len(s.raw))
	for lang := range s.raw {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

func (s *shader) Source(language gpu.ShadingLanguage) (string, string, bool) {
	src, ok := s.sources[language]
	return src.vertex, src.fragment, ok
}

func (s *shader) Reflection(language gpu.ShadingLanguage) (Reflection, bool) {
	r, ok := s.reflections[language]
	return r, ok
}

func (s *shader) Blocks() []BlockDecl {
	return s.reflections[s.primary].Blocks
}

func (s *shader) Textures() []TextureDecl {
	return s.reflections[s.primary].Textures
}

func (s *shader) Attributes() []AttributeDecl {
	return s.reflections[s.primary].Attributes
}

func (s *shader) Instanced() bool {
	for _, a := range s.Attributes() {
		if a.Instanced {
			return true
		}
	}
	return false
}

func (s *shader) MaterialBlocks() []BlockDecl {
	out := make([]BlockDecl, 0)
	for _, b := range s.Blocks() {
		if !IsFrameBlock(b.Name) {
			out = append(out, b)
		}
	}
	return out
}

func (s *shader) Defaults() map[string]any {
	out := make(map[string]any, len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	return out
}

func (s *shader) Required() []string {
	return append([]string(nil), s.required...)
}

func (s *shader) ProgramDesc(language gpu.ShadingLanguage) (gpu.ProgramDesc, error) {
	refl, ok := s.reflections[language]
	if !ok {
		return gpu.ProgramDesc{}, fmt.Errorf("shader %q has no %v source: %w", s.key, language, gpu.ErrContextMismatch)
	}
	src := s.sources[language]
	desc := gpu.ProgramDesc{
		Label:          s.key,
		Language:       language,
		VertexSource:   src.vertex,
		FragmentSource: src.fragment,
		VertexEntry:    refl.VertexEntry,
		FragmentEntry:  refl.FragmentEntry,
	}
	for _, b := range refl.Blocks {
		desc.Blocks = append(desc.Blocks, gpu.BlockBinding{
			Name:    b.Name,
			Size:    ubo.MustComputeLayout(b.Fields).Size,
			Group:   b.Group,
			Binding: b.Binding,
		})
	}
	for _, t := range refl.Textures {
		desc.Samplers = append(desc.Samplers, gpu.SamplerBinding{
			Name:           t.Name,
			Unit:           t.Unit,
			Depth:          t.Depth,
			Group:          t.Group,
			Binding:        t.Binding,
			SamplerBinding: t.SamplerBinding,
		})
	}
	for _, a := range refl.Attributes {
		desc.Attributes = append(desc.Attributes, gpu.AttributeBinding{
			Name:       a.Name,
			Location:   a.Location,
			Components: a.Components,
			Instanced:  a.Instanced,
		})
	}
	return desc, nil
}
