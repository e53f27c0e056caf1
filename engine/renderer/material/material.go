package material

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/texture"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/jinzhu/copier"
)

// ErrMissingValue is returned by Resolve when a value the shader requires is neither set on the
// material nor defaulted by the shader.
var ErrMissingValue = errors.New("material value missing")

// material is the implementation of the Material interface. Values and textures never change
// after construction; Override builds a new material.
type material struct {
	label    string
	shader   shader.Shader
	values   map[string]any
	textures map[string]texture.Texture

	// unknown is shared with overrides so each unknown key is reported once per material family.
	unknown *sync.Map
}

// Material pairs a shader with the values of its material blocks and the textures it samples.
type Material interface {
	// Label retrieves the material name used in logs.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Shader retrieves the shader the material is drawn with.
	//
	// Returns:
	//   - shader.Shader: the shader
	Shader() shader.Shader

	// Value retrieves one value set on the material, without shader defaults.
	//
	// Parameters:
	//   - key: the uniform field name
	//
	// Returns:
	//   - any: the value
	//   - bool: false if the material does not set key
	Value(key string) (any, bool)

	// Values retrieves a copy of the values set on the material.
	//
	// Returns:
	//   - map[string]any: field name to value
	Values() map[string]any

	// Texture retrieves the texture bound to a sampler name.
	//
	// Parameters:
	//   - name: the sampler name, e.g. "diffuse_texture"
	//
	// Returns:
	//   - texture.Texture: the texture
	//   - bool: false if no texture is bound to name
	Texture(name string) (texture.Texture, bool)

	// Textures retrieves a copy of the sampler name to texture map.
	Textures() map[string]texture.Texture

	// Override returns a copy of the material with values replaced or added. Texture values are
	// routed to the texture map. The receiver is left unchanged.
	//
	// Parameters:
	//   - values: the values to set
	//
	// Returns:
	//   - Material: the modified copy
	Override(values map[string]any) Material

	// Resolve computes the values of one material block: material values first, shader defaults
	// for the fields the material leaves unset. Keys that name no field of any material block of
	// the shader and no texture are ignored and logged once.
	//
	// Parameters:
	//   - layout: the block layout to fill
	//
	// Returns:
	//   - map[string]any: the values of the block's fields
	//   - error: ErrMissingValue if a required field of the block has no value
	Resolve(layout ubo.Layout) (map[string]any, error)
}

var _ Material = &material{}

// NewMaterial creates a material for a shader.
//
// Parameters:
//   - s: the shader, must not be nil
//   - options: value and texture options
//
// Returns:
//   - Material: the material
func NewMaterial(s shader.Shader, options ...MaterialBuilderOption) Material {
	if s == nil {
		panic("material: NewMaterial requires a shader")
	}
	m := &material{
		label:    s.Key(),
		shader:   s,
		values:   make(map[string]any),
		textures: make(map[string]texture.Texture),
		unknown:  &sync.Map{},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// NewPhong creates a Phong material: a base color and the four shading coefficients.
//
// Parameters:
//   - s: a shader with a PhongMaterial block, e.g. shader.Phong()
//   - color: the RGBA base color
//   - ambient: the ambient coefficient
//   - diffusivity: the diffuse coefficient
//   - specularity: the specular coefficient
//   - smoothness: the specular exponent
//   - options: further value and texture options
//
// Returns:
//   - Material: the material
func NewPhong(s shader.Shader, color mgl32.Vec4, ambient, diffusivity, specularity, smoothness float32, options ...MaterialBuilderOption) Material {
	base := []MaterialBuilderOption{WithValues(map[string]any{
		"color":       color,
		"ambient":     ambient,
		"diffusivity": diffusivity,
		"specularity": specularity,
		"smoothness":  smoothness,
	})}
	return NewMaterial(s, append(base, options...)...)
}

func (m *material) Label() string {
	return m.label
}

func (m *material) Shader() shader.Shader {
	return m.shader
}

func (m *material) Value(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *material) Values() map[string]any {
	return maps.Clone(m.values)
}

func (m *material) Texture(name string) (texture.Texture, bool) {
	t, ok := m.textures[name]
	return t, ok
}

func (m *material) Textures() map[string]texture.Texture {
	return maps.Clone(m.textures)
}

func (m *material) Override(values map[string]any) Material {
	c := &material{
		label:    m.label,
		shader:   m.shader,
		values:   make(map[string]any, len(m.values)+len(values)),
		textures: maps.Clone(m.textures),
		unknown:  m.unknown,
	}
	for k, v := range m.values {
		c.values[k] = cloneValue(v)
	}
	for k, v := range values {
		c.set(k, v)
	}
	return c
}

func (m *material) Resolve(layout ubo.Layout) (map[string]any, error) {
	m.reportUnknown()

	defaults := m.shader.Defaults()
	out := make(map[string]any, len(layout.Fields))
	for _, f := range layout.Fields {
		if v, ok := m.values[f.Name]; ok {
			out[f.Name] = v
		} else if v, ok := defaults[f.Name]; ok {
			out[f.Name] = v
		}
	}

	var missing []string
	for _, r := range m.shader.Required() {
		if _, inBlock := layout.Field(r); !inBlock {
			continue
		}
		if _, ok := out[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("material %q: %w: %v", m.label, ErrMissingValue, missing)
	}
	return out, nil
}

// set stores a value, routing textures to the texture map.
func (m *material) set(key string, v any) {
	if t, ok := v.(texture.Texture); ok {
		m.textures[key] = t
		delete(m.values, key)
		return
	}
	m.values[key] = cloneValue(v)
}

// reportUnknown logs, once per key, values and textures the shader has no use for.
func (m *material) reportUnknown() {
	known := make(map[string]bool)
	for _, b := range m.shader.MaterialBlocks() {
		for _, f := range b.Fields {
			known[f.Name] = true
		}
	}
	for _, t := range m.shader.Textures() {
		known[t.Name] = true
	}

	keys := slices.Collect(maps.Keys(m.values))
	keys = append(keys, slices.Collect(maps.Keys(m.textures))...)
	for _, k := range keys {
		if known[k] {
			continue
		}
		if _, seen := m.unknown.LoadOrStore(k, true); !seen {
			common.LogWarn("material value ignored, shader declares no such uniform",
				"material", m.label, "key", k, "shader", m.shader.Key())
		}
	}
}

// cloneValue copies slice values so a material never aliases a caller's backing array.
func cloneValue(v any) any {
	switch s := v.(type) {
	case []float32:
		return cloneSlice(s)
	case []int32:
		return cloneSlice(s)
	case []mgl32.Vec2:
		return cloneSlice(s)
	case []mgl32.Vec3:
		return cloneSlice(s)
	case []mgl32.Vec4:
		return cloneSlice(s)
	case []mgl32.Mat3:
		return cloneSlice(s)
	case []mgl32.Mat4:
		return cloneSlice(s)
	}
	return v
}

func cloneSlice[T any](s []T) []T {
	out := make([]T, 0, len(s))
	if err := copier.CopyWithOption(&out, s, copier.Option{DeepCopy: true}); err != nil || len(out) != len(s) {
		return slices.Clone(s)
	}
	return out
}
