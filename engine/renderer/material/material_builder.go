package material

import "github.com/Carmen-Shannon/oxy-tiny/engine/texture"

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithLabel is an option builder that sets the name used in logs. Defaults to the shader key.
//
// Parameters:
//   - label: the material name
//
// Returns:
//   - MaterialBuilderOption: a function that applies the label option to a material
func WithLabel(label string) MaterialBuilderOption {
	return func(m *material) {
		m.label = label
	}
}

// WithValue is an option builder that sets one uniform value. A texture.Texture value binds the
// texture to the sampler of that name instead.
//
// Parameters:
//   - key: the uniform field or sampler name
//   - value: the value
//
// Returns:
//   - MaterialBuilderOption: a function that applies the value to a material
func WithValue(key string, value any) MaterialBuilderOption {
	return func(m *material) {
		m.set(key, value)
	}
}

// WithValues is an option builder that sets several uniform values at once.
//
// Parameters:
//   - values: field name to value
//
// Returns:
//   - MaterialBuilderOption: a function that applies the values to a material
func WithValues(values map[string]any) MaterialBuilderOption {
	return func(m *material) {
		for k, v := range values {
			m.set(k, v)
		}
	}
}

// WithTexture is an option builder that binds a texture to a sampler name.
//
// Parameters:
//   - name: the sampler name, e.g. "diffuse_texture"
//   - tex: the texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture to a material
func WithTexture(name string, tex texture.Texture) MaterialBuilderOption {
	return func(m *material) {
		m.textures[name] = tex
	}
}
