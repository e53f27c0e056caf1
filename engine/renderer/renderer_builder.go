package renderer

import (
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/texture"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/go-gl/mathgl/mgl32"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLayoutRegistry shares a uniform block registry between renderers, so every program they
// compile agrees on block layouts and binding points.
//
// Parameters:
//   - registry: the registry to compile against
//
// Returns:
//   - RendererBuilderOption: a function that applies the registry option to a renderer
func WithLayoutRegistry(registry ubo.Registry) RendererBuilderOption {
	return func(r *renderer) {
		r.registry = registry
	}
}

// WithDepthShader replaces the built-in depth shader used by the shadow pass. The shader must
// read the ShadowPass block.
//
// Parameters:
//   - s: the depth-only shader
//
// Returns:
//   - RendererBuilderOption: a function that applies the depth shader option to a renderer
func WithDepthShader(s shader.Shader) RendererBuilderOption {
	return func(r *renderer) {
		r.depthShader = s
	}
}

// WithTextureLoader sets the loader material textures are decoded on. The renderer does not close
// a loader it was given.
//
// Parameters:
//   - l: the loader
//
// Returns:
//   - RendererBuilderOption: a function that applies the loader option to a renderer
func WithTextureLoader(l texture.Loader) RendererBuilderOption {
	return func(r *renderer) {
		r.loader = l
		r.ownsLoader = false
	}
}

// WithMaxLights limits the number of enabled lights written to the Lights block. Values outside
// 1..light.MaxLights fall back to light.MaxLights.
func WithMaxLights(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.maxLights = n
	}
}

// WithClearColor sets the color BeginFrame clears the surface to.
func WithClearColor(c mgl32.Vec4) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithShadowFocus pins the point directional shadow frustums are centered on. By default they
// follow the camera's look-at point.
func WithShadowFocus(focus mgl32.Vec3) RendererBuilderOption {
	return func(r *renderer) {
		r.shadowFocus = &focus
	}
}

// WithShadowBias sets the depth bias applied to shadow comparisons.
func WithShadowBias(bias float32) RendererBuilderOption {
	return func(r *renderer) {
		r.shadowBias = bias
	}
}
