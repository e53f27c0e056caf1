package shader

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
)

//go:embed assets
var assets embed.FS

const (
	// MaxLights is the number of lights the Lights block holds.
	MaxLights = 4

	// MaxShadowMaps is the number of shadow map texture slots the Lights block and the shadows
	// snippet hold. A point light takes six slots, a directional or spot light one.
	MaxShadowMaps = 8

	// DiffuseTexture is the texture name material textures are bound to.
	DiffuseTexture = "diffuse_texture"
)

// Names of the uniform blocks the renderer fills itself. Every other block a shader declares is a
// material block, filled from the material's values.
const (
	BlockGlobals    = "Globals"
	BlockLights     = "Lights"
	BlockModel      = "Model"
	BlockShadowPass = "ShadowPass"
)

const (
	samplerSuffix      = "_sampler"
	shadowGroup        = 2
	shadowFirstBinding = 2
)

// ShadowMapName returns the texture name of a shadow map slot.
func ShadowMapName(slot int) string {
	return fmt.Sprintf("shadow_map_%d", slot)
}

// IsFrameBlock reports whether a block is filled by the renderer rather than by a material.
func IsFrameBlock(name string) bool {
	switch name {
	case BlockGlobals, BlockLights, BlockModel, BlockShadowPass:
		return true
	}
	return false
}

// isInstancedAttribute reports whether a vertex input advances per instance.
func isInstancedAttribute(name string) bool {
	return name == "model_transform"
}

func mustAsset(name string) string {
	data, err := assets.ReadFile("assets/" + name)
	if err != nil {
		panic(fmt.Sprintf("shader: missing embedded asset %q: %v", name, err))
	}
	return string(data)
}

func builtin(name string, defaults map[string]any, required ...string) Shader {
	return NewShader(name,
		WithSource(gpu.LanguageGLSL, mustAsset(name+".vert.glsl"), mustAsset(name+".frag.glsl")),
		WithSource(gpu.LanguageWGSL, mustAsset(name+".wgsl"), ""),
		WithDefaults(defaults),
		WithRequired(required...),
	)
}

func phongDefaults() map[string]any {
	return map[string]any{
		"ambient":     float32(0),
		"diffusivity": float32(1),
		"specularity": float32(1),
		"smoothness":  float32(40),
	}
}

var builtins = map[string]func() Shader{
	"basic": sync.OnceValue(func() Shader {
		return builtin("basic", nil, "color")
	}),
	"phong": sync.OnceValue(func() Shader {
		return builtin("phong", phongDefaults(), "color")
	}),
	"textured_phong": sync.OnceValue(func() Shader {
		return builtin("textured_phong", phongDefaults(), "color")
	}),
	"fake_bump": sync.OnceValue(func() Shader {
		return builtin("fake_bump", phongDefaults(), "color")
	}),
	"depth": sync.OnceValue(func() Shader {
		return builtin("depth", nil)
	}),
	"funny": sync.OnceValue(func() Shader {
		return builtin("funny", nil)
	}),
}

// BuiltIn returns a built-in shader by name. Every call with the same name returns the same
// Shader, so programs are compiled once per context no matter how many materials use it.
// It panics on an unknown name.
//
// Parameters:
//   - name: one of BuiltInNames
//
// Returns:
//   - Shader: the shared built-in shader
func BuiltIn(name string) Shader {
	f, ok := builtins[name]
	if !ok {
		panic(fmt.Sprintf("shader: unknown built-in %q", name))
	}
	return f()
}

// BuiltInNames lists the built-in shader names.
func BuiltInNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Basic draws every instance in the flat color of its material.
func Basic() Shader { return BuiltIn("basic") }

// Phong is Blinn-Phong shading with up to MaxLights lights and PCF-filtered shadows.
func Phong() Shader { return BuiltIn("phong") }

// TexturedPhong is Phong with the material color modulated by diffuse_texture.
func TexturedPhong() Shader { return BuiltIn("textured_phong") }

// FakeBumpMap is TexturedPhong that also perturbs the normal by the texture color.
func FakeBumpMap() Shader { return BuiltIn("fake_bump") }

// Depth transforms by the ShadowPass matrix and writes depth only; the renderer draws the shadow
// pass with it.
func Depth() Shader { return BuiltIn("depth") }

// Funny colors a non-instanced shape by texture coordinate and animation time.
func Funny() Shader { return BuiltIn("funny") }
