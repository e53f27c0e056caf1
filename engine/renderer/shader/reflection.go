package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
)

// BlockDecl is a uniform block declared by a shader.
type BlockDecl struct {
	Name   string
	Fields []ubo.Field
	// Group and Binding are the WGSL bind slot; zero for GLSL.
	Group   int
	Binding int
}

// Signature returns the canonical field list used to compare declarations.
func (b BlockDecl) Signature() string {
	parts := make([]string, len(b.Fields))
	for i, f := range b.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ";")
}

// TextureDecl is a sampled texture declared by a shader. Unit is the texture unit the texture is
// read from, assigned in declaration order.
type TextureDecl struct {
	Name  string
	Unit  int
	Depth bool
	// Group, Binding and SamplerBinding are the WGSL bind slots of the texture and its sampler.
	Group          int
	Binding        int
	SamplerBinding int
}

// AttributeDecl is a vertex input declared by a shader.
type AttributeDecl struct {
	Name       string
	Location   int
	Components int
	Instanced  bool
}

// Reflection is everything the engine needs to know about a program's interface.
type Reflection struct {
	Language      gpu.ShadingLanguage
	Blocks        []BlockDecl
	Textures      []TextureDecl
	Attributes    []AttributeDecl
	VertexEntry   string
	FragmentEntry string
}

// Block looks up a block by name.
func (r Reflection) Block(name string) (BlockDecl, bool) {
	for _, b := range r.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return BlockDecl{}, false
}

func (r *Reflection) addBlock(b BlockDecl) error {
	if prev, ok := r.Block(b.Name); ok {
		if prev.Signature() != b.Signature() {
			return fmt.Errorf("block %q declared as {%s} and {%s}", b.Name, prev.Signature(), b.Signature())
		}
		return nil
	}
	if _, err := ubo.ComputeLayout(b.Fields); err != nil {
		return fmt.Errorf("block %q: %w", b.Name, err)
	}
	r.Blocks = append(r.Blocks, b)
	return nil
}

func (r *Reflection) addTexture(t TextureDecl) error {
	for _, prev := range r.Textures {
		if prev.Name == t.Name {
			if prev.Depth != t.Depth {
				return fmt.Errorf("texture %q declared as both depth and color", t.Name)
			}
			return nil
		}
	}
	t.Unit = len(r.Textures)
	r.Textures = append(r.Textures, t)
	return nil
}

// compareReflections checks that two dialects of one shader declare the same interface.
func compareReflections(a, b Reflection) error {
	if len(a.Blocks) != len(b.Blocks) {
		return fmt.Errorf("%v declares %d blocks, %v declares %d", a.Language, len(a.Blocks), b.Language, len(b.Blocks))
	}
	for _, ab := range a.Blocks {
		bb, ok := b.Block(ab.Name)
		if !ok {
			return fmt.Errorf("block %q missing from %v source", ab.Name, b.Language)
		}
		if ab.Signature() != bb.Signature() {
			return fmt.Errorf("block %q is {%s} in %v and {%s} in %v", ab.Name, ab.Signature(), a.Language, bb.Signature(), b.Language)
		}
	}

	if len(a.Textures) != len(b.Textures) {
		return fmt.Errorf("%v declares %d textures, %v declares %d", a.Language, len(a.Textures), b.Language, len(b.Textures))
	}
	for i := range a.Textures {
		at, bt := a.Textures[i], b.Textures[i]
		if at.Name != bt.Name || at.Depth != bt.Depth {
			return fmt.Errorf("texture unit %d is %q in %v and %q in %v", i, at.Name, a.Language, bt.Name, b.Language)
		}
	}

	if len(a.Attributes) != len(b.Attributes) {
		return fmt.Errorf("%v declares %d attributes, %v declares %d", a.Language, len(a.Attributes), b.Language, len(b.Attributes))
	}
	for _, aa := range a.Attributes {
		found := false
		for _, ba := range b.Attributes {
			if ba.Name == aa.Name {
				if ba.Location != aa.Location || ba.Components != aa.Components {
					return fmt.Errorf("attribute %q is location %d/%d components in %v and %d/%d in %v",
						aa.Name, aa.Location, aa.Components, a.Language, ba.Location, ba.Components, b.Language)
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("attribute %q missing from %v source", aa.Name, b.Language)
		}
	}
	return nil
}

// attributeComponents maps vertex input types of both dialects to their float count.
var attributeComponents = map[string]int{
	"float":     1,
	"vec2":      2,
	"vec3":      3,
	"vec4":      4,
	"mat4":      16,
	"f32":       1,
	"vec2f":     2,
	"vec2<f32>": 2,
	"vec3f":     3,
	"vec3<f32>": 3,
	"vec4f":     4,
	"vec4<f32>": 4,
}
