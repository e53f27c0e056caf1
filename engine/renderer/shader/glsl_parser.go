package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
)

var (
	// glslBlockRegex matches std140 uniform blocks and captures the block name and body, e.g.
	// layout(std140) uniform Globals { mat4 projection_transform; ... };
	glslBlockRegex = regexp.MustCompile(`layout\s*\(\s*std140\s*\)\s*uniform\s+(\w+)\s*\{([^}]*)\}\s*(\w*)\s*;`)

	// glslMemberRegex matches one block member with an optional precision qualifier and array
	// length
	glslMemberRegex = regexp.MustCompile(`^(?:(?:highp|mediump|lowp)\s+)?(\w+)\s+(\w+)\s*(?:\[\s*(\d+)\s*\])?$`)

	// glslUniformRegex matches free-standing uniform declarations
	glslUniformRegex = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:highp|mediump|lowp)\s+)?(\w+)\s+(\w+)\s*(\[[^\]]*\])?\s*;`)

	// glslAttributeRegex matches explicitly located vertex inputs, e.g.
	// layout(location = 3) in mat4 model_transform;
	glslAttributeRegex = regexp.MustCompile(`layout\s*\(\s*location\s*=\s*(\d+)\s*\)\s*in\s+(\w+)\s+(\w+)\s*;`)

	// glslLooseInputRegex matches vertex inputs without an explicit location
	glslLooseInputRegex = regexp.MustCompile(`(?m)^\s*in\s+(\w+)\s+(\w+)\s*;`)
)

// glslUniformTypes maps GLSL member types to uniform block field types.
var glslUniformTypes = map[string]ubo.Type{
	"float": ubo.TypeFloat,
	"int":   ubo.TypeInt,
	"uint":  ubo.TypeUint,
	"bool":  ubo.TypeBool,
	"vec2":  ubo.TypeVec2,
	"vec3":  ubo.TypeVec3,
	"vec4":  ubo.TypeVec4,
	"ivec4": ubo.TypeIVec4,
	"mat3":  ubo.TypeMat3,
	"mat4":  ubo.TypeMat4,
}

// reflectGLSL extracts the uniform blocks, samplers and vertex inputs of a GLSL program.
// Every uniform must live in a std140 block except sampler2D and sampler2DShadow, and every
// vertex input needs an explicit location so both dialects bind attributes identically.
//
// Parameters:
//   - vertex: the pre-processed vertex stage
//   - fragment: the pre-processed fragment stage
//
// Returns:
//   - Reflection: the reflected interface
//   - error: an error for an unsupported declaration
func reflectGLSL(vertex, fragment string) (Reflection, error) {
	r := Reflection{Language: gpu.LanguageGLSL, VertexEntry: "main", FragmentEntry: "main"}

	for _, stage := range []struct {
		name   string
		source string
	}{{"vertex", vertex}, {"fragment", fragment}} {
		cleaned := stripComments(stage.source)

		for _, m := range glslBlockRegex.FindAllStringSubmatch(cleaned, -1) {
			if m[3] != "" {
				return r, fmt.Errorf("%s: block %q must not have an instance name", stage.name, m[1])
			}
			fields, err := glslBlockFields(m[2])
			if err != nil {
				return r, fmt.Errorf("%s: block %q: %w", stage.name, m[1], err)
			}
			if err := r.addBlock(BlockDecl{Name: m[1], Fields: fields}); err != nil {
				return r, fmt.Errorf("%s: %w", stage.name, err)
			}
		}

		for _, m := range glslUniformRegex.FindAllStringSubmatch(cleaned, -1) {
			var depth bool
			switch m[1] {
			case "sampler2D":
			case "sampler2DShadow":
				depth = true
			default:
				return r, fmt.Errorf("%s: uniform %q of type %s is outside a uniform block", stage.name, m[2], m[1])
			}
			if m[3] != "" {
				return r, fmt.Errorf("%s: sampler arrays are not supported (%s)", stage.name, m[2])
			}
			if err := r.addTexture(TextureDecl{Name: m[2], Depth: depth}); err != nil {
				return r, fmt.Errorf("%s: %w", stage.name, err)
			}
		}

		if stage.name != "vertex" {
			continue
		}
		if m := glslLooseInputRegex.FindStringSubmatch(cleaned); m != nil {
			return r, fmt.Errorf("vertex input %q has no explicit location", m[2])
		}
		for _, m := range glslAttributeRegex.FindAllStringSubmatch(cleaned, -1) {
			loc, _ := strconv.Atoi(m[1])
			comps, ok := attributeComponents[m[2]]
			if !ok {
				return r, fmt.Errorf("vertex input %q has unsupported type %q", m[3], m[2])
			}
			r.Attributes = append(r.Attributes, AttributeDecl{Name: m[3], Location: loc, Components: comps, Instanced: isInstancedAttribute(m[3])})
		}
	}
	return r, nil
}

// glslBlockFields parses the member list of a block body.
func glslBlockFields(body string) ([]ubo.Field, error) {
	var fields []ubo.Field
	for _, decl := range strings.Split(body, ";") {
		decl = strings.Join(strings.Fields(decl), " ")
		if decl == "" {
			continue
		}
		m := glslMemberRegex.FindStringSubmatch(decl)
		if m == nil {
			return nil, fmt.Errorf("cannot parse member %q", decl)
		}
		t, ok := glslUniformTypes[m[1]]
		if !ok {
			return nil, fmt.Errorf("member %q has unsupported type %q", m[2], m[1])
		}
		length := 0
		if m[3] != "" {
			length, _ = strconv.Atoi(m[3])
		}
		fields = append(fields, ubo.Field{Name: m[2], Type: t, Length: length})
	}
	return fields, nil
}
