package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
)

// wgslUniformTypes maps WGSL member types to uniform block field types.
var wgslUniformTypes = map[string]ubo.Type{
	"f32":         ubo.TypeFloat,
	"i32":         ubo.TypeInt,
	"u32":         ubo.TypeUint,
	"vec2f":       ubo.TypeVec2,
	"vec2<f32>":   ubo.TypeVec2,
	"vec3f":       ubo.TypeVec3,
	"vec3<f32>":   ubo.TypeVec3,
	"vec4f":       ubo.TypeVec4,
	"vec4<f32>":   ubo.TypeVec4,
	"vec4i":       ubo.TypeIVec4,
	"vec4<i32>":   ubo.TypeIVec4,
	"mat3x3f":     ubo.TypeMat3,
	"mat3x3<f32>": ubo.TypeMat3,
	"mat4x4f":     ubo.TypeMat4,
	"mat4x4<f32>": ubo.TypeMat4,
}

var (
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex    = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex     = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex skips leading attributes and captures the member name and its type, which may
	// contain commas as in array<T, N>.
	fieldRegex = regexp.MustCompile(`^(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)$`)

	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, address space, name and type of
	// "@group(0) @binding(0) var<uniform> globals: Globals;" and of handle declarations without an
	// address space.
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// matrixColumnRegex matches the per-column vertex inputs of an instanced matrix, e.g.
	// model_transform_2
	matrixColumnRegex = regexp.MustCompile(`^(\w+)_([0-3])$`)
)

// reflectWGSL extracts the uniform blocks, textures, vertex inputs and entry points of a WGSL
// module. Uniform structs are laid out with both the WGSL rules and ubo.ComputeLayout, and must
// agree.
//
// Parameters:
//   - source: the pre-processed WGSL module holding both entry points
//
// Returns:
//   - Reflection: the reflected interface
//   - error: an error for unsupported declarations or a texture without its sampler
func reflectWGSL(source string) (Reflection, error) {
	r := Reflection{Language: gpu.LanguageWGSL}
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)
	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}
	decls := parseBindingDecls(cleaned)
	samplers := make(map[string]bindingDecl)
	for _, d := range decls {
		if d.typeName == "sampler" || d.typeName == "sampler_comparison" {
			samplers[d.name] = d
		}
	}

	for _, d := range decls {
		switch {
		case d.addressSpace == "uniform":
			ps, ok := byName[d.typeName]
			if !ok {
				return r, fmt.Errorf("uniform %q has unknown struct type %q", d.name, d.typeName)
			}
			fields, err := uniformFields(ps)
			if err != nil {
				return r, fmt.Errorf("uniform %q: %w", d.name, err)
			}
			layout, err := ubo.ComputeLayout(fields)
			if err != nil {
				return r, fmt.Errorf("uniform %q: %w", d.name, err)
			}
			native, err := wgslLayout(d.typeName, byName)
			if err != nil {
				return r, fmt.Errorf("uniform %q: %w", d.name, err)
			}
			if native.size != uint64(layout.Size) {
				return r, fmt.Errorf("uniform %q: WGSL size %d differs from block size %d", d.name, native.size, layout.Size)
			}
			if err := r.addBlock(BlockDecl{Name: d.typeName, Fields: fields, Group: d.group, Binding: d.binding}); err != nil {
				return r, err
			}
		case d.addressSpace != "":
			return r, fmt.Errorf("%q: address space %q is not supported", d.name, d.addressSpace)
		case d.typeName == "texture_2d<f32>" || d.typeName == "texture_depth_2d":
			depth := d.typeName == "texture_depth_2d"
			s, ok := samplers[d.name+samplerSuffix]
			if !ok {
				return r, fmt.Errorf("texture %q has no %s%s sampler", d.name, d.name, samplerSuffix)
			}
			if s.group != d.group {
				return r, fmt.Errorf("texture %q and its sampler are in different groups", d.name)
			}
			if depth != (s.typeName == "sampler_comparison") {
				return r, fmt.Errorf("texture %q: depth textures need a sampler_comparison, color textures a sampler", d.name)
			}
			if err := r.addTexture(TextureDecl{Name: d.name, Depth: depth, Group: d.group, Binding: d.binding, SamplerBinding: s.binding}); err != nil {
				return r, err
			}
		case d.typeName == "sampler" || d.typeName == "sampler_comparison":
		default:
			return r, fmt.Errorf("%q: resource type %q is not supported", d.name, d.typeName)
		}
	}

	for _, ps := range structs {
		if !isVertexInputStruct(ps) {
			continue
		}
		attrs, err := vertexAttributes(ps)
		if err != nil {
			return r, fmt.Errorf("struct %s: %w", ps.name, err)
		}
		r.Attributes = append(r.Attributes, attrs...)
	}
	sort.Slice(r.Attributes, func(i, j int) bool {
		return r.Attributes[i].Location < r.Attributes[j].Location
	})

	r.VertexEntry = parseEntryPoint(cleaned, vertexEntryRegex)
	r.FragmentEntry = parseEntryPoint(cleaned, fragmentEntryRegex)
	if r.VertexEntry == "" {
		return r, fmt.Errorf("no @vertex entry point")
	}
	if r.FragmentEntry == "" {
		return r, fmt.Errorf("no @fragment entry point")
	}
	return r, nil
}

// parseBindingDecls extracts all @group(N) @binding(M) variable declarations in source order.
func parseBindingDecls(cleaned string) []bindingDecl {
	matches := bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1)
	decls := make([]bindingDecl, 0, len(matches))
	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		decls = append(decls, bindingDecl{
			group:        group,
			binding:      binding,
			addressSpace: strings.TrimSpace(match[3]),
			name:         strings.TrimSpace(match[4]),
			typeName:     strings.TrimSpace(match[5]),
		})
	}
	return decls
}

// uniformFields converts the members of a uniform struct into block fields.
func uniformFields(ps parsedStruct) ([]ubo.Field, error) {
	fields := make([]ubo.Field, 0, len(ps.fields))
	for _, f := range ps.fields {
		typeName, length := f.typeName, 0
		if strings.HasPrefix(typeName, "array<") && strings.HasSuffix(typeName, ">") {
			inner := typeName[6 : len(typeName)-1]
			parts := strings.SplitN(inner, ",", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("member %q: runtime-sized arrays are not supported", f.name)
			}
			n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil {
				return nil, fmt.Errorf("member %q: invalid array length %q", f.name, parts[1])
			}
			typeName, length = strings.TrimSpace(parts[0]), n
		}
		t, ok := wgslUniformTypes[typeName]
		if !ok {
			return nil, fmt.Errorf("member %q has unsupported type %q", f.name, typeName)
		}
		fields = append(fields, ubo.Field{Name: f.name, Type: t, Length: length})
	}
	return fields, nil
}

// vertexAttributes converts a vertex input struct into attributes. Four consecutive vec4 inputs
// named <name>_0 .. <name>_3 become one 16-component per-instance matrix attribute <name>.
func vertexAttributes(ps parsedStruct) ([]AttributeDecl, error) {
	var attrs []AttributeDecl
	columns := make(map[string]int)
	for _, f := range ps.fields {
		if f.location < 0 {
			continue
		}
		comps, ok := attributeComponents[f.typeName]
		if !ok {
			return nil, fmt.Errorf("input %q has unsupported type %q", f.name, f.typeName)
		}
		if m := matrixColumnRegex.FindStringSubmatch(f.name); m != nil && comps == 4 {
			base, col := m[1], int(m[2][0]-'0')
			if col != columns[base] {
				return nil, fmt.Errorf("matrix input %q: column %d out of order", base, col)
			}
			columns[base]++
			if col == 0 {
				attrs = append(attrs, AttributeDecl{Name: base, Location: f.location, Components: 16, Instanced: isInstancedAttribute(base)})
			}
			continue
		}
		attrs = append(attrs, AttributeDecl{Name: f.name, Location: f.location, Components: comps, Instanced: isInstancedAttribute(f.name)})
	}
	for base, n := range columns {
		if n != 4 {
			return nil, fmt.Errorf("matrix input %q has %d of 4 columns", base, n)
		}
	}
	return attrs, nil
}

// parseEntryPoint extracts the first entry point name matched by re, or "".
func parseEntryPoint(cleaned string, re *regexp.Regexp) string {
	if match := re.FindStringSubmatch(cleaned); match != nil {
		return match[1]
	}
	return ""
}

// parseStructBlocks returns the structs of a comment-free module in source order. Members with
// no @location get location -1.
func parseStructBlocks(source string) []parsedStruct {
	var structs []parsedStruct
	for _, m := range structBlockRegex.FindAllStringSubmatch(source, -1) {
		ps := parsedStruct{name: m[1]}
		for _, member := range splitAtTopLevelCommas(m[2]) {
			if f, ok := parseMember(strings.TrimSpace(member)); ok {
				ps.fields = append(ps.fields, f)
			}
		}
		structs = append(structs, ps)
	}
	return structs
}

// parseMember parses one "@attr(...) name: type" struct member.
func parseMember(member string) (parsedField, bool) {
	fm := fieldRegex.FindStringSubmatch(member)
	if member == "" || fm == nil {
		return parsedField{}, false
	}
	f := parsedField{
		name:      fm[1],
		typeName:  strings.TrimSpace(fm[2]),
		location:  -1,
		isBuiltin: builtinRegex.MatchString(member),
	}
	if lm := locationRegex.FindStringSubmatch(member); lm != nil {
		f.location, _ = strconv.Atoi(lm[1])
	}
	return f, true
}
