package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// maxStructNesting bounds struct-in-struct resolution so a self-referencing declaration fails
// instead of recursing forever.
const maxStructNesting = 8

// wgslLayout returns the size and alignment of a type in the uniform address space.
//
// Scalars, vectors and matrices follow the WGSL alignment table. Structs are laid out member by
// member and rounded up to their largest alignment; a struct used as a member is aligned to 16
// in the uniform address space. Fixed-size arrays use a stride rounded up to 16. Runtime-sized
// arrays cannot appear in a uniform block and are rejected.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "vec3f", "mat4x4<f32>", "array<vec4f, 4>" or a struct name
//   - structs: the module's structs by name
//
// Returns:
//   - wgslTypeLayout: the size and alignment in bytes
//   - error: an error for unknown, runtime-sized or too deeply nested types
func wgslLayout(typeName string, structs map[string]parsedStruct) (wgslTypeLayout, error) {
	return wgslLayoutAt(typeName, structs, 0)
}

func wgslLayoutAt(typeName string, structs map[string]parsedStruct, depth int) (wgslTypeLayout, error) {
	if depth > maxStructNesting {
		return wgslTypeLayout{}, fmt.Errorf("type %q nests too deeply", typeName)
	}
	if cols, rows, ok := wgslShape(typeName); ok {
		column := vectorLayout(rows)
		if cols == 1 {
			return column, nil
		}
		stride := roundUpAlign(column.align, column.size)
		return wgslTypeLayout{size: uint64(cols) * stride, align: column.align}, nil
	}
	if elem, count, ok := arrayParts(typeName); ok {
		if count < 0 {
			return wgslTypeLayout{}, fmt.Errorf("runtime-sized %q cannot be a uniform member", typeName)
		}
		el, err := wgslLayoutAt(elem, structs, depth+1)
		if err != nil {
			return wgslTypeLayout{}, err
		}
		stride := roundUpAlign(16, roundUpAlign(el.align, el.size))
		return wgslTypeLayout{size: uint64(count) * stride, align: max(el.align, 16)}, nil
	}
	ps, ok := structs[typeName]
	if !ok {
		return wgslTypeLayout{}, fmt.Errorf("unknown type %q", typeName)
	}
	var offset uint64
	align := uint64(1)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		fl, err := wgslLayoutAt(f.typeName, structs, depth+1)
		if err != nil {
			return wgslTypeLayout{}, fmt.Errorf("%s.%s: %w", typeName, f.name, err)
		}
		if _, nested := structs[f.typeName]; nested {
			fl.align = max(fl.align, 16)
			fl.size = roundUpAlign(16, fl.size)
		}
		offset = roundUpAlign(fl.align, offset) + fl.size
		align = max(align, fl.align)
	}
	return wgslTypeLayout{size: roundUpAlign(align, offset), align: align}, nil
}

// wgslShape recognizes 32-bit scalar, vector and matrix types. A scalar is 1x1, vecN is 1xN and
// matCxR is CxR.
func wgslShape(typeName string) (cols, rows int, ok bool) {
	switch typeName {
	case "f32", "i32", "u32", "bool":
		return 1, 1, true
	}
	name := typeName
	if i := strings.IndexByte(name, '<'); i >= 0 {
		if !strings.HasSuffix(name, ">") {
			return 0, 0, false
		}
		switch name[i+1 : len(name)-1] {
		case "f32", "i32", "u32":
		default:
			return 0, 0, false
		}
		name = name[:i]
	} else if n := len(name); n > 0 && strings.ContainsRune("fiu", rune(name[n-1])) {
		name = name[:n-1]
	}
	digit := func(s string) (int, bool) {
		if len(s) != 1 || s[0] < '2' || s[0] > '4' {
			return 0, false
		}
		return int(s[0] - '0'), true
	}
	if rest, found := strings.CutPrefix(name, "vec"); found {
		n, ok := digit(rest)
		return 1, n, ok
	}
	if rest, found := strings.CutPrefix(name, "mat"); found {
		c, r, found := strings.Cut(rest, "x")
		if !found {
			return 0, 0, false
		}
		cn, ok1 := digit(c)
		rn, ok2 := digit(r)
		return cn, rn, ok1 && ok2
	}
	return 0, 0, false
}

// vectorLayout is the size and alignment of an n-component 32-bit vector; n == 1 is a scalar.
func vectorLayout(n int) wgslTypeLayout {
	switch n {
	case 1:
		return wgslTypeLayout{size: 4, align: 4}
	case 2:
		return wgslTypeLayout{size: 8, align: 8}
	case 3:
		return wgslTypeLayout{size: 12, align: 16}
	default:
		return wgslTypeLayout{size: 16, align: 16}
	}
}

// arrayParts splits array<T, N> into T and N. count is -1 for array<T>.
func arrayParts(typeName string) (elem string, count int, ok bool) {
	inner, found := strings.CutPrefix(typeName, "array<")
	if !found || !strings.HasSuffix(inner, ">") {
		return "", 0, false
	}
	inner = inner[:len(inner)-1]
	i := strings.LastIndexByte(inner, ',')
	if i < 0 || strings.Count(inner[i:], ">") > 0 {
		return strings.TrimSpace(inner), -1, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(inner[i+1:]))
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return strings.TrimSpace(inner[:i]), n, true
}

// roundUpAlign rounds value up to a multiple of alignment, a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// stripComments blanks out // and /* */ comments, keeping line breaks so positions in error
// messages stay meaningful. Block comments nest as in WGSL.
func stripComments(source string) string {
	out := []byte(source)
	depth := 0
	for i := 0; i < len(out); i++ {
		next := byte(0)
		if i+1 < len(out) {
			next = out[i+1]
		}
		switch {
		case out[i] == '/' && next == '*':
			depth++
			out[i], out[i+1] = ' ', ' '
			i++
		case depth > 0 && out[i] == '*' && next == '/':
			depth--
			out[i], out[i+1] = ' ', ' '
			i++
		case depth > 0:
			if out[i] != '\n' {
				out[i] = ' '
			}
		case out[i] == '/' && next == '/':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		}
	}
	return string(out)
}

// isVertexInputStruct reports whether a struct carries @location members and no builtins, which
// separates vertex inputs from stage outputs that include @builtin(position).
func isVertexInputStruct(ps parsedStruct) bool {
	located := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		located = located || f.location >= 0
	}
	return located
}

// splitAtTopLevelCommas splits a struct body at commas outside angle brackets, so array<T, N>
// stays one member.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch {
		case c == '<':
			depth++
		case c == '>' && depth > 0:
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
