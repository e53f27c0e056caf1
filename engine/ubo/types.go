package ubo

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
)

// Type is the tag of a uniform block field.
type Type int

const (
	TypeInvalid Type = iota
	TypeFloat
	TypeInt
	TypeUint
	TypeBool
	TypeVec2
	TypeVec3
	TypeVec4
	TypeIVec4
	TypeMat3
	TypeMat4
)

// typeRule is the std140 base alignment and size of a type. The same numbers hold for the WGSL
// uniform address space, so one layout serves both shader dialects.
type typeRule struct {
	name  string
	align int
	size  int
}

var typeRules = map[Type]typeRule{
	TypeFloat: {"float", 4, 4},
	TypeInt:   {"int", 4, 4},
	TypeUint:  {"uint", 4, 4},
	TypeBool:  {"bool", 4, 4},
	TypeVec2:  {"vec2", 8, 8},
	TypeVec3:  {"vec3", 16, 12},
	TypeVec4:  {"vec4", 16, 16},
	TypeIVec4: {"ivec4", 16, 16},
	TypeMat3:  {"mat3", 16, 48},
	TypeMat4:  {"mat4", 16, 64},
}

var typeNames = map[string]Type{
	"float": TypeFloat,
	"int":   TypeInt,
	"uint":  TypeUint,
	"bool":  TypeBool,
	"vec2":  TypeVec2,
	"vec3":  TypeVec3,
	"vec4":  TypeVec4,
	"ivec4": TypeIVec4,
	"mat3":  TypeMat3,
	"mat4":  TypeMat4,
}

func (t Type) String() string {
	if r, ok := typeRules[t]; ok {
		return r.name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Align returns the std140 base alignment of the type, 0 for an unknown tag.
func (t Type) Align() int {
	return typeRules[t].align
}

// Size returns the std140 size of one value of the type, 0 for an unknown tag.
func (t Type) Size() int {
	return typeRules[t].size
}

// ParseType converts a type tag name into a Type. Matching is case-insensitive so the capitalized
// "Mat4"/"Mat3" spellings used in older block declarations are accepted.
//
// Parameters:
//   - name: the tag name
//
// Returns:
//   - Type: the parsed tag
//   - error: an error wrapping gpu.ErrLayout for an unknown tag
func ParseType(name string) (Type, error) {
	t, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return TypeInvalid, fmt.Errorf("unknown uniform type %q: %w", name, gpu.ErrLayout)
	}
	return t, nil
}

// Field is one declared uniform block member.
type Field struct {
	Name string
	Type Type
	// Length is the array length, 0 for a non-array field.
	Length int
}

// F is shorthand for a non-array Field.
func F(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// A is shorthand for an array Field.
func A(name string, t Type, length int) Field {
	return Field{Name: name, Type: t, Length: length}
}

func (f Field) String() string {
	if f.Length > 0 {
		return fmt.Sprintf("%s %s[%d]", f.Type, f.Name, f.Length)
	}
	return fmt.Sprintf("%s %s", f.Type, f.Name)
}
