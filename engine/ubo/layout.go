// Package ubo computes uniform block memory layouts and shares them, together with their binding
// points and GPU buffers, across every shader that declares a block of the same name.
//
// The layout follows std140: scalars align to 4, vec2 to 8, vec3/vec4 and matrix columns to 16,
// and array elements are rounded up to a 16-byte stride. Fields are laid out in declaration order,
// which must match the order of the block in the shader source.
package ubo

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
)

// MaxBlockSize is the largest block the engine lays out, the guaranteed minimum of
// GL_MAX_UNIFORM_BLOCK_SIZE and of WebGPU's maxUniformBufferBindingSize.
const MaxBlockSize = 16384

// arrayStride is the minimum element stride of a uniform array.
const arrayStride = 16

// FieldLayout is the computed placement of one field.
type FieldLayout struct {
	Field
	// Offset is the byte offset of the field from the start of the block.
	Offset int
	// Size is the number of bytes the field occupies, padding between array elements included.
	Size int
	// Stride is the byte distance between array elements, 0 for non-array fields.
	Stride int
	// Align is the alignment the field's offset was rounded to.
	Align int
}

// Layout is the computed layout of a block.
type Layout struct {
	Fields []FieldLayout
	// Size is the total block length, a multiple of MaxAlign.
	Size int
	// MaxAlign is the largest alignment among the fields.
	MaxAlign int

	index map[string]int
}

// ComputeLayout lays out fields in declaration order.
//
// Parameters:
//   - fields: the ordered block members
//
// Returns:
//   - Layout: the per-field offsets and the total size
//   - error: an error wrapping gpu.ErrLayout for an empty list, an unknown type tag, a negative
//     array length, a duplicate name, or a block larger than MaxBlockSize
func ComputeLayout(fields []Field) (Layout, error) {
	if len(fields) == 0 {
		return Layout{}, fmt.Errorf("block has no fields: %w", gpu.ErrLayout)
	}

	l := Layout{
		Fields: make([]FieldLayout, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	offset := 0
	for _, f := range fields {
		if f.Name == "" {
			return Layout{}, fmt.Errorf("field %d has no name: %w", len(l.Fields), gpu.ErrLayout)
		}
		if _, dup := l.index[f.Name]; dup {
			return Layout{}, fmt.Errorf("duplicate field %q: %w", f.Name, gpu.ErrLayout)
		}
		rule, ok := typeRules[f.Type]
		if !ok {
			return Layout{}, fmt.Errorf("field %q has unknown type %v: %w", f.Name, f.Type, gpu.ErrLayout)
		}
		if f.Length < 0 {
			return Layout{}, fmt.Errorf("field %q has negative length %d: %w", f.Name, f.Length, gpu.ErrLayout)
		}

		fl := FieldLayout{Field: f, Align: rule.align, Size: rule.size}
		if f.Length > 0 {
			fl.Stride = common.AlignUp(rule.size, arrayStride)
			fl.Align = common.AlignUp(rule.align, arrayStride)
			fl.Size = fl.Stride * f.Length
		}

		offset = common.AlignUp(offset, fl.Align)
		fl.Offset = offset
		offset += fl.Size
		l.MaxAlign = max(l.MaxAlign, fl.Align)

		if offset > MaxBlockSize {
			return Layout{}, fmt.Errorf("block exceeds %d bytes at field %q: %w", MaxBlockSize, f.Name, gpu.ErrLayout)
		}

		l.index[f.Name] = len(l.Fields)
		l.Fields = append(l.Fields, fl)
	}
	l.Size = common.AlignUp(offset, l.MaxAlign)
	if l.Size > MaxBlockSize {
		return Layout{}, fmt.Errorf("block size %d exceeds %d bytes: %w", l.Size, MaxBlockSize, gpu.ErrLayout)
	}
	return l, nil
}

// MustComputeLayout is ComputeLayout for static block declarations; it panics on error.
func MustComputeLayout(fields []Field) Layout {
	l, err := ComputeLayout(fields)
	if err != nil {
		panic(fmt.Sprintf("ubo: %v", err))
	}
	return l
}

// Field returns the layout of a named field.
func (l Layout) Field(name string) (FieldLayout, bool) {
	i, ok := l.index[name]
	if !ok {
		return FieldLayout{}, false
	}
	return l.Fields[i], true
}

// Names returns the field names in declaration order.
func (l Layout) Names() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// Signature is a canonical string of the declared field list; two layouts with the same signature
// are identical.
func (l Layout) Signature() string {
	parts := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		parts[i] = f.Field.String()
	}
	return strings.Join(parts, ";")
}

// Unknown returns the keys of values that name no field of the layout, in no particular order.
func (l Layout) Unknown(values map[string]any) []string {
	var out []string
	for k := range values {
		if _, ok := l.index[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
