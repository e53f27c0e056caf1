package ubo

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Encode packs values into a block-sized byte slice at the offsets of the layout. Keys that name
// no field are skipped (see Unknown); fields without a value keep the bytes already in dst.
//
// Parameters:
//   - values: field name to Go value (float32, int32, bool, mgl32 vectors and matrices, or slices
//     of those for array fields)
//   - dst: the previous block bytes to update in place, or nil to start from zeros
//
// Returns:
//   - []byte: the packed block, len == l.Size
//   - error: an error if a value's Go type does not fit its field type or an array overflows
func (l Layout) Encode(values map[string]any, dst []byte) ([]byte, error) {
	if len(dst) != l.Size {
		buf := make([]byte, l.Size)
		copy(buf, dst)
		dst = buf
	}
	for _, f := range l.Fields {
		v, ok := values[f.Name]
		if !ok || v == nil {
			continue
		}
		if err := f.encode(dst, v); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return dst, nil
}

func (f FieldLayout) encode(dst []byte, v any) error {
	if f.Length == 0 {
		return putValue(dst[f.Offset:f.Offset+f.Size], f.Type, v)
	}

	elems, err := elements(f.Type, v)
	if err != nil {
		return err
	}
	if len(elems) > f.Length {
		return fmt.Errorf("%d elements exceed array length %d", len(elems), f.Length)
	}
	for i, e := range elems {
		start := f.Offset + i*f.Stride
		if err := putValue(dst[start:start+f.Type.Size()], f.Type, e); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// elements splits an array value into per-element values.
func elements(t Type, v any) ([]any, error) {
	var out []any
	switch s := v.(type) {
	case []any:
		return s, nil
	case []float32:
		if t == TypeFloat {
			for _, x := range s {
				out = append(out, x)
			}
			return out, nil
		}
		n := componentCount(t)
		if n == 0 || len(s)%n != 0 {
			return nil, fmt.Errorf("%d floats do not divide into %v elements", len(s), t)
		}
		for i := 0; i < len(s); i += n {
			out = append(out, s[i:i+n])
		}
	case []int32:
		for _, x := range s {
			out = append(out, x)
		}
	case []int:
		for _, x := range s {
			out = append(out, x)
		}
	case []uint32:
		for _, x := range s {
			out = append(out, x)
		}
	case []bool:
		for _, x := range s {
			out = append(out, x)
		}
	case []mgl32.Vec2:
		for _, x := range s {
			out = append(out, x)
		}
	case []mgl32.Vec3:
		for _, x := range s {
			out = append(out, x)
		}
	case []mgl32.Vec4:
		for _, x := range s {
			out = append(out, x)
		}
	case []mgl32.Mat3:
		for _, x := range s {
			out = append(out, x)
		}
	case []mgl32.Mat4:
		for _, x := range s {
			out = append(out, x)
		}
	case [][4]int32:
		for _, x := range s {
			out = append(out, x)
		}
	default:
		return nil, fmt.Errorf("cannot use %T as %v array", v, t)
	}
	return out, nil
}

func componentCount(t Type) int {
	switch t {
	case TypeFloat:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	}
	return 0
}

func putFloats(dst []byte, fs ...float32) {
	for i, x := range fs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(x))
	}
}

func putValue(dst []byte, t Type, v any) error {
	switch t {
	case TypeFloat:
		switch x := v.(type) {
		case float32:
			putFloats(dst, x)
		case float64:
			putFloats(dst, float32(x))
		case int:
			putFloats(dst, float32(x))
		default:
			return typeErr(t, v)
		}
	case TypeInt:
		switch x := v.(type) {
		case int32:
			binary.LittleEndian.PutUint32(dst, uint32(x))
		case int:
			binary.LittleEndian.PutUint32(dst, uint32(int32(x)))
		case bool:
			binary.LittleEndian.PutUint32(dst, boolBits(x))
		default:
			return typeErr(t, v)
		}
	case TypeUint:
		switch x := v.(type) {
		case uint32:
			binary.LittleEndian.PutUint32(dst, x)
		case int:
			if x < 0 {
				return fmt.Errorf("negative value %d for uint", x)
			}
			binary.LittleEndian.PutUint32(dst, uint32(x))
		default:
			return typeErr(t, v)
		}
	case TypeBool:
		switch x := v.(type) {
		case bool:
			binary.LittleEndian.PutUint32(dst, boolBits(x))
		case int:
			binary.LittleEndian.PutUint32(dst, boolBits(x != 0))
		default:
			return typeErr(t, v)
		}
	case TypeVec2:
		switch x := v.(type) {
		case mgl32.Vec2:
			putFloats(dst, x[:]...)
		case [2]float32:
			putFloats(dst, x[:]...)
		case []float32:
			if len(x) != 2 {
				return typeErr(t, v)
			}
			putFloats(dst, x...)
		default:
			return typeErr(t, v)
		}
	case TypeVec3:
		switch x := v.(type) {
		case mgl32.Vec3:
			putFloats(dst, x[:]...)
		case [3]float32:
			putFloats(dst, x[:]...)
		case []float32:
			if len(x) != 3 {
				return typeErr(t, v)
			}
			putFloats(dst, x...)
		default:
			return typeErr(t, v)
		}
	case TypeVec4:
		switch x := v.(type) {
		case mgl32.Vec4:
			putFloats(dst, x[:]...)
		case [4]float32:
			putFloats(dst, x[:]...)
		case []float32:
			if len(x) != 4 {
				return typeErr(t, v)
			}
			putFloats(dst, x...)
		default:
			return typeErr(t, v)
		}
	case TypeIVec4:
		x, ok := v.([4]int32)
		if !ok {
			return typeErr(t, v)
		}
		for i := range x {
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(x[i]))
		}
	case TypeMat3:
		var m mgl32.Mat3
		switch x := v.(type) {
		case mgl32.Mat3:
			m = x
		case []float32:
			if len(x) != 9 {
				return typeErr(t, v)
			}
			copy(m[:], x)
		default:
			return typeErr(t, v)
		}
		// each column occupies a 16-byte slot
		for c := 0; c < 3; c++ {
			putFloats(dst[c*16:], m[c*3], m[c*3+1], m[c*3+2])
		}
	case TypeMat4:
		switch x := v.(type) {
		case mgl32.Mat4:
			putFloats(dst, x[:]...)
		case []float32:
			if len(x) != 16 {
				return typeErr(t, v)
			}
			putFloats(dst, x...)
		default:
			return typeErr(t, v)
		}
	default:
		return fmt.Errorf("unknown type %v", t)
	}
	return nil
}

func boolBits(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func typeErr(t Type, v any) error {
	return fmt.Errorf("cannot use %T as %v", v, t)
}
