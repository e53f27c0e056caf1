package common

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// AlignUp rounds v up to the next multiple of align. An align of zero returns v unchanged.
//
// Parameters:
//   - v: the value to round
//   - align: the alignment
//
// Returns:
//   - T: the smallest multiple of align that is >= v
func AlignUp[T constraints.Integer](v, align T) T {
	if align == 0 {
		return v
	}
	if r := v % align; r != 0 {
		return v + align - r
	}
	return v
}

// Clamp limits v to the closed range [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FlattenMat4 copies a list of matrices into one contiguous column-major float slice, the layout
// expected by per-instance vertex buffers.
//
// Parameters:
//   - ms: the matrices to flatten
//
// Returns:
//   - []float32: 16 floats per matrix
func FlattenMat4(ms []mgl32.Mat4) []float32 {
	out := make([]float32, 0, len(ms)*16)
	for i := range ms {
		out = append(out, ms[i][:]...)
	}
	return out
}

// BuildModelMatrix constructs a model matrix from position, Euler rotation, and scale.
// The rotation order is Y * X * Z (yaw-pitch-roll).
//
// Parameters:
//   - pos: translation in world space
//   - rot: rotation angles in radians around each axis
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the composed transform T * Ry * Rx * Rz * S
func BuildModelMatrix(pos, rot, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()).
		Mul4(mgl32.HomogRotate3DY(rot.Y())).
		Mul4(mgl32.HomogRotate3DX(rot.X())).
		Mul4(mgl32.HomogRotate3DZ(rot.Z())).
		Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// HexColor parses "#rrggbb" or "#rrggbbaa" into an RGBA color with components in [0, 1].
//
// Parameters:
//   - hex: the color string, with or without the leading '#'
//
// Returns:
//   - mgl32.Vec4: the parsed color
//   - error: an error if the string is not 6 or 8 hex digits
func HexColor(hex string) (mgl32.Vec4, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 && len(h) != 8 {
		return mgl32.Vec4{}, fmt.Errorf("color %q must have 6 or 8 hex digits", hex)
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return mgl32.Vec4{}, fmt.Errorf("color %q: %w", hex, err)
	}
	return mgl32.Vec4{
		float32((v>>24)&0xff) / 255,
		float32((v>>16)&0xff) / 255,
		float32((v>>8)&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}
