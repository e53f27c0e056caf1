package entity

import "github.com/go-gl/mathgl/mgl32"

// EntityBuilderOption is a function that configures an entity during construction.
type EntityBuilderOption func(*entity)

// WithLabel sets the name used in logs. Defaults to the shape label.
func WithLabel(label string) EntityBuilderOption {
	return func(e *entity) {
		e.label = label
	}
}

// WithEnabled sets whether the entity starts visible.
func WithEnabled(enabled bool) EntityBuilderOption {
	return func(e *entity) {
		e.enabled.Store(enabled)
	}
}

// WithPosition sets the base translation.
//
// Parameters:
//   - x, y, z: world-space position
//
// Returns:
//   - EntityBuilderOption: a function that applies the position option
func WithPosition(x, y, z float32) EntityBuilderOption {
	return func(e *entity) {
		e.position = mgl32.Vec3{x, y, z}
	}
}

// WithRotation sets the base Euler rotation in radians.
//
// Parameters:
//   - rx, ry, rz: rotation about each axis
//
// Returns:
//   - EntityBuilderOption: a function that applies the rotation option
func WithRotation(rx, ry, rz float32) EntityBuilderOption {
	return func(e *entity) {
		e.rotation = mgl32.Vec3{rx, ry, rz}
	}
}

// WithScale sets the base scale.
//
// Parameters:
//   - sx, sy, sz: scale along each axis
//
// Returns:
//   - EntityBuilderOption: a function that applies the scale option
func WithScale(sx, sy, sz float32) EntityBuilderOption {
	return func(e *entity) {
		e.scale = mgl32.Vec3{sx, sy, sz}
	}
}

// WithTransforms sets the instance transforms, one model matrix per drawn copy.
//
// Parameters:
//   - transforms: the instance transforms
//
// Returns:
//   - EntityBuilderOption: a function that applies the transforms option
func WithTransforms(transforms ...mgl32.Mat4) EntityBuilderOption {
	return func(e *entity) {
		e.setTransforms(transforms)
	}
}
