package camera

import "github.com/go-gl/mathgl/mgl32"

type CameraBuilderOption func(*cameraImpl)

// WithEye sets the camera position.
//
// Parameters:
//   - x, y, z: world-space position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera position
func WithEye(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.eye = mgl32.Vec3{x, y, z}
	}
}

// WithAt sets the point the camera looks at.
//
// Parameters:
//   - x, y, z: world-space target
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera target
func WithAt(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.at = mgl32.Vec3{x, y, z}
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = mgl32.Vec3{x, y, z}
	}
}

// WithFov sets a perspective projection with the given vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.kind = projectionPerspective
		c.fov = fov
	}
}

// WithAspect fixes the aspect ratio (width / height). A camera with a fixed aspect ignores the
// surface size.
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
		c.fixedRatio = true
	}
}

// WithNearFar sets the clip plane distances.
func WithNearFar(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
		c.far = far
	}
}

// WithOrthographic sets an orthographic projection showing halfHeight world units above and below
// the view axis.
//
// Parameters:
//   - halfHeight: half the visible height
//
// Returns:
//   - CameraBuilderOption: a function that sets an orthographic projection
func WithOrthographic(halfHeight float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.kind = projectionOrthographic
		c.halfHeight = halfHeight
	}
}

// WithProjection installs a custom projection matrix.
func WithProjection(m mgl32.Mat4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.kind = projectionCustom
		c.projectionMatrix = m
	}
}

// WithoutProjection creates a camera that binds the identity projection, for shaders working in
// clip space directly.
func WithoutProjection() CameraBuilderOption {
	return func(c *cameraImpl) {
		c.kind = projectionNone
	}
}
