package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Field names of the Globals uniform block written by Bind.
const (
	FieldProjection = "projection_transform"
	FieldInverse    = "camera_inverse"
	FieldTransform  = "camera_transform"
	FieldPosition   = "camera_position"
)

type projectionKind int

const (
	projectionNone projectionKind = iota
	projectionPerspective
	projectionOrthographic
	projectionCustom
)

type cameraImpl struct {
	mu *sync.Mutex

	eye mgl32.Vec3
	at  mgl32.Vec3
	up  mgl32.Vec3

	kind       projectionKind
	fov        float32
	aspect     float32
	fixedRatio bool
	near       float32
	far        float32
	halfHeight float32

	initialized bool

	viewMatrix       mgl32.Mat4
	transformMatrix  mgl32.Mat4
	projectionMatrix mgl32.Mat4
}

// Camera holds an eye/at/up triple and an optional projection. The view matrix is recomputed
// whenever the eye, target or up vector changes.
type Camera interface {
	// Eye returns the world-space camera position.
	Eye() mgl32.Vec3

	// At returns the world-space point the camera looks at.
	At() mgl32.Vec3

	// Up returns the up vector.
	Up() mgl32.Vec3

	// LookAt sets the eye, target and up vector together and recomputes the view.
	//
	// Parameters:
	//   - eye: the camera position
	//   - at: the point looked at
	//   - up: the up vector
	LookAt(eye, at, up mgl32.Vec3)

	// SetEye moves the camera, keeping its target.
	SetEye(eye mgl32.Vec3)

	// SetAt changes the target, keeping the position.
	SetAt(at mgl32.Vec3)

	// SetUp changes the up vector.
	SetUp(up mgl32.Vec3)

	// View returns the world-to-camera matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	View() mgl32.Mat4

	// Transform returns the camera-to-world matrix, the inverse of View.
	//
	// Returns:
	//   - mgl32.Mat4: the camera transform
	Transform() mgl32.Mat4

	// SetTransform places the camera from a camera-to-world matrix. The eye, target and up
	// vector are derived from it so the view matches its inverse.
	//
	// Parameters:
	//   - m: a rigid camera-to-world transform
	SetTransform(m mgl32.Mat4)

	// HasProjection reports whether a projection is configured. A camera without one binds the
	// identity projection.
	HasProjection() bool

	// Projection returns the projection matrix, or identity when HasProjection is false.
	Projection() mgl32.Mat4

	// ViewProjection returns Projection multiplied by View.
	ViewProjection() mgl32.Mat4

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the width / height ratio, 0 until set or initialized.
	Aspect() float32

	// NearFar returns the clip plane distances.
	NearFar() (near, far float32)

	// SetPerspective switches to a perspective projection.
	//
	// Parameters:
	//   - fov: vertical field of view in radians
	//   - near: near plane distance
	//   - far: far plane distance
	SetPerspective(fov, near, far float32)

	// SetOrthographic switches to an orthographic projection.
	//
	// Parameters:
	//   - halfHeight: half the visible height in world units; the width follows the aspect
	//   - near: near plane distance
	//   - far: far plane distance
	SetOrthographic(halfHeight, near, far float32)

	// SetProjection installs a custom projection matrix.
	SetProjection(m mgl32.Mat4)

	// Initialize binds the camera to its first surface: unless an aspect was given explicitly, the
	// aspect is taken from the surface size. Later calls do nothing.
	//
	// Parameters:
	//   - width: surface width in pixels
	//   - height: surface height in pixels
	Initialize(width, height int)

	// Initialized reports whether Initialize has run.
	Initialized() bool

	// Resize updates the aspect from a new surface size unless it was given explicitly.
	Resize(width, height int)

	// Bind writes the camera fields of the Globals block into a value bag.
	//
	// Parameters:
	//   - values: the Globals block values
	Bind(values map[string]any)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at (0, 0, 10) looking at the origin with a 45 degree perspective
// projection whose aspect is taken from the first surface.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:   &sync.Mutex{},
		eye:  mgl32.Vec3{0, 0, 10},
		at:   mgl32.Vec3{0, 0, 0},
		up:   mgl32.Vec3{0, 1, 0},
		kind: projectionPerspective,
		fov:  mgl32.DegToRad(45),
		near: 0.1,
		far:  1000,
	}
	c.projectionMatrix = mgl32.Ident4()
	for _, option := range options {
		option(c)
	}
	c.updateView()
	c.updateProjection()
	return c
}

func (c *cameraImpl) Eye() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) At() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) LookAt(eye, at, up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye, c.at, c.up = eye, at, up
	c.updateView()
}

func (c *cameraImpl) SetEye(eye mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eye = eye
	c.updateView()
}

func (c *cameraImpl) SetAt(at mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = at
	c.updateView()
}

func (c *cameraImpl) SetUp(up mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = up
	c.updateView()
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) Transform() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transformMatrix
}

func (c *cameraImpl) SetTransform(m mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	eye := m.Col(3).Vec3()
	forward := m.Col(2).Vec3().Mul(-1)
	dist := c.at.Sub(c.eye).Len()
	if dist < 1e-4 {
		dist = 1
	}
	c.eye = eye
	c.at = eye.Add(forward.Mul(dist))
	c.up = m.Col(1).Vec3()
	c.updateView()
}

func (c *cameraImpl) HasProjection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind != projectionNone
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix.Mul4(c.viewMatrix)
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) NearFar() (near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near, c.far
}

func (c *cameraImpl) SetPerspective(fov, near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind, c.fov, c.near, c.far = projectionPerspective, fov, near, far
	c.updateProjection()
}

func (c *cameraImpl) SetOrthographic(halfHeight, near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind, c.halfHeight, c.near, c.far = projectionOrthographic, halfHeight, near, far
	c.updateProjection()
}

func (c *cameraImpl) SetProjection(m mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kind = projectionCustom
	c.projectionMatrix = m
}

func (c *cameraImpl) Initialize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return
	}
	c.initialized = true
	c.resize(width, height)
}

func (c *cameraImpl) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *cameraImpl) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resize(width, height)
}

func (c *cameraImpl) Bind(values map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	values[FieldProjection] = c.projectionMatrix
	values[FieldInverse] = c.viewMatrix
	values[FieldTransform] = c.transformMatrix
	values[FieldPosition] = c.eye.Vec4(1)
}

// resize takes the aspect from a surface size unless it is fixed. Caller must hold the mutex.
func (c *cameraImpl) resize(width, height int) {
	if c.fixedRatio || width <= 0 || height <= 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
	c.updateProjection()
}

// updateView recomputes the view and camera transform. Caller must hold the mutex.
func (c *cameraImpl) updateView() {
	c.viewMatrix = mgl32.LookAtV(c.eye, c.at, c.up)
	c.transformMatrix = c.viewMatrix.Inv()
}

// updateProjection recomputes a perspective or orthographic projection. Custom projections are
// left alone. Caller must hold the mutex.
func (c *cameraImpl) updateProjection() {
	aspect := c.aspect
	if aspect <= 0 {
		aspect = 1
	}
	switch c.kind {
	case projectionNone:
		c.projectionMatrix = mgl32.Ident4()
	case projectionPerspective:
		c.projectionMatrix = mgl32.Perspective(c.fov, aspect, c.near, c.far)
	case projectionOrthographic:
		hw := c.halfHeight * aspect
		c.projectionMatrix = mgl32.Ortho(-hw, hw, -c.halfHeight, c.halfHeight, c.near, c.far)
	}
}
