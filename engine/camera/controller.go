package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// arcballPivot is the distance in front of the camera the arcball drag rotates around.
const arcballPivot float32 = 25

// controllerImpl is the fly-around implementation of Controller. Thrust and roll are set by key
// bindings and applied every Update; the mouse offset from the surface center steers the view
// once look-around is unlocked, and a mouse drag orbits an arcball pivot in front of the camera.
type controllerImpl struct {
	mu     *sync.Mutex
	camera Camera

	thrust mgl32.Vec3
	roll   float32

	lookLocked bool
	fromCenter mgl32.Vec2
	anchor     *mgl32.Vec2

	radiansPerPixel float32
	metersPerSecond float32
	rollPerSecond   float32
	speedMultiplier float32
	leeway          float32

	home mgl32.Mat4
}

// Controller moves a camera with first-person fly-around controls: WASD to move, space and z to
// rise and sink, comma and period to roll, and the mouse to look around.
type Controller interface {
	// Camera returns the controlled camera.
	Camera() Camera

	// Attach binds the movement keys on a registry.
	//
	// Parameters:
	//   - reg: the shortcut registry fed by the window
	//
	// Returns:
	//   - error: an error if a shortcut cannot be bound
	Attach(reg input.Registry) error

	// MouseMove records the cursor position relative to the surface center.
	//
	// Parameters:
	//   - x, y: cursor position in pixels
	//   - width, height: surface size in pixels
	MouseMove(x, y float32, width, height int)

	// MouseLeave stops steering, as if the cursor rested at the center.
	MouseLeave()

	// MouseDown starts an arcball drag at the current cursor offset.
	MouseDown()

	// MouseUp ends an arcball drag.
	MouseUp()

	// SetLookAroundLocked freezes or unfreezes mouse steering. Locked by default.
	SetLookAroundLocked(locked bool)

	// LookAroundLocked reports whether mouse steering is frozen.
	LookAroundLocked() bool

	// Thrust returns the current movement direction in camera space.
	Thrust() mgl32.Vec3

	// SpeedMultiplier returns the current speed factor.
	SpeedMultiplier() float32

	// Update applies one frame of movement.
	//
	// Parameters:
	//   - dt: the frame time in seconds
	Update(dt float32)

	// Reset returns the camera to where it was when the controller was created.
	Reset()
}

var _ Controller = &controllerImpl{}

// NewController creates a fly-around controller for a camera.
//
// Parameters:
//   - cam: the camera to move
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewController(cam Camera, options ...ControllerOption) Controller {
	if cam == nil {
		panic("camera: NewController requires a camera")
	}
	cc := &controllerImpl{
		mu:              &sync.Mutex{},
		camera:          cam,
		lookLocked:      true,
		radiansPerPixel: 1.0 / 200,
		metersPerSecond: 20,
		rollPerSecond:   1.5,
		speedMultiplier: 1,
		leeway:          70,
		home:            cam.Transform(),
	}
	for _, option := range options {
		option(cc)
	}
	return cc
}

func (cc *controllerImpl) Camera() Camera {
	return cc.camera
}

func (cc *controllerImpl) Attach(reg input.Registry) error {
	axis := func(i int, v float32) (func(), func()) {
		return func() { cc.setThrust(i, v) }, func() { cc.setThrust(i, 0) }
	}
	type key struct {
		desc, shortcut string
		press, release func()
	}
	up, upOff := axis(1, -1)
	fwd, fwdOff := axis(2, 1)
	left, leftOff := axis(0, 1)
	back, backOff := axis(2, -1)
	down, downOff := axis(1, 1)
	right, rightOff := axis(0, -1)
	keys := []key{
		{"Up", "space", up, upOff},
		{"Forward", "w", fwd, fwdOff},
		{"Left", "a", left, leftOff},
		{"Back", "s", back, backOff},
		{"Down", "z", down, downOff},
		{"Right", "d", right, rightOff},
		{"Slow down", "-", func() { cc.scaleSpeed(1 / 1.2) }, nil},
		{"Speed up", "+", func() { cc.scaleSpeed(1.2) }, nil},
		{"Roll left", ",", func() { cc.setRoll(1) }, func() { cc.setRoll(0) }},
		{"Roll right", ".", func() { cc.setRoll(-1) }, func() { cc.setRoll(0) }},
		{"(Un)freeze mouse look around", "f", func() { cc.SetLookAroundLocked(!cc.LookAroundLocked()) }, nil},
		{"Go to world origin", "r", func() { cc.camera.SetTransform(mgl32.Ident4()) }, nil},
		{"Look at origin from front", "1", func() { cc.lookAtOrigin(mgl32.Vec3{0, 0, 10}) }, nil},
		{"Look at origin from right", "2", func() { cc.lookAtOrigin(mgl32.Vec3{10, 0, 0}) }, nil},
		{"Look at origin from rear", "3", func() { cc.lookAtOrigin(mgl32.Vec3{0, 0, -10}) }, nil},
		{"Look at origin from left", "4", func() { cc.lookAtOrigin(mgl32.Vec3{-10, 0, 0}) }, nil},
		{"Reset camera", "shift+r", cc.Reset, nil},
	}
	for _, k := range keys {
		if err := reg.Bind(k.desc, k.shortcut, k.press, k.release); err != nil {
			return err
		}
	}
	return nil
}

func (cc *controllerImpl) MouseMove(x, y float32, width, height int) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.fromCenter = mgl32.Vec2{x - float32(width)/2, y - float32(height)/2}
}

func (cc *controllerImpl) MouseLeave() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.fromCenter = mgl32.Vec2{}
	cc.anchor = nil
}

func (cc *controllerImpl) MouseDown() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	a := cc.fromCenter
	cc.anchor = &a
}

func (cc *controllerImpl) MouseUp() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.anchor = nil
}

func (cc *controllerImpl) SetLookAroundLocked(locked bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.lookLocked = locked
}

func (cc *controllerImpl) LookAroundLocked() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.lookLocked
}

func (cc *controllerImpl) Thrust() mgl32.Vec3 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.thrust
}

func (cc *controllerImpl) SpeedMultiplier() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.speedMultiplier
}

func (cc *controllerImpl) Update(dt float32) {
	if dt <= 0 {
		return
	}
	cc.mu.Lock()
	r := cc.speedMultiplier * cc.radiansPerPixel * dt
	m := cc.speedMultiplier * cc.metersPerSecond * dt
	thrust, roll := cc.thrust, cc.roll
	fromCenter, locked := cc.fromCenter, cc.lookLocked
	var drag mgl32.Vec2
	dragging := cc.anchor != nil
	if dragging {
		drag = fromCenter.Sub(*cc.anchor)
	}
	rollStep := roll * cc.rollPerSecond * dt
	leeway := cc.leeway
	cc.mu.Unlock()

	world := cc.camera.Transform()
	if dragging {
		world = arcball(world, drag, r)
	} else if !locked {
		world = flyaround(world, fromCenter, leeway, r)
	}
	if rollStep != 0 {
		world = world.Mul4(mgl32.HomogRotate3DZ(rollStep))
	}
	if thrust != (mgl32.Vec3{}) {
		world = world.Mul4(mgl32.Translate3D(-thrust.X()*m, -thrust.Y()*m, -thrust.Z()*m))
	}
	cc.camera.SetTransform(world)
}

func (cc *controllerImpl) Reset() {
	cc.mu.Lock()
	home := cc.home
	cc.thrust = mgl32.Vec3{}
	cc.roll = 0
	cc.speedMultiplier = 1
	cc.anchor = nil
	cc.mu.Unlock()
	cc.camera.SetTransform(home)
}

func (cc *controllerImpl) setThrust(axis int, v float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.thrust[axis] = v
}

func (cc *controllerImpl) setRoll(v float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.roll = v
}

func (cc *controllerImpl) scaleSpeed(f float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.speedMultiplier *= f
	common.LogDebug("camera speed", "multiplier", cc.speedMultiplier)
}

func (cc *controllerImpl) lookAtOrigin(eye mgl32.Vec3) {
	cc.camera.LookAt(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

// flyaround turns the camera by the part of the cursor offset outside a dead box of half-size
// leeway around the center. Horizontal offsets yaw about the camera's Y axis, vertical offsets
// pitch about its X axis.
func flyaround(world mgl32.Mat4, fromCenter mgl32.Vec2, leeway, r float32) mgl32.Mat4 {
	for i, axis := range []mgl32.Vec3{{0, 1, 0}, {1, 0, 0}} {
		o := fromCenter[i]
		if math32.Abs(o) <= leeway {
			continue
		}
		velocity := (o - math32.Copysign(leeway, o)) * r
		world = world.Mul4(mgl32.HomogRotate3D(-velocity, axis))
	}
	return world
}

// arcball rotates the camera about a pivot arcballPivot units in front of it, around the axis
// perpendicular to the drag.
func arcball(world mgl32.Mat4, drag mgl32.Vec2, r float32) mgl32.Mat4 {
	n := drag.Len()
	if n <= 0 {
		return world
	}
	axis := mgl32.Vec3{drag.Y(), drag.X(), 0}.Normalize()
	world = world.Mul4(mgl32.Translate3D(0, 0, -arcballPivot))
	world = world.Mul4(mgl32.HomogRotate3D(-r*n, axis))
	return world.Mul4(mgl32.Translate3D(0, 0, arcballPivot))
}
