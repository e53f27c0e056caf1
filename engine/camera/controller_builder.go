package camera

// ControllerOption is a functional option for configuring a Controller.
type ControllerOption func(*controllerImpl)

// WithMetersPerSecond sets the movement speed at a speed multiplier of 1.
//
// Parameters:
//   - speed: world units per second
//
// Returns:
//   - ControllerOption: functional option to set the movement speed
func WithMetersPerSecond(speed float32) ControllerOption {
	return func(cc *controllerImpl) {
		cc.metersPerSecond = speed
	}
}

// WithRadiansPerPixel sets the turn rate per pixel of cursor offset per second.
//
// Parameters:
//   - rate: radians per pixel per second
//
// Returns:
//   - ControllerOption: functional option to set the mouse sensitivity
func WithRadiansPerPixel(rate float32) ControllerOption {
	return func(cc *controllerImpl) {
		cc.radiansPerPixel = rate
	}
}

// WithRollPerSecond sets the roll rate while a roll key is held.
func WithRollPerSecond(rate float32) ControllerOption {
	return func(cc *controllerImpl) {
		cc.rollPerSecond = rate
	}
}

// WithLeeway sets the half-size in pixels of the dead box around the surface center in which the
// cursor does not steer.
//
// Parameters:
//   - pixels: dead box half-size
//
// Returns:
//   - ControllerOption: functional option to set the dead box
func WithLeeway(pixels float32) ControllerOption {
	return func(cc *controllerImpl) {
		cc.leeway = pixels
	}
}

// WithLookAroundUnlocked starts with mouse steering enabled.
func WithLookAroundUnlocked() ControllerOption {
	return func(cc *controllerImpl) {
		cc.lookLocked = false
	}
}
