package app

import (
	"github.com/Carmen-Shannon/oxy-tiny/engine"
	"github.com/Carmen-Shannon/oxy-tiny/engine/camera"
)

// AppBuilderOption is a functional option for configuring an App.
type AppBuilderOption func(*appImpl)

// WithCamera replaces the default camera, which looks at the origin from (0, 2, 10).
//
// Parameters:
//   - cam: the camera the renderer draws from
//
// Returns:
//   - AppBuilderOption: option function to apply
func WithCamera(cam camera.Camera) AppBuilderOption {
	return func(a *appImpl) {
		if cam != nil {
			a.camera = cam
		}
	}
}

// WithConfigWatch hot-reloads the clear color, log level and lights from the file at path.
//
// Parameters:
//   - path: the configuration file the app was loaded from
//
// Returns:
//   - AppBuilderOption: option function to apply
func WithConfigWatch(path string) AppBuilderOption {
	return func(a *appImpl) {
		a.configPath = path
	}
}

// WithProfiling logs frame statistics periodically.
func WithProfiling() AppBuilderOption {
	return func(a *appImpl) {
		a.profile = true
	}
}

// WithUpdate registers a per-frame callback, run after the camera controls.
func WithUpdate(fn engine.UpdateFunc) AppBuilderOption {
	return func(a *appImpl) {
		if fn != nil {
			a.updates = append(a.updates, fn)
		}
	}
}
