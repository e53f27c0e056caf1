package window

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
	"github.com/cogentcore/webgpu/wgpu"
)

// ClientAPI selects the graphics API the window creates a surface for.
type ClientAPI int

const (
	// APIOpenGL creates an OpenGL 4.1 core context on the window.
	APIOpenGL ClientAPI = iota
	// APINone creates no context; a WebGPU surface is built from SurfaceDescriptor.
	APINone
)

// Window provides platform windowing, input event handling and the frame pump that drives an
// animation loop. A Window satisfies engine.Scheduler: RequestFrame callbacks run from Run on the
// window's thread, which is also the thread owning an OpenGL context.
type Window interface {
	// RequestFrame schedules fn to run on the next message loop iteration. A second request before
	// the frame runs replaces the first.
	//
	// Parameters:
	//   - fn: the frame callback, receiving the frame timestamp
	RequestFrame(fn func(now time.Time))

	// Cancel drops the pending frame and ignores later requests.
	Cancel()

	// SetInput routes key presses and releases into a shortcut registry. Focus loss releases
	// every held binding.
	//
	// Parameters:
	//   - reg: the registry (or nil to stop forwarding)
	SetInput(reg input.Registry)

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetMouseMoveCallback sets the callback for mouse movement.
	//
	// Parameters:
	//   - callback: function receiving the cursor position in pixels
	SetMouseMoveCallback(callback func(x, y float32))

	// SetMouseButtonCallback sets the callback for left mouse button presses and releases.
	//
	// Parameters:
	//   - callback: function receiving true on press and false on release
	SetMouseButtonCallback(callback func(pressed bool))

	// SetMouseLeaveCallback sets the callback for the cursor leaving the window.
	SetMouseLeaveCallback(callback func())

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// ClientAPI returns the graphics API the window was created for.
	ClientAPI() ClientAPI

	// MakeContextCurrent binds the window's OpenGL context to the calling thread.
	MakeContextCurrent()

	// SwapBuffers presents the back buffer of the window's OpenGL context.
	SwapBuffers()

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// Run runs the window message loop, polling events and running the pending frame each
	// iteration. Blocks until the window is closed.
	Run()

	// RunUntil is Run that also returns once stop is closed.
	//
	// Parameters:
	//   - stop: closed to end the message loop early; nil never ends it
	RunUntil(stop <-chan struct{})

	// Size returns the current framebuffer size in pixels.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Size() (int, int)
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, input routing and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// minWidth and minHeight bound resizing from below.
	minWidth  int
	minHeight int

	// width and height are the current framebuffer size in pixels.
	width  int
	height int

	api   ClientAPI
	vsync bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	pump  *framePump
	input input.Registry

	onResize      func(width, height int)
	onScroll      func(delta float32)
	onMouseMove   func(x, y float32)
	onMouseButton func(pressed bool)
	onMouseLeave  func()
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window with the specified options.
// Applies default values first, then each option in order. Must be called from the main
// goroutine; the calling goroutine is locked to its OS thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error if GLFW or the graphics context cannot be initialized
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-tiny",
		minWidth:  200,
		minHeight: 150,
		width:     1080,
		height:    600,
		api:       APIOpenGL,
		vsync:     true,
		pump:      newFramePump(),
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) RequestFrame(fn func(now time.Time)) {
	w.pump.request(fn)
}

func (w *engineWindow) Cancel() {
	w.pump.cancel()
}

func (w *engineWindow) SetInput(reg input.Registry) {
	w.input = reg
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y float32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(pressed bool)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SetMouseLeaveCallback(callback func()) {
	w.onMouseLeave = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) ClientAPI() ClientAPI {
	return w.api
}

func (w *engineWindow) MakeContextCurrent() {
	platformMakeContextCurrent(w)
}

func (w *engineWindow) SwapBuffers() {
	platformSwapBuffers(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	w.pump.cancel()
	return platformCloseWindow(w)
}

func (w *engineWindow) Run() {
	w.RunUntil(nil)
}

func (w *engineWindow) RunUntil(stop <-chan struct{}) {
	for w.IsRunning() {
		select {
		case <-stop:
			return
		default:
		}
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if !w.pump.run(time.Now()) {
			runtime.Gosched()
		}
	}
}

func (w *engineWindow) Size() (int, int) {
	return w.width, w.height
}
