// Package app assembles a runnable surface from a configuration: the window, the graphics
// context of the configured backend, the renderer, the animation loop, a fly camera and the
// keyboard registry. Demo programs build one App, submit entities and call Run.
package app

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine"
	"github.com/Carmen-Shannon/oxy-tiny/engine/camera"
	"github.com/Carmen-Shannon/oxy-tiny/engine/config"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/glcontext"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/wgpucontext"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/profiler"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer"
	"github.com/Carmen-Shannon/oxy-tiny/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

// App owns every object of one rendering surface.
type App interface {
	// Config returns the configuration the app was built from, updated by hot reloads.
	Config() config.Config

	// Window returns the native window.
	Window() window.Window

	// Context returns the graphics context of the configured backend.
	Context() gpu.Context

	// Renderer returns the renderer entities are submitted to.
	Renderer() renderer.Renderer

	// Loop returns the animation loop driving the surface.
	Loop() engine.AnimationLoop

	// Camera returns the camera the renderer draws from.
	Camera() camera.Camera

	// Controller returns the fly-camera controls bound to the keyboard and mouse.
	Controller() camera.Controller

	// Input returns the shortcut registry the window forwards key events to.
	Input() input.Registry

	// Lights returns the lights built from the configuration.
	Lights() []light.Light

	// Run starts the animation loop and processes window events until the window closes or the
	// loop stops. It must be called on the goroutine that created the app.
	//
	// Returns:
	//   - error: the error that stopped the loop, nil on a normal close
	Run() error

	// Close releases the loop, the renderer's GPU resources, the context and the window. Safe to
	// call multiple times.
	Close()
}

type appImpl struct {
	mu         *sync.Mutex
	cfg        config.Config
	configPath string
	camera     camera.Camera
	profile    bool
	updates    []engine.UpdateFunc

	win        window.Window
	ctx        gpu.Context
	renderer   renderer.Renderer
	loop       engine.AnimationLoop
	controller camera.Controller
	input      input.Registry
	lights     []light.Light
	watcher    config.Watcher
	closeOnce  *sync.Once
}

var _ App = &appImpl{}

// New builds an app from cfg. The calling goroutine is locked to its OS thread, since the window
// system and the OpenGL context must stay on the thread that created them.
//
// Parameters:
//   - cfg: the configuration; zero fields take their defaults
//   - options: camera, hot reload, profiling and update options
//
// Returns:
//   - App: the app, ready to Run
//   - error: an invalid configuration or a window, context or light error
func New(cfg config.Config, options ...AppBuilderOption) (App, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return nil, err
	}

	a := &appImpl{
		mu:        &sync.Mutex{},
		cfg:       cfg,
		closeOnce: &sync.Once{},
	}
	for _, opt := range options {
		opt(a)
	}

	runtime.LockOSThread()
	api, err := clientAPI(cfg.Window.Backend)
	if err != nil {
		return nil, err
	}
	vsync := cfg.Window.VSync == nil || *cfg.Window.VSync
	a.win, err = window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithClientAPI(api),
		window.WithVSync(vsync),
	)
	if err != nil {
		return nil, err
	}
	if a.ctx, err = a.createContext(api, vsync); err != nil {
		a.win.Close()
		return nil, err
	}
	if a.lights, err = cfg.BuildLights(); err != nil {
		a.Close()
		return nil, err
	}

	a.renderer = renderer.NewRenderer(cfg.RendererOptions()...)
	if a.camera == nil {
		a.camera = camera.NewCamera(camera.WithEye(0, 2, 10), camera.WithAt(0, 0, 0))
	}
	a.renderer.SetCamera(a.camera)

	a.input = input.NewRegistry()
	a.win.SetInput(a.input)
	a.controller = camera.NewController(a.camera)
	if err := a.controller.Attach(a.input); err != nil {
		a.Close()
		return nil, err
	}
	a.win.SetMouseMoveCallback(func(x, y float32) {
		w, h := a.win.Size()
		a.controller.MouseMove(x, y, w, h)
	})
	a.win.SetMouseButtonCallback(func(pressed bool) {
		if pressed {
			a.controller.MouseDown()
		} else {
			a.controller.MouseUp()
		}
	})
	a.win.SetMouseLeaveCallback(a.controller.MouseLeave)
	a.win.SetResizeCallback(a.camera.Resize)

	loopOptions := []engine.AnimationLoopBuilderOption{
		engine.WithScheduler(a.win),
		engine.WithRenderer(a.renderer),
		engine.WithContext(a.ctx),
		engine.WithLights(a.lights...),
		engine.WithFrameLimit(cfg.Renderer.FrameLimit),
		engine.WithClearEntities(cfg.Renderer.ClearEntities),
		engine.WithAnimating(cfg.Renderer.Animate == nil || *cfg.Renderer.Animate),
		engine.WithUpdate(func(info engine.FrameInfo) {
			a.controller.Update(info.Elapsed)
		}),
	}
	for _, fn := range a.updates {
		loopOptions = append(loopOptions, engine.WithUpdate(fn))
	}
	if a.profile {
		loopOptions = append(loopOptions, engine.WithProfiler(profiler.NewProfiler()))
	}
	a.loop = engine.NewAnimationLoop(loopOptions...)
	if err := a.loop.BindControls(a.input); err != nil {
		a.Close()
		return nil, err
	}

	if a.configPath != "" {
		a.watcher, err = config.Watch(a.configPath, a.reload)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	common.LogInfo("app ready", "backend", cfg.Window.Backend, "lights", len(a.lights))
	return a, nil
}

func (a *appImpl) createContext(api window.ClientAPI, vsync bool) (gpu.Context, error) {
	if api == window.APIOpenGL {
		a.win.MakeContextCurrent()
		ctx, err := glcontext.New(
			glcontext.WithSurface(a.win.Size),
			glcontext.WithPresenter(a.win.SwapBuffers),
		)
		if err != nil {
			return nil, err
		}
		return ctx, nil
	}
	desc := a.win.SurfaceDescriptor()
	if desc == nil {
		return nil, errors.New("window has no surface descriptor")
	}
	ctx, err := wgpucontext.New(desc,
		wgpucontext.WithSurfaceSize(a.win.Size),
		wgpucontext.WithVSync(vsync),
	)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// reload applies a hot-reloaded configuration. Window, backend and frame settings only take
// effect on restart.
func (a *appImpl) reload(c config.Config) {
	a.mu.Lock()
	a.cfg = c
	a.mu.Unlock()
	applyReload(c, a.lights, a.renderer)
}

func applyReload(c config.Config, lights []light.Light, r renderer.Renderer) int {
	if err := c.ApplyLogging(); err != nil {
		common.LogWarn("reloaded log level ignored", "err", err)
	}
	r.SetClearColor(mgl32.Vec4(c.Renderer.ClearColor))
	n := c.ApplyLights(lights)
	common.LogDebug("applied reloaded config", "lights", n)
	return n
}

// clientAPI maps a configured backend to the client API its window needs.
func clientAPI(b config.Backend) (window.ClientAPI, error) {
	switch b {
	case config.BackendGL:
		return window.APIOpenGL, nil
	case config.BackendWebGPU:
		return window.APINone, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", b)
	}
}

func (a *appImpl) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *appImpl) Window() window.Window         { return a.win }
func (a *appImpl) Context() gpu.Context          { return a.ctx }
func (a *appImpl) Renderer() renderer.Renderer   { return a.renderer }
func (a *appImpl) Loop() engine.AnimationLoop    { return a.loop }
func (a *appImpl) Camera() camera.Camera         { return a.camera }
func (a *appImpl) Controller() camera.Controller { return a.controller }
func (a *appImpl) Input() input.Registry         { return a.input }
func (a *appImpl) Lights() []light.Light         { return a.lights }

func (a *appImpl) Run() error {
	if err := a.loop.Start(); err != nil {
		return err
	}
	a.win.RunUntil(a.loop.Done())
	a.loop.Stop()
	return a.loop.Err()
}

func (a *appImpl) Close() {
	a.closeOnce.Do(func() {
		if a.watcher != nil {
			a.watcher.Close()
		}
		if a.loop != nil {
			a.loop.Stop()
		}
		if a.renderer != nil && a.ctx != nil {
			a.renderer.Release(a.ctx)
			a.renderer.Close()
		}
		if a.ctx != nil {
			a.ctx.Release()
		}
		if a.win != nil {
			a.win.Close()
		}
	})
}
