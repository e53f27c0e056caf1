package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/profiler"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer"
)

var (
	// ErrNoContext is returned by Start when the loop has no graphics context to draw on.
	ErrNoContext = errors.New("animation loop has no graphics context")

	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("animation loop stopped")
)

// FrameInfo describes one frame to update callbacks.
type FrameInfo struct {
	// Now is the timestamp the scheduler delivered the frame at.
	Now time.Time
	// Time is the animation time in seconds. It only advances while animating.
	Time float32
	// Delta is the animation time step of this frame, 0 while paused.
	Delta float32
	// Elapsed is the wall time since the previous frame in seconds, whether animating or not.
	Elapsed float32
	// Frame counts rendered frames from 0.
	Frame uint64
}

// UpdateFunc is an application callback run once per frame before the renderer flushes.
type UpdateFunc func(info FrameInfo)

// animationLoop implements the AnimationLoop interface.
type animationLoop struct {
	mu *sync.Mutex

	scheduler      Scheduler
	ownsScheduler  bool
	renderer       renderer.Renderer
	ownsRenderer   bool
	ctx            gpu.Context
	lights         []light.Light
	updates        []UpdateFunc
	clearEntities  bool
	frameLimit     time.Duration
	profiler       *profiler.Profiler
	startAnimating bool

	animating atomic.Bool
	started   bool
	stopped   atomic.Bool
	stopOnce  *sync.Once
	done      chan struct{}

	prev     time.Time
	animTime float32
	frame    uint64
	last     FrameInfo
	err      error
}

// AnimationLoop drives one surface: each frame it computes the time step, runs the update
// callbacks, clears the surface, flushes the renderer, presents, and asks its Scheduler for the
// next frame. Frames never overlap; Stop prevents any further scheduling.
type AnimationLoop interface {
	// Start requests the first frame.
	//
	// Returns:
	//   - error: ErrNoContext without a graphics context, ErrStopped after Stop
	Start() error

	// Stop ends the loop. The pending frame, if any, does nothing. Safe to call multiple times
	// and from inside an update callback.
	Stop()

	// Done is closed once the loop has stopped.
	Done() <-chan struct{}

	// Err returns the error that stopped the loop, nil after a plain Stop.
	Err() error

	// Renderer returns the renderer the loop flushes.
	Renderer() renderer.Renderer

	// Context returns the graphics context the loop draws on.
	Context() gpu.Context

	// AddUpdate registers a per-frame callback. Callbacks run in registration order.
	//
	// Parameters:
	//   - fn: the callback
	AddUpdate(fn UpdateFunc)

	// SetLights replaces the lights passed to the renderer each frame.
	SetLights(lights ...light.Light)

	// Lights returns a copy of the current lights.
	Lights() []light.Light

	// SetAnimating pauses or resumes animation time. Frames keep rendering while paused.
	SetAnimating(animating bool)

	// Animating reports whether animation time advances.
	Animating() bool

	// LastFrame returns the info of the most recent frame.
	LastFrame() FrameInfo

	// BindControls registers the loop's keyboard shortcuts: alt+a toggles animation.
	//
	// Parameters:
	//   - reg: the shortcut registry to bind into
	//
	// Returns:
	//   - error: a binding error
	BindControls(reg input.Registry) error
}

var _ AnimationLoop = &animationLoop{}

// NewAnimationLoop creates a stopped loop. Without WithScheduler it drives itself with a 60 fps
// ticker scheduler, and without WithRenderer it creates its own renderer; both are released by
// Stop.
//
// Parameters:
//   - options: scheduler, renderer, context, lights and callback options
//
// Returns:
//   - AnimationLoop: the loop
func NewAnimationLoop(options ...AnimationLoopBuilderOption) AnimationLoop {
	l := &animationLoop{
		mu:             &sync.Mutex{},
		clearEntities:  false,
		startAnimating: true,
		stopOnce:       &sync.Once{},
		done:           make(chan struct{}),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.scheduler == nil {
		l.scheduler = NewTickerScheduler(60)
		l.ownsScheduler = true
	}
	if l.renderer == nil {
		l.renderer = renderer.NewRenderer()
		l.ownsRenderer = true
	}
	l.animating.Store(l.startAnimating)
	return l
}

func (l *animationLoop) Start() error {
	if l.stopped.Load() {
		return ErrStopped
	}
	l.mu.Lock()
	if l.ctx == nil {
		l.mu.Unlock()
		return ErrNoContext
	}
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.mu.Unlock()

	common.LogDebug("animation loop started", "context", l.ctx.ID())
	l.scheduler.RequestFrame(l.tick)
	return nil
}

func (l *animationLoop) Stop() {
	l.stopWith(nil)
}

// stopWith stops the loop once, recording why.
func (l *animationLoop) stopWith(err error) {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		l.mu.Lock()
		l.err = err
		frames := l.frame
		l.mu.Unlock()
		if l.ownsScheduler {
			l.scheduler.Cancel()
		}
		if l.ownsRenderer {
			l.renderer.Close()
		}
		close(l.done)
		common.LogDebug("animation loop stopped", "frames", frames, "err", err)
	})
}

func (l *animationLoop) Done() <-chan struct{} {
	return l.done
}

func (l *animationLoop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *animationLoop) Renderer() renderer.Renderer {
	return l.renderer
}

func (l *animationLoop) Context() gpu.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctx
}

func (l *animationLoop) AddUpdate(fn UpdateFunc) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, fn)
}

func (l *animationLoop) SetLights(lights ...light.Light) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lights = append([]light.Light(nil), lights...)
}

func (l *animationLoop) Lights() []light.Light {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]light.Light(nil), l.lights...)
}

func (l *animationLoop) SetAnimating(animating bool) {
	l.animating.Store(animating)
}

func (l *animationLoop) Animating() bool {
	return l.animating.Load()
}

func (l *animationLoop) LastFrame() FrameInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *animationLoop) BindControls(reg input.Registry) error {
	return reg.Bind("(Un)pause animation", "alt+a", func() {
		l.SetAnimating(!l.Animating())
	}, nil)
}

// tick runs one frame and re-arms the scheduler.
func (l *animationLoop) tick(now time.Time) {
	if l.stopped.Load() {
		return
	}

	l.mu.Lock()
	if l.frameLimit > 0 && !l.prev.IsZero() && now.Sub(l.prev) < l.frameLimit {
		l.mu.Unlock()
		l.scheduler.RequestFrame(l.tick)
		return
	}
	var elapsed float32
	if !l.prev.IsZero() {
		elapsed = float32(now.Sub(l.prev).Seconds())
	}
	l.prev = now
	var delta float32
	animating := l.animating.Load()
	if animating {
		delta = elapsed
		l.animTime += delta
	}
	info := FrameInfo{Now: now, Time: l.animTime, Delta: delta, Elapsed: elapsed, Frame: l.frame}
	l.frame++
	l.last = info
	updates := append([]UpdateFunc(nil), l.updates...)
	lights := append([]light.Light(nil), l.lights...)
	ctx, clearEntities, prof := l.ctx, l.clearEntities, l.profiler
	l.mu.Unlock()

	for _, fn := range updates {
		fn(info)
		if l.stopped.Load() {
			return
		}
	}

	l.renderer.SetFrameUniforms(info.Time, info.Delta)
	l.renderer.SetAnimating(animating)
	l.renderer.BeginFrame(ctx)
	if err := l.renderer.Flush(ctx, lights, clearEntities, nil); err != nil {
		common.LogError("frame aborted, stopping animation loop", "frame", info.Frame, "err", err)
		l.stopWith(err)
		return
	}
	if err := ctx.Present(); err != nil {
		common.LogWarn("present failed", "frame", info.Frame, "err", err)
	}
	if prof != nil {
		prof.Tick(now)
	}

	if !l.stopped.Load() {
		l.scheduler.RequestFrame(l.tick)
	}
}
