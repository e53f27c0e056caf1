package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/profiler"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer"
)

// AnimationLoopBuilderOption is a functional option for configuring an AnimationLoop.
// Use the With* functions to create options that are applied directly to the loop instance.
type AnimationLoopBuilderOption func(*animationLoop)

// WithScheduler sets the host frame scheduler. The loop never cancels a scheduler it was given.
//
// Parameters:
//   - s: the scheduler, e.g. a window's frame pump
//
// Returns:
//   - AnimationLoopBuilderOption: option function to apply
func WithScheduler(s Scheduler) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.scheduler = s
		l.ownsScheduler = false
	}
}

// WithRenderer sets the renderer the loop flushes. The loop never closes a renderer it was given.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - AnimationLoopBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.renderer = r
		l.ownsRenderer = false
	}
}

// WithContext sets the graphics context of the surface the loop draws on.
//
// Parameters:
//   - ctx: the context
//
// Returns:
//   - AnimationLoopBuilderOption: option function to apply
func WithContext(ctx gpu.Context) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.ctx = ctx
	}
}

// WithLights sets the lights passed to the renderer each frame.
func WithLights(lights ...light.Light) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.lights = append([]light.Light(nil), lights...)
	}
}

// WithUpdate registers a per-frame callback. May be given more than once.
func WithUpdate(fn UpdateFunc) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		if fn != nil {
			l.updates = append(l.updates, fn)
		}
	}
}

// WithClearEntities selects the single-frame submission model: the renderer's draw list is
// emptied after every frame, so update callbacks resubmit what they want drawn. The default
// retains submitted entities across frames.
func WithClearEntities(clear bool) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.clearEntities = clear
	}
}

// WithFrameLimit caps the rendered frame rate below the scheduler's rate. Scheduled frames that
// arrive early are skipped. Pass 0 to render every scheduled frame (default).
//
// Parameters:
//   - fps: maximum rendered frames per second (0 = uncapped)
//
// Returns:
//   - AnimationLoopBuilderOption: option function to apply
func WithFrameLimit(fps float64) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		if fps <= 0 {
			l.frameLimit = 0
			return
		}
		l.frameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithProfiler ticks a profiler once per rendered frame.
func WithProfiler(p *profiler.Profiler) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.profiler = p
	}
}

// WithAnimating sets whether animation time advances from the first frame (default true).
func WithAnimating(animating bool) AnimationLoopBuilderOption {
	return func(l *animationLoop) {
		l.startAnimating = animating
	}
}
