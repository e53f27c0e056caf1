package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/entity"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/shape"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/go-gl/mathgl/mgl32"
)

// manualScheduler runs the pending frame only when the test fires it.
type manualScheduler struct {
	mu        sync.Mutex
	pending   func(time.Time)
	requests  int
	cancelled bool
}

func (s *manualScheduler) RequestFrame(fn func(time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = fn
	s.requests++
}

func (s *manualScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	s.pending = nil
}

func (s *manualScheduler) fire(now time.Time) bool {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(now)
	return true
}

func (s *manualScheduler) armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}

func TestStartNeedsContext(t *testing.T) {
	l := NewAnimationLoop(WithScheduler(&manualScheduler{}))
	defer l.Stop()
	if err := l.Start(); !errors.Is(err, ErrNoContext) {
		t.Fatalf("Start = %v, want ErrNoContext", err)
	}
}

func TestFrameTiming(t *testing.T) {
	sched := &manualScheduler{}
	ctx := gputest.New()
	var infos []FrameInfo
	l := NewAnimationLoop(WithScheduler(sched), WithContext(ctx), WithUpdate(func(info FrameInfo) {
		infos = append(infos, info)
	}))
	defer l.Stop()
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}

	t0 := time.Unix(1000, 0)
	sched.fire(t0)
	sched.fire(t0.Add(100 * time.Millisecond))
	l.SetAnimating(false)
	sched.fire(t0.Add(200 * time.Millisecond))
	l.SetAnimating(true)
	sched.fire(t0.Add(300 * time.Millisecond))

	want := []struct {
		time, delta, elapsed float32
	}{
		{0, 0, 0},
		{0.1, 0.1, 0.1},
		{0.1, 0, 0.1},
		{0.2, 0.1, 0.1},
	}
	if len(infos) != len(want) {
		t.Fatalf("frames = %d, want %d", len(infos), len(want))
	}
	for i, w := range want {
		got := infos[i]
		if got.Frame != uint64(i) || !near(got.Time, w.time) || !near(got.Delta, w.delta) || !near(got.Elapsed, w.elapsed) {
			t.Errorf("frame %d = %+v, want time %v delta %v elapsed %v", i, got, w.time, w.delta, w.elapsed)
		}
	}
	if ctx.Presents != 4 {
		t.Errorf("presents = %d, want 4", ctx.Presents)
	}
	if !sched.armed() {
		t.Error("loop did not re-arm")
	}
	if l.LastFrame().Frame != 3 {
		t.Errorf("last frame = %d", l.LastFrame().Frame)
	}
}

func TestStopPreventsScheduling(t *testing.T) {
	sched := &manualScheduler{}
	ctx := gputest.New()
	var l AnimationLoop
	frames := 0
	l = NewAnimationLoop(WithScheduler(sched), WithContext(ctx), WithUpdate(func(info FrameInfo) {
		frames++
		if info.Frame == 1 {
			l.Stop()
		}
	}))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		sched.fire(now)
		now = now.Add(time.Second / 60)
	}
	if frames != 2 {
		t.Errorf("update ran %d times, want 2", frames)
	}
	if ctx.Presents != 1 {
		t.Errorf("presents = %d, want 1: the stopping frame must not draw", ctx.Presents)
	}
	if sched.armed() {
		t.Error("stopped loop re-armed")
	}
	select {
	case <-l.Done():
	default:
		t.Error("Done not closed")
	}
	if l.Err() != nil {
		t.Errorf("Err = %v", l.Err())
	}
	if sched.cancelled {
		t.Error("loop cancelled a scheduler it does not own")
	}
	if err := l.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Start after Stop = %v", err)
	}
	l.Stop()
}

func TestFlushErrorStopsLoop(t *testing.T) {
	reg := ubo.NewRegistry()
	if _, err := reg.Register("PhongMaterial", []ubo.Field{ubo.F("color", ubo.TypeVec4)}); err != nil {
		t.Fatal(err)
	}
	r := renderer.NewRenderer(renderer.WithLayoutRegistry(reg))
	defer r.Close()
	_ = r.Submit(entity.NewEntity(shape.Cube(), material.NewPhong(shader.Phong(), mgl32.Vec4{1, 1, 1, 1}, 0, 1, 1, 40)))

	sched := &manualScheduler{}
	ctx := gputest.New()
	l := NewAnimationLoop(WithScheduler(sched), WithContext(ctx), WithRenderer(r))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	sched.fire(time.Unix(0, 0))

	if !errors.Is(l.Err(), gpu.ErrLayout) {
		t.Fatalf("Err = %v, want ErrLayout", l.Err())
	}
	if sched.armed() {
		t.Error("loop re-armed after an aborted frame")
	}
	if ctx.Presents != 0 {
		t.Errorf("aborted frame presented")
	}
}

func TestFrameLimitSkipsEarlyFrames(t *testing.T) {
	sched := &manualScheduler{}
	ctx := gputest.New()
	l := NewAnimationLoop(WithScheduler(sched), WithContext(ctx), WithFrameLimit(10))
	defer l.Stop()
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	t0 := time.Unix(0, 0)
	for _, ms := range []int{0, 50, 100, 120, 200} {
		sched.fire(t0.Add(time.Duration(ms) * time.Millisecond))
	}
	if ctx.Presents != 3 {
		t.Errorf("presents = %d, want 3", ctx.Presents)
	}
	if !sched.armed() {
		t.Error("skipped frame did not re-arm")
	}
}

func TestSubmissionModels(t *testing.T) {
	tests := []struct {
		name  string
		clear bool
		want  int
	}{
		{"retained", false, 1},
		{"single frame", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &manualScheduler{}
			ctx := gputest.New()
			l := NewAnimationLoop(WithScheduler(sched), WithContext(ctx), WithClearEntities(tt.clear))
			defer l.Stop()
			_ = l.Renderer().Submit(entity.NewEntity(shape.Cube(), material.NewMaterial(shader.Basic(),
				material.WithValue("color", mgl32.Vec4{1, 1, 1, 1}))))
			if err := l.Start(); err != nil {
				t.Fatal(err)
			}
			sched.fire(time.Unix(0, 0))
			if n := len(l.Renderer().Entities()); n != tt.want {
				t.Errorf("entities after frame = %d, want %d", n, tt.want)
			}
			if len(ctx.Draws) != 1 {
				t.Errorf("draws = %d, want 1", len(ctx.Draws))
			}
		})
	}
}

func TestBindControlsTogglesAnimation(t *testing.T) {
	l := NewAnimationLoop(WithScheduler(&manualScheduler{}))
	defer l.Stop()
	reg := input.NewRegistry()
	if err := l.BindControls(reg); err != nil {
		t.Fatal(err)
	}
	if !l.Animating() {
		t.Fatal("loop starts paused")
	}
	reg.Press(common.KeyA, common.ModAlt)
	reg.Release(common.KeyA)
	if l.Animating() {
		t.Error("alt+a did not pause")
	}
	if reg.Press(common.KeyA, 0) {
		t.Error("plain a matched the alt+a shortcut")
	}
	reg.Release(common.KeyA)
	if l.Animating() {
		t.Error("plain a toggled animation")
	}
	reg.Press(common.KeyA, common.ModAlt)
	if !l.Animating() {
		t.Error("second alt+a did not resume")
	}
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(200)
	fired := make(chan time.Time, 1)
	s.RequestFrame(func(now time.Time) { fired <- now })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("frame never fired")
	}

	s.Cancel()
	s.Cancel()
	s.RequestFrame(func(now time.Time) { fired <- now })
	select {
	case <-fired:
		t.Error("frame fired after Cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
