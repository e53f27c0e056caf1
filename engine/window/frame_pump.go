package window

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
)

// framePump holds at most one pending frame request and runs it from the window's message loop,
// on the thread that owns the graphics context.
type framePump struct {
	mu        *sync.Mutex
	pending   func(time.Time)
	cancelled bool
}

func newFramePump() *framePump {
	return &framePump{mu: &sync.Mutex{}}
}

func (p *framePump) request(fn func(time.Time)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return
	}
	p.pending = fn
}

func (p *framePump) cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = true
	p.pending = nil
}

// run takes the pending request and runs it. It reports whether a frame ran.
func (p *framePump) run(now time.Time) bool {
	p.mu.Lock()
	fn := p.pending
	p.pending = nil
	p.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(now)
	return true
}

// modMask keeps shift, control, alt and super; lock keys never take part in shortcuts.
const modMask = common.ModShift | common.ModControl | common.ModAlt | common.ModSuper

// keyAction is a platform-independent key event.
type keyAction int

const (
	keyPress keyAction = iota
	keyRepeat
	keyRelease
)

// forwardKey feeds one key event into a shortcut registry. Repeats are dropped since the
// registry already ignores presses of held keys.
func forwardKey(reg input.Registry, key, mods int, action keyAction) {
	if reg == nil || key < 0 {
		return
	}
	switch action {
	case keyPress:
		reg.Press(key, mods&modMask)
	case keyRelease:
		reg.Release(key)
	}
}
