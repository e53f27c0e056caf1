package window

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
)

func TestFramePumpRunsOncePerRequest(t *testing.T) {
	p := newFramePump()
	runs := 0
	if p.run(time.Now()) {
		t.Fatal("ran without a request")
	}
	p.request(func(time.Time) { runs++ })
	p.request(func(time.Time) { runs += 10 })
	if !p.run(time.Now()) || p.run(time.Now()) {
		t.Fatal("request did not run exactly once")
	}
	if runs != 10 {
		t.Errorf("runs = %d, want the replacing request only", runs)
	}

	p.request(func(time.Time) { runs++ })
	p.cancel()
	p.request(func(time.Time) { runs++ })
	if p.run(time.Now()) {
		t.Error("cancelled pump ran a frame")
	}
}

func TestForwardKey(t *testing.T) {
	reg := input.NewRegistry()
	presses, releases := 0, 0
	if err := reg.Bind("toggle", "alt+a", func() { presses++ }, func() { releases++ }); err != nil {
		t.Fatal(err)
	}

	const capsLock = 0x10
	forwardKey(reg, common.KeyA, common.ModAlt|capsLock, keyPress)
	forwardKey(reg, common.KeyA, common.ModAlt|capsLock, keyRepeat)
	forwardKey(reg, common.KeyA, 0, keyRelease)
	forwardKey(reg, -1, 0, keyPress)
	forwardKey(nil, common.KeyA, 0, keyPress)

	if presses != 1 || releases != 1 {
		t.Errorf("presses/releases = %d/%d, want 1/1", presses, releases)
	}
}
