package wgpucontext

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

func TestRecorderSplitsPasses(t *testing.T) {
	shadow := &framebuffer{depth: &texture{width: 8, height: 8, depth: true}}
	var r recorder
	if !r.empty() {
		t.Fatal("new recorder must be empty")
	}

	r.clear(shadow, gpu.ClearDepth|gpu.ClearColor, mgl32.Vec4{1, 0, 0, 1})
	r.draw(shadow, recordedDraw{count: 3})
	r.draw(shadow, recordedDraw{count: 6})
	r.clear(nil, gpu.ClearColor|gpu.ClearDepth, mgl32.Vec4{0, 0, 1, 1})
	r.draw(nil, recordedDraw{count: 36})
	// A clear after draws on the same target starts a new pass.
	r.clear(nil, gpu.ClearDepth, mgl32.Vec4{})
	r.draw(nil, recordedDraw{count: 12})

	if len(r.passes) != 3 {
		t.Fatalf("passes = %d, want 3", len(r.passes))
	}
	first := r.passes[0]
	if first.target != shadow || !first.clearDepth || first.clearColor || len(first.draws) != 2 {
		t.Errorf("shadow pass = %+v", first)
	}
	second := r.passes[1]
	if second.target != nil || !second.clearColor || second.color != (mgl32.Vec4{0, 0, 1, 1}) || len(second.draws) != 1 {
		t.Errorf("surface pass = %+v", second)
	}
	third := r.passes[2]
	if third.clearColor || !third.clearDepth || len(third.draws) != 1 || third.draws[0].count != 12 {
		t.Errorf("second surface pass = %+v", third)
	}

	r.reset()
	if !r.empty() {
		t.Error("reset must drop every pass")
	}
}

func TestRecorderClearBeforeDrawsMerges(t *testing.T) {
	var r recorder
	r.clear(nil, gpu.ClearColor, mgl32.Vec4{1, 1, 1, 1})
	r.clear(nil, gpu.ClearDepth, mgl32.Vec4{})
	r.draw(nil, recordedDraw{count: 3})
	if len(r.passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(r.passes))
	}
	if p := r.passes[0]; !p.clearColor || !p.clearDepth {
		t.Errorf("pass = %+v, want both clears", p)
	}
}

func TestArenaAlignment(t *testing.T) {
	a := newArena(256)
	offsets := []int{
		a.push(make([]byte, 64)),
		a.push(make([]byte, 300)),
		a.push([]byte{1, 2, 3, 4}),
	}
	want := []int{0, 256, 768}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset %d = %d, want %d", i, offsets[i], want[i])
		}
	}
	if got := len(a.bytes()); got != 772 {
		t.Errorf("arena size = %d, want 772", got)
	}
	if a.bytes()[768] != 1 {
		t.Error("snapshot bytes not copied")
	}
	a.reset()
	if a.push([]byte{9}) != 0 {
		t.Error("reset arena must start at 0")
	}
}

func TestNextCapacity(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 256},
		{256, 256},
		{257, 512},
		{5000, 8192},
	}
	for _, tt := range tests {
		if got := nextCapacity(tt.n); got != tt.want {
			t.Errorf("nextCapacity(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
