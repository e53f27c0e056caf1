package wgpucontext

import (
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// uniformRef locates one block's snapshot inside the frame arena.
type uniformRef struct {
	group, binding int
	offset, size   int
}

// recordedDraw is a draw captured at Draw time and encoded at Present.
type recordedDraw struct {
	prog      *program
	key       pipelineKey
	vertices  []*buffer
	indices   *buffer
	count     int
	instances int
	viewport  gpu.Viewport
	uniforms  []uniformRef
	// textures follows the program's sampler order.
	textures []*texture
}

// recordedPass is one render pass: a target, its load operations and the draws into it.
type recordedPass struct {
	target     *framebuffer
	clearColor bool
	color      mgl32.Vec4
	clearDepth bool
	draws      []recordedDraw
}

// recorder splits the clears and draws of a frame into render passes. A pass ends when the target
// changes or when a clear follows draws, since load operations only apply at the start of a pass.
type recorder struct {
	passes []recordedPass
}

func (r *recorder) current(target *framebuffer) *recordedPass {
	if n := len(r.passes); n > 0 && r.passes[n-1].target == target {
		return &r.passes[n-1]
	}
	r.passes = append(r.passes, recordedPass{target: target})
	return &r.passes[len(r.passes)-1]
}

func (r *recorder) clear(target *framebuffer, flags gpu.ClearFlags, color mgl32.Vec4) {
	p := r.current(target)
	if len(p.draws) > 0 {
		r.passes = append(r.passes, recordedPass{target: target})
		p = &r.passes[len(r.passes)-1]
	}
	if flags&gpu.ClearColor != 0 && target == nil {
		p.clearColor = true
		p.color = color
	}
	if flags&gpu.ClearDepth != 0 {
		p.clearDepth = true
	}
}

func (r *recorder) draw(target *framebuffer, d recordedDraw) {
	p := r.current(target)
	p.draws = append(p.draws, d)
}

func (r *recorder) empty() bool {
	return len(r.passes) == 0
}

func (r *recorder) reset() {
	clear(r.passes)
	r.passes = r.passes[:0]
}

// arena packs the uniform snapshots of a frame into one buffer. Every snapshot starts at a
// multiple of align, the device's minimum uniform buffer offset alignment.
type arena struct {
	align int
	data  []byte
}

func newArena(align int) *arena {
	return &arena{align: max(align, 4)}
}

// push appends b and returns its offset.
func (a *arena) push(b []byte) int {
	off := (len(a.data) + a.align - 1) / a.align * a.align
	for len(a.data) < off {
		a.data = append(a.data, 0)
	}
	a.data = append(a.data, b...)
	return off
}

func (a *arena) bytes() []byte {
	return a.data
}

func (a *arena) reset() {
	a.data = a.data[:0]
}

// nextCapacity grows a buffer capacity to the next power of two holding n bytes.
func nextCapacity(n int) int {
	c := 256
	for c < n {
		c *= 2
	}
	return c
}
