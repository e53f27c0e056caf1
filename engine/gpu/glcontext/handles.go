package glcontext

import (
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/gl/v4.1-core/gl"
)

type buffer struct {
	id     uint32
	target uint32
	size   int
	owner  *Context
}

func (b *buffer) Size() int { return b.size }

type program struct {
	id         uint32
	label      string
	attributes map[string]gpu.AttributeBinding
	samplers   []gpu.SamplerBinding
	owner      *Context
}

func (p *program) Label() string { return p.label }

type texture struct {
	id            uint32
	width, height int
	depth         bool
	owner         *Context
}

func (t *texture) Width() int  { return t.width }
func (t *texture) Height() int { return t.height }

type framebuffer struct {
	id    uint32
	depth *texture
	owner *Context
}

func (f *framebuffer) Width() int         { return f.depth.width }
func (f *framebuffer) Height() int        { return f.depth.height }
func (f *framebuffer) Depth() gpu.Texture { return f.depth }

// attribColumns splits an attribute wider than a vec4 into consecutive vec4 locations, the way
// GLSL assigns a mat4 input four locations.
//
// Returns the number of locations and the component count of each.
func attribColumns(components int) (int, int) {
	if components <= 4 {
		return 1, components
	}
	return (components + 3) / 4, 4
}

func glTopology(t gpu.Topology) uint32 {
	switch t {
	case gpu.TopologyTriangleStrip:
		return gl.TRIANGLE_STRIP
	case gpu.TopologyLines:
		return gl.LINES
	default:
		return gl.TRIANGLES
	}
}

func glBufferTarget(kind gpu.BufferKind) uint32 {
	switch kind {
	case gpu.BufferIndex:
		return gl.ELEMENT_ARRAY_BUFFER
	case gpu.BufferUniform:
		return gl.UNIFORM_BUFFER
	default:
		return gl.ARRAY_BUFFER
	}
}

func glUsage(u gpu.Usage) uint32 {
	switch u {
	case gpu.UsageDynamic:
		return gl.DYNAMIC_DRAW
	case gpu.UsageStream:
		return gl.STREAM_DRAW
	default:
		return gl.STATIC_DRAW
	}
}

func glFilter(f gpu.FilterMode, mipmaps bool) int32 {
	switch f {
	case gpu.FilterNearest:
		return gl.NEAREST
	case gpu.FilterLinearMipmap:
		if mipmaps {
			return gl.LINEAR_MIPMAP_LINEAR
		}
		return gl.LINEAR
	default:
		return gl.LINEAR
	}
}

func glWrap(w gpu.WrapMode) int32 {
	switch w {
	case gpu.WrapClamp:
		return gl.CLAMP_TO_EDGE
	case gpu.WrapMirror:
		return gl.MIRRORED_REPEAT
	default:
		return gl.REPEAT
	}
}
