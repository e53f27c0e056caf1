package wgpucontext

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type buffer struct {
	buf   *wgpu.Buffer
	kind  gpu.BufferKind
	size  int
	owner *Context
	// shadow mirrors uniform buffers on the CPU; draws snapshot it into the frame arena.
	shadow []byte
}

func (b *buffer) Size() int { return b.size }

type blockSlot struct {
	group, binding int
	size           int
}

type program struct {
	label     string
	module    *wgpu.ShaderModule
	vsEntry   string
	fsEntry   string
	layouts   []*wgpu.BindGroupLayout
	layout    *wgpu.PipelineLayout
	blocks    map[string]blockSlot
	points    map[string]int
	samplers  []gpu.SamplerBinding
	order     []gpu.AttributeBinding
	pipelines map[pipelineKey]*wgpu.RenderPipeline
	owner     *Context
}

func (p *program) Label() string { return p.label }

func (p *program) release() {
	for _, rp := range p.pipelines {
		rp.Release()
	}
	clear(p.pipelines)
	if p.layout != nil {
		p.layout.Release()
	}
	for _, l := range p.layouts {
		if l != nil {
			l.Release()
		}
	}
	if p.module != nil {
		p.module.Release()
	}
}

type texture struct {
	tex           *wgpu.Texture
	view          *wgpu.TextureView
	sampler       *wgpu.Sampler
	width, height int
	depth         bool
	owner         *Context
}

func (t *texture) Width() int  { return t.width }
func (t *texture) Height() int { return t.height }

func (t *texture) release() {
	if t.sampler != nil && !t.depth {
		t.sampler.Release()
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.tex != nil {
		t.tex.Release()
	}
}

type framebuffer struct {
	depth *texture
	owner *Context
}

func (f *framebuffer) Width() int         { return f.depth.width }
func (f *framebuffer) Height() int        { return f.depth.height }
func (f *framebuffer) Depth() gpu.Texture { return f.depth }

// vertexFormat returns the vertex format of one attribute column.
func vertexFormat(components int) (wgpu.VertexFormat, error) {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32, nil
	case 2:
		return wgpu.VertexFormatFloat32x2, nil
	case 3:
		return wgpu.VertexFormatFloat32x3, nil
	case 4:
		return wgpu.VertexFormatFloat32x4, nil
	default:
		return 0, fmt.Errorf("no vertex format for %d components", components)
	}
}

// vertexLayout builds the buffer layout of one attribute. Attributes wider than a vec4 are split
// into consecutive vec4 columns on consecutive shader locations.
func vertexLayout(location, components, divisor int) (wgpu.VertexBufferLayout, error) {
	cols, per := 1, components
	if components > 4 {
		if components%4 != 0 {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("no vertex format for %d components", components)
		}
		cols, per = components/4, 4
	}
	format, err := vertexFormat(per)
	if err != nil {
		return wgpu.VertexBufferLayout{}, err
	}
	step := wgpu.VertexStepModeVertex
	if divisor > 0 {
		if divisor != 1 {
			return wgpu.VertexBufferLayout{}, fmt.Errorf("instance divisor %d unsupported, only 1", divisor)
		}
		step = wgpu.VertexStepModeInstance
	}
	attrs := make([]wgpu.VertexAttribute, cols)
	for i := range attrs {
		attrs[i] = wgpu.VertexAttribute{
			Format:         format,
			Offset:         uint64(i * per * 4),
			ShaderLocation: uint32(location + i),
		}
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(components * 4),
		StepMode:    step,
		Attributes:  attrs,
	}, nil
}

func wgpuTopology(t gpu.Topology) wgpu.PrimitiveTopology {
	switch t {
	case gpu.TopologyTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip
	case gpu.TopologyLines:
		return wgpu.PrimitiveTopologyLineList
	default:
		return wgpu.PrimitiveTopologyTriangleList
	}
}

func wgpuFilter(f gpu.FilterMode) wgpu.FilterMode {
	if f == gpu.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func wgpuWrap(w gpu.WrapMode) wgpu.AddressMode {
	switch w {
	case gpu.WrapClamp:
		return wgpu.AddressModeClampToEdge
	case gpu.WrapMirror:
		return wgpu.AddressModeMirrorRepeat
	default:
		return wgpu.AddressModeRepeat
	}
}
