package wgpucontext

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	surfaceDepthFormat = wgpu.TextureFormatDepth24Plus
	shadowDepthFormat  = wgpu.TextureFormatDepth32Float
)

// pipelineKey identifies one render pipeline of a program. WebGPU bakes the target formats,
// topology and vertex layout into the pipeline, so a program owns one pipeline per combination.
type pipelineKey struct {
	depthOnly bool
	topology  gpu.Topology
	layout    string
}

// layoutKey describes the vertex buffers a draw supplies, in the program's attribute order.
func layoutKey(order []gpu.AttributeBinding, bindings []gpu.VertexBinding) (string, error) {
	var sb strings.Builder
	for _, a := range order {
		vb, ok := findBinding(bindings, a.Name)
		if !ok {
			return "", fmt.Errorf("attribute %q has no buffer", a.Name)
		}
		fmt.Fprintf(&sb, "%d:%d/%d;", a.Location, vb.Components, vb.Divisor)
	}
	return sb.String(), nil
}

func findBinding(bindings []gpu.VertexBinding, name string) (gpu.VertexBinding, bool) {
	for _, vb := range bindings {
		if vb.Name == name {
			return vb, true
		}
	}
	return gpu.VertexBinding{}, false
}

// groupLayouts builds one bind group layout descriptor per group index the program uses. Groups
// without declarations get an empty layout so indices stay contiguous.
func groupLayouts(label string, desc gpu.ProgramDesc) []wgpu.BindGroupLayoutDescriptor {
	groups := -1
	for _, b := range desc.Blocks {
		groups = max(groups, b.Group)
	}
	for _, s := range desc.Samplers {
		groups = max(groups, s.Group)
	}
	out := make([]wgpu.BindGroupLayoutDescriptor, groups+1)
	for g := range out {
		out[g].Label = fmt.Sprintf("%s group %d", label, g)
	}
	visibility := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	for _, b := range desc.Blocks {
		e := wgpu.BindGroupLayoutEntry{Binding: uint32(b.Binding), Visibility: visibility}
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		e.Buffer.MinBindingSize = uint64(b.Size)
		out[b.Group].Entries = append(out[b.Group].Entries, e)
	}
	for _, s := range desc.Samplers {
		tex := wgpu.BindGroupLayoutEntry{Binding: uint32(s.Binding), Visibility: wgpu.ShaderStageFragment}
		tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
		smp := wgpu.BindGroupLayoutEntry{Binding: uint32(s.SamplerBinding), Visibility: wgpu.ShaderStageFragment}
		if s.Depth {
			tex.Texture.SampleType = wgpu.TextureSampleTypeDepth
			smp.Sampler.Type = wgpu.SamplerBindingTypeComparison
		} else {
			tex.Texture.SampleType = wgpu.TextureSampleTypeFloat
			smp.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		}
		out[s.Group].Entries = append(out[s.Group].Entries, tex, smp)
	}
	return out
}

func (c *Context) pipeline(p *program, key pipelineKey, bindings []gpu.VertexBinding) (*wgpu.RenderPipeline, error) {
	if rp, ok := p.pipelines[key]; ok {
		return rp, nil
	}
	buffers := make([]wgpu.VertexBufferLayout, 0, len(p.order))
	for _, a := range p.order {
		vb, _ := findBinding(bindings, a.Name)
		l, err := vertexLayout(a.Location, vb.Components, vb.Divisor)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		buffers = append(buffers, l)
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.label,
		Layout: p.layout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: p.vsEntry,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpuTopology(key.topology),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            surfaceDepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLessEqual,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
	}
	if key.depthOnly {
		desc.Label += " depth"
		desc.DepthStencil.Format = shadowDepthFormat
		// Front-face culling keeps the lit faces out of the shadow map.
		desc.Primitive.CullMode = wgpu.CullModeFront
	} else {
		desc.Fragment = &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: p.fsEntry,
			Targets: []wgpu.ColorTargetState{{
				Format:    c.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		}
	}
	if key.topology == gpu.TopologyLines {
		desc.Primitive.CullMode = wgpu.CullModeNone
	}

	rp, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, &gpu.CompileError{Label: p.label, Stage: gpu.StagePipeline, Log: err.Error()}
	}
	p.pipelines[key] = rp
	return rp, nil
}
