// Package wgpucontext implements gpu.Context on WebGPU through cogentcore/webgpu. Clears and draws
// are recorded into render passes and encoded in one command buffer at Present. Uniform buffers
// live on the CPU: every draw snapshots the blocks it reads into a per-frame arena, so later
// UpdateBuffer calls never leak into earlier draws. Vertex and index buffer writes are queued
// immediately and therefore apply to the whole frame they were issued in.
package wgpucontext

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Context is a WebGPU implementation of gpu.Context.
type Context struct {
	id            gpu.ContextID
	limits        gpu.Limits
	surfaceSize   func() (int, int)
	vsync         bool
	validate      bool
	forceFallback bool

	instance      *wgpu.Instance
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	presentMode   wgpu.PresentMode
	width, height int
	depth         *texture

	compare   *wgpu.Sampler
	fallback  *texture
	depthFill *texture

	buffers      map[*buffer]struct{}
	programs     map[*program]struct{}
	textures     map[*texture]struct{}
	framebuffers map[*framebuffer]struct{}

	units      []*texture
	points     map[int]*buffer
	current    *framebuffer
	viewport   gpu.Viewport
	clearColor mgl32.Vec4

	frame    recorder
	uniforms *arena
	arenaBuf *wgpu.Buffer
	arenaCap int
	released bool
}

var _ gpu.Context = &Context{}

// New creates a WebGPU device for the surface described by desc and configures the surface.
//
// Parameters:
//   - desc: the platform surface, usually from a window created without a client API
//   - options: surface size, presentation and validation options
//
// Returns:
//   - *Context: the context
//   - error: an error if no adapter or device is available
func New(desc *wgpu.SurfaceDescriptor, options ...ContextBuilderOption) (*Context, error) {
	if desc == nil {
		return nil, errors.New("webgpu context needs a surface descriptor")
	}
	c := &Context{
		id:           gpu.NextContextID(),
		surfaceSize:  func() (int, int) { return 0, 0 },
		vsync:        true,
		validate:     true,
		buffers:      make(map[*buffer]struct{}),
		programs:     make(map[*program]struct{}),
		textures:     make(map[*texture]struct{}),
		framebuffers: make(map[*framebuffer]struct{}),
		points:       make(map[int]*buffer),
		clearColor:   mgl32.Vec4{0, 0, 0, 1},
	}
	for _, opt := range options {
		opt(c)
	}

	c.instance = wgpu.CreateInstance(nil)
	c.surface = c.instance.CreateSurface(desc)
	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: c.forceFallback,
		CompatibleSurface:    c.surface,
	})
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	c.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "oxy-tiny device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	c.device = device
	c.queue = device.GetQueue()

	defaults := wgpu.DefaultLimits()
	c.limits = gpu.Limits{
		MaxUniformBindings:  int(defaults.MaxUniformBuffersPerShaderStage),
		MaxTextureUnits:     int(defaults.MaxSampledTexturesPerShaderStage),
		MaxUniformBlockSize: int(defaults.MaxUniformBufferBindingSize),
	}
	c.units = make([]*texture, c.limits.MaxTextureUnits)
	c.uniforms = newArena(int(defaults.MinUniformBufferOffsetAlignment))

	caps := c.surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		c.Release()
		return nil, errors.New("surface is not supported by the adapter")
	}
	c.surfaceFormat = caps.Formats[0]
	c.alphaMode = caps.AlphaModes[0]
	c.presentMode = wgpu.PresentModeFifo
	if !c.vsync && slices.Contains(caps.PresentModes, wgpu.PresentModeImmediate) {
		c.presentMode = wgpu.PresentModeImmediate
	}
	w, h := c.surfaceSize()
	if err := c.configure(w, h); err != nil {
		c.Release()
		return nil, err
	}
	c.viewport = gpu.Viewport{Width: w, Height: h}

	c.compare, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "shadow comparison sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	if err != nil {
		c.Release()
		return nil, fmt.Errorf("create comparison sampler: %w", err)
	}

	white := []byte{255, 255, 255, 255}
	fb, err := c.CreateTexture(gpu.TextureDesc{Label: "fallback", Width: 1, Height: 1}, white)
	if err != nil {
		c.Release()
		return nil, err
	}
	c.fallback = fb.(*texture)
	depth, err := c.CreateDepthTexture(gpu.TextureDesc{Label: "fallback_depth", Width: 1, Height: 1})
	if err != nil {
		c.Release()
		return nil, err
	}
	c.depthFill = depth.(*texture)
	if err := c.clearDepthTexture(c.depthFill); err != nil {
		c.Release()
		return nil, err
	}

	common.LogInfo("webgpu context ready",
		"context", c.id,
		"format", c.surfaceFormat,
		"present_mode", c.presentMode,
		"uniform_bindings", c.limits.MaxUniformBindings,
		"texture_units", c.limits.MaxTextureUnits)
	return c, nil
}

func (c *Context) ID() gpu.ContextID             { return c.id }
func (c *Context) Language() gpu.ShadingLanguage { return gpu.LanguageWGSL }
func (c *Context) Limits() gpu.Limits            { return c.limits }
func (c *Context) Size() (int, int)              { return c.surfaceSize() }

func (c *Context) configure(w, h int) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	c.surface.Configure(c.adapter, c.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      c.surfaceFormat,
		Width:       uint32(w),
		Height:      uint32(h),
		PresentMode: c.presentMode,
		AlphaMode:   c.alphaMode,
	})
	if c.depth != nil {
		c.depth.release()
		c.depth = nil
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "surface depth",
		Usage:         wgpu.TextureUsageRenderAttachment,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        surfaceDepthFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("create surface depth: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("create surface depth view: %w", err)
	}
	c.depth = &texture{tex: tex, view: view, width: w, height: h, depth: true, owner: c}
	c.width, c.height = w, h
	common.LogDebug("webgpu surface configured", "context", c.id, "width", w, "height", h)
	return nil
}

func (c *Context) CreateBuffer(kind gpu.BufferKind, usage gpu.Usage, data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("empty buffer")
	}
	b := &buffer{kind: kind, size: len(data), owner: c}
	if kind == gpu.BufferUniform {
		b.shadow = slices.Clone(data)
		c.buffers[b] = struct{}{}
		return b, nil
	}

	flags := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if kind == gpu.BufferIndex {
		flags = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}
	buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: fmt.Sprintf("buffer %d", len(c.buffers)),
		Size:  uint64(align4(len(data))),
		Usage: flags,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}
	b.buf = buf
	if err := c.queue.WriteBuffer(buf, 0, pad4(data)); err != nil {
		buf.Release()
		return nil, fmt.Errorf("write buffer: %w", err)
	}
	c.buffers[b] = struct{}{}
	return b, nil
}

func (c *Context) UpdateBuffer(buf gpu.Buffer, offset int, data []byte) error {
	b, err := c.ownBuffer(buf)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("write of %d bytes at %d overflows %d byte buffer", len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if b.shadow != nil {
		copy(b.shadow[offset:], data)
		return nil
	}
	if offset%4 != 0 {
		return fmt.Errorf("buffer write offset %d is not 4 byte aligned", offset)
	}
	return c.queue.WriteBuffer(b.buf, uint64(offset), pad4(data))
}

func (c *Context) DeleteBuffer(buf gpu.Buffer) {
	b, err := c.ownBuffer(buf)
	if err != nil {
		return
	}
	for point, bound := range c.points {
		if bound == b {
			delete(c.points, point)
		}
	}
	if b.buf != nil {
		b.buf.Release()
	}
	delete(c.buffers, b)
}

func (c *Context) CompileProgram(desc gpu.ProgramDesc) (gpu.Program, error) {
	if desc.Language != gpu.LanguageWGSL {
		return nil, fmt.Errorf("webgpu cannot compile %v: %w", desc.Language, gpu.ErrContextMismatch)
	}
	source := desc.VertexSource
	if desc.FragmentSource != "" && desc.FragmentSource != desc.VertexSource {
		source += "\n" + desc.FragmentSource
	}
	if c.validate {
		if err := validate(desc.Label, source); err != nil {
			return nil, err
		}
	}
	module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, &gpu.CompileError{Label: desc.Label, Stage: gpu.StageModule, Log: err.Error()}
	}

	p := &program{
		label:     desc.Label,
		module:    module,
		vsEntry:   common.Coalesce(desc.VertexEntry, "vs_main"),
		fsEntry:   common.Coalesce(desc.FragmentEntry, "fs_main"),
		blocks:    make(map[string]blockSlot, len(desc.Blocks)),
		points:    make(map[string]int, len(desc.Blocks)),
		samplers:  desc.Samplers,
		order:     desc.Attributes,
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
		owner:     c,
	}
	for _, b := range desc.Blocks {
		p.blocks[b.Name] = blockSlot{group: b.Group, binding: b.Binding, size: b.Size}
	}
	for _, ld := range groupLayouts(desc.Label, desc) {
		l, err := c.device.CreateBindGroupLayout(&ld)
		if err != nil {
			p.release()
			return nil, &gpu.CompileError{Label: desc.Label, Stage: gpu.StageLink, Log: err.Error()}
		}
		p.layouts = append(p.layouts, l)
	}
	p.layout, err = c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: p.layouts,
	})
	if err != nil {
		p.release()
		return nil, &gpu.CompileError{Label: desc.Label, Stage: gpu.StageLink, Log: err.Error()}
	}
	c.programs[p] = struct{}{}
	return p, nil
}

func (c *Context) DeleteProgram(prog gpu.Program) {
	p, ok := prog.(*program)
	if !ok || p.owner != c {
		return
	}
	p.release()
	delete(c.programs, p)
}

func (c *Context) BindUniformBlock(prog gpu.Program, block string, point int) error {
	p, ok := prog.(*program)
	if !ok || p.owner != c {
		return fmt.Errorf("program %v: %w", prog, gpu.ErrContextMismatch)
	}
	if point < 0 || point >= c.limits.MaxUniformBindings {
		return fmt.Errorf("binding point %d outside 0..%d: %w", point, c.limits.MaxUniformBindings-1, gpu.ErrContextMismatch)
	}
	if _, ok := p.blocks[block]; !ok {
		return fmt.Errorf("program %q declares no block %q: %w", p.label, block, gpu.ErrContextMismatch)
	}
	p.points[block] = point
	return nil
}

func (c *Context) BindUniformBuffer(point int, buf gpu.Buffer) {
	if buf == nil {
		delete(c.points, point)
		return
	}
	b, err := c.ownBuffer(buf)
	if err != nil || b.shadow == nil {
		common.LogWarn("uniform buffer ignored", "context", c.id, "point", point)
		return
	}
	c.points[point] = b
}

func (c *Context) CreateTexture(desc gpu.TextureDesc, rgba []byte) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(rgba) != 4*desc.Width*desc.Height {
		return nil, fmt.Errorf("texture %q: %d bytes for %dx%d", desc.Label, len(rgba), desc.Width, desc.Height)
	}
	levels := [][]byte{rgba}
	if desc.Mipmaps {
		levels = mipChain(rgba, desc.Width, desc.Height)
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: uint32(len(levels)),
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	w, h := desc.Width, desc.Height
	for level, pixels := range levels {
		c.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(w * 4),
				RowsPerImage: uint32(h),
			},
			&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		)
		w, h = max(w/2, 1), max(h/2, 1)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("texture %q view: %w", desc.Label, err)
	}
	mipFilter := wgpu.MipmapFilterModeNearest
	if desc.MinFilter == gpu.FilterLinearMipmap {
		mipFilter = wgpu.MipmapFilterModeLinear
	}
	sampler, err := c.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  wgpuWrap(desc.Wrap),
		AddressModeV:  wgpuWrap(desc.Wrap),
		AddressModeW:  wgpuWrap(desc.Wrap),
		MagFilter:     wgpuFilter(desc.MagFilter),
		MinFilter:     wgpuFilter(desc.MinFilter),
		MipmapFilter:  mipFilter,
		LodMinClamp:   0,
		LodMaxClamp:   float32(len(levels)),
		MaxAnisotropy: 1,
	})
	if err != nil {
		view.Release()
		tex.Release()
		return nil, fmt.Errorf("texture %q sampler: %w", desc.Label, err)
	}
	t := &texture{tex: tex, view: view, sampler: sampler, width: desc.Width, height: desc.Height, owner: c}
	c.textures[t] = struct{}{}
	return t, nil
}

func (c *Context) CreateDepthTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("depth texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	tex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		Format:        shadowDepthFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("depth texture %q: %w", desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("depth texture %q view: %w", desc.Label, err)
	}
	t := &texture{tex: tex, view: view, sampler: c.compare, width: desc.Width, height: desc.Height, depth: true, owner: c}
	c.textures[t] = struct{}{}
	return t, nil
}

func (c *Context) DeleteTexture(tex gpu.Texture) {
	t, ok := tex.(*texture)
	if !ok || t.owner != c {
		return
	}
	for i, bound := range c.units {
		if bound == t {
			c.units[i] = nil
		}
	}
	t.release()
	delete(c.textures, t)
}

func (c *Context) BindTexture(unit int, tex gpu.Texture) {
	if unit < 0 || unit >= len(c.units) {
		common.LogWarn("texture unit out of range", "context", c.id, "unit", unit)
		return
	}
	if tex == nil {
		c.units[unit] = nil
		return
	}
	t, ok := tex.(*texture)
	if !ok || t.owner != c {
		common.LogWarn("foreign texture ignored", "context", c.id, "unit", unit)
		return
	}
	c.units[unit] = t
}

func (c *Context) CreateFramebuffer(depth gpu.Texture) (gpu.Framebuffer, error) {
	t, ok := depth.(*texture)
	if !ok || t.owner != c || !t.depth {
		return nil, fmt.Errorf("framebuffer needs a depth texture of this context: %w", gpu.ErrContextMismatch)
	}
	f := &framebuffer{depth: t, owner: c}
	c.framebuffers[f] = struct{}{}
	return f, nil
}

func (c *Context) DeleteFramebuffer(fbo gpu.Framebuffer) {
	f, ok := fbo.(*framebuffer)
	if !ok || f.owner != c {
		return
	}
	if c.current == f {
		c.current = nil
	}
	delete(c.framebuffers, f)
}

func (c *Context) BindFramebuffer(fbo gpu.Framebuffer) {
	if fbo == nil {
		c.current = nil
		return
	}
	f, ok := fbo.(*framebuffer)
	if !ok || f.owner != c {
		common.LogWarn("foreign framebuffer ignored", "context", c.id)
		return
	}
	c.current = f
}

func (c *Context) CurrentFramebuffer() gpu.Framebuffer {
	if c.current == nil {
		return nil
	}
	return c.current
}

func (c *Context) SetViewport(v gpu.Viewport) {
	c.viewport = v
}

func (c *Context) Viewport() gpu.Viewport {
	return c.viewport
}

func (c *Context) SetClearColor(col mgl32.Vec4) {
	c.clearColor = col
}

func (c *Context) Clear(flags gpu.ClearFlags) {
	c.frame.clear(c.current, flags, c.clearColor)
}

func (c *Context) Draw(cmd gpu.DrawCommand) error {
	p, ok := cmd.Program.(*program)
	if !ok || p.owner != c {
		return fmt.Errorf("draw with program %v: %w", cmd.Program, gpu.ErrContextMismatch)
	}
	layout, err := layoutKey(p.order, cmd.Attributes)
	if err != nil {
		return fmt.Errorf("program %q: %w", p.label, err)
	}
	d := recordedDraw{
		prog:      p,
		key:       pipelineKey{depthOnly: c.current != nil, topology: cmd.Topology, layout: layout},
		count:     cmd.Count,
		instances: max(cmd.Instances, 1),
		viewport:  c.viewport,
	}
	for _, a := range p.order {
		vb, _ := findBinding(cmd.Attributes, a.Name)
		b, err := c.ownBuffer(vb.Buffer)
		if err != nil || b.buf == nil {
			return fmt.Errorf("attribute %q: %w", a.Name, gpu.ErrContextMismatch)
		}
		d.vertices = append(d.vertices, b)
	}
	if cmd.Indices != nil {
		ib, err := c.ownBuffer(cmd.Indices)
		if err != nil || ib.kind != gpu.BufferIndex {
			return fmt.Errorf("indices: %w", gpu.ErrContextMismatch)
		}
		d.indices = ib
	}

	for name, slot := range p.blocks {
		point, ok := p.points[name]
		if !ok {
			return fmt.Errorf("program %q: block %q has no binding point", p.label, name)
		}
		ub := c.points[point]
		if ub == nil {
			return fmt.Errorf("program %q: no uniform buffer at point %d for block %q", p.label, point, name)
		}
		if len(ub.shadow) < slot.size {
			return fmt.Errorf("program %q: block %q needs %d bytes, buffer has %d", p.label, name, slot.size, len(ub.shadow))
		}
		off := c.uniforms.push(ub.shadow)
		d.uniforms = append(d.uniforms, uniformRef{group: slot.group, binding: slot.binding, offset: off, size: len(ub.shadow)})
	}
	for _, s := range p.samplers {
		t := c.units[s.Unit]
		if t == nil || t.depth != s.Depth {
			t = c.fallback
			if s.Depth {
				t = c.depthFill
			}
		}
		d.textures = append(d.textures, t)
	}

	if _, err := c.pipeline(p, d.key, cmd.Attributes); err != nil {
		return err
	}
	c.frame.draw(c.current, d)
	return nil
}

func (c *Context) Present() error {
	if c.released {
		return errors.New("context released")
	}
	defer func() {
		c.frame.reset()
		c.uniforms.reset()
	}()

	w, h := c.surfaceSize()
	if w <= 0 || h <= 0 {
		return nil
	}
	if w != c.width || h != c.height {
		if err := c.configure(w, h); err != nil {
			return err
		}
	}
	if err := c.uploadUniforms(); err != nil {
		return err
	}

	surfaceTexture, err := c.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("surface view: %w", err)
	}
	defer view.Release()

	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	var groups []*wgpu.BindGroup
	defer func() {
		for _, bg := range groups {
			bg.Release()
		}
	}()
	for i := range c.frame.passes {
		bgs, err := c.encodePass(encoder, &c.frame.passes[i], view)
		groups = append(groups, bgs...)
		if err != nil {
			return err
		}
	}

	commands, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish frame: %w", err)
	}
	c.queue.Submit(commands)
	commands.Release()
	c.surface.Present()
	return nil
}

func (c *Context) encodePass(encoder *wgpu.CommandEncoder, pass *recordedPass, surfaceView *wgpu.TextureView) ([]*wgpu.BindGroup, error) {
	depthLoad := wgpu.LoadOpLoad
	if pass.clearDepth {
		depthLoad = wgpu.LoadOpClear
	}
	desc := &wgpu.RenderPassDescriptor{}
	targetW, targetH := c.width, c.height
	if pass.target == nil {
		colorLoad := wgpu.LoadOpLoad
		if pass.clearColor {
			colorLoad = wgpu.LoadOpClear
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:    surfaceView,
			LoadOp:  colorLoad,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(pass.color[0]), G: float64(pass.color[1]), B: float64(pass.color[2]), A: float64(pass.color[3]),
			},
		}}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            c.depth.view,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	} else {
		targetW, targetH = pass.target.Width(), pass.target.Height()
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            pass.target.depth.view,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}

	rp := encoder.BeginRenderPass(desc)
	defer rp.Release()
	groups, err := c.encodeDraws(rp, pass.draws, targetW, targetH)
	if endErr := rp.End(); err == nil && endErr != nil {
		err = fmt.Errorf("end render pass: %w", endErr)
	}
	return groups, err
}

func (c *Context) encodeDraws(rp *wgpu.RenderPassEncoder, draws []recordedDraw, targetW, targetH int) ([]*wgpu.BindGroup, error) {
	var groups []*wgpu.BindGroup
	for _, d := range draws {
		pipeline := d.prog.pipelines[d.key]
		if pipeline == nil {
			return groups, fmt.Errorf("program %q: pipeline released", d.prog.label)
		}
		rp.SetPipeline(pipeline)
		x, y, vw, vh := flipViewport(d.viewport, targetW, targetH)
		if vw == 0 || vh == 0 {
			continue
		}
		rp.SetViewport(x, y, vw, vh, 0, 1)
		for g, layout := range d.prog.layouts {
			bg, err := c.bindGroup(d, g, layout)
			if err != nil {
				return groups, err
			}
			groups = append(groups, bg)
			rp.SetBindGroup(uint32(g), bg, nil)
		}
		for slot, vb := range d.vertices {
			rp.SetVertexBuffer(uint32(slot), vb.buf, 0, wgpu.WholeSize)
		}
		if d.indices != nil {
			rp.SetIndexBuffer(d.indices.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			rp.DrawIndexed(uint32(d.count), uint32(d.instances), 0, 0, 0)
		} else {
			rp.Draw(uint32(d.count), uint32(d.instances), 0, 0)
		}
	}
	return groups, nil
}

func (c *Context) bindGroup(d recordedDraw, group int, layout *wgpu.BindGroupLayout) (*wgpu.BindGroup, error) {
	var entries []wgpu.BindGroupEntry
	for _, u := range d.uniforms {
		if u.group != group {
			continue
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(u.binding),
			Buffer:  c.arenaBuf,
			Offset:  uint64(u.offset),
			Size:    uint64(u.size),
		})
	}
	for i, s := range d.prog.samplers {
		if s.Group != group {
			continue
		}
		t := d.textures[i]
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(s.Binding), TextureView: t.view},
			wgpu.BindGroupEntry{Binding: uint32(s.SamplerBinding), Sampler: t.sampler},
		)
	}
	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s group %d", d.prog.label, group),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("program %q bind group %d: %w", d.prog.label, group, err)
	}
	return bg, nil
}

// uploadUniforms writes the frame arena, growing its GPU buffer when the frame outgrew it.
func (c *Context) uploadUniforms() error {
	data := c.uniforms.bytes()
	if len(data) == 0 {
		return nil
	}
	if len(data) > c.arenaCap {
		if c.arenaBuf != nil {
			c.arenaBuf.Release()
			c.arenaBuf = nil
		}
		capacity := nextCapacity(len(data))
		buf, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "uniform arena",
			Size:  uint64(capacity),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			c.arenaCap = 0
			return fmt.Errorf("uniform arena: %w", err)
		}
		c.arenaBuf, c.arenaCap = buf, capacity
		common.LogDebug("uniform arena grown", "context", c.id, "bytes", capacity)
	}
	return c.queue.WriteBuffer(c.arenaBuf, 0, pad4(data))
}

// clearDepthTexture fills a depth texture with 1.0 so comparisons against it never shadow.
func (c *Context) clearDepthTexture(t *texture) error {
	encoder, err := c.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            t.view,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	err = pass.End()
	pass.Release()
	if err != nil {
		return err
	}
	commands, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	c.queue.Submit(commands)
	commands.Release()
	return nil
}

func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	for p := range c.programs {
		p.release()
	}
	for t := range c.textures {
		t.release()
	}
	for b := range c.buffers {
		if b.buf != nil {
			b.buf.Release()
		}
	}
	common.LogDebug("webgpu context released", "context", c.id,
		"buffers", len(c.buffers), "programs", len(c.programs), "textures", len(c.textures))
	clear(c.framebuffers)
	clear(c.textures)
	clear(c.programs)
	clear(c.buffers)
	clear(c.points)
	if c.depth != nil {
		c.depth.release()
	}
	if c.arenaBuf != nil {
		c.arenaBuf.Release()
	}
	if c.compare != nil {
		c.compare.Release()
	}
	if c.queue != nil {
		c.queue.Release()
	}
	if c.device != nil {
		c.device.Release()
	}
	if c.adapter != nil {
		c.adapter.Release()
	}
	if c.surface != nil {
		c.surface.Release()
	}
	if c.instance != nil {
		c.instance.Release()
	}
}

func (c *Context) ownBuffer(buf gpu.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != c {
		return nil, fmt.Errorf("buffer %v: %w", buf, gpu.ErrContextMismatch)
	}
	return b, nil
}

// flipViewport converts a bottom-left origin viewport to the top-left origin WebGPU rasterizes
// with, clamped to the target.
func flipViewport(v gpu.Viewport, targetW, targetH int) (x, y, w, h float32) {
	x0 := common.Clamp(v.X, 0, targetW)
	x1 := common.Clamp(v.X+v.Width, 0, targetW)
	y0 := common.Clamp(v.Y, 0, targetH)
	y1 := common.Clamp(v.Y+v.Height, 0, targetH)
	return float32(x0), float32(targetH - y1), float32(x1 - x0), float32(y1 - y0)
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// pad4 returns data extended with zeros to a multiple of four bytes, the WebGPU copy granularity.
func pad4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	out := make([]byte, align4(len(data)))
	copy(out, data)
	return out
}
