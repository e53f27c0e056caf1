// Package glcontext implements gpu.Context on OpenGL 4.1 core through go-gl. Every method must be
// called on the thread the OpenGL context is current on; a window's frame pump guarantees that
// for the animation loop.
package glcontext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Context is an OpenGL implementation of gpu.Context.
type Context struct {
	id        gpu.ContextID
	limits    gpu.Limits
	surface   func() (int, int)
	present   func()
	vao       uint32
	fallback  *texture
	depthFill *texture

	buffers      map[*buffer]struct{}
	programs     map[*program]struct{}
	textures     map[*texture]struct{}
	framebuffers map[*framebuffer]struct{}

	units    []*texture
	current  *framebuffer
	viewport gpu.Viewport
	enabled  []uint32
	released bool
}

var _ gpu.Context = &Context{}

// New initializes the OpenGL function pointers of the current context and wraps it.
//
// Parameters:
//   - options: surface size and presentation hooks
//
// Returns:
//   - *Context: the context
//   - error: an error if the OpenGL functions cannot be loaded
func New(options ...ContextBuilderOption) (*Context, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("init opengl: %w", err)
	}
	c := &Context{
		id:           gpu.NextContextID(),
		surface:      func() (int, int) { return 0, 0 },
		present:      func() {},
		buffers:      make(map[*buffer]struct{}),
		programs:     make(map[*program]struct{}),
		textures:     make(map[*texture]struct{}),
		framebuffers: make(map[*framebuffer]struct{}),
	}
	for _, opt := range options {
		opt(c)
	}

	var bindings, units, blockSize int32
	gl.GetIntegerv(gl.MAX_UNIFORM_BUFFER_BINDINGS, &bindings)
	gl.GetIntegerv(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS, &units)
	gl.GetIntegerv(gl.MAX_UNIFORM_BLOCK_SIZE, &blockSize)
	c.limits = gpu.Limits{
		MaxUniformBindings:  int(bindings),
		MaxTextureUnits:     int(units),
		MaxUniformBlockSize: int(blockSize),
	}
	c.units = make([]*texture, c.limits.MaxTextureUnits)

	gl.GenVertexArrays(1, &c.vao)
	gl.BindVertexArray(c.vao)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)

	white := []byte{255, 255, 255, 255}
	fb, err := c.CreateTexture(gpu.TextureDesc{Label: "fallback", Width: 1, Height: 1}, white)
	if err != nil {
		return nil, err
	}
	c.fallback = fb.(*texture)
	depth, err := c.CreateDepthTexture(gpu.TextureDesc{Label: "fallback_depth", Width: 1, Height: 1})
	if err != nil {
		return nil, err
	}
	c.depthFill = depth.(*texture)

	w, h := c.surface()
	c.viewport = gpu.Viewport{Width: w, Height: h}
	common.LogInfo("opengl context ready",
		"context", c.id,
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"uniform_bindings", c.limits.MaxUniformBindings,
		"texture_units", c.limits.MaxTextureUnits)
	return c, nil
}

func (c *Context) ID() gpu.ContextID             { return c.id }
func (c *Context) Language() gpu.ShadingLanguage { return gpu.LanguageGLSL }
func (c *Context) Limits() gpu.Limits            { return c.limits }
func (c *Context) Size() (int, int)              { return c.surface() }

func (c *Context) CreateBuffer(kind gpu.BufferKind, usage gpu.Usage, data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("empty buffer")
	}
	b := &buffer{target: glBufferTarget(kind), size: len(data), owner: c}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(b.target, b.id)
	gl.BufferData(b.target, len(data), gl.Ptr(data), glUsage(usage))
	if b.target != gl.ELEMENT_ARRAY_BUFFER {
		gl.BindBuffer(b.target, 0)
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
	gl.BindBuffer(b.target, b.id)
	gl.BufferSubData(b.target, offset, len(data), gl.Ptr(data))
	return nil
}

func (c *Context) DeleteBuffer(buf gpu.Buffer) {
	b, err := c.ownBuffer(buf)
	if err != nil {
		return
	}
	gl.DeleteBuffers(1, &b.id)
	delete(c.buffers, b)
}

func (c *Context) CompileProgram(desc gpu.ProgramDesc) (gpu.Program, error) {
	if desc.Language != gpu.LanguageGLSL {
		return nil, fmt.Errorf("opengl cannot compile %v: %w", desc.Language, gpu.ErrContextMismatch)
	}
	vs, err := compileShader(desc.Label, gpu.StageVertex, gl.VERTEX_SHADER, desc.VertexSource)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(desc.Label, gpu.StageFragment, gl.FRAGMENT_SHADER, desc.FragmentSource)
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(fs)

	id := gl.CreateProgram()
	gl.AttachShader(id, vs)
	gl.AttachShader(id, fs)
	gl.LinkProgram(id)
	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		log := programLog(id)
		gl.DeleteProgram(id)
		return nil, &gpu.CompileError{Label: desc.Label, Stage: gpu.StageLink, Log: log}
	}

	p := &program{
		id:         id,
		label:      desc.Label,
		attributes: make(map[string]gpu.AttributeBinding, len(desc.Attributes)),
		samplers:   desc.Samplers,
		owner:      c,
	}
	for _, a := range desc.Attributes {
		p.attributes[a.Name] = a
	}
	gl.UseProgram(id)
	for _, s := range desc.Samplers {
		if loc := gl.GetUniformLocation(id, gl.Str(s.Name+"\x00")); loc >= 0 {
			gl.Uniform1i(loc, int32(s.Unit))
		}
	}
	gl.UseProgram(0)
	c.programs[p] = struct{}{}
	return p, nil
}

func (c *Context) DeleteProgram(prog gpu.Program) {
	p, ok := prog.(*program)
	if !ok || p.owner != c {
		return
	}
	gl.DeleteProgram(p.id)
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
	index := gl.GetUniformBlockIndex(p.id, gl.Str(block+"\x00"))
	if index == gl.INVALID_INDEX {
		return fmt.Errorf("program %q declares no block %q: %w", p.label, block, gpu.ErrContextMismatch)
	}
	gl.UniformBlockBinding(p.id, index, uint32(point))
	return nil
}

func (c *Context) BindUniformBuffer(point int, buf gpu.Buffer) {
	if buf == nil {
		gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(point), 0)
		return
	}
	b, err := c.ownBuffer(buf)
	if err != nil {
		common.LogWarn("foreign uniform buffer ignored", "context", c.id, "point", point)
		return
	}
	gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(point), b.id)
}

func (c *Context) CreateTexture(desc gpu.TextureDesc, rgba []byte) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(rgba) != 4*desc.Width*desc.Height {
		return nil, fmt.Errorf("texture %q: %d bytes for %dx%d", desc.Label, len(rgba), desc.Width, desc.Height)
	}
	t := &texture{width: desc.Width, height: desc.Height, owner: c}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(desc.Width), int32(desc.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, glFilter(desc.MinFilter, desc.Mipmaps))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, glFilter(desc.MagFilter, false))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, glWrap(desc.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, glWrap(desc.Wrap))
	if desc.Mipmaps {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	c.textures[t] = struct{}{}
	return t, nil
}

func (c *Context) CreateDepthTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("depth texture %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	t := &texture{width: desc.Width, height: desc.Height, depth: true, owner: c}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT24, int32(desc.Width), int32(desc.Height), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	// Clamp to a white border so lookups outside the light frustum are never shadowed.
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	border := []float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)
	gl.BindTexture(gl.TEXTURE_2D, 0)
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
	gl.DeleteTextures(1, &t.id)
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
	gl.GenFramebuffers(1, &f.id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, t.id, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	c.bindTarget(c.current)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &f.id)
		return nil, fmt.Errorf("framebuffer incomplete: status 0x%x", status)
	}
	c.framebuffers[f] = struct{}{}
	return f, nil
}

func (c *Context) DeleteFramebuffer(fbo gpu.Framebuffer) {
	f, ok := fbo.(*framebuffer)
	if !ok || f.owner != c {
		return
	}
	if c.current == f {
		c.BindFramebuffer(nil)
	}
	gl.DeleteFramebuffers(1, &f.id)
	delete(c.framebuffers, f)
}

func (c *Context) BindFramebuffer(fbo gpu.Framebuffer) {
	if fbo == nil {
		c.current = nil
		c.bindTarget(nil)
		return
	}
	f, ok := fbo.(*framebuffer)
	if !ok || f.owner != c {
		common.LogWarn("foreign framebuffer ignored", "context", c.id)
		return
	}
	c.current = f
	c.bindTarget(f)
}

func (c *Context) bindTarget(f *framebuffer) {
	if f == nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.CullFace(gl.BACK)
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)
	// Front-face culling in depth passes keeps the lit faces out of the shadow map.
	gl.CullFace(gl.FRONT)
}

func (c *Context) CurrentFramebuffer() gpu.Framebuffer {
	if c.current == nil {
		return nil
	}
	return c.current
}

func (c *Context) SetViewport(v gpu.Viewport) {
	c.viewport = v
	gl.Viewport(int32(v.X), int32(v.Y), int32(v.Width), int32(v.Height))
}

func (c *Context) Viewport() gpu.Viewport {
	return c.viewport
}

func (c *Context) SetClearColor(col mgl32.Vec4) {
	gl.ClearColor(col[0], col[1], col[2], col[3])
}

func (c *Context) Clear(flags gpu.ClearFlags) {
	var mask uint32
	if flags&gpu.ClearColor != 0 && c.current == nil {
		mask |= gl.COLOR_BUFFER_BIT
	}
	if flags&gpu.ClearDepth != 0 {
		gl.DepthMask(true)
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
}

func (c *Context) Draw(cmd gpu.DrawCommand) error {
	p, ok := cmd.Program.(*program)
	if !ok || p.owner != c {
		return fmt.Errorf("draw with program %v: %w", cmd.Program, gpu.ErrContextMismatch)
	}
	gl.UseProgram(p.id)

	for _, loc := range c.enabled {
		gl.VertexAttribDivisor(loc, 0)
		gl.DisableVertexAttribArray(loc)
	}
	c.enabled = c.enabled[:0]
	seen := make(map[string]bool, len(cmd.Attributes))
	for _, vb := range cmd.Attributes {
		in, ok := p.attributes[vb.Name]
		if !ok {
			continue
		}
		b, err := c.ownBuffer(vb.Buffer)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", vb.Name, err)
		}
		seen[vb.Name] = true
		gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
		cols, comps := attribColumns(vb.Components)
		stride := int32(vb.Components * 4)
		for col := 0; col < cols; col++ {
			loc := uint32(in.Location + col)
			gl.EnableVertexAttribArray(loc)
			gl.VertexAttribPointerWithOffset(loc, int32(comps), gl.FLOAT, false, stride, uintptr(col*16))
			gl.VertexAttribDivisor(loc, uint32(vb.Divisor))
			c.enabled = append(c.enabled, loc)
		}
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	for name := range p.attributes {
		if !seen[name] {
			return fmt.Errorf("program %q: attribute %q has no buffer", p.label, name)
		}
	}

	for _, s := range p.samplers {
		t := c.units[s.Unit]
		if t == nil {
			t = c.fallback
			if s.Depth {
				t = c.depthFill
			}
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(s.Unit))
		gl.BindTexture(gl.TEXTURE_2D, t.id)
	}

	instances := int32(max(cmd.Instances, 1))
	mode := glTopology(cmd.Topology)
	if cmd.Indices != nil {
		ib, err := c.ownBuffer(cmd.Indices)
		if err != nil {
			return fmt.Errorf("indices: %w", err)
		}
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ib.id)
		gl.DrawElementsInstanced(mode, int32(cmd.Count), gl.UNSIGNED_INT, nil, instances)
	} else {
		gl.DrawArraysInstanced(mode, 0, int32(cmd.Count), instances)
	}
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("draw %q: gl error 0x%x", p.label, code)
	}
	return nil
}

func (c *Context) Present() error {
	if c.released {
		return errors.New("context released")
	}
	c.present()
	return nil
}

func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	for f := range c.framebuffers {
		gl.DeleteFramebuffers(1, &f.id)
	}
	for t := range c.textures {
		gl.DeleteTextures(1, &t.id)
	}
	for p := range c.programs {
		gl.DeleteProgram(p.id)
	}
	for b := range c.buffers {
		gl.DeleteBuffers(1, &b.id)
	}
	gl.DeleteVertexArrays(1, &c.vao)
	common.LogDebug("opengl context released", "context", c.id,
		"buffers", len(c.buffers), "programs", len(c.programs), "textures", len(c.textures))
	clear(c.framebuffers)
	clear(c.textures)
	clear(c.programs)
	clear(c.buffers)
}

func (c *Context) ownBuffer(buf gpu.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil || b.owner != c {
		return nil, fmt.Errorf("buffer %v: %w", buf, gpu.ErrContextMismatch)
	}
	return b, nil
}

func compileShader(label string, stage gpu.ShaderStage, kind uint32, source string) (uint32, error) {
	id := gl.CreateShader(kind)
	src, free := gl.Strs(source + "\x00")
	gl.ShaderSource(id, 1, src, nil)
	free()
	gl.CompileShader(id)
	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(id, n, nil, gl.Str(log))
		gl.DeleteShader(id)
		return 0, &gpu.CompileError{Label: label, Stage: stage, Log: strings.TrimRight(log, "\x00")}
	}
	return id, nil
}

func programLog(id uint32) string {
	var n int32
	gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &n)
	log := strings.Repeat("\x00", int(n+1))
	gl.GetProgramInfoLog(id, n, nil, gl.Str(log))
	return strings.TrimRight(log, "\x00")
}
