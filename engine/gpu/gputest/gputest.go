// Package gputest provides a recording gpu.Context for tests. It allocates nothing on a real
// device; every call is recorded, framebuffer draws mark their depth texture as written, and
// compile failures or binding limits can be injected.
package gputest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Buffer is the recorded form of a gpu.Buffer.
type Buffer struct {
	ID      int
	Kind    gpu.BufferKind
	Usage   gpu.Usage
	Data    []byte
	Updates int
	Deleted bool
	owner   *Context
}

func (b *Buffer) Size() int { return len(b.Data) }

// Program is the recorded form of a gpu.Program.
type Program struct {
	ID      int
	Desc    gpu.ProgramDesc
	Blocks  map[string]int
	Deleted bool
	owner   *Context
}

func (p *Program) Label() string { return p.Desc.Label }

// Texture is the recorded form of a gpu.Texture. DepthWritten is set when a draw rasterizes into a
// framebuffer using this texture and reset when the framebuffer's depth is cleared.
type Texture struct {
	ID           int
	Desc         gpu.TextureDesc
	IsDepth      bool
	Pixels       []byte
	DepthWritten bool
	Deleted      bool
	owner        *Context
}

func (t *Texture) Width() int  { return t.Desc.Width }
func (t *Texture) Height() int { return t.Desc.Height }

// Framebuffer is the recorded form of a gpu.Framebuffer.
type Framebuffer struct {
	ID       int
	DepthTex *Texture
	Deleted  bool
	owner    *Context
}

func (f *Framebuffer) Width() int         { return f.DepthTex.Width() }
func (f *Framebuffer) Height() int        { return f.DepthTex.Height() }
func (f *Framebuffer) Depth() gpu.Texture { return f.DepthTex }

// BoundTexture captures a texture unit at the moment of a draw.
type BoundTexture struct {
	Texture      *Texture
	DepthWritten bool
}

// DrawRecord captures the state of one Draw call.
type DrawRecord struct {
	Program    *Program
	Target     *Framebuffer
	Viewport   gpu.Viewport
	Textures   map[int]BoundTexture
	Uniforms   map[int][]byte
	Attributes []gpu.VertexBinding
	Indexed    bool
	Count      int
	Instances  int
}

// ClearRecord captures one Clear call.
type ClearRecord struct {
	Target *Framebuffer
	Flags  gpu.ClearFlags
	Color  mgl32.Vec4
}

// Context is a recording gpu.Context.
type Context struct {
	mu       *sync.Mutex
	id       gpu.ContextID
	language gpu.ShadingLanguage
	limits   gpu.Limits
	width    int
	height   int
	nextID   int

	Buffers      []*Buffer
	Programs     []*Program
	Textures     []*Texture
	Framebuffers []*Framebuffer
	Draws        []DrawRecord
	Clears       []ClearRecord
	// Events is an ordered, human-readable log of clears, target switches, draws and presents.
	Events   []string
	Presents int

	uniformPoints map[int]*Buffer
	textureUnits  map[int]*Texture
	framebuffer   *Framebuffer
	viewport      gpu.Viewport
	clearColor    mgl32.Vec4
	failCompile   map[string]string
	released      bool
}

var _ gpu.Context = &Context{}

// Option configures a recording Context.
type Option func(*Context)

// WithLanguage sets the language the context reports.
func WithLanguage(l gpu.ShadingLanguage) Option {
	return func(c *Context) { c.language = l }
}

// WithLimits overrides the default binding limits.
func WithLimits(l gpu.Limits) Option {
	return func(c *Context) { c.limits = l }
}

// WithSize sets the default surface size.
func WithSize(w, h int) Option {
	return func(c *Context) {
		c.width, c.height = w, h
		c.viewport = gpu.Viewport{Width: w, Height: h}
	}
}

// New creates a recording context. Defaults: GLSL, 24 uniform bindings, 16 texture units,
// 16 KiB blocks, 640x480 surface.
func New(opts ...Option) *Context {
	c := &Context{
		mu:       &sync.Mutex{},
		id:       gpu.NextContextID(),
		language: gpu.LanguageGLSL,
		limits: gpu.Limits{
			MaxUniformBindings:  24,
			MaxTextureUnits:     16,
			MaxUniformBlockSize: 16384,
		},
		width:         640,
		height:        480,
		viewport:      gpu.Viewport{Width: 640, Height: 480},
		uniformPoints: make(map[int]*Buffer),
		textureUnits:  make(map[int]*Texture),
		failCompile:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FailCompile makes every later compile of a program with the given label fail with log.
func (c *Context) FailCompile(label, log string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCompile[label] = log
}

// LiveBuffers counts buffers that have not been deleted.
func (c *Context) LiveBuffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.Buffers {
		if !b.Deleted {
			n++
		}
	}
	return n
}

// Released reports whether Release has been called.
func (c *Context) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// DrawsInto returns the draws whose target was fb (nil for the default surface).
func (c *Context) DrawsInto(fb *Framebuffer) []DrawRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DrawRecord, 0)
	for _, d := range c.Draws {
		if d.Target == fb {
			out = append(out, d)
		}
	}
	return out
}

// Reset clears the recorded draws, clears and events but keeps allocated objects.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Draws = nil
	c.Clears = nil
	c.Events = nil
	c.Presents = 0
}

func (c *Context) ID() gpu.ContextID             { return c.id }
func (c *Context) Language() gpu.ShadingLanguage { return c.language }
func (c *Context) Limits() gpu.Limits            { return c.limits }
func (c *Context) Size() (int, int)              { return c.width, c.height }

func (c *Context) CreateBuffer(kind gpu.BufferKind, usage gpu.Usage, data []byte) (gpu.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	b := &Buffer{ID: c.nextID, Kind: kind, Usage: usage, Data: append([]byte(nil), data...), owner: c}
	c.Buffers = append(c.Buffers, b)
	return b, nil
}

func (c *Context) UpdateBuffer(buf gpu.Buffer, offset int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := buf.(*Buffer)
	if !ok || b.owner != c {
		return fmt.Errorf("buffer does not belong to context %d: %w", c.id, gpu.ErrContextMismatch)
	}
	if b.Deleted {
		return fmt.Errorf("buffer %d was deleted", b.ID)
	}
	if offset < 0 || offset+len(data) > len(b.Data) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, len(b.Data))
	}
	copy(b.Data[offset:], data)
	b.Updates++
	return nil
}

func (c *Context) DeleteBuffer(buf gpu.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := buf.(*Buffer); ok && b.owner == c {
		b.Deleted = true
	}
}

func (c *Context) CompileProgram(desc gpu.ProgramDesc) (gpu.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if log, ok := c.failCompile[desc.Label]; ok {
		return nil, &gpu.CompileError{Label: desc.Label, Stage: gpu.StageLink, Log: log}
	}
	if desc.Language != c.language {
		return nil, &gpu.CompileError{Label: desc.Label, Stage: gpu.StageVertex, Log: fmt.Sprintf("context compiles %s, got %s", c.language, desc.Language)}
	}
	c.nextID++
	p := &Program{ID: c.nextID, Desc: desc, Blocks: make(map[string]int), owner: c}
	c.Programs = append(c.Programs, p)
	return p, nil
}

func (c *Context) DeleteProgram(p gpu.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prog, ok := p.(*Program); ok && prog.owner == c {
		prog.Deleted = true
	}
}

func (c *Context) BindUniformBlock(p gpu.Program, block string, point int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prog, ok := p.(*Program)
	if !ok || prog.owner != c {
		return fmt.Errorf("program does not belong to context %d: %w", c.id, gpu.ErrContextMismatch)
	}
	if point < 0 || point >= c.limits.MaxUniformBindings {
		return fmt.Errorf("binding point %d out of range [0, %d): %w", point, c.limits.MaxUniformBindings, gpu.ErrContextMismatch)
	}
	declared := false
	for _, b := range prog.Desc.Blocks {
		if b.Name == block {
			declared = true
			break
		}
	}
	if !declared {
		return fmt.Errorf("program %q declares no block %q: %w", prog.Desc.Label, block, gpu.ErrContextMismatch)
	}
	prog.Blocks[block] = point
	return nil
}

func (c *Context) BindUniformBuffer(point int, buf gpu.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := buf.(*Buffer); ok {
		c.uniformPoints[point] = b
		return
	}
	delete(c.uniformPoints, point)
}

func (c *Context) CreateTexture(desc gpu.TextureDesc, rgba []byte) (gpu.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(rgba) != desc.Width*desc.Height*4 {
		return nil, fmt.Errorf("texture %q expects %d bytes, got %d", desc.Label, desc.Width*desc.Height*4, len(rgba))
	}
	c.nextID++
	t := &Texture{ID: c.nextID, Desc: desc, Pixels: append([]byte(nil), rgba...), owner: c}
	c.Textures = append(c.Textures, t)
	return t, nil
}

func (c *Context) CreateDepthTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("depth texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	c.nextID++
	t := &Texture{ID: c.nextID, Desc: desc, IsDepth: true, owner: c}
	c.Textures = append(c.Textures, t)
	return t, nil
}

func (c *Context) DeleteTexture(t gpu.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex, ok := t.(*Texture); ok && tex.owner == c {
		tex.Deleted = true
	}
}

func (c *Context) BindTexture(unit int, t gpu.Texture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex, ok := t.(*Texture); ok && tex != nil {
		c.textureUnits[unit] = tex
		return
	}
	delete(c.textureUnits, unit)
}

func (c *Context) CreateFramebuffer(depth gpu.Texture) (gpu.Framebuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tex, ok := depth.(*Texture)
	if !ok || tex.owner != c || !tex.IsDepth {
		return nil, fmt.Errorf("framebuffer needs a depth texture of context %d", c.id)
	}
	c.nextID++
	fb := &Framebuffer{ID: c.nextID, DepthTex: tex, owner: c}
	c.Framebuffers = append(c.Framebuffers, fb)
	return fb, nil
}

func (c *Context) DeleteFramebuffer(fb gpu.Framebuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := fb.(*Framebuffer); ok && f.owner == c {
		f.Deleted = true
	}
}

func (c *Context) BindFramebuffer(fb gpu.Framebuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, _ := fb.(*Framebuffer)
	c.framebuffer = f
	c.Events = append(c.Events, "bind "+targetName(f))
}

func (c *Context) CurrentFramebuffer() gpu.Framebuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.framebuffer == nil {
		return nil
	}
	return c.framebuffer
}

func (c *Context) SetViewport(v gpu.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = v
}

func (c *Context) Viewport() gpu.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *Context) SetClearColor(col mgl32.Vec4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearColor = col
}

func (c *Context) Clear(flags gpu.ClearFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flags&gpu.ClearDepth != 0 && c.framebuffer != nil {
		c.framebuffer.DepthTex.DepthWritten = false
	}
	c.Clears = append(c.Clears, ClearRecord{Target: c.framebuffer, Flags: flags, Color: c.clearColor})
	c.Events = append(c.Events, "clear "+targetName(c.framebuffer))
}

func (c *Context) Draw(cmd gpu.DrawCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prog, ok := cmd.Program.(*Program)
	if !ok || prog.owner != c {
		return fmt.Errorf("program does not belong to context %d: %w", c.id, gpu.ErrContextMismatch)
	}
	if prog.Deleted {
		return fmt.Errorf("program %q was deleted", prog.Desc.Label)
	}
	for _, a := range cmd.Attributes {
		b, ok := a.Buffer.(*Buffer)
		if !ok || b.owner != c {
			return fmt.Errorf("attribute %q buffer does not belong to context %d: %w", a.Name, c.id, gpu.ErrContextMismatch)
		}
	}
	rec := DrawRecord{
		Program:    prog,
		Target:     c.framebuffer,
		Viewport:   c.viewport,
		Textures:   make(map[int]BoundTexture, len(c.textureUnits)),
		Uniforms:   make(map[int][]byte, len(c.uniformPoints)),
		Attributes: append([]gpu.VertexBinding(nil), cmd.Attributes...),
		Indexed:    cmd.Indices != nil,
		Count:      cmd.Count,
		Instances:  cmd.Instances,
	}
	for unit, t := range c.textureUnits {
		rec.Textures[unit] = BoundTexture{Texture: t, DepthWritten: t.DepthWritten}
	}
	for point, b := range c.uniformPoints {
		rec.Uniforms[point] = append([]byte(nil), b.Data...)
	}
	c.Draws = append(c.Draws, rec)
	c.Events = append(c.Events, fmt.Sprintf("draw %s %s", prog.Desc.Label, targetName(c.framebuffer)))
	if c.framebuffer != nil {
		c.framebuffer.DepthTex.DepthWritten = true
	}
	return nil
}

func (c *Context) Present() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Presents++
	c.Events = append(c.Events, "present")
	return nil
}

func (c *Context) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.Buffers {
		b.Deleted = true
	}
	for _, p := range c.Programs {
		p.Deleted = true
	}
	for _, t := range c.Textures {
		t.Deleted = true
	}
	for _, f := range c.Framebuffers {
		f.Deleted = true
	}
	c.released = true
}

// UniformPoint returns the buffer currently attached to a binding point.
func (c *Context) UniformPoint(point int) *Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uniformPoints[point]
}

func targetName(f *Framebuffer) string {
	if f == nil {
		return "surface"
	}
	return fmt.Sprintf("fb#%d", f.ID)
}
