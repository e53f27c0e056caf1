// Package gpu defines the capability set the rendering core needs from a graphics context.
// The core never creates a context; one is handed to it per surface by a backend package
// (glcontext, wgpucontext) or by the gputest recorder.
package gpu

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// ContextID identifies one graphics context for the lifetime of the process. Resource caches key
// their per-context instances by it.
type ContextID uint64

var contextCount atomic.Uint64

// NextContextID returns a process-unique context identifier.
func NextContextID() ContextID {
	return ContextID(contextCount.Add(1))
}

// Buffer is an opaque context-owned GPU buffer.
type Buffer interface {
	// Size returns the allocated size of the buffer in bytes.
	Size() int
}

// Program is an opaque context-owned linked shader program.
type Program interface {
	// Label returns the debug label the program was compiled with.
	Label() string
}

// Texture is an opaque context-owned 2D color or depth texture.
type Texture interface {
	Width() int
	Height() int
}

// Framebuffer is an opaque context-owned render target with a depth attachment.
type Framebuffer interface {
	Width() int
	Height() int
	// Depth returns the depth texture the framebuffer renders into.
	Depth() Texture
}

// Context is the retained-mode graphics context capability set: buffer, program, texture and
// framebuffer allocation, uniform-block binding points, and indexed/instanced draws.
// Handles returned by one Context must never be passed to another.
type Context interface {
	// ID returns the process-unique identifier of this context.
	//
	// Returns:
	//   - ContextID: the identifier used to key per-context resource instances
	ID() ContextID

	// Language returns the shader dialect this context compiles.
	//
	// Returns:
	//   - ShadingLanguage: LanguageGLSL or LanguageWGSL
	Language() ShadingLanguage

	// Limits returns the binding limits of this context.
	//
	// Returns:
	//   - Limits: binding point, texture unit and block size limits
	Limits() Limits

	// Size returns the size of the default drawable surface in pixels.
	//
	// Returns:
	//   - int: width
	//   - int: height
	Size() (int, int)

	// CreateBuffer allocates a buffer and fills it with data.
	//
	// Parameters:
	//   - kind: what the buffer is bound as
	//   - usage: the update-frequency hint
	//   - data: the initial contents; its length is the buffer size
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: an error if the allocation fails
	CreateBuffer(kind BufferKind, usage Usage, data []byte) (Buffer, error)

	// UpdateBuffer overwrites part of an existing buffer in place.
	//
	// Parameters:
	//   - buf: the buffer to write
	//   - offset: the byte offset to start writing at
	//   - data: the bytes to write; offset+len(data) must not exceed buf.Size()
	//
	// Returns:
	//   - error: an error if the write is out of range or the buffer belongs to another context
	UpdateBuffer(buf Buffer, offset int, data []byte) error

	// DeleteBuffer releases a buffer.
	DeleteBuffer(buf Buffer)

	// CompileProgram compiles and links a program from reflected shader source.
	//
	// Parameters:
	//   - desc: the sources and the declared blocks, samplers and attributes
	//
	// Returns:
	//   - Program: the linked program
	//   - error: a *CompileError on compile or link failure
	CompileProgram(desc ProgramDesc) (Program, error)

	// DeleteProgram releases a program.
	DeleteProgram(p Program)

	// BindUniformBlock connects a program's named uniform block to a binding point.
	//
	// Parameters:
	//   - p: the program declaring the block
	//   - block: the block name as declared in the shader source
	//   - point: the binding point; must be below Limits().MaxUniformBindings
	//
	// Returns:
	//   - error: ErrContextMismatch if the point is out of range or the block is not declared
	BindUniformBlock(p Program, block string, point int) error

	// BindUniformBuffer attaches a uniform buffer to a binding point for subsequent draws.
	BindUniformBuffer(point int, buf Buffer)

	// CreateTexture allocates a color texture and uploads RGBA8 pixels.
	//
	// Parameters:
	//   - desc: size, filtering and wrapping
	//   - rgba: tightly packed RGBA pixels, 4*Width*Height bytes
	//
	// Returns:
	//   - Texture: the new texture
	//   - error: an error if the pixel data does not match the size or the allocation fails
	CreateTexture(desc TextureDesc, rgba []byte) (Texture, error)

	// CreateDepthTexture allocates a depth texture usable as a framebuffer attachment and sampled
	// with depth comparison.
	//
	// Parameters:
	//   - desc: size and filtering
	//
	// Returns:
	//   - Texture: the new depth texture
	//   - error: an error if the allocation fails
	CreateDepthTexture(desc TextureDesc) (Texture, error)

	// DeleteTexture releases a texture.
	DeleteTexture(t Texture)

	// BindTexture attaches a texture to a texture unit for subsequent draws. Passing nil unbinds
	// the unit; programs then sample the context's fallback texture for that unit.
	BindTexture(unit int, t Texture)

	// CreateFramebuffer builds a depth-only render target around a depth texture.
	//
	// Parameters:
	//   - depth: a texture created by CreateDepthTexture
	//
	// Returns:
	//   - Framebuffer: the new framebuffer
	//   - error: an error if the framebuffer is incomplete
	CreateFramebuffer(depth Texture) (Framebuffer, error)

	// DeleteFramebuffer releases a framebuffer. The depth texture is not released.
	DeleteFramebuffer(fb Framebuffer)

	// BindFramebuffer selects the render target of subsequent clears and draws. nil selects the
	// default surface.
	BindFramebuffer(fb Framebuffer)

	// CurrentFramebuffer returns the bound render target, nil for the default surface.
	CurrentFramebuffer() Framebuffer

	// SetViewport sets the pixel rectangle subsequent draws rasterize into.
	SetViewport(v Viewport)

	// Viewport returns the current viewport.
	Viewport() Viewport

	// SetClearColor sets the color used by Clear(ClearColor).
	SetClearColor(c mgl32.Vec4)

	// Clear resets the selected attachments of the bound render target.
	Clear(flags ClearFlags)

	// Draw issues one draw call.
	//
	// Parameters:
	//   - cmd: the program, vertex bindings, optional index buffer and counts
	//
	// Returns:
	//   - error: an error if a required attribute is missing or a handle is foreign
	Draw(cmd DrawCommand) error

	// Present shows the finished frame on the default surface.
	//
	// Returns:
	//   - error: an error if the surface could not be presented
	Present() error

	// Release destroys every object the context still owns.
	Release()
}
