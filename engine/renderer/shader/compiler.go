package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
)

// Compiler turns shaders into per-context programs. It registers every block a shader declares
// with its Registry before compiling, so all programs agree on block layouts and binding points.
// A program that fails to compile is logged once and never compiled again for that context.
type Compiler struct {
	registry ubo.Registry
	programs *resource.Cache[gpu.Program]
}

// NewCompiler creates a compiler sharing blocks through registry.
//
// Parameters:
//   - registry: the block registry of the rendering session; nil creates a private one
//
// Returns:
//   - *Compiler: the compiler
func NewCompiler(registry ubo.Registry) *Compiler {
	if registry == nil {
		registry = ubo.NewRegistry()
	}
	return &Compiler{
		registry: registry,
		programs: resource.NewCache("program", func(ctx gpu.Context, p gpu.Program) {
			ctx.DeleteProgram(p)
		}),
	}
}

// Registry returns the block registry programs are bound through.
func (c *Compiler) Registry() ubo.Registry {
	return c.registry
}

// Blocks registers the blocks of s and returns them in declaration order. Registration is
// idempotent.
//
// Parameters:
//   - s: the shader
//
// Returns:
//   - []ubo.Block: the shared blocks
//   - error: gpu.ErrLayout or gpu.ErrContextMismatch from the registry
func (c *Compiler) Blocks(s Shader) ([]ubo.Block, error) {
	decls := s.Blocks()
	blocks := make([]ubo.Block, 0, len(decls))
	for _, d := range decls {
		b, err := c.registry.Register(d.Name, d.Fields)
		if err != nil {
			return nil, fmt.Errorf("shader %q: %w", s.Key(), err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Resolve returns the program of s on ctx, compiling it and binding its blocks on first use.
//
// Parameters:
//   - ctx: the context to compile on
//   - s: the shader
//
// Returns:
//   - gpu.Program: the linked program
//   - error: the compile error, a binding error, or an error wrapping gpu.ErrResourceFailed once a
//     compile has failed
func (c *Compiler) Resolve(ctx gpu.Context, s Shader) (gpu.Program, error) {
	return c.programs.Resolve(ctx, s, func(ctx gpu.Context, prev gpu.Program, exists bool) (gpu.Program, error) {
		prog, err := c.compile(ctx, s)
		if err != nil {
			common.LogError("shader program unavailable", "shader", s.Key(), "language", ctx.Language(), "err", err)
			return nil, err
		}
		if exists {
			ctx.DeleteProgram(prev)
		}
		common.LogDebug("compiled shader program", "shader", s.Key(), "language", ctx.Language())
		return prog, nil
	})
}

func (c *Compiler) compile(ctx gpu.Context, s Shader) (gpu.Program, error) {
	desc, err := s.ProgramDesc(ctx.Language())
	if err != nil {
		return nil, err
	}
	blocks, err := c.Blocks(s)
	if err != nil {
		return nil, err
	}
	limits := ctx.Limits()
	for _, b := range blocks {
		if b.BindingPoint() >= limits.MaxUniformBindings {
			return nil, fmt.Errorf("block %q needs binding point %d, context has %d: %w",
				b.Name(), b.BindingPoint(), limits.MaxUniformBindings, gpu.ErrContextMismatch)
		}
	}
	if len(desc.Samplers) > limits.MaxTextureUnits {
		return nil, fmt.Errorf("shader %q samples %d textures, context has %d units: %w",
			s.Key(), len(desc.Samplers), limits.MaxTextureUnits, gpu.ErrContextMismatch)
	}

	prog, err := ctx.CompileProgram(desc)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		if err := ctx.BindUniformBlock(prog, b.Name(), b.BindingPoint()); err != nil {
			ctx.DeleteProgram(prog)
			return nil, err
		}
	}
	return prog, nil
}

// Failed returns the sticky error of s on a context, nil if it has not failed.
func (c *Compiler) Failed(s Shader, ctxID gpu.ContextID) error {
	return c.programs.Failed(s.ID(), ctxID)
}

// Forget deletes the programs of s on every context.
func (c *Compiler) Forget(s Shader) {
	c.programs.Forget(s.ID())
}

// Release deletes every program and block buffer owned by a context.
func (c *Compiler) Release(ctxID gpu.ContextID) {
	c.programs.ReleaseContext(ctxID)
	c.registry.Release(ctxID)
}
