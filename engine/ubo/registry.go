package ubo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
)

// DefaultMaxBindings is the number of binding points a Registry hands out, within the guaranteed
// GL_MAX_UNIFORM_BUFFER_BINDINGS of every GL 4.1 driver.
const DefaultMaxBindings = 24

// registry is the implementation of the Registry interface.
type registry struct {
	mu          *sync.Mutex
	maxBindings int
	blocks      map[string]*block
	buffers     *resource.Cache[gpu.Buffer]
}

// Registry assigns layouts and binding points to uniform block names. It is owned by a rendering
// session and passed to every shader compile, so shaders declaring the same block name share one
// layout, one binding point and one buffer per context.
type Registry interface {
	// Register returns the block for name, computing its layout and assigning a binding point on
	// first registration.
	//
	// Parameters:
	//   - name: the block name as declared in shader source
	//   - fields: the ordered block members
	//
	// Returns:
	//   - Block: the shared block
	//   - error: gpu.ErrLayout if the layout is invalid or differs from an earlier registration of
	//     the same name; gpu.ErrContextMismatch if every binding point is taken
	Register(name string, fields []Field) (Block, error)

	// Block looks up a registered block by name.
	Block(name string) (Block, bool)

	// Blocks returns every registered block ordered by binding point.
	Blocks() []Block

	// MaxBindings returns the number of binding points the registry may assign.
	MaxBindings() int

	// Bind uploads the block's staged bytes to its buffer on ctx if they changed since the last
	// upload, and attaches the buffer to the block's binding point.
	//
	// Parameters:
	//   - ctx: the context to bind on
	//   - b: a block from this registry
	//
	// Returns:
	//   - error: gpu.ErrContextMismatch if the binding point is beyond the context's limit, or the
	//     buffer allocation error
	Bind(ctx gpu.Context, b Block) error

	// Release drops every buffer owned by a context.
	Release(ctxID gpu.ContextID)
}

var _ Registry = &registry{}

// RegistryOption configures a Registry.
type RegistryOption func(*registry)

// WithMaxBindings overrides DefaultMaxBindings.
func WithMaxBindings(n int) RegistryOption {
	return func(r *registry) {
		r.maxBindings = n
	}
}

// NewRegistry creates an empty block registry.
func NewRegistry(options ...RegistryOption) Registry {
	r := &registry{
		mu:          &sync.Mutex{},
		maxBindings: DefaultMaxBindings,
		blocks:      make(map[string]*block),
		buffers: resource.NewCache("uniform block", func(ctx gpu.Context, buf gpu.Buffer) {
			ctx.DeleteBuffer(buf)
		}),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *registry) Register(name string, fields []Field) (Block, error) {
	layout, err := ComputeLayout(fields)
	if err != nil {
		return nil, fmt.Errorf("block %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.blocks[name]; ok {
		if existing.layout.Signature() != layout.Signature() {
			return nil, fmt.Errorf("block %q redeclared as {%s}, first declared as {%s}: %w",
				name, layout.Signature(), existing.layout.Signature(), gpu.ErrLayout)
		}
		return existing, nil
	}

	point := len(r.blocks)
	if point >= r.maxBindings {
		return nil, fmt.Errorf("no binding point left for block %q (%d in use): %w", name, point, gpu.ErrContextMismatch)
	}
	b := newBlock(name, layout, point)
	r.blocks[name] = b
	return b, nil
}

func (r *registry) Block(name string) (Block, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[name]
	if !ok {
		return nil, false
	}
	return b, true
}

func (r *registry) Blocks() []Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Block, 0, len(r.blocks))
	for _, b := range r.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BindingPoint() < out[j].BindingPoint()
	})
	return out
}

func (r *registry) MaxBindings() int {
	return r.maxBindings
}

func (r *registry) Bind(ctx gpu.Context, b Block) error {
	if b.BindingPoint() >= ctx.Limits().MaxUniformBindings {
		return fmt.Errorf("block %q binding point %d exceeds context limit %d: %w",
			b.Name(), b.BindingPoint(), ctx.Limits().MaxUniformBindings, gpu.ErrContextMismatch)
	}
	buf, err := r.buffers.Resolve(ctx, b, func(ctx gpu.Context, prev gpu.Buffer, exists bool) (gpu.Buffer, error) {
		data := b.Bytes()
		if exists {
			return prev, ctx.UpdateBuffer(prev, 0, data)
		}
		return ctx.CreateBuffer(gpu.BufferUniform, gpu.UsageDynamic, data)
	})
	if err != nil {
		return fmt.Errorf("block %q: %w", b.Name(), err)
	}
	ctx.BindUniformBuffer(b.BindingPoint(), buf)
	return nil
}

func (r *registry) Release(ctxID gpu.ContextID) {
	r.buffers.ReleaseContext(ctxID)
}
