package shape

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
)

// Instance is the GPU side of a Shape on one context: one buffer per attribute and an optional
// index buffer.
type Instance struct {
	buffers    map[string]gpu.Buffer
	attributes map[string]Attribute
	indices    gpu.Buffer
	vertices   int
	indexCount int
	instances  int
	topology   gpu.Topology
}

// Count returns the number of vertices a draw of the instance submits.
func (i *Instance) Count() int {
	if i.indices != nil {
		return i.indexCount
	}
	return i.vertices
}

// Indices returns the index buffer, or nil for a non-indexed shape.
func (i *Instance) Indices() gpu.Buffer {
	return i.indices
}

// Instances returns the instance count implied by the shape's own per-instance attributes, or 0
// if it has none.
func (i *Instance) Instances() int {
	return i.instances
}

// Topology returns the primitive topology of the uploaded shape.
func (i *Instance) Topology() gpu.Topology {
	return i.topology
}

// Buffer returns the buffer of a named attribute.
func (i *Instance) Buffer(name string) (gpu.Buffer, bool) {
	b, ok := i.buffers[name]
	return b, ok
}

// Bindings matches a program's vertex inputs against the uploaded attributes.
//
// Parameters:
//   - inputs: the attributes the program reads
//
// Returns:
//   - []gpu.VertexBinding: a binding for every input the shape provides
//   - []string: the inputs the shape does not provide, for the caller to supply
func (i *Instance) Bindings(inputs []gpu.AttributeBinding) ([]gpu.VertexBinding, []string) {
	bindings := make([]gpu.VertexBinding, 0, len(inputs))
	var missing []string
	for _, in := range inputs {
		buf, ok := i.buffers[in.Name]
		if !ok {
			missing = append(missing, in.Name)
			continue
		}
		a := i.attributes[in.Name]
		bindings = append(bindings, gpu.VertexBinding{
			Name:       in.Name,
			Buffer:     buf,
			Components: a.Components,
			Divisor:    a.Divisor,
		})
	}
	return bindings, missing
}

// Uploader keeps the GPU instances of shapes, one per context.
type Uploader struct {
	cache *resource.Cache[*Instance]
}

// NewUploader creates an empty shape uploader.
func NewUploader() *Uploader {
	return &Uploader{
		cache: resource.NewCache("shape", releaseInstance),
	}
}

// Resolve returns the instance of s on ctx, uploading it on first use and re-uploading after s
// changed. Re-uploads write into the existing buffers and only reallocate a buffer that grew.
//
// Parameters:
//   - ctx: the target context
//   - s: the shape
//
// Returns:
//   - *Instance: the uploaded instance
//   - error: a validation or allocation error; it is cached and returned again on later calls
func (u *Uploader) Resolve(ctx gpu.Context, s Shape) (*Instance, error) {
	impl, ok := s.(*shape)
	if !ok {
		return nil, fmt.Errorf("unsupported shape implementation %T", s)
	}
	return u.cache.Resolve(ctx, s, func(ctx gpu.Context, prev *Instance, exists bool) (*Instance, error) {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if exists && prev != nil {
			return uploadInto(ctx, s, impl, prev)
		}
		inst, err := uploadInto(ctx, s, impl, &Instance{buffers: make(map[string]gpu.Buffer)})
		if err != nil {
			releaseInstance(ctx, inst)
			return nil, err
		}
		return inst, nil
	})
}

// uploadInto writes the snapshot of s into inst. On error inst still owns every buffer it holds,
// old or new.
func uploadInto(ctx gpu.Context, s Shape, impl *shape, inst *Instance) (*Instance, error) {
	snap := impl.snapshot()
	inst.attributes = make(map[string]Attribute, len(snap.attributes))
	inst.vertices = snap.vertices
	inst.instances = 0
	inst.topology = s.Topology()

	for _, a := range snap.attributes {
		buf, err := writeBuffer(ctx, inst.buffers[a.Name], gpu.BufferVertex, s.Usage(), common.SliceToBytes(a.Data))
		if err != nil {
			return inst, fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		inst.buffers[a.Name] = buf
		inst.attributes[a.Name] = Attribute{Name: a.Name, Components: a.Components, Divisor: a.Divisor}
		if a.Divisor > 0 {
			inst.instances = max(inst.instances, a.Count()*a.Divisor)
		}
	}
	for name, buf := range inst.buffers {
		if _, ok := inst.attributes[name]; !ok {
			ctx.DeleteBuffer(buf)
			delete(inst.buffers, name)
		}
	}

	inst.indexCount = len(snap.indices)
	if snap.indices == nil {
		if inst.indices != nil {
			ctx.DeleteBuffer(inst.indices)
			inst.indices = nil
		}
		return inst, nil
	}
	buf, err := writeBuffer(ctx, inst.indices, gpu.BufferIndex, s.Usage(), common.SliceToBytes(snap.indices))
	if err != nil {
		return inst, fmt.Errorf("indices: %w", err)
	}
	inst.indices = buf
	return inst, nil
}

// Forget releases every context's instance of s.
func (u *Uploader) Forget(s Shape) {
	u.cache.Forget(s.ID())
}

// Release releases every instance owned by a context.
func (u *Uploader) Release(ctxID gpu.ContextID) {
	u.cache.ReleaseContext(ctxID)
}

// Uploads returns how many times s was uploaded to a context, first upload included.
func (u *Uploader) Uploads(s Shape, ctxID gpu.ContextID) int {
	info, _ := u.cache.Info(s.ID(), ctxID)
	return info.Uploads
}

func writeBuffer(ctx gpu.Context, prev gpu.Buffer, kind gpu.BufferKind, usage gpu.Usage, data []byte) (gpu.Buffer, error) {
	if prev != nil && prev.Size() >= len(data) {
		if err := ctx.UpdateBuffer(prev, 0, data); err != nil {
			return prev, err
		}
		return prev, nil
	}
	buf, err := ctx.CreateBuffer(kind, usage, data)
	if err != nil {
		return prev, err
	}
	if prev != nil {
		ctx.DeleteBuffer(prev)
	}
	return buf, nil
}

func releaseInstance(ctx gpu.Context, inst *Instance) {
	if inst == nil {
		return
	}
	for _, buf := range inst.buffers {
		ctx.DeleteBuffer(buf)
	}
	if inst.indices != nil {
		ctx.DeleteBuffer(inst.indices)
	}
}
