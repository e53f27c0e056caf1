package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/camera"
	"github.com/Carmen-Shannon/oxy-tiny/engine/entity"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
	"github.com/Carmen-Shannon/oxy-tiny/engine/shape"
	"github.com/Carmen-Shannon/oxy-tiny/engine/texture"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/go-gl/mathgl/mgl32"
)

// Field names of the Globals block the renderer fills from the frame clock.
const (
	FieldAnimationTime  = "animation_time"
	FieldAnimationDelta = "animation_delta_time"
	FieldAnimate        = "animate"
	FieldLightSpace     = "light_space"
	FieldModelTransform = "model_transform"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	registry ubo.Registry
	compiler *shader.Compiler
	shapes   *shape.Uploader
	textures *texture.Uploader
	shadows  *light.ShadowStore

	// instances holds the per-entity model_transform buffers of instanced shaders.
	instances     *resource.Cache[gpu.Buffer]
	transformSets map[uint64]*transformSet

	loader      texture.Loader
	ownsLoader  bool
	depthShader shader.Shader

	entities []entity.Entity
	camera   camera.Camera
	lastSize [2]int

	clearColor  mgl32.Vec4
	maxLights   int
	shadowBias  float32
	shadowFocus *mgl32.Vec3

	time      float32
	delta     float32
	animating bool

	reported map[reportKey]bool
}

type reportKey struct {
	entity uint64
	msg    string
}

// Renderer draws submitted entities with their materials and the scene lights onto a gpu.Context.
// It references, and never owns, the shapes and materials of its entities. Every GPU object it
// creates lives in a per-context cache and is released with Release.
type Renderer interface {
	// Submit appends an entity to the draw list in O(1). Entities are drawn in submission order.
	//
	// Parameters:
	//   - e: the entity
	//
	// Returns:
	//   - error: an error if the entity, its shape or its material is nil
	Submit(e entity.Entity) error

	// Entities returns a copy of the draw list.
	//
	// Returns:
	//   - []entity.Entity: the submitted entities in order
	Entities() []entity.Entity

	// Clear empties the draw list.
	Clear()

	// SetCamera sets the camera the main pass views through.
	//
	// Parameters:
	//   - cam: the camera
	SetCamera(cam camera.Camera)

	// Camera returns the current camera, creating a default one on first use.
	Camera() camera.Camera

	// SetFrameUniforms sets the animation clock written to the Globals block.
	//
	// Parameters:
	//   - time: animation time in seconds
	//   - dt: the last frame's duration in seconds
	SetFrameUniforms(time, dt float32)

	// SetAnimating sets the animate flag written to the Globals block.
	SetAnimating(animating bool)

	// SetClearColor sets the color BeginFrame clears the surface to.
	SetClearColor(c mgl32.Vec4)

	// BeginFrame targets the surface and clears its color and depth.
	//
	// Parameters:
	//   - ctx: the context to draw on
	BeginFrame(ctx gpu.Context)

	// ShadowMapPass renders the depth of every submitted entity into the shadow maps of every
	// enabled shadow-casting light, one pass per map, and assigns the lights their shadow slots.
	//
	// Parameters:
	//   - ctx: the context to draw on
	//   - lights: the scene lights
	//
	// Returns:
	//   - error: a layout or context mismatch error; other failures are logged and skipped
	ShadowMapPass(ctx gpu.Context, lights []light.Light) error

	// Flush draws the frame: the shadow pass, unless an alternative shader is given, then every
	// enabled entity in submission order. An entity whose shader, shape or values fail is logged
	// and skipped; a layout or context mismatch error aborts the flush.
	//
	// Parameters:
	//   - ctx: the context to draw on
	//   - lights: the scene lights
	//   - clearEntities: empty the draw list afterwards
	//   - alternative: a shader that replaces every entity's own for this flush, or nil
	//
	// Returns:
	//   - error: the aborting error
	Flush(ctx gpu.Context, lights []light.Light, clearEntities bool, alternative shader.Shader) error

	// Registry returns the uniform block registry shaders are compiled against.
	Registry() ubo.Registry

	// Compiler returns the shader program cache.
	Compiler() *shader.Compiler

	// Release deletes every GPU object the renderer created on a context.
	//
	// Parameters:
	//   - ctx: the context being torn down
	Release(ctx gpu.Context)

	// Close stops the renderer's own texture loader, if it created one.
	Close()
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer.
//
// Parameters:
//   - options: registry, loader, depth shader and lighting options
//
// Returns:
//   - Renderer: the renderer
func NewRenderer(options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		shapes:        shape.NewUploader(),
		textures:      texture.NewUploader(),
		shadows:       light.NewShadowStore(),
		transformSets: make(map[uint64]*transformSet),
		clearColor:    mgl32.Vec4{0, 0, 0, 1},
		maxLights:     light.MaxLights,
		shadowBias:    light.DefaultShadowBias,
		reported:      make(map[reportKey]bool),
		instances: resource.NewCache("instance transforms", func(ctx gpu.Context, b gpu.Buffer) {
			ctx.DeleteBuffer(b)
		}),
	}
	for _, opt := range options {
		opt(r)
	}
	if r.registry == nil {
		r.registry = ubo.NewRegistry()
	}
	r.compiler = shader.NewCompiler(r.registry)
	if r.depthShader == nil {
		r.depthShader = shader.Depth()
	}
	if r.maxLights <= 0 || r.maxLights > light.MaxLights {
		r.maxLights = light.MaxLights
	}
	return r
}

func (r *renderer) Submit(e entity.Entity) error {
	if e == nil {
		return fmt.Errorf("submit: nil entity")
	}
	if e.Shape() == nil {
		return fmt.Errorf("submit %q: entity has no shape", e.Label())
	}
	if e.Material() == nil {
		return fmt.Errorf("submit %q: entity has no material", e.Label())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = append(r.entities, e)
	return nil
}

func (r *renderer) Entities() []entity.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Entity(nil), r.entities...)
}

func (r *renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = nil
}

func (r *renderer) SetCamera(cam camera.Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.camera = cam
}

func (r *renderer) Camera() camera.Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.camera == nil {
		r.camera = camera.NewCamera()
	}
	return r.camera
}

func (r *renderer) SetFrameUniforms(time, dt float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.time, r.delta = time, dt
}

func (r *renderer) SetAnimating(animating bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.animating = animating
}

func (r *renderer) SetClearColor(c mgl32.Vec4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearColor = c
}

func (r *renderer) BeginFrame(ctx gpu.Context) {
	r.mu.Lock()
	clear := r.clearColor
	r.mu.Unlock()

	w, h := ctx.Size()
	ctx.BindFramebuffer(nil)
	ctx.SetViewport(gpu.Viewport{Width: w, Height: h})
	ctx.SetClearColor(clear)
	ctx.Clear(gpu.ClearColor | gpu.ClearDepth)
}

func (r *renderer) Registry() ubo.Registry {
	return r.registry
}

func (r *renderer) Compiler() *shader.Compiler {
	return r.compiler
}

func (r *renderer) Release(ctx gpu.Context) {
	id := ctx.ID()
	r.compiler.Release(id)
	r.shapes.Release(id)
	r.textures.Release(id)
	r.shadows.Release(id)
	r.instances.ReleaseContext(id)
	common.LogDebug("renderer released context", "context", id)
}

func (r *renderer) Close() {
	r.mu.Lock()
	l, owned := r.loader, r.ownsLoader
	r.loader, r.ownsLoader = nil, false
	r.mu.Unlock()
	if owned && l != nil {
		l.Close()
	}
}

// textureLoader returns the configured loader, creating an owned one on first use.
func (r *renderer) textureLoader() texture.Loader {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loader == nil {
		r.loader = texture.NewLoader()
		r.ownsLoader = true
	}
	return r.loader
}

// report logs a per-entity failure once; later frames stay quiet until the entity recovers.
func (r *renderer) report(level func(string, ...any), e entity.Entity, msg string, err error) {
	key := reportKey{e.ID(), msg}
	r.mu.Lock()
	seen := r.reported[key]
	r.reported[key] = true
	r.mu.Unlock()
	if !seen {
		level(msg, "entity", e.Label(), "id", e.ID(), "err", err)
	}
}

// recovered re-arms the failure report of an entity that drew again.
func (r *renderer) recovered(e entity.Entity, msg string) {
	r.mu.Lock()
	delete(r.reported, reportKey{e.ID(), msg})
	r.mu.Unlock()
}

// transformSet is the CPU copy of one entity's global transforms, tracked as a resource so the
// instance buffer of each context is rewritten only after the transforms change. gen is the
// entity generation the copy was taken at.
type transformSet struct {
	*resource.Tracker
	data  []byte
	count int
	gen   uint64
}

// instanceBuffer returns the model_transform buffer of an entity on ctx. gen must be read from
// the entity before transforms, so an edit racing the read is picked up by the next flush.
func (r *renderer) instanceBuffer(ctx gpu.Context, e entity.Entity, transforms []mgl32.Mat4, gen uint64) (gpu.Buffer, error) {
	r.mu.Lock()
	ts, ok := r.transformSets[e.ID()]
	if !ok {
		ts = &transformSet{Tracker: resource.NewTracker()}
		r.transformSets[e.ID()] = ts
	}
	if !ok || ts.gen != gen || ts.count != len(transforms) {
		ts.data = common.SliceToBytes(common.FlattenMat4(transforms))
		ts.count = len(transforms)
		ts.gen = gen
		ts.MarkDirty()
	}
	data := ts.data
	r.mu.Unlock()

	return r.instances.Resolve(ctx, ts, func(ctx gpu.Context, prev gpu.Buffer, exists bool) (gpu.Buffer, error) {
		if exists && prev != nil && prev.Size() >= len(data) {
			return prev, ctx.UpdateBuffer(prev, 0, data)
		}
		buf, err := ctx.CreateBuffer(gpu.BufferVertex, gpu.UsageDynamic, data)
		if err != nil {
			return nil, err
		}
		if exists && prev != nil {
			ctx.DeleteBuffer(prev)
		}
		return buf, nil
	})
}

// prune forgets the instance buffers of entities not drawn in the last flush.
func (r *renderer) prune(drawn map[uint64]bool) {
	r.mu.Lock()
	var stale []*transformSet
	for id, ts := range r.transformSets {
		if !drawn[id] {
			stale = append(stale, ts)
			delete(r.transformSets, id)
		}
	}
	r.mu.Unlock()
	for _, ts := range stale {
		r.instances.Forget(ts.ID())
	}
}
