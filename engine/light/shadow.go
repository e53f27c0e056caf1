package light

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
)

// ShadowMapResolution is the default width and height in texels of a shadow map.
const ShadowMapResolution = 1024

// DefaultShadowHalfExtent is the default orthographic half-extent (in world units)
// used for the directional light shadow frustum. Controls how much of the scene
// around the focus point is captured in the shadow map.
const DefaultShadowHalfExtent float32 = 20.0

// DefaultShadowNear is the default near plane of every shadow projection.
const DefaultShadowNear float32 = 0.5

// DefaultShadowFar is the default far plane for the directional light's
// orthographic shadow projection.
const DefaultShadowFar float32 = 100.0

// DefaultShadowBias is the constant depth bias applied to shadow comparisons
// to reduce shadow acne artifacts.
const DefaultShadowBias float32 = 0.002

// shadowMap is the implementation of the ShadowMap interface.
type shadowMap struct {
	*resource.Tracker
	mu        *sync.RWMutex
	width     int
	height    int
	minFilter gpu.FilterMode
	magFilter gpu.FilterMode
}

// ShadowMap is a depth render target description. Each context resolving it through a
// ShadowStore gets exactly one depth texture and framebuffer, recreated when the size changes.
type ShadowMap interface {
	resource.Resource

	// Width returns the width in texels.
	Width() int

	// Height returns the height in texels.
	Height() int

	// Resize changes the size; every context recreates its target on the next resolve.
	Resize(width, height int)

	// Desc returns the depth texture description.
	Desc() gpu.TextureDesc
}

var _ ShadowMap = &shadowMap{}

// ShadowMapBuilderOption configures a shadow map.
type ShadowMapBuilderOption func(*shadowMap)

// WithShadowFilters sets the depth texture filters. Defaults to linear, which lets comparison
// samplers filter the comparison result.
func WithShadowFilters(minFilter, magFilter gpu.FilterMode) ShadowMapBuilderOption {
	return func(s *shadowMap) {
		s.minFilter = minFilter
		s.magFilter = magFilter
	}
}

// NewShadowMap creates a shadow map description.
//
// Parameters:
//   - width: width in texels
//   - height: height in texels
//   - opts: filter options
//
// Returns:
//   - ShadowMap: the shadow map
func NewShadowMap(width, height int, opts ...ShadowMapBuilderOption) ShadowMap {
	s := &shadowMap{
		Tracker:   resource.NewTracker(),
		mu:        &sync.RWMutex{},
		width:     width,
		height:    height,
		minFilter: gpu.FilterLinear,
		magFilter: gpu.FilterLinear,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *shadowMap) Width() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width
}

func (s *shadowMap) Height() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

func (s *shadowMap) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == width && s.height == height {
		return
	}
	s.width, s.height = width, height
	s.MarkDirty()
}

func (s *shadowMap) Desc() gpu.TextureDesc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gpu.TextureDesc{
		Label:     "shadow map",
		Width:     s.width,
		Height:    s.height,
		MinFilter: s.minFilter,
		MagFilter: s.magFilter,
		Wrap:      gpu.WrapClamp,
	}
}

// ShadowTarget is the per-context GPU side of a shadow map.
type ShadowTarget struct {
	Depth       gpu.Texture
	Framebuffer gpu.Framebuffer
	Width       int
	Height      int
}

// ShadowStore creates and caches the per-context targets of shadow maps.
type ShadowStore struct {
	cache *resource.Cache[*ShadowTarget]
}

// NewShadowStore creates an empty store.
func NewShadowStore() *ShadowStore {
	return &ShadowStore{
		cache: resource.NewCache("shadow map", func(ctx gpu.Context, t *ShadowTarget) {
			t.release(ctx)
		}),
	}
}

// Resolve returns the target of sm on ctx, creating the depth texture and framebuffer on first
// use and recreating both when the size changed.
//
// Parameters:
//   - ctx: the context the target belongs to
//   - sm: the shadow map
//
// Returns:
//   - *ShadowTarget: the target
//   - error: the allocation error; the shadow map is then failed for ctx
func (s *ShadowStore) Resolve(ctx gpu.Context, sm ShadowMap) (*ShadowTarget, error) {
	return s.cache.Resolve(ctx, sm, func(ctx gpu.Context, prev *ShadowTarget, exists bool) (*ShadowTarget, error) {
		desc := sm.Desc()
		if exists && prev.Width == desc.Width && prev.Height == desc.Height {
			return prev, nil
		}
		depth, err := ctx.CreateDepthTexture(desc)
		if err != nil {
			return nil, fmt.Errorf("shadow map depth texture: %w", err)
		}
		fb, err := ctx.CreateFramebuffer(depth)
		if err != nil {
			ctx.DeleteTexture(depth)
			return nil, fmt.Errorf("shadow map framebuffer: %w", err)
		}
		if exists {
			prev.release(ctx)
		}
		return &ShadowTarget{Depth: depth, Framebuffer: fb, Width: desc.Width, Height: desc.Height}, nil
	})
}

// Lookup returns the target of sm on a context without creating it.
func (s *ShadowStore) Lookup(sm ShadowMap, ctxID gpu.ContextID) (*ShadowTarget, bool) {
	return s.cache.Lookup(sm.ID(), ctxID)
}

// Forget deletes the targets of sm on every context.
func (s *ShadowStore) Forget(sm ShadowMap) {
	s.cache.Forget(sm.ID())
}

// Release deletes every target owned by a context.
func (s *ShadowStore) Release(ctxID gpu.ContextID) {
	s.cache.ReleaseContext(ctxID)
}

func (t *ShadowTarget) release(ctx gpu.Context) {
	ctx.DeleteFramebuffer(t.Framebuffer)
	ctx.DeleteTexture(t.Depth)
}
