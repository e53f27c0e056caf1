package light

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun. Affects all fragments uniformly with no
	// distance attenuation and renders one orthographic shadow map.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// It renders six shadow maps, one per cube face.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	// It renders one perspective shadow map covering the outer cone.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// ParseLightType parses "directional", "point" or "spot".
func ParseLightType(s string) (LightType, error) {
	switch s {
	case "directional", "sun":
		return LightTypeDirectional, nil
	case "point", "":
		return LightTypePoint, nil
	case "spot":
		return LightTypeSpot, nil
	}
	return 0, fmt.Errorf("unknown light type %q", s)
}

// State is the shadow pass state of a light.
type State int

const (
	StateUnconfigured State = iota
	StateInitialized
	StateActive
	StateDeactivated
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	case StateDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.RWMutex

	lightType    LightType
	position     mgl32.Vec3
	direction    mgl32.Vec3
	color        mgl32.Vec3
	intensity    float32
	attenuation  float32
	lightRange   float32
	innerDeg     float32
	outerDeg     float32
	enabled      bool
	castsShadows bool

	shadowResolution int
	shadowHalfExtent float32
	shadowNear       float32

	state      State
	store      *ShadowStore
	shadowMaps []ShadowMap
	shadowSlot int
	prevTarget gpu.Framebuffer
	prevView   gpu.Viewport

	// matrices caches LightSpaceMatrices until the light moves or the focus changes
	matrices []mgl32.Mat4
	focus    mgl32.Vec3
	dirty    bool
}

// Light is a light source feeding the Lights uniform block and, when it casts shadows, owning
// the shadow maps the shadow pass renders into.
//
// Its shadow pass life cycle is Unconfigured, Initialized (shadow maps allocated), then
// alternating Active (a shadow map is the render target) and Deactivated (the previous target
// restored).
type Light interface {
	// Type returns the kind of light source.
	Type() LightType

	// Position returns the world-space position of the light. Meaningless for directional
	// lights.
	Position() mgl32.Vec3

	// Direction returns the normalized direction the light shines in. Meaningless for point
	// lights.
	Direction() mgl32.Vec3

	// Color returns the RGB color of the light.
	Color() mgl32.Vec3

	// Intensity returns the scalar color multiplier.
	Intensity() float32

	// Attenuation returns k in the falloff 1 / (1 + k * d^2). Zero disables distance falloff.
	Attenuation() float32

	// Range returns the far plane of point and spot light shadow projections.
	Range() float32

	// InnerCone returns the cosine of the inner cone half-angle of a spot light.
	InnerCone() float32

	// OuterCone returns the cosine of the outer cone half-angle of a spot light.
	OuterCone() float32

	// Enabled returns whether the light contributes to shading.
	Enabled() bool

	// CastsShadows returns whether the light renders shadow maps.
	CastsShadows() bool

	// ShadowResolution returns the width and height of each shadow map in texels.
	ShadowResolution() int

	// SetPosition moves the light.
	SetPosition(p mgl32.Vec3)

	// SetDirection points the light; the direction is normalized.
	SetDirection(d mgl32.Vec3)

	// SetColor sets the RGB color of the light.
	SetColor(c mgl32.Vec3)

	// SetIntensity sets the scalar color multiplier.
	SetIntensity(intensity float32)

	// SetAttenuation sets the falloff constant.
	SetAttenuation(k float32)

	// SetEnabled enables or disables the light.
	SetEnabled(enabled bool)

	// State returns the shadow pass state.
	State() State

	// ShadowMapCount returns the number of shadow maps the light renders: 0 when it casts no
	// shadows, 6 for a point light and 1 otherwise.
	ShadowMapCount() int

	// ShadowMaps returns the allocated shadow maps, nil before Initialize.
	ShadowMaps() []ShadowMap

	// Initialize allocates the shadow maps of a shadow casting light from store. Calling it again
	// after a resolution change reallocates them.
	//
	// Parameters:
	//   - store: the per-context shadow target store of the rendering session
	Initialize(store *ShadowStore)

	// Activate makes one shadow map the render target: the current framebuffer and viewport are
	// saved, the map's framebuffer is bound, the viewport set to its size and its depth cleared.
	//
	// Parameters:
	//   - ctx: the context to render on
	//   - index: the shadow map, 0..5 selecting the cube face of a point light
	//
	// Returns:
	//   - error: an error if the light is not initialized, already active, casts no shadows, the
	//     index is out of range, or the target cannot be created
	Activate(ctx gpu.Context, index int) error

	// Deactivate restores the framebuffer and viewport saved by Activate.
	//
	// Parameters:
	//   - ctx: the context Activate was called with
	//
	// Returns:
	//   - error: an error if the light is not active
	Deactivate(ctx gpu.Context) error

	// ShadowSlot returns the first shadow map slot of the Lights block assigned to the light,
	// -1 when it has none.
	ShadowSlot() int

	// SetShadowSlot assigns the first shadow map slot, -1 for none. The renderer assigns slots in
	// light order each shadow pass.
	SetShadowSlot(slot int)

	// LightSpaceMatrices returns the view-projection matrices of the shadow maps: one
	// orthographic matrix around focus for a directional light, one perspective matrix covering
	// the outer cone for a spot light, six 90 degree perspectives for a point light in the order
	// +X, -X, +Y, -Y, +Z, -Z. They are recomputed only after the light or the focus moved.
	//
	// Parameters:
	//   - focus: the world point a directional light's shadow frustum is centered on
	//
	// Returns:
	//   - []mgl32.Mat4: the matrices
	LightSpaceMatrices(focus mgl32.Vec3) []mgl32.Mat4

	// Bind writes this light into a Lights block value bag at array slot index: position or
	// vector, color, attenuation and shadow slot parameters, cone direction, and the light-space
	// matrices at the light's shadow slots, as last computed by LightSpaceMatrices.
	//
	// Parameters:
	//   - values: a bag created by NewUniformValues
	//   - index: the light array slot, below MaxLights
	//
	// Returns:
	//   - error: an error if index is out of range or the bag was not created by NewUniformValues
	Bind(values map[string]any, index int) error
}

var _ Light = &lightImpl{}

// NewLight creates a light with the defaults of DefaultConfig and any options applied.
//
// Parameters:
//   - opts: light options
//
// Returns:
//   - Light: an unconfigured light
func NewLight(opts ...LightBuilderOption) Light {
	d := DefaultConfig()
	l := &lightImpl{
		mu:               &sync.RWMutex{},
		lightType:        LightTypePoint,
		position:         mgl32.Vec3(d.Position),
		direction:        mgl32.Vec3(d.Direction),
		color:            mgl32.Vec3(d.Color),
		intensity:        d.Intensity,
		attenuation:      d.Attenuation,
		lightRange:       d.Range,
		innerDeg:         d.SpotInner,
		outerDeg:         d.SpotOuter,
		enabled:          true,
		shadowResolution: d.ShadowResolution,
		shadowHalfExtent: DefaultShadowHalfExtent,
		shadowNear:       DefaultShadowNear,
		shadowSlot:       -1,
		dirty:            true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Position() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.position
}

func (l *lightImpl) Direction() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.direction
}

func (l *lightImpl) Color() mgl32.Vec3 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.intensity
}

func (l *lightImpl) Attenuation() float32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attenuation
}

func (l *lightImpl) Range() float32 {
	return l.lightRange
}

func (l *lightImpl) InnerCone() float32 {
	return cosDeg(l.innerDeg)
}

func (l *lightImpl) OuterCone() float32 {
	return cosDeg(l.outerDeg)
}

func (l *lightImpl) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) ShadowResolution() int {
	return l.shadowResolution
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.position != p {
		l.position = p
		l.dirty = true
	}
}

func (l *lightImpl) SetDirection(d mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := normalize(d)
	if l.direction != n {
		l.direction = n
		l.dirty = true
	}
}

func (l *lightImpl) SetColor(c mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = c
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intensity = intensity
}

func (l *lightImpl) SetAttenuation(k float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attenuation = k
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *lightImpl) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *lightImpl) ShadowMapCount() int {
	switch {
	case !l.castsShadows:
		return 0
	case l.lightType == LightTypePoint:
		return 6
	default:
		return 1
	}
}

func (l *lightImpl) ShadowMaps() []ShadowMap {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]ShadowMap(nil), l.shadowMaps...)
}

func (l *lightImpl) Initialize(store *ShadowStore) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = store
	n := l.ShadowMapCount()
	if len(l.shadowMaps) != n {
		l.shadowMaps = make([]ShadowMap, n)
		for i := range l.shadowMaps {
			l.shadowMaps[i] = NewShadowMap(l.shadowResolution, l.shadowResolution)
		}
	}
	for _, sm := range l.shadowMaps {
		if sm.Width() != l.shadowResolution || sm.Height() != l.shadowResolution {
			sm.Resize(l.shadowResolution, l.shadowResolution)
		}
	}
	l.state = StateInitialized
	common.LogDebug("light initialized", "type", l.lightType, "shadow_maps", n)
}

func (l *lightImpl) Activate(ctx gpu.Context, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateInitialized, StateDeactivated:
	default:
		return fmt.Errorf("activate %v light in state %v", l.lightType, l.state)
	}
	if index < 0 || index >= len(l.shadowMaps) {
		return fmt.Errorf("shadow map %d out of range, %v light has %d", index, l.lightType, len(l.shadowMaps))
	}
	target, err := l.store.Resolve(ctx, l.shadowMaps[index])
	if err != nil {
		return err
	}

	l.prevTarget = ctx.CurrentFramebuffer()
	l.prevView = ctx.Viewport()
	ctx.BindFramebuffer(target.Framebuffer)
	ctx.SetViewport(gpu.Viewport{Width: target.Width, Height: target.Height})
	ctx.Clear(gpu.ClearDepth)
	l.state = StateActive
	return nil
}

func (l *lightImpl) Deactivate(ctx gpu.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateActive {
		return fmt.Errorf("deactivate %v light in state %v", l.lightType, l.state)
	}
	ctx.BindFramebuffer(l.prevTarget)
	ctx.SetViewport(l.prevView)
	l.prevTarget = nil
	l.state = StateDeactivated
	return nil
}

func (l *lightImpl) ShadowSlot() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.shadowSlot
}

func (l *lightImpl) SetShadowSlot(slot int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shadowSlot = slot
}

func (l *lightImpl) LightSpaceMatrices(focus mgl32.Vec3) []mgl32.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty && l.matrices != nil && (l.lightType != LightTypeDirectional || l.focus == focus) {
		return l.matrices
	}

	switch l.lightType {
	case LightTypeDirectional:
		l.matrices = []mgl32.Mat4{directionalMatrix(l.direction, focus, l.shadowHalfExtent, l.shadowNear, DefaultShadowFar)}
	case LightTypeSpot:
		proj := mgl32.Perspective(mgl32.DegToRad(2*l.outerDeg), 1, l.shadowNear, l.lightRange)
		view := mgl32.LookAtV(l.position, l.position.Add(l.direction), stableUp(l.direction))
		l.matrices = []mgl32.Mat4{proj.Mul4(view)}
	case LightTypePoint:
		proj := mgl32.Perspective(mgl32.DegToRad(90), 1, l.shadowNear, l.lightRange)
		l.matrices = make([]mgl32.Mat4, len(cubeFaces))
		for i, f := range cubeFaces {
			l.matrices[i] = proj.Mul4(mgl32.LookAtV(l.position, l.position.Add(f.dir), f.up))
		}
	}
	l.focus = focus
	l.dirty = false
	return l.matrices
}

// cubeFaces are the look directions and up vectors of the six point light shadow maps, in the
// order the shading code selects them by dominant axis.
var cubeFaces = [6]struct{ dir, up mgl32.Vec3 }{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
}

// directionalMatrix builds an orthographic view-projection for a directional light's shadow
// pass, centered on focus and looking along dir from behind it.
func directionalMatrix(dir, focus mgl32.Vec3, halfExtent, near, far float32) mgl32.Mat4 {
	eye := focus.Sub(dir.Mul(far * 0.5))
	view := mgl32.LookAtV(eye, focus, stableUp(dir))
	proj := mgl32.Ortho(-halfExtent, halfExtent, -halfExtent, halfExtent, near, far)
	return proj.Mul4(view)
}

// stableUp returns an up vector that is not parallel to dir.
func stableUp(dir mgl32.Vec3) mgl32.Vec3 {
	if abs(dir.Y()) > 0.99 {
		return mgl32.Vec3{1, 0, 0}
	}
	return mgl32.Vec3{0, 1, 0}
}
