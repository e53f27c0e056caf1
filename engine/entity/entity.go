// Package entity binds a shape, a material and a list of instance transforms into one drawable.
package entity

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-tiny/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
)

// entityCount generates unique entity ids.
var entityCount atomic.Uint64

type entity struct {
	id      uint64
	label   string
	enabled atomic.Bool

	mu       *sync.Mutex
	shape    shape.Shape
	material material.Material

	position mgl32.Vec3
	rotation mgl32.Vec3
	scale    mgl32.Vec3

	transforms []mgl32.Mat4

	dirty      bool
	generation uint64
	global     []mgl32.Mat4
	recomputes int
}

// Entity is one drawable: a shape drawn with a material once per instance transform. The global
// transforms, base transform times each instance transform, are cached and recomputed only after
// the position, rotation, scale or instance transforms change.
type Entity interface {
	// ID returns the entity's unique identifier.
	ID() uint64

	// Label returns the name used in logs.
	Label() string

	// Enabled reports whether the entity is drawn.
	Enabled() bool

	// SetEnabled shows or hides the entity.
	SetEnabled(enabled bool)

	// Shape returns the geometry, or nil if none was given.
	Shape() shape.Shape

	// Material returns the material, or nil if none was given.
	Material() material.Material

	// SetMaterial swaps the material, e.g. for an Override copy.
	SetMaterial(m material.Material)

	// Position returns the base translation.
	Position() mgl32.Vec3

	// SetPosition sets the base translation and marks the transforms dirty.
	SetPosition(p mgl32.Vec3)

	// Rotation returns the base Euler rotation in radians, composed as Ry * Rx * Rz.
	Rotation() mgl32.Vec3

	// SetRotation sets the base rotation and marks the transforms dirty.
	SetRotation(r mgl32.Vec3)

	// Scale returns the base scale.
	Scale() mgl32.Vec3

	// SetScale sets the base scale and marks the transforms dirty.
	SetScale(s mgl32.Vec3)

	// Transforms returns a copy of the instance transforms.
	Transforms() []mgl32.Mat4

	// SetTransforms replaces the instance transforms and marks them dirty. An empty list is
	// replaced by a single identity.
	//
	// Parameters:
	//   - transforms: one model matrix per drawn instance
	SetTransforms(transforms []mgl32.Mat4)

	// InstanceCount returns the number of instance transforms.
	InstanceCount() int

	// Dirty reports whether GlobalTransforms will recompute.
	Dirty() bool

	// Generation returns a counter that grows with every transform edit and never resets, so
	// several consumers can each tell whether the transforms changed since they last looked.
	Generation() uint64

	// BaseTransform returns the model matrix built from position, rotation and scale.
	BaseTransform() mgl32.Mat4

	// GlobalTransforms returns base times instance transform for every instance, recomputing
	// them only when dirty and clearing the flag. The returned slice must not be modified.
	//
	// Returns:
	//   - []mgl32.Mat4: one world matrix per instance
	GlobalTransforms() []mgl32.Mat4
}

var _ Entity = &entity{}

// NewEntity creates an entity with an identity base transform and a single identity instance.
//
// Parameters:
//   - s: the geometry
//   - m: the material
//   - options: transform and label options
//
// Returns:
//   - Entity: the entity
func NewEntity(s shape.Shape, m material.Material, options ...EntityBuilderOption) Entity {
	e := &entity{
		id:         entityCount.Add(1),
		mu:         &sync.Mutex{},
		shape:      s,
		material:   m,
		scale:      mgl32.Vec3{1, 1, 1},
		transforms: []mgl32.Mat4{mgl32.Ident4()},
		dirty:      true,
	}
	if s != nil {
		e.label = s.Label()
	}
	e.enabled.Store(true)
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *entity) ID() uint64 {
	return e.id
}

func (e *entity) Label() string {
	return e.label
}

func (e *entity) Enabled() bool {
	return e.enabled.Load()
}

func (e *entity) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
}

func (e *entity) Shape() shape.Shape {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shape
}

func (e *entity) Material() material.Material {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.material
}

func (e *entity) SetMaterial(m material.Material) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.material = m
}

func (e *entity) Position() mgl32.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *entity) SetPosition(p mgl32.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = p
	e.markDirty()
}

func (e *entity) Rotation() mgl32.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rotation
}

func (e *entity) SetRotation(r mgl32.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rotation = r
	e.markDirty()
}

func (e *entity) Scale() mgl32.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scale
}

func (e *entity) SetScale(s mgl32.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scale = s
	e.markDirty()
}

func (e *entity) Transforms() []mgl32.Mat4 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]mgl32.Mat4(nil), e.transforms...)
}

func (e *entity) SetTransforms(transforms []mgl32.Mat4) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setTransforms(transforms)
}

func (e *entity) InstanceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.transforms)
}

func (e *entity) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

func (e *entity) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *entity) BaseTransform() mgl32.Mat4 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return common.BuildModelMatrix(e.position, e.rotation, e.scale)
}

func (e *entity) GlobalTransforms() []mgl32.Mat4 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty && e.global != nil {
		return e.global
	}
	base := common.BuildModelMatrix(e.position, e.rotation, e.scale)
	global := make([]mgl32.Mat4, len(e.transforms))
	for i, t := range e.transforms {
		global[i] = base.Mul4(t)
	}
	e.global = global
	e.dirty = false
	e.recomputes++
	return e.global
}

// markDirty invalidates the global transforms. Caller must hold the mutex.
func (e *entity) markDirty() {
	e.dirty = true
	e.generation++
}

// setTransforms replaces the instance list. Caller must hold the mutex.
func (e *entity) setTransforms(transforms []mgl32.Mat4) {
	if len(transforms) == 0 {
		e.transforms = []mgl32.Mat4{mgl32.Ident4()}
	} else {
		e.transforms = append([]mgl32.Mat4(nil), transforms...)
	}
	e.markDirty()
}
