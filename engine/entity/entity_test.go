package entity

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
)

func TestGlobalTransformsRecomputeOnlyWhenDirty(t *testing.T) {
	e := NewEntity(shape.Cube(), nil, WithTransforms(mgl32.Translate3D(1, 0, 0), mgl32.Translate3D(0, 1, 0)))
	impl := e.(*entity)

	if !e.Dirty() {
		t.Fatal("new entity should be dirty")
	}
	first := e.GlobalTransforms()
	if e.Dirty() {
		t.Error("GlobalTransforms did not clear the dirty flag")
	}
	e.GlobalTransforms()
	if impl.recomputes != 1 {
		t.Errorf("recomputed %d times without an edit, want 1", impl.recomputes)
	}
	if len(first) != 2 || first[1] != mgl32.Translate3D(0, 1, 0) {
		t.Errorf("global transforms = %v", first)
	}

	edits := []struct {
		name string
		edit func()
	}{
		{"position", func() { e.SetPosition(mgl32.Vec3{0, 0, 5}) }},
		{"rotation", func() { e.SetRotation(mgl32.Vec3{0, 1, 0}) }},
		{"scale", func() { e.SetScale(mgl32.Vec3{2, 2, 2}) }},
		{"transforms", func() { e.SetTransforms([]mgl32.Mat4{mgl32.Ident4()}) }},
	}
	for i, tt := range edits {
		tt.edit()
		if !e.Dirty() {
			t.Errorf("%s edit did not mark dirty", tt.name)
		}
		e.GlobalTransforms()
		if impl.recomputes != i+2 {
			t.Errorf("after %s edit recomputes = %d, want %d", tt.name, impl.recomputes, i+2)
		}
	}
}

func TestGenerationSurvivesRecompute(t *testing.T) {
	e := NewEntity(shape.Cube(), nil)
	start := e.Generation()
	e.SetPosition(mgl32.Vec3{1, 0, 0})
	e.GlobalTransforms()
	if e.Dirty() {
		t.Fatal("GlobalTransforms did not clear the dirty flag")
	}
	if got := e.Generation(); got != start+1 {
		t.Errorf("generation = %d after one edit and a recompute, want %d", got, start+1)
	}
	e.SetScale(mgl32.Vec3{2, 2, 2})
	e.SetTransforms(nil)
	if got := e.Generation(); got != start+3 {
		t.Errorf("generation = %d after three edits, want %d", got, start+3)
	}
}

func TestGlobalTransformIsBaseTimesInstance(t *testing.T) {
	inst := mgl32.Translate3D(1, 0, 0)
	e := NewEntity(shape.Square(), nil, WithPosition(0, 0, -3), WithScale(2, 2, 2), WithTransforms(inst))
	g := e.GlobalTransforms()[0]
	p := g.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{2, 0, -3, 1}) {
		t.Errorf("instance origin maps to %v, want (2, 0, -3)", p)
	}
	if g != e.BaseTransform().Mul4(inst) {
		t.Error("global transform is not base * instance")
	}
}

func TestEntityDefaults(t *testing.T) {
	e := NewEntity(shape.Triangle(), nil)
	if e.InstanceCount() != 1 || e.Transforms()[0] != mgl32.Ident4() {
		t.Error("default instance list should be a single identity")
	}
	e.SetTransforms(nil)
	if e.InstanceCount() != 1 {
		t.Error("empty transform list not replaced by identity")
	}
	if !e.Enabled() || e.Label() != shape.Triangle().Label() {
		t.Errorf("enabled=%v label=%q", e.Enabled(), e.Label())
	}
	if NewEntity(nil, nil).ID() == e.ID() {
		t.Error("ids are not unique")
	}

	ts := e.Transforms()
	ts[0] = mgl32.Translate3D(9, 9, 9)
	if e.Transforms()[0] != mgl32.Ident4() {
		t.Error("Transforms returned internal storage")
	}
}
