package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/input"
	"github.com/go-gl/mathgl/mgl32"
)

const eps = 1e-3

func TestCameraViewFollowsEyeAtUp(t *testing.T) {
	c := NewCamera(WithEye(0, 0, 5), WithAt(0, 0, 0))
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{0, 0, -5, 1}, eps) {
		t.Fatalf("origin in view space = %v", p)
	}

	c.SetEye(mgl32.Vec3{5, 0, 0})
	p = c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{0, 0, -5, 1}, eps) {
		t.Errorf("after SetEye, origin in view space = %v", p)
	}
	if !c.Transform().Mul4(c.View()).ApproxEqualThreshold(mgl32.Ident4(), eps) {
		t.Error("Transform is not the inverse of View")
	}

	c.SetAt(mgl32.Vec3{5, 0, -1})
	p = c.View().Mul4x1(mgl32.Vec4{5, 0, -3, 1})
	if !p.ApproxEqualThreshold(mgl32.Vec4{0, 0, -3, 1}, eps) {
		t.Errorf("after SetAt, point ahead in view space = %v", p)
	}
}

func TestCameraProjection(t *testing.T) {
	tests := []struct {
		name    string
		opts    []CameraBuilderOption
		hasProj bool
		aspect  float32
	}{
		{"default perspective from surface", nil, true, 2},
		{"fixed aspect", []CameraBuilderOption{WithAspect(1.5)}, true, 1.5},
		{"orthographic", []CameraBuilderOption{WithOrthographic(5)}, true, 2},
		{"none", []CameraBuilderOption{WithoutProjection()}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCamera(tt.opts...)
			if c.Initialized() {
				t.Fatal("initialized before a surface")
			}
			c.Initialize(800, 400)
			c.Initialize(100, 100)
			if !c.Initialized() {
				t.Fatal("not initialized")
			}
			if c.HasProjection() != tt.hasProj {
				t.Errorf("HasProjection = %v", c.HasProjection())
			}
			if c.Aspect() != tt.aspect {
				t.Errorf("Aspect = %v, want %v", c.Aspect(), tt.aspect)
			}
			if !tt.hasProj && c.Projection() != mgl32.Ident4() {
				t.Error("camera without projection must bind identity")
			}
		})
	}
}

func TestCameraPerspectiveMatchesMathgl(t *testing.T) {
	c := NewCamera(WithFov(mgl32.DegToRad(60)), WithNearFar(1, 50))
	c.Initialize(640, 480)
	want := mgl32.Perspective(mgl32.DegToRad(60), 640.0/480.0, 1, 50)
	if !c.Projection().ApproxEqualThreshold(want, 1e-5) {
		t.Error("perspective projection mismatch")
	}
	c.Resize(480, 480)
	want = mgl32.Perspective(mgl32.DegToRad(60), 1, 1, 50)
	if !c.Projection().ApproxEqualThreshold(want, 1e-5) {
		t.Error("projection not updated on resize")
	}
}

func TestCameraBind(t *testing.T) {
	c := NewCamera(WithEye(1, 2, 3))
	values := map[string]any{}
	c.Bind(values)
	if values[FieldPosition] != (mgl32.Vec4{1, 2, 3, 1}) {
		t.Errorf("camera_position = %v", values[FieldPosition])
	}
	if values[FieldInverse] != c.View() || values[FieldTransform] != c.Transform() || values[FieldProjection] != c.Projection() {
		t.Error("matrices not written")
	}
}

func TestControllerThrust(t *testing.T) {
	c := NewCamera(WithEye(0, 0, 10), WithAt(0, 0, 0))
	cc := NewController(c, WithMetersPerSecond(4))
	reg := input.NewRegistry()
	if err := cc.Attach(reg); err != nil {
		t.Fatal(err)
	}

	reg.Press(common.KeyW, 0)
	cc.Update(0.5)
	if !c.Eye().ApproxEqualThreshold(mgl32.Vec3{0, 0, 8}, eps) {
		t.Errorf("after forward eye = %v, want (0, 0, 8)", c.Eye())
	}
	reg.Release(common.KeyW)
	if cc.Thrust() != (mgl32.Vec3{}) {
		t.Errorf("thrust after release = %v", cc.Thrust())
	}

	reg.Press(common.KeySpace, 0)
	reg.Press(common.KeyD, 0)
	cc.Update(1)
	if !c.Eye().ApproxEqualThreshold(mgl32.Vec3{4, 4, 8}, eps) {
		t.Errorf("after up and right eye = %v, want (4, 4, 8)", c.Eye())
	}
	reg.ReleaseAll()

	reg.Press(common.KeyEqual, 0)
	if m := cc.SpeedMultiplier(); m < 1.19 || m > 1.21 {
		t.Errorf("speed multiplier = %v, want 1.2", m)
	}

	reg.Press(common.KeyR, common.ModShift)
	if !c.Eye().ApproxEqualThreshold(mgl32.Vec3{0, 0, 10}, eps) || cc.SpeedMultiplier() != 1 {
		t.Errorf("reset eye = %v, speed = %v", c.Eye(), cc.SpeedMultiplier())
	}
}

func TestControllerLookAround(t *testing.T) {
	c := NewCamera(WithEye(0, 0, 0), WithAt(0, 0, -1))
	cc := NewController(c, WithLeeway(10), WithRadiansPerPixel(0.01))

	cc.MouseMove(400+50, 300, 800, 600)
	cc.Update(1)
	if !c.At().ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, eps) {
		t.Fatalf("locked controller turned the camera: at = %v", c.At())
	}

	cc.SetLookAroundLocked(false)
	cc.MouseMove(400+5, 300, 800, 600)
	cc.Update(1)
	if !c.At().ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, eps) {
		t.Fatalf("cursor inside the dead box turned the camera: at = %v", c.At())
	}

	cc.MouseMove(400+50, 300, 800, 600)
	cc.Update(1)
	if at := c.At(); at.X() <= 0 {
		t.Errorf("cursor right of center should turn right, at = %v", at)
	}
	if !c.Eye().ApproxEqualThreshold(mgl32.Vec3{}, eps) {
		t.Errorf("looking around moved the eye: %v", c.Eye())
	}
}

func TestControllerArcballKeepsDistanceToPivot(t *testing.T) {
	c := NewCamera(WithEye(0, 0, arcballPivot), WithAt(0, 0, 0))
	cc := NewController(c)
	cc.MouseMove(400, 300, 800, 600)
	cc.MouseDown()
	cc.MouseMove(500, 300, 800, 600)
	cc.Update(1)
	cc.MouseUp()

	eye := c.Eye()
	if eye.ApproxEqualThreshold(mgl32.Vec3{0, 0, arcballPivot}, eps) {
		t.Fatal("drag did not move the camera")
	}
	if d := eye.Len(); d < arcballPivot-0.01 || d > arcballPivot+0.01 {
		t.Errorf("distance to pivot = %v, want %v", d, arcballPivot)
	}
}
