package light

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
)

func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	c := m.Mul4x1(p.Vec4(1))
	return c.Vec3().Mul(1 / c.W())
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		check   func(t *testing.T, l Light)
	}{
		{"defaults", Config{}, false, func(t *testing.T, l Light) {
			if l.Type() != LightTypePoint || l.Color() != (mgl32.Vec3{1, 1, 1}) || l.Intensity() != 1 || l.CastsShadows() {
				t.Errorf("unexpected defaults: %v %v %v %v", l.Type(), l.Color(), l.Intensity(), l.CastsShadows())
			}
			if l.ShadowResolution() != ShadowMapResolution {
				t.Errorf("resolution = %d", l.ShadowResolution())
			}
		}},
		{"size sets attenuation", Config{Size: 4}, false, func(t *testing.T, l Light) {
			if l.Attenuation() != 0.25 {
				t.Errorf("attenuation = %v, want 0.25", l.Attenuation())
			}
		}},
		{"directional normalized", Config{Type: "directional", Direction: [3]float32{0, 0, -5}}, false, func(t *testing.T, l Light) {
			if l.Direction() != (mgl32.Vec3{0, 0, -1}) {
				t.Errorf("direction = %v", l.Direction())
			}
		}},
		{"disabled", Config{Disabled: true}, false, func(t *testing.T, l Light) {
			if l.Enabled() {
				t.Error("light should be disabled")
			}
		}},
		{"unknown type", Config{Type: "area"}, true, nil},
		{"bad cone", Config{Type: "spot", SpotInner: 40, SpotOuter: 30}, true, nil},
		{"negative range", Config{Range: -1}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := FromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromConfig error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, l)
			}
		})
	}
}

func TestShadowMapCount(t *testing.T) {
	tests := []struct {
		light Light
		want  int
	}{
		{NewLight(WithType(LightTypePoint)), 0},
		{NewLight(WithType(LightTypePoint), WithCastsShadows(true)), 6},
		{NewLight(WithType(LightTypeDirectional), WithCastsShadows(true)), 1},
		{NewLight(WithType(LightTypeSpot), WithCastsShadows(true)), 1},
	}
	for _, tt := range tests {
		if got := tt.light.ShadowMapCount(); got != tt.want {
			t.Errorf("%v ShadowMapCount() = %d, want %d", tt.light.Type(), got, tt.want)
		}
		tt.light.Initialize(NewShadowStore())
		if got := len(tt.light.ShadowMaps()); got != tt.want {
			t.Errorf("%v allocated %d shadow maps, want %d", tt.light.Type(), got, tt.want)
		}
	}
}

func TestLightStateMachine(t *testing.T) {
	ctx := gputest.New(gputest.WithSize(800, 600))
	store := NewShadowStore()
	l := NewLight(WithType(LightTypePoint), WithCastsShadows(true), WithShadowResolution(256))

	if l.State() != StateUnconfigured {
		t.Fatalf("state = %v", l.State())
	}
	if err := l.Activate(ctx, 0); err == nil {
		t.Fatal("Activate before Initialize should fail")
	}
	l.Initialize(store)
	if l.State() != StateInitialized {
		t.Fatalf("state = %v", l.State())
	}
	if err := l.Activate(ctx, 6); err == nil {
		t.Error("Activate(6) on a point light should fail")
	}

	for face := 0; face < 6; face++ {
		if err := l.Activate(ctx, face); err != nil {
			t.Fatalf("Activate(%d): %v", face, err)
		}
		if l.State() != StateActive {
			t.Fatalf("state = %v", l.State())
		}
		target, ok := store.Lookup(l.ShadowMaps()[face], ctx.ID())
		if !ok {
			t.Fatal("target not created")
		}
		if ctx.CurrentFramebuffer() != target.Framebuffer {
			t.Error("shadow framebuffer not bound")
		}
		if v := ctx.Viewport(); v.Width != 256 || v.Height != 256 {
			t.Errorf("viewport = %+v", v)
		}
		if err := l.Activate(ctx, face); err == nil {
			t.Error("Activate while active should fail")
		}
		if err := l.Deactivate(ctx); err != nil {
			t.Fatal(err)
		}
		if ctx.CurrentFramebuffer() != nil {
			t.Error("default surface not restored")
		}
		if v := ctx.Viewport(); v.Width != 800 || v.Height != 600 {
			t.Errorf("viewport not restored: %+v", v)
		}
	}
	if err := l.Deactivate(ctx); err == nil {
		t.Error("Deactivate while deactivated should fail")
	}

	depthClears := 0
	for _, c := range ctx.Clears {
		if c.Flags&gpu.ClearDepth != 0 && c.Target != nil {
			depthClears++
		}
	}
	if depthClears != 6 {
		t.Errorf("depth clears = %d, want 6", depthClears)
	}

	plain := NewLight()
	plain.Initialize(store)
	if err := plain.Activate(ctx, 0); err == nil {
		t.Error("Activate on a light without shadows should fail")
	}
}

func TestShadowStore(t *testing.T) {
	a, b := gputest.New(), gputest.New()
	store := NewShadowStore()
	sm := NewShadowMap(128, 64)

	ta, err := store.Resolve(a, sm)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := store.Resolve(a, sm)
	if ta != again || len(a.Framebuffers) != 1 || len(a.Textures) != 1 {
		t.Fatalf("second resolve reallocated: %d framebuffers", len(a.Framebuffers))
	}
	if ta.Depth.Width() != 128 || ta.Depth.Height() != 64 {
		t.Errorf("depth size = %dx%d", ta.Depth.Width(), ta.Depth.Height())
	}
	if _, err := store.Resolve(b, sm); err != nil {
		t.Fatal(err)
	}

	sm.Resize(256, 256)
	ta2, err := store.Resolve(a, sm)
	if err != nil {
		t.Fatal(err)
	}
	if ta2.Width != 256 || !a.Framebuffers[0].Deleted || !a.Textures[0].Deleted {
		t.Error("resize should recreate the target and delete the old one")
	}
	if len(a.Textures) != 2 || a.Textures[1].Deleted || a.Framebuffers[1].Deleted {
		t.Error("resized target should be live")
	}
	if len(b.Framebuffers) != 1 || b.Framebuffers[0].Deleted {
		t.Error("other context's target touched")
	}

	store.Release(b.ID())
	if !b.Framebuffers[0].Deleted {
		t.Error("Release did not delete the target")
	}
}

func TestLightSpaceMatrices(t *testing.T) {
	t.Run("point faces", func(t *testing.T) {
		pos := mgl32.Vec3{1, 2, 3}
		l := NewLight(WithType(LightTypePoint), WithPosition(pos[0], pos[1], pos[2]), WithCastsShadows(true), WithRange(10))
		ms := l.LightSpaceMatrices(mgl32.Vec3{})
		if len(ms) != 6 {
			t.Fatalf("got %d matrices", len(ms))
		}
		for i, f := range cubeFaces {
			ndc := project(ms[i], pos.Add(f.dir.Mul(5)))
			if abs(ndc.X()) > 1e-4 || abs(ndc.Y()) > 1e-4 || ndc.Z() <= -1 || ndc.Z() >= 1 {
				t.Errorf("face %d: point along the face axis projects to %v", i, ndc)
			}
		}
	})

	t.Run("directional focus", func(t *testing.T) {
		l := NewLight(WithType(LightTypeDirectional), WithDirection(-1, -1, 0), WithCastsShadows(true))
		focus := mgl32.Vec3{4, 0, 4}
		ms := l.LightSpaceMatrices(focus)
		ndc := project(ms[0], focus)
		if abs(ndc.X()) > 1e-4 || abs(ndc.Y()) > 1e-4 || ndc.Z() <= -1 || ndc.Z() >= 1 {
			t.Errorf("focus projects to %v", ndc)
		}
	})

	t.Run("spot cone axis", func(t *testing.T) {
		l := NewLight(WithType(LightTypeSpot), WithPosition(0, 5, 0), WithDirection(0, -1, 0), WithCastsShadows(true))
		ms := l.LightSpaceMatrices(mgl32.Vec3{})
		ndc := project(ms[0], mgl32.Vec3{0, 0, 0})
		if abs(ndc.X()) > 1e-4 || abs(ndc.Y()) > 1e-4 {
			t.Errorf("point on the cone axis projects to %v", ndc)
		}
	})

	t.Run("cached until moved", func(t *testing.T) {
		l := NewLight(WithType(LightTypePoint), WithCastsShadows(true))
		a := l.LightSpaceMatrices(mgl32.Vec3{})
		b := l.LightSpaceMatrices(mgl32.Vec3{9, 9, 9})
		if &a[0] != &b[0] {
			t.Error("point light matrices recomputed without moving")
		}
		l.SetPosition(mgl32.Vec3{0, 1, 0})
		c := l.LightSpaceMatrices(mgl32.Vec3{})
		if &a[0] == &c[0] {
			t.Error("matrices not recomputed after move")
		}

		d := NewLight(WithType(LightTypeDirectional), WithCastsShadows(true))
		x := d.LightSpaceMatrices(mgl32.Vec3{})
		y := d.LightSpaceMatrices(mgl32.Vec3{1, 0, 0})
		if &x[0] == &y[0] {
			t.Error("directional matrices not recomputed after focus moved")
		}
	})
}

func TestPackLights(t *testing.T) {
	sun := NewLight(WithType(LightTypeDirectional), WithDirection(0, -1, 0), WithColor(1, 0.5, 0), WithIntensity(2), WithCastsShadows(true))
	lamp := NewLight(WithType(LightTypePoint), WithPosition(1, 2, 3), WithSize(2), WithCastsShadows(true))
	off := NewLight(WithEnabled(false))
	spot := NewLight(WithType(LightTypeSpot), WithSpotCone(10, 20))

	sun.SetShadowSlot(0)
	lamp.SetShadowSlot(1)
	sun.LightSpaceMatrices(mgl32.Vec3{})

	values, err := PackLights([]Light{sun, off, lamp, spot}, DefaultShadowBias)
	if err != nil {
		t.Fatal(err)
	}
	if values[FieldCount] != int32(3) {
		t.Fatalf("count = %v, want 3", values[FieldCount])
	}
	pos := values[FieldPositions].([]mgl32.Vec4)
	col := values[FieldColors].([]mgl32.Vec4)
	par := values[FieldParams].([]mgl32.Vec4)
	dir := values[FieldDirections].([]mgl32.Vec4)
	space := values[FieldLightSpace].([]mgl32.Mat4)

	if pos[0] != (mgl32.Vec4{0, 1, 0, 0}) {
		t.Errorf("sun vector = %v, want toward the light with w=0", pos[0])
	}
	if col[0] != (mgl32.Vec4{2, 1, 0, 1}) {
		t.Errorf("sun color = %v", col[0])
	}
	if par[0] != (mgl32.Vec4{0, 0, 1, float32(LightTypeDirectional)}) {
		t.Errorf("sun params = %v", par[0])
	}
	if space[0] != sun.LightSpaceMatrices(mgl32.Vec3{})[0] {
		t.Error("sun light-space matrix not written to its slot")
	}

	if pos[1] != (mgl32.Vec4{1, 2, 3, 1}) {
		t.Errorf("lamp position = %v", pos[1])
	}
	if par[1] != (mgl32.Vec4{0.5, 1, 6, float32(LightTypePoint)}) {
		t.Errorf("lamp params = %v", par[1])
	}
	for i, m := range lamp.LightSpaceMatrices(mgl32.Vec3{}) {
		if space[1+i] != m {
			t.Errorf("lamp face %d not in slot %d", i, 1+i)
		}
	}

	if par[2][1] != -1 || par[2][2] != 0 {
		t.Errorf("spot without shadows params = %v", par[2])
	}
	if abs(dir[2][3]-cosDeg(20)) > 1e-6 {
		t.Errorf("spot outer cosine = %v", dir[2][3])
	}
}

func TestPackLightsOverflowAndSlots(t *testing.T) {
	lights := make([]Light, MaxLights+2)
	for i := range lights {
		lights[i] = NewLight()
	}
	values, err := PackLights(lights, 0)
	if err != nil {
		t.Fatal(err)
	}
	if values[FieldCount] != int32(MaxLights) {
		t.Errorf("count = %v, want %d", values[FieldCount], MaxLights)
	}

	// A point light whose six maps do not fit past its slot binds without shadows.
	p := NewLight(WithType(LightTypePoint), WithCastsShadows(true))
	p.SetShadowSlot(MaxShadowSlots - 2)
	values = NewUniformValues(0)
	if err := p.Bind(values, 0); err != nil {
		t.Fatal(err)
	}
	if par := values[FieldParams].([]mgl32.Vec4)[0]; par[1] != -1 {
		t.Errorf("overflowing slot bound: %v", par)
	}

	if err := p.Bind(map[string]any{}, 0); err == nil {
		t.Error("Bind into a foreign bag should fail")
	}
	if err := p.Bind(NewUniformValues(0), MaxLights); err == nil {
		t.Error("Bind past MaxLights should fail")
	}
}
