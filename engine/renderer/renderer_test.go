package renderer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/entity"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-tiny/engine/light"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/shape"
	"github.com/Carmen-Shannon/oxy-tiny/engine/texture"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
)

var red = mgl32.Vec4{1, 0, 0, 1}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := common.Logger()
	common.SetLogger(common.NewLogger(buf, log.DebugLevel))
	t.Cleanup(func() { common.SetLogger(prev) })
	return buf
}

func phongCube(opts ...entity.EntityBuilderOption) entity.Entity {
	return entity.NewEntity(shape.Cube(), material.NewPhong(shader.Phong(), red, 0.1, 1, 1, 40), opts...)
}

func attribute(t *testing.T, d gputest.DrawRecord, name string) gpu.VertexBinding {
	t.Helper()
	for _, a := range d.Attributes {
		if a.Name == name {
			return a
		}
	}
	t.Fatalf("draw of %q has no %q attribute", d.Program.Label(), name)
	return gpu.VertexBinding{}
}

func TestSubmitRejectsIncompleteEntities(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	tests := []struct {
		name string
		e    entity.Entity
	}{
		{"nil entity", nil},
		{"no shape", entity.NewEntity(nil, material.NewMaterial(shader.Basic()))},
		{"no material", entity.NewEntity(shape.Cube(), nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Submit(tt.e); err == nil {
				t.Error("Submit succeeded")
			}
		})
	}
	if n := len(r.Entities()); n != 0 {
		t.Errorf("draw list has %d entities", n)
	}
}

func TestFlushWithoutEntities(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	if err := r.Flush(ctx, nil, true, nil); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 0 {
		t.Errorf("draws = %d, want 0", len(ctx.Draws))
	}
}

func TestFlushClearAndRetain(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	if err := r.Submit(phongCube()); err != nil {
		t.Fatal(err)
	}

	if err := r.Flush(ctx, nil, false, nil); err != nil {
		t.Fatal(err)
	}
	if len(r.Entities()) != 1 || len(ctx.Draws) != 1 {
		t.Fatalf("after retaining flush: entities = %d, draws = %d", len(r.Entities()), len(ctx.Draws))
	}
	if err := r.Flush(ctx, nil, true, nil); err != nil {
		t.Fatal(err)
	}
	if len(r.Entities()) != 0 || len(ctx.Draws) != 2 {
		t.Fatalf("after clearing flush: entities = %d, draws = %d", len(r.Entities()), len(ctx.Draws))
	}
	if err := r.Flush(ctx, nil, true, nil); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 2 {
		t.Errorf("empty flush drew: draws = %d", len(ctx.Draws))
	}
}

func TestFlushSkipsDisabledEntities(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	_ = r.Submit(phongCube(entity.WithEnabled(false)))
	_ = r.Submit(phongCube())
	if err := r.Flush(ctx, nil, true, nil); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 1 {
		t.Errorf("draws = %d, want 1", len(ctx.Draws))
	}
}

func TestInstancedDraw(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	e := phongCube(entity.WithTransforms(mgl32.Ident4(), mgl32.Translate3D(2, 0, 0), mgl32.Translate3D(4, 0, 0)))
	_ = r.Submit(e)

	if err := r.Flush(ctx, nil, false, nil); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 1 {
		t.Fatalf("draws = %d, want one instanced draw", len(ctx.Draws))
	}
	d := ctx.Draws[0]
	if d.Instances != 3 || !d.Indexed || d.Program.Label() != "phong" {
		t.Errorf("draw = %d instances, indexed %v, program %q", d.Instances, d.Indexed, d.Program.Label())
	}
	mt := attribute(t, d, FieldModelTransform)
	if mt.Divisor != 1 || mt.Components != 16 {
		t.Errorf("model_transform binding = %+v", mt)
	}
	buf := mt.Buffer.(*gputest.Buffer)
	if buf.Size() != 3*64 {
		t.Errorf("instance buffer = %d bytes, want %d", buf.Size(), 3*64)
	}

	// Unchanged transforms are not rewritten.
	if err := r.Flush(ctx, nil, false, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Updates != 0 {
		t.Errorf("unchanged transforms updated the buffer %d times", buf.Updates)
	}
	e.SetPosition(mgl32.Vec3{0, 1, 0})
	if err := r.Flush(ctx, nil, false, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Updates != 1 {
		t.Errorf("moved entity updated the buffer %d times, want 1", buf.Updates)
	}
	if got := attribute(t, ctx.Draws[2], FieldModelTransform).Buffer; got != gpu.Buffer(buf) {
		t.Error("instance buffer was reallocated")
	}
}

// instanceX returns the x translation of the first instance in a draw's model_transform buffer.
func instanceX(t *testing.T, d gputest.DrawRecord) float32 {
	t.Helper()
	buf := attribute(t, d, FieldModelTransform).Buffer.(*gputest.Buffer)
	return math.Float32frombits(binary.LittleEndian.Uint32(buf.Data[12*4:]))
}

func TestInstanceBufferFollowsEditsAcrossFlushes(t *testing.T) {
	t.Run("alternative shader flush in between", func(t *testing.T) {
		r := NewRenderer()
		defer r.Close()
		ctx := gputest.New()
		e := phongCube()
		_ = r.Submit(e)

		if err := r.Flush(ctx, nil, false, nil); err != nil {
			t.Fatal(err)
		}
		e.SetPosition(mgl32.Vec3{7, 0, 0})
		// The per-transform shader reads the global transforms without touching the instance buffer.
		if err := r.Flush(ctx, nil, false, shader.Funny()); err != nil {
			t.Fatal(err)
		}
		if err := r.Flush(ctx, nil, false, nil); err != nil {
			t.Fatal(err)
		}
		if got := instanceX(t, ctx.Draws[len(ctx.Draws)-1]); got != 7 {
			t.Errorf("instance x = %v, want 7", got)
		}
	})

	t.Run("entity shared by two renderers", func(t *testing.T) {
		e := phongCube()
		r1, r2 := NewRenderer(), NewRenderer()
		defer r1.Close()
		defer r2.Close()
		ctx1, ctx2 := gputest.New(), gputest.New()
		_ = r1.Submit(e)
		_ = r2.Submit(e)

		for _, pair := range []struct {
			r   Renderer
			ctx *gputest.Context
		}{{r1, ctx1}, {r2, ctx2}} {
			if err := pair.r.Flush(pair.ctx, nil, false, nil); err != nil {
				t.Fatal(err)
			}
		}
		e.SetPosition(mgl32.Vec3{7, 0, 0})
		if err := r1.Flush(ctx1, nil, false, nil); err != nil {
			t.Fatal(err)
		}
		if err := r2.Flush(ctx2, nil, false, nil); err != nil {
			t.Fatal(err)
		}
		if got := instanceX(t, ctx1.Draws[len(ctx1.Draws)-1]); got != 7 {
			t.Errorf("first renderer instance x = %v, want 7", got)
		}
		if got := instanceX(t, ctx2.Draws[len(ctx2.Draws)-1]); got != 7 {
			t.Errorf("second renderer instance x = %v, want 7", got)
		}
	})
}

func TestMaterialBlockDoesNotLeakBetweenDraws(t *testing.T) {
	const (
		vertex = `#version 410 core
layout(std140) uniform Tint { vec4 tint; float glow; };
layout(location = 0) in vec3 position;
void main() { gl_Position = vec4(position, glow); }`
		fragment = `#version 410 core
layout(std140) uniform Tint { vec4 tint; float glow; };
out vec4 c;
void main() { c = tint * glow; }`
	)
	s := shader.NewShader("tint", shader.WithSource(gpu.LanguageGLSL, vertex, fragment))
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	glowing := material.NewMaterial(s, material.WithValues(map[string]any{"tint": red, "glow": float32(5)}))
	plain := material.NewMaterial(s, material.WithValue("tint", red))
	_ = r.Submit(entity.NewEntity(shape.Cube(), glowing))
	_ = r.Submit(entity.NewEntity(shape.Cube(), plain))

	if err := r.Flush(ctx, nil, false, nil); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(ctx.Draws))
	}
	block, ok := r.Registry().Block("Tint")
	if !ok {
		t.Fatal("Tint block not registered")
	}
	glow, _ := block.Layout().Field("glow")
	read := func(d gputest.DrawRecord) float32 {
		data := d.Uniforms[block.BindingPoint()]
		return math.Float32frombits(binary.LittleEndian.Uint32(data[glow.Offset:]))
	}
	if got := read(ctx.Draws[0]); got != 5 {
		t.Errorf("first draw glow = %v, want 5", got)
	}
	if got := read(ctx.Draws[1]); got != 0 {
		t.Errorf("second draw glow = %v, want 0", got)
	}
}

func TestNonInstancedShaderDrawsPerTransform(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	e := entity.NewEntity(shape.Cube(), material.NewMaterial(shader.Funny()),
		entity.WithTransforms(mgl32.Ident4(), mgl32.Translate3D(5, 0, 0)))
	_ = r.Submit(e)

	if err := r.Flush(ctx, nil, true, nil); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 2 {
		t.Fatalf("draws = %d, want 2", len(ctx.Draws))
	}
	model, ok := r.Registry().Block(shader.BlockModel)
	if !ok {
		t.Fatal("Model block not registered")
	}
	point := model.BindingPoint()
	a, b := ctx.Draws[0], ctx.Draws[1]
	if a.Instances != 1 || b.Instances != 1 {
		t.Errorf("instances = %d, %d", a.Instances, b.Instances)
	}
	if bytes.Equal(a.Uniforms[point], b.Uniforms[point]) {
		t.Error("both draws saw the same model transform")
	}
}

func TestShadowMapsRenderedBeforeMainPass(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	_ = r.Submit(phongCube())

	lamp := light.NewLight(light.WithType(light.LightTypePoint), light.WithPosition(0, 5, 0),
		light.WithCastsShadows(true), light.WithShadowResolution(64))
	sun := light.NewLight(light.WithType(light.LightTypeDirectional), light.WithDirection(0, -1, 0),
		light.WithCastsShadows(true), light.WithShadowResolution(64))
	extra := light.NewLight(light.WithType(light.LightTypePoint), light.WithCastsShadows(true))

	if err := r.Flush(ctx, []light.Light{lamp, sun, extra}, true, nil); err != nil {
		t.Fatal(err)
	}
	if lamp.ShadowSlot() != 0 || sun.ShadowSlot() != 6 || extra.ShadowSlot() != -1 {
		t.Errorf("slots = %d, %d, %d; want 0, 6, -1", lamp.ShadowSlot(), sun.ShadowSlot(), extra.ShadowSlot())
	}

	if len(ctx.Draws) != 8 {
		t.Fatalf("draws = %d, want 7 depth draws and 1 main draw", len(ctx.Draws))
	}
	for i, d := range ctx.Draws[:7] {
		if d.Target == nil || d.Program.Label() != "depth" {
			t.Errorf("draw %d: program %q into %v", i, d.Program.Label(), d.Target)
		}
		if d.Viewport.Width != 64 {
			t.Errorf("draw %d viewport = %+v", i, d.Viewport)
		}
	}
	main := ctx.Draws[7]
	if main.Target != nil || main.Program.Label() != "phong" {
		t.Fatalf("main draw: program %q into %v", main.Program.Label(), main.Target)
	}
	if main.Viewport.Width != 640 || main.Viewport.Height != 480 {
		t.Errorf("main viewport = %+v, want the surface", main.Viewport)
	}
	for unit := 0; unit < 7; unit++ {
		bound, ok := main.Textures[unit]
		if !ok || !bound.Texture.IsDepth || !bound.DepthWritten {
			t.Errorf("shadow unit %d = %+v, want a written depth texture", unit, bound)
		}
	}
	if _, ok := main.Textures[7]; ok {
		t.Error("unused shadow slot 7 is bound")
	}
	if last := ctx.Events[len(ctx.Events)-1]; last != "draw phong surface" {
		t.Errorf("last event = %q", last)
	}
}

func TestAlternativeShaderSkipsShadowPass(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	_ = r.Submit(phongCube())
	lamp := light.NewLight(light.WithType(light.LightTypePoint), light.WithCastsShadows(true))

	if err := r.Flush(ctx, []light.Light{lamp}, true, shader.Basic()); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Draws) != 1 || ctx.Draws[0].Program.Label() != "basic" || ctx.Draws[0].Target != nil {
		t.Fatalf("draws = %+v", ctx.Draws)
	}
	if len(ctx.Framebuffers) != 0 {
		t.Errorf("shadow targets created: %d", len(ctx.Framebuffers))
	}
}

func TestFailedEntitiesAreSkipped(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(ctx *gputest.Context)
		broken entity.Entity
	}{
		{
			name:   "shader compile failure",
			setup:  func(ctx *gputest.Context) { ctx.FailCompile("funny", "0:1: syntax error") },
			broken: entity.NewEntity(shape.Cube(), material.NewMaterial(shader.Funny())),
		},
		{
			name:   "missing required value",
			broken: entity.NewEntity(shape.Cube(), material.NewMaterial(shader.Basic())),
		},
		{
			name:   "empty shape",
			broken: entity.NewEntity(shape.NewShape(), material.NewMaterial(shader.Basic(), material.WithValue("color", red))),
		},
		{
			name: "missing attribute",
			broken: entity.NewEntity(
				shape.NewShape(shape.WithAttribute("position", 3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})),
				material.NewPhong(shader.Phong(), red, 0, 1, 1, 40)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			r := NewRenderer()
			defer r.Close()
			ctx := gputest.New()
			if tt.setup != nil {
				tt.setup(ctx)
			}
			_ = r.Submit(tt.broken)
			_ = r.Submit(phongCube())

			for frame := 0; frame < 2; frame++ {
				if err := r.Flush(ctx, nil, false, nil); err != nil {
					t.Fatalf("frame %d: %v", frame, err)
				}
			}
			if len(ctx.Draws) != 2 {
				t.Fatalf("draws = %d, want the healthy entity twice", len(ctx.Draws))
			}
			for _, d := range ctx.Draws {
				if d.Program.Label() != "phong" {
					t.Errorf("drew %q", d.Program.Label())
				}
			}
			if n := strings.Count(logs.String(), "entity skipped"); n != 1 {
				t.Errorf("skip logged %d times, want once", n)
			}
		})
	}
}

func TestLayoutErrorAbortsFlush(t *testing.T) {
	reg := ubo.NewRegistry()
	if _, err := reg.Register("PhongMaterial", []ubo.Field{ubo.F("color", ubo.TypeVec4)}); err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(WithLayoutRegistry(reg))
	defer r.Close()
	ctx := gputest.New()
	_ = r.Submit(phongCube())
	_ = r.Submit(entity.NewEntity(shape.Cube(), material.NewMaterial(shader.Basic(), material.WithValue("color", red))))

	err := r.Flush(ctx, nil, true, nil)
	if !errors.Is(err, gpu.ErrLayout) {
		t.Fatalf("Flush = %v, want ErrLayout", err)
	}
	if len(ctx.Draws) != 0 {
		t.Errorf("draws after abort = %d", len(ctx.Draws))
	}
	if len(r.Entities()) != 2 {
		t.Error("aborted flush cleared the draw list")
	}
}

func TestTextureFallback(t *testing.T) {
	tests := []struct {
		name      string
		src       texture.Source
		wantBound bool
	}{
		{"decoded", texture.PixelSource("white", 1, 1, []byte{255, 255, 255, 255}), true},
		{"undecodable", texture.BytesSource("garbage", []byte("not an image")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := texture.NewLoader(texture.WithWorkers(1))
			defer loader.Close()
			r := NewRenderer(WithTextureLoader(loader))
			defer r.Close()
			ctx := gputest.New()
			tex := texture.NewTexture(tt.src)
			m := material.NewPhong(shader.TexturedPhong(), red, 0, 1, 1, 40, material.WithTexture(shader.DiffuseTexture, tex))
			_ = r.Submit(entity.NewEntity(shape.Cube(), m))

			if err := r.Flush(ctx, nil, false, nil); err != nil {
				t.Fatal(err)
			}
			if tex.State() == texture.StateUnloaded {
				t.Fatal("first flush did not start the load")
			}
			loader.Wait()
			if err := r.Flush(ctx, nil, false, nil); err != nil {
				t.Fatal(err)
			}
			if len(ctx.Draws) != 2 {
				t.Fatalf("draws = %d, want 2", len(ctx.Draws))
			}
			bound, ok := ctx.Draws[1].Textures[shader.MaxShadowMaps]
			if ok != tt.wantBound {
				t.Fatalf("diffuse bound = %v, want %v", ok, tt.wantBound)
			}
			if ok && bound.Texture.IsDepth {
				t.Error("diffuse unit holds a depth texture")
			}
		})
	}
}

func TestBeginFrameClearsSurface(t *testing.T) {
	r := NewRenderer(WithClearColor(mgl32.Vec4{0.1, 0.2, 0.3, 1}))
	defer r.Close()
	ctx := gputest.New(gputest.WithSize(320, 200))
	r.BeginFrame(ctx)
	if len(ctx.Clears) != 1 {
		t.Fatalf("clears = %d", len(ctx.Clears))
	}
	c := ctx.Clears[0]
	if c.Target != nil || c.Flags != gpu.ClearColor|gpu.ClearDepth || c.Color != (mgl32.Vec4{0.1, 0.2, 0.3, 1}) {
		t.Errorf("clear = %+v", c)
	}
	if v := ctx.Viewport(); v.Width != 320 || v.Height != 200 {
		t.Errorf("viewport = %+v", v)
	}
}

func TestCameraFollowsSurface(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New(gputest.WithSize(800, 400))
	if err := r.Flush(ctx, nil, true, nil); err != nil {
		t.Fatal(err)
	}
	if a := r.Camera().Aspect(); a != 2 {
		t.Errorf("aspect = %v, want 2", a)
	}
}

func TestReleaseDeletesContextObjects(t *testing.T) {
	r := NewRenderer()
	defer r.Close()
	ctx := gputest.New()
	_ = r.Submit(phongCube())
	lamp := light.NewLight(light.WithType(light.LightTypeSpot), light.WithCastsShadows(true), light.WithShadowResolution(32))
	if err := r.Flush(ctx, []light.Light{lamp}, false, nil); err != nil {
		t.Fatal(err)
	}
	if ctx.LiveBuffers() == 0 || len(ctx.Programs) == 0 {
		t.Fatal("nothing was uploaded")
	}

	r.Release(ctx)
	if n := ctx.LiveBuffers(); n != 0 {
		t.Errorf("live buffers after release = %d", n)
	}
	for _, p := range ctx.Programs {
		if !p.Deleted {
			t.Errorf("program %q not deleted", p.Desc.Label)
		}
	}
	for _, fb := range ctx.Framebuffers {
		if !fb.Deleted {
			t.Errorf("framebuffer %d not deleted", fb.ID)
		}
	}
}
