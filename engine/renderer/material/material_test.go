package material

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/Carmen-Shannon/oxy-tiny/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-tiny/engine/texture"
	"github.com/Carmen-Shannon/oxy-tiny/engine/ubo"
	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
)

func materialLayout(t *testing.T, s shader.Shader) ubo.Layout {
	t.Helper()
	blocks := s.MaterialBlocks()
	if len(blocks) != 1 {
		t.Fatalf("%s has %d material blocks", s.Key(), len(blocks))
	}
	return ubo.MustComputeLayout(blocks[0].Fields)
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := common.Logger()
	common.SetLogger(common.NewLogger(buf, log.DebugLevel))
	t.Cleanup(func() { common.SetLogger(prev) })
	return buf
}

func TestResolveDefaultsFillGaps(t *testing.T) {
	red := mgl32.Vec4{1, 0, 0, 1}
	m := NewMaterial(shader.Phong(), WithValue("color", red), WithValue("smoothness", float32(8)))
	got, err := m.Resolve(materialLayout(t, shader.Phong()))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"color":       red,
		"ambient":     float32(0),
		"diffusivity": float32(1),
		"specularity": float32(1),
		"smoothness":  float32(8),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("resolved %d values, want %d", len(got), len(want))
	}
}

func TestResolveMissingRequired(t *testing.T) {
	m := NewMaterial(shader.Basic())
	_, err := m.Resolve(materialLayout(t, shader.Basic()))
	if !errors.Is(err, ErrMissingValue) {
		t.Fatalf("Resolve error = %v, want ErrMissingValue", err)
	}
	if !strings.Contains(err.Error(), "color") {
		t.Errorf("error does not name the key: %v", err)
	}
}

func TestResolveUnknownKeysLoggedOnce(t *testing.T) {
	logs := captureLogs(t)
	m := NewMaterial(shader.Basic(), WithValue("color", mgl32.Vec4{1, 1, 1, 1}), WithValue("glow", float32(2)))
	layout := materialLayout(t, shader.Basic())

	for range 3 {
		got, err := m.Resolve(layout)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := got["glow"]; ok {
			t.Fatal("unknown key leaked into the block values")
		}
	}
	o := m.Override(map[string]any{"color": mgl32.Vec4{0, 0, 0, 1}})
	if _, err := o.Resolve(layout); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(logs.String(), "glow"); n != 1 {
		t.Errorf("unknown key logged %d times, want 1:\n%s", n, logs.String())
	}
}

func TestOverrideLeavesOriginal(t *testing.T) {
	weights := []float32{1, 2, 3}
	base := NewPhong(shader.Phong(), mgl32.Vec4{1, 1, 1, 1}, 0.1, 0.9, 0.5, 40, WithValue("weights", weights))
	weights[0] = 99
	if v, _ := base.Value("weights"); v.([]float32)[0] != 1 {
		t.Error("material aliases the caller's slice")
	}

	tex := texture.NewTexture(texture.PixelSource("px", 1, 1, []byte{255, 255, 255, 255}))
	over := base.Override(map[string]any{"ambient": float32(0.5), shader.DiffuseTexture: tex})

	if v, _ := base.Value("ambient"); v != float32(0.1) {
		t.Errorf("original ambient = %v", v)
	}
	if v, _ := over.Value("ambient"); v != float32(0.5) {
		t.Errorf("override ambient = %v", v)
	}
	if v, _ := over.Value("smoothness"); v != float32(40) {
		t.Errorf("override lost smoothness: %v", v)
	}
	if _, ok := base.Texture(shader.DiffuseTexture); ok {
		t.Error("override added a texture to the original")
	}
	if got, ok := over.Texture(shader.DiffuseTexture); !ok || got != tex {
		t.Error("texture value not routed to the texture map")
	}
	if _, ok := over.Value(shader.DiffuseTexture); ok {
		t.Error("texture stored as a uniform value")
	}

	ov, _ := over.Value("weights")
	ov.([]float32)[1] = 42
	if v, _ := base.Value("weights"); v.([]float32)[1] != 2 {
		t.Error("override shares slice storage with the original")
	}
}

func TestNewMaterialPanicsWithoutShader(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewMaterial(nil)
}
