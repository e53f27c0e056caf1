package ubo

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/gputest"
)

var materialFields = []Field{
	F("color", TypeVec4),
	F("ambient", TypeFloat),
	F("diffuse", TypeVec3),
}

func TestRegistrySharesBlocksByName(t *testing.T) {
	r := NewRegistry()
	a, err := r.Register("Material", materialFields)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	b, err := r.Register("Material", append([]Field(nil), materialFields...))
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if a != b {
		t.Fatal("identical declarations returned different blocks")
	}
	if a.BindingPoint() != b.BindingPoint() || a.Layout().Signature() != b.Layout().Signature() {
		t.Fatal("binding point or layout differs")
	}

	other, err := r.Register("Lights", []Field{F("count", TypeInt)})
	if err != nil {
		t.Fatalf("Register Lights: %v", err)
	}
	if other.BindingPoint() == a.BindingPoint() {
		t.Fatal("distinct blocks share a binding point")
	}
	if got := r.Blocks(); len(got) != 2 || got[0].Name() != "Material" {
		t.Fatalf("Blocks = %v", got)
	}
}

func TestRegistryRejectsConflictingLayouts(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("Material", materialFields); err != nil {
		t.Fatal(err)
	}
	_, err := r.Register("Material", []Field{F("ambient", TypeFloat), F("color", TypeVec4)})
	if !errors.Is(err, gpu.ErrLayout) {
		t.Fatalf("err = %v, want ErrLayout", err)
	}
}

func TestRegistryBindingExhaustion(t *testing.T) {
	r := NewRegistry(WithMaxBindings(2))
	r.Register("A", []Field{F("x", TypeFloat)})
	r.Register("B", []Field{F("x", TypeFloat)})
	if _, err := r.Register("C", []Field{F("x", TypeFloat)}); !errors.Is(err, gpu.ErrContextMismatch) {
		t.Fatalf("err = %v, want ErrContextMismatch", err)
	}
	// existing names still resolve
	if _, err := r.Register("A", []Field{F("x", TypeFloat)}); err != nil {
		t.Fatalf("re-register A: %v", err)
	}
}

func TestRegistryBindUploadsOnlyOnChange(t *testing.T) {
	r := NewRegistry()
	ctx := gputest.New()
	b, _ := r.Register("Material", materialFields)

	if err := b.Set(map[string]any{"ambient": float32(0.25)}); err != nil {
		t.Fatal(err)
	}
	if err := r.Bind(ctx, b); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	buf := ctx.UniformPoint(b.BindingPoint())
	if buf == nil || len(buf.Data) != 48 {
		t.Fatalf("bound buffer = %+v", buf)
	}

	b.Set(map[string]any{"ambient": float32(0.25)})
	r.Bind(ctx, b)
	if buf.Updates != 0 {
		t.Fatalf("unchanged values re-uploaded %d times", buf.Updates)
	}

	b.Set(map[string]any{"ambient": float32(0.75)})
	r.Bind(ctx, b)
	if buf.Updates != 1 {
		t.Fatalf("updates = %d, want 1", buf.Updates)
	}
	if f32At(buf.Data, 16) != 0.75 {
		t.Fatalf("uploaded ambient = %v", f32At(buf.Data, 16))
	}
	if len(ctx.Buffers) != 1 {
		t.Fatalf("allocated %d buffers, want 1", len(ctx.Buffers))
	}
}

func TestRegistryBindRespectsContextLimit(t *testing.T) {
	r := NewRegistry()
	ctx := gputest.New(gputest.WithLimits(gpu.Limits{MaxUniformBindings: 1, MaxTextureUnits: 4, MaxUniformBlockSize: 16384}))
	r.Register("A", []Field{F("x", TypeFloat)})
	b, _ := r.Register("B", []Field{F("x", TypeFloat)})
	if err := r.Bind(ctx, b); !errors.Is(err, gpu.ErrContextMismatch) {
		t.Fatalf("err = %v, want ErrContextMismatch", err)
	}
}

func TestBlockReplaceZeroesUnsetFields(t *testing.T) {
	r := NewRegistry()
	b, _ := r.Register("Material", materialFields)
	ambient, _ := b.Layout().Field("ambient")
	readAmbient := func() float32 {
		data := b.Bytes()
		return math.Float32frombits(binary.LittleEndian.Uint32(data[ambient.Offset:]))
	}

	if err := b.Set(map[string]any{"ambient": float32(5)}); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(map[string]any{"color": [4]float32{1, 0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if got := readAmbient(); got != 5 {
		t.Errorf("Set dropped ambient: %v", got)
	}

	if err := b.Replace(map[string]any{"color": [4]float32{1, 0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if got := readAmbient(); got != 0 {
		t.Errorf("Replace kept ambient = %v, want 0", got)
	}

	v := b.Version()
	if err := b.Replace(map[string]any{"color": [4]float32{1, 0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if b.Version() != v {
		t.Error("identical Replace moved the version")
	}
}
