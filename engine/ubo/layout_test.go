package ubo

import (
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

func TestComputeLayoutExample(t *testing.T) {
	l, err := ComputeLayout([]Field{
		F("color", TypeVec4),
		F("ambient", TypeFloat),
		F("diffuse", TypeVec3),
	})
	if err != nil {
		t.Fatalf("ComputeLayout: %v", err)
	}
	want := map[string]int{"color": 0, "ambient": 16, "diffuse": 32}
	for name, off := range want {
		f, ok := l.Field(name)
		if !ok {
			t.Fatalf("field %q missing", name)
		}
		if f.Offset != off {
			t.Errorf("%s offset = %d, want %d", name, f.Offset, off)
		}
	}
	if l.Size != 48 {
		t.Errorf("Size = %d, want 48", l.Size)
	}
}

func TestComputeLayoutTable(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		offsets []int
		size    int
	}{
		{
			name:    "scalars pack tightly",
			fields:  []Field{F("a", TypeFloat), F("b", TypeInt), F("c", TypeBool)},
			offsets: []int{0, 4, 8},
			size:    12,
		},
		{
			name:    "vec2 aligns to 8",
			fields:  []Field{F("a", TypeFloat), F("b", TypeVec2)},
			offsets: []int{0, 8},
			size:    16,
		},
		{
			name:    "scalar fills the tail of a vec3",
			fields:  []Field{F("a", TypeVec3), F("b", TypeFloat)},
			offsets: []int{0, 12},
			size:    16,
		},
		{
			name:    "float array uses 16 byte stride",
			fields:  []Field{A("a", TypeFloat, 3), F("b", TypeFloat)},
			offsets: []int{0, 48},
			size:    64,
		},
		{
			name:    "matrices",
			fields:  []Field{F("a", TypeFloat), F("m", TypeMat4), F("n", TypeMat3)},
			offsets: []int{0, 16, 80},
			size:    128,
		},
		{
			name:    "mat4 array",
			fields:  []Field{A("m", TypeMat4, 2), F("count", TypeInt)},
			offsets: []int{0, 128},
			size:    144,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ComputeLayout(tt.fields)
			if err != nil {
				t.Fatalf("ComputeLayout: %v", err)
			}
			for i, f := range l.Fields {
				if f.Offset != tt.offsets[i] {
					t.Errorf("%s offset = %d, want %d", f.Name, f.Offset, tt.offsets[i])
				}
			}
			if l.Size != tt.size {
				t.Errorf("Size = %d, want %d", l.Size, tt.size)
			}
		})
	}
}

func TestComputeLayoutProperties(t *testing.T) {
	types := []Type{TypeFloat, TypeInt, TypeUint, TypeBool, TypeVec2, TypeVec3, TypeVec4, TypeIVec4, TypeMat3, TypeMat4}
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(12)
		fields := make([]Field, n)
		for i := range fields {
			fields[i] = Field{Name: string(rune('a'+i)) + "f", Type: types[rng.Intn(len(types))]}
			if rng.Intn(4) == 0 {
				fields[i].Length = 1 + rng.Intn(4)
			}
		}
		l, err := ComputeLayout(fields)
		if err != nil {
			t.Fatalf("ComputeLayout(%v): %v", fields, err)
		}
		prev := -1
		for _, f := range l.Fields {
			if f.Offset <= prev {
				t.Fatalf("offsets not strictly increasing in %v", fields)
			}
			if f.Offset%f.Align != 0 {
				t.Fatalf("%s offset %d not a multiple of %d", f.Name, f.Offset, f.Align)
			}
			prev = f.Offset
		}
		if l.Size%l.MaxAlign != 0 {
			t.Fatalf("size %d not a multiple of max align %d", l.Size, l.MaxAlign)
		}
		last := l.Fields[len(l.Fields)-1]
		if l.Size < last.Offset+last.Size {
			t.Fatalf("size %d smaller than end of last field %d", l.Size, last.Offset+last.Size)
		}
	}
}

func TestComputeLayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{"empty", nil},
		{"unknown type", []Field{{Name: "x", Type: Type(99)}}},
		{"invalid type", []Field{{Name: "x"}}},
		{"duplicate", []Field{F("x", TypeFloat), F("x", TypeInt)}},
		{"negative length", []Field{A("x", TypeFloat, -1)}},
		{"too large", []Field{A("x", TypeMat4, MaxBlockSize/64+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ComputeLayout(tt.fields); !errors.Is(err, gpu.ErrLayout) {
				t.Fatalf("err = %v, want ErrLayout", err)
			}
		})
	}
}

func TestMustComputeLayoutPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustComputeLayout([]Field{{Name: "x", Type: Type(42)}})
}

func TestParseType(t *testing.T) {
	for _, name := range []string{"float", "Mat4", "mat3", "vec3", "bool"} {
		if _, err := ParseType(name); err != nil {
			t.Errorf("ParseType(%q): %v", name, err)
		}
	}
	if _, err := ParseType("dvec3"); !errors.Is(err, gpu.ErrLayout) {
		t.Errorf("ParseType(dvec3) err = %v, want ErrLayout", err)
	}
}

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestEncode(t *testing.T) {
	l := MustComputeLayout([]Field{
		F("color", TypeVec4),
		F("ambient", TypeFloat),
		F("normal", TypeMat3),
		A("weights", TypeFloat, 2),
		F("on", TypeBool),
	})
	data, err := l.Encode(map[string]any{
		"color":   mgl32.Vec4{1, 2, 3, 4},
		"ambient": 0.5,
		"normal":  mgl32.Ident3(),
		"weights": []float32{7, 8},
		"on":      true,
		"extra":   1,
	}, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != l.Size {
		t.Fatalf("len = %d, want %d", len(data), l.Size)
	}
	if f32At(data, 12) != 4 || f32At(data, 16) != 0.5 {
		t.Errorf("color.w=%v ambient=%v", f32At(data, 12), f32At(data, 16))
	}
	normal, _ := l.Field("normal")
	// identity columns land at 16-byte slots
	if f32At(data, normal.Offset) != 1 || f32At(data, normal.Offset+16+4) != 1 || f32At(data, normal.Offset+32+8) != 1 {
		t.Errorf("mat3 columns not padded to 16 bytes")
	}
	w, _ := l.Field("weights")
	if f32At(data, w.Offset) != 7 || f32At(data, w.Offset+16) != 8 {
		t.Errorf("weights = %v, %v", f32At(data, w.Offset), f32At(data, w.Offset+16))
	}
	on, _ := l.Field("on")
	if binary.LittleEndian.Uint32(data[on.Offset:]) != 1 {
		t.Errorf("bool not encoded as 1")
	}
	if unknown := l.Unknown(map[string]any{"extra": 1, "color": 1}); len(unknown) != 1 || unknown[0] != "extra" {
		t.Errorf("Unknown = %v, want [extra]", unknown)
	}
}

func TestEncodeRejectsWrongTypes(t *testing.T) {
	l := MustComputeLayout([]Field{F("color", TypeVec4), A("arr", TypeVec4, 1)})
	if _, err := l.Encode(map[string]any{"color": mgl32.Vec3{}}, nil); err == nil {
		t.Error("vec3 accepted for vec4")
	}
	if _, err := l.Encode(map[string]any{"arr": []mgl32.Vec4{{}, {}}}, nil); err == nil {
		t.Error("array overflow accepted")
	}
}
