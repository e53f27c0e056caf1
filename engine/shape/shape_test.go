package shape

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
)

func TestGenerateKinds(t *testing.T) {
	for k := KindTriangle; k <= KindRoundedClosedCone; k++ {
		t.Run(k.String(), func(t *testing.T) {
			s, err := Generate(k, Params{Rows: 4, Cols: 6, Subdivisions: 2})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if err := s.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			for _, name := range []string{AttrPosition, AttrNormal, AttrTexCoord} {
				if _, ok := s.Attribute(name); !ok {
					t.Errorf("missing attribute %q", name)
				}
			}
			if n := len(s.Indices()); n == 0 || n%3 != 0 {
				t.Errorf("index count %d is not a positive multiple of 3", n)
			}
		})
	}
}

func TestRoundedKindsCloseOnTheAxis(t *testing.T) {
	tests := []struct {
		kind       Kind
		minZ, maxZ float32
	}{
		{KindRoundedCappedCylinder, -0.5, 0.5},
		{KindRoundedClosedCone, -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			s, err := Generate(tt.kind, Params{Rows: 6, Cols: 8})
			if err != nil {
				t.Fatal(err)
			}
			pos, _ := s.Attribute(AttrPosition)
			lo, hi := float32(1e9), float32(-1e9)
			onAxis := map[bool]bool{}
			for i := 0; i+2 < len(pos.Data); i += 3 {
				x, y, z := pos.Data[i], pos.Data[i+1], pos.Data[i+2]
				lo, hi = min(lo, z), max(hi, z)
				if mgl32.Abs(x) < 1e-5 && mgl32.Abs(y) < 1e-5 {
					onAxis[z > 0] = true
				}
				if r := x*x + y*y; r > 1+1e-4 {
					t.Fatalf("vertex (%v, %v, %v) outside the unit radius", x, y, z)
				}
			}
			if !mgl32.FloatEqual(lo, tt.minZ) || !mgl32.FloatEqual(hi, tt.maxZ) {
				t.Errorf("z range = [%v, %v], want [%v, %v]", lo, hi, tt.minZ, tt.maxZ)
			}
			if !onAxis[true] || !onAxis[false] {
				t.Errorf("both ends should close on the axis, got %v", onAxis)
			}
		})
	}
}

func TestGenerateRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		params Params
	}{
		{"negative rows", KindGridSphere, Params{Rows: -1}},
		{"too many subdivisions", KindSubdivisionSphere, Params{Subdivisions: 9}},
		{"degenerate polygon", KindRegularPolygon, Params{Sides: 2}},
		{"unknown kind", Kind(99), Params{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(tt.kind, tt.params); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("torus")
	if err != nil || k != KindTorus {
		t.Fatalf("ParseKind(torus) = %v, %v", k, err)
	}
	if _, err := ParseKind("teapot"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSubdivisionSphereIsUnit(t *testing.T) {
	s := SubdivisionSphere(3)
	pos, _ := s.Attribute(AttrPosition)
	for i := 0; i < pos.Count(); i++ {
		if l := vec3At(pos, i).Len(); l < 0.999 || l > 1.001 {
			t.Fatalf("vertex %d at distance %v", i, l)
		}
	}
	// 4 faces * 4^3
	if got := len(s.Indices()) / 3; got != 256 {
		t.Fatalf("triangles = %d, want 256", got)
	}
}

func TestGridPatchCounts(t *testing.T) {
	s, err := GridPatch(3, 4, func(u, v float32) mgl32.Vec3 { return mgl32.Vec3{u, v, 0} })
	if err != nil {
		t.Fatal(err)
	}
	if s.VertexCount() != 20 {
		t.Errorf("vertices = %d, want 20", s.VertexCount())
	}
	if len(s.Indices()) != 3*4*6 {
		t.Errorf("indices = %d, want 72", len(s.Indices()))
	}
	n, _ := s.Attribute(AttrNormal)
	for i := 0; i < n.Count(); i++ {
		if v := vec3At(n, i); v.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-5 && v.Sub(mgl32.Vec3{0, 0, -1}).Len() > 1e-5 {
			t.Fatalf("normal %d = %v, want along z", i, v)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		shape   Shape
		wantErr bool
	}{
		{"triangle", Triangle(), false},
		{"count mismatch", NewShape(
			WithAttribute(AttrPosition, 3, []float32{0, 0, 0, 1, 0, 0}),
			WithAttribute(AttrNormal, 3, []float32{0, 0, 1}),
		), true},
		{"ragged data", NewShape(WithAttribute(AttrPosition, 3, []float32{0, 0})), true},
		{"index out of range", NewShape(
			WithAttribute(AttrPosition, 3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}),
			WithIndices([]uint32{0, 1, 3}),
		), true},
		{"empty", NewShape(), true},
		{"instanced attribute ignored in count", NewShape(
			WithAttribute(AttrPosition, 3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}),
			WithAttribute("offset", 3, []float32{0, 0, 0}),
			WithDivisor("offset", 1),
		), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMutationMarksDirty(t *testing.T) {
	s := Square()
	v := s.Version()
	s.SetAttribute(AttrTexCoord, 2, make([]float32, 8))
	if s.Version() == v {
		t.Fatal("SetAttribute did not advance the version")
	}
	v = s.Version()
	s.SetIndices([]uint32{0, 1, 2})
	if s.Version() == v {
		t.Fatal("SetIndices did not advance the version")
	}
}

func TestDuplicateSharedVerticesAndFlatShade(t *testing.T) {
	s := Square()
	s.DuplicateSharedVertices()
	if s.Indices() != nil {
		t.Fatal("indices kept after duplication")
	}
	if s.VertexCount() != 6 {
		t.Fatalf("vertices = %d, want 6", s.VertexCount())
	}

	tet := Tetrahedron()
	tet.SetIndices([]uint32{0, 1, 2})
	tet.FlatShade()
	n, _ := tet.Attribute(AttrNormal)
	if n.Count() != 3 {
		t.Fatalf("normals = %d, want 3", n.Count())
	}
	for i := 0; i < 3; i++ {
		if got := vec3At(n, i); got.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-5 {
			t.Fatalf("normal %d = %v, want +z", i, got)
		}
	}
}

func TestNormalizePositions(t *testing.T) {
	s := NewShape(WithAttribute(AttrPosition, 3, []float32{
		10, 10, 10,
		14, 10, 10,
		10, 18, 10,
		14, 18, 10,
	}))
	s.NormalizePositions(false)
	pos, _ := s.Attribute(AttrPosition)
	var sum mgl32.Vec3
	for i := 0; i < pos.Count(); i++ {
		p := vec3At(pos, i)
		sum = sum.Add(p)
		if abs(p[0]) != 1 || abs(p[1]) != 1 {
			t.Fatalf("position %d = %v, want unit extent on x and y", i, p)
		}
	}
	if sum.Len() > 1e-5 {
		t.Fatalf("positions not centered, sum %v", sum)
	}
}

func TestInsertTransformedCopyInto(t *testing.T) {
	dst := Triangle()
	src := Triangle()
	if err := src.InsertTransformedCopyInto(dst, mgl32.Translate3D(5, 0, 0).Mul4(mgl32.HomogRotate3DY(3.14159265))); err != nil {
		t.Fatal(err)
	}
	if dst.VertexCount() != 6 {
		t.Fatalf("vertices = %d, want 6", dst.VertexCount())
	}
	want := []uint32{0, 1, 2, 3, 4, 5}
	got := dst.Indices()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indices = %v, want %v", got, want)
		}
	}
	pos, _ := dst.Attribute(AttrPosition)
	if p := vec3At(pos, 4); p.Sub(mgl32.Vec3{4, 0, 0}).Len() > 1e-4 {
		t.Errorf("moved vertex = %v, want (4,0,0)", p)
	}
	n, _ := dst.Attribute(AttrNormal)
	if p := vec3At(n, 3); p.Sub(mgl32.Vec3{0, 0, -1}).Len() > 1e-4 {
		t.Errorf("rotated normal = %v, want (0,0,-1)", p)
	}
	if err := NewShape(WithAttribute(AttrPosition, 3, []float32{0, 0, 0})).InsertTransformedCopyInto(dst, mgl32.Ident4()); err == nil {
		t.Error("mismatched attribute sets accepted")
	}
}

func TestUploaderReusesBuffers(t *testing.T) {
	ctx := gputest.New()
	u := NewUploader()
	s := Square()

	inst, err := u.Resolve(ctx, s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ctx.Buffers) != 4 {
		t.Fatalf("buffers = %d, want 3 attributes + indices", len(ctx.Buffers))
	}
	if inst.Count() != 6 {
		t.Fatalf("Count = %d, want 6", inst.Count())
	}

	again, _ := u.Resolve(ctx, s)
	if again != inst || u.Uploads(s, ctx.ID()) != 1 {
		t.Fatal("clean shape was uploaded again")
	}

	s.SetAttribute(AttrTexCoord, 2, []float32{1, 1, 1, 1, 1, 1, 1, 1})
	if _, err := u.Resolve(ctx, s); err != nil {
		t.Fatal(err)
	}
	if len(ctx.Buffers) != 4 {
		t.Fatalf("same-size update allocated, buffers = %d", len(ctx.Buffers))
	}
	tex, _ := inst.Buffer(AttrTexCoord)
	if tex.(*gputest.Buffer).Updates != 1 {
		t.Fatalf("texture_coord updates = %d, want 1", tex.(*gputest.Buffer).Updates)
	}

	s.SetAttribute(AttrTexCoord, 2, make([]float32, 16))
	s.SetAttribute(AttrPosition, 3, make([]float32, 24))
	s.SetAttribute(AttrNormal, 3, make([]float32, 24))
	if _, err := u.Resolve(ctx, s); err != nil {
		t.Fatal(err)
	}
	if ctx.LiveBuffers() != 4 || len(ctx.Buffers) != 7 {
		t.Fatalf("growth: live %d total %d, want 4 live 7 total", ctx.LiveBuffers(), len(ctx.Buffers))
	}

	u.Release(ctx.ID())
	if ctx.LiveBuffers() != 0 {
		t.Fatalf("live buffers after release = %d", ctx.LiveBuffers())
	}
}

func TestUploaderPerContext(t *testing.T) {
	a, b := gputest.New(), gputest.New()
	u := NewUploader()
	s := Triangle()
	u.Resolve(a, s)
	u.Resolve(b, s)
	if len(a.Buffers) == 0 || len(b.Buffers) == 0 {
		t.Fatal("each context needs its own buffers")
	}
	u.Forget(s)
	if a.LiveBuffers() != 0 || b.LiveBuffers() != 0 {
		t.Fatal("Forget left buffers alive")
	}
}

func TestUploaderInvalidShapeFails(t *testing.T) {
	ctx := gputest.New()
	u := NewUploader()
	s := NewShape(WithAttribute(AttrPosition, 3, []float32{0, 0}))
	if _, err := u.Resolve(ctx, s); err == nil {
		t.Fatal("invalid shape uploaded")
	}
	if len(ctx.Buffers) != 0 {
		t.Fatal("buffers allocated for an invalid shape")
	}
}

func TestInstanceBindings(t *testing.T) {
	ctx := gputest.New()
	s, err := InstancedQuad(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	inst, err := NewUploader().Resolve(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Instances() != 3 {
		t.Fatalf("Instances = %d, want 3", inst.Instances())
	}
	bindings, missing := inst.Bindings([]gpu.AttributeBinding{
		{Name: AttrPosition, Location: 0, Components: 3},
		{Name: "offset", Location: 1, Components: 3, Instanced: true},
		{Name: AttrModelTransform, Location: 3, Components: 16, Instanced: true},
	})
	if len(bindings) != 2 || bindings[1].Divisor != 1 {
		t.Fatalf("bindings = %+v", bindings)
	}
	if len(missing) != 1 || missing[0] != AttrModelTransform {
		t.Fatalf("missing = %v", missing)
	}
}
