package shape

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind selects a primitive built by Generate.
type Kind int

const (
	KindTriangle Kind = iota
	KindSquare
	KindTetrahedron
	KindWindmill
	KindCube
	KindSubdivisionSphere
	KindGridSphere
	KindTorus
	KindCylindricalTube
	KindConeTip
	KindClosedCone
	KindCappedCylinder
	KindAxisArrows
	KindRegularPolygon
	KindRoundedCappedCylinder
	KindRoundedClosedCone
)

var kindNames = map[Kind]string{
	KindTriangle:          "triangle",
	KindSquare:            "square",
	KindTetrahedron:       "tetrahedron",
	KindWindmill:          "windmill",
	KindCube:              "cube",
	KindSubdivisionSphere: "subdivision_sphere",
	KindGridSphere:        "grid_sphere",
	KindTorus:             "torus",
	KindCylindricalTube:   "cylindrical_tube",
	KindConeTip:           "cone_tip",
	KindClosedCone:        "closed_cone",
	KindCappedCylinder:    "capped_cylinder",
	KindAxisArrows:        "axis_arrows",
	KindRegularPolygon:    "regular_polygon",

	KindRoundedCappedCylinder: "rounded_capped_cylinder",
	KindRoundedClosedCone:     "rounded_closed_cone",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind looks a Kind up by its String name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown shape kind %q", name)
}

// Params holds the tessellation parameters of Generate. Zero fields take the defaults of the
// kind: 12 rows, 12 columns, 4 subdivisions, 5 sides/blades.
type Params struct {
	Rows         int
	Cols         int
	Subdivisions int
	Sides        int
	// Flat requests per-face normals.
	Flat bool
}

func (p Params) withDefaults() Params {
	if p.Rows == 0 {
		p.Rows = 12
	}
	if p.Cols == 0 {
		p.Cols = 12
	}
	if p.Subdivisions == 0 {
		p.Subdivisions = 4
	}
	if p.Sides == 0 {
		p.Sides = 5
	}
	return p
}

// Generate builds a primitive shape with position, normal and texture_coord attributes.
//
// Parameters:
//   - kind: the primitive to build
//   - params: tessellation parameters; zero values take defaults
//
// Returns:
//   - Shape: the generated shape
//   - error: an error for an unknown kind or out-of-range parameters
func Generate(kind Kind, params Params) (Shape, error) {
	p := params.withDefaults()
	if p.Rows < 1 || p.Cols < 1 || p.Subdivisions < 0 || p.Subdivisions > 8 {
		return nil, fmt.Errorf("invalid %v params %+v", kind, params)
	}

	var s Shape
	var err error
	switch kind {
	case KindTriangle:
		s = Triangle()
	case KindSquare:
		s = Square()
	case KindTetrahedron:
		s = Tetrahedron()
	case KindWindmill:
		s, err = Windmill(p.Sides)
	case KindCube:
		s = Cube()
	case KindSubdivisionSphere:
		s = SubdivisionSphere(p.Subdivisions)
	case KindGridSphere:
		s, err = SurfaceOfRevolution(p.Rows, p.Cols, arcProfile(p.Rows))
	case KindTorus:
		s, err = SurfaceOfRevolution(p.Rows, p.Cols, torusProfile(p.Rows))
	case KindCylindricalTube:
		s, err = SurfaceOfRevolution(p.Rows, p.Cols, []mgl32.Vec3{{1, 0, 0.5}, {1, 0, -0.5}})
	case KindConeTip:
		s, err = SurfaceOfRevolution(p.Rows, p.Cols, []mgl32.Vec3{{0, 0, 1}, {1, 0, -1}})
	case KindClosedCone:
		s, err = closedCone(p.Rows, p.Cols)
	case KindCappedCylinder:
		s, err = cappedCylinder(p.Rows, p.Cols)
	case KindAxisArrows:
		s, err = AxisArrows()
	case KindRegularPolygon:
		s, err = Polygon(p.Sides)
	case KindRoundedCappedCylinder:
		s, err = SurfaceOfRevolution(p.Rows, p.Cols, roundedCappedCylinderProfile)
	case KindRoundedClosedCone:
		s, err = SurfaceOfRevolution(p.Rows, p.Cols, roundedClosedConeProfile)
	default:
		return nil, fmt.Errorf("unknown shape kind %v", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", kind, err)
	}
	if p.Flat {
		s.FlatShade()
	}
	return s, nil
}

func newPNT(label string, positions, normals, coords []float32, indices []uint32) Shape {
	return NewShape(
		WithLabel(label),
		WithAttribute(AttrPosition, 3, positions),
		WithAttribute(AttrNormal, 3, normals),
		WithAttribute(AttrTexCoord, 2, coords),
		WithIndices(indices),
	)
}

// emptyPNT is an insertion target with the standard attribute set.
func emptyPNT(label string) Shape {
	return newPNT(label, nil, nil, nil, nil)
}

// Triangle is a single right triangle in the XY plane.
func Triangle() Shape {
	return newPNT("triangle",
		[]float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		[]float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		[]float32{0, 0, 1, 0, 0, 1},
		[]uint32{0, 1, 2},
	)
}

// Square is a two-triangle square spanning -1..1 in the XY plane.
func Square() Shape {
	return newPNT("square",
		[]float32{-1, -1, 0, 1, -1, 0, -1, 1, 0, 1, 1, 0},
		[]float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		[]float32{0, 0, 1, 0, 0, 1, 1, 1},
		[]uint32{0, 1, 2, 1, 3, 2},
	)
}

// Tetrahedron is a flat-shaded tetrahedron with one corner at the origin.
func Tetrahedron() Shape {
	a := float32(1 / math32.Sqrt(3))
	corners := [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	faces := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	normals := [4]mgl32.Vec3{{0, 0, -1}, {0, -1, 0}, {-1, 0, 0}, {a, a, a}}
	coords := [3][2]float32{{0, 0}, {1, 0}, {0, 1}}

	var pos, nrm, tex []float32
	var idx []uint32
	for f, face := range faces {
		for k, c := range face {
			pos = append(pos, corners[c][:]...)
			nrm = append(nrm, normals[f][:]...)
			tex = append(tex, coords[k][:]...)
		}
		// wind every face outward
		base := uint32(f * 3)
		if corners[face[1]].Sub(corners[face[0]]).Cross(corners[face[2]].Sub(corners[face[0]])).Dot(normals[f]) < 0 {
			idx = append(idx, base, base+2, base+1)
		} else {
			idx = append(idx, base, base+1, base+2)
		}
	}
	return newPNT("tetrahedron", pos, nrm, tex, idx)
}

// Windmill is a fan of triangular blades around the Z axis.
func Windmill(blades int) (Shape, error) {
	if blades < 1 {
		return nil, fmt.Errorf("windmill needs at least one blade, got %d", blades)
	}
	out := emptyPNT("windmill")
	blade := Triangle()
	for i := 0; i < blades; i++ {
		angle := 2 * math32.Pi * float32(i) / float32(blades)
		if err := blade.InsertTransformedCopyInto(out, mgl32.HomogRotate3DZ(angle)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Cube is a unit cube spanning -1..1 built from six squares, with per-face normals.
func Cube() Shape {
	out := emptyPNT("cube")
	face := Square()
	for i := 0; i < 3; i++ {
		for _, sign := range []float32{1, -1} {
			var m mgl32.Mat4
			switch i {
			case 0:
				m = mgl32.HomogRotate3DX(sign * math32.Pi / 2)
			case 1:
				m = mgl32.HomogRotate3DY(sign * math32.Pi / 2)
			default:
				m = mgl32.HomogRotate3DY(float32(1-sign) * math32.Pi / 2)
			}
			m = m.Mul4(mgl32.Translate3D(0, 0, 1))
			// the attribute sets always match
			_ = face.InsertTransformedCopyInto(out, m)
		}
	}
	return out
}

// SubdivisionSphere is a sphere made by repeatedly splitting the faces of a tetrahedron and
// projecting the new points onto the unit sphere.
func SubdivisionSphere(subdivisions int) Shape {
	pos := []mgl32.Vec3{
		{0, 0, -1},
		{0, 0.9428, 0.3333},
		{-0.8165, -0.4714, 0.3333},
		{0.8165, -0.4714, 0.3333},
	}
	for i := range pos {
		pos[i] = pos[i].Normalize()
	}
	var idx []uint32
	midpoints := make(map[[2]uint32]uint32)
	midpoint := func(a, b uint32) uint32 {
		key := [2]uint32{min(a, b), max(a, b)}
		if m, ok := midpoints[key]; ok {
			return m
		}
		pos = append(pos, pos[a].Add(pos[b]).Normalize())
		m := uint32(len(pos) - 1)
		midpoints[key] = m
		return m
	}
	var subdivide func(a, b, c uint32, depth int)
	subdivide = func(a, b, c uint32, depth int) {
		if depth <= 0 {
			idx = append(idx, a, b, c)
			return
		}
		ab, bc, ca := midpoint(a, b), midpoint(b, c), midpoint(c, a)
		subdivide(a, ab, ca, depth-1)
		subdivide(ab, b, bc, depth-1)
		subdivide(ca, bc, c, depth-1)
		subdivide(ab, bc, ca, depth-1)
	}
	subdivide(0, 1, 2, subdivisions)
	subdivide(3, 2, 1, subdivisions)
	subdivide(1, 0, 3, subdivisions)
	subdivide(0, 2, 3, subdivisions)

	positions := make([]float32, 0, len(pos)*3)
	coords := make([]float32, 0, len(pos)*2)
	for _, p := range pos {
		positions = append(positions, p[:]...)
		u := 0.5 + math32.Atan2(p[0], p[2])/(2*math32.Pi)
		v := 0.5 - math32.Asin(clampUnit(p[1]))/math32.Pi
		coords = append(coords, u, v)
	}
	return newPNT("subdivision_sphere", positions, append([]float32(nil), positions...), coords, idx)
}

func clampUnit(x float32) float32 {
	return max(-1, min(1, x))
}

// Polygon is a regular polygon of unit radius in the XY plane, fanned around its center.
func Polygon(sides int) (Shape, error) {
	if sides < 3 {
		return nil, fmt.Errorf("polygon needs at least 3 sides, got %d", sides)
	}
	positions := []float32{0, 0, 0}
	normals := []float32{0, 0, 1}
	coords := []float32{0.5, 0.5}
	var idx []uint32
	for i := 0; i < sides; i++ {
		angle := 2 * math32.Pi * float32(i) / float32(sides)
		x, y := math32.Cos(angle), math32.Sin(angle)
		positions = append(positions, x, y, 0)
		normals = append(normals, 0, 0, 1)
		coords = append(coords, (x+1)/2, (y+1)/2)
		next := uint32(1 + (i+1)%sides)
		idx = append(idx, 0, uint32(1+i), next)
	}
	return newPNT("polygon", positions, normals, coords, idx), nil
}

// GridPatch tessellates a parametric surface into rows x cols quads. pointAt is called with u
// and v in [0, 1]; normals are averaged from the adjacent faces.
//
// Parameters:
//   - rows: subdivisions along u
//   - cols: subdivisions along v
//   - pointAt: maps a parameter pair to a position
//
// Returns:
//   - Shape: the patch
//   - error: an error for non-positive dimensions
func GridPatch(rows, cols int, pointAt func(u, v float32) mgl32.Vec3) (Shape, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("grid patch needs positive dimensions, got %dx%d", rows, cols)
	}
	stride := cols + 1
	points := make([]mgl32.Vec3, 0, (rows+1)*stride)
	coords := make([]float32, 0, (rows+1)*stride*2)
	for r := 0; r <= rows; r++ {
		u := float32(r) / float32(rows)
		for c := 0; c <= cols; c++ {
			v := float32(c) / float32(cols)
			points = append(points, pointAt(u, v))
			coords = append(coords, u, v)
		}
	}

	var idx []uint32
	acc := make([]mgl32.Vec3, len(points))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			a := uint32(r*stride + c)
			b, d, e := a+1, a+uint32(stride), a+uint32(stride)+1
			for _, tri := range [2][3]uint32{{a, d, b}, {b, d, e}} {
				idx = append(idx, tri[0], tri[1], tri[2])
				n := points[tri[1]].Sub(points[tri[0]]).Cross(points[tri[2]].Sub(points[tri[0]]))
				for _, k := range tri {
					acc[k] = acc[k].Add(n)
				}
			}
		}
	}

	positions := make([]float32, 0, len(points)*3)
	normals := make([]float32, 0, len(points)*3)
	for i, p := range points {
		positions = append(positions, p[:]...)
		n := acc[i]
		switch {
		case n.Len() > 1e-8:
			n = n.Normalize()
		case p.Len() > 0:
			n = p.Normalize()
		default:
			n = mgl32.Vec3{0, 0, 1}
		}
		normals = append(normals, n[:]...)
	}
	return newPNT("grid_patch", positions, normals, coords, idx), nil
}

// SurfaceOfRevolution sweeps a profile curve in the XZ plane around the Z axis.
//
// Parameters:
//   - rows: samples along the profile
//   - cols: samples around the axis
//   - profile: at least two points, linearly interpolated
//
// Returns:
//   - Shape: the swept surface
//   - error: an error for a short profile or non-positive dimensions
func SurfaceOfRevolution(rows, cols int, profile []mgl32.Vec3) (Shape, error) {
	if len(profile) < 2 {
		return nil, fmt.Errorf("profile needs at least 2 points, got %d", len(profile))
	}
	return GridPatch(rows, cols, func(u, v float32) mgl32.Vec3 {
		p := sampleProfile(profile, u)
		return mgl32.HomogRotate3DZ(2 * math32.Pi * v).Mul4x1(p.Vec4(1)).Vec3()
	})
}

func sampleProfile(profile []mgl32.Vec3, u float32) mgl32.Vec3 {
	t := u * float32(len(profile)-1)
	i := int(math32.Floor(t))
	if i >= len(profile)-1 {
		return profile[len(profile)-1]
	}
	f := t - float32(i)
	return profile[i].Mul(1 - f).Add(profile[i+1].Mul(f))
}

func arcProfile(rows int) []mgl32.Vec3 {
	pts := make([]mgl32.Vec3, rows+1)
	for i := range pts {
		theta := math32.Pi * float32(i) / float32(rows)
		pts[i] = mgl32.Vec3{math32.Sin(theta), 0, math32.Cos(theta)}
	}
	return pts
}

func torusProfile(rows int) []mgl32.Vec3 {
	pts := make([]mgl32.Vec3, rows+1)
	for i := range pts {
		theta := 2 * math32.Pi * float32(i) / float32(rows)
		pts[i] = mgl32.Vec3{2.0/3 + math32.Cos(theta)/3, 0, math32.Sin(theta) / 3}
	}
	return pts
}

// The rounded variants close their ends by sweeping the profile back to the axis instead of
// inserting flat lids, so the seam normals are averaged.
var (
	roundedCappedCylinderProfile = []mgl32.Vec3{{0, 0, 0.5}, {1, 0, 0.5}, {1, 0, -0.5}, {0, 0, -0.5}}
	roundedClosedConeProfile     = []mgl32.Vec3{{0, 0, 1}, {1, 0, -1}, {0, 0, -1}}
)

func closedCone(rows, cols int) (Shape, error) {
	out, err := SurfaceOfRevolution(rows, cols, []mgl32.Vec3{{0, 0, 1}, {1, 0, -1}})
	if err != nil {
		return nil, err
	}
	base, err := Polygon(max(cols, 3))
	if err != nil {
		return nil, err
	}
	if err := base.InsertTransformedCopyInto(out, mgl32.Translate3D(0, 0, -1).Mul4(mgl32.HomogRotate3DX(math32.Pi))); err != nil {
		return nil, err
	}
	return out, nil
}

func cappedCylinder(rows, cols int) (Shape, error) {
	out, err := SurfaceOfRevolution(rows, cols, []mgl32.Vec3{{1, 0, 0.5}, {1, 0, -0.5}})
	if err != nil {
		return nil, err
	}
	lid, err := Polygon(max(cols, 3))
	if err != nil {
		return nil, err
	}
	if err := lid.InsertTransformedCopyInto(out, mgl32.Translate3D(0, 0, 0.5)); err != nil {
		return nil, err
	}
	if err := lid.InsertTransformedCopyInto(out, mgl32.Translate3D(0, 0, -0.5).Mul4(mgl32.HomogRotate3DX(math32.Pi))); err != nil {
		return nil, err
	}
	return out, nil
}

// AxisArrows is a debug gizmo: a small cube at the origin and one arrow along each axis.
func AxisArrows() (Shape, error) {
	out := emptyPNT("axis_arrows")
	if err := Cube().InsertTransformedCopyInto(out, mgl32.Scale3D(0.05, 0.05, 0.05)); err != nil {
		return nil, err
	}
	shaft, err := cappedCylinder(1, 8)
	if err != nil {
		return nil, err
	}
	tip, err := closedCone(1, 8)
	if err != nil {
		return nil, err
	}
	// arrows are built along +Z and rotated onto each axis
	for _, axis := range []mgl32.Mat4{
		mgl32.HomogRotate3DY(math32.Pi / 2),
		mgl32.HomogRotate3DX(-math32.Pi / 2),
		mgl32.Ident4(),
	} {
		if err := shaft.InsertTransformedCopyInto(out, axis.Mul4(mgl32.Translate3D(0, 0, 0.5)).Mul4(mgl32.Scale3D(0.02, 0.02, 1))); err != nil {
			return nil, err
		}
		if err := tip.InsertTransformedCopyInto(out, axis.Mul4(mgl32.Translate3D(0, 0, 1.05)).Mul4(mgl32.Scale3D(0.06, 0.06, 0.05))); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// InstancedQuad is a Square carrying a per-instance "offset" attribute, drawn count times with
// one offset each. A nil offsets lays the instances out along X two units apart.
//
// Parameters:
//   - count: the number of instances
//   - offsets: per-instance translations, len(offsets) must equal count when non-nil
//
// Returns:
//   - Shape: the instanced quad
//   - error: an error for a non-positive count or a mismatched offsets length
func InstancedQuad(count int, offsets []mgl32.Vec3) (Shape, error) {
	if count < 1 {
		return nil, fmt.Errorf("instanced quad needs a positive count, got %d", count)
	}
	if offsets != nil && len(offsets) != count {
		return nil, fmt.Errorf("%d offsets for %d instances", len(offsets), count)
	}
	data := make([]float32, 0, count*3)
	for i := 0; i < count; i++ {
		if offsets != nil {
			data = append(data, offsets[i][:]...)
			continue
		}
		data = append(data, float32(2*i), 0, 0)
	}
	s := Square()
	s.SetAttribute("offset", 3, data)
	s.SetDivisor("offset", 1)
	return s, nil
}
