// Package shape holds CPU-side vertex geometry and uploads it to GPU buffers per context.
package shape

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/Carmen-Shannon/oxy-tiny/engine/resource"
	"github.com/go-gl/mathgl/mgl32"
)

// Well-known attribute names shared by the built-in shaders.
const (
	AttrPosition       = "position"
	AttrNormal         = "normal"
	AttrTexCoord       = "texture_coord"
	AttrModelTransform = "model_transform"
)

// Attribute is one named vertex array.
type Attribute struct {
	Name       string
	Components int
	Data       []float32
	// Divisor is 0 for per-vertex data and N for data that advances every N instances.
	Divisor int
}

// Count returns the number of elements in the attribute.
func (a Attribute) Count() int {
	if a.Components == 0 {
		return 0
	}
	return len(a.Data) / a.Components
}

func (a Attribute) clone() Attribute {
	a.Data = append([]float32(nil), a.Data...)
	return a
}

// shape is the implementation of the Shape interface.
type shape struct {
	*resource.Tracker
	mu         *sync.RWMutex
	label      string
	attributes map[string]Attribute
	order      []string
	indices    []uint32
	usage      gpu.Usage
	topology   gpu.Topology
}

// Shape is a set of named vertex attribute arrays plus an optional index list. The data lives on
// the CPU; an Uploader keeps one GPU Instance of it per context and re-uploads after any mutation.
type Shape interface {
	resource.Resource

	// Label returns the debug label of the shape.
	Label() string

	// Attribute returns a copy of a named attribute.
	//
	// Parameters:
	//   - name: the attribute name
	//
	// Returns:
	//   - Attribute: the attribute
	//   - bool: false if the shape has no attribute of that name
	Attribute(name string) (Attribute, bool)

	// Attributes returns copies of every attribute in insertion order.
	Attributes() []Attribute

	// SetAttribute replaces or adds an attribute and marks the shape dirty.
	//
	// Parameters:
	//   - name: the attribute name
	//   - components: floats per element (1-4, or 16 for a matrix)
	//   - data: the flattened element data
	SetAttribute(name string, components int, data []float32)

	// SetDivisor sets the instance divisor of an existing attribute.
	SetDivisor(name string, divisor int)

	// Indices returns a copy of the index list; nil for a non-indexed shape.
	Indices() []uint32

	// SetIndices replaces the index list and marks the shape dirty.
	SetIndices(indices []uint32)

	// VertexCount returns the number of per-vertex elements, taken from the first per-vertex
	// attribute.
	VertexCount() int

	// Usage returns the buffer usage hint applied at upload.
	Usage() gpu.Usage

	// Topology returns the primitive assembly mode.
	Topology() gpu.Topology

	// Validate checks that every per-vertex attribute has the same element count and every index
	// is in range.
	//
	// Returns:
	//   - error: a description of the first inconsistency found
	Validate() error

	// FlatShade replaces the normals with per-triangle face normals so each triangle is lit
	// uniformly. Indexed shapes are expanded first with DuplicateSharedVertices.
	FlatShade()

	// DuplicateSharedVertices expands the shape so no two triangles share a vertex, dropping the
	// index list.
	DuplicateSharedVertices()

	// NormalizePositions centers the positions on their average and scales them to unit average
	// extent.
	//
	// Parameters:
	//   - keepAspect: true to scale every axis by the same factor
	NormalizePositions(keepAspect bool)

	// InsertTransformedCopyInto appends a copy of this shape's geometry to dst. Positions are
	// transformed by m, normals by its inverse transpose; other attributes are copied unchanged.
	//
	// Parameters:
	//   - dst: the shape to append to; an empty dst adopts this shape's attribute set
	//   - m: the transform applied to the copied points
	//
	// Returns:
	//   - error: an error if dst's attribute set differs from this shape's
	InsertTransformedCopyInto(dst Shape, m mgl32.Mat4) error
}

var _ Shape = &shape{}

// NewShape creates a shape from builder options.
//
// Parameters:
//   - options: attribute, index and usage options
//
// Returns:
//   - Shape: the new shape
func NewShape(options ...ShapeBuilderOption) Shape {
	s := &shape{
		Tracker:    resource.NewTracker(),
		mu:         &sync.RWMutex{},
		attributes: make(map[string]Attribute),
		usage:      gpu.UsageStatic,
		topology:   gpu.TopologyTriangles,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *shape) Label() string {
	return s.label
}

func (s *shape) Attribute(name string) (Attribute, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attributes[name]
	if !ok {
		return Attribute{}, false
	}
	return a.clone(), true
}

func (s *shape) Attributes() []Attribute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Attribute, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.attributes[name].clone())
	}
	return out
}

func (s *shape) SetAttribute(name string, components int, data []float32) {
	s.mu.Lock()
	s.setAttribute(Attribute{Name: name, Components: components, Data: append([]float32(nil), data...)})
	s.mu.Unlock()
	s.MarkDirty()
}

func (s *shape) setAttribute(a Attribute) {
	if prev, ok := s.attributes[a.Name]; ok {
		if a.Divisor == 0 {
			a.Divisor = prev.Divisor
		}
	} else {
		s.order = append(s.order, a.Name)
	}
	s.attributes[a.Name] = a
}

func (s *shape) SetDivisor(name string, divisor int) {
	s.mu.Lock()
	a, ok := s.attributes[name]
	if ok {
		a.Divisor = divisor
		s.attributes[name] = a
	}
	s.mu.Unlock()
	if ok {
		s.MarkDirty()
	}
}

func (s *shape) Indices() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indices == nil {
		return nil
	}
	return append([]uint32(nil), s.indices...)
}

func (s *shape) SetIndices(indices []uint32) {
	s.mu.Lock()
	if len(indices) == 0 {
		s.indices = nil
	} else {
		s.indices = append([]uint32(nil), indices...)
	}
	s.mu.Unlock()
	s.MarkDirty()
}

func (s *shape) VertexCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vertexCount()
}

func (s *shape) vertexCount() int {
	for _, name := range s.order {
		if a := s.attributes[name]; a.Divisor == 0 {
			return a.Count()
		}
	}
	return 0
}

func (s *shape) Usage() gpu.Usage {
	return s.usage
}

func (s *shape) Topology() gpu.Topology {
	return s.topology
}

func (s *shape) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := -1
	var first string
	for _, name := range s.order {
		a := s.attributes[name]
		switch a.Components {
		case 1, 2, 3, 4, 16:
		default:
			return fmt.Errorf("attribute %q has unsupported component count %d", name, a.Components)
		}
		if len(a.Data)%a.Components != 0 {
			return fmt.Errorf("attribute %q has %d floats, not a multiple of %d", name, len(a.Data), a.Components)
		}
		if a.Divisor > 0 {
			continue
		}
		if count < 0 {
			count, first = a.Count(), name
			continue
		}
		if a.Count() != count {
			return fmt.Errorf("attribute %q has %d vertices, %q has %d", name, a.Count(), first, count)
		}
	}
	if count <= 0 {
		return fmt.Errorf("shape %q has no vertices", s.label)
	}
	for i, idx := range s.indices {
		if int(idx) >= count {
			return fmt.Errorf("index %d at %d out of range for %d vertices", idx, i, count)
		}
	}
	return nil
}

func (s *shape) DuplicateSharedVertices() {
	s.mu.Lock()
	changed := s.duplicateSharedVertices()
	s.mu.Unlock()
	if changed {
		s.MarkDirty()
	}
}

func (s *shape) duplicateSharedVertices() bool {
	if s.indices == nil {
		return false
	}
	for _, name := range s.order {
		a := s.attributes[name]
		if a.Divisor > 0 {
			continue
		}
		out := make([]float32, 0, len(s.indices)*a.Components)
		for _, idx := range s.indices {
			start := int(idx) * a.Components
			out = append(out, a.Data[start:start+a.Components]...)
		}
		a.Data = out
		s.attributes[name] = a
	}
	s.indices = nil
	return true
}

func (s *shape) FlatShade() {
	s.mu.Lock()
	defer s.MarkDirty()
	defer s.mu.Unlock()

	s.duplicateSharedVertices()
	pos, ok := s.attributes[AttrPosition]
	if !ok || pos.Components < 3 {
		return
	}
	n := pos.Count()
	normals := make([]float32, n*3)
	for t := 0; t+2 < n; t += 3 {
		p0, p1, p2 := vec3At(pos, t), vec3At(pos, t+1), vec3At(pos, t+2)
		face := p1.Sub(p0).Cross(p2.Sub(p0))
		if face.Len() > 0 {
			face = face.Normalize()
		}
		for k := 0; k < 3; k++ {
			copy(normals[(t+k)*3:], face[:])
		}
	}
	s.setAttribute(Attribute{Name: AttrNormal, Components: 3, Data: normals})
}

func (s *shape) NormalizePositions(keepAspect bool) {
	s.mu.Lock()
	defer s.MarkDirty()
	defer s.mu.Unlock()

	pos, ok := s.attributes[AttrPosition]
	if !ok || pos.Components < 3 || pos.Count() == 0 {
		return
	}
	n := pos.Count()
	inv := 1 / float32(n)

	var avg mgl32.Vec3
	for i := 0; i < n; i++ {
		avg = avg.Add(vec3At(pos, i).Mul(inv))
	}
	var extent mgl32.Vec3
	for i := 0; i < n; i++ {
		p := vec3At(pos, i).Sub(avg)
		extent = extent.Add(mgl32.Vec3{abs(p[0]), abs(p[1]), abs(p[2])}.Mul(inv))
	}

	data := make([]float32, len(pos.Data))
	copy(data, pos.Data)
	for i := 0; i < n; i++ {
		p := vec3At(pos, i).Sub(avg)
		if keepAspect {
			if l := extent.Len(); l > 0 {
				p = p.Mul(1 / l)
			}
		} else {
			for c := 0; c < 3; c++ {
				if extent[c] > 0 {
					p[c] /= extent[c]
				}
			}
		}
		copy(data[i*pos.Components:], p[:])
	}
	pos.Data = data
	s.attributes[AttrPosition] = pos
}

// snapshot is a consistent copy of a shape's data for upload or insertion.
type snapshot struct {
	attributes []Attribute
	indices    []uint32
	vertices   int
}

func (s *shape) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{vertices: s.vertexCount()}
	for _, name := range s.order {
		snap.attributes = append(snap.attributes, s.attributes[name].clone())
	}
	if s.indices != nil {
		snap.indices = append([]uint32(nil), s.indices...)
	}
	return snap
}

func (s *shape) InsertTransformedCopyInto(dst Shape, m mgl32.Mat4) error {
	target, ok := dst.(*shape)
	if !ok {
		return fmt.Errorf("cannot insert into %T", dst)
	}
	src := s.snapshot()
	normalMat := m.Mat3().Inv().Transpose()

	target.mu.Lock()
	defer target.MarkDirty()
	defer target.mu.Unlock()

	base := target.vertexCount()
	if len(target.order) > 0 {
		names := make([]string, 0, len(src.attributes))
		for _, a := range src.attributes {
			if a.Divisor == 0 {
				names = append(names, a.Name)
			}
		}
		if !sameNames(names, target.perVertexNames()) {
			return fmt.Errorf("attribute sets differ: %v vs %v", names, target.perVertexNames())
		}
	}

	for _, a := range src.attributes {
		if a.Divisor > 0 {
			continue
		}
		data := a.Data
		switch {
		case a.Name == AttrPosition && a.Components >= 3:
			data = transformEach(a, func(v mgl32.Vec3) mgl32.Vec3 {
				return m.Mul4x1(v.Vec4(1)).Vec3()
			})
		case a.Name == AttrNormal && a.Components >= 3:
			data = transformEach(a, func(v mgl32.Vec3) mgl32.Vec3 {
				n := normalMat.Mul3x1(v)
				if n.Len() > 0 {
					n = n.Normalize()
				}
				return n
			})
		}
		existing, ok := target.attributes[a.Name]
		if !ok {
			target.setAttribute(Attribute{Name: a.Name, Components: a.Components, Data: data})
			continue
		}
		existing.Data = append(existing.Data, data...)
		target.attributes[a.Name] = existing
	}

	if target.indices == nil && src.indices == nil {
		return nil
	}
	if target.indices == nil {
		target.indices = sequence(0, base)
	}
	if src.indices == nil {
		target.indices = append(target.indices, sequence(uint32(base), src.vertices)...)
		return nil
	}
	for _, idx := range src.indices {
		target.indices = append(target.indices, idx+uint32(base))
	}
	return nil
}

func (s *shape) perVertexNames() []string {
	var names []string
	for _, name := range s.order {
		if s.attributes[name].Divisor == 0 {
			names = append(names, name)
		}
	}
	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = append([]string(nil), a...), append([]string(nil), b...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sequence(start uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = start + uint32(i)
	}
	return out
}

func vec3At(a Attribute, i int) mgl32.Vec3 {
	d := a.Data[i*a.Components:]
	return mgl32.Vec3{d[0], d[1], d[2]}
}

func transformEach(a Attribute, f func(mgl32.Vec3) mgl32.Vec3) []float32 {
	out := append([]float32(nil), a.Data...)
	for i := 0; i < a.Count(); i++ {
		v := f(vec3At(a, i))
		copy(out[i*a.Components:], v[:])
	}
	return out
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
