package shape

import "github.com/Carmen-Shannon/oxy-tiny/engine/gpu"

// ShapeBuilderOption is a functional option for configuring a Shape via NewShape.
type ShapeBuilderOption func(*shape)

// WithLabel is an option builder that sets the debug label of the Shape.
//
// Parameters:
//   - label: the label used in logs and GPU object names
//
// Returns:
//   - ShapeBuilderOption: a function that applies the label option to a shape
func WithLabel(label string) ShapeBuilderOption {
	return func(s *shape) {
		s.label = label
	}
}

// WithAttribute is an option builder that adds a per-vertex attribute array to the Shape.
//
// Parameters:
//   - name: the attribute name matched against shader inputs
//   - components: floats per vertex
//   - data: the flattened vertex data
//
// Returns:
//   - ShapeBuilderOption: a function that applies the attribute option to a shape
func WithAttribute(name string, components int, data []float32) ShapeBuilderOption {
	return func(s *shape) {
		s.setAttribute(Attribute{Name: name, Components: components, Data: append([]float32(nil), data...)})
	}
}

// WithIndices is an option builder that sets the triangle index list of the Shape.
//
// Parameters:
//   - indices: vertex indices, three per triangle
//
// Returns:
//   - ShapeBuilderOption: a function that applies the indices option to a shape
func WithIndices(indices []uint32) ShapeBuilderOption {
	return func(s *shape) {
		if len(indices) > 0 {
			s.indices = append([]uint32(nil), indices...)
		}
	}
}

// WithUsage is an option builder that sets the buffer usage hint of the Shape.
// Shapes that are rewritten every frame should use gpu.UsageDynamic or gpu.UsageStream.
//
// Parameters:
//   - usage: the usage hint
//
// Returns:
//   - ShapeBuilderOption: a function that applies the usage option to a shape
func WithUsage(usage gpu.Usage) ShapeBuilderOption {
	return func(s *shape) {
		s.usage = usage
	}
}

// WithDivisor is an option builder that makes an attribute advance per instance.
// Apply it after the WithAttribute option it refers to.
//
// Parameters:
//   - name: the attribute name
//   - divisor: instances per element
//
// Returns:
//   - ShapeBuilderOption: a function that applies the divisor option to a shape
func WithDivisor(name string, divisor int) ShapeBuilderOption {
	return func(s *shape) {
		if a, ok := s.attributes[name]; ok {
			a.Divisor = divisor
			s.attributes[name] = a
		}
	}
}

// WithTopology is an option builder that sets the primitive topology of the Shape.
func WithTopology(topology gpu.Topology) ShapeBuilderOption {
	return func(s *shape) {
		s.topology = topology
	}
}
