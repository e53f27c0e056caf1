// annotations.go defines the annotations understood by the shader pre-processor. Annotations
// are single-line comments prefixed with @oxy: that inject shared declarations (uniform blocks,
// lighting functions, texture bindings) in the dialect of the source being processed, so the
// GLSL and WGSL versions of a shader always declare identical blocks.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an annotation within a comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered snippet at the annotation site.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include globals
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeTexture declares a sampled 2D texture. GLSL gets a sampler2D (or
	// sampler2DShadow) uniform; WGSL gets the texture at <binding> and its <name>_sampler at
	// <binding>+1 in <group>.
	//
	// Syntax: //@oxy:texture <group> <binding> <name> [depth]
	//
	// Example: //@oxy:texture 2 0 diffuse_texture
	AnnotationTypeTexture AnnotationType = "texture"
)

// Annotation is one parsed annotation line.
type Annotation struct {
	Type AnnotationType

	// Args holds the snippet name for includes and the texture name for textures.
	Args []string

	Line int

	Group   *int
	Binding *int

	// Depth marks a texture annotation as a shadow (comparison) texture.
	Depth bool
}

// parseAnnotation parses a single source line. It returns nil, nil for lines that are not
// annotations.
//
// Parameters:
//   - line: the raw source line
//   - lineNum: the 1-based line number, for error messages
//
// Returns:
//   - *Annotation: the parsed annotation or nil
//   - error: an error for a malformed annotation
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: []string{args[1]},
			Line: lineNum,
		}, nil
	case AnnotationTypeTexture:
		if len(args) != 4 && len(args) != 5 {
			return nil, fmt.Errorf("line %d: @oxy texture annotation requires group, binding, name and an optional depth flag", lineNum)
		}
		groupInt, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy texture annotation: %v", lineNum, args[1], err)
		}
		bindingInt, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy texture annotation: %v", lineNum, args[2], err)
		}
		a := &Annotation{
			Type:    AnnotationTypeTexture,
			Args:    []string{args[3]},
			Line:    lineNum,
			Group:   &groupInt,
			Binding: &bindingInt,
		}
		if len(args) == 5 {
			if args[4] != "depth" {
				return nil, fmt.Errorf("line %d: unknown texture flag %q, expected depth", lineNum, args[4])
			}
			a.Depth = true
		}
		return a, nil
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
	}
}
