package gpu

// ShadingLanguage identifies the shader source dialect a Context compiles.
type ShadingLanguage int

const (
	// LanguageGLSL is GLSL 4.10 core, consumed by the OpenGL context.
	LanguageGLSL ShadingLanguage = iota
	// LanguageWGSL is WGSL, consumed by the WebGPU context.
	LanguageWGSL
)

func (l ShadingLanguage) String() string {
	switch l {
	case LanguageGLSL:
		return "glsl"
	case LanguageWGSL:
		return "wgsl"
	default:
		return "unknown"
	}
}

// BufferKind selects what a buffer is bound as.
type BufferKind int

const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform
)

// Usage is the update-frequency hint given when a buffer is created.
type Usage int

const (
	UsageStatic Usage = iota
	UsageDynamic
	UsageStream
)

// FilterMode selects texture sampling filters.
type FilterMode int

const (
	FilterLinear FilterMode = iota
	FilterNearest
	// FilterLinearMipmap samples trilinearly; only meaningful for minification with mipmaps.
	FilterLinearMipmap
)

// WrapMode selects texture coordinate wrapping.
type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClamp
	WrapMirror
)

// Topology selects how vertices are assembled into primitives.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyTriangleStrip
	TopologyLines
)

// ClearFlags selects which attachments Clear resets.
type ClearFlags int

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
)

// TextureDesc describes a 2D texture allocation.
type TextureDesc struct {
	Label         string
	Width, Height int
	MinFilter     FilterMode
	MagFilter     FilterMode
	Wrap          WrapMode
	Mipmaps       bool
}

// Viewport is a pixel rectangle of the bound render target.
type Viewport struct {
	X, Y, Width, Height int
}

// Limits reports the finite binding resources of a context.
type Limits struct {
	// MaxUniformBindings is the number of uniform block binding points.
	MaxUniformBindings int
	// MaxTextureUnits is the number of combined texture units a program can sample.
	MaxTextureUnits int
	// MaxUniformBlockSize is the largest uniform block in bytes.
	MaxUniformBlockSize int
}

// BlockBinding declares one uniform block of a program. Group and Binding are only meaningful to
// contexts whose shaders declare explicit bind slots (WGSL).
type BlockBinding struct {
	Name    string
	Size    int
	Group   int
	Binding int
}

// SamplerBinding declares one sampled texture of a program and the texture unit it reads.
type SamplerBinding struct {
	Name string
	Unit int
	// Depth marks a depth texture sampled with a comparison sampler (shadow maps).
	Depth          bool
	Group          int
	Binding        int
	SamplerBinding int
}

// AttributeBinding declares one vertex input of a program.
type AttributeBinding struct {
	Name       string
	Location   int
	Components int
	// Instanced marks an attribute that advances per instance rather than per vertex.
	Instanced bool
}

// ProgramDesc holds everything a context needs to build a program from reflected shader source.
type ProgramDesc struct {
	Label          string
	Language       ShadingLanguage
	VertexSource   string
	FragmentSource string
	VertexEntry    string
	FragmentEntry  string
	Blocks         []BlockBinding
	Samplers       []SamplerBinding
	Attributes     []AttributeBinding
}

// VertexBinding supplies a buffer for one named attribute of a draw.
type VertexBinding struct {
	Name       string
	Buffer     Buffer
	Components int
	// Divisor is 0 for per-vertex data and N to advance once every N instances.
	Divisor int
}

// DrawCommand is one indexed or non-indexed draw.
type DrawCommand struct {
	Program    Program
	Attributes []VertexBinding
	// Indices is nil for a non-indexed draw.
	Indices   Buffer
	Count     int
	Instances int
	Topology  Topology
}
