package shader

// wgslTypeLayout holds the byte size and alignment of a WGSL type in the uniform address space.
// Used to check reflected uniform blocks against the engine's own block layout.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// bindingDecl is one @group/@binding variable declaration.
type bindingDecl struct {
	group        int
	binding      int
	addressSpace string
	name         string
	typeName     string
}
