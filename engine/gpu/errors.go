package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceCompileFailure reports a shader that failed to compile or link. It is fatal for
	// the resource: the failure is reported once and never retried.
	ErrResourceCompileFailure = errors.New("resource compile failure")

	// ErrResourceLoadFailure reports an asset (texture image) that could not be fetched or decoded.
	// Draws that use the asset fall back to drawing without it.
	ErrResourceLoadFailure = errors.New("resource load failure")

	// ErrLayout reports an invalid uniform block declaration: an unknown type tag, a block over the
	// size limit, or two different field lists registered under one block name.
	ErrLayout = errors.New("uniform layout error")

	// ErrContextMismatch reports a resource that has no valid binding for the context it is
	// resolved against, e.g. when the uniform binding points of a context are exhausted.
	ErrContextMismatch = errors.New("context mismatch")

	// ErrResourceFailed is returned when resolving a resource whose earlier upload failed.
	ErrResourceFailed = errors.New("resource previously failed")
)

// ShaderStage names the program stage a CompileError was raised from.
type ShaderStage string

const (
	StageVertex   ShaderStage = "vertex"
	StageFragment ShaderStage = "fragment"
	StageLink     ShaderStage = "link"
	StageModule   ShaderStage = "module"
	StagePipeline ShaderStage = "pipeline"
)

// CompileError carries the driver log of a failed shader compile or link.
// It matches ErrResourceCompileFailure with errors.Is.
type CompileError struct {
	Label string
	Stage ShaderStage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("shader %q %s failed: %s", e.Label, e.Stage, e.Log)
}

func (e *CompileError) Is(target error) bool {
	return target == ErrResourceCompileFailure
}
