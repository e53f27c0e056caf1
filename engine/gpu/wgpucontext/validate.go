package wgpucontext

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/gogpu/naga"
)

// validate runs the WGSL source through naga so syntax and type errors surface as a CompileError
// with a readable log instead of a device error callback.
func validate(label, source string) error {
	if strings.TrimSpace(source) == "" {
		return &gpu.CompileError{Label: label, Stage: gpu.StageModule, Log: "empty source"}
	}
	if _, err := naga.Compile(source); err != nil {
		return &gpu.CompileError{Label: label, Stage: gpu.StageModule, Log: err.Error()}
	}
	return nil
}
