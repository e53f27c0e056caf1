package wgpucontext

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-tiny/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestVertexLayout(t *testing.T) {
	tests := []struct {
		name       string
		location   int
		components int
		divisor    int
		wantCols   int
		wantFormat wgpu.VertexFormat
		wantStep   wgpu.VertexStepMode
		wantErr    bool
	}{
		{"position", 0, 3, 0, 1, wgpu.VertexFormatFloat32x3, wgpu.VertexStepModeVertex, false},
		{"uv", 2, 2, 0, 1, wgpu.VertexFormatFloat32x2, wgpu.VertexStepModeVertex, false},
		{"model transform", 3, 16, 1, 4, wgpu.VertexFormatFloat32x4, wgpu.VertexStepModeInstance, false},
		{"odd width", 0, 6, 0, 0, 0, 0, true},
		{"divisor 2", 0, 4, 2, 0, 0, 0, true},
		{"no components", 0, 0, 0, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vertexLayout(tt.location, tt.components, tt.divisor)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Attributes) != tt.wantCols || got.StepMode != tt.wantStep {
				t.Fatalf("layout = %+v", got)
			}
			if got.ArrayStride != uint64(tt.components*4) {
				t.Errorf("stride = %d", got.ArrayStride)
			}
			for i, a := range got.Attributes {
				if a.Format != tt.wantFormat || a.ShaderLocation != uint32(tt.location+i) || a.Offset != uint64(i*16) {
					t.Errorf("column %d = %+v", i, a)
				}
			}
		})
	}
}

func TestEnumMapping(t *testing.T) {
	if wgpuTopology(gpu.TopologyLines) != wgpu.PrimitiveTopologyLineList || wgpuTopology(gpu.TopologyTriangles) != wgpu.PrimitiveTopologyTriangleList {
		t.Error("topology mapping")
	}
	if wgpuFilter(gpu.FilterNearest) != wgpu.FilterModeNearest || wgpuFilter(gpu.FilterLinearMipmap) != wgpu.FilterModeLinear {
		t.Error("filter mapping")
	}
	if wgpuWrap(gpu.WrapClamp) != wgpu.AddressModeClampToEdge || wgpuWrap(gpu.WrapRepeat) != wgpu.AddressModeRepeat {
		t.Error("wrap mapping")
	}
}

func TestPipelineKey(t *testing.T) {
	order := []gpu.AttributeBinding{
		{Name: "position", Location: 0, Components: 3},
		{Name: "model_transform", Location: 3, Components: 16, Instanced: true},
	}
	bindings := []gpu.VertexBinding{
		{Name: "model_transform", Components: 16, Divisor: 1},
		{Name: "position", Components: 3},
		{Name: "unused", Components: 2},
	}
	key, err := layoutKey(order, bindings)
	if err != nil {
		t.Fatal(err)
	}
	if key != "0:3/0;3:16/1;" {
		t.Errorf("layoutKey = %q", key)
	}
	if _, err := layoutKey(order, bindings[1:]); err == nil {
		t.Error("missing attribute must fail")
	}
}
