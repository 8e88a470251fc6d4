package gpucore

import (
	"errors"
	"testing"

	"github.com/gogpu/voxel"
)

func TestValidateVertexLayout(t *testing.T) {
	vertex := VertexBufferLayout{
		ArrayStride: 24,
		StepMode:    VertexStepModeVertex,
		Attributes: []VertexAttribute{
			{Format: VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		},
	}
	instance := VertexBufferLayout{
		ArrayStride: 76,
		StepMode:    VertexStepModeInstance,
		Attributes: []VertexAttribute{
			{Format: VertexFormatFloat32x4, Offset: 0, ShaderLocation: 5},
			{Format: VertexFormatFloat32x4, Offset: 16, ShaderLocation: 6},
			{Format: VertexFormatFloat32x4, Offset: 32, ShaderLocation: 7},
			{Format: VertexFormatFloat32x4, Offset: 48, ShaderLocation: 8},
			{Format: VertexFormatFloat32x3, Offset: 64, ShaderLocation: 9},
		},
	}

	tests := []struct {
		name    string
		buffers []VertexBufferLayout
		limits  Limits
		wantErr bool
	}{
		{"valid", []VertexBufferLayout{vertex, instance}, DefaultLimits(), false},
		{"empty", nil, DefaultLimits(), true},
		{"no attributes", []VertexBufferLayout{{ArrayStride: 12}}, DefaultLimits(), true},
		{"zero stride", []VertexBufferLayout{{Attributes: vertex.Attributes}}, DefaultLimits(), true},
		{"unaligned stride", []VertexBufferLayout{{ArrayStride: 22, Attributes: vertex.Attributes[:1]}}, DefaultLimits(), true},
		{"past stride", []VertexBufferLayout{{ArrayStride: 16, Attributes: vertex.Attributes}}, DefaultLimits(), true},
		{"unaligned offset", []VertexBufferLayout{{ArrayStride: 24, Attributes: []VertexAttribute{
			{Format: VertexFormatFloat32, Offset: 2, ShaderLocation: 0},
		}}}, DefaultLimits(), true},
		{"unknown format", []VertexBufferLayout{{ArrayStride: 16, Attributes: []VertexAttribute{
			{Format: 99, ShaderLocation: 0},
		}}}, DefaultLimits(), true},
		{"duplicate location", []VertexBufferLayout{vertex, vertex}, DefaultLimits(), true},
		{"too many buffers", []VertexBufferLayout{vertex, instance}, Limits{MaxVertexBuffers: 1}, true},
		{"too many attributes", []VertexBufferLayout{vertex, instance}, Limits{MaxVertexAttributes: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVertexLayout(tt.buffers, tt.limits)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateVertexLayout() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, voxel.ErrUnsupportedVertexLayout) {
				t.Errorf("error %v does not wrap ErrUnsupportedVertexLayout", err)
			}
		})
	}
}

func TestSurfaceErrorsAreRecoverable(t *testing.T) {
	for _, err := range []error{ErrSurfaceLost, ErrSurfaceOutdated} {
		if !errors.Is(err, voxel.ErrRecoverableSurface) {
			t.Errorf("%v does not match ErrRecoverableSurface", err)
		}
	}
	if errors.Is(ErrNotConfigured, voxel.ErrRecoverableSurface) {
		t.Error("ErrNotConfigured must not be recoverable")
	}
}

func TestParsePresentMode(t *testing.T) {
	for _, mode := range []PresentMode{PresentModeFifo, PresentModeMailbox, PresentModeImmediate} {
		got, err := ParsePresentMode(mode.String())
		if err != nil || got != mode {
			t.Errorf("ParsePresentMode(%q) = %v, %v", mode.String(), got, err)
		}
	}
	if _, err := ParsePresentMode("vsync"); err == nil {
		t.Error("ParsePresentMode(vsync) = nil error")
	}
}

func TestExtentAndLimits(t *testing.T) {
	if !(Extent{Width: 0, Height: 10}).IsZero() {
		t.Error("0x10 should be zero")
	}
	if got := (Extent{}).Clamp(); got != (Extent{Width: 1, Height: 1}) {
		t.Errorf("Clamp() = %v", got)
	}
	if !DefaultLimits().Satisfies(Limits{MaxTextureDimension2D: 2048}) {
		t.Error("default limits should satisfy 2048 textures")
	}
	if (Limits{}).Satisfies(DefaultLimits()) {
		t.Error("zero limits should not satisfy defaults")
	}
	if !TextureFormatBGRA8UnormSRGB.IsSRGB() || TextureFormatBGRA8Unorm.IsSRGB() {
		t.Error("IsSRGB mismatch")
	}
}
