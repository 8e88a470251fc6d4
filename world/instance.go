package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/voxel/gpucore"
	"github.com/gogpu/voxel/shader"
)

// InstanceSize is the byte size of one packed instance: the model matrix
// as four vec4 columns followed by a vec3 color.
const InstanceSize = 76

// InstanceLayout is the per-instance vertex layout read at vertex slot 1.
var InstanceLayout = gpucore.VertexBufferLayout{
	ArrayStride: InstanceSize,
	StepMode:    gpucore.VertexStepModeInstance,
	Attributes: []gpucore.VertexAttribute{
		{Format: gpucore.VertexFormatFloat32x4, Offset: 0, ShaderLocation: shader.LocationModel},
		{Format: gpucore.VertexFormatFloat32x4, Offset: 16, ShaderLocation: shader.LocationModel + 1},
		{Format: gpucore.VertexFormatFloat32x4, Offset: 32, ShaderLocation: shader.LocationModel + 2},
		{Format: gpucore.VertexFormatFloat32x4, Offset: 48, ShaderLocation: shader.LocationModel + 3},
		{Format: gpucore.VertexFormatFloat32x3, Offset: 64, ShaderLocation: shader.LocationColor},
	},
}

// Instance places one cube in the world.
type Instance struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
	Color    mgl32.Vec3
	Visible  bool
}

// NewInstance returns a visible, unrotated unit instance at pos.
func NewInstance(pos, color mgl32.Vec3) Instance {
	return Instance{
		Position: pos,
		Rotation: mgl32.QuatIdent(),
		Scale:    1,
		Color:    color,
		Visible:  true,
	}
}

// Model returns translation * rotation * scale.
func (in Instance) Model() mgl32.Mat4 {
	return mgl32.Translate3D(in.Position.Elem()).
		Mul4(in.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(in.Scale, in.Scale, in.Scale))
}

// AppendRaw appends the packed instance to b.
func (in Instance) AppendRaw(b []byte) []byte {
	m := in.Model()
	b = appendFloats(b, m[:]...)
	return appendFloats(b, in.Color[:]...)
}
