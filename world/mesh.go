package world

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/voxel/gpucore"
)

// Mesh is CPU-side geometry ready for upload. Indices are uint16.
type Mesh struct {
	Label    string
	Vertices []byte
	Indices  []byte
	// IndexCount is the number of indices, not bytes.
	IndexCount uint32
	Layout     gpucore.VertexBufferLayout
	Textured   bool
}

// cubeCorners are the corners of the unit cube. Index order matches
// cubeIndices.
var cubeCorners = [8][3]float32{
	{0, 0, 0},
	{0, 0, 1},
	{1, 0, 0},
	{1, 0, 1},
	{1, 1, 0},
	{1, 1, 1},
	{0, 1, 0},
	{0, 1, 1},
}

// cubeUVs wrap the texture once around the cube sides.
var cubeUVs = [8][2]float32{
	{1, 0},
	{0, 0},
	{1, 1},
	{0, 1},
	{1, 0},
	{0, 0},
	{1, 1},
	{0, 1},
}

// cubeIndices lists two counter-clockwise triangles per face, seen from
// outside the cube.
var cubeIndices = [36]uint16{
	0, 2, 3, 0, 3, 1, // bottom
	4, 6, 7, 4, 7, 5, // top
	3, 2, 4, 3, 4, 5, // +x
	7, 6, 0, 7, 0, 1, // -x
	6, 4, 2, 6, 2, 0, // -z
	1, 3, 5, 1, 5, 7, // +z
}

// faceShade darkens the faces so edges stay visible without lighting.
var faceShade = [6]float32{0.55, 1.0, 0.85, 0.7, 0.75, 0.9}

// PrimitiveVertexSize is the stride of a primitive vertex: position and
// color, both vec3.
const PrimitiveVertexSize = 24

// TexturedVertexSize is the stride of a textured vertex: position vec3
// and texture coordinates vec2.
const TexturedVertexSize = 20

// PrimitiveLayout is the vertex layout of PrimitiveCube.
var PrimitiveLayout = gpucore.VertexBufferLayout{
	ArrayStride: PrimitiveVertexSize,
	StepMode:    gpucore.VertexStepModeVertex,
	Attributes: []gpucore.VertexAttribute{
		{Format: gpucore.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: gpucore.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
	},
}

// TexturedLayout is the vertex layout of TexturedCube.
var TexturedLayout = gpucore.VertexBufferLayout{
	ArrayStride: TexturedVertexSize,
	StepMode:    gpucore.VertexStepModeVertex,
	Attributes: []gpucore.VertexAttribute{
		{Format: gpucore.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: gpucore.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
	},
}

// PrimitiveCube returns a unit cube with flat shaded faces in color.
// Each face has its own vertices so the shade does not bleed across
// edges.
func PrimitiveCube(color [3]float32) Mesh {
	var vb []byte
	indices := make([]uint16, len(cubeIndices))
	for i, corner := range cubeIndices {
		shade := faceShade[i/6]
		vb = appendFloats(vb, cubeCorners[corner][:]...)
		vb = appendFloats(vb, color[0]*shade, color[1]*shade, color[2]*shade)
		indices[i] = uint16(i)
	}
	return Mesh{
		Label:      "primitive cube",
		Vertices:   vb,
		Indices:    indexBytes(indices),
		IndexCount: uint32(len(indices)),
		Layout:     PrimitiveLayout,
	}
}

// TexturedCube returns a unit cube sharing its eight corners between
// faces.
func TexturedCube() Mesh {
	var vb []byte
	for i, corner := range cubeCorners {
		vb = appendFloats(vb, corner[:]...)
		vb = appendFloats(vb, cubeUVs[i][:]...)
	}
	return Mesh{
		Label:      "textured cube",
		Vertices:   vb,
		Indices:    indexBytes(cubeIndices[:]),
		IndexCount: uint32(len(cubeIndices)),
		Layout:     TexturedLayout,
		Textured:   true,
	}
}

func appendFloats(b []byte, vals ...float32) []byte {
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

func indexBytes(indices []uint16) []byte {
	b := make([]byte, 0, 2*len(indices))
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint16(b, i)
	}
	return b
}
