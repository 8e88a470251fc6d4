package gpucore

import (
	"fmt"

	"github.com/gogpu/voxel"
)

// VertexFormat is the type of a single vertex attribute.
type VertexFormat uint32

// Vertex formats.
const (
	VertexFormatFloat32 VertexFormat = iota + 1
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
)

// Size returns the attribute size in bytes, or 0 for unknown formats.
func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32, VertexFormatUint32:
		return 4
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4:
		return 16
	}
	return 0
}

// VertexStepMode selects per-vertex or per-instance attribute stepping.
type VertexStepMode uint32

// Step modes.
const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

// VertexAttribute describes one attribute inside a vertex buffer.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes how one vertex buffer is laid out.
type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    VertexStepMode
	Attributes  []VertexAttribute
}

// ValidateVertexLayout checks buffers against the device limits. The
// returned error wraps voxel.ErrUnsupportedVertexLayout.
func ValidateVertexLayout(buffers []VertexBufferLayout, limits Limits) error {
	if len(buffers) == 0 {
		return fmt.Errorf("%w: no vertex buffers", voxel.ErrUnsupportedVertexLayout)
	}
	if limits.MaxVertexBuffers != 0 && uint32(len(buffers)) > limits.MaxVertexBuffers {
		return fmt.Errorf("%w: %d buffers exceed limit %d",
			voxel.ErrUnsupportedVertexLayout, len(buffers), limits.MaxVertexBuffers)
	}

	locations := make(map[uint32]struct{})
	for i, buf := range buffers {
		if len(buf.Attributes) == 0 {
			return fmt.Errorf("%w: buffer %d has no attributes", voxel.ErrUnsupportedVertexLayout, i)
		}
		if buf.ArrayStride == 0 || buf.ArrayStride%4 != 0 {
			return fmt.Errorf("%w: buffer %d stride %d must be a positive multiple of 4",
				voxel.ErrUnsupportedVertexLayout, i, buf.ArrayStride)
		}
		for _, attr := range buf.Attributes {
			size := attr.Format.Size()
			if size == 0 {
				return fmt.Errorf("%w: buffer %d location %d has unknown format %d",
					voxel.ErrUnsupportedVertexLayout, i, attr.ShaderLocation, attr.Format)
			}
			if attr.Offset%4 != 0 {
				return fmt.Errorf("%w: buffer %d location %d offset %d not 4-byte aligned",
					voxel.ErrUnsupportedVertexLayout, i, attr.ShaderLocation, attr.Offset)
			}
			if attr.Offset+size > buf.ArrayStride {
				return fmt.Errorf("%w: buffer %d location %d ends past stride %d",
					voxel.ErrUnsupportedVertexLayout, i, attr.ShaderLocation, buf.ArrayStride)
			}
			if _, dup := locations[attr.ShaderLocation]; dup {
				return fmt.Errorf("%w: shader location %d bound twice",
					voxel.ErrUnsupportedVertexLayout, attr.ShaderLocation)
			}
			locations[attr.ShaderLocation] = struct{}{}
		}
	}
	if limits.MaxVertexAttributes != 0 && uint32(len(locations)) > limits.MaxVertexAttributes {
		return fmt.Errorf("%w: %d attributes exceed limit %d",
			voxel.ErrUnsupportedVertexLayout, len(locations), limits.MaxVertexAttributes)
	}
	return nil
}
