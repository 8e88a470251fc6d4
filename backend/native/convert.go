// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/voxel/gpucore"
)

func textureFormat(f gpucore.TextureFormat) gputypes.TextureFormat {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case gpucore.TextureFormatRGBA8UnormSRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case gpucore.TextureFormatBGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case gpucore.TextureFormatBGRA8UnormSRGB:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case gpucore.TextureFormatDepth32Float:
		return gputypes.TextureFormatDepth32Float
	}
	return gputypes.TextureFormatUndefined
}

// coreFormat is the inverse of textureFormat. Formats the shell never
// uses map to 0.
func coreFormat(f gputypes.TextureFormat) gpucore.TextureFormat {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return gpucore.TextureFormatRGBA8Unorm
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return gpucore.TextureFormatRGBA8UnormSRGB
	case gputypes.TextureFormatBGRA8Unorm:
		return gpucore.TextureFormatBGRA8Unorm
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return gpucore.TextureFormatBGRA8UnormSRGB
	case gputypes.TextureFormatDepth32Float:
		return gpucore.TextureFormatDepth32Float
	}
	return 0
}

func bufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	for _, m := range []struct {
		from gpucore.BufferUsage
		to   gputypes.BufferUsage
	}{
		{gpucore.BufferUsageMapRead, gputypes.BufferUsageMapRead},
		{gpucore.BufferUsageMapWrite, gputypes.BufferUsageMapWrite},
		{gpucore.BufferUsageCopySrc, gputypes.BufferUsageCopySrc},
		{gpucore.BufferUsageCopyDst, gputypes.BufferUsageCopyDst},
		{gpucore.BufferUsageIndex, gputypes.BufferUsageIndex},
		{gpucore.BufferUsageVertex, gputypes.BufferUsageVertex},
		{gpucore.BufferUsageUniform, gputypes.BufferUsageUniform},
	} {
		if u.Contains(m.from) {
			out |= m.to
		}
	}
	return out
}

func textureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&gpucore.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&gpucore.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&gpucore.TextureUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&gpucore.TextureUsageRenderAttachment != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

func shaderStages(s gpucore.ShaderStage) gputypes.ShaderStages {
	var out gputypes.ShaderStages
	if s&gpucore.ShaderStageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&gpucore.ShaderStageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	return out
}

func layoutEntry(e gpucore.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: shaderStages(e.Visibility),
	}
	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{
			Type:           gputypes.BufferBindingTypeUniform,
			MinBindingSize: e.MinBindingSize,
		}
	case gpucore.BindingTypeSampledTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingTypeSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return out
}

func filterMode(f gpucore.FilterMode) gputypes.FilterMode {
	if f == gpucore.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func addressMode(m gpucore.AddressMode) gputypes.AddressMode {
	if m == gpucore.AddressRepeat {
		return gputypes.AddressModeRepeat
	}
	return gputypes.AddressModeClampToEdge
}

func vertexFormat(f gpucore.VertexFormat) gputypes.VertexFormat {
	switch f {
	case gpucore.VertexFormatFloat32:
		return gputypes.VertexFormatFloat32
	case gpucore.VertexFormatFloat32x2:
		return gputypes.VertexFormatFloat32x2
	case gpucore.VertexFormatFloat32x3:
		return gputypes.VertexFormatFloat32x3
	case gpucore.VertexFormatFloat32x4:
		return gputypes.VertexFormatFloat32x4
	case gpucore.VertexFormatUint32:
		return gputypes.VertexFormatUint32
	}
	return gputypes.VertexFormatFloat32
}

func vertexLayouts(buffers []gpucore.VertexBufferLayout) []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, len(buffers))
	for i, b := range buffers {
		attrs := make([]gputypes.VertexAttribute, len(b.Attributes))
		for j, a := range b.Attributes {
			attrs[j] = gputypes.VertexAttribute{
				Format:         vertexFormat(a.Format),
				Offset:         a.Offset,
				ShaderLocation: a.ShaderLocation,
			}
		}
		step := gputypes.VertexStepModeVertex
		if b.StepMode == gpucore.VertexStepModeInstance {
			step = gputypes.VertexStepModeInstance
		}
		out[i] = gputypes.VertexBufferLayout{ArrayStride: b.ArrayStride, StepMode: step, Attributes: attrs}
	}
	return out
}

func indexFormat(f gpucore.IndexFormat) gputypes.IndexFormat {
	if f == gpucore.IndexFormatUint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}
