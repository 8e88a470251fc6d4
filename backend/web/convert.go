//go:build js && wasm

package web

import (
	"github.com/mokiat/gog/opt"
	"github.com/mokiat/wasmgpu"

	"github.com/gogpu/voxel/gpucore"
)

func textureFormat(f gpucore.TextureFormat) wasmgpu.GPUTextureFormat {
	switch f {
	case gpucore.TextureFormatRGBA8Unorm:
		return wasmgpu.GPUTextureFormatRGBA8Unorm
	case gpucore.TextureFormatRGBA8UnormSRGB:
		return wasmgpu.GPUTextureFormatRGBA8UnormSRGB
	case gpucore.TextureFormatBGRA8Unorm:
		return wasmgpu.GPUTextureFormatBGRA8Unorm
	case gpucore.TextureFormatBGRA8UnormSRGB:
		return wasmgpu.GPUTextureFormatBGRA8UnormSRGB
	case gpucore.TextureFormatDepth32Float:
		return wasmgpu.GPUTextureFormatDepth32Float
	}
	return wasmgpu.GPUTextureFormatBGRA8Unorm
}

func bufferUsage(u gpucore.BufferUsage) wasmgpu.GPUBufferUsageFlags {
	var out wasmgpu.GPUBufferUsageFlags
	for _, m := range []struct {
		from gpucore.BufferUsage
		to   wasmgpu.GPUBufferUsageFlags
	}{
		{gpucore.BufferUsageMapRead, wasmgpu.GPUBufferUsageFlagsMapRead},
		{gpucore.BufferUsageMapWrite, wasmgpu.GPUBufferUsageFlagsMapWrite},
		{gpucore.BufferUsageCopySrc, wasmgpu.GPUBufferUsageFlagsCopySrc},
		{gpucore.BufferUsageCopyDst, wasmgpu.GPUBufferUsageFlagsCopyDst},
		{gpucore.BufferUsageIndex, wasmgpu.GPUBufferUsageFlagsIndex},
		{gpucore.BufferUsageVertex, wasmgpu.GPUBufferUsageFlagsVertex},
		{gpucore.BufferUsageUniform, wasmgpu.GPUBufferUsageFlagsUniform},
	} {
		if u.Contains(m.from) {
			out |= m.to
		}
	}
	return out
}

func textureUsage(u gpucore.TextureUsage) wasmgpu.GPUTextureUsageFlags {
	var out wasmgpu.GPUTextureUsageFlags
	if u&gpucore.TextureUsageCopySrc != 0 {
		out |= wasmgpu.GPUTextureUsageFlagsCopySrc
	}
	if u&gpucore.TextureUsageCopyDst != 0 {
		out |= wasmgpu.GPUTextureUsageFlagsCopyDst
	}
	if u&gpucore.TextureUsageTextureBinding != 0 {
		out |= wasmgpu.GPUTextureUsageFlagsTextureBinding
	}
	if u&gpucore.TextureUsageRenderAttachment != 0 {
		out |= wasmgpu.GPUTextureUsageFlagsRenderAttachment
	}
	return out
}

func layoutEntry(e gpucore.BindGroupLayoutEntry) wasmgpu.GPUBindGroupLayoutEntry {
	var vis wasmgpu.GPUShaderStageFlags
	if e.Visibility&gpucore.ShaderStageVertex != 0 {
		vis |= wasmgpu.GPUShaderStageFlagsVertex
	}
	if e.Visibility&gpucore.ShaderStageFragment != 0 {
		vis |= wasmgpu.GPUShaderStageFlagsFragment
	}
	out := wasmgpu.GPUBindGroupLayoutEntry{
		Binding:    wasmgpu.GPUIndex32(e.Binding),
		Visibility: vis,
	}
	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		out.Buffer = opt.V(wasmgpu.GPUBufferBindingLayout{
			Type:           opt.V(wasmgpu.GPUBufferBindingTypeUniform),
			MinBindingSize: opt.V(wasmgpu.GPUSize64(e.MinBindingSize)),
		})
	case gpucore.BindingTypeSampledTexture:
		out.Texture = opt.V(wasmgpu.GPUTextureBindingLayout{})
	case gpucore.BindingTypeSampler:
		out.Sampler = opt.V(wasmgpu.GPUSamplerBindingLayout{})
	}
	return out
}

func filterMode(f gpucore.FilterMode) wasmgpu.GPUFilterMode {
	if f == gpucore.FilterLinear {
		return wasmgpu.GPUFilterModeLinear
	}
	return wasmgpu.GPUFilterModeNearest
}

func addressMode(m gpucore.AddressMode) wasmgpu.GPUAddressMode {
	if m == gpucore.AddressRepeat {
		return wasmgpu.GPUAddressModeRepeat
	}
	return wasmgpu.GPUAddressModeClampToEdge
}

func vertexFormat(f gpucore.VertexFormat) wasmgpu.GPUVertexFormat {
	switch f {
	case gpucore.VertexFormatFloat32x2:
		return wasmgpu.GPUVertexFormatFloat32x2
	case gpucore.VertexFormatFloat32x3:
		return wasmgpu.GPUVertexFormatFloat32x3
	case gpucore.VertexFormatFloat32x4:
		return wasmgpu.GPUVertexFormatFloat32x4
	case gpucore.VertexFormatUint32:
		return wasmgpu.GPUVertexFormatUint32
	}
	return wasmgpu.GPUVertexFormatFloat32
}

func vertexLayouts(buffers []gpucore.VertexBufferLayout) []wasmgpu.GPUVertexBufferLayout {
	out := make([]wasmgpu.GPUVertexBufferLayout, len(buffers))
	for i, b := range buffers {
		attrs := make([]wasmgpu.GPUVertexAttribute, len(b.Attributes))
		for j, a := range b.Attributes {
			attrs[j] = wasmgpu.GPUVertexAttribute{
				ShaderLocation: wasmgpu.GPUIndex32(a.ShaderLocation),
				Format:         vertexFormat(a.Format),
				Offset:         wasmgpu.GPUSize64(a.Offset),
			}
		}
		step := wasmgpu.GPUVertexStepModeVertex
		if b.StepMode == gpucore.VertexStepModeInstance {
			step = wasmgpu.GPUVertexStepModeInstance
		}
		out[i] = wasmgpu.GPUVertexBufferLayout{
			ArrayStride: wasmgpu.GPUSize64(b.ArrayStride),
			StepMode:    opt.V(step),
			Attributes:  attrs,
		}
	}
	return out
}

func indexFormat(f gpucore.IndexFormat) wasmgpu.GPUIndexFormat {
	if f == gpucore.IndexFormatUint32 {
		return wasmgpu.GPUIndexFormatUint32
	}
	return wasmgpu.GPUIndexFormatUint16
}
