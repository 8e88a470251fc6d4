package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// TextureID is an opaque handle to a GPU texture and its default view.
type TextureID uint64

// SamplerID is an opaque handle to a texture sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// BindGroupLayoutID is an opaque handle to a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID is an opaque handle to a bind group.
type BindGroupID uint64

// PipelineLayoutID is an opaque handle to a pipeline layout.
type PipelineLayoutID uint64

// RenderPipelineID is an opaque handle to a render pipeline.
type RenderPipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer can be mapped for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 4

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6
)

// Contains reports whether all bits of flag are set.
func (u BufferUsage) Contains(flag BufferUsage) bool { return u&flag == flag }

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatRGBA8UnormSRGB is 8-bit RGBA in sRGB color space.
	TextureFormatRGBA8UnormSRGB

	// TextureFormatBGRA8Unorm is 8-bit BGRA, normalized unsigned integer.
	TextureFormatBGRA8Unorm

	// TextureFormatBGRA8UnormSRGB is 8-bit BGRA in sRGB color space.
	TextureFormatBGRA8UnormSRGB

	// TextureFormatDepth32Float is a 32-bit floating point depth format.
	TextureFormatDepth32Float
)

var textureFormatNames = map[TextureFormat]string{
	TextureFormatRGBA8Unorm:     "rgba8unorm",
	TextureFormatRGBA8UnormSRGB: "rgba8unorm-srgb",
	TextureFormatBGRA8Unorm:     "bgra8unorm",
	TextureFormatBGRA8UnormSRGB: "bgra8unorm-srgb",
	TextureFormatDepth32Float:   "depth32float",
}

func (f TextureFormat) String() string {
	if s, ok := textureFormatNames[f]; ok {
		return s
	}
	return fmt.Sprintf("TextureFormat(%d)", uint32(f))
}

// IsSRGB reports whether the format applies the sRGB transfer function.
func (f TextureFormat) IsSRGB() bool {
	return f == TextureFormatRGBA8UnormSRGB || f == TextureFormatBGRA8UnormSRGB
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool { return f == TextureFormatDepth32Float }

// BytesPerPixel returns the texel size in bytes.
func (f TextureFormat) BytesPerPixel() int {
	if f == 0 {
		return 0
	}
	return 4
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageTextureBinding indicates the texture can be bound as a sampled texture.
	TextureUsageTextureBinding TextureUsage = 1 << 2

	// TextureUsageRenderAttachment indicates the texture can be used as a render target.
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// BindingType specifies the type of a shader binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeSampler is a filtering texture sampler binding.
	BindingTypeSampler

	// BindingTypeSampledTexture is a float sampled 2D texture binding.
	BindingTypeSampledTexture
)

// ShaderStage is a bitmask of shader stages that can see a binding.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 1 << 0
	ShaderStageFragment ShaderStage = 1 << 1
)

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Entries defines the bindings in this layout.
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry describes a single binding in a bind group layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Visibility ShaderStage
	Type       BindingType

	// MinBindingSize is the minimum buffer size for buffer bindings.
	// Set to 0 for non-buffer bindings.
	MinBindingSize uint64
}

// BindGroupEntry describes a single binding in a bind group.
// Exactly one of Buffer, Texture or Sampler is set.
type BindGroupEntry struct {
	Binding uint32

	Buffer BufferID
	Offset uint64
	// Size is the size of the buffer range to bind.
	// Use 0 to bind the entire buffer from offset.
	Size uint64

	Texture TextureID
	Sampler SamplerID
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	Label   string
	Layout  BindGroupLayoutID
	Entries []BindGroupEntry
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// TextureDesc describes a 2D texture with a single mip level.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	Usage  TextureUsage
}

// FilterMode selects texel filtering.
type FilterMode uint32

// Filter modes.
const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// AddressMode selects texture coordinate wrapping.
type AddressMode uint32

// Address modes.
const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
)

// SamplerDesc describes a sampler.
type SamplerDesc struct {
	Label       string
	MagFilter   FilterMode
	MinFilter   FilterMode
	AddressMode AddressMode
}

// ShaderSource carries a shader in the form the backend consumes. SPIR-V
// backends read SPIRV; WebGPU backends read WGSL.
type ShaderSource struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// IndexFormat is the element type of an index buffer.
type IndexFormat uint32

// Index formats.
const (
	IndexFormatUint16 IndexFormat = iota + 1
	IndexFormatUint32
)

// Size returns the index size in bytes.
func (f IndexFormat) Size() uint64 {
	switch f {
	case IndexFormatUint16:
		return 2
	case IndexFormatUint32:
		return 4
	}
	return 0
}

// RenderPipelineDesc describes a render pipeline with fixed triangle-list
// topology. DepthFormat 0 disables depth testing.
type RenderPipelineDesc struct {
	Label         string
	Layout        PipelineLayoutID
	Module        ShaderModuleID
	VertexEntry   string
	FragmentEntry string
	Buffers       []VertexBufferLayout
	ColorFormat   TextureFormat
	DepthFormat   TextureFormat
	CullBack      bool
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// RenderPassDesc describes a render pass with one color attachment and an
// optional depth attachment. Both attachments are cleared on load.
type RenderPassDesc struct {
	Label      string
	Color      TextureID
	ClearColor Color
	// Depth is InvalidID when the pass has no depth attachment.
	Depth      TextureID
	DepthClear float32
}

// Extent is a 2D size in physical pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero.
func (e Extent) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// Clamp returns e with each dimension raised to at least 1.
func (e Extent) Clamp() Extent {
	return Extent{Width: max(e.Width, 1), Height: max(e.Height, 1)}
}

func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// PresentMode selects how frames are queued for display.
type PresentMode uint32

// Present modes.
const (
	PresentModeFifo PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
)

// ParsePresentMode converts a config string to a PresentMode.
func ParsePresentMode(s string) (PresentMode, error) {
	switch s {
	case "", "fifo":
		return PresentModeFifo, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "immediate":
		return PresentModeImmediate, nil
	}
	return 0, fmt.Errorf("gpucore: unknown present mode %q", s)
}

func (m PresentMode) String() string {
	switch m {
	case PresentModeFifo:
		return "fifo"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeImmediate:
		return "immediate"
	}
	return fmt.Sprintf("PresentMode(%d)", uint32(m))
}

// SurfaceConfig is the applied configuration of a presentable surface.
type SurfaceConfig struct {
	Width       uint32
	Height      uint32
	Format      TextureFormat
	PresentMode PresentMode
}

// Size returns the configured size.
func (c SurfaceConfig) Size() Extent { return Extent{Width: c.Width, Height: c.Height} }

// Frame is an acquired surface texture. Texture is valid until the frame
// is presented or discarded.
type Frame struct {
	Texture    TextureID
	Width      uint32
	Height     uint32
	Suboptimal bool
}

// WindowHandle identifies the presentation target. Native hosts fill
// Display and Window with platform handles; the browser host fills Canvas
// with the DOM id of a canvas element.
type WindowHandle struct {
	Display uintptr
	Window  uintptr
	Canvas  string
}

// AdapterInfo describes the selected adapter.
type AdapterInfo struct {
	Name       string
	Backend    string
	DeviceType string
}

// Limits are the device limits the shell depends on.
type Limits struct {
	MaxTextureDimension2D uint32
	MaxBufferSize         uint64
	MaxBindGroups         uint32
	MaxVertexBuffers      uint32
	MaxVertexAttributes   uint32
}

// DefaultLimits returns the WebGPU baseline limits.
func DefaultLimits() Limits {
	return Limits{
		MaxTextureDimension2D: 8192,
		MaxBufferSize:         256 << 20,
		MaxBindGroups:         4,
		MaxVertexBuffers:      8,
		MaxVertexAttributes:   16,
	}
}

// Satisfies reports whether l meets every limit in required.
func (l Limits) Satisfies(required Limits) bool {
	return l.MaxTextureDimension2D >= required.MaxTextureDimension2D &&
		l.MaxBufferSize >= required.MaxBufferSize &&
		l.MaxBindGroups >= required.MaxBindGroups &&
		l.MaxVertexBuffers >= required.MaxVertexBuffers &&
		l.MaxVertexAttributes >= required.MaxVertexAttributes
}
