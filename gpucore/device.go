package gpucore

import "context"

// Backend creates GPU instances. Backends register themselves with the
// backend package under a unique name.
type Backend interface {
	// Name returns the backend identifier (e.g. "native", "web", "software").
	Name() string

	// CreateInstance creates the root GPU object.
	CreateInstance() (Instance, error)
}

// Instance is the entry point to a GPU API.
type Instance interface {
	// CreateSurface binds a presentable surface to a window or canvas.
	CreateSurface(window WindowHandle) (Surface, error)

	// RequestAdapter selects an adapter able to present to compatible.
	// compatible may be nil for headless use. On the browser backend this
	// waits on a JS promise and returns early when ctx is cancelled.
	RequestAdapter(ctx context.Context, compatible Surface) (Adapter, error)

	// Destroy releases the instance. All devices must be destroyed first.
	Destroy()
}

// Adapter is one physical or virtual GPU.
type Adapter interface {
	Info() AdapterInfo
	Limits() Limits

	// SurfaceFormats returns the formats the adapter can present to s,
	// in order of preference. Empty means s is not presentable.
	SurfaceFormats(s Surface) []TextureFormat

	// RequestDevice opens a logical device meeting required.
	RequestDevice(ctx context.Context, required Limits) (Device, error)
}

// Device creates and destroys GPU resources.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying an unknown or already destroyed ID is a no-op
//   - IDs become invalid after destruction and are never reused
//
// Implementations must be safe for concurrent use.
type Device interface {
	Limits() Limits
	Queue() Queue

	CreateBuffer(desc *BufferDesc) (BufferID, error)
	DestroyBuffer(id BufferID)

	// CreateTexture creates a texture together with its default view.
	CreateTexture(desc *TextureDesc) (TextureID, error)
	DestroyTexture(id TextureID)

	CreateSampler(desc *SamplerDesc) (SamplerID, error)
	DestroySampler(id SamplerID)

	CreateShaderModule(src *ShaderSource) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)

	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)
	DestroyBindGroupLayout(id BindGroupLayoutID)

	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)
	DestroyBindGroup(id BindGroupID)

	CreatePipelineLayout(label string, layouts []BindGroupLayoutID) (PipelineLayoutID, error)
	DestroyPipelineLayout(id PipelineLayoutID)

	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipelineID, error)
	DestroyRenderPipeline(id RenderPipelineID)

	// CreateCommandEncoder starts recording a command buffer.
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Destroy releases the device. Resources still alive are leaked.
	Destroy()
}

// Queue executes command buffers and transfers data.
type Queue interface {
	// WriteBuffer enqueues a copy of data into the buffer at offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// WriteTexture uploads tightly packed texel rows covering the whole
	// texture.
	WriteTexture(id TextureID, data []byte, width, height uint32) error

	// ReadBuffer copies size bytes at offset back to the CPU. The buffer
	// needs BufferUsageCopySrc. This stalls until the GPU is idle.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// Submit enqueues a finished command buffer and returns its submission
	// index. Indices start at 1 and increase by one per submission.
	Submit(cb CommandBuffer) (uint64, error)

	// Completed returns the highest submission index whose work has
	// finished. It never blocks.
	Completed() uint64

	// WaitIdle blocks until every submitted command buffer has completed.
	WaitIdle() error

	// Present queues an acquired frame for display.
	Present(s Surface, f Frame) error
}

// CommandEncoder records one command buffer.
// The encoder is single-use and cannot be reused after Finish or Discard.
type CommandEncoder interface {
	BeginRenderPass(desc *RenderPassDesc) (RenderPassEncoder, error)
	Finish() (CommandBuffer, error)
	Discard()
}

// CommandBuffer is a finished recording ready for Queue.Submit.
type CommandBuffer interface {
	// Label returns the debug label given to the encoder.
	Label() string
}

// RenderPassEncoder records draw commands inside a render pass.
type RenderPassEncoder interface {
	SetPipeline(id RenderPipelineID)
	SetBindGroup(index uint32, group BindGroupID)
	SetVertexBuffer(slot uint32, buffer BufferID, offset uint64)
	SetIndexBuffer(buffer BufferID, format IndexFormat, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// End finishes the pass. Errors found while recording are reported here.
	End() error
}

// Surface is a presentable target bound to a window or canvas.
type Surface interface {
	// Configure (re)applies cfg. Any acquired frame must be presented or
	// discarded first.
	Configure(d Device, cfg SurfaceConfig) error

	// Acquire returns the next frame. Transient failures wrap
	// ErrSurfaceLost or ErrSurfaceOutdated.
	Acquire() (Frame, error)

	// Discard releases an acquired frame without presenting it.
	Discard(f Frame)

	Destroy()
}
