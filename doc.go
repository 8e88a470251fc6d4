// Package voxel is a cross-platform real-time rendering shell for voxel
// scenes. It opens a window (GLFW) or a browser canvas, initializes a GPU
// device and a presentable surface, uploads geometry and textures, and runs
// a per-frame loop that updates game state and issues draw commands.
//
// # Architecture
//
// The root package holds what every sub-package shares: the logger, the
// error taxonomy and the configuration. The work is split into:
//
//	gpucore/            opaque-ID GPU abstraction (Instance, Device, Surface)
//	backend/native      gogpu/wgpu HAL (Vulkan) implementation
//	backend/web         WebGPU implementation for js/wasm
//	backend/software    in-memory device for headless runs and tests
//	render/             GpuContext, SurfaceTarget, ResourceStore,
//	                    PipelineSet, FrameExecutor
//	app/                AppLoop state machine and async initialization
//	camera/, world/     game state feeding uniforms and instances
//	asset/, shader/     textures and WGSL sources
//	host/glfwhost       native window loop
//	host/webhost        browser canvas loop
//
// # Lifecycle
//
// A host constructs an app.Loop with an initialization task, forwards its
// events and ticks, and the loop moves through Uninitialized, Initializing,
// Running and ShuttingDown. No frame is recorded before Running. Resources
// are released in reverse creation order: pipelines, resource store,
// surface, GPU context.
//
// # Logging
//
// voxel is silent by default. Call [SetLogger] to route diagnostics to a
// [log/slog] handler.
//
// # Configuration
//
// [DefaultConfig], functional [Option] values and TOML files ([LoadConfig])
// produce a [Config].
package voxel
