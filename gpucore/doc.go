// Package gpucore provides the GPU abstraction the voxel renderer is
// written against.
//
// The [Instance], [Adapter], [Device], [Queue] and [Surface] interfaces
// abstract over the backend implementations, allowing the same render code
// to run on:
//   - gogpu/wgpu HAL (backend/native, Vulkan on desktop)
//   - WebGPU in the browser (backend/web, js/wasm)
//   - an in-memory device (backend/software, headless runs and tests)
//
// Layering:
//
//	               +-----------------+
//	               |     render      |
//	               | (FrameExecutor) |
//	               +--------+--------+
//	                        |
//	                  gpucore.Device
//	                        |
//	      +-----------------+-----------------+
//	      |                 |                 |
//	+-----v-----+     +-----v-----+     +-----v-----+
//	|  native   |     |    web    |     | software  |
//	| (hal.*)   |     | (wasmgpu) |     | (memory)  |
//	+-----------+     +-----------+     +-----------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [TextureID], etc.).
// Devices map IDs to backend objects and are responsible for destroying the
// backend object when the ID is destroyed. The zero ID ([InvalidID]) never
// names a resource.
//
// # Submission Ordering
//
// [Queue.Submit] returns monotonically increasing submission indices and
// [Queue.Completed] reports how far the GPU has progressed. Callers use the
// pair to defer destruction of resources referenced by in-flight frames.
package gpucore
