// Package backend is the registry of GPU backends.
//
// Backends implement gpucore.Backend and register themselves from init()
// functions, so a binary links in exactly the backends it imports:
//
//	import (
//		_ "github.com/gogpu/voxel/backend/native"   // desktop (Vulkan)
//		_ "github.com/gogpu/voxel/backend/software" // headless fallback
//	)
//
// # Backend Selection
//
// Use Default() to get the best available backend, Get() to request a
// specific backend by name, or Select() to honor a configured name:
//
//	b, err := backend.Select(cfg.Render.Backend)
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL on Vulkan (not js/wasm)
//   - "web": WebGPU via the browser (js/wasm only)
//   - "software": in-memory device, always available
package backend
