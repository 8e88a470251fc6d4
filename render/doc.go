// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render implements the render-state lifecycle on top of gpucore.
//
// # Components
//
//   - Context: GPU instance, adapter, device and queue. One per process.
//   - SurfaceTarget: the presentable surface and its configuration.
//   - ResourceStore: buffers, textures, bind groups and the depth texture.
//   - PipelineSet: compiled shader pipelines with fixed depth/blend state.
//   - FrameExecutor: acquires, records, submits and presents each frame.
//
// # Ownership
//
// Each GPU object has exactly one owner. Other components refer to it by
// ID or Handle and never destroy it. Components are created in the order
// Context, SurfaceTarget, ResourceStore, PipelineSet and released in the
// reverse order:
//
//	gpu, _ := render.NewContext(ctx, b, render.WithWindow(h))
//	surface, _ := render.ConfigureSurface(gpu, gpu.TakeSurface(), size)
//	store := render.NewResourceStore(gpu)
//	surface.OnResize(store.RebuildDepthTexture)
//	pipelines := render.NewPipelineSet(gpu)
//	p, _ := pipelines.Build(surface.Format(), desc)
//	...
//	pipelines.Release()
//	store.Release()
//	surface.Release()
//	gpu.Release()
//
// # Frame Protocol
//
// FrameExecutor.Tick runs one frame: acquire (reconfigure and retry once
// on a lost or outdated surface), update uniforms, record one pass with
// draws in insertion order, submit, present. Ticks are serialized.
//
// Size-dependent objects are derived from the surface size. The depth
// texture is rebuilt after every resize and the old one is destroyed only
// after the queue reports the last submission that used it complete.
package render
