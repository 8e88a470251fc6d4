// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/voxel/gpucore"
)

type buffer struct {
	buf  hal.Buffer
	desc gpucore.BufferDesc
}

type texture struct {
	tex  hal.Texture
	view hal.TextureView
	desc gpucore.TextureDesc
	// frame textures belong to the surface; only the view is ours.
	frame bool
}

// Device maps gpucore IDs to HAL objects.
//
// Thread safety: the maps are guarded by mu. HAL destroy calls are made
// outside the lock.
type Device struct {
	device hal.Device
	queue  *Queue
	limits gpucore.Limits

	mu        sync.RWMutex
	destroyed bool
	nextID    atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	textures         map[gpucore.TextureID]*texture
	samplers         map[gpucore.SamplerID]hal.Sampler
	shaderModules    map[gpucore.ShaderModuleID]hal.ShaderModule
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	pipelines        map[gpucore.RenderPipelineID]hal.RenderPipeline
}

func newDevice(device hal.Device, queue hal.Queue, limits gpucore.Limits) *Device {
	d := &Device{
		device:           device,
		limits:           limits,
		buffers:          make(map[gpucore.BufferID]*buffer),
		textures:         make(map[gpucore.TextureID]*texture),
		samplers:         make(map[gpucore.SamplerID]hal.Sampler),
		shaderModules:    make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		pipelines:        make(map[gpucore.RenderPipelineID]hal.RenderPipeline),
	}
	d.nextID.Store(1)
	d.queue = &Queue{device: d, queue: queue}
	return d
}

// NewDevice wraps an already opened HAL device and queue.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return newDevice(device, queue, limitsFrom(gputypes.DefaultLimits()))
}

func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// HAL returns the wrapped device.
func (d *Device) HAL() hal.Device { return d.device }

// Limits returns the limits the device was opened with.
func (d *Device) Limits() gpucore.Limits { return d.limits }

// Queue returns the device queue.
func (d *Device) Queue() gpucore.Queue { return d.queue }

// Live returns the number of tracked resources.
func (d *Device) Live() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers) + len(d.textures) + len(d.samplers) + len(d.shaderModules) +
		len(d.bindGroupLayouts) + len(d.bindGroups) + len(d.pipelineLayouts) + len(d.pipelines)
}

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer size must be positive", gpucore.ErrInvalidDescriptor)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}
	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{buf: buf, desc: *desc}
	d.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBuffer(b.buf)
	}
}

// CreateTexture creates a 2D texture and its default view.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: texture dimensions must be positive", gpucore.ErrInvalidDescriptor)
	}
	format := textureFormat(desc.Format)
	if format == gputypes.TextureFormatUndefined {
		return gpucore.InvalidID, fmt.Errorf("%w: texture format %v", gpucore.ErrInvalidDescriptor, desc.Format)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return gpucore.InvalidID, fmt.Errorf("native: create view for %q: %w", desc.Label, err)
	}
	return d.addTexture(&texture{tex: tex, view: view, desc: *desc}), nil
}

func (d *Device) addTexture(t *texture) gpucore.TextureID {
	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = t
	d.mu.Unlock()
	return id
}

// DestroyTexture releases a texture and its view.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if !ok {
		return
	}
	d.device.DestroyTextureView(t.view)
	if !t.frame {
		d.device.DestroyTexture(t.tex)
	}
}

// CreateSampler creates a sampler without mipmaps.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	mode := addressMode(desc.AddressMode)
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: mode,
		AddressModeV: mode,
		AddressModeW: mode,
		MagFilter:    filterMode(desc.MagFilter),
		MinFilter:    filterMode(desc.MinFilter),
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create sampler %q: %w", desc.Label, err)
	}
	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = s
	d.mu.Unlock()
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	s, ok := d.samplers[id]
	delete(d.samplers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroySampler(s)
	}
}

// CreateShaderModule creates a shader module. SPIR-V is preferred when
// both forms are present.
func (d *Device) CreateShaderModule(src *gpucore.ShaderSource) (gpucore.ShaderModuleID, error) {
	if src == nil || (src.WGSL == "" && len(src.SPIRV) == 0) {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader source", gpucore.ErrInvalidDescriptor)
	}
	source := hal.ShaderSource{SPIRV: src.SPIRV}
	if len(src.SPIRV) == 0 {
		source = hal.ShaderSource{WGSL: src.WGSL}
	}
	m, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Label,
		Source: source,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader module %q: %w", src.Label, err)
	}
	id := gpucore.ShaderModuleID(d.newID())
	d.mu.Lock()
	d.shaderModules[id] = m
	d.mu.Unlock()
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	m, ok := d.shaderModules[id]
	delete(d.shaderModules, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyShaderModule(m)
	}
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = layoutEntry(e)
	}
	l, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.bindGroupLayouts[id] = l
	d.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	l, ok := d.bindGroupLayouts[id]
	delete(d.bindGroupLayouts, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBindGroupLayout(l)
	}
}

// CreateBindGroup creates a bind group. Every entry must reference a
// live resource.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.RLock()
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		d.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	entries := make([]gputypes.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry, err := d.bindGroupEntryLocked(e)
		if err != nil {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("native: bind group %q: %w", desc.Label, err)
		}
		entries = append(entries, entry)
	}
	d.mu.RUnlock()

	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group %q: %w", desc.Label, err)
	}
	id := gpucore.BindGroupID(d.newID())
	d.mu.Lock()
	d.bindGroups[id] = g
	d.mu.Unlock()
	return id, nil
}

// bindGroupEntryLocked converts e. Must be called with mu held.
func (d *Device) bindGroupEntryLocked(e gpucore.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	out := gputypes.BindGroupEntry{Binding: e.Binding}
	switch {
	case e.Buffer != gpucore.InvalidID:
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return out, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, e.Buffer)
		}
		out.Resource = gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: e.Offset, Size: e.Size}
	case e.Texture != gpucore.InvalidID:
		t, ok := d.textures[e.Texture]
		if !ok {
			return out, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, e.Texture)
		}
		out.Resource = gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}
	case e.Sampler != gpucore.InvalidID:
		s, ok := d.samplers[e.Sampler]
		if !ok {
			return out, fmt.Errorf("%w: sampler %d", gpucore.ErrUnknownResource, e.Sampler)
		}
		out.Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
	default:
		return out, fmt.Errorf("%w: binding %d has no resource", gpucore.ErrInvalidDescriptor, e.Binding)
	}
	return out, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	g, ok := d.bindGroups[id]
	delete(d.bindGroups, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBindGroup(g)
	}
}

// CreatePipelineLayout creates a pipeline layout from bind group layouts
// in group order.
func (d *Device) CreatePipelineLayout(label string, layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	halLayouts := make([]hal.BindGroupLayout, len(layouts))
	d.mu.RLock()
	for i, id := range layouts {
		l, ok := d.bindGroupLayouts[id]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, id)
		}
		halLayouts[i] = l
	}
	d.mu.RUnlock()

	pl, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: halLayouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout %q: %w", label, err)
	}
	id := gpucore.PipelineLayoutID(d.newID())
	d.mu.Lock()
	d.pipelineLayouts[id] = pl
	d.mu.Unlock()
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	pl, ok := d.pipelineLayouts[id]
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyPipelineLayout(pl)
	}
}

// CreateRenderPipeline creates a triangle-list render pipeline.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if err := gpucore.ValidateVertexLayout(desc.Buffers, d.limits); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.RLock()
	layout, okLayout := d.pipelineLayouts[desc.Layout]
	module, okModule := d.shaderModules[desc.Module]
	d.mu.RUnlock()
	if !okLayout {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	if !okModule {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.Module)
	}

	cull := gputypes.CullModeNone
	if desc.CullBack {
		cull = gputypes.CullModeBack
	}
	halDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexLayouts(desc.Buffers),
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    textureFormat(desc.ColorFormat),
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  cull,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if desc.DepthFormat != 0 {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		halDesc.DepthStencil = &hal.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}

	p, err := d.device.CreateRenderPipeline(halDesc)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create render pipeline %q: %w", desc.Label, err)
	}
	id := gpucore.RenderPipelineID(d.newID())
	d.mu.Lock()
	d.pipelines[id] = p
	d.mu.Unlock()
	return id, nil
}

// DestroyRenderPipeline releases a render pipeline.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	d.mu.Lock()
	p, ok := d.pipelines[id]
	delete(d.pipelines, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyRenderPipeline(p)
	}
}

// CreateCommandEncoder starts a command buffer.
func (d *Device) CreateCommandEncoder(label string) (gpucore.CommandEncoder, error) {
	d.mu.RLock()
	destroyed := d.destroyed
	d.mu.RUnlock()
	if destroyed {
		return nil, fmt.Errorf("native: device destroyed")
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	return &CommandEncoder{device: d, enc: enc, label: label}, nil
}

// Destroy waits for the queue, then releases the device. Resources still
// tracked are leaked and logged.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.mu.Unlock()

	if err := d.queue.WaitIdle(); err != nil {
		slogger().Warn("native: wait idle on destroy", "err", err)
	}
	d.queue.releaseInflight()
	if n := d.Live(); n > 0 {
		slogger().Warn("native: device destroyed with live resources", "count", n)
	}
	d.device.Destroy()
}

func (d *Device) buffer(id gpucore.BufferID) (*buffer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.buffers[id]
	return b, ok
}

func (d *Device) texture(id gpucore.TextureID) (*texture, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.textures[id]
	return t, ok
}
