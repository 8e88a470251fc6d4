//go:build js && wasm

package web

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall/js"

	"github.com/mokiat/gog/opt"
	"github.com/mokiat/wasmgpu"

	"github.com/gogpu/voxel/gpucore"
)

type buffer struct {
	buf  wasmgpu.GPUBuffer
	desc gpucore.BufferDesc
}

type texture struct {
	tex  wasmgpu.GPUTexture
	view wasmgpu.GPUTextureView
	desc gpucore.TextureDesc
	// frame textures come from the canvas and are never destroyed here.
	frame bool
}

// Device maps gpucore IDs to wasmgpu objects.
type Device struct {
	js     js.Value
	device wasmgpu.GPUDevice
	queue  *Queue
	limits gpucore.Limits

	mu        sync.RWMutex
	destroyed bool
	nextID    atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	textures         map[gpucore.TextureID]*texture
	samplers         map[gpucore.SamplerID]wasmgpu.GPUSampler
	shaderModules    map[gpucore.ShaderModuleID]wasmgpu.GPUShaderModule
	bindGroupLayouts map[gpucore.BindGroupLayoutID]wasmgpu.GPUBindGroupLayout
	bindGroups       map[gpucore.BindGroupID]wasmgpu.GPUBindGroup
	pipelineLayouts  map[gpucore.PipelineLayoutID]wasmgpu.GPUPipelineLayout
	pipelines        map[gpucore.RenderPipelineID]wasmgpu.GPURenderPipeline
}

func newDevice(v js.Value, limits gpucore.Limits) *Device {
	d := &Device{
		js:               v,
		device:           wasmgpu.NewDevice(v),
		limits:           limits,
		buffers:          make(map[gpucore.BufferID]*buffer),
		textures:         make(map[gpucore.TextureID]*texture),
		samplers:         make(map[gpucore.SamplerID]wasmgpu.GPUSampler),
		shaderModules:    make(map[gpucore.ShaderModuleID]wasmgpu.GPUShaderModule),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]wasmgpu.GPUBindGroupLayout),
		bindGroups:       make(map[gpucore.BindGroupID]wasmgpu.GPUBindGroup),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]wasmgpu.GPUPipelineLayout),
		pipelines:        make(map[gpucore.RenderPipelineID]wasmgpu.GPURenderPipeline),
	}
	d.nextID.Store(1)
	d.queue = &Queue{device: d, queue: d.device.Queue(), js: v.Get("queue")}
	return d
}

func (d *Device) newID() uint64 { return d.nextID.Add(1) - 1 }

// Limits returns the adapter limits.
func (d *Device) Limits() gpucore.Limits { return d.limits }

// Queue returns the device queue.
func (d *Device) Queue() gpucore.Queue { return d.queue }

// CreateBuffer creates a GPUBuffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer size must be positive", gpucore.ErrInvalidDescriptor)
	}
	buf := d.device.CreateBuffer(wasmgpu.GPUBufferDescriptor{
		Size:  wasmgpu.GPUSize64(desc.Size),
		Usage: bufferUsage(desc.Usage),
	})
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
		b.buf.Destroy()
	}
}

// CreateTexture creates a texture and its default view.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: texture dimensions must be positive", gpucore.ErrInvalidDescriptor)
	}
	tex := d.device.CreateTexture(wasmgpu.GPUTextureDescriptor{
		Size: wasmgpu.GPUExtent3D{
			Width:  wasmgpu.GPUIntegerCoordinate(desc.Width),
			Height: opt.V(wasmgpu.GPUIntegerCoordinate(desc.Height)),
		},
		Format: textureFormat(desc.Format),
		Usage:  textureUsage(desc.Usage),
	})
	return d.addTexture(&texture{tex: tex, view: tex.CreateView(), desc: *desc}), nil
}

func (d *Device) addTexture(t *texture) gpucore.TextureID {
	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = t
	d.mu.Unlock()
	return id
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok && !t.frame {
		t.tex.Destroy()
	}
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	mode := addressMode(desc.AddressMode)
	s := d.device.CreateSampler(opt.V(wasmgpu.GPUSamplerDescriptor{
		AddressModeU: opt.V(mode),
		AddressModeV: opt.V(mode),
		MagFilter:    opt.V(filterMode(desc.MagFilter)),
		MinFilter:    opt.V(filterMode(desc.MinFilter)),
	}))
	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = s
	d.mu.Unlock()
	return id, nil
}

// DestroySampler forgets a sampler; the browser collects it.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	delete(d.samplers, id)
	d.mu.Unlock()
}

// CreateShaderModule creates a module from WGSL. Browsers do not accept
// SPIR-V.
func (d *Device) CreateShaderModule(src *gpucore.ShaderSource) (gpucore.ShaderModuleID, error) {
	if src == nil || src.WGSL == "" {
		return gpucore.InvalidID, fmt.Errorf("%w: browser shaders need WGSL", gpucore.ErrInvalidDescriptor)
	}
	m := d.device.CreateShaderModule(wasmgpu.GPUShaderModuleDescriptor{Code: src.WGSL})
	id := gpucore.ShaderModuleID(d.newID())
	d.mu.Lock()
	d.shaderModules[id] = m
	d.mu.Unlock()
	return id, nil
}

// DestroyShaderModule forgets a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	delete(d.shaderModules, id)
	d.mu.Unlock()
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]wasmgpu.GPUBindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = layoutEntry(e)
	}
	l := d.device.CreateBindGroupLayout(wasmgpu.GPUBindGroupLayoutDescriptor{Entries: entries})
	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.bindGroupLayouts[id] = l
	d.mu.Unlock()
	return id, nil
}

// DestroyBindGroupLayout forgets a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	delete(d.bindGroupLayouts, id)
	d.mu.Unlock()
}

// CreateBindGroup creates a bind group.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.mu.RLock()
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		d.mu.RUnlock()
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	entries := make([]wasmgpu.GPUBindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		var res wasmgpu.GPUBindingResource
		switch {
		case e.Buffer != gpucore.InvalidID:
			b, ok := d.buffers[e.Buffer]
			if !ok {
				d.mu.RUnlock()
				return gpucore.InvalidID, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, e.Buffer)
			}
			binding := wasmgpu.GPUBufferBinding{Buffer: b.buf, Offset: opt.V(wasmgpu.GPUSize64(e.Offset))}
			if e.Size != 0 {
				binding.Size = opt.V(wasmgpu.GPUSize64(e.Size))
			}
			res = binding
		case e.Texture != gpucore.InvalidID:
			t, ok := d.textures[e.Texture]
			if !ok {
				d.mu.RUnlock()
				return gpucore.InvalidID, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, e.Texture)
			}
			res = t.view
		case e.Sampler != gpucore.InvalidID:
			s, ok := d.samplers[e.Sampler]
			if !ok {
				d.mu.RUnlock()
				return gpucore.InvalidID, fmt.Errorf("%w: sampler %d", gpucore.ErrUnknownResource, e.Sampler)
			}
			res = s
		default:
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: binding %d has no resource", gpucore.ErrInvalidDescriptor, e.Binding)
		}
		entries = append(entries, wasmgpu.GPUBindGroupEntry{Binding: wasmgpu.GPUIndex32(e.Binding), Resource: res})
	}
	d.mu.RUnlock()

	g := d.device.CreateBindGroup(wasmgpu.GPUBindGroupDescriptor{Layout: layout, Entries: entries})
	id := gpucore.BindGroupID(d.newID())
	d.mu.Lock()
	d.bindGroups[id] = g
	d.mu.Unlock()
	return id, nil
}

// DestroyBindGroup forgets a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	delete(d.bindGroups, id)
	d.mu.Unlock()
}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(_ string, layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	groups := make([]wasmgpu.GPUBindGroupLayout, len(layouts))
	d.mu.RLock()
	for i, id := range layouts {
		l, ok := d.bindGroupLayouts[id]
		if !ok {
			d.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, id)
		}
		groups[i] = l
	}
	d.mu.RUnlock()

	pl := d.device.CreatePipelineLayout(wasmgpu.GPUPipelineLayoutDescriptor{BindGroupLayouts: groups})
	id := gpucore.PipelineLayoutID(d.newID())
	d.mu.Lock()
	d.pipelineLayouts[id] = pl
	d.mu.Unlock()
	return id, nil
}

// DestroyPipelineLayout forgets a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()
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
	if !okLayout || !okModule {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline %q layout or module", gpucore.ErrUnknownResource, desc.Label)
	}

	cull := wasmgpu.GPUCullModeNone
	if desc.CullBack {
		cull = wasmgpu.GPUCullModeBack
	}
	pd := wasmgpu.GPURenderPipelineDescriptor{
		Layout: opt.V(layout),
		Vertex: wasmgpu.GPUVertexState{
			Module:     module,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexLayouts(desc.Buffers),
		},
		Fragment: opt.V(wasmgpu.GPUFragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntry,
			Targets:    []wasmgpu.GPUColorTargetState{{Format: textureFormat(desc.ColorFormat)}},
		}),
		Primitive: opt.V(wasmgpu.GPUPrimitiveState{
			Topology: opt.V(wasmgpu.GPUPrimitiveTopologyTriangleList),
			CullMode: opt.V(cull),
		}),
	}
	if desc.DepthFormat != 0 {
		pd.DepthStencil = opt.V(wasmgpu.GPUDepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: true,
			DepthCompare:      wasmgpu.GPUCompareFunctionLess,
		})
	}
	p := d.device.CreateRenderPipeline(pd)
	id := gpucore.RenderPipelineID(d.newID())
	d.mu.Lock()
	d.pipelines[id] = p
	d.mu.Unlock()
	return id, nil
}

// DestroyRenderPipeline forgets a render pipeline.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	d.mu.Lock()
	delete(d.pipelines, id)
	d.mu.Unlock()
}

// CreateCommandEncoder starts recording.
func (d *Device) CreateCommandEncoder(label string) (gpucore.CommandEncoder, error) {
	d.mu.RLock()
	destroyed := d.destroyed
	d.mu.RUnlock()
	if destroyed {
		return nil, fmt.Errorf("web: device destroyed")
	}
	return &CommandEncoder{device: d, enc: d.device.CreateCommandEncoder(), label: label}, nil
}

// Destroy calls GPUDevice.destroy.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.mu.Unlock()
	d.js.Call("destroy")
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
