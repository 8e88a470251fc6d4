package software

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/voxel/gpucore"
)

type buffer struct {
	desc gpucore.BufferDesc
	data []byte
}

type texture struct {
	desc gpucore.TextureDesc
	data []byte
	// frame is set for textures owned by an acquired surface frame.
	frame bool
}

type renderPipeline struct {
	desc gpucore.RenderPipelineDesc
}

type bindGroup struct {
	desc gpucore.BindGroupDesc
}

// Device is the software gpucore.Device. All state lives in maps guarded
// by a single mutex.
type Device struct {
	backend *Backend
	queue   *Queue

	mu        sync.RWMutex
	destroyed bool
	nextID    atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	textures         map[gpucore.TextureID]*texture
	samplers         map[gpucore.SamplerID]gpucore.SamplerDesc
	shaderModules    map[gpucore.ShaderModuleID]gpucore.ShaderSource
	bindGroupLayouts map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc
	bindGroups       map[gpucore.BindGroupID]*bindGroup
	pipelineLayouts  map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID
	pipelines        map[gpucore.RenderPipelineID]*renderPipeline
}

func newDevice(b *Backend) *Device {
	d := &Device{
		backend:          b,
		buffers:          make(map[gpucore.BufferID]*buffer),
		textures:         make(map[gpucore.TextureID]*texture),
		samplers:         make(map[gpucore.SamplerID]gpucore.SamplerDesc),
		shaderModules:    make(map[gpucore.ShaderModuleID]gpucore.ShaderSource),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]gpucore.BindGroupLayoutDesc),
		bindGroups:       make(map[gpucore.BindGroupID]*bindGroup),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID][]gpucore.BindGroupLayoutID),
		pipelines:        make(map[gpucore.RenderPipelineID]*renderPipeline),
	}
	d.nextID.Store(1)
	d.queue = &Queue{device: d, manual: b.manualCompletion}
	b.live.Add(1)
	return d
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

func (d *Device) track() { d.backend.live.Add(1) }

func (d *Device) untrack() { d.backend.live.Add(-1) }

// Limits returns the adapter limits.
func (d *Device) Limits() gpucore.Limits { return d.backend.limits }

// Queue returns the device queue.
func (d *Device) Queue() gpucore.Queue { return d.queue }

// SoftwareQueue returns the queue with its inspection methods.
func (d *Device) SoftwareQueue() *Queue { return d.queue }

// CreateBuffer creates a zero-filled buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer size must be positive", gpucore.ErrInvalidDescriptor)
	}
	if desc.Size > d.backend.limits.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer size %d exceeds limit", gpucore.ErrInvalidDescriptor, desc.Size)
	}
	id := gpucore.BufferID(d.newID())
	d.mu.Lock()
	d.buffers[id] = &buffer{desc: *desc, data: make([]byte, desc.Size)}
	d.mu.Unlock()
	d.track()
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	_, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateTexture creates a texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: texture dimensions must be positive", gpucore.ErrInvalidDescriptor)
	}
	maxDim := d.backend.limits.MaxTextureDimension2D
	if desc.Width > maxDim || desc.Height > maxDim {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %dx%d exceeds %d",
			gpucore.ErrInvalidDescriptor, desc.Width, desc.Height, maxDim)
	}
	return d.addTexture(&texture{desc: *desc}), nil
}

func (d *Device) addTexture(t *texture) gpucore.TextureID {
	id := gpucore.TextureID(d.newID())
	d.mu.Lock()
	d.textures[id] = t
	d.mu.Unlock()
	d.track()
	return id
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	_, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil sampler descriptor", gpucore.ErrInvalidDescriptor)
	}
	id := gpucore.SamplerID(d.newID())
	d.mu.Lock()
	d.samplers[id] = *desc
	d.mu.Unlock()
	d.track()
	return id, nil
}

// DestroySampler releases a sampler.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	_, ok := d.samplers[id]
	delete(d.samplers, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateShaderModule accepts any non-empty WGSL or SPIR-V source.
func (d *Device) CreateShaderModule(src *gpucore.ShaderSource) (gpucore.ShaderModuleID, error) {
	if src == nil || (src.WGSL == "" && len(src.SPIRV) == 0) {
		return gpucore.InvalidID, fmt.Errorf("%w: empty shader source", gpucore.ErrInvalidDescriptor)
	}
	id := gpucore.ShaderModuleID(d.newID())
	d.mu.Lock()
	d.shaderModules[id] = *src
	d.mu.Unlock()
	d.track()
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	_, ok := d.shaderModules[id]
	delete(d.shaderModules, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateBindGroupLayout creates a bind group layout.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil bind group layout descriptor", gpucore.ErrInvalidDescriptor)
	}
	id := gpucore.BindGroupLayoutID(d.newID())
	d.mu.Lock()
	d.bindGroupLayouts[id] = *desc
	d.mu.Unlock()
	d.track()
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	_, ok := d.bindGroupLayouts[id]
	delete(d.bindGroupLayouts, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateBindGroup creates a bind group. Every entry must name a live
// resource of the type its layout declares.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil bind group descriptor", gpucore.ErrInvalidDescriptor)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	if len(layout.Entries) != len(desc.Entries) {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group has %d entries, layout %d",
			gpucore.ErrInvalidDescriptor, len(desc.Entries), len(layout.Entries))
	}
	for i, entry := range desc.Entries {
		var live bool
		switch layout.Entries[i].Type {
		case gpucore.BindingTypeUniformBuffer:
			buf, ok := d.buffers[entry.Buffer]
			live = ok && buf.desc.Usage.Contains(gpucore.BufferUsageUniform)
		case gpucore.BindingTypeSampledTexture:
			_, live = d.textures[entry.Texture]
		case gpucore.BindingTypeSampler:
			_, live = d.samplers[entry.Sampler]
		}
		if !live {
			return gpucore.InvalidID, fmt.Errorf("%w: binding %d", gpucore.ErrUnknownResource, entry.Binding)
		}
	}

	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = &bindGroup{desc: *desc}
	d.track()
	return id, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	_, ok := d.bindGroups[id]
	delete(d.bindGroups, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(_ string, layouts []gpucore.BindGroupLayoutID) (gpucore.PipelineLayoutID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range layouts {
		if _, ok := d.bindGroupLayouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", gpucore.ErrUnknownResource, l)
		}
	}
	id := gpucore.PipelineLayoutID(d.newID())
	d.pipelineLayouts[id] = append([]gpucore.BindGroupLayoutID(nil), layouts...)
	d.track()
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	_, ok := d.pipelineLayouts[id]
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateRenderPipeline creates a render pipeline.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil render pipeline descriptor", gpucore.ErrInvalidDescriptor)
	}
	if err := gpucore.ValidateVertexLayout(desc.Buffers, d.backend.limits); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelineLayouts[desc.Layout]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", gpucore.ErrUnknownResource, desc.Layout)
	}
	if _, ok := d.shaderModules[desc.Module]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", gpucore.ErrUnknownResource, desc.Module)
	}
	id := gpucore.RenderPipelineID(d.newID())
	d.pipelines[id] = &renderPipeline{desc: *desc}
	d.track()
	return id, nil
}

// DestroyRenderPipeline releases a render pipeline.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	d.mu.Lock()
	_, ok := d.pipelines[id]
	delete(d.pipelines, id)
	d.mu.Unlock()
	if ok {
		d.untrack()
	}
}

// CreateCommandEncoder starts a recording.
func (d *Device) CreateCommandEncoder(label string) (gpucore.CommandEncoder, error) {
	d.mu.RLock()
	destroyed := d.destroyed
	d.mu.RUnlock()
	if destroyed {
		return nil, fmt.Errorf("software: device destroyed")
	}
	return &CommandEncoder{device: d, label: label}, nil
}

// Destroy releases the device. Resources still alive stay counted by
// Backend.Live so leaks remain visible.
func (d *Device) Destroy() {
	d.mu.Lock()
	already := d.destroyed
	d.destroyed = true
	d.mu.Unlock()
	if !already {
		d.untrack()
	}
}

// ReadTexture returns a copy of the texture contents written so far.
func (d *Device) ReadTexture(id gpucore.TextureID) ([]byte, gpucore.TextureDesc, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tex, ok := d.textures[id]
	if !ok {
		return nil, gpucore.TextureDesc{}, fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	return append([]byte(nil), tex.data...), tex.desc, nil
}

// TextureDesc returns the descriptor of a live texture.
func (d *Device) TextureDesc(id gpucore.TextureID) (gpucore.TextureDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tex, ok := d.textures[id]
	if !ok {
		return gpucore.TextureDesc{}, false
	}
	return tex.desc, true
}

// HasTexture reports whether id names a live texture.
func (d *Device) HasTexture(id gpucore.TextureID) bool {
	_, ok := d.TextureDesc(id)
	return ok
}
