package software

import (
	"errors"
	"fmt"

	"github.com/gogpu/voxel/gpucore"
)

// DrawCall is one recorded draw with the state bound when it was issued.
type DrawCall struct {
	Pipeline      gpucore.RenderPipelineID
	BindGroups    map[uint32]gpucore.BindGroupID
	VertexBuffers map[uint32]gpucore.BufferID
	IndexBuffer   gpucore.BufferID
	Indexed       bool
	Count         uint32
	InstanceCount uint32
	FirstInstance uint32
}

// Pass is one recorded render pass.
type Pass struct {
	Label      string
	Color      gpucore.TextureID
	ClearColor gpucore.Color
	Depth      gpucore.TextureID
	Draws      []DrawCall
}

// CommandBuffer is a finished software recording.
type CommandBuffer struct {
	label  string
	Passes []Pass
}

// Label returns the encoder label.
func (cb *CommandBuffer) Label() string { return cb.label }

// CommandEncoder records passes into a CommandBuffer.
type CommandEncoder struct {
	device   *Device
	label    string
	passes   []Pass
	open     bool
	finished bool
	err      error
}

// BeginRenderPass starts a pass. The color attachment must be live and the
// depth attachment, when present, must match its size.
func (e *CommandEncoder) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPassEncoder, error) {
	if e.finished {
		return nil, gpucore.ErrEncoderFinished
	}
	if e.open {
		return nil, errors.New("software: render pass already open")
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: nil render pass descriptor", gpucore.ErrInvalidDescriptor)
	}
	color, ok := e.device.TextureDesc(desc.Color)
	if !ok {
		return nil, fmt.Errorf("%w: color attachment %d", gpucore.ErrUnknownResource, desc.Color)
	}
	if desc.Depth != gpucore.InvalidID {
		depth, ok := e.device.TextureDesc(desc.Depth)
		if !ok {
			return nil, fmt.Errorf("%w: depth attachment %d", gpucore.ErrUnknownResource, desc.Depth)
		}
		if depth.Width != color.Width || depth.Height != color.Height {
			return nil, fmt.Errorf("%w: depth attachment %dx%d does not match color %dx%d",
				gpucore.ErrInvalidDescriptor, depth.Width, depth.Height, color.Width, color.Height)
		}
	}
	e.open = true
	return &RenderPassEncoder{
		encoder: e,
		pass: Pass{
			Label:      desc.Label,
			Color:      desc.Color,
			ClearColor: desc.ClearColor,
			Depth:      desc.Depth,
		},
		bindGroups:    make(map[uint32]gpucore.BindGroupID),
		vertexBuffers: make(map[uint32]gpucore.BufferID),
	}, nil
}

// Finish completes the recording.
func (e *CommandEncoder) Finish() (gpucore.CommandBuffer, error) {
	if e.finished {
		return nil, gpucore.ErrEncoderFinished
	}
	e.finished = true
	if e.open {
		return nil, errors.New("software: render pass not ended")
	}
	if e.err != nil {
		return nil, e.err
	}
	return &CommandBuffer{label: e.label, Passes: e.passes}, nil
}

// Discard abandons the recording.
func (e *CommandEncoder) Discard() {
	e.finished = true
	e.passes = nil
}

// RenderPassEncoder records draws and validates them at End.
type RenderPassEncoder struct {
	encoder *CommandEncoder
	pass    Pass

	pipeline      gpucore.RenderPipelineID
	bindGroups    map[uint32]gpucore.BindGroupID
	vertexBuffers map[uint32]gpucore.BufferID
	vertexOffsets map[uint32]uint64
	indexBuffer   gpucore.BufferID
	indexFormat   gpucore.IndexFormat
	indexOffset   uint64

	err error
}

func (p *RenderPassEncoder) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// SetPipeline binds a pipeline.
func (p *RenderPassEncoder) SetPipeline(id gpucore.RenderPipelineID) { p.pipeline = id }

// SetBindGroup binds a group at index.
func (p *RenderPassEncoder) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	p.bindGroups[index] = group
}

// SetVertexBuffer binds a vertex buffer at slot.
func (p *RenderPassEncoder) SetVertexBuffer(slot uint32, buffer gpucore.BufferID, offset uint64) {
	p.vertexBuffers[slot] = buffer
	if p.vertexOffsets == nil {
		p.vertexOffsets = make(map[uint32]uint64)
	}
	p.vertexOffsets[slot] = offset
}

// SetIndexBuffer binds the index buffer.
func (p *RenderPassEncoder) SetIndexBuffer(buffer gpucore.BufferID, format gpucore.IndexFormat, offset uint64) {
	p.indexBuffer = buffer
	p.indexFormat = format
	p.indexOffset = offset
}

// Draw records a non-indexed draw.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount, _, firstInstance uint32) {
	p.record(false, vertexCount, instanceCount, firstInstance)
}

// DrawIndexed records an indexed draw.
func (p *RenderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, _ int32, firstInstance uint32) {
	if p.indexBuffer == gpucore.InvalidID {
		p.fail(errors.New("software: DrawIndexed without index buffer"))
		return
	}
	p.device().mu.RLock()
	buf, ok := p.device().buffers[p.indexBuffer]
	p.device().mu.RUnlock()
	if !ok {
		p.fail(fmt.Errorf("%w: index buffer %d", gpucore.ErrUnknownResource, p.indexBuffer))
		return
	}
	end := p.indexOffset + uint64(firstIndex+indexCount)*p.indexFormat.Size()
	if end > buf.desc.Size {
		p.fail(fmt.Errorf("software: index range ends at %d past buffer size %d", end, buf.desc.Size))
		return
	}
	p.record(true, indexCount, instanceCount, firstInstance)
}

func (p *RenderPassEncoder) device() *Device { return p.encoder.device }

func (p *RenderPassEncoder) record(indexed bool, count, instanceCount, firstInstance uint32) {
	if p.pipeline == gpucore.InvalidID {
		p.fail(errors.New("software: draw without pipeline"))
		return
	}
	d := p.device()
	d.mu.RLock()
	pipe, ok := d.pipelines[p.pipeline]
	if !ok {
		d.mu.RUnlock()
		p.fail(fmt.Errorf("%w: pipeline %d", gpucore.ErrUnknownResource, p.pipeline))
		return
	}
	for slot, layout := range pipe.desc.Buffers {
		id, bound := p.vertexBuffers[uint32(slot)]
		buf, live := d.buffers[id]
		if !bound || !live {
			d.mu.RUnlock()
			p.fail(fmt.Errorf("software: vertex slot %d not bound to a live buffer", slot))
			return
		}
		if layout.StepMode == gpucore.VertexStepModeInstance {
			need := p.vertexOffsets[uint32(slot)] + uint64(firstInstance+instanceCount)*layout.ArrayStride
			if need > buf.desc.Size {
				d.mu.RUnlock()
				p.fail(fmt.Errorf("software: %d instances need %d bytes in slot %d, buffer has %d",
					instanceCount, need, slot, buf.desc.Size))
				return
			}
		}
	}
	d.mu.RUnlock()

	call := DrawCall{
		Pipeline:      p.pipeline,
		BindGroups:    make(map[uint32]gpucore.BindGroupID, len(p.bindGroups)),
		VertexBuffers: make(map[uint32]gpucore.BufferID, len(p.vertexBuffers)),
		IndexBuffer:   p.indexBuffer,
		Indexed:       indexed,
		Count:         count,
		InstanceCount: instanceCount,
		FirstInstance: firstInstance,
	}
	for k, v := range p.bindGroups {
		call.BindGroups[k] = v
	}
	for k, v := range p.vertexBuffers {
		call.VertexBuffers[k] = v
	}
	p.pass.Draws = append(p.pass.Draws, call)
}

// End closes the pass and reports the first recording error.
func (p *RenderPassEncoder) End() error {
	e := p.encoder
	if !e.open {
		return errors.New("software: render pass already ended")
	}
	e.open = false
	if p.err != nil {
		if e.err == nil {
			e.err = p.err
		}
		return p.err
	}
	e.passes = append(e.passes, p.pass)
	return nil
}
