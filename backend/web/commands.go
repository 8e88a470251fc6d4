//go:build js && wasm

package web

import (
	"errors"
	"fmt"

	"github.com/mokiat/gog/opt"
	"github.com/mokiat/wasmgpu"

	"github.com/gogpu/voxel/gpucore"
)

// CommandEncoder records into a GPUCommandEncoder.
type CommandEncoder struct {
	device *Device
	enc    wasmgpu.GPUCommandEncoder
	label  string
	done   bool
	errs   []error
}

// BeginRenderPass starts a pass that clears its attachments.
func (e *CommandEncoder) BeginRenderPass(desc *gpucore.RenderPassDesc) (gpucore.RenderPassEncoder, error) {
	if e.done {
		return nil, gpucore.ErrEncoderFinished
	}
	color, ok := e.device.texture(desc.Color)
	if !ok {
		return nil, fmt.Errorf("%w: color attachment %d", gpucore.ErrUnknownResource, desc.Color)
	}
	c := desc.ClearColor
	rp := wasmgpu.GPURenderPassDescriptor{
		ColorAttachments: []wasmgpu.GPURenderPassColorAttachment{{
			View:       color.view,
			ClearValue: opt.V(wasmgpu.GPUColor{R: c.R, G: c.G, B: c.B, A: c.A}),
			LoadOp:     wasmgpu.GPULoadOpClear,
			StoreOp:    wasmgpu.GPUStoreOPStore,
		}},
	}
	if desc.Depth != gpucore.InvalidID {
		depth, ok := e.device.texture(desc.Depth)
		if !ok {
			return nil, fmt.Errorf("%w: depth attachment %d", gpucore.ErrUnknownResource, desc.Depth)
		}
		if depth.desc.Width != color.desc.Width || depth.desc.Height != color.desc.Height {
			return nil, fmt.Errorf("%w: depth size does not match color", gpucore.ErrInvalidDescriptor)
		}
		rp.DepthStencilAttachment = opt.V(wasmgpu.GPURenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthClearValue: opt.V(desc.DepthClear),
			DepthLoadOp:     opt.V(wasmgpu.GPULoadOpClear),
			DepthStoreOp:    opt.V(wasmgpu.GPUStoreOPDiscard),
		})
	}
	return &RenderPassEncoder{encoder: e, pass: e.enc.BeginRenderPass(rp)}, nil
}

// Finish ends encoding.
func (e *CommandEncoder) Finish() (gpucore.CommandBuffer, error) {
	if e.done {
		return nil, gpucore.ErrEncoderFinished
	}
	e.done = true
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return &CommandBuffer{label: e.label, cb: e.enc.Finish()}, nil
}

// Discard drops the encoder; the browser collects it.
func (e *CommandEncoder) Discard() { e.done = true }

// CommandBuffer is a finished GPUCommandBuffer.
type CommandBuffer struct {
	label string
	cb    wasmgpu.GPUCommandBuffer
}

// Label returns the encoder label.
func (c *CommandBuffer) Label() string { return c.label }

// RenderPassEncoder resolves IDs and forwards to a GPURenderPassEncoder.
type RenderPassEncoder struct {
	encoder *CommandEncoder
	pass    wasmgpu.GPURenderPassEncoder
	ended   bool
	err     error
}

func (p *RenderPassEncoder) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// SetPipeline binds a render pipeline.
func (p *RenderPassEncoder) SetPipeline(id gpucore.RenderPipelineID) {
	d := p.encoder.device
	d.mu.RLock()
	pipeline, ok := d.pipelines[id]
	d.mu.RUnlock()
	if !ok {
		p.fail(fmt.Errorf("%w: render pipeline %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetPipeline(pipeline)
}

// SetBindGroup binds group at index.
func (p *RenderPassEncoder) SetBindGroup(index uint32, id gpucore.BindGroupID) {
	d := p.encoder.device
	d.mu.RLock()
	group, ok := d.bindGroups[id]
	d.mu.RUnlock()
	if !ok {
		p.fail(fmt.Errorf("%w: bind group %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetBindGroup(wasmgpu.GPUIndex32(index), group, nil)
}

// SetVertexBuffer binds a buffer to slot.
func (p *RenderPassEncoder) SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64) {
	b, ok := p.encoder.device.buffer(id)
	if !ok {
		p.fail(fmt.Errorf("%w: vertex buffer %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetVertexBuffer(wasmgpu.GPUIndex32(slot), b.buf, opt.V(wasmgpu.GPUSize64(offset)), opt.Unspecified[wasmgpu.GPUSize64]())
}

// SetIndexBuffer binds the index buffer.
func (p *RenderPassEncoder) SetIndexBuffer(id gpucore.BufferID, format gpucore.IndexFormat, offset uint64) {
	b, ok := p.encoder.device.buffer(id)
	if !ok {
		p.fail(fmt.Errorf("%w: index buffer %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetIndexBuffer(b.buf, indexFormat(format), opt.V(wasmgpu.GPUSize64(offset)), opt.Unspecified[wasmgpu.GPUSize64]())
}

// Draw records a non-indexed draw.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.err != nil {
		return
	}
	p.pass.Draw(wasmgpu.GPUSize32(vertexCount),
		opt.V(wasmgpu.GPUSize32(instanceCount)),
		opt.V(wasmgpu.GPUSize32(firstVertex)),
		opt.V(wasmgpu.GPUSize32(firstInstance)))
}

// DrawIndexed records an indexed draw.
func (p *RenderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if p.err != nil {
		return
	}
	p.pass.DrawIndexed(wasmgpu.GPUSize32(indexCount),
		opt.V(wasmgpu.GPUSize32(instanceCount)),
		opt.V(wasmgpu.GPUSize32(firstIndex)),
		opt.V(wasmgpu.GPUSignedOffset32(baseVertex)),
		opt.V(wasmgpu.GPUSize32(firstInstance)))
}

// End closes the pass.
func (p *RenderPassEncoder) End() error {
	if p.ended {
		return nil
	}
	p.ended = true
	p.pass.End()
	if p.err != nil {
		p.encoder.errs = append(p.encoder.errs, p.err)
	}
	return p.err
}
