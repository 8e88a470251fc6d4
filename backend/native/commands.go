// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/voxel/gpucore"
)

// CommandEncoder records into a hal.CommandEncoder.
type CommandEncoder struct {
	device *Device
	enc    hal.CommandEncoder
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
	rpDesc := &hal.RenderPassDescriptor{
		Label: desc.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    color.view,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: desc.ClearColor.R, G: desc.ClearColor.G, B: desc.ClearColor.B, A: desc.ClearColor.A,
			},
		}},
	}
	if desc.Depth != gpucore.InvalidID {
		depth, ok := e.device.texture(desc.Depth)
		if !ok {
			return nil, fmt.Errorf("%w: depth attachment %d", gpucore.ErrUnknownResource, desc.Depth)
		}
		if depth.desc.Width != color.desc.Width || depth.desc.Height != color.desc.Height {
			return nil, fmt.Errorf("%w: depth %dx%d does not match color %dx%d", gpucore.ErrInvalidDescriptor,
				depth.desc.Width, depth.desc.Height, color.desc.Width, color.desc.Height)
		}
		rpDesc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpDiscard,
			DepthClearValue: desc.DepthClear,
		}
	}
	return &RenderPassEncoder{encoder: e, pass: e.enc.BeginRenderPass(rpDesc)}, nil
}

// Finish ends encoding. Errors recorded by any pass are returned and the
// command buffer is discarded.
func (e *CommandEncoder) Finish() (gpucore.CommandBuffer, error) {
	if e.done {
		return nil, gpucore.ErrEncoderFinished
	}
	e.done = true
	if err := errors.Join(e.errs...); err != nil {
		e.enc.DiscardEncoding()
		return nil, err
	}
	cb, err := e.enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	return &CommandBuffer{label: e.label, cb: cb}, nil
}

// Discard abandons the recording.
func (e *CommandEncoder) Discard() {
	if e.done {
		return
	}
	e.done = true
	e.enc.DiscardEncoding()
}

// CommandBuffer is a finished hal.CommandBuffer.
type CommandBuffer struct {
	label string
	cb    hal.CommandBuffer
}

// Label returns the encoder label.
func (c *CommandBuffer) Label() string { return c.label }

// RenderPassEncoder forwards draw state to a hal.RenderPassEncoder after
// resolving IDs. Unknown IDs are recorded as errors and the call is
// dropped.
type RenderPassEncoder struct {
	encoder *CommandEncoder
	pass    hal.RenderPassEncoder
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
	p.pass.SetBindGroup(index, group, nil)
}

// SetVertexBuffer binds a vertex or instance buffer to slot.
func (p *RenderPassEncoder) SetVertexBuffer(slot uint32, id gpucore.BufferID, offset uint64) {
	b, ok := p.encoder.device.buffer(id)
	if !ok {
		p.fail(fmt.Errorf("%w: vertex buffer %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetVertexBuffer(slot, b.buf, offset)
}

// SetIndexBuffer binds the index buffer.
func (p *RenderPassEncoder) SetIndexBuffer(id gpucore.BufferID, format gpucore.IndexFormat, offset uint64) {
	b, ok := p.encoder.device.buffer(id)
	if !ok {
		p.fail(fmt.Errorf("%w: index buffer %d", gpucore.ErrUnknownResource, id))
		return
	}
	p.pass.SetIndexBuffer(b.buf, indexFormat(format), offset)
}

// Draw records a non-indexed draw.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.err != nil {
		return
	}
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed records an indexed draw.
func (p *RenderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if p.err != nil {
		return
	}
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
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
