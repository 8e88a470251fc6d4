// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

// Draw is one indexed draw. Groups are bound in order starting at index 0
// and must be uniform or texture handles.
type Draw struct {
	Pipeline *Pipeline
	Groups   []Handle

	Vertex Handle
	// Instance is bound to vertex slot 1 when non-zero.
	Instance Handle
	Index    Handle
	// IndexFormat defaults to uint16.
	IndexFormat gpucore.IndexFormat

	IndexCount    uint32
	InstanceCount uint32
}

// DrawList holds draws in insertion order. Frames issue them in that
// order.
type DrawList struct {
	mu    sync.Mutex
	draws []Draw
}

// Add appends d and returns its index.
func (l *DrawList) Add(d Draw) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.draws = append(l.draws, d)
	return len(l.draws) - 1
}

// SetInstanceCount changes the instance count of draw i.
func (l *DrawList) SetInstanceCount(i int, n uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= 0 && i < len(l.draws) {
		l.draws[i].InstanceCount = n
	}
}

// SetGroup replaces bind group g of draw i.
func (l *DrawList) SetGroup(i, g int, h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i >= 0 && i < len(l.draws) && g >= 0 && g < len(l.draws[i].Groups) {
		l.draws[i].Groups[g] = h
	}
}

// Len returns the number of draws.
func (l *DrawList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.draws)
}

// Reset removes every draw.
func (l *DrawList) Reset() {
	l.mu.Lock()
	l.draws = l.draws[:0]
	l.mu.Unlock()
}

func (l *DrawList) snapshot() []Draw {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Draw(nil), l.draws...)
}

// FrameState is passed to the update callback of Tick.
type FrameState struct {
	// Frame is the acquired surface frame.
	Frame gpucore.Frame
	// Size is the frame size.
	Size gpucore.Extent
	// Tick counts Tick calls, starting at 1.
	Tick uint64
	// Store writes uniforms and instance data for this frame.
	Store *ResourceStore
	// Draws is the executor's draw list.
	Draws *DrawList
}

// Stats counts frame outcomes.
type Stats struct {
	Ticks        uint64
	Presented    uint64
	Skipped      uint64
	Reconfigured uint64
	Draws        uint64
	// LastSubmission is the index of the most recent submission.
	LastSubmission uint64
}

// FrameExecutor acquires, records, submits and presents one frame per
// Tick. Tick calls are serialized, so a frame is never recorded before the
// previous one has been submitted.
type FrameExecutor struct {
	gpu     *Context
	surface *SurfaceTarget
	store   *ResourceStore
	draws   *DrawList
	clear   gpucore.Color

	mu    sync.Mutex
	stats Stats
}

// NewFrameExecutor creates an executor clearing to clear.
func NewFrameExecutor(gpu *Context, surface *SurfaceTarget, store *ResourceStore, clear gpucore.Color) *FrameExecutor {
	return &FrameExecutor{
		gpu:     gpu,
		surface: surface,
		store:   store,
		draws:   &DrawList{},
		clear:   clear,
	}
}

// Draws returns the executor's draw list.
func (e *FrameExecutor) Draws() *DrawList { return e.draws }

// Stats returns a snapshot of the counters.
func (e *FrameExecutor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Tick renders one frame.
//
// A lost or outdated surface is reconfigured with the last known size and
// acquired once more. If that also fails the tick is skipped and Tick
// returns nil. A present that finds the surface lost or outdated drops the
// frame, reconfigures and returns nil. A surface still waiting for its
// first size is skipped the same way. Errors from update, recording or submission are returned and
// the frame is discarded.
func (e *FrameExecutor) Tick(update func(*FrameState) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Ticks++

	frame, ok, err := e.acquire()
	if err != nil || !ok {
		return err
	}

	if update != nil {
		state := &FrameState{
			Frame: frame,
			Size:  gpucore.Extent{Width: frame.Width, Height: frame.Height},
			Tick:  e.stats.Ticks,
			Store: e.store,
			Draws: e.draws,
		}
		if err := update(state); err != nil {
			e.surface.Discard(frame)
			return fmt.Errorf("render: frame update: %w", err)
		}
	}

	cb, draws, err := e.record(frame)
	if err != nil {
		e.surface.Discard(frame)
		return err
	}
	index, err := e.gpu.Queue().Submit(cb)
	if err != nil {
		e.surface.Discard(frame)
		return fmt.Errorf("render: submit: %w", err)
	}
	e.stats.LastSubmission = index
	e.stats.Draws += uint64(draws)
	e.store.MarkSubmitted(index)

	if err := e.surface.Present(frame); err != nil {
		if !errors.Is(err, voxel.ErrRecoverableSurface) {
			return fmt.Errorf("render: present: %w", err)
		}
		e.stats.Skipped++
		e.stats.Reconfigured++
		slogger().Warn("render: frame dropped at present", "err", err)
		if rerr := e.surface.Reconfigure(); rerr != nil {
			slogger().Warn("render: reconfigure after present", "err", rerr)
		}
		return nil
	}
	e.stats.Presented++

	if n := e.store.Reclaim(e.gpu.Queue().Completed()); n > 0 {
		slogger().Debug("render: reclaimed retired objects", "count", n)
	}
	if frame.Suboptimal {
		if err := e.surface.Reconfigure(); err != nil {
			slogger().Warn("render: reconfigure suboptimal surface", "err", err)
		}
		e.stats.Reconfigured++
	}
	return nil
}

// acquire returns a frame, or ok=false when the tick must be skipped.
func (e *FrameExecutor) acquire() (gpucore.Frame, bool, error) {
	frame, err := e.surface.AcquireFrame()
	if err == nil {
		return frame, true, nil
	}
	if errors.Is(err, ErrSurfacePending) {
		e.stats.Skipped++
		return gpucore.Frame{}, false, nil
	}
	if !errors.Is(err, voxel.ErrRecoverableSurface) {
		return gpucore.Frame{}, false, err
	}

	e.stats.Reconfigured++
	slogger().Debug("render: surface needs reconfigure", "err", err)
	if rerr := e.surface.Reconfigure(); rerr != nil {
		e.stats.Skipped++
		slogger().Warn("render: frame skipped, reconfigure failed", "err", rerr)
		return gpucore.Frame{}, false, nil
	}
	frame, err = e.surface.AcquireFrame()
	if err == nil {
		return frame, true, nil
	}
	if errors.Is(err, voxel.ErrRecoverableSurface) {
		e.stats.Skipped++
		slogger().Warn("render: frame skipped", "err", err)
		return gpucore.Frame{}, false, nil
	}
	return gpucore.Frame{}, false, err
}

// record encodes the render pass for frame and returns the command buffer
// and the number of draws issued.
func (e *FrameExecutor) record(frame gpucore.Frame) (gpucore.CommandBuffer, int, error) {
	depth, depthSize := e.store.Depth()
	if depth == gpucore.InvalidID || depthSize.Width != frame.Width || depthSize.Height != frame.Height {
		if err := e.store.RebuildDepthTexture(gpucore.Extent{Width: frame.Width, Height: frame.Height}); err != nil {
			return nil, 0, err
		}
		depth, _ = e.store.Depth()
	}

	enc, err := e.gpu.Device().CreateCommandEncoder("frame")
	if err != nil {
		return nil, 0, fmt.Errorf("render: create encoder: %w", err)
	}
	pass, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{
		Label:      "main",
		Color:      frame.Texture,
		ClearColor: e.clear,
		Depth:      depth,
		DepthClear: 1,
	})
	if err != nil {
		enc.Discard()
		return nil, 0, fmt.Errorf("render: begin pass: %w", err)
	}

	issued := 0
	for i, d := range e.draws.snapshot() {
		if d.Pipeline == nil || d.IndexCount == 0 || d.InstanceCount == 0 {
			continue
		}
		if err := e.bind(pass, d); err != nil {
			_ = pass.End()
			enc.Discard()
			return nil, 0, fmt.Errorf("render: draw %d (%s): %w", i, d.Pipeline.Label(), err)
		}
		pass.DrawIndexed(d.IndexCount, d.InstanceCount, 0, 0, 0)
		issued++
	}
	if err := pass.End(); err != nil {
		enc.Discard()
		return nil, 0, fmt.Errorf("render: end pass: %w", err)
	}
	cb, err := enc.Finish()
	if err != nil {
		return nil, 0, fmt.Errorf("render: finish: %w", err)
	}
	return cb, issued, nil
}

func (e *FrameExecutor) bind(pass gpucore.RenderPassEncoder, d Draw) error {
	pass.SetPipeline(d.Pipeline.ID())
	for i, h := range d.Groups {
		g, err := e.store.BindGroup(h)
		if err != nil {
			return err
		}
		pass.SetBindGroup(uint32(i), g)
	}
	vb, err := e.store.Buffer(d.Vertex)
	if err != nil {
		return err
	}
	pass.SetVertexBuffer(0, vb, 0)
	if d.Instance != 0 {
		ib, err := e.store.Buffer(d.Instance)
		if err != nil {
			return err
		}
		pass.SetVertexBuffer(1, ib, 0)
	}
	idx, err := e.store.Buffer(d.Index)
	if err != nil {
		return err
	}
	format := d.IndexFormat
	if format == 0 {
		format = gpucore.IndexFormatUint16
	}
	pass.SetIndexBuffer(idx, format, 0)
	return nil
}
