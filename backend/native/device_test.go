// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

// newNoopDevice opens a device on the noop HAL.
func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	api := noop.API{}
	inst, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	instance := NewInstance(inst)
	adapter, err := instance.RequestAdapter(context.Background(), nil)
	if err != nil {
		instance.Destroy()
		t.Fatalf("RequestAdapter failed: %v", err)
	}
	dev, err := adapter.RequestDevice(context.Background(), gpucore.Limits{})
	if err != nil {
		instance.Destroy()
		t.Fatalf("RequestDevice failed: %v", err)
	}
	d := dev.(*Device)
	t.Cleanup(func() {
		d.Destroy()
		instance.Destroy()
	})
	return d
}

func TestAdapterInfo(t *testing.T) {
	inst, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatal(err)
	}
	instance := NewInstance(inst)
	defer instance.Destroy()

	a, err := instance.RequestAdapter(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if info := a.Info(); info.Backend != "native" {
		t.Errorf("Backend = %q", info.Backend)
	}
	if !a.Limits().Satisfies(gpucore.DefaultLimits()) {
		t.Error("adapter limits should cover the WebGPU baseline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.RequestDevice(ctx, gpucore.Limits{}); !errors.Is(err, context.Canceled) {
		t.Errorf("RequestDevice with cancelled ctx = %v", err)
	}
}

func TestBufferLifecycle(t *testing.T) {
	d := newNoopDevice(t)

	id, err := d.CreateBuffer(&gpucore.BufferDesc{Label: "v", Size: 64, Usage: gpucore.BufferUsageVertex | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	q := d.Queue()
	if err := q.WriteBuffer(id, 0, make([]byte, 64)); err != nil {
		t.Errorf("WriteBuffer: %v", err)
	}
	if err := q.WriteBuffer(id, 32, make([]byte, 64)); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("overflowing WriteBuffer = %v", err)
	}
	if _, err := q.ReadBuffer(id, 0, 4); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("ReadBuffer without CopySrc = %v", err)
	}

	d.DestroyBuffer(id)
	d.DestroyBuffer(id)
	if err := q.WriteBuffer(id, 0, []byte{1}); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("WriteBuffer after destroy = %v", err)
	}
	if n := d.Live(); n != 0 {
		t.Errorf("Live() = %d, want 0", n)
	}
}

func TestCreateBufferRejectsZeroSize(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.CreateBuffer(&gpucore.BufferDesc{Size: 0}); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("zero size = %v", err)
	}
}

func TestWriteTextureSize(t *testing.T) {
	d := newNoopDevice(t)
	id, err := d.CreateTexture(&gpucore.TextureDesc{
		Label: "t", Width: 4, Height: 2,
		Format: gpucore.TextureFormatRGBA8UnormSRGB,
		Usage:  gpucore.TextureUsageTextureBinding | gpucore.TextureUsageCopyDst,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer d.DestroyTexture(id)

	q := d.Queue()
	if err := q.WriteTexture(id, make([]byte, 4*2*4), 4, 2); err != nil {
		t.Errorf("WriteTexture: %v", err)
	}
	if err := q.WriteTexture(id, make([]byte, 8), 4, 2); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("short WriteTexture = %v", err)
	}
}

func TestReadBufferUsesSubmissionIndex(t *testing.T) {
	d := newNoopDevice(t)
	id, err := d.CreateBuffer(&gpucore.BufferDesc{
		Label: "r", Size: 32,
		Usage: gpucore.BufferUsageCopySrc | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer d.DestroyBuffer(id)

	q := d.Queue()
	before := q.Completed()
	out, err := q.ReadBuffer(id, 8, 16)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if len(out) != 16 {
		t.Errorf("len(out) = %d, want 16", len(out))
	}
	if got := q.Completed(); got != before+1 {
		t.Errorf("Completed() = %d after readback, want %d", got, before+1)
	}
	if n := len(d.queue.inflight); n != 0 {
		t.Errorf("%d command buffers still in flight", n)
	}
	if _, err := q.ReadBuffer(id, 24, 16); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("ReadBuffer past end = %v", err)
	}
}

func TestPipelineAndSubmit(t *testing.T) {
	d := newNoopDevice(t)

	module, err := d.CreateShaderModule(&gpucore.ShaderSource{Label: "s", WGSL: "@vertex fn vs_main() {}"})
	if err != nil {
		t.Fatal(err)
	}
	bgl, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "camera",
		Entries: []gpucore.BindGroupLayoutEntry{{
			Binding: 0, Visibility: gpucore.ShaderStageVertex, Type: gpucore.BindingTypeUniformBuffer,
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	layout, err := d.CreatePipelineLayout("layout", []gpucore.BindGroupLayoutID{bgl})
	if err != nil {
		t.Fatal(err)
	}
	pipeline, err := d.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label: "p", Layout: layout, Module: module,
		VertexEntry: "vs_main", FragmentEntry: "fs_main",
		Buffers: []gpucore.VertexBufferLayout{{
			ArrayStride: 12,
			Attributes:  []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x3}},
		}},
		ColorFormat: gpucore.TextureFormatBGRA8UnormSRGB,
		DepthFormat: gpucore.TextureFormatDepth32Float,
		CullBack:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	ub, err := d.CreateBuffer(&gpucore.BufferDesc{Size: 80, Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	group, err := d.CreateBindGroup(&gpucore.BindGroupDesc{
		Layout: bgl, Entries: []gpucore.BindGroupEntry{{Binding: 0, Buffer: ub}},
	})
	if err != nil {
		t.Fatal(err)
	}
	color, err := d.CreateTexture(&gpucore.TextureDesc{
		Width: 8, Height: 8, Format: gpucore.TextureFormatBGRA8UnormSRGB, Usage: gpucore.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	vb, err := d.CreateBuffer(&gpucore.BufferDesc{Size: 36, Usage: gpucore.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}

	enc, err := d.CreateCommandEncoder("frame")
	if err != nil {
		t.Fatal(err)
	}
	pass, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: color})
	if err != nil {
		t.Fatal(err)
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group)
	pass.SetVertexBuffer(0, vb, 0)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		t.Fatal(err)
	}
	cb, err := enc.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Finish(); !errors.Is(err, gpucore.ErrEncoderFinished) {
		t.Errorf("second Finish = %v", err)
	}

	q := d.Queue()
	idx, err := q.Submit(cb)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Errorf("first submission index = %d", idx)
	}
	if err := q.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if got := q.Completed(); got != 1 {
		t.Errorf("Completed() = %d after WaitIdle", got)
	}

	for _, destroy := range []func(){
		func() { d.DestroyBuffer(vb) },
		func() { d.DestroyTexture(color) },
		func() { d.DestroyBindGroup(group) },
		func() { d.DestroyBuffer(ub) },
		func() { d.DestroyRenderPipeline(pipeline) },
		func() { d.DestroyPipelineLayout(layout) },
		func() { d.DestroyBindGroupLayout(bgl) },
		func() { d.DestroyShaderModule(module) },
	} {
		destroy()
	}
	if n := d.Live(); n != 0 {
		t.Errorf("Live() = %d after teardown", n)
	}
}

func TestPassUnknownPipeline(t *testing.T) {
	d := newNoopDevice(t)
	color, err := d.CreateTexture(&gpucore.TextureDesc{
		Width: 4, Height: 4, Format: gpucore.TextureFormatBGRA8Unorm, Usage: gpucore.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer d.DestroyTexture(color)

	enc, err := d.CreateCommandEncoder("bad")
	if err != nil {
		t.Fatal(err)
	}
	pass, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: color})
	if err != nil {
		t.Fatal(err)
	}
	pass.SetPipeline(42)
	if err := pass.End(); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("End() = %v, want ErrUnknownResource", err)
	}
	if _, err := enc.Finish(); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("Finish() = %v, want ErrUnknownResource", err)
	}
}

func TestRenderPipelineRejectsLayout(t *testing.T) {
	d := newNoopDevice(t)
	_, err := d.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Buffers: []gpucore.VertexBufferLayout{{ArrayStride: 6, Attributes: []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32}}}},
	})
	if !errors.Is(err, voxel.ErrUnsupportedVertexLayout) {
		t.Fatalf("stride 6 = %v, want ErrUnsupportedVertexLayout", err)
	}
}
