package software

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

func openDevice(t *testing.T, opts ...Option) (*Backend, *Device) {
	t.Helper()
	b := New(opts...)
	inst, err := b.CreateInstance()
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	t.Cleanup(inst.Destroy)
	adapter, err := inst.RequestAdapter(context.Background(), nil)
	if err != nil {
		t.Fatalf("RequestAdapter: %v", err)
	}
	dev, err := adapter.RequestDevice(context.Background(), gpucore.DefaultLimits())
	if err != nil {
		t.Fatalf("RequestDevice: %v", err)
	}
	return b, dev.(*Device)
}

// pipeline builds a minimal pipeline with one uniform bind group.
type pipeline struct {
	layout   gpucore.BindGroupLayoutID
	group    gpucore.BindGroupID
	uniform  gpucore.BufferID
	pipeline gpucore.RenderPipelineID
}

func newPipeline(t *testing.T, d *Device) pipeline {
	t.Helper()
	var p pipeline
	var err error
	p.uniform, err = d.CreateBuffer(&gpucore.BufferDesc{Label: "u", Size: 16,
		Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	p.layout, err = d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{Entries: []gpucore.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gpucore.ShaderStageVertex, Type: gpucore.BindingTypeUniformBuffer},
	}})
	if err != nil {
		t.Fatal(err)
	}
	p.group, err = d.CreateBindGroup(&gpucore.BindGroupDesc{Layout: p.layout,
		Entries: []gpucore.BindGroupEntry{{Binding: 0, Buffer: p.uniform}}})
	if err != nil {
		t.Fatal(err)
	}
	pl, err := d.CreatePipelineLayout("pl", []gpucore.BindGroupLayoutID{p.layout})
	if err != nil {
		t.Fatal(err)
	}
	mod, err := d.CreateShaderModule(&gpucore.ShaderSource{WGSL: "// test"})
	if err != nil {
		t.Fatal(err)
	}
	p.pipeline, err = d.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Layout: pl,
		Module: mod,
		Buffers: []gpucore.VertexBufferLayout{{
			ArrayStride: 12,
			Attributes:  []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x3}},
		}},
		ColorFormat: gpucore.TextureFormatBGRA8Unorm,
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLiveAccounting(t *testing.T) {
	b, d := openDevice(t)
	base := b.Live()

	buf, err := d.CreateBuffer(&gpucore.BufferDesc{Size: 4, Usage: gpucore.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	tex, err := d.CreateTexture(&gpucore.TextureDesc{Width: 2, Height: 2, Format: gpucore.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatal(err)
	}
	if got := b.Live(); got != base+2 {
		t.Fatalf("Live() = %d, want %d", got, base+2)
	}
	d.DestroyBuffer(buf)
	d.DestroyBuffer(buf)
	d.DestroyTexture(tex)
	if got := b.Live(); got != base {
		t.Errorf("Live() after destroy = %d, want %d", got, base)
	}
	d.Destroy()
	d.Destroy()
	if got := b.Live(); got != base-1 {
		t.Errorf("Live() after device destroy = %d, want %d", got, base-1)
	}
}

func TestRequestDeviceGate(t *testing.T) {
	gate := make(chan struct{})
	b := New(WithDeviceGate(gate))
	inst, _ := b.CreateInstance()
	defer inst.Destroy()
	adapter, err := inst.RequestAdapter(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := adapter.RequestDevice(ctx, gpucore.Limits{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RequestDevice with closed ctx = %v", err)
	}

	close(gate)
	if _, err := adapter.RequestDevice(context.Background(), gpucore.Limits{}); err != nil {
		t.Errorf("RequestDevice after gate = %v", err)
	}
}

func TestRequestDeviceLimits(t *testing.T) {
	b := New(WithLimits(gpucore.Limits{MaxTextureDimension2D: 1024}))
	inst, _ := b.CreateInstance()
	defer inst.Destroy()
	adapter, _ := inst.RequestAdapter(context.Background(), nil)
	if _, err := adapter.RequestDevice(context.Background(), gpucore.DefaultLimits()); err == nil {
		t.Error("RequestDevice should fail when limits are not met")
	}
}

func TestNoAdapter(t *testing.T) {
	b := New(WithoutAdapter())
	inst, _ := b.CreateInstance()
	defer inst.Destroy()
	if _, err := inst.RequestAdapter(context.Background(), nil); !errors.Is(err, ErrNoAdapter) {
		t.Errorf("RequestAdapter = %v, want ErrNoAdapter", err)
	}
}

func TestQueueWriteRead(t *testing.T) {
	_, d := openDevice(t)
	q := d.SoftwareQueue()
	buf, _ := d.CreateBuffer(&gpucore.BufferDesc{Size: 8,
		Usage: gpucore.BufferUsageCopyDst | gpucore.BufferUsageCopySrc})

	if err := q.WriteBuffer(buf, 2, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := q.ReadBuffer(buf, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 0, 1, 2, 3, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Errorf("ReadBuffer = %v, want %v", got, want)
	}
	if err := q.WriteBuffer(buf, 6, []byte{1, 2, 3}); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("overflowing write = %v", err)
	}

	noCopy, _ := d.CreateBuffer(&gpucore.BufferDesc{Size: 4, Usage: gpucore.BufferUsageVertex})
	if err := q.WriteBuffer(noCopy, 0, []byte{1}); err == nil {
		t.Error("write without CopyDst should fail")
	}
	if _, err := q.ReadBuffer(noCopy, 0, 4); err == nil {
		t.Error("read without CopySrc should fail")
	}
}

func TestSubmitRecordsUniformSnapshot(t *testing.T) {
	_, d := openDevice(t)
	q := d.SoftwareQueue()
	p := newPipeline(t, d)
	vb, _ := d.CreateBuffer(&gpucore.BufferDesc{Size: 36, Usage: gpucore.BufferUsageVertex})
	target, _ := d.CreateTexture(&gpucore.TextureDesc{Width: 2, Height: 1,
		Format: gpucore.TextureFormatRGBA8Unorm, Usage: gpucore.TextureUsageRenderAttachment})

	record := func(value byte) {
		t.Helper()
		if err := q.WriteBuffer(p.uniform, 0, bytes.Repeat([]byte{value}, 16)); err != nil {
			t.Fatal(err)
		}
		enc, _ := d.CreateCommandEncoder("frame")
		pass, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: target,
			ClearColor: gpucore.Color{R: 1, A: 1}})
		if err != nil {
			t.Fatal(err)
		}
		pass.SetPipeline(p.pipeline)
		pass.SetBindGroup(0, p.group)
		pass.SetVertexBuffer(0, vb, 0)
		pass.Draw(3, 1, 0, 0)
		if err := pass.End(); err != nil {
			t.Fatal(err)
		}
		cb, err := enc.Finish()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := q.Submit(cb); err != nil {
			t.Fatal(err)
		}
	}
	record(1)
	record(2)

	subs := q.Submissions()
	if len(subs) != 2 || subs[0].Index != 1 || subs[1].Index != 2 {
		t.Fatalf("submissions = %+v", subs)
	}
	if got := subs[0].Uniforms[p.uniform][0]; got != 1 {
		t.Errorf("first submission saw uniform %d, want 1", got)
	}
	if got := subs[1].Uniforms[p.uniform][0]; got != 2 {
		t.Errorf("second submission saw uniform %d, want 2", got)
	}
	if q.Completed() != 2 {
		t.Errorf("Completed() = %d, want 2", q.Completed())
	}

	pixels, _, err := d.ReadTexture(target)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{255, 0, 0, 255, 255, 0, 0, 255}; !bytes.Equal(pixels, want) {
		t.Errorf("cleared texture = %v, want %v", pixels, want)
	}
}

func TestSubmitRejectsDestroyedResource(t *testing.T) {
	_, d := openDevice(t)
	p := newPipeline(t, d)
	vb, _ := d.CreateBuffer(&gpucore.BufferDesc{Size: 36, Usage: gpucore.BufferUsageVertex})
	target, _ := d.CreateTexture(&gpucore.TextureDesc{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm})

	enc, _ := d.CreateCommandEncoder("frame")
	pass, _ := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: target})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, p.group)
	pass.SetVertexBuffer(0, vb, 0)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		t.Fatal(err)
	}
	cb, _ := enc.Finish()

	d.DestroyBuffer(vb)
	if _, err := d.Queue().Submit(cb); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("Submit with destroyed buffer = %v, want ErrUnknownResource", err)
	}
}

func TestPassValidation(t *testing.T) {
	_, d := openDevice(t)
	target, _ := d.CreateTexture(&gpucore.TextureDesc{Width: 4, Height: 4, Format: gpucore.TextureFormatRGBA8Unorm})
	depth, _ := d.CreateTexture(&gpucore.TextureDesc{Width: 2, Height: 2, Format: gpucore.TextureFormatDepth32Float})

	enc, _ := d.CreateCommandEncoder("mismatch")
	if _, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: target, Depth: depth}); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("mismatched depth = %v", err)
	}

	enc, _ = d.CreateCommandEncoder("no pipeline")
	pass, err := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: target})
	if err != nil {
		t.Fatal(err)
	}
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err == nil {
		t.Error("draw without pipeline should fail at End")
	}
	if _, err := enc.Finish(); err == nil {
		t.Error("Finish should report the pass error")
	}
	if _, err := enc.Finish(); !errors.Is(err, gpucore.ErrEncoderFinished) {
		t.Errorf("second Finish = %v", err)
	}
}

func TestInstanceRangeValidation(t *testing.T) {
	_, d := openDevice(t)
	p := newPipeline(t, d)
	mod, _ := d.CreateShaderModule(&gpucore.ShaderSource{WGSL: "// x"})
	pl, _ := d.CreatePipelineLayout("", []gpucore.BindGroupLayoutID{p.layout})
	pipe, err := d.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Layout: pl,
		Module: mod,
		Buffers: []gpucore.VertexBufferLayout{
			{ArrayStride: 12, Attributes: []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x3}}},
			{ArrayStride: 16, StepMode: gpucore.VertexStepModeInstance,
				Attributes: []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x4, ShaderLocation: 5}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	vb, _ := d.CreateBuffer(&gpucore.BufferDesc{Size: 36, Usage: gpucore.BufferUsageVertex})
	ib, _ := d.CreateBuffer(&gpucore.BufferDesc{Size: 32, Usage: gpucore.BufferUsageVertex})
	target, _ := d.CreateTexture(&gpucore.TextureDesc{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm})

	enc, _ := d.CreateCommandEncoder("")
	pass, _ := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: target})
	pass.SetPipeline(pipe)
	pass.SetVertexBuffer(0, vb, 0)
	pass.SetVertexBuffer(1, ib, 0)
	pass.Draw(3, 3, 0, 0)
	if err := pass.End(); err == nil {
		t.Error("3 instances in a 2-instance buffer should fail")
	}
}

func TestSurfaceAcquirePresent(t *testing.T) {
	b, d := openDevice(t)
	inst, _ := b.CreateInstance()
	defer inst.Destroy()
	s, _ := inst.CreateSurface(gpucore.WindowHandle{Canvas: "c"})
	surf := s.(*Surface)

	if _, err := surf.Acquire(); !errors.Is(err, gpucore.ErrNotConfigured) {
		t.Errorf("Acquire before Configure = %v", err)
	}
	cfg := gpucore.SurfaceConfig{Width: 3, Height: 2, Format: gpucore.TextureFormatBGRA8Unorm}
	if err := surf.Configure(d, cfg); err != nil {
		t.Fatal(err)
	}
	if err := surf.Configure(d, gpucore.SurfaceConfig{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm}); err == nil {
		t.Error("unsupported format should fail")
	}

	base := b.Live()
	f, err := surf.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if f.Width != 3 || f.Height != 2 || !d.HasTexture(f.Texture) {
		t.Errorf("frame = %+v", f)
	}
	if b.Live() != base+1 {
		t.Errorf("frame texture not counted")
	}
	if err := d.Queue().Present(surf, f); err != nil {
		t.Fatal(err)
	}
	if d.HasTexture(f.Texture) || b.Live() != base {
		t.Error("present should release the frame texture")
	}
	if err := d.Queue().Present(surf, f); err == nil {
		t.Error("double present should fail")
	}
	if d.SoftwareQueue().Presented() != 1 {
		t.Errorf("Presented() = %d", d.SoftwareQueue().Presented())
	}

	surf.FailPresent(1, gpucore.ErrSurfaceLost)
	f, err = surf.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Queue().Present(surf, f); !errors.Is(err, voxel.ErrRecoverableSurface) {
		t.Errorf("injected present failure = %v", err)
	}
	if d.HasTexture(f.Texture) || d.SoftwareQueue().Presented() != 1 {
		t.Error("failed present should drop the frame without counting it")
	}

	surf.FailAcquire(1, gpucore.ErrSurfaceOutdated)
	if _, err := surf.Acquire(); !errors.Is(err, voxel.ErrRecoverableSurface) {
		t.Errorf("injected failure = %v", err)
	}
	f, err = surf.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	surf.Discard(f)
	if d.HasTexture(f.Texture) {
		t.Error("discard should release the frame texture")
	}
	if got := len(surf.Configs()); got != 1 {
		t.Errorf("Configs() has %d entries, want 1", got)
	}

	surf.Destroy()
	surf.Destroy()
	if !surf.Destroyed() {
		t.Error("Destroyed() = false")
	}
}

func TestManualCompletion(t *testing.T) {
	_, d := openDevice(t, WithManualCompletion())
	q := d.SoftwareQueue()
	target, _ := d.CreateTexture(&gpucore.TextureDesc{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm})
	for range 2 {
		enc, _ := d.CreateCommandEncoder("")
		pass, _ := enc.BeginRenderPass(&gpucore.RenderPassDesc{Color: target})
		_ = pass.End()
		cb, _ := enc.Finish()
		if _, err := q.Submit(cb); err != nil {
			t.Fatal(err)
		}
	}
	if q.Completed() != 0 {
		t.Errorf("Completed() = %d before CompleteAll", q.Completed())
	}
	if err := q.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if q.Completed() != 2 {
		t.Errorf("Completed() = %d after WaitIdle", q.Completed())
	}
}
