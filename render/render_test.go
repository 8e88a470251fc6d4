// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/backend/software"
	"github.com/gogpu/voxel/gpucore"
)

// fakeSPIRV stands in for the shader compiler in tests that exercise the
// pipeline lifecycle rather than shader translation.
func fakeSPIRV(string) ([]uint32, error) { return []uint32{0x07230203}, nil }

var (
	positionLayout = gpucore.VertexBufferLayout{
		ArrayStride: 12,
		Attributes:  []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x3}},
	}
	offsetLayout = gpucore.VertexBufferLayout{
		ArrayStride: 16,
		StepMode:    gpucore.VertexStepModeInstance,
		Attributes:  []gpucore.VertexAttribute{{Format: gpucore.VertexFormatFloat32x4, ShaderLocation: 5}},
	}
)

type harness struct {
	backend   *software.Backend
	gpu       *Context
	surface   *SurfaceTarget
	store     *ResourceStore
	pipelines *PipelineSet
	exec      *FrameExecutor
	released  bool
}

func newHarness(t *testing.T, size gpucore.Extent, opts ...software.Option) *harness {
	t.Helper()
	h := &harness{backend: software.New(opts...)}
	gpu, err := NewContext(context.Background(), h.backend, WithWindow(gpucore.WindowHandle{Canvas: "test"}))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	h.gpu = gpu
	h.surface, err = ConfigureSurface(gpu, gpu.TakeSurface(), size)
	if err != nil {
		gpu.Release()
		t.Fatalf("ConfigureSurface: %v", err)
	}
	h.store = NewResourceStore(gpu)
	h.surface.OnResize(h.store.RebuildDepthTexture)
	h.pipelines = NewPipelineSet(gpu)
	h.pipelines.SetCompiler(fakeSPIRV)
	h.exec = NewFrameExecutor(gpu, h.surface, h.store, gpucore.Color{A: 1})
	t.Cleanup(h.release)
	return h
}

func (h *harness) release() {
	if h.released {
		return
	}
	h.released = true
	h.pipelines.Release()
	h.store.Release()
	h.surface.Release()
	h.gpu.Release()
}

func (h *harness) device() *software.Device { return h.backend.Device(0) }

func (h *harness) softSurface() *software.Surface { return h.backend.Surface(0) }

func float32Bytes(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// addTriangle uploads one instanced triangle and registers its draw.
func (h *harness) addTriangle(t *testing.T, uniform Handle) Draw {
	t.Helper()
	p, err := h.pipelines.Build(h.surface.Format(), PipelineDesc{
		Label:       "triangle",
		Source:      "// wgsl",
		Buffers:     []gpucore.VertexBufferLayout{positionLayout, offsetLayout},
		UniformSize: 16,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	vb, err := h.store.UploadStatic(KindVertex, float32Bytes(0, 0, 0, 1, 0, 0, 0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	ib, err := h.store.UploadStatic(KindIndex, []byte{0, 0, 1, 0, 2, 0})
	if err != nil {
		t.Fatal(err)
	}
	inst, err := h.store.UploadStatic(KindInstance, float32Bytes(0, 0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	d := Draw{
		Pipeline:      p,
		Groups:        []Handle{uniform},
		Vertex:        vb,
		Instance:      inst,
		Index:         ib,
		IndexCount:    3,
		InstanceCount: 1,
	}
	h.exec.Draws().Add(d)
	return d
}

func TestContextSingleInit(t *testing.T) {
	b := software.New()
	first, err := NewContext(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewContext(context.Background(), b); !errors.Is(err, voxel.ErrContextExists) {
		t.Errorf("second NewContext = %v, want ErrContextExists", err)
	}
	first.Release()
	first.Release()

	again, err := NewContext(context.Background(), b)
	if err != nil {
		t.Fatalf("NewContext after Release: %v", err)
	}
	again.Release()
	if b.Live() != 0 {
		t.Errorf("Live() = %d after release", b.Live())
	}
}

func TestContextDeviceUnavailable(t *testing.T) {
	b := software.New(software.WithoutAdapter())
	_, err := NewContext(context.Background(), b, WithWindow(gpucore.WindowHandle{}))
	if !errors.Is(err, voxel.ErrDeviceUnavailable) || !errors.Is(err, software.ErrNoAdapter) {
		t.Fatalf("NewContext = %v, want ErrDeviceUnavailable wrapping ErrNoAdapter", err)
	}
	if !IsDeviceUnavailable(err) {
		t.Error("IsDeviceUnavailable = false")
	}
	if b.Live() != 0 {
		t.Errorf("partial objects leaked: Live() = %d", b.Live())
	}
	c, err := NewContext(context.Background(), software.New())
	if err != nil {
		t.Fatalf("guard not cleared after failure: %v", err)
	}
	c.Release()
}

func TestContextCancelledDuringDeviceRequest(t *testing.T) {
	gate := make(chan struct{})
	b := software.New(software.WithDeviceGate(gate))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := NewContext(ctx, b, WithWindow(gpucore.WindowHandle{}))
		done <- err
	}()
	cancel()
	err := <-done
	if !errors.Is(err, context.Canceled) || !errors.Is(err, voxel.ErrDeviceUnavailable) {
		t.Fatalf("NewContext = %v", err)
	}
	if b.Live() != 0 {
		t.Errorf("Live() = %d after cancelled init", b.Live())
	}
}

func TestSurfaceResizeThenAcquire(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 320, Height: 240})
	sizes := []gpucore.Extent{{Width: 800, Height: 600}, {Width: 1, Height: 1}, {Width: 1920, Height: 1080}, {Width: 33, Height: 4097}}
	for _, size := range sizes {
		t.Run(size.String(), func(t *testing.T) {
			changed, err := h.surface.Resize(size)
			if err != nil || !changed {
				t.Fatalf("Resize(%s) = %v, %v", size, changed, err)
			}
			f, err := h.surface.AcquireFrame()
			if err != nil {
				t.Fatal(err)
			}
			defer h.surface.Discard(f)
			if f.Width != size.Width || f.Height != size.Height {
				t.Errorf("frame %dx%d, want %s", f.Width, f.Height, size)
			}
			if _, depth := h.store.Depth(); depth != size {
				t.Errorf("depth %s, want %s", depth, size)
			}
		})
	}
}

func TestSurfaceZeroResizeIsNoop(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 640, Height: 480})
	before := h.surface.Config()
	configs := len(h.softSurface().Configs())
	for _, size := range []gpucore.Extent{{}, {Width: 0, Height: 480}, {Width: 640, Height: 0}} {
		changed, err := h.surface.Resize(size)
		if changed || err != nil {
			t.Errorf("Resize(%s) = %v, %v", size, changed, err)
		}
	}
	if h.surface.Config() != before {
		t.Errorf("config changed to %+v", h.surface.Config())
	}
	if got := len(h.softSurface().Configs()); got != configs {
		t.Errorf("surface reconfigured %d times", got-configs)
	}
	if changed, _ := h.surface.Resize(before.Size()); changed {
		t.Error("same-size resize should be a no-op")
	}
}

func TestSurfaceFormatSelection(t *testing.T) {
	tests := []struct {
		name    string
		formats []gpucore.TextureFormat
		want    gpucore.TextureFormat
		opts    []SurfaceOption
		wantErr bool
	}{
		{"prefers sRGB", []gpucore.TextureFormat{gpucore.TextureFormatBGRA8Unorm, gpucore.TextureFormatRGBA8UnormSRGB},
			gpucore.TextureFormatRGBA8UnormSRGB, nil, false},
		{"first when no sRGB", []gpucore.TextureFormat{gpucore.TextureFormatRGBA8Unorm, gpucore.TextureFormatBGRA8Unorm},
			gpucore.TextureFormatRGBA8Unorm, nil, false},
		{"explicit", []gpucore.TextureFormat{gpucore.TextureFormatBGRA8UnormSRGB, gpucore.TextureFormatBGRA8Unorm},
			gpucore.TextureFormatBGRA8Unorm, []SurfaceOption{WithSurfaceFormat(gpucore.TextureFormatBGRA8Unorm)}, false},
		{"explicit missing", []gpucore.TextureFormat{gpucore.TextureFormatBGRA8Unorm},
			0, []SurfaceOption{WithSurfaceFormat(gpucore.TextureFormatRGBA8Unorm)}, true},
		{"not presentable", nil, 0, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := software.New(software.WithSurfaceFormats(tt.formats...))
			gpu, err := NewContext(context.Background(), b, WithWindow(gpucore.WindowHandle{}))
			if err != nil {
				t.Fatal(err)
			}
			defer gpu.Release()
			s, err := ConfigureSurface(gpu, gpu.TakeSurface(), gpucore.Extent{Width: 8, Height: 8}, tt.opts...)
			if tt.wantErr {
				if !errors.Is(err, voxel.ErrUnsupportedSurfaceFormat) {
					t.Errorf("err = %v, want ErrUnsupportedSurfaceFormat", err)
				}
				if !b.Surface(0).Destroyed() {
					t.Error("surface not destroyed on failure")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Release()
			if s.Format() != tt.want {
				t.Errorf("format = %s, want %s", s.Format(), tt.want)
			}
		})
	}
}

func TestSurfaceDeferredConfiguration(t *testing.T) {
	h := newHarness(t, gpucore.Extent{})
	if h.surface.Configured() {
		t.Fatal("zero-size surface should not be configured")
	}
	if _, err := h.surface.AcquireFrame(); !errors.Is(err, ErrSurfacePending) {
		t.Errorf("AcquireFrame = %v, want ErrSurfacePending", err)
	}
	if err := h.exec.Tick(nil); err != nil {
		t.Errorf("Tick on pending surface = %v", err)
	}
	if _, err := h.surface.Resize(gpucore.Extent{Width: 800, Height: 600}); err != nil {
		t.Fatal(err)
	}
	if err := h.exec.Tick(nil); err != nil {
		t.Fatal(err)
	}
	if got := h.exec.Stats(); got.Presented != 1 || got.Skipped != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestUploadStaticRoundTrip(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 4, Height: 4})
	tests := []struct {
		kind Kind
		data []byte
	}{
		{KindVertex, float32Bytes(1, 2, 3, 4, 5, 6)},
		{KindIndex, []byte{0, 0, 1, 0, 2, 0}},
		{KindInstance, bytes.Repeat([]byte{0xAB}, 76)},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			handle, err := h.store.UploadStatic(tt.kind, tt.data)
			if err != nil {
				t.Fatal(err)
			}
			got, err := h.store.Readback(handle)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("readback = %v, want %v", got, tt.data)
			}
		})
	}
	if _, err := h.store.UploadStatic(KindVertex, nil); !errors.Is(err, ErrEmptyData) {
		t.Errorf("empty upload = %v", err)
	}
	if _, err := h.store.UploadStatic(KindUniform, []byte{1}); !errors.Is(err, ErrWrongKind) {
		t.Errorf("uniform upload = %v", err)
	}
}

func TestUpdateUniformLastWriteWins(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 16, Height: 16})
	u, err := h.store.CreateUniform(16)
	if err != nil {
		t.Fatal(err)
	}
	h.addTriangle(t, u)

	a := bytes.Repeat([]byte{0xAA}, 16)
	b := bytes.Repeat([]byte{0xBB}, 16)
	if err := h.exec.Tick(func(fs *FrameState) error {
		if err := fs.Store.UpdateUniform(u, a); err != nil {
			return err
		}
		return fs.Store.UpdateUniform(u, b)
	}); err != nil {
		t.Fatal(err)
	}

	buf, _ := h.store.Buffer(u)
	sub, ok := h.device().SoftwareQueue().LastSubmission()
	if !ok {
		t.Fatal("nothing submitted")
	}
	if got := sub.Uniforms[buf]; !bytes.Equal(got, b) {
		t.Errorf("GPU observed %x, want %x", got, b)
	}
	if err := h.store.UpdateUniform(u, make([]byte, 17)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized update = %v", err)
	}
}

func TestDrawOrderIsInsertionOrder(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	u, _ := h.store.CreateUniform(16)
	first := h.addTriangle(t, u)
	second := h.addTriangle(t, u)
	third := h.addTriangle(t, u)

	if err := h.exec.Tick(nil); err != nil {
		t.Fatal(err)
	}
	sub, _ := h.device().SoftwareQueue().LastSubmission()
	if len(sub.Passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(sub.Passes))
	}
	draws := sub.Passes[0].Draws
	want := []gpucore.RenderPipelineID{first.Pipeline.ID(), second.Pipeline.ID(), third.Pipeline.ID()}
	if len(draws) != len(want) {
		t.Fatalf("draws = %d, want %d", len(draws), len(want))
	}
	for i, d := range draws {
		if d.Pipeline != want[i] || !d.Indexed || d.InstanceCount != 1 {
			t.Errorf("draw %d = %+v", i, d)
		}
	}
	if sub.Passes[0].Depth == gpucore.InvalidID {
		t.Error("pass has no depth attachment")
	}
}

func TestTickRetriesOnceAfterRecoverableFailure(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	h.softSurface().FailAcquire(1, gpucore.ErrSurfaceLost)

	if err := h.exec.Tick(nil); err != nil {
		t.Fatal(err)
	}
	stats := h.exec.Stats()
	if stats.Presented != 1 || stats.Reconfigured != 1 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := len(h.softSurface().Configs()); got != 2 {
		t.Errorf("configured %d times, want 2", got)
	}
}

func TestTickSkipsAfterSecondFailure(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	h.softSurface().FailAcquire(2, gpucore.ErrSurfaceOutdated)

	if err := h.exec.Tick(nil); err != nil {
		t.Fatalf("Tick = %v, want skipped frame", err)
	}
	stats := h.exec.Stats()
	if stats.Presented != 0 || stats.Skipped != 1 || stats.Reconfigured != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := len(h.softSurface().Configs()); got != 2 {
		t.Errorf("configured %d times, want exactly one reconfigure", got)
	}

	// The loop keeps going.
	if err := h.exec.Tick(nil); err != nil {
		t.Fatal(err)
	}
	if h.exec.Stats().Presented != 1 {
		t.Error("next tick did not present")
	}
}

func TestTickOutdatedPresentDropsFrame(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	h.softSurface().FailPresent(1, gpucore.ErrSurfaceOutdated)

	if err := h.exec.Tick(nil); err != nil {
		t.Fatalf("Tick = %v, want dropped frame", err)
	}
	stats := h.exec.Stats()
	if stats.Presented != 0 || stats.Skipped != 1 || stats.Reconfigured != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := len(h.softSurface().Configs()); got != 2 {
		t.Errorf("configured %d times, want 2", got)
	}

	if err := h.exec.Tick(nil); err != nil {
		t.Fatal(err)
	}
	if h.exec.Stats().Presented != 1 {
		t.Error("next tick did not present")
	}
}

func TestTickFatalPresentError(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	boom := errors.New("device lost")
	h.softSurface().FailPresent(1, boom)
	if err := h.exec.Tick(nil); !errors.Is(err, boom) {
		t.Errorf("Tick = %v, want %v", err, boom)
	}
}

func TestTickFatalAcquireError(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	boom := errors.New("device lost")
	h.softSurface().FailAcquire(1, boom)
	if err := h.exec.Tick(nil); !errors.Is(err, boom) {
		t.Errorf("Tick = %v, want %v", err, boom)
	}
}

func TestUpdateErrorDiscardsFrame(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	live := h.backend.Live()
	boom := errors.New("update failed")
	if err := h.exec.Tick(func(*FrameState) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Tick = %v", err)
	}
	// The depth texture is created lazily by the first recorded frame,
	// which never happened; only the frame texture could have leaked.
	if h.backend.Live() != live {
		t.Errorf("Live() = %d, want %d", h.backend.Live(), live)
	}
}

func TestDepthTextureDeferredRelease(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8}, software.WithManualCompletion())
	if err := h.exec.Tick(nil); err != nil {
		t.Fatal(err)
	}
	old, _ := h.store.Depth()

	if _, err := h.surface.Resize(gpucore.Extent{Width: 16, Height: 16}); err != nil {
		t.Fatal(err)
	}
	if h.store.Retired() != 1 || !h.device().HasTexture(old) {
		t.Fatal("old depth texture released while its frame is in flight")
	}
	if n := h.store.Reclaim(h.gpu.Queue().Completed()); n != 0 {
		t.Errorf("Reclaim before completion destroyed %d", n)
	}

	h.device().SoftwareQueue().CompleteAll()
	if n := h.store.Reclaim(h.gpu.Queue().Completed()); n != 1 {
		t.Errorf("Reclaim after completion destroyed %d, want 1", n)
	}
	if h.device().HasTexture(old) {
		t.Error("old depth texture still alive")
	}
	if cur, size := h.store.Depth(); !h.device().HasTexture(cur) || size != (gpucore.Extent{Width: 16, Height: 16}) {
		t.Errorf("current depth %d %s", cur, size)
	}
}

func TestInstanceBufferGrowth(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	inst, err := h.store.CreateDynamic(0)
	if err != nil {
		t.Fatal(err)
	}
	first := bytes.Repeat([]byte{1}, 76)
	if err := h.store.WriteDynamic(inst, 0, first); err != nil {
		t.Fatal(err)
	}
	old, _ := h.store.Buffer(inst)

	more := bytes.Repeat([]byte{2}, 76*8)
	if err := h.store.WriteDynamic(inst, 76, more); err != nil {
		t.Fatal(err)
	}
	cur, _ := h.store.Buffer(inst)
	if cur == old {
		t.Fatal("buffer did not grow")
	}
	got, err := h.store.Readback(inst)
	if err != nil {
		t.Fatal(err)
	}
	if want := append(append([]byte(nil), first...), more...); !bytes.Equal(got, want) {
		t.Error("grown buffer lost its contents")
	}
	if grown, _ := h.store.EnsureCapacity(inst, 76); grown {
		t.Error("EnsureCapacity grew a large enough buffer")
	}
}

func TestPipelineBuildErrors(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	live := h.backend.Live()

	_, err := h.pipelines.Build(h.surface.Format(), PipelineDesc{
		Label:   "bad layout",
		Source:  "// wgsl",
		Buffers: []gpucore.VertexBufferLayout{{ArrayStride: 6, Attributes: positionLayout.Attributes}},
	})
	if !errors.Is(err, voxel.ErrUnsupportedVertexLayout) {
		t.Errorf("bad layout = %v", err)
	}

	h.pipelines.SetCompiler(func(string) ([]uint32, error) {
		return nil, errors.New("1:5 expected identifier")
	})
	_, err = h.pipelines.Build(h.surface.Format(), PipelineDesc{
		Label:   "broken",
		Source:  "fn (",
		Buffers: []gpucore.VertexBufferLayout{positionLayout},
	})
	var compileErr *voxel.ShaderCompileError
	if !errors.As(err, &compileErr) || compileErr.Label != "broken" || compileErr.Diagnostics != "1:5 expected identifier" {
		t.Errorf("compile error = %#v", err)
	}
	if !errors.Is(err, voxel.ErrShaderCompile) {
		t.Error("compile error does not match ErrShaderCompile")
	}
	if h.backend.Live() != live || h.pipelines.Len() != 0 {
		t.Error("failed builds leaked objects")
	}
}

func TestCompileWGSLReportsDiagnostics(t *testing.T) {
	if _, err := CompileWGSL("fn broken( {"); err == nil {
		t.Error("CompileWGSL accepted invalid source")
	}
}

func TestPipelineRebuild(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	p, err := h.pipelines.Build(gpucore.TextureFormatBGRA8UnormSRGB, PipelineDesc{
		Label:   "p",
		Source:  "// wgsl",
		Buffers: []gpucore.VertexBufferLayout{positionLayout},
	})
	if err != nil {
		t.Fatal(err)
	}
	before := p.ID()
	if err := h.pipelines.Rebuild(gpucore.TextureFormatBGRA8Unorm); err != nil {
		t.Fatal(err)
	}
	if p.ID() == before || p.Format() != gpucore.TextureFormatBGRA8Unorm {
		t.Errorf("pipeline not rebuilt: id %d format %s", p.ID(), p.Format())
	}
}

func TestReleaseLeavesNothingLive(t *testing.T) {
	h := newHarness(t, gpucore.Extent{Width: 8, Height: 8})
	u, _ := h.store.CreateUniform(80)
	h.addTriangle(t, u)
	for range 3 {
		if err := h.exec.Tick(nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.surface.Resize(gpucore.Extent{Width: 20, Height: 10}); err != nil {
		t.Fatal(err)
	}
	h.release()
	if h.backend.Live() != 0 {
		t.Errorf("Live() = %d after release", h.backend.Live())
	}
	if _, err := h.store.UploadStatic(KindVertex, []byte{1}); !errors.Is(err, voxel.ErrReleased) {
		t.Errorf("upload after release = %v", err)
	}
}
