// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/backend/software"
	"github.com/gogpu/voxel/gpucore"
	"github.com/gogpu/voxel/render"
)

func fakeSPIRV(string) ([]uint32, error) { return []uint32{0x07230203}, nil }

// recorder is a Game that records what the loop delivers.
type recorder struct {
	initErr error
	inits   int
	events  []Event
	dts     []time.Duration
	sizes   []gpucore.Extent
}

func (g *recorder) Init(ctx context.Context, r *Renderer) error {
	g.inits++
	if g.initErr != nil {
		return g.initErr
	}
	_, err := r.Store.CreateUniform(80)
	return err
}

func (g *recorder) HandleEvent(ev Event) { g.events = append(g.events, ev) }

func (g *recorder) Update(dt time.Duration, fs *render.FrameState) error {
	g.dts = append(g.dts, dt)
	g.sizes = append(g.sizes, fs.Size)
	return nil
}

type fixture struct {
	backend *software.Backend
	game    *recorder
	loop    *Loop
	states  []State
	mu      sync.Mutex
}

func newFixture(t *testing.T, size gpucore.Extent, opts ...software.Option) *fixture {
	t.Helper()
	f := &fixture{backend: software.New(opts...), game: &recorder{}}
	f.loop = NewLoop(NewInit(RendererConfig{
		Backend:  f.backend,
		Window:   gpucore.WindowHandle{Canvas: "test"},
		Size:     size,
		Compiler: fakeSPIRV,
	}), f.game)
	f.loop.OnStateChange(func(s State) {
		f.mu.Lock()
		f.states = append(f.states, s)
		f.mu.Unlock()
	})
	t.Cleanup(func() {
		f.loop.Close()
		if n := f.backend.Live(); n != 0 {
			t.Errorf("%d GPU objects still live after Close", n)
		}
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.loop.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.loop.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if s := f.loop.State(); s != StateRunning {
		t.Fatalf("state = %v, want running", s)
	}
}

func (f *fixture) presented() int {
	d := f.backend.Device(0)
	if d == nil {
		return 0
	}
	return d.SoftwareQueue().Presented()
}

func (f *fixture) seenStates() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.states)
}

func TestResizeFromZeroThenTick(t *testing.T) {
	f := newFixture(t, gpucore.Extent{})
	f.start(t)
	f.wait(t)

	if err := f.loop.Tick(time.Now()); err != nil {
		t.Fatalf("Tick before any size: %v", err)
	}
	if n := f.presented(); n != 0 {
		t.Fatalf("presented %d frames before the surface had a size", n)
	}

	if err := f.loop.Dispatch(ResizeEvent{}); err != nil {
		t.Fatalf("Dispatch zero resize: %v", err)
	}
	if err := f.loop.Dispatch(ResizeEvent{Width: 800, Height: 600}); err != nil {
		t.Fatalf("Dispatch resize: %v", err)
	}
	if err := f.loop.Tick(time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	cfg := f.loop.Renderer().Surface.Config()
	if cfg.Width != 800 || cfg.Height != 600 {
		t.Errorf("surface config = %dx%d, want 800x600", cfg.Width, cfg.Height)
	}
	if n := f.presented(); n != 1 {
		t.Errorf("presented %d frames, want 1", n)
	}
	if got := f.backend.Surface(0).Configs(); len(got) != 1 {
		t.Errorf("surface configured %d times, want 1", len(got))
	}
	if len(f.game.sizes) != 1 || f.game.sizes[0] != (gpucore.Extent{Width: 800, Height: 600}) {
		t.Errorf("game saw frame sizes %v", f.game.sizes)
	}
}

func TestNoFrameBeforeRunning(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, gpucore.Extent{Width: 320, Height: 240}, software.WithDeviceGate(gate))
	f.start(t)

	for range 5 {
		if err := f.loop.Tick(time.Now()); err != nil {
			t.Fatalf("Tick while initializing: %v", err)
		}
		_ = f.loop.Dispatch(KeyEvent{Key: gpucontext.KeySpace, Pressed: true})
	}
	if s := f.loop.State(); s != StateInitializing {
		t.Fatalf("state = %v, want initializing", s)
	}
	if f.presented() != 0 || len(f.game.dts) != 0 || len(f.game.events) != 0 {
		t.Fatalf("work done before running: presented=%d updates=%d events=%d",
			f.presented(), len(f.game.dts), len(f.game.events))
	}
	if f.loop.Renderer() != nil {
		t.Fatal("renderer exposed while initializing")
	}

	close(gate)
	f.wait(t)
	if err := f.loop.Tick(time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if n := f.presented(); n != 1 {
		t.Errorf("presented %d frames, want 1", n)
	}
}

func TestResizeLatchedDuringInit(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, gpucore.Extent{Width: 320, Height: 240}, software.WithDeviceGate(gate))
	f.start(t)

	for _, ev := range []ResizeEvent{{640, 480}, {0, 0}, {1024, 768}, {1024, 0}} {
		if err := f.loop.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch %v: %v", ev, err)
		}
	}
	close(gate)
	f.wait(t)

	configs := f.backend.Surface(0).Configs()
	if len(configs) != 2 {
		t.Fatalf("surface configured %d times, want 2: %v", len(configs), configs)
	}
	if last := configs[1]; last.Width != 1024 || last.Height != 768 {
		t.Errorf("latched config = %dx%d, want 1024x768", last.Width, last.Height)
	}
	want := []Event{ResizeEvent{Width: 1024, Height: 768}}
	if !slices.Equal(f.game.events, want) {
		t.Errorf("game events = %v, want %v", f.game.events, want)
	}

	if err := f.loop.Tick(time.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(f.backend.Surface(0).Configs()) != 2 {
		t.Error("latched resize applied more than once")
	}
}

func TestCloseDuringInitLeaksNothing(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, gpucore.Extent{Width: 320, Height: 240}, software.WithDeviceGate(gate))
	f.start(t)

	f.loop.Close()
	if s := f.loop.State(); s != StateStopped {
		t.Errorf("state = %v, want stopped", s)
	}
	if n := f.backend.Live(); n != 0 {
		t.Errorf("%d GPU objects live after close during init", n)
	}
	if f.game.inits != 0 {
		t.Error("game initialized after cancellation")
	}
	want := []State{StateInitializing, StateShuttingDown, StateStopped}
	if got := f.seenStates(); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}

	// a context can be created again once the cancelled one is gone
	gpu, err := render.NewContext(context.Background(), software.New())
	if err != nil {
		t.Fatalf("NewContext after close: %v", err)
	}
	gpu.Release()
}

func TestConcurrentCloseWaitsForRelease(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, gpucore.Extent{Width: 320, Height: 240}, software.WithDeviceGate(gate))
	f.start(t)

	var wg sync.WaitGroup
	after := make([]State, 4)
	live := make([]int, 4)
	for i := range after {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.loop.Close()
			after[i] = f.loop.State()
			live[i] = f.backend.Live()
		}()
	}
	wg.Wait()
	for i := range after {
		if after[i] != StateStopped || live[i] != 0 {
			t.Errorf("Close #%d returned with state %v and %d live objects", i, after[i], live[i])
		}
	}
}

func TestInitFailure(t *testing.T) {
	tests := []struct {
		name  string
		opts  []software.Option
		game  error
		match error
	}{
		{"no adapter", []software.Option{software.WithoutAdapter()}, nil, voxel.ErrDeviceUnavailable},
		{"no surface format", []software.Option{software.WithSurfaceFormats()}, nil, voxel.ErrUnsupportedSurfaceFormat},
		{"game init", nil, &voxel.AssetLoadError{Name: "grass.png", Err: errors.New("missing")}, voxel.ErrAssetLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, gpucore.Extent{Width: 320, Height: 240}, tt.opts...)
			f.game.initErr = tt.game
			f.start(t)

			err := f.loop.Wait(context.Background())
			if !errors.Is(err, tt.match) {
				t.Fatalf("Wait error = %v, want %v", err, tt.match)
			}
			if !voxel.IsFatal(err) {
				t.Errorf("%v not fatal", err)
			}
			if s := f.loop.State(); s != StateFailed {
				t.Errorf("state = %v, want failed", s)
			}
			if n := f.backend.Live(); n != 0 {
				t.Errorf("%d GPU objects live after failed init", n)
			}
			if err := f.loop.Tick(time.Now()); err != nil {
				t.Errorf("Tick on failed loop: %v", err)
			}
			f.loop.Close()
			if s := f.loop.State(); s != StateFailed {
				t.Errorf("Close changed failed state to %v", s)
			}
		})
	}
}

func TestRunningLoop(t *testing.T) {
	f := newFixture(t, gpucore.Extent{Width: 320, Height: 240})
	f.start(t)
	if err := f.loop.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	f.wait(t)

	now := time.Now()
	for i := range 3 {
		if err := f.loop.Tick(now.Add(time.Duration(i) * 16 * time.Millisecond)); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if want := []time.Duration{0, 16 * time.Millisecond, 16 * time.Millisecond}; !slices.Equal(f.game.dts, want) {
		t.Errorf("dts = %v, want %v", f.game.dts, want)
	}
	if n := f.presented(); n != 3 {
		t.Errorf("presented %d frames, want 3", n)
	}

	key := KeyEvent{Key: gpucontext.KeyW, Pressed: true}
	_ = f.loop.Dispatch(key)
	_ = f.loop.Dispatch(ResizeEvent{Width: 320, Height: 240})
	if !slices.Equal(f.game.events, []Event{key}) {
		t.Errorf("events = %v, want only the key", f.game.events)
	}

	if err := f.loop.Dispatch(CloseEvent{}); err != nil {
		t.Fatalf("Dispatch close: %v", err)
	}
	if s := f.loop.State(); s != StateStopped {
		t.Errorf("state = %v, want stopped", s)
	}
	if n := f.backend.Live(); n != 0 {
		t.Errorf("%d GPU objects live after close", n)
	}
	want := []State{StateInitializing, StateRunning, StateShuttingDown, StateStopped}
	if got := f.seenStates(); !slices.Equal(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if err := f.loop.Tick(time.Now()); err != nil {
		t.Errorf("Tick after close: %v", err)
	}
}

func TestRendererConfigFrom(t *testing.T) {
	cfg := voxel.NewConfig(voxel.WithSize(640, 360), voxel.WithPresentMode("mailbox"))
	rc, err := RendererConfigFrom(cfg, software.New(), gpucore.WindowHandle{Canvas: "c"})
	if err != nil {
		t.Fatalf("RendererConfigFrom: %v", err)
	}
	if rc.Size != (gpucore.Extent{Width: 640, Height: 360}) || rc.PresentMode != gpucore.PresentModeMailbox {
		t.Errorf("config = %+v", rc)
	}
	if rc.ClearColor.A != 1 {
		t.Errorf("clear color = %+v", rc.ClearColor)
	}

	cfg.Render.PresentMode = "vsync"
	if _, err := RendererConfigFrom(cfg, software.New(), gpucore.WindowHandle{}); !errors.Is(err, voxel.ErrInvalidConfig) {
		t.Errorf("bad present mode error = %v", err)
	}
}

func TestStateString(t *testing.T) {
	if got := StateShuttingDown.String(); got != "shutting-down" {
		t.Errorf("String = %q", got)
	}
	if got := State(42).String(); got != "unknown" {
		t.Errorf("String = %q", got)
	}
}
