//go:build js && wasm

package web

import (
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/mokiat/wasmgpu"

	"github.com/gogpu/voxel/gpucore"
)

// CreateSurface binds the canvas whose DOM id is window.Canvas.
func (i *Instance) CreateSurface(window gpucore.WindowHandle) (gpucore.Surface, error) {
	canvas := js.Global().Get("document").Call("getElementById", window.Canvas)
	if canvas.IsNull() || canvas.IsUndefined() {
		return nil, fmt.Errorf("%w: no canvas with id %q", gpucore.ErrInvalidDescriptor, window.Canvas)
	}
	ctx := canvas.Call("getContext", "webgpu")
	if ctx.IsNull() {
		return nil, fmt.Errorf("web: canvas %q has no webgpu context", window.Canvas)
	}
	return &Surface{canvas: canvas, context: wasmgpu.NewCanvasContext(ctx)}, nil
}

// Surface wraps a GPUCanvasContext.
type Surface struct {
	canvas  js.Value
	context wasmgpu.GPUCanvasContext

	mu         sync.Mutex
	device     *Device
	config     gpucore.SurfaceConfig
	configured bool
	current    gpucore.TextureID
}

// Configure sizes the canvas backing store and configures the context.
// Browsers have no present modes; the mode is ignored.
func (s *Surface) Configure(d gpucore.Device, cfg gpucore.SurfaceConfig) error {
	dev, ok := d.(*Device)
	if !ok {
		return fmt.Errorf("%w: %T", ErrWrongDevice, d)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: surface size %dx%d", gpucore.ErrInvalidDescriptor, cfg.Width, cfg.Height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != gpucore.InvalidID {
		return errors.New("web: configure with an acquired frame outstanding")
	}
	s.canvas.Set("width", cfg.Width)
	s.canvas.Set("height", cfg.Height)
	s.context.Configure(wasmgpu.GPUCanvasConfiguration{
		Device: dev.device,
		Format: textureFormat(cfg.Format),
	})
	s.device = dev
	s.config = cfg
	s.configured = true
	return nil
}

// Acquire wraps getCurrentTexture. A canvas resized behind our back is
// reported as outdated.
func (s *Surface) Acquire() (gpucore.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return gpucore.Frame{}, gpucore.ErrNotConfigured
	}
	if s.current != gpucore.InvalidID {
		return gpucore.Frame{}, errors.New("web: frame already acquired")
	}
	if uint32(s.canvas.Get("width").Int()) != s.config.Width || //nolint:gosec // canvas sizes are small
		uint32(s.canvas.Get("height").Int()) != s.config.Height { //nolint:gosec // canvas sizes are small
		return gpucore.Frame{}, gpucore.ErrSurfaceOutdated
	}
	tex := s.context.GetCurrentTexture()
	s.current = s.device.addTexture(&texture{
		tex:  tex,
		view: tex.CreateView(),
		desc: gpucore.TextureDesc{
			Label:  "canvas",
			Width:  s.config.Width,
			Height: s.config.Height,
			Format: s.config.Format,
			Usage:  gpucore.TextureUsageRenderAttachment,
		},
		frame: true,
	})
	return gpucore.Frame{Texture: s.current, Width: s.config.Width, Height: s.config.Height}, nil
}

// Discard drops the frame view.
func (s *Surface) Discard(f gpucore.Frame) { s.release(f) }

func (s *Surface) release(f gpucore.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Texture == gpucore.InvalidID || f.Texture != s.current {
		return false
	}
	s.device.DestroyTexture(s.current)
	s.current = gpucore.InvalidID
	return true
}

// Destroy unconfigures the canvas context.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configured {
		s.context.Unconfigure()
		s.configured = false
	}
}
