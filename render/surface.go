// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

// ErrSurfacePending is returned by AcquireFrame while the surface waits
// for its first non-zero size.
var ErrSurfacePending = errors.New("render: surface waiting for a non-zero size")

// SurfaceOption configures ConfigureSurface.
type SurfaceOption func(*surfaceOptions)

type surfaceOptions struct {
	presentMode gpucore.PresentMode
	format      gpucore.TextureFormat
}

// WithPresentMode selects the present mode. The default is FIFO.
func WithPresentMode(m gpucore.PresentMode) SurfaceOption {
	return func(o *surfaceOptions) { o.presentMode = m }
}

// WithSurfaceFormat requires a specific surface format instead of the
// adapter's preferred sRGB format.
func WithSurfaceFormat(f gpucore.TextureFormat) SurfaceOption {
	return func(o *surfaceOptions) { o.format = f }
}

// SurfaceTarget owns a presentable surface and its configuration.
//
// The configuration always matches the last non-zero size the host
// reported. Resize reconfigures synchronously, so the next AcquireFrame
// returns a frame of the new size.
type SurfaceTarget struct {
	gpu     *Context
	surface gpucore.Surface

	mu         sync.Mutex
	config     gpucore.SurfaceConfig
	configured bool
	listeners  []func(gpucore.Extent) error
	released   bool
}

// ConfigureSurface binds surface to the context and applies the initial
// configuration. The surface is owned by the returned target, also on
// failure.
//
// It fails with voxel.ErrUnsupportedSurfaceFormat when the adapter cannot
// present to the surface. A zero size defers configuration until Resize
// reports a valid one.
func ConfigureSurface(gpu *Context, surface gpucore.Surface, size gpucore.Extent, opts ...SurfaceOption) (*SurfaceTarget, error) {
	if surface == nil {
		return nil, fmt.Errorf("%w: no surface", voxel.ErrUnsupportedSurfaceFormat)
	}
	o := surfaceOptions{presentMode: gpucore.PresentModeFifo}
	for _, opt := range opts {
		opt(&o)
	}

	format, err := chooseFormat(gpu.Adapter().SurfaceFormats(surface), o.format)
	if err != nil {
		surface.Destroy()
		return nil, err
	}

	t := &SurfaceTarget{
		gpu:     gpu,
		surface: surface,
		config: gpucore.SurfaceConfig{
			Width:       size.Width,
			Height:      size.Height,
			Format:      format,
			PresentMode: o.presentMode,
		},
	}
	if size.IsZero() {
		slogger().Debug("render: surface configuration deferred", "size", size)
		return t, nil
	}
	if err := t.apply(); err != nil {
		surface.Destroy()
		return nil, err
	}
	return t, nil
}

// chooseFormat picks want if the adapter supports it, otherwise the first
// sRGB format, otherwise the first format.
func chooseFormat(formats []gpucore.TextureFormat, want gpucore.TextureFormat) (gpucore.TextureFormat, error) {
	if len(formats) == 0 {
		return 0, fmt.Errorf("%w: adapter cannot present to this surface", voxel.ErrUnsupportedSurfaceFormat)
	}
	if want != 0 {
		if !slices.Contains(formats, want) {
			return 0, fmt.Errorf("%w: %s not in %v", voxel.ErrUnsupportedSurfaceFormat, want, formats)
		}
		return want, nil
	}
	for _, f := range formats {
		if f.IsSRGB() {
			return f, nil
		}
	}
	return formats[0], nil
}

// apply configures the surface with t.config. t.mu must be held or t not
// yet shared.
func (t *SurfaceTarget) apply() error {
	if err := t.surface.Configure(t.gpu.Device(), t.config); err != nil {
		return fmt.Errorf("render: configure surface %s: %w", t.config.Size(), err)
	}
	t.configured = true
	slogger().Debug("render: surface configured",
		"size", t.config.Size(), "format", t.config.Format, "present", t.config.PresentMode)
	return nil
}

// OnResize registers fn to run after every successful resize, with the new
// size. Size-dependent resources such as the depth texture are rebuilt
// from here.
func (t *SurfaceTarget) OnResize(fn func(gpucore.Extent) error) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Resize reconfigures the surface for size and notifies the resize
// listeners. A zero width or height, or the current size, is ignored and
// reports false.
func (t *SurfaceTarget) Resize(size gpucore.Extent) (bool, error) {
	if size.IsZero() {
		return false, nil
	}
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return false, voxel.ErrReleased
	}
	if t.configured && t.config.Size() == size {
		t.mu.Unlock()
		return false, nil
	}
	prev := t.config
	t.config.Width, t.config.Height = size.Width, size.Height
	if err := t.apply(); err != nil {
		t.config = prev
		t.mu.Unlock()
		return false, err
	}
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	var errs []error
	for _, fn := range listeners {
		if err := fn(size); err != nil {
			errs = append(errs, err)
		}
	}
	return true, errors.Join(errs...)
}

// Reconfigure re-applies the current configuration. It is the recovery
// step after a lost or outdated surface.
func (t *SurfaceTarget) Reconfigure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return voxel.ErrReleased
	}
	if t.config.Size().IsZero() {
		return nil
	}
	return t.apply()
}

// AcquireFrame returns the next frame. Its dimensions equal the current
// configuration. Lost or outdated surfaces produce an error matching
// voxel.ErrRecoverableSurface.
func (t *SurfaceTarget) AcquireFrame() (gpucore.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return gpucore.Frame{}, voxel.ErrReleased
	}
	if !t.configured {
		return gpucore.Frame{}, ErrSurfacePending
	}
	f, err := t.surface.Acquire()
	if err != nil {
		return gpucore.Frame{}, fmt.Errorf("render: acquire frame: %w", err)
	}
	if f.Width != t.config.Width || f.Height != t.config.Height {
		t.surface.Discard(f)
		return gpucore.Frame{}, fmt.Errorf("render: frame %dx%d does not match surface %s: %w",
			f.Width, f.Height, t.config.Size(), gpucore.ErrSurfaceOutdated)
	}
	return f, nil
}

// Present queues f for display.
func (t *SurfaceTarget) Present(f gpucore.Frame) error {
	return t.gpu.Queue().Present(t.surface, f)
}

// Discard releases f without presenting it.
func (t *SurfaceTarget) Discard(f gpucore.Frame) {
	t.surface.Discard(f)
}

// Config returns the current configuration.
func (t *SurfaceTarget) Config() gpucore.SurfaceConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.config
}

// Size returns the configured size.
func (t *SurfaceTarget) Size() gpucore.Extent { return t.Config().Size() }

// Format returns the surface format.
func (t *SurfaceTarget) Format() gpucore.TextureFormat { return t.Config().Format }

// Configured reports whether the surface has been configured with a
// non-zero size.
func (t *SurfaceTarget) Configured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configured
}

// Release destroys the surface.
func (t *SurfaceTarget) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.configured = false
	t.surface.Destroy()
}
