// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/voxel/gpucore"
)

// CreateSurface binds a HAL surface to a native window.
func (i *Instance) CreateSurface(window gpucore.WindowHandle) (gpucore.Surface, error) {
	if window.Window == 0 {
		return nil, fmt.Errorf("%w: no native window handle", gpucore.ErrInvalidDescriptor)
	}
	s, err := i.inst.CreateSurface(window.Display, window.Window)
	if err != nil {
		return nil, fmt.Errorf("native: create surface: %w", err)
	}
	return &Surface{instance: i, surface: s}, nil
}

// Surface wraps a hal.Surface. An acquired frame is exposed as a texture
// whose view is owned by the device until the frame is presented or
// discarded.
type Surface struct {
	instance *Instance
	surface  hal.Surface

	mu         sync.Mutex
	device     *Device
	config     gpucore.SurfaceConfig
	configured bool
	current    gpucore.TextureID
	acquired   hal.SurfaceTexture
	destroyed  bool
}

func surfaceFormats(a hal.Adapter, s gpucore.Surface) []gpucore.TextureFormat {
	ns, ok := s.(*Surface)
	if !ok {
		return nil
	}
	caps := a.SurfaceCapabilities(ns.surface)
	if caps == nil {
		return nil
	}
	var out []gpucore.TextureFormat
	for _, f := range caps.Formats {
		if cf := coreFormat(f); cf != 0 {
			out = append(out, cf)
		}
	}
	return out
}

func presentMode(m gpucore.PresentMode) hal.PresentMode {
	switch m {
	case gpucore.PresentModeMailbox:
		return hal.PresentModeMailbox
	case gpucore.PresentModeImmediate:
		return hal.PresentModeImmediate
	}
	return hal.PresentModeFifo
}

// Configure applies cfg on d.
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
		return errors.New("native: configure with an acquired frame outstanding")
	}
	err := s.surface.Configure(dev.device, &hal.SurfaceConfiguration{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      textureFormat(cfg.Format),
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: presentMode(cfg.PresentMode),
		AlphaMode:   hal.CompositeAlphaModeOpaque,
	})
	if err != nil {
		return fmt.Errorf("native: configure surface %dx%d: %w", cfg.Width, cfg.Height, err)
	}
	s.device = dev
	s.config = cfg
	s.configured = true
	return nil
}

// Acquire gets the next swapchain image.
func (s *Surface) Acquire() (gpucore.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured || s.destroyed {
		return gpucore.Frame{}, gpucore.ErrNotConfigured
	}
	if s.current != gpucore.InvalidID {
		return gpucore.Frame{}, errors.New("native: frame already acquired")
	}
	acquired, err := s.surface.AcquireTexture(nil)
	switch {
	case errors.Is(err, hal.ErrSurfaceLost):
		return gpucore.Frame{}, fmt.Errorf("%w: %w", gpucore.ErrSurfaceLost, err)
	case errors.Is(err, hal.ErrSurfaceOutdated):
		return gpucore.Frame{}, fmt.Errorf("%w: %w", gpucore.ErrSurfaceOutdated, err)
	case err != nil:
		return gpucore.Frame{}, fmt.Errorf("native: acquire: %w", err)
	}

	format := textureFormat(s.config.Format)
	view, err := s.device.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:         "surface_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.surface.DiscardTexture(acquired.Texture)
		return gpucore.Frame{}, fmt.Errorf("native: surface view: %w", err)
	}
	s.acquired = acquired.Texture
	s.current = s.device.addTexture(&texture{
		tex:  acquired.Texture,
		view: view,
		desc: gpucore.TextureDesc{
			Label:  "surface",
			Width:  s.config.Width,
			Height: s.config.Height,
			Format: s.config.Format,
			Usage:  gpucore.TextureUsageRenderAttachment,
		},
		frame: true,
	})
	return gpucore.Frame{
		Texture:    s.current,
		Width:      s.config.Width,
		Height:     s.config.Height,
		Suboptimal: acquired.Suboptimal,
	}, nil
}

// Discard returns an acquired frame without presenting it.
func (s *Surface) Discard(f gpucore.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tex := s.releaseLocked(f); tex != nil {
		s.surface.DiscardTexture(tex)
	}
}

// releaseLocked drops the frame view and returns the surface texture, or
// nil when f is not the current frame.
func (s *Surface) releaseLocked(f gpucore.Frame) hal.SurfaceTexture {
	if f.Texture == gpucore.InvalidID || f.Texture != s.current {
		return nil
	}
	s.device.DestroyTexture(s.current)
	tex := s.acquired
	s.current = gpucore.InvalidID
	s.acquired = nil
	return tex
}

// Present queues the current frame for display.
func (q *Queue) Present(surface gpucore.Surface, f gpucore.Frame) error {
	s, ok := surface.(*Surface)
	if !ok {
		return fmt.Errorf("%w: surface %T", ErrWrongDevice, surface)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tex := s.releaseLocked(f)
	if tex == nil {
		return fmt.Errorf("%w: frame %d is not acquired", gpucore.ErrUnknownResource, f.Texture)
	}
	switch err := q.queue.Present(s.surface, tex, nil); {
	case errors.Is(err, hal.ErrSurfaceLost):
		return fmt.Errorf("%w: %w", gpucore.ErrSurfaceLost, err)
	case errors.Is(err, hal.ErrSurfaceOutdated):
		return fmt.Errorf("%w: %w", gpucore.ErrSurfaceOutdated, err)
	case err != nil:
		return fmt.Errorf("native: present: %w", err)
	}
	return nil
}

// Destroy unconfigures and releases the surface.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	if s.current != gpucore.InvalidID {
		if tex := s.releaseLocked(gpucore.Frame{Texture: s.current}); tex != nil {
			s.surface.DiscardTexture(tex)
		}
	}
	if s.configured && s.device != nil {
		s.surface.Unconfigure(s.device.device)
	}
	s.surface.Destroy()
}
