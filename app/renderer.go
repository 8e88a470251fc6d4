// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
	"github.com/gogpu/voxel/render"
)

// Renderer bundles the render components created by the init task.
// Release destroys them in reverse creation order.
type Renderer struct {
	GPU       *render.Context
	Surface   *render.SurfaceTarget
	Store     *render.ResourceStore
	Pipelines *render.PipelineSet
	Frames    *render.FrameExecutor

	once sync.Once
}

// Release destroys the pipelines, the resource store, the surface and the
// GPU context, in that order. It is safe to call more than once.
func (r *Renderer) Release() {
	r.once.Do(func() {
		if r.Pipelines != nil {
			r.Pipelines.Release()
		}
		if r.Store != nil {
			r.Store.Release()
		}
		if r.Surface != nil {
			r.Surface.Release()
		}
		if r.GPU != nil {
			r.GPU.Release()
		}
		slogger().Debug("app: renderer released")
	})
}

// RendererConfig describes the renderer an init task builds.
type RendererConfig struct {
	Backend gpucore.Backend
	Window  gpucore.WindowHandle
	// Size is the initial drawable size. A zero size defers surface
	// configuration to the first non-zero resize.
	Size        gpucore.Extent
	PresentMode gpucore.PresentMode
	ClearColor  gpucore.Color
	// Limits defaults to gpucore.DefaultLimits.
	Limits gpucore.Limits
	// Compiler replaces the WGSL compiler when set.
	Compiler render.Compiler
}

// RendererConfigFrom fills a RendererConfig from the render and window
// sections of cfg.
func RendererConfigFrom(cfg voxel.Config, b gpucore.Backend, window gpucore.WindowHandle) (RendererConfig, error) {
	mode, err := gpucore.ParsePresentMode(cfg.Render.PresentMode)
	if err != nil {
		return RendererConfig{}, fmt.Errorf("%w: %w", voxel.ErrInvalidConfig, err)
	}
	c := cfg.Render.ClearColor
	return RendererConfig{
		Backend:     b,
		Window:      window,
		Size:        gpucore.Extent{Width: uint32(max(cfg.Window.Width, 0)), Height: uint32(max(cfg.Window.Height, 0))}, //nolint:gosec // clamped
		PresentMode: mode,
		ClearColor:  gpucore.Color{R: c[0], G: c[1], B: c[2], A: c[3]},
	}, nil
}

// NewRenderer creates the render components for cfg. Creation stops at
// the first failure or when ctx is done, and everything created so far is
// released before NewRenderer returns.
func NewRenderer(ctx context.Context, cfg RendererConfig) (_ *Renderer, err error) {
	var teardown []func()
	defer func() {
		if err != nil {
			for i := len(teardown) - 1; i >= 0; i-- {
				teardown[i]()
			}
		}
	}()
	step := func() error {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("app: init cancelled: %w", cerr)
		}
		return nil
	}

	opts := []render.ContextOption{render.WithWindow(cfg.Window)}
	if cfg.Limits != (gpucore.Limits{}) {
		opts = append(opts, render.WithRequiredLimits(cfg.Limits))
	}
	gpu, err := render.NewContext(ctx, cfg.Backend, opts...)
	if err != nil {
		return nil, err
	}
	teardown = append(teardown, gpu.Release)
	if err := step(); err != nil {
		return nil, err
	}

	surface, err := render.ConfigureSurface(gpu, gpu.TakeSurface(), cfg.Size, render.WithPresentMode(cfg.PresentMode))
	if err != nil {
		return nil, err
	}
	teardown = append(teardown, surface.Release)
	if err := step(); err != nil {
		return nil, err
	}

	store := render.NewResourceStore(gpu)
	teardown = append(teardown, store.Release)
	surface.OnResize(store.RebuildDepthTexture)

	pipelines := render.NewPipelineSet(gpu)
	teardown = append(teardown, pipelines.Release)
	if cfg.Compiler != nil {
		pipelines.SetCompiler(cfg.Compiler)
	}

	return &Renderer{
		GPU:       gpu,
		Surface:   surface,
		Store:     store,
		Pipelines: pipelines,
		Frames:    render.NewFrameExecutor(gpu, surface, store, cfg.ClearColor),
	}, nil
}

// NewInit returns an init task building a renderer from cfg.
func NewInit(cfg RendererConfig) InitFunc {
	return func(ctx context.Context) (*Renderer, error) {
		return NewRenderer(ctx, cfg)
	}
}
