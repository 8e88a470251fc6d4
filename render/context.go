// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

// active guards the process-wide GPU context.
var active atomic.Bool

// ContextOption configures NewContext.
type ContextOption func(*contextOptions)

type contextOptions struct {
	limits gpucore.Limits
	window *gpucore.WindowHandle
}

// WithRequiredLimits sets the limits the device must satisfy.
// The default is gpucore.DefaultLimits.
func WithRequiredLimits(l gpucore.Limits) ContextOption {
	return func(o *contextOptions) { o.limits = l }
}

// WithWindow creates a surface for the window before the adapter is
// requested, so that the adapter can present to it. Take the surface with
// Context.TakeSurface.
func WithWindow(h gpucore.WindowHandle) ContextOption {
	return func(o *contextOptions) { o.window = &h }
}

// Context owns the GPU instance, adapter, device and queue.
// Only one Context may be live per process.
type Context struct {
	backendName string
	instance    gpucore.Instance
	adapter     gpucore.Adapter
	device      gpucore.Device
	queue       gpucore.Queue

	mu       sync.Mutex
	surface  gpucore.Surface
	released bool
}

// NewContext initializes the GPU on b. It blocks until the adapter and
// device requests complete or ctx is done. On the browser backend those
// requests wait on JS promises.
//
// Errors wrap voxel.ErrDeviceUnavailable when no adapter or device could
// be obtained, and voxel.ErrContextExists when another Context is live.
// Every object created before a failure is released.
func NewContext(ctx context.Context, b gpucore.Backend, opts ...ContextOption) (_ *Context, err error) {
	if b == nil {
		return nil, fmt.Errorf("%w: no backend", voxel.ErrDeviceUnavailable)
	}
	if !active.CompareAndSwap(false, true) {
		return nil, voxel.ErrContextExists
	}

	o := contextOptions{limits: gpucore.DefaultLimits()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Context{backendName: b.Name()}
	defer func() {
		if err != nil {
			c.teardown()
			active.Store(false)
		}
	}()

	c.instance, err = b.CreateInstance()
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", voxel.ErrDeviceUnavailable, err)
	}
	if o.window != nil {
		c.surface, err = c.instance.CreateSurface(*o.window)
		if err != nil {
			return nil, fmt.Errorf("%w: create surface: %w", voxel.ErrDeviceUnavailable, err)
		}
	}
	c.adapter, err = c.instance.RequestAdapter(ctx, c.surface)
	if err != nil {
		return nil, fmt.Errorf("%w: request adapter: %w", voxel.ErrDeviceUnavailable, err)
	}
	c.device, err = c.adapter.RequestDevice(ctx, o.limits)
	if err != nil {
		return nil, fmt.Errorf("%w: request device: %w", voxel.ErrDeviceUnavailable, err)
	}
	c.queue = c.device.Queue()

	info := c.adapter.Info()
	slogger().Info("render: GPU context ready",
		"backend", c.backendName, "adapter", info.Name, "type", info.DeviceType)
	return c, nil
}

// CreateSurface creates a surface for window on the context's instance.
// The caller owns the surface; hand it to ConfigureSurface.
func (c *Context) CreateSurface(window gpucore.WindowHandle) (gpucore.Surface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, voxel.ErrReleased
	}
	return c.instance.CreateSurface(window)
}

// TakeSurface returns the surface created by WithWindow and transfers its
// ownership to the caller. It returns nil on subsequent calls.
func (c *Context) TakeSurface() gpucore.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.surface
	c.surface = nil
	return s
}

// BackendName returns the name of the backend the context runs on.
func (c *Context) BackendName() string { return c.backendName }

// Instance returns the GPU instance.
func (c *Context) Instance() gpucore.Instance { return c.instance }

// Adapter returns the selected adapter.
func (c *Context) Adapter() gpucore.Adapter { return c.adapter }

// Device returns the logical device.
func (c *Context) Device() gpucore.Device { return c.device }

// Queue returns the device queue.
func (c *Context) Queue() gpucore.Queue { return c.queue }

// Release waits for the queue to drain, then destroys the device and the
// instance. It is safe to call more than once.
func (c *Context) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	if c.queue != nil {
		if err := c.queue.WaitIdle(); err != nil {
			slogger().Warn("render: wait idle on release", "err", err)
		}
	}
	c.teardown()
	active.Store(false)
	slogger().Info("render: GPU context released", "backend", c.backendName)
}

// teardown destroys whatever was created, newest first.
func (c *Context) teardown() {
	if c.surface != nil {
		c.surface.Destroy()
		c.surface = nil
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}

// IsDeviceUnavailable reports whether err means no GPU path exists.
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, voxel.ErrDeviceUnavailable)
}
