// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

// Package native implements the gpucore interfaces on the Pure Go
// gogpu/wgpu HAL. The Vulkan HAL is registered at init; tests can wrap
// any other hal.Instance with NewInstance.
package native

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/voxel/backend"
	"github.com/gogpu/voxel/gpucore"
)

func init() {
	backend.Register(backend.BackendNative, func() gpucore.Backend { return &Backend{api: gputypes.BackendVulkan} })
}

// Errors returned by the native backend.
var (
	// ErrHALUnavailable is returned when the HAL API is not compiled in.
	ErrHALUnavailable = errors.New("native: HAL backend not available")

	// ErrNoAdapter is returned when no adapter can serve the request.
	ErrNoAdapter = errors.New("native: no suitable GPU adapter")

	// ErrWrongDevice is returned when a resource from another backend is
	// passed in.
	ErrWrongDevice = errors.New("native: device belongs to another backend")
)

// Backend opens instances of one HAL API.
type Backend struct {
	api gputypes.Backend
}

// Name returns "native".
func (b *Backend) Name() string { return backend.BackendNative }

// CreateInstance creates a HAL instance.
func (b *Backend) CreateInstance() (gpucore.Instance, error) {
	api, ok := hal.GetBackend(b.api)
	if !ok {
		return nil, ErrHALUnavailable
	}
	inst, err := api.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	return NewInstance(inst), nil
}

// Instance wraps a hal.Instance.
type Instance struct {
	inst hal.Instance

	mu        sync.Mutex
	destroyed bool
}

// NewInstance wraps inst. The returned Instance owns inst.
func NewInstance(inst hal.Instance) *Instance {
	return &Instance{inst: inst}
}

// RequestAdapter picks a discrete or integrated GPU, falling back to the
// first adapter. With a compatible surface only adapters that can present
// to it are considered.
func (i *Instance) RequestAdapter(ctx context.Context, compatible gpucore.Surface) (gpucore.Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	adapters := i.inst.EnumerateAdapters(nil)

	var candidates []*hal.ExposedAdapter
	for k := range adapters {
		a := &adapters[k]
		if compatible != nil && len(surfaceFormats(a.Adapter, compatible)) == 0 {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil, ErrNoAdapter
	}

	selected := candidates[0]
	for _, a := range candidates {
		if a.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			a.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = a
			break
		}
	}
	slogger().Info("native: adapter selected", "name", selected.Info.Name, "type", deviceTypeName(selected.Info.DeviceType))
	return &Adapter{exposed: selected}, nil
}

// Destroy releases the HAL instance.
func (i *Instance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return
	}
	i.destroyed = true
	i.inst.Destroy()
}

// Adapter wraps a hal.ExposedAdapter.
type Adapter struct {
	exposed *hal.ExposedAdapter
}

// Info describes the adapter.
func (a *Adapter) Info() gpucore.AdapterInfo {
	return gpucore.AdapterInfo{
		Name:       a.exposed.Info.Name,
		Backend:    backend.BackendNative,
		DeviceType: deviceTypeName(a.exposed.Info.DeviceType),
	}
}

// Limits reports the WebGPU baseline the device is opened with.
func (a *Adapter) Limits() gpucore.Limits { return limitsFrom(gputypes.DefaultLimits()) }

// SurfaceFormats returns the formats the adapter can present to s.
func (a *Adapter) SurfaceFormats(s gpucore.Surface) []gpucore.TextureFormat {
	return surfaceFormats(a.exposed.Adapter, s)
}

// RequestDevice opens the logical device.
func (a *Adapter) RequestDevice(ctx context.Context, required gpucore.Limits) (gpucore.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !a.Limits().Satisfies(required) {
		return nil, fmt.Errorf("native: adapter %q does not meet required limits", a.exposed.Info.Name)
	}
	open, err := a.exposed.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	return newDevice(open.Device, open.Queue, a.Limits()), nil
}

func deviceTypeName(t gputypes.DeviceType) string {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		return "integrated"
	}
	return "other"
}

func limitsFrom(l gputypes.Limits) gpucore.Limits {
	return gpucore.Limits{
		MaxTextureDimension2D: l.MaxTextureDimension2D,
		MaxBufferSize:         l.MaxBufferSize,
		MaxBindGroups:         l.MaxBindGroups,
		MaxVertexBuffers:      l.MaxVertexBuffers,
		MaxVertexAttributes:   l.MaxVertexAttributes,
	}
}
