//go:build js && wasm

// Package web implements the gpucore interfaces on the browser WebGPU API
// through mokiat/wasmgpu. Adapter and device requests await JS promises
// and honor context cancellation.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall/js"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/backend"
	"github.com/gogpu/voxel/gpucore"
)

func init() {
	backend.Register(backend.BackendWeb, func() gpucore.Backend { return &Backend{} })
}

func slogger() *slog.Logger { return voxel.Logger() }

// Errors returned by the web backend.
var (
	// ErrNoWebGPU is returned when navigator.gpu is missing.
	ErrNoWebGPU = errors.New("web: WebGPU is not supported by this browser")

	// ErrNoAdapter is returned when requestAdapter resolves to null.
	ErrNoAdapter = errors.New("web: no suitable GPU adapter")

	// ErrWrongDevice is returned for objects from another backend.
	ErrWrongDevice = errors.New("web: object belongs to another backend")
)

// Backend is the browser gpucore.Backend.
type Backend struct{}

// Name returns "web".
func (b *Backend) Name() string { return backend.BackendWeb }

// CreateInstance looks up navigator.gpu.
func (b *Backend) CreateInstance() (gpucore.Instance, error) {
	gpu := js.Global().Get("navigator").Get("gpu")
	if gpu.IsUndefined() || gpu.IsNull() {
		return nil, ErrNoWebGPU
	}
	return &Instance{gpu: gpu}, nil
}

// Instance wraps navigator.gpu.
type Instance struct {
	gpu js.Value
}

// RequestAdapter awaits navigator.gpu.requestAdapter().
func (i *Instance) RequestAdapter(ctx context.Context, _ gpucore.Surface) (gpucore.Adapter, error) {
	opts := js.Global().Get("Object").New()
	opts.Set("powerPreference", "high-performance")
	v, err := await(ctx, i.gpu.Call("requestAdapter", opts))
	if err != nil {
		return nil, fmt.Errorf("web: request adapter: %w", err)
	}
	if v.IsNull() || v.IsUndefined() {
		return nil, ErrNoAdapter
	}
	a := &Adapter{gpu: i.gpu, adapter: v}
	slogger().Info("web: adapter selected", "name", a.Info().Name)
	return a, nil
}

// Destroy is a no-op; the browser owns navigator.gpu.
func (i *Instance) Destroy() {}

// Adapter wraps a GPUAdapter.
type Adapter struct {
	gpu     js.Value
	adapter js.Value
}

// Info reads adapter.info where the browser exposes it.
func (a *Adapter) Info() gpucore.AdapterInfo {
	info := gpucore.AdapterInfo{Backend: backend.BackendWeb, DeviceType: "other"}
	if v := a.adapter.Get("info"); v.Type() == js.TypeObject {
		info.Name = v.Get("vendor").String() + " " + v.Get("architecture").String()
	}
	return info
}

// Limits reads adapter.limits.
func (a *Adapter) Limits() gpucore.Limits {
	l := a.adapter.Get("limits")
	if l.Type() != js.TypeObject {
		return gpucore.DefaultLimits()
	}
	return gpucore.Limits{
		MaxTextureDimension2D: uint32(l.Get("maxTextureDimension2D").Int()), //nolint:gosec // browser limits fit
		MaxBufferSize:         uint64(l.Get("maxBufferSize").Float()),
		MaxBindGroups:         uint32(l.Get("maxBindGroups").Int()),       //nolint:gosec // browser limits fit
		MaxVertexBuffers:      uint32(l.Get("maxVertexBuffers").Int()),    //nolint:gosec // browser limits fit
		MaxVertexAttributes:   uint32(l.Get("maxVertexAttributes").Int()), //nolint:gosec // browser limits fit
	}
}

// SurfaceFormats returns the preferred canvas format first, then its
// linear/sRGB sibling.
func (a *Adapter) SurfaceFormats(s gpucore.Surface) []gpucore.TextureFormat {
	if _, ok := s.(*Surface); !ok {
		return nil
	}
	switch a.gpu.Call("getPreferredCanvasFormat").String() {
	case "rgba8unorm":
		return []gpucore.TextureFormat{gpucore.TextureFormatRGBA8Unorm, gpucore.TextureFormatRGBA8UnormSRGB}
	default:
		return []gpucore.TextureFormat{gpucore.TextureFormatBGRA8Unorm, gpucore.TextureFormatBGRA8UnormSRGB}
	}
}

// RequestDevice awaits adapter.requestDevice(). Cancelling ctx abandons
// the request.
func (a *Adapter) RequestDevice(ctx context.Context, required gpucore.Limits) (gpucore.Device, error) {
	if !a.Limits().Satisfies(required) {
		return nil, errors.New("web: adapter does not meet required limits")
	}
	v, err := await(ctx, a.adapter.Call("requestDevice"))
	if err != nil {
		return nil, fmt.Errorf("web: request device: %w", err)
	}
	return newDevice(v, a.Limits()), nil
}
