// Package software provides an in-memory gpucore backend.
//
// Nothing is rasterized: the device keeps buffer and texture contents in
// memory, validates every command against live resources, and records each
// submission. It backs headless runs and lets tests observe what the GPU
// would have seen, inject surface failures and count leaked handles.
package software

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/voxel/backend"
	"github.com/gogpu/voxel/gpucore"
)

func init() {
	backend.Register(backend.BackendSoftware, func() gpucore.Backend { return New() })
}

// ErrNoAdapter is returned by RequestAdapter when the backend was created
// WithoutAdapter.
var ErrNoAdapter = errors.New("software: no adapter")

// Option configures a Backend.
type Option func(*Backend)

// WithSurfaceFormats overrides the formats adapters report for surfaces.
// An empty list makes every surface unpresentable.
func WithSurfaceFormats(formats ...gpucore.TextureFormat) Option {
	return func(b *Backend) { b.formats = formats }
}

// WithoutAdapter makes RequestAdapter fail.
func WithoutAdapter() Option {
	return func(b *Backend) { b.noAdapter = true }
}

// WithLimits overrides the adapter limits.
func WithLimits(l gpucore.Limits) Option {
	return func(b *Backend) { b.limits = l }
}

// WithManualCompletion keeps submissions in flight until Queue.CompleteAll
// or Queue.WaitIdle is called.
func WithManualCompletion() Option {
	return func(b *Backend) { b.manualCompletion = true }
}

// WithDeviceGate blocks RequestDevice until gate is closed or the request
// context is done, imitating a slow browser device request.
func WithDeviceGate(gate <-chan struct{}) Option {
	return func(b *Backend) { b.deviceGate = gate }
}

// Backend is the software gpucore.Backend.
type Backend struct {
	formats          []gpucore.TextureFormat
	noAdapter        bool
	limits           gpucore.Limits
	manualCompletion bool
	deviceGate       <-chan struct{}

	live atomic.Int64

	mu       sync.Mutex
	surfaces []*Surface
	devices  []*Device
}

// New creates a software backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		formats: []gpucore.TextureFormat{gpucore.TextureFormatBGRA8UnormSRGB, gpucore.TextureFormatBGRA8Unorm},
		limits:  gpucore.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "software".
func (b *Backend) Name() string { return backend.BackendSoftware }

// CreateInstance creates an instance.
func (b *Backend) CreateInstance() (gpucore.Instance, error) {
	b.live.Add(1)
	return &Instance{backend: b}, nil
}

// Live returns the number of objects created through this backend that
// have not been destroyed: instances, surfaces, devices and every device
// resource, including acquired frames.
func (b *Backend) Live() int { return int(b.live.Load()) }

// Surface returns the i-th surface created through this backend.
func (b *Backend) Surface(i int) *Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.surfaces) {
		return nil
	}
	return b.surfaces[i]
}

// Device returns the i-th device created through this backend.
func (b *Backend) Device(i int) *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.devices) {
		return nil
	}
	return b.devices[i]
}

// Instance is the software gpucore.Instance.
type Instance struct {
	backend   *Backend
	destroyed atomic.Bool
}

// CreateSurface creates a surface. The window handle is recorded but not
// used.
func (i *Instance) CreateSurface(window gpucore.WindowHandle) (gpucore.Surface, error) {
	s := &Surface{backend: i.backend, window: window}
	i.backend.live.Add(1)
	i.backend.mu.Lock()
	i.backend.surfaces = append(i.backend.surfaces, s)
	i.backend.mu.Unlock()
	return s, nil
}

// RequestAdapter returns the single software adapter.
func (i *Instance) RequestAdapter(ctx context.Context, _ gpucore.Surface) (gpucore.Adapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i.backend.noAdapter {
		return nil, ErrNoAdapter
	}
	return &Adapter{backend: i.backend}, nil
}

// Destroy releases the instance.
func (i *Instance) Destroy() {
	if i.destroyed.CompareAndSwap(false, true) {
		i.backend.live.Add(-1)
	}
}

// Adapter is the software gpucore.Adapter.
type Adapter struct {
	backend *Backend
}

// Info describes the adapter.
func (a *Adapter) Info() gpucore.AdapterInfo {
	return gpucore.AdapterInfo{Name: "software", Backend: backend.BackendSoftware, DeviceType: "cpu"}
}

// Limits returns the configured limits.
func (a *Adapter) Limits() gpucore.Limits { return a.backend.limits }

// SurfaceFormats returns the configured surface formats.
func (a *Adapter) SurfaceFormats(gpucore.Surface) []gpucore.TextureFormat {
	return append([]gpucore.TextureFormat(nil), a.backend.formats...)
}

// RequestDevice opens a device. It waits on the device gate if one is set.
func (a *Adapter) RequestDevice(ctx context.Context, required gpucore.Limits) (gpucore.Device, error) {
	if a.backend.deviceGate != nil {
		select {
		case <-a.backend.deviceGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !a.backend.limits.Satisfies(required) {
		return nil, fmt.Errorf("software: limits %+v do not satisfy %+v", a.backend.limits, required)
	}
	d := newDevice(a.backend)
	a.backend.mu.Lock()
	a.backend.devices = append(a.backend.devices, d)
	a.backend.mu.Unlock()
	return d, nil
}
