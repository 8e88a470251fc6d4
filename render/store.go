// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/asset"
	"github.com/gogpu/voxel/gpucore"
)

// Kind classifies a resource owned by a ResourceStore.
type Kind uint8

// Resource kinds.
const (
	KindVertex Kind = iota + 1
	KindIndex
	KindInstance
	KindUniform
	KindTexture
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindIndex:
		return "index"
	case KindInstance:
		return "instance"
	case KindUniform:
		return "uniform"
	case KindTexture:
		return "texture"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Handle names a resource owned by a ResourceStore. The zero Handle is
// never valid.
type Handle uint32

// Store errors.
var (
	// ErrUnknownHandle is returned for handles the store does not own.
	ErrUnknownHandle = errors.New("render: unknown resource handle")

	// ErrWrongKind is returned when a handle is used as the wrong kind.
	ErrWrongKind = errors.New("render: resource kind mismatch")

	// ErrEmptyData is returned when uploading zero bytes.
	ErrEmptyData = errors.New("render: empty upload")

	// ErrTooLarge is returned when data does not fit the resource.
	ErrTooLarge = errors.New("render: data exceeds resource size")
)

// minInstanceCapacity is the smallest capacity an instance buffer grows to.
const minInstanceCapacity = 4 * 76

type resource struct {
	kind Kind
	// size is the number of meaningful bytes, capacity the allocation.
	size     uint64
	capacity uint64
	buffer   gpucore.BufferID
	// shadow mirrors instance buffers so growth can carry contents over.
	shadow []byte

	texture gpucore.TextureID
	sampler gpucore.SamplerID
	group   gpucore.BindGroupID
	extent  gpucore.Extent
}

// retired is a GPU object waiting for its last submission to complete.
type retired struct {
	submission uint64
	texture    gpucore.TextureID
	buffer     gpucore.BufferID
}

// ResourceStore owns buffers, textures and bind groups created from CPU
// data, and the depth texture that tracks the surface size.
//
// Objects that in-flight frames may still reference, the previous depth
// texture and outgrown instance buffers, are retired with the latest
// submission index and destroyed by Reclaim once the queue reports that
// submission complete.
type ResourceStore struct {
	gpu *Context

	mu        sync.Mutex
	next      Handle
	resources map[Handle]*resource
	layouts   map[layoutKind]gpucore.BindGroupLayoutID

	depth     gpucore.TextureID
	depthSize gpucore.Extent

	lastSubmission uint64
	retired        []retired
	released       bool
}

// NewResourceStore creates an empty store on gpu.
func NewResourceStore(gpu *Context) *ResourceStore {
	return &ResourceStore{
		gpu:       gpu,
		resources: make(map[Handle]*resource),
		layouts:   make(map[layoutKind]gpucore.BindGroupLayoutID),
	}
}

func (s *ResourceStore) device() gpucore.Device { return s.gpu.Device() }

func (s *ResourceStore) add(r *resource) Handle {
	s.next++
	s.resources[s.next] = r
	return s.next
}

func (s *ResourceStore) lookup(h Handle, kinds ...Kind) (*resource, error) {
	if s.released {
		return nil, voxel.ErrReleased
	}
	r, ok := s.resources[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	for _, k := range kinds {
		if r.kind == k {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: handle %d is %s", ErrWrongKind, h, r.kind)
}

// align4 rounds n up to a multiple of 4, the WebGPU copy alignment.
func align4(n uint64) uint64 { return (n + 3) &^ 3 }

// pad returns data extended with zeros to a multiple of 4 bytes.
func pad(data []byte) []byte {
	n := align4(uint64(len(data)))
	if n == uint64(len(data)) {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}

func bufferUsage(kind Kind) gpucore.BufferUsage {
	usage := gpucore.BufferUsageCopyDst | gpucore.BufferUsageCopySrc
	switch kind {
	case KindVertex, KindInstance:
		usage |= gpucore.BufferUsageVertex
	case KindIndex:
		usage |= gpucore.BufferUsageIndex
	case KindUniform:
		usage |= gpucore.BufferUsageUniform
	}
	return usage
}

func (s *ResourceStore) createBuffer(kind Kind, size uint64) (gpucore.BufferID, error) {
	id, err := s.device().CreateBuffer(&gpucore.BufferDesc{
		Label: kind.String(),
		Size:  size,
		Usage: bufferUsage(kind),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("render: create %s buffer: %w", kind, err)
	}
	return id, nil
}

// UploadStatic creates a vertex, index or instance buffer holding data.
// The copy is enqueued on the queue before UploadStatic returns, so the
// handle may be drawn from in the next recorded frame.
func (s *ResourceStore) UploadStatic(kind Kind, data []byte) (Handle, error) {
	switch kind {
	case KindVertex, KindIndex, KindInstance:
	default:
		return 0, fmt.Errorf("%w: cannot upload %s statically", ErrWrongKind, kind)
	}
	if len(data) == 0 {
		return 0, ErrEmptyData
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, voxel.ErrReleased
	}

	padded := pad(data)
	size := uint64(len(padded))
	id, err := s.createBuffer(kind, size)
	if err != nil {
		return 0, err
	}
	if err := s.gpu.Queue().WriteBuffer(id, 0, padded); err != nil {
		s.device().DestroyBuffer(id)
		return 0, fmt.Errorf("render: upload %s buffer: %w", kind, err)
	}
	r := &resource{kind: kind, size: uint64(len(data)), capacity: size, buffer: id}
	if kind == KindInstance {
		r.shadow = append([]byte(nil), padded...)
	}
	h := s.add(r)
	slogger().Debug("render: static buffer uploaded", "kind", kind, "bytes", len(data), "handle", h)
	return h, nil
}

// CreateUniform creates a uniform buffer of size bytes and a bind group
// exposing it at binding 0 of the camera group layout.
func (s *ResourceStore) CreateUniform(size uint64) (Handle, error) {
	if size == 0 {
		return 0, ErrEmptyData
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, voxel.ErrReleased
	}
	layout, err := s.layoutLocked(layoutUniform)
	if err != nil {
		return 0, err
	}
	capacity := (size + 15) &^ 15
	id, err := s.createBuffer(KindUniform, capacity)
	if err != nil {
		return 0, err
	}
	group, err := s.device().CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   "uniform",
		Layout:  layout,
		Entries: []gpucore.BindGroupEntry{{Binding: 0, Buffer: id, Size: capacity}},
	})
	if err != nil {
		s.device().DestroyBuffer(id)
		return 0, fmt.Errorf("render: create uniform bind group: %w", err)
	}
	return s.add(&resource{kind: KindUniform, size: size, capacity: capacity, buffer: id, group: group}), nil
}

// UpdateUniform overwrites the uniform contents. Writes must happen
// before the frame reading them is recorded; the last write before a
// submission is the one the GPU observes.
func (s *ResourceStore) UpdateUniform(h Handle, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindUniform)
	if err != nil {
		return err
	}
	if uint64(len(data)) > r.capacity {
		return fmt.Errorf("%w: %d bytes into %d-byte uniform", ErrTooLarge, len(data), r.capacity)
	}
	return s.gpu.Queue().WriteBuffer(r.buffer, 0, pad(data))
}

// EnsureCapacity grows an instance buffer to hold at least size bytes,
// doubling its capacity. The outgrown buffer is retired. It reports
// whether the buffer was replaced.
func (s *ResourceStore) EnsureCapacity(h Handle, size uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindInstance)
	if err != nil {
		return false, err
	}
	return s.growLocked(r, size)
}

func (s *ResourceStore) growLocked(r *resource, size uint64) (bool, error) {
	if size <= r.capacity {
		return false, nil
	}
	capacity := max(r.capacity, minInstanceCapacity)
	for capacity < size {
		capacity *= 2
	}
	capacity = align4(capacity)
	id, err := s.createBuffer(r.kind, capacity)
	if err != nil {
		return false, err
	}
	if len(r.shadow) > 0 {
		if err := s.gpu.Queue().WriteBuffer(id, 0, r.shadow); err != nil {
			s.device().DestroyBuffer(id)
			return false, fmt.Errorf("render: copy grown buffer: %w", err)
		}
	}
	s.retireLocked(retired{buffer: r.buffer})
	slogger().Debug("render: instance buffer grown", "from", r.capacity, "to", capacity)
	r.buffer = id
	r.capacity = capacity
	grown := make([]byte, capacity)
	copy(grown, r.shadow)
	r.shadow = grown
	return true, nil
}

// WriteDynamic writes data into an instance buffer at offset, growing it
// first if needed. The resource size becomes offset+len(data) when that
// extends it.
func (s *ResourceStore) WriteDynamic(h Handle, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindInstance)
	if err != nil {
		return err
	}
	end := offset + uint64(len(data))
	if _, err := s.growLocked(r, align4(end)); err != nil {
		return err
	}
	copy(r.shadow[offset:], data)
	start := offset &^ 3
	if err := s.gpu.Queue().WriteBuffer(r.buffer, start, r.shadow[start:align4(end)]); err != nil {
		return fmt.Errorf("render: write instance buffer: %w", err)
	}
	r.size = max(r.size, end)
	return nil
}

// Truncate sets the meaningful size of an instance buffer without
// touching its contents.
func (s *ResourceStore) Truncate(h Handle, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindInstance)
	if err != nil {
		return err
	}
	if size > r.capacity {
		return fmt.Errorf("%w: truncate to %d beyond capacity %d", ErrTooLarge, size, r.capacity)
	}
	r.size = size
	return nil
}

// UploadTexture creates a sampled sRGB texture from img, with a sampler
// and a bind group laid out for the texture group.
func (s *ResourceStore) UploadTexture(img *asset.Image, label string) (Handle, error) {
	if img == nil || len(img.Pix) == 0 {
		return 0, ErrEmptyData
	}
	if len(img.Pix) != img.Width*img.Height*4 {
		return 0, fmt.Errorf("render: texture %q: %d bytes for %dx%d RGBA", label, len(img.Pix), img.Width, img.Height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, voxel.ErrReleased
	}
	maxDim := s.device().Limits().MaxTextureDimension2D
	if img.Width > int(maxDim) || img.Height > int(maxDim) {
		return 0, fmt.Errorf("%w: texture %q is %dx%d, device limit %d", ErrTooLarge, label, img.Width, img.Height, maxDim)
	}
	layout, err := s.layoutLocked(layoutTexture)
	if err != nil {
		return 0, err
	}

	w, h := uint32(img.Width), uint32(img.Height)
	tex, err := s.device().CreateTexture(&gpucore.TextureDesc{
		Label:  label,
		Width:  w,
		Height: h,
		Format: gpucore.TextureFormatRGBA8UnormSRGB,
		Usage:  gpucore.TextureUsageTextureBinding | gpucore.TextureUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("render: create texture %q: %w", label, err)
	}
	r := &resource{kind: KindTexture, texture: tex, extent: gpucore.Extent{Width: w, Height: h},
		size: uint64(len(img.Pix))}
	fail := func(err error) (Handle, error) {
		s.destroyLocked(r)
		return 0, err
	}
	if err := s.gpu.Queue().WriteTexture(tex, img.Pix, w, h); err != nil {
		return fail(fmt.Errorf("render: upload texture %q: %w", label, err))
	}
	r.sampler, err = s.device().CreateSampler(&gpucore.SamplerDesc{
		Label:       label,
		MagFilter:   gpucore.FilterLinear,
		MinFilter:   gpucore.FilterNearest,
		AddressMode: gpucore.AddressClampToEdge,
	})
	if err != nil {
		return fail(fmt.Errorf("render: create sampler %q: %w", label, err))
	}
	r.group, err = s.device().CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  label,
		Layout: layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Texture: tex},
			{Binding: 1, Sampler: r.sampler},
		},
	})
	if err != nil {
		return fail(fmt.Errorf("render: create texture bind group %q: %w", label, err))
	}
	handle := s.add(r)
	slogger().Debug("render: texture uploaded", "label", label, "size", r.extent, "handle", handle)
	return handle, nil
}

// RebuildDepthTexture replaces the depth texture with one of size,
// clamped to at least 1x1. The previous texture is retired.
func (s *ResourceStore) RebuildDepthTexture(size gpucore.Extent) error {
	size = size.Clamp()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return voxel.ErrReleased
	}
	id, err := s.device().CreateTexture(&gpucore.TextureDesc{
		Label:  "depth",
		Width:  size.Width,
		Height: size.Height,
		Format: gpucore.TextureFormatDepth32Float,
		Usage:  gpucore.TextureUsageRenderAttachment | gpucore.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("render: create depth texture %s: %w", size, err)
	}
	if s.depth != gpucore.InvalidID {
		s.retireLocked(retired{texture: s.depth})
	}
	s.depth = id
	s.depthSize = size
	slogger().Debug("render: depth texture rebuilt", "size", size)
	return nil
}

// retireLocked schedules r for destruction once the latest submission
// completes, or destroys it at once when nothing was submitted yet.
func (s *ResourceStore) retireLocked(r retired) {
	if s.lastSubmission == 0 || s.gpu.Queue().Completed() >= s.lastSubmission {
		s.destroyRetired(r)
		return
	}
	r.submission = s.lastSubmission
	s.retired = append(s.retired, r)
}

func (s *ResourceStore) destroyRetired(r retired) {
	if r.texture != gpucore.InvalidID {
		s.device().DestroyTexture(r.texture)
	}
	if r.buffer != gpucore.InvalidID {
		s.device().DestroyBuffer(r.buffer)
	}
}

// MarkSubmitted records the index of a submission that may reference the
// store's current objects.
func (s *ResourceStore) MarkSubmitted(index uint64) {
	s.mu.Lock()
	s.lastSubmission = max(s.lastSubmission, index)
	s.mu.Unlock()
}

// Reclaim destroys retired objects whose submission is at or below
// completed and returns how many were destroyed.
func (s *ResourceStore) Reclaim(completed uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.retired[:0]
	n := 0
	for _, r := range s.retired {
		if r.submission <= completed {
			s.destroyRetired(r)
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.retired = kept
	return n
}

// Retired returns the number of objects waiting for reclamation.
func (s *ResourceStore) Retired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retired)
}

// Depth returns the current depth texture and its size.
func (s *ResourceStore) Depth() (gpucore.TextureID, gpucore.Extent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth, s.depthSize
}

// Buffer returns the GPU buffer behind h.
func (s *ResourceStore) Buffer(h Handle) (gpucore.BufferID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindVertex, KindIndex, KindInstance, KindUniform)
	if err != nil {
		return gpucore.InvalidID, err
	}
	return r.buffer, nil
}

// BindGroup returns the bind group of a uniform or texture handle.
func (s *ResourceStore) BindGroup(h Handle) (gpucore.BindGroupID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindUniform, KindTexture)
	if err != nil {
		return gpucore.InvalidID, err
	}
	return r.group, nil
}

// Size returns the meaningful byte size of h.
func (s *ResourceStore) Size(h Handle) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindVertex, KindIndex, KindInstance, KindUniform, KindTexture)
	if err != nil {
		return 0, err
	}
	return r.size, nil
}

// Readback copies the meaningful bytes of a buffer back to the CPU. It
// stalls until the GPU is idle and is meant for tests and diagnostics.
func (s *ResourceStore) Readback(h Handle) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookup(h, KindVertex, KindIndex, KindInstance, KindUniform)
	if err != nil {
		return nil, err
	}
	if err := s.gpu.Queue().WaitIdle(); err != nil {
		return nil, fmt.Errorf("render: readback: %w", err)
	}
	data, err := s.gpu.Queue().ReadBuffer(r.buffer, 0, align4(r.size))
	if err != nil {
		return nil, fmt.Errorf("render: readback: %w", err)
	}
	return data[:r.size], nil
}

// Destroy releases a single resource.
func (s *ResourceStore) Destroy(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[h]
	if !ok {
		return
	}
	delete(s.resources, h)
	s.destroyLocked(r)
}

func (s *ResourceStore) destroyLocked(r *resource) {
	d := s.device()
	if r.group != gpucore.InvalidID {
		d.DestroyBindGroup(r.group)
	}
	if r.sampler != gpucore.InvalidID {
		d.DestroySampler(r.sampler)
	}
	if r.texture != gpucore.InvalidID {
		d.DestroyTexture(r.texture)
	}
	if r.buffer != gpucore.InvalidID {
		d.DestroyBuffer(r.buffer)
	}
}

// Live returns the number of handles the store owns.
func (s *ResourceStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

// Release destroys every owned object, retired ones included. The caller
// must make sure the queue is idle. It is safe to call more than once.
func (s *ResourceStore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	for h, r := range s.resources {
		s.destroyLocked(r)
		delete(s.resources, h)
	}
	for _, r := range s.retired {
		s.destroyRetired(r)
	}
	s.retired = nil
	if s.depth != gpucore.InvalidID {
		s.device().DestroyTexture(s.depth)
		s.depth = gpucore.InvalidID
	}
	for k, l := range s.layouts {
		s.device().DestroyBindGroupLayout(l)
		delete(s.layouts, k)
	}
}
