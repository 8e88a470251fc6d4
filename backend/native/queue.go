// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !js && !nogpu

package native

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/voxel/gpucore"
)

// waitTimeout bounds every blocking wait for a submission.
const waitTimeout = 5 * time.Second

// pollInterval is the sleep between completion polls.
const pollInterval = 200 * time.Microsecond

// ErrWaitTimeout is returned when the GPU does not finish in time.
var ErrWaitTimeout = errors.New("native: GPU wait timed out")

type inflight struct {
	index uint64
	cb    hal.CommandBuffer
}

// Queue submits through a hal.Queue. Submission indices are the ones the
// HAL returns; command buffers are freed once PollCompleted passes them.
type Queue struct {
	device *Device
	queue  hal.Queue

	mu        sync.Mutex
	submitted uint64
	completed uint64
	inflight  []inflight
}

// WriteBuffer writes data into the buffer at offset.
func (q *Queue) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, ok := q.device.buffer(id)
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if !b.desc.Usage.Contains(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("%w: buffer %q lacks CopyDst usage", gpucore.ErrInvalidDescriptor, b.desc.Label)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer %q (%d bytes)",
			gpucore.ErrInvalidDescriptor, len(data), offset, b.desc.Label, b.desc.Size)
	}
	if err := q.queue.WriteBuffer(b.buf, offset, data); err != nil {
		return fmt.Errorf("native: write buffer %q: %w", b.desc.Label, err)
	}
	return nil
}

// WriteTexture uploads tightly packed rows covering the whole texture.
func (q *Queue) WriteTexture(id gpucore.TextureID, data []byte, width, height uint32) error {
	t, ok := q.device.texture(id)
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	if width != t.desc.Width || height != t.desc.Height {
		return fmt.Errorf("%w: upload %dx%d into %dx%d texture", gpucore.ErrInvalidDescriptor,
			width, height, t.desc.Width, t.desc.Height)
	}
	bpp := uint32(t.desc.Format.BytesPerPixel()) //nolint:gosec // 4 or 0
	if uint64(len(data)) != uint64(width)*uint64(height)*uint64(bpp) {
		return fmt.Errorf("%w: %d bytes for %dx%d texture", gpucore.ErrInvalidDescriptor, len(data), width, height)
	}
	err := q.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  width * bpp,
			RowsPerImage: height,
		},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write texture %q: %w", t.desc.Label, err)
	}
	return nil
}

// ReadBuffer copies the range into a mappable staging buffer, waits for
// the copy and maps the staging buffer.
func (q *Queue) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, ok := q.device.buffer(id)
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if !b.desc.Usage.Contains(gpucore.BufferUsageCopySrc) {
		return nil, fmt.Errorf("%w: buffer %q lacks CopySrc usage", gpucore.ErrInvalidDescriptor, b.desc.Label)
	}
	if offset+size > b.desc.Size {
		return nil, fmt.Errorf("%w: read past end of buffer %q", gpucore.ErrInvalidDescriptor, b.desc.Label)
	}
	if size == 0 {
		return []byte{}, nil
	}

	device := q.device.device
	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	enc, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("native: create encoder: %w", err)
	}
	if err := enc.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	enc.CopyBufferToBuffer(b.buf, staging, []hal.BufferCopy{{SrcOffset: offset, DstOffset: 0, Size: size}})
	cb, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}

	index, err := q.submit(cb)
	if err != nil {
		device.FreeCommandBuffer(cb)
		return nil, fmt.Errorf("native: submit readback: %w", err)
	}
	if err := q.waitFor(index); err != nil {
		return nil, fmt.Errorf("native: readback: %w", err)
	}

	mapping, err := device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("native: map staging buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))
	if err := device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("native: unmap staging buffer: %w", err)
	}
	return out, nil
}

// Submit enqueues cb.
func (q *Queue) Submit(cb gpucore.CommandBuffer) (uint64, error) {
	ncb, ok := cb.(*CommandBuffer)
	if !ok || ncb.cb == nil {
		return 0, fmt.Errorf("%w: command buffer %T", ErrWrongDevice, cb)
	}
	index, err := q.submit(ncb.cb)
	if err != nil {
		return 0, fmt.Errorf("native: submit %q: %w", ncb.label, err)
	}
	ncb.cb = nil
	return index, nil
}

func (q *Queue) submit(cb hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	index, err := q.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		return 0, err
	}
	q.submitted = max(q.submitted, index)
	q.inflight = append(q.inflight, inflight{index: index, cb: cb})
	return index, nil
}

// Completed polls the HAL without blocking.
func (q *Queue) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retireLocked()
	return q.completed
}

// WaitIdle blocks until every submission has completed.
func (q *Queue) WaitIdle() error {
	q.mu.Lock()
	target := q.submitted
	q.mu.Unlock()
	return q.waitFor(target)
}

// waitFor polls until submission index has completed or waitTimeout
// passes.
func (q *Queue) waitFor(index uint64) error {
	deadline := time.Now().Add(waitTimeout)
	for {
		if q.Completed() >= index {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: submission %d", ErrWaitTimeout, index)
		}
		time.Sleep(pollInterval)
	}
}

// retireLocked frees the command buffers of finished submissions.
func (q *Queue) retireLocked() {
	done := q.queue.PollCompleted()
	q.completed = max(q.completed, done)
	n := 0
	for _, f := range q.inflight {
		if f.index > done {
			break
		}
		q.device.device.FreeCommandBuffer(f.cb)
		n++
	}
	q.inflight = q.inflight[n:]
}

// releaseInflight frees whatever a failed WaitIdle left behind.
func (q *Queue) releaseInflight() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, f := range q.inflight {
		q.device.device.FreeCommandBuffer(f.cb)
	}
	q.inflight = nil
}
