//go:build js && wasm

package web

import (
	"context"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/mokiat/wasmgpu"

	"github.com/gogpu/voxel/gpucore"
)

// Queue wraps the device GPUQueue. Completion is reported by
// onSubmittedWorkDone callbacks.
type Queue struct {
	device *Device
	queue  wasmgpu.GPUQueue
	js     js.Value

	mu        sync.Mutex
	submitted uint64
	completed uint64
}

// WriteBuffer writes data at offset.
func (q *Queue) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, ok := q.device.buffer(id)
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if !b.desc.Usage.Contains(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("%w: buffer %q lacks CopyDst usage", gpucore.ErrInvalidDescriptor, b.desc.Label)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("%w: write overflows buffer %q", gpucore.ErrInvalidDescriptor, b.desc.Label)
	}
	q.queue.WriteBuffer(b.buf, wasmgpu.GPUSize64(offset), data)
	return nil
}

// WriteTexture uploads tightly packed rows.
func (q *Queue) WriteTexture(id gpucore.TextureID, data []byte, width, height uint32) error {
	t, ok := q.device.texture(id)
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	if width != t.desc.Width || height != t.desc.Height ||
		uint64(len(data)) != uint64(width)*uint64(height)*uint64(t.desc.Format.BytesPerPixel()) {
		return fmt.Errorf("%w: upload does not cover texture", gpucore.ErrInvalidDescriptor)
	}
	bpr := width * uint32(t.desc.Format.BytesPerPixel()) //nolint:gosec // 4 or 0

	// wasmgpu has no WriteTexture yet; go through the raw queue.
	dst := js.Global().Get("Object").New()
	dst.Set("texture", js.ValueOf(t.tex.ToJS()))
	layout := js.Global().Get("Object").New()
	layout.Set("bytesPerRow", bpr)
	layout.Set("rowsPerImage", height)
	size := js.Global().Get("Object").New()
	size.Set("width", width)
	size.Set("height", height)
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	q.js.Call("writeTexture", dst, arr, layout, size)
	return nil
}

// ReadBuffer copies the range into a mappable staging buffer and awaits
// mapAsync. It must not be called from a JS callback.
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
	staging := q.device.device.CreateBuffer(wasmgpu.GPUBufferDescriptor{
		Size:  wasmgpu.GPUSize64(size),
		Usage: wasmgpu.GPUBufferUsageFlagsMapRead | wasmgpu.GPUBufferUsageFlagsCopyDst,
	})
	defer staging.Destroy()

	enc := q.device.device.CreateCommandEncoder()
	enc.CopyBufferToBuffer(b.buf, wasmgpu.GPUSize64(offset), staging, 0, wasmgpu.GPUSize64(size))
	q.queue.Submit([]wasmgpu.GPUCommandBuffer{enc.Finish()})

	jsStaging := js.ValueOf(staging.ToJS())
	mapRead := js.Global().Get("GPUMapMode").Get("READ")
	if _, err := await(context.Background(), jsStaging.Call("mapAsync", mapRead)); err != nil {
		return nil, fmt.Errorf("web: map staging buffer: %w", err)
	}
	out := make([]byte, size)
	js.CopyBytesToGo(out, js.Global().Get("Uint8Array").New(jsStaging.Call("getMappedRange")))
	jsStaging.Call("unmap")
	return out, nil
}

// Submit enqueues cb and registers a completion callback for it.
func (q *Queue) Submit(cb gpucore.CommandBuffer) (uint64, error) {
	wcb, ok := cb.(*CommandBuffer)
	if !ok {
		return 0, fmt.Errorf("%w: command buffer %T", ErrWrongDevice, cb)
	}
	q.queue.Submit([]wasmgpu.GPUCommandBuffer{wcb.cb})

	q.mu.Lock()
	q.submitted++
	index := q.submitted
	q.mu.Unlock()

	var done js.Func
	done = js.FuncOf(func(js.Value, []js.Value) any {
		q.mu.Lock()
		q.completed = max(q.completed, index)
		q.mu.Unlock()
		done.Release()
		return nil
	})
	q.js.Call("onSubmittedWorkDone").Call("then", done)
	return index, nil
}

// Completed returns the last submission the browser reported done.
func (q *Queue) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// WaitIdle awaits onSubmittedWorkDone.
func (q *Queue) WaitIdle() error {
	q.mu.Lock()
	target := q.submitted
	q.mu.Unlock()
	if _, err := await(context.Background(), q.js.Call("onSubmittedWorkDone")); err != nil {
		return fmt.Errorf("web: wait idle: %w", err)
	}
	q.mu.Lock()
	q.completed = max(q.completed, target)
	q.mu.Unlock()
	return nil
}

// Present releases the frame; the browser composites the canvas when the
// current task returns.
func (q *Queue) Present(s gpucore.Surface, f gpucore.Frame) error {
	ws, ok := s.(*Surface)
	if !ok {
		return fmt.Errorf("%w: surface %T", ErrWrongDevice, s)
	}
	if !ws.release(f) {
		return fmt.Errorf("%w: frame %d is not acquired", gpucore.ErrUnknownResource, f.Texture)
	}
	return nil
}
