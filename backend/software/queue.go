package software

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/voxel/gpucore"
)

// Submission is a command buffer accepted by Queue.Submit.
type Submission struct {
	Index  uint64
	Label  string
	Passes []Pass
	// Uniforms holds the contents of every uniform buffer bound by the
	// submission, captured at submit time.
	Uniforms map[gpucore.BufferID][]byte
}

// Queue is the software gpucore.Queue.
type Queue struct {
	device *Device
	manual bool

	mu          sync.Mutex
	submitted   uint64
	completed   uint64
	submissions []Submission
	presented   int
}

// WriteBuffer copies data into the buffer immediately.
func (q *Queue) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d := q.device
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if !buf.desc.Usage.Contains(gpucore.BufferUsageCopyDst) {
		return fmt.Errorf("%w: buffer %q lacks CopyDst", gpucore.ErrInvalidDescriptor, buf.desc.Label)
	}
	if offset+uint64(len(data)) > buf.desc.Size {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer %q (%d bytes)",
			gpucore.ErrInvalidDescriptor, len(data), offset, buf.desc.Label, buf.desc.Size)
	}
	copy(buf.data[offset:], data)
	return nil
}

// WriteTexture replaces the texture contents.
func (q *Queue) WriteTexture(id gpucore.TextureID, data []byte, width, height uint32) error {
	d := q.device
	d.mu.Lock()
	defer d.mu.Unlock()
	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, id)
	}
	if width != tex.desc.Width || height != tex.desc.Height {
		return fmt.Errorf("%w: write %dx%d into %dx%d texture",
			gpucore.ErrInvalidDescriptor, width, height, tex.desc.Width, tex.desc.Height)
	}
	want := int(width) * int(height) * tex.desc.Format.BytesPerPixel()
	if len(data) != want {
		return fmt.Errorf("%w: texture data is %d bytes, want %d", gpucore.ErrInvalidDescriptor, len(data), want)
	}
	tex.data = append(tex.data[:0], data...)
	return nil
}

// ReadBuffer returns a copy of the buffer range.
func (q *Queue) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	d := q.device
	d.mu.RLock()
	defer d.mu.RUnlock()
	buf, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", gpucore.ErrUnknownResource, id)
	}
	if !buf.desc.Usage.Contains(gpucore.BufferUsageCopySrc) {
		return nil, fmt.Errorf("%w: buffer %q lacks CopySrc", gpucore.ErrInvalidDescriptor, buf.desc.Label)
	}
	if offset+size > buf.desc.Size {
		return nil, fmt.Errorf("%w: read of %d bytes at %d overflows buffer %q",
			gpucore.ErrInvalidDescriptor, size, offset, buf.desc.Label)
	}
	return append([]byte(nil), buf.data[offset:offset+size]...), nil
}

// Submit checks that every resource the command buffer references is
// still live, clears the color attachments and records the submission.
func (q *Queue) Submit(cb gpucore.CommandBuffer) (uint64, error) {
	buf, ok := cb.(*CommandBuffer)
	if !ok || buf == nil {
		return 0, errors.New("software: foreign command buffer")
	}
	d := q.device
	d.mu.Lock()
	uniforms := make(map[gpucore.BufferID][]byte)
	for _, pass := range buf.Passes {
		color, ok := d.textures[pass.Color]
		if !ok {
			d.mu.Unlock()
			return 0, fmt.Errorf("%w: color attachment %d", gpucore.ErrUnknownResource, pass.Color)
		}
		if pass.Depth != gpucore.InvalidID {
			if _, ok := d.textures[pass.Depth]; !ok {
				d.mu.Unlock()
				return 0, fmt.Errorf("%w: depth attachment %d", gpucore.ErrUnknownResource, pass.Depth)
			}
		}
		for _, draw := range pass.Draws {
			if err := d.checkDrawLocked(draw, uniforms); err != nil {
				d.mu.Unlock()
				return 0, err
			}
		}
		clearTexture(color, pass.ClearColor)
	}
	d.mu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.submitted++
	q.submissions = append(q.submissions, Submission{
		Index:    q.submitted,
		Label:    buf.label,
		Passes:   buf.Passes,
		Uniforms: uniforms,
	})
	if !q.manual {
		q.completed = q.submitted
	}
	return q.submitted, nil
}

// checkDrawLocked verifies a draw's resources and snapshots its uniforms.
// d.mu must be held.
func (d *Device) checkDrawLocked(draw DrawCall, uniforms map[gpucore.BufferID][]byte) error {
	if _, ok := d.pipelines[draw.Pipeline]; !ok {
		return fmt.Errorf("%w: pipeline %d", gpucore.ErrUnknownResource, draw.Pipeline)
	}
	for slot, id := range draw.VertexBuffers {
		if _, ok := d.buffers[id]; !ok {
			return fmt.Errorf("%w: vertex buffer %d in slot %d", gpucore.ErrUnknownResource, id, slot)
		}
	}
	if draw.Indexed {
		if _, ok := d.buffers[draw.IndexBuffer]; !ok {
			return fmt.Errorf("%w: index buffer %d", gpucore.ErrUnknownResource, draw.IndexBuffer)
		}
	}
	for index, id := range draw.BindGroups {
		group, ok := d.bindGroups[id]
		if !ok {
			return fmt.Errorf("%w: bind group %d at index %d", gpucore.ErrUnknownResource, id, index)
		}
		for _, entry := range group.desc.Entries {
			switch {
			case entry.Buffer != gpucore.InvalidID:
				buf, ok := d.buffers[entry.Buffer]
				if !ok {
					return fmt.Errorf("%w: uniform buffer %d", gpucore.ErrUnknownResource, entry.Buffer)
				}
				uniforms[entry.Buffer] = append([]byte(nil), buf.data...)
			case entry.Texture != gpucore.InvalidID:
				if _, ok := d.textures[entry.Texture]; !ok {
					return fmt.Errorf("%w: texture %d", gpucore.ErrUnknownResource, entry.Texture)
				}
			case entry.Sampler != gpucore.InvalidID:
				if _, ok := d.samplers[entry.Sampler]; !ok {
					return fmt.Errorf("%w: sampler %d", gpucore.ErrUnknownResource, entry.Sampler)
				}
			}
		}
	}
	return nil
}

// clearTexture fills a color texture with c as 8-bit texels in the
// texture's channel order.
func clearTexture(tex *texture, c gpucore.Color) {
	n := int(tex.desc.Width) * int(tex.desc.Height)
	if len(tex.data) != n*4 {
		tex.data = make([]byte, n*4)
	}
	r, g, b, a := unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)
	if tex.desc.Format == gpucore.TextureFormatBGRA8Unorm || tex.desc.Format == gpucore.TextureFormatBGRA8UnormSRGB {
		r, b = b, r
	}
	for i := 0; i < n; i++ {
		tex.data[i*4+0] = r
		tex.data[i*4+1] = g
		tex.data[i*4+2] = b
		tex.data[i*4+3] = a
	}
}

func unorm8(v float64) byte {
	return byte(math.Round(min(max(v, 0), 1) * 255))
}

// Completed returns the highest completed submission index.
func (q *Queue) Completed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// CompleteAll marks every submission complete.
func (q *Queue) CompleteAll() {
	q.mu.Lock()
	q.completed = q.submitted
	q.mu.Unlock()
}

// WaitIdle completes every submission.
func (q *Queue) WaitIdle() error {
	q.CompleteAll()
	return nil
}

// Present presents a frame acquired from s and releases its texture.
func (q *Queue) Present(s gpucore.Surface, f gpucore.Frame) error {
	surf, ok := s.(*Surface)
	if !ok {
		return errors.New("software: foreign surface")
	}
	if err := surf.release(f); err != nil {
		return err
	}
	if err := surf.takePresentFailure(); err != nil {
		return err
	}
	q.mu.Lock()
	q.presented++
	q.mu.Unlock()
	return nil
}

// Submissions returns a copy of the recorded submissions.
func (q *Queue) Submissions() []Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Submission(nil), q.submissions...)
}

// LastSubmission returns the most recent submission.
func (q *Queue) LastSubmission() (Submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.submissions) == 0 {
		return Submission{}, false
	}
	return q.submissions[len(q.submissions)-1], true
}

// Presented returns the number of presented frames.
func (q *Queue) Presented() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.presented
}
