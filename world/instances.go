package world

import (
	"fmt"

	"github.com/gogpu/voxel/render"
)

// InstanceSet is the instances of one chunk and the GPU buffer holding
// the visible ones, packed in order. Hidden instances keep their slot in
// the set but are left out of the buffer.
type InstanceSet struct {
	instances []Instance
	visible   uint32
	dirty     bool

	store  *render.ResourceStore
	handle render.Handle
}

// NewInstanceSet creates a set that owns instances.
func NewInstanceSet(instances []Instance) *InstanceSet {
	s := &InstanceSet{instances: instances, dirty: true}
	s.count()
	return s
}

func (s *InstanceSet) count() {
	s.visible = 0
	for _, in := range s.instances {
		if in.Visible {
			s.visible++
		}
	}
}

// Len returns the number of instances, hidden ones included.
func (s *InstanceSet) Len() int { return len(s.instances) }

// Visible returns the number of visible instances.
func (s *InstanceSet) Visible() uint32 { return s.visible }

// At returns instance i.
func (s *InstanceSet) At(i int) Instance { return s.instances[i] }

// Add appends in and returns its index. The buffer grows on the next
// Flush if needed.
func (s *InstanceSet) Add(in Instance) int {
	s.instances = append(s.instances, in)
	if in.Visible {
		s.visible++
	}
	s.dirty = true
	return len(s.instances) - 1
}

// Hide removes instance i from rendering. It reports false when i is out
// of range or already hidden.
func (s *InstanceSet) Hide(i int) bool {
	if i < 0 || i >= len(s.instances) || !s.instances[i].Visible {
		return false
	}
	s.instances[i].Visible = false
	s.visible--
	s.dirty = true
	return true
}

// SetHeight moves instance i vertically.
func (s *InstanceSet) SetHeight(i int, y float32) {
	if s.instances[i].Position[1] == y {
		return
	}
	s.instances[i].Position[1] = y
	if s.instances[i].Visible {
		s.dirty = true
	}
}

// Raw packs the visible instances.
func (s *InstanceSet) Raw() []byte {
	b := make([]byte, 0, int(s.visible)*InstanceSize)
	for _, in := range s.instances {
		if in.Visible {
			b = in.AppendRaw(b)
		}
	}
	return b
}

// Upload creates the instance buffer in store and fills it.
func (s *InstanceSet) Upload(store *render.ResourceStore) (render.Handle, error) {
	if s.store != nil {
		return s.handle, nil
	}
	h, err := store.CreateDynamic(uint64(max(len(s.instances), 1)) * InstanceSize)
	if err != nil {
		return 0, fmt.Errorf("world: create instance buffer: %w", err)
	}
	s.store, s.handle = store, h
	s.dirty = true
	if _, err := s.Flush(); err != nil {
		return 0, err
	}
	return h, nil
}

// Handle returns the instance buffer handle, zero before Upload.
func (s *InstanceSet) Handle() render.Handle { return s.handle }

// Flush writes the visible instances to the buffer if they changed since
// the last flush. It reports whether anything was written.
func (s *InstanceSet) Flush() (bool, error) {
	if s.store == nil || !s.dirty {
		return false, nil
	}
	raw := s.Raw()
	if err := s.store.WriteDynamic(s.handle, 0, raw); err != nil {
		return false, fmt.Errorf("world: write instances: %w", err)
	}
	if err := s.store.Truncate(s.handle, uint64(len(raw))); err != nil {
		return false, fmt.Errorf("world: write instances: %w", err)
	}
	s.dirty = false
	return true, nil
}
