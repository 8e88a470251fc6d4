// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

// layoutKind selects one of the fixed bind group layouts shared by the
// store and the pipelines. Layouts built from the same descriptor are
// compatible, so each owner creates its own.
type layoutKind uint8

const (
	// layoutUniform is group 0: the camera uniform.
	layoutUniform layoutKind = iota
	// layoutTexture is group 1: a sampled texture and its sampler.
	layoutTexture
)

func layoutDesc(k layoutKind) *gpucore.BindGroupLayoutDesc {
	switch k {
	case layoutTexture:
		return &gpucore.BindGroupLayoutDesc{
			Label: "texture",
			Entries: []gpucore.BindGroupLayoutEntry{
				{Binding: 0, Visibility: gpucore.ShaderStageFragment, Type: gpucore.BindingTypeSampledTexture},
				{Binding: 1, Visibility: gpucore.ShaderStageFragment, Type: gpucore.BindingTypeSampler},
			},
		}
	default:
		return &gpucore.BindGroupLayoutDesc{
			Label: "camera",
			Entries: []gpucore.BindGroupLayoutEntry{
				{Binding: 0, Visibility: gpucore.ShaderStageVertex | gpucore.ShaderStageFragment,
					Type: gpucore.BindingTypeUniformBuffer},
			},
		}
	}
}

// layoutLocked returns the store's layout of kind k, creating it on first
// use. s.mu must be held.
func (s *ResourceStore) layoutLocked(k layoutKind) (gpucore.BindGroupLayoutID, error) {
	if id, ok := s.layouts[k]; ok {
		return id, nil
	}
	id, err := s.device().CreateBindGroupLayout(layoutDesc(k))
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("render: create %s layout: %w", layoutDesc(k).Label, err)
	}
	s.layouts[k] = id
	return id, nil
}

// CreateDynamic creates an empty instance buffer with room for capacity
// bytes. Fill it with WriteDynamic.
func (s *ResourceStore) CreateDynamic(capacity uint64) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return 0, voxel.ErrReleased
	}
	capacity = align4(max(capacity, minInstanceCapacity))
	id, err := s.createBuffer(KindInstance, capacity)
	if err != nil {
		return 0, err
	}
	return s.add(&resource{
		kind:     KindInstance,
		capacity: capacity,
		buffer:   id,
		shadow:   make([]byte, capacity),
	}), nil
}
