// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/gpucore"
)

// PipelineDesc describes a pipeline independent of the surface format.
type PipelineDesc struct {
	Label string

	// Source is the WGSL shader. VertexEntry and FragmentEntry default to
	// "vs_main" and "fs_main".
	Source        string
	VertexEntry   string
	FragmentEntry string

	// Buffers is the vertex layout: slot 0 per-vertex, further slots
	// usually per-instance.
	Buffers []gpucore.VertexBufferLayout

	// Textured adds the texture group at index 1 after the camera group.
	Textured bool

	// UniformSize is the byte size of the camera uniform the shader reads.
	UniformSize uint64
}

// Pipeline is an immutable render pipeline with its shader module and
// layouts. Depth testing uses Depth32Float with Less and writes enabled;
// back faces are culled with counter-clockwise front faces; blending
// replaces the target.
type Pipeline struct {
	desc   PipelineDesc
	format gpucore.TextureFormat

	module         gpucore.ShaderModuleID
	groupLayouts   []gpucore.BindGroupLayoutID
	pipelineLayout gpucore.PipelineLayoutID
	pipeline       gpucore.RenderPipelineID
}

// ID returns the render pipeline.
func (p *Pipeline) ID() gpucore.RenderPipelineID { return p.pipeline }

// Label returns the pipeline label.
func (p *Pipeline) Label() string { return p.desc.Label }

// Format returns the color format the pipeline renders to.
func (p *Pipeline) Format() gpucore.TextureFormat { return p.format }

// UniformSize returns the camera uniform size fixed at build time.
func (p *Pipeline) UniformSize() uint64 { return p.desc.UniformSize }

// Groups returns the number of bind groups the pipeline expects.
func (p *Pipeline) Groups() int { return len(p.groupLayouts) }

// Compiler turns WGSL into SPIR-V words.
type Compiler func(wgsl string) ([]uint32, error)

// CompileWGSL compiles WGSL to SPIR-V with naga.
func CompileWGSL(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	// SPIR-V is little-endian 32-bit words
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirv, nil
}

// PipelineSet builds and owns render pipelines.
type PipelineSet struct {
	gpu      *Context
	compiler Compiler

	mu        sync.Mutex
	pipelines []*Pipeline
	released  bool
}

// NewPipelineSet creates an empty set compiling shaders with CompileWGSL.
func NewPipelineSet(gpu *Context) *PipelineSet {
	return &PipelineSet{gpu: gpu, compiler: CompileWGSL}
}

// SetCompiler replaces the shader compiler.
func (s *PipelineSet) SetCompiler(c Compiler) { s.compiler = c }

// Build compiles desc for the given surface format.
//
// The vertex layout is checked first and rejected with an error matching
// voxel.ErrUnsupportedVertexLayout. Compiler failures are returned as a
// *voxel.ShaderCompileError carrying the diagnostics. Both the WGSL and
// the compiled SPIR-V are handed to the device so every backend finds the
// form it consumes.
func (s *PipelineSet) Build(format gpucore.TextureFormat, desc PipelineDesc) (*Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, voxel.ErrReleased
	}
	p, err := s.build(format, desc)
	if err != nil {
		return nil, err
	}
	s.pipelines = append(s.pipelines, p)
	slogger().Debug("render: pipeline built", "label", desc.Label, "format", format)
	return p, nil
}

func (s *PipelineSet) build(format gpucore.TextureFormat, desc PipelineDesc) (_ *Pipeline, err error) {
	d := s.gpu.Device()
	if err := gpucore.ValidateVertexLayout(desc.Buffers, d.Limits()); err != nil {
		return nil, fmt.Errorf("render: pipeline %q: %w", desc.Label, err)
	}
	if desc.VertexEntry == "" {
		desc.VertexEntry = "vs_main"
	}
	if desc.FragmentEntry == "" {
		desc.FragmentEntry = "fs_main"
	}

	spirv, err := s.compiler(desc.Source)
	if err != nil {
		return nil, &voxel.ShaderCompileError{Label: desc.Label, Diagnostics: err.Error(), Err: err}
	}

	p := &Pipeline{desc: desc, format: format}
	defer func() {
		if err != nil {
			s.destroy(p)
		}
	}()

	p.module, err = d.CreateShaderModule(&gpucore.ShaderSource{Label: desc.Label, WGSL: desc.Source, SPIRV: spirv})
	if err != nil {
		return nil, &voxel.ShaderCompileError{Label: desc.Label, Diagnostics: err.Error(), Err: err}
	}

	kinds := []layoutKind{layoutUniform}
	if desc.Textured {
		kinds = append(kinds, layoutTexture)
	}
	for _, k := range kinds {
		l, err := d.CreateBindGroupLayout(layoutDesc(k))
		if err != nil {
			return nil, fmt.Errorf("render: pipeline %q: create layout: %w", desc.Label, err)
		}
		p.groupLayouts = append(p.groupLayouts, l)
	}

	p.pipelineLayout, err = d.CreatePipelineLayout(desc.Label, p.groupLayouts)
	if err != nil {
		return nil, fmt.Errorf("render: pipeline %q: create pipeline layout: %w", desc.Label, err)
	}

	p.pipeline, err = d.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:         desc.Label,
		Layout:        p.pipelineLayout,
		Module:        p.module,
		VertexEntry:   desc.VertexEntry,
		FragmentEntry: desc.FragmentEntry,
		Buffers:       desc.Buffers,
		ColorFormat:   format,
		DepthFormat:   gpucore.TextureFormatDepth32Float,
		CullBack:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("render: pipeline %q: %w", desc.Label, err)
	}
	return p, nil
}

// destroy releases p's objects in reverse creation order.
func (s *PipelineSet) destroy(p *Pipeline) {
	d := s.gpu.Device()
	if p.pipeline != gpucore.InvalidID {
		d.DestroyRenderPipeline(p.pipeline)
		p.pipeline = gpucore.InvalidID
	}
	if p.pipelineLayout != gpucore.InvalidID {
		d.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = gpucore.InvalidID
	}
	for i := len(p.groupLayouts) - 1; i >= 0; i-- {
		d.DestroyBindGroupLayout(p.groupLayouts[i])
	}
	p.groupLayouts = nil
	if p.module != gpucore.InvalidID {
		d.DestroyShaderModule(p.module)
		p.module = gpucore.InvalidID
	}
}

// Rebuild recreates every pipeline for a new surface format. Pipelines
// whose format already matches are kept. Pipeline values are updated in
// place, so references held by draw lists stay valid.
func (s *PipelineSet) Rebuild(format gpucore.TextureFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return voxel.ErrReleased
	}
	for _, p := range s.pipelines {
		if p.format == format {
			continue
		}
		next, err := s.build(format, p.desc)
		if err != nil {
			return err
		}
		s.destroy(p)
		*p = *next
		slogger().Info("render: pipeline rebuilt", "label", p.desc.Label, "format", format)
	}
	return nil
}

// Len returns the number of pipelines in the set.
func (s *PipelineSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pipelines)
}

// Release destroys every pipeline in reverse build order.
func (s *PipelineSet) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	for i := len(s.pipelines) - 1; i >= 0; i-- {
		s.destroy(s.pipelines[i])
	}
	s.pipelines = nil
}
