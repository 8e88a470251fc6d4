// Package shader embeds the WGSL programs used to draw voxels.
//
// Both programs read the camera uniform at group 0 binding 0: a vec4
// view position followed by the view-projection mat4 (80 bytes). Per
// instance they read the model matrix as four vec4 columns at locations
// 5 to 8 and a vec3 color at location 9. Entry points are vs_main and
// fs_main.
package shader

import _ "embed"

// Primitive draws vertex-colored meshes. Vertex layout: position vec3 at
// location 0, color vec3 at location 1.
//
//go:embed primitive.wgsl
var Primitive string

// Textured draws meshes sampled from the texture at group 1 (texture at
// binding 0, sampler at binding 1). Vertex layout: position vec3 at
// location 0, texture coordinates vec2 at location 1.
//
//go:embed textured.wgsl
var Textured string

// Entry point names shared by both programs.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Instance attribute locations shared by both programs.
const (
	LocationModel = 5
	LocationColor = 9
)
