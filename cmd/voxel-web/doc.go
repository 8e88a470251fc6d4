//go:build js && wasm

// Command voxel-web is the browser build of voxel. Build it with
// GOOS=js GOARCH=wasm.
package main
