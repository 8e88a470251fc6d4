// Package webhost runs an app.Loop on a browser canvas, ticking it from
// requestAnimationFrame. Everything but key and wheel translation needs a
// js/wasm build.
package webhost
