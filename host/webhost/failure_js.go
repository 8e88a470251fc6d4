//go:build js && wasm

package webhost

import "syscall/js"

// ShowError replaces the canvas with DOM id by a block holding the
// failure text of err. Without such a canvas the block is appended to the
// page body. Showing a second error for the same id replaces the text.
func ShowError(id string, err error) {
	doc := js.Global().Get("document")
	if box := doc.Call("getElementById", id+"-error"); !box.IsNull() && !box.IsUndefined() {
		box.Set("textContent", failureText(err))
		return
	}
	box := doc.Call("createElement", "pre")
	box.Set("id", id+"-error")
	box.Set("className", "voxel-error")
	box.Call("setAttribute", "role", "alert")
	box.Set("textContent", failureText(err))
	style := box.Get("style")
	style.Set("whiteSpace", "pre-wrap")
	style.Set("padding", "1em")
	style.Set("color", "#b00020")

	canvas := doc.Call("getElementById", id)
	if canvas.IsNull() || canvas.IsUndefined() {
		doc.Get("body").Call("appendChild", box)
		return
	}
	style.Set("width", canvas.Get("style").Get("width"))
	canvas.Call("replaceWith", box)
}
