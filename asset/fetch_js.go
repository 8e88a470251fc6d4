//go:build js && wasm

package asset

// DefaultLoader returns an HTTPLoader fetching relative to base, which is
// usually the page's asset directory.
func DefaultLoader(base string) Loader {
	return &HTTPLoader{Base: base}
}
