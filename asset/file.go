//go:build !js

package asset

import (
	"context"
	"os"
	"path/filepath"
)

// FileLoader reads assets from the local file system, relative to Base.
// Reads are synchronous.
type FileLoader struct {
	Base string
}

// Load reads name.
func (l *FileLoader) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(l.Base, filepath.FromSlash(name)))
}

// DefaultLoader returns a FileLoader for base, or an HTTPLoader when base
// is an http(s) URL.
func DefaultLoader(base string) Loader {
	if isRemote(base) {
		return &HTTPLoader{Base: base}
	}
	return &FileLoader{Base: base}
}
