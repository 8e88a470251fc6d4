package asset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/voxel"
)

func slogger() *slog.Logger { return voxel.Logger() }

// Loader fetches the encoded bytes of an asset by name.
type Loader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// HTTPLoader fetches assets relative to Base. In js/wasm builds the
// standard HTTP client goes through the browser's fetch API, so Load
// waits on the fetch promise without blocking the event loop.
type HTTPLoader struct {
	Base   string
	Client *http.Client
}

// Load fetches name. Non-2xx responses are errors.
func (l *HTTPLoader) Load(ctx context.Context, name string) ([]byte, error) {
	u, err := url.JoinPath(l.Base, name)
	if err != nil {
		return nil, err
	}
	if l.Base == "" {
		u = name
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// LoadImage loads and decodes name with l and fits it into maxDim.
// Every failure is an *voxel.AssetLoadError.
func LoadImage(ctx context.Context, l Loader, name string, maxDim int) (*Image, error) {
	data, err := l.Load(ctx, name)
	if err != nil {
		return nil, &voxel.AssetLoadError{Name: name, Err: err}
	}
	img, err := Decode(name, data)
	if err != nil {
		return nil, &voxel.AssetLoadError{Name: name, Err: err}
	}
	return img.Fit(maxDim), nil
}

// LoadAll loads names concurrently. The result has the order of names.
// The first failure cancels the remaining loads.
func LoadAll(ctx context.Context, l Loader, names []string, maxDim int) ([]*Image, error) {
	images := make([]*Image, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range names {
		g.Go(func() error {
			img, err := LoadImage(ctx, l, name, maxDim)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slogger().Info("asset: loaded", "count", len(names))
	return images, nil
}

// isRemote reports whether base names an HTTP location.
func isRemote(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}
