//go:build js && wasm

// Command voxel-web renders the voxel field on a browser canvas.
//
// The page loads this program with wasm_exec.js and provides a canvas
// whose id matches window.canvas in the config (default "voxel-canvas").
// A config may be passed as TOML text in the global voxelConfig, and
// ?debug in the page URL enables debug logging to the console.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"syscall/js"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/app"
	"github.com/gogpu/voxel/asset"
	"github.com/gogpu/voxel/backend"
	_ "github.com/gogpu/voxel/backend/web"
	"github.com/gogpu/voxel/host/webhost"
	"github.com/gogpu/voxel/world"
)

func main() {
	if debugRequested() {
		voxel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	cfg, err := loadConfig()
	if err == nil {
		err = run(cfg)
	}
	if err != nil {
		log.Print(err)
		js.Global().Get("console").Call("error", err.Error())
		webhost.ShowError(cfg.Window.Canvas, err)
	}
}

// loadConfig returns the default config when parsing fails, so the error
// can still be shown on the default canvas.
func loadConfig() (voxel.Config, error) {
	if text := js.Global().Get("voxelConfig"); text.Type() == js.TypeString {
		cfg, err := voxel.ParseConfig([]byte(text.String()))
		if err != nil {
			return voxel.DefaultConfig(), err
		}
		return cfg, nil
	}
	return voxel.DefaultConfig(), nil
}

func debugRequested() bool {
	u, err := url.Parse(js.Global().Get("location").Get("href").String())
	if err != nil {
		return false
	}
	return u.Query().Has("debug")
}

func run(cfg voxel.Config) error {
	cfg.Render.Backend = backend.BackendWeb

	host, err := webhost.New(cfg.Window.Canvas)
	if err != nil {
		return err
	}
	b, err := backend.Select(cfg.Render.Backend)
	if err != nil {
		return err
	}
	rc, err := app.RendererConfigFrom(cfg, b, host.Handle())
	if err != nil {
		return err
	}
	rc.Size = host.Size()

	game, err := world.NewGame(cfg, asset.NewCache(asset.DefaultLoader(cfg.World.AssetBase), 0))
	if err != nil {
		return err
	}
	return host.Run(context.Background(), app.NewLoop(app.NewInit(rc), game))
}
