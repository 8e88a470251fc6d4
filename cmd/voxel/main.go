//go:build !js

// Command voxel opens a window showing the animated voxel field.
//
// Usage:
//
//	voxel [-config voxel.toml] [-backend native|software] [-width W] [-height H] [-v]
//	voxel -headless 120 -backend software
//	voxel -dump-config > voxel.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/app"
	"github.com/gogpu/voxel/asset"
	"github.com/gogpu/voxel/backend"
	_ "github.com/gogpu/voxel/backend/native"
	"github.com/gogpu/voxel/backend/software"
	"github.com/gogpu/voxel/gpucore"
	"github.com/gogpu/voxel/host/glfwhost"
	"github.com/gogpu/voxel/world"
)

func init() {
	// GLFW calls must come from the main thread.
	runtime.LockOSThread()
}

type options struct {
	config     string
	backend    string
	width      int
	height     int
	verbose    bool
	headless   int
	dumpConfig bool
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.config, "config", "", "TOML config file")
	fs.StringVar(&o.backend, "backend", "", "GPU backend (registered: native, software)")
	fs.IntVar(&o.width, "width", 0, "window width, overrides the config")
	fs.IntVar(&o.height, "height", 0, "window height, overrides the config")
	fs.BoolVar(&o.verbose, "v", false, "debug logging to stderr")
	fs.IntVar(&o.headless, "headless", 0, "render `n` frames without a window and print stats")
	fs.BoolVar(&o.dumpConfig, "dump-config", false, "print the effective config as TOML and exit")
	err := fs.Parse(args)
	return o, err
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(o options) (voxel.Config, error) {
	cfg := voxel.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = voxel.LoadConfig(o.config); err != nil {
			return voxel.Config{}, err
		}
	}
	if o.backend != "" {
		cfg.Apply(voxel.WithBackend(o.backend))
	}
	if o.width > 0 && o.height > 0 {
		cfg.Apply(voxel.WithSize(o.width, o.height))
	}
	if o.headless > 0 && cfg.Render.Backend == "" {
		cfg.Apply(voxel.WithBackend(backend.BackendSoftware))
	}
	return cfg, cfg.Validate()
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if o.verbose {
		voxel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	cfg, err := loadConfig(o)
	if err != nil {
		log.Fatal(err)
	}
	if o.dumpConfig {
		data, err := cfg.Marshal()
		if err != nil {
			log.Fatal(err)
		}
		_, _ = os.Stdout.Write(data)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.headless > 0 {
		err = runHeadless(ctx, cfg, o.headless, os.Stdout)
	} else {
		err = runWindow(ctx, cfg)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func printer() *message.Printer {
	tag, err := language.Parse(os.Getenv("LANG"))
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func newGame(cfg voxel.Config) (*world.Game, error) {
	return world.NewGame(cfg, asset.NewCache(asset.DefaultLoader(cfg.World.AssetBase), 0))
}

func runWindow(ctx context.Context, cfg voxel.Config) error {
	b, err := backend.Select(cfg.Render.Backend)
	if err != nil {
		return err
	}
	host, err := glfwhost.New(cfg.Window)
	if err != nil {
		return err
	}
	defer host.Destroy()
	handle, err := host.Handle()
	if err != nil {
		return err
	}

	rc, err := app.RendererConfigFrom(cfg, b, handle)
	if err != nil {
		return err
	}
	rc.Size = host.FramebufferSize()
	game, err := newGame(cfg)
	if err != nil {
		return err
	}
	loop := app.NewLoop(app.NewInit(rc), game)
	p := printer()
	return host.Run(ctx, loop, func() string {
		return describe(p, game.Stats(), loop.Renderer())
	})
}

// runHeadless renders frames frames on an offscreen surface and writes a
// summary to w.
func runHeadless(ctx context.Context, cfg voxel.Config, frames int, w io.Writer) error {
	b, err := backend.Select(cfg.Render.Backend)
	if err != nil {
		return err
	}
	rc, err := app.RendererConfigFrom(cfg, b, gpucore.WindowHandle{Canvas: "headless"})
	if err != nil {
		return err
	}
	game, err := newGame(cfg)
	if err != nil {
		return err
	}
	loop := app.NewLoop(app.NewInit(rc), game)
	defer loop.Close()
	if err := loop.Start(ctx); err != nil {
		return err
	}
	if err := loop.Wait(ctx); err != nil {
		return err
	}

	start := time.Unix(0, 0)
	for i := range frames {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := loop.Tick(start.Add(time.Duration(i) * time.Second / 60)); err != nil {
			return err
		}
	}
	p := printer()
	if _, err := fmt.Fprintln(w, describe(p, game.Stats(), loop.Renderer())); err != nil {
		return err
	}
	if sw, ok := b.(*software.Backend); ok && sw.Device(0) != nil {
		_, err = p.Fprintf(w, "software backend: %d frames presented\n", sw.Device(0).SoftwareQueue().Presented())
	}
	return err
}
