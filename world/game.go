package world

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/voxel"
	"github.com/gogpu/voxel/app"
	"github.com/gogpu/voxel/asset"
	"github.com/gogpu/voxel/camera"
	"github.com/gogpu/voxel/gpucore"
	"github.com/gogpu/voxel/render"
	"github.com/gogpu/voxel/shader"
)

// scrollUnit is the scroll distance of one wheel notch.
const scrollUnit = 50

var (
	primitiveColor = mgl32.Vec3{1, 0.15, 0.1}
	texturedColor  = mgl32.Vec3{1, 1, 1}
	insertColor    = mgl32.Vec3{1, 0.85, 0.1}
)

// Stats summarizes the world for display.
type Stats struct {
	Visible int
	Chunks  int
	Removed int
}

// Game is the voxel field app.Game: it builds the pipeline and buffers
// during init, then applies input and animation every frame.
type Game struct {
	cfg    voxel.Config
	loader asset.Loader

	world       *World
	cam         *camera.Camera
	ctl         *camera.Controller
	anim        *camera.Animator
	transitions *TransitionTable
	scroll      float64
	size        gpucore.Extent
	removed     int

	uniform    camera.Uniform
	uniformBuf render.Handle
	draws      []int
}

// NewGame creates a game for cfg. Textures are fetched through loader.
func NewGame(cfg voxel.Config, loader asset.Loader) (*Game, error) {
	layout, err := ParseLayout(cfg.World.Layout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", voxel.ErrInvalidConfig, err)
	}
	col := primitiveColor
	if cfg.World.Mesh == "textured" {
		col = texturedColor
	}
	w := New(cfg.World.Chunks, cfg.World.ChunkSize, layout, col)
	w.Amplitude = float32(cfg.World.BobAmplitude)

	cc := cfg.Camera
	return &Game{
		cfg:         cfg,
		loader:      loader,
		world:       w,
		cam:         camera.New(cc, uint32(max(cfg.Window.Width, 0)), uint32(max(cfg.Window.Height, 0))), //nolint:gosec // clamped
		ctl:         camera.NewController(float32(cc.Speed), float32(cc.ZoomStep)),
		anim:        camera.NewAnimator(float32(cc.TweenSecs), float32(cc.AspectLimit)),
		transitions: defaultTransitions(w, cc),
		uniform:     camera.NewUniform(),
	}, nil
}

// defaultTransitions tours the field: the configured view, a low pass
// along one edge and a high view from the far corner.
func defaultTransitions(w *World, cc voxel.CameraConfig) *TransitionTable {
	center := w.Center()
	_, hi := w.Bounds()
	span := max(hi[0], hi[2])
	return NewTransitionTable(
		Transition{Until: 400, Eye: vec3(cc.Eye), Target: vec3(cc.Target)},
		Transition{Until: 800, Eye: center.Add(mgl32.Vec3{0, span * 0.4, -span}), Target: center},
		Transition{Until: 1200, Eye: center.Add(mgl32.Vec3{span, span * 1.2, span}), Target: center},
	)
}

func vec3(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

// World returns the voxel field.
func (g *Game) World() *World { return g.world }

// Camera returns the camera.
func (g *Game) Camera() *camera.Camera { return g.cam }

// Stats returns the current counts.
func (g *Game) Stats() Stats {
	return Stats{Visible: g.world.Visible(), Chunks: len(g.world.Chunks()), Removed: g.removed}
}

// Init uploads the mesh, the texture and every chunk, builds the
// pipeline and registers one draw per chunk.
func (g *Game) Init(ctx context.Context, r *app.Renderer) error {
	size := r.Surface.Size()
	g.size = size
	g.cam.SetViewport(size.Width, size.Height)

	var err error
	g.uniformBuf, err = r.Store.CreateUniform(camera.UniformSize)
	if err != nil {
		return err
	}
	g.uniform.Update(g.cam)
	if err := r.Store.UpdateUniform(g.uniformBuf, g.uniform.Bytes()); err != nil {
		return err
	}

	mesh := PrimitiveCube([3]float32{1, 1, 1})
	src := shader.Primitive
	var textures []render.Handle
	if g.cfg.World.Mesh == "textured" {
		mesh, src = TexturedCube(), shader.Textured
		if textures, err = g.loadTextures(ctx, r.Store); err != nil {
			return err
		}
	}

	pipeline, err := r.Pipelines.Build(r.Surface.Format(), render.PipelineDesc{
		Label:         mesh.Label,
		Source:        src,
		VertexEntry:   shader.VertexEntry,
		FragmentEntry: shader.FragmentEntry,
		Buffers:       []gpucore.VertexBufferLayout{mesh.Layout, InstanceLayout},
		Textured:      mesh.Textured,
		UniformSize:   camera.UniformSize,
	})
	if err != nil {
		return err
	}
	vb, err := r.Store.UploadStatic(render.KindVertex, mesh.Vertices)
	if err != nil {
		return err
	}
	ib, err := r.Store.UploadStatic(render.KindIndex, mesh.Indices)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.world.Upload(r.Store); err != nil {
		return err
	}

	draws := r.Frames.Draws()
	for i, c := range g.world.Chunks() {
		set := g.world.Set(c)
		groups := []render.Handle{g.uniformBuf}
		if len(textures) > 0 {
			groups = append(groups, textures[i%len(textures)])
		}
		g.draws = append(g.draws, draws.Add(render.Draw{
			Pipeline:      pipeline,
			Groups:        groups,
			Vertex:        vb,
			Instance:      set.Handle(),
			Index:         ib,
			IndexFormat:   gpucore.IndexFormatUint16,
			IndexCount:    mesh.IndexCount,
			InstanceCount: set.Visible(),
		}))
	}
	voxel.Logger().Info("world: ready",
		"chunks", len(g.draws), "instances", g.world.Visible(), "mesh", g.cfg.World.Mesh)
	return nil
}

// loadTextures uploads the configured textures, or a generated checker
// when none is configured.
func (g *Game) loadTextures(ctx context.Context, store *render.ResourceStore) ([]render.Handle, error) {
	names := g.cfg.World.Textures
	if len(names) == 0 && g.cfg.World.Texture != "" {
		names = []string{g.cfg.World.Texture}
	}
	var images []*asset.Image
	if len(names) > 0 {
		var err error
		images, err = asset.LoadAll(ctx, g.loader, names, g.cfg.Render.MaxTextureSize)
		if err != nil {
			return nil, err
		}
	} else {
		images = []*asset.Image{asset.Checker(256, 32,
			color.RGBA{R: 0x6a, G: 0xa8, B: 0x4f, A: 0xff},
			color.RGBA{R: 0x8b, G: 0x5a, B: 0x2b, A: 0xff})}
	}
	handles := make([]render.Handle, 0, len(images))
	for _, img := range images {
		h, err := store.UploadTexture(img, img.Name)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// HandleEvent applies host input.
func (g *Game) HandleEvent(ev app.Event) {
	switch e := ev.(type) {
	case app.ResizeEvent:
		g.size = gpucore.Extent{Width: e.Width, Height: e.Height}
		g.cam.SetViewport(e.Width, e.Height)

	case app.KeyEvent:
		if e.Pressed {
			switch e.Key {
			case gpucontext.KeyDelete:
				if ok, _ := g.world.RemoveRecent(g.world.Chunks()[0], 10); ok {
					g.removed++
				}
				return
			case gpucontext.KeyInsert:
				_, _ = g.world.Insert(g.world.Chunks()[0], 5, 5, insertColor)
				return
			}
		}
		g.ctl.ProcessKey(e.Key, e.Pressed)

	case app.ScrollEvent:
		g.scroll = min(max(g.scroll-e.DY*scrollUnit, 0), g.transitions.End()-1)
		if tr, ok := g.transitions.Enter(g.scroll); ok {
			g.ctl.AutoOrbit = false
			g.anim.Start(g.cam, tr.Eye, tr.Target)
			return
		}
		g.ctl.ProcessScroll(float32(e.DY))

	case app.ClickEvent:
		ray, ok := g.cam.ScreenToWorldRay(float32(e.X), float32(e.Y), g.size.Width, g.size.Height)
		if !ok {
			return
		}
		if cell, ok := g.world.TraceRemove(ray); ok {
			g.removed++
			voxel.Logger().Debug("world: instance removed", "cell", cell)
		}
	}
}

// Update advances the camera and the field by one frame and writes the
// instance buffers and the camera uniform.
func (g *Game) Update(dt time.Duration, fs *render.FrameState) error {
	g.cam.SetViewport(fs.Size.Width, fs.Size.Height)
	if !g.anim.Update(g.cam, float32(dt.Seconds())) {
		g.ctl.Update(g.cam)
	}
	g.world.Step()
	if err := g.world.Flush(); err != nil {
		return err
	}
	for i, c := range g.world.Chunks() {
		fs.Draws.SetInstanceCount(g.draws[i], g.world.Set(c).Visible())
	}
	g.uniform.Update(g.cam)
	return fs.Store.UpdateUniform(g.uniformBuf, g.uniform.Bytes())
}
