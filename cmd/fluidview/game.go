package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/gogpu/fluid"
	"github.com/gogpu/fluid/internal/palette"
)

// Game drives one solver from the ebiten loop. Update feeds pointer drags
// and advances the simulation, Draw presents the dye field.
type Game struct {
	cfg     config
	log     *slog.Logger
	rng     *rand.Rand
	palette fluid.Palette
	solver  *fluid.Solver
	quality *fluid.QualityController
	tracker *tracker

	surface        fluid.Surface
	layoutW        int
	layoutH        int
	frame          *ebiten.Image
	last           time.Time
	paused         bool
	drawErr        error
	reopened       int
	touchIDs       []ebiten.TouchID
	pointerScratch map[int][2]float64
}

func newGame(cfg config, log *slog.Logger) (*Game, error) {
	pal, err := palette.Named(cfg.palette, palette.DefaultBrightness)
	if err != nil {
		return nil, err
	}
	g := &Game{
		cfg:            cfg,
		log:            log,
		rng:            rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		palette:        pal,
		quality:        fluid.NewQualityController(fluid.DefaultQualityConfig()),
		tracker:        newTracker(),
		surface:        fluid.Surface{Width: float64(cfg.width), Height: float64(cfg.height), PixelRatio: 1},
		layoutW:        cfg.width,
		layoutH:        cfg.height,
		last:           time.Now(),
		pointerScratch: make(map[int][2]float64),
	}
	g.quality.Reset(cfg.quality)
	if err := g.open(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) open() error {
	opts := g.cfg.options()
	s, err := fluid.New(g.surface, opts...)
	if errors.Is(err, fluid.ErrUnsupportedPlatform) && g.cfg.device == "" {
		g.log.Warn("fluidview: default device unavailable, using cpu", "err", err)
		s, err = fluid.New(g.surface, append(opts, fluid.WithDevice("cpu"))...)
	}
	if err != nil {
		return err
	}
	if g.cfg.adaptive {
		s.SetQuality(g.quality.Quality())
	}
	g.solver = s
	return g.burst(g.cfg.splats)
}

// burst injects n random splats.
func (g *Game) burst(n int) error {
	if n <= 0 {
		return nil
	}
	radius := g.solver.Params().SplatRadius
	return g.solver.Inject(fluid.RandomInjections(g.rng, n, radius, g.cfg.force, g.palette)...)
}

// handle rebuilds the solver after a context loss and passes any other
// error through, which ends the game loop.
func (g *Game) handle(err error) error {
	if err == nil || !errors.Is(err, fluid.ErrContextLost) {
		return err
	}
	g.log.Warn("fluidview: recreating solver", "err", err)
	_ = g.solver.Close()
	g.reopened++
	return g.open()
}

func (g *Game) Update() error {
	now := time.Now()
	dt := now.Sub(g.last)
	g.last = now

	if err := g.drawErr; err != nil {
		g.drawErr = nil
		return g.handle(err)
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		return ebiten.Termination
	case inpututil.IsKeyJustPressed(ebiten.KeyP):
		g.paused = !g.paused
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if err := g.solver.Reset(); err != nil {
			return g.handle(err)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if err := g.burst(g.rng.IntN(20) + 5); err != nil {
			return g.handle(err)
		}
	}

	if err := g.rescale(dt); err != nil {
		return g.handle(err)
	}

	if err := g.splat(dt); err != nil {
		return g.handle(err)
	}
	if g.paused {
		return nil
	}
	return g.handle(g.solver.Step(dt.Seconds()))
}

// rescale feeds the frame time to the quality controller when adaptive
// quality is on, then applies quality and surface to the solver. A surface
// too large for the device is retried at the lowest quality.
func (g *Game) rescale(dt time.Duration) error {
	if g.cfg.adaptive && !g.paused {
		if q, changed := g.quality.Observe(dt); changed {
			g.log.Debug("fluidview: quality changed", "quality", q, "avg", g.quality.Average())
			g.solver.SetQuality(q)
		}
	}
	g.solver.SetSurface(g.surface)
	_, err := g.solver.Resize()
	if errors.Is(err, fluid.ErrUnsupportedPlatform) && g.solver.Quality() > fluid.MinQuality {
		g.log.Warn("fluidview: surface too large, lowering quality", "err", err)
		g.solver.SetQuality(fluid.MinQuality)
		g.quality.Reset(fluid.MinQuality)
		_, err = g.solver.Resize()
	}
	return err
}

// splat turns pointer movement since the previous update into injections.
func (g *Game) splat(dt time.Duration) error {
	pos := g.pointerScratch
	clear(pos)
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		pos[pointerMouse] = normalize(x, y, g.layoutW, g.layoutH)
	}
	g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
	for _, id := range g.touchIDs {
		x, y := ebiten.TouchPosition(id)
		pos[int(id)] = normalize(x, y, g.layoutW, g.layoutH)
	}

	strokes := g.tracker.update(pos, func() [3]float64 { return g.palette(g.rng) })
	if len(strokes) == 0 {
		return nil
	}
	w, h := g.solver.Size()
	radius := g.solver.Params().SplatRadius
	batch := make([]fluid.Injection, 0, 2*len(strokes))
	for _, s := range strokes {
		batch = append(batch, fluid.Stroke(s.point, s.delta, dt.Seconds(), w, h, s.color, radius)...)
	}
	return g.solver.Inject(batch...)
}

func (g *Game) Draw(screen *ebiten.Image) {
	dye, err := g.solver.DyeField()
	if err != nil {
		g.drawErr = err
		return
	}
	bw, bh := g.solver.BackingSize()
	if g.frame == nil || g.frame.Bounds().Dx() != bw || g.frame.Bounds().Dy() != bh {
		if g.frame != nil {
			g.frame.Deallocate()
		}
		g.frame = ebiten.NewImage(bw, bh)
	}
	g.frame.WritePixels(dye.Upscale(bw, bh).Pix)

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	op := &ebiten.DrawImageOptions{Filter: ebiten.FilterLinear}
	op.GeoM.Scale(float64(sw)/float64(bw), float64(sh)/float64(bh))
	screen.DrawImage(g.frame, op)

	if g.cfg.stats {
		ebitenutil.DebugPrint(screen, g.status())
	}
}

func (g *Game) status() string {
	w, h := g.solver.Size()
	s := fmt.Sprintf("FPS: %.0f  TPS: %.0f\n%s %dx%d  quality %.2f",
		ebiten.ActualFPS(), ebiten.ActualTPS(), g.solver.Device(), w, h, g.solver.Quality())
	if g.reopened > 0 {
		s += fmt.Sprintf("  restarts %d", g.reopened)
	}
	if g.paused {
		s += "\npaused"
	}
	return s
}

// Layout sizes the screen in device pixels so the dye is not resampled
// twice on high density displays.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	dpr := 1.0
	if m := ebiten.Monitor(); m != nil && m.DeviceScaleFactor() > 0 {
		dpr = m.DeviceScaleFactor()
	}
	g.surface = fluid.Surface{
		Width:      float64(outsideWidth),
		Height:     float64(outsideHeight),
		PixelRatio: dpr,
	}
	g.layoutW = max(int(float64(outsideWidth)*dpr), 1)
	g.layoutH = max(int(float64(outsideHeight)*dpr), 1)
	return g.layoutW, g.layoutH
}

// Close releases the solver.
func (g *Game) Close() error {
	return g.solver.Close()
}
