// Command fluidview opens a window with the fluid simulation. Drag with the
// mouse or a finger to push dye around.
//
// Keys: P pauses, R clears the fields, Space adds a burst of random splats,
// Escape quits.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	_ "github.com/gogpu/fluid/gpu"

	"github.com/gogpu/fluid"
	"github.com/gogpu/fluid/internal/palette"
)

type config struct {
	width    int
	height   int
	device   string
	palette  string
	quality  float64
	adaptive bool
	workers  int
	splats   int
	force    float64
	stats    bool
	verbose  bool
}

func (c config) options() []fluid.Option {
	opts := []fluid.Option{fluid.WithQuality(c.quality), fluid.WithWorkers(c.workers)}
	if c.device != "" {
		opts = append(opts, fluid.WithDevice(c.device))
	}
	return opts
}

func parseArgs(args []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("fluidview", flag.ContinueOnError)
	fs.IntVar(&c.width, "width", 960, "window width in logical pixels")
	fs.IntVar(&c.height, "height", 640, "window height in logical pixels")
	fs.StringVar(&c.device, "device", "", "compute device (default: best registered)")
	fs.StringVar(&c.palette, "palette", "rainbow", "splat color palette")
	fs.Float64Var(&c.quality, "quality", 1, "initial resolution scale")
	fs.BoolVar(&c.adaptive, "adaptive", true, "adjust quality to the frame rate")
	fs.IntVar(&c.workers, "workers", 0, "cpu device worker count (0: GOMAXPROCS)")
	fs.IntVar(&c.splats, "splats", 10, "random splats at start")
	fs.Float64Var(&c.force, "force", 1000, "random splat force in cells/s")
	fs.BoolVar(&c.stats, "stats", true, "show frame statistics")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	switch {
	case c.width <= 0 || c.height <= 0:
		return c, fmt.Errorf("fluidview: window size %dx%d must be positive", c.width, c.height)
	case !palette.Known(c.palette):
		return c, fmt.Errorf("fluidview: unknown palette %q (have %v)", c.palette, palette.Names())
	}
	return c, nil
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("fluidview: invalid arguments", "err", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	fluid.SetLogger(log)

	g, err := newGame(cfg, log)
	if err != nil {
		log.Error("fluidview: cannot start solver", "err", err)
		os.Exit(1)
	}
	defer g.Close()

	ebiten.SetWindowSize(cfg.width, cfg.height)
	ebiten.SetWindowTitle("fluid")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Error("fluidview: game loop failed", "err", err)
		os.Exit(1)
	}
}
