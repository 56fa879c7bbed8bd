package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gogpu/fluid"
	"github.com/gogpu/fluid/internal/palette"
)

// Config is the complete run configuration. Values come from the
// defaults, then the optional JSON file, then explicitly passed flags.
type Config struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PixelRatio float64 `json:"pixel_ratio"`
	Quality    float64 `json:"quality"`

	Frames     int     `json:"frames"`
	FPS        float64 `json:"fps"`
	Seed       uint64  `json:"seed"`
	Splats     int     `json:"splats"`
	SplatEvery int     `json:"splat_every"`
	Force      float64 `json:"force"`
	Palette    string  `json:"palette"`

	Out     string `json:"out"`
	Serve   string `json:"serve"`
	Device  string `json:"device"`
	Workers int    `json:"workers"`
	Verbose bool   `json:"verbose"`

	Params fluid.Params `json:"params"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Width:      256,
		Height:     256,
		PixelRatio: 1,
		Quality:    fluid.MaxQuality,
		Frames:     120,
		FPS:        60,
		Seed:       1,
		Splats:     8,
		SplatEvery: 0,
		Force:      1000,
		Palette:    "rainbow",
		Params:     fluid.DefaultParams(),
	}
}

// Dt returns the simulation step for one frame.
func (c Config) Dt() float64 { return 1 / c.FPS }

// Validate reports the first setting the runner cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("surface %vx%v must be positive", c.Width, c.Height)
	case c.Frames < 0:
		return fmt.Errorf("frames %d must not be negative", c.Frames)
	case c.Frames == 0 && c.Serve == "":
		return errors.New("frames 0 runs forever and needs -serve")
	case c.FPS <= 0:
		return fmt.Errorf("fps %v must be positive", c.FPS)
	case c.Splats < 0 || c.SplatEvery < 0:
		return errors.New("splat counts must not be negative")
	case !palette.Known(c.Palette):
		return fmt.Errorf("unknown palette %q (want one of %v)", c.Palette, palette.Names())
	}
	return nil
}

// Options converts the configuration to solver options.
func (c Config) Options() []fluid.Option {
	opts := []fluid.Option{
		fluid.WithParams(c.Params),
		fluid.WithQuality(c.Quality),
		fluid.WithWorkers(c.Workers),
	}
	if c.Device != "" {
		opts = append(opts, fluid.WithDevice(c.Device))
	}
	return opts
}

// Surface returns the surface the solver is laid out for.
func (c Config) Surface() fluid.Surface {
	return fluid.Surface{Width: c.Width, Height: c.Height, PixelRatio: c.PixelRatio}
}

// parseArgs builds a Config from command-line arguments. The flag set is
// parsed twice so flags given on the command line win over the file.
func parseArgs(args []string) (Config, error) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("fluidsim", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON config file overlaying the defaults")

	fs.Float64Var(&cfg.Width, "width", cfg.Width, "surface width in CSS pixels")
	fs.Float64Var(&cfg.Height, "height", cfg.Height, "surface height in CSS pixels")
	fs.Float64Var(&cfg.PixelRatio, "dpr", cfg.PixelRatio, "device pixel ratio")
	fs.Float64Var(&cfg.Quality, "quality", cfg.Quality, "simulation resolution scale in [0.25, 1]")
	fs.IntVar(&cfg.Frames, "frames", cfg.Frames, "frames to simulate, 0 runs until interrupted")
	fs.Float64Var(&cfg.FPS, "fps", cfg.FPS, "frames per second; the step is 1/fps")
	fs.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for injections")
	fs.IntVar(&cfg.Splats, "splats", cfg.Splats, "random splats injected at start")
	fs.IntVar(&cfg.SplatEvery, "splat-every", cfg.SplatEvery, "inject one random splat every N frames, 0 disables")
	fs.Float64Var(&cfg.Force, "force", cfg.Force, "random splat velocity range in cells per second")
	fs.StringVar(&cfg.Palette, "palette", cfg.Palette, "dye gradient name")
	fs.StringVar(&cfg.Out, "out", cfg.Out, "directory for PNG frames, empty disables")
	fs.StringVar(&cfg.Serve, "serve", cfg.Serve, "address to stream frames over websocket, e.g. :8080")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "device name (cpu, wgpu), empty picks the default")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "CPU worker goroutines, 0 uses GOMAXPROCS")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "debug logging")
	fs.IntVar(&cfg.Params.PressureIterations, "iterations", cfg.Params.PressureIterations, "Jacobi pressure iterations")
	fs.Float64Var(&cfg.Params.Curl, "curl", cfg.Params.Curl, "vorticity confinement strength")
	fs.Float64Var(&cfg.Params.DyeDissipation, "dye-dissipation", cfg.Params.DyeDissipation, "dye kept per step")
	fs.Float64Var(&cfg.Params.VelocityDissipation, "velocity-dissipation", cfg.Params.VelocityDissipation, "velocity kept per step")
	fs.Float64Var(&cfg.Params.SplatRadius, "radius", cfg.Params.SplatRadius, "splat radius as a fraction of the surface")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
		if err := fs.Parse(args); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("fluidsim: %w", err)
	}
	return cfg, nil
}

// loadConfigFile decodes path over cfg. Unknown keys are rejected.
func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fluidsim: open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("fluidsim: parse %s: %w", path, err)
	}
	return nil
}
