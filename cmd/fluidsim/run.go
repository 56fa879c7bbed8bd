package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/fluid"
	"github.com/gogpu/fluid/internal/palette"
)

// runner owns the solver for one run and rebuilds it after a context loss.
type runner struct {
	cfg     Config
	log     *slog.Logger
	rng     *rand.Rand
	palette fluid.Palette
	solver  *fluid.Solver
	hub     *hub

	frames    int
	recovered int
	encoded   bytes.Buffer
}

func newRunner(cfg Config, log *slog.Logger) (*runner, error) {
	pal, err := palette.Named(cfg.Palette, palette.DefaultBrightness)
	if err != nil {
		return nil, err
	}
	r := &runner{
		cfg:     cfg,
		log:     log,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		palette: pal,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// open creates a solver and seeds it with the initial random splats.
func (r *runner) open() error {
	s, err := fluid.New(r.cfg.Surface(), r.cfg.Options()...)
	if errors.Is(err, fluid.ErrUnsupportedPlatform) && r.cfg.Device == "" {
		r.log.Warn("fluidsim: default device unavailable, using cpu", "err", err)
		s, err = fluid.New(r.cfg.Surface(), append(r.cfg.Options(), fluid.WithDevice("cpu"))...)
	}
	if err != nil {
		return err
	}
	r.solver = s
	return r.inject(r.cfg.Splats)
}

func (r *runner) inject(n int) error {
	if n == 0 {
		return nil
	}
	radius := r.solver.Params().SplatRadius
	return r.solver.Inject(fluid.RandomInjections(r.rng, n, radius, r.cfg.Force, r.palette)...)
}

// reopen replaces a solver whose execution context was lost.
func (r *runner) reopen(cause error) error {
	r.log.Warn("fluidsim: recreating solver", "err", cause)
	_ = r.solver.Close()
	r.recovered++
	return r.open()
}

// frame advances the simulation by one frame and publishes the dye field.
func (r *runner) frame() error {
	if r.hub != nil {
		w, h := r.solver.Size()
		for _, m := range r.hub.Pending() {
			batch := fluid.Stroke([2]float64{m.X, m.Y}, [2]float64{m.DX, m.DY}, r.cfg.Dt(), w, h,
				r.palette(r.rng), r.solver.Params().SplatRadius)
			if err := r.solver.Inject(batch...); err != nil {
				return err
			}
		}
	}
	if r.cfg.SplatEvery > 0 && r.frames > 0 && r.frames%r.cfg.SplatEvery == 0 {
		if err := r.inject(1); err != nil {
			return err
		}
	}
	if err := r.solver.Step(r.cfg.Dt()); err != nil {
		return err
	}

	if r.cfg.Out == "" && (r.hub == nil || r.hub.Clients() == 0) {
		r.frames++
		return nil
	}
	dye, err := r.solver.DyeField()
	if err != nil {
		return err
	}
	img := dye.Upscale(r.solver.BackingSize())
	if r.cfg.Out != "" {
		if err := writePNG(filepath.Join(r.cfg.Out, fmt.Sprintf("frame_%05d.png", r.frames)), img); err != nil {
			return err
		}
	}
	if r.hub != nil && r.hub.Clients() > 0 {
		r.encoded.Reset()
		if err := png.Encode(&r.encoded, img); err != nil {
			return fmt.Errorf("fluidsim: encode frame: %w", err)
		}
		r.hub.Broadcast(r.encoded.Bytes())
	}
	r.frames++
	return nil
}

// simulate runs frames until the configured count is reached or ctx ends.
// A live viewer paces frames at the configured rate.
func (r *runner) simulate(ctx context.Context) error {
	var tick <-chan time.Time
	if r.hub != nil {
		t := time.NewTicker(time.Duration(float64(time.Second) * r.cfg.Dt()))
		defer t.Stop()
		tick = t.C
	}
	for r.cfg.Frames == 0 || r.frames < r.cfg.Frames {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		err := r.frame()
		if errors.Is(err, fluid.ErrContextLost) {
			err = r.reopen(err)
		}
		if err != nil {
			return err
		}
		if r.cfg.Verbose && r.frames%60 == 0 {
			if d, err := r.solver.Diagnostics(); err == nil {
				r.log.Debug("fluidsim: diagnostics", "frame", r.frames,
					"max_div", d.MaxDivergence, "energy", d.KineticEnergy, "dye", d.DyeMass)
			}
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fluidsim: create frame: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("fluidsim: encode %s: %w", path, err)
	}
	return f.Close()
}

// run executes one configured simulation, serving frames when asked.
func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	if cfg.Out != "" {
		if err := os.MkdirAll(cfg.Out, 0o755); err != nil {
			return fmt.Errorf("fluidsim: output directory: %w", err)
		}
	}
	r, err := newRunner(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = r.solver.Close() }()

	w, h := r.solver.Size()
	log.Info("fluidsim: starting", "device", r.solver.Device(), "sim", fmt.Sprintf("%dx%d", w, h), "frames", cfg.Frames)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Serve != "" {
		r.hub = newHub(log)
		srv := &http.Server{Addr: cfg.Serve, Handler: r.hub.handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("fluidsim: serving", "addr", cfg.Serve)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("fluidsim: serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdown)
		})
	}

	start := time.Now()
	g.Go(func() error {
		defer cancel()
		return r.simulate(ctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	p := message.NewPrinter(language.English)
	p.Fprintf(os.Stderr, "simulated %d frames (%d steps) at %dx%d in %v, %.1f steps/s, %d recoveries\n",
		r.frames, r.solver.Steps(), w, h, elapsed.Round(time.Millisecond),
		float64(r.solver.Steps())/elapsed.Seconds(), r.recovered)
	return nil
}
