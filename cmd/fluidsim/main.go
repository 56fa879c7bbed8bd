// Command fluidsim runs the fluid solver without a window. It writes the
// dye field as PNG frames and can stream the frames to browsers over a
// websocket, taking pointer drags from them as input.
//
// Usage:
//
//	fluidsim -frames 300 -out frames/
//	fluidsim -frames 0 -serve :8080
//	fluidsim -config run.json -device cpu
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	_ "github.com/gogpu/fluid/gpu"

	"github.com/gogpu/fluid"
)

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("fluidsim: invalid configuration", "err", err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	fluid.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fluidsim: run failed", "err", err)
		os.Exit(1)
	}
}
