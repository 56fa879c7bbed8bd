//go:build !nogpu

// Package gpu registers the wgpu compute device with the solver.
//
// Importing this package makes "wgpu" the default device. The GPU is opened
// lazily when a solver is created; if no Vulkan adapter is available,
// fluid.New fails with fluid.ErrUnsupportedPlatform and the caller can retry
// with fluid.WithDevice("cpu").
//
// Usage:
//
//	import _ "github.com/gogpu/fluid/gpu" // enable GPU execution
//
// Build with -tags nogpu to compile the module without the GPU device.
package gpu

import (
	"github.com/gogpu/fluid"
	gpuimpl "github.com/gogpu/fluid/internal/gpu"
	"github.com/gogpu/fluid/pass"
)

// Name is the registry name of the GPU device.
const Name = gpuimpl.Name

func init() {
	fluid.RegisterDevice(Name, open)
}

func open(cfg fluid.DeviceConfig) (pass.Device, error) {
	gpuimpl.SetLogger(cfg.Logger)
	var (
		d   *gpuimpl.Device
		err error
	)
	if cfg.Provider != nil {
		d, err = gpuimpl.NewWithProvider(cfg.Provider)
	} else {
		d, err = gpuimpl.New()
	}
	if err != nil {
		fluid.Logger().Warn("fluid: GPU device not available", "err", err)
		return nil, err
	}
	return d, nil
}
