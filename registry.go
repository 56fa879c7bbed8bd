package fluid

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/fluid/internal/cpu"
	"github.com/gogpu/fluid/pass"
)

// DeviceConfig carries the construction settings a device factory may use.
type DeviceConfig struct {
	Workers  int
	Provider gpucontext.DeviceProvider
	Logger   *slog.Logger
}

// DeviceFactory opens a device. It returns an error wrapping
// ErrUnsupportedPlatform when the platform lacks what the device needs.
type DeviceFactory func(cfg DeviceConfig) (pass.Device, error)

var (
	registryMu sync.RWMutex
	devices    = make(map[string]DeviceFactory)
	// Selection order when no device is named (first registered wins).
	devicePriority = []string{"wgpu", cpu.Name}
)

func init() {
	RegisterDevice(cpu.Name, func(cfg DeviceConfig) (pass.Device, error) {
		return cpu.New(cfg.Workers), nil
	})
}

// RegisterDevice registers a device factory under name, replacing any
// previous registration. GPU devices register from init in the gpu
// package:
//
//	import _ "github.com/gogpu/fluid/gpu"
func RegisterDevice(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	devices[name] = factory
}

// UnregisterDevice removes a device from the registry.
func UnregisterDevice(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(devices, name)
}

// Devices returns the registered device names, sorted.
func Devices() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsDeviceRegistered reports whether name is registered.
func IsDeviceRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := devices[name]
	return ok
}

// defaultDevice returns the highest-priority registered name.
func defaultDevice() string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, name := range devicePriority {
		if _, ok := devices[name]; ok {
			return name
		}
	}
	return cpu.Name
}

// openDevice resolves name (or the default) and opens it. The factory's
// failure is returned as is: there is no fallback to another device.
func openDevice(name string, cfg DeviceConfig) (pass.Device, error) {
	if name == "" {
		name = defaultDevice()
	}

	registryMu.RLock()
	factory, ok := devices[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: device %q is not registered (have %v)", ErrUnsupportedPlatform, name, Devices())
	}

	d, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("fluid: open %s device: %w", name, err)
	}
	return d, nil
}
