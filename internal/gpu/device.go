//go:build !nogpu

package gpu

import (
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fluid/internal/grid"
	"github.com/gogpu/fluid/pass"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Name is the registry name of the GPU device.
const Name = "wgpu"

const (
	waitTimeout = 5 * time.Second
	waitPoll    = 100 * time.Microsecond
)

// bindKey identifies a cached bind group. Buffers are compared by identity;
// the cache is dropped whenever buffers are destroyed.
type bindKey struct {
	kernel pass.Kernel
	slot   int
	bufs   [3]hal.Buffer
}

// Device executes passes as wgpu compute dispatches.
//
// Passes are recorded into one open command encoder and only submitted on
// Flush, Read or Write. Device is not safe for concurrent use.
type Device struct {
	instance       hal.Instance
	device         hal.Device
	queue          hal.Queue
	externalDevice bool
	adapter        string
	limits         gputypes.Limits

	pipelines []*kernelPipeline

	width, height int
	pairs         [5]*grid.Pair[hal.Buffer]
	single        [5]hal.Buffer
	staging       hal.Buffer
	bytes         []byte

	// Uniform slots are handed out once per recorded pass and recycled
	// after the encoder is submitted.
	slots      []hal.Buffer
	nextSlot   int
	uniform    []byte
	bindGroups map[bindKey]hal.BindGroup

	encoder hal.CommandEncoder
	pending int
	passes  uint64
}

var _ pass.Device = (*Device)(nil)

// New opens a Vulkan adapter, preferring a discrete or integrated GPU, and
// compiles every kernel. It fails with pass.ErrUnsupported when no adapter
// is available and with pass.ErrKernelCompile when a kernel is rejected.
func New() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available: %w", pass.ErrUnsupported)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %v: %w", err, pass.ErrUnsupported)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no GPU adapters found: %w", pass.ErrUnsupported)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %v: %w", err, pass.ErrUnsupported)
	}
	if caps := selected.Capabilities.Limits; caps.MaxStorageBufferBindingSize > 0 {
		limits.MaxStorageBufferBindingSize = min(limits.MaxStorageBufferBindingSize, caps.MaxStorageBufferBindingSize)
	}

	// The Vulkan device is ours, so kernels go in as SPIR-V from naga.
	d, err := open(openDev.Device, openDev.Queue, limits, false, true)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.adapter = selected.Info.Name
	slogger().Info("gpu: device initialized", "adapter", d.adapter)
	return d, nil
}

// NewWithProvider shares the device of an external provider, such as a
// gogpu window. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. The shared device is
// not destroyed by Close.
func NewWithProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types: %w", pass.ErrUnsupported)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device: %w", pass.ErrUnsupported)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue: %w", pass.ErrUnsupported)
	}
	d, err := open(device, queue, gputypes.DefaultLimits(), true, false)
	if err != nil {
		return nil, err
	}
	d.adapter = "shared"
	slogger().Info("gpu: using shared GPU device")
	return d, nil
}

// open compiles the kernels on an already opened device. With precompile
// set, WGSL is translated to SPIR-V by naga before reaching the backend.
func open(device hal.Device, queue hal.Queue, limits gputypes.Limits, external, precompile bool) (*Device, error) {
	pipelines, err := createPipelines(device, precompile)
	if err != nil {
		return nil, fmt.Errorf("gpu: %w: %w", pass.ErrKernelCompile, err)
	}
	return &Device{
		device:         device,
		queue:          queue,
		externalDevice: external,
		limits:         limits,
		pipelines:      pipelines,
		bindGroups:     make(map[bindKey]hal.BindGroup),
	}, nil
}

// Name returns "wgpu".
func (d *Device) Name() string { return Name }

// Adapter returns the name of the adapter in use.
func (d *Device) Adapter() string { return d.adapter }

// Passes returns the number of passes recorded since creation.
func (d *Device) Passes() uint64 { return d.passes }

// Pending returns the number of passes recorded but not yet submitted.
func (d *Device) Pending() int { return d.pending }

// SetLogger sets the logger for the gpu package.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Allocate destroys the current buffers and creates zero-filled ones of the
// given size. Fields larger than the storage binding limit fail with
// pass.ErrUnsupported.
func (d *Device) Allocate(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("gpu: invalid field size %dx%d", width, height)
	}
	if d.device == nil {
		return fmt.Errorf("gpu: allocate on closed device: %w", pass.ErrDeviceLost)
	}
	d.Release()

	largest := uint64(pass.Len(pass.Dye, width, height)) * 4 //nolint:gosec // sizes are positive
	if limit := d.limits.MaxStorageBufferBindingSize; limit > 0 && largest > limit {
		return fmt.Errorf("gpu: %dx%d fields need %d bytes, binding limit is %d: %w",
			width, height, largest, limit, pass.ErrUnsupported)
	}

	zeros := make([]byte, largest)
	for _, f := range pass.Fields() {
		n := uint64(pass.Len(f, width, height)) * 4 //nolint:gosec // sizes are positive
		a, err := d.createField(f, n, zeros)
		if err != nil {
			d.Release()
			return err
		}
		if !f.DoubleBuffered() {
			d.single[f] = a
			continue
		}
		b, err := d.createField(f, n, zeros)
		if err != nil {
			d.device.DestroyBuffer(a)
			d.Release()
			return err
		}
		d.pairs[f] = grid.NewPair(a, b)
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fluid_staging", Size: largest,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.Release()
		return fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	d.staging = staging
	d.bytes = make([]byte, largest)
	d.width, d.height = width, height
	slogger().Debug("gpu: fields allocated", "width", width, "height", height, "bytes", largest)
	return nil
}

func (d *Device) createField(f pass.FieldID, size uint64, zeros []byte) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fluid_" + f.String(), Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %v buffer: %w", f, err)
	}
	if err := d.queue.WriteBuffer(buf, 0, zeros[:size]); err != nil {
		d.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("gpu: clear %v buffer: %v: %w", f, err, pass.ErrDeviceLost)
	}
	return buf, nil
}

// Size returns the allocated grid size.
func (d *Device) Size() (width, height int) { return d.width, d.height }

// RunPass records kernel k into the open command encoder. The pass runs
// when the encoder is next submitted.
func (d *Device) RunPass(k pass.Kernel, src pass.Sources, dst pass.FieldID, u pass.Uniforms) error {
	pass.Validate(k, src, dst)
	if d.width == 0 {
		panic("gpu: RunPass on unallocated device")
	}
	p := d.pipelines[k]

	slot, err := d.uniformSlot()
	if err != nil {
		return d.discard(err)
	}
	d.uniform = packUniforms(d.uniform, uint32(d.width), uint32(d.height), //nolint:gosec // grid sizes fit uint32
		uint32(dst.Channels()), &u) //nolint:gosec // at most 3 channels
	if err := d.queue.WriteBuffer(d.slots[slot], 0, d.uniform); err != nil {
		return d.discard(fmt.Errorf("gpu: %v uniforms: %v: %w", k, err, pass.ErrDeviceLost))
	}

	key := bindKey{kernel: k, slot: slot}
	names := k.Sources()
	for i, name := range names {
		key.bufs[i] = d.read(src[name])
	}
	key.bufs[len(names)] = d.write(dst)
	bg, err := d.bindGroup(p, key)
	if err != nil {
		return d.discard(err)
	}

	if err := d.begin(); err != nil {
		return d.discard(err)
	}
	w, h := uint32(d.width), uint32(d.height) //nolint:gosec // grid sizes fit uint32
	cp := d.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "fluid_" + k.String()})
	cp.SetPipeline(p.pipeline)
	cp.SetBindGroup(0, bg, nil)
	cp.Dispatch((w+7)/8, (h+7)/8, 1)
	cp.End()

	d.pending++
	d.passes++
	return nil
}

func (d *Device) uniformSlot() (int, error) {
	if d.nextSlot == len(d.slots) {
		buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "fluid_params", Size: uniformSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return 0, fmt.Errorf("gpu: create uniform buffer: %w", err)
		}
		d.slots = append(d.slots, buf)
	}
	slot := d.nextSlot
	d.nextSlot++
	return slot, nil
}

func (d *Device) bindGroup(p *kernelPipeline, key bindKey) (hal.BindGroup, error) {
	if bg, ok := d.bindGroups[key]; ok {
		return bg, nil
	}
	n := p.bindings()
	entries := make([]gputypes.BindGroupEntry, 0, n)
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  0,
		Resource: gputypes.BufferBinding{Buffer: d.slots[key.slot].NativeHandle(), Offset: 0, Size: uniformSize},
	})
	for i := range n - 1 {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1), //nolint:gosec // at most 4 bindings
			Resource: gputypes.BufferBinding{Buffer: key.bufs[i].NativeHandle(), Offset: 0, Size: 0},
		})
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "fluid_" + key.kernel.String() + "_bind", Layout: p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %v bind group: %v: %w", key.kernel, err, pass.ErrDeviceLost)
	}
	d.bindGroups[key] = bg
	return bg, nil
}

func (d *Device) begin() error {
	if d.encoder != nil {
		return nil
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fluid_encoder"})
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %v: %w", err, pass.ErrDeviceLost)
	}
	if err := encoder.BeginEncoding("fluid_step"); err != nil {
		return fmt.Errorf("gpu: begin encoding: %v: %w", err, pass.ErrDeviceLost)
	}
	d.encoder = encoder
	return nil
}

// discard drops the passes recorded so far so a failed pass sequence is
// never submitted, and returns err.
func (d *Device) discard(err error) error {
	if d.encoder != nil {
		d.encoder.DiscardEncoding()
		d.encoder = nil
	}
	d.pending = 0
	d.nextSlot = 0
	return err
}

// Swap flips the read and write sides of a double-buffered field. Passes
// already recorded keep the buffers they were bound to.
func (d *Device) Swap(f pass.FieldID) {
	p := d.pairs[f]
	if p == nil {
		panic(fmt.Sprintf("gpu: swap of single-buffered or unallocated field %v", f))
	}
	p.Swap()
}

// Flush submits the recorded passes and waits for the GPU to finish them.
func (d *Device) Flush() error {
	if d.encoder == nil {
		return nil
	}
	encoder := d.encoder
	d.encoder = nil
	d.pending = 0
	d.nextSlot = 0

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %v: %w", err, pass.ErrDeviceLost)
	}
	return d.submit(cmdBuf)
}

func (d *Device) submit(cmdBuf hal.CommandBuffer) error {
	defer d.device.FreeCommandBuffer(cmdBuf)
	index, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("gpu: submit: %v: %w", err, pass.ErrDeviceLost)
	}
	deadline := time.Now().Add(waitTimeout)
	for d.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("gpu: submission %d not complete after %v: %w", index, waitTimeout, pass.ErrDeviceLost)
		}
		time.Sleep(waitPoll)
	}
	return nil
}

// Read submits pending passes, then copies the read side of f into dst
// through the staging buffer.
func (d *Device) Read(f pass.FieldID, dst []float32) error {
	buf := d.read(f)
	if buf == nil {
		return fmt.Errorf("gpu: read %v: device not allocated", f)
	}
	if len(dst) != pass.Len(f, d.width, d.height) {
		return fmt.Errorf("gpu: read %v: %w", f, pass.ErrSize)
	}
	if err := d.Flush(); err != nil {
		return err
	}
	size := uint64(len(dst)) * 4

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fluid_readback"})
	if err != nil {
		return fmt.Errorf("gpu: create readback encoder: %v: %w", err, pass.ErrDeviceLost)
	}
	if err := encoder.BeginEncoding("fluid_readback"); err != nil {
		return fmt.Errorf("gpu: begin readback: %v: %w", err, pass.ErrDeviceLost)
	}
	encoder.CopyBufferToBuffer(buf, d.staging, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end readback: %v: %w", err, pass.ErrDeviceLost)
	}
	if err := d.submit(cmdBuf); err != nil {
		return err
	}

	mapping, err := d.device.MapBuffer(d.staging, 0, size)
	if err != nil {
		return fmt.Errorf("gpu: map staging buffer: %v: %w", err, pass.ErrDeviceLost)
	}
	raw := d.bytes[:size]
	copy(raw, unsafe.Slice((*byte)(mapping.Ptr), size)) //nolint:gosec // mapping covers size bytes
	if err := d.device.UnmapBuffer(d.staging); err != nil {
		return fmt.Errorf("gpu: unmap staging buffer: %v: %w", err, pass.ErrDeviceLost)
	}
	decodeFloats(dst, raw)
	return nil
}

// Write submits pending passes, then uploads src into the read side of f.
func (d *Device) Write(f pass.FieldID, src []float32) error {
	buf := d.read(f)
	if buf == nil {
		return fmt.Errorf("gpu: write %v: device not allocated", f)
	}
	if len(src) != pass.Len(f, d.width, d.height) {
		return fmt.Errorf("gpu: write %v: %w", f, pass.ErrSize)
	}
	if err := d.Flush(); err != nil {
		return err
	}
	raw := d.bytes[:len(src)*4]
	encodeFloats(raw, src)
	if err := d.queue.WriteBuffer(buf, 0, raw); err != nil {
		return fmt.Errorf("gpu: write %v: %v: %w", f, err, pass.ErrDeviceLost)
	}
	return nil
}

// Release destroys every field buffer, uniform slot and cached bind group.
// Unsubmitted passes are discarded.
func (d *Device) Release() {
	if d.device == nil {
		return
	}
	_ = d.discard(nil)
	for k, bg := range d.bindGroups {
		d.device.DestroyBindGroup(bg)
		delete(d.bindGroups, k)
	}
	for _, buf := range d.slots {
		d.device.DestroyBuffer(buf)
	}
	d.slots = d.slots[:0]
	for i, p := range d.pairs {
		if p == nil {
			continue
		}
		for _, buf := range p.Both() {
			d.device.DestroyBuffer(buf)
		}
		d.pairs[i] = nil
	}
	for i, buf := range d.single {
		if buf != nil {
			d.device.DestroyBuffer(buf)
			d.single[i] = nil
		}
	}
	if d.staging != nil {
		d.device.DestroyBuffer(d.staging)
		d.staging = nil
	}
	d.nextSlot, d.pending = 0, 0
	d.width, d.height = 0, 0
}

// Close releases all buffers and pipelines. A device opened by New is
// destroyed; a shared device is left to its provider.
func (d *Device) Close() error {
	if d.device == nil {
		return nil
	}
	d.Release()
	destroyPipelines(d.device, d.pipelines)
	d.pipelines = nil
	if !d.externalDevice {
		if err := d.device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle on close", "err", err)
		}
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.device, d.queue = nil, nil
	return nil
}

func (d *Device) read(f pass.FieldID) hal.Buffer {
	if !f.Valid() {
		return nil
	}
	if p := d.pairs[f]; p != nil {
		return p.Read()
	}
	return d.single[f]
}

func (d *Device) write(f pass.FieldID) hal.Buffer {
	if p := d.pairs[f]; p != nil {
		return p.Write()
	}
	return d.single[f]
}
