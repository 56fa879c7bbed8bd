//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/fluid/pass"
)

// kernelPipeline holds the compiled objects for one kernel.
//
// Binding layout: 0 is the uniform block, 1..n are the sources in
// Kernel.Sources order, n+1 is the destination.
type kernelPipeline struct {
	kernel     pass.Kernel
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// bindings returns the number of bind group entries of the kernel.
func (p *kernelPipeline) bindings() int { return len(p.kernel.Sources()) + 2 }

func layoutEntries(k pass.Kernel) []gputypes.BindGroupLayoutEntry {
	n := len(k.Sources())
	entries := make([]gputypes.BindGroupLayoutEntry, 0, n+2)
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding: 0, Visibility: gputypes.ShaderStageCompute,
		Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	for i := range n {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding: uint32(i + 1), Visibility: gputypes.ShaderStageCompute, //nolint:gosec // at most 3 bindings
			Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		})
	}
	entries = append(entries, gputypes.BindGroupLayoutEntry{
		Binding: uint32(n + 1), Visibility: gputypes.ShaderStageCompute, //nolint:gosec // at most 3 bindings
		Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	})
	return entries
}

// shaderSource returns the module source handed to the backend. With
// precompile set the kernel is translated to SPIR-V here; otherwise the
// backend receives WGSL.
func shaderSource(k pass.Kernel, precompile bool) (hal.ShaderSource, error) {
	if precompile {
		words, err := CompileKernel(k)
		if err != nil {
			return hal.ShaderSource{}, err
		}
		return hal.ShaderSource{SPIRV: words}, nil
	}
	src, err := ShaderSource(k)
	if err != nil {
		return hal.ShaderSource{}, err
	}
	return hal.ShaderSource{WGSL: src}, nil
}

// createPipeline compiles kernel k on device. On failure every object
// created so far is destroyed.
func createPipeline(device hal.Device, k pass.Kernel, precompile bool) (*kernelPipeline, error) {
	source, err := shaderSource(k, precompile)
	if err != nil {
		return nil, err
	}
	p := &kernelPipeline{kernel: k}
	label := "fluid_" + k.String()

	p.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", k, err)
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: layoutEntries(k),
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create %s bind group layout: %w", k, err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create %s pipeline layout: %w", k, err)
	}

	p.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		p.destroy(device)
		return nil, fmt.Errorf("create %s compute pipeline: %w", k, err)
	}
	return p, nil
}

func (p *kernelPipeline) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
	}
	*p = kernelPipeline{kernel: p.kernel}
}

// createPipelines compiles every kernel. It returns nil and destroys the
// partial set if any kernel fails.
func createPipelines(device hal.Device, precompile bool) ([]*kernelPipeline, error) {
	kernels := pass.Kernels()
	out := make([]*kernelPipeline, len(kernels))
	for _, k := range kernels {
		p, err := createPipeline(device, k, precompile)
		if err != nil {
			destroyPipelines(device, out)
			return nil, err
		}
		out[k] = p
	}
	return out, nil
}

func destroyPipelines(device hal.Device, ps []*kernelPipeline) {
	for _, p := range ps {
		if p != nil {
			p.destroy(device)
		}
	}
}
