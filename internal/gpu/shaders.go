//go:build !nogpu

package gpu

import (
	"embed"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/fluid/pass"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

// commonShaderSource declares the Params uniform and the edge-clamped cell
// index helper every kernel uses.
//
//go:embed shaders/common.wgsl
var commonShaderSource string

// ShaderSource returns the complete WGSL module for kernel k: the shared
// prelude followed by the kernel body.
func ShaderSource(k pass.Kernel) (string, error) {
	body, err := shaderFS.ReadFile("shaders/" + k.String() + ".wgsl")
	if err != nil {
		return "", fmt.Errorf("gpu: no shader for kernel %v: %w", k, err)
	}
	return commonShaderSource + "\n" + string(body), nil
}

// CompileKernel translates the WGSL module of kernel k to SPIR-V words.
func CompileKernel(k pass.Kernel) ([]uint32, error) {
	src, err := ShaderSource(k)
	if err != nil {
		return nil, err
	}
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile %v: %w", k, err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("gpu: compile %v: SPIR-V size %d not aligned to 4 bytes", k, len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}
