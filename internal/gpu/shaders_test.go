//go:build !nogpu

package gpu

import (
	"strings"
	"testing"

	"github.com/gogpu/fluid/pass"
)

func TestShaderSource_AllKernels(t *testing.T) {
	for _, k := range pass.Kernels() {
		src, err := ShaderSource(k)
		if err != nil {
			t.Fatalf("ShaderSource(%v): %v", k, err)
		}
		if !strings.Contains(src, "struct Params") {
			t.Errorf("%v: missing common prelude", k)
		}
		if !strings.Contains(src, "fn main(") {
			t.Errorf("%v: missing entry point", k)
		}
		want := len(k.Sources()) + 2
		if got := strings.Count(src, "@binding("); got != want {
			t.Errorf("%v: %d bindings, want %d", k, got, want)
		}
	}
}

func TestShaderSource_NoLoops(t *testing.T) {
	for _, k := range pass.Kernels() {
		src, _ := ShaderSource(k)
		for _, kw := range []string{"for (", "loop {", "while "} {
			if strings.Contains(src, kw) {
				t.Errorf("%v: contains %q", k, kw)
			}
		}
	}
}

func TestShaderSource_UnknownKernel(t *testing.T) {
	if _, err := ShaderSource(pass.Kernel(200)); err == nil {
		t.Error("ShaderSource(200) should fail")
	}
}

// TestShaderCompilation compiles every kernel to SPIR-V with naga.
func TestShaderCompilation(t *testing.T) {
	for _, k := range pass.Kernels() {
		t.Run(k.String(), func(t *testing.T) {
			words, err := CompileKernel(k)
			if err != nil {
				errStr := err.Error()
				if strings.Contains(errStr, "runtime-sized arrays not yet implemented") {
					t.Skip("Skipping: naga doesn't yet support runtime-sized arrays")
				}
				if strings.Contains(errStr, "not yet implemented") || strings.Contains(errStr, "not supported") {
					t.Skipf("Skipping: naga feature not yet implemented: %v", err)
				}
				if strings.Contains(errStr, "lowering error") {
					t.Skipf("Skipping: naga lowering limitation: %v", err)
				}
				t.Fatalf("failed to compile %v shader: %v", k, err)
			}
			if len(words) == 0 {
				t.Fatal("SPIR-V output is empty")
			}
			if words[0] != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", words[0])
			}
			t.Logf("%v shader compiled to %d words of SPIR-V", k, len(words))
		})
	}
}
