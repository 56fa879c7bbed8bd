//go:build !nogpu

// Package gpu implements the solver device with wgpu/hal compute shaders.
//
// Every field lives in a storage buffer of packed float32 values. A pass
// binds a 64-byte uniform block, its source buffers read-only and the
// destination buffer read-write, then dispatches one invocation per cell in
// 8×8 workgroups. Passes are recorded into a single command encoder and
// submitted on Flush, so a full solver step costs one submit and one wait.
//
// WGSL kernels avoid loops: naga's SPIR-V backend currently executes only
// the first iteration of a loop, so per-channel work is unrolled.
package gpu
