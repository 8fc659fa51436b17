package backend

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUBackendOption is a functional option applied to the WebGPU backend during construction via NewWGPU.
type WGPUBackendOption func(*wgpuBackend)

// WithVSync selects the surface present mode. VSync (the default) waits for
// vertical blank; disabling it presents immediately at the cost of tearing.
//
// Parameters:
//   - enabled: true for Fifo presentation, false for Immediate
//
// Returns:
//   - WGPUBackendOption: a function that applies the present mode option to the backend
func WithVSync(enabled bool) WGPUBackendOption {
	return func(b *wgpuBackend) {
		if enabled {
			b.presentMode = wgpu.PresentModeFifo
		} else {
			b.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithForceSoftwareAdapter forces WGPU to use a CPU fallback adapter instead
// of hardware acceleration. Requires a software Vulkan ICD on the system.
//
// Parameters:
//   - force: true to force the software fallback adapter
//
// Returns:
//   - WGPUBackendOption: a function that applies the adapter option to the backend
func WithForceSoftwareAdapter(force bool) WGPUBackendOption {
	return func(b *wgpuBackend) {
		b.forceFallbackAdapter = force
	}
}
