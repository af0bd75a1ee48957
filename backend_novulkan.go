//go:build !vulkan

package gfx

// This file is the dispatch layer's Vulkan arm when Vulkan support is not
// compiled in. Requesting the backend is an unrecoverable construction
// error; probing for it reports unavailable.

func newVulkanBackend() (renderingBackend, error) {
	return nil, newError(InitializationFailed,
		"Vulkan backend support was not compiled in; rebuild with the vulkan build tag")
}

func vulkanAvailable() bool {
	return false
}
