//go:build vulkan

package gfx

import vk "github.com/vulkan-go/vulkan"

func newVulkanBackend() (renderingBackend, error) {
	return NewVulkanContext(), nil
}

// vulkanAvailable probes for a usable Vulkan loader and driver. A host can
// have the backend compiled in and still lack a driver, so this asks the
// loader rather than trusting the build tag.
func vulkanAvailable() bool {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return false
	}
	if err := vk.Init(); err != nil {
		return false
	}
	return true
}

// AsVulkan returns the underlying Vulkan context, or nil when this context
// runs on another backend. It is the entry point to the Vulkan extension
// API (memory budget, validation layer helpers).
func (g *GraphicsContext) AsVulkan() *VulkanContext {
	if vc, ok := g.backend.impl.(*VulkanContext); ok {
		return vc
	}
	return nil
}
