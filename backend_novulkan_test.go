//go:build !vulkan

package gfx

import "testing"

func TestVulkanUnavailableWithoutBuildTag(t *testing.T) {
	if IsAvailable(Vulkan) {
		t.Error("Vulkan reported available in a build without Vulkan support")
	}

	_, err := NewBackendContext(Vulkan)
	if err == nil {
		t.Fatal("Vulkan backend constructed without Vulkan support")
	}
	if kind, _ := ErrorKind(err); kind != InitializationFailed {
		t.Errorf("kind = %v, want InitializationFailed", kind)
	}

	_, err = NewGraphicsContext(Vulkan)
	if err == nil {
		t.Fatal("graphics context constructed on unavailable backend")
	}
}
