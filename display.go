package gfx

import (
	"fmt"

	"github.com/vulkan-go/glfw/v3.3/glfw"
)

// NativeDisplay is the capability object the windowing layer supplies to a
// context. It carries just enough of the platform window to create a
// presentation surface and to size the drawable; the event loop itself stays
// with the windowing layer.
type NativeDisplay interface {
	// DrawableSize returns the current drawable size in pixels.
	DrawableSize() (width, height int)
	// GLFunctionsLoaded reports whether the OpenGL entry points have been
	// loaded. Only consulted by the OpenGL backend.
	GLFunctionsLoaded() bool
	// RequiredInstanceExtensions returns the platform surface extensions a
	// Vulkan instance must enable to present to this display.
	RequiredInstanceExtensions() []string
	// CreateSurface creates a presentation surface against the given Vulkan
	// instance and returns the raw surface pointer.
	CreateSurface(instance interface{}) (uintptr, error)
}

// WindowDisplay adapts a glfw window to the NativeDisplay interface.
type WindowDisplay struct {
	Window *glfw.Window

	// GLLoaded should be set by the bootstrap code once the GL function
	// loader has run. It is ignored on the Vulkan path.
	GLLoaded bool
}

// NewWindowDisplay wraps an existing glfw window.
func NewWindowDisplay(window *glfw.Window) *WindowDisplay {
	return &WindowDisplay{Window: window}
}

func (w *WindowDisplay) DrawableSize() (int, int) {
	return w.Window.GetFramebufferSize()
}

func (w *WindowDisplay) GLFunctionsLoaded() bool {
	return w.GLLoaded
}

func (w *WindowDisplay) RequiredInstanceExtensions() []string {
	return w.Window.GetRequiredInstanceExtensions()
}

func (w *WindowDisplay) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := w.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating window surface: %w", err)
	}
	return surface, nil
}
