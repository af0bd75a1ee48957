package gfx

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	err := newError(BufferCreationFailed, "buffer size must be positive, got %d", -1)

	kind, ok := ErrorKind(err)
	if !ok || kind != BufferCreationFailed {
		t.Errorf("got %v %v, want BufferCreationFailed true", kind, ok)
	}

	if _, ok := ErrorKind(errors.New("plain")); ok {
		t.Error("foreign error reported a kind")
	}
}

func TestErrorKindThroughWrapping(t *testing.T) {
	inner := newError(InvalidHandle, "unknown buffer")
	outer := fmt.Errorf("updating mesh: %w", inner)

	kind, ok := ErrorKind(outer)
	if !ok || kind != InvalidHandle {
		t.Errorf("kind lost through wrapping: %v %v", kind, ok)
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := wrapError(ShaderCompilation, errors.New("bad token"), "compiling WGSL")

	if !errors.Is(err, &Error{Kind: ShaderCompilation}) {
		t.Error("errors.Is did not match by kind")
	}
	if errors.Is(err, &Error{Kind: MappingFailed}) {
		t.Error("errors.Is matched the wrong kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	driver := errors.New("vulkan error: VK_ERROR_DEVICE_LOST")
	err := wrapError(SynchronizationFailed, driver, "submitting frame")

	if !errors.Is(err, driver) {
		t.Error("underlying driver error not reachable")
	}
}

func TestErrorKindStrings(t *testing.T) {
	kinds := []ErrKind{
		InitializationFailed, DeviceCreationFailed, BufferCreationFailed,
		TextureCreationFailed, CommandBufferCreationFailed, ShaderCompilation,
		MappingFailed, SynchronizationFailed, InvalidHandle,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "" || seen[s] {
			t.Errorf("kind %d has empty or duplicate string %q", int(k), s)
		}
		seen[s] = true
	}
}
