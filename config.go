package gfx

import "fmt"

// Backend identifies a concrete GPU API implementation. It is chosen once
// when a context is constructed and never changes for the lifetime of that
// context.
type Backend int

const (
	OpenGL Backend = iota
	Vulkan
)

func (b Backend) String() string {
	switch b {
	case OpenGL:
		return "OpenGL"
	case Vulkan:
		return "Vulkan"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// BufferUsage describes what a buffer will be bound as. Each usage maps to
// exactly one native usage flag on the Vulkan side.
type BufferUsage int

const (
	VertexBuffer BufferUsage = iota
	IndexBuffer
	UniformBuffer
	StorageBuffer
)

func (u BufferUsage) String() string {
	switch u {
	case VertexBuffer:
		return "vertex"
	case IndexBuffer:
		return "index"
	case UniformBuffer:
		return "uniform"
	case StorageBuffer:
		return "storage"
	}
	return fmt.Sprintf("BufferUsage(%d)", int(u))
}

// ValidUsage reports whether u is one of the supported buffer categories.
func ValidUsage(u BufferUsage) bool {
	switch u {
	case VertexBuffer, IndexBuffer, UniformBuffer, StorageBuffer:
		return true
	}
	return false
}

// MemoryLocation selects where a buffer's backing memory lives.
type MemoryLocation int

const (
	// DeviceLocal memory is GPU only and must be filled through a staging copy.
	DeviceLocal MemoryLocation = iota
	// HostVisible memory can be mapped and written directly by the CPU.
	HostVisible
)

// Config is the startup configuration consumed once when a context is
// created. MSAA changes after startup go through SetMSAASamples, not
// through this struct.
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int

	// SampleCount is the initial MSAA sample count, a power of two.
	SampleCount int

	HighDPI    bool
	Fullscreen bool

	// Backend selects the rendering backend for the context.
	Backend Backend

	// Debug enables the Vulkan debug report callback and validation layers
	// when they are present on the host.
	Debug bool
}

// DefaultConfig returns the configuration used when the application does not
// provide one.
func DefaultConfig() Config {
	return Config{
		WindowTitle:  "gfx",
		WindowWidth:  800,
		WindowHeight: 600,
		SampleCount:  1,
		Backend:      OpenGL,
	}
}
