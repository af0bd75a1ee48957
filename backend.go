package gfx

// renderingBackend is the operation set every backend implements. Exactly two
// implementations exist: *GLContext and *VulkanContext. The set is closed by
// construction: BackendContext is the only place an implementation is ever
// selected, and it is selected once.
type renderingBackend interface {
	Initialize(display NativeDisplay) error
	BeginRenderPass(clearColor *[4]float32) error
	EndRenderPass() error
	Present() error

	CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Handle, error)
	UpdateBuffer(buffer Handle, data []byte) error
	DeleteBuffer(buffer Handle) error
	CreateTexture(width, height int, data []byte) (Handle, error)
	UpdateTexture(texture Handle, width, height int, data []byte) error
	CreateShader(vertexSrc, fragmentSrc string) (Handle, error)
	CreateComputeShader(computeSrc string) (Handle, error)

	SetMSAASamples(samples int) error
	Stats() PerformanceStats
	Cleanup()
}

// BackendContext routes every operation to the one concrete backend chosen at
// construction time. No backend specific logic lives here: this layer only
// forwards, plus the argument contracts that are backend independent.
type BackendContext struct {
	kind Backend
	impl renderingBackend
}

// NewBackendContext constructs the zero state of the chosen backend. A
// request for Vulkan when Vulkan support was not compiled in is an
// unrecoverable construction error; startup must stop rather than silently
// degrade to another backend.
func NewBackendContext(backend Backend) (*BackendContext, error) {
	switch backend {
	case OpenGL:
		return &BackendContext{kind: OpenGL, impl: newGLContext()}, nil
	case Vulkan:
		impl, err := newVulkanBackend()
		if err != nil {
			return nil, err
		}
		return &BackendContext{kind: Vulkan, impl: impl}, nil
	}
	return nil, newError(InitializationFailed, "unknown rendering backend %v", backend)
}

// IsAvailable reports whether the given backend can be used on this host.
// OpenGL is unconditionally available; Vulkan availability means a working
// loader and driver were found, not merely that support was compiled in.
func IsAvailable(backend Backend) bool {
	switch backend {
	case OpenGL:
		return true
	case Vulkan:
		return vulkanAvailable()
	}
	return false
}

// BackendType returns the backend this context was constructed with.
func (c *BackendContext) BackendType() Backend {
	return c.kind
}

func (c *BackendContext) Initialize(display NativeDisplay) error {
	return c.impl.Initialize(display)
}

func (c *BackendContext) BeginRenderPass(clearColor *[4]float32) error {
	return c.impl.BeginRenderPass(clearColor)
}

func (c *BackendContext) EndRenderPass() error {
	return c.impl.EndRenderPass()
}

func (c *BackendContext) Present() error {
	return c.impl.Present()
}

// CreateBuffer creates a buffer of the given byte size. Zero size buffers
// and unknown usage categories are rejected before reaching the backend.
func (c *BackendContext) CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Handle, error) {
	if size <= 0 {
		return NilHandle, newError(BufferCreationFailed, "buffer size must be positive, got %d", size)
	}
	if !ValidUsage(usage) {
		return NilHandle, newError(BufferCreationFailed, "unsupported buffer usage %v", usage)
	}
	return c.impl.CreateBuffer(size, usage, location)
}

func (c *BackendContext) UpdateBuffer(buffer Handle, data []byte) error {
	return c.impl.UpdateBuffer(buffer, data)
}

func (c *BackendContext) DeleteBuffer(buffer Handle) error {
	return c.impl.DeleteBuffer(buffer)
}

func (c *BackendContext) CreateTexture(width, height int, data []byte) (Handle, error) {
	if width <= 0 || height <= 0 {
		return NilHandle, newError(TextureCreationFailed, "texture dimensions must be positive, got %dx%d", width, height)
	}
	return c.impl.CreateTexture(width, height, data)
}

func (c *BackendContext) UpdateTexture(texture Handle, width, height int, data []byte) error {
	return c.impl.UpdateTexture(texture, width, height, data)
}

func (c *BackendContext) CreateShader(vertexSrc, fragmentSrc string) (Handle, error) {
	return c.impl.CreateShader(vertexSrc, fragmentSrc)
}

func (c *BackendContext) CreateComputeShader(computeSrc string) (Handle, error) {
	return c.impl.CreateComputeShader(computeSrc)
}

func (c *BackendContext) SetMSAASamples(samples int) error {
	return c.impl.SetMSAASamples(samples)
}

func (c *BackendContext) Stats() PerformanceStats {
	return c.impl.Stats()
}

func (c *BackendContext) Cleanup() {
	c.impl.Cleanup()
}
