package gfx

// GraphicsContext is the backend agnostic façade application code talks to.
// It owns a BackendContext and exposes the common lifecycle plus typed
// accessors for backend specific extension APIs.
type GraphicsContext struct {
	backend *BackendContext
}

// NewGraphicsContext creates a graphics context for the requested backend.
// It fails when the backend is not available on this host.
func NewGraphicsContext(backend Backend) (*GraphicsContext, error) {
	if !IsAvailable(backend) {
		return nil, newError(InitializationFailed, "rendering backend %v is not available", backend)
	}
	ctx, err := NewBackendContext(backend)
	if err != nil {
		return nil, err
	}
	return &GraphicsContext{backend: ctx}, nil
}

// NewGraphicsContextWithConfig creates a context from a startup Config and
// applies the configured MSAA sample count once the backend exists.
func NewGraphicsContextWithConfig(conf Config) (*GraphicsContext, error) {
	ctx, err := NewGraphicsContext(conf.Backend)
	if err != nil {
		return nil, err
	}
	if conf.SampleCount > 1 {
		if err := ctx.SetMSAASamples(conf.SampleCount); err != nil {
			return nil, err
		}
	}
	if conf.Debug {
		// Only the Vulkan backend has a validation layer to turn on.
		if d, ok := ctx.backend.impl.(interface{ EnableValidation() }); ok {
			d.EnableValidation()
		}
	}
	return ctx, nil
}

// Initialize brings the backend up against the given display. For OpenGL
// this rebinds the context now that GL entry points are loaded; for Vulkan
// it performs full device and swapchain bring-up. The context is unusable
// when an error is returned.
func (g *GraphicsContext) Initialize(display NativeDisplay) error {
	return g.backend.Initialize(display)
}

// BackendType returns the backend this context runs on.
func (g *GraphicsContext) BackendType() Backend {
	return g.backend.BackendType()
}

// AsOpenGL returns the underlying OpenGL context, or nil when this context
// runs on another backend.
func (g *GraphicsContext) AsOpenGL() *GLContext {
	if gl, ok := g.backend.impl.(*GLContext); ok {
		return gl
	}
	return nil
}

func (g *GraphicsContext) BeginRenderPass(clearColor *[4]float32) error {
	return g.backend.BeginRenderPass(clearColor)
}

func (g *GraphicsContext) EndRenderPass() error {
	return g.backend.EndRenderPass()
}

func (g *GraphicsContext) Present() error {
	return g.backend.Present()
}

func (g *GraphicsContext) CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Handle, error) {
	return g.backend.CreateBuffer(size, usage, location)
}

func (g *GraphicsContext) UpdateBuffer(buffer Handle, data []byte) error {
	return g.backend.UpdateBuffer(buffer, data)
}

func (g *GraphicsContext) DeleteBuffer(buffer Handle) error {
	return g.backend.DeleteBuffer(buffer)
}

func (g *GraphicsContext) CreateTexture(width, height int, data []byte) (Handle, error) {
	return g.backend.CreateTexture(width, height, data)
}

func (g *GraphicsContext) UpdateTexture(texture Handle, width, height int, data []byte) error {
	return g.backend.UpdateTexture(texture, width, height, data)
}

func (g *GraphicsContext) CreateShader(vertexSrc, fragmentSrc string) (Handle, error) {
	return g.backend.CreateShader(vertexSrc, fragmentSrc)
}

func (g *GraphicsContext) CreateComputeShader(computeSrc string) (Handle, error) {
	return g.backend.CreateComputeShader(computeSrc)
}

func (g *GraphicsContext) SetMSAASamples(samples int) error {
	return g.backend.SetMSAASamples(samples)
}

// GetPerformanceStats returns a snapshot of resource counts, memory use,
// frame timing and MSAA state for the active backend.
func (g *GraphicsContext) GetPerformanceStats() PerformanceStats {
	return g.backend.Stats()
}

// Cleanup tears the backend down. It must be called exactly once, after
// which the context must not be used.
func (g *GraphicsContext) Cleanup() {
	g.backend.Cleanup()
}
