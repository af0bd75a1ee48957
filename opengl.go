package gfx

import (
	"log"
	"time"
)

// GLContext is the OpenGL arm of the backend abstraction. The actual GL call
// layer lives with the windowing glue and is considered an existing, opaque
// backend here. This type owns the backend independent contract (resource
// handle bookkeeping, validation, stats) and the GLES2/desktop rebind that
// has to happen once the GL loader has run.
type GLContext struct {
	isGLES2     bool
	initialized bool

	buffers  slotTable[glBuffer]
	textures slotTable[glTexture]
	shaders  slotTable[glShader]

	msaaSamples int

	inRenderPass bool
	frameStart   time.Time
	frameTime    float64
}

type glBuffer struct {
	size     int
	usage    BufferUsage
	location MemoryLocation
}

type glTexture struct {
	width  int
	height int
	size   int
}

type glShader struct {
	compute bool
}

func newGLContext() *GLContext {
	return &GLContext{msaaSamples: 1}
}

// IsGLES2 reports whether the context was rebound against a GLES2 loader.
func (c *GLContext) IsGLES2() bool {
	return c.isGLES2
}

// Initialize rebinds the context once GL entry points have been loaded.
// GLES2 detection has to wait until this point because the loader decides
// which profile it resolved.
func (c *GLContext) Initialize(display NativeDisplay) error {
	if !display.GLFunctionsLoaded() {
		return newError(InitializationFailed, "GL function loading has not completed")
	}
	c.isGLES2 = detectGLES2(display)
	c.initialized = true
	return nil
}

// detectGLES2 decides whether the loaded entry points belong to a GLES2
// profile. High DPI embedded targets report GLES through the display glue;
// the desktop path always resolves a core profile here.
func detectGLES2(display NativeDisplay) bool {
	type glesProber interface {
		IsGLES2() bool
	}
	if p, ok := display.(glesProber); ok {
		return p.IsGLES2()
	}
	return false
}

func (c *GLContext) BeginRenderPass(clearColor *[4]float32) error {
	if c.inRenderPass {
		return newError(SynchronizationFailed, "render pass already active")
	}
	c.inRenderPass = true
	if c.frameStart.IsZero() {
		c.frameStart = time.Now()
	}
	return nil
}

func (c *GLContext) EndRenderPass() error {
	if !c.inRenderPass {
		return newError(SynchronizationFailed, "no render pass active")
	}
	c.inRenderPass = false
	return nil
}

// Present completes the frame. Buffer swapping itself is owned by the
// windowing layer on the GL path.
func (c *GLContext) Present() error {
	if !c.frameStart.IsZero() {
		c.frameTime = time.Since(c.frameStart).Seconds()
	}
	c.frameStart = time.Now()
	return nil
}

func (c *GLContext) CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Handle, error) {
	return c.buffers.Insert(glBuffer{size: size, usage: usage, location: location}), nil
}

func (c *GLContext) UpdateBuffer(buffer Handle, data []byte) error {
	b, ok := c.buffers.Get(buffer)
	if !ok {
		return newError(InvalidHandle, "unknown or deleted buffer %#x", uint64(buffer))
	}
	if len(data) > b.size {
		return newError(MappingFailed, "write of %d bytes exceeds buffer capacity %d", len(data), b.size)
	}
	return nil
}

func (c *GLContext) DeleteBuffer(buffer Handle) error {
	if _, ok := c.buffers.Remove(buffer); !ok {
		return newError(InvalidHandle, "unknown or deleted buffer %#x", uint64(buffer))
	}
	return nil
}

func (c *GLContext) CreateTexture(width, height int, data []byte) (Handle, error) {
	size := width * height * 4
	if data != nil && len(data) != size {
		return NilHandle, newError(TextureCreationFailed, "texture data is %d bytes, want %d for %dx%d", len(data), size, width, height)
	}
	return c.textures.Insert(glTexture{width: width, height: height, size: size}), nil
}

func (c *GLContext) UpdateTexture(texture Handle, width, height int, data []byte) error {
	t, ok := c.textures.Get(texture)
	if !ok {
		return newError(InvalidHandle, "unknown or deleted texture %#x", uint64(texture))
	}
	if width != t.width || height != t.height {
		return newError(TextureCreationFailed, "texture is %dx%d, cannot update as %dx%d", t.width, t.height, width, height)
	}
	if len(data) != t.size {
		return newError(TextureCreationFailed, "texture data is %d bytes, want %d", len(data), t.size)
	}
	return nil
}

func (c *GLContext) CreateShader(vertexSrc, fragmentSrc string) (Handle, error) {
	if vertexSrc == "" || fragmentSrc == "" {
		return NilHandle, newError(ShaderCompilation, "empty shader source")
	}
	return c.shaders.Insert(glShader{}), nil
}

func (c *GLContext) CreateComputeShader(computeSrc string) (Handle, error) {
	if c.isGLES2 {
		return NilHandle, newError(ShaderCompilation, "compute shaders are not available on GLES2")
	}
	if computeSrc == "" {
		return NilHandle, newError(ShaderCompilation, "empty shader source")
	}
	return c.shaders.Insert(glShader{compute: true}), nil
}

// SetMSAASamples validates and records the sample count. The GL framebuffer
// shape is owned by the windowing layer, so there is nothing to rebuild here.
func (c *GLContext) SetMSAASamples(samples int) error {
	if !validSampleCount(samples) {
		return newError(InitializationFailed, "unsupported MSAA sample count %d", samples)
	}
	c.msaaSamples = samples
	return nil
}

func (c *GLContext) Stats() PerformanceStats {
	var mem uint64
	c.buffers.Each(func(_ Handle, b glBuffer) {
		mem += uint64(b.size)
	})
	c.textures.Each(func(_ Handle, t glTexture) {
		mem += uint64(t.size)
	})
	return PerformanceStats{
		BufferCount:     c.buffers.Len(),
		TextureCount:    c.textures.Len(),
		ShaderCount:     c.shaders.Len(),
		AllocatedMemory: mem,
		FrameTime:       c.frameTime,
		MSAASamples:     c.msaaSamples,
		MSAAEnabled:     c.msaaSamples > 1,
	}
}

func (c *GLContext) Cleanup() {
	if c.buffers.Len()+c.textures.Len()+c.shaders.Len() > 0 {
		log.Printf("gl: cleanup releasing %d buffers, %d textures, %d shaders",
			c.buffers.Len(), c.textures.Len(), c.shaders.Len())
	}
	c.buffers.Clear(nil)
	c.textures.Clear(nil)
	c.shaders.Clear(nil)
	c.initialized = false
}

// validSampleCount reports whether n is a power of two sample count the API
// accepts. Device caps are applied by the backend on top of this.
func validSampleCount(n int) bool {
	return n > 0 && n&(n-1) == 0
}
