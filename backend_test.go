package gfx

import (
	"errors"
	"testing"
)

// testDisplay is a NativeDisplay for tests that never touches a real window.
type testDisplay struct {
	width    int
	height   int
	glLoaded bool
	gles2    bool
}

func (d *testDisplay) DrawableSize() (int, int) { return d.width, d.height }

func (d *testDisplay) GLFunctionsLoaded() bool { return d.glLoaded }

func (d *testDisplay) RequiredInstanceExtensions() []string { return nil }

func (d *testDisplay) CreateSurface(instance interface{}) (uintptr, error) {
	return 0, errors.New("no surface in tests")
}

func (d *testDisplay) IsGLES2() bool { return d.gles2 }

func newTestGLContext(t *testing.T) *GraphicsContext {
	t.Helper()
	ctx, err := NewGraphicsContext(OpenGL)
	if err != nil {
		t.Fatalf("NewGraphicsContext: %v", err)
	}
	err = ctx.Initialize(&testDisplay{width: 800, height: 600, glLoaded: true})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return ctx
}

func TestOpenGLAlwaysAvailable(t *testing.T) {
	if !IsAvailable(OpenGL) {
		t.Error("OpenGL must always be available")
	}
	if IsAvailable(Backend(99)) {
		t.Error("unknown backend reported available")
	}
}

func TestUnknownBackendRejected(t *testing.T) {
	_, err := NewBackendContext(Backend(99))
	if err == nil {
		t.Fatal("unknown backend accepted")
	}
	if kind, _ := ErrorKind(err); kind != InitializationFailed {
		t.Errorf("kind = %v, want InitializationFailed", kind)
	}
}

func TestInitializeRequiresLoadedGL(t *testing.T) {
	ctx, err := NewGraphicsContext(OpenGL)
	if err != nil {
		t.Fatal(err)
	}
	err = ctx.Initialize(&testDisplay{glLoaded: false})
	if err == nil {
		t.Fatal("initialize succeeded without loaded GL functions")
	}
	if kind, _ := ErrorKind(err); kind != InitializationFailed {
		t.Errorf("kind = %v, want InitializationFailed", kind)
	}
}

func TestFrameLifecycle(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	if ctx.BackendType() != OpenGL {
		t.Errorf("backend = %v, want OpenGL", ctx.BackendType())
	}

	clear := [4]float32{0.1, 0.2, 0.3, 1}
	for i := 0; i < 3; i++ {
		if err := ctx.BeginRenderPass(&clear); err != nil {
			t.Fatalf("frame %d begin: %v", i, err)
		}
		if err := ctx.EndRenderPass(); err != nil {
			t.Fatalf("frame %d end: %v", i, err)
		}
		if err := ctx.Present(); err != nil {
			t.Fatalf("frame %d present: %v", i, err)
		}
	}
}

func TestRenderPassPairing(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	err := ctx.EndRenderPass()
	if kind, _ := ErrorKind(err); kind != SynchronizationFailed {
		t.Errorf("end without begin: kind = %v, want SynchronizationFailed", kind)
	}

	if err := ctx.BeginRenderPass(nil); err != nil {
		t.Fatal(err)
	}
	err = ctx.BeginRenderPass(nil)
	if kind, _ := ErrorKind(err); kind != SynchronizationFailed {
		t.Errorf("double begin: kind = %v, want SynchronizationFailed", kind)
	}
}

func TestFreshContextStatsAreZero(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	stats := ctx.GetPerformanceStats()
	if stats.BufferCount != 0 || stats.TextureCount != 0 || stats.ShaderCount != 0 {
		t.Errorf("fresh context has resources: %+v", stats)
	}
	if stats.AllocatedMemory != 0 {
		t.Errorf("fresh context reports %d bytes allocated", stats.AllocatedMemory)
	}
	if stats.MSAASamples != 1 || stats.MSAAEnabled {
		t.Errorf("fresh context MSAA state wrong: %+v", stats)
	}
	if stats.FrameTime != 0 {
		t.Errorf("fresh context reports frame time %v", stats.FrameTime)
	}
}

func TestCreateBufferValidation(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	_, err := ctx.CreateBuffer(0, VertexBuffer, DeviceLocal)
	if kind, _ := ErrorKind(err); kind != BufferCreationFailed {
		t.Errorf("zero size: kind = %v, want BufferCreationFailed", kind)
	}

	_, err = ctx.CreateBuffer(-5, VertexBuffer, DeviceLocal)
	if kind, _ := ErrorKind(err); kind != BufferCreationFailed {
		t.Errorf("negative size: kind = %v, want BufferCreationFailed", kind)
	}

	_, err = ctx.CreateBuffer(64, BufferUsage(42), DeviceLocal)
	if kind, _ := ErrorKind(err); kind != BufferCreationFailed {
		t.Errorf("bad usage: kind = %v, want BufferCreationFailed", kind)
	}
}

func TestBufferLifecycle(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	buf, err := ctx.CreateBuffer(64, UniformBuffer, HostVisible)
	if err != nil {
		t.Fatal(err)
	}
	if buf == NilHandle {
		t.Fatal("got nil handle")
	}

	if err := ctx.UpdateBuffer(buf, make([]byte, 64)); err != nil {
		t.Errorf("full update: %v", err)
	}

	err = ctx.UpdateBuffer(buf, make([]byte, 65))
	if kind, _ := ErrorKind(err); kind != MappingFailed {
		t.Errorf("overflow update: kind = %v, want MappingFailed", kind)
	}

	if ctx.GetPerformanceStats().BufferCount != 1 {
		t.Error("buffer not counted")
	}

	if err := ctx.DeleteBuffer(buf); err != nil {
		t.Fatal(err)
	}
	if ctx.GetPerformanceStats().BufferCount != 0 {
		t.Error("deleted buffer still counted")
	}

	err = ctx.UpdateBuffer(buf, make([]byte, 8))
	if kind, _ := ErrorKind(err); kind != InvalidHandle {
		t.Errorf("update after delete: kind = %v, want InvalidHandle", kind)
	}
	err = ctx.DeleteBuffer(buf)
	if kind, _ := ErrorKind(err); kind != InvalidHandle {
		t.Errorf("double delete: kind = %v, want InvalidHandle", kind)
	}
}

func TestBufferHandleNotReissued(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	old, err := ctx.CreateBuffer(16, VertexBuffer, DeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	ctx.DeleteBuffer(old)

	fresh, err := ctx.CreateBuffer(16, VertexBuffer, DeviceLocal)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == old {
		t.Fatal("deleted handle was reissued")
	}
	err = ctx.UpdateBuffer(old, make([]byte, 4))
	if kind, _ := ErrorKind(err); kind != InvalidHandle {
		t.Errorf("stale handle accepted: kind = %v", kind)
	}
}

func TestTextureValidation(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	_, err := ctx.CreateTexture(0, 64, nil)
	if kind, _ := ErrorKind(err); kind != TextureCreationFailed {
		t.Errorf("zero width: kind = %v, want TextureCreationFailed", kind)
	}

	_, err = ctx.CreateTexture(4, 4, make([]byte, 10))
	if kind, _ := ErrorKind(err); kind != TextureCreationFailed {
		t.Errorf("short data: kind = %v, want TextureCreationFailed", kind)
	}

	tex, err := ctx.CreateTexture(4, 4, make([]byte, 4*4*4))
	if err != nil {
		t.Fatal(err)
	}

	err = ctx.UpdateTexture(tex, 8, 8, make([]byte, 8*8*4))
	if kind, _ := ErrorKind(err); kind != TextureCreationFailed {
		t.Errorf("dimension mismatch: kind = %v, want TextureCreationFailed", kind)
	}
	if err := ctx.UpdateTexture(tex, 4, 4, make([]byte, 4*4*4)); err != nil {
		t.Errorf("valid update: %v", err)
	}
}

func TestShaderValidation(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	_, err := ctx.CreateShader("", "frag")
	if kind, _ := ErrorKind(err); kind != ShaderCompilation {
		t.Errorf("empty vertex source: kind = %v, want ShaderCompilation", kind)
	}

	sh, err := ctx.CreateShader("vert", "frag")
	if err != nil {
		t.Fatal(err)
	}
	if sh == NilHandle {
		t.Fatal("got nil shader handle")
	}
	if ctx.GetPerformanceStats().ShaderCount != 1 {
		t.Error("shader not counted")
	}
}

func TestComputeShaderRejectedOnGLES2(t *testing.T) {
	ctx, err := NewGraphicsContext(OpenGL)
	if err != nil {
		t.Fatal(err)
	}
	err = ctx.Initialize(&testDisplay{width: 320, height: 240, glLoaded: true, gles2: true})
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Cleanup()

	if !ctx.AsOpenGL().IsGLES2() {
		t.Fatal("GLES2 not detected")
	}
	_, err = ctx.CreateComputeShader("comp")
	if kind, _ := ErrorKind(err); kind != ShaderCompilation {
		t.Errorf("kind = %v, want ShaderCompilation", kind)
	}
}

func TestMSAAValidation(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	for _, bad := range []int{0, -2, 3, 6, 12} {
		err := ctx.SetMSAASamples(bad)
		if kind, _ := ErrorKind(err); kind != InitializationFailed {
			t.Errorf("samples %d: kind = %v, want InitializationFailed", bad, kind)
		}
		if got := ctx.GetPerformanceStats().MSAASamples; got != 1 {
			t.Errorf("samples %d: rejected call changed sample count to %d", bad, got)
		}
	}

	if err := ctx.SetMSAASamples(4); err != nil {
		t.Fatal(err)
	}
	stats := ctx.GetPerformanceStats()
	if stats.MSAASamples != 4 || !stats.MSAAEnabled {
		t.Errorf("MSAA state after enable: %+v", stats)
	}

	// A rejected change must keep the last accepted count, not reset it.
	if err := ctx.SetMSAASamples(5); err == nil {
		t.Fatal("samples 5 accepted")
	}
	if got := ctx.GetPerformanceStats().MSAASamples; got != 4 {
		t.Errorf("rejected call changed sample count to %d, want 4", got)
	}

	if err := ctx.SetMSAASamples(1); err != nil {
		t.Fatal(err)
	}
	if ctx.GetPerformanceStats().MSAAEnabled {
		t.Error("MSAA still enabled at 1 sample")
	}
}

func TestConfigDrivenConstruction(t *testing.T) {
	conf := DefaultConfig()
	if conf.Backend != OpenGL || conf.WindowWidth != 800 || conf.WindowHeight != 600 {
		t.Errorf("unexpected defaults: %+v", conf)
	}

	conf.SampleCount = 4
	ctx, err := NewGraphicsContextWithConfig(conf)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Cleanup()
	if ctx.GetPerformanceStats().MSAASamples != 4 {
		t.Error("config sample count not applied")
	}

	conf.SampleCount = 7
	if _, err := NewGraphicsContextWithConfig(conf); err == nil {
		t.Error("invalid config sample count accepted")
	}
}

func TestAsOpenGL(t *testing.T) {
	ctx := newTestGLContext(t)
	defer ctx.Cleanup()

	if ctx.AsOpenGL() == nil {
		t.Error("AsOpenGL returned nil on an OpenGL context")
	}
}
