//go:build vulkan

package gfx

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// These tests cover the driver independent pieces of the Vulkan backend;
// anything needing a real device is exercised by running an application
// against it.

func TestBufferUsageFlagsMapping(t *testing.T) {
	cases := []struct {
		usage BufferUsage
		want  vk.BufferUsageFlagBits
	}{
		{VertexBuffer, vk.BufferUsageVertexBufferBit},
		{IndexBuffer, vk.BufferUsageIndexBufferBit},
		{UniformBuffer, vk.BufferUsageUniformBufferBit},
		{StorageBuffer, vk.BufferUsageStorageBufferBit},
	}
	for _, c := range cases {
		flags := bufferUsageFlags(c.usage)
		if flags&vk.BufferUsageFlags(c.want) == 0 {
			t.Errorf("%v missing its usage bit", c.usage)
		}
		if flags&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
			t.Errorf("%v missing transfer destination bit", c.usage)
		}
	}

	// Each category must map to a distinct bit; index buffers in particular
	// must not alias uniform buffers.
	seen := make(map[vk.BufferUsageFlags]BufferUsage)
	for _, c := range cases {
		flags := bufferUsageFlags(c.usage)
		if prev, dup := seen[flags]; dup {
			t.Errorf("%v and %v map to the same flags %#x", prev, c.usage, flags)
		}
		seen[flags] = c.usage
	}
}

func TestMemoryPropertyFlags(t *testing.T) {
	host := memoryPropertyFlags(HostVisible)
	if host&vk.MemoryPropertyHostVisibleBit == 0 || host&vk.MemoryPropertyHostCoherentBit == 0 {
		t.Errorf("host visible flags wrong: %#x", host)
	}
	device := memoryPropertyFlags(DeviceLocal)
	if device&vk.MemoryPropertyDeviceLocalBit == 0 {
		t.Errorf("device local flags wrong: %#x", device)
	}
	if device&vk.MemoryPropertyHostVisibleBit != 0 {
		t.Error("device local memory marked host visible")
	}
}

func TestSampleFlagBits(t *testing.T) {
	cases := map[int]vk.SampleCountFlagBits{
		1:  vk.SampleCount1Bit,
		2:  vk.SampleCount2Bit,
		4:  vk.SampleCount4Bit,
		8:  vk.SampleCount8Bit,
		16: vk.SampleCount16Bit,
		32: vk.SampleCount32Bit,
		64: vk.SampleCount64Bit,
	}
	for n, want := range cases {
		if got := sampleFlagBits(n); got != want {
			t.Errorf("sampleFlagBits(%d) = %v, want %v", n, got, want)
		}
	}
	if sampleFlagBits(3) != vk.SampleCount1Bit {
		t.Error("invalid count should fall back to one sample")
	}
}

func TestContextStateStrings(t *testing.T) {
	states := []contextState{
		stateUninitialized, stateInstanceCreated, stateDeviceCreated,
		stateSwapchainReady, stateRunning, stateDestroyed,
	}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		if str == "" || str == "unknown" || seen[str] {
			t.Errorf("state %d has bad string %q", int(s), str)
		}
		seen[str] = true
	}
}

func TestNewVulkanContextZeroState(t *testing.T) {
	c := NewVulkanContext()
	if c.state != stateUninitialized {
		t.Errorf("state = %v, want uninitialized", c.state)
	}
	if c.msaaSamples != 1 {
		t.Errorf("msaaSamples = %d, want 1", c.msaaSamples)
	}

	stats := c.Stats()
	if stats.BufferCount != 0 || stats.AllocatedMemory != 0 {
		t.Errorf("zero context has stats: %+v", stats)
	}
	if budget := c.GetMemoryBudget(); budget != (MemoryBudget{}) {
		t.Errorf("zero context has a memory budget: %+v", budget)
	}

	vs := c.GetVulkanStats()
	if vs.MaxFramesInFlight != maxFramesInFlight || vs.CurrentFrame != 0 {
		t.Errorf("ring state wrong on zero context: %+v", vs)
	}
	if vs.SwapchainImages != 0 || vs.RetiredResources != 0 {
		t.Errorf("zero context has swapchain state: %+v", vs)
	}
	if stats.FrameTime != 0 {
		t.Errorf("zero context reports frame time %v", stats.FrameTime)
	}
}

func TestVulkanMSAAWithoutDevice(t *testing.T) {
	c := NewVulkanContext()

	// Non power of two counts are rejected before any device work, and a
	// rejected call must not disturb the active count.
	err := c.SetMSAASamples(3)
	if kind, _ := ErrorKind(err); kind != InitializationFailed {
		t.Errorf("samples 3: kind = %v, want InitializationFailed", kind)
	}
	if got := c.Stats().MSAASamples; got != 1 {
		t.Errorf("rejected call changed sample count to %d, want 1", got)
	}

	// Valid counts are recorded even before Initialize; the device cap is
	// checked once a physical device exists.
	if err := c.SetMSAASamples(4); err != nil {
		t.Fatal(err)
	}
	if got := c.Stats().MSAASamples; got != 4 {
		t.Errorf("sample count = %d, want 4", got)
	}

	err = c.SetMSAASamples(-8)
	if kind, _ := ErrorKind(err); kind != InitializationFailed {
		t.Errorf("samples -8: kind = %v, want InitializationFailed", kind)
	}
	if got := c.Stats().MSAASamples; got != 4 {
		t.Errorf("rejected call changed sample count to %d, want 4", got)
	}
}

func TestCheckSampleCap(t *testing.T) {
	if err := checkSampleCap(4, 8); err != nil {
		t.Errorf("4x within an 8x cap rejected: %v", err)
	}
	if err := checkSampleCap(8, 8); err != nil {
		t.Errorf("8x at an 8x cap rejected: %v", err)
	}
	err := checkSampleCap(16, 8)
	if kind, _ := ErrorKind(err); kind != InitializationFailed {
		t.Errorf("16x over an 8x cap: kind = %v, want InitializationFailed", kind)
	}
}

func TestSplitRetired(t *testing.T) {
	retired := []retiredResource{
		{frame: 1}, {frame: 4}, {frame: 2}, {frame: 7}, {frame: 3},
	}

	done, pending := splitRetired(retired, 3)
	if len(done) != 3 || len(pending) != 2 {
		t.Fatalf("split at 3: %d done, %d pending", len(done), len(pending))
	}
	for _, r := range done {
		if r.frame > 3 {
			t.Errorf("frame %d freed while still in flight", r.frame)
		}
	}
	for _, r := range pending {
		if r.frame <= 3 {
			t.Errorf("frame %d kept past its fence", r.frame)
		}
	}

	done, pending = splitRetired(retired, 0)
	if len(done) != 0 || len(pending) != len(retired) {
		t.Errorf("split at 0 freed %d entries", len(done))
	}
	done, pending = splitRetired(nil, 10)
	if len(done) != 0 || len(pending) != 0 {
		t.Error("empty queue produced entries")
	}
}

func TestMemoryPoolReleasable(t *testing.T) {
	shared := &memoryPool{alloc: PoolAllocator{Size: defaultPoolSize, Align: poolAlign}}
	if shared.releasable() {
		t.Error("empty shared pool marked releasable")
	}

	dedicated := &memoryPool{
		dedicated: true,
		alloc:     PoolAllocator{Size: 128 << 20, Align: poolAlign},
	}
	block := dedicated.alloc.Allocate(128 << 20)
	if block == nil {
		t.Fatal("dedicated pool rejected its own allocation")
	}
	if dedicated.releasable() {
		t.Error("occupied dedicated pool marked releasable")
	}
	dedicated.alloc.Free(block)
	if !dedicated.releasable() {
		t.Error("empty dedicated pool not releasable")
	}
}

func TestVulkanOpsRejectUninitializedContext(t *testing.T) {
	c := NewVulkanContext()

	_, err := c.CreateBuffer(64, VertexBuffer, DeviceLocal)
	if kind, _ := ErrorKind(err); kind != BufferCreationFailed {
		t.Errorf("buffer: kind = %v, want BufferCreationFailed", kind)
	}

	_, err = c.CreateTexture(4, 4, nil)
	if kind, _ := ErrorKind(err); kind != TextureCreationFailed {
		t.Errorf("texture: kind = %v, want TextureCreationFailed", kind)
	}

	_, err = c.CreateShader("a", "b")
	if kind, _ := ErrorKind(err); kind != ShaderCompilation {
		t.Errorf("shader: kind = %v, want ShaderCompilation", kind)
	}

	_, err = c.BeginFrame()
	if kind, _ := ErrorKind(err); kind != SynchronizationFailed {
		t.Errorf("begin frame: kind = %v, want SynchronizationFailed", kind)
	}

	err = c.UpdateBuffer(NilHandle, nil)
	if kind, _ := ErrorKind(err); kind != InvalidHandle {
		t.Errorf("update: kind = %v, want InvalidHandle", kind)
	}
}

func TestCompileWGSLEmptySource(t *testing.T) {
	_, err := compileWGSL("")
	if kind, _ := ErrorKind(err); kind != ShaderCompilation {
		t.Errorf("kind = %v, want ShaderCompilation", kind)
	}
}

func TestCompileWGSLBadSource(t *testing.T) {
	_, err := compileWGSL("this is not wgsl {")
	if err == nil {
		t.Fatal("garbage source compiled")
	}
	if kind, _ := ErrorKind(err); kind != ShaderCompilation {
		t.Errorf("kind = %v, want ShaderCompilation", kind)
	}
}

func TestClampUint32(t *testing.T) {
	if clampUint32(5, 10, 20) != 10 {
		t.Fail()
	}
	if clampUint32(25, 10, 20) != 20 {
		t.Fail()
	}
	if clampUint32(15, 10, 20) != 15 {
		t.Fail()
	}
}
