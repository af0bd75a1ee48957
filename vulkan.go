//go:build vulkan

package gfx

import (
	"log"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// contextState tracks Vulkan bring-up. Transitions only move forward:
// Uninitialized -> InstanceCreated -> DeviceCreated -> SwapchainReady ->
// Running -> Destroyed. A failed Initialize leaves the context in whatever
// state it reached; the only valid call after that is Cleanup.
type contextState int

const (
	stateUninitialized contextState = iota
	stateInstanceCreated
	stateDeviceCreated
	stateSwapchainReady
	stateRunning
	stateDestroyed
)

func (s contextState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInstanceCreated:
		return "instance created"
	case stateDeviceCreated:
		return "device created"
	case stateSwapchainReady:
		return "swapchain ready"
	case stateRunning:
		return "running"
	case stateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// maxFramesInFlight is the depth of the frame sync ring. Two lets the CPU
// record frame N+1 while the GPU works on frame N.
const maxFramesInFlight = 2

// VulkanContext is the Vulkan arm of the backend abstraction. It owns the
// full chain from instance to framebuffers plus all GPU resources created
// through it. Not safe for concurrent use.
type VulkanContext struct {
	state   contextState
	display NativeDisplay

	validation    bool
	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	surface       vk.Surface

	gpu            vk.PhysicalDevice
	gpuProps       vk.PhysicalDeviceProperties
	graphicsFamily uint32
	presentFamily  uint32

	device        vk.Device
	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	alloc *deviceAllocator

	swapchain       vk.Swapchain
	swapchainFormat vk.Format
	swapchainExtent vk.Extent2D
	swapchainImages []vk.Image
	swapchainViews  []vk.ImageView
	renderPass      vk.RenderPass
	framebuffers    []vk.Framebuffer

	msaaSamples int
	msaaImage   vk.Image
	msaaView    vk.ImageView
	msaaMemory  *memoryBlock

	frames  frameRing
	retired []retiredResource

	buffers   slotTable[*vulkanBuffer]
	textures  slotTable[*vulkanTexture]
	shaders   slotTable[*vulkanShader]
	pipelines slotTable[*vulkanPipeline]
}

// NewVulkanContext returns a context in its zero state. Nothing touches the
// driver until Initialize runs.
func NewVulkanContext() *VulkanContext {
	return &VulkanContext{msaaSamples: 1}
}

// EnableValidation requests the Khronos validation layer and a debug report
// callback at instance creation. Must be called before Initialize; it is
// ignored if the layer is not installed on the host.
func (c *VulkanContext) EnableValidation() {
	c.validation = true
}

// Initialize brings the context from its zero state to SwapchainReady:
// instance, surface, physical and logical device, memory allocator,
// swapchain, render pass, framebuffers and the frame sync ring.
func (c *VulkanContext) Initialize(display NativeDisplay) error {
	if c.state != stateUninitialized {
		return newError(InitializationFailed, "context is %v, expected uninitialized", c.state)
	}
	c.display = display

	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return wrapError(InitializationFailed, err, "resolving Vulkan loader")
	}
	if err := vk.Init(); err != nil {
		return wrapError(InitializationFailed, err, "initializing Vulkan bindings")
	}

	if err := c.createInstance(); err != nil {
		return err
	}
	c.state = stateInstanceCreated

	surface, err := display.CreateSurface(c.instance)
	if err != nil {
		return wrapError(InitializationFailed, err, "creating presentation surface")
	}
	c.surface = vk.SurfaceFromPointer(surface)

	if err := c.selectPhysicalDevice(); err != nil {
		return err
	}
	// A sample count configured before any device existed could not be
	// checked against hardware limits; check it now so the error names the
	// bad value instead of surfacing as an image creation failure later.
	if err := checkSampleCap(c.msaaSamples, c.maxSampleCount()); err != nil {
		return err
	}
	if err := c.createLogicalDevice(); err != nil {
		return err
	}
	c.state = stateDeviceCreated
	c.alloc = newDeviceAllocator(c.device, c.gpu)

	if err := c.createSwapchain(); err != nil {
		return err
	}
	if err := c.frames.create(c.device, c.graphicsFamily); err != nil {
		return err
	}
	c.state = stateSwapchainReady
	return nil
}

func (c *VulkanContext) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:            vk.StructureTypeApplicationInfo,
		ApiVersion:       vk.MakeVersion(1, 0, 0),
		PApplicationName: safeString("gfx"),
		PEngineName:      safeString("gfx"),
	}

	extensions := c.display.RequiredInstanceExtensions()
	var layers []string
	if c.validation {
		if hasInstanceLayer("VK_LAYER_KHRONOS_validation") {
			layers = append(layers, "VK_LAYER_KHRONOS_validation")
			extensions = append(extensions, "VK_EXT_debug_report")
		} else {
			log.Printf("vulkan: validation requested but VK_LAYER_KHRONOS_validation is not installed")
			c.validation = false
		}
	}

	extensions = safeStrings(extensions)
	layers = safeStrings(layers)

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	err := vk.Error(vk.CreateInstance(&createInfo, nil, &c.instance))
	if err != nil {
		return wrapError(InitializationFailed, err, "creating instance")
	}
	vk.InitInstance(c.instance)

	if c.validation {
		if err := c.installDebugCallback(); err != nil {
			log.Printf("vulkan: debug callback unavailable: %v", err)
		}
	}
	return nil
}

func (c *VulkanContext) installDebugCallback() error {
	ret := vk.CreateDebugReportCallback(c.instance, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
		PfnCallback: debugReport,
	}, nil, &c.debugCallback)
	return vk.Error(ret)
}

// selectPhysicalDevice picks a GPU that can both draw and present to the
// surface, preferring a discrete one and a single queue family for both
// roles.
func (c *VulkanContext) selectPhysicalDevice() error {
	var deviceCount uint32
	err := vk.Error(vk.EnumeratePhysicalDevices(c.instance, &deviceCount, nil))
	if err != nil {
		return wrapError(DeviceCreationFailed, err, "enumerating physical devices")
	}
	if deviceCount == 0 {
		return newError(DeviceCreationFailed, "no Vulkan capable device found")
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	err = vk.Error(vk.EnumeratePhysicalDevices(c.instance, &deviceCount, devices))
	if err != nil {
		return wrapError(DeviceCreationFailed, err, "enumerating physical devices")
	}

	type candidate struct {
		gpu      vk.PhysicalDevice
		props    vk.PhysicalDeviceProperties
		graphics uint32
		present  uint32
		discrete bool
		unified  bool
	}
	var best *candidate

	for _, gpu := range devices {
		graphics, present, ok := findQueueFamilies(gpu, c.surface)
		if !ok {
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()

		cand := &candidate{
			gpu:      gpu,
			props:    props,
			graphics: graphics,
			present:  present,
			discrete: props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
			unified:  graphics == present,
		}
		if best == nil ||
			(cand.discrete && !best.discrete) ||
			(cand.discrete == best.discrete && cand.unified && !best.unified) {
			best = cand
		}
	}
	if best == nil {
		return newError(DeviceCreationFailed, "no device supports graphics and presentation on this surface")
	}

	c.gpu = best.gpu
	c.gpuProps = best.props
	c.graphicsFamily = best.graphics
	c.presentFamily = best.present
	log.Printf("vulkan: using device %q (graphics family %d, present family %d)",
		vk.ToString(best.props.DeviceName[:]), best.graphics, best.present)
	return nil
}

// findQueueFamilies returns a graphics family and a present family for the
// surface, the same family for both when one exists.
func findQueueFamilies(gpu vk.PhysicalDevice, surface vk.Surface) (graphics, present uint32, ok bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	if count == 0 {
		return 0, 0, false
	}
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, families)

	var haveGraphics, havePresent bool
	for i := range families {
		families[i].Deref()
		isGraphics := families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0

		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), surface, &supportsPresent)
		isPresent := supportsPresent == vk.True

		if isGraphics && isPresent {
			return uint32(i), uint32(i), true
		}
		if isGraphics && !haveGraphics {
			graphics = uint32(i)
			haveGraphics = true
		}
		if isPresent && !havePresent {
			present = uint32(i)
			havePresent = true
		}
	}
	return graphics, present, haveGraphics && havePresent
}

func (c *VulkanContext) createLogicalDevice() error {
	families := []uint32{c.graphicsFamily}
	if c.presentFamily != c.graphicsFamily {
		families = append(families, c.presentFamily)
	}

	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(c.gpu, &features)

	extensions := safeStrings([]string{"VK_KHR_swapchain"})
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	err := vk.Error(vk.CreateDevice(c.gpu, &createInfo, nil, &c.device))
	if err != nil {
		return wrapError(DeviceCreationFailed, err, "creating logical device")
	}

	vk.GetDeviceQueue(c.device, c.graphicsFamily, 0, &c.graphicsQueue)
	vk.GetDeviceQueue(c.device, c.presentFamily, 0, &c.presentQueue)
	return nil
}

// MemoryBudget reports device memory accounting: bytes reserved from the
// driver, bytes handed to live resources, bytes still free inside the pools,
// and the high-water mark of live bytes.
type MemoryBudget struct {
	Total     uint64
	Allocated uint64
	Available uint64
	Peak      uint64
}

// GetMemoryBudget returns the allocator's current accounting. Zero before
// Initialize has created the device.
func (c *VulkanContext) GetMemoryBudget() MemoryBudget {
	if c.alloc == nil {
		return MemoryBudget{}
	}
	used := c.alloc.used()
	return MemoryBudget{
		Total:     c.alloc.reserved,
		Allocated: used,
		Available: c.alloc.reserved - used,
		Peak:      c.alloc.peakUsed,
	}
}

// VulkanStats extends the portable performance counters with detail only the
// Vulkan backend can report.
type VulkanStats struct {
	PerformanceStats

	Budget            MemoryBudget
	SwapchainImages   int
	MaxFramesInFlight int
	CurrentFrame      int
	RetiredResources  int
}

// GetVulkanStats returns the extended counters for this context.
func (c *VulkanContext) GetVulkanStats() VulkanStats {
	return VulkanStats{
		PerformanceStats:  c.Stats(),
		Budget:            c.GetMemoryBudget(),
		SwapchainImages:   len(c.swapchainImages),
		MaxFramesInFlight: maxFramesInFlight,
		CurrentFrame:      c.frames.current,
		RetiredResources:  len(c.retired),
	}
}

// RenderTargetWidth returns the current swapchain width in pixels.
func (c *VulkanContext) RenderTargetWidth() int {
	return int(c.swapchainExtent.Width)
}

// RenderTargetHeight returns the current swapchain height in pixels.
func (c *VulkanContext) RenderTargetHeight() int {
	return int(c.swapchainExtent.Height)
}

func (c *VulkanContext) Stats() PerformanceStats {
	var mem uint64
	if c.alloc != nil {
		mem = c.alloc.used()
	}
	return PerformanceStats{
		BufferCount:     c.buffers.Len(),
		TextureCount:    c.textures.Len(),
		ShaderCount:     c.shaders.Len(),
		PipelineCount:   c.pipelines.Len(),
		AllocatedMemory: mem,
		FrameTime:       c.frames.frameTime,
		MSAASamples:     c.msaaSamples,
		MSAAEnabled:     c.msaaSamples > 1,
	}
}

// Cleanup tears everything down in reverse creation order. Safe to call at
// any point of a partially failed Initialize, and idempotent.
func (c *VulkanContext) Cleanup() {
	if c.state == stateDestroyed {
		return
	}

	if c.device != nil {
		vk.DeviceWaitIdle(c.device)

		c.drainRetired()

		c.pipelines.Clear(func(p *vulkanPipeline) { p.destroy(c.device) })
		c.shaders.Clear(func(s *vulkanShader) { s.destroy(c.device) })
		c.textures.Clear(func(t *vulkanTexture) { t.destroy(c) })
		c.buffers.Clear(func(b *vulkanBuffer) { b.destroy(c) })

		c.destroySwapchain()
		c.frames.destroy(c.device)

		if c.alloc != nil {
			c.alloc.destroy()
		}
		vk.DestroyDevice(c.device, nil)
		c.device = nil
	}

	if c.instance != nil {
		if c.surface != vk.NullSurface {
			vk.DestroySurface(c.instance, c.surface, nil)
			c.surface = vk.NullSurface
		}
		if c.debugCallback != vk.NullDebugReportCallback {
			vk.DestroyDebugReportCallback(c.instance, c.debugCallback, nil)
			c.debugCallback = vk.NullDebugReportCallback
		}
		vk.DestroyInstance(c.instance, nil)
		c.instance = nil
	}

	c.state = stateDestroyed
}

// debugReport forwards validation layer messages to the process log.
func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Printf("vulkan: ERROR [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Printf("vulkan: WARNING [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		log.Printf("vulkan: [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

// SupportedLayers returns the instance layers the Vulkan loader offers. The
// loader must have been initialized first; IsAvailable(Vulkan) does that.
func SupportedLayers() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	layers := make([]vk.LayerProperties, count)
	if err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, layers)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range layers {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// SupportedExtensions returns the instance extensions the Vulkan loader
// offers.
func SupportedExtensions() ([]string, error) {
	var count uint32
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	exts := make([]vk.ExtensionProperties, count)
	if err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, exts)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range exts {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// hasInstanceLayer reports whether the loader offers the named layer.
func hasInstanceLayer(name string) bool {
	layers, err := SupportedLayers()
	if err != nil {
		return false
	}
	for _, layer := range layers {
		if layer == name {
			return true
		}
	}
	return false
}
