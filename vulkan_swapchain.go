//go:build vulkan

package gfx

import (
	"log"

	vk "github.com/vulkan-go/vulkan"
)

// createSwapchain builds the presentation chain for the current drawable
// size: swapchain and image views, the MSAA color target when multisampling
// is on, the render pass, and one framebuffer per swapchain image.
func (c *VulkanContext) createSwapchain() error {
	if err := c.createSwapchainImages(); err != nil {
		return err
	}
	if c.msaaSamples > 1 {
		if err := c.createMSAATarget(); err != nil {
			return err
		}
	}
	if err := c.createRenderPass(); err != nil {
		return err
	}
	return c.createFramebuffers()
}

func (c *VulkanContext) createSwapchainImages() error {
	format, err := c.chooseSurfaceFormat()
	if err != nil {
		return err
	}
	presentMode, err := c.choosePresentMode()
	if err != nil {
		return err
	}

	var caps vk.SurfaceCapabilities
	err = vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(c.gpu, c.surface, &caps))
	if err != nil {
		return wrapError(InitializationFailed, err, "querying surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		// The surface lets the swapchain decide; use the drawable size
		// clamped to what the surface accepts.
		w, h := c.display.DrawableSize()
		extent = vk.Extent2D{
			Width:  clampUint32(uint32(w), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: clampUint32(uint32(h), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          c.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PresentMode:      presentMode,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if c.graphicsFamily != c.presentFamily {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{c.graphicsFamily, c.presentFamily}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	err = vk.Error(vk.CreateSwapchain(c.device, &createInfo, nil, &c.swapchain))
	if err != nil {
		return wrapError(InitializationFailed, err, "creating swapchain")
	}
	c.swapchainFormat = format.Format
	c.swapchainExtent = extent

	var count uint32
	err = vk.Error(vk.GetSwapchainImages(c.device, c.swapchain, &count, nil))
	if err != nil {
		return wrapError(InitializationFailed, err, "querying swapchain images")
	}
	c.swapchainImages = make([]vk.Image, count)
	err = vk.Error(vk.GetSwapchainImages(c.device, c.swapchain, &count, c.swapchainImages))
	if err != nil {
		return wrapError(InitializationFailed, err, "querying swapchain images")
	}

	c.swapchainViews = make([]vk.ImageView, count)
	for i, image := range c.swapchainImages {
		view, err := createImageView(c.device, image, c.swapchainFormat)
		if err != nil {
			return wrapError(InitializationFailed, err, "creating swapchain image view %d", i)
		}
		c.swapchainViews[i] = view
	}
	return nil
}

// chooseSurfaceFormat prefers an 8-bit SRGB four component format and falls
// back to whatever the surface offers first.
func (c *VulkanContext) chooseSurfaceFormat() (vk.SurfaceFormat, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(c.gpu, c.surface, &count, nil))
	if err != nil {
		return vk.SurfaceFormat{}, wrapError(InitializationFailed, err, "querying surface formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfaceFormats(c.gpu, c.surface, &count, formats))
	if err != nil {
		return vk.SurfaceFormat{}, wrapError(InitializationFailed, err, "querying surface formats")
	}
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, newError(InitializationFailed, "surface offers no formats")
	}

	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Srgb || formats[i].Format == vk.FormatR8g8b8a8Srgb {
			return formats[i], nil
		}
	}
	return formats[0], nil
}

// choosePresentMode prefers mailbox and falls back to FIFO, which every
// conforming driver provides.
func (c *VulkanContext) choosePresentMode() (vk.PresentMode, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(c.gpu, c.surface, &count, nil))
	if err != nil {
		return vk.PresentModeFifo, wrapError(InitializationFailed, err, "querying present modes")
	}
	modes := make([]vk.PresentMode, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(c.gpu, c.surface, &count, modes))
	if err != nil {
		return vk.PresentModeFifo, wrapError(InitializationFailed, err, "querying present modes")
	}
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode, nil
		}
	}
	return vk.PresentModeFifo, nil
}

func createImageView(device vk.Device, image vk.Image, format vk.Format) (vk.ImageView, error) {
	var view vk.ImageView
	err := vk.Error(vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view))
	return view, err
}

// createMSAATarget allocates the multisampled color image rendering resolves
// from. Lives only while samples > 1.
func (c *VulkanContext) createMSAATarget() error {
	err := vk.Error(vk.CreateImage(c.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    c.swapchainFormat,
		Extent: vk.Extent3D{
			Width:  c.swapchainExtent.Width,
			Height: c.swapchainExtent.Height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     sampleFlagBits(c.msaaSamples),
		Tiling:      vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit |
			vk.ImageUsageTransientAttachmentBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &c.msaaImage))
	if err != nil {
		return wrapError(InitializationFailed, err, "creating MSAA color image")
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, c.msaaImage, &req)
	req.Deref()

	block, aerr := c.alloc.allocate(req, vk.MemoryPropertyDeviceLocalBit)
	if aerr != nil {
		return wrapError(InitializationFailed, aerr, "allocating MSAA color memory")
	}
	c.msaaMemory = block

	err = vk.Error(vk.BindImageMemory(c.device, c.msaaImage,
		block.pool.memory, vk.DeviceSize(block.allocation.Offset)))
	if err != nil {
		return wrapError(InitializationFailed, err, "binding MSAA color memory")
	}

	view, verr := createImageView(c.device, c.msaaImage, c.swapchainFormat)
	if verr != nil {
		return wrapError(InitializationFailed, verr, "creating MSAA color view")
	}
	c.msaaView = view
	return nil
}

// createRenderPass builds the single subpass color pass. With multisampling
// the MSAA image is attachment 0 and the swapchain image becomes the resolve
// target; without it the swapchain image is rendered to directly.
func (c *VulkanContext) createRenderPass() error {
	samples := sampleFlagBits(c.msaaSamples)

	color := vk.AttachmentDescription{
		Format:         c.swapchainFormat,
		Samples:        samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	attachments := []vk.AttachmentDescription{color}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	if c.msaaSamples > 1 {
		// Attachment 0 carries the samples; it is never presented, so its
		// contents can be discarded after the resolve.
		attachments[0].StoreOp = vk.AttachmentStoreOpDontCare
		attachments[0].FinalLayout = vk.ImageLayoutColorAttachmentOptimal

		resolve := vk.AttachmentDescription{
			Format:         c.swapchainFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		}
		attachments = append(attachments, resolve)
		subpass.PResolveAttachments = []vk.AttachmentReference{{
			Attachment: 1,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.MaxUint32, // external
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	err := vk.Error(vk.CreateRenderPass(c.device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}, nil, &c.renderPass))
	if err != nil {
		return wrapError(InitializationFailed, err, "creating render pass")
	}
	return nil
}

func (c *VulkanContext) createFramebuffers() error {
	c.framebuffers = make([]vk.Framebuffer, len(c.swapchainViews))
	for i, view := range c.swapchainViews {
		attachments := []vk.ImageView{view}
		if c.msaaSamples > 1 {
			attachments = []vk.ImageView{c.msaaView, view}
		}
		err := vk.Error(vk.CreateFramebuffer(c.device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      c.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           c.swapchainExtent.Width,
			Height:          c.swapchainExtent.Height,
			Layers:          1,
		}, nil, &c.framebuffers[i]))
		if err != nil {
			return wrapError(InitializationFailed, err, "creating framebuffer %d", i)
		}
	}
	return nil
}

// destroySwapchain tears down the presentation chain only; device level
// objects and resources survive. Caller must have idled the device.
func (c *VulkanContext) destroySwapchain() {
	for _, fb := range c.framebuffers {
		vk.DestroyFramebuffer(c.device, fb, nil)
	}
	c.framebuffers = nil

	if c.renderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(c.device, c.renderPass, nil)
		c.renderPass = vk.NullRenderPass
	}

	c.destroyMSAATarget()

	for _, view := range c.swapchainViews {
		vk.DestroyImageView(c.device, view, nil)
	}
	c.swapchainViews = nil
	c.swapchainImages = nil

	if c.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(c.device, c.swapchain, nil)
		c.swapchain = vk.NullSwapchain
	}
}

func (c *VulkanContext) destroyMSAATarget() {
	if c.msaaMemory == nil {
		return
	}
	vk.DestroyImageView(c.device, c.msaaView, nil)
	vk.DestroyImage(c.device, c.msaaImage, nil)
	c.alloc.free(c.msaaMemory)
	c.msaaMemory = nil
}

// recreateSwapchain rebuilds the presentation chain after a resize or an
// out-of-date result from the driver.
func (c *VulkanContext) recreateSwapchain() error {
	vk.DeviceWaitIdle(c.device)
	c.destroySwapchain()
	if err := c.createSwapchain(); err != nil {
		return err
	}
	log.Printf("vulkan: swapchain recreated at %dx%d",
		c.swapchainExtent.Width, c.swapchainExtent.Height)
	return nil
}

// SetMSAASamples changes the multisample count. The count must be a power of
// two the device's color framebuffers support. On failure the previous
// sample count stays in effect; on success an existing presentation chain is
// rebuilt with the new sample count.
func (c *VulkanContext) SetMSAASamples(samples int) error {
	if !validSampleCount(samples) {
		return newError(InitializationFailed, "unsupported MSAA sample count %d", samples)
	}
	if c.device != nil {
		if err := checkSampleCap(samples, c.maxSampleCount()); err != nil {
			return err
		}
	}
	if samples == c.msaaSamples {
		return nil
	}

	prev := c.msaaSamples
	c.msaaSamples = samples
	if c.swapchain != vk.NullSwapchain {
		if err := c.recreateSwapchain(); err != nil {
			// Restore the old chain so the context stays usable.
			c.msaaSamples = prev
			if rerr := c.recreateSwapchain(); rerr != nil {
				return rerr
			}
			return err
		}
	}
	return nil
}

// checkSampleCap rejects sample counts above what the device's color
// framebuffers support.
func checkSampleCap(samples, max int) error {
	if samples > max {
		return newError(InitializationFailed,
			"device supports at most %dx MSAA, got %dx", max, samples)
	}
	return nil
}

// maxSampleCount returns the highest color sample count the device reports.
func (c *VulkanContext) maxSampleCount() int {
	c.gpuProps.Limits.Deref()
	counts := c.gpuProps.Limits.FramebufferColorSampleCounts
	for n := 64; n > 1; n >>= 1 {
		if counts&vk.SampleCountFlags(sampleFlagBits(n)) != 0 {
			return n
		}
	}
	return 1
}

func sampleFlagBits(n int) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	case 32:
		return vk.SampleCount32Bit
	case 64:
		return vk.SampleCount64Bit
	}
	return vk.SampleCount1Bit
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
