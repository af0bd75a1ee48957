//go:build vulkan

package gfx

import (
	vk "github.com/vulkan-go/vulkan"
)

const texelSize = 4 // RGBA8

type vulkanBuffer struct {
	buffer   vk.Buffer
	memory   *memoryBlock
	size     int
	usage    BufferUsage
	location MemoryLocation
}

func (b *vulkanBuffer) destroy(c *VulkanContext) {
	vk.DestroyBuffer(c.device, b.buffer, nil)
	c.alloc.free(b.memory)
}

type vulkanTexture struct {
	image  vk.Image
	view   vk.ImageView
	memory *memoryBlock
	width  int
	height int
}

func (t *vulkanTexture) destroy(c *VulkanContext) {
	vk.DestroyImageView(c.device, t.view, nil)
	vk.DestroyImage(c.device, t.image, nil)
	c.alloc.free(t.memory)
}

type vulkanShader struct {
	vertex    vk.ShaderModule
	fragment  vk.ShaderModule
	compute   vk.ShaderModule
	isCompute bool
}

func (s *vulkanShader) destroy(device vk.Device) {
	if s.isCompute {
		vk.DestroyShaderModule(device, s.compute, nil)
		return
	}
	vk.DestroyShaderModule(device, s.vertex, nil)
	vk.DestroyShaderModule(device, s.fragment, nil)
}

type vulkanPipeline struct {
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
}

func (p *vulkanPipeline) destroy(device vk.Device) {
	vk.DestroyPipeline(device, p.pipeline, nil)
	vk.DestroyPipelineLayout(device, p.layout, nil)
}

// retiredResource is a deleted resource whose GPU objects may still be read
// by an in-flight frame. It is freed once the frame that deleted it is
// maxFramesInFlight submissions in the past.
type retiredResource struct {
	frame     uint64
	hasBuffer bool
	buffer    vk.Buffer
	hasImage  bool
	image     vk.Image
	view      vk.ImageView
	memory    *memoryBlock
}

func (c *VulkanContext) retireBuffer(b *vulkanBuffer) {
	c.retired = append(c.retired, retiredResource{
		frame:     c.frames.frameNumber,
		hasBuffer: true,
		buffer:    b.buffer,
		memory:    b.memory,
	})
}

func (c *VulkanContext) retireTexture(t *vulkanTexture) {
	c.retired = append(c.retired, retiredResource{
		frame:    c.frames.frameNumber,
		hasImage: true,
		image:    t.image,
		view:     t.view,
		memory:   t.memory,
	})
}

// splitRetired partitions retired resources into those whose deleting frame
// is at or before doneFrame and those an in-flight frame may still read.
func splitRetired(retired []retiredResource, doneFrame uint64) (done, pending []retiredResource) {
	for _, r := range retired {
		if r.frame <= doneFrame {
			done = append(done, r)
		} else {
			pending = append(pending, r)
		}
	}
	return done, pending
}

// freeRetired destroys every retired resource whose deleting frame is at or
// before doneFrame, which the caller has proven complete via a fence.
func (c *VulkanContext) freeRetired(doneFrame uint64) {
	done, pending := splitRetired(c.retired, doneFrame)
	for _, r := range done {
		c.destroyRetired(r)
	}
	c.retired = pending
}

// drainRetired frees everything regardless of age. Only valid after
// DeviceWaitIdle.
func (c *VulkanContext) drainRetired() {
	for _, r := range c.retired {
		c.destroyRetired(r)
	}
	c.retired = nil
}

func (c *VulkanContext) destroyRetired(r retiredResource) {
	if r.hasBuffer {
		vk.DestroyBuffer(c.device, r.buffer, nil)
	}
	if r.hasImage {
		vk.DestroyImageView(c.device, r.view, nil)
		vk.DestroyImage(c.device, r.image, nil)
	}
	c.alloc.free(r.memory)
}

// bufferUsageFlags maps the portable usage category onto Vulkan usage bits.
// Transfer destination is always included so device local buffers can be
// filled through a staging copy.
func bufferUsageFlags(usage BufferUsage) vk.BufferUsageFlags {
	flags := vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	switch usage {
	case VertexBuffer:
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case IndexBuffer:
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	case UniformBuffer:
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	case StorageBuffer:
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	return flags
}

func memoryPropertyFlags(location MemoryLocation) vk.MemoryPropertyFlagBits {
	if location == HostVisible {
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

func (c *VulkanContext) CreateBuffer(size int, usage BufferUsage, location MemoryLocation) (Handle, error) {
	if c.device == nil {
		return NilHandle, newError(BufferCreationFailed, "context is %v, no device", c.state)
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(c.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       bufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer))
	if err != nil {
		return NilHandle, wrapError(BufferCreationFailed, err, "creating %d byte %v", size, usage)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, buffer, &req)
	req.Deref()

	block, aerr := c.alloc.allocate(req, memoryPropertyFlags(location))
	if aerr != nil {
		vk.DestroyBuffer(c.device, buffer, nil)
		return NilHandle, wrapError(BufferCreationFailed, aerr, "allocating memory for %d byte %v", size, usage)
	}

	err = vk.Error(vk.BindBufferMemory(c.device, buffer,
		block.pool.memory, vk.DeviceSize(block.allocation.Offset)))
	if err != nil {
		vk.DestroyBuffer(c.device, buffer, nil)
		c.alloc.free(block)
		return NilHandle, wrapError(BufferCreationFailed, err, "binding buffer memory")
	}

	return c.buffers.Insert(&vulkanBuffer{
		buffer:   buffer,
		memory:   block,
		size:     size,
		usage:    usage,
		location: location,
	}), nil
}

func (c *VulkanContext) UpdateBuffer(buffer Handle, data []byte) error {
	b, ok := c.buffers.Get(buffer)
	if !ok {
		return newError(InvalidHandle, "unknown or deleted buffer %#x", uint64(buffer))
	}
	if len(data) > b.size {
		return newError(MappingFailed, "write of %d bytes exceeds buffer capacity %d", len(data), b.size)
	}
	if len(data) == 0 {
		return nil
	}

	if b.location == HostVisible {
		copy(b.memory.bytes(), data)
		return nil
	}

	// Device local: stage on the host and copy on the transfer queue.
	staging, block, err := c.createStaging(data)
	if err != nil {
		return err
	}
	defer func() {
		vk.DestroyBuffer(c.device, staging, nil)
		c.alloc.free(block)
	}()

	cmd, err := c.beginOneTime()
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cmd, staging, b.buffer, 1, []vk.BufferCopy{{
		Size: vk.DeviceSize(len(data)),
	}})
	return c.endOneTime(cmd)
}

// DeleteBuffer removes the buffer from the handle table immediately and
// retires its GPU objects; they are freed once no in-flight frame can still
// reference them.
func (c *VulkanContext) DeleteBuffer(buffer Handle) error {
	b, ok := c.buffers.Remove(buffer)
	if !ok {
		return newError(InvalidHandle, "unknown or deleted buffer %#x", uint64(buffer))
	}
	c.retireBuffer(b)
	return nil
}

func (c *VulkanContext) CreateTexture(width, height int, data []byte) (Handle, error) {
	if c.device == nil {
		return NilHandle, newError(TextureCreationFailed, "context is %v, no device", c.state)
	}
	size := width * height * texelSize
	if data != nil && len(data) != size {
		return NilHandle, newError(TextureCreationFailed,
			"texture data is %d bytes, want %d for %dx%d", len(data), size, width, height)
	}

	var image vk.Image
	err := vk.Error(vk.CreateImage(c.device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8g8b8a8Unorm,
		Extent: vk.Extent3D{
			Width:  uint32(width),
			Height: uint32(height),
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit |
			vk.ImageUsageTransferDstBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image))
	if err != nil {
		return NilHandle, wrapError(TextureCreationFailed, err, "creating %dx%d image", width, height)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, image, &req)
	req.Deref()

	block, aerr := c.alloc.allocate(req, vk.MemoryPropertyDeviceLocalBit)
	if aerr != nil {
		vk.DestroyImage(c.device, image, nil)
		return NilHandle, wrapError(TextureCreationFailed, aerr, "allocating texture memory")
	}

	err = vk.Error(vk.BindImageMemory(c.device, image,
		block.pool.memory, vk.DeviceSize(block.allocation.Offset)))
	if err != nil {
		vk.DestroyImage(c.device, image, nil)
		c.alloc.free(block)
		return NilHandle, wrapError(TextureCreationFailed, err, "binding texture memory")
	}

	view, verr := createImageView(c.device, image, vk.FormatR8g8b8a8Unorm)
	if verr != nil {
		vk.DestroyImage(c.device, image, nil)
		c.alloc.free(block)
		return NilHandle, wrapError(TextureCreationFailed, verr, "creating texture view")
	}

	t := &vulkanTexture{
		image:  image,
		view:   view,
		memory: block,
		width:  width,
		height: height,
	}

	if data != nil {
		if err := c.uploadTexture(t, data); err != nil {
			t.destroy(c)
			return NilHandle, err
		}
	}
	return c.textures.Insert(t), nil
}

func (c *VulkanContext) UpdateTexture(texture Handle, width, height int, data []byte) error {
	t, ok := c.textures.Get(texture)
	if !ok {
		return newError(InvalidHandle, "unknown or deleted texture %#x", uint64(texture))
	}
	if width != t.width || height != t.height {
		return newError(TextureCreationFailed,
			"texture is %dx%d, cannot update as %dx%d", t.width, t.height, width, height)
	}
	if len(data) != t.width*t.height*texelSize {
		return newError(TextureCreationFailed,
			"texture data is %d bytes, want %d", len(data), t.width*t.height*texelSize)
	}
	return c.uploadTexture(t, data)
}

// uploadTexture stages data on the host and records the classic layout
// dance: undefined -> transfer destination, copy, -> shader read only.
func (c *VulkanContext) uploadTexture(t *vulkanTexture, data []byte) error {
	staging, block, err := c.createStaging(data)
	if err != nil {
		return err
	}
	defer func() {
		vk.DestroyBuffer(c.device, staging, nil)
		c.alloc.free(block)
	}()

	cmd, err := c.beginOneTime()
	if err != nil {
		return err
	}

	transitionImageLayout(cmd, t.image,
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)

	vk.CmdCopyBufferToImage(cmd, staging, t.image, vk.ImageLayoutTransferDstOptimal, 1,
		[]vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width:  uint32(t.width),
				Height: uint32(t.height),
				Depth:  1,
			},
		}})

	transitionImageLayout(cmd, t.image,
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)

	return c.endOneTime(cmd)
}

func transitionImageLayout(cmd vk.CommandBuffer, image vk.Image, oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}

	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{barrier})
}

// createStaging makes a host visible transfer source buffer already filled
// with data. The caller destroys it once the copy has completed.
func (c *VulkanContext) createStaging(data []byte) (vk.Buffer, *memoryBlock, error) {
	var staging vk.Buffer
	err := vk.Error(vk.CreateBuffer(c.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(len(data)),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &staging))
	if err != nil {
		return staging, nil, wrapError(MappingFailed, err, "creating staging buffer")
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, staging, &req)
	req.Deref()

	block, aerr := c.alloc.allocate(req,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if aerr != nil {
		vk.DestroyBuffer(c.device, staging, nil)
		return staging, nil, wrapError(MappingFailed, aerr, "allocating staging memory")
	}

	err = vk.Error(vk.BindBufferMemory(c.device, staging,
		block.pool.memory, vk.DeviceSize(block.allocation.Offset)))
	if err != nil {
		vk.DestroyBuffer(c.device, staging, nil)
		c.alloc.free(block)
		return staging, nil, wrapError(MappingFailed, err, "binding staging memory")
	}

	copy(block.bytes(), data)
	return staging, block, nil
}

// beginOneTime opens a throwaway command buffer for a synchronous transfer.
func (c *VulkanContext) beginOneTime() (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	err := vk.Error(vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.frames.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers))
	if err != nil {
		return nil, wrapError(CommandBufferCreationFailed, err, "allocating transfer command buffer")
	}
	cmd := buffers[0]
	err = vk.Error(vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
	if err != nil {
		vk.FreeCommandBuffers(c.device, c.frames.commandPool, 1, buffers)
		return nil, wrapError(CommandBufferCreationFailed, err, "beginning transfer command buffer")
	}
	return cmd, nil
}

// endOneTime submits the transfer and blocks until it completes.
func (c *VulkanContext) endOneTime(cmd vk.CommandBuffer) error {
	defer vk.FreeCommandBuffers(c.device, c.frames.commandPool, 1, []vk.CommandBuffer{cmd})

	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return wrapError(CommandBufferCreationFailed, err, "ending transfer command buffer")
	}

	var fence vk.Fence
	err := vk.Error(vk.CreateFence(c.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}, nil, &fence))
	if err != nil {
		return wrapError(SynchronizationFailed, err, "creating transfer fence")
	}
	defer vk.DestroyFence(c.device, fence, nil)

	err = vk.Error(vk.QueueSubmit(c.graphicsQueue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, fence))
	if err != nil {
		return wrapError(SynchronizationFailed, err, "submitting transfer")
	}

	err = vk.Error(vk.WaitForFences(c.device, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64))
	if err != nil {
		return wrapError(SynchronizationFailed, err, "waiting for transfer")
	}
	return nil
}
