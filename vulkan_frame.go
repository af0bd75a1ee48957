//go:build vulkan

package gfx

import (
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// frameRing is the per-frame sync state: one semaphore pair, one fence and
// one command buffer per in-flight slot. The fence is created signaled so
// the first wait on each slot passes immediately.
type frameRing struct {
	created        bool
	commandPool    vk.CommandPool
	commandBuffers [maxFramesInFlight]vk.CommandBuffer
	imageAvailable [maxFramesInFlight]vk.Semaphore
	renderFinished [maxFramesInFlight]vk.Semaphore
	inFlight       [maxFramesInFlight]vk.Fence

	current     int
	frameNumber uint64
	imageIndex  uint32

	recording    bool
	inRenderPass bool

	frameStart time.Time
	frameTime  float64
}

func (r *frameRing) create(device vk.Device, graphicsFamily uint32) error {
	err := vk.Error(vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: graphicsFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &r.commandPool))
	if err != nil {
		return wrapError(CommandBufferCreationFailed, err, "creating command pool")
	}
	r.created = true

	buffers := make([]vk.CommandBuffer, maxFramesInFlight)
	err = vk.Error(vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: maxFramesInFlight,
	}, buffers))
	if err != nil {
		return wrapError(CommandBufferCreationFailed, err, "allocating command buffers")
	}
	copy(r.commandBuffers[:], buffers)

	for i := 0; i < maxFramesInFlight; i++ {
		err = vk.Error(vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &r.imageAvailable[i]))
		if err != nil {
			return wrapError(SynchronizationFailed, err, "creating acquire semaphore %d", i)
		}
		err = vk.Error(vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}, nil, &r.renderFinished[i]))
		if err != nil {
			return wrapError(SynchronizationFailed, err, "creating render semaphore %d", i)
		}
		err = vk.Error(vk.CreateFence(device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &r.inFlight[i]))
		if err != nil {
			return wrapError(SynchronizationFailed, err, "creating frame fence %d", i)
		}
	}
	return nil
}

func (r *frameRing) destroy(device vk.Device) {
	for i := 0; i < maxFramesInFlight; i++ {
		if r.imageAvailable[i] != vk.NullSemaphore {
			vk.DestroySemaphore(device, r.imageAvailable[i], nil)
			r.imageAvailable[i] = vk.NullSemaphore
		}
		if r.renderFinished[i] != vk.NullSemaphore {
			vk.DestroySemaphore(device, r.renderFinished[i], nil)
			r.renderFinished[i] = vk.NullSemaphore
		}
		if r.inFlight[i] != vk.NullFence {
			vk.DestroyFence(device, r.inFlight[i], nil)
			r.inFlight[i] = vk.NullFence
		}
	}
	if r.created {
		vk.DestroyCommandPool(device, r.commandPool, nil)
		r.created = false
	}
}

// BeginFrame waits for the ring slot's previous submission, acquires the
// next swapchain image and opens the slot's command buffer for recording.
// It returns the ring slot index. An out-of-date swapchain is rebuilt and
// the acquire retried once.
func (c *VulkanContext) BeginFrame() (int, error) {
	switch c.state {
	case stateSwapchainReady, stateRunning:
	default:
		return 0, newError(SynchronizationFailed, "context is %v, cannot begin a frame", c.state)
	}
	if c.frames.recording {
		return 0, newError(SynchronizationFailed, "frame already begun")
	}

	r := &c.frames
	vk.WaitForFences(c.device, 1, []vk.Fence{r.inFlight[r.current]}, vk.True, vk.MaxUint64)

	// The slot's fence has signaled: everything submitted maxFramesInFlight
	// ago is done, so its retired resources can be freed now.
	if r.frameNumber >= maxFramesInFlight {
		c.freeRetired(r.frameNumber - maxFramesInFlight)
	}

	acquired := false
	for attempt := 0; attempt < 2; attempt++ {
		res := vk.AcquireNextImage(c.device, c.swapchain, vk.MaxUint64,
			r.imageAvailable[r.current], vk.NullFence, &r.imageIndex)
		if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
			if err := c.recreateSwapchain(); err != nil {
				return 0, err
			}
			continue
		}
		if err := vk.Error(res); err != nil {
			return 0, wrapError(SynchronizationFailed, err, "acquiring swapchain image")
		}
		acquired = true
		break
	}
	if !acquired {
		return 0, newError(SynchronizationFailed, "swapchain out of date after recreation")
	}

	vk.ResetFences(c.device, 1, []vk.Fence{r.inFlight[r.current]})

	cmd := r.commandBuffers[r.current]
	vk.ResetCommandBuffer(cmd, 0)
	err := vk.Error(vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}))
	if err != nil {
		return 0, wrapError(CommandBufferCreationFailed, err, "beginning command buffer")
	}

	if r.frameStart.IsZero() {
		r.frameStart = time.Now()
	}
	r.recording = true
	c.state = stateRunning
	return r.current, nil
}

// BeginRenderPass starts the color pass against the acquired swapchain
// image, beginning the frame first if the caller has not. A nil clear color
// clears to opaque black.
func (c *VulkanContext) BeginRenderPass(clearColor *[4]float32) error {
	if !c.frames.recording {
		if _, err := c.BeginFrame(); err != nil {
			return err
		}
	}
	if c.frames.inRenderPass {
		return newError(SynchronizationFailed, "render pass already active")
	}

	clear := [4]float32{0, 0, 0, 1}
	if clearColor != nil {
		clear = *clearColor
	}
	clearValue := vk.NewClearValue(clear[:])

	clearValues := []vk.ClearValue{clearValue}
	if c.msaaSamples > 1 {
		// The resolve attachment is never loaded, but the attachment count
		// must match the render pass.
		clearValues = append(clearValues, clearValue)
	}

	r := &c.frames
	vk.CmdBeginRenderPass(r.commandBuffers[r.current], &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  c.renderPass,
		Framebuffer: c.framebuffers[r.imageIndex],
		RenderArea: vk.Rect2D{
			Extent: c.swapchainExtent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)

	r.inRenderPass = true
	return nil
}

func (c *VulkanContext) EndRenderPass() error {
	r := &c.frames
	if !r.inRenderPass {
		return newError(SynchronizationFailed, "no render pass active")
	}
	vk.CmdEndRenderPass(r.commandBuffers[r.current])
	r.inRenderPass = false
	return nil
}

// Present closes the frame's command buffer, submits it gated on the acquire
// semaphore, queues the present gated on the render semaphore, and advances
// the ring. A frame that was never begun presents nothing and succeeds.
func (c *VulkanContext) Present() error {
	r := &c.frames
	if !r.recording {
		return nil
	}
	if r.inRenderPass {
		if err := c.EndRenderPass(); err != nil {
			return err
		}
	}

	cmd := r.commandBuffers[r.current]
	if err := vk.Error(vk.EndCommandBuffer(cmd)); err != nil {
		return wrapError(CommandBufferCreationFailed, err, "ending command buffer")
	}

	err := vk.Error(vk.QueueSubmit(c.graphicsQueue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{r.imageAvailable[r.current]},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{r.renderFinished[r.current]},
	}}, r.inFlight[r.current]))
	if err != nil {
		return wrapError(SynchronizationFailed, err, "submitting frame")
	}
	r.recording = false
	r.frameNumber++

	res := vk.QueuePresent(c.presentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{r.renderFinished[r.current]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{c.swapchain},
		PImageIndices:      []uint32{r.imageIndex},
	})
	r.current = (r.current + 1) % maxFramesInFlight

	if !r.frameStart.IsZero() {
		r.frameTime = time.Since(r.frameStart).Seconds()
	}
	r.frameStart = time.Now()

	if res == vk.ErrorOutOfDate || res == vk.Suboptimal {
		return c.recreateSwapchain()
	}
	if err := vk.Error(res); err != nil {
		return wrapError(SynchronizationFailed, err, "presenting frame")
	}
	return nil
}
