/*
Package gfx provides one rendering context API over two interchangeable
backends, OpenGL and Vulkan. Application code talks to a GraphicsContext and
never sees which backend is underneath; the backend is chosen once, at
construction, and every operation is routed to it unchanged.

The OpenGL backend assumes an already working GL environment: the windowing
layer creates the context and loads the function pointers, and this package
layers resource handle bookkeeping, validation and statistics on top. The
Vulkan backend owns the whole chain itself - instance, surface, device,
swapchain, render pass, framebuffers and a frame synchronization ring - and
brings it up during Initialize.

Resources (buffers, textures, shaders, pipelines) are referred to by opaque
Handle values. A handle stays unique for the lifetime of the context: once
the resource behind it is deleted, the handle is dead forever and every
operation against it reports InvalidHandle rather than touching whatever
resource may have reused the slot.

Deleting a GPU resource does not free its memory immediately. The Vulkan
backend retires deleted resources and frees them only when the frame that
deleted them is provably complete, so a buffer still referenced by an
in-flight command buffer is never pulled out from under the GPU.

Every error returned by this package carries one of a small set of ErrKind
categories; use ErrorKind or errors.As to dispatch on them.

A minimal lifecycle:

	ctx, err := gfx.NewGraphicsContext(gfx.Vulkan)
	if err != nil {
		// fall back or fail
	}
	if err := ctx.Initialize(display); err != nil {
		log.Fatal(err)
	}
	defer ctx.Cleanup()

	vbuf, _ := ctx.CreateBuffer(1024, gfx.VertexBuffer, gfx.DeviceLocal)
	ctx.UpdateBuffer(vbuf, vertexData)

	for running {
		ctx.BeginRenderPass(&clearColor)
		// record draws
		ctx.EndRenderPass()
		ctx.Present()
	}

Vulkan support is compiled in with the vulkan build tag. Without it the
package still builds and runs on OpenGL; requesting the Vulkan backend then
fails at construction with InitializationFailed.
*/
package gfx
