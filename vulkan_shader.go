//go:build vulkan

package gfx

import (
	"github.com/gogpu/naga"
	vk "github.com/vulkan-go/vulkan"
)

// compileWGSL compiles WGSL source to SPIR-V words. Compiler diagnostics
// come back inside the error.
func compileWGSL(source string) ([]uint32, error) {
	if source == "" {
		return nil, newError(ShaderCompilation, "empty shader source")
	}
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, wrapError(ShaderCompilation, err, "compiling WGSL")
	}
	// SPIR-V is little endian 32 bit words.
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}

func createShaderModule(device vk.Device, words []uint32) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	err := vk.Error(vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(words) * 4),
		PCode:    words,
	}, nil, &module))
	if err != nil {
		return module, wrapError(ShaderCompilation, err, "creating shader module")
	}
	return module, nil
}

// CreateShader compiles a vertex and fragment stage pair. Both stages must
// compile; nothing is kept when either fails.
func (c *VulkanContext) CreateShader(vertexSrc, fragmentSrc string) (Handle, error) {
	if c.device == nil {
		return NilHandle, newError(ShaderCompilation, "context is %v, no device", c.state)
	}

	vertexWords, err := compileWGSL(vertexSrc)
	if err != nil {
		return NilHandle, err
	}
	fragmentWords, err := compileWGSL(fragmentSrc)
	if err != nil {
		return NilHandle, err
	}

	vertex, err := createShaderModule(c.device, vertexWords)
	if err != nil {
		return NilHandle, err
	}
	fragment, err := createShaderModule(c.device, fragmentWords)
	if err != nil {
		vk.DestroyShaderModule(c.device, vertex, nil)
		return NilHandle, err
	}

	return c.shaders.Insert(&vulkanShader{
		vertex:   vertex,
		fragment: fragment,
	}), nil
}

// CreateComputeShader compiles a compute stage.
func (c *VulkanContext) CreateComputeShader(computeSrc string) (Handle, error) {
	if c.device == nil {
		return NilHandle, newError(ShaderCompilation, "context is %v, no device", c.state)
	}

	words, err := compileWGSL(computeSrc)
	if err != nil {
		return NilHandle, err
	}
	module, err := createShaderModule(c.device, words)
	if err != nil {
		return NilHandle, err
	}

	return c.shaders.Insert(&vulkanShader{
		compute:   module,
		isCompute: true,
	}), nil
}

// CreatePipeline builds a graphics pipeline from a vertex/fragment shader
// pair against the current render pass. Vertex data layout is supplied by
// the shader itself; the pipeline carries no vertex input bindings.
func (c *VulkanContext) CreatePipeline(shader Handle) (Handle, error) {
	s, ok := c.shaders.Get(shader)
	if !ok {
		return NilHandle, newError(InvalidHandle, "unknown or deleted shader %#x", uint64(shader))
	}
	if s.isCompute {
		return NilHandle, newError(ShaderCompilation, "compute shader cannot back a graphics pipeline")
	}
	if c.renderPass == vk.NullRenderPass {
		return NilHandle, newError(InitializationFailed, "context is %v, no render pass", c.state)
	}

	var layout vk.PipelineLayout
	err := vk.Error(vk.CreatePipelineLayout(c.device, &vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}, nil, &layout))
	if err != nil {
		return NilHandle, wrapError(InitializationFailed, err, "creating pipeline layout")
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: s.vertex,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: s.fragment,
			PName:  safeString("main"),
		},
	}

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssemblyState := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			Width:    float32(c.swapchainExtent.Width),
			Height:   float32(c.swapchainExtent.Height),
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Extent: c.swapchainExtent,
		}},
	}
	rasterState := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}
	multisampleState := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleFlagBits(c.msaaSamples),
	}
	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit |
				vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
			BlendEnable: vk.False,
		}},
	}

	pipelines := make([]vk.Pipeline, 1)
	err = vk.Error(vk.CreateGraphicsPipelines(c.device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{{
			SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount:          uint32(len(stages)),
			PStages:             stages,
			PVertexInputState:   &vertexInputState,
			PInputAssemblyState: &inputAssemblyState,
			PViewportState:      &viewportState,
			PRasterizationState: &rasterState,
			PMultisampleState:   &multisampleState,
			PColorBlendState:    &colorBlendState,
			Layout:              layout,
			RenderPass:          c.renderPass,
		}}, nil, pipelines))
	if err != nil {
		vk.DestroyPipelineLayout(c.device, layout, nil)
		return NilHandle, wrapError(InitializationFailed, err, "creating graphics pipeline")
	}

	return c.pipelines.Insert(&vulkanPipeline{
		pipeline: pipelines[0],
		layout:   layout,
	}), nil
}

// DeletePipeline destroys a pipeline immediately. Pipelines are not read by
// in-flight frames once the device idles between SetMSAASamples rebuilds, so
// deletion waits for the device rather than going through retirement.
func (c *VulkanContext) DeletePipeline(pipeline Handle) error {
	p, ok := c.pipelines.Remove(pipeline)
	if !ok {
		return newError(InvalidHandle, "unknown or deleted pipeline %#x", uint64(pipeline))
	}
	vk.DeviceWaitIdle(c.device)
	p.destroy(c.device)
	return nil
}
